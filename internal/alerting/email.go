package alerting

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/textproto"
	"time"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"
)

const channelEmail = "email"

var emailBody = template.Must(template.New("alert").Parse(`<html>
<body>
    <h2>Price Drop Notification</h2>
    <p>Good news! The price for the item you are tracking has dropped to or below your target price.</p>
    <p><strong>Current Price:</strong> <span style="color: green; font-weight: bold;">{{.Current}}</span></p>
    <p><strong>Your Target Price:</strong> {{.Target}}</p>
    <p>You can purchase it here:</p>
    <a href="{{.URL}}">Buy Now</a>
    <p>This is an automated alert from the pricewatch price tracker.</p>
</body>
</html>`))

// EmailOptions configure SMTP delivery.
type EmailOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// EmailNotifier sends HTML alert mails over authenticated SMTP.
type EmailNotifier struct {
	opts   EmailOptions
	send   func(ctx context.Context, msg *mail.Msg) error
	logger zerolog.Logger
}

// NewEmailNotifier constructs the SMTP notifier. From defaults to Username.
func NewEmailNotifier(opts EmailOptions, logger zerolog.Logger) *EmailNotifier {
	if opts.Port <= 0 {
		opts.Port = 587
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.From == "" {
		opts.From = opts.Username
	}
	n := &EmailNotifier{
		opts:   opts,
		logger: logger.With().Str("component", "alert_email").Logger(),
	}
	n.send = n.dialAndSend
	return n
}

// Notify renders the alert and delivers it to recipient.
func (n *EmailNotifier) Notify(ctx context.Context, recipient string, note Notification) error {
	if n.opts.Username == "" || n.opts.Password == "" {
		return authErr(channelEmail, ErrNotConfigured)
	}

	msg, err := n.buildMessage(recipient, note)
	if err != nil {
		return transportErr(channelEmail, err)
	}

	n.logger.Debug().Int64("item_id", note.ItemID).Str("recipient", recipient).Msg("sending alert email")
	if err := n.send(ctx, msg); err != nil {
		return classifySMTP(err)
	}

	n.logger.Info().Int64("item_id", note.ItemID).
		Str("recipient", recipient).
		Str("price", note.CurrentPrice.String()).
		Msg("告警已发送 (Email)")
	return nil
}

func (n *EmailNotifier) buildMessage(recipient string, note Notification) (*mail.Msg, error) {
	html, err := renderEmailHTML(note)
	if err != nil {
		return nil, err
	}

	msg := mail.NewMsg()
	if err := msg.From(n.opts.From); err != nil {
		return nil, fmt.Errorf("set sender: %w", err)
	}
	if err := msg.To(recipient); err != nil {
		return nil, fmt.Errorf("set recipient: %w", err)
	}
	msg.Subject(emailSubject(note))
	msg.SetBodyString(mail.TypeTextHTML, html)
	msg.AddAlternativeString(mail.TypeTextPlain, renderText(note))
	return msg, nil
}

func (n *EmailNotifier) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	client, err := mail.NewClient(n.opts.Host,
		mail.WithPort(n.opts.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(n.opts.Username),
		mail.WithPassword(n.opts.Password),
		mail.WithTimeout(n.opts.Timeout),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, msg)
}

func emailSubject(note Notification) string {
	return fmt.Sprintf("Price Alert! Your tracked item is now %s", formatPrice(note.CurrentPrice))
}

func renderEmailHTML(note Notification) (string, error) {
	var buf bytes.Buffer
	err := emailBody.Execute(&buf, struct {
		Current string
		Target  string
		URL     string
	}{
		Current: formatPrice(note.CurrentPrice),
		Target:  formatPrice(note.TargetPrice),
		URL:     note.SourceURL,
	})
	if err != nil {
		return "", fmt.Errorf("render alert email: %w", err)
	}
	return buf.String(), nil
}

// classifySMTP maps 530/534/535 replies to auth failures.
func classifySMTP(err error) error {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		switch protoErr.Code {
		case 530, 534, 535:
			return authErr(channelEmail, err)
		}
	}
	return transportErr(channelEmail, err)
}

var _ Notifier = (*EmailNotifier)(nil)
