package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const channelTelegram = "telegram"

// TelegramNotifier 通过 Telegram Bot API 推送消息；recipient 即 chat_id。
type TelegramNotifier struct {
	botToken string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier 构造 Telegram 告警器。
func NewTelegramNotifier(botToken, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify 调用 sendMessage API 推送文本。
func (n *TelegramNotifier) Notify(ctx context.Context, recipient string, note Notification) error {
	if n.botToken == "" {
		return authErr(channelTelegram, ErrNotConfigured)
	}

	payload := map[string]any{
		"chat_id":                  recipient,
		"text":                     renderText(note),
		"disable_web_page_preview": false,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return transportErr(channelTelegram, fmt.Errorf("marshal telegram payload: %w", err))
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return transportErr(channelTelegram, fmt.Errorf("create telegram request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return transportErr(channelTelegram, fmt.Errorf("send telegram request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return authErr(channelTelegram, fmt.Errorf("telegram 拒绝访问: %d", resp.StatusCode))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return transportErr(channelTelegram, fmt.Errorf("telegram 响应码异常: %d", resp.StatusCode))
	}

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return transportErr(channelTelegram, fmt.Errorf("telegram 返回 ok=false: %s", result.Description))
		}
	}

	n.logger.Info().Int64("item_id", note.ItemID).
		Str("chat_id", recipient).
		Str("price", note.CurrentPrice.String()).
		Msg("告警已发送 (Telegram)")
	return nil
}

func renderText(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString("[Price Alert]\n")
	builder.WriteString(fmt.Sprintf("Current price: %s\n", formatPrice(note.CurrentPrice)))
	builder.WriteString(fmt.Sprintf("Your target: %s\n", formatPrice(note.TargetPrice)))
	if !note.DetectedAt.IsZero() {
		builder.WriteString(fmt.Sprintf("Checked: %s UTC\n", note.DetectedAt.UTC().Format(time.RFC3339)))
	}
	builder.WriteString(fmt.Sprintf("Buy now: %s\n", note.SourceURL))
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
