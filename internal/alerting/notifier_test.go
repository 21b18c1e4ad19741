package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/wneessen/go-mail"
)

func testNote() Notification {
	return Notification{
		ItemID:       7,
		SourceURL:    "https://www.amazon.com/dp/B000?tag=a&b=1",
		TargetPrice:  decimal.RequireFromString("20"),
		CurrentPrice: decimal.RequireFromString("19.99"),
		DetectedAt:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]any)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/bottoken/sendMessage") {
			t.Fatalf("路径应包含 sendMessage, 实际 %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), "12345", testNote()); err != nil {
		t.Fatalf("Telegram Notify 应成功: %v", err)
	}

	if received["chat_id"] != "12345" {
		t.Fatalf("chat_id 不正确: %#v", received)
	}
	text, _ := received["text"].(string)
	if !strings.Contains(text, "$19.99") || !strings.Contains(text, "$20.00") {
		t.Fatalf("text 应包含当前价格与目标价格: %q", text)
	}
}

func TestTelegramNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", srv.URL, time.Second, testLogger())
	err := notifier.Notify(context.Background(), "1", testNote())
	assertKind(t, err, FailureTransport)
}

func TestTelegramNotifierUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("bad", srv.URL, time.Second, testLogger())
	assertKind(t, notifier.Notify(context.Background(), "1", testNote()), FailureAuth)
}

func TestEmailNotifierSends(t *testing.T) {
	notifier := NewEmailNotifier(EmailOptions{Host: "smtp.test", Username: "shop@example.com", Password: "secret"}, testLogger())

	var sent *mail.Msg
	notifier.send = func(ctx context.Context, msg *mail.Msg) error {
		sent = msg
		return nil
	}

	if err := notifier.Notify(context.Background(), "buyer@example.com", testNote()); err != nil {
		t.Fatalf("email Notify 应成功: %v", err)
	}
	if sent == nil {
		t.Fatal("message was not handed to the sender")
	}
	rcpts, err := sent.GetRecipients()
	if err != nil || len(rcpts) != 1 || rcpts[0] != "buyer@example.com" {
		t.Fatalf("unexpected recipients %v (%v)", rcpts, err)
	}
	subject := sent.GetGenHeader(mail.HeaderSubject)
	if len(subject) != 1 || subject[0] != "Price Alert! Your tracked item is now $19.99" {
		t.Fatalf("unexpected subject %v", subject)
	}
}

func TestEmailNotifierAuthFailure(t *testing.T) {
	notifier := NewEmailNotifier(EmailOptions{Host: "smtp.test", Username: "shop@example.com", Password: "wrong"}, testLogger())
	notifier.send = func(ctx context.Context, msg *mail.Msg) error {
		return &textproto.Error{Code: 535, Msg: "5.7.8 Username and Password not accepted"}
	}
	assertKind(t, notifier.Notify(context.Background(), "buyer@example.com", testNote()), FailureAuth)

	notifier.send = func(ctx context.Context, msg *mail.Msg) error {
		return errors.New("dial tcp: connection refused")
	}
	assertKind(t, notifier.Notify(context.Background(), "buyer@example.com", testNote()), FailureTransport)
}

func TestEmailNotifierMissingCredentials(t *testing.T) {
	notifier := NewEmailNotifier(EmailOptions{Host: "smtp.test"}, testLogger())
	called := false
	notifier.send = func(ctx context.Context, msg *mail.Msg) error {
		called = true
		return nil
	}

	err := notifier.Notify(context.Background(), "buyer@example.com", testNote())
	assertKind(t, err, FailureAuth)
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if called {
		t.Fatal("sender must not be called without credentials")
	}
}

func TestRenderEmailHTMLEscapesURL(t *testing.T) {
	html, err := renderEmailHTML(testNote())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{"$19.99", "$20.00", `href="https://www.amazon.com/dp/B000?tag=a&amp;b=1"`} {
		if !strings.Contains(html, want) {
			t.Fatalf("body missing %q:\n%s", want, html)
		}
	}
}

func TestDisabledNeverSucceeds(t *testing.T) {
	err := Disabled{Channel: "email"}.Notify(context.Background(), "x@example.com", testNote())
	assertKind(t, err, FailureAuth)
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func assertKind(t *testing.T, err error, want FailureKind) {
	t.Helper()
	var notifyErr *NotifyError
	if !errors.As(err, &notifyErr) {
		t.Fatalf("expected *NotifyError, got %v", err)
	}
	if notifyErr.Kind != want {
		t.Fatalf("expected %s failure, got %s (%v)", want, notifyErr.Kind, err)
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
