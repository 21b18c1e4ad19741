package alerting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotConfigured is wrapped by the Disabled notifier.
var ErrNotConfigured = errors.New("notifier credentials not configured")

// Notification 封装降价提醒上下文。
type Notification struct {
	ItemID       int64
	SourceURL    string
	TargetPrice  decimal.Decimal
	CurrentPrice decimal.Decimal
	DetectedAt   time.Time
}

// Notifier 定义告警输送接口。
type Notifier interface {
	Notify(ctx context.Context, recipient string, note Notification) error
}

// FailureKind classifies a delivery failure.
type FailureKind int

const (
	FailureTransport FailureKind = iota + 1
	FailureAuth
)

func (k FailureKind) String() string {
	switch k {
	case FailureTransport:
		return "transport"
	case FailureAuth:
		return "auth"
	default:
		return "unknown"
	}
}

// NotifyError is returned by every Notifier on failed delivery.
type NotifyError struct {
	Kind    FailureKind
	Channel string
	Err     error
}

func (e *NotifyError) Error() string {
	return fmt.Sprintf("%s notify %s failure: %v", e.Channel, e.Kind, e.Err)
}

func (e *NotifyError) Unwrap() error { return e.Err }

func transportErr(channel string, err error) error {
	return &NotifyError{Kind: FailureTransport, Channel: channel, Err: err}
}

func authErr(channel string, err error) error {
	return &NotifyError{Kind: FailureAuth, Channel: channel, Err: err}
}

// Disabled stands in when no credentials were supplied. It never reports
// success, so alerts stay queued until a real channel is configured.
type Disabled struct {
	Channel string
}

// Notify always fails with ErrNotConfigured.
func (d Disabled) Notify(ctx context.Context, recipient string, note Notification) error {
	channel := d.Channel
	if channel == "" {
		channel = "disabled"
	}
	return authErr(channel, ErrNotConfigured)
}

func formatPrice(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

var _ Notifier = Disabled{}
