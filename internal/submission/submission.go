package submission

import (
	"context"
	"fmt"
	"net/mail"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pricewatch/internal/metrics"
	"pricewatch/internal/storage"
)

// Submission results reported to metrics.
const (
	ResultAccepted = "accepted"
	ResultInvalid  = "invalid"
	ResultFailed   = "failed"
)

// ValidationError describes a rejected field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Submitter validates tracking requests and inserts them into the store.
type Submitter struct {
	store        storage.TrackedItemStore
	recorder     *metrics.Recorder
	requireEmail bool
	logger       zerolog.Logger
}

// Options tune recipient validation.
type Options struct {
	// RequireEmail rejects recipients that are not RFC 5322 addresses.
	// Disabled for channels addressed by other identifiers (telegram chat id).
	RequireEmail bool
}

// New builds a Submitter. recorder may be nil.
func New(opts Options, store storage.TrackedItemStore, recorder *metrics.Recorder, logger zerolog.Logger) *Submitter {
	return &Submitter{
		store:        store,
		recorder:     recorder,
		requireEmail: opts.RequireEmail,
		logger:       logger.With().Str("component", "submission").Logger(),
	}
}

// Submit validates the request and starts tracking it. Validation failures
// are returned as *ValidationError; store failures are wrapped.
func (s *Submitter) Submit(ctx context.Context, source, targetPrice, recipient string) (storage.TrackedItem, error) {
	item, err := Validate(source, targetPrice, recipient, s.requireEmail)
	if err != nil {
		s.recorder.Submitted(ResultInvalid)
		return storage.TrackedItem{}, err
	}
	if s.store == nil {
		s.recorder.Submitted(ResultFailed)
		return storage.TrackedItem{}, storage.ErrNotConfigured
	}

	stored, err := s.store.Insert(ctx, item)
	if err != nil {
		s.recorder.Submitted(ResultFailed)
		s.logger.Error().Err(err).Str("url", item.SourceURL).Msg("failed to add product")
		return storage.TrackedItem{}, fmt.Errorf("insert tracked item: %w", err)
	}

	s.recorder.Submitted(ResultAccepted)
	s.logger.Info().
		Int64("item_id", stored.ID).
		Str("url", stored.SourceURL).
		Str("target", stored.TargetPrice.String()).
		Msg("product is now being tracked")
	return stored, nil
}

// Validate normalises the raw request fields into an insertable item.
func Validate(source, targetPrice, recipient string, requireEmail bool) (storage.NewTrackedItem, error) {
	source = strings.TrimSpace(source)
	targetPrice = strings.TrimSpace(targetPrice)
	recipient = strings.TrimSpace(recipient)

	if source == "" {
		return storage.NewTrackedItem{}, &ValidationError{Field: "product_url", Reason: "is required"}
	}
	u, err := url.Parse(source)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return storage.NewTrackedItem{}, &ValidationError{Field: "product_url", Reason: "must be an absolute http(s) URL"}
	}

	if targetPrice == "" {
		return storage.NewTrackedItem{}, &ValidationError{Field: "target_price", Reason: "is required"}
	}
	target, err := decimal.NewFromString(targetPrice)
	if err != nil {
		return storage.NewTrackedItem{}, &ValidationError{Field: "target_price", Reason: "must be a number"}
	}
	if !target.IsPositive() {
		return storage.NewTrackedItem{}, &ValidationError{Field: "target_price", Reason: "must be greater than zero"}
	}

	if recipient == "" {
		return storage.NewTrackedItem{}, &ValidationError{Field: "user_email", Reason: "is required"}
	}
	if requireEmail {
		addr, err := mail.ParseAddress(recipient)
		if err != nil {
			return storage.NewTrackedItem{}, &ValidationError{Field: "user_email", Reason: "must be a valid email address"}
		}
		recipient = addr.Address
	}

	return storage.NewTrackedItem{SourceURL: source, TargetPrice: target, Recipient: recipient}, nil
}
