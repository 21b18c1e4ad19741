package submission

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewatch/internal/metrics"
	"pricewatch/internal/storage"
)

type recordingStore struct {
	inserted []storage.NewTrackedItem
	err      error
}

func (r *recordingStore) ListAll(ctx context.Context) ([]storage.TrackedItem, error) { return nil, nil }

func (r *recordingStore) DeleteByID(ctx context.Context, id int64) error { return nil }

func (r *recordingStore) Insert(ctx context.Context, item storage.NewTrackedItem) (storage.TrackedItem, error) {
	if r.err != nil {
		return storage.TrackedItem{}, r.err
	}
	r.inserted = append(r.inserted, item)
	return storage.TrackedItem{
		ID:          int64(len(r.inserted)),
		SourceURL:   item.SourceURL,
		TargetPrice: item.TargetPrice,
		Recipient:   item.Recipient,
	}, nil
}

func TestSubmitStoresValidRequest(t *testing.T) {
	store := &recordingStore{}
	rec := metrics.NewRecorder()
	s := New(Options{RequireEmail: true}, store, rec, zerolog.Nop())

	item, err := s.Submit(context.Background(), " https://www.amazon.com/dp/B0TEST ", "49.99", "Buyer <buyer@example.com>")
	require.NoError(t, err)

	assert.Equal(t, int64(1), item.ID)
	assert.Equal(t, "https://www.amazon.com/dp/B0TEST", item.SourceURL)
	assert.Equal(t, "49.99", item.TargetPrice.String())
	assert.Equal(t, "buyer@example.com", item.Recipient)
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.Submissions.WithLabelValues(ResultAccepted)))
}

func TestSubmitRejectsInvalidFields(t *testing.T) {
	cases := []struct {
		name      string
		source    string
		target    string
		recipient string
		field     string
	}{
		{"missing url", "", "10", "a@example.com", "product_url"},
		{"relative url", "/dp/B0TEST", "10", "a@example.com", "product_url"},
		{"ftp url", "ftp://example.com/x", "10", "a@example.com", "product_url"},
		{"missing target", "https://example.com/x", "", "a@example.com", "target_price"},
		{"non numeric target", "https://example.com/x", "cheap", "a@example.com", "target_price"},
		{"zero target", "https://example.com/x", "0", "a@example.com", "target_price"},
		{"negative target", "https://example.com/x", "-5", "a@example.com", "target_price"},
		{"missing recipient", "https://example.com/x", "10", " ", "user_email"},
		{"bad email", "https://example.com/x", "10", "not-an-email", "user_email"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &recordingStore{}
			s := New(Options{RequireEmail: true}, store, nil, zerolog.Nop())

			_, err := s.Submit(context.Background(), tc.source, tc.target, tc.recipient)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
			assert.Equal(t, tc.field, verr.Field)
			assert.Empty(t, store.inserted)
		})
	}
}

func TestSubmitAcceptsChatIDWhenEmailNotRequired(t *testing.T) {
	store := &recordingStore{}
	s := New(Options{}, store, nil, zerolog.Nop())

	item, err := s.Submit(context.Background(), "https://example.com/x", "10", "123456789")
	require.NoError(t, err)
	assert.Equal(t, "123456789", item.Recipient)
}

func TestSubmitWrapsStoreFailure(t *testing.T) {
	cause := &storage.ConnectionError{Op: "insert product", Err: errors.New("database is locked")}
	rec := metrics.NewRecorder()
	s := New(Options{RequireEmail: true}, &recordingStore{err: cause}, rec, zerolog.Nop())

	_, err := s.Submit(context.Background(), "https://example.com/x", "10", "a@example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)

	var verr *ValidationError
	assert.False(t, errors.As(err, &verr))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.Submissions.WithLabelValues(ResultFailed)))
}

func TestSubmitWithoutStore(t *testing.T) {
	s := New(Options{}, nil, nil, zerolog.Nop())
	_, err := s.Submit(context.Background(), "https://example.com/x", "10", "a@example.com")
	assert.ErrorIs(t, err, storage.ErrNotConfigured)
}
