package app

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"pricewatch/internal/fetcher"
	"pricewatch/internal/service"
	"pricewatch/internal/storage"
	"pricewatch/internal/submission"
)

// SimulateOptions describe one synthetic tracked item and its observed price.
type SimulateOptions struct {
	URL       string
	Target    string
	Price     decimal.Decimal
	Recipient string
}

// SimulateAlert 通过给定价格模拟一次完整检查流程，不读写数据库。
func (a *App) SimulateAlert(ctx context.Context, opts SimulateOptions) (service.SweepReport, error) {
	item, err := submission.Validate(opts.URL, opts.Target, opts.Recipient, false)
	if err != nil {
		return service.SweepReport{}, err
	}
	if !opts.Price.IsPositive() {
		return service.SweepReport{}, fmt.Errorf("--price must be greater than zero")
	}

	store := &singleItemStore{item: storage.TrackedItem{
		ID:          1,
		SourceURL:   item.SourceURL,
		TargetPrice: item.TargetPrice,
		Recipient:   item.Recipient,
	}}
	static := fetcher.Func(func(ctx context.Context, source string) fetcher.Result {
		return fetcher.Found(opts.Price)
	})

	svc := a.newService(store, nil, static, a.newNotifier(), nil)
	return svc.RunSweep(ctx)
}

type singleItemStore struct {
	item    storage.TrackedItem
	removed bool
}

func (s *singleItemStore) ListAll(ctx context.Context) ([]storage.TrackedItem, error) {
	if s.removed {
		return nil, nil
	}
	return []storage.TrackedItem{s.item}, nil
}

func (s *singleItemStore) DeleteByID(ctx context.Context, id int64) error {
	if s.removed || id != s.item.ID {
		return storage.ErrItemNotFound
	}
	s.removed = true
	return nil
}

func (s *singleItemStore) Insert(ctx context.Context, item storage.NewTrackedItem) (storage.TrackedItem, error) {
	return storage.TrackedItem{}, fmt.Errorf("simulation store is read-only")
}

var _ storage.TrackedItemStore = (*singleItemStore)(nil)
