package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"pricewatch/internal/alerting"
	"pricewatch/internal/fetcher"
	"pricewatch/internal/metrics"
	"pricewatch/internal/policy"
	"pricewatch/internal/scheduler"
	"pricewatch/internal/storage"
)

// Options tune a sweep.
type Options struct {
	// PacingDelay is the minimum gap between consecutive outbound fetches.
	PacingDelay time.Duration
	// Workers bounds per-item parallelism; 1 processes items sequentially.
	Workers int
	// AdvisoryLockKey, when non-zero and the store supports it, keeps
	// sweeps from overlapping across processes.
	AdvisoryLockKey int64
}

// Service orchestrates fetching, evaluation, alerting and removal.
type Service struct {
	scheduler *scheduler.Scheduler
	store     storage.TrackedItemStore
	fetcher   fetcher.PriceFetcher
	notifier  alerting.Notifier
	recorder  *metrics.Recorder
	logger    zerolog.Logger

	limiter *rate.Limiter
	workers int
	locker  storage.AdvisoryLocker
	lockKey int64
	now     func() time.Time
}

// New constructs the price check service. sched may be nil when only
// RunSweep is used.
func New(opts Options, sched *scheduler.Scheduler, store storage.TrackedItemStore, f fetcher.PriceFetcher, notifier alerting.Notifier, recorder *metrics.Recorder, logger zerolog.Logger) *Service {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	if notifier == nil {
		notifier = alerting.Disabled{}
	}

	limit := rate.Inf
	if opts.PacingDelay > 0 {
		limit = rate.Every(opts.PacingDelay)
	}

	var locker storage.AdvisoryLocker
	if l, ok := store.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		scheduler: sched,
		store:     store,
		fetcher:   f,
		notifier:  notifier,
		recorder:  recorder,
		logger:    logger.With().Str("component", "service").Logger(),
		limiter:   rate.NewLimiter(limit, 1),
		workers:   workers,
		locker:    locker,
		lockKey:   opts.AdvisoryLockKey,
		now:       time.Now,
	}
}

// Run starts the recurring sweep loop and blocks until ctx is cancelled and
// the in-flight sweep has finished.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessTick)
}

// ProcessTick 执行单次调度：加锁后完成一轮检查。
func (s *Service) ProcessTick(ctx context.Context, tick time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		s.recorder.SweepAborted()
		return err
	}
	if !proceed {
		s.recorder.SweepSkipped()
		s.logger.Debug().Time("tick", tick).Msg("skip sweep because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	_, err = s.RunSweep(ctx)
	return err
}

// RunSweep performs one full pass over the store. Per-item failures are
// counted in the report; only a failure to list the store is returned.
func (s *Service) RunSweep(ctx context.Context) (SweepReport, error) {
	started := s.now()
	report := SweepReport{StartedAt: started}

	if s.store == nil || s.fetcher == nil {
		return report, fmt.Errorf("sweep requires a store and a fetcher")
	}

	items, err := s.store.ListAll(ctx)
	if err != nil {
		s.recorder.SweepAborted()
		s.logger.Error().Err(err).Msg("sweep aborted: could not list tracked items")
		return report, fmt.Errorf("list tracked items: %w", err)
	}

	s.logger.Info().Int("items", len(items)).Msg("price check sweep started")
	if len(items) == 0 {
		s.logger.Info().Msg("no products in the store to check")
	}

	outcomes := make([]itemOutcome, len(items))
	visited := len(items)

	slots := make(chan struct{}, s.workers)
	var g errgroup.Group
	for i := range items {
		// take the worker slot before pacing so the limiter spaces actual
		// fetch starts, in listing order
		slots <- struct{}{}
		if err := s.limiter.Wait(ctx); err != nil {
			<-slots
			s.logger.Warn().Err(err).Int("remaining", len(items)-i).Msg("sweep interrupted while pacing")
			visited = i
			break
		}
		g.Go(func() error {
			defer func() { <-slots }()
			outcomes[i] = s.processItem(ctx, items[i])
			return nil
		})
	}
	_ = g.Wait()

	for _, outcome := range outcomes[:visited] {
		report.add(outcome)
	}
	report.Duration = s.now().Sub(started)

	s.recorder.ObserveSweep(len(items), report.countsByOutcome(), report.DeleteFailed, report.Duration, started.Add(report.Duration))
	report.log(s.logger.Info()).Msg("price check sweep finished")
	return report, nil
}

type itemOutcome struct {
	decision     policy.Action
	fetchOutcome fetcher.Outcome
	notifyFailed bool
	deleteFailed bool
}

func (s *Service) processItem(ctx context.Context, item storage.TrackedItem) itemOutcome {
	logger := s.logger.With().Int64("item_id", item.ID).Str("target", item.TargetPrice.String()).Logger()

	res := s.fetcher.Fetch(ctx, item.SourceURL)
	decision := policy.Evaluate(item, res)
	outcome := itemOutcome{decision: decision.Action, fetchOutcome: res.Outcome}

	switch decision.Action {
	case policy.ActionDefer:
		logger.Warn().Err(res.Err).Str("fetch", res.Outcome.String()).Msg("could not retrieve price")
		return outcome

	case policy.ActionNoAction:
		logger.Info().Str("price", decision.Price.String()).Msg("price above target, no alert needed")
		return outcome
	}

	logger.Info().Str("price", decision.Price.String()).Msg("price alert")

	note := alerting.Notification{
		ItemID:       item.ID,
		SourceURL:    item.SourceURL,
		TargetPrice:  item.TargetPrice,
		CurrentPrice: decision.Price,
		DetectedAt:   s.now().UTC(),
	}
	if err := s.notifier.Notify(ctx, item.Recipient, note); err != nil {
		outcome.notifyFailed = true
		event := logger.Error().Err(err)
		var notifyErr *alerting.NotifyError
		if errors.As(err, &notifyErr) {
			event = event.Str("failure", notifyErr.Kind.String()).Str("channel", notifyErr.Channel)
		}
		event.Msg("failed to dispatch alert; item kept for next sweep")
		return outcome
	}

	if err := s.store.DeleteByID(ctx, item.ID); err != nil {
		outcome.deleteFailed = true
		logger.Error().Err(err).Msg("alert sent but item could not be removed from tracking")
		return outcome
	}

	logger.Info().Msg("item removed from tracking after alert")
	return outcome
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
