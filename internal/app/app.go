package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"pricewatch/internal/alerting"
	"pricewatch/internal/api"
	"pricewatch/internal/config"
	"pricewatch/internal/fetcher"
	"pricewatch/internal/metrics"
	"pricewatch/internal/scheduler"
	"pricewatch/internal/service"
	"pricewatch/internal/storage"
	"pricewatch/internal/submission"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newFetcher() fetcher.PriceFetcher {
	cfg := a.Config.Fetcher
	base := fetcher.HTMLOptions{
		Selector:       cfg.DefaultSelector,
		Timeout:        cfg.RequestTimeout,
		UserAgent:      cfg.UserAgent,
		AcceptLanguage: cfg.AcceptLanguage,
		Breaker: fetcher.BreakerOptions{
			ConsecutiveFailures: cfg.Breaker.ConsecutiveFailures,
			Cooldown:            cfg.Breaker.Cooldown,
		},
	}

	registry := fetcher.NewRegistry(fetcher.NewHTML(base, a.Logger))
	for _, src := range cfg.Sources {
		opts := base
		opts.Selector = src.Selector
		registry.Register(src.Host, fetcher.NewHTML(opts, a.Logger))
	}
	return registry
}

// newNotifier returns the configured channel, or a Disabled notifier when its
// credentials are missing so alerted items stay tracked.
func (a *App) newNotifier() alerting.Notifier {
	cfg := a.Config.Alerting
	switch cfg.Channel {
	case config.ChannelTelegram:
		if cfg.Telegram.BotToken == "" {
			a.Logger.Warn().Msg("alerting.telegram.bot_token not configured; notifications disabled")
			return alerting.Disabled{Channel: config.ChannelTelegram}
		}
		return alerting.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.APIBase, cfg.Timeout, a.Logger)
	default:
		if !cfg.Email.Configured() {
			a.Logger.Warn().Msg("email credentials not configured (SENDER_EMAIL/SENDER_PASSWORD); notifications disabled")
			return alerting.Disabled{Channel: config.ChannelEmail}
		}
		return alerting.NewEmailNotifier(alerting.EmailOptions{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
			Timeout:  cfg.Timeout,
		}, a.Logger)
	}
}

func (a *App) newSubmitter(store storage.TrackedItemStore, recorder *metrics.Recorder) *submission.Submitter {
	return submission.New(submission.Options{
		RequireEmail: a.Config.Alerting.Channel != config.ChannelTelegram,
	}, store, recorder, a.Logger)
}

func (a *App) openStore(ctx context.Context) (storage.Handle, error) {
	store, err := storage.Open(ctx, a.Config.Database)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", a.Config.Database.Driver, err)
	}
	if err := store.Ping(ctx); err != nil {
		store.Close()
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func (a *App) newService(store storage.TrackedItemStore, sched *scheduler.Scheduler, f fetcher.PriceFetcher, n alerting.Notifier, recorder *metrics.Recorder) *service.Service {
	return service.New(service.Options{
		PacingDelay:     a.Config.Checker.PacingDelay,
		Workers:         a.Config.Checker.Workers,
		AdvisoryLockKey: a.Config.Scheduler.AdvisoryLockKey,
	}, sched, store, f, n, recorder, a.Logger)
}

// Run executes the long-running price watch service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := a.openStore(ctx)
	if err != nil {
		a.Logger.Error().Err(err).Msg("failed to initialise store")
		return err
	}
	defer store.Close()

	recorder := metrics.NewRecorder()
	sched := scheduler.New(scheduler.Options{
		Interval:       a.Config.Scheduler.Interval,
		RunImmediately: a.Config.Scheduler.RunImmediately,
		StartupDelay:   a.Config.Scheduler.StartupDelay,
	}, a.Logger)
	svc := a.newService(store, sched, a.newFetcher(), a.newNotifier(), recorder)

	g, gctx := errgroup.WithContext(ctx)

	if a.Config.API.Enabled {
		server := api.NewServer(a.newSubmitter(store, recorder), recorder, a.Logger)
		g.Go(func() error {
			return server.ListenAndServe(gctx, a.Config.API.Listen)
		})
	}

	g.Go(func() error {
		a.Logger.Info().
			Dur("interval", a.Config.Scheduler.Interval).
			Str("driver", a.Config.Database.Driver).
			Msg("starting price watch service")
		err := svc.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("price watch service stopped")
	return nil
}

// Check runs a single sweep and returns its report.
func (a *App) Check(ctx context.Context) (service.SweepReport, error) {
	store, err := a.openStore(ctx)
	if err != nil {
		return service.SweepReport{}, err
	}
	defer store.Close()

	svc := a.newService(store, nil, a.newFetcher(), a.newNotifier(), nil)
	return svc.RunSweep(ctx)
}

// Track submits one item for tracking.
func (a *App) Track(ctx context.Context, source, target, recipient string) (storage.TrackedItem, error) {
	store, err := a.openStore(ctx)
	if err != nil {
		return storage.TrackedItem{}, err
	}
	defer store.Close()

	return a.newSubmitter(store, nil).Submit(ctx, source, target, recipient)
}
