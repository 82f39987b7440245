// Package core wires configuration, storage, transport and the watch
// engine into one supervised application.
package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"streamwatch/internal/config"
	"streamwatch/internal/notify"
	"streamwatch/internal/platform/twitch"
	"streamwatch/internal/platform/youtube"
	"streamwatch/internal/scheduler"
	"streamwatch/internal/storage"
	"streamwatch/internal/telemetry"
	"streamwatch/internal/transport"
	"streamwatch/internal/transport/telegram"
	"streamwatch/internal/watch"
	"streamwatch/pkg/logx"
)

type App struct {
	cfgm   *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	store    storage.Store
	adapter  transport.Adapter
	notifier *notify.Service
	sched    *scheduler.Service
	engine   *watch.Engine

	sup     *Supervisor
	updates chan transport.Update
}

func NewApp(configPath string) (*App, error) {
	cfgm := config.NewManager(configPath)
	cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return validateConfig(cfg)
	})

	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(loggingConfig(cfg))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	telemetry.Init()

	busy, _ := config.ParseDuration("storage.busy_timeout", cfg.Storage.BusyTimeout, 5*time.Second)
	store, err := storage.Open(storage.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		logSvc.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	pollTimeout, _ := config.ParseDuration("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		store.Close()
		logSvc.Close()
		return nil, fmt.Errorf("telegram adapter: %w", err)
	}

	notifier := notify.New(notify.Config{}, adapter, log.With(logx.String("comp", "notify")))

	platforms := []watch.Platform{
		twitch.New(log.With(logx.String("comp", "twitch"))),
		youtube.New(log.With(logx.String("comp", "youtube"))),
	}
	engine := watch.New(watcherConfig(cfg), store, notifier, platforms,
		log.With(logx.String("comp", "watch")))

	sched := scheduler.New(scheduler.Config{Workers: 2},
		log.With(logx.String("comp", "scheduler")))

	return &App{
		cfgm:     cfgm,
		logSvc:   logSvc,
		log:      log,
		store:    store,
		adapter:  adapter,
		notifier: notifier,
		sched:    sched,
		engine:   engine,
		updates:  make(chan transport.Update, 64),
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	cfg := a.cfgm.Get()
	a.sup = NewSupervisor(ctx, WithLogger(a.log.With(logx.String("comp", "supervisor"))))

	a.sup.Go("telegram", func(ctx context.Context) error {
		return a.adapter.Start(ctx, a.updates)
	})
	a.sup.Go0("commands", a.commandLoop)

	a.sched.Start(a.sup.Context())
	if cfg.Watcher.Enabled {
		tick, _ := config.ParseDuration("watcher.tick_interval", cfg.Watcher.TickInterval, 30*time.Second)
		if _, err := a.sched.AddInterval("watch.tick", tick, tick, a.engine.Tick); err != nil {
			return fmt.Errorf("register watch tick: %w", err)
		}
	}

	if cfg.Metrics.Enabled {
		addr := cfg.Metrics.Addr
		a.sup.Go("metrics", func(ctx context.Context) error {
			return telemetry.Serve(ctx, addr, a.log.With(logx.String("comp", "metrics")))
		})
	}

	a.sup.Go("config.watch", a.cfgm.Watch)
	a.sup.Go0("config.reload", a.reloadLoop)

	a.log.Info("started",
		logx.Bool("watcher", cfg.Watcher.Enabled),
		logx.Bool("metrics", cfg.Metrics.Enabled))
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	var errs []error

	a.sched.Stop(ctx)
	if err := a.adapter.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop telegram: %w", err))
	}
	if a.sup != nil {
		if err := a.sup.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, err)
		}
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close storage: %w", err))
	}
	a.log.Info("stopped")
	a.logSvc.Close()
	return errors.Join(errs...)
}

// reloadLoop applies validated config changes to the hot-swappable parts.
// Telegram token and storage path changes require a restart.
func (a *App) reloadLoop(ctx context.Context) {
	sub := a.cfgm.Subscribe(1)
	defer a.cfgm.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			a.logSvc.Apply(loggingConfig(cfg))
			a.engine.Apply(watcherConfig(cfg))
			a.log.Info("config reloaded")
		}
	}
}

func loggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func watcherConfig(cfg *config.Config) watch.Config {
	fetchTimeout, _ := config.ParseDuration("watcher.fetch_timeout", cfg.Watcher.FetchTimeout, 15*time.Second)
	return watch.Config{
		FetchTimeout:    fetchTimeout,
		FetchRatePerSec: cfg.Watcher.FetchRatePerSec,
		FetchBurst:      cfg.Watcher.FetchBurst,
	}
}

func validateConfig(cfg *config.Config) error {
	if cfg.Telegram.Token == "" {
		return errors.New("telegram.token is required")
	}
	if _, err := config.ParseDuration("telegram.poll_timeout", cfg.Telegram.PollTimeout, 0); err != nil {
		return err
	}
	if _, err := config.ParseDuration("watcher.tick_interval", cfg.Watcher.TickInterval, 0); err != nil {
		return err
	}
	if _, err := config.ParseDuration("watcher.fetch_timeout", cfg.Watcher.FetchTimeout, 0); err != nil {
		return err
	}
	if _, err := config.ParseDuration("storage.busy_timeout", cfg.Storage.BusyTimeout, 0); err != nil {
		return err
	}
	return nil
}
