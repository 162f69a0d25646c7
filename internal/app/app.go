// Package app wires configuration, logging, storage, transport, and the
// monitor into one process.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"stockwatch/internal/catalog"
	"stockwatch/internal/config"
	"stockwatch/internal/health"
	"stockwatch/internal/monitor"
	"stockwatch/internal/notify"
	rtsup "stockwatch/internal/runtime/supervisor"
	"stockwatch/internal/state"
	"stockwatch/internal/transport/telegram"
	logx "stockwatch/pkg/logx"
)

type App struct {
	log      logx.Logger
	logClose func() error

	mgr      *config.Manager
	store    state.Store
	notifier notify.Notifier
	svc      *monitor.Service
	digester *monitor.Digester
	health   *health.Server

	cron    *cron.Cron
	cronMu  sync.Mutex
	entryID cron.EntryID
	sched   string

	sup *rtsup.Supervisor
}

func New(cfgPath string) (*App, error) {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Parse()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	mgr.Commit(cfg)

	log, logClose, err := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.ConsoleOrDefault(),
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	mgr.SetLogger(log.With(logx.String("comp", "config")))

	a := &App{log: log, logClose: logClose, mgr: mgr}

	if err := a.build(cfg); err != nil {
		_ = logClose()
		return nil, err
	}
	return a, nil
}

func (a *App) build(cfg *config.Config) error {
	busy, _ := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	store, err := state.Open(state.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, a.log.With(logx.String("comp", "state")))
	if err != nil {
		return fmt.Errorf("state: %w", err)
	}
	a.store = store

	a.notifier = a.buildNotifier(cfg)

	fetchTimeout, _ := config.ParseDurationOrDefault("catalog.fetch_timeout", cfg.Catalog.FetchTimeout, 0)
	source := catalog.NewHTTPSource(catalog.HTTPSourceConfig{
		URL:     cfg.Catalog.URL,
		Timeout: fetchTimeout,
	})
	norm := catalog.Normalizer{
		BaseLinkURL:     cfg.Catalog.BaseLinkURL,
		OptimisticStock: cfg.Catalog.OptimisticStockOrDefault(),
	}

	disp := monitor.NewDispatcher(a.notifier, a.log.With(logx.String("comp", "dispatch")))

	mcfg, err := monitorConfig(cfg)
	if err != nil {
		return err
	}
	a.svc = monitor.New(mcfg, source, norm, store, disp, a.log.With(logx.String("comp", "monitor")))
	a.digester = monitor.NewDigester(a.svc, a.notifier, a.log.With(logx.String("comp", "digest")))

	if cfg.Health.Enabled {
		a.health = health.NewServer(cfg.Health.Addr, a.svc.Status, a.log.With(logx.String("comp", "health")))
	}

	a.cron = cron.New()
	a.sched = strings.TrimSpace(cfg.Digest.Schedule)
	return nil
}

// buildNotifier falls back to a no-op sink when credentials are missing so
// the monitor can still run (and log diffs) in a dry setup.
func (a *App) buildNotifier(cfg *config.Config) notify.Notifier {
	if strings.TrimSpace(cfg.Telegram.Token) == "" || strings.TrimSpace(cfg.Telegram.ChatID) == "" {
		a.log.Warn("telegram credentials missing, alerts disabled")
		return notify.Nop{}
	}
	sendTimeout, _ := config.ParseDurationOrDefault("telegram.send_timeout", cfg.Telegram.SendTimeout, 0)
	n, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		ChatID:      cfg.Telegram.ChatID,
		SendTimeout: sendTimeout,
		RatePerSec:  cfg.Telegram.RatePerSec,
	}, a.log.With(logx.String("comp", "telegram")))
	if err != nil {
		a.log.Error("telegram setup failed, alerts disabled", logx.Err(err))
		return notify.Nop{}
	}
	return n
}

func monitorConfig(cfg *config.Config) (monitor.Config, error) {
	interval, err := config.ParseDurationOrDefault("monitor.interval", cfg.Monitor.Interval, 0)
	if err != nil {
		return monitor.Config{}, err
	}
	backoff, err := config.ParseDurationOrDefault("monitor.error_backoff", cfg.Monitor.ErrorBackoff, 0)
	if err != nil {
		return monitor.Config{}, err
	}
	return monitor.Config{
		Interval:     interval,
		ErrorBackoff: backoff,
		Workers:      cfg.Monitor.Workers,
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log.With(logx.String("comp", "supervisor"))))

	// The poll loop only exits on cancellation, but keep it under a restart
	// wrapper so an unexpected panic self-heals.
	a.sup.GoRestart("monitor.poll", a.svc.Run)

	a.sup.GoRestart("config.watch", func(ctx context.Context) error {
		return a.mgr.Watch(ctx, a.applyConfig)
	})

	if a.health != nil {
		a.sup.Go("health.serve", func(ctx context.Context) error {
			return a.health.Start()
		})
	}

	a.rescheduleDigest(a.sched)
	a.cron.Start()

	a.log.Info("stockwatch started")
	return nil
}

// applyConfig re-applies the runtime-tunable subset after a config file
// change. Credentials, storage, and the health address need a restart.
func (a *App) applyConfig(cfg *config.Config) {
	mcfg, err := monitorConfig(cfg)
	if err != nil {
		a.log.Warn("config change ignored", logx.Err(err))
		return
	}
	a.svc.Apply(mcfg)
	a.rescheduleDigest(strings.TrimSpace(cfg.Digest.Schedule))
	a.log.Info("runtime config applied",
		logx.Duration("interval", mcfg.Interval),
		logx.Duration("error_backoff", mcfg.ErrorBackoff),
		logx.Int("workers", mcfg.Workers))
}

func (a *App) rescheduleDigest(spec string) {
	a.cronMu.Lock()
	defer a.cronMu.Unlock()

	if a.entryID != 0 {
		a.cron.Remove(a.entryID)
		a.entryID = 0
	}
	a.sched = spec
	if spec == "" {
		return
	}
	id, err := a.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		a.digester.Emit(ctx)
	})
	if err != nil {
		a.log.Warn("invalid digest schedule", logx.String("schedule", spec), logx.Err(err))
		return
	}
	a.entryID = id
	a.log.Info("digest scheduled", logx.String("schedule", spec))
}

func (a *App) Stop(ctx context.Context) error {
	cronCtx := a.cron.Stop()
	select {
	case <-cronCtx.Done():
	case <-ctx.Done():
	}

	if a.health != nil {
		if err := a.health.Stop(ctx); err != nil {
			a.log.Warn("health stop error", logx.Err(err))
		}
	}

	if a.sup != nil {
		if err := a.sup.Stop(ctx); err != nil && err != context.Canceled {
			a.log.Warn("supervisor stop error", logx.Err(err))
		}
	}

	// Final persist so a clean shutdown never loses the last cycle.
	if err := a.store.Flush(ctx); err != nil {
		a.log.Error("final state persist failed", logx.Err(err))
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("state close error", logx.Err(err))
	}

	a.log.Info("stockwatch stopped")
	if a.logClose != nil {
		return a.logClose()
	}
	return nil
}
