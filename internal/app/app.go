// Package app wires configuration, logging, storage, the Telegram adapter,
// the broadcast engine, the operator panel and maintenance into one process.
package app

import (
	"context"
	"fmt"
	"time"

	"supportbot/internal/broadcast"
	"supportbot/internal/config"
	"supportbot/internal/maintenance"
	"supportbot/internal/panel"
	rtsup "supportbot/internal/runtime/supervisor"
	"supportbot/internal/storage"
	kit "supportbot/internal/transport"
	"supportbot/internal/transport/telegram"
	"supportbot/pkg/logx"
)

type App struct {
	cfgMgr   *config.Manager
	log      logx.Logger
	closeLog func() error

	store   storage.Store
	adapter *telegram.Adapter
	rec     *broadcast.Recorder
	engine  *broadcast.Engine
	panel   *panel.Panel
	maint   *maintenance.Service

	sup     *rtsup.Supervisor
	updates chan kit.Update
}

func New(cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, closeLog, err := logx.Setup(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
	})
	if err != nil {
		return nil, fmt.Errorf("setup logging: %w", err)
	}

	cfgMgr := config.NewManager(cfgPath, log.With(logx.String("comp", "config")))
	if _, err := cfgMgr.Load(); err != nil {
		_ = closeLog()
		return nil, err
	}

	store, err := storage.Open(storage.Config{
		Path:        cfg.StoragePath(),
		BusyTimeout: cfg.BusyTimeout(),
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		_ = closeLog()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: cfg.PollTimeout(),
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		_ = store.Close()
		_ = closeLog()
		return nil, fmt.Errorf("telegram adapter: %w", err)
	}

	sup := rtsup.New(context.Background(), rtsup.WithLogger(log.With(logx.String("comp", "supervisor"))))

	rec := broadcast.NewRecorder(store, log.With(logx.String("comp", "history")))
	engine := broadcast.NewEngine(engineCfg(cfg), adapter, store, rec, store, sup,
		log.With(logx.String("comp", "broadcast")))

	retention := time.Duration(cfg.RetentionDays()) * 24 * time.Hour
	pnl := panel.New(panel.Config{
		AdminChatID: cfg.Telegram.AdminChatID,
		Retention:   retention,
	}, adapter, engine, rec, store, log.With(logx.String("comp", "panel")))

	maint := maintenance.New(maintenance.Config{
		Schedule:  cfg.PurgeSchedule(),
		Retention: retention,
	}, rec, log.With(logx.String("comp", "maintenance")))

	return &App{
		cfgMgr:   cfgMgr,
		log:      log,
		closeLog: closeLog,
		store:    store,
		adapter:  adapter,
		rec:      rec,
		engine:   engine,
		panel:    pnl,
		maint:    maint,
		sup:      sup,
		updates:  make(chan kit.Update, 256),
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	if err := a.adapter.Start(ctx, a.updates); err != nil {
		return err
	}

	a.sup.Go("panel.run", func(c context.Context) {
		a.panel.Run(c, a.updates)
	})

	// Config hot reload: the broadcast rate can be tuned without a restart.
	reloads := a.cfgMgr.Subscribe(1)
	a.sup.Go("config.watch", func(c context.Context) {
		if err := a.cfgMgr.Watch(c); err != nil && c.Err() == nil {
			a.log.Warn("config watcher exited", logx.Err(err))
		}
	})
	a.sup.Go("config.apply", func(c context.Context) {
		for {
			select {
			case <-c.Done():
				return
			case cfg := <-reloads:
				a.engine.Apply(engineCfg(cfg))
			}
		}
	})

	if err := a.maint.Start(); err != nil {
		return err
	}

	a.log.Info("app started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	a.maint.Stop(ctx)
	_ = a.adapter.Stop(ctx)
	a.sup.Cancel()
	if err := a.sup.Wait(ctx); err != nil {
		a.log.Warn("shutdown wait", logx.Err(err))
	}
	err := a.store.Close()
	a.log.Info("app stopped")
	_ = a.closeLog()
	return err
}

func engineCfg(cfg *config.Config) broadcast.Config {
	rate := cfg.Broadcast.RatePerMinute
	if rate == 0 {
		rate = config.DefaultRatePerMinute
	}
	return broadcast.Config{
		RatePerMinute: rate,
		ProgressEvery: cfg.ProgressEvery(),
		PausePoll:     cfg.PausePoll(),
	}
}
