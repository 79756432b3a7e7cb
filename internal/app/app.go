// Package app assembles the Telegram raffle bot: config, logging, storage,
// the number service, the action loop and scheduled backups.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"rafflebot/internal/backup"
	"rafflebot/internal/config"
	"rafflebot/internal/numbers"
	"rafflebot/internal/raffle"
	"rafflebot/internal/runtime/supervisor"
	"rafflebot/internal/storage"
	kit "rafflebot/internal/transport"
	telegram "rafflebot/internal/transport/telegram/adapter"
	"rafflebot/internal/transport/telegram/router"
	logx "rafflebot/pkg/logx"
)

type App struct {
	cfgm *config.Manager // nil when config is not file backed
	cfg  atomic.Pointer[config.Config]

	log  logx.Logger
	logs *logx.Service

	adapter kit.Adapter
	store   storage.Store
	svc     *raffle.Service
	router  *router.Router
	chats   *sessions
	backups *backup.Scheduler

	sup     *supervisor.Supervisor
	updates chan kit.Update
}

// Deps are the pieces NewApp builds from the config file. Tests supply their
// own.
type Deps struct {
	Config  *config.Config
	Manager *config.Manager
	Adapter kit.Adapter
	Store   storage.Store
	Log     logx.Logger
	Logs    *logx.Service
}

// NewApp loads cfgPath and builds the bot against Telegram and the
// configured storage driver.
func NewApp(cfgPath string) (*App, error) {
	boot := logx.NewConsole("info").With(logx.String("comp", "boot"))
	cfgm := config.NewManager(cfgPath, boot.With(logx.String("comp", "config")))
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logs, log := logx.New(cfg.LoggingRuntime())
	cfgm = config.NewManager(cfgPath, log.With(logx.String("comp", "config")))
	cfgm.Commit(cfg)

	pollTimeout, _ := cfg.PollTimeout()
	ad, err := telegram.New(telegram.Config{Token: cfg.Telegram.Token, PollTimeout: pollTimeout},
		log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}
	logs.SetSender(ad)

	sc, err := cfg.StorageRuntime()
	if err != nil {
		return nil, err
	}
	st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	log.Info("storage opened", logx.String("driver", sc.Driver), logx.String("key", sc.RecordKey()))

	return New(context.Background(), Deps{
		Config:  cfg,
		Manager: cfgm,
		Adapter: ad,
		Store:   st,
		Log:     log,
		Logs:    logs,
	})
}

// New builds the app from ready dependencies and loads the number set.
func New(ctx context.Context, d Deps) (*App, error) {
	if d.Config == nil || d.Adapter == nil || d.Store == nil {
		return nil, errors.New("app: config, adapter and store are required")
	}
	cfg := d.Config
	log := d.Log.With(logx.String("comp", "app"))

	sc, err := cfg.StorageRuntime()
	if err != nil {
		return nil, err
	}
	rec := storage.NewRecord(d.Store, sc.RecordKey(), d.Log.With(logx.String("comp", "record")))
	ns := numbers.Open(ctx, rec, d.Log.With(logx.String("comp", "numbers")))
	svc := raffle.New(ns, cfg.Parser(), d.Log)

	perSec, burst := cfg.RateLimit()
	rt := router.New(d.Log.With(logx.String("comp", "router")), d.Adapter, router.Config{
		Owners:     cfg.Telegram.OwnerUserIDs,
		RatePerSec: perSec,
		Burst:      burst,
	})

	policy, maxStack := cfg.StatusPolicy()
	a := &App{
		cfgm:    d.Manager,
		log:     log,
		logs:    d.Logs,
		adapter: d.Adapter,
		store:   d.Store,
		svc:     svc,
		router:  rt,
		chats:   newSessions(policy, maxStack),
		updates: make(chan kit.Update, 256),
	}
	a.cfg.Store(cfg)
	a.backups = backup.NewScheduler(ns, rt.Enqueue, d.Log.With(logx.String("comp", "backup")))
	if err := a.backups.Apply(cfg.BackupRuntime()); err != nil {
		return nil, err
	}
	a.registerCommands()
	log.Info("numbers loaded", logx.Int("count", ns.Size()))
	return a, nil
}

func (a *App) config() *config.Config { return a.cfg.Load() }

// Done is closed when the app context ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	a.sup.Go("actions", func(c context.Context) error {
		return a.router.Run(c, a.updates)
	})
	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		a.sup.Cancel()
		return err
	}
	a.sup.Go("backups", a.backups.Run)
	a.sup.Go0("menu", a.router.PublishMenu)

	if a.cfgm != nil {
		sub := a.cfgm.Subscribe(4)
		a.sup.Go0("config.reload", func(c context.Context) {
			defer a.cfgm.Unsubscribe(sub)
			for {
				select {
				case <-c.Done():
					return
				case cfg, ok := <-sub:
					if !ok {
						return
					}
					a.applyConfig(cfg)
				}
			}
		})
		a.sup.Go("config.watch", a.cfgm.Watch)
	}

	a.log.Info("app started", logx.Int("numbers", a.svc.Store().Size()))
	return nil
}

// applyConfig applies the hot-reloadable sections of cfg.
func (a *App) applyConfig(cfg *config.Config) {
	prev := a.cfg.Swap(cfg)
	changed := config.ChangedSections(prev, cfg)
	if len(changed) == 0 {
		return
	}
	if restart := config.RestartRequired(changed); len(restart) > 0 {
		a.log.Warn("config sections changed that need a restart", logx.Any("sections", restart))
	}

	if a.logs != nil {
		a.logs.Apply(cfg.LoggingRuntime())
	}
	a.router.SetOwners(cfg.Telegram.OwnerUserIDs)
	a.router.SetRateLimit(cfg.RateLimit())
	a.svc.SetMaxExpansion(cfg.Numbers.MaxExpansion)
	a.chats.configure(cfg.StatusPolicy())
	if err := a.backups.Apply(cfg.BackupRuntime()); err != nil {
		a.log.Warn("backup config rejected", logx.Err(err))
	}
	a.log.Info("config applied", logx.Any("changed", changed))
}

// Stop shuts down in reverse start order, bounded by ctx.
func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return a.closeStore()
	}
	a.log.Info("stopping")

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		sctx, cancel := context.WithTimeout(ctx, max)
		defer cancel()
		start := time.Now()
		if err := fn(sctx); err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	}

	step("adapter", 3*time.Second, a.adapter.Stop)
	step("supervisor", 3*time.Second, a.sup.Stop)
	step("storage", time.Second, func(context.Context) error { return a.closeStore() })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

func (a *App) closeStore() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}
