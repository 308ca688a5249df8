// Package app wires the taskmill components together: config, logging,
// storage, content generation, notification, and the scheduler loop.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"taskmill/internal/config"
	"taskmill/internal/content"
	"taskmill/internal/eventbus"
	"taskmill/internal/notifier"
	"taskmill/internal/schedule"
	"taskmill/internal/scheduler"
	"taskmill/internal/storage"
	"taskmill/internal/task"
	logx "taskmill/pkg/logx"
)

type App struct {
	cfgPath string
	cfgm    *config.Manager

	logs *logx.Service
	log  logx.Logger

	bus   eventbus.Bus
	store storage.Store
	notif *notifier.Service
	sched *scheduler.Service

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(cfg.LogConfig())
	log = log.With(logx.String("comp", "app"))

	storeCfg, err := cfg.StorageConfig()
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(storeCfg, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	gen, err := content.New(cfg.ContentConfig())
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	bus := eventbus.New()

	notifSvc, err := notifier.New(cfg.NotifierConfig(), log.With(logx.String("comp", "notifier")), bus)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	schedCfg, err := cfg.SchedulerConfig()
	if err != nil {
		_ = notifSvc.Close()
		_ = store.Close()
		return nil, err
	}
	schedSvc := scheduler.New(schedCfg, log.With(logx.String("comp", "scheduler")), store, gen, notifSvc, bus)

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		logs:    logSvc,
		log:     log,
		bus:     bus,
		store:   store,
		notif:   notifSvc,
		sched:   schedSvc,
	}, nil
}

// Scheduler exposes the loop for manual triggering.
func (a *App) Scheduler() *scheduler.Service { return a.sched }

func (a *App) Store() storage.Store { return a.store }

// CreateTask is the task intake path: normalize the schedule against the
// originating prompt, validate, and persist as pending. The scheduler
// picks the task up on its next tick.
func (a *App) CreateTask(ctx context.Context, t *task.Task, prompt string) error {
	if !t.Kind.Valid() {
		return fmt.Errorf("unknown task kind %q", t.Kind)
	}
	if t.Schedule == nil {
		t.Schedule = &schedule.Schedule{}
	}
	norm := schedule.Normalize(*t.Schedule, time.Now(), prompt)
	if err := norm.Validate(); err != nil {
		return err
	}
	t.Schedule = &norm
	t.Status = task.StatusPending
	t.Active = true

	if err := a.store.Create(ctx, t); err != nil {
		return err
	}
	a.log.Info("task created",
		logx.String("id", t.ID),
		logx.String("kind", string(t.Kind)),
		logx.String("schedule", schedule.Describe(t.Schedule)))
	return nil
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.sched.Start(runCtx); err != nil {
		cancel()
		return err
	}

	// Hot reload: watch the file, re-apply the tunable sections.
	sub := a.cfgm.Subscribe(8)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.reloadLoop(runCtx, sub)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.cfgm.Watch(runCtx); err != nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()

	a.log.Info("app started")
	return nil
}

func (a *App) reloadLoop(ctx context.Context, sub <-chan *config.Config) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			a.applyConfig(ctx, cfg)
		}
	}
}

func (a *App) applyConfig(ctx context.Context, cfg *config.Config) {
	a.logs.Apply(cfg.LogConfig())

	schedCfg, err := cfg.SchedulerConfig()
	if err != nil {
		a.log.Warn("config reload rejected: invalid scheduler section", logx.Err(err))
		return
	}
	a.sched.Apply(ctx, schedCfg)

	a.log.Info("config reloaded")
}

func (a *App) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	a.sched.Stop(stopCtx)

	_ = a.notif.Close()
	a.wg.Wait()

	err := a.store.Close()
	a.log.Info("stopped")
	_ = a.logs.Close()
	return err
}
