// Package scheduler decides which persisted tasks are due, in what order
// they run, and how many run at once. A cron-driven loop ticks at a fixed
// cadence; each tick snapshots pending tasks, filters them through the
// due-ness predicate, ranks the survivors, and hands a bounded batch to the
// executor.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"taskmill/internal/content"
	"taskmill/internal/eventbus"
	"taskmill/internal/notifier"
	"taskmill/internal/storage"
	logx "taskmill/pkg/logx"
)

type Service struct {
	mu  sync.Mutex
	cfg Config

	log   logx.Logger
	bus   eventbus.Bus
	store storage.Store
	gen   content.Generator
	notif *notifier.Service

	inflight *inflightSet

	c       *cron.Cron
	cancel  context.CancelFunc
	running bool
}

func New(cfg Config, log logx.Logger, store storage.Store, gen content.Generator, notif *notifier.Service, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:      cfg.withDefaults(),
		log:      log,
		bus:      bus,
		store:    store,
		gen:      gen,
		notif:    notif,
		inflight: newInflightSet(),
	}
}

func (s *Service) config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start arms the tick loop. It is idempotent and performs one immediate
// tick before the timer takes over.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	cfg := s.cfg
	if !cfg.Enabled {
		s.mu.Unlock()
		return nil
	}

	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", cfg.PollInterval), func() { s.tick(runCtx) }); err != nil {
		cancel()
		s.cancel = nil
		s.mu.Unlock()
		return err
	}
	if cfg.Retention > 0 {
		if _, err := c.AddFunc("@daily", func() { s.sweep(runCtx) }); err != nil {
			cancel()
			s.cancel = nil
			s.mu.Unlock()
			return err
		}
	}
	s.c = c
	s.running = true
	s.mu.Unlock()

	// Rows left in running by a crash would otherwise never be scanned
	// again.
	if n, err := s.store.ResetRunning(runCtx); err != nil {
		s.log.Warn("reset of stale running tasks failed", logx.Err(err))
	} else if n > 0 {
		s.log.Info("requeued tasks stuck in running", logx.Int("count", n))
	}

	s.tick(runCtx)
	c.Start()

	s.log.Info("scheduler started",
		logx.Duration("poll", cfg.PollInterval),
		logx.Int("max_concurrent", cfg.MaxConcurrent),
		logx.Duration("task_timeout", cfg.TaskTimeout))
	return nil
}

// Stop cancels the timer and waits for in-flight cron jobs. It is a no-op
// if the loop is not running.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	c := s.c
	cancel := s.cancel
	s.c = nil
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
			s.log.Warn("scheduler stop timed out", logx.Err(ctx.Err()))
			return
		}
	}
	s.log.Info("scheduler stopped")
}

// Trigger forces one scheduling tick outside the timer cadence. It works
// whether or not the loop is running; operators use it for testing and
// debugging.
func (s *Service) Trigger(ctx context.Context) {
	s.tick(ctx)
}

// Apply swaps the runtime-tunable settings. A changed poll interval
// restarts the tick loop.
func (s *Service) Apply(ctx context.Context, cfg Config) {
	cfg = cfg.withDefaults()

	s.mu.Lock()
	prev := s.cfg
	s.cfg = cfg
	running := s.running
	s.mu.Unlock()

	if !running {
		return
	}
	if prev.PollInterval != cfg.PollInterval || prev.Retention != cfg.Retention || prev.Enabled != cfg.Enabled {
		s.Stop(ctx)
		if cfg.Enabled {
			_ = s.Start(ctx)
		}
	}
}

// tick is one scan-and-execute cycle. Repository failure aborts this tick
// only; the next one proceeds unaffected.
func (s *Service) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	cfg := s.config()
	now := time.Now()

	tasks, err := s.store.FindPendingActive(ctx)
	if err != nil {
		s.log.Error("tick aborted: pending scan failed", logx.Err(err))
		return
	}
	if len(tasks) == 0 {
		return
	}

	queue := buildQueue(cfg.Weights, tasks, now, cfg.MaxConcurrent)
	if len(queue) == 0 {
		s.log.Trace("tick: nothing due", logx.Int("pending", len(tasks)))
		return
	}

	s.log.Debug("tick: dispatching",
		logx.Int("pending", len(tasks)),
		logx.Int("due", len(queue)),
		logx.Int("in_flight", s.inflight.size()))

	s.executeBatch(ctx, queue)
}

// sweep retires completed one-shot tasks past the retention horizon so the
// pending scan stays small.
func (s *Service) sweep(ctx context.Context) {
	cfg := s.config()
	if cfg.Retention <= 0 {
		return
	}
	cutoff := time.Now().Add(-cfg.Retention)
	n, err := s.store.DeactivateCompletedBefore(ctx, cutoff)
	if err != nil {
		s.log.Warn("retention sweep failed", logx.Err(err))
		return
	}
	if n > 0 {
		s.log.Info("retention sweep", logx.Int("retired", n), logx.Time("cutoff", cutoff))
	}
}
