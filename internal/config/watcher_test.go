package config

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestManagerWatchPublishesReload(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.yaml", "scheduler:\n  poll_interval: 10s\n")

	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load error: %v", err)
	}
	sub := m.Subscribe(4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Watch(ctx)
	}()

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("scheduler:\n  poll_interval: 30s\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case cfg := <-sub:
		sch, err := cfg.SchedulerConfig()
		if err != nil {
			t.Fatalf("SchedulerConfig error: %v", err)
		}
		if sch.PollInterval != 30*time.Second {
			t.Fatalf("PollInterval = %v, want 30s after reload", sch.PollInterval)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload published after file change")
	}

	if got := m.Get(); got == nil {
		t.Fatal("Get returned nil after reload")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Watch did not stop on context cancel")
	}
}
