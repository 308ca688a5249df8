package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const sampleYAML = `
log:
  level: debug
  file:
    enabled: true
    path: /tmp/taskmill.log
storage:
  driver: sqlite
  path: /tmp/tasks.db
  busy_timeout: 3s
scheduler:
  poll_interval: 15s
  max_concurrent: 4
  task_timeout: 1m
  retention: 168h
content:
  provider: ollama
  model: llama3
notify:
  telegram:
    enabled: false
`

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.yaml", sampleYAML)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Log.Level != "debug" || !cfg.Log.File.Enabled {
		t.Fatalf("log section = %+v", cfg.Log)
	}

	sc, err := cfg.StorageConfig()
	if err != nil {
		t.Fatalf("StorageConfig error: %v", err)
	}
	if sc.Path != "/tmp/tasks.db" || sc.BusyTimeout != 3*time.Second {
		t.Fatalf("storage config = %+v", sc)
	}

	sch, err := cfg.SchedulerConfig()
	if err != nil {
		t.Fatalf("SchedulerConfig error: %v", err)
	}
	if sch.PollInterval != 15*time.Second || sch.MaxConcurrent != 4 || sch.TaskTimeout != time.Minute {
		t.Fatalf("scheduler config = %+v", sch)
	}
	if sch.Retention != 168*time.Hour {
		t.Fatalf("Retention = %v", sch.Retention)
	}
	if !sch.Enabled {
		t.Fatal("scheduler must default to enabled")
	}

	cc := cfg.ContentConfig()
	if cc.Provider != "ollama" || cc.Model != "llama3" {
		t.Fatalf("content config = %+v", cc)
	}
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.json", `{"scheduler":{"poll_interval":"30s"}}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	sch, err := cfg.SchedulerConfig()
	if err != nil {
		t.Fatalf("SchedulerConfig error: %v", err)
	}
	if sch.PollInterval != 30*time.Second {
		t.Fatalf("PollInterval = %v", sch.PollInterval)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.yaml", "log:\n  level: info\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	sc, err := cfg.StorageConfig()
	if err != nil {
		t.Fatalf("StorageConfig error: %v", err)
	}
	if sc.Path != "./taskmill.db" || sc.BusyTimeout != 5*time.Second {
		t.Fatalf("storage defaults = %+v", sc)
	}

	sch, err := cfg.SchedulerConfig()
	if err != nil {
		t.Fatalf("SchedulerConfig error: %v", err)
	}
	if sch.PollInterval != 10*time.Second || sch.TaskTimeout != 2*time.Minute {
		t.Fatalf("scheduler defaults = %+v", sch)
	}
	if sch.Retention != 0 {
		t.Fatalf("Retention = %v, want disabled by default", sch.Retention)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.yaml", "schedulr:\n  poll_interval: 15s\n")

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for misspelled section")
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.yaml", "scheduler:\n  poll_interval: fast\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if _, err := cfg.SchedulerConfig(); err == nil {
		t.Fatal("expected error for unparseable duration")
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{raw: "", want: 0},
		{raw: "10s", want: 10 * time.Second},
		{raw: " 2m ", want: 2 * time.Minute},
		{raw: "-5s", wantErr: true},
		{raw: "soon", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseDurationField("test.field", tt.raw)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseDurationField(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
		}
		if err == nil && got != tt.want {
			t.Fatalf("ParseDurationField(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
