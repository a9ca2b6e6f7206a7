package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/amishk599/jobpipe/internal/model"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: sqlite
  path: /tmp/jobs.db
normalizer:
  extract_salary: false
  skill_vocabulary: [Go, Rust]
  hourly_threshold: 500
pipeline:
  concurrency:
    persist: 2
sources:
  - name: acme
    platform: greenhouse
    board_token: "acme"
    enabled: true
  - name: dump
    platform: file
    path: ./raw.json
fetch:
  timeout: 10s
  platform_intervals:
    lever: 5s
respond:
  criteria:
    required_skills: [Go]
    job_types: [full-time]
    min_salary: 90000
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Path != "/tmp/jobs.db" {
		t.Errorf("Storage.Path = %q", cfg.Storage.Path)
	}
	if cfg.Normalizer.ExtractSalary {
		t.Error("ExtractSalary = true, want false")
	}
	if !cfg.Normalizer.ExtractSkills {
		t.Error("ExtractSkills = false, want default true")
	}
	if !reflect.DeepEqual(cfg.Normalizer.SkillVocabulary, []string{"Go", "Rust"}) {
		t.Errorf("SkillVocabulary = %v", cfg.Normalizer.SkillVocabulary)
	}
	if cfg.Normalizer.HourlyThreshold != 500 || cfg.Normalizer.HourlyMultiplier != 2080 {
		t.Errorf("hourly = %d/%v", cfg.Normalizer.HourlyThreshold, cfg.Normalizer.HourlyMultiplier)
	}
	want := ConcurrencyConfig{Fetch: 4, Normalize: 8, Persist: 2}
	if cfg.Pipeline.Concurrency != want {
		t.Errorf("Concurrency = %+v, want %+v", cfg.Pipeline.Concurrency, want)
	}
	if len(cfg.Sources) != 2 || cfg.Sources[0].BoardToken != "acme" {
		t.Errorf("Sources = %+v", cfg.Sources)
	}
	if got := cfg.EnabledSources(); len(got) != 1 || got[0].Name != "acme" {
		t.Errorf("EnabledSources = %+v", got)
	}
	if cfg.Fetch.Timeout != 10*time.Second {
		t.Errorf("Fetch.Timeout = %v", cfg.Fetch.Timeout)
	}
	if cfg.Fetch.IntervalFor("lever") != 5*time.Second || cfg.Fetch.IntervalFor("ashby") != 2*time.Second {
		t.Errorf("IntervalFor lever=%v ashby=%v", cfg.Fetch.IntervalFor("lever"), cfg.Fetch.IntervalFor("ashby"))
	}
	if cfg.Respond.Criteria.MinSalary != 90000 {
		t.Errorf("MinSalary = %d", cfg.Respond.Criteria.MinSalary)
	}
}

func TestLoad_EmptyFileUsesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Errorf("Load(empty) = %+v, want Default()", cfg)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err == nil {
		t.Fatal("Load: expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "storage: [broken"))
	if !errors.Is(err, model.ErrConfiguration) {
		t.Fatalf("Load: err = %v, want configuration error", err)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("TEST_JOBPIPE_DSN", "postgres://u:p@localhost/jobs")
	cfg, err := Load(writeConfig(t, `
storage:
  driver: postgres
  dsn: ${TEST_JOBPIPE_DSN}
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.DSN != "postgres://u:p@localhost/jobs" {
		t.Errorf("DSN = %q", cfg.Storage.DSN)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("JOBPIPE_STORAGE_PATH", "/var/lib/jobpipe/jobs.db")
	t.Setenv("JOBPIPE_FETCH_TIMEOUT", "45s")
	t.Setenv("JOBPIPE_REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load(writeConfig(t, `
storage:
  path: ./local.db
fetch:
  timeout: 5s
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Path != "/var/lib/jobpipe/jobs.db" {
		t.Errorf("Storage.Path = %q", cfg.Storage.Path)
	}
	if cfg.Fetch.Timeout != 45*time.Second {
		t.Errorf("Fetch.Timeout = %v", cfg.Fetch.Timeout)
	}
	if cfg.Events.RedisURL != "redis://localhost:6379/0" {
		t.Errorf("Events.RedisURL = %q", cfg.Events.RedisURL)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown driver", "storage:\n  driver: mongo\n"},
		{"postgres without dsn", "storage:\n  driver: postgres\n"},
		{"negative concurrency", "pipeline:\n  concurrency:\n    fetch: -1\n"},
		{"other merge policy", "pipeline:\n  dedup_merge_policy: last-write-wins\n"},
		{"unknown platform", "sources:\n  - name: x\n    platform: workday\n    board_token: x\n"},
		{"ats without token", "sources:\n  - name: x\n    platform: lever\n"},
		{"file without path", "sources:\n  - name: x\n    platform: file\n"},
		{"duplicate source", "sources:\n  - {name: x, platform: lever, board_token: a}\n  - {name: x, platform: ashby, board_token: b}\n"},
		{"bad duration", "fetch:\n  timeout: soon\n"},
		{"zero timeout", "fetch:\n  timeout: 0s\n"},
		{"negative retries", "fetch:\n  retries: -2\n"},
		{"unknown job type", "respond:\n  criteria:\n    job_types: [gig]\n"},
		{"slack without webhook", "respond:\n  notifier:\n    type: slack\n"},
		{"slack with foreign webhook", "respond:\n  notifier:\n    type: slack\n    webhook_url: https://example.com/hook\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("Load: expected validation error")
			}
			if !errors.Is(err, model.ErrConfiguration) {
				t.Errorf("Load: err = %v, want configuration error", err)
			}
		})
	}
}

func TestMarshal_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Sources = []SourceConfig{{Name: "acme", Platform: "greenhouse", BoardToken: "acme", Enabled: true}}
	cfg.Fetch.PlatformIntervals["lever"] = 3 * time.Second
	cfg.Respond.Criteria.RequiredSkills = []string{"Go"}

	data, err := Marshal(cfg)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v\n%s", err, data)
	}
	if !reflect.DeepEqual(got, cfg) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, cfg)
	}
}
