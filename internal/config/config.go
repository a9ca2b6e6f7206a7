package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/amishk599/jobpipe/internal/model"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "JOBPIPE_"

// Config is the root configuration for jobpipe.
type Config struct {
	Storage    StorageConfig
	Normalizer NormalizerConfig
	Pipeline   PipelineConfig
	Sources    []SourceConfig
	Fetch      FetchConfig
	Respond    RespondConfig
	Schedule   ScheduleConfig
	Events     EventsConfig
}

// StorageConfig selects the job store backend.
type StorageConfig struct {
	Driver string // "sqlite", "postgres" or "none" (dry run)
	Path   string // sqlite database file
	DSN    string // postgres connection string
}

// NormalizerConfig controls field extraction.
type NormalizerConfig struct {
	ExtractSkills     bool
	ExtractSalary     bool
	SkillVocabulary   []string
	SkillAliases      map[string][]string
	HourlyThreshold   int64
	HourlyMultiplier  float64
	LocationAliases   map[string]string
	CountryQualifiers []string
}

// PipelineConfig controls the orchestrator.
type PipelineConfig struct {
	Concurrency      ConcurrencyConfig
	DedupMergePolicy string
}

// ConcurrencyConfig bounds the worker pool of each stage.
type ConcurrencyConfig struct {
	Fetch     int `yaml:"fetch"`
	Normalize int `yaml:"normalize"`
	Persist   int `yaml:"persist"`
}

// SourceConfig describes one place postings are fetched from.
type SourceConfig struct {
	Name       string `yaml:"name"`
	Platform   string `yaml:"platform"`    // greenhouse, lever, ashby or file
	BoardToken string `yaml:"board_token"` // required for ATS platforms
	Path       string `yaml:"path"`        // required for file sources
	Enabled    bool   `yaml:"enabled"`
}

// FetchConfig controls HTTP fetching, retries and per-platform pacing.
type FetchConfig struct {
	Timeout           time.Duration
	MinInterval       time.Duration            // minimum gap between requests to the same platform
	PlatformIntervals map[string]time.Duration // per-platform overrides
	Retries           int
	RetryBaseDelay    time.Duration
}

// IntervalFor returns the pacing interval for platform, falling back to MinInterval.
func (f FetchConfig) IntervalFor(platform string) time.Duration {
	if d, ok := f.PlatformIntervals[platform]; ok {
		return d
	}
	return f.MinInterval
}

// RespondConfig controls which stored jobs are responded to and how.
type RespondConfig struct {
	AutoRespond bool
	Criteria    CriteriaConfig
	Notifier    NotifierConfig
}

// CriteriaConfig is the eligibility filter for the respond stage.
type CriteriaConfig struct {
	RequiredSkills []string `yaml:"required_skills,omitempty"`
	JobTypes       []string `yaml:"job_types,omitempty"`
	RemoteTypes    []string `yaml:"remote_types,omitempty"`
	MinSalary      int64    `yaml:"min_salary,omitempty"`
	Locations      []string `yaml:"locations,omitempty"`
	TitleKeywords  []string `yaml:"title_keywords,omitempty"`
}

// NotifierConfig controls which dispatcher is used and its settings.
type NotifierConfig struct {
	Type       string `yaml:"type"`        // "log" or "slack"
	WebhookURL string `yaml:"webhook_url"` // required if type is "slack"
}

// ScheduleConfig drives `jobpipe serve`.
type ScheduleConfig struct {
	Cron string // standard 5-field cron spec or a descriptor like "@every 30m"
	Mode string // pipeline mode for scheduled runs
}

// EventsConfig controls run summary publishing.
type EventsConfig struct {
	RedisURL string
	Channel  string
}

// Default returns a complete configuration that passes validation.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{Driver: "sqlite", Path: "data/jobpipe.db"},
		Normalizer: NormalizerConfig{
			ExtractSkills:     true,
			ExtractSalary:     true,
			SkillVocabulary:   []string{"Python", "JavaScript", "Java", "Go", "SQL", "Docker", "AWS", "Git", "CI/CD"},
			SkillAliases:      defaultSkillAliases(),
			HourlyThreshold:   1000,
			HourlyMultiplier:  2080,
			LocationAliases:   map[string]string{"nyc": "New York", "sf": "San Francisco", "idf": "Paris"},
			CountryQualifiers: []string{"USA", "US", "United States", "UK", "United Kingdom", "France", "Germany", "Canada"},
		},
		Pipeline: PipelineConfig{
			Concurrency:      ConcurrencyConfig{Fetch: 4, Normalize: 8, Persist: 4},
			DedupMergePolicy: "non-null-overwrites",
		},
		Fetch: FetchConfig{
			Timeout:           30 * time.Second,
			MinInterval:       2 * time.Second,
			PlatformIntervals: map[string]time.Duration{},
			Retries:           3,
			RetryBaseDelay:    2 * time.Second,
		},
		Respond: RespondConfig{
			Notifier: NotifierConfig{Type: "log"},
		},
		Schedule: ScheduleConfig{Cron: "@every 1h", Mode: "full"},
		Events:   EventsConfig{Channel: "jobpipe:runs"},
	}
}

func defaultSkillAliases() map[string][]string {
	return map[string][]string{
		"Python":     {"django", "flask", "fastapi"},
		"JavaScript": {"js", "node.js", "nodejs", "react", "vue", "angular"},
		"Java":       {"spring"},
		"SQL":        {"mysql", "postgresql", "postgres"},
		"Docker":     {"kubernetes", "k8s"},
		"AWS":        {"amazon web services", "ec2", "s3"},
		"Git":        {"github", "gitlab"},
		"CI/CD":      {"jenkins", "github actions", "gitlab ci"},
		"Go":         {"golang"},
	}
}

// rawConfig is used for YAML unmarshaling (snake_case fields and durations as strings).
type rawConfig struct {
	Storage    rawStorageConfig    `yaml:"storage"`
	Normalizer rawNormalizerConfig `yaml:"normalizer"`
	Pipeline   rawPipelineConfig   `yaml:"pipeline"`
	Sources    []SourceConfig      `yaml:"sources,omitempty"`
	Fetch      rawFetchConfig      `yaml:"fetch"`
	Respond    rawRespondConfig    `yaml:"respond"`
	Schedule   rawScheduleConfig   `yaml:"schedule"`
	Events     rawEventsConfig     `yaml:"events"`
}

type rawStorageConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
}

type rawNormalizerConfig struct {
	ExtractSkills     *bool               `yaml:"extract_skills"`
	ExtractSalary     *bool               `yaml:"extract_salary"`
	SkillVocabulary   []string            `yaml:"skill_vocabulary"`
	SkillAliases      map[string][]string `yaml:"skill_aliases"`
	HourlyThreshold   int64               `yaml:"hourly_threshold"`
	HourlyMultiplier  float64             `yaml:"hourly_multiplier"`
	LocationAliases   map[string]string   `yaml:"location_aliases"`
	CountryQualifiers []string            `yaml:"country_qualifiers"`
}

type rawPipelineConfig struct {
	Concurrency      ConcurrencyConfig `yaml:"concurrency"`
	DedupMergePolicy string            `yaml:"dedup_merge_policy"`
}

type rawFetchConfig struct {
	Timeout           string            `yaml:"timeout"`
	MinInterval       string            `yaml:"min_interval"`
	PlatformIntervals map[string]string `yaml:"platform_intervals"`
	Retries           *int              `yaml:"retries"`
	RetryBaseDelay    string            `yaml:"retry_base_delay"`
}

type rawRespondConfig struct {
	AutoRespond bool           `yaml:"auto_respond"`
	Criteria    CriteriaConfig `yaml:"criteria"`
	Notifier    NotifierConfig `yaml:"notifier"`
}

type rawScheduleConfig struct {
	Cron string `yaml:"cron"`
	Mode string `yaml:"mode"`
}

type rawEventsConfig struct {
	RedisURL string `yaml:"redis_url"`
	Channel  string `yaml:"channel"`
}

// envOverrides are applied after the file. Empty values leave the file's
// setting alone.
type envOverrides struct {
	StorageDriver   string `env:"STORAGE_DRIVER"`
	StoragePath     string `env:"STORAGE_PATH"`
	StorageDSN      string `env:"STORAGE_DSN"`
	NotifierType    string `env:"NOTIFIER_TYPE"`
	SlackWebhookURL string `env:"SLACK_WEBHOOK_URL"`
	RedisURL        string `env:"REDIS_URL"`
	ScheduleCron    string `env:"SCHEDULE"`
	FetchTimeout    string `env:"FETCH_TIMEOUT"`
	MergePolicy     string `env:"DEDUP_MERGE_POLICY"`
}

// Load reads and parses the YAML config file at path, applies environment
// overrides, validates it, and returns Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse builds a Config from YAML bytes. Settings the document omits keep
// their Default values.
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("%w: parse config: %v", model.ErrConfiguration, err)
	}

	cfg, err := fromRaw(raw)
	if err != nil {
		return nil, err
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromRaw(raw rawConfig) (*Config, error) {
	cfg := Default()

	if raw.Storage.Driver != "" {
		cfg.Storage.Driver = raw.Storage.Driver
	}
	if raw.Storage.Path != "" {
		cfg.Storage.Path = raw.Storage.Path
	}
	cfg.Storage.DSN = raw.Storage.DSN

	n := raw.Normalizer
	if n.ExtractSkills != nil {
		cfg.Normalizer.ExtractSkills = *n.ExtractSkills
	}
	if n.ExtractSalary != nil {
		cfg.Normalizer.ExtractSalary = *n.ExtractSalary
	}
	if n.SkillVocabulary != nil {
		cfg.Normalizer.SkillVocabulary = n.SkillVocabulary
	}
	if n.SkillAliases != nil {
		cfg.Normalizer.SkillAliases = n.SkillAliases
	}
	if n.HourlyThreshold != 0 {
		cfg.Normalizer.HourlyThreshold = n.HourlyThreshold
	}
	if n.HourlyMultiplier != 0 {
		cfg.Normalizer.HourlyMultiplier = n.HourlyMultiplier
	}
	if n.LocationAliases != nil {
		cfg.Normalizer.LocationAliases = n.LocationAliases
	}
	if n.CountryQualifiers != nil {
		cfg.Normalizer.CountryQualifiers = n.CountryQualifiers
	}

	c := raw.Pipeline.Concurrency
	if c.Fetch != 0 {
		cfg.Pipeline.Concurrency.Fetch = c.Fetch
	}
	if c.Normalize != 0 {
		cfg.Pipeline.Concurrency.Normalize = c.Normalize
	}
	if c.Persist != 0 {
		cfg.Pipeline.Concurrency.Persist = c.Persist
	}
	if raw.Pipeline.DedupMergePolicy != "" {
		cfg.Pipeline.DedupMergePolicy = raw.Pipeline.DedupMergePolicy
	}

	if len(raw.Sources) > 0 {
		cfg.Sources = raw.Sources
	}

	var err error
	if cfg.Fetch.Timeout, err = durationOr(raw.Fetch.Timeout, cfg.Fetch.Timeout, "fetch.timeout"); err != nil {
		return nil, err
	}
	if cfg.Fetch.MinInterval, err = durationOr(raw.Fetch.MinInterval, cfg.Fetch.MinInterval, "fetch.min_interval"); err != nil {
		return nil, err
	}
	if cfg.Fetch.RetryBaseDelay, err = durationOr(raw.Fetch.RetryBaseDelay, cfg.Fetch.RetryBaseDelay, "fetch.retry_base_delay"); err != nil {
		return nil, err
	}
	if raw.Fetch.Retries != nil {
		cfg.Fetch.Retries = *raw.Fetch.Retries
	}
	for platform, s := range raw.Fetch.PlatformIntervals {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("%w: parse fetch.platform_intervals[%q]: %v", model.ErrConfiguration, platform, err)
		}
		cfg.Fetch.PlatformIntervals[platform] = d
	}

	cfg.Respond.AutoRespond = raw.Respond.AutoRespond
	cfg.Respond.Criteria = raw.Respond.Criteria
	if raw.Respond.Notifier.Type != "" {
		cfg.Respond.Notifier = raw.Respond.Notifier
	}

	if raw.Schedule.Cron != "" {
		cfg.Schedule.Cron = raw.Schedule.Cron
	}
	if raw.Schedule.Mode != "" {
		cfg.Schedule.Mode = raw.Schedule.Mode
	}

	cfg.Events.RedisURL = raw.Events.RedisURL
	if raw.Events.Channel != "" {
		cfg.Events.Channel = raw.Events.Channel
	}
	return cfg, nil
}

func durationOr(s string, def time.Duration, field string) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: parse %s %q: %v", model.ErrConfiguration, field, s, err)
	}
	return d, nil
}

func applyEnv(cfg *Config) error {
	var o envOverrides
	if err := env.ParseWithOptions(&o, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("%w: parse environment: %v", model.ErrConfiguration, err)
	}

	setIf := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setIf(&cfg.Storage.Driver, o.StorageDriver)
	setIf(&cfg.Storage.Path, o.StoragePath)
	setIf(&cfg.Storage.DSN, o.StorageDSN)
	setIf(&cfg.Respond.Notifier.Type, o.NotifierType)
	setIf(&cfg.Respond.Notifier.WebhookURL, o.SlackWebhookURL)
	setIf(&cfg.Events.RedisURL, o.RedisURL)
	setIf(&cfg.Schedule.Cron, o.ScheduleCron)
	setIf(&cfg.Pipeline.DedupMergePolicy, o.MergePolicy)

	var err error
	cfg.Fetch.Timeout, err = durationOr(o.FetchTimeout, cfg.Fetch.Timeout, EnvPrefix+"FETCH_TIMEOUT")
	return err
}

var knownPlatforms = map[string]bool{"greenhouse": true, "lever": true, "ashby": true, "file": true}

func validate(cfg *Config) error {
	invalid := func(format string, args ...any) error {
		return model.Configurationf(format, args...)
	}

	switch cfg.Storage.Driver {
	case "sqlite":
		if cfg.Storage.Path == "" {
			return invalid("storage.path is required for the sqlite driver")
		}
	case "postgres":
		if cfg.Storage.DSN == "" {
			return invalid("storage.dsn is required for the postgres driver")
		}
	case "none":
	default:
		return invalid("storage.driver must be sqlite, postgres or none, got %q", cfg.Storage.Driver)
	}

	if cfg.Normalizer.HourlyThreshold < 0 || cfg.Normalizer.HourlyMultiplier < 0 {
		return invalid("normalizer.hourly_threshold and hourly_multiplier must not be negative")
	}

	c := cfg.Pipeline.Concurrency
	if c.Fetch < 1 || c.Normalize < 1 || c.Persist < 1 {
		return invalid("pipeline.concurrency values must be at least 1, got %+v", c)
	}
	if cfg.Pipeline.DedupMergePolicy != "non-null-overwrites" {
		return invalid("pipeline.dedup_merge_policy %q is not supported (only non-null-overwrites)", cfg.Pipeline.DedupMergePolicy)
	}

	names := make(map[string]bool)
	for i, s := range cfg.Sources {
		if s.Name == "" {
			return invalid("sources[%d].name is required", i)
		}
		if names[s.Name] {
			return invalid("duplicate source name %q", s.Name)
		}
		names[s.Name] = true
		if !knownPlatforms[s.Platform] {
			return invalid("sources[%d].platform %q is not supported", i, s.Platform)
		}
		if s.Platform == "file" && s.Path == "" {
			return invalid("sources[%d].path is required for file sources", i)
		}
		if s.Platform != "file" && s.BoardToken == "" {
			return invalid("sources[%d].board_token is required for %s", i, s.Platform)
		}
	}

	if cfg.Fetch.Timeout <= 0 {
		return invalid("fetch.timeout must be positive, got %v", cfg.Fetch.Timeout)
	}
	if cfg.Fetch.MinInterval < 0 {
		return invalid("fetch.min_interval must not be negative, got %v", cfg.Fetch.MinInterval)
	}
	if cfg.Fetch.Retries < 0 {
		return invalid("fetch.retries must not be negative, got %d", cfg.Fetch.Retries)
	}

	for _, jt := range cfg.Respond.Criteria.JobTypes {
		switch model.JobType(jt) {
		case model.JobTypeFullTime, model.JobTypePartTime, model.JobTypeContract, model.JobTypeInternship:
		default:
			return invalid("respond.criteria.job_types: unknown job type %q", jt)
		}
	}
	for _, rt := range cfg.Respond.Criteria.RemoteTypes {
		switch model.RemoteType(rt) {
		case model.RemoteOnsite, model.RemoteRemote, model.RemoteHybrid:
		default:
			return invalid("respond.criteria.remote_types: unknown remote type %q", rt)
		}
	}

	switch cfg.Respond.Notifier.Type {
	case "log":
	case "slack":
		if cfg.Respond.Notifier.WebhookURL == "" {
			return invalid("respond.notifier.webhook_url is required when type is \"slack\"")
		}
		if !strings.HasPrefix(cfg.Respond.Notifier.WebhookURL, "https://hooks.slack.com/") {
			return invalid("respond.notifier.webhook_url must start with https://hooks.slack.com/")
		}
	default:
		return invalid("respond.notifier.type must be log or slack, got %q", cfg.Respond.Notifier.Type)
	}

	if cfg.Events.RedisURL != "" && cfg.Events.Channel == "" {
		return invalid("events.channel is required when events.redis_url is set")
	}
	return nil
}

// EnabledSources returns the sources with enabled set.
func (c *Config) EnabledSources() []SourceConfig {
	var out []SourceConfig
	for _, s := range c.Sources {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

// Marshal renders cfg as a YAML document that Load reads back to the same
// Config.
func Marshal(cfg *Config) ([]byte, error) {
	extractSkills, extractSalary := cfg.Normalizer.ExtractSkills, cfg.Normalizer.ExtractSalary
	retries := cfg.Fetch.Retries

	intervals := make(map[string]string, len(cfg.Fetch.PlatformIntervals))
	for platform, d := range cfg.Fetch.PlatformIntervals {
		intervals[platform] = d.String()
	}

	raw := rawConfig{
		Storage: rawStorageConfig{Driver: cfg.Storage.Driver, Path: cfg.Storage.Path, DSN: cfg.Storage.DSN},
		Normalizer: rawNormalizerConfig{
			ExtractSkills:     &extractSkills,
			ExtractSalary:     &extractSalary,
			SkillVocabulary:   cfg.Normalizer.SkillVocabulary,
			SkillAliases:      cfg.Normalizer.SkillAliases,
			HourlyThreshold:   cfg.Normalizer.HourlyThreshold,
			HourlyMultiplier:  cfg.Normalizer.HourlyMultiplier,
			LocationAliases:   cfg.Normalizer.LocationAliases,
			CountryQualifiers: cfg.Normalizer.CountryQualifiers,
		},
		Pipeline: rawPipelineConfig{
			Concurrency:      cfg.Pipeline.Concurrency,
			DedupMergePolicy: cfg.Pipeline.DedupMergePolicy,
		},
		Sources: cfg.Sources,
		Fetch: rawFetchConfig{
			Timeout:           cfg.Fetch.Timeout.String(),
			MinInterval:       cfg.Fetch.MinInterval.String(),
			PlatformIntervals: intervals,
			Retries:           &retries,
			RetryBaseDelay:    cfg.Fetch.RetryBaseDelay.String(),
		},
		Respond: rawRespondConfig{
			AutoRespond: cfg.Respond.AutoRespond,
			Criteria:    cfg.Respond.Criteria,
			Notifier:    cfg.Respond.Notifier,
		},
		Schedule: rawScheduleConfig{Cron: cfg.Schedule.Cron, Mode: cfg.Schedule.Mode},
		Events:   rawEventsConfig{RedisURL: cfg.Events.RedisURL, Channel: cfg.Events.Channel},
	}
	return yaml.Marshal(raw)
}
