package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/amishk599/jobpipe/internal/config"
	"github.com/amishk599/jobpipe/internal/events"
	"github.com/amishk599/jobpipe/internal/extract"
	"github.com/amishk599/jobpipe/internal/fetch"
	"github.com/amishk599/jobpipe/internal/filter"
	"github.com/amishk599/jobpipe/internal/model"
	"github.com/amishk599/jobpipe/internal/normalize"
	"github.com/amishk599/jobpipe/internal/pipeline"
	"github.com/amishk599/jobpipe/internal/ratelimit"
	"github.com/amishk599/jobpipe/internal/respond"
	"github.com/amishk599/jobpipe/internal/retry"
	"github.com/amishk599/jobpipe/internal/store"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:           "jobpipe",
	Short:         "Job posting pipeline: fetch, normalize, store, respond",
	Long:          "jobpipe pulls postings from ATS boards and files, normalizes them into one schema, deduplicates them into a store and responds to the ones that match your criteria.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: JOBPIPE_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig loads .env, resolves the config path and parses it.
// Priority: explicit path arg > JOBPIPE_CONFIG env var > "./config.yaml".
// A missing ./config.yaml falls back to the defaults.
func loadConfig(path string) (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	explicit := true
	if path == "" {
		if env := os.Getenv("JOBPIPE_CONFIG"); env != "" {
			path = env
		} else {
			path = "config.yaml"
			explicit = false
		}
	}
	if _, err := os.Stat(path); !explicit && errors.Is(err, fs.ErrNotExist) {
		return config.Parse(nil)
	}
	return config.Load(path)
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

// silentLogger is used by TUI commands: any log output once the alt screen
// is up corrupts the display.
func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openStore(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (model.JobStore, error) {
	switch cfg.Driver {
	case "postgres":
		logger.Debug("opening postgres store")
		return store.NewPostgresStore(ctx, cfg.DSN)
	case "none":
		logger.Info("storage driver none: nothing is persisted")
		return store.NewNopStore(), nil
	default:
		logger.Debug("opening sqlite store", "path", cfg.Path)
		return store.NewSQLiteStore(cfg.Path)
	}
}

func setupNormalizer(cfg config.NormalizerConfig) (*normalize.Normalizer, error) {
	ext, err := extract.New(extract.Config{
		Skills:            cfg.SkillVocabulary,
		SkillAliases:      cfg.SkillAliases,
		HourlyThreshold:   cfg.HourlyThreshold,
		HourlyMultiplier:  cfg.HourlyMultiplier,
		LocationAliases:   cfg.LocationAliases,
		CountryQualifiers: cfg.CountryQualifiers,
	})
	if err != nil {
		return nil, err
	}
	return normalize.New(ext, normalize.Options{
		ExtractSkills: cfg.ExtractSkills,
		ExtractSalary: cfg.ExtractSalary,
	}), nil
}

func setupFilter(c config.CriteriaConfig) model.JobFilter {
	crit := filter.Criteria{
		RequiredSkills: c.RequiredSkills,
		MinSalary:      c.MinSalary,
		Locations:      c.Locations,
		TitleKeywords:  c.TitleKeywords,
	}
	for _, t := range c.JobTypes {
		crit.JobTypes = append(crit.JobTypes, model.JobType(strings.ToLower(t)))
	}
	for _, t := range c.RemoteTypes {
		crit.RemoteTypes = append(crit.RemoteTypes, model.RemoteType(strings.ToLower(t)))
	}
	return filter.NewCriteriaFilter(crit)
}

func setupDispatcher(cfg config.NotifierConfig, httpClient *http.Client, logger *slog.Logger) respond.Dispatcher {
	switch cfg.Type {
	case "slack":
		logger.Info("using slack dispatcher")
		return respond.NewSlackDispatcher(cfg.WebhookURL, httpClient, logger)
	default:
		return respond.NewLogDispatcher(logger)
	}
}

func createSource(sc config.SourceConfig, httpClient *http.Client, logger *slog.Logger) (fetch.Source, bool) {
	switch sc.Platform {
	case "greenhouse":
		return fetch.NewGreenhouseSource(sc.Name, sc.BoardToken, sc.Name, httpClient), true
	case "lever":
		return fetch.NewLeverSource(sc.Name, sc.BoardToken, sc.Name, httpClient), true
	case "ashby":
		return fetch.NewAshbySource(sc.Name, sc.BoardToken, sc.Name, httpClient), true
	case "file":
		return fetch.NewFileSource(sc.Name, sc.Path), true
	default:
		logger.Warn("unsupported platform, skipping", "source", sc.Name, "platform", sc.Platform)
		return nil, false
	}
}

// buildSources paces every enabled ATS source per platform and retries
// around the pacing, so each attempt waits its turn.
func buildSources(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) []model.Source {
	limiter := ratelimit.NewPlatformLimiter(cfg.Fetch.MinInterval, cfg.Fetch.PlatformIntervals)

	var sources []model.Source
	for _, sc := range cfg.EnabledSources() {
		src, ok := createSource(sc, httpClient, logger)
		if !ok {
			continue
		}
		if sc.Platform != "file" {
			src = ratelimit.NewSource(src, limiter)
			src = retry.NewSource(src, cfg.Fetch.Retries, cfg.Fetch.RetryBaseDelay, logger)
		}
		sources = append(sources, src)
		logger.Debug("registered source", "name", sc.Name, "platform", sc.Platform)
	}
	return sources
}

func setupPublisher(ctx context.Context, cfg config.EventsConfig, logger *slog.Logger) events.Publisher {
	if cfg.RedisURL == "" {
		return events.Nop{}
	}
	p, err := events.NewRedisPublisher(ctx, cfg.RedisURL, cfg.Channel)
	if err != nil {
		logger.Warn("run events disabled", "error", err)
		return events.Nop{}
	}
	return p
}

// app holds everything a pipeline command needs.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     model.JobStore
	filter    model.JobFilter
	orch      *pipeline.Orchestrator
	responder *respond.Responder
	publisher events.Publisher
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	httpClient := &http.Client{Timeout: cfg.Fetch.Timeout}

	norm, err := setupNormalizer(cfg.Normalizer)
	if err != nil {
		return nil, err
	}
	st, err := openStore(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, err
	}
	jobFilter := setupFilter(cfg.Respond.Criteria)

	orch, err := pipeline.New(pipeline.Config{
		Concurrency: pipeline.Concurrency{
			Fetch:     cfg.Pipeline.Concurrency.Fetch,
			Normalize: cfg.Pipeline.Concurrency.Normalize,
			Persist:   cfg.Pipeline.Concurrency.Persist,
		},
		MergePolicy: cfg.Pipeline.DedupMergePolicy,
	}, pipeline.Deps{
		Sources:    buildSources(cfg, httpClient, logger),
		Normalizer: norm,
		Store:      st,
		Filter:     jobFilter,
		Logger:     logger,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		store:     st,
		filter:    jobFilter,
		orch:      orch,
		responder: respond.NewResponder(st, setupDispatcher(cfg.Respond.Notifier, httpClient, logger), jobFilter, logger),
		publisher: setupPublisher(ctx, cfg.Events, logger),
	}, nil
}

func (a *app) Close() {
	if err := a.publisher.Close(); err != nil {
		a.logger.Warn("closing event publisher", "error", err)
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing store", "error", err)
	}
}

// runOnce executes one pipeline run, responds to eligible jobs when
// auto_respond is on, and publishes the run summary.
func (a *app) runOnce(ctx context.Context, in pipeline.Input, sel pipeline.Selection) (pipeline.RunResult, error) {
	res, runErr := a.orch.Run(ctx, in, sel)

	if runErr == nil && a.cfg.Respond.AutoRespond && len(res.Eligible) > 0 {
		if _, err := a.responder.Respond(ctx, res.Eligible, true); err != nil {
			a.logger.Error("respond failed", "run_id", res.RunID, "error", err)
		}
	}

	// Publishing must not be skipped because the run was cancelled.
	pubCtx := context.WithoutCancel(ctx)
	if err := a.publisher.Publish(pubCtx, events.NewSummary(res, runErr)); err != nil {
		a.logger.Warn("publish run summary failed", "run_id", res.RunID, "error", err)
	}
	return res, runErr
}
