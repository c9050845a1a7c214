package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/enesbasbug/async-translator/internal/cli"
	"github.com/enesbasbug/async-translator/internal/config"
	"github.com/enesbasbug/async-translator/internal/db"
	"github.com/enesbasbug/async-translator/internal/events"
	"github.com/enesbasbug/async-translator/internal/langdetect"
	"github.com/enesbasbug/async-translator/internal/logging"
	"github.com/enesbasbug/async-translator/internal/prompt"
	"github.com/enesbasbug/async-translator/internal/redisstore"
	"github.com/enesbasbug/async-translator/internal/tasks"
	"github.com/enesbasbug/async-translator/internal/translation"
)

// taskStore is a tasks.Store that can also report its health.
type taskStore interface {
	tasks.Store
	Ping(ctx context.Context) error
}

// loadRuntime applies the env file, loads config and builds the logger.
// It prints its own diagnostics and returns a non-zero exit code on failure.
// The returned close func flushes the optional log file and is never nil.
func loadRuntime(envLoader *cli.EnvLoader) (*config.Config, zerolog.Logger, func(), int) {
	noop := func() {}
	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, zerolog.Nop(), noop, 1
	}

	logger, closeLog, err := logging.NewWithFile(cfg.Environment, cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return nil, zerolog.Nop(), noop, 1
	}
	return cfg, logger, func() { _ = closeLog() }, 0
}

// openStore connects the backend selected by STORE_BACKEND. The returned
// close func is never nil.
func openStore(ctx context.Context, cfg *config.Config) (taskStore, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreBackendRedis:
		client, err := redisstore.NewClient(ctx, redisstore.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, func() {}, fmt.Errorf("connect redis: %w", err)
		}
		return redisstore.New(client), func() { _ = client.Close() }, nil
	default:
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			return nil, func() {}, fmt.Errorf("connect database: %w", err)
		}
		return pool, func() { _ = pool.Close() }, nil
	}
}

// newOrchestrator wires prompt template, translation client, worker pool and
// the optional NATS publisher around store. The returned close func drains
// the NATS connection; callers shut the pool down themselves.
func newOrchestrator(cfg *config.Config, store tasks.Store, logger zerolog.Logger) (*tasks.Orchestrator, *tasks.Pool, func(), error) {
	builder, err := loadPrompt(cfg.PromptTemplatePath)
	if err != nil {
		return nil, nil, func() {}, err
	}

	client := translation.NewClient(translation.Options{
		BaseURL: cfg.OpenAIBaseURL,
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.OpenAIModel,
		Timeout: cfg.TranslationTimeout,
	}, logger)

	closeEvents := func() {}
	var notifier tasks.Notifier
	if cfg.EventsEnabled() {
		nc, err := events.Connect(events.Config{URL: cfg.NATSURL})
		if err != nil {
			return nil, nil, closeEvents, err
		}
		closeEvents = func() { _ = nc.Drain() }
		notifier = events.NewPublisher(nc, cfg.NATSSubjectPrefix)
		logger.Info().Str("url", cfg.NATSURL).Str("subject_prefix", cfg.NATSSubjectPrefix).Msg("task events enabled")
	}

	pool := tasks.NewPool(cfg.WorkerConcurrency, logger)
	orchestrator, err := tasks.NewOrchestrator(tasks.Dependencies{
		Store:          store,
		Prompts:        builder,
		Translator:     client,
		Pool:           pool,
		Notifier:       notifier,
		DetectLanguage: langdetect.DetectISO6391,
		Logger:         logger,
	})
	if err != nil {
		closeEvents()
		return nil, nil, func() {}, err
	}

	logger.Info().
		Str("model", client.ModelName()).
		Str("prompt", builder.Name()).
		Int("workers", cfg.WorkerConcurrency).
		Msg("translation orchestrator ready")
	return orchestrator, pool, closeEvents, nil
}

func loadPrompt(path string) (*prompt.Builder, error) {
	var (
		builder *prompt.Builder
		err     error
	)
	if strings.TrimSpace(path) == "" {
		builder, err = prompt.Default()
	} else {
		builder, err = prompt.Load(path)
	}
	if err != nil {
		return nil, fmt.Errorf("load prompt template: %w", err)
	}
	if err := builder.Validate(); err != nil {
		return nil, fmt.Errorf("validate prompt template: %w", err)
	}
	return builder, nil
}
