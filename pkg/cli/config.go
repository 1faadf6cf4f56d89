package cli

import (
	"context"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/t3rn/pkg/adapter"
	"github.com/m-mizutani/t3rn/pkg/catalog"
	"github.com/m-mizutani/t3rn/pkg/model"
	"github.com/m-mizutani/t3rn/pkg/repository"
	"github.com/m-mizutani/t3rn/pkg/usecase/seed"
	"github.com/m-mizutani/t3rn/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// config holds configuration values
type config struct {
	// Logging
	logLevel  string
	logFormat string

	// Repository
	project  string
	database string
	seedFile string

	// Adapters
	geminiProject   string
	geminiLocation  string
	geminiModel     string
	embeddingModel  string
	embeddingDim    int64
	anthropicAPIKey string
	claudeModel     string
	bucket          string

	// Static data and rules
	catalogPath string
	rulesPath   string
	policyDir   string
	mcpConfig   string

	// Turn limits
	modelTimeout time.Duration
	toolTimeout  time.Duration
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("T3RN_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (console, json)",
			Value:       string(logging.FormatConsole),
			Sources:     cli.EnvVars("T3RN_LOG_FORMAT"),
			Destination: &cfg.logFormat,
		},
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID of the Firestore knowledge store",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.database,
		},
		&cli.StringFlag{
			Name:        "seed-file",
			Usage:       "Seed YAML loaded into an in-memory knowledge store when no project is set",
			Sources:     cli.EnvVars("T3RN_SEED_FILE"),
			Destination: &cfg.seedFile,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Gemini generative model",
			Sources:     cli.EnvVars("GEMINI_MODEL"),
			Destination: &cfg.geminiModel,
		},
		&cli.StringFlag{
			Name:        "embedding-model",
			Usage:       "Gemini embedding model",
			Sources:     cli.EnvVars("GEMINI_EMBEDDING_MODEL"),
			Destination: &cfg.embeddingModel,
		},
		&cli.IntFlag{
			Name:        "embedding-dimension",
			Usage:       "Embedding dimensionality used when seeding knowledge",
			Value:       768,
			Sources:     cli.EnvVars("T3RN_EMBEDDING_DIMENSION"),
			Destination: &cfg.embeddingDim,
		},
		&cli.StringFlag{
			Name:        "anthropic-api-key",
			Usage:       "Anthropic API key. When set, the fallback agent answers with Claude",
			Sources:     cli.EnvVars("ANTHROPIC_API_KEY"),
			Destination: &cfg.anthropicAPIKey,
		},
		&cli.StringFlag{
			Name:        "claude-model",
			Usage:       "Claude model for the fallback agent",
			Sources:     cli.EnvVars("T3RN_CLAUDE_MODEL"),
			Destination: &cfg.claudeModel,
		},
	}
}

// agentFlags returns flags for the turn flow: static data, rules and limits
func agentFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "catalog",
			Usage:       "Game catalog YAML (local path or gs://bucket/object)",
			Sources:     cli.EnvVars("T3RN_CATALOG"),
			Destination: &cfg.catalogPath,
		},
		&cli.StringFlag{
			Name:        "bucket",
			Usage:       "Cloud Storage bucket for session archives",
			Sources:     cli.EnvVars("T3RN_BUCKET"),
			Destination: &cfg.bucket,
		},
		&cli.StringFlag{
			Name:        "screen-rules",
			Usage:       "Screen injection rules YAML, merged over the built-in rules",
			Sources:     cli.EnvVars("T3RN_SCREEN_RULES"),
			Destination: &cfg.rulesPath,
		},
		&cli.StringFlag{
			Name:        "screen-policy",
			Usage:       "Directory of Rego policies deciding screen injection",
			Sources:     cli.EnvVars("T3RN_SCREEN_POLICY"),
			Destination: &cfg.policyDir,
		},
		&cli.StringFlag{
			Name:        "mcp-config",
			Usage:       "MCP server configuration YAML",
			Sources:     cli.EnvVars("T3RN_MCP_CONFIG"),
			Destination: &cfg.mcpConfig,
		},
		&cli.DurationFlag{
			Name:        "model-timeout",
			Usage:       "Timeout of one model call",
			Value:       60 * time.Second,
			Sources:     cli.EnvVars("T3RN_MODEL_TIMEOUT"),
			Destination: &cfg.modelTimeout,
		},
		&cli.DurationFlag{
			Name:        "tool-timeout",
			Usage:       "Timeout of one tool call",
			Value:       30 * time.Second,
			Sources:     cli.EnvVars("T3RN_TOOL_TIMEOUT"),
			Destination: &cfg.toolTimeout,
		},
	}
}

// setupLogger installs the configured logger as default and into ctx
func (cfg *config) setupLogger(ctx context.Context) context.Context {
	logger := logging.NewWithFormat(cfg.logLevel, logging.Format(cfg.logFormat), os.Stderr)
	logging.SetDefault(logger)
	return logging.With(ctx, logger)
}

// newRepository returns Firestore when a project is set, otherwise an in-memory store filled
// from the seed file
func (cfg *config) newRepository(ctx context.Context, gemini adapter.Gemini) (repository.Repository, func(), error) {
	if cfg.project != "" {
		repo, err := cfg.newFirestore()
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { _ = repo.Close() }, nil
	}

	repo := repository.NewMemory()
	if cfg.seedFile != "" {
		s, err := repository.LoadSeed(cfg.seedFile)
		if err != nil {
			return nil, nil, err
		}
		if _, err := seed.Apply(ctx, repo, gemini, s, int(cfg.embeddingDim)); err != nil {
			return nil, nil, goerr.Wrap(err, "failed to seed in-memory repository")
		}
	}
	logging.From(ctx).Warn("no project set, using in-memory knowledge store", "seed", cfg.seedFile)
	return repo, func() {}, nil
}

// newFirestore creates the Firestore repository, which is required
func (cfg *config) newFirestore() (*repository.Firestore, error) {
	if cfg.project == "" {
		return nil, goerr.New("project is required")
	}
	if cfg.database == "" {
		return nil, goerr.New("database is required")
	}
	repo, err := repository.New(cfg.project, cfg.database)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create repository")
	}
	return repo, nil
}

// newGemini creates a new Gemini adapter instance
func (cfg *config) newGemini(ctx context.Context) (adapter.Gemini, error) {
	if cfg.geminiProject == "" {
		return nil, goerr.New("gemini-project is required")
	}
	if cfg.geminiLocation == "" {
		return nil, goerr.New("gemini-location is required")
	}

	var opts []adapter.GeminiOption
	if cfg.geminiModel != "" {
		opts = append(opts, adapter.WithGenerativeModel(cfg.geminiModel))
	}
	if cfg.embeddingModel != "" {
		opts = append(opts, adapter.WithEmbeddingModel(cfg.embeddingModel))
	}

	gemini, err := adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Gemini client")
	}
	return gemini, nil
}

// newClaude returns nil when no API key is configured
func (cfg *config) newClaude() adapter.Claude {
	if cfg.anthropicAPIKey == "" {
		return nil
	}
	var opts []adapter.ClaudeOption
	if cfg.claudeModel != "" {
		opts = append(opts, adapter.WithClaudeModel(cfg.claudeModel))
	}
	return adapter.NewClaude(cfg.anthropicAPIKey, opts...)
}

// newStorage returns nil when no bucket is configured
func (cfg *config) newStorage(ctx context.Context) (adapter.Storage, error) {
	if cfg.bucket == "" {
		return nil, nil
	}

	storage, err := adapter.NewStorage(ctx, cfg.bucket)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage")
	}
	return storage, nil
}

// newCatalog loads the static game catalog once
func (cfg *config) newCatalog(ctx context.Context) (*model.Catalog, error) {
	return catalog.Load(ctx, cfg.catalogPath, adapter.NewStorage)
}
