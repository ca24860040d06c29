package container

import (
	"context"
	"fmt"
	"os"

	"dataexplorer/adapters/api"
	"dataexplorer/adapters/excel"
	"dataexplorer/adapters/sqlite"
	"dataexplorer/internal"
	"dataexplorer/internal/config"
	"dataexplorer/internal/dataset"
	"dataexplorer/internal/metrics"
	"dataexplorer/internal/session"
	"dataexplorer/internal/workflow"
	"dataexplorer/ports"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Persistence
	SessionRepo ports.SessionRepository
	Sessions    *session.Store

	// Remote analysis
	Client   *api.Client
	Recorder *metrics.Recorder

	Orchestrator *workflow.Orchestrator

	sqliteRepo *sqlite.SessionRepository
}

// New creates a new dependency injection container
func New(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	c := &Container{
		Config: cfg,
		Logger: internal.NewLogger(internal.ParseLogLevel(cfg.Logging.Level)),
	}

	if err := c.initRepositories(); err != nil {
		return nil, fmt.Errorf("failed to initialize repositories: %w", err)
	}

	if err := c.initWorkflow(); err != nil {
		_ = c.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to initialize workflow: %w", err)
	}

	c.Logger.Debug("container initialized: api=%s session_backend=%s", cfg.API.BaseURL, cfg.Storage.SessionBackend)
	return c, nil
}

// initRepositories picks the session repository for the configured backend
func (c *Container) initRepositories() error {
	if err := os.MkdirAll(c.Config.Storage.StateDir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	switch c.Config.Storage.SessionBackend {
	case "sqlite":
		repo, err := sqlite.Open(c.Config.SessionDatabase())
		if err != nil {
			return err
		}
		c.sqliteRepo = repo
		c.SessionRepo = repo
	default:
		blobs, err := session.NewLocalBlobStore(c.Config.BlobDir())
		if err != nil {
			return err
		}
		c.SessionRepo = session.NewBlobRepository(blobs)
	}

	c.Sessions = session.NewStore(c.SessionRepo, c.Logger)
	return nil
}

// initWorkflow wires the analysis client and the orchestrator
func (c *Container) initWorkflow() error {
	client, err := api.NewClient(api.ClientConfig{
		BaseURL:   c.Config.API.BaseURL,
		Timeout:   c.Config.API.HTTPTimeout,
		RateLimit: c.Config.API.RateLimit,
		RateBurst: c.Config.API.RateBurst,
	}, c.Logger)
	if err != nil {
		return err
	}
	c.Client = client
	c.Recorder = metrics.NewRecorder("explorer")

	opts := workflow.Options{
		StageTimeout:     c.Config.Workflow.StageTimeout,
		FeatureThreshold: c.Config.Workflow.FeatureThreshold,
		Preview: dataset.Options{
			Mode:    dataset.ParseMode(c.Config.Preview.CSVMode),
			MaxRows: c.Config.Preview.MaxRows,
		},
	}
	c.Orchestrator = workflow.NewOrchestrator(client, c.Sessions, excel.NewSheetReader(""), c.Recorder, c.Logger, opts)
	return nil
}

// Shutdown cancels in-flight stage requests and releases storage
func (c *Container) Shutdown(ctx context.Context) error {
	if c.Orchestrator != nil {
		c.Orchestrator.Close()
	}

	if c.sqliteRepo != nil {
		return c.sqliteRepo.Close()
	}
	return nil
}
