package container

import (
	"context"
	"fmt"

	"ringstat/adapters/engine"
	"ringstat/adapters/excel"
	"ringstat/adapters/postgres"
	"ringstat/adapters/report"
	"ringstat/adapters/rng"
	"ringstat/app"
	"ringstat/internal"
	"ringstat/internal/api"
	"ringstat/internal/config"
	"ringstat/internal/dataset"
	"ringstat/internal/errors"
	"ringstat/internal/metrics"
	"ringstat/internal/migration"
	"ringstat/internal/trials"
	"ringstat/ports"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Engine is a topology backend serving both diagrams and coordinates
type Engine interface {
	ports.PersistenceEngine
	ports.CoordinateEngine
}

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config

	// Infrastructure
	DB      *sqlx.DB
	Engine  Engine
	Loader  *dataset.Loader
	RNG     ports.RNGPort
	Pool    *trials.Pool
	Metrics *metrics.Metrics
	Hub     *api.ProgressHub
	Server  *api.Server

	// Repositories (optional)
	SweepRepo ports.SweepRepository

	// Services
	Sweeps      *app.SweepService
	Coordinates *app.CoordinateService
	Diagrams    *app.DiagramService

	logger *internal.Logger
}

// New creates a new dependency injection container
func New(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	eng, err := newEngine(cfg.Engine)
	if err != nil {
		return nil, err
	}

	c := &Container{
		Config:  cfg,
		Engine:  eng,
		Loader:  dataset.NewLoader(excel.NewDataReader("")),
		RNG:     rng.New(),
		Metrics: metrics.New(),
		Hub:     api.NewProgressHub(),
		logger:  internal.DefaultLogger.For("Container"),
	}
	c.Pool = trials.NewPool(cfg.Trials.Workers).WithObserver(c.Metrics)
	c.initServices()
	return c, nil
}

func newEngine(cfg config.EngineConfig) (Engine, error) {
	switch cfg.Kind {
	case config.EngineProbe:
		return engine.NewProbe(), nil
	case config.EngineSubprocess:
		return engine.NewSubprocess(cfg.Command, cfg.Args...).WithCoordinatePrime(cfg.CoordinatePrime), nil
	default:
		return nil, errors.ConfigInvalid(fmt.Sprintf("unknown engine kind %q", cfg.Kind))
	}
}

// initServices builds the services over the current infrastructure
func (c *Container) initServices() {
	progress := ports.MultiProgress{c.Metrics, c.Hub}
	c.Sweeps = app.NewSweepService(c.Loader, c.Engine, c.RNG, c.Pool).WithProgress(progress)
	if c.SweepRepo != nil {
		c.Sweeps.WithRepository(c.SweepRepo)
	}
	if c.Config.Reports.XLSX != "" {
		c.Sweeps.WithReports(excel.NewHeatmapReport(c.Config.Reports.XLSX))
	}
	if c.Config.Reports.HTML != "" {
		c.Sweeps.WithReports(report.NewHTMLReport(c.Config.Reports.HTML))
	}
	c.Coordinates = app.NewCoordinateService(c.Loader, c.Engine, c.RNG, c.Pool).WithRetries(c.Config.Trials.Retries)
	c.Diagrams = app.NewDiagramService(c.Loader, c.Engine, c.RNG)
}

// InitDatabase connects to DATABASE_URL, applies migrations and stores every
// finished sweep. Without a URL it does nothing.
func (c *Container) InitDatabase(ctx context.Context) error {
	if c.Config.Database.URL == "" {
		return nil
	}
	db, err := sqlx.ConnectContext(ctx, "postgres", c.Config.Database.URL)
	if err != nil {
		return errors.DatabaseError("failed to connect to database", err)
	}
	return c.InitWithDatabase(ctx, db)
}

// InitWithDatabase initializes components that require database access
func (c *Container) InitWithDatabase(ctx context.Context, db *sqlx.DB) error {
	if db == nil {
		return fmt.Errorf("database connection cannot be nil")
	}
	if err := db.PingContext(ctx); err != nil {
		return errors.DatabaseError("database connection test failed", err)
	}
	if err := migration.NewRunner().Run(ctx, db); err != nil {
		return err
	}

	c.DB = db
	c.SweepRepo = postgres.NewSweepRepository(db)
	c.Sweeps.WithRepository(c.SweepRepo)
	c.logger.Info("Sweep store ready")
	return nil
}

// StartServer serves progress events, status and metrics on addr
func (c *Container) StartServer(addr string) {
	if addr == "" {
		return
	}
	c.Server = api.NewServer(c.Hub, c.Metrics.Registry(), c.SweepRepo)
	c.Server.Start(addr)
	c.logger.Info("Progress server listening on %s", addr)
}

// Shutdown gracefully shuts down all components
func (c *Container) Shutdown(ctx context.Context) error {
	if c.Server != nil {
		if err := c.Server.Shutdown(ctx); err != nil {
			c.logger.Warn("Progress server shutdown: %v", err)
		}
	}
	if c.Hub != nil {
		c.Hub.Close()
	}

	// Close database connection
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
