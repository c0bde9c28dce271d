package container

import (
	"context"
	"fmt"

	"merlt/adapters/excel"
	"merlt/adapters/postgres"
	"merlt/app"
	"merlt/internal"
	"merlt/internal/aggregation"
	"merlt/internal/authority"
	"merlt/internal/bias"
	"merlt/internal/config"
	"merlt/internal/synthesis"
	"merlt/ports"

	"github.com/jmoiron/sqlx"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config

	// Infrastructure
	DB *sqlx.DB

	// Repositories (data access layer)
	EvaluatorRepo ports.EvaluatorRepository
	VoteRepo      ports.VoteRepository
	ConsensusRepo ports.ConsensusRepository
	BiasRepo      ports.BiasReportRepository
	SessionRepo   ports.SessionRepository

	// Engines
	Tracker     *authority.Tracker
	Engine      *aggregation.Engine
	Auditor     *bias.Auditor
	Synthesizer *synthesis.Synthesizer

	// Services
	Reviews  *app.ReviewService
	Sessions *app.SessionService

	logger *internal.Logger
}

// New creates a new dependency injection container
func New(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	return &Container{
		Config: cfg,
		logger: internal.DefaultLogger.Component("Container"),
	}, nil
}

// InitWithDatabase initializes components that require database access
func (c *Container) InitWithDatabase(db *sqlx.DB) error {
	if db == nil {
		return fmt.Errorf("database connection cannot be nil")
	}

	c.DB = db
	if err := db.Ping(); err != nil {
		return fmt.Errorf("database connection test failed: %w", err)
	}

	c.initRepositories()
	c.initEngines()
	c.initServices()

	c.logger.Info("container initialized with database connection")
	return nil
}

func (c *Container) initRepositories() {
	c.EvaluatorRepo = postgres.NewEvaluatorRepository(c.DB)
	c.VoteRepo = postgres.NewVoteRepository(c.DB)
	c.ConsensusRepo = postgres.NewConsensusRepository(c.DB)
	c.BiasRepo = postgres.NewBiasReportRepository(c.DB)
	c.SessionRepo = postgres.NewSessionRepository(c.DB)
}

func (c *Container) initEngines() {
	c.Tracker = authority.NewTracker(c.Config.Authority)
	c.Engine = aggregation.NewEngine(c.Config.Consensus.Rules)
	c.Auditor = bias.NewAuditor(c.Config.Bias)
	c.Synthesizer = synthesis.NewSynthesizer(
		c.Config.Session.DivergenceEntropy,
		synthesis.NewReliabilityTracker(c.Config.Authority.TrackRecordDecay),
	)
}

func (c *Container) initServices() {
	c.Reviews = app.NewReviewService(
		c.Tracker, c.Engine, c.Auditor,
		c.EvaluatorRepo, c.VoteRepo, c.ConsensusRepo, c.BiasRepo)
	c.Sessions = app.NewSessionService(c.Config.Session, c.Synthesizer, c.SessionRepo)
}

// WarmAuthorityArena loads persisted evaluators into the in-memory authority
// arena. Called once at startup so restarts do not reset weights to neutral.
func (c *Container) WarmAuthorityArena(ctx context.Context) error {
	evaluators, err := c.EvaluatorRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load evaluators: %w", err)
	}
	for _, e := range evaluators {
		c.Tracker.Register(e)
	}
	c.logger.Info("authority arena warmed with %d evaluators", len(evaluators))
	return nil
}

// ImportRoster registers evaluators from the configured roster file. Rows
// for already-registered evaluators are skipped, so re-running import after
// roster updates only adds the new entries.
func (c *Container) ImportRoster(ctx context.Context) error {
	if c.Config.Paths.RosterFile == "" {
		return nil
	}

	roster, err := excel.NewRosterReader(c.Config.Paths.RosterFile).Read()
	if err != nil {
		return fmt.Errorf("roster import failed: %w", err)
	}

	imported := 0
	for _, evaluator := range roster {
		if c.Tracker.Known(evaluator.ID) {
			continue
		}
		if err := c.Reviews.RegisterEvaluator(ctx, evaluator); err != nil {
			c.logger.Warn("skipping roster entry %s: %v", evaluator.ID, err)
			continue
		}
		imported++
	}
	c.logger.Info("imported %d evaluators from roster %s", imported, c.Config.Paths.RosterFile)
	return nil
}

// Shutdown gracefully releases container resources
func (c *Container) Shutdown(ctx context.Context) error {
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}
	c.logger.Info("container shutdown complete")
	return nil
}
