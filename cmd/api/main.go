package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"merlt/adapters/heuristic"
	"merlt/internal/config"
	"merlt/internal/container"
	"merlt/internal/errors"
	"merlt/internal/migration"
	"merlt/ui"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	// Load .env if present; real env vars win
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	db, err := initDatabase(cfg)
	if err != nil {
		log.Fatalf("Database initialization failed: %v", err)
	}

	c, err := container.New(cfg)
	if err != nil {
		log.Fatalf("Container creation failed: %v", err)
	}
	if err := c.InitWithDatabase(db); err != nil {
		log.Fatalf("Container initialization failed: %v", err)
	}

	ctx := context.Background()
	if err := c.WarmAuthorityArena(ctx); err != nil {
		log.Fatalf("Failed to warm authority arena: %v", err)
	}
	if err := c.ImportRoster(ctx); err != nil {
		log.Printf("Roster import skipped: %v", err)
	}

	// Graceful shutdown on SIGINT/SIGTERM
	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		<-sigs

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
		os.Exit(0)
	}()

	server := ui.NewApp(c.Reviews, c.Sessions, heuristic.NewPanel())
	if err := server.Start(cfg.Server.Port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// initDatabase connects to PostgreSQL and runs schema migrations
func initDatabase(cfg *config.Config) (*sqlx.DB, error) {
	if cfg.Database.URL == "" {
		return nil, errors.ConfigInvalid("DATABASE_URL is required")
	}

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping database")
	}

	runner := migration.NewRunner()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := runner.Run(ctx, db); err != nil {
		return nil, errors.Wrap(err, "database migration failed")
	}
	log.Printf("Database schema up to date (migration version %s)", runner.Version())

	return db, nil
}
