package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tdadiffusion/adapters/api"
	"tdadiffusion/adapters/db/postgres/migrations"
	"tdadiffusion/adapters/excel"
	"tdadiffusion/adapters/memory"
	"tdadiffusion/adapters/postgres"
	"tdadiffusion/app"
	"tdadiffusion/internal"
	"tdadiffusion/internal/config"
	engine "tdadiffusion/internal/diffusion"
	"tdadiffusion/ports"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "api:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := internal.NewLogger(internal.ParseLogLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := setupRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	svc := app.NewAnalysisService(
		engine.NewEngine(cfg.Analysis.EngineOptions(), logger),
		repo,
		excel.NewDataReader(excel.DefaultConfig(), logger),
		logger,
	)
	defaults := api.DefaultDefaults()
	defaults.ThicknessCM = cfg.Analysis.DefaultThicknessCM
	defaults.Material = cfg.Analysis.DefaultMaterial

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           api.NewServer(svc, defaults, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting API server on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// setupRepository connects to PostgreSQL and applies pending migrations, or
// falls back to the in-memory repository when DATABASE_URL is unset
func setupRepository(ctx context.Context, cfg *config.Config, logger *internal.Logger) (ports.AnalysisRepository, func(), error) {
	if !cfg.Database.Enabled() {
		logger.Warn("DATABASE_URL not set, analyses are kept in memory only")
		return memory.NewAnalysisRepository(), func() {}, nil
	}

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	applied, err := migrations.NewMigrator(db.DB, logger).Up(ctx)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to apply migrations: %w", err)
	}
	if len(applied) > 0 {
		logger.Info("applied migrations: %v", applied)
	}
	return postgres.NewAnalysisRepository(db), func() { db.Close() }, nil
}
