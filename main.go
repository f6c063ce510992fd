package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/giygas/ems-interactions-api/config"
	"github.com/giygas/ems-interactions-api/data"
	"github.com/giygas/ems-interactions-api/interactionsparser"
	"github.com/giygas/ems-interactions-api/interfaces"
	"github.com/giygas/ems-interactions-api/logging"
	"github.com/giygas/ems-interactions-api/rulestore"
	"github.com/giygas/ems-interactions-api/scheduler"
	"github.com/giygas/ems-interactions-api/server"
	"github.com/giygas/ems-interactions-api/sessions"
	"github.com/giygas/ems-interactions-api/validation"
)

func loadEnv() {
	if err := godotenv.Load(); err == nil {
		return
	}

	// Fall back to a .env next to the executable
	ex, err := os.Executable()
	if err != nil {
		return
	}
	_ = godotenv.Load(filepath.Join(filepath.Dir(ex), ".env"))
}

func main() {
	loadEnv()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := logging.InitLogger(logging.Options{
		Dir:            "logs",
		Env:            cfg.Env,
		Level:          cfg.LogLevel,
		RetentionWeeks: cfg.LogRetentionWeeks,
		MaxFileSize:    cfg.MaxLogFileSize,
	}); err != nil {
		logging.Warn("File logging disabled", "error", err)
	}
	defer logging.Close()

	if err := run(cfg); err != nil {
		logging.Error("Server stopped with error", "error", err)
		logging.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// The rule store is opened only when it is the live rules source
	var ruleStore interfaces.RuleStore
	switch {
	case cfg.RulesSource == config.SourcePostgres:
		pool, err := openRuleStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		repo := rulestore.NewRepository(pool)
		if _, err := interactionsparser.SeedStore(ctx, repo); err != nil {
			return err
		}
		ruleStore = repo
	case cfg.DatabaseURL != "":
		logging.Warn("DATABASE_URL is ignored unless RULES_SOURCE=postgres", "rules_source", cfg.RulesSource)
	}

	sessionStore, closeSessions, err := openSessionStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSessions()

	dataContainer := data.NewDataContainer()
	dataContainer.SetServerStartTime(time.Now())

	parser := interactionsparser.NewInteractionsParser(cfg.RulesSource, cfg.CatalogSource, ruleStore)
	sched := scheduler.NewScheduler(dataContainer, parser, validation.NewDataValidator(cfg.MaxSelection), cfg.RulesRefreshAt)
	if err := sched.Start(); err != nil {
		return err
	}
	defer sched.Stop()

	srv := server.NewServer(cfg, dataContainer, sessionStore, ruleStore, sched.Refresh)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server failed to start: %w", err)
		}
		return nil
	case sig := <-quit:
		logging.Info("Received shutdown signal", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	return srv.Shutdown(shutdownCtx)
}

func openRuleStore(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := rulestore.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := rulestore.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	logging.Info("Rule store connected")
	return pool, nil
}

// openSessionStore picks Redis when REDIS_URL is set, process memory otherwise
func openSessionStore(ctx context.Context, cfg *config.Config) (interfaces.SessionStore, func(), error) {
	if cfg.RedisURL == "" {
		logging.Info("Using in-memory selection sessions", "ttl", cfg.SessionTTL.String())
		return sessions.NewMemoryStore(cfg.SessionTTL), func() {}, nil
	}

	client, err := sessions.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	logging.Info("Using Redis selection sessions", "ttl", cfg.SessionTTL.String())
	return sessions.NewRedisStore(client, cfg.SessionTTL), func() { _ = client.Close() }, nil
}
