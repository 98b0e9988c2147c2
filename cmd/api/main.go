package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/brokerage-service/internal/config"
	"github.com/Dan9191/brokerage-service/internal/handler"
	"github.com/Dan9191/brokerage-service/internal/integrations/nav"
	"github.com/Dan9191/brokerage-service/internal/logger"
	"github.com/Dan9191/brokerage-service/internal/metrics"
	"github.com/Dan9191/brokerage-service/internal/repository"
	"github.com/Dan9191/brokerage-service/internal/repository/memory"
	"github.com/Dan9191/brokerage-service/internal/repository/postgres"
	"github.com/Dan9191/brokerage-service/internal/scheduler"
	"github.com/Dan9191/brokerage-service/internal/service"
	"github.com/Dan9191/brokerage-service/internal/systematic"
	"github.com/Dan9191/brokerage-service/internal/utils/email"
)

func main() {
	// Initialize logger
	log := logger.New(os.Getenv("LOG_LEVEL"))

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	store, health, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer closeStore()

	// Initialize layers
	collector := metrics.NewCollector()
	deps := systematic.Deps{
		Plans:   store,
		Ledger:  store,
		Logs:    store,
		Prices:  nav.NewClient(cfg, log),
		Metrics: collector,
		Logger:  log,
	}
	if cfg.NotificationsEnabled() {
		deps.Notifier = email.NewSender(cfg, store, log)
	}
	engine := systematic.New(deps, systematic.Options{
		Workers:        cfg.ExecutionWorkers,
		StaleLockAfter: cfg.StaleLockAfter,
		PriceTimeout:   cfg.PriceTimeout,
	})

	svc := service.NewService(engine, store, store, log, cfg)
	h := handler.NewHandler(svc, health, log)
	r := handler.NewRouter(h, cfg, collector.Handler())

	// Schedule daily run
	if cfg.CronEnabled {
		runner := scheduler.New(ctx, engine, cfg.Location(), log)
		if err := runner.Schedule(cfg.CronSpec); err != nil {
			log.Fatalf("Failed to schedule execution run: %v", err)
		}
		runner.Start()
		defer runner.Stop()
	}

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}
	go func() {
		log.Infof("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server shutdown failed: %v", err)
	}
}

// openStore connects the configured storage driver
func openStore(ctx context.Context, cfg *config.Config, log *logrus.Logger) (repository.Store, handler.HealthCheck, func(), error) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		log.Warn("Using in-memory storage, state is lost on restart")
		return memory.NewStore(), nil, func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.DBConn)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}
	db.SetMaxOpenConns(cfg.ExecutionWorkers * 2)

	repo := postgres.NewRepository(db)
	if cfg.DBMigrate {
		if err := repo.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		log.Info("Database schema applied")
	}
	return repo, db.PingContext, func() { db.Close() }, nil
}
