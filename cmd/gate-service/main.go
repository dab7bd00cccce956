package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"gatescan/internal/checkin"
	"gatescan/internal/config"
	"gatescan/internal/database/migrations"
	"gatescan/internal/gate_api"
	"gatescan/internal/logger"
	"gatescan/internal/queue"
	"gatescan/internal/store"
	"gatescan/internal/syncer"
)

func openDatabase(cfg *config.Config, log *logger.Logger) *bun.DB {
	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.Database.Path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("failed to open sqlite: %v", err))
	}
	if err := sqldb.Ping(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("failed to connect to sqlite: %v", err))
	}
	// Queue writes and validation reads share one file; a single
	// connection sidesteps sqlite writer contention.
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	log.LogDatabase("OPEN", "sqlite", cfg.Database.Path)

	runner := migrations.NewRunner(bunDB, migrations.DefaultOptions())
	if err := runner.Up(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("migrations failed: %v", err))
	}
	return bunDB
}

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.NewLogger(cfg.Database.LogsDir)
	defer log.Close()

	if cfg.Gate.EventSlug == "" {
		log.Fatal("CONFIG", "EVENT_SLUG is required")
	}

	bunDB := openDatabase(cfg, log)
	defer bunDB.Close()

	storeDB := &store.DB{Bun: bunDB}
	queueDB := &queue.DB{Bun: bunDB}
	service := checkin.NewService(storeDB, queueDB, log, cfg.Gate.Name)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Sync.APIToken != "" {
		client, err := syncer.NewClient(cfg.Sync, log)
		if err != nil {
			log.Fatal("SYNC", err.Error())
		}

		if cfg.Sync.DownloadOnStart {
			downloader := &syncer.Downloader{Client: client, Store: storeDB}
			if err := downloader.DownloadEvent(cfg.Gate.EventSlug); err != nil {
				// The cached snapshot keeps the gate working offline.
				log.Warn("SYNC", fmt.Sprintf("initial download failed, using cached data: %v", err))
			}
		}

		coordinator := &syncer.Coordinator{
			Queue:      queueDB,
			Records:    storeDB,
			Uploader:   client,
			Log:        log,
			Interval:   cfg.Sync.UploadEvery,
			MaxBackoff: cfg.Sync.MaxBackoff,
		}
		go coordinator.Run(ctx)
	} else {
		log.Warn("SYNC", "SYNC_API_TOKEN not set, running without upload worker")
	}

	handler := &gate_api.Handler{
		Service:   service,
		Queue:     queueDB,
		Logger:    log,
		EventSlug: cfg.Gate.EventSlug,
	}

	r := chi.NewRouter()
	r.Post("/scan/{listID}", handler.Scan)
	r.Get("/queue/status", handler.QueueStatus)
	r.Get("/healthz", handler.Health)

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("SERVER", fmt.Sprintf("gate service listening on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("SERVER", fmt.Sprintf("server error: %v", err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("SERVER", "shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("SERVER", fmt.Sprintf("shutdown error: %v", err))
	}
}
