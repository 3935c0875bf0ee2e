package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Biomolecular-Design-Nexus/boltz-mcp/internal/api"
	"github.com/Biomolecular-Design-Nexus/boltz-mcp/internal/audit"
	"github.com/Biomolecular-Design-Nexus/boltz-mcp/internal/config"
	"github.com/Biomolecular-Design-Nexus/boltz-mcp/internal/jobs"
	"github.com/Biomolecular-Design-Nexus/boltz-mcp/internal/predict"
	"github.com/Biomolecular-Design-Nexus/boltz-mcp/internal/storage"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, using environment as-is")
	}

	cfg, err := config.Load(os.Getenv("BOLTZ_CONFIG_FILE"))
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	trail, err := audit.Open(cfg.AuditFile)
	if err != nil {
		logger.Error("open audit trail", "error", err)
		os.Exit(1)
	}

	registry := jobs.NewRegistry()
	registry.SetObserver(func(rec jobs.Record) {
		ev := audit.Event{
			JobID:    rec.ID,
			JobName:  rec.Name,
			Status:   string(rec.Status),
			ExitCode: rec.ExitCode,
			Detail:   rec.Error,
		}
		if err := trail.Append(ev); err != nil {
			logger.Warn("append audit event", "job_id", rec.ID, "error", err)
		}
	})

	logs := storage.NewLogStore(cfg.LogDir)
	executor := jobs.NewExecutor(registry, logs, jobs.ExecutorOptions{
		MaxRunning:  cfg.MaxRunningJobs,
		GracePeriod: cfg.CancelGracePeriod,
		Logger:      logger,
	})
	manager := jobs.NewManager(registry, executor, logs, logger)
	manager.SetResultHook(func(rec jobs.Record, res *jobs.Result) {
		if rec.OutputDir == "" {
			return
		}
		report, err := predict.ScanOutputs(rec.OutputDir)
		if err != nil {
			logger.Warn("scan job outputs", "job_id", rec.ID, "error", err)
			return
		}
		res.OutputFiles = report
	})

	builder := &predict.Builder{
		ScriptsDir:     cfg.ScriptsDir,
		WorkDir:        cfg.WorkDir,
		DefaultTimeout: cfg.DefaultJobTimeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go manager.SweepLoop(ctx, cfg.SweepInterval, cfg.LogRetention)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: api.NewServer(manager, builder, cfg.ExamplesDir, logger).Router(),
	}

	go func() {
		logger.Info("boltz-mcp server listening", "addr", cfg.ListenAddr, "scripts_dir", cfg.ScriptsDir)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	cancel()
	logger.Info("server exited")
}
