package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nethegre/overseer/internal/config"
	"github.com/nethegre/overseer/internal/execution"
	"github.com/nethegre/overseer/internal/history"
	"github.com/nethegre/overseer/internal/httpapi"
	"github.com/nethegre/overseer/internal/observability"
	"github.com/nethegre/overseer/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	archive, err := history.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("history store init failed: %v", err)
	}
	if archive != nil {
		defer archive.Close()
		log.Printf("task history archive: postgres")
	} else {
		log.Printf("task history archive: disabled")
	}

	sup := supervisor.New(supervisor.Config{
		MaxNameAttempts: cfg.NameAttempts,
		SweepInterval:   cfg.SweepInterval,
		NameRetrySleep:  cfg.NameRetrySleep,
	}, metrics, archive)

	runner := execution.NewRunner()
	registerBuiltinJobs(runner)

	api := httpapi.New(cfg, sup, runner, archive, metrics)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	sup.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}

func registerBuiltinJobs(runner *execution.Runner) {
	// sleep: payload is a Go duration, e.g. "250ms".
	mustRegister(runner, "sleep", func(ctx context.Context, payload string) error {
		d, err := time.ParseDuration(strings.TrimSpace(payload))
		if err != nil {
			return fmt.Errorf("sleep payload: %w", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
			return nil
		}
	})

	// echo: logs the payload and completes.
	mustRegister(runner, "echo", func(_ context.Context, payload string) error {
		log.Printf("echo job: %s", strings.TrimSpace(payload))
		return nil
	})

	// fail: always faults, for exercising alerting and the sweeper.
	mustRegister(runner, "fail", func(_ context.Context, payload string) error {
		msg := strings.TrimSpace(payload)
		if msg == "" {
			msg = "requested failure"
		}
		return errors.New(msg)
	})
}

func mustRegister(runner *execution.Runner, kind string, fn execution.JobFunc) {
	if err := runner.Register(kind, fn); err != nil {
		log.Fatalf("register job %q: %v", kind, err)
	}
}
