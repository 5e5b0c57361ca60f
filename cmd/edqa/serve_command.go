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

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/krishnaadithya/edqa.ai/internal/config"
	"github.com/krishnaadithya/edqa.ai/internal/httpapi"
	"github.com/krishnaadithya/edqa.ai/internal/jobs"
	"github.com/krishnaadithya/edqa.ai/internal/library"
	"github.com/krishnaadithya/edqa.ai/internal/persistence"
	"github.com/krishnaadithya/edqa.ai/internal/service"
	"github.com/krishnaadithya/edqa.ai/pkg/log"
)

const (
	lockFileName    = "edqa.lock"
	shutdownTimeout = 10 * time.Second
)

type scheduleRunner interface {
	Schedule(ctx context.Context) error
}

type cronRunner interface {
	Start()
	Stop() context.Context
}

type httpRunner interface {
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, job queue and caption scan scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(runCtx, cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	if err := os.MkdirAll(cfg.System.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	lock := flock.New(filepath.Join(cfg.System.DataDir, lockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another edqa server is already using " + cfg.System.DataDir)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Warn("Failed to release lock: %v", err)
		}
	}()

	store, err := persistence.NewSQLiteStore(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()
	if n, err := store.DeleteExpiredTranscripts(ctx, time.Now()); err != nil {
		log.Warn("Failed to prune transcript cache: %v", err)
	} else if n > 0 {
		log.Info("Pruned %d expired transcripts", n)
	}

	scanner := library.NewScanner(cfg.Quiz.CaptionDir)
	processor, err := service.NewProcessor(*cfg,
		service.WithStore(store),
		service.WithQuizWrittenHook(func(string) { scanner.Invalidate() }),
	)
	if err != nil {
		return err
	}

	queue := jobs.NewQueue(cfg.System.JobWorkers, store)
	queue.Start(processor.Execute)
	defer queue.Stop()

	cronEngine := cron.New()
	scheduler := service.NewScheduler(scanner, queue, cronEngine, cfg.Quiz.CronExpr)

	settingsStore, err := config.NewRuntimeSettingsStore(config.RuntimeSettingsFilePath(), cfg.RuntimeSettings())
	if err != nil {
		return fmt.Errorf("runtime settings: %w", err)
	}
	apply := func(next config.RuntimeSettings) error {
		if err := processor.ApplyRuntimeSettings(next); err != nil {
			return err
		}
		return scheduler.ApplyRuntimeSettings(next)
	}

	srv := httpapi.NewServer(processor, queue,
		httpapi.WithUI(cfg.HTTP.UIStaticDir, cfg.HTTP.UIEnabled),
		httpapi.WithLibrary(scanner),
		httpapi.WithKeySegmentStore(store),
		httpapi.WithScheduler(scheduler),
		httpapi.WithRuntimeSettingsStore(settingsStore),
		httpapi.WithRuntimeSettingsApplier(apply),
	)
	return runWithComponents(ctx, cfg, scheduler, cronEngine, srv)
}

// runWithComponents starts the scheduler and the HTTP server and blocks
// until ctx is cancelled or the server fails.
func runWithComponents(ctx context.Context, cfg *config.Config, scheduler scheduleRunner, cronEngine cronRunner, httpSrv httpRunner) error {
	if err := scheduler.Schedule(ctx); err != nil {
		return err
	}
	cronEngine.Start()
	defer func() {
		<-cronEngine.Stop().Done()
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening on %s", cfg.HTTP.Addr)
		errCh <- httpSrv.ListenAndServe(cfg.HTTP.Addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
