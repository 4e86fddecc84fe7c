package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dondada876/ASEAGI-sub001/internal/bootstrap"
	"github.com/dondada876/ASEAGI-sub001/internal/config"
	"github.com/dondada876/ASEAGI-sub001/internal/core/domain"
	"github.com/dondada876/ASEAGI-sub001/internal/observability/logging"
	"github.com/dondada876/ASEAGI-sub001/internal/observability/metrics"
)

const serviceName = "intake-worker"

func main() {
	cfg := config.Load()
	logger := logging.Setup(serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	pipeline := metrics.NewPipelineMetrics(serviceName)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return runAssessmentSubscriber(groupCtx, app, pipeline)
	})

	for i := 0; i < cfg.WorkerCount; i++ {
		workerID := fmt.Sprintf("worker-%s", uuid.NewString()[:8])
		group.Go(func() error {
			runAnalysisWorker(groupCtx, app, pipeline, workerID)
			return nil
		})
	}

	group.Go(func() error {
		runStaleSweeper(groupCtx, app)
		return nil
	})
	group.Go(func() error {
		runQueueDepthGauge(groupCtx, app, pipeline)
		return nil
	})
	group.Go(func() error {
		return runMetricsServer(groupCtx, cfg.WorkerMetricsPort, pipeline)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", "error", err)
		os.Exit(1)
	}
}

func runAssessmentSubscriber(ctx context.Context, app *bootstrap.App, pipeline *metrics.PipelineMetrics) error {
	slog.Info("assessment subscriber started", "subject", app.Config.NATSSubject)
	return app.Bus.SubscribeSubmissionAccepted(ctx, func(handlerCtx context.Context, journalID int64) error {
		assessCtx, cancel := context.WithTimeout(handlerCtx, 2*time.Minute)
		defer cancel()

		started := time.Now()
		err := app.AssessUC.AssessByID(assessCtx, journalID)
		disposition := "assessed"
		if err != nil {
			disposition = "error"
		}
		pipeline.ObserveAssessment(serviceName, disposition, time.Since(started))
		return err
	})
}

func runAnalysisWorker(ctx context.Context, app *bootstrap.App, pipeline *metrics.PipelineMetrics, workerID string) {
	slog.Info("analysis worker started", "worker_id", workerID)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		item, err := app.DispatchUC.ClaimNext(ctx, workerID)
		if err != nil {
			if !domain.IsKind(err, domain.ErrQueueEmpty) {
				slog.Warn("claim failed", "worker_id", workerID, "error", err)
			}
			sleep(ctx, app.Config.WorkerPollInterval())
			continue
		}

		pipeline.ObserveQueueLag(serviceName, time.Since(item.EnqueuedAt))
		pipeline.StartAnalysis()
		started := time.Now()
		err = app.DispatchUC.AnalyzeClaimed(ctx, item)
		pipeline.FinishAnalysis(serviceName, time.Since(started), err)
		if err != nil {
			slog.Warn("analysis failed", "worker_id", workerID, "journal_id", item.JournalID, "error", err)
		}
	}
}

func runStaleSweeper(ctx context.Context, app *bootstrap.App) {
	ticker := time.NewTicker(app.Config.SweepInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			swept, err := app.DispatchUC.SweepStale(ctx)
			if err != nil {
				slog.Warn("stale sweep failed", "error", err)
				continue
			}
			if swept > 0 {
				slog.Info("stale items swept", "count", swept)
			}
		}
	}
}

func runQueueDepthGauge(ctx context.Context, app *bootstrap.App, pipeline *metrics.PipelineMetrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			depth, err := app.Queue.Depth(ctx)
			if err != nil {
				slog.Warn("queue depth read failed", "error", err)
				continue
			}
			pipeline.SetQueueDepth(depth)
		}
	}
}

func runMetricsServer(ctx context.Context, port string, pipeline *metrics.PipelineMetrics) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", pipeline.Handler())

	server := &http.Server{
		Addr:        ":" + port,
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
