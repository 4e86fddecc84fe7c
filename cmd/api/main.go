package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/dondada876/ASEAGI-sub001/internal/adapters/http"
	"github.com/dondada876/ASEAGI-sub001/internal/bootstrap"
	"github.com/dondada876/ASEAGI-sub001/internal/config"
	"github.com/dondada876/ASEAGI-sub001/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.Setup("intake-api", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	limiter := httpadapter.NewSubmitLimiter(cfg.SubmitRatePerSecond, cfg.SubmitRateBurst)
	router := httpadapter.NewRouter(
		app.SubmitUC,
		app.DispatchUC,
		app.Ledger,
		app.Metrics,
		app.RuleSvc,
		limiter,
	).Handler()

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("api server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown error", "error", err)
	}
}
