package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"ledger/internal/amqp"
	"ledger/internal/cli"
	"ledger/internal/config"
	apphttp "ledger/internal/http"
	"ledger/internal/log"
	"ledger/internal/metrics"
	"ledger/internal/services"
	"ledger/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := config.Load()
	logger := cli.SetupLogger(cfg, log.ComponentApp)
	cli.MustValidate(logger, cfg.Validate)

	loc, _ := cfg.Location()
	logger.Info("Starting settlement-worker",
		"timezone", loc.String(),
		"check_interval", cfg.CheckInterval.String(),
		"concurrency", cfg.Concurrency)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	now := func() time.Time { return time.Now().In(loc) }
	recorder := metrics.NewRecorder()
	opts := []services.ProcessorOption{
		services.WithClock(now),
		services.WithConcurrency(cfg.Concurrency),
		services.WithObserver(recorder),
	}

	// Event publishing is optional; settlement never depends on it.
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		opts = append(opts, services.WithPublisher(amqpClient))
		logger.Info("Settlement events enabled", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("Settlement events disabled - no AMQP_URL provided")
	}

	processor := services.NewSettlementProcessor(repo, repo, repo, opts...)
	poller := worker.NewClockPoller(processor, worker.ClockPollerConfig{
		CheckInterval: cfg.CheckInterval,
		Location:      loc,
	})

	ctx, stop := cli.SignalContext()
	defer stop()

	if err := poller.Start(ctx); err != nil {
		logger.Error("Failed to start clock poller", log.FieldError, err)
		os.Exit(1)
	}

	var srv *apphttp.Server
	if cfg.Port != "" {
		srv = apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
			Ready:       repo,
			Settlements: repo,
			Statements:  services.NewStatementService(repo, repo, repo, now),
			Metrics:     recorder.Handler(),
			Logger:      logger.WithComponent(log.ComponentHTTP),
		})
		go func() {
			logger.Info("Status server listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Status server failed", log.FieldError, err)
				stop()
			}
		}()
	}

	<-ctx.Done()
	logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Status server shutdown error", log.FieldError, err)
		}
	}
	// Waits for a pass in flight.
	if err := poller.Stop(shutdownCtx); err != nil {
		logger.Warn("Clock poller did not stop in time", log.FieldError, err)
	}
	logger.Info("settlement-worker stopped")
}
