package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server and reply worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workerCtx, cancelWorker := context.WithCancel(context.Background())
	defer cancelWorker()

	logger := a.logger
	deliverer, err := setupLineClient(a.cfg, logger)
	if err != nil {
		return err
	}
	r, err := buildRelay(ctx, workerCtx, a.cfg, deliverer, logger)
	if err != nil {
		return err
	}
	defer r.Close()

	server := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           r.handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info().
			Str("port", a.cfg.Port).
			Str("delivery_mode", a.cfg.DeliveryMode).
			Bool("ai_enabled", r.gateway.AIEnabled()).
			Msg("relay listening")
		errChan <- server.ListenAndServe()
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server failed")
			serveErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("graceful shutdown failed")
	}
	if err := r.dispatcher.WaitIdle(shutdownCtx); err != nil {
		logger.Warn().
			Err(err).
			Int("queue_depth", r.dispatcher.Depth()).
			Msg("pending jobs abandoned at shutdown")
	}
	logger.Info().
		Int64("processed", r.dispatcher.Processed()).
		Int64("failed", r.dispatcher.Failed()).
		Msg("relay stopped")
	return serveErr
}
