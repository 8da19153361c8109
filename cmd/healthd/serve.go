package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/probekit/health"
	"github.com/jonwraymond/probekit/internal/config"
	"github.com/jonwraymond/probekit/internal/server"
	"github.com/jonwraymond/probekit/observe"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the health report over HTTP",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
		defer cancel()
		if err := a.close(shutdownCtx); err != nil {
			a.logger.Error(shutdownCtx, "telemetry shutdown", observe.F("error", err.Error()))
		}
	}()

	handler, err := a.handler(ctx)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: handler,
	}

	serverErr := make(chan error, 1)
	go func() {
		a.logger.Info(ctx, "listening",
			observe.F("address", cfg.Server.Address), observe.F("route", cfg.Server.Route))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info(context.Background(), "shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("HTTP server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error(shutdownCtx, "HTTP server shutdown", observe.F("error", err.Error()))
	}

	a.logger.Info(shutdownCtx, "shutdown complete")
	return nil
}

// handler builds the router for the serve command.
func (a *app) handler(ctx context.Context) (http.Handler, error) {
	resolver, err := a.cfg.Resolver()
	if err != nil {
		return nil, err
	}
	defer resolver.Close()

	authn, err := a.cfg.Authenticator(ctx, resolver)
	if err != nil {
		return nil, err
	}

	opts := health.BuildOptions(a.runner, health.ResponderConfig{
		CacheTTL: a.cfg.Cache.TTL.Duration,
		Logger:   a.logger,
	})
	srv, err := server.New(server.Options{
		Route:         a.cfg.Server.Route,
		LivenessRoute: a.cfg.Server.LivenessRoute,
		MetricsRoute:  a.cfg.Server.MetricsRoute,
		Metrics:       a.cfg.PrometheusEnabled(),
		Health:        opts,
		Authenticator: authn,
		Logger:        a.logger,
	})
	if err != nil {
		return nil, err
	}
	return srv.Router(), nil
}
