package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonwraymond/probekit/health"
	_ "github.com/jonwraymond/probekit/health/fixtures"
	"github.com/jonwraymond/probekit/internal/config"
	"github.com/jonwraymond/probekit/internal/version"
	"github.com/jonwraymond/probekit/observe"
)

// app holds everything built from one config.
type app struct {
	cfg      *config.Config
	observer observe.Observer
	logger   observe.Logger
	runner   *health.Runner
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	obs, err := observe.NewObserver(ctx, cfg.ObserveConfig(version.Version))
	if err != nil {
		return nil, fmt.Errorf("observability: %w", err)
	}
	a := &app{cfg: cfg, observer: obs, logger: obs.Logger()}

	mw, err := observe.MiddlewareFromObserver(obs)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, fmt.Errorf("observability: %w", err)
	}

	sources, err := a.sources()
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, err
	}

	regCfg, err := cfg.RegistryConfig(a.logger)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, err
	}
	reg, err := health.Discover(sources, regCfg)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, fmt.Errorf("discovery: %w", err)
	}
	a.logger.Info(ctx, "probes discovered", observe.F("count", reg.Len()), observe.F("names", reg.Names()))

	runCfg, err := cfg.RunnerConfig(mw, a.logger)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, err
	}
	a.runner = health.NewRunner(reg, runCfg)
	return a, nil
}

// sources returns the compiled-in catalog followed by any plugins.
func (a *app) sources() ([]health.Source, error) {
	sources := health.DefaultCatalog.Sources()
	if a.cfg.Discovery.PluginDir == "" {
		return sources, nil
	}
	plugins, err := health.PluginSources(a.cfg.Discovery.PluginDir)
	if errors.Is(err, health.ErrPluginsUnsupported) {
		a.logger.Warn(context.Background(), "plugin discovery unavailable on this build",
			observe.F("plugin_dir", a.cfg.Discovery.PluginDir))
		return sources, nil
	}
	if err != nil {
		return nil, fmt.Errorf("discovery: %w", err)
	}
	return append(sources, plugins...), nil
}

func (a *app) close(ctx context.Context) error {
	return a.observer.Shutdown(ctx)
}
