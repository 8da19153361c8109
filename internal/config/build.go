package config

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/jonwraymond/probekit/auth"
	"github.com/jonwraymond/probekit/health"
	"github.com/jonwraymond/probekit/observe"
	"github.com/jonwraymond/probekit/resilience"
	"github.com/jonwraymond/probekit/secret"
)

// RegistryConfig converts the discovery section.
func (c *Config) RegistryConfig(logger observe.Logger) (health.RegistryConfig, error) {
	strategy, err := health.ParseStrategy(c.Discovery.Strategy)
	if err != nil {
		return health.RegistryConfig{}, err
	}
	policy, err := health.ParseCollisionPolicy(c.Discovery.OnCollision)
	if err != nil {
		return health.RegistryConfig{}, err
	}

	rc := health.RegistryConfig{
		Strategy:    strategy,
		Primary:     c.Discovery.Primary,
		OnCollision: policy,
		Logger:      logger,
	}
	if len(c.Discovery.ExcludePackages) > 0 {
		extra := health.ExcludePackages(c.Discovery.ExcludePackages...)
		if strategy == health.DiscoverAll {
			rc.Exclude = func(t reflect.Type) bool {
				return health.ExcludeOwnPackage(t) || extra(t)
			}
		} else {
			rc.Exclude = extra
		}
	}
	return rc, nil
}

// RunnerConfig converts the runner section.
func (c *Config) RunnerConfig(mw *observe.Middleware, logger observe.Logger) (health.RunnerConfig, error) {
	timeoutStatus, err := parseStatus(c.Runner.TimeoutStatus)
	if err != nil {
		return health.RunnerConfig{}, err
	}
	failureStatus, err := parseStatus(c.Runner.FailureStatus)
	if err != nil {
		return health.RunnerConfig{}, err
	}

	rc := health.RunnerConfig{
		Timeout:       c.Runner.Timeout.Duration,
		TimeoutStatus: timeoutStatus,
		FailureStatus: failureStatus,
		MaxConcurrent: c.Runner.MaxConcurrent,
		Middleware:    mw,
		Logger:        logger,
	}
	if len(c.Runner.Timeouts) > 0 {
		rc.Timeouts = make(map[string]time.Duration, len(c.Runner.Timeouts))
		for name, d := range c.Runner.Timeouts {
			rc.Timeouts[name] = d.Duration
		}
	}
	if c.Runner.Retry.Attempts > 1 {
		rc.Retry = &resilience.RetryConfig{
			MaxAttempts:  c.Runner.Retry.Attempts,
			InitialDelay: c.Runner.Retry.Delay.Duration,
			Strategy:     resilience.BackoffConstant,
		}
	}
	return rc, nil
}

// ObserveConfig converts the observe section. Exporters left empty or
// "none" disable their subsystem.
func (c *Config) ObserveConfig(version string) observe.Config {
	enabled := func(exporter string) bool {
		return exporter != "" && exporter != "none"
	}
	return observe.Config{
		ServiceName: c.Observe.ServiceName,
		Version:     version,
		Tracing: observe.TracingConfig{
			Enabled:   enabled(c.Observe.TracingExporter),
			Exporter:  c.Observe.TracingExporter,
			SamplePct: c.Observe.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  enabled(c.Observe.MetricsExporter),
			Exporter: c.Observe.MetricsExporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   c.Observe.LogLevel,
		},
	}
}

// PrometheusEnabled reports whether /metrics should be served.
func (c *Config) PrometheusEnabled() bool {
	return c.Observe.MetricsExporter == "prometheus"
}

// Resolver creates the secret resolver for the secrets section.
func (c *Config) Resolver() (*secret.Resolver, error) {
	r, err := secret.DefaultRegistry.NewResolverFrom(true, c.Secrets)
	if err != nil {
		return nil, fmt.Errorf("secrets: %w", err)
	}
	return r, nil
}

// Authenticator builds the endpoint authenticator, resolving credentials
// through r. It returns nil when the auth section is empty.
func (c *Config) Authenticator(ctx context.Context, r *secret.Resolver) (auth.Authenticator, error) {
	if !c.Auth.Enabled() {
		return nil, nil
	}

	var authns []auth.Authenticator
	if len(c.Auth.APIKeys) > 0 {
		keys, err := r.ResolveSlice(ctx, c.Auth.APIKeys)
		if err != nil {
			return nil, fmt.Errorf("auth.api_keys: %w", err)
		}
		authns = append(authns, auth.NewAPIKeyAuthenticator(
			auth.APIKeyConfig{HeaderName: c.Auth.APIKeyHeader},
			auth.StoreFromKeys(keys...),
		))
	}
	if c.Auth.JWTSecret != "" {
		key, err := r.ResolveValue(ctx, c.Auth.JWTSecret)
		if err != nil {
			return nil, fmt.Errorf("auth.jwt_secret: %w", err)
		}
		authns = append(authns, auth.NewJWTAuthenticator(auth.JWTConfig{
			Issuer:   c.Auth.JWTIssuer,
			Audience: c.Auth.JWTAudience,
		}, []byte(key)))
	}
	return auth.NewCompositeAuthenticator(authns...), nil
}
