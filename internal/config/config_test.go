package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonwraymond/probekit/auth"
	"github.com/jonwraymond/probekit/health"
	"github.com/jonwraymond/probekit/internal/config"
	"github.com/jonwraymond/probekit/observe"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "healthd.yml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeTemp(t, `
server:
  address: ":9090"
  route: "/status"
discovery:
  strategy: primary
  primary: fixtures
  on_collision: skip
runner:
  timeout: "2s"
  timeouts:
    RemoteAPI: "500ms"
  timeout_status: degraded
  max_concurrent: 4
  retry:
    attempts: 3
    delay: "50ms"
cache:
  ttl: "10s"
observe:
  log_level: debug
  metrics_exporter: prometheus
`)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Address != ":9090" || cfg.Server.Route != "/status" {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Runner.Timeout.Duration != 2*time.Second {
		t.Errorf("expected timeout 2s, got %v", cfg.Runner.Timeout)
	}
	if cfg.Runner.Timeouts["RemoteAPI"].Duration != 500*time.Millisecond {
		t.Errorf("unexpected per-probe timeout: %v", cfg.Runner.Timeouts)
	}
	if cfg.Cache.TTL.Duration != 10*time.Second {
		t.Errorf("expected cache ttl 10s, got %v", cfg.Cache.TTL)
	}
	if !cfg.PrometheusEnabled() {
		t.Error("expected prometheus metrics to be enabled")
	}

	rc, err := cfg.RegistryConfig(nil)
	if err != nil {
		t.Fatalf("RegistryConfig() error = %v", err)
	}
	if rc.Strategy != health.DiscoverPrimary || rc.Primary != "fixtures" || rc.OnCollision != health.CollisionSkip {
		t.Errorf("unexpected registry config: %+v", rc)
	}

	run, err := cfg.RunnerConfig(nil, nil)
	if err != nil {
		t.Fatalf("RunnerConfig() error = %v", err)
	}
	if run.TimeoutStatus != health.StatusDegraded || run.FailureStatus != health.StatusUnhealthy {
		t.Errorf("unexpected statuses: timeout=%v failure=%v", run.TimeoutStatus, run.FailureStatus)
	}
	if run.Retry == nil || run.Retry.MaxAttempts != 3 || run.Retry.InitialDelay != 50*time.Millisecond {
		t.Errorf("unexpected retry config: %+v", run.Retry)
	}
	if run.MaxConcurrent != 4 {
		t.Errorf("expected max_concurrent 4, got %d", run.MaxConcurrent)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(writeTemp(t, "{}\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Address != ":8080" {
		t.Errorf("expected default address :8080, got %q", cfg.Server.Address)
	}
	if cfg.Server.Route != health.DefaultRoute {
		t.Errorf("expected default route %q, got %q", health.DefaultRoute, cfg.Server.Route)
	}
	if cfg.Server.LivenessRoute != "/healthz" {
		t.Errorf("expected default liveness route, got %q", cfg.Server.LivenessRoute)
	}
	if cfg.Server.ShutdownTimeout.Duration != 30*time.Second {
		t.Errorf("expected default shutdown timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Auth.Enabled() {
		t.Error("expected auth to be disabled by default")
	}

	run, err := cfg.RunnerConfig(nil, nil)
	if err != nil {
		t.Fatalf("RunnerConfig() error = %v", err)
	}
	if run.Retry != nil {
		t.Errorf("expected no retry by default, got %+v", run.Retry)
	}

	oc := cfg.ObserveConfig("dev")
	if oc.Tracing.Enabled || oc.Metrics.Enabled || !oc.Logging.Enabled {
		t.Errorf("unexpected observe config: %+v", oc)
	}
	if err := oc.Validate(); err != nil {
		t.Errorf("default observe config invalid: %v", err)
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Address != ":8080" {
		t.Errorf("expected defaults, got %+v", cfg.Server)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yml"))
	if err == nil || !strings.Contains(err.Error(), "reading config") {
		t.Fatalf("expected reading error, got %v", err)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantIn  string
		wantErr error
	}{
		{name: "bad yaml", yaml: "server: [", wantIn: "parsing config"},
		{name: "bad duration", yaml: "runner:\n  timeout: soon\n", wantIn: "parsing config"},
		{name: "bad strategy", yaml: "discovery:\n  strategy: some\n", wantIn: "discovery.strategy", wantErr: health.ErrUnknownStrategy},
		{name: "bad collision", yaml: "discovery:\n  on_collision: merge\n", wantIn: "discovery.on_collision", wantErr: health.ErrUnknownCollisionPolicy},
		{name: "bad status", yaml: "runner:\n  timeout_status: sad\n", wantIn: "runner.timeout_status", wantErr: health.ErrUnknownStatus},
		{name: "negative concurrency", yaml: "runner:\n  max_concurrent: -1\n", wantIn: "runner.max_concurrent"},
		{name: "zero probe timeout", yaml: "runner:\n  timeouts:\n    Slow: 0s\n", wantIn: "runner.timeouts.Slow"},
		{name: "bad route", yaml: "server:\n  route: Health\n", wantIn: "server.route"},
		{name: "bad log level", yaml: "observe:\n  log_level: loud\n", wantIn: "observe.log_level", wantErr: observe.ErrInvalidLogLevel},
		{name: "bad exporter", yaml: "observe:\n  metrics_exporter: statsd\n", wantIn: "observe.metrics_exporter", wantErr: observe.ErrInvalidMetricsExporter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantIn) {
				t.Errorf("expected %q in error, got %v", tt.wantIn, err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected errors.Is(%v), got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfig_Authenticator(t *testing.T) {
	t.Setenv("HEALTHD_TEST_KEY", "k-123")
	t.Setenv("HEALTHD_TEST_JWT", "jwt-secret")

	cfg, err := config.Parse([]byte(`
auth:
  api_keys:
    - "secretref:env:HEALTHD_TEST_KEY"
  jwt_secret: "${HEALTHD_TEST_JWT}"
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r, err := cfg.Resolver()
	if err != nil {
		t.Fatalf("Resolver() error = %v", err)
	}
	defer r.Close()

	authn, err := cfg.Authenticator(context.Background(), r)
	if err != nil {
		t.Fatalf("Authenticator() error = %v", err)
	}
	composite, ok := authn.(*auth.CompositeAuthenticator)
	if !ok || composite.Len() != 2 {
		t.Fatalf("expected composite of 2, got %T", authn)
	}

	req := &auth.AuthRequest{Headers: map[string][]string{"X-Api-Key": {"k-123"}}}
	result, err := authn.Authenticate(context.Background(), req)
	if err != nil || !result.Authenticated {
		t.Fatalf("Authenticate(api key) = %+v, %v", result, err)
	}

	token, err := auth.SignHS256([]byte("jwt-secret"), "ops", time.Minute, nil)
	if err != nil {
		t.Fatal(err)
	}
	req = &auth.AuthRequest{Headers: map[string][]string{"Authorization": {"Bearer " + token}}}
	result, err = authn.Authenticate(context.Background(), req)
	if err != nil || !result.Authenticated || result.Identity.Principal != "ops" {
		t.Fatalf("Authenticate(jwt) = %+v, %v", result, err)
	}
}

func TestConfig_AuthenticatorMissingSecret(t *testing.T) {
	cfg, err := config.Parse([]byte("auth:\n  api_keys: [\"secretref:env:HEALTHD_TEST_UNSET\"]\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r, err := cfg.Resolver()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cfg.Authenticator(context.Background(), r); err == nil || !strings.Contains(err.Error(), "auth.api_keys") {
		t.Fatalf("expected auth.api_keys error, got %v", err)
	}
}

func TestConfig_NoAuth(t *testing.T) {
	authn, err := config.Default().Authenticator(context.Background(), nil)
	if err != nil || authn != nil {
		t.Fatalf("Authenticator() = %v, %v; want nil, nil", authn, err)
	}
}

func TestConfig_FileSecrets(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "jwt"), []byte("from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Parse([]byte("secrets:\n  file:\n    dir: " + dir + "\nauth:\n  jwt_secret: secretref:file:jwt\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := cfg.Secrets["env"]; !ok {
		t.Error("expected env provider to stay enabled")
	}

	r, err := cfg.Resolver()
	if err != nil {
		t.Fatalf("Resolver() error = %v", err)
	}
	defer r.Close()
	got, err := r.ResolveValue(context.Background(), cfg.Auth.JWTSecret)
	if err != nil || got != "from-file" {
		t.Fatalf("ResolveValue() = (%q, %v)", got, err)
	}
}
