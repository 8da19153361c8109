package health

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/jonwraymond/probekit/cache"
	"github.com/jonwraymond/probekit/observe"
)

// DefaultRoute is the path MapHealthChecks binds when none is given.
const DefaultRoute = "/Health"

// ContentTypeJSON is the content type of every report response.
const ContentTypeJSON = "application/json"

// Respond maps a report to an HTTP status, content type and body. The
// status is 503 when the report is Unhealthy and 200 otherwise. On an
// encoding failure it returns 500 with a minimal fallback body and an error
// wrapping ErrEncodeReport.
func Respond(report Report) (int, string, []byte, error) {
	body, err := json.Marshal(report.View())
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrEncodeReport, err)
		return http.StatusInternalServerError, ContentTypeJSON, fallbackBody(err), err
	}
	status := http.StatusOK
	if report.Status == StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	return status, ContentTypeJSON, body, nil
}

func fallbackBody(err error) []byte {
	body, mErr := json.Marshal(struct {
		Status string `json:"Status"`
		Error  string `json:"Error"`
	}{Status: StatusUnhealthy.String(), Error: err.Error()})
	if mErr != nil {
		return []byte(`{"Status":"Unhealthy"}`)
	}
	return body
}

// WriteReport writes report to w in a single write. HEAD requests receive
// headers only. The returned error is the encoding error, if any; the
// fallback response has already been written.
func WriteReport(w http.ResponseWriter, req *http.Request, report Report) error {
	status, contentType, body, err := Respond(report)
	writeResponse(w, req, status, contentType, body)
	return err
}

func writeResponse(w http.ResponseWriter, req *http.Request, status int, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if req.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(body)
}

// ResponderConfig configures a Responder.
type ResponderConfig struct {
	// CacheTTL keeps rendered responses for this long. Zero disables caching.
	// Cached passes ignore request cancellation and are bounded only by the
	// runner's timeouts.
	CacheTTL time.Duration

	// Logger receives encoding failures.
	// Default: no-op
	Logger observe.Logger

	// Clock stamps reports.
	// Default: time.Now
	Clock func() time.Time
}

// Responder is the http.Handler that runs the probes and writes the report.
type Responder struct {
	runner *Runner
	config ResponderConfig
	logger observe.Logger
	loader *cache.Loader
	keyer  cache.Keyer
}

// NewResponder creates a responder over runner.
func NewResponder(runner *Runner, config ResponderConfig) *Responder {
	if config.Clock == nil {
		config.Clock = time.Now
	}
	r := &Responder{runner: runner, config: config, logger: config.Logger}
	if r.logger == nil {
		r.logger = observe.NopLogger()
	}
	if config.CacheTTL > 0 {
		r.loader = cache.NewLoader(cache.NewMemoryCache(), cache.Policy{DefaultTTL: config.CacheTTL})
		r.keyer = cache.NewRequestKeyer("health")
	}
	return r
}

// Report runs one check pass.
func (r *Responder) Report(ctx context.Context) Report {
	start := time.Now()
	entries := r.runner.RunAll(ctx)
	return AggregateAt(entries, time.Since(start), r.config.Clock())
}

// ServeHTTP accepts GET and HEAD.
func (r *Responder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status, body, err := r.render(req.Context(), req)
	if err != nil {
		r.logger.Error(req.Context(), "health report encoding failed",
			observe.F("path", req.URL.Path), observe.F("error", err.Error()))
		status, body = http.StatusInternalServerError, fallbackBody(err)
	}
	writeResponse(w, req, status, ContentTypeJSON, body)
}

func (r *Responder) render(ctx context.Context, req *http.Request) (int, []byte, error) {
	if r.loader == nil {
		return r.renderNow(ctx)
	}

	// The report does not depend on the query, so it is not part of the key.
	key, err := r.keyer.Key(req.URL.Path, nil)
	if err != nil {
		return r.renderNow(ctx)
	}
	// Concurrent misses share one pass. It is detached from the leader's
	// request so an aborted client cannot cache a cancelled report.
	packed, _, err := r.loader.Load(ctx, key, 0, func(ctx context.Context) ([]byte, error) {
		status, body, err := r.renderNow(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		return pack(status, body), nil
	})
	if err != nil {
		return 0, nil, err
	}
	return unpack(packed)
}

func (r *Responder) renderNow(ctx context.Context) (int, []byte, error) {
	status, _, body, err := Respond(r.Report(ctx))
	return status, body, err
}

// pack stores the status code on the first line of the cached value.
func pack(status int, body []byte) []byte {
	out := make([]byte, 0, len(body)+4)
	out = strconv.AppendInt(out, int64(status), 10)
	out = append(out, '\n')
	return append(out, body...)
}

func unpack(packed []byte) (int, []byte, error) {
	head, body, ok := bytes.Cut(packed, []byte{'\n'})
	if !ok {
		return 0, nil, fmt.Errorf("%w: corrupt cached response", ErrEncodeReport)
	}
	status, err := strconv.Atoi(string(head))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: corrupt cached status: %w", ErrEncodeReport, err)
	}
	return status, body, nil
}

// Options is what the route binder mounts.
type Options struct {
	// Responder writes the report.
	Responder *Responder

	// Middleware wraps the responder, outermost first.
	Middleware []func(http.Handler) http.Handler
}

// BuildOptions creates options around a new Responder.
func BuildOptions(runner *Runner, config ResponderConfig) *Options {
	return &Options{Responder: NewResponder(runner, config)}
}

// Use appends middleware and returns o.
func (o *Options) Use(mw ...func(http.Handler) http.Handler) *Options {
	o.Middleware = append(o.Middleware, mw...)
	return o
}

// Handler returns the responder wrapped in the middleware chain.
func (o *Options) Handler() http.Handler {
	var h http.Handler = o.Responder
	for i := len(o.Middleware) - 1; i >= 0; i-- {
		h = o.Middleware[i](h)
	}
	return h
}

// Router is satisfied by http.ServeMux and chi routers.
type Router interface {
	Handle(pattern string, h http.Handler)
}

// MapHealthChecks binds the report endpoint at route, DefaultRoute when
// empty. Nil opts discovers probes from DefaultCatalog with default
// settings.
func MapHealthChecks(r Router, route string, opts *Options) error {
	if route == "" {
		route = DefaultRoute
	}
	if opts == nil {
		reg, err := Discover(DefaultCatalog.Sources(), RegistryConfig{})
		if err != nil {
			return err
		}
		opts = BuildOptions(NewRunner(reg, RunnerConfig{}), ResponderConfig{})
	}
	r.Handle(route, opts.Handler())
	return nil
}

// LivenessHandler returns a handler that reports the process is serving,
// without running any probe.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}
