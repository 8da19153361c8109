package health_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/probekit/health"
	"github.com/jonwraymond/probekit/health/fixtures"
	"github.com/jonwraymond/probekit/observe"
)

func TestRespond_StatusCodes(t *testing.T) {
	tests := []struct {
		name     string
		statuses []health.Status
		want     int
	}{
		{"healthy", []health.Status{health.StatusHealthy}, http.StatusOK},
		{"empty", nil, http.StatusOK},
		{"degraded stays 200", []health.Status{health.StatusHealthy, health.StatusDegraded}, http.StatusOK},
		{"unhealthy", []health.Status{health.StatusDegraded, health.StatusUnhealthy}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, contentType, body, err := health.Respond(health.Aggregate(entries(tt.statuses...), 0))
			if err != nil {
				t.Fatalf("Respond() error = %v", err)
			}
			if status != tt.want {
				t.Errorf("status = %d, want %d", status, tt.want)
			}
			if contentType != "application/json" {
				t.Errorf("content type = %q", contentType)
			}
			if !json.Valid(body) {
				t.Errorf("body is not JSON: %s", body)
			}
		})
	}
}

func TestRespond_Layout(t *testing.T) {
	ranOn := time.Date(2026, 10, 14, 9, 30, 0, 123456789, time.UTC)
	report := health.AggregateAt([]health.Entry{
		{Name: "AlwaysThrows", Outcome: health.Outcome{
			Status:      health.StatusUnhealthy,
			Description: "I was thrown",
			Duration:    1500 * time.Microsecond,
			Err:         health.NewDetailedError("I was thrown", errors.New("this is an inner exception"), map[string]any{"attempt": 1}),
		}},
		{Name: "RemoteAPI", Outcome: health.Healthy("healthy").WithData(map[string]any{"key": "value"})},
	}, 2*time.Second, ranOn)

	_, _, body, err := health.Respond(report)
	if err != nil {
		t.Fatalf("Respond() error = %v", err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got := keys(doc); !slices.Equal(got, []string{"DependencyStates", "RanOn", "Status", "TotalDuration"}) {
		t.Errorf("top-level keys = %v", got)
	}
	if string(doc["RanOn"]) != `"2026-10-14T09:30:00.123456789Z"` {
		t.Errorf("RanOn = %s", doc["RanOn"])
	}
	if string(doc["TotalDuration"]) != `"00:00:02"` {
		t.Errorf("TotalDuration = %s", doc["TotalDuration"])
	}

	var states []struct {
		Key   string
		Value map[string]json.RawMessage
	}
	if err := json.Unmarshal(doc["DependencyStates"], &states); err != nil {
		t.Fatalf("DependencyStates: %v", err)
	}
	if len(states) != 2 || states[0].Key != "AlwaysThrows" || states[1].Key != "RemoteAPI" {
		t.Fatalf("states = %+v", states)
	}
	if got := keys(states[0].Value); !slices.Equal(got, []string{"Description", "Duration", "Exception", "Status"}) {
		t.Errorf("AlwaysThrows keys = %v", got)
	}
	if string(states[0].Value["Duration"]) != `"00:00:00.0015000"` {
		t.Errorf("Duration = %s", states[0].Value["Duration"])
	}
	if got := keys(states[1].Value); !slices.Equal(got, []string{"Data", "Description", "Duration", "Status"}) {
		t.Errorf("RemoteAPI keys = %v", got)
	}

	var exc map[string]json.RawMessage
	if err := json.Unmarshal(states[0].Value["Exception"], &exc); err != nil {
		t.Fatalf("Exception: %v", err)
	}
	if got := keys(exc); !slices.Equal(got, []string{"ClassName", "Data", "InnerException", "Message", "StackTraceString"}) {
		t.Errorf("Exception keys = %v", got)
	}
	var inner map[string]json.RawMessage
	_ = json.Unmarshal(exc["InnerException"], &inner)
	if got := keys(inner); !slices.Equal(got, []string{"ClassName", "Message"}) {
		t.Errorf("InnerException keys = %v", got)
	}
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

func TestRespond_EncodingFailure(t *testing.T) {
	report := health.Aggregate([]health.Entry{
		{Name: "Bad", Outcome: health.Healthy("").WithData(map[string]any{"ch": make(chan int)})},
	}, 0)
	status, _, body, err := health.Respond(report)
	if !errors.Is(err, health.ErrEncodeReport) {
		t.Fatalf("Respond() error = %v, want ErrEncodeReport", err)
	}
	if status != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", status)
	}
	var fallback struct{ Status, Error string }
	if err := json.Unmarshal(body, &fallback); err != nil || fallback.Status != "Unhealthy" || fallback.Error == "" {
		t.Errorf("fallback body = %s", body)
	}
}

func newResponder(t *testing.T, cfg health.ResponderConfig, probes ...health.Probe) *health.Responder {
	t.Helper()
	return health.NewResponder(health.NewRunner(registryOf(t, probes...), health.RunnerConfig{}), cfg)
}

func TestResponder_ServeHTTP(t *testing.T) {
	r := newResponder(t, health.ResponderConfig{}, fixtures.AlwaysUnhealthy{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/Health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("GET status = %d, want 503", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/Health", nil))
	if rec.Code != http.StatusServiceUnavailable || rec.Body.Len() != 0 {
		t.Errorf("HEAD = (%d, %q), want 503 with empty body", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/Health", nil))
	if rec.Code != http.StatusMethodNotAllowed || rec.Header().Get("Allow") != "GET, HEAD" {
		t.Errorf("POST = (%d, Allow %q), want 405", rec.Code, rec.Header().Get("Allow"))
	}
}

func TestResponder_EncodingFailureWrites500(t *testing.T) {
	logs := &bytes.Buffer{}
	r := newResponder(t, health.ResponderConfig{Logger: observe.NewLoggerWithWriter("error", logs)},
		probe("Bad", func(context.Context, health.CheckContext) (health.Outcome, error) {
			return health.Healthy("").WithData(map[string]any{"fn": func() {}}), nil
		}),
	)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/Health", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"Status":"Unhealthy"`)) {
		t.Errorf("body = %s", rec.Body.String())
	}
	if !bytes.Contains(logs.Bytes(), []byte("health report encoding failed")) {
		t.Errorf("expected an error log, got %s", logs.String())
	}
}

func TestResponder_CacheRunsProbesOnceWithinTTL(t *testing.T) {
	var calls atomic.Int32
	r := newResponder(t, health.ResponderConfig{CacheTTL: time.Minute},
		probe("Counted", func(context.Context, health.CheckContext) (health.Outcome, error) {
			calls.Add(1)
			time.Sleep(20 * time.Millisecond)
			return health.Unhealthy("db down", nil), nil
		}),
	)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/Health", nil))
			if rec.Code != http.StatusServiceUnavailable {
				t.Errorf("status = %d, want 503", rec.Code)
			}
		}()
	}
	wg.Wait()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/Health", nil))
	if rec.Code != http.StatusServiceUnavailable || !json.Valid(rec.Body.Bytes()) {
		t.Errorf("cached response = (%d, %s)", rec.Code, rec.Body.String())
	}
	if calls.Load() != 1 {
		t.Errorf("probe ran %d times, want 1", calls.Load())
	}
}

func TestResponder_CacheIgnoresAbortedRequest(t *testing.T) {
	var calls atomic.Int32
	r := newResponder(t, health.ResponderConfig{CacheTTL: time.Minute},
		probe("Database", func(ctx context.Context, _ health.CheckContext) (health.Outcome, error) {
			calls.Add(1)
			if err := ctx.Err(); err != nil {
				return health.Outcome{}, err
			}
			return health.Healthy("reachable"), nil
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/Health", nil).WithContext(ctx))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/Health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("fresh request status = %d, want 200; body = %s", rec.Code, rec.Body.String())
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("context canceled")) {
		t.Errorf("cached report carries the aborted request's cancellation: %s", rec.Body.String())
	}
	if calls.Load() != 1 {
		t.Errorf("check ran %d times, want 1", calls.Load())
	}
}

func TestResponder_CacheKeyIgnoresQuery(t *testing.T) {
	var calls atomic.Int32
	r := newResponder(t, health.ResponderConfig{CacheTTL: time.Minute},
		probe("Counted", func(context.Context, health.CheckContext) (health.Outcome, error) {
			calls.Add(1)
			return health.Healthy(""), nil
		}),
	)

	for _, target := range []string{"/Health", "/Health?x=1", "/Health?x=2&y=3"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", target, rec.Code)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("check ran %d times across query variants, want 1", calls.Load())
	}
}

func TestResponder_ClockStampsReport(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := newResponder(t, health.ResponderConfig{Clock: func() time.Time { return at }})
	if got := r.Report(context.Background()).RanOn; !got.Equal(at) {
		t.Errorf("RanOn = %v, want %v", got, at)
	}
}

func TestWriteReport(t *testing.T) {
	rec := httptest.NewRecorder()
	err := health.WriteReport(rec, httptest.NewRequest(http.MethodGet, "/", nil), health.Aggregate(entries(health.StatusDegraded), 0))
	if err != nil {
		t.Fatalf("WriteReport() error = %v", err)
	}
	if rec.Code != http.StatusOK || !bytes.Contains(rec.Body.Bytes(), []byte(`"Status":"Degraded"`)) {
		t.Errorf("response = (%d, %s)", rec.Code, rec.Body.String())
	}
}

func TestMapHealthChecks_DefaultRouteAndMiddleware(t *testing.T) {
	mux := http.NewServeMux()
	opts := health.BuildOptions(health.NewRunner(registryOf(t, healthyProbe{}), health.RunnerConfig{}), health.ResponderConfig{})
	var order []string
	tag := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	opts.Use(tag("outer"), tag("inner"))

	if err := health.MapHealthChecks(mux, "", opts); err != nil {
		t.Fatalf("MapHealthChecks() error = %v", err)
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/Health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if !slices.Equal(order, []string{"outer", "inner"}) {
		t.Errorf("middleware order = %v", order)
	}
}

func TestMapHealthChecks_NilOptionsUsesDefaultCatalog(t *testing.T) {
	mux := http.NewServeMux()
	if err := health.MapHealthChecks(mux, "/status", nil); err != nil {
		t.Fatalf("MapHealthChecks() error = %v", err)
	}
	// Resolve without serving: the default catalog holds network fixtures.
	if _, pattern := mux.Handler(httptest.NewRequest(http.MethodGet, "/status", nil)); pattern != "/status" {
		t.Errorf("pattern = %q, want /status", pattern)
	}
}

func TestLivenessHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	health.LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("liveness = (%d, %q)", rec.Code, rec.Body.String())
	}
}
