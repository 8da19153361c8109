package fixtures

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jonwraymond/probekit/health"
)

// SourceName is the catalog source the fixtures are provided under.
const SourceName = "fixtures"

func init() {
	health.Provide(SourceName,
		AlwaysHealthy{},
		AlwaysThrows{},
		AlwaysUnhealthy{},
		&RemoteAPI{},
		&Unreachable{},
		NewMemory(MemoryConfig{}),
	)
}

// AlwaysHealthy reports Healthy with no description.
type AlwaysHealthy struct{}

// CheckHealth reports Healthy.
func (AlwaysHealthy) CheckHealth(context.Context, health.CheckContext) (health.Outcome, error) {
	return health.Outcome{Status: health.StatusHealthy}, nil
}

// AlwaysThrows fails with an error that has one inner cause.
type AlwaysThrows struct{}

// CheckHealth returns a DetailedError wrapping one cause.
func (AlwaysThrows) CheckHealth(context.Context, health.CheckContext) (health.Outcome, error) {
	return health.Outcome{}, health.NewDetailedError("I was thrown", errors.New("this is an inner exception"), nil)
}

// AlwaysUnhealthy reports Unhealthy with the description "db down".
type AlwaysUnhealthy struct{}

// CheckHealth reports Unhealthy.
func (AlwaysUnhealthy) CheckHealth(context.Context, health.CheckContext) (health.Outcome, error) {
	return health.Unhealthy("db down", nil), nil
}

// DefaultRemoteURL is the endpoint RemoteAPI calls when URL is empty.
const DefaultRemoteURL = "https://api.agify.io/?name=andrew"

// RemoteAPI is Healthy when a GET of URL returns 200.
type RemoteAPI struct {
	// URL is the endpoint to call.
	// Default: DefaultRemoteURL
	URL string

	// Client performs the request.
	// Default: a client with a 10 second timeout
	Client *http.Client
}

// CheckHealth GETs URL and maps a 200 to Healthy.
func (p *RemoteAPI) CheckHealth(ctx context.Context, _ health.CheckContext) (health.Outcome, error) {
	target := p.URL
	if target == "" {
		target = DefaultRemoteURL
	}
	data := map[string]any{"key": "value"}

	code, err := get(ctx, clientOrDefault(p.Client), target)
	if err != nil {
		return health.Outcome{}, err
	}
	if code == http.StatusOK {
		return health.Healthy("healthy").WithData(data), nil
	}
	return health.Unhealthy("unhealthy", nil).WithData(data), nil
}

// DefaultUnreachableBase and DefaultUnreachablePath point at a page that
// does not exist on a reachable host.
const (
	DefaultUnreachableBase = "https://google.com/"
	DefaultUnreachablePath = "this_does_not_exist"
)

// Unreachable GETs Path relative to BaseURL and is Unhealthy on anything
// but 200.
type Unreachable struct {
	// BaseURL is the host to call.
	// Default: DefaultUnreachableBase
	BaseURL string

	// Path is resolved against BaseURL.
	// Default: DefaultUnreachablePath
	Path string

	// Client performs the request.
	// Default: a client with a 10 second timeout
	Client *http.Client
}

// CheckHealth GETs Path against BaseURL and maps a 200 to Healthy.
func (p *Unreachable) CheckHealth(ctx context.Context, _ health.CheckContext) (health.Outcome, error) {
	base, path := p.BaseURL, p.Path
	if base == "" {
		base = DefaultUnreachableBase
	}
	if path == "" {
		path = DefaultUnreachablePath
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return health.Outcome{}, fmt.Errorf("parse base url: %w", err)
	}
	ref, err := url.Parse(path)
	if err != nil {
		return health.Outcome{}, fmt.Errorf("parse path: %w", err)
	}

	code, err := get(ctx, clientOrDefault(p.Client), baseURL.ResolveReference(ref).String())
	if err != nil {
		return health.Outcome{}, err
	}
	if code == http.StatusOK {
		return health.Outcome{Status: health.StatusHealthy}, nil
	}
	return health.Outcome{Status: health.StatusUnhealthy}, nil
}

var defaultClient = &http.Client{Timeout: 10 * time.Second}

func clientOrDefault(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return defaultClient
}

func get(ctx context.Context, client *http.Client, target string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", target, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
