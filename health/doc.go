// Package health discovers health probes, runs them concurrently, and
// reports the aggregate over HTTP.
//
// # Probes
//
// A Probe reports the health of one dependency. It returns an Outcome, or
// an error when the check itself failed:
//
//	type Database struct{ db *sql.DB }
//
//	func (d Database) CheckHealth(ctx context.Context, _ health.CheckContext) (health.Outcome, error) {
//	    if err := d.db.PingContext(ctx); err != nil {
//	        return health.Outcome{}, fmt.Errorf("ping: %w", err)
//	    }
//	    return health.Healthy("database reachable"), nil
//	}
//
// # Discovery
//
// Probes are not listed by hand. Packages provide them from init and the
// registry enumerates every source:
//
//	func init() { health.Provide("storage", Database{db: sharedDB}) }
//
//	reg, err := health.Discover(health.DefaultCatalog.Sources(), health.RegistryConfig{})
//
// Each probe is keyed by its type name. Under DiscoverAll, helper types
// declared in this package (such as ProbeFunc) are excluded; DiscoverPrimary
// scans a single source and excludes nothing.
//
// # Running and reporting
//
//	runner := health.NewRunner(reg, health.RunnerConfig{Timeout: 5 * time.Second})
//	report := health.Aggregate(runner.RunAll(ctx), elapsed)
//	status, contentType, body, err := health.Respond(report)
//
// The overall status is Unhealthy if any entry is Unhealthy, else Degraded
// if any entry is Degraded, else Healthy. Only Unhealthy maps to 503.
//
// # HTTP
//
//	mux := http.NewServeMux()
//	err := health.MapHealthChecks(mux, "/Health", health.BuildOptions(runner, health.ResponderConfig{}))
package health
