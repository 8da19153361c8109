// Package fixtures provides example probes and registers them with
// health.DefaultCatalog under the source name "fixtures".
//
// Importing the package for its side effect is enough:
//
//	import _ "github.com/jonwraymond/probekit/health/fixtures"
package fixtures
