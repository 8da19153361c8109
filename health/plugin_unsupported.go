//go:build !((linux || darwin) && cgo)

package health

// PluginSymbol is the symbol a probe plugin must export.
const PluginSymbol = "Probes"

// PluginSources is unavailable without cgo on linux or darwin.
func PluginSources(dir string) ([]Source, error) {
	return nil, ErrPluginsUnsupported
}
