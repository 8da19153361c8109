//go:build (linux || darwin) && cgo

package health

import (
	"fmt"
	"os"
	"path/filepath"
	"plugin"
	"strings"
)

// PluginSymbol is the symbol a probe plugin must export.
const PluginSymbol = "Probes"

// PluginSources returns one source per *.so file in dir, in lexical order.
// Each plugin must export
//
//	func Probes() []health.Probe
//
// Plugins are opened lazily when discovery inspects them, so a broken
// plugin only removes itself from the registry.
func PluginSources(dir string) ([]Source, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("health: plugin dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("health: plugin dir %s is not a directory", dir)
	}

	paths, err := filepath.Glob(filepath.Join(dir, "*.so"))
	if err != nil {
		return nil, fmt.Errorf("health: plugin dir: %w", err)
	}

	sources := make([]Source, 0, len(paths))
	for _, path := range paths {
		sources = append(sources, &pluginSource{path: path})
	}
	return sources, nil
}

type pluginSource struct {
	path string
}

func (s *pluginSource) Name() string {
	return strings.TrimSuffix(filepath.Base(s.path), ".so")
}

func (s *pluginSource) Probes() ([]Probe, error) {
	p, err := plugin.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open plugin %s: %w", s.path, err)
	}
	sym, err := p.Lookup(PluginSymbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPlugin, s.path, err)
	}
	return exportedProbes(s.path, sym)
}

func exportedProbes(path string, sym plugin.Symbol) ([]Probe, error) {
	fn, ok := sym.(func() []Probe)
	if !ok {
		return nil, fmt.Errorf("%w: %s exports %T", ErrInvalidPlugin, path, sym)
	}
	return fn(), nil
}
