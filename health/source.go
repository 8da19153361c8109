package health

import (
	"slices"
	"sync"
)

// Source is a unit of code that can list the probes it implements.
type Source interface {
	// Name identifies the source in logs and descriptors.
	Name() string

	// Probes returns the probe values of this source. An error marks the
	// source as uninspectable; discovery skips it.
	Probes() ([]Probe, error)
}

type staticSource struct {
	name   string
	probes []Probe
}

// NewSource returns a source that lists a fixed set of probes.
func NewSource(name string, probes ...Probe) Source {
	return &staticSource{name: name, probes: slices.Clone(probes)}
}

func (s *staticSource) Name() string { return s.name }

func (s *staticSource) Probes() ([]Probe, error) { return slices.Clone(s.probes), nil }

type funcSource struct {
	name string
	fn   func() ([]Probe, error)
}

// NewSourceFunc returns a source that calls fn on every inspection.
func NewSourceFunc(name string, fn func() ([]Probe, error)) Source {
	return &funcSource{name: name, fn: fn}
}

func (s *funcSource) Name() string { return s.name }

func (s *funcSource) Probes() ([]Probe, error) { return s.fn() }

// Catalog is a process-wide list of sources, usually filled from package
// init functions.
type Catalog struct {
	mu      sync.Mutex
	sources []Source
	byName  map[string]*staticSource
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{byName: make(map[string]*staticSource)}
}

// DefaultCatalog is the catalog Provide writes to.
var DefaultCatalog = NewCatalog()

// Provide appends probes to the source called name, creating it on first use.
func (c *Catalog) Provide(name string, probes ...Probe) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if src, ok := c.byName[name]; ok {
		src.probes = append(src.probes, probes...)
		return
	}
	src := &staticSource{name: name, probes: slices.Clone(probes)}
	c.byName[name] = src
	c.sources = append(c.sources, src)
}

// Add appends an arbitrary source.
func (c *Catalog) Add(src Source) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources = append(c.sources, src)
}

// Sources returns the sources in the order they were first provided.
func (c *Catalog) Sources() []Source {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Source, len(c.sources))
	for i, src := range c.sources {
		if s, ok := src.(*staticSource); ok {
			// Snapshot so later Provide calls do not leak into a listing.
			src = &staticSource{name: s.name, probes: slices.Clone(s.probes)}
		}
		out[i] = src
	}
	return out
}

// Provide registers probes with DefaultCatalog.
func Provide(name string, probes ...Probe) {
	DefaultCatalog.Provide(name, probes...)
}
