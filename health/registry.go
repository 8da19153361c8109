package health

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/jonwraymond/probekit/observe"
)

// Strategy selects which sources discovery scans.
type Strategy int

const (
	// DiscoverAll scans every source and, by default, excludes types
	// declared in this package.
	DiscoverAll Strategy = iota

	// DiscoverPrimary scans only the primary source and excludes nothing
	// by default.
	DiscoverPrimary
)

// String returns the config name of the strategy.
func (s Strategy) String() string {
	switch s {
	case DiscoverAll:
		return "all"
	case DiscoverPrimary:
		return "primary"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy parses "all" or "primary". The empty string means all.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "all":
		return DiscoverAll, nil
	case "primary":
		return DiscoverPrimary, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// CollisionPolicy decides what happens when two probes share a name.
type CollisionPolicy int

const (
	// CollisionFail aborts discovery with ErrDuplicateProbe.
	CollisionFail CollisionPolicy = iota

	// CollisionSkip keeps the first probe and logs a warning.
	CollisionSkip
)

// ParseCollisionPolicy parses "fail" or "skip". The empty string means fail.
func ParseCollisionPolicy(name string) (CollisionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "fail":
		return CollisionFail, nil
	case "skip":
		return CollisionSkip, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCollisionPolicy, name)
	}
}

// ExcludeFunc reports whether a probe type must be left out of the registry.
type ExcludeFunc func(t reflect.Type) bool

var ownPackage = reflect.TypeFor[ProbeFunc]().PkgPath()

// ExcludeOwnPackage excludes types declared in package health.
func ExcludeOwnPackage(t reflect.Type) bool {
	return packageOf(t) == ownPackage
}

// ExcludePackages excludes types declared in any of the given import paths.
func ExcludePackages(paths ...string) ExcludeFunc {
	paths = slices.Clone(paths)
	return func(t reflect.Type) bool {
		return slices.Contains(paths, packageOf(t))
	}
}

// RegistryConfig configures discovery.
type RegistryConfig struct {
	// Strategy selects the scanned sources.
	// Default: DiscoverAll
	Strategy Strategy

	// Primary names the source scanned by DiscoverPrimary.
	// Default: the first source
	Primary string

	// Exclude overrides the default exclusion predicate.
	// Default: ExcludeOwnPackage under DiscoverAll, none under DiscoverPrimary
	Exclude ExcludeFunc

	// OnCollision decides how duplicate names are handled.
	// Default: CollisionFail
	OnCollision CollisionPolicy

	// Logger receives discovery warnings.
	// Default: no-op
	Logger observe.Logger
}

// Descriptor binds a discovered probe to its registry name.
type Descriptor struct {
	// Name is unique within a registry.
	Name string

	// Source is the name of the source the probe came from.
	Source string

	// Type is the dynamic type of the probe value.
	Type reflect.Type

	probe Probe
}

// Invoke runs the bound probe.
func (d Descriptor) Invoke(ctx context.Context) (Outcome, error) {
	return d.probe.CheckHealth(ctx, CheckContext{Name: d.Name, Source: d.Source})
}

// Registry is the immutable set of discovered probes. It is safe for
// concurrent use.
type Registry struct {
	descriptors []Descriptor
	index       map[string]int
}

// Discover inspects sources and binds every probe found to a name. Sources
// that fail or panic while listing probes are skipped with a warning. No
// probe is invoked.
func Discover(sources []Source, cfg RegistryConfig) (*Registry, error) {
	ctx := context.Background()
	logger := cfg.Logger
	if logger == nil {
		logger = observe.NopLogger()
	}

	exclude := cfg.Exclude
	scan := sources
	switch cfg.Strategy {
	case DiscoverAll:
		if exclude == nil {
			exclude = ExcludeOwnPackage
		}
	case DiscoverPrimary:
		primary, ok := primarySource(sources, cfg.Primary)
		if !ok {
			if cfg.Primary != "" {
				return nil, fmt.Errorf("%w: %q", ErrPrimaryNotFound, cfg.Primary)
			}
			scan = nil
		} else {
			scan = []Source{primary}
		}
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownStrategy, cfg.Strategy)
	}

	if cfg.OnCollision != CollisionFail && cfg.OnCollision != CollisionSkip {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCollisionPolicy, cfg.OnCollision)
	}

	reg := &Registry{index: make(map[string]int)}
	for _, src := range scan {
		if src == nil {
			continue
		}
		srcName := src.Name()
		probes, err := inspect(src)
		if err != nil {
			logger.Warn(ctx, "skipping uninspectable probe source",
				observe.F("source", srcName), observe.F("error", err.Error()))
			continue
		}

		for i, p := range probes {
			if isNil(p) {
				logger.Warn(ctx, "skipping nil probe",
					observe.F("source", srcName), observe.F("index", i))
				continue
			}
			t := reflect.TypeOf(p)
			if exclude != nil && exclude(t) {
				logger.Debug(ctx, "excluding probe type",
					observe.F("source", srcName), observe.F("type", t.String()))
				continue
			}

			name := probeName(p, t, srcName, i)
			if j, dup := reg.index[name]; dup {
				if cfg.OnCollision == CollisionSkip {
					logger.Warn(ctx, "skipping duplicate probe",
						observe.F("probe", name),
						observe.F("source", srcName),
						observe.F("kept_source", reg.descriptors[j].Source))
					continue
				}
				return nil, fmt.Errorf("%w: %q in sources %q and %q",
					ErrDuplicateProbe, name, reg.descriptors[j].Source, srcName)
			}

			reg.index[name] = len(reg.descriptors)
			reg.descriptors = append(reg.descriptors, Descriptor{
				Name:   name,
				Source: srcName,
				Type:   t,
				probe:  p,
			})
		}
	}

	logger.Info(ctx, "probe discovery complete",
		observe.F("strategy", cfg.Strategy.String()),
		observe.F("sources", len(scan)),
		observe.F("probes", len(reg.descriptors)))
	return reg, nil
}

// Descriptors returns the bound probes in discovery order.
func (r *Registry) Descriptors() []Descriptor {
	return slices.Clone(r.descriptors)
}

// Names returns the probe names in discovery order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.descriptors))
	for i, d := range r.descriptors {
		names[i] = d.Name
	}
	return names
}

// Len returns the number of bound probes.
func (r *Registry) Len() int {
	return len(r.descriptors)
}

// Lookup returns the descriptor bound to name.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	i, ok := r.index[name]
	if !ok {
		return Descriptor{}, false
	}
	return r.descriptors[i], true
}

func primarySource(sources []Source, name string) (Source, bool) {
	for _, src := range sources {
		if src == nil {
			continue
		}
		if name == "" || src.Name() == name {
			return src, true
		}
	}
	return nil, false
}

func inspect(src Source) (probes []Probe, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("%w: %v", ErrSourcePanicked, v)
		}
	}()
	return src.Probes()
}

// probeName prefers Named, then the type's simple name. Anonymous types and
// the generic ProbeFunc adapter have no meaningful name and are keyed by
// position within their source.
func probeName(p Probe, t reflect.Type, source string, index int) string {
	if n, ok := p.(Named); ok {
		if name := strings.TrimSpace(n.ProbeName()); name != "" {
			return name
		}
	}
	base := t
	for base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	if base.Name() == "" || base == reflect.TypeFor[ProbeFunc]() {
		return fmt.Sprintf("%s#%d", source, index)
	}
	return base.Name()
}

func packageOf(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.PkgPath()
}

func isNil(p Probe) bool {
	if p == nil {
		return true
	}
	v := reflect.ValueOf(p)
	switch v.Kind() {
	case reflect.Pointer, reflect.Func, reflect.Map, reflect.Slice, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}
