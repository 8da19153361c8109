package secret

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// ProviderFactory creates a Provider from configuration.
type ProviderFactory func(cfg map[string]any) (Provider, error)

// Registry manages provider factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
}

// NewRegistry creates a new provider registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ProviderFactory)}
}

// Register adds a provider factory.
func (r *Registry) Register(name string, factory ProviderFactory) error {
	name = strings.TrimSpace(name)
	if name == "" || factory == nil {
		return ErrInvalidRegistration
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateProvider, name)
	}
	r.factories[name] = factory
	return nil
}

// Create instantiates a provider by name.
func (r *Registry) Create(name string, cfg map[string]any) (Provider, error) {
	name = strings.TrimSpace(name)
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return factory(cfg)
}

// List returns registered provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// NewResolverFrom creates every provider named in cfgs and returns a
// resolver over them. Providers created before a failure are closed.
func (r *Registry) NewResolverFrom(strict bool, cfgs map[string]map[string]any) (*Resolver, error) {
	res := NewResolver(strict)
	names := make([]string, 0, len(cfgs))
	for name := range cfgs {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		p, err := r.Create(name, cfgs[name])
		if err != nil {
			_ = res.Close()
			return nil, err
		}
		res.Register(p)
	}
	return res, nil
}

// DefaultRegistry holds the env and file providers.
var DefaultRegistry = NewRegistry()

func init() {
	_ = DefaultRegistry.Register("env", func(map[string]any) (Provider, error) {
		return EnvProvider{}, nil
	})
	_ = DefaultRegistry.Register("file", func(cfg map[string]any) (Provider, error) {
		dir, _ := cfg["dir"].(string)
		return FileProvider{Dir: dir}, nil
	})
}
