package adapters

import (
	"fmt"
	"sort"
)

// Registry tracks the adapters attached to a model, each tagged with a
// type and a config record. It is owned by the model's config; loaders
// only read it and register newly loaded adapters.
//
// Names are unique across the registry, and therefore within a type.
type Registry struct {
	entries  map[string]registryEntry
	defaults map[AdapterType]Config
}

type registryEntry struct {
	adapterType AdapterType
	config      Config
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{
		entries:  make(map[string]registryEntry),
		defaults: make(map[AdapterType]Config),
	}
}

// Add registers an adapter. Re-registering an existing name replaces its
// entry; callers decide whether that deserves a warning.
func (r *Registry) Add(name string, adapterType AdapterType, config Config) error {
	if !adapterType.Valid() {
		return fmt.Errorf("%w: invalid adapter type %q", ErrConfiguration, adapterType)
	}
	r.entries[name] = registryEntry{adapterType: adapterType, config: config}
	return nil
}

// Get returns the config and type of a registered adapter.
func (r *Registry) Get(name string) (Config, AdapterType, bool) {
	entry, ok := r.entries[name]
	if !ok {
		return nil, "", false
	}
	return entry.config, entry.adapterType, true
}

// Type returns the type of a registered adapter, or "" if unknown.
func (r *Registry) Type(name string) AdapterType {
	return r.entries[name].adapterType
}

// Has reports whether an adapter with the given name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.entries[name]
	return ok
}

// Names returns all registered adapter names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns the names of adapters of one type, sorted.
func (r *Registry) List(adapterType AdapterType) []string {
	var names []string
	for name, entry := range r.entries {
		if entry.adapterType == adapterType {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered adapters.
func (r *Registry) Len() int {
	return len(r.entries)
}

// SetDefault sets the default config for an adapter type.
func (r *Registry) SetDefault(adapterType AdapterType, config Config) error {
	if !adapterType.Valid() {
		return fmt.Errorf("%w: invalid adapter type %q", ErrConfiguration, adapterType)
	}
	r.defaults[adapterType] = config
	return nil
}

// Default returns the default config for an adapter type, or nil.
func (r *Registry) Default(adapterType AdapterType) Config {
	return r.defaults[adapterType]
}

// HeadRegistry tracks the named prediction heads of a model. Models
// without configurable heads simply have no registry (nil).
type HeadRegistry struct {
	entries map[string]Config
}

// NewHeadRegistry creates an empty head registry.
func NewHeadRegistry() *HeadRegistry {
	return &HeadRegistry{entries: make(map[string]Config)}
}

// Add registers a head config. Without overwrite, an existing name fails.
func (h *HeadRegistry) Add(name string, config Config, overwrite bool) error {
	if _, ok := h.entries[name]; ok && !overwrite {
		return fmt.Errorf("%w: prediction head %q already exists", ErrConfiguration, name)
	}
	h.entries[name] = config
	return nil
}

// Get returns the config of a registered head.
func (h *HeadRegistry) Get(name string) (Config, bool) {
	config, ok := h.entries[name]
	return config, ok
}

// Has reports whether a head with the given name is registered.
func (h *HeadRegistry) Has(name string) bool {
	_, ok := h.entries[name]
	return ok
}

// Names returns all registered head names, sorted.
func (h *HeadRegistry) Names() []string {
	names := make([]string, 0, len(h.entries))
	for name := range h.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
