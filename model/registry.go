package model

import (
	"fmt"
	"sort"
	"sync"

	"github.com/artpar/kvorm/domain/schema"
	"github.com/artpar/kvorm/ports"
)

// RegistryConfig assembles a Registry. The infrastructure fields are shared
// by every model the registry builds.
type RegistryConfig struct {
	Namespace   string
	Store       ports.DocumentStore
	Clock       ports.Clock
	IDGen       ports.IDGenerator
	Observer    Observer
	Collections map[string]schema.Schema

	// Dynamic permits collections that were never declared: lookups for
	// unknown names synthesize a schemaless model on first use.
	Dynamic bool
}

// Registry holds one Model per collection and can swap the whole schema set
// atomically on config reload.
type Registry struct {
	mu     sync.RWMutex
	cfg    RegistryConfig
	models map[string]*Model
}

// NewRegistry builds a model for every declared collection.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("registry: store is required")
	}
	r := &Registry{cfg: cfg}
	models, err := r.build(cfg.Collections)
	if err != nil {
		return nil, err
	}
	r.models = models
	return r, nil
}

func (r *Registry) build(collections map[string]schema.Schema) (map[string]*Model, error) {
	models := make(map[string]*Model, len(collections))
	for name, s := range collections {
		m, err := New(Config{
			Namespace:  r.cfg.Namespace,
			Collection: name,
			Schema:     s,
			Store:      r.cfg.Store,
			Clock:      r.cfg.Clock,
			IDGen:      r.cfg.IDGen,
			Observer:   r.cfg.Observer,
		})
		if err != nil {
			return nil, err
		}
		models[name] = m
	}
	return models, nil
}

// Model returns the model for collection. In dynamic mode an unknown name
// gets a schemaless model, created on first use and remembered.
func (r *Registry) Model(collection string) (*Model, bool) {
	r.mu.RLock()
	m, ok := r.models[collection]
	r.mu.RUnlock()
	if ok {
		return m, true
	}
	if !r.cfg.Dynamic || collection == "" {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.models[collection]; ok {
		return m, true
	}
	m, err := New(Config{
		Namespace:  r.cfg.Namespace,
		Collection: collection,
		Store:      r.cfg.Store,
		Clock:      r.cfg.Clock,
		IDGen:      r.cfg.IDGen,
		Observer:   r.cfg.Observer,
	})
	if err != nil {
		return nil, false
	}
	r.models[collection] = m
	return m, true
}

// Collections lists the registered collection names, sorted.
func (r *Registry) Collections() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reload replaces the declared collections. Models for removed collections
// drop out; dynamic models are rebuilt on next use. Existing data is
// untouched, only schemas change.
func (r *Registry) Reload(collections map[string]schema.Schema) error {
	models, err := r.build(collections)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.models = models
	r.mu.Unlock()
	return nil
}
