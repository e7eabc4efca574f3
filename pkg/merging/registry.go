package merging

import (
	"context"
	"fmt"
	"sync"
)

// DependentKind is a kind of record owned by a lead (activities, deals, tasks, ...).
// Every kind that references a lead id must be registered so merges never orphan it.
type DependentKind interface {
	Name() string
	// ReassignOwner re-points every record of this kind owned by oldLeadID to newLeadID
	// and returns how many records moved.
	ReassignOwner(ctx context.Context, tenantID, oldLeadID, newLeadID string) (int64, error)
	// CountOwned counts records of this kind owned by any of leadIDs
	CountOwned(ctx context.Context, tenantID string, leadIDs []string) (int64, error)
}

// Registry holds the dependent kinds in registration order
type Registry struct {
	mu     sync.RWMutex
	kinds  []DependentKind
	byName map[string]DependentKind
}

// NewRegistry creates a registry holding the given kinds
func NewRegistry(kinds ...DependentKind) (*Registry, error) {
	r := &Registry{byName: make(map[string]DependentKind)}
	if err := r.Register(kinds...); err != nil {
		return nil, err
	}
	return r, nil
}

// Register adds kinds. Names must be unique.
func (r *Registry) Register(kinds ...DependentKind) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, k := range kinds {
		if k == nil {
			return fmt.Errorf("dependent kind must not be nil")
		}
		if _, exists := r.byName[k.Name()]; exists {
			return fmt.Errorf("dependent kind %q already registered", k.Name())
		}
		r.byName[k.Name()] = k
		r.kinds = append(r.kinds, k)
	}
	return nil
}

// Get returns a kind by name
func (r *Registry) Get(name string) (DependentKind, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.byName[name]
	return k, ok
}

// Kinds returns a copy of the registered kinds
func (r *Registry) Kinds() []DependentKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]DependentKind(nil), r.kinds...)
}

// Names returns the registered kind names
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.kinds))
	for i, k := range r.kinds {
		names[i] = k.Name()
	}
	return names
}
