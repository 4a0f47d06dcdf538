package usermod

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the usermods of one host instance
type Registry struct {
	mu     sync.RWMutex
	byID   map[uint16]Usermod
	byName map[string]Usermod
	order  []Usermod
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[uint16]Usermod),
		byName: make(map[string]Usermod),
	}
}

// Register adds a usermod. IDs and names must be unique.
func (r *Registry) Register(m Usermod) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byID[m.ID()]; ok {
		return fmt.Errorf("usermod id %d already registered by %q", m.ID(), existing.Name())
	}
	if _, ok := r.byName[m.Name()]; ok {
		return fmt.Errorf("usermod namespace %q already registered", m.Name())
	}

	r.byID[m.ID()] = m
	r.byName[m.Name()] = m
	r.order = append(r.order, m)
	return nil
}

// All returns usermods in registration order
func (r *Registry) All() []Usermod {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Usermod, len(r.order))
	copy(out, r.order)
	return out
}

// IDs returns the registered IDs in ascending order
func (r *Registry) IDs() []uint16 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]uint16, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len returns the number of registered usermods
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
