package access

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryDirectory is an in-process Directory.
type MemoryDirectory struct {
	mu     sync.RWMutex
	grants map[Capability]map[uuid.UUID]bool
}

// NewMemoryDirectory creates an empty directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{grants: make(map[Capability]map[uuid.UUID]bool)}
}

func (d *MemoryDirectory) Has(_ context.Context, principal uuid.UUID, c Capability) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.grants[c][principal], nil
}

func (d *MemoryDirectory) Set(_ context.Context, c Capability, principal, _ uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.grants[c] == nil {
		d.grants[c] = make(map[uuid.UUID]bool)
	}
	d.grants[c][principal] = true
	return nil
}

func (d *MemoryDirectory) Unset(_ context.Context, c Capability, principal uuid.UUID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.grants[c], principal)
	return nil
}

func (d *MemoryDirectory) List(_ context.Context, principal uuid.UUID) ([]Capability, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []Capability
	for _, c := range Capabilities {
		if d.grants[c][principal] {
			out = append(out, c)
		}
	}
	return out, nil
}
