// internal/provision/memory.go
package provision

import (
	"context"
	"fmt"
	"sync"
)

// MemoryDatabaseAdmin is the dev/test stand-in for a real data-store
// provider. DSNs use a memory:// scheme the router's memory opener accepts.
type MemoryDatabaseAdmin struct {
	mu        sync.Mutex
	databases map[string]struct{}
}

func NewMemoryDatabaseAdmin() *MemoryDatabaseAdmin {
	return &MemoryDatabaseAdmin{databases: map[string]struct{}{}}
}

func (m *MemoryDatabaseAdmin) CreateDatabase(_ context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.databases[name]; ok {
		return "", fmt.Errorf("database %s: %w", name, ErrAlreadyProvisioned)
	}
	m.databases[name] = struct{}{}
	return "memory://" + name, nil
}

func (m *MemoryDatabaseAdmin) DropDatabase(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.databases, name)
	return nil
}

// Exists reports whether a database is currently provisioned.
func (m *MemoryDatabaseAdmin) Exists(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.databases[name]
	return ok
}

// MemoryBlobNamespaces tracks namespaces in-process.
type MemoryBlobNamespaces struct {
	mu         sync.Mutex
	namespaces map[string]struct{}
}

func NewMemoryBlobNamespaces() *MemoryBlobNamespaces {
	return &MemoryBlobNamespaces{namespaces: map[string]struct{}{}}
}

func (m *MemoryBlobNamespaces) CreateNamespace(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.namespaces[name] = struct{}{}
	return nil
}

func (m *MemoryBlobNamespaces) DeleteNamespace(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.namespaces, name)
	return nil
}

// Exists reports whether a namespace is currently provisioned.
func (m *MemoryBlobNamespaces) Exists(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.namespaces[name]
	return ok
}
