package repository

import (
	"fmt"
	"sort"
	"sync"
)

// BackendType names a storage backend implementation
type BackendType string

const (
	// MemoryBackend keeps everything in process memory
	MemoryBackend BackendType = "memory"
	// LevelDBBackend stores state in a goleveldb directory
	LevelDBBackend BackendType = "leveldb"
	// SQLiteBackend stores state in a sqlite file through gorm
	SQLiteBackend BackendType = "sqlite"
)

// BackendConstructor opens a Database from backend specific parameters
type BackendConstructor func(params map[string]any) (Database, error)

// Registry defines the interface for managing storage backends
type Registry interface {
	// Register adds a new backend implementation to the registry
	Register(bt BackendType, constructor BackendConstructor) error
	// SetDefault sets the default backend type
	SetDefault(bt BackendType) error
	// Get opens a database of the specified backend type
	Get(bt BackendType, params map[string]any) (Database, error)
	// DefaultBackendType returns the current default backend type
	DefaultBackendType() BackendType
	// ListRegistered returns all registered backend types, sorted
	ListRegistered() []BackendType
}

type registry struct {
	mu        sync.RWMutex
	backends  map[BackendType]BackendConstructor
	defaultBt BackendType
}

var defaultRegistry Registry

func init() {
	defaultRegistry = &registry{
		backends: make(map[BackendType]BackendConstructor),
	}
	Register(MemoryBackend, func(map[string]any) (Database, error) {
		return NewMemoryDatabase(), nil
	})
}

// GetRegistry returns the global Registry instance
func GetRegistry() Registry {
	return defaultRegistry
}

func (r *registry) Register(bt BackendType, constructor BackendConstructor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.backends[bt]; exists {
		return fmt.Errorf("backend type %s already registered", bt)
	}
	r.backends[bt] = constructor
	return nil
}

func (r *registry) SetDefault(bt BackendType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.backends[bt]; !exists {
		return fmt.Errorf("backend type %s not registered", bt)
	}
	r.defaultBt = bt
	return nil
}

func (r *registry) Get(bt BackendType, params map[string]any) (Database, error) {
	r.mu.RLock()
	constructor, exists := r.backends[bt]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("backend type %s not found", bt)
	}
	return constructor(params)
}

func (r *registry) DefaultBackendType() BackendType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.defaultBt == "" {
		return MemoryBackend
	}
	return r.defaultBt
}

func (r *registry) ListRegistered() []BackendType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]BackendType, 0, len(r.backends))
	for bt := range r.backends {
		types = append(types, bt)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Register adds a backend to the default registry
func Register(bt BackendType, constructor BackendConstructor) error {
	return GetRegistry().Register(bt, constructor)
}

// SetDefault sets the default backend of the default registry
func SetDefault(bt BackendType) error {
	return GetRegistry().SetDefault(bt)
}

// OpenDatabase opens a database; an empty type selects the default backend
func OpenDatabase(bt BackendType, params map[string]any) (Database, error) {
	if bt == "" {
		bt = GetRegistry().DefaultBackendType()
	}
	return GetRegistry().Get(bt, params)
}

// ListRegistered returns all backends of the default registry
func ListRegistered() []BackendType {
	return GetRegistry().ListRegistered()
}
