package driver

import (
	"fmt"
	"sort"
	"sync"

	"github.com/vitebski/dbsight/pkg/models"
)

// Factory builds an unconnected driver for a connection profile
type Factory func(cfg models.ConnectionConfig, password string, opts Options) (Driver, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[models.DatabaseType]Factory)
)

// Register adds a driver factory for a database type.
// Called by backends in their init() functions.
func Register(dbType models.DatabaseType, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[dbType] = factory
}

// Get retrieves the factory for a database type
func Get(dbType models.DatabaseType) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[dbType]
	return f, ok
}

// New creates a driver for cfg. The driver is not connected yet.
func New(cfg models.ConnectionConfig, password string, opts Options) (Driver, error) {
	if cfg.DBType == "" {
		return nil, fmt.Errorf("database type not specified")
	}
	factory, ok := Get(cfg.DBType)
	if !ok {
		return nil, &UnknownDriverError{Type: cfg.DBType, Available: ListDrivers()}
	}
	return factory(cfg, password, opts.WithDefaults())
}

// ListDrivers returns the registered database types, sorted
func ListDrivers() []models.DatabaseType {
	registryMu.RLock()
	defer registryMu.RUnlock()
	types := make([]models.DatabaseType, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// IsRegistered checks if a database type has a driver
func IsRegistered(dbType models.DatabaseType) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[dbType]
	return ok
}

// UnknownDriverError is returned when no driver serves a database type
type UnknownDriverError struct {
	Type      models.DatabaseType
	Available []models.DatabaseType
}

func (e *UnknownDriverError) Error() string {
	return fmt.Sprintf("no driver available for database type %q (available: %v)", string(e.Type), e.Available)
}
