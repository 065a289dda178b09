// Package manager owns the connection profiles, their activation state and
// the live drivers built from them
package manager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vitebski/dbsight/internal/config"
	"github.com/vitebski/dbsight/internal/credential"
	"github.com/vitebski/dbsight/internal/driver"
	"github.com/vitebski/dbsight/internal/utils"
	"github.com/vitebski/dbsight/pkg/models"
)

// Manager is safe for concurrent use. The config document and the live
// driver registry have separate locks that are never held together.
type Manager struct {
	path      string
	creds     credential.Store
	opts      driver.Options
	newDriver driver.Factory
	logger    *logrus.Logger
	events    *notifier

	docMu    sync.RWMutex
	doc      *config.DBConfig
	selected *uuid.UUID

	connMu sync.RWMutex
	conns  map[string]driver.Driver

	// serializes file writes; each write snapshots the newest document
	persistMu sync.Mutex

	// pairs a stored secret with the length recorded for it; taken before docMu
	credMu sync.Mutex

	// runs between the two steps of SaveAndActivateConnection
	afterSave func(models.ConnectionConfig)
}

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the logger used by the manager and the drivers it opens
func WithLogger(logger *logrus.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithDriverOptions sets the pool options for drivers the manager builds
func WithDriverOptions(opts driver.Options) Option {
	return func(m *Manager) {
		m.opts = opts
	}
}

// WithDriverFactory replaces the driver registry lookup
func WithDriverFactory(f driver.Factory) Option {
	return func(m *Manager) {
		m.newDriver = f
	}
}

// New creates a manager persisting to path and keeping secrets in creds.
// The document starts empty until LoadConfig is called.
func New(path string, creds credential.Store, opts ...Option) *Manager {
	m := &Manager{
		path:      path,
		creds:     creds,
		newDriver: driver.New,
		events:    newNotifier(),
		doc:       config.NewDBConfig(),
		conns:     make(map[string]driver.Driver),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = utils.NopLogger()
	}
	if m.opts.Logger == nil {
		m.opts.Logger = m.logger
	}
	return m
}

// ConfigPath returns the file the document is persisted to
func (m *Manager) ConfigPath() string {
	return m.path
}

// LoadConfig replaces the in-memory document with the file contents. A
// missing file yields an empty document; a malformed one is an error and
// leaves the current document untouched.
func (m *Manager) LoadConfig(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	doc, err := config.LoadFromFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		m.logger.Debugf("No config file at %s, starting empty", m.path)
		doc = config.NewDBConfig()
	} else if err != nil {
		m.logger.Errorf("Error loading config: %v", err)
		return &PersistenceError{Op: "load config", Err: err}
	}

	m.docMu.Lock()
	m.doc = doc
	m.docMu.Unlock()

	m.logger.Infof("Loaded %d connection(s) from %s", len(doc.Connections), m.path)
	return nil
}

// persist writes the newest document. Callers must not hold docMu.
func (m *Manager) persist(ctx context.Context) error {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	m.docMu.RLock()
	snapshot := m.doc.Clone()
	m.docMu.RUnlock()

	if err := snapshot.SaveToFile(m.path); err != nil {
		m.logger.Errorf("Error saving config: %v", err)
		return &PersistenceError{Op: "save config", Err: err}
	}
	return nil
}

// SaveConfig inserts or replaces the profile with cfg.ID and persists the
// document. With a password the secret is stored first and the profile
// records its length; if storing fails nothing changes. Without a password
// an existing profile keeps its stored secret marker.
func (m *Manager) SaveConfig(ctx context.Context, cfg models.ConnectionConfig, password *string) (models.ConnectionConfig, error) {
	if err := ctx.Err(); err != nil {
		return models.ConnectionConfig{}, err
	}
	if cfg.ID == uuid.Nil {
		return models.ConnectionConfig{}, fmt.Errorf("connection config has no id")
	}
	cfg = cfg.Clone()

	m.credMu.Lock()
	if password != nil {
		if err := m.creds.Set(cfg.ID.String(), *password); err != nil {
			m.credMu.Unlock()
			m.logger.Errorf("Error storing password for %s: %v", cfg.ID, err)
			return models.ConnectionConfig{}, &PersistenceError{Op: "store credential", Err: err}
		}
		n := len(*password)
		cfg.SavedPasswordLen = &n
	}

	m.docMu.Lock()
	if password == nil {
		cfg.SavedPasswordLen = nil
		if i := m.doc.Find(cfg.ID); i >= 0 {
			cfg.SavedPasswordLen = m.doc.Connections[i].Clone().SavedPasswordLen
		}
	}
	replaced := m.doc.Upsert(cfg.Clone())
	m.docMu.Unlock()
	m.credMu.Unlock()

	if replaced {
		m.logger.Debugf("Updated connection %s (%s)", cfg.Name, cfg.ID)
	} else {
		m.logger.Debugf("Added connection %s (%s)", cfg.Name, cfg.ID)
	}

	if err := m.persist(ctx); err != nil {
		return models.ConnectionConfig{}, err
	}
	return cfg, nil
}

// DeleteConfig removes a profile, its activation, its stored secret and any
// live driver registered under its id
func (m *Manager) DeleteConfig(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.credMu.Lock()
	m.docMu.Lock()
	i := m.doc.Find(id)
	if i < 0 {
		m.docMu.Unlock()
		m.credMu.Unlock()
		return ErrConfigNotFound
	}
	m.doc.Connections = append(m.doc.Connections[:i], m.doc.Connections[i+1:]...)
	wasActive := m.doc.DeactivateID(id)
	active := m.doc.ActiveConfigs()
	m.docMu.Unlock()

	if err := m.creds.Delete(id.String()); err != nil && !errors.Is(err, credential.ErrNotFound) {
		m.logger.Warnf("Could not delete stored password for %s: %v", id, err)
	}
	m.credMu.Unlock()
	if err := m.CloseConnection(id.String()); err != nil {
		m.logger.Warnf("Error closing connection %s: %v", id, err)
	}

	err := m.persist(ctx)
	if wasActive {
		m.events.broadcast(ActiveConnectionsChanged{ActiveConfigs: active})
	}
	return err
}

// GetAllConfigs returns copies of every profile in document order
func (m *Manager) GetAllConfigs() []models.ConnectionConfig {
	m.docMu.RLock()
	defer m.docMu.RUnlock()

	out := make([]models.ConnectionConfig, len(m.doc.Connections))
	for i, c := range m.doc.Connections {
		out[i] = c.Clone()
	}
	return out
}

// GetConfigByID returns a copy of the profile with id
func (m *Manager) GetConfigByID(id uuid.UUID) (models.ConnectionConfig, bool) {
	m.docMu.RLock()
	defer m.docMu.RUnlock()

	if i := m.doc.Find(id); i >= 0 {
		return m.doc.Connections[i].Clone(), true
	}
	return models.ConnectionConfig{}, false
}

// AddActiveConnection marks id active. Adding an id twice is a no-op.
func (m *Manager) AddActiveConnection(ctx context.Context, id uuid.UUID) error {
	return m.updateActive(ctx, func(doc *config.DBConfig) bool { return doc.ActivateID(id) })
}

// RemoveActiveConnection unmarks id. Removing an inactive id is a no-op.
func (m *Manager) RemoveActiveConnection(ctx context.Context, id uuid.UUID) error {
	return m.updateActive(ctx, func(doc *config.DBConfig) bool { return doc.DeactivateID(id) })
}

func (m *Manager) updateActive(ctx context.Context, mutate func(*config.DBConfig) bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.docMu.Lock()
	changed := mutate(m.doc)
	active := m.doc.ActiveConfigs()
	m.docMu.Unlock()

	if !changed {
		return nil
	}

	err := m.persist(ctx)
	m.events.broadcast(ActiveConnectionsChanged{ActiveConfigs: active})
	return err
}

// GetActiveConfigs resolves the active ids in order. Ids whose profile no
// longer exists are skipped.
func (m *Manager) GetActiveConfigs() []models.ConnectionConfig {
	m.docMu.RLock()
	defer m.docMu.RUnlock()
	return m.doc.ActiveConfigs()
}

// GetActiveConfigIDs returns the raw active id list
func (m *Manager) GetActiveConfigIDs() []uuid.UUID {
	m.docMu.RLock()
	defer m.docMu.RUnlock()

	out := make([]uuid.UUID, len(m.doc.ActiveConnectionIDs))
	copy(out, m.doc.ActiveConnectionIDs)
	return out
}

// SaveAndActivateConnection saves cfg and then activates it. The two steps
// are not atomic: another reader may observe the saved but inactive profile.
// Activation is skipped when saving fails.
func (m *Manager) SaveAndActivateConnection(ctx context.Context, cfg models.ConnectionConfig, password *string) (models.ConnectionConfig, error) {
	saved, err := m.SaveConfig(ctx, cfg, password)
	if err != nil {
		return models.ConnectionConfig{}, err
	}
	if m.afterSave != nil {
		m.afterSave(saved)
	}
	if err := m.AddActiveConnection(ctx, saved.ID); err != nil {
		return saved, err
	}
	return saved, nil
}

// SetSelectedConnection changes the focused profile. The selection lives in
// memory only.
func (m *Manager) SetSelectedConnection(id *uuid.UUID) {
	m.docMu.Lock()
	same := (m.selected == nil && id == nil) || (m.selected != nil && id != nil && *m.selected == *id)
	if id != nil {
		v := *id
		m.selected = &v
	} else {
		m.selected = nil
	}
	m.docMu.Unlock()

	if !same {
		var ev SelectedConnectionChanged
		if id != nil {
			v := *id
			ev.ID = &v
		}
		m.events.broadcast(ev)
	}
}

// GetSelectedConnection returns the focused profile id, or nil
func (m *Manager) GetSelectedConnection() *uuid.UUID {
	m.docMu.RLock()
	defer m.docMu.RUnlock()

	if m.selected == nil {
		return nil
	}
	v := *m.selected
	return &v
}

// Subscribe returns a channel receiving state change events. Call
// Unsubscribe when done.
func (m *Manager) Subscribe() chan Event {
	return m.events.subscribe()
}

// Unsubscribe stops delivery and closes ch
func (m *Manager) Unsubscribe(ch chan Event) {
	m.events.unsubscribe(ch)
}

// AddConnection registers a live driver under key, replacing any previous one
func (m *Manager) AddConnection(key string, drv driver.Driver) {
	m.connMu.Lock()
	defer m.connMu.Unlock()
	m.conns[key] = drv
}

// GetConnection returns the live driver registered under key
func (m *Manager) GetConnection(key string) (driver.Driver, bool) {
	m.connMu.RLock()
	defer m.connMu.RUnlock()
	drv, ok := m.conns[key]
	return drv, ok
}

// GetAllConnections returns a copy of the live driver registry
func (m *Manager) GetAllConnections() map[string]driver.Driver {
	m.connMu.RLock()
	defer m.connMu.RUnlock()

	out := make(map[string]driver.Driver, len(m.conns))
	for k, v := range m.conns {
		out[k] = v
	}
	return out
}

// CloseConnection unregisters and closes the driver under key
func (m *Manager) CloseConnection(key string) error {
	m.connMu.Lock()
	drv, ok := m.conns[key]
	delete(m.conns, key)
	m.connMu.Unlock()

	if !ok {
		return nil
	}
	return drv.Close()
}

// CloseAll closes every live driver
func (m *Manager) CloseAll() error {
	m.connMu.Lock()
	conns := m.conns
	m.conns = make(map[string]driver.Driver)
	m.connMu.Unlock()

	var errs []error
	for key, drv := range conns {
		if err := drv.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// password resolves the secret for cfg: an explicit one wins, otherwise the
// stored one when the profile has it
func (m *Manager) password(cfg models.ConnectionConfig, explicit *string) (string, error) {
	if explicit != nil {
		return *explicit, nil
	}
	if !cfg.HasSavedPassword() {
		return "", nil
	}

	secret, err := m.creds.Get(cfg.ID.String())
	if errors.Is(err, credential.ErrNotFound) {
		m.logger.Warnf("Stored password for %s is missing, connecting without one", cfg.Name)
		return "", nil
	}
	if err != nil {
		return "", &PersistenceError{Op: "read credential", Err: err}
	}
	return secret, nil
}

// OpenConnection returns the connected driver for profile id, building and
// registering one under id.String() when none is live yet. Driver errors are
// returned unchanged.
func (m *Manager) OpenConnection(ctx context.Context, id uuid.UUID) (driver.Driver, error) {
	key := id.String()
	if drv, ok := m.GetConnection(key); ok && drv.IsConnected() {
		return drv, nil
	}

	cfg, ok := m.GetConfigByID(id)
	if !ok {
		return nil, ErrConfigNotFound
	}
	pw, err := m.password(cfg, nil)
	if err != nil {
		return nil, err
	}

	drv, err := m.newDriver(cfg, pw, m.opts)
	if err != nil {
		return nil, err
	}
	if err := drv.Connect(ctx); err != nil {
		m.logger.Warnf("Connecting %s failed: %v", cfg.Name, err)
		return nil, err
	}

	m.connMu.Lock()
	if existing, ok := m.conns[key]; ok && existing.IsConnected() {
		m.connMu.Unlock()
		// lost a race with another opener
		_ = drv.Close()
		return existing, nil
	}
	m.conns[key] = drv
	m.connMu.Unlock()

	return drv, nil
}

// TestConfig checks cfg against its server with a throwaway driver. A nil
// password falls back to the stored secret.
func (m *Manager) TestConfig(ctx context.Context, cfg models.ConnectionConfig, password *string) error {
	pw, err := m.password(cfg, password)
	if err != nil {
		return err
	}

	drv, err := m.newDriver(cfg, pw, m.opts)
	if err != nil {
		return err
	}
	defer drv.Close()

	return drv.TestConnection(ctx)
}
