package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/vitebski/dbsight/pkg/models"
)

const (
	// CurrentVersion is written into every new config document
	CurrentVersion = "1.0"

	// AppDirName is the per-user config directory name
	AppDirName = "db-sight"

	// ConnectionsFile holds the persisted connection profiles
	ConnectionsFile = "connections.json"
)

// DBConfig is the persisted document: profiles plus the ordered ids of the
// active ones. Active ids may name profiles that no longer exist; readers
// skip those.
type DBConfig struct {
	Version             string                    `json:"version"`
	Connections         []models.ConnectionConfig `json:"connections"`
	ActiveConnectionIDs []uuid.UUID               `json:"active_connection_ids"`
}

// NewDBConfig returns an empty document at the current version
func NewDBConfig() *DBConfig {
	return &DBConfig{
		Version:             CurrentVersion,
		Connections:         []models.ConnectionConfig{},
		ActiveConnectionIDs: []uuid.UUID{},
	}
}

// DefaultConfigPath returns <dir>/connections.json. An empty dir means the
// user config directory, falling back to the working directory.
func DefaultConfigPath(dir string) string {
	if dir == "" {
		dir = DefaultConfigDir()
	}
	return filepath.Join(dir, ConnectionsFile)
}

// DefaultConfigDir returns <user config dir>/db-sight
func DefaultConfigDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(base, AppDirName)
}

// LoadFromFile reads and decodes a config document. A malformed file is an
// error; it is never replaced with an empty document.
func LoadFromFile(path string) (*DBConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := NewDBConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("malformed config file %s: %w", path, err)
	}
	if cfg.Version == "" {
		cfg.Version = CurrentVersion
	}
	if cfg.Connections == nil {
		cfg.Connections = []models.ConnectionConfig{}
	}
	if cfg.ActiveConnectionIDs == nil {
		cfg.ActiveConnectionIDs = []uuid.UUID{}
	}
	return cfg, nil
}

// SaveToFile writes the document as indented JSON. The file is replaced
// atomically through a temp file in the same directory.
func (c *DBConfig) SaveToFile(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing config file: %w", err)
	}
	return nil
}

// Clone returns a deep copy
func (c *DBConfig) Clone() *DBConfig {
	out := &DBConfig{
		Version:             c.Version,
		Connections:         make([]models.ConnectionConfig, len(c.Connections)),
		ActiveConnectionIDs: make([]uuid.UUID, len(c.ActiveConnectionIDs)),
	}
	for i, conn := range c.Connections {
		out.Connections[i] = conn.Clone()
	}
	copy(out.ActiveConnectionIDs, c.ActiveConnectionIDs)
	return out
}

// Find returns the index of the profile with id, or -1
func (c *DBConfig) Find(id uuid.UUID) int {
	for i, conn := range c.Connections {
		if conn.ID == id {
			return i
		}
	}
	return -1
}

// Upsert replaces the profile with the same id or appends it. It reports
// whether an existing profile was replaced.
func (c *DBConfig) Upsert(cfg models.ConnectionConfig) bool {
	if i := c.Find(cfg.ID); i >= 0 {
		c.Connections[i] = cfg
		return true
	}
	c.Connections = append(c.Connections, cfg)
	return false
}

// IsActive reports whether id is in the active list
func (c *DBConfig) IsActive(id uuid.UUID) bool {
	for _, a := range c.ActiveConnectionIDs {
		if a == id {
			return true
		}
	}
	return false
}

// ActivateID appends id to the active list unless already present.
// It reports whether the list changed.
func (c *DBConfig) ActivateID(id uuid.UUID) bool {
	if c.IsActive(id) {
		return false
	}
	c.ActiveConnectionIDs = append(c.ActiveConnectionIDs, id)
	return true
}

// DeactivateID removes every occurrence of id from the active list.
// It reports whether the list changed.
func (c *DBConfig) DeactivateID(id uuid.UUID) bool {
	kept := c.ActiveConnectionIDs[:0]
	for _, a := range c.ActiveConnectionIDs {
		if a != id {
			kept = append(kept, a)
		}
	}
	changed := len(kept) != len(c.ActiveConnectionIDs)
	c.ActiveConnectionIDs = kept
	return changed
}

// ActiveConfigs resolves the active ids in order, skipping ids without a
// matching profile
func (c *DBConfig) ActiveConfigs() []models.ConnectionConfig {
	out := make([]models.ConnectionConfig, 0, len(c.ActiveConnectionIDs))
	for _, id := range c.ActiveConnectionIDs {
		if i := c.Find(id); i >= 0 {
			out = append(out, c.Connections[i].Clone())
		}
	}
	return out
}
