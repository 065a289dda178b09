package models

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// DatabaseType identifies the kind of server a connection profile points at
type DatabaseType string

const (
	Postgres           DatabaseType = "Postgres"
	MySql              DatabaseType = "MySql"
	Sqlite             DatabaseType = "Sqlite"
	MariaDB            DatabaseType = "MariaDB"
	Oracle             DatabaseType = "Oracle"
	Redis              DatabaseType = "Redis"
	MongoDB            DatabaseType = "MongoDB"
	MicrosoftSQLServer DatabaseType = "MicrosoftSQLServer"
)

// AllDatabaseTypes lists every known database type in display order
var AllDatabaseTypes = []DatabaseType{
	Postgres, MySql, Sqlite, MariaDB, Oracle, Redis, MongoDB, MicrosoftSQLServer,
}

var displayNames = map[DatabaseType]string{
	Postgres:           "PostgreSQL",
	MySql:              "MySQL",
	Sqlite:             "SQLite",
	MariaDB:            "MariaDB",
	Oracle:             "Oracle",
	Redis:              "Redis",
	MongoDB:            "MongoDB",
	MicrosoftSQLServer: "SQL Server",
}

// String returns the display name of the database type
func (t DatabaseType) String() string {
	if name, ok := displayNames[t]; ok {
		return name
	}
	return string(t)
}

// ParseDatabaseType converts a user supplied name into a DatabaseType
func ParseDatabaseType(s string) (DatabaseType, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	switch key {
	case "postgresql", "pg":
		return Postgres, nil
	case "sqlite3":
		return Sqlite, nil
	case "mssql", "sqlserver":
		return MicrosoftSQLServer, nil
	case "mongo":
		return MongoDB, nil
	}
	for _, t := range AllDatabaseTypes {
		if strings.ToLower(string(t)) == key || strings.ToLower(t.String()) == key {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown database type %q", s)
}

// EndpointType tags the Endpoint union
type EndpointType string

const (
	EndpointTCP  EndpointType = "tcp"
	EndpointUnix EndpointType = "unix"
)

// Endpoint describes how to reach a server. It never carries credentials.
type Endpoint struct {
	Type EndpointType `json:"type"`
	Host string       `json:"host,omitempty"`
	Port string       `json:"port,omitempty"`
	Path string       `json:"path,omitempty"`
}

// TCP builds a host/port endpoint
func TCP(host, port string) Endpoint {
	return Endpoint{Type: EndpointTCP, Host: host, Port: port}
}

// Unix builds a socket (or file) path endpoint
func Unix(path string) Endpoint {
	return Endpoint{Type: EndpointUnix, Path: path}
}

// Address returns host:port for TCP endpoints and the path otherwise
func (e Endpoint) Address() string {
	if e.Type == EndpointUnix {
		return e.Path
	}
	return e.Host + ":" + e.Port
}

// Validate checks that the endpoint is usable
func (e Endpoint) Validate() error {
	switch e.Type {
	case EndpointTCP:
		if e.Host == "" {
			return fmt.Errorf("endpoint host is required")
		}
		if _, err := strconv.ParseUint(e.Port, 10, 16); err != nil {
			return fmt.Errorf("invalid port number: %q", e.Port)
		}
	case EndpointUnix:
		if e.Path == "" {
			return fmt.Errorf("endpoint path is required")
		}
	default:
		return fmt.Errorf("unknown endpoint type %q", e.Type)
	}
	return nil
}

// ConnectionConfig is a named, persisted connection profile.
// SavedPasswordLen is only a hint that a secret exists in the credential
// store under ID; the password itself is never part of this struct.
type ConnectionConfig struct {
	ID               uuid.UUID    `json:"id"`
	Name             string       `json:"name"`
	DBType           DatabaseType `json:"db_type"`
	Endpoint         Endpoint     `json:"endpoint"`
	Database         string       `json:"database,omitempty"`
	RememberPassword bool         `json:"remember_password"`
	Username         string       `json:"username"`
	SavedPasswordLen *int         `json:"saved_password_len"`
}

// NewConnectionConfig creates a profile with a fresh v4 id
func NewConnectionConfig(name string, dbType DatabaseType, endpoint Endpoint, rememberPassword bool, username string) ConnectionConfig {
	return ConnectionConfig{
		ID:               uuid.New(),
		Name:             name,
		DBType:           dbType,
		Endpoint:         endpoint,
		RememberPassword: rememberPassword,
		Username:         username,
	}
}

// Clone returns a deep copy
func (c ConnectionConfig) Clone() ConnectionConfig {
	if c.SavedPasswordLen != nil {
		n := *c.SavedPasswordLen
		c.SavedPasswordLen = &n
	}
	return c
}

// HasSavedPassword reports whether the credential store should hold a secret
func (c ConnectionConfig) HasSavedPassword() bool {
	return c.SavedPasswordLen != nil
}

// DBSchema is a database-level namespace
type DBSchema struct {
	Name string `json:"name"`
}

// TableInfo is one row of a schema-level table listing
type TableInfo struct {
	Name      string `json:"name"`
	TableType string `json:"table_type"`
}

// TableColumn represents a column as reported by live metadata
type TableColumn struct {
	Name     string  `json:"name"`
	DataType string  `json:"data_type"`
	Nullable bool    `json:"nullable"`
	Default  *string `json:"default"`
}

// TableDataPage is one window of rows plus the full table cardinality
type TableDataPage struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
	Total   uint64     `json:"total"`
}

// EmptyPage returns a page with no columns, no rows and a zero total
func EmptyPage() *TableDataPage {
	return &TableDataPage{
		Columns: []string{},
		Rows:    [][]string{},
		Total:   0,
	}
}
