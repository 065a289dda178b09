package driver

import (
	"context"

	"github.com/vitebski/dbsight/pkg/models"
)

// Driver is a live connection to one configured database.
// The set of implementations is closed: every driver embeds BaseSQL.
type Driver interface {
	// Name identifies the backend, e.g. "MySQL"
	Name() string

	// Connect opens the pool and verifies one session can be acquired
	Connect(ctx context.Context) error

	// TestConnection checks the configuration with a throwaway pool and
	// leaves the driver's own state untouched
	TestConnection(ctx context.Context) error

	ListSchemas(ctx context.Context) ([]models.DBSchema, error)
	ListTables(ctx context.Context, schema string) ([]models.TableInfo, error)
	GetTableColumns(ctx context.Context, schema, table string) ([]models.TableColumn, error)

	// FetchTableData returns at most limit rows starting at offset together
	// with the table's total row count
	FetchTableData(ctx context.Context, schema, table string, offset, limit uint64) (*models.TableDataPage, error)

	IsConnected() bool
	Close() error

	base() *BaseSQL
}
