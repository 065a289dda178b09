// Package sqlite implements the SQLite driver on the pure Go modernc engine
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/vitebski/dbsight/internal/driver"
	"github.com/vitebski/dbsight/pkg/models"
	msqlite "modernc.org/sqlite"
)

const (
	schemasQuery = `PRAGMA database_list`

	tablesQuery = `
		SELECT name, type FROM %s.sqlite_master
		WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%%'
		ORDER BY name`

	columnsQuery = `
		SELECT name, type, "notnull", dflt_value
		FROM pragma_table_info(?, ?)
		ORDER BY cid`
)

var dialect = driver.Dialect{
	SQLDriver:   "sqlite",
	Quote:       driver.QuoteWith(`"`),
	IsStatement: isEngineError,
}

func init() {
	driver.Register(models.Sqlite, New)
}

// Driver reads a SQLite database file. The endpoint path names the file.
type Driver struct {
	*driver.BaseSQL
	cfg models.ConnectionConfig
}

// New creates an unconnected driver for cfg. SQLite has no credentials so
// the password is ignored.
func New(cfg models.ConnectionConfig, _ string, opts driver.Options) (driver.Driver, error) {
	if cfg.Endpoint.Type != models.EndpointUnix {
		return nil, fmt.Errorf("sqlite needs a file path endpoint, got %q", cfg.Endpoint.Type)
	}
	if err := cfg.Endpoint.Validate(); err != nil {
		return nil, err
	}
	return &Driver{
		BaseSQL: driver.NewBaseSQL(dialect, opts),
		cfg:     cfg,
	}, nil
}

func (d *Driver) Name() string {
	return "SQLite"
}

// DSN returns the modernc connection string for the database file
func (d *Driver) DSN() string {
	return fmt.Sprintf("%s?_pragma=busy_timeout(%d)", d.cfg.Endpoint.Path, d.Opts.AcquireTimeout.Milliseconds())
}

// checkFile refuses to let the engine create a missing database
func (d *Driver) checkFile() error {
	info, err := os.Stat(d.cfg.Endpoint.Path)
	if err != nil {
		return driver.ConnectionError(err.Error(), err)
	}
	if info.IsDir() {
		return driver.ConnectionError(fmt.Sprintf("%s is a directory", d.cfg.Endpoint.Path), nil)
	}
	return nil
}

func (d *Driver) Connect(ctx context.Context) error {
	if err := d.checkFile(); err != nil {
		return err
	}
	if err := d.OpenPool(ctx, d.DSN()); err != nil {
		return err
	}
	d.Logger.Infof("Opened SQLite database: %s", d.cfg.Endpoint.Path)
	return nil
}

func (d *Driver) TestConnection(ctx context.Context) error {
	if err := d.checkFile(); err != nil {
		return err
	}
	return d.TestPool(ctx, d.DSN())
}

func (d *Driver) ListSchemas(ctx context.Context) ([]models.DBSchema, error) {
	schemas := []models.DBSchema{}
	err := d.WithConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, schemasQuery)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var seq int64
			var name string
			var file sql.NullString
			if err := rows.Scan(&seq, &name, &file); err != nil {
				return err
			}
			schemas = append(schemas, models.DBSchema{Name: name})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return schemas, nil
}

func (d *Driver) ListTables(ctx context.Context, schema string) ([]models.TableInfo, error) {
	tables := []models.TableInfo{}
	err := d.WithConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, fmt.Sprintf(tablesQuery, dialect.Quote(schema)))
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var name, kind string
			if err := rows.Scan(&name, &kind); err != nil {
				return err
			}
			tableType := "BASE TABLE"
			if kind == "view" {
				tableType = "VIEW"
			}
			tables = append(tables, models.TableInfo{Name: name, TableType: tableType})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return tables, nil
}

func (d *Driver) GetTableColumns(ctx context.Context, schema, table string) ([]models.TableColumn, error) {
	columns := []models.TableColumn{}
	err := d.WithConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, columnsQuery, table, schema)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var col models.TableColumn
			var notNull int64
			var def sql.NullString
			if err := rows.Scan(&col.Name, &col.DataType, &notNull, &def); err != nil {
				return err
			}
			col.Nullable = notNull == 0
			if def.Valid {
				v := def.String
				col.Default = &v
			}
			columns = append(columns, col)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return columns, nil
}

func (d *Driver) FetchTableData(ctx context.Context, schema, table string, offset, limit uint64) (*models.TableDataPage, error) {
	columns, err := d.GetTableColumns(ctx, schema, table)
	if err != nil {
		return nil, err
	}
	return d.FetchPage(ctx, schema, table, columns, offset, limit)
}

func isEngineError(err error) bool {
	var sqlErr *msqlite.Error
	return errors.As(err, &sqlErr)
}
