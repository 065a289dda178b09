// Package postgres implements the PostgreSQL driver on pgx
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/vitebski/dbsight/internal/driver"
	"github.com/vitebski/dbsight/pkg/models"
)

const (
	schemasQuery = `SELECT schema_name FROM information_schema.schemata ORDER BY schema_name`

	tablesQuery = `
		SELECT table_name, table_type
		FROM information_schema.tables
		WHERE table_schema = $1
		ORDER BY table_name`

	columnsQuery = `
		SELECT column_name, data_type, is_nullable, column_default
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`
)

var dialect = driver.Dialect{
	SQLDriver:   "pgx",
	Quote:       driver.QuoteWith(`"`),
	IsAuth:      IsAuthError,
	IsStatement: isServerError,
}

func init() {
	driver.Register(models.Postgres, New)
}

// Driver talks to PostgreSQL through pgx's database/sql adapter
type Driver struct {
	*driver.BaseSQL
	cfg      models.ConnectionConfig
	password string
}

// New creates an unconnected driver for cfg
func New(cfg models.ConnectionConfig, password string, opts driver.Options) (driver.Driver, error) {
	if err := cfg.Endpoint.Validate(); err != nil {
		return nil, err
	}
	return &Driver{
		BaseSQL:  driver.NewBaseSQL(dialect, opts),
		cfg:      cfg,
		password: password,
	}, nil
}

func (d *Driver) Name() string {
	return "PostgreSQL"
}

// DSN renders a postgres:// URL for the profile. Unix endpoints name the
// socket directory.
func (d *Driver) DSN() string {
	u := url.URL{Scheme: "postgres"}
	if d.cfg.Username != "" {
		if d.password != "" {
			u.User = url.UserPassword(d.cfg.Username, d.password)
		} else {
			u.User = url.User(d.cfg.Username)
		}
	}

	dbName := d.cfg.Database
	if dbName == "" {
		dbName = "postgres"
	}
	u.Path = "/" + dbName

	q := url.Values{}
	switch d.cfg.Endpoint.Type {
	case models.EndpointUnix:
		q.Set("host", d.cfg.Endpoint.Path)
	default:
		u.Host = net.JoinHostPort(d.cfg.Endpoint.Host, d.cfg.Endpoint.Port)
	}
	if secs := int(d.Opts.AcquireTimeout.Seconds()); secs > 0 {
		q.Set("connect_timeout", strconv.Itoa(secs))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (d *Driver) Connect(ctx context.Context) error {
	d.Logger.Debugf("Connecting to %s at %s", d.Name(), d.cfg.Endpoint.Address())
	if err := d.OpenPool(ctx, d.DSN()); err != nil {
		return err
	}
	d.Logger.Infof("Connected to %s: %s", d.Name(), d.cfg.Name)
	return nil
}

func (d *Driver) TestConnection(ctx context.Context) error {
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
			var name string
			if err := rows.Scan(&name); err != nil {
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
		rows, err := conn.QueryContext(ctx, tablesQuery, schema)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var t models.TableInfo
			if err := rows.Scan(&t.Name, &t.TableType); err != nil {
				return err
			}
			tables = append(tables, t)
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
		rows, err := conn.QueryContext(ctx, columnsQuery, schema, table)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var col models.TableColumn
			var nullable string
			var def sql.NullString
			if err := rows.Scan(&col.Name, &col.DataType, &nullable, &def); err != nil {
				return err
			}
			col.Nullable = strings.EqualFold(nullable, "YES")
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

// IsAuthError reports whether err carries an SQLSTATE of class 28, the
// authorization failures such as 28P01
func IsAuthError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return strings.HasPrefix(pgErr.Code, "28")
}

func isServerError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr)
}
