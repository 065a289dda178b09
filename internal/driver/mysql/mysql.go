// Package mysql implements the MySQL and MariaDB driver
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"strings"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/vitebski/dbsight/internal/driver"
	"github.com/vitebski/dbsight/pkg/models"
)

const columnsQuery = `
	SELECT
		CAST(COLUMN_NAME AS CHAR(255)) AS COLUMN_NAME,
		CAST(COLUMN_TYPE AS CHAR(255)) AS COLUMN_TYPE,
		CAST(IS_NULLABLE AS CHAR(10)) AS IS_NULLABLE,
		COLUMN_DEFAULT
	FROM INFORMATION_SCHEMA.COLUMNS
	WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
	ORDER BY ORDINAL_POSITION`

var dialect = driver.Dialect{
	SQLDriver:   "mysql",
	Quote:       driver.QuoteWith("`"),
	IsAuth:      IsAuthError,
	IsStatement: isServerError,
}

func init() {
	driver.Register(models.MySql, New)
	driver.Register(models.MariaDB, New)
}

// Driver talks to MySQL compatible servers through go-sql-driver/mysql
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
	return "MySQL"
}

// DSN renders the go-sql-driver connection string for the profile
func (d *Driver) DSN() string {
	c := gomysql.NewConfig()
	c.User = d.cfg.Username
	c.Passwd = d.password
	switch d.cfg.Endpoint.Type {
	case models.EndpointUnix:
		c.Net = "unix"
		c.Addr = d.cfg.Endpoint.Path
	default:
		c.Net = "tcp"
		c.Addr = net.JoinHostPort(d.cfg.Endpoint.Host, d.cfg.Endpoint.Port)
	}
	c.DBName = d.cfg.Database
	c.ParseTime = true
	c.Timeout = d.Opts.AcquireTimeout
	return c.FormatDSN()
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
		rows, err := conn.QueryContext(ctx, "SHOW DATABASES")
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var name []byte
			if err := rows.Scan(&name); err != nil {
				return err
			}
			schemas = append(schemas, models.DBSchema{Name: driver.DecodeName(name)})
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
		rows, err := conn.QueryContext(ctx, "SHOW FULL TABLES FROM "+dialect.Quote(schema))
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var name, tableType []byte
			if err := rows.Scan(&name, &tableType); err != nil {
				return err
			}
			tables = append(tables, models.TableInfo{
				Name:      driver.DecodeName(name),
				TableType: driver.DecodeName(tableType),
			})
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
			var name, dataType, nullable []byte
			var def sql.NullString
			if err := rows.Scan(&name, &dataType, &nullable, &def); err != nil {
				return err
			}
			col := models.TableColumn{
				Name:     driver.DecodeName(name),
				DataType: driver.DecodeName(dataType),
				Nullable: strings.EqualFold(string(nullable), "YES"),
			}
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

// IsAuthError reports whether err is the server rejecting the credentials
func IsAuthError(err error) bool {
	var myErr *gomysql.MySQLError
	if !errors.As(err, &myErr) {
		return false
	}
	return string(myErr.SQLState[:]) == "28000" && strings.Contains(myErr.Message, "Access denied")
}

func isServerError(err error) bool {
	var myErr *gomysql.MySQLError
	return errors.As(err, &myErr)
}
