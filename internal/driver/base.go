package driver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vitebski/dbsight/internal/utils"
	"github.com/vitebski/dbsight/pkg/models"
)

const (
	DefaultMaxOpenConns   = 5
	DefaultAcquireTimeout = 10 * time.Second
)

// Options tune the pool every driver owns
type Options struct {
	MaxOpenConns   int
	AcquireTimeout time.Duration
	Logger         *logrus.Logger
}

// WithDefaults fills unset fields
func (o Options) WithDefaults() Options {
	if o.MaxOpenConns <= 0 {
		o.MaxOpenConns = DefaultMaxOpenConns
	}
	if o.AcquireTimeout <= 0 {
		o.AcquireTimeout = DefaultAcquireTimeout
	}
	if o.Logger == nil {
		o.Logger = utils.NopLogger()
	}
	return o
}

// Dialect carries the backend specific pieces BaseSQL needs
type Dialect struct {
	// SQLDriver is the database/sql driver name passed to sql.Open
	SQLDriver string
	// Quote quotes a single identifier
	Quote func(ident string) string
	// IsAuth recognizes rejected credentials
	IsAuth AuthChecker
	// IsStatement recognizes errors raised by the server for a statement
	IsStatement func(error) bool
}

// BaseSQL holds the bounded database/sql pool and the helpers shared by all
// backends. Concrete drivers embed a *BaseSQL.
type BaseSQL struct {
	Dialect Dialect
	Opts    Options
	Logger  *logrus.Logger
	Cascade Cascade

	mu sync.RWMutex
	db *sql.DB
}

// NewBaseSQL builds an unconnected base with defaulted options
func NewBaseSQL(d Dialect, opts Options) *BaseSQL {
	opts = opts.WithDefaults()
	return &BaseSQL{
		Dialect: d,
		Opts:    opts,
		Logger:  opts.Logger,
		Cascade: DefaultCascade,
	}
}

func (b *BaseSQL) base() *BaseSQL { return b }

// Attach installs an already opened pool, replacing and closing any previous one
func (b *BaseSQL) Attach(db *sql.DB) {
	db.SetMaxOpenConns(b.Opts.MaxOpenConns)
	b.mu.Lock()
	old := b.db
	b.db = db
	b.mu.Unlock()
	if old != nil && old != db {
		_ = old.Close()
	}
}

// DB returns the current pool or nil
func (b *BaseSQL) DB() *sql.DB {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.db
}

// IsConnected reports whether a pool is installed
func (b *BaseSQL) IsConnected() bool {
	return b.DB() != nil
}

// Close releases the pool. Calling it twice is harmless.
func (b *BaseSQL) Close() error {
	b.mu.Lock()
	db := b.db
	b.db = nil
	b.mu.Unlock()
	if db == nil {
		return nil
	}
	b.Logger.Debug("Closing connection pool")
	return db.Close()
}

// Acquire takes one session from the pool, waiting at most AcquireTimeout.
// The caller must Close the returned connection.
func (b *BaseSQL) Acquire(ctx context.Context) (*sql.Conn, error) {
	db := b.DB()
	if db == nil {
		return nil, ConnectionError("Not connected", nil)
	}
	return b.acquireFrom(ctx, db)
}

func (b *BaseSQL) acquireFrom(ctx context.Context, db *sql.DB) (*sql.Conn, error) {
	actx, cancel := context.WithTimeout(ctx, b.Opts.AcquireTimeout)
	defer cancel()

	conn, err := db.Conn(actx)
	if err != nil {
		if ctx.Err() == nil && errors.Is(actx.Err(), context.DeadlineExceeded) {
			return nil, ConnectionTimeout(err)
		}
		return nil, err
	}
	return conn, nil
}

// OpenPool opens a pool for dsn, proves it by acquiring and pinging one
// session, and installs it. Failures are classified as connect errors.
func (b *BaseSQL) OpenPool(ctx context.Context, dsn string) error {
	db, err := b.verifiedPool(ctx, dsn)
	if err != nil {
		return err
	}
	b.Attach(db)
	return nil
}

// TestPool runs the same verification as OpenPool on a throwaway pool
func (b *BaseSQL) TestPool(ctx context.Context, dsn string) error {
	db, err := b.verifiedPool(ctx, dsn)
	if err != nil {
		return err
	}
	return db.Close()
}

func (b *BaseSQL) verifiedPool(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open(b.Dialect.SQLDriver, dsn)
	if err != nil {
		return nil, ClassifyConnectError(err, b.Dialect.IsAuth)
	}
	db.SetMaxOpenConns(b.Opts.MaxOpenConns)

	if err := b.probe(ctx, db); err != nil {
		_ = db.Close()
		b.Logger.Warnf("Connection check failed: %v", err)
		return nil, ClassifyConnectError(err, b.Dialect.IsAuth)
	}
	return db, nil
}

func (b *BaseSQL) probe(ctx context.Context, db *sql.DB) error {
	conn, err := b.acquireFrom(ctx, db)
	if err != nil {
		return err
	}
	defer conn.Close()

	var one int
	return conn.QueryRowContext(ctx, "SELECT 1").Scan(&one)
}

// WithConn acquires a session, runs fn on it and classifies any error as a
// query-time failure
func (b *BaseSQL) WithConn(ctx context.Context, fn func(conn *sql.Conn) error) error {
	conn, err := b.Acquire(ctx)
	if err != nil {
		return ClassifyQueryError(err, b.Dialect.IsStatement)
	}
	defer conn.Close()

	if err := fn(conn); err != nil {
		b.Logger.Debugf("Query failed: %v", err)
		return ClassifyQueryError(err, b.Dialect.IsStatement)
	}
	return nil
}

// QualifiedName quotes schema and table for use in a FROM clause
func (b *BaseSQL) QualifiedName(schema, table string) string {
	if schema == "" {
		return b.Dialect.Quote(table)
	}
	return b.Dialect.Quote(schema) + "." + b.Dialect.Quote(table)
}

// FetchPage reads one window of rows for the given columns and the table's
// total row count. No row query is issued when columns is empty.
func (b *BaseSQL) FetchPage(ctx context.Context, schema, table string, columns []models.TableColumn, offset, limit uint64) (*models.TableDataPage, error) {
	if len(columns) == 0 {
		return models.EmptyPage(), nil
	}

	names := make([]string, len(columns))
	quoted := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
		quoted[i] = b.Dialect.Quote(c.Name)
	}
	from := b.QualifiedName(schema, table)

	page := &models.TableDataPage{Columns: names, Rows: [][]string{}}
	err := b.WithConn(ctx, func(conn *sql.Conn) error {
		query := fmt.Sprintf("SELECT %s FROM %s LIMIT %d OFFSET %d", strings.Join(quoted, ", "), from, limit, offset)
		b.Logger.Debugf("Fetching page: %s", query)

		rows, err := conn.QueryContext(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		types, err := rows.ColumnTypes()
		if err != nil {
			return err
		}

		for rows.Next() {
			values := make([]any, len(types))
			ptrs := make([]any, len(types))
			for i := range values {
				ptrs[i] = &values[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return err
			}

			row := make([]string, len(types))
			for i, v := range values {
				row[i] = b.Cascade.Format(Cell{TypeName: types[i].DatabaseTypeName(), Value: v})
			}
			page.Rows = append(page.Rows, row)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		// the session must be free before the count runs on it
		if err := rows.Close(); err != nil {
			return err
		}

		var total int64
		if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+from).Scan(&total); err != nil {
			return err
		}
		page.Total = uint64(total)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// QuoteWith returns a quoting function that wraps identifiers in q and
// doubles any embedded q
func QuoteWith(q string) func(string) string {
	return func(ident string) string {
		return q + strings.ReplaceAll(ident, q, q+q) + q
	}
}
