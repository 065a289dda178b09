package sandbox

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/vitebski/dbsight/internal/utils"
)

const (
	DefaultRows      = 50
	DefaultBatchSize = 100
)

// SeedOptions controls how much data Seed writes. A zero Seed draws fresh
// random values; any other value makes the data reproducible.
type SeedOptions struct {
	Rows      int
	BatchSize int
	Seed      int64
	Logger    *logrus.Logger
}

func (o SeedOptions) withDefaults() SeedOptions {
	if o.Rows <= 0 {
		o.Rows = DefaultRows
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.Logger == nil {
		o.Logger = utils.NopLogger()
	}
	return o
}

// Seed connects to dsn with go-sql-driver/mysql and loads ShopSchema
func Seed(ctx context.Context, dsn string, opts SeedOptions) ([]utils.TableCount, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("sandbox not reachable: %w", err)
	}
	return SeedDB(ctx, db, ShopSchema(), opts)
}

// SeedDB recreates tables on db and fills them. Tables are dropped in
// reverse dependency order and created and filled in dependency order.
func SeedDB(ctx context.Context, db *sql.DB, tables []TableSpec, opts SeedOptions) ([]utils.TableCount, error) {
	opts = opts.withDefaults()

	ordered, err := InsertionOrder(tables)
	if err != nil {
		return nil, err
	}

	for i := len(ordered) - 1; i >= 0; i-- {
		if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+ordered[i].Name); err != nil {
			return nil, fmt.Errorf("dropping %s: %w", ordered[i].Name, err)
		}
	}
	for _, t := range ordered {
		if _, err := db.ExecContext(ctx, CreateTableSQL(t)); err != nil {
			return nil, fmt.Errorf("creating %s: %w", t.Name, err)
		}
	}

	gen := newGenerator(opts.Seed)
	counts := make([]utils.TableCount, 0, len(ordered))

	for _, t := range ordered {
		factor := t.RowFactor
		if factor <= 0 {
			factor = 1
		}
		n := opts.Rows * factor
		opts.Logger.Infof("Populating table: %s", t.Name)

		insert := InsertSQL(t)
		batch := make([][]any, 0, opts.BatchSize)
		written := 0

		for row := 1; row <= n; row++ {
			params, err := gen.row(t, row)
			if err != nil {
				return counts, err
			}
			batch = append(batch, params)

			if len(batch) >= opts.BatchSize || row == n {
				affected, err := insertMany(ctx, db, insert, batch)
				if err != nil {
					opts.Logger.Errorf("Error inserting data into table %s: %v", t.Name, err)
					return counts, fmt.Errorf("inserting into %s: %w", t.Name, err)
				}
				written += int(affected)
				batch = batch[:0]
			}
		}

		gen.counts[t.Name] = written
		counts = append(counts, utils.TableCount{Table: t.Name, Rows: uint64(written)})
		opts.Logger.Infof("Successfully populated table %s with %d records", t.Name, written)
	}

	return counts, nil
}

// insertMany runs query once per parameter set inside one transaction
func insertMany(ctx context.Context, db *sql.DB, query string, paramsList [][]any) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	defer stmt.Close()

	var total int64
	for _, params := range paramsList {
		result, err := stmt.ExecContext(ctx, params...)
		if err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		total += affected
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return total, nil
}
