package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitebski/dbsight/internal/driver"
	"github.com/vitebski/dbsight/pkg/models"
)

// createFixture writes a database with a 250 row events table and a view
func createFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.db")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE events (
		id INTEGER PRIMARY KEY,
		label TEXT,
		amount REAL NOT NULL DEFAULT 0,
		payload BLOB
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE VIEW big_events AS SELECT id, amount FROM events WHERE amount > 100`)
	require.NoError(t, err)

	tx, err := db.Begin()
	require.NoError(t, err)
	for i := 1; i <= 250; i++ {
		var label any = fmt.Sprintf("event-%d", i)
		if i%10 == 0 {
			label = nil
		}
		_, err := tx.Exec(`INSERT INTO events (id, label, amount, payload) VALUES (?, ?, ?, ?)`,
			i, label, float64(i)+0.5, []byte{0xff, byte(i)})
		require.NoError(t, err)
	}
	require.NoError(t, tx.Commit())
	return path
}

func connect(t *testing.T, path string) driver.Driver {
	t.Helper()
	cfg := models.NewConnectionConfig("fixture", models.Sqlite, models.Unix(path), false, "")
	drv, err := driver.New(cfg, "", driver.Options{})
	require.NoError(t, err)
	require.NoError(t, drv.Connect(context.Background()))
	t.Cleanup(func() { _ = drv.Close() })
	return drv
}

func TestNewRequiresPath(t *testing.T) {
	cfg := models.NewConnectionConfig("bad", models.Sqlite, models.TCP("localhost", "1"), false, "")
	_, err := New(cfg, "", driver.Options{})
	assert.Error(t, err)
}

func TestConnectMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.db")
	cfg := models.NewConnectionConfig("missing", models.Sqlite, models.Unix(path), false, "")
	drv, err := New(cfg, "", driver.Options{})
	require.NoError(t, err)

	err = drv.Connect(context.Background())
	assert.True(t, errors.Is(err, driver.ErrConnection))
	assert.False(t, drv.IsConnected())

	err = drv.TestConnection(context.Background())
	assert.True(t, errors.Is(err, driver.ErrConnection))
	assert.NoFileExists(t, path)
}

func TestTestConnection(t *testing.T) {
	path := createFixture(t)
	cfg := models.NewConnectionConfig("fixture", models.Sqlite, models.Unix(path), false, "")
	drv, err := New(cfg, "", driver.Options{})
	require.NoError(t, err)

	require.NoError(t, drv.TestConnection(context.Background()))
	assert.False(t, drv.IsConnected())
}

func TestListSchemasAndTables(t *testing.T) {
	drv := connect(t, createFixture(t))
	ctx := context.Background()

	schemas, err := drv.ListSchemas(ctx)
	require.NoError(t, err)
	assert.Contains(t, schemas, models.DBSchema{Name: "main"})

	tables, err := drv.ListTables(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, []models.TableInfo{
		{Name: "big_events", TableType: "VIEW"},
		{Name: "events", TableType: "BASE TABLE"},
	}, tables)
}

func TestGetTableColumns(t *testing.T) {
	drv := connect(t, createFixture(t))

	columns, err := drv.GetTableColumns(context.Background(), "main", "events")
	require.NoError(t, err)
	require.Len(t, columns, 4)

	names := []string{columns[0].Name, columns[1].Name, columns[2].Name, columns[3].Name}
	assert.Equal(t, []string{"id", "label", "amount", "payload"}, names)
	assert.Equal(t, "INTEGER", columns[0].DataType)
	assert.True(t, columns[1].Nullable)
	assert.False(t, columns[2].Nullable)
	require.NotNil(t, columns[2].Default)
	assert.Equal(t, "0", *columns[2].Default)
	assert.Nil(t, columns[1].Default)
}

func TestFetchTableDataPagination(t *testing.T) {
	drv := connect(t, createFixture(t))
	ctx := context.Background()

	tests := []struct {
		offset, limit uint64
		wantRows      int
	}{
		{0, 100, 100},
		{100, 100, 100},
		{200, 100, 50},
		{250, 100, 0},
		{1000, 10, 0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("offset %d limit %d", tt.offset, tt.limit), func(t *testing.T) {
			page, err := drv.FetchTableData(ctx, "main", "events", tt.offset, tt.limit)
			require.NoError(t, err)
			assert.Len(t, page.Rows, tt.wantRows)
			assert.Equal(t, uint64(250), page.Total)
			assert.Equal(t, []string{"id", "label", "amount", "payload"}, page.Columns)
		})
	}
}

func TestFetchTableDataDecoding(t *testing.T) {
	drv := connect(t, createFixture(t))

	page, err := drv.FetchTableData(context.Background(), "main", "events", 8, 2)
	require.NoError(t, err)
	require.Len(t, page.Rows, 2)

	assert.Equal(t, []string{"9", "event-9", "9.5", "<binary>"}, page.Rows[0])
	assert.Equal(t, []string{"10", "NULL", "10.5", "<binary>"}, page.Rows[1])
}

func TestFetchTableDataUnknownTable(t *testing.T) {
	drv := connect(t, createFixture(t))

	page, err := drv.FetchTableData(context.Background(), "main", "nope", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, models.EmptyPage(), page)
}

func TestListTablesUnknownSchema(t *testing.T) {
	drv := connect(t, createFixture(t))

	_, err := drv.ListTables(context.Background(), "attached_nowhere")
	require.Error(t, err)
	assert.True(t, errors.Is(err, driver.ErrQuery), "got %v", err)
}
