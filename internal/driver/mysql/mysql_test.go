package mysql

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	gomysql "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	dbdriver "github.com/vitebski/dbsight/internal/driver"
	"github.com/vitebski/dbsight/pkg/models"
)

func testConfig() models.ConnectionConfig {
	cfg := models.NewConnectionConfig("local", models.MySql, models.TCP("127.0.0.1", "3306"), true, "root")
	cfg.Database = "shop"
	return cfg
}

func newMockDriver(t *testing.T) (*Driver, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	drv, err := New(testConfig(), "secret", dbdriver.Options{})
	require.NoError(t, err)
	d := drv.(*Driver)
	d.Attach(db)
	t.Cleanup(func() { _ = d.Close() })
	return d, mock
}

func authError() *gomysql.MySQLError {
	return &gomysql.MySQLError{
		Number:   1045,
		SQLState: [5]byte{'2', '8', '0', '0', '0'},
		Message:  "Access denied for user 'root'@'localhost' (using password: YES)",
	}
}

func TestRegistered(t *testing.T) {
	assert.True(t, dbdriver.IsRegistered(models.MySql))
	assert.True(t, dbdriver.IsRegistered(models.MariaDB))

	cfg := testConfig()
	cfg.DBType = models.MariaDB
	drv, err := dbdriver.New(cfg, "", dbdriver.Options{})
	require.NoError(t, err)
	assert.Equal(t, "MySQL", drv.Name())
	assert.False(t, drv.IsConnected())
}

func TestNewRejectsInvalidEndpoint(t *testing.T) {
	cfg := testConfig()
	cfg.Endpoint = models.TCP("localhost", "not-a-port")
	_, err := New(cfg, "", dbdriver.Options{})
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	drv, err := New(testConfig(), "s3cret", dbdriver.Options{AcquireTimeout: 3 * time.Second})
	require.NoError(t, err)

	dsn := drv.(*Driver).DSN()
	assert.True(t, strings.HasPrefix(dsn, "root:s3cret@tcp(127.0.0.1:3306)/shop?"), dsn)
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "timeout=3s")

	cfg := testConfig()
	cfg.Endpoint = models.Unix("/var/run/mysqld/mysqld.sock")
	drv, err = New(cfg, "", dbdriver.Options{})
	require.NoError(t, err)
	assert.Contains(t, drv.(*Driver).DSN(), "unix(/var/run/mysqld/mysqld.sock)")
}

func TestIsAuthError(t *testing.T) {
	assert.True(t, IsAuthError(authError()))
	assert.True(t, IsAuthError(fmt.Errorf("connect: %w", authError())))

	other := authError()
	other.SQLState = [5]byte{'4', '2', 'S', '0', '2'}
	assert.False(t, IsAuthError(other))
	assert.False(t, IsAuthError(errors.New("Access denied")))
}

func TestListSchemas(t *testing.T) {
	d, mock := newMockDriver(t)

	mock.ExpectQuery("SHOW DATABASES").WillReturnRows(
		sqlmock.NewRows([]string{"Database"}).
			AddRow([]byte("information_schema")).
			AddRow([]byte("shop")).
			AddRow([]byte("bad\xffname")),
	)

	schemas, err := d.ListSchemas(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.DBSchema{{Name: "information_schema"}, {Name: "shop"}, {Name: "bad�name"}}, schemas)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListSchemasStatementError(t *testing.T) {
	d, mock := newMockDriver(t)

	mock.ExpectQuery("SHOW DATABASES").WillReturnError(&gomysql.MySQLError{Number: 1227, Message: "Access denied; you need the SHOW DATABASES privilege"})

	_, err := d.ListSchemas(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, dbdriver.ErrQuery))
}

func TestListTables(t *testing.T) {
	d, mock := newMockDriver(t)

	mock.ExpectQuery(regexp.QuoteMeta("SHOW FULL TABLES FROM `shop`")).WillReturnRows(
		sqlmock.NewRows([]string{"Tables_in_shop", "Table_type"}).
			AddRow([]byte("customers"), []byte("BASE TABLE")).
			AddRow([]byte("order_totals"), []byte("VIEW")),
	)

	tables, err := d.ListTables(context.Background(), "shop")
	require.NoError(t, err)
	assert.Equal(t, []models.TableInfo{
		{Name: "customers", TableType: "BASE TABLE"},
		{Name: "order_totals", TableType: "VIEW"},
	}, tables)
}

func TestListTablesQuotesSchema(t *testing.T) {
	d, mock := newMockDriver(t)

	mock.ExpectQuery(regexp.QuoteMeta("SHOW FULL TABLES FROM `we``ird`")).
		WillReturnRows(sqlmock.NewRows([]string{"Tables_in_we`ird", "Table_type"}))

	tables, err := d.ListTables(context.Background(), "we`ird")
	require.NoError(t, err)
	assert.Empty(t, tables)
	assert.NotNil(t, tables)
}

func TestGetTableColumns(t *testing.T) {
	d, mock := newMockDriver(t)

	mock.ExpectQuery("FROM INFORMATION_SCHEMA.COLUMNS").
		WithArgs("shop", "customers").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "COLUMN_TYPE", "IS_NULLABLE", "COLUMN_DEFAULT"}).
			AddRow([]byte("id"), []byte("int unsigned"), []byte("NO"), nil).
			AddRow([]byte("email"), []byte("varchar(255)"), []byte("NO"), nil).
			AddRow([]byte("created_at"), []byte("datetime"), []byte("YES"), "CURRENT_TIMESTAMP"))

	columns, err := d.GetTableColumns(context.Background(), "shop", "customers")
	require.NoError(t, err)
	require.Len(t, columns, 3)

	assert.Equal(t, "id", columns[0].Name)
	assert.Equal(t, "int unsigned", columns[0].DataType)
	assert.False(t, columns[0].Nullable)
	assert.Nil(t, columns[0].Default)

	assert.Equal(t, "email", columns[1].Name)
	assert.Equal(t, "created_at", columns[2].Name)
	assert.True(t, columns[2].Nullable)
	require.NotNil(t, columns[2].Default)
	assert.Equal(t, "CURRENT_TIMESTAMP", *columns[2].Default)
}

func expectColumns(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("FROM INFORMATION_SCHEMA.COLUMNS").
		WithArgs("shop", "events").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "COLUMN_TYPE", "IS_NULLABLE", "COLUMN_DEFAULT"}).
			AddRow([]byte("id"), []byte("int"), []byte("NO"), nil).
			AddRow([]byte("label"), []byte("varchar(32)"), []byte("YES"), nil))
}

// expectPage serves rows [offset, offset+limit) of a 250 row table
func expectPage(mock sqlmock.Sqlmock, offset, limit int) {
	const total = 250
	rows := sqlmock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("id").OfType("INT", int64(0)),
		sqlmock.NewColumn("label").OfType("VARCHAR", ""),
	)
	for i := offset; i < offset+limit && i < total; i++ {
		var label driver.Value = []byte("event-" + strconv.Itoa(i+1))
		if i%10 == 0 {
			label = nil
		}
		rows.AddRow(int64(i+1), label)
	}

	query := fmt.Sprintf("SELECT `id`, `label` FROM `shop`.`events` LIMIT %d OFFSET %d", limit, offset)
	mock.ExpectQuery(regexp.QuoteMeta(query)).WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM `shop`.`events`")).
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(int64(total)))
}

func TestFetchTableDataPagination(t *testing.T) {
	tests := []struct {
		name     string
		offset   int
		limit    int
		wantRows int
		firstID  string
	}{
		{"first page", 0, 100, 100, "1"},
		{"last partial page", 200, 100, 50, "201"},
		{"past the end", 300, 100, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, mock := newMockDriver(t)
			expectColumns(mock)
			expectPage(mock, tt.offset, tt.limit)

			page, err := d.FetchTableData(context.Background(), "shop", "events", uint64(tt.offset), uint64(tt.limit))
			require.NoError(t, err)

			assert.Equal(t, []string{"id", "label"}, page.Columns)
			assert.Len(t, page.Rows, tt.wantRows)
			assert.Equal(t, uint64(250), page.Total)
			if tt.wantRows > 0 {
				assert.Equal(t, tt.firstID, page.Rows[0][0])
			}
			for _, row := range page.Rows {
				assert.Len(t, row, len(page.Columns))
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestFetchTableDataDecodesNull(t *testing.T) {
	d, mock := newMockDriver(t)
	expectColumns(mock)
	expectPage(mock, 0, 2)

	page, err := d.FetchTableData(context.Background(), "shop", "events", 0, 2)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "NULL"}, {"2", "event-2"}}, page.Rows)
}

func TestFetchTableDataWithoutColumns(t *testing.T) {
	d, mock := newMockDriver(t)
	mock.ExpectQuery("FROM INFORMATION_SCHEMA.COLUMNS").
		WithArgs("shop", "missing").
		WillReturnRows(sqlmock.NewRows([]string{"COLUMN_NAME", "COLUMN_TYPE", "IS_NULLABLE", "COLUMN_DEFAULT"}))

	page, err := d.FetchTableData(context.Background(), "shop", "missing", 0, 100)
	require.NoError(t, err)
	assert.Equal(t, models.EmptyPage(), page)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueriesRequireConnection(t *testing.T) {
	drv, err := New(testConfig(), "", dbdriver.Options{})
	require.NoError(t, err)

	_, err = drv.ListSchemas(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, dbdriver.ErrConnection))
	assert.Contains(t, err.Error(), "Not connected")
}

func TestConnectClassification(t *testing.T) {
	assert.True(t, dbdriver.IsAuthFailed(dbdriver.ClassifyConnectError(authError(), IsAuthError)))
}

func TestConnectRefused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := strconv.Itoa(l.Addr().(*net.TCPAddr).Port)
	require.NoError(t, l.Close())

	cfg := testConfig()
	cfg.Endpoint = models.TCP("127.0.0.1", port)
	drv, err := New(cfg, "", dbdriver.Options{AcquireTimeout: 2 * time.Second})
	require.NoError(t, err)

	err = drv.TestConnection(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, dbdriver.ErrConnection), "got %v", err)
	assert.NotEqual(t, "Database connection error: ", err.Error())
	assert.False(t, drv.IsConnected())
}

func TestConnectTimeout(t *testing.T) {
	// a server that accepts but never sends the handshake
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	held := make(chan net.Conn, 16)
	go func() {
		defer close(held)
		for {
			c, err := l.Accept()
			if err != nil {
				return
			}
			held <- c
		}
	}()
	t.Cleanup(func() {
		_ = l.Close()
		for c := range held {
			_ = c.Close()
		}
	})

	port := strconv.Itoa(l.Addr().(*net.TCPAddr).Port)
	cfg := testConfig()
	cfg.Endpoint = models.TCP("127.0.0.1", port)
	drv, err := New(cfg, "", dbdriver.Options{AcquireTimeout: 200 * time.Millisecond})
	require.NoError(t, err)

	err = drv.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, dbdriver.IsConnectionTimeout(err), "got %v", err)
	assert.False(t, drv.IsConnected())
}
