package utils

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/vitebski/dbsight/pkg/models"
)

func newTable(w io.Writer, header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(header)
	return t
}

// RenderConnections prints connection profiles with their activation state
func RenderConnections(w io.Writer, configs []models.ConnectionConfig, activeIDs []uuid.UUID, selected *uuid.UUID) {
	if len(configs) == 0 {
		_, _ = fmt.Fprintln(w, "(no connections)")
		return
	}

	active := make(map[uuid.UUID]bool, len(activeIDs))
	for _, id := range activeIDs {
		active[id] = true
	}

	t := newTable(w, table.Row{"", "ID", "Name", "Type", "Endpoint", "User", "Password", "Active"})
	for _, c := range configs {
		marker := ""
		if selected != nil && *selected == c.ID {
			marker = "*"
		}
		password := "-"
		if c.HasSavedPassword() {
			password = "saved"
		}
		state := ""
		if active[c.ID] {
			state = "yes"
		}
		t.AppendRow(table.Row{marker, c.ID.String(), c.Name, c.DBType.String(), c.Endpoint.Address(), c.Username, password, state})
	}
	t.Render()
}

// RenderSchemas prints a schema listing
func RenderSchemas(w io.Writer, schemas []models.DBSchema) {
	t := newTable(w, table.Row{"Schema"})
	for _, s := range schemas {
		t.AppendRow(table.Row{s.Name})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d schemas)\n", len(schemas))
}

// RenderTables prints a table listing
func RenderTables(w io.Writer, tables []models.TableInfo) {
	t := newTable(w, table.Row{"Table", "Type"})
	for _, tbl := range tables {
		t.AppendRow(table.Row{tbl.Name, tbl.TableType})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d tables)\n", len(tables))
}

// RenderColumns prints column metadata in ordinal order
func RenderColumns(w io.Writer, columns []models.TableColumn) {
	t := newTable(w, table.Row{"#", "Column", "Type", "Nullable", "Default"})
	for i, c := range columns {
		def := "NULL"
		if c.Default != nil {
			def = *c.Default
		}
		nullable := "NO"
		if c.Nullable {
			nullable = "YES"
		}
		t.AppendRow(table.Row{i + 1, c.Name, c.DataType, nullable, def})
	}
	t.Render()
}

// RenderPage prints one window of table data and where it sits in the table
func RenderPage(w io.Writer, page *models.TableDataPage, offset uint64) {
	if len(page.Columns) == 0 {
		_, _ = fmt.Fprintln(w, "(no columns)")
		return
	}

	header := make(table.Row, len(page.Columns))
	for i, c := range page.Columns {
		header[i] = c
	}
	t := newTable(w, header)
	for _, r := range page.Rows {
		row := make(table.Row, len(r))
		for i, v := range r {
			row[i] = v
		}
		t.AppendRow(row)
	}
	t.Render()

	if len(page.Rows) == 0 {
		_, _ = fmt.Fprintf(w, "(0 rows of %d)\n", page.Total)
		return
	}
	_, _ = fmt.Fprintf(w, "(rows %d-%d of %d)\n", offset+1, offset+uint64(len(page.Rows)), page.Total)
}

// TableCount is one line of a population summary
type TableCount struct {
	Table string
	Rows  uint64
}

// RenderSummary prints per-table row counts in the given order
func RenderSummary(w io.Writer, title string, counts []TableCount) {
	t := newTable(w, table.Row{"Table", "Rows"})
	t.SetTitle(title)
	var total uint64
	for _, c := range counts {
		t.AppendRow(table.Row{c.Table, c.Rows})
		total += c.Rows
	}
	t.AppendFooter(table.Row{"Total", total})
	t.Render()
}
