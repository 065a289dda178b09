package sandbox

import (
	"fmt"
	"strings"

	"github.com/yourbasic/graph"
)

// Kind selects how values for a column are generated
type Kind int

const (
	KindID Kind = iota
	KindRef
	KindName
	KindEmail
	KindCity
	KindCountry
	KindTitle
	KindText
	KindPrice
	KindQuantity
	KindBool
	KindTime
	KindStatus
	KindJSON
)

// ColumnSpec describes one column of a sandbox table. Ref names the parent
// table for KindRef columns; the parent's id column is referenced.
type ColumnSpec struct {
	Name     string
	Type     string
	Kind     Kind
	Ref      string
	Nullable bool
}

// TableSpec describes a sandbox table. RowFactor scales the requested row
// count for this table.
type TableSpec struct {
	Name      string
	Columns   []ColumnSpec
	RowFactor int
}

// ShopSchema is the demo schema. Tables are listed out of dependency order on
// purpose; InsertionOrder sorts them.
func ShopSchema() []TableSpec {
	return []TableSpec{
		{
			Name:      "order_items",
			RowFactor: 4,
			Columns: []ColumnSpec{
				{Name: "id", Type: "INT", Kind: KindID},
				{Name: "order_id", Type: "INT", Kind: KindRef, Ref: "orders"},
				{Name: "product_id", Type: "INT", Kind: KindRef, Ref: "products"},
				{Name: "quantity", Type: "INT", Kind: KindQuantity},
				{Name: "unit_price", Type: "DECIMAL(10,2)", Kind: KindPrice},
			},
		},
		{
			Name:      "orders",
			RowFactor: 2,
			Columns: []ColumnSpec{
				{Name: "id", Type: "INT", Kind: KindID},
				{Name: "customer_id", Type: "INT", Kind: KindRef, Ref: "customers"},
				{Name: "status", Type: "VARCHAR(20)", Kind: KindStatus},
				{Name: "placed_at", Type: "DATETIME", Kind: KindTime},
				{Name: "note", Type: "TEXT", Kind: KindText, Nullable: true},
			},
		},
		{
			Name:      "customers",
			RowFactor: 1,
			Columns: []ColumnSpec{
				{Name: "id", Type: "INT", Kind: KindID},
				{Name: "name", Type: "VARCHAR(100)", Kind: KindName},
				{Name: "email", Type: "VARCHAR(255)", Kind: KindEmail},
				{Name: "city", Type: "VARCHAR(100)", Kind: KindCity},
				{Name: "country", Type: "VARCHAR(100)", Kind: KindCountry},
				{Name: "created_at", Type: "DATETIME", Kind: KindTime},
			},
		},
		{
			Name:      "products",
			RowFactor: 1,
			Columns: []ColumnSpec{
				{Name: "id", Type: "INT", Kind: KindID},
				{Name: "title", Type: "VARCHAR(255)", Kind: KindTitle},
				{Name: "price", Type: "DECIMAL(10,2)", Kind: KindPrice},
				{Name: "in_stock", Type: "TINYINT(1)", Kind: KindBool},
				{Name: "attributes", Type: "JSON", Kind: KindJSON, Nullable: true},
			},
		},
	}
}

// InsertionOrder sorts tables so every referenced table precedes the tables
// referencing it. Self references are ignored. A cycle is an error.
func InsertionOrder(tables []TableSpec) ([]TableSpec, error) {
	index := make(map[string]int, len(tables))
	for i, t := range tables {
		if _, dup := index[t.Name]; dup {
			return nil, fmt.Errorf("duplicate table %s", t.Name)
		}
		index[t.Name] = i
	}

	g := graph.New(len(tables))
	for i, t := range tables {
		for _, c := range t.Columns {
			if c.Kind != KindRef {
				continue
			}
			parent, ok := index[c.Ref]
			if !ok {
				return nil, fmt.Errorf("%s.%s references unknown table %s", t.Name, c.Name, c.Ref)
			}
			if parent != i {
				g.Add(parent, i)
			}
		}
	}

	order, ok := graph.TopSort(g)
	if !ok {
		return nil, fmt.Errorf("circular foreign keys between sandbox tables")
	}

	sorted := make([]TableSpec, len(order))
	for i, v := range order {
		sorted[i] = tables[v]
	}
	return sorted, nil
}

// CreateTableSQL renders the DDL for t. The first KindID column is the key.
func CreateTableSQL(t TableSpec) string {
	var defs, constraints []string
	pk := ""
	for _, c := range t.Columns {
		def := c.Name + " " + c.Type
		if !c.Nullable {
			def += " NOT NULL"
		}
		defs = append(defs, def)

		switch c.Kind {
		case KindID:
			if pk == "" {
				pk = c.Name
			}
		case KindRef:
			constraints = append(constraints, fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (id)", c.Name, c.Ref))
		}
	}
	if pk != "" {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", pk))
	}
	defs = append(defs, constraints...)

	return fmt.Sprintf("CREATE TABLE %s (\n\t%s\n)", t.Name, strings.Join(defs, ",\n\t"))
}

// InsertSQL renders a single-row INSERT with one placeholder per column
func InsertSQL(t TableSpec) string {
	names := make([]string, len(t.Columns))
	marks := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
		marks[i] = "?"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.Name, strings.Join(names, ", "), strings.Join(marks, ", "))
}
