// Package catalog tracks the tables and indexes of the database: names,
// schemas, and the page ids that anchor their on-disk structures. It holds
// metadata only; table heaps and index objects are wired up by the
// execution layer.
package catalog

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/Rachelint/bustub/common"
)

// Column describes one table column.
type Column struct {
	Name string
	Type common.Type
}

// IndexInfo describes a hash index over a subset of a table's columns.
type IndexInfo struct {
	Name      string
	TableName string
	// KeyColumns maps index key position i to the table column it projects.
	KeyColumns []int
	// DirectoryPageID anchors the index's extendible hash directory.
	DirectoryPageID common.PageID
}

// Table describes one table: its identity, columns, and the first page of
// its heap chain.
type Table struct {
	Oid     common.ObjectID
	Name    string
	Columns []Column
	// FirstPageID anchors the table's heap page chain.
	FirstPageID common.PageID

	Indexes []*IndexInfo
}

// ColumnTypes returns the column types in declaration order.
func (t *Table) ColumnTypes() []common.Type {
	types := make([]common.Type, len(t.Columns))
	for i, c := range t.Columns {
		types[i] = c.Type
	}
	return types
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Catalog is the registry of all tables. Safe for concurrent use: lookups
// and registrations go through a concurrent map, and object ids come from
// an atomic counter.
type Catalog struct {
	tables  *xsync.MapOf[string, *Table]
	nextOid atomic.Uint32
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		tables: xsync.NewMapOf[string, *Table](),
	}
}

// CreateTable registers a new table and issues its object id. The caller
// fills in FirstPageID once the heap is created.
func (c *Catalog) CreateTable(name string, columns []Column) (*Table, error) {
	table := &Table{
		Oid:         common.ObjectID(c.nextOid.Add(1)),
		Name:        name,
		Columns:     columns,
		FirstPageID: common.InvalidPageID,
	}
	if _, loaded := c.tables.LoadOrStore(name, table); loaded {
		return nil, common.NewDBError(common.DuplicateObjectError, "table %q already exists", name)
	}
	return table, nil
}

// GetTable looks a table up by name.
func (c *Catalog) GetTable(name string) (*Table, error) {
	table, ok := c.tables.Load(name)
	if !ok {
		return nil, common.NewDBError(common.NoSuchObjectError, "no table named %q", name)
	}
	return table, nil
}

// Range calls fn for every registered table until fn returns false.
func (c *Catalog) Range(fn func(*Table) bool) {
	c.tables.Range(func(_ string, t *Table) bool {
		return fn(t)
	})
}
