package execution

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/Rachelint/bustub/catalog"
	"github.com/Rachelint/bustub/common"
	"github.com/Rachelint/bustub/indexing"
	"github.com/Rachelint/bustub/storage"
)

// TableManager resolves catalog entries to live runtime objects: table
// heaps and hash indexes. It is the glue between metadata and storage; the
// executors never touch the catalog's page ids directly.
type TableManager struct {
	catalog *catalog.Catalog
	pool    storage.BufferPool

	heaps   *xsync.MapOf[common.ObjectID, *TableHeap]
	indexes *xsync.MapOf[string, *indexing.ExtendibleHashIndex]

	// ddlMu serializes index creation so backfill and registration are
	// atomic with respect to other DDL.
	ddlMu sync.Mutex
}

// NewTableManager creates a manager over the given catalog and pool.
func NewTableManager(cat *catalog.Catalog, pool storage.BufferPool) *TableManager {
	return &TableManager{
		catalog: cat,
		pool:    pool,
		heaps:   xsync.NewMapOf[common.ObjectID, *TableHeap](),
		indexes: xsync.NewMapOf[string, *indexing.ExtendibleHashIndex](),
	}
}

// Catalog returns the underlying catalog.
func (tm *TableManager) Catalog() *catalog.Catalog {
	return tm.catalog
}

// CreateTable registers a table and creates its heap.
func (tm *TableManager) CreateTable(name string, columns []catalog.Column) (*catalog.Table, error) {
	table, err := tm.catalog.CreateTable(name, columns)
	if err != nil {
		return nil, err
	}
	heap, err := NewTableHeap(tm.pool, storage.NewRawTupleDesc(table.ColumnTypes()))
	if err != nil {
		return nil, err
	}
	table.FirstPageID = heap.FirstPageID()
	tm.heaps.Store(table.Oid, heap)
	return table, nil
}

// GetTableHeap returns the live heap for a table, opening it on first use.
func (tm *TableManager) GetTableHeap(name string) (*TableHeap, error) {
	table, err := tm.catalog.GetTable(name)
	if err != nil {
		return nil, err
	}
	if heap, ok := tm.heaps.Load(table.Oid); ok {
		return heap, nil
	}
	heap := OpenTableHeap(tm.pool, storage.NewRawTupleDesc(table.ColumnTypes()), table.FirstPageID)
	actual, _ := tm.heaps.LoadOrStore(table.Oid, heap)
	return actual, nil
}

// CreateIndex builds a hash index over the named columns of a table and
// backfills it from the rows already in the heap.
func (tm *TableManager) CreateIndex(tableName, indexName string, keyColumns []int) (*indexing.ExtendibleHashIndex, error) {
	tm.ddlMu.Lock()
	defer tm.ddlMu.Unlock()

	table, err := tm.catalog.GetTable(tableName)
	if err != nil {
		return nil, err
	}
	if _, exists := tm.indexes.Load(indexName); exists {
		return nil, common.NewDBError(common.DuplicateObjectError, "index %q already exists", indexName)
	}

	keyTypes := make([]common.Type, len(keyColumns))
	for i, col := range keyColumns {
		keyTypes[i] = table.Columns[col].Type
	}
	schema := indexing.NewKeySchema(keyTypes)

	index, err := indexing.NewExtendibleHashIndex(tm.pool, schema, nil)
	if err != nil {
		return nil, err
	}

	heap, err := tm.GetTableHeap(tableName)
	if err != nil {
		return nil, err
	}
	if err := backfillIndex(index, heap, keyColumns); err != nil {
		return nil, err
	}

	info := &catalog.IndexInfo{
		Name:            indexName,
		TableName:       tableName,
		KeyColumns:      keyColumns,
		DirectoryPageID: index.DirectoryPageID(),
	}
	table.Indexes = append(table.Indexes, info)
	tm.indexes.Store(indexName, index)
	return index, nil
}

func backfillIndex(index *indexing.ExtendibleHashIndex, heap *TableHeap, keyColumns []int) error {
	desc := heap.StorageSchema()
	rowBuf := make(storage.RawTuple, desc.BytesPerTuple())
	keyBuf := make([]byte, index.KeySchema().KeySize())

	iter := heap.Iterator(rowBuf)
	for iter.Next() {
		tuple := storage.FromRawTuple(rowBuf, desc, iter.CurrentRID())
		tuple.WriteKey(keyColumns, index.KeySchema().Desc(), keyBuf)
		index.Insert(keyBuf, iter.CurrentRID())
	}
	return iter.Error()
}

// GetIndex returns a live index by name.
func (tm *TableManager) GetIndex(indexName string) (*indexing.ExtendibleHashIndex, error) {
	if index, ok := tm.indexes.Load(indexName); ok {
		return index, nil
	}
	return nil, common.NewDBError(common.NoSuchObjectError, "no index named %q", indexName)
}

// TableIndexes returns the live indexes on a table, paired with their
// key-column projections.
func (tm *TableManager) TableIndexes(table *catalog.Table) ([]*indexing.ExtendibleHashIndex, []*catalog.IndexInfo) {
	var idxs []*indexing.ExtendibleHashIndex
	var infos []*catalog.IndexInfo
	for _, info := range table.Indexes {
		index, ok := tm.indexes.Load(info.Name)
		if !ok {
			index = indexing.OpenExtendibleHashIndex(tm.pool, info.DirectoryPageID,
				indexing.NewKeySchema(keyTypesFor(table, info.KeyColumns)), nil)
			index, _ = tm.indexes.LoadOrStore(info.Name, index)
		}
		idxs = append(idxs, index)
		infos = append(infos, info)
	}
	return idxs, infos
}

func keyTypesFor(table *catalog.Table, keyColumns []int) []common.Type {
	types := make([]common.Type, len(keyColumns))
	for i, col := range keyColumns {
		types[i] = table.Columns[col].Type
	}
	return types
}
