package execution

import (
	"github.com/Rachelint/bustub/catalog"
	"github.com/Rachelint/bustub/storage"
)

// ExecutorContext carries everything an executor needs at runtime: the
// buffer pool, the catalog, and the table manager that resolves names to
// live heaps and indexes.
type ExecutorContext struct {
	Pool    storage.BufferPool
	Catalog *catalog.Catalog
	Tables  *TableManager
}

// NewExecutorContext bundles a context from its parts.
func NewExecutorContext(pool storage.BufferPool, cat *catalog.Catalog, tables *TableManager) *ExecutorContext {
	return &ExecutorContext{Pool: pool, Catalog: cat, Tables: tables}
}
