package execution

import (
	"github.com/Rachelint/bustub/planner"
	"github.com/Rachelint/bustub/storage"
)

// InsertExecutor inserts the plan's literal rows into a table and maintains
// every hash index on it. It emits no tuples: the first Next performs all
// the work and returns false.
type InsertExecutor struct {
	plan *planner.InsertPlan
	ctx  *ExecutorContext

	done         bool
	rowsInserted int
	err          error
}

// NewInsertExecutor creates a new InsertExecutor.
func NewInsertExecutor(plan *planner.InsertPlan) *InsertExecutor {
	return &InsertExecutor{plan: plan}
}

func (e *InsertExecutor) PlanNode() planner.PlanNode {
	return e.plan
}

func (e *InsertExecutor) Init(ctx *ExecutorContext) error {
	e.ctx = ctx
	return nil
}

func (e *InsertExecutor) Next() bool {
	if e.done {
		return false
	}
	e.done = true

	table, err := e.ctx.Catalog.GetTable(e.plan.Table)
	if err != nil {
		e.err = err
		return false
	}
	heap, err := e.ctx.Tables.GetTableHeap(e.plan.Table)
	if err != nil {
		e.err = err
		return false
	}
	indexes, infos := e.ctx.Tables.TableIndexes(table)
	desc := heap.StorageSchema()

	for _, values := range e.plan.Rows {
		row := desc.Serialize(values)
		rid, err := heap.InsertRow(row)
		if err != nil {
			e.err = err
			return false
		}

		tuple := storage.FromRawTuple(row, desc, rid)
		for i, index := range indexes {
			keyBuf := make([]byte, index.KeySchema().KeySize())
			tuple.WriteKey(infos[i].KeyColumns, index.KeySchema().Desc(), keyBuf)
			index.Insert(keyBuf, rid)
		}
		e.rowsInserted++
	}
	return false
}

// RowsInserted returns how many rows the executor stored.
func (e *InsertExecutor) RowsInserted() int {
	return e.rowsInserted
}

func (e *InsertExecutor) Current() storage.Tuple {
	return storage.Tuple{}
}

func (e *InsertExecutor) Error() error {
	return e.err
}

func (e *InsertExecutor) Close() error {
	return nil
}
