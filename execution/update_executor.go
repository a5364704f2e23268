package execution

import (
	"github.com/Rachelint/bustub/common"
	"github.com/Rachelint/bustub/planner"
	"github.com/Rachelint/bustub/storage"
)

// UpdateExecutor rewrites, in place, every row passing the plan's predicate.
// Set expressions are evaluated against the pre-update row. Hash index
// entries whose key columns changed are removed and reinserted under the new
// key. Like insert, it emits no tuples.
type UpdateExecutor struct {
	plan *planner.UpdatePlan
	ctx  *ExecutorContext

	done        bool
	rowsUpdated int
	err         error
}

// NewUpdateExecutor creates a new UpdateExecutor.
func NewUpdateExecutor(plan *planner.UpdatePlan) *UpdateExecutor {
	return &UpdateExecutor{plan: plan}
}

func (e *UpdateExecutor) PlanNode() planner.PlanNode {
	return e.plan
}

func (e *UpdateExecutor) Init(ctx *ExecutorContext) error {
	common.Assert(len(e.plan.SetColumns) == len(e.plan.SetExprs), "update set lists must align")
	e.ctx = ctx
	return nil
}

func (e *UpdateExecutor) Next() bool {
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

	rowBuf := make(storage.RawTuple, desc.BytesPerTuple())
	iter := heap.Iterator(rowBuf)
	for iter.Next() {
		rid := iter.CurrentRID()
		oldTuple := storage.FromRawTuple(rowBuf, desc, rid)
		if !planner.IsTruthy(e.plan.Predicate, oldTuple) {
			continue
		}

		newValues := oldTuple.Values()
		for i, col := range e.plan.SetColumns {
			newValues[col] = e.plan.SetExprs[i].Evaluate(oldTuple)
		}
		newRow := desc.Serialize(newValues)
		newTuple := storage.FromRawTuple(newRow, desc, rid)

		// Swap index entries before the heap write so the old key can still
		// be read out of the pre-update row.
		for i, index := range indexes {
			oldKey := make([]byte, index.KeySchema().KeySize())
			newKey := make([]byte, index.KeySchema().KeySize())
			oldTuple.WriteKey(infos[i].KeyColumns, index.KeySchema().Desc(), oldKey)
			newTuple.WriteKey(infos[i].KeyColumns, index.KeySchema().Desc(), newKey)
			if string(oldKey) == string(newKey) {
				continue
			}
			index.Remove(oldKey, rid)
			index.Insert(newKey, rid)
		}

		ok, err := heap.UpdateRow(rid, newRow)
		if err != nil {
			e.err = err
			return false
		}
		common.Assert(ok, "row at %s vanished mid-update", rid)
		e.rowsUpdated++
	}
	e.err = iter.Error()
	return false
}

// RowsUpdated returns how many rows the executor rewrote.
func (e *UpdateExecutor) RowsUpdated() int {
	return e.rowsUpdated
}

func (e *UpdateExecutor) Current() storage.Tuple {
	return storage.Tuple{}
}

func (e *UpdateExecutor) Error() error {
	return e.err
}

func (e *UpdateExecutor) Close() error {
	return nil
}
