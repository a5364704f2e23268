package execution

import (
	"github.com/Rachelint/bustub/common"
	"github.com/Rachelint/bustub/planner"
	"github.com/Rachelint/bustub/storage"
)

// SeqScanExecutor implements a sequential scan over a table, emitting every
// live row that passes the plan's predicate.
type SeqScanExecutor struct {
	plan      *planner.SeqScanPlan
	tableHeap *TableHeap

	iterator *TableHeapIterator
	rowBuf   storage.RawTuple
	current  storage.Tuple
	err      error
}

// NewSeqScanExecutor creates a new SeqScanExecutor.
func NewSeqScanExecutor(plan *planner.SeqScanPlan) *SeqScanExecutor {
	return &SeqScanExecutor{plan: plan}
}

func (e *SeqScanExecutor) PlanNode() planner.PlanNode {
	return e.plan
}

func (e *SeqScanExecutor) Init(ctx *ExecutorContext) error {
	heap, err := ctx.Tables.GetTableHeap(e.plan.Table)
	if err != nil {
		e.err = err
		return err
	}
	e.tableHeap = heap
	e.rowBuf = make(storage.RawTuple, heap.StorageSchema().BytesPerTuple())
	e.iterator = heap.Iterator(e.rowBuf)
	return nil
}

func (e *SeqScanExecutor) Next() bool {
	common.Assert(e.iterator != nil, "SeqScanExecutor.Init() must be called before Next()")

	for e.iterator.Next() {
		tuple := storage.FromRawTuple(e.rowBuf, e.tableHeap.StorageSchema(), e.iterator.CurrentRID())
		if planner.IsTruthy(e.plan.Predicate, tuple) {
			e.current = tuple
			return true
		}
	}
	e.err = e.iterator.Error()
	return false
}

func (e *SeqScanExecutor) Current() storage.Tuple {
	return e.current
}

func (e *SeqScanExecutor) Error() error {
	return e.err
}

func (e *SeqScanExecutor) Close() error {
	return nil
}
