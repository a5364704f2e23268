package execution

import (
	"github.com/Rachelint/bustub/planner"
	"github.com/Rachelint/bustub/storage"
)

// DistinctExecutor suppresses duplicate rows in its child's output,
// comparing all columns by their serialized bytes. It streams: each Next
// pulls the child until an unseen row appears.
type DistinctExecutor struct {
	plan  *planner.DistinctPlan
	child Executor

	seen    *ExecutionHashTable[struct{}]
	current storage.Tuple
}

// NewDistinctExecutor creates a new DistinctExecutor over `child`.
func NewDistinctExecutor(plan *planner.DistinctPlan, child Executor) *DistinctExecutor {
	return &DistinctExecutor{plan: plan, child: child}
}

func (e *DistinctExecutor) PlanNode() planner.PlanNode {
	return e.plan
}

func (e *DistinctExecutor) Init(ctx *ExecutorContext) error {
	e.seen = NewExecutionHashTable[struct{}]()
	return e.child.Init(ctx)
}

func (e *DistinctExecutor) Next() bool {
	for e.child.Next() {
		tuple := e.child.Current()
		key := EncodeKey(tuple, AllColumns(tuple))
		if _, dup := e.seen.Get(key); dup {
			continue
		}
		e.seen.Put(key, struct{}{})
		e.current = materialize(tuple)
		return true
	}
	return false
}

func (e *DistinctExecutor) Current() storage.Tuple {
	return e.current
}

func (e *DistinctExecutor) Error() error {
	return e.child.Error()
}

func (e *DistinctExecutor) Close() error {
	return e.child.Close()
}
