package execution

import (
	"github.com/Rachelint/bustub/planner"
	"github.com/Rachelint/bustub/storage"
)

// Executor is the interface that all physical execution nodes implement.
// The driving loop is: Init once, then Next until it returns false, reading
// Current after each true Next, then Close. Error reports the first failure
// encountered at any point.
type Executor interface {
	PlanNode() planner.PlanNode

	// Init initializes the executor with a specific execution context.
	Init(ctx *ExecutorContext) error

	// Next advances to the next output tuple.
	Next() bool

	// Current returns the tuple most recently produced by Next().
	Current() storage.Tuple

	// Error returns the last error encountered by the executor, if any.
	Error() error

	// Close cleans up any resources held by the executor.
	Close() error
}

// CreateExecutor builds the executor tree for a physical plan.
func CreateExecutor(plan planner.PlanNode) Executor {
	switch p := plan.(type) {
	case *planner.SeqScanPlan:
		return NewSeqScanExecutor(p)
	case *planner.InsertPlan:
		return NewInsertExecutor(p)
	case *planner.UpdatePlan:
		return NewUpdateExecutor(p)
	case *planner.AggregationPlan:
		return NewAggregationExecutor(p, CreateExecutor(p.Child))
	case *planner.DistinctPlan:
		return NewDistinctExecutor(p, CreateExecutor(p.Child))
	case *planner.NestedLoopJoinPlan:
		return NewNestedLoopJoinExecutor(p, CreateExecutor(p.Left), CreateExecutor(p.Right))
	case *planner.HashJoinPlan:
		return NewHashJoinExecutor(p, CreateExecutor(p.Left), CreateExecutor(p.Right))
	}
	panic("unknown plan node")
}
