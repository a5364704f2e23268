package execution

import (
	"github.com/Rachelint/bustub/planner"
	"github.com/Rachelint/bustub/storage"
)

// NestedLoopJoinExecutor joins two inputs by pairing every left tuple with
// every right tuple. The right child runs only once: its output is
// materialized in Init and replayed for each left tuple without re-reading
// pages.
type NestedLoopJoinExecutor struct {
	plan  *planner.NestedLoopJoinPlan
	left  Executor
	right Executor

	rightRows []storage.Tuple
	leftTuple storage.Tuple
	haveLeft  bool
	rightPos  int
	current   storage.Tuple
	err       error
}

// NewNestedLoopJoinExecutor creates a new NestedLoopJoinExecutor.
func NewNestedLoopJoinExecutor(plan *planner.NestedLoopJoinPlan, left, right Executor) *NestedLoopJoinExecutor {
	return &NestedLoopJoinExecutor{plan: plan, left: left, right: right}
}

func (e *NestedLoopJoinExecutor) PlanNode() planner.PlanNode {
	return e.plan
}

func (e *NestedLoopJoinExecutor) Init(ctx *ExecutorContext) error {
	if err := e.left.Init(ctx); err != nil {
		e.err = err
		return err
	}
	if err := e.right.Init(ctx); err != nil {
		e.err = err
		return err
	}

	for e.right.Next() {
		e.rightRows = append(e.rightRows, materialize(e.right.Current()))
	}
	if err := e.right.Error(); err != nil {
		e.err = err
		return err
	}
	return nil
}

func (e *NestedLoopJoinExecutor) Next() bool {
	for {
		if !e.haveLeft {
			if !e.left.Next() {
				e.err = e.left.Error()
				return false
			}
			e.leftTuple = materialize(e.left.Current())
			e.haveLeft = true
			e.rightPos = 0
		}

		for e.rightPos < len(e.rightRows) {
			rightTuple := e.rightRows[e.rightPos]
			e.rightPos++
			if planner.IsTruthy(e.plan.Predicate, e.leftTuple, rightTuple) {
				e.current = concatTuples(e.leftTuple, rightTuple)
				return true
			}
		}
		e.haveLeft = false
	}
}

func (e *NestedLoopJoinExecutor) Current() storage.Tuple {
	return e.current
}

func (e *NestedLoopJoinExecutor) Error() error {
	return e.err
}

func (e *NestedLoopJoinExecutor) Close() error {
	if err := e.left.Close(); err != nil {
		return err
	}
	return e.right.Close()
}
