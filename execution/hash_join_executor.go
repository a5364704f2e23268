package execution

import (
	"github.com/Rachelint/bustub/planner"
	"github.com/Rachelint/bustub/storage"
)

// HashJoinExecutor equi-joins two inputs: Init drains the left (build) side
// into a hash table on its key columns; Next streams the right (probe) side
// and emits one concatenated row per build match.
type HashJoinExecutor struct {
	plan  *planner.HashJoinPlan
	left  Executor
	right Executor

	buildTable *ExecutionHashTable[[]storage.Tuple]

	probeTuple storage.Tuple
	matches    []storage.Tuple
	matchPos   int
	current    storage.Tuple
	err        error
}

// NewHashJoinExecutor creates a new HashJoinExecutor.
func NewHashJoinExecutor(plan *planner.HashJoinPlan, left, right Executor) *HashJoinExecutor {
	return &HashJoinExecutor{plan: plan, left: left, right: right}
}

func (e *HashJoinExecutor) PlanNode() planner.PlanNode {
	return e.plan
}

func (e *HashJoinExecutor) Init(ctx *ExecutorContext) error {
	if err := e.left.Init(ctx); err != nil {
		e.err = err
		return err
	}
	if err := e.right.Init(ctx); err != nil {
		e.err = err
		return err
	}

	e.buildTable = NewExecutionHashTable[[]storage.Tuple]()
	for e.left.Next() {
		tuple := materialize(e.left.Current())
		key := EncodeKey(tuple, e.plan.LeftKeys)
		bucket, _ := e.buildTable.Get(key)
		e.buildTable.Put(key, append(bucket, tuple))
	}
	if err := e.left.Error(); err != nil {
		e.err = err
		return err
	}
	return nil
}

func (e *HashJoinExecutor) Next() bool {
	for {
		if e.matchPos < len(e.matches) {
			e.current = concatTuples(e.matches[e.matchPos], e.probeTuple)
			e.matchPos++
			return true
		}

		if !e.right.Next() {
			e.err = e.right.Error()
			return false
		}
		e.probeTuple = materialize(e.right.Current())
		key := EncodeKey(e.probeTuple, e.plan.RightKeys)
		e.matches, _ = e.buildTable.Get(key)
		e.matchPos = 0
	}
}

func (e *HashJoinExecutor) Current() storage.Tuple {
	return e.current
}

func (e *HashJoinExecutor) Error() error {
	return e.err
}

func (e *HashJoinExecutor) Close() error {
	if err := e.left.Close(); err != nil {
		return err
	}
	return e.right.Close()
}
