package execution

import (
	"github.com/Rachelint/bustub/common"
	"github.com/Rachelint/bustub/planner"
	"github.com/Rachelint/bustub/storage"
)

// aggState accumulates one group's aggregates.
type aggState struct {
	groupValues []common.Value
	count       []int64
	acc         []common.Value
}

// AggregationExecutor groups its child's output and computes aggregates per
// group. It is a blocking operator: Init drains the child into a hash table,
// Next walks the finished groups. Output tuples carry the group-by columns
// first, then one column per aggregate.
type AggregationExecutor struct {
	plan  *planner.AggregationPlan
	child Executor

	groups  *ExecutionHashTable[*aggState]
	results []storage.Tuple
	cursor  int
	current storage.Tuple
	err     error
}

// NewAggregationExecutor creates a new AggregationExecutor over `child`.
func NewAggregationExecutor(plan *planner.AggregationPlan, child Executor) *AggregationExecutor {
	return &AggregationExecutor{plan: plan, child: child}
}

func (e *AggregationExecutor) PlanNode() planner.PlanNode {
	return e.plan
}

func (e *AggregationExecutor) Init(ctx *ExecutorContext) error {
	if err := e.child.Init(ctx); err != nil {
		e.err = err
		return err
	}

	e.groups = NewExecutionHashTable[*aggState]()
	for e.child.Next() {
		tuple := e.child.Current()
		key := EncodeKey(tuple, e.plan.GroupBy)

		state, ok := e.groups.Get(key)
		if !ok {
			state = &aggState{
				count: make([]int64, len(e.plan.Aggregates)),
				acc:   make([]common.Value, len(e.plan.Aggregates)),
			}
			for _, col := range e.plan.GroupBy {
				state.groupValues = append(state.groupValues, tuple.GetValue(col))
			}
			e.groups.Put(key, state)
		}
		e.accumulate(state, tuple)
	}
	if err := e.child.Error(); err != nil {
		e.err = err
		return err
	}

	e.groups.Range(func(_ string, state *aggState) bool {
		e.results = append(e.results, e.finalize(state))
		return true
	})
	return nil
}

func (e *AggregationExecutor) accumulate(state *aggState, tuple storage.Tuple) {
	for i, agg := range e.plan.Aggregates {
		switch agg.Op {
		case planner.AggCountStar, planner.AggCount:
			state.count[i]++
		case planner.AggSum:
			state.count[i]++
			v := tuple.GetValue(agg.ColIdx)
			if state.acc[i].IsNil() {
				state.acc[i] = v
			} else {
				state.acc[i] = common.NewIntValue(state.acc[i].IntValue() + v.IntValue())
			}
		case planner.AggMin:
			v := tuple.GetValue(agg.ColIdx)
			if state.acc[i].IsNil() || v.Compare(state.acc[i]) < 0 {
				state.acc[i] = v
			}
		case planner.AggMax:
			v := tuple.GetValue(agg.ColIdx)
			if state.acc[i].IsNil() || v.Compare(state.acc[i]) > 0 {
				state.acc[i] = v
			}
		default:
			panic("unknown aggregate op")
		}
	}
}

func (e *AggregationExecutor) finalize(state *aggState) storage.Tuple {
	values := make([]common.Value, 0, len(state.groupValues)+len(e.plan.Aggregates))
	values = append(values, state.groupValues...)
	for i, agg := range e.plan.Aggregates {
		switch agg.Op {
		case planner.AggCountStar, planner.AggCount:
			values = append(values, common.NewIntValue(state.count[i]))
		default:
			values = append(values, state.acc[i])
		}
	}
	return storage.FromValues(values)
}

func (e *AggregationExecutor) Next() bool {
	if e.cursor >= len(e.results) {
		return false
	}
	e.current = e.results[e.cursor]
	e.cursor++
	return true
}

func (e *AggregationExecutor) Current() storage.Tuple {
	return e.current
}

func (e *AggregationExecutor) Error() error {
	return e.err
}

func (e *AggregationExecutor) Close() error {
	return e.child.Close()
}
