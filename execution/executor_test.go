package execution

import (
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rachelint/bustub/catalog"
	"github.com/Rachelint/bustub/common"
	"github.com/Rachelint/bustub/planner"
	"github.com/Rachelint/bustub/storage"
)

func setupContext(t *testing.T) *ExecutorContext {
	t.Helper()
	dm, err := storage.NewFileDiskManager(filepath.Join(t.TempDir(), "exec.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = dm.Close() })

	pool := storage.NewBufferPoolManager(64, dm)
	cat := catalog.NewCatalog()
	return NewExecutorContext(pool, cat, NewTableManager(cat, pool))
}

func createUsersTable(t *testing.T, ctx *ExecutorContext) {
	t.Helper()
	_, err := ctx.Tables.CreateTable("users", []catalog.Column{
		{Name: "id", Type: common.IntType},
		{Name: "dept", Type: common.IntType},
		{Name: "name", Type: common.StringType},
	})
	require.NoError(t, err)
}

func insertUsers(t *testing.T, ctx *ExecutorContext, rows [][]common.Value) int {
	t.Helper()
	ins := NewInsertExecutor(&planner.InsertPlan{Table: "users", Rows: rows})
	require.NoError(t, ins.Init(ctx))
	for ins.Next() {
	}
	require.NoError(t, ins.Error())
	return ins.RowsInserted()
}

func userRow(id, dept int64, name string) []common.Value {
	return []common.Value{
		common.NewIntValue(id),
		common.NewIntValue(dept),
		common.NewStringValue(name),
	}
}

func drain(t *testing.T, ctx *ExecutorContext, exec Executor) []storage.Tuple {
	t.Helper()
	require.NoError(t, exec.Init(ctx))
	var out []storage.Tuple
	for exec.Next() {
		out = append(out, materialize(exec.Current()))
	}
	require.NoError(t, exec.Error())
	require.NoError(t, exec.Close())
	return out
}

func column0Ints(tuples []storage.Tuple) []int64 {
	out := make([]int64, len(tuples))
	for i, tp := range tuples {
		out[i] = tp.GetValue(0).IntValue()
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func TestSeqScan_WithPredicate(t *testing.T) {
	ctx := setupContext(t)
	createUsersTable(t, ctx)
	n := insertUsers(t, ctx, [][]common.Value{
		userRow(1, 10, "ann"),
		userRow(2, 10, "bob"),
		userRow(3, 20, "cat"),
		userRow(4, 20, "dan"),
	})
	require.Equal(t, 4, n)

	scan := NewSeqScanExecutor(&planner.SeqScanPlan{
		Table: "users",
		Predicate: planner.Comparison{
			Left:  planner.ColumnValue{ColIdx: 1},
			Right: planner.ConstantValue{Val: common.NewIntValue(20)},
			Op:    planner.CmpEq,
		},
	})
	got := drain(t, ctx, scan)
	assert.Equal(t, []int64{3, 4}, column0Ints(got))
}

func TestUpdate_RewritesMatchingRows(t *testing.T) {
	ctx := setupContext(t)
	createUsersTable(t, ctx)
	insertUsers(t, ctx, [][]common.Value{
		userRow(1, 10, "ann"),
		userRow(2, 10, "bob"),
		userRow(3, 20, "cat"),
	})

	upd := NewUpdateExecutor(&planner.UpdatePlan{
		Table: "users",
		Predicate: planner.Comparison{
			Left:  planner.ColumnValue{ColIdx: 1},
			Right: planner.ConstantValue{Val: common.NewIntValue(10)},
			Op:    planner.CmpEq,
		},
		SetColumns: []int{1},
		SetExprs:   []planner.Expr{planner.ConstantValue{Val: common.NewIntValue(30)}},
	})
	require.NoError(t, upd.Init(ctx))
	for upd.Next() {
	}
	require.NoError(t, upd.Error())
	assert.Equal(t, 2, upd.RowsUpdated())

	scan := NewSeqScanExecutor(&planner.SeqScanPlan{
		Table: "users",
		Predicate: planner.Comparison{
			Left:  planner.ColumnValue{ColIdx: 1},
			Right: planner.ConstantValue{Val: common.NewIntValue(30)},
			Op:    planner.CmpEq,
		},
	})
	got := drain(t, ctx, scan)
	assert.Equal(t, []int64{1, 2}, column0Ints(got))
}

func TestAggregation_GroupByWithAggregates(t *testing.T) {
	ctx := setupContext(t)
	createUsersTable(t, ctx)
	insertUsers(t, ctx, [][]common.Value{
		userRow(1, 10, "ann"),
		userRow(2, 10, "bob"),
		userRow(3, 20, "cat"),
		userRow(4, 20, "dan"),
		userRow(5, 20, "eve"),
	})

	agg := NewAggregationExecutor(&planner.AggregationPlan{
		Child:   &planner.SeqScanPlan{Table: "users"},
		GroupBy: []int{1},
		Aggregates: []planner.Aggregate{
			{Op: planner.AggCountStar},
			{Op: planner.AggSum, ColIdx: 0},
			{Op: planner.AggMin, ColIdx: 0},
			{Op: planner.AggMax, ColIdx: 0},
		},
	}, CreateExecutor(&planner.SeqScanPlan{Table: "users"}))

	got := drain(t, ctx, agg)
	require.Len(t, got, 2)

	byDept := make(map[int64][]int64)
	for _, tp := range got {
		byDept[tp.GetValue(0).IntValue()] = []int64{
			tp.GetValue(1).IntValue(),
			tp.GetValue(2).IntValue(),
			tp.GetValue(3).IntValue(),
			tp.GetValue(4).IntValue(),
		}
	}
	assert.Equal(t, []int64{2, 3, 1, 2}, byDept[10], "dept 10: count, sum, min, max")
	assert.Equal(t, []int64{3, 12, 3, 5}, byDept[20], "dept 20: count, sum, min, max")
}

func TestDistinct_DropsDuplicates(t *testing.T) {
	ctx := setupContext(t)
	createUsersTable(t, ctx)
	insertUsers(t, ctx, [][]common.Value{
		userRow(1, 10, "ann"),
		userRow(2, 10, "ann"),
		userRow(3, 20, "cat"),
	})

	// Distinct over full rows keeps all 3; distinct over dept alone keeps 2.
	// Full rows first:
	distinct := NewDistinctExecutor(&planner.DistinctPlan{Child: &planner.SeqScanPlan{Table: "users"}},
		CreateExecutor(&planner.SeqScanPlan{Table: "users"}))
	got := drain(t, ctx, distinct)
	assert.Len(t, got, 3, "full rows are all distinct")

	// Group-by with no aggregates is the dept projection; distinct over it
	// is then a no-op, which pins down the executor chain composing.
	agg := &planner.AggregationPlan{
		Child:   &planner.SeqScanPlan{Table: "users"},
		GroupBy: []int{1},
	}
	distinct2 := NewDistinctExecutor(&planner.DistinctPlan{Child: agg},
		CreateExecutor(agg))
	got = drain(t, ctx, distinct2)
	assert.ElementsMatch(t, []int64{10, 20}, column0Ints(got))
}

func TestNestedLoopJoin(t *testing.T) {
	ctx := setupContext(t)
	createUsersTable(t, ctx)
	insertUsers(t, ctx, [][]common.Value{
		userRow(1, 10, "ann"),
		userRow(2, 20, "bob"),
		userRow(3, 10, "cat"),
	})

	_, err := ctx.Tables.CreateTable("depts", []catalog.Column{
		{Name: "dept", Type: common.IntType},
		{Name: "title", Type: common.StringType},
	})
	require.NoError(t, err)
	deptIns := NewInsertExecutor(&planner.InsertPlan{Table: "depts", Rows: [][]common.Value{
		{common.NewIntValue(10), common.NewStringValue("eng")},
		{common.NewIntValue(20), common.NewStringValue("ops")},
	}})
	require.NoError(t, deptIns.Init(ctx))
	for deptIns.Next() {
	}
	require.NoError(t, deptIns.Error())

	join := NewNestedLoopJoinExecutor(&planner.NestedLoopJoinPlan{
		Left:  &planner.SeqScanPlan{Table: "users"},
		Right: &planner.SeqScanPlan{Table: "depts"},
		Predicate: planner.Comparison{
			Left:  planner.ColumnValue{TupleIdx: 0, ColIdx: 1},
			Right: planner.ColumnValue{TupleIdx: 1, ColIdx: 0},
			Op:    planner.CmpEq,
		},
	},
		CreateExecutor(&planner.SeqScanPlan{Table: "users"}),
		CreateExecutor(&planner.SeqScanPlan{Table: "depts"}))

	got := drain(t, ctx, join)
	require.Len(t, got, 3)
	for _, tp := range got {
		assert.Equal(t, tp.GetValue(1).IntValue(), tp.GetValue(3).IntValue(),
			"joined rows agree on the dept key")
		assert.Equal(t, 5, tp.NumColumns())
	}
}

func TestHashJoin_MatchesNestedLoop(t *testing.T) {
	ctx := setupContext(t)
	createUsersTable(t, ctx)
	insertUsers(t, ctx, [][]common.Value{
		userRow(1, 10, "ann"),
		userRow(2, 20, "bob"),
		userRow(3, 10, "cat"),
		userRow(4, 30, "dan"), // no matching dept
	})

	_, err := ctx.Tables.CreateTable("depts", []catalog.Column{
		{Name: "dept", Type: common.IntType},
		{Name: "title", Type: common.StringType},
	})
	require.NoError(t, err)
	deptIns := NewInsertExecutor(&planner.InsertPlan{Table: "depts", Rows: [][]common.Value{
		{common.NewIntValue(10), common.NewStringValue("eng")},
		{common.NewIntValue(20), common.NewStringValue("ops")},
	}})
	require.NoError(t, deptIns.Init(ctx))
	for deptIns.Next() {
	}

	join := NewHashJoinExecutor(&planner.HashJoinPlan{
		Left:      &planner.SeqScanPlan{Table: "users"},
		Right:     &planner.SeqScanPlan{Table: "depts"},
		LeftKeys:  []int{1},
		RightKeys: []int{0},
	},
		CreateExecutor(&planner.SeqScanPlan{Table: "users"}),
		CreateExecutor(&planner.SeqScanPlan{Table: "depts"}))

	got := drain(t, ctx, join)
	assert.Equal(t, []int64{1, 2, 3}, column0Ints(got), "user 4 has no dept and drops out")
	for _, tp := range got {
		assert.Equal(t, tp.GetValue(1).IntValue(), tp.GetValue(3).IntValue())
	}
}

func TestInsert_MaintainsHashIndex(t *testing.T) {
	ctx := setupContext(t)
	createUsersTable(t, ctx)
	insertUsers(t, ctx, [][]common.Value{
		userRow(1, 10, "ann"),
		userRow(2, 20, "bob"),
	})

	// Index created after the first batch must backfill it.
	index, err := ctx.Tables.CreateIndex("users", "users_by_id", []int{0})
	require.NoError(t, err)

	insertUsers(t, ctx, [][]common.Value{userRow(3, 30, "cat")})

	heap, err := ctx.Tables.GetTableHeap("users")
	require.NoError(t, err)
	desc := heap.StorageSchema()

	for id := int64(1); id <= 3; id++ {
		key := index.KeySchema().Serialize([]common.Value{common.NewIntValue(id)})
		rids := index.GetValue(key)
		require.Len(t, rids, 1, "id %d", id)

		buf := make(storage.RawTuple, desc.BytesPerTuple())
		ok, err := heap.GetRow(rids[0], buf)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, id, desc.GetValue(buf, 0).IntValue())
	}
}

func TestUpdate_MaintainsHashIndex(t *testing.T) {
	ctx := setupContext(t)
	createUsersTable(t, ctx)
	_, err := ctx.Tables.CreateIndex("users", "users_by_dept", []int{1})
	require.NoError(t, err)
	index, err := ctx.Tables.GetIndex("users_by_dept")
	require.NoError(t, err)

	insertUsers(t, ctx, [][]common.Value{
		userRow(1, 10, "ann"),
		userRow(2, 10, "bob"),
	})

	upd := NewUpdateExecutor(&planner.UpdatePlan{
		Table: "users",
		Predicate: planner.Comparison{
			Left:  planner.ColumnValue{ColIdx: 0},
			Right: planner.ConstantValue{Val: common.NewIntValue(1)},
			Op:    planner.CmpEq,
		},
		SetColumns: []int{1},
		SetExprs:   []planner.Expr{planner.ConstantValue{Val: common.NewIntValue(20)}},
	})
	require.NoError(t, upd.Init(ctx))
	for upd.Next() {
	}
	require.Equal(t, 1, upd.RowsUpdated())

	oldKey := index.KeySchema().Serialize([]common.Value{common.NewIntValue(10)})
	newKey := index.KeySchema().Serialize([]common.Value{common.NewIntValue(20)})
	assert.Len(t, index.GetValue(oldKey), 1, "only bob remains under dept 10")
	assert.Len(t, index.GetValue(newKey), 1, "ann moved to dept 20")
}
