// Package planner holds the physical plan nodes the execution layer runs.
// There is no optimizer: callers (tests, the embedding application)
// construct plans by hand.
package planner

import (
	"github.com/Rachelint/bustub/common"
)

// PlanNode is the interface of all physical plan nodes.
type PlanNode interface {
	Children() []PlanNode
}

// SeqScanPlan scans a table front to back, emitting rows that pass the
// optional predicate.
type SeqScanPlan struct {
	Table     string
	Predicate Expr
}

func (p *SeqScanPlan) Children() []PlanNode { return nil }

// InsertPlan inserts literal rows into a table.
type InsertPlan struct {
	Table string
	Rows  [][]common.Value
}

func (p *InsertPlan) Children() []PlanNode { return nil }

// UpdatePlan rewrites, for every row passing the predicate, the columns
// named in SetColumns with the corresponding SetExprs (evaluated against the
// pre-update row).
type UpdatePlan struct {
	Table      string
	Predicate  Expr
	SetColumns []int
	SetExprs   []Expr
}

func (p *UpdatePlan) Children() []PlanNode { return nil }

// AggregateOp enumerates the supported aggregate functions.
type AggregateOp int

const (
	AggCountStar AggregateOp = iota
	AggCount
	AggSum
	AggMin
	AggMax
)

// Aggregate names one aggregate computation over an input column
// (ignored for AggCountStar).
type Aggregate struct {
	Op     AggregateOp
	ColIdx int
}

// AggregationPlan groups the child's output by the GroupBy columns and
// computes the listed aggregates per group. Output tuples carry the group-by
// values first, then the aggregate values.
type AggregationPlan struct {
	Child      PlanNode
	GroupBy    []int
	Aggregates []Aggregate
}

func (p *AggregationPlan) Children() []PlanNode { return []PlanNode{p.Child} }

// DistinctPlan removes duplicate rows from the child's output.
type DistinctPlan struct {
	Child PlanNode
}

func (p *DistinctPlan) Children() []PlanNode { return []PlanNode{p.Child} }

// NestedLoopJoinPlan joins left and right with a nested loop, emitting the
// concatenated row for every pair passing the predicate.
type NestedLoopJoinPlan struct {
	Left      PlanNode
	Right     PlanNode
	Predicate Expr
}

func (p *NestedLoopJoinPlan) Children() []PlanNode { return []PlanNode{p.Left, p.Right} }

// HashJoinPlan equi-joins left and right: the left side is built into a hash
// table on LeftKeys, the right side probes with RightKeys.
type HashJoinPlan struct {
	Left      PlanNode
	Right     PlanNode
	LeftKeys  []int
	RightKeys []int
}

func (p *HashJoinPlan) Children() []PlanNode { return []PlanNode{p.Left, p.Right} }
