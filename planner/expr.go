package planner

import (
	"github.com/Rachelint/bustub/common"
	"github.com/Rachelint/bustub/storage"
)

// Expr is an evaluable expression over one or more input tuples. Scans and
// filters evaluate against a single tuple; join predicates receive the left
// and right tuples as rows[0] and rows[1].
type Expr interface {
	Evaluate(rows ...storage.Tuple) common.Value
}

// ColumnValue reads column ColIdx from input tuple TupleIdx.
type ColumnValue struct {
	TupleIdx int
	ColIdx   int
}

func (e ColumnValue) Evaluate(rows ...storage.Tuple) common.Value {
	return rows[e.TupleIdx].GetValue(e.ColIdx)
}

// ConstantValue evaluates to a fixed value.
type ConstantValue struct {
	Val common.Value
}

func (e ConstantValue) Evaluate(...storage.Tuple) common.Value {
	return e.Val
}

// ComparisonOp enumerates the comparison operators.
type ComparisonOp int

const (
	CmpEq ComparisonOp = iota
	CmpNe
	CmpLt
	CmpLe
	CmpGt
	CmpGe
)

// Comparison evaluates Left op Right to an int value of 1 (true) or 0.
type Comparison struct {
	Left  Expr
	Right Expr
	Op    ComparisonOp
}

func (e Comparison) Evaluate(rows ...storage.Tuple) common.Value {
	cmp := e.Left.Evaluate(rows...).Compare(e.Right.Evaluate(rows...))

	var truth bool
	switch e.Op {
	case CmpEq:
		truth = cmp == 0
	case CmpNe:
		truth = cmp != 0
	case CmpLt:
		truth = cmp < 0
	case CmpLe:
		truth = cmp <= 0
	case CmpGt:
		truth = cmp > 0
	case CmpGe:
		truth = cmp >= 0
	default:
		panic("unknown comparison operator")
	}
	if truth {
		return common.NewIntValue(1)
	}
	return common.NewIntValue(0)
}

// And evaluates to 1 iff every conjunct is truthy. An empty And is true.
type And struct {
	Conjuncts []Expr
}

func (e And) Evaluate(rows ...storage.Tuple) common.Value {
	for _, c := range e.Conjuncts {
		if c.Evaluate(rows...).IntValue() == 0 {
			return common.NewIntValue(0)
		}
	}
	return common.NewIntValue(1)
}

// IsTruthy reports whether an evaluated predicate accepted its input. A nil
// predicate accepts everything.
func IsTruthy(pred Expr, rows ...storage.Tuple) bool {
	if pred == nil {
		return true
	}
	return pred.Evaluate(rows...).IntValue() != 0
}
