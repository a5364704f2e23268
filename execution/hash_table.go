package execution

import (
	"github.com/Rachelint/bustub/common"
	"github.com/Rachelint/bustub/storage"
)

// ExecutionHashTable is a generic wrapper around a Go map keyed by the
// serialized bytes of selected tuple columns. It backs the single-threaded
// blocking operators (aggregation, distinct, hash join).
type ExecutionHashTable[T any] struct {
	table map[string]T
}

// NewExecutionHashTable creates an empty table.
func NewExecutionHashTable[T any]() *ExecutionHashTable[T] {
	return &ExecutionHashTable[T]{table: make(map[string]T)}
}

// EncodeKey serializes the named columns of a tuple into a map key. Fixed
// column widths make the encoding unambiguous without separators.
func EncodeKey(t storage.Tuple, cols []int) string {
	size := 0
	for _, c := range cols {
		size += t.GetValue(c).SizeInBytes()
	}
	buf := make([]byte, size)
	off := 0
	for _, c := range cols {
		v := t.GetValue(c)
		v.WriteTo(buf[off:])
		off += v.SizeInBytes()
	}
	return string(buf)
}

// AllColumns returns the identity projection for a tuple's column count.
func AllColumns(t storage.Tuple) []int {
	cols := make([]int, t.NumColumns())
	for i := range cols {
		cols[i] = i
	}
	return cols
}

// Get returns the value stored under key.
func (ht *ExecutionHashTable[T]) Get(key string) (T, bool) {
	v, ok := ht.table[key]
	return v, ok
}

// Put stores value under key.
func (ht *ExecutionHashTable[T]) Put(key string, value T) {
	ht.table[key] = value
}

// Len returns the number of distinct keys.
func (ht *ExecutionHashTable[T]) Len() int {
	return len(ht.table)
}

// Range calls fn for every entry until fn returns false. Iteration order is
// unspecified.
func (ht *ExecutionHashTable[T]) Range(fn func(key string, value T) bool) {
	for k, v := range ht.table {
		if !fn(k, v) {
			return
		}
	}
}

// materialize deep-copies a tuple's values into a self-contained virtual
// tuple, safe to keep after the source buffer is reused.
func materialize(t storage.Tuple) storage.Tuple {
	return storage.FromValues(t.Values())
}

// concatTuples builds the join output row: left's columns then right's.
func concatTuples(left, right storage.Tuple) storage.Tuple {
	values := make([]common.Value, 0, left.NumColumns()+right.NumColumns())
	values = append(values, left.Values()...)
	values = append(values, right.Values()...)
	return storage.FromValues(values)
}
