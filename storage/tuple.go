package storage

import (
	"fmt"

	"github.com/Rachelint/bustub/common"
)

// RawTuple is the physical view of a row: a compact slice of bytes laid out
// exactly as on a heap page. It carries no schema; a RawTupleDesc is needed
// to read it.
type RawTuple []byte

// RawTupleDesc describes the physical binary layout of a RawTuple.
type RawTupleDesc struct {
	fields      []common.Type
	offsets     []int // column index -> byte offset of the column's first byte
	bytesPerRow int
}

// NewRawTupleDesc creates a descriptor for the given list of field types.
// Fixed-width columns only; the total row size must come out 8-byte aligned
// so heap-page bitmaps stay word-addressable.
func NewRawTupleDesc(fields []common.Type) *RawTupleDesc {
	size := 0
	offsets := make([]int, len(fields))
	for i, f := range fields {
		offsets[i] = size
		size += f.Size()
	}
	common.Assert(common.AlignedTo8(size), "tuple size %d must be aligned to 8 bytes", size)
	common.Assert(size <= common.PageSize-32, "tuple size %d exceeds page capacity", size)
	return &RawTupleDesc{fields: fields, offsets: offsets, bytesPerRow: size}
}

func (desc *RawTupleDesc) String() string {
	return fmt.Sprintf("%v", desc.fields)
}

// NumColumns returns the number of fields in the physical schema.
func (desc *RawTupleDesc) NumColumns() int {
	return len(desc.fields)
}

// BytesPerTuple returns the fixed size in bytes required to store this tuple.
func (desc *RawTupleDesc) BytesPerTuple() int {
	return desc.bytesPerRow
}

// GetFieldType returns the type of the field at index i.
func (desc *RawTupleDesc) GetFieldType(i int) common.Type {
	return desc.fields[i]
}

// GetFieldTypes returns all field types in column order.
func (desc *RawTupleDesc) GetFieldTypes() []common.Type {
	return desc.fields
}

// GetValue deserializes the value at column i from the given physical bytes.
func (desc *RawTupleDesc) GetValue(t RawTuple, i int) common.Value {
	return common.AsValue(desc.fields[i], t[desc.offsets[i]:])
}

// SetValue serializes val into column i of the physical bytes.
func (desc *RawTupleDesc) SetValue(t RawTuple, i int, val common.Value) {
	common.Assert(val.Type() == desc.fields[i], "type mismatch writing column %d", i)
	val.WriteTo(t[desc.offsets[i]:])
}

// Serialize writes a full row of values into a fresh RawTuple.
func (desc *RawTupleDesc) Serialize(values []common.Value) RawTuple {
	common.Assert(len(values) == len(desc.fields), "row arity mismatch")
	row := make(RawTuple, desc.bytesPerRow)
	for i, v := range values {
		desc.SetValue(row, i, v)
	}
	return row
}

// Tuple is the logical view of a row, the currency query operators exchange.
// It is either backed by physical bytes (a scan output) or purely virtual
// (an aggregate result), and knows how to read its own columns either way.
type Tuple struct {
	raw  RawTuple
	desc *RawTupleDesc
	// virtual holds computed columns for tuples with no physical backing.
	virtual []common.Value
	rid     common.RecordID
}

// FromRawTuple creates a Tuple backed by physically stored bytes. The bytes
// are not copied; the caller guarantees they outlive the tuple's use.
func FromRawTuple(raw RawTuple, desc *RawTupleDesc, rid common.RecordID) Tuple {
	return Tuple{raw: raw, desc: desc, rid: rid}
}

// FromValues creates a virtual Tuple holding computed values.
func FromValues(values []common.Value) Tuple {
	return Tuple{virtual: values, rid: common.RecordID{PageID: common.InvalidPageID}}
}

// NumColumns returns the tuple's column count.
func (t Tuple) NumColumns() int {
	if t.virtual != nil {
		return len(t.virtual)
	}
	return t.desc.NumColumns()
}

// GetValue returns the value of column i.
func (t Tuple) GetValue(i int) common.Value {
	if t.virtual != nil {
		return t.virtual[i]
	}
	return t.desc.GetValue(t.raw, i)
}

// RecordID returns the tuple's on-disk location, or an invalid id for
// virtual tuples.
func (t Tuple) RecordID() common.RecordID {
	return t.rid
}

// Values materializes every column.
func (t Tuple) Values() []common.Value {
	out := make([]common.Value, t.NumColumns())
	for i := range out {
		out[i] = t.GetValue(i)
	}
	return out
}

// WriteKey serializes the columns named by `cols` into buf, which must be
// sized for the projected key layout. Used to build hash-table and index
// keys from a tuple.
func (t Tuple) WriteKey(cols []int, keyDesc *RawTupleDesc, buf []byte) {
	common.Assert(len(cols) == keyDesc.NumColumns(), "key projection arity mismatch")
	for i, col := range cols {
		keyDesc.SetValue(buf, i, t.GetValue(col))
	}
}
