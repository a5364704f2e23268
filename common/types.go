package common

import (
	"encoding/binary"
	"fmt"
)

const (
	PageSize     int = 4096
	IntSize      int = 8
	StringLength int = 32
)

// PageID identifies a page on disk. Page ids form a single flat space shared
// by every object in the database; a buffer pool shard owns the ids congruent
// to its shard index.
type PageID int32

const InvalidPageID PageID = -1

// PageIDSize is the serialized size of a PageID.
const PageIDSize = 4

func (p PageID) IsValid() bool {
	return p != InvalidPageID
}

func (p PageID) String() string {
	return fmt.Sprintf("page(%d)", int32(p))
}

// WriteTo serializes the PageID into the provided buffer. The buffer must be large enough to hold a PageID.
func (p PageID) WriteTo(data []byte) {
	if len(data) < PageIDSize {
		panic("buffer too small")
	}
	binary.LittleEndian.PutUint32(data, uint32(p))
}

// LoadPageID deserializes a PageID from the provided buffer.
func LoadPageID(data []byte) PageID {
	if len(data) < PageIDSize {
		panic("buffer too small")
	}
	return PageID(binary.LittleEndian.Uint32(data))
}

// FrameID indexes a slot in a buffer pool's frame array. Frame ids are
// ephemeral: they are only meaningful to the pool that issued them.
type FrameID int32

// ObjectID is a unique identifier for a table/index/etc. in the catalog.
type ObjectID uint32

const InvalidObjectID ObjectID = 0

// LSN is the log sequence number stored in page headers. The core carries it
// opaquely; nothing in this repository interprets it.
type LSN uint32

// RecordID identifies a specific tuple (row) in the database via its PageID and Slot index.
type RecordID struct {
	PageID PageID
	Slot   int32
}

// RecordIDSize is the serialized size of a RecordID (PageID (4) + slot (4) = 8)
const RecordIDSize = 8

func (r RecordID) IsValid() bool {
	return r.PageID.IsValid()
}

func (r RecordID) String() string {
	return fmt.Sprintf("rid(%s, %d)", r.PageID.String(), r.Slot)
}

// WriteTo serializes the RecordID into the provided buffer. The buffer must be large enough to hold a RecordID.
func (r RecordID) WriteTo(data []byte) {
	if len(data) < RecordIDSize {
		panic("buffer too small")
	}
	r.PageID.WriteTo(data)
	binary.LittleEndian.PutUint32(data[PageIDSize:], uint32(r.Slot))
}

// LoadRecordID deserializes a RecordID from the provided buffer.
func LoadRecordID(data []byte) RecordID {
	if len(data) < RecordIDSize {
		panic("buffer too small")
	}
	return RecordID{
		PageID: LoadPageID(data),
		Slot:   int32(binary.LittleEndian.Uint32(data[PageIDSize:])),
	}
}

type Type int8

const (
	// For uninitialized Values
	DefaultType Type = iota
	IntType
	StringType
)

// Size returns the fixed-width storage size of the type in bytes
func (t Type) Size() int {
	switch t {
	case IntType:
		return IntSize
	case StringType:
		return StringLength
	default:
		panic("unknown type")
	}
}

func (t Type) String() string {
	switch t {
	case IntType:
		return "int"
	case StringType:
		return "string"
	}
	return "unknown"
}

// Value represents a (deserialized) data item in a tuple. Values are plain:
// an int64 or a bounded string. The zero Value is nil (uninitialized).
type Value struct {
	t                Type
	underlyingInt    int64
	underlyingString string
}

// AsValue extracts a value from a raw storage buffer.
//
// Strings are copied out of the buffer, so the returned Value stays valid
// after the page frame is unpinned or reused.
func AsValue(t Type, source []byte) Value {
	val := Value{t: t}
	switch t {
	case IntType:
		val.underlyingInt = int64(binary.LittleEndian.Uint64(source))
	case StringType:
		Assert(len(source) >= StringLength, "string buffer too short")
		realLen := StringLength
		for i := 0; i < StringLength; i++ {
			if source[i] == 0 {
				realLen = i
				break
			}
		}
		val.underlyingString = string(source[:realLen])
	}
	return val
}

// NewIntValue creates a new integer Value.
func NewIntValue(v int64) Value {
	return Value{t: IntType, underlyingInt: v}
}

// NewStringValue creates a new string Value.
func NewStringValue(v string) Value {
	if len(v) > StringLength {
		panic("string too long")
	}
	return Value{t: StringType, underlyingString: v}
}

// IsNil returns true if the Value is uninitialized.
func (v Value) IsNil() bool {
	return v.t == DefaultType
}

// Type returns the type of the Value.
func (v Value) Type() Type {
	return v.t
}

// IntValue returns the underlying integer.
func (v Value) IntValue() int64 {
	Assert(v.t == IntType, "type mismatch in IntValue")
	return v.underlyingInt
}

// StringValue returns the underlying string.
func (v Value) StringValue() string {
	Assert(v.t == StringType, "type mismatch in StringValue")
	return v.underlyingString
}

// SizeInBytes returns the serialization size (fixed width).
func (v Value) SizeInBytes() int {
	return v.t.Size()
}

// WriteTo serializes the Value into storage format.
func (v Value) WriteTo(data []byte) {
	Assert(len(data) >= v.SizeInBytes(), "buffer too small")

	switch v.t {
	case IntType:
		binary.LittleEndian.PutUint64(data, uint64(v.underlyingInt))
	case StringType:
		n := copy(data, v.underlyingString)
		for i := n; i < StringLength; i++ {
			data[i] = 0
		}
	default:
		panic("writing uninitialized value")
	}
}

// Compare compares two Values.
// Returns -1 if v < other, 0 if v == other, 1 if v > other.
func (v Value) Compare(other Value) int {
	Assert(v.t == other.t, "type mismatch in comparison")

	switch v.t {
	case IntType:
		if v.underlyingInt < other.underlyingInt {
			return -1
		}
		if v.underlyingInt > other.underlyingInt {
			return 1
		}
		return 0
	case StringType:
		if v.underlyingString < other.underlyingString {
			return -1
		}
		if v.underlyingString > other.underlyingString {
			return 1
		}
		return 0
	}
	panic("unreachable")
}

func (v Value) String() string {
	switch v.t {
	case IntType:
		return fmt.Sprintf("%d", v.underlyingInt)
	case StringType:
		return v.underlyingString
	}
	return "<nil>"
}
