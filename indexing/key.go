package indexing

import (
	"github.com/cespare/xxhash/v2"

	"github.com/Rachelint/bustub/common"
	"github.com/Rachelint/bustub/storage"
)

// HashFunc produces the 64-bit hash of a serialized key. The hash index uses
// only the low 32 bits to address its directory.
type HashFunc func(key []byte) uint64

// DefaultHash hashes keys with xxHash64.
func DefaultHash(key []byte) uint64 {
	return xxhash.Sum64(key)
}

// KeySchema describes the fixed-width serialized keys of one index: their
// column types, total byte width, and ordering.
type KeySchema struct {
	desc *storage.RawTupleDesc
}

// NewKeySchema builds a key schema over the given column types.
func NewKeySchema(fields []common.Type) *KeySchema {
	return &KeySchema{desc: storage.NewRawTupleDesc(fields)}
}

// KeySize returns the serialized key width in bytes.
func (ks *KeySchema) KeySize() int {
	return ks.desc.BytesPerTuple()
}

// Desc exposes the underlying physical layout descriptor.
func (ks *KeySchema) Desc() *storage.RawTupleDesc {
	return ks.desc
}

// Compare orders two serialized keys column by column.
func (ks *KeySchema) Compare(a, b []byte) int {
	for i := 0; i < ks.desc.NumColumns(); i++ {
		va := ks.desc.GetValue(a, i)
		vb := ks.desc.GetValue(b, i)
		if cmp := va.Compare(vb); cmp != 0 {
			return cmp
		}
	}
	return 0
}

// Serialize writes `values` as a key into a fresh buffer.
func (ks *KeySchema) Serialize(values []common.Value) []byte {
	common.Assert(len(values) == ks.desc.NumColumns(), "key arity mismatch")
	buf := make([]byte, ks.KeySize())
	for i, v := range values {
		ks.desc.SetValue(buf, i, v)
	}
	return buf
}
