package storage

import (
	"bytes"

	"github.com/Rachelint/bustub/common"
)

// KeyComparator orders two serialized keys. Returns a negative number, zero,
// or a positive number as a sorts before, equal to, or after b.
type KeyComparator func(a, b []byte) int

// BucketArraySize returns the number of (key, value) entries a bucket page
// holds for the given entry size: each entry costs its bytes plus one bit in
// each of the two bitmaps.
func BucketArraySize(entrySize int) int {
	return (4*common.PageSize - 1) / (4*entrySize + 1)
}

// HashTableBucketPage is a typed view over one bucket page of an extendible
// hash table: a slotted array of fixed-width (key, value) entries and two
// bitmaps tracking slot state.
//
// Layout (little-endian):
//
//	occupied bitmap | readable bitmap | entries
//
// where each bitmap is ceil(capacity/8) bytes. occupied[i] is set once when
// slot i is first written and never cleared while the bucket lives, so a
// clear occupied bit is a definite terminator for the linear probe.
// readable[i] is set iff slot i holds a live entry; occupied-but-not-readable
// slots are tombstones. readable is always a subset of occupied.
//
// The bitmaps sit at byte granularity with no alignment padding, so this
// view uses plain byte indexing rather than the word-level Bitmap.
//
// numReadable caches popcount(readable). It is computed when the view is
// built and maintained by the mutating operations; it is not stored on the
// page. Callers synchronize with the page latch and must not hold two live
// views of one page across mutations.
type HashTableBucketPage struct {
	page      *Page
	keySize   int
	valueSize int
	entrySize int
	capacity  int
	// byte offsets of the three regions
	readableOffset int
	entriesOffset  int

	numReadable int
}

// AsBucketPage interprets the frame's bytes as a bucket page holding keys of
// `keySize` bytes and values of common.RecordIDSize bytes.
func AsBucketPage(page *Page, keySize int) *HashTableBucketPage {
	common.Assert(keySize > 0, "key size must be positive")

	entrySize := keySize + common.RecordIDSize
	capacity := BucketArraySize(entrySize)
	bitmapBytes := (capacity + 7) / 8
	common.Assert(2*bitmapBytes+capacity*entrySize <= common.PageSize,
		"bucket layout exceeds page size: capacity %d, entry %d", capacity, entrySize)

	b := &HashTableBucketPage{
		page:           page,
		keySize:        keySize,
		valueSize:      common.RecordIDSize,
		entrySize:      entrySize,
		capacity:       capacity,
		readableOffset: bitmapBytes,
		entriesOffset:  2 * bitmapBytes,
	}
	for i := 0; i < capacity; i++ {
		if b.IsReadable(i) {
			b.numReadable++
		}
	}
	return b
}

// Page returns the underlying frame.
func (b *HashTableBucketPage) Page() *Page {
	return b.page
}

// Capacity returns the number of entry slots in the bucket.
func (b *HashTableBucketPage) Capacity() int {
	return b.capacity
}

// NumReadable returns the number of live entries.
func (b *HashTableBucketPage) NumReadable() int {
	return b.numReadable
}

// IsFull reports whether every slot holds a live entry.
func (b *HashTableBucketPage) IsFull() bool {
	return b.numReadable == b.capacity
}

// IsEmpty reports whether no slot holds a live entry.
func (b *HashTableBucketPage) IsEmpty() bool {
	return b.numReadable == 0
}

// IsOccupied reports whether slot i has ever been written.
func (b *HashTableBucketPage) IsOccupied(i int) bool {
	return b.page.Bytes[i/8]&(1<<(i%8)) != 0
}

func (b *HashTableBucketPage) setOccupied(i int) {
	b.page.Bytes[i/8] |= 1 << (i % 8)
}

// IsReadable reports whether slot i currently holds a live entry.
func (b *HashTableBucketPage) IsReadable(i int) bool {
	return b.page.Bytes[b.readableOffset+i/8]&(1<<(i%8)) != 0
}

func (b *HashTableBucketPage) setReadable(i int, on bool) {
	if on {
		b.page.Bytes[b.readableOffset+i/8] |= 1 << (i % 8)
	} else {
		b.page.Bytes[b.readableOffset+i/8] &^= 1 << (i % 8)
	}
}

func (b *HashTableBucketPage) entry(i int) []byte {
	off := b.entriesOffset + i*b.entrySize
	return b.page.Bytes[off : off+b.entrySize]
}

// KeyAt returns the serialized key in slot i. The slice aliases the page
// bytes; it is only valid while the page stays latched and pinned.
func (b *HashTableBucketPage) KeyAt(i int) []byte {
	common.Assert(i >= 0 && i < b.capacity, "slot %d out of bounds", i)
	return b.entry(i)[:b.keySize]
}

// ValueAt returns the value in slot i.
func (b *HashTableBucketPage) ValueAt(i int) common.RecordID {
	common.Assert(i >= 0 && i < b.capacity, "slot %d out of bounds", i)
	return common.LoadRecordID(b.entry(i)[b.keySize:])
}

// InsertAt writes (key, value) into slot i unconditionally and marks it
// live. Used by the split path to pack migrated entries densely.
func (b *HashTableBucketPage) InsertAt(i int, key []byte, value common.RecordID) {
	common.Assert(i >= 0 && i < b.capacity, "slot %d out of bounds", i)
	common.Assert(len(key) == b.keySize, "key size mismatch: got %d, want %d", len(key), b.keySize)
	common.Assert(!b.IsReadable(i), "double insert into live slot %d", i)

	e := b.entry(i)
	copy(e, key)
	value.WriteTo(e[b.keySize:])
	b.setOccupied(i)
	b.setReadable(i, true)
	b.numReadable++
}

// RemoveAt clears slot i's readable bit, leaving a tombstone. The occupied
// bit stays set so probe chains stay intact.
func (b *HashTableBucketPage) RemoveAt(i int) {
	common.Assert(i >= 0 && i < b.capacity, "slot %d out of bounds", i)
	common.Assert(b.IsReadable(i), "removing a slot that is not live")

	b.setReadable(i, false)
	b.numReadable--
}

// GetValue appends to `result` the value of every live entry whose key
// compares equal to `key`, in slot order. The scan stops at the first
// never-occupied slot.
func (b *HashTableBucketPage) GetValue(key []byte, cmp KeyComparator, result []common.RecordID) []common.RecordID {
	for i := 0; i < b.capacity; i++ {
		if !b.IsOccupied(i) {
			break
		}
		if b.IsReadable(i) && cmp(key, b.KeyAt(i)) == 0 {
			result = append(result, b.ValueAt(i))
		}
	}
	return result
}

// Insert adds (key, value) to the bucket. The single scan both checks for an
// existing identical pair and picks the insert position: the first tombstone
// seen, else the first never-occupied slot. Returns false if the pair is
// already present or the bucket is full.
func (b *HashTableBucketPage) Insert(key []byte, value common.RecordID, cmp KeyComparator) bool {
	if b.IsFull() {
		return false
	}

	insertPos := -1
	for i := 0; i < b.capacity; i++ {
		if !b.IsOccupied(i) {
			if insertPos == -1 {
				insertPos = i
			}
			break
		}
		if b.IsReadable(i) {
			// Duplicate keys are fine; a duplicate (key, value) pair is not.
			if cmp(key, b.KeyAt(i)) == 0 && b.ValueAt(i) == value {
				return false
			}
		} else if insertPos == -1 {
			insertPos = i
		}
	}
	common.Assert(insertPos != -1, "non-full bucket produced no insert position")
	b.InsertAt(insertPos, key, value)
	return true
}

// Remove tombstones the first live entry matching both key and value.
// Returns false if no such entry exists.
func (b *HashTableBucketPage) Remove(key []byte, value common.RecordID, cmp KeyComparator) bool {
	if b.IsEmpty() {
		return false
	}

	for i := 0; i < b.capacity; i++ {
		if !b.IsOccupied(i) {
			break
		}
		if b.IsReadable(i) && cmp(key, b.KeyAt(i)) == 0 && b.ValueAt(i) == value {
			b.RemoveAt(i)
			return true
		}
	}
	return false
}

// HasPair reports whether (key, value) is currently a live entry. Used by
// the split path to re-check duplication after re-acquiring latches.
func (b *HashTableBucketPage) HasPair(key []byte, value common.RecordID, cmp KeyComparator) bool {
	for i := 0; i < b.capacity; i++ {
		if !b.IsOccupied(i) {
			break
		}
		if b.IsReadable(i) && cmp(key, b.KeyAt(i)) == 0 && b.ValueAt(i) == value {
			return true
		}
	}
	return false
}

// BytesKeyComparator compares keys lexicographically as raw bytes.
func BytesKeyComparator(a, b []byte) int {
	return bytes.Compare(a, b)
}
