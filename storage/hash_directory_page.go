package storage

import (
	"encoding/binary"

	"github.com/Rachelint/bustub/common"
)

// HashTableDirectoryPage is a typed view over the directory page of an
// extendible hash table. The directory owns the global depth, and for each
// of its 1<<globalDepth live slots a bucket page id and that bucket's local
// depth.
//
// Layout (little-endian):
//
//	PageID (4) | LSN (4) | GlobalDepth (4) | LocalDepths (512) | BucketPageIDs (512 * 4)
//
// The depth and id arrays are fixed at DirectoryArraySize entries; only the
// first 1<<globalDepth are meaningful.
//
// The view carries no state of its own. Callers synchronize access with the
// hash table's latches and pin the page for the lifetime of the view.
type HashTableDirectoryPage struct {
	page *Page
}

const (
	dirOffsetPageID        = 0
	dirOffsetLSN           = dirOffsetPageID + common.PageIDSize
	dirOffsetGlobalDepth   = dirOffsetLSN + 4
	dirOffsetLocalDepths   = dirOffsetGlobalDepth + 4
	dirOffsetBucketPageIDs = dirOffsetLocalDepths + common.DirectoryArraySize
	dirSerializedSize      = dirOffsetBucketPageIDs + common.DirectoryArraySize*common.PageIDSize
)

// AsDirectoryPage interprets the frame's bytes as a directory page.
func AsDirectoryPage(page *Page) HashTableDirectoryPage {
	common.Assert(dirSerializedSize <= common.PageSize, "directory layout exceeds page size")
	return HashTableDirectoryPage{page: page}
}

// Page returns the underlying frame.
func (d HashTableDirectoryPage) Page() *Page {
	return d.page
}

// PageID returns the directory's own page id, as recorded in the header.
func (d HashTableDirectoryPage) PageID() common.PageID {
	return common.LoadPageID(d.page.Bytes[dirOffsetPageID:])
}

// SetPageID records the directory's own page id in the header.
func (d HashTableDirectoryPage) SetPageID(pid common.PageID) {
	pid.WriteTo(d.page.Bytes[dirOffsetPageID:])
}

// LSN returns the page's log sequence number. The core treats it as opaque.
func (d HashTableDirectoryPage) LSN() common.LSN {
	return common.LSN(binary.LittleEndian.Uint32(d.page.Bytes[dirOffsetLSN:]))
}

// SetLSN stores the page's log sequence number.
func (d HashTableDirectoryPage) SetLSN(lsn common.LSN) {
	binary.LittleEndian.PutUint32(d.page.Bytes[dirOffsetLSN:], uint32(lsn))
}

// GlobalDepth returns the number of hash-prefix bits used to index the
// directory.
func (d HashTableDirectoryPage) GlobalDepth() uint32 {
	return binary.LittleEndian.Uint32(d.page.Bytes[dirOffsetGlobalDepth:])
}

func (d HashTableDirectoryPage) setGlobalDepth(gd uint32) {
	binary.LittleEndian.PutUint32(d.page.Bytes[dirOffsetGlobalDepth:], gd)
}

// GlobalDepthMask masks a hash value down to a directory index:
// (1 << globalDepth) - 1.
func (d HashTableDirectoryPage) GlobalDepthMask() uint32 {
	return (1 << d.GlobalDepth()) - 1
}

// Size returns the number of live directory slots, 1 << globalDepth.
func (d HashTableDirectoryPage) Size() uint32 {
	return 1 << d.GlobalDepth()
}

// IsFull reports whether the directory has reached the maximum depth and can
// no longer double.
func (d HashTableDirectoryPage) IsFull() bool {
	return d.GlobalDepth() == common.MaxHashDepth
}

// LocalDepth returns the local depth of the bucket mapped at slot `idx`.
func (d HashTableDirectoryPage) LocalDepth(idx uint32) uint32 {
	common.Assert(idx < d.Size(), "directory index %d out of range", idx)
	return uint32(d.page.Bytes[dirOffsetLocalDepths+int(idx)])
}

// SetLocalDepth sets the local depth recorded at slot `idx`.
func (d HashTableDirectoryPage) SetLocalDepth(idx uint32, ld uint32) {
	common.Assert(idx < common.DirectoryArraySize, "directory index %d out of range", idx)
	common.Assert(ld <= common.MaxHashDepth, "local depth %d exceeds maximum", ld)
	d.page.Bytes[dirOffsetLocalDepths+int(idx)] = byte(ld)
}

// IncrLocalDepth bumps the local depth at slot `idx`.
func (d HashTableDirectoryPage) IncrLocalDepth(idx uint32) {
	ld := d.LocalDepth(idx)
	common.Assert(ld < d.GlobalDepth(), "local depth may not exceed global depth")
	d.SetLocalDepth(idx, ld+1)
}

// DecrLocalDepth lowers the local depth at slot `idx`.
func (d HashTableDirectoryPage) DecrLocalDepth(idx uint32) {
	ld := d.LocalDepth(idx)
	common.Assert(ld > 0, "cannot decrement local depth below zero")
	d.SetLocalDepth(idx, ld-1)
}

// LocalDepthMask masks a hash value down to the bits that determine the
// bucket at slot `idx`: (1 << localDepth) - 1.
func (d HashTableDirectoryPage) LocalDepthMask(idx uint32) uint32 {
	return (1 << d.LocalDepth(idx)) - 1
}

// LocalHighBit returns the discriminating bit of the bucket at slot `idx`:
// 1 << (localDepth-1), or 0 when the local depth is 0. Slot idx and slot
// idx xor LocalHighBit(idx) are split partners.
func (d HashTableDirectoryPage) LocalHighBit(idx uint32) uint32 {
	ld := d.LocalDepth(idx)
	if ld == 0 {
		return 0
	}
	return 1 << (ld - 1)
}

// BucketPageID returns the page id of the bucket mapped at slot `idx`.
func (d HashTableDirectoryPage) BucketPageID(idx uint32) common.PageID {
	common.Assert(idx < common.DirectoryArraySize, "directory index %d out of range", idx)
	return common.LoadPageID(d.page.Bytes[dirOffsetBucketPageIDs+int(idx)*common.PageIDSize:])
}

// SetBucketPageID maps slot `idx` to the bucket at `pid`.
func (d HashTableDirectoryPage) SetBucketPageID(idx uint32, pid common.PageID) {
	common.Assert(idx < common.DirectoryArraySize, "directory index %d out of range", idx)
	pid.WriteTo(d.page.Bytes[dirOffsetBucketPageIDs+int(idx)*common.PageIDSize:])
}

// IncrGlobalDepth doubles the directory. Every new slot j in the upper half
// mirrors its image j xor (1<<gd) in the lower half: same bucket, same local
// depth. Splitting the newly aliased pairs is the caller's business.
func (d HashTableDirectoryPage) IncrGlobalDepth() {
	gd := d.GlobalDepth()
	common.Assert(gd < common.MaxHashDepth, "directory already at maximum depth")

	half := uint32(1) << gd
	for j := half; j < half*2; j++ {
		img := j ^ half
		d.SetBucketPageID(j, d.BucketPageID(img))
		d.SetLocalDepth(j, d.LocalDepth(img))
	}
	d.setGlobalDepth(gd + 1)
}

// DecrGlobalDepth halves the directory, logically discarding the upper half.
// Legal only when CanShrink() holds.
func (d HashTableDirectoryPage) DecrGlobalDepth() {
	gd := d.GlobalDepth()
	common.Assert(gd > 0, "cannot shrink an empty directory")
	d.setGlobalDepth(gd - 1)
}

// CanShrink reports whether every bucket's local depth is strictly below the
// global depth, i.e. the upper directory half carries no information.
func (d HashTableDirectoryPage) CanShrink() bool {
	gd := d.GlobalDepth()
	if gd == 0 {
		return false
	}
	for i := uint32(0); i < d.Size(); i++ {
		if d.LocalDepth(i) == gd {
			return false
		}
	}
	return true
}

// VerifyIntegrity walks the directory and asserts its structural invariants:
// every local depth is bounded by the global depth, all slots mapping to one
// bucket agree on its local depth, and each bucket is referenced by exactly
// 2^(gd-ld) slots.
func (d HashTableDirectoryPage) VerifyIntegrity() {
	pageIDToCount := make(map[common.PageID]uint32)
	pageIDToLD := make(map[common.PageID]uint32)

	for i := uint32(0); i < d.Size(); i++ {
		pid := d.BucketPageID(i)
		ld := d.LocalDepth(i)
		common.Assert(ld <= d.GlobalDepth(), "slot %d: local depth %d exceeds global depth %d", i, ld, d.GlobalDepth())

		pageIDToCount[pid]++
		if known, ok := pageIDToLD[pid]; ok {
			common.Assert(known == ld, "bucket %s mapped with local depths %d and %d", pid, known, ld)
		} else {
			pageIDToLD[pid] = ld
		}
	}

	for pid, count := range pageIDToCount {
		expected := uint32(1) << (d.GlobalDepth() - pageIDToLD[pid])
		common.Assert(count == expected, "bucket %s referenced by %d slots, want %d", pid, count, expected)
	}
}
