package storage

import (
	"encoding/binary"

	"github.com/Rachelint/bustub/common"
)

// HeapPage layout:
//
//	LSN (4) | NextPageID (4) | RowSize (2) | NumSlots (2) | NumUsed (2) | Padding (2) | allocation Bitmap | rows
//
// Heap pages of one table form a singly linked chain through NextPageID;
// the table heap appends a page when every page in the chain is full.
type HeapPage struct {
	*Page

	// Computed on creation for performance in repeated access
	allocationBitmap Bitmap
	rowDataStart     int
}

const (
	heapPageOffsetLSN      = 0
	heapPageOffsetNextPage = heapPageOffsetLSN + 4
	heapPageOffsetRowSize  = heapPageOffsetNextPage + common.PageIDSize
	heapPageOffsetNumSlots = heapPageOffsetRowSize + 2
	heapPageOffsetNumUsed  = heapPageOffsetNumSlots + 2
)
const heapPageHeaderSize = heapPageOffsetNumUsed + 4

// InitializeHeapPage formats a fresh frame as an empty heap page for rows of
// the given descriptor. Slot capacity packs full 64-row blocks (8 bitmap
// bytes each) and then whatever the remainder fits.
func InitializeHeapPage(desc *RawTupleDesc, frame *Page) {
	rowSize := desc.BytesPerTuple()
	common.Assert(common.AlignedTo8(rowSize), "row size %d should be aligned to 8", rowSize)

	blockSize := (64 * rowSize) + 8
	available := common.PageSize - heapPageHeaderSize
	fullBlocks, remainder := available/blockSize, available%blockSize
	numSlots := fullBlocks * 64
	if remainder > 8 {
		numSlots += (remainder - 8) / rowSize
	}
	common.Assert(numSlots > 0, "rows of %d bytes do not fit a heap page", rowSize)

	common.InvalidPageID.WriteTo(frame.Bytes[heapPageOffsetNextPage:])
	binary.LittleEndian.PutUint16(frame.Bytes[heapPageOffsetRowSize:], uint16(rowSize))
	binary.LittleEndian.PutUint16(frame.Bytes[heapPageOffsetNumSlots:], uint16(numSlots))
}

// AsHeapPage interprets an initialized frame as a heap page.
func (p *Page) AsHeapPage() HeapPage {
	result := HeapPage{Page: p}
	numSlots := result.NumSlots()
	common.Assert(result.RowSize() > 0 && numSlots > 0, "uninitialized heap page")

	result.allocationBitmap = AsBitmap(p.Bytes[heapPageHeaderSize:], numSlots)
	bitmapSize := common.Align8((numSlots + 7) / 8)
	result.rowDataStart = heapPageHeaderSize + bitmapSize
	return result
}

func (hp HeapPage) RowSize() int {
	return int(binary.LittleEndian.Uint16(hp.Bytes[heapPageOffsetRowSize:]))
}

func (hp HeapPage) NumSlots() int {
	return int(binary.LittleEndian.Uint16(hp.Bytes[heapPageOffsetNumSlots:]))
}

func (hp HeapPage) NumUsed() int {
	return int(binary.LittleEndian.Uint16(hp.Bytes[heapPageOffsetNumUsed:]))
}

func (hp HeapPage) setNumUsed(numUsed int) {
	binary.LittleEndian.PutUint16(hp.Bytes[heapPageOffsetNumUsed:], uint16(numUsed))
}

// NextPageID returns the id of the next heap page in the table's chain, or
// common.InvalidPageID at the tail.
func (hp HeapPage) NextPageID() common.PageID {
	return common.LoadPageID(hp.Bytes[heapPageOffsetNextPage:])
}

// SetNextPageID links this page to the next page in the chain.
func (hp HeapPage) SetNextPageID(pid common.PageID) {
	pid.WriteTo(hp.Bytes[heapPageOffsetNextPage:])
}

// FindFreeSlot returns an unallocated slot index, or -1 if the page is full.
func (hp HeapPage) FindFreeSlot() int {
	numUsed := hp.NumUsed()
	if numUsed == hp.NumSlots() {
		return -1
	}
	return hp.allocationBitmap.FindFirstZero(numUsed)
}

// IsAllocated checks the allocation bitmap to see if a slot holds a row.
// Out-of-range slots read as unallocated to allow safe iteration.
func (hp HeapPage) IsAllocated(slot int) bool {
	if slot < 0 || slot >= hp.NumSlots() {
		return false
	}
	return hp.allocationBitmap.LoadBit(slot)
}

// MarkAllocated flips a slot in or out of use and maintains the counter.
func (hp HeapPage) MarkAllocated(slot int, allocated bool) {
	common.Assert(slot >= 0 && slot < hp.NumSlots(), "slot out of bounds")
	was := hp.allocationBitmap.SetBit(slot, allocated)
	common.Assert(was != allocated, "slot %d already in state %v", slot, allocated)
	if allocated {
		hp.setNumUsed(hp.NumUsed() + 1)
	} else {
		hp.setNumUsed(hp.NumUsed() - 1)
	}
}

// AccessRow returns the row bytes of an allocated slot. The slice aliases
// the frame; it is only valid while the page stays latched and pinned.
func (hp HeapPage) AccessRow(slot int) RawTuple {
	common.Assert(slot >= 0 && slot < hp.NumSlots(), "slot out of bounds")
	common.Assert(hp.allocationBitmap.LoadBit(slot), "slot %d not allocated", slot)
	start := hp.rowDataStart + slot*hp.RowSize()
	return RawTuple(hp.Bytes[start : start+hp.RowSize()])
}
