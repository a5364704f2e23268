package execution

import (
	"github.com/Rachelint/bustub/common"
	"github.com/Rachelint/bustub/storage"
)

// TableHeap stores a table as a chain of slotted heap pages served through
// the buffer pool. Every operation pins exactly the pages it touches and
// unpins them before returning; the iterator pins one page at a time.
//
// Row-level synchronization rides on the page latches: readers take the
// page latch shared, writers exclusive. Chain extension happens under the
// tail page's exclusive latch, so two concurrent inserters cannot both
// append a page.
type TableHeap struct {
	desc        *storage.RawTupleDesc
	pool        storage.BufferPool
	firstPageID common.PageID
}

// NewTableHeap creates an empty heap: one formatted page.
func NewTableHeap(pool storage.BufferPool, desc *storage.RawTupleDesc) (*TableHeap, error) {
	page, err := pool.NewPage()
	if err != nil {
		return nil, err
	}
	storage.InitializeHeapPage(desc, page)
	firstPageID := page.ID()
	pool.UnpinPage(firstPageID, true)

	return &TableHeap{desc: desc, pool: pool, firstPageID: firstPageID}, nil
}

// OpenTableHeap attaches to a heap whose first page already exists.
func OpenTableHeap(pool storage.BufferPool, desc *storage.RawTupleDesc, firstPageID common.PageID) *TableHeap {
	return &TableHeap{desc: desc, pool: pool, firstPageID: firstPageID}
}

// StorageSchema returns the physical layout descriptor of the rows.
func (th *TableHeap) StorageSchema() *storage.RawTupleDesc {
	return th.desc
}

// FirstPageID returns the id anchoring the heap chain.
func (th *TableHeap) FirstPageID() common.PageID {
	return th.firstPageID
}

// InsertRow stores a serialized row in the first page with a free slot,
// appending a page to the chain when every page is full. Returns the new
// row's location.
func (th *TableHeap) InsertRow(row storage.RawTuple) (common.RecordID, error) {
	common.Assert(len(row) == th.desc.BytesPerTuple(), "row size mismatch")

	pid := th.firstPageID
	for {
		page, err := th.pool.FetchPage(pid)
		if err != nil {
			return common.RecordID{PageID: common.InvalidPageID}, err
		}
		page.WLatch()
		hp := page.AsHeapPage()

		if slot := hp.FindFreeSlot(); slot >= 0 {
			hp.MarkAllocated(slot, true)
			copy(hp.AccessRow(slot), row)
			page.WUnlatch()
			th.pool.UnpinPage(pid, true)
			return common.RecordID{PageID: pid, Slot: int32(slot)}, nil
		}

		next := hp.NextPageID()
		if next.IsValid() {
			page.WUnlatch()
			th.pool.UnpinPage(pid, false)
			pid = next
			continue
		}

		// Tail page is full: extend the chain while still holding its latch
		// so no other inserter links a competing page.
		newPage, err := th.pool.NewPage()
		if err != nil {
			page.WUnlatch()
			th.pool.UnpinPage(pid, false)
			return common.RecordID{PageID: common.InvalidPageID}, err
		}
		storage.InitializeHeapPage(th.desc, newPage)
		hp.SetNextPageID(newPage.ID())
		page.WUnlatch()
		th.pool.UnpinPage(pid, true)
		pid = newPage.ID()
		th.pool.UnpinPage(pid, true)
	}
}

// GetRow copies the row at `rid` into buf. Returns false if the slot holds
// no row.
func (th *TableHeap) GetRow(rid common.RecordID, buf storage.RawTuple) (bool, error) {
	page, err := th.pool.FetchPage(rid.PageID)
	if err != nil {
		return false, err
	}
	page.RLatch()
	hp := page.AsHeapPage()

	ok := hp.IsAllocated(int(rid.Slot))
	if ok {
		copy(buf, hp.AccessRow(int(rid.Slot)))
	}
	page.RUnlatch()
	th.pool.UnpinPage(rid.PageID, false)
	return ok, nil
}

// UpdateRow overwrites the row at `rid` in place. Returns false if the slot
// holds no row.
func (th *TableHeap) UpdateRow(rid common.RecordID, row storage.RawTuple) (bool, error) {
	common.Assert(len(row) == th.desc.BytesPerTuple(), "row size mismatch")

	page, err := th.pool.FetchPage(rid.PageID)
	if err != nil {
		return false, err
	}
	page.WLatch()
	hp := page.AsHeapPage()

	ok := hp.IsAllocated(int(rid.Slot))
	if ok {
		copy(hp.AccessRow(int(rid.Slot)), row)
	}
	page.WUnlatch()
	th.pool.UnpinPage(rid.PageID, ok)
	return ok, nil
}

// DeleteRow frees the slot at `rid`. Returns false if the slot holds no row.
func (th *TableHeap) DeleteRow(rid common.RecordID) (bool, error) {
	page, err := th.pool.FetchPage(rid.PageID)
	if err != nil {
		return false, err
	}
	page.WLatch()
	hp := page.AsHeapPage()

	ok := hp.IsAllocated(int(rid.Slot))
	if ok {
		hp.MarkAllocated(int(rid.Slot), false)
	}
	page.WUnlatch()
	th.pool.UnpinPage(rid.PageID, ok)
	return ok, nil
}

// TableHeapIterator walks every live row of a heap in chain order. Each
// Next pins the current page just long enough to copy the row out, so the
// iterator never holds a pin between calls.
type TableHeapIterator struct {
	heap    *TableHeap
	pageID  common.PageID
	slot    int
	rowBuf  storage.RawTuple
	currRID common.RecordID
	err     error
}

// Iterator returns a fresh iterator positioned before the first row. The
// caller-provided buffer receives each row and must be BytesPerTuple long.
func (th *TableHeap) Iterator(rowBuf storage.RawTuple) *TableHeapIterator {
	common.Assert(len(rowBuf) == th.desc.BytesPerTuple(), "row buffer size mismatch")
	return &TableHeapIterator{
		heap:   th,
		pageID: th.firstPageID,
		rowBuf: rowBuf,
	}
}

// Next advances to the next live row, copying it into the iterator's buffer.
func (it *TableHeapIterator) Next() bool {
	for it.pageID.IsValid() {
		page, err := it.heap.pool.FetchPage(it.pageID)
		if err != nil {
			it.err = err
			return false
		}
		page.RLatch()
		hp := page.AsHeapPage()

		for ; it.slot < hp.NumSlots(); it.slot++ {
			if !hp.IsAllocated(it.slot) {
				continue
			}
			copy(it.rowBuf, hp.AccessRow(it.slot))
			it.currRID = common.RecordID{PageID: it.pageID, Slot: int32(it.slot)}
			it.slot++
			page.RUnlatch()
			it.heap.pool.UnpinPage(it.currRID.PageID, false)
			return true
		}

		next := hp.NextPageID()
		page.RUnlatch()
		it.heap.pool.UnpinPage(it.pageID, false)
		it.pageID = next
		it.slot = 0
	}
	return false
}

// CurrentRow returns the buffer holding the row read by the last Next.
func (it *TableHeapIterator) CurrentRow() storage.RawTuple {
	return it.rowBuf
}

// CurrentRID returns the location of the row read by the last Next.
func (it *TableHeapIterator) CurrentRID() common.RecordID {
	return it.currRID
}

// Error returns the first error the iterator hit.
func (it *TableHeapIterator) Error() error {
	return it.err
}
