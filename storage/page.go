package storage

import (
	"sync"

	"github.com/Rachelint/bustub/common"
)

// Page is a frame: an in-memory slot capable of holding one disk page.
// Frames live for the lifetime of their buffer pool; the page resident in a
// frame changes as pages are fetched and evicted.
//
// The raw bytes are protected by PageLatch, which callers (e.g. the hash
// index) take around reads and writes of page content. The bookkeeping
// fields (id, pinCount, isDirty) belong to the buffer pool and are only
// written under the pool's mutex; the ID, PinCount and IsDirty accessors
// read them without taking it.
type Page struct {
	// Bytes holds the raw physical data of the page.
	Bytes [common.PageSize]byte
	// PageLatch protects the content of the page from concurrent access.
	PageLatch sync.RWMutex

	pageID   common.PageID
	pinCount int
	isDirty  bool
}

// ID returns the id of the page currently resident in this frame, or
// common.InvalidPageID for an empty frame.
func (p *Page) ID() common.PageID {
	return p.pageID
}

// PinCount returns the number of outstanding pins on this frame.
func (p *Page) PinCount() int {
	return p.pinCount
}

// IsDirty reports whether the frame holds modifications not yet on disk.
func (p *Page) IsDirty() bool {
	return p.isDirty
}

// Data returns the page bytes as a slice. The caller must hold PageLatch
// (shared for reads, exclusive for writes) and a pin.
func (p *Page) Data() []byte {
	return p.Bytes[:]
}

// RLatch acquires the page latch in shared mode.
func (p *Page) RLatch() { p.PageLatch.RLock() }

// RUnlatch releases the shared page latch.
func (p *Page) RUnlatch() { p.PageLatch.RUnlock() }

// WLatch acquires the page latch in exclusive mode.
func (p *Page) WLatch() { p.PageLatch.Lock() }

// WUnlatch releases the exclusive page latch.
func (p *Page) WUnlatch() { p.PageLatch.Unlock() }

// reset clears the frame for reuse: zeroed memory, no page, no pins.
// Caller holds the pool mutex.
func (p *Page) reset() {
	p.Bytes = [common.PageSize]byte{}
	p.pageID = common.InvalidPageID
	p.pinCount = 0
	p.isDirty = false
}
