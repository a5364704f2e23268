package storage

import (
	"container/list"
	"sync"

	"github.com/Rachelint/bustub/common"
)

// LRUReplacer tracks the frames that are eligible for eviction, ordered from
// most-recently unpinned (front) to least-recently unpinned (back). Victim
// selection pops the back.
//
// The replacer only tracks membership; pin counts live in the buffer pool.
// All methods take the replacer's single mutex, which is always acquired
// inside the buffer pool's mutex, never the other way around.
type LRUReplacer struct {
	mu sync.Mutex
	// order of last unpin; index gives O(1) removal by frame id.
	order *list.List
	index map[common.FrameID]*list.Element
}

// NewLRUReplacer creates an empty replacer for a pool of `numFrames` frames.
func NewLRUReplacer(numFrames int) *LRUReplacer {
	return &LRUReplacer{
		order: list.New(),
		index: make(map[common.FrameID]*list.Element, numFrames),
	}
}

// Victim removes and returns the least-recently-unpinned frame.
// The second return is false if no frame is evictable.
func (r *LRUReplacer) Victim() (common.FrameID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	back := r.order.Back()
	if back == nil {
		return 0, false
	}
	frameID := back.Value.(common.FrameID)
	r.order.Remove(back)
	delete(r.index, frameID)
	return frameID, true
}

// Pin removes `frameID` from the evictable set. Pinning a frame the replacer
// does not track is a no-op.
func (r *LRUReplacer) Pin(frameID common.FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if elem, ok := r.index[frameID]; ok {
		r.order.Remove(elem)
		delete(r.index, frameID)
	}
}

// Unpin inserts `frameID` at the most-recent end. Unpinning a frame that is
// already tracked does not refresh its position; double-unpin is idempotent.
func (r *LRUReplacer) Unpin(frameID common.FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.index[frameID]; ok {
		return
	}
	r.index[frameID] = r.order.PushFront(frameID)
}

// Size returns the number of evictable frames.
func (r *LRUReplacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.index)
}
