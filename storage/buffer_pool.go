package storage

import (
	"sync"

	"go.uber.org/zap"

	"github.com/Rachelint/bustub/common"
	"github.com/Rachelint/bustub/logging"
)

// BufferPool is the page-access contract shared by a single pool instance
// and a parallel pool group. All access to paged storage goes through it.
//
// Every successful NewPage/FetchPage must be matched by exactly one
// UnpinPage; the pin count is the eviction gate, and a leaked pin deadlocks
// the pool once it fills up.
type BufferPool interface {
	// NewPage allocates a fresh page id and returns its frame, pinned and
	// zeroed. Returns a PoolExhaustedError if every frame is pinned.
	NewPage() (*Page, error)
	// FetchPage returns the frame holding `pid`, pinned, reading it from
	// disk first if it is not resident. Returns a PoolExhaustedError if the
	// page is absent and every frame is pinned.
	FetchPage(pid common.PageID) (*Page, error)
	// UnpinPage drops one pin from `pid` and ORs `isDirty` into the frame's
	// dirty flag. Returns false if the page is not resident or its pin
	// count is already zero.
	UnpinPage(pid common.PageID, isDirty bool) bool
	// FlushPage writes `pid` back to disk if it is resident and dirty.
	// Flushing a clean resident page is a successful no-op. Returns false
	// if the page is not resident.
	FlushPage(pid common.PageID) bool
	// FlushAll flushes every resident page.
	FlushAll()
	// DeletePage drops `pid` from the pool and deallocates it on disk.
	// Returns false only when the page is resident and still pinned.
	DeletePage(pid common.PageID) bool
}

// BufferPoolManager caches disk pages in a fixed array of frames. It owns
// the page table (page id -> frame), the free list of unused frames, and
// an LRU replacer of unpinned candidates; raw I/O is delegated to the
// DiskManager.
//
// One instance-wide mutex protects the page table, free list, replacer
// membership, and per-frame metadata, and is held for the duration of each
// operation, disk I/O included. That is deliberate: the coarse latch keeps
// the teaching-scale invariants (frame accounting, write-before-reuse)
// trivially checkable. A production pool would drop the latch around I/O
// with an in-flight set.
//
// An instance can also be one shard of a pool group (see
// ParallelBufferPoolManager); page-id allocation is striped so that
// pid mod numInstances == instanceIndex.
type BufferPoolManager struct {
	mu sync.Mutex

	poolSize int
	frames   []Page
	// pageTable maps resident page ids to frames. A frame is either in the
	// free list, in the page table, or held by the replacer, never two of
	// these, except that a pinned resident frame is in the page table but
	// absent from the replacer.
	pageTable map[common.PageID]common.FrameID
	freeList  []common.FrameID
	replacer  *LRUReplacer
	disk      DiskManager

	nextPageID    common.PageID
	numInstances  uint32
	instanceIndex uint32
}

// NewBufferPoolManager creates a standalone pool (a group of one).
func NewBufferPoolManager(poolSize int, disk DiskManager) *BufferPoolManager {
	return NewBufferPoolManagerShard(poolSize, 1, 0, disk)
}

// NewBufferPoolManagerShard creates one shard of a pool group. The shard
// allocates only page ids congruent to instanceIndex mod numInstances.
func NewBufferPoolManagerShard(poolSize int, numInstances, instanceIndex uint32, disk DiskManager) *BufferPoolManager {
	common.Assert(poolSize > 0, "pool must have at least one frame")
	common.Assert(numInstances > 0, "a pool group has at least one instance")
	common.Assert(instanceIndex < numInstances, "instance index out of range")

	bpm := &BufferPoolManager{
		poolSize:      poolSize,
		frames:        make([]Page, poolSize),
		pageTable:     make(map[common.PageID]common.FrameID, poolSize),
		freeList:      make([]common.FrameID, 0, poolSize),
		replacer:      NewLRUReplacer(poolSize),
		disk:          disk,
		nextPageID:    common.PageID(instanceIndex),
		numInstances:  numInstances,
		instanceIndex: instanceIndex,
	}
	for i := range bpm.frames {
		bpm.frames[i].pageID = common.InvalidPageID
		bpm.freeList = append(bpm.freeList, common.FrameID(i))
	}
	return bpm
}

// DiskManager returns the underlying disk manager.
func (bpm *BufferPoolManager) DiskManager() DiskManager {
	return bpm.disk
}

// PoolSize returns the number of frames.
func (bpm *BufferPoolManager) PoolSize() int {
	return bpm.poolSize
}

// allocatePage issues the next page id owned by this shard. Caller holds mu.
func (bpm *BufferPoolManager) allocatePage() common.PageID {
	pid := bpm.nextPageID
	bpm.nextPageID += common.PageID(bpm.numInstances)
	common.Assert(uint32(pid)%bpm.numInstances == bpm.instanceIndex,
		"allocated %s does not belong to shard %d/%d", pid, bpm.instanceIndex, bpm.numInstances)
	return pid
}

// findUsableFrame produces a frame ready to hold a new page: the free list
// first, then an LRU victim. A dirty victim is written back and its old
// mapping removed before the frame is handed out. Returns false when every
// frame is pinned. Caller holds mu.
func (bpm *BufferPoolManager) findUsableFrame() (common.FrameID, bool) {
	if len(bpm.freeList) > 0 {
		frameID := bpm.freeList[0]
		bpm.freeList = bpm.freeList[1:]
		return frameID, true
	}

	frameID, ok := bpm.replacer.Victim()
	if !ok {
		return 0, false
	}
	frame := &bpm.frames[frameID]
	if frame.isDirty {
		bpm.mustWrite(frame.pageID, frame.Bytes[:])
		frame.isDirty = false
	}
	delete(bpm.pageTable, frame.pageID)
	return frameID, true
}

// NewPage allocates a fresh page id and returns its frame pinned, zeroed,
// and clean.
func (bpm *BufferPoolManager) NewPage() (*Page, error) {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	frameID, ok := bpm.findUsableFrame()
	if !ok {
		return nil, common.NewDBError(common.PoolExhaustedError,
			"all %d frames pinned, cannot allocate a new page", bpm.poolSize)
	}

	frame := &bpm.frames[frameID]
	frame.reset()
	frame.pageID = bpm.allocatePage()
	frame.pinCount = 1
	bpm.pageTable[frame.pageID] = frameID
	return frame, nil
}

// FetchPage returns the frame holding `pid`, pinned. A hit serves the cached
// bytes without touching disk and without clearing dirtiness; a miss reads
// the page into a usable frame.
func (bpm *BufferPoolManager) FetchPage(pid common.PageID) (*Page, error) {
	common.Assert(pid.IsValid(), "fetching invalid page id")
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	if frameID, ok := bpm.pageTable[pid]; ok {
		frame := &bpm.frames[frameID]
		frame.pinCount++
		bpm.replacer.Pin(frameID)
		return frame, nil
	}

	frameID, ok := bpm.findUsableFrame()
	if !ok {
		return nil, common.NewDBError(common.PoolExhaustedError,
			"all %d frames pinned, cannot fetch %s", bpm.poolSize, pid)
	}

	frame := &bpm.frames[frameID]
	frame.reset()
	frame.pageID = pid
	if err := bpm.disk.ReadPage(pid, frame.Bytes[:]); err != nil {
		// I/O failures are fatal; recovery is out of scope.
		panic(err)
	}
	frame.pinCount = 1
	bpm.pageTable[pid] = frameID
	return frame, nil
}

// UnpinPage drops one pin from `pid`. A frame whose pin count reaches zero
// becomes an eviction candidate. The dirty flag only ever ORs in: it is
// cleared by write-back, not by callers.
func (bpm *BufferPoolManager) UnpinPage(pid common.PageID, isDirty bool) bool {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	frameID, ok := bpm.pageTable[pid]
	if !ok {
		return false
	}
	frame := &bpm.frames[frameID]
	if frame.pinCount <= 0 {
		return false
	}
	frame.isDirty = frame.isDirty || isDirty
	frame.pinCount--
	if frame.pinCount == 0 {
		bpm.replacer.Unpin(frameID)
	}
	return true
}

// FlushPage writes `pid` to disk if it is resident and dirty.
func (bpm *BufferPoolManager) FlushPage(pid common.PageID) bool {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()
	return bpm.flushLocked(pid)
}

// FlushAll flushes every resident page.
func (bpm *BufferPoolManager) FlushAll() {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	for pid := range bpm.pageTable {
		bpm.flushLocked(pid)
	}
}

func (bpm *BufferPoolManager) flushLocked(pid common.PageID) bool {
	frameID, ok := bpm.pageTable[pid]
	if !ok {
		return false
	}
	frame := &bpm.frames[frameID]
	if frame.isDirty {
		bpm.mustWrite(pid, frame.Bytes[:])
		frame.isDirty = false
	}
	return true
}

// DeletePage removes `pid` from the pool, returns its frame to the free
// list, and deallocates the id on disk. Deleting a page that is not resident
// succeeds trivially; deleting a pinned page fails.
func (bpm *BufferPoolManager) DeletePage(pid common.PageID) bool {
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	frameID, ok := bpm.pageTable[pid]
	if !ok {
		return true
	}
	frame := &bpm.frames[frameID]
	if frame.pinCount > 0 {
		logging.L().Error("delete of pinned page refused",
			zap.Int32("page", int32(pid)), zap.Int("pinCount", frame.pinCount))
		return false
	}

	delete(bpm.pageTable, pid)
	bpm.replacer.Pin(frameID)
	bpm.disk.DeallocatePage(pid)
	frame.reset()
	bpm.freeList = append(bpm.freeList, frameID)
	return true
}

func (bpm *BufferPoolManager) mustWrite(pid common.PageID, data []byte) {
	if err := bpm.disk.WritePage(pid, data); err != nil {
		// I/O failures are fatal; recovery is out of scope.
		panic(err)
	}
}
