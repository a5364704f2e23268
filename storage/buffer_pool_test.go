package storage

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rachelint/bustub/common"
)

func setupBufferPool(t *testing.T, poolSize int) (*BufferPoolManager, *FileDiskManager) {
	t.Helper()
	dm, err := NewFileDiskManager(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = dm.Close() })
	return NewBufferPoolManager(poolSize, dm), dm
}

// checkAccounting verifies the frame conservation invariant: at rest, every
// frame is pinned, evictable, or free, and nothing is counted twice.
func checkAccounting(t *testing.T, bpm *BufferPoolManager) {
	t.Helper()
	bpm.mu.Lock()
	defer bpm.mu.Unlock()

	pinned := 0
	for i := range bpm.frames {
		if bpm.frames[i].pinCount > 0 {
			pinned++
		}
	}
	assert.Equal(t, bpm.poolSize, pinned+bpm.replacer.Size()+len(bpm.freeList),
		"pinned + evictable + free must cover every frame exactly once")

	for _, fid := range bpm.freeList {
		assert.False(t, bpm.frames[fid].pageID.IsValid(),
			"frame %d is in the free list but holds a page", fid)
	}
	for pid, fid := range bpm.pageTable {
		assert.Equal(t, pid, bpm.frames[fid].pageID, "page table entry disagrees with frame metadata")
	}
}

// TestBufferPool_EvictionScenario walks the canonical pin/evict sequence:
// fill the pool, observe exhaustion, free frames, verify the evicted page's
// bytes were written back, and fetch them back in.
func TestBufferPool_EvictionScenario(t *testing.T) {
	bpm, dm := setupBufferPool(t, 10)

	page0, err := bpm.NewPage()
	require.NoError(t, err)
	assert.Equal(t, common.PageID(0), page0.ID())
	copy(page0.Data(), "Hello")

	for i := 1; i < 10; i++ {
		p, err := bpm.NewPage()
		require.NoError(t, err)
		assert.Equal(t, common.PageID(i), p.ID())
	}

	// Free list and replacer are both empty and every frame is pinned.
	_, err = bpm.NewPage()
	require.Error(t, err)
	assert.Equal(t, common.PoolExhaustedError, err.(common.DBError).Code)

	require.True(t, bpm.UnpinPage(0, true))
	for i := 1; i <= 4; i++ {
		require.True(t, bpm.UnpinPage(common.PageID(i), false))
	}
	checkAccounting(t, bpm)

	for i := 0; i < 5; i++ {
		_, err := bpm.NewPage()
		require.NoError(t, err)
	}

	// Page 0 was the least recently unpinned, so it went first, and its
	// dirty bytes must have hit the disk on the way out.
	_, err = bpm.FetchPage(0)
	require.Error(t, err, "pool is full of pinned pages again")

	diskBytes := make([]byte, common.PageSize)
	require.NoError(t, dm.ReadPage(0, diskBytes))
	assert.True(t, bytes.HasPrefix(diskBytes, []byte("Hello")), "eviction must write dirty bytes back")

	require.True(t, bpm.UnpinPage(5, false))
	page0Again, err := bpm.FetchPage(0)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(page0Again.Data(), []byte("Hello")))
	bpm.UnpinPage(0, false)
	checkAccounting(t, bpm)
}

func TestBufferPool_FetchHitDoesNotReread(t *testing.T) {
	bpm, _ := setupBufferPool(t, 4)

	p, err := bpm.NewPage()
	require.NoError(t, err)
	pid := p.ID()
	copy(p.Data(), "cached")
	require.True(t, bpm.UnpinPage(pid, true))

	f1, err := bpm.FetchPage(pid)
	require.NoError(t, err)
	f2, err := bpm.FetchPage(pid)
	require.NoError(t, err)
	assert.Same(t, f1, f2, "a hit must return the resident frame")
	assert.Equal(t, 2, f1.PinCount())
	assert.True(t, f1.IsDirty(), "a hit must not clear dirtiness")
	assert.True(t, bytes.HasPrefix(f1.Data(), []byte("cached")))

	require.True(t, bpm.UnpinPage(pid, false))
	require.True(t, bpm.UnpinPage(pid, false))
	assert.False(t, bpm.UnpinPage(pid, false), "pin count already zero")
}

func TestBufferPool_UnpinErrors(t *testing.T) {
	bpm, _ := setupBufferPool(t, 4)

	assert.False(t, bpm.UnpinPage(99, false), "unknown page is not resident")

	p, err := bpm.NewPage()
	require.NoError(t, err)
	require.True(t, bpm.UnpinPage(p.ID(), false))
	assert.False(t, bpm.UnpinPage(p.ID(), false), "double unpin must fail, not underflow")
	checkAccounting(t, bpm)
}

func TestBufferPool_FlushSemantics(t *testing.T) {
	bpm, dm := setupBufferPool(t, 4)

	p, err := bpm.NewPage()
	require.NoError(t, err)
	pid := p.ID()
	copy(p.Data(), "flushed")
	require.True(t, bpm.UnpinPage(pid, true))

	assert.False(t, bpm.FlushPage(99), "flushing a non-resident page fails")
	require.True(t, bpm.FlushPage(pid))
	assert.False(t, p.IsDirty(), "flush clears the dirty bit")

	diskBytes := make([]byte, common.PageSize)
	require.NoError(t, dm.ReadPage(pid, diskBytes))
	assert.True(t, bytes.HasPrefix(diskBytes, []byte("flushed")),
		"on-disk bytes equal the frame bytes at flush")

	// Flushing a clean resident page is a successful no-op.
	require.True(t, bpm.FlushPage(pid))
}

func TestBufferPool_FlushAll(t *testing.T) {
	bpm, dm := setupBufferPool(t, 8)

	pids := make([]common.PageID, 0, 5)
	for i := 0; i < 5; i++ {
		p, err := bpm.NewPage()
		require.NoError(t, err)
		copy(p.Data(), fmt.Sprintf("page-%d", i))
		pids = append(pids, p.ID())
		require.True(t, bpm.UnpinPage(p.ID(), true))
	}

	bpm.FlushAll()
	for i, pid := range pids {
		diskBytes := make([]byte, common.PageSize)
		require.NoError(t, dm.ReadPage(pid, diskBytes))
		assert.True(t, bytes.HasPrefix(diskBytes, []byte(fmt.Sprintf("page-%d", i))))
	}
}

func TestBufferPool_DeletePage(t *testing.T) {
	bpm, dm := setupBufferPool(t, 4)

	assert.True(t, bpm.DeletePage(123), "deleting a non-resident page succeeds trivially")

	p, err := bpm.NewPage()
	require.NoError(t, err)
	pid := p.ID()

	assert.False(t, bpm.DeletePage(pid), "a pinned page cannot be deleted")

	require.True(t, bpm.UnpinPage(pid, true))
	require.True(t, bpm.DeletePage(pid))
	assert.True(t, dm.IsDeallocated(pid))
	checkAccounting(t, bpm)

	// The freed frame is reusable immediately.
	p2, err := bpm.NewPage()
	require.NoError(t, err)
	assert.NotEqual(t, pid, p2.ID(), "page ids are never reissued")
}

func TestBufferPool_VictimPrefersFreeList(t *testing.T) {
	bpm, _ := setupBufferPool(t, 4)

	p, err := bpm.NewPage()
	require.NoError(t, err)
	require.True(t, bpm.UnpinPage(p.ID(), false))

	// Three frames are still free; the next page must come from the free
	// list, leaving the unpinned page resident.
	p2, err := bpm.NewPage()
	require.NoError(t, err)
	require.NotSame(t, p, p2)

	f, err := bpm.FetchPage(p.ID())
	require.NoError(t, err)
	assert.Same(t, p, f, "page survived because the free list was preferred")
	bpm.UnpinPage(p.ID(), false)
	bpm.UnpinPage(p2.ID(), false)
}

func TestBufferPool_ShardedAllocation(t *testing.T) {
	dm, err := NewFileDiskManager(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer dm.Close()

	const numShards = 4
	pool := NewParallelBufferPoolManager(numShards, 2, dm)
	assert.Equal(t, numShards, pool.NumInstances())

	byShard := make(map[uint32]int)
	var pids []common.PageID
	for i := 0; i < 8; i++ {
		p, err := pool.NewPage()
		require.NoError(t, err)
		byShard[uint32(p.ID())%numShards]++
		pids = append(pids, p.ID())
		require.True(t, pool.UnpinPage(p.ID(), true))
	}
	// Round-robin spreads allocations evenly.
	for shard := uint32(0); shard < numShards; shard++ {
		assert.Equal(t, 2, byShard[shard], "shard %d allocation count", shard)
	}

	// Every page routes back to the shard that allocated it.
	for _, pid := range pids {
		f, err := pool.FetchPage(pid)
		require.NoError(t, err)
		assert.Equal(t, pid, f.ID())
		require.True(t, pool.UnpinPage(pid, false))
	}
	pool.FlushAll()
}

func TestBufferPool_ConcurrentFetchUnpin(t *testing.T) {
	bpm, _ := setupBufferPool(t, 16)

	var pids []common.PageID
	for i := 0; i < 8; i++ {
		p, err := bpm.NewPage()
		require.NoError(t, err)
		copy(p.Data(), fmt.Sprintf("page-%d", i))
		pids = append(pids, p.ID())
		require.True(t, bpm.UnpinPage(p.ID(), true))
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(seed int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				pid := pids[(seed+i)%len(pids)]
				f, err := bpm.FetchPage(pid)
				if err != nil {
					continue
				}
				assert.Equal(t, pid, f.ID())
				bpm.UnpinPage(pid, false)
			}
		}(g)
	}
	wg.Wait()
	checkAccounting(t, bpm)
}
