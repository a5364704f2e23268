package storage

import (
	"sync"

	"github.com/Rachelint/bustub/common"
)

// ParallelBufferPoolManager is a pool group: numInstances independent
// BufferPoolManager shards behind the BufferPool interface. Every operation
// on page `pid` routes to shard pid mod numInstances, so operations on pages
// owned by different shards never contend on a mutex; pages owned by the
// same shard share that shard's mutex.
//
// Each shard allocates from its own striped id sequence, which is what keeps
// the routing stable: a page allocated by shard k always routes back to
// shard k.
type ParallelBufferPoolManager struct {
	instances []*BufferPoolManager

	// startMu guards the rotating hint for NewPage so allocation load
	// spreads across shards.
	startMu       sync.Mutex
	startInstance uint32
}

// NewParallelBufferPoolManager creates `numInstances` shards of `poolSize`
// frames each, all backed by the same disk manager.
func NewParallelBufferPoolManager(numInstances uint32, poolSize int, disk DiskManager) *ParallelBufferPoolManager {
	common.Assert(numInstances > 0, "a pool group has at least one instance")

	instances := make([]*BufferPoolManager, numInstances)
	for i := uint32(0); i < numInstances; i++ {
		instances[i] = NewBufferPoolManagerShard(poolSize, numInstances, i, disk)
	}
	return &ParallelBufferPoolManager{instances: instances}
}

// instanceFor routes a page id to the shard that owns it.
func (p *ParallelBufferPoolManager) instanceFor(pid common.PageID) *BufferPoolManager {
	return p.instances[uint32(pid)%uint32(len(p.instances))]
}

// NumInstances returns the number of shards in the group.
func (p *ParallelBufferPoolManager) NumInstances() int {
	return len(p.instances)
}

// NewPage tries each shard once, starting from a hint that rotates on every
// call. Returns a PoolExhaustedError only if every shard is full of pinned
// pages.
func (p *ParallelBufferPoolManager) NewPage() (*Page, error) {
	p.startMu.Lock()
	start := p.startInstance
	p.startInstance = (p.startInstance + 1) % uint32(len(p.instances))
	p.startMu.Unlock()

	var lastErr error
	for i := 0; i < len(p.instances); i++ {
		idx := (start + uint32(i)) % uint32(len(p.instances))
		page, err := p.instances[idx].NewPage()
		if err == nil {
			return page, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// FetchPage routes to the owning shard.
func (p *ParallelBufferPoolManager) FetchPage(pid common.PageID) (*Page, error) {
	return p.instanceFor(pid).FetchPage(pid)
}

// UnpinPage routes to the owning shard.
func (p *ParallelBufferPoolManager) UnpinPage(pid common.PageID, isDirty bool) bool {
	return p.instanceFor(pid).UnpinPage(pid, isDirty)
}

// FlushPage routes to the owning shard.
func (p *ParallelBufferPoolManager) FlushPage(pid common.PageID) bool {
	return p.instanceFor(pid).FlushPage(pid)
}

// FlushAll flushes every shard.
func (p *ParallelBufferPoolManager) FlushAll() {
	for _, inst := range p.instances {
		inst.FlushAll()
	}
}

// DeletePage routes to the owning shard.
func (p *ParallelBufferPoolManager) DeletePage(pid common.PageID) bool {
	return p.instanceFor(pid).DeletePage(pid)
}
