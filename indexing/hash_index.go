package indexing

import (
	"sync"

	"go.uber.org/zap"

	"github.com/Rachelint/bustub/common"
	"github.com/Rachelint/bustub/logging"
	"github.com/Rachelint/bustub/storage"
)

// ExtendibleHashIndex is a persistent hash index. Its directory page and
// bucket pages are ordinary pages served through the buffer pool; every
// structural mutation happens by pinning the relevant pages, mutating them
// in place, and unpinning them dirty, so the index survives eviction at any
// point.
//
// Concurrency: a table-wide reader-writer latch admits point operations
// (GetValue, the fast insert path, Remove) in shared mode and structural
// operations (splitInsert, merge) in exclusive mode. Bucket contents are
// protected by the per-page latches independently of the table latch. Lock
// order is table latch, then page latch, then the buffer pool's internal
// mutex; never the reverse.
type ExtendibleHashIndex struct {
	pool            storage.BufferPool
	directoryPageID common.PageID
	schema          *KeySchema
	cmp             storage.KeyComparator
	hash            HashFunc

	tableLatch sync.RWMutex
}

// NewExtendibleHashIndex creates a fresh index: a directory page plus one
// bucket at depth zero, both persisted dirty.
func NewExtendibleHashIndex(pool storage.BufferPool, schema *KeySchema, hash HashFunc) (*ExtendibleHashIndex, error) {
	if hash == nil {
		hash = DefaultHash
	}
	h := &ExtendibleHashIndex{
		pool:   pool,
		schema: schema,
		cmp:    schema.Compare,
		hash:   hash,
	}

	dirPage, err := pool.NewPage()
	if err != nil {
		return nil, err
	}
	h.directoryPageID = dirPage.ID()

	bucketPage, err := pool.NewPage()
	if err != nil {
		pool.UnpinPage(h.directoryPageID, false)
		return nil, err
	}

	dir := storage.AsDirectoryPage(dirPage)
	dir.SetPageID(h.directoryPageID)
	dir.SetLSN(0)
	dir.SetLocalDepth(0, 0)
	dir.SetBucketPageID(0, bucketPage.ID())

	pool.UnpinPage(bucketPage.ID(), true)
	pool.UnpinPage(h.directoryPageID, true)
	return h, nil
}

// OpenExtendibleHashIndex attaches to an index whose directory already
// exists at `directoryPageID`.
func OpenExtendibleHashIndex(pool storage.BufferPool, directoryPageID common.PageID, schema *KeySchema, hash HashFunc) *ExtendibleHashIndex {
	if hash == nil {
		hash = DefaultHash
	}
	return &ExtendibleHashIndex{
		pool:            pool,
		directoryPageID: directoryPageID,
		schema:          schema,
		cmp:             schema.Compare,
		hash:            hash,
	}
}

// KeySchema returns the schema of this index's keys.
func (h *ExtendibleHashIndex) KeySchema() *KeySchema {
	return h.schema
}

// DirectoryPageID returns the page id of the directory page.
func (h *ExtendibleHashIndex) DirectoryPageID() common.PageID {
	return h.directoryPageID
}

// hashKey downcasts the configured 64-bit hash to the 32 bits the directory
// consumes.
func (h *ExtendibleHashIndex) hashKey(key []byte) uint32 {
	return uint32(h.hash(key))
}

func (h *ExtendibleHashIndex) dirIndex(key []byte, dir storage.HashTableDirectoryPage) uint32 {
	return h.hashKey(key) & dir.GlobalDepthMask()
}

func (h *ExtendibleHashIndex) bucketPageID(key []byte, dir storage.HashTableDirectoryPage) common.PageID {
	return dir.BucketPageID(h.dirIndex(key, dir))
}

func (h *ExtendibleHashIndex) fetchDirectory() (storage.HashTableDirectoryPage, bool) {
	page, err := h.pool.FetchPage(h.directoryPageID)
	if err != nil {
		logging.L().Error("fetch of hash directory page failed",
			zap.Int32("page", int32(h.directoryPageID)), zap.Error(err))
		return storage.HashTableDirectoryPage{}, false
	}
	return storage.AsDirectoryPage(page), true
}

// GetValue returns every value stored under `key`, in bucket slot order.
// A nil result means no matches (or an exhausted pool, which is logged).
func (h *ExtendibleHashIndex) GetValue(key []byte) []common.RecordID {
	h.tableLatch.RLock()
	defer h.tableLatch.RUnlock()

	dir, ok := h.fetchDirectory()
	if !ok {
		return nil
	}
	bucketPgID := h.bucketPageID(key, dir)
	bucketPage, err := h.pool.FetchPage(bucketPgID)
	if err != nil {
		logging.L().Error("fetch of hash bucket page failed",
			zap.Int32("page", int32(bucketPgID)), zap.Error(err))
		h.pool.UnpinPage(h.directoryPageID, false)
		return nil
	}

	bucketPage.RLatch()
	bucket := storage.AsBucketPage(bucketPage, h.schema.KeySize())
	result := bucket.GetValue(key, h.cmp, nil)
	bucketPage.RUnlatch()

	h.pool.UnpinPage(bucketPgID, false)
	h.pool.UnpinPage(h.directoryPageID, false)
	return result
}

// Insert adds the (key, value) pair. Returns false if the pair is already
// present, or if making room would require growing the directory past its
// maximum depth.
func (h *ExtendibleHashIndex) Insert(key []byte, value common.RecordID) bool {
	if inserted, done := h.tryFastInsert(key, value); done {
		return inserted
	}
	return h.splitInsert(key, value)
}

// tryFastInsert handles the common case under the shared table latch: the
// target bucket has room, so a bucket-local insert suffices. The second
// return is false when the bucket was full and the caller must escalate.
func (h *ExtendibleHashIndex) tryFastInsert(key []byte, value common.RecordID) (inserted, done bool) {
	h.tableLatch.RLock()
	defer h.tableLatch.RUnlock()

	dir, ok := h.fetchDirectory()
	if !ok {
		return false, true
	}
	bucketPgID := h.bucketPageID(key, dir)
	bucketPage, err := h.pool.FetchPage(bucketPgID)
	if err != nil {
		logging.L().Error("fetch of hash bucket page failed",
			zap.Int32("page", int32(bucketPgID)), zap.Error(err))
		h.pool.UnpinPage(h.directoryPageID, false)
		return false, true
	}

	bucketPage.WLatch()
	bucket := storage.AsBucketPage(bucketPage, h.schema.KeySize())
	if !bucket.IsFull() {
		inserted = bucket.Insert(key, value, h.cmp)
		bucketPage.WUnlatch()
		h.pool.UnpinPage(bucketPgID, inserted)
		h.pool.UnpinPage(h.directoryPageID, false)
		return inserted, true
	}
	bucketPage.WUnlatch()

	h.pool.UnpinPage(bucketPgID, false)
	h.pool.UnpinPage(h.directoryPageID, false)
	return false, false
}

// splitInsert retries the insert under the exclusive table latch, splitting
// the target bucket as many times as it takes. A single split may leave the
// key's bucket full (every migrated entry can land back on the key's side),
// so the loop cascades; it terminates because each split raises the bucket's
// local depth and splitOnce refuses once the directory hits MaxHashDepth.
func (h *ExtendibleHashIndex) splitInsert(key []byte, value common.RecordID) bool {
	h.tableLatch.Lock()
	defer h.tableLatch.Unlock()

	dir, ok := h.fetchDirectory()
	if !ok {
		return false
	}

	// The pair may have been inserted by a racing writer between latch
	// releases; re-check against the current target bucket.
	bucketPgID := h.bucketPageID(key, dir)
	bucketPage, err := h.pool.FetchPage(bucketPgID)
	if err != nil {
		logging.L().Error("fetch of hash bucket page failed",
			zap.Int32("page", int32(bucketPgID)), zap.Error(err))
		h.pool.UnpinPage(h.directoryPageID, false)
		return false
	}
	bucketPage.RLatch()
	bucket := storage.AsBucketPage(bucketPage, h.schema.KeySize())
	duplicate := bucket.HasPair(key, value, h.cmp)
	bucketPage.RUnlatch()
	h.pool.UnpinPage(bucketPgID, false)
	if duplicate {
		h.pool.UnpinPage(h.directoryPageID, false)
		return false
	}

	ret := true
	for {
		bucketPgID = h.bucketPageID(key, dir)
		bucketPage, err = h.pool.FetchPage(bucketPgID)
		if err != nil {
			logging.L().Error("fetch of hash bucket page failed",
				zap.Int32("page", int32(bucketPgID)), zap.Error(err))
			ret = false
			break
		}

		bucketPage.WLatch()
		bucket = storage.AsBucketPage(bucketPage, h.schema.KeySize())
		if !bucket.IsFull() {
			ret = bucket.Insert(key, value, h.cmp)
			common.Assert(ret, "insert into a bucket with room failed after duplicate check")
			bucketPage.WUnlatch()
			h.pool.UnpinPage(bucketPgID, ret)
			break
		}

		if !h.splitOnce(key, dir, bucket) {
			bucketPage.WUnlatch()
			h.pool.UnpinPage(bucketPgID, false)
			ret = false
			break
		}
		bucketPage.WUnlatch()
		h.pool.UnpinPage(bucketPgID, true)
	}

	h.pool.UnpinPage(h.directoryPageID, true)
	return ret
}

// splitOnce splits the bucket currently holding `key` into itself and a
// fresh bucket, growing the directory first when the bucket's local depth
// has caught up with the global depth. Returns false when the directory is
// already at maximum depth or no page could be allocated.
//
// Caller holds the exclusive table latch and the bucket's page latch.
func (h *ExtendibleHashIndex) splitOnce(key []byte, dir storage.HashTableDirectoryPage, bucket *storage.HashTableBucketPage) bool {
	if dir.IsFull() {
		return false
	}

	gd := dir.GlobalDepth()
	buckIdx := h.dirIndex(key, dir)
	buckPgID := dir.BucketPageID(buckIdx)
	ld := dir.LocalDepth(buckIdx)
	common.Assert(gd >= ld, "local depth %d above global depth %d", ld, gd)

	newPage, err := h.pool.NewPage()
	if err != nil {
		logging.L().Error("allocation of split bucket failed", zap.Error(err))
		return false
	}

	if gd == ld {
		dir.IncrGlobalDepth()
		gd++
	}

	// The directory slots that map to the old bucket are exactly those whose
	// low ld bits match the key's. After the split the discriminator is bit
	// ld (0-indexed: the new highest local bit); entries with that bit clear
	// stay, entries with it set move to the new bucket.
	leastLDBits := h.hashKey(key) & dir.LocalDepthMask(buckIdx)
	ld++
	remapAliases(dir, buckPgID, leastLDBits, gd, ld, false)
	remapAliases(dir, newPage.ID(), leastLDBits|1<<(ld-1), gd, ld, false)

	newBucket := storage.AsBucketPage(newPage, h.schema.KeySize())
	migrated := 0
	for i := 0; i < bucket.Capacity(); i++ {
		if !bucket.IsReadable(i) {
			continue
		}
		slotKey := bucket.KeyAt(i)
		if h.dirIndex(slotKey, dir)&(1<<(ld-1)) == 0 {
			continue
		}
		value := bucket.ValueAt(i)
		bucket.RemoveAt(i)
		newBucket.InsertAt(migrated, slotKey, value)
		migrated++
	}

	h.pool.UnpinPage(newPage.ID(), true)
	return true
}

// remapAliases rewrites every directory slot in the equivalence class of
// `base` (enumerating the free bits in positions [ld, gd)) to point at
// `pid`, bumping or dropping each slot's local depth by one.
func remapAliases(dir storage.HashTableDirectoryPage, pid common.PageID, base uint32, gd, ld uint32, decr bool) {
	queue := []uint32{base}
	for d := ld; d < gd; d++ {
		size := len(queue)
		for i := 0; i < size; i++ {
			idx := queue[0]
			queue = queue[1:]
			queue = append(queue, idx, idx|1<<d)
		}
	}
	for _, idx := range queue {
		dir.SetBucketPageID(idx, pid)
		if decr {
			dir.DecrLocalDepth(idx)
		} else {
			dir.IncrLocalDepth(idx)
		}
	}
}

// Remove deletes the (key, value) pair. Returns false if the pair is not
// present. A bucket left empty escalates to a merge pass.
func (h *ExtendibleHashIndex) Remove(key []byte, value common.RecordID) bool {
	empty := false
	{
		h.tableLatch.RLock()

		dir, ok := h.fetchDirectory()
		if !ok {
			h.tableLatch.RUnlock()
			return false
		}
		bucketPgID := h.bucketPageID(key, dir)
		bucketPage, err := h.pool.FetchPage(bucketPgID)
		if err != nil {
			logging.L().Error("fetch of hash bucket page failed",
				zap.Int32("page", int32(bucketPgID)), zap.Error(err))
			h.pool.UnpinPage(h.directoryPageID, false)
			h.tableLatch.RUnlock()
			return false
		}

		bucketPage.WLatch()
		bucket := storage.AsBucketPage(bucketPage, h.schema.KeySize())
		removed := bucket.Remove(key, value, h.cmp)
		if !removed {
			bucketPage.WUnlatch()
			h.pool.UnpinPage(bucketPgID, false)
			h.pool.UnpinPage(h.directoryPageID, false)
			h.tableLatch.RUnlock()
			return false
		}
		empty = bucket.IsEmpty()
		bucketPage.WUnlatch()

		h.pool.UnpinPage(bucketPgID, true)
		h.pool.UnpinPage(h.directoryPageID, false)
		h.tableLatch.RUnlock()
	}

	if empty {
		h.merge(key)
	}
	return true
}

// merge folds the key's (now empty) bucket into its image bucket, repeating
// while the fold exposes another empty bucket. Each round remaps both
// equivalence classes to the image's page, drops their local depth, shrinks
// the directory while every local depth sits strictly below the global
// depth, and deletes the orphaned bucket page.
//
// The empty bucket is always the one deleted and the image kept, so the
// deletion targets the id captured before the remap.
func (h *ExtendibleHashIndex) merge(key []byte) {
	h.tableLatch.Lock()
	defer h.tableLatch.Unlock()

	dir, ok := h.fetchDirectory()
	if !ok {
		return
	}

	for {
		buckIdx := h.dirIndex(key, dir)
		ld := dir.LocalDepth(buckIdx)
		if ld == 0 {
			// The sole bucket has nothing to merge with.
			break
		}
		highBit := dir.LocalHighBit(buckIdx)
		imgIdx := buckIdx ^ highBit
		pgID := dir.BucketPageID(buckIdx)
		imgPgID := dir.BucketPageID(imgIdx)
		imgLD := dir.LocalDepth(imgIdx)

		bucketPage, err := h.pool.FetchPage(pgID)
		if err != nil {
			logging.L().Error("fetch of hash bucket page failed",
				zap.Int32("page", int32(pgID)), zap.Error(err))
			break
		}
		bucketPage.RLatch()
		bucket := storage.AsBucketPage(bucketPage, h.schema.KeySize())
		stop := !bucket.IsEmpty() || ld != imgLD
		bucketPage.RUnlatch()
		h.pool.UnpinPage(pgID, false)
		if stop {
			break
		}

		protoIdx := buckIdx & dir.LocalDepthMask(buckIdx)
		imgProtoIdx := protoIdx ^ highBit
		remapAliases(dir, imgPgID, protoIdx, dir.GlobalDepth(), ld, true)
		remapAliases(dir, imgPgID, imgProtoIdx, dir.GlobalDepth(), ld, true)

		for dir.CanShrink() {
			dir.DecrGlobalDepth()
		}

		deleted := h.pool.DeletePage(pgID)
		common.Assert(deleted, "merged bucket %s still pinned on delete", pgID)
	}

	h.pool.UnpinPage(h.directoryPageID, true)
}

// GlobalDepth returns the directory's current global depth.
func (h *ExtendibleHashIndex) GlobalDepth() uint32 {
	h.tableLatch.RLock()
	defer h.tableLatch.RUnlock()

	dir, ok := h.fetchDirectory()
	if !ok {
		return 0
	}
	gd := dir.GlobalDepth()
	h.pool.UnpinPage(h.directoryPageID, false)
	return gd
}

// VerifyIntegrity asserts the directory's structural invariants.
func (h *ExtendibleHashIndex) VerifyIntegrity() {
	h.tableLatch.RLock()
	defer h.tableLatch.RUnlock()

	dir, ok := h.fetchDirectory()
	if !ok {
		return
	}
	dir.VerifyIntegrity()
	h.pool.UnpinPage(h.directoryPageID, false)
}
