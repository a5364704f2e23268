package storage

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/Rachelint/bustub/common"
)

// DiskManager abstracts raw page-level I/O against the backing database file.
// Page ids index directly into the file: page p lives at byte offset
// p * PageSize. Implementations must be safe for concurrent use.
type DiskManager interface {
	// ReadPage reads the contents of the page identified by `pid` into the
	// provided byte slice, which must be exactly common.PageSize bytes.
	// Reading a page that has never been written yields zeros.
	ReadPage(pid common.PageID, frame []byte) error
	// WritePage writes the content of `frame` to the page identified by
	// `pid`, extending the file if needed. The slice must be exactly
	// common.PageSize bytes. Durable on return.
	WritePage(pid common.PageID, frame []byte) error
	// DeallocatePage records that the given page id is no longer in use.
	DeallocatePage(pid common.PageID)
	// Sync forces any buffered writes to stable storage.
	Sync() error
	// Close closes the underlying file handle and releases resources.
	Close() error
}

// FileDiskManager implements DiskManager over a single OS file.
type FileDiskManager struct {
	file *os.File
	// numPages caches the file size (in pages) to avoid stat() syscalls on
	// every read. Updated atomically after physical extension.
	numPages atomic.Int32
	// allocMu serializes file extension (Truncate) during writes past EOF.
	allocMu sync.Mutex

	// deallocMu guards the set of deallocated page ids. The ledger is
	// bookkeeping only: ids are never reissued, the buffer pool's striped
	// counter owns allocation.
	deallocMu   sync.Mutex
	deallocated map[common.PageID]struct{}
}

// NewFileDiskManager opens (or creates) the database file at `path`.
func NewFileDiskManager(path string) (*FileDiskManager, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return nil, err
	}
	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	// Note: we assume the file size is always a multiple of PageSize.
	dm := &FileDiskManager{
		file:        f,
		deallocated: make(map[common.PageID]struct{}),
	}
	dm.numPages.Store(int32(stat.Size() / int64(common.PageSize)))
	return dm, nil
}

// ReadPage reads page `pid` into `frame`. A page beyond the current end of
// file has never been flushed; its logical content is all zeros, so the
// buffer is zero-filled instead of returning an error. This is what lets a
// clean, never-written page round-trip through eviction.
func (dm *FileDiskManager) ReadPage(pid common.PageID, frame []byte) error {
	common.Assert(len(frame) == common.PageSize, "buffer size must match PageSize")
	common.Assert(pid.IsValid(), "reading invalid page id")

	if int32(pid) >= dm.numPages.Load() {
		for i := range frame {
			frame[i] = 0
		}
		return nil
	}

	offset := int64(pid) * int64(common.PageSize)
	if _, err := dm.file.ReadAt(frame, offset); err != nil {
		return fmt.Errorf("read of %s failed: %w", pid, err)
	}
	return nil
}

// WritePage writes `frame` to page `pid`, extending the file first if the
// page lies past the current end, and syncs the file before returning.
func (dm *FileDiskManager) WritePage(pid common.PageID, frame []byte) error {
	common.Assert(len(frame) == common.PageSize, "buffer size must match PageSize")
	common.Assert(pid.IsValid(), "writing invalid page id")

	if int32(pid) >= dm.numPages.Load() {
		if err := dm.extendTo(int32(pid) + 1); err != nil {
			return err
		}
	}

	offset := int64(pid) * int64(common.PageSize)
	if _, err := dm.file.WriteAt(frame, offset); err != nil {
		return fmt.Errorf("write of %s failed: %w", pid, err)
	}
	if err := dm.file.Sync(); err != nil {
		return fmt.Errorf("sync after write of %s failed: %w", pid, err)
	}
	return nil
}

func (dm *FileDiskManager) extendTo(numPages int32) error {
	dm.allocMu.Lock()
	defer dm.allocMu.Unlock()

	current := dm.numPages.Load()
	if numPages <= current {
		return nil
	}
	// Physically extend the file. The OS changes the file size immediately,
	// although it may not be backed by physical blocks yet; reads from the
	// new area return zeros.
	if err := dm.file.Truncate(int64(numPages) * int64(common.PageSize)); err != nil {
		return fmt.Errorf("failed to extend file to %d pages: %w", numPages, err)
	}
	dm.numPages.Store(numPages)
	return nil
}

// DeallocatePage records `pid` as free. The id is not reused; the ledger
// exists so tooling and tests can observe which pages are dead.
func (dm *FileDiskManager) DeallocatePage(pid common.PageID) {
	dm.deallocMu.Lock()
	defer dm.deallocMu.Unlock()
	dm.deallocated[pid] = struct{}{}
}

// IsDeallocated reports whether `pid` has been deallocated.
func (dm *FileDiskManager) IsDeallocated(pid common.PageID) bool {
	dm.deallocMu.Lock()
	defer dm.deallocMu.Unlock()
	_, ok := dm.deallocated[pid]
	return ok
}

// NumPages returns the number of pages currently backed by the file.
func (dm *FileDiskManager) NumPages() int {
	return int(dm.numPages.Load())
}

// Sync flushes writes to stable storage.
func (dm *FileDiskManager) Sync() error {
	return dm.file.Sync()
}

// Close closes the underlying OS file.
func (dm *FileDiskManager) Close() error {
	return dm.file.Close()
}
