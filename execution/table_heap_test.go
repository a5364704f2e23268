package execution

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rachelint/bustub/common"
	"github.com/Rachelint/bustub/storage"
)

func setupHeap(t *testing.T, poolSize int) (*TableHeap, *storage.RawTupleDesc) {
	t.Helper()
	dm, err := storage.NewFileDiskManager(filepath.Join(t.TempDir(), "heap.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = dm.Close() })

	pool := storage.NewBufferPoolManager(poolSize, dm)
	desc := storage.NewRawTupleDesc([]common.Type{common.IntType, common.StringType})
	heap, err := NewTableHeap(pool, desc)
	require.NoError(t, err)
	return heap, desc
}

func heapRow(desc *storage.RawTupleDesc, id int64, name string) storage.RawTuple {
	return desc.Serialize([]common.Value{common.NewIntValue(id), common.NewStringValue(name)})
}

func TestTableHeap_InsertGet(t *testing.T) {
	heap, desc := setupHeap(t, 8)

	rid, err := heap.InsertRow(heapRow(desc, 1, "alpha"))
	require.NoError(t, err)
	require.True(t, rid.IsValid())

	buf := make(storage.RawTuple, desc.BytesPerTuple())
	ok, err := heap.GetRow(rid, buf)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), desc.GetValue(buf, 0).IntValue())
	assert.Equal(t, "alpha", desc.GetValue(buf, 1).StringValue())

	ok, err = heap.GetRow(common.RecordID{PageID: rid.PageID, Slot: rid.Slot + 1}, buf)
	require.NoError(t, err)
	assert.False(t, ok, "empty slot has no row")
}

func TestTableHeap_UpdateDelete(t *testing.T) {
	heap, desc := setupHeap(t, 8)

	rid, err := heap.InsertRow(heapRow(desc, 1, "before"))
	require.NoError(t, err)

	ok, err := heap.UpdateRow(rid, heapRow(desc, 1, "after"))
	require.NoError(t, err)
	require.True(t, ok)

	buf := make(storage.RawTuple, desc.BytesPerTuple())
	ok, _ = heap.GetRow(rid, buf)
	require.True(t, ok)
	assert.Equal(t, "after", desc.GetValue(buf, 1).StringValue())

	ok, err = heap.DeleteRow(rid)
	require.NoError(t, err)
	require.True(t, ok)

	ok, _ = heap.GetRow(rid, buf)
	assert.False(t, ok)
	ok, _ = heap.DeleteRow(rid)
	assert.False(t, ok, "slot already free")

	// The freed slot is reused by the next insert.
	rid2, err := heap.InsertRow(heapRow(desc, 2, "reuse"))
	require.NoError(t, err)
	assert.Equal(t, rid, rid2)
}

func TestTableHeap_GrowsAcrossPages(t *testing.T) {
	heap, desc := setupHeap(t, 8)

	// Enough rows to spill past the first page.
	frame := &storage.Page{}
	storage.InitializeHeapPage(desc, frame)
	perPage := frame.AsHeapPage().NumSlots()
	numRows := perPage*2 + 3

	rids := make(map[common.RecordID]int64, numRows)
	for i := 0; i < numRows; i++ {
		rid, err := heap.InsertRow(heapRow(desc, int64(i), "row"))
		require.NoError(t, err)
		_, dup := rids[rid]
		require.False(t, dup, "record id %s issued twice", rid)
		rids[rid] = int64(i)
	}

	seen := 0
	buf := make(storage.RawTuple, desc.BytesPerTuple())
	iter := heap.Iterator(buf)
	for iter.Next() {
		want, ok := rids[iter.CurrentRID()]
		require.True(t, ok)
		assert.Equal(t, want, desc.GetValue(buf, 0).IntValue())
		seen++
	}
	require.NoError(t, iter.Error())
	assert.Equal(t, numRows, seen)
}

func TestTableHeap_IteratorSkipsDeleted(t *testing.T) {
	heap, desc := setupHeap(t, 8)

	var rids []common.RecordID
	for i := 0; i < 10; i++ {
		rid, err := heap.InsertRow(heapRow(desc, int64(i), "row"))
		require.NoError(t, err)
		rids = append(rids, rid)
	}
	for i := 0; i < 10; i += 2 {
		ok, err := heap.DeleteRow(rids[i])
		require.NoError(t, err)
		require.True(t, ok)
	}

	var got []int64
	buf := make(storage.RawTuple, desc.BytesPerTuple())
	iter := heap.Iterator(buf)
	for iter.Next() {
		got = append(got, desc.GetValue(buf, 0).IntValue())
	}
	require.NoError(t, iter.Error())
	assert.Equal(t, []int64{1, 3, 5, 7, 9}, got)
}
