package storage

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rachelint/bustub/common"
)

func TestLRUReplacer_VictimOrder(t *testing.T) {
	r := NewLRUReplacer(8)

	r.Unpin(1)
	r.Unpin(2)
	r.Unpin(3)
	require.Equal(t, 3, r.Size())

	r.Pin(2)
	require.Equal(t, 2, r.Size())

	v, ok := r.Victim()
	require.True(t, ok)
	assert.Equal(t, common.FrameID(1), v, "oldest unpinned frame should be evicted first")

	v, ok = r.Victim()
	require.True(t, ok)
	assert.Equal(t, common.FrameID(3), v)

	_, ok = r.Victim()
	assert.False(t, ok, "replacer should be empty")

	r.Unpin(2)
	v, ok = r.Victim()
	require.True(t, ok)
	assert.Equal(t, common.FrameID(2), v)
}

func TestLRUReplacer_DoubleUnpinIsIdempotent(t *testing.T) {
	r := NewLRUReplacer(8)

	r.Unpin(5)
	r.Unpin(6)
	// A second unpin must not refresh frame 5's position.
	r.Unpin(5)
	require.Equal(t, 2, r.Size())

	v, _ := r.Victim()
	assert.Equal(t, common.FrameID(5), v, "5 is still the oldest despite the double unpin")
}

func TestLRUReplacer_PinAbsentIsNoop(t *testing.T) {
	r := NewLRUReplacer(8)

	r.Pin(42)
	assert.Equal(t, 0, r.Size())

	r.Unpin(1)
	r.Pin(1)
	r.Pin(1)
	assert.Equal(t, 0, r.Size())
	_, ok := r.Victim()
	assert.False(t, ok)
}

func TestLRUReplacer_PinBackShiftsVictim(t *testing.T) {
	r := NewLRUReplacer(8)
	for i := 0; i < 5; i++ {
		r.Unpin(common.FrameID(i))
	}

	// Frame 0 is at the back (oldest). Pinning it shifts the victim to 1.
	r.Pin(0)
	v, ok := r.Victim()
	require.True(t, ok)
	assert.Equal(t, common.FrameID(1), v)
}

func TestLRUReplacer_Concurrent(t *testing.T) {
	r := NewLRUReplacer(64)
	var wg sync.WaitGroup

	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				f := common.FrameID(base*8 + i%8)
				r.Unpin(f)
				if i%3 == 0 {
					r.Pin(f)
				}
				if i%7 == 0 {
					r.Victim()
				}
			}
		}(g)
	}
	wg.Wait()

	// Drain: every remaining victim must be unique.
	seen := make(map[common.FrameID]bool)
	for {
		v, ok := r.Victim()
		if !ok {
			break
		}
		assert.False(t, seen[v], "victim %d returned twice", v)
		seen[v] = true
	}
	assert.Equal(t, 0, r.Size())
}
