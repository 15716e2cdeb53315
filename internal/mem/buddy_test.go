package mem

import (
	"testing"

	"github.com/stretchr/testify/require"

	"novakern/internal/defs"
)

func TestBuddyAllocFreeRoundTrip(t *testing.T) {
	arena := make([]byte, 64*1024)
	b := NewBuddy(0, arena)

	pa, err := b.Alloc(300)
	require.Equal(t, defs.Err_t(0), err)

	buf := b.Bytes(pa, 300)
	for i := range buf {
		buf[i] = byte(i)
	}

	require.Equal(t, defs.Err_t(0), b.Free(pa))

	pa2, err := b.Alloc(300)
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, pa, pa2, "freed block should be reused by the next same-size allocation")
}

func TestBuddySplitsAndMerges(t *testing.T) {
	arena := make([]byte, 4*1024)
	b := NewBuddy(0, arena)

	a1, err := b.Alloc(100)
	require.Equal(t, defs.Err_t(0), err)
	a2, err := b.Alloc(100)
	require.Equal(t, defs.Err_t(0), err)
	require.NotEqual(t, a1, a2)

	require.Equal(t, defs.Err_t(0), b.Free(a1))
	require.Equal(t, defs.Err_t(0), b.Free(a2))

	// The whole arena should be free and mergeable back into one block,
	// so a full-size allocation must now succeed.
	full, err := b.Alloc(len(arena) - MinBlockSize/2)
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, Pa_t(0), full)
}

func TestBuddyExhaustion(t *testing.T) {
	arena := make([]byte, 1024)
	b := NewBuddy(0, arena)

	_, err := b.Alloc(1024)
	require.Equal(t, defs.Err_t(0), err)

	_, err = b.Alloc(1)
	require.Equal(t, -defs.ENOMEM, err)
}

func TestPagerBumpThenRecycle(t *testing.T) {
	arena := make([]byte, 3*defs.PageSize)
	p := NewPager(0, arena)

	p1, err := p.Alloc()
	require.Equal(t, defs.Err_t(0), err)
	p2, err := p.Alloc()
	require.Equal(t, defs.Err_t(0), err)
	require.NotEqual(t, p1, p2)

	require.Equal(t, defs.Err_t(0), p.Free(p1))

	p3, err := p.Alloc()
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, p1, p3, "freed page should be recycled before bumping further")

	_, err = p.Alloc()
	require.Equal(t, defs.Err_t(0), err)
	_, err = p.Alloc()
	require.Equal(t, -defs.ENOMEM, err)
}
