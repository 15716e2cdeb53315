package vm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"novakern/internal/defs"
	"novakern/internal/mem"
)

func newPager(t *testing.T, pages int) *mem.Pager {
	t.Helper()
	arena := make([]byte, pages*defs.PageSize)
	return mem.NewPager(0, arena)
}

func TestMapLookupRoundTrip(t *testing.T) {
	pager := newPager(t, 16)
	as, err := NewAs(pager)
	require.Equal(t, defs.Err_t(0), err)

	data, err := pager.Alloc()
	require.Equal(t, defs.Err_t(0), err)

	const va = uint32(defs.ProcessDataBase)
	require.Equal(t, defs.Err_t(0), as.Map(va, data, PTE_W|PTE_U))

	pa, perm, ok := as.Lookup(va + 42)
	require.True(t, ok)
	require.Equal(t, data+42, pa)
	require.NotZero(t, perm&PTE_W)
	require.NotZero(t, perm&PTE_U)
}

func TestUnmapRemovesMapping(t *testing.T) {
	pager := newPager(t, 16)
	as, _ := NewAs(pager)
	data, _ := pager.Alloc()

	const va = uint32(defs.ProcessDataBase)
	require.Equal(t, defs.Err_t(0), as.Map(va, data, PTE_W|PTE_U))
	require.Equal(t, defs.Err_t(0), as.Unmap(va))

	_, _, ok := as.Lookup(va)
	require.False(t, ok)
}

func TestForkCopiesDataNotMappings(t *testing.T) {
	pager := newPager(t, 16)
	parent, _ := NewAs(pager)
	data, _ := pager.Alloc()

	const va = uint32(defs.ProcessDataBase)
	require.Equal(t, defs.Err_t(0), parent.Map(va, data, PTE_W|PTE_U))

	require.Equal(t, defs.Err_t(0), parent.Write(va, []byte{1, 2, 3, 4}))

	child, err := parent.Fork()
	require.Equal(t, defs.Err_t(0), err)

	childPa, _, ok := child.Lookup(va)
	require.True(t, ok)
	require.NotEqual(t, data, mem.Pa_t(uint32(childPa)&^(defs.PageSize-1)),
		"fork must allocate a fresh backing page, not alias the parent's")

	childBytes, err := child.Translate(va, 4, false)
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, []byte{1, 2, 3, 4}, childBytes)

	// Writes after fork must not be visible to the other address space.
	require.Equal(t, defs.Err_t(0), parent.Write(va, []byte{99}))
	childBytes2, _ := child.Translate(va, 1, false)
	require.Equal(t, byte(1), childBytes2[0])
}

func TestTranslateFaultsOnUnmapped(t *testing.T) {
	pager := newPager(t, 16)
	as, _ := NewAs(pager)
	_, err := as.Translate(uint32(defs.ProcessDataBase), 4, false)
	require.Equal(t, -defs.EFAULT, err)
}
