// Package vm implements the two-level x86-style page tables novakern
// gives each process: a 1024-entry page directory of 1024-entry page
// tables, each entry a physical page address plus permission bits.
// Simplified from the teacher's 4-level x86_64 recursive-mapped,
// copy-on-write design (biscuit/src/vm/as.go, biscuit/src/mem/dmap.go)
// down to the spec's 32-bit, 2-level, full-copy-on-fork model: novakern
// has no demand paging and no COW (spec.md Non-goals), so fork simply
// walks and duplicates every present mapping.
package vm

import (
	"novakern/internal/defs"
	"novakern/internal/mem"
	"novakern/internal/util"
)

// Page table entry permission bits, named after the x86 PTE flags the
// teacher's mem package defines.
const (
	PTE_P = 1 << 0 // present
	PTE_W = 1 << 1 // writable
	PTE_U = 1 << 2 // user-accessible
)

const entriesPerTable = 1024
const pteSize = 4

func pdx(va uint32) int { return int(va>>22) & (entriesPerTable - 1) }
func ptx(va uint32) int { return int(va>>12) & (entriesPerTable - 1) }
func pageOff(va uint32) uint32 { return va & (defs.PageSize - 1) }

// As is one process's address space: a page directory physical page
// and the pager it was allocated from.
type As struct {
	pager *mem.Pager
	pdir  mem.Pa_t
}

// NewAs allocates a fresh, empty address space.
func NewAs(pager *mem.Pager) (*As, defs.Err_t) {
	pdir, err := pager.Alloc()
	if err != 0 {
		return nil, err
	}
	return &As{pager: pager, pdir: pdir}, 0
}

// Map installs a mapping from va's containing page to pa, allocating a
// page table page if the directory entry is not yet present.
func (a *As) Map(va uint32, pa mem.Pa_t, perm uint32) defs.Err_t {
	pd := a.pager.Bytes(a.pdir)
	pdeOff := pdx(va) * pteSize
	pde := util.Readn32(pd, pdeOff)

	var ptPage mem.Pa_t
	if pde&PTE_P == 0 {
		newPt, err := a.pager.Alloc()
		if err != 0 {
			return err
		}
		ptPage = newPt
		util.Writen32(pd, pdeOff, uint32(ptPage)|PTE_P|PTE_W|PTE_U)
	} else {
		ptPage = mem.Pa_t(pde &^ (defs.PageSize - 1))
	}

	pt := a.pager.Bytes(ptPage)
	util.Writen32(pt, ptx(va)*pteSize, uint32(pa)|perm|PTE_P)
	return 0
}

// Unmap clears va's containing page's mapping, if present.
func (a *As) Unmap(va uint32) defs.Err_t {
	pd := a.pager.Bytes(a.pdir)
	pde := util.Readn32(pd, pdx(va)*pteSize)
	if pde&PTE_P == 0 {
		return -defs.EINVAL
	}
	ptPage := mem.Pa_t(pde &^ (defs.PageSize - 1))
	pt := a.pager.Bytes(ptPage)
	util.Writen32(pt, ptx(va)*pteSize, 0)
	return 0
}

// Lookup translates va to its backing physical address and
// permission bits. ok is false if no mapping covers va.
func (a *As) Lookup(va uint32) (pa mem.Pa_t, perm uint32, ok bool) {
	pd := a.pager.Bytes(a.pdir)
	pde := util.Readn32(pd, pdx(va)*pteSize)
	if pde&PTE_P == 0 {
		return 0, 0, false
	}
	ptPage := mem.Pa_t(pde &^ (defs.PageSize - 1))
	pt := a.pager.Bytes(ptPage)
	pte := util.Readn32(pt, ptx(va)*pteSize)
	if pte&PTE_P == 0 {
		return 0, 0, false
	}
	base := mem.Pa_t(pte &^ (defs.PageSize - 1))
	return base + mem.Pa_t(pageOff(va)), uint32(pte) & (PTE_W | PTE_U | PTE_P), true
}

// Write copies data into the user range starting at va, failing with
// EFAULT if any covered page is unmapped or not writable.
func (a *As) Write(va uint32, data []byte) defs.Err_t {
	written := 0
	for written < len(data) {
		cur := va + uint32(written)
		pa, perm, ok := a.Lookup(cur)
		if !ok || perm&PTE_U == 0 || perm&PTE_W == 0 {
			return -defs.EFAULT
		}
		pageBase := mem.Pa_t(uint32(pa) &^ (defs.PageSize - 1))
		pageBytes := a.pager.Bytes(pageBase)
		off := int(pa - pageBase)
		take := defs.PageSize - off
		if rem := len(data) - written; rem < take {
			take = rem
		}
		copy(pageBytes[off:off+take], data[written:written+take])
		written += take
	}
	return 0
}

// Translate resolves a contiguous [va, va+n) user range into the
// backing bytes, failing with EFAULT if any page in the range is
// unmapped or lacks the requested permission.
func (a *As) Translate(va uint32, n int, needWrite bool) ([]byte, defs.Err_t) {
	out := make([]byte, 0, n)
	for len(out) < n {
		pa, perm, ok := a.Lookup(va)
		if !ok || perm&PTE_U == 0 || (needWrite && perm&PTE_W == 0) {
			return nil, -defs.EFAULT
		}
		pageBase := mem.Pa_t(uint32(pa) &^ (defs.PageSize - 1))
		pageBytes := a.pager.Bytes(pageBase)
		off := int(pa - pageBase)
		avail := defs.PageSize - off
		take := avail
		if n-len(out) < take {
			take = n - len(out)
		}
		out = append(out, pageBytes[off:off+take]...)
		va += uint32(take)
	}
	return out, 0
}

// Fork duplicates every present mapping into a brand-new address space
// with freshly allocated backing pages, a full copy rather than the
// teacher's copy-on-write scheme (spec.md has no demand paging).
func (a *As) Fork() (*As, defs.Err_t) {
	child, err := NewAs(a.pager)
	if err != 0 {
		return nil, err
	}
	pd := a.pager.Bytes(a.pdir)
	for pdeIdx := 0; pdeIdx < entriesPerTable; pdeIdx++ {
		pde := util.Readn32(pd, pdeIdx*pteSize)
		if pde&PTE_P == 0 {
			continue
		}
		ptPage := mem.Pa_t(pde &^ (defs.PageSize - 1))
		pt := a.pager.Bytes(ptPage)
		for pteIdx := 0; pteIdx < entriesPerTable; pteIdx++ {
			pte := util.Readn32(pt, pteIdx*pteSize)
			if pte&PTE_P == 0 {
				continue
			}
			srcPage := mem.Pa_t(pte &^ (defs.PageSize - 1))
			perm := pte & (PTE_W | PTE_U | PTE_P)

			dstPage, aerr := a.pager.Alloc()
			if aerr != 0 {
				return nil, aerr
			}
			copy(a.pager.Bytes(dstPage), a.pager.Bytes(srcPage))

			va := uint32(pdeIdx)<<22 | uint32(pteIdx)<<12
			if merr := child.Map(va, dstPage, perm); merr != 0 {
				return nil, merr
			}
		}
	}
	return child, 0
}

// Pdir returns the physical page backing the address space's page
// directory, the value a real CPU would load into CR3.
func (a *As) Pdir() mem.Pa_t { return a.pdir }

// Destroy returns every page this address space owns to the pager: each
// mapped data page, each page table page, and finally the directory
// page itself. Matches the teacher's kill_process contract of unmapping
// and freeing every page and the page directory on process exit.
func (a *As) Destroy() {
	pd := a.pager.Bytes(a.pdir)
	for pdeIdx := 0; pdeIdx < entriesPerTable; pdeIdx++ {
		pde := util.Readn32(pd, pdeIdx*pteSize)
		if pde&PTE_P == 0 {
			continue
		}
		ptPage := mem.Pa_t(pde &^ (defs.PageSize - 1))
		pt := a.pager.Bytes(ptPage)
		for pteIdx := 0; pteIdx < entriesPerTable; pteIdx++ {
			pte := util.Readn32(pt, pteIdx*pteSize)
			if pte&PTE_P == 0 {
				continue
			}
			dataPage := mem.Pa_t(pte &^ (defs.PageSize - 1))
			a.pager.Free(dataPage)
		}
		a.pager.Free(ptPage)
	}
	a.pager.Free(a.pdir)
}
