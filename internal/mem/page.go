package mem

import (
	"novakern/internal/defs"
	"novakern/internal/util"
)

// Pager is the physical page allocator: a bump pointer over the
// region beyond the identity map, falling back to a free list threaded
// through the first word of each freed page once pages have been
// returned. Grounded on original_source/page.c, which allocates fresh
// pages by advancing a `page_end` cursor and recycles freed ones off a
// singly linked free list stored in-place.
type Pager struct {
	mem      []byte
	base     Pa_t
	pageEnd  Pa_t // next never-allocated page
	limit    Pa_t // one past the last page in the region
	freeHead Pa_t // noPage means empty
}

// noPage marks an empty free list; no page starts at this address, so
// a page at physical address 0 can still be linked and recycled.
const noPage = ^Pa_t(0)

// NewPager creates a page allocator over mem, addressed starting at
// base, each page defs.PageSize bytes.
func NewPager(base Pa_t, mem []byte) *Pager {
	if len(mem)%defs.PageSize != 0 {
		panic("mem: page arena size must be a multiple of PageSize")
	}
	return &Pager{
		mem:      mem,
		base:     base,
		pageEnd:  base,
		limit:    base + Pa_t(len(mem)),
		freeHead: noPage,
	}
}

// Alloc returns one zeroed physical page, preferring a recycled page
// off the free list before bumping pageEnd into virgin memory.
func (p *Pager) Alloc() (Pa_t, defs.Err_t) {
	if p.freeHead != noPage {
		pa := p.freeHead
		off := int(pa - p.base)
		p.freeHead = Pa_t(util.Readn32(p.mem, off))
		zero(p.mem[off : off+defs.PageSize])
		return pa, 0
	}
	if p.pageEnd >= p.limit {
		return 0, -defs.ENOMEM
	}
	pa := p.pageEnd
	p.pageEnd += defs.PageSize
	off := int(pa - p.base)
	zero(p.mem[off : off+defs.PageSize])
	return pa, 0
}

// Free returns a page to the allocator's free list.
func (p *Pager) Free(pa Pa_t) defs.Err_t {
	if (pa-p.base)%defs.PageSize != 0 || pa < p.base || pa >= p.pageEnd {
		return -defs.EINVAL
	}
	off := int(pa - p.base)
	util.Writen32(p.mem, off, uint32(p.freeHead))
	p.freeHead = pa
	return 0
}

// Bytes returns the backing page for pa.
func (p *Pager) Bytes(pa Pa_t) []byte {
	off := int(pa - p.base)
	return p.mem[off : off+defs.PageSize]
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
