// Package mem implements the kernel's physical memory manager: a buddy
// allocator over a simulated physical arena, plus the page-granular
// allocator vm.go builds page tables out of. Grounded on
// biscuit/src/mem/mem.go's allocator shape and original_source/buddy.c's
// exact algorithm (256-byte minimum block, in-place free-list links
// threaded through the first bytes of each free block, and a
// block-info array recording each block's size class and in-use bit).
package mem

import (
	"novakern/internal/defs"
	"novakern/internal/util"
)

// Pa_t is a physical address: a byte offset into the simulated arena.
type Pa_t uint32

// MinBlockShift is log2 of the smallest allocatable block (256 bytes),
// matching original_source/constants.h's DEFAULT_LOWER.
const MinBlockShift = 8

// MinBlockSize is the smallest allocatable block, in bytes.
const MinBlockSize = 1 << MinBlockShift

// MaxOrder bounds the size class field to 7 bits, as buddy.c packs it
// alongside the 1-bit used flag into a single byte per block.
const MaxOrder = 127

type blockInfo struct {
	order uint8
	used  bool
}

// Buddy is a power-of-two buddy allocator over a byte arena. The arena
// itself stands in for physical RAM; free blocks carry their
// free-list "next" pointer in their own first four bytes, exactly as
// the original C allocator does, so the allocator needs no side
// storage proportional to the number of free blocks.
type Buddy struct {
	mem      []byte
	base     Pa_t
	maxOrder int
	info     []blockInfo // one entry per MinBlockSize-sized slot
	freeHead []int32     // per order, index into info (-1 = empty)
}

// NewBuddy creates a buddy allocator managing mem, which must be a
// power-of-two multiple of MinBlockSize. base is the physical address
// the first byte of mem corresponds to.
func NewBuddy(base Pa_t, mem []byte) *Buddy {
	n := len(mem) / MinBlockSize
	if n == 0 || n*MinBlockSize != len(mem) || n&(n-1) != 0 {
		panic("mem: arena size must be a power-of-two multiple of MinBlockSize")
	}
	order := 0
	for 1<<uint(order) < n {
		order++
	}
	b := &Buddy{
		mem:      mem,
		base:     base,
		maxOrder: order,
		info:     make([]blockInfo, n),
		freeHead: make([]int32, order+1),
	}
	for i := range b.freeHead {
		b.freeHead[i] = -1
	}
	b.info[0] = blockInfo{order: uint8(order), used: false}
	b.pushFree(order, 0)
	return b
}

func (b *Buddy) pushFree(order int, idx int32) {
	b.writeNext(idx, b.freeHead[order])
	b.freeHead[order] = idx
}

func (b *Buddy) popFree(order int) int32 {
	idx := b.freeHead[order]
	if idx < 0 {
		return -1
	}
	b.freeHead[order] = b.readNext(idx)
	return idx
}

func (b *Buddy) removeFree(order int, idx int32) bool {
	cur := b.freeHead[order]
	if cur == idx {
		b.freeHead[order] = b.readNext(idx)
		return true
	}
	for cur >= 0 {
		next := b.readNext(cur)
		if next == idx {
			b.writeNext(cur, b.readNext(idx))
			return true
		}
		cur = next
	}
	return false
}

func (b *Buddy) writeNext(idx int32, next int32) {
	off := int(idx) * MinBlockSize
	util.Writen32(b.mem, off, uint32(next))
}

func (b *Buddy) readNext(idx int32) int32 {
	off := int(idx) * MinBlockSize
	return int32(util.Readn32(b.mem, off))
}

func orderFor(size int) int {
	order := 0
	cap := MinBlockSize
	for cap < size {
		cap <<= 1
		order++
	}
	return order
}

// Alloc reserves a block able to hold size bytes and returns its
// physical address. Returns ENOMEM if no block (after splitting) is
// available.
func (b *Buddy) Alloc(size int) (Pa_t, defs.Err_t) {
	if size <= 0 {
		return 0, -defs.EINVAL
	}
	want := orderFor(size)
	if want > b.maxOrder {
		return 0, -defs.ENOMEM
	}

	order := want
	for order <= b.maxOrder && b.freeHead[order] < 0 {
		order++
	}
	if order > b.maxOrder {
		return 0, -defs.ENOMEM
	}

	idx := b.popFree(order)
	// Split down to the requested order, buddying off the upper half
	// at each step, exactly as buddy.c's split loop does.
	for order > want {
		order--
		span := int32(1) << uint(order)
		buddyIdx := idx + span
		b.info[buddyIdx] = blockInfo{order: uint8(order), used: false}
		b.pushFree(order, buddyIdx)
	}
	b.info[idx] = blockInfo{order: uint8(want), used: true}
	return b.base + Pa_t(idx)*MinBlockSize, 0
}

// Free releases a block previously returned by Alloc, merging with its
// buddy wherever the buddy is also free.
func (b *Buddy) Free(pa Pa_t) defs.Err_t {
	if (pa-b.base)%MinBlockSize != 0 {
		return -defs.EINVAL
	}
	idx := int32((pa - b.base) / MinBlockSize)
	if idx < 0 || int(idx) >= len(b.info) {
		return -defs.EINVAL
	}
	bi := &b.info[idx]
	if !bi.used {
		return -defs.EINVAL
	}
	order := int(bi.order)
	bi.used = false

	for order < b.maxOrder {
		buddyIdx := idx ^ (int32(1) << uint(order))
		if int(buddyIdx) >= len(b.info) {
			break
		}
		bud := &b.info[buddyIdx]
		if bud.used || int(bud.order) != order {
			break
		}
		if !b.removeFree(order, buddyIdx) {
			break
		}
		if buddyIdx < idx {
			idx = buddyIdx
		}
		order++
		b.info[idx].order = uint8(order)
	}
	b.info[idx] = blockInfo{order: uint8(order), used: false}
	b.pushFree(order, idx)
	return 0
}

// Bytes returns the backing slice for a physical address and length,
// for copying payloads into and out of "physical memory".
func (b *Buddy) Bytes(pa Pa_t, n int) []byte {
	off := int(pa - b.base)
	return b.mem[off : off+n]
}

// Base returns the arena's starting physical address.
func (b *Buddy) Base() Pa_t { return b.base }

// Size returns the arena's total size in bytes.
func (b *Buddy) Size() int { return len(b.mem) }
