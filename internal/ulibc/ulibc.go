// Package ulibc is the minimal user-space runtime every Program
// closure is written against: it wraps the raw numbered syscalls
// exposed through proc.Ctx with the ergonomic, pointer-free helpers a
// real libc provides (argument marshalling into the process's own
// address space, a malloc/free/realloc heap, path helpers). Grounded
// on original_source/libc.c.
package ulibc

import (
	"novakern/internal/defs"
	"novakern/internal/mem"
	"novakern/internal/proc"
	"novakern/internal/vm"
)

// scratchVA is the fixed user virtual address ulibc maps one page at,
// lazily, the first time a process needs to pass a byte buffer to a
// syscall. Real libc startup code reserves address space the same
// way well before main() runs; novakern's Programs never see the
// address directly.
const scratchVA = defs.ProcessDataBase

func ensureScratch(ctx *proc.Ctx) defs.Err_t {
	as := ctx.Process().As
	if _, _, ok := as.Lookup(scratchVA); ok {
		return 0
	}
	pa, err := ctx.Kernel().Pager.Alloc()
	if err != 0 {
		return err
	}
	return as.Map(scratchVA, pa, vm.PTE_W|vm.PTE_U)
}

func putBytes(ctx *proc.Ctx, data []byte) (uint32, defs.Err_t) {
	if err := ensureScratch(ctx); err != 0 {
		return 0, err
	}
	if len(data) > defs.PageSize {
		return 0, -defs.EINVAL
	}
	if err := ctx.Process().As.Write(scratchVA, data); err != 0 {
		return 0, err
	}
	return uint32(scratchVA), 0
}

// Write marshals data into the process's scratch page and issues
// write(2) against fdNum.
func Write(ctx *proc.Ctx, fdNum int, data []byte) (int, defs.Err_t) {
	va, err := putBytes(ctx, data)
	if err != 0 {
		return 0, err
	}
	ret, rerr := ctx.Raw(defs.SYS_WRITE, [6]uint64{uint64(fdNum), uint64(va), uint64(len(data))})
	return int(ret), rerr
}

// Read issues read(2) against fdNum and copies up to n bytes back out
// of the process's scratch page.
func Read(ctx *proc.Ctx, fdNum int, n int) ([]byte, defs.Err_t) {
	if err := ensureScratch(ctx); err != 0 {
		return nil, err
	}
	ret, rerr := ctx.Raw(defs.SYS_READ, [6]uint64{uint64(fdNum), uint64(scratchVA), uint64(n)})
	if rerr != 0 {
		return nil, rerr
	}
	buf, terr := ctx.Process().As.Translate(scratchVA, int(ret), false)
	if terr != 0 {
		return nil, terr
	}
	return buf, 0
}

// Open marshals path into the scratch page and issues open(2).
func Open(ctx *proc.Ctx, path string, perms int) (int, defs.Err_t) {
	va, err := putBytes(ctx, append([]byte(path), 0))
	if err != 0 {
		return 0, err
	}
	ret, rerr := ctx.Raw(defs.SYS_OPEN, [6]uint64{uint64(va), uint64(len(path) + 1), uint64(perms)})
	return int(ret), rerr
}

// OpenDir opens path as a directory stream (getdent-ready fd).
func OpenDir(ctx *proc.Ctx, path string) (int, defs.Err_t) {
	return Open(ctx, path, defs.OpenAsDirectory)
}

// Close issues close(2).
func Close(ctx *proc.Ctx, fdNum int) defs.Err_t {
	_, err := ctx.Raw(defs.SYS_CLOSE, [6]uint64{uint64(fdNum)})
	return err
}

// Pipe issues pipe(2), returning (readFd, writeFd).
func Pipe(ctx *proc.Ctx) (int, int, defs.Err_t) {
	ret, err := ctx.Raw(defs.SYS_PIPE, [6]uint64{})
	if err != 0 {
		return 0, 0, err
	}
	return int(int32(uint32(ret))), int(int32(uint32(ret >> 32))), 0
}

// Dup2 issues dup2(2).
func Dup2(ctx *proc.Ctx, oldFd, newFd int) defs.Err_t {
	_, err := ctx.Raw(defs.SYS_DUP2, [6]uint64{uint64(oldFd), uint64(newFd)})
	return err
}

// Stat marshals path into the scratch page, issues stat(2), and
// returns the packed stat.Stat_t wire record (see internal/stat).
func Stat(ctx *proc.Ctx, path string) ([]byte, defs.Err_t) {
	pathVA, err := putBytes(ctx, append([]byte(path), 0))
	if err != 0 {
		return nil, err
	}
	// The stat buffer is written just past the path string in the same
	// scratch page, mirroring how a real libc stack frame lays out two
	// small buffers side by side.
	statVA := pathVA + uint32(len(path)) + 64
	_, rerr := ctx.Raw(defs.SYS_STAT, [6]uint64{uint64(pathVA), uint64(len(path) + 1), uint64(statVA)})
	if rerr != 0 {
		return nil, rerr
	}
	return ctx.Process().As.Translate(statVA, 36, false)
}

// Getdents reads directory entries already opened (via OpenDir) on
// fdNum, returning the packed buffer (see internal/fsimg.GetDents).
func Getdents(ctx *proc.Ctx, fdNum int, max int) ([]byte, defs.Err_t) {
	return Read(ctx, fdNum, max)
}

// Chdir marshals path into the scratch page and issues chdir(2).
func Chdir(ctx *proc.Ctx, path string) defs.Err_t {
	va, err := putBytes(ctx, append([]byte(path), 0))
	if err != 0 {
		return err
	}
	_, rerr := ctx.Raw(defs.SYS_CHDIR, [6]uint64{uint64(va), uint64(len(path) + 1)})
	return rerr
}

// Getcwd issues getcwd(2) and returns the current working directory.
func Getcwd(ctx *proc.Ctx) (string, defs.Err_t) {
	if err := ensureScratch(ctx); err != 0 {
		return "", err
	}
	n, err := ctx.Raw(defs.SYS_GETCWD, [6]uint64{uint64(scratchVA)})
	if err != 0 {
		return "", err
	}
	buf, terr := ctx.Process().As.Translate(scratchVA, int(n), false)
	if terr != 0 {
		return "", terr
	}
	return string(buf), 0
}

// Send marshals data into the scratch page and issues send(2) to
// target.
func Send(ctx *proc.Ctx, target defs.Pid_t, data []byte) defs.Err_t {
	va, err := putBytes(ctx, data)
	if err != 0 {
		return err
	}
	_, rerr := ctx.Raw(defs.SYS_SEND, [6]uint64{uint64(target), uint64(va), uint64(len(data))})
	return rerr
}

// ReceivedMessage is a receive(2) result, libc-shaped.
type ReceivedMessage struct {
	From defs.Pid_t
	Data []byte
}

// Receive issues receive(2), blocking if block is true.
func Receive(ctx *proc.Ctx, block bool) (ReceivedMessage, defs.Err_t) {
	if err := ensureScratch(ctx); err != 0 {
		return ReceivedMessage{}, err
	}
	var blockArg uint64
	if block {
		blockArg = 1
	}
	ret, err := ctx.Raw(defs.SYS_RECEIVE, [6]uint64{blockArg, uint64(scratchVA)})
	if err != 0 {
		return ReceivedMessage{}, err
	}
	from := defs.Pid_t(int32(uint32(ret)))
	n := int(uint32(ret >> 32))
	buf, terr := ctx.Process().As.Translate(scratchVA, n, false)
	if terr != 0 {
		return ReceivedMessage{}, terr
	}
	return ReceivedMessage{From: from, Data: buf}, 0
}

// Heap is a process-independent malloc arena backed by the kernel's
// shared buddy allocator. novakern simulates user processes as
// goroutines sharing one Go address space, so a literal per-process
// private heap has no simulation value; what matters for exercising
// the allocator (and Realloc's three branches) is that allocation and
// freeing follow the same buddy algorithm a real user-space malloc
// would sit on top of.
type Heap struct {
	b *mem.Buddy
}

// NewHeap wraps b for Malloc/Free/Realloc use.
func NewHeap(b *mem.Buddy) *Heap { return &Heap{b: b} }

// Malloc allocates n bytes.
func (h *Heap) Malloc(n int) (mem.Pa_t, defs.Err_t) {
	return h.b.Alloc(n)
}

// Free releases a block returned by Malloc.
func (h *Heap) Free(pa mem.Pa_t) defs.Err_t {
	return h.b.Free(pa)
}

// Realloc resizes the block at pa (of oldSize bytes) to newSize,
// implementing the three branches original_source/libc.c left as an
// unfinished stub (SPEC_FULL.md §4): shrinking returns the same block
// and frees nothing, leaving the tail unaddressed (the buddy allocator
// has no sub-block free, so shrink is a logical truncation only);
// newSize <= 0 frees the block and returns 0; growing in place succeeds when the current block's
// size class already covers newSize; otherwise Realloc allocates
// fresh, copies min(oldSize, newSize) bytes, and frees the old block.
func (h *Heap) Realloc(pa mem.Pa_t, oldSize, newSize int) (mem.Pa_t, defs.Err_t) {
	if newSize <= 0 {
		h.Free(pa)
		return 0, 0
	}
	if newSize <= oldSize {
		return pa, 0
	}
	if currentClassCovers(oldSize, newSize) {
		return pa, 0
	}
	newPa, err := h.b.Alloc(newSize)
	if err != 0 {
		return 0, err
	}
	n := oldSize
	if newSize < n {
		n = newSize
	}
	copy(h.b.Bytes(newPa, n), h.b.Bytes(pa, n))
	h.b.Free(pa)
	return newPa, 0
}

func currentClassCovers(oldSize, newSize int) bool {
	cap := mem.MinBlockSize
	for cap < oldSize {
		cap <<= 1
	}
	return newSize <= cap
}
