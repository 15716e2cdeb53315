// Package fd implements the kernel's polymorphic open-file-handle
// abstraction: a small vtable-dispatched interface any open resource
// (the console, a pipe end, a read-only image file, a directory)
// implements, reference-counted so dup2 and fork can share the same
// underlying resource across file descriptor numbers. Grounded on
// biscuit/src/fd/fd.go's Fd_t/Cwd_t split.
package fd

import (
	"sync"
	"sync/atomic"

	"novakern/internal/defs"
)

// Kind tags which concrete resource a File_t backs, mirroring the
// teacher's dispatch-by-tag style rather than a type switch.
type Kind int

const (
	KindScreen Kind = iota
	KindPipeReader
	KindPipeWriter
	KindFile
	KindDir
)

// Ops is the vtable every open resource implements.
type Ops interface {
	Read(p []byte) (int, defs.Err_t)
	Write(p []byte) (int, defs.Err_t)
	Close() defs.Err_t
}

// File_t is a reference-counted open resource. Multiple Fd_t values
// (one per process, or one per dup2'd descriptor number within a
// process) may point at the same File_t; the resource is closed only
// once the last reference drops.
type File_t struct {
	mu   sync.Mutex
	Kind Kind
	Ops  Ops
	refs int32
}

// NewFile wraps ops in a File_t with one reference already counted.
func NewFile(kind Kind, ops Ops) *File_t {
	return &File_t{Kind: kind, Ops: ops, refs: 1}
}

// Ref adds one reference, for dup2 and fork sharing the same handle.
func (f *File_t) Ref() {
	atomic.AddInt32(&f.refs, 1)
}

// Unref drops one reference, closing the underlying resource once the
// count reaches zero. Returns the close error, if any.
func (f *File_t) Unref() defs.Err_t {
	if atomic.AddInt32(&f.refs, -1) == 0 {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.Ops.Close()
	}
	return 0
}

// Permission bits for an Fd_t.
const (
	PermRead  = 1 << 0
	PermWrite = 1 << 1
)

// Fd_t is one process's view of an open file: a reference to the
// shared resource plus the permissions this particular descriptor
// number was opened with.
type Fd_t struct {
	File  *File_t
	Perms int
}

// Read performs a permission-checked read through the descriptor.
func (fd *Fd_t) Read(p []byte) (int, defs.Err_t) {
	if fd.Perms&PermRead == 0 {
		return 0, -defs.EINVAL
	}
	return fd.File.Ops.Read(p)
}

// Write performs a permission-checked write through the descriptor.
func (fd *Fd_t) Write(p []byte) (int, defs.Err_t) {
	if fd.Perms&PermWrite == 0 {
		return 0, -defs.EINVAL
	}
	return fd.File.Ops.Write(p)
}

// Dup returns a new Fd_t sharing the same File_t, with an added
// reference, for dup2(2) and fork(2).
func (fd *Fd_t) Dup() *Fd_t {
	fd.File.Ref()
	return &Fd_t{File: fd.File, Perms: fd.Perms}
}

// Close drops this descriptor's reference to its File_t.
func (fd *Fd_t) Close() defs.Err_t {
	return fd.File.Unref()
}

// Cwd_t is a process's current working directory: the canonical path
// string, protected by a mutex since chdir and getcwd can race across
// a fork'd child sharing nothing but the same initial string value.
type Cwd_t struct {
	mu   sync.Mutex
	path string
}

// MkRootCwd returns a Cwd_t rooted at "/".
func MkRootCwd() *Cwd_t {
	return &Cwd_t{path: "/"}
}

// Get returns the current canonical path.
func (c *Cwd_t) Get() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.path
}

// Set installs a new canonical path (the caller is responsible for
// having already run it through bpath.Canonicalize).
func (c *Cwd_t) Set(p string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.path = p
}

// Clone returns a Cwd_t with an independent copy of the current path,
// for fork(2) (child and parent cwd's diverge independently after the
// fork, unlike a shared File_t).
func (c *Cwd_t) Clone() *Cwd_t {
	return &Cwd_t{path: c.Get()}
}
