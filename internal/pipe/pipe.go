// Package pipe implements an anonymous pipe: a growable, unbounded
// byte buffer with a single blocking reader and any number of
// writers. Grounded directly on original_source/pipe.c (the teacher
// repository's own pipe implementation was stripped out of the
// retrieval pack), translated into the kernel's Err_t/fd.Ops idiom.
package pipe

import (
	"sync"

	"novakern/internal/defs"
)

// noReader is the sentinel blockedReader value meaning nobody is
// currently blocked in Read.
const noReader = defs.Pid_t(0)

// Pipe is an anonymous, unbounded, in-memory pipe.
type Pipe struct {
	mu            sync.Mutex
	cond          *sync.Cond
	buf           []byte
	readers       int
	writers       int
	blockedReader defs.Pid_t
}

// New returns a Pipe with one reader end and one writer end already
// open, matching the fd pair pipe(2) hands back.
func New() *Pipe {
	p := &Pipe{readers: 1, writers: 1}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Read blocks until data is available or every writer has closed
// (EOF, returned as (0, 0)). Only one pid may be blocked in Read at a
// time, matching the original's single-reader-slot design; a second
// concurrent blocking reader is rejected with EINVAL.
func (p *Pipe) Read(pid defs.Pid_t, out []byte) (int, defs.Err_t) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.buf) == 0 && p.writers > 0 {
		if p.blockedReader != noReader && p.blockedReader != pid {
			return 0, -defs.EINVAL
		}
		p.blockedReader = pid
		p.cond.Wait()
	}
	if p.blockedReader == pid {
		p.blockedReader = noReader
	}

	if len(p.buf) == 0 {
		return 0, 0 // EOF
	}
	n := copy(out, p.buf)
	p.buf = p.buf[n:]
	return n, 0
}

// TryRead is the non-blocking variant Read is built on: it never
// waits, instead reporting wouldBlock so a caller running inside the
// kernel's single-threaded dispatcher (which must never block on user
// I/O) can return ESUSPEND and let the scheduler run someone else.
func (p *Pipe) TryRead(out []byte) (n int, wouldBlock bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.buf) == 0 {
		if p.writers > 0 {
			return 0, true
		}
		return 0, false // EOF
	}
	n = copy(out, p.buf)
	p.buf = p.buf[n:]
	return n, false
}

// Write appends p to the pipe buffer and wakes a blocked reader. With
// no readers left, the write is rejected with EINVAL — novakern has no
// signal delivery (spec.md Non-goals), so there is no SIGPIPE to raise
// instead.
func (p *Pipe) Write(data []byte) (int, defs.Err_t) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.readers == 0 {
		return 0, -defs.EINVAL
	}
	p.buf = append(p.buf, data...)
	p.cond.Broadcast()
	return len(data), 0
}

// AddReader/AddWriter record an extra fd referencing this end (fork
// duplicating a pipe fd, for instance).
func (p *Pipe) AddReader() {
	p.mu.Lock()
	p.readers++
	p.mu.Unlock()
}

func (p *Pipe) AddWriter() {
	p.mu.Lock()
	p.writers++
	p.mu.Unlock()
}

// CloseReader drops one reader reference. pid must clear blockedReader
// if it was the one parked there, or a closed-then-reopened reader slot
// would stay permanently claimed by a pid that can never read again.
func (p *Pipe) CloseReader(pid defs.Pid_t) {
	p.mu.Lock()
	p.readers--
	if p.blockedReader == pid {
		p.blockedReader = noReader
	}
	p.mu.Unlock()
}

// CloseWriter drops one writer reference; once the last writer is
// gone, any blocked reader is woken to observe EOF.
func (p *Pipe) CloseWriter() {
	p.mu.Lock()
	p.writers--
	if p.writers == 0 {
		p.cond.Broadcast()
	}
	p.mu.Unlock()
}
