package syscall

import (
	"sync"

	"novakern/internal/circbuf"
	"novakern/internal/defs"
)

// fileHandle is the fd.Ops implementation backing an open regular
// file from the read-only image: a byte slice plus a read cursor.
type fileHandle struct {
	mu   sync.Mutex
	data []byte
	off  int64
}

func (f *fileHandle) Read(p []byte) (int, defs.Err_t) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.off >= int64(len(f.data)) {
		return 0, 0
	}
	n := copy(p, f.data[f.off:])
	f.off += int64(n)
	return n, 0
}

func (f *fileHandle) Write(p []byte) (int, defs.Err_t) { return 0, -defs.EINVAL }
func (f *fileHandle) Close() defs.Err_t                { return 0 }

// dirHandle is the fd.Ops implementation backing a directory opened
// with defs.OpenAsDirectory: the packed getdent(2) payload, read out
// in caller-sized chunks.
type dirHandle struct {
	mu   sync.Mutex
	data []byte
	off  int64
}

func (d *dirHandle) Read(p []byte) (int, defs.Err_t) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.off >= int64(len(d.data)) {
		return 0, 0
	}
	n := copy(p, d.data[d.off:])
	d.off += int64(n)
	return n, 0
}

func (d *dirHandle) Write(p []byte) (int, defs.Err_t) { return 0, -defs.EISDIR }
func (d *dirHandle) Close() defs.Err_t                { return 0 }

// screenHandle is the fd.Ops implementation backing stdin/stdout: a
// circbuf for reads (nothing in the kernel writes keyboard input into
// it, so a read suspends while it is empty), and a plain byte
// sink for writes (the VGA-text-memory stand-in — deliberately not
// routed through logrus, since it is program output, not a kernel
// diagnostic).
type screenHandle struct {
	in  *circbuf.Circbuf_t
	out *sink
}

func (s *screenHandle) Read(p []byte) (int, defs.Err_t) {
	if s.in.Avail() == 0 {
		return 0, -defs.ESUSPEND
	}
	return s.in.Rawread(p), 0
}

func (s *screenHandle) Write(p []byte) (int, defs.Err_t) {
	s.out.Write(p)
	return len(p), 0
}

func (s *screenHandle) Close() defs.Err_t { return 0 }

// sink collects bytes written to the console, for tests and the boot
// harness to inspect program output.
type sink struct {
	mu  sync.Mutex
	buf []byte
}

func (s *sink) Write(p []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = append(s.buf, p...)
}

func (s *sink) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(s.buf))
	copy(out, s.buf)
	return out
}
