package pipe

import "novakern/internal/defs"

// ReaderEnd adapts a Pipe's read side to the fd.Ops interface. Read
// goes through TryRead, which neither records nor checks a blocked
// reader, so two processes sharing this end may both wait on an empty
// pipe; Pid (the opener) is only handed to CloseReader.
type ReaderEnd struct {
	P   *Pipe
	Pid defs.Pid_t
}

func (r *ReaderEnd) Read(p []byte) (int, defs.Err_t) {
	n, wouldBlock := r.P.TryRead(p)
	if wouldBlock {
		return 0, -defs.ESUSPEND
	}
	return n, 0
}
func (r *ReaderEnd) Write(p []byte) (int, defs.Err_t) { return 0, -defs.EINVAL }
func (r *ReaderEnd) Close() defs.Err_t {
	r.P.CloseReader(r.Pid)
	return 0
}

// WriterEnd adapts a Pipe's write side to the fd.Ops interface.
type WriterEnd struct {
	P *Pipe
}

func (w *WriterEnd) Read(p []byte) (int, defs.Err_t) { return 0, -defs.EINVAL }
func (w *WriterEnd) Write(p []byte) (int, defs.Err_t) { return w.P.Write(p) }
func (w *WriterEnd) Close() defs.Err_t {
	w.P.CloseWriter()
	return 0
}
