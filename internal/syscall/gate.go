// Package syscall implements the syscall gate: the single dispatch
// loop that drains internal/proc's Kernel.Calls() channel, validates
// every pointer/length argument against the calling process's address
// space, and carries out the syscall against the fd/pipe/mailbox/
// fsimg subsystems. Grounded on original_source/syscall.c (dispatch
// switch and errno normalization), original_source/fscalls.c (file
// syscalls), and original_source/filedesc.c (fd table operations).
package syscall

import (
	"github.com/sirupsen/logrus"

	"novakern/internal/bpath"
	"novakern/internal/circbuf"
	"novakern/internal/defs"
	"novakern/internal/fd"
	"novakern/internal/fsimg"
	"novakern/internal/pipe"
	"novakern/internal/proc"
	"novakern/internal/stat"
)

// Gate owns the single dispatch loop. Exactly one goroutine should
// ever call Run.
type Gate struct {
	k   *proc.Kernel
	img *fsimg.Image
	log *logrus.Logger
}

// NewGate returns a Gate dispatching syscalls for k against img.
func NewGate(k *proc.Kernel, img *fsimg.Image, log *logrus.Logger) *Gate {
	return &Gate{k: k, img: img, log: log}
}

// Run drains the kernel's call channel until it is closed. This is
// the only goroutine that ever mutates shared kernel-subsystem state
// in response to a syscall, which is what makes dispatch single
// threaded without needing a kernel-wide mutex.
func (g *Gate) Run() {
	for msg := range g.k.Calls() {
		res := g.dispatch(msg)
		msg.Reply <- res
	}
}

// NewConsoleHandle creates a console screen handle wired to a fresh
// keyboard circbuf and output sink, for boot-time fd 0/1/2 setup.
func NewConsoleHandle(keyboardCapacity int) (*screenHandle, *circbuf.Circbuf_t) {
	cb := &circbuf.Circbuf_t{}
	cb.Cb_init(keyboardCapacity)
	return &screenHandle{in: cb, out: &sink{}}, cb
}

// ConsoleOutput returns the bytes written to h so far.
func ConsoleOutput(h *screenHandle) []byte {
	return h.out.Bytes()
}

// ConsoleOutputFrom returns the bytes written so far to ops, if ops is
// a console screen handle (the shape every fd 1/2 resolves to); nil
// otherwise. cmd/novakern uses this to read a scenario's output
// without needing to name the unexported screenHandle type itself.
func ConsoleOutputFrom(ops fd.Ops) []byte {
	if sh, ok := ops.(*screenHandle); ok {
		return sh.out.Bytes()
	}
	return nil
}

func (g *Gate) dispatch(msg proc.CallMsg) proc.Result {
	p := g.k.Table(msg.Pid)
	if p == nil {
		return proc.Result{Err: -defs.ESRCH}
	}
	a := msg.Args

	var res proc.Result
	switch msg.Num {
	case defs.SYS_GETPID:
		res = proc.Result{Ret: uint64(uint32(p.Pid))}
	case defs.SYS_WAITPID:
		target := defs.Pid_t(int32(uint32(a[0])))
		pid, code, err := g.k.Waitpid(msg.Pid, target, a[1] != 0)
		res = proc.Result{Ret: uint64(uint32(pid)) | uint64(uint32(int32(code)))<<32, Err: err}
	case defs.SYS_KILL:
		res = proc.Result{Err: g.k.Kill(defs.Pid_t(int32(uint32(a[0]))))}
	case defs.SYS_HALT:
		g.log.WithField("pid", p.Pid).Fatal("halt requested")
		res = proc.Result{}
	case defs.SYS_GETERRNO:
		res = proc.Result{Ret: uint64(uint32(p.LastErrno()))}
	case defs.SYS_WRITE:
		res = g.sysWrite(p, a)
	case defs.SYS_READ:
		res = g.sysRead(p, a)
	case defs.SYS_CLOSE:
		res = g.sysClose(p, a)
	case defs.SYS_PIPE:
		res = g.sysPipe(p)
	case defs.SYS_DUP2:
		res = g.sysDup2(p, a)
	case defs.SYS_STAT:
		res = g.sysStat(p, a)
	case defs.SYS_OPEN:
		res = g.sysOpen(p, a)
	case defs.SYS_GETDENT:
		res = g.sysGetdent(p, a)
	case defs.SYS_CHDIR:
		res = g.sysChdir(p, a)
	case defs.SYS_GETCWD:
		res = g.sysGetcwd(p, a)
	case defs.SYS_SEND:
		res = g.sysSend(p, a)
	case defs.SYS_RECEIVE:
		res = g.sysReceive(p, a)
	case defs.SYS_BRK:
		res = g.sysBrk(p, a)
	default:
		res = proc.Result{Err: -defs.ENOSYS}
	}

	if res.Err != 0 && res.Err != defs.ESUSPEND {
		p.SetLastErrno(res.Err)
	}
	return res
}

func (g *Gate) sysWrite(p *proc.Process, a [6]uint64) proc.Result {
	h, err := fdAt(p, a[0])
	if err != 0 {
		return proc.Result{Err: err}
	}
	buf, terr := p.As.Translate(uint32(a[1]), int(a[2]), false)
	if terr != 0 {
		return proc.Result{Err: terr}
	}
	n, werr := h.Write(buf)
	if werr != 0 {
		return proc.Result{Err: werr}
	}
	g.wakeAll()
	return proc.Result{Ret: uint64(n)}
}

func (g *Gate) sysRead(p *proc.Process, a [6]uint64) proc.Result {
	h, err := fdAt(p, a[0])
	if err != 0 {
		return proc.Result{Err: err}
	}
	n := int(a[2])
	buf := make([]byte, n)
	read, rerr := h.Read(buf)
	if rerr != 0 {
		return proc.Result{Err: rerr}
	}
	if werr := p.As.Write(uint32(a[1]), buf[:read]); werr != 0 {
		return proc.Result{Err: werr}
	}
	return proc.Result{Ret: uint64(read)}
}

func (g *Gate) sysClose(p *proc.Process, a [6]uint64) proc.Result {
	n := int(a[0])
	if n < 0 || n >= defs.MaxFDs || p.Fds[n] == nil {
		return proc.Result{Err: -defs.EBADF}
	}
	err := p.Fds[n].Close()
	p.Fds[n] = nil
	return proc.Result{Err: err}
}

func (g *Gate) sysPipe(p *proc.Process) proc.Result {
	r, w := -1, -1
	for i := 0; i < defs.MaxFDs; i++ {
		if p.Fds[i] == nil {
			if r < 0 {
				r = i
			} else {
				w = i
				break
			}
		}
	}
	if r < 0 || w < 0 {
		return proc.Result{Err: -defs.EMFILE}
	}
	pp := pipe.New()
	p.Fds[r] = &fd.Fd_t{File: fd.NewFile(fd.KindPipeReader, &pipe.ReaderEnd{P: pp, Pid: p.Pid}), Perms: fd.PermRead}
	p.Fds[w] = &fd.Fd_t{File: fd.NewFile(fd.KindPipeWriter, &pipe.WriterEnd{P: pp}), Perms: fd.PermWrite}
	return proc.Result{Ret: uint64(uint32(r)) | uint64(uint32(w))<<32}
}

func (g *Gate) sysDup2(p *proc.Process, a [6]uint64) proc.Result {
	oldFd, newFd := int(a[0]), int(a[1])
	if oldFd < 0 || oldFd >= defs.MaxFDs || p.Fds[oldFd] == nil || newFd < 0 || newFd >= defs.MaxFDs {
		return proc.Result{Err: -defs.EBADF}
	}
	if p.Fds[newFd] != nil {
		p.Fds[newFd].Close()
	}
	p.Fds[newFd] = p.Fds[oldFd].Dup()
	return proc.Result{Ret: uint64(uint32(newFd))}
}

func (g *Gate) sysStat(p *proc.Process, a [6]uint64) proc.Result {
	path, terr := g.readPath(p, a[0], a[1])
	if terr != 0 {
		return proc.Result{Err: terr}
	}
	var s stat.Stat_t
	if err := g.img.Stat(bpath.Canonicalize(p.Cwd.Get(), path), &s); err != 0 {
		return proc.Result{Err: err}
	}
	if werr := p.As.Write(uint32(a[2]), s.Bytes()); werr != 0 {
		return proc.Result{Err: werr}
	}
	return proc.Result{}
}

func (g *Gate) sysOpen(p *proc.Process, a [6]uint64) proc.Result {
	path, terr := g.readPath(p, a[0], a[1])
	if terr != 0 {
		return proc.Result{Err: terr}
	}
	perms := int(a[2])
	full := bpath.Canonicalize(p.Cwd.Get(), path)

	slot := -1
	for i := 0; i < defs.MaxFDs; i++ {
		if p.Fds[i] == nil {
			slot = i
			break
		}
	}
	if slot < 0 {
		return proc.Result{Err: -defs.EMFILE}
	}

	if perms == defs.OpenAsDirectory {
		data, err := g.img.GetDents(full)
		if err != 0 {
			return proc.Result{Err: err}
		}
		p.Fds[slot] = &fd.Fd_t{File: fd.NewFile(fd.KindDir, &dirHandle{data: data}), Perms: fd.PermRead}
		return proc.Result{Ret: uint64(uint32(slot))}
	}

	data, err := g.img.ReadFile(full)
	if err != 0 {
		return proc.Result{Err: err}
	}
	p.Fds[slot] = &fd.Fd_t{File: fd.NewFile(fd.KindFile, &fileHandle{data: data}), Perms: fd.PermRead}
	return proc.Result{Ret: uint64(uint32(slot))}
}

func (g *Gate) sysGetdent(p *proc.Process, a [6]uint64) proc.Result {
	return g.sysRead(p, a)
}

func (g *Gate) sysChdir(p *proc.Process, a [6]uint64) proc.Result {
	path, terr := g.readPath(p, a[0], a[1])
	if terr != 0 {
		return proc.Result{Err: terr}
	}
	full := bpath.Canonicalize(p.Cwd.Get(), path)
	n, err := g.img.Lookup(full)
	if err != 0 {
		return proc.Result{Err: err}
	}
	if n.Type != fsimg.TypeDir {
		return proc.Result{Err: -defs.ENOTDIR}
	}
	p.Cwd.Set(full)
	return proc.Result{}
}

func (g *Gate) sysGetcwd(p *proc.Process, a [6]uint64) proc.Result {
	cwd := p.Cwd.Get()
	if werr := p.As.Write(uint32(a[0]), append([]byte(cwd), 0)); werr != 0 {
		return proc.Result{Err: werr}
	}
	return proc.Result{Ret: uint64(len(cwd))}
}

func (g *Gate) sysSend(p *proc.Process, a [6]uint64) proc.Result {
	target := g.k.Table(defs.Pid_t(int32(uint32(a[0]))))
	if target == nil {
		return proc.Result{Err: -defs.ESRCH}
	}
	buf, terr := p.As.Translate(uint32(a[1]), int(a[2]), false)
	if terr != 0 {
		return proc.Result{Err: terr}
	}
	if err := target.Mbox.Send(p.Pid, buf); err != 0 {
		return proc.Result{Err: err}
	}
	g.wakeAll()
	return proc.Result{}
}

func (g *Gate) sysReceive(p *proc.Process, a [6]uint64) proc.Result {
	block := a[0] != 0
	msg, err := p.Mbox.Receive(false)
	if err != 0 {
		if block && err == -defs.EAGAIN {
			return proc.Result{Err: defs.ESUSPEND}
		}
		return proc.Result{Err: err}
	}
	if werr := p.As.Write(uint32(a[1]), msg.Data); werr != 0 {
		return proc.Result{Err: werr}
	}
	ret := uint64(uint32(msg.From)) | uint64(uint32(len(msg.Data)))<<32
	return proc.Result{Ret: ret}
}

func (g *Gate) sysBrk(p *proc.Process, a [6]uint64) proc.Result {
	// novakern's buddy-backed heap is managed entirely in
	// internal/ulibc via the kernel's shared Buddy allocator rather
	// than a per-process data-segment break, so brk(2) is accepted but
	// a no-op: acknowledged success keeps libc startup code that
	// unconditionally calls it from failing.
	return proc.Result{}
}

func (g *Gate) readPath(p *proc.Process, va, n uint64) (string, defs.Err_t) {
	buf, err := p.As.Translate(uint32(va), int(n), false)
	if err != 0 {
		return "", err
	}
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i]), 0
		}
	}
	return string(buf), 0
}

func fdAt(p *proc.Process, idx uint64) (*fd.Fd_t, defs.Err_t) {
	i := int(idx)
	if i < 0 || i >= defs.MaxFDs || p.Fds[i] == nil {
		return nil, -defs.EBADF
	}
	return p.Fds[i], 0
}

func (g *Gate) wakeAll() {
	for pid := defs.Pid_t(1); int(pid) < defs.MaxProcs+1; pid++ {
		g.k.Wake(pid)
	}
}
