// Package proc implements the process table, the round-robin
// scheduler, and process lifecycle operations (fork, execve, waitpid,
// exit). Grounded on original_source/process.c and
// original_source/unixproc.c, translated into the goroutine+channel
// simulation SPEC_FULL.md §0 resolves the "how do you preempt a Go
// program" open question with: each process is a goroutine running a
// Program closure — the moral equivalent of the C kernel's
// start_process(void (*start_address)(void)) entry point
// (biscuit/src/... processes are likewise driven by a function-typed
// entry, just on real hardware).
package proc

import (
	"sync"

	"novakern/internal/accnt"
	"novakern/internal/defs"
	"novakern/internal/fd"
	"novakern/internal/mailbox"
	"novakern/internal/vm"
)

// State is a process's scheduling state.
type State int

const (
	StateUnused State = iota
	StateRunnable
	StateSuspended
	StateZombie
)

// Process is one process table slot.
type Process struct {
	Pid    defs.Pid_t
	Parent defs.Pid_t

	As   *vm.As
	Fds  [defs.MaxFDs]*fd.Fd_t
	Cwd  *fd.Cwd_t
	Mbox *mailbox.Mailbox
	Acc  *accnt.Accnt_t

	mu        sync.Mutex
	state     State
	children  map[defs.Pid_t]bool
	exitCode  int
	lastErrno defs.Err_t

	turn   chan struct{}
	resume chan struct{}

	prog Program
}

func newProcess(pid defs.Pid_t, parent defs.Pid_t, as *vm.As, cwd *fd.Cwd_t, prog Program) *Process {
	return &Process{
		Pid:      pid,
		Parent:   parent,
		As:       as,
		Cwd:      cwd,
		Mbox:     mailbox.New(defs.MailboxCapacity),
		Acc:      &accnt.Accnt_t{},
		state:    StateRunnable,
		children: make(map[defs.Pid_t]bool),
		turn:     make(chan struct{}, 1),
		resume:   make(chan struct{}, 1),
		prog:     prog,
	}
}

// State returns the process's current scheduling state.
func (p *Process) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Process) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// ExitCode returns the status a zombie process exited with.
func (p *Process) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

// SetLastErrno records the magnitude of the most recent failing
// syscall's error code, for a subsequent geterrno(2) to retrieve.
func (p *Process) SetLastErrno(err defs.Err_t) {
	if err < 0 {
		err = -err
	}
	p.mu.Lock()
	p.lastErrno = err
	p.mu.Unlock()
}

// LastErrno returns the magnitude recorded by SetLastErrno.
func (p *Process) LastErrno() defs.Err_t {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErrno
}

// Children returns a snapshot of this process's live child pids.
func (p *Process) Children() []defs.Pid_t {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]defs.Pid_t, 0, len(p.children))
	for c := range p.children {
		out = append(out, c)
	}
	return out
}

func (p *Process) addChild(pid defs.Pid_t) {
	p.mu.Lock()
	p.children[pid] = true
	p.mu.Unlock()
}

func (p *Process) removeChild(pid defs.Pid_t) {
	p.mu.Lock()
	delete(p.children, pid)
	p.mu.Unlock()
}
