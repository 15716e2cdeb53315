package proc

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"novakern/internal/defs"
	"novakern/internal/fd"
	"novakern/internal/limits"
	"novakern/internal/mem"
	"novakern/internal/vm"
)

// CallMsg is one syscall request handed from a process goroutine to
// the kernel's single dispatch loop.
type CallMsg struct {
	Pid   defs.Pid_t
	Num   defs.Err_t
	Args  [6]uint64
	Reply chan Result
}

// Result is a syscall's return value and error code. Execve bypasses
// this channel entirely (Ctx.Execve panics to restart the Program
// directly) so no result variant carries a replacement Program.
type Result struct {
	Ret uint64
	Err defs.Err_t
}

// Kernel owns the process table, the physical/page allocators every
// address space is built from, and the single channel every syscall
// passes through — the channel only the dispatch loop (run by
// internal/syscall's Gate) ever reads from, which is what gives
// novakern's syscall handling single-threaded semantics without a
// real kernel lock.
type Kernel struct {
	Log    *logrus.Logger
	Buddy  *mem.Buddy
	Pager  *mem.Pager
	Procs  limits.Counter
	Reg    *Registry

	mu      sync.Mutex
	table   [defs.MaxProcs + 1]*Process
	ready   []defs.Pid_t
	current defs.Pid_t

	callCh chan CallMsg
}

// NewKernel creates a Kernel over the given physical arena, split
// between a buddy-managed heap region and a page-granular region for
// page tables and process memory.
func NewKernel(arena []byte, log *logrus.Logger) *Kernel {
	heapEnd := len(arena) / 2
	heapEnd -= heapEnd % mem.MinBlockSize
	pageRegion := arena[heapEnd:]
	pageRegion = pageRegion[:len(pageRegion)-len(pageRegion)%defs.PageSize]

	k := &Kernel{
		Log:    log,
		Buddy:  mem.NewBuddy(0, arena[:heapEnd]),
		Pager:  mem.NewPager(mem.Pa_t(heapEnd), pageRegion),
		Reg:    NewRegistry(),
		callCh: make(chan CallMsg),
	}
	k.Procs = *limits.NewCounter(defs.MaxProcs - 1) // PID 0 reserved
	return k
}

// Calls returns the receive side of the syscall channel, drained by
// exactly one goroutine (internal/syscall's Gate.Run).
func (k *Kernel) Calls() <-chan CallMsg {
	return k.callCh
}

// send enqueues a syscall request. Only Ctx.Raw calls this.
func (k *Kernel) send(msg CallMsg) {
	k.callCh <- msg
}

// Table returns the process at pid, or nil if the slot is unused.
func (k *Kernel) Table(pid defs.Pid_t) *Process {
	k.mu.Lock()
	defer k.mu.Unlock()
	if pid <= 0 || int(pid) >= len(k.table) {
		return nil
	}
	return k.table[pid]
}

// allocPid returns EAGAIN, not the generic ENOMEM a fixed-size table
// would normally report, per spec.md:199's explicit carve-out for
// fork/process creation on an exhausted process table.
func (k *Kernel) allocPid() (defs.Pid_t, defs.Err_t) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for pid := defs.Pid_t(1); int(pid) < len(k.table); pid++ {
		if k.table[pid] == nil {
			return pid, 0
		}
	}
	return 0, -defs.EAGAIN
}

// Spawn creates a root process (no parent) in the lowest free pid slot,
// running prog with a fresh address space rooted at "/". The first
// Spawn on a new Kernel gets PID 1.
func (k *Kernel) Spawn(prog Program) (*Process, defs.Err_t) {
	if err := k.Procs.Take(1); err != 0 {
		return nil, -defs.EAGAIN
	}
	pid, err := k.allocPid()
	if err != 0 {
		k.Procs.Give(1)
		return nil, err
	}
	as, err := vm.NewAs(k.Pager)
	if err != 0 {
		k.Procs.Give(1)
		return nil, err
	}
	p := newProcess(pid, 0, as, fd.MkRootCwd(), prog)
	p.Acc.Start(time.Now())

	k.mu.Lock()
	k.table[pid] = p
	k.mu.Unlock()
	k.enqueue(pid)

	return p, 0
}

// Start hands the very first turn to pid and returns without waiting
// for it to run (the turn channel is buffered). internal/kernel's
// System.Spawn calls it after Spawn(prog) and launching Run(p).
func (k *Kernel) Start(pid defs.Pid_t) {
	k.mu.Lock()
	k.current = pid
	k.mu.Unlock()
	p := k.Table(pid)
	if p == nil {
		return
	}
	p.turn <- struct{}{}
}

// yield is called by Ctx.Raw immediately after a call returns,
// to hand the CPU to the next runnable process. It never blocks.
func (k *Kernel) yield(from defs.Pid_t) {
	k.mu.Lock()
	defer k.mu.Unlock()

	n := len(k.ready)
	for i := 0; i < n; i++ {
		next := k.ready[0]
		k.ready = append(k.ready[1:], next)
		if next == from {
			continue
		}
		p := k.table[next]
		if p == nil || p.State() != StateRunnable {
			continue
		}
		k.current = next
		p.turn <- struct{}{}
		return
	}
	// Nobody else is runnable; let from keep running immediately.
	if p := k.table[from]; p != nil && p.State() == StateRunnable {
		k.current = from
		p.turn <- struct{}{}
	}
}

// enqueue adds pid to the tail of the ready queue.
func (k *Kernel) enqueue(pid defs.Pid_t) {
	k.mu.Lock()
	k.ready = append(k.ready, pid)
	k.mu.Unlock()
}

// dequeue removes pid from the ready queue, if present (used when a
// process blocks or exits between turns).
func (k *Kernel) dequeue(pid defs.Pid_t) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for i, p := range k.ready {
		if p == pid {
			k.ready = append(k.ready[:i], k.ready[i+1:]...)
			return
		}
	}
}
