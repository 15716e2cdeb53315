package proc

import (
	"sync"
	"time"

	"novakern/internal/defs"
)

// Program is a process's entry point: the simulation's substitute for
// a loaded executable's machine code, given a Ctx through which it
// issues every syscall. This is the direct generalization of the
// teacher's start_process(void (*start_address)(void)) function
// pointer entry.
type Program func(ctx *Ctx)

// Ctx is the single handle a running Program uses to reach the
// kernel; internal/ulibc builds the familiar libc-shaped wrappers
// (Fork, Read, Write, ...) on top of Ctx.Raw.
type Ctx struct {
	k *Kernel
	p *Process
}

// Pid returns the process this Ctx belongs to.
func (c *Ctx) Pid() defs.Pid_t { return c.p.Pid }

// Process returns the underlying process table entry.
func (c *Ctx) Process() *Process { return c.p }

// Kernel returns the owning kernel.
func (c *Ctx) Kernel() *Kernel { return c.k }

// execRestart unwinds the current Program's Go stack via panic/recover
// so the process's goroutine can restart at a freshly loaded Program,
// exactly as execve discards a process's old text and starts fresh at
// a new entry point — the simulation's substitute for replacing a
// process image in place, since Go offers no way to splice a running
// goroutine's call stack otherwise.
type execRestart struct {
	prog Program
}

// Raw sends num/args through the kernel's single dispatch channel and
// blocks until it is this process's turn again. If the dispatcher
// signals ESUSPEND, Raw parks the caller on its resume channel and
// retries the same call once woken, modeling "suspension as a
// sentinel return" (spec.md §9) without giving the calling Program a
// chance to observe the sentinel itself.
func (c *Ctx) Raw(num defs.Err_t, args [6]uint64) (uint64, defs.Err_t) {
	for {
		c.p.Acc.EnterSyscall(time.Now())
		reply := make(chan Result, 1)
		c.k.send(CallMsg{Pid: c.p.Pid, Num: num, Args: args, Reply: reply})
		res := <-reply
		c.p.Acc.LeaveSyscall(time.Now())

		if res.Err == defs.ESUSPEND {
			c.p.setState(StateSuspended)
			c.k.dequeue(c.p.Pid)
			c.k.yield(c.p.Pid)
			<-c.p.resume
			c.p.setState(StateRunnable)
			c.k.enqueue(c.p.Pid)
			continue
		}

		c.k.yield(c.p.Pid)
		<-c.p.turn
		return res.Ret, res.Err
	}
}

// Registry maps an executable path to the Program that simulates
// running it, the path-keyed substitute for decoding machine code
// described in SPEC_FULL.md §0. Lookups use the path string only; the
// file system image is not consulted.
type Registry struct {
	mu    sync.Mutex
	progs map[string]Program
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{progs: make(map[string]Program)}
}

// Add registers prog as the executable content at path.
func (r *Registry) Add(path string, prog Program) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progs[path] = prog
}

// Get looks up the Program registered for path.
func (r *Registry) Get(path string) (Program, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.progs[path]
	return p, ok
}

// Run drives p's Program to completion (or until it executes into a
// new one), on the calling goroutine. internal/kernel's System.Spawn
// and Ctx.Fork each launch one Run call per process they create.
//
// A process only ever receives one turn grant per continuous stretch
// of running: execve unwinds and restarts the Program in place without
// relinquishing the CPU, the same way a real execve(2) replaces a
// process's image without it ever leaving the run queue. So only the
// very first iteration waits on p.turn; an exec-restarted iteration
// picks up the turn the process already holds.
func (k *Kernel) Run(p *Process) {
	prog := p.prog
	needTurn := true
	for {
		restarted := func() (r Program) {
			defer func() {
				if rec := recover(); rec != nil {
					if es, ok := rec.(execRestart); ok {
						r = es.prog
						return
					}
					panic(rec)
				}
			}()
			if needTurn {
				<-p.turn
			}
			ctx := &Ctx{k: k, p: p}
			prog(ctx)
			return nil
		}()
		if restarted == nil {
			return
		}
		prog = restarted
		needTurn = false
	}
}
