package proc

import (
	"time"

	"novakern/internal/defs"
	"novakern/internal/vm"
)

// OrphanParent is the sentinel parent pid an orphaned child is
// reparented to once its real parent exits, matching the teacher's
// "init reaps orphans" convention without requiring a real PID-1 init
// process to exist.
const OrphanParent = defs.Pid_t(-1)

// Fork duplicates the calling process's address space and open files
// into a new process table slot, which begins running childProg in
// its own goroutine. Real fork(2) returns twice into the same call
// stack; since a Go goroutine's stack cannot be duplicated, the
// simulation asks the caller which closure the child should run
// instead of replaying the parent's Program from its own entry point
// (SPEC_FULL.md §0) — the child still gets a fully independent,
// fully-copied address space and fd table, matching every observable
// fork(2) contract except how the "child code path" is spelled in Go.
func (c *Ctx) Fork(childProg Program) (defs.Pid_t, defs.Err_t) {
	k, parent := c.k, c.p

	if err := k.Procs.Take(1); err != 0 {
		return 0, -defs.EAGAIN
	}
	pid, err := k.allocPid()
	if err != 0 {
		k.Procs.Give(1)
		return 0, err
	}
	childAs, err := parent.As.Fork()
	if err != 0 {
		k.Procs.Give(1)
		return 0, err
	}

	child := newProcess(pid, parent.Pid, childAs, parent.Cwd.Clone(), childProg)
	child.Acc.Start(time.Now())
	for i, f := range parent.Fds {
		if f != nil {
			child.Fds[i] = f.Dup()
		}
	}
	k.mu.Lock()
	k.table[pid] = child
	k.mu.Unlock()
	parent.addChild(pid)
	k.enqueue(pid)
	go k.Run(child)

	k.yield(parent.Pid)
	<-parent.turn
	return pid, 0
}

// Vfork is an alias of Fork, per spec.md §9's explicit resolution of
// the vfork open question.
func (c *Ctx) Vfork(childProg Program) (defs.Pid_t, defs.Err_t) {
	return c.Fork(childProg)
}

// Execve loads prog (looked up by path in the kernel's Registry) into
// the calling process: a fresh, empty address space replaces the old
// one, and the Program's Go stack is unwound and restarted at prog's
// entry point, the simulation's substitute for discarding the old
// text/data segments and jumping to a new entry (SPEC_FULL.md §0).
// Like real execve(2), it never returns on success.
func (c *Ctx) Execve(path string, argv []string) defs.Err_t {
	prog, ok := c.k.Reg.Get(path)
	if !ok {
		return -defs.ENOENT
	}
	as, err := vm.NewAs(c.k.Pager)
	if err != 0 {
		return err
	}
	c.p.As = as

	// No yield here: the calling process still holds its turn across
	// the restart below, and Run's loop must not wait for a second
	// grant that nothing would ever send.
	panic(execRestart{prog: prog})
}

// Exit marks the calling process a zombie, reparents its children to
// OrphanParent, and wakes a parent blocked in waitpid. The calling
// Program should return immediately afterward; Run's driver loop ends
// the process's goroutine once the Program returns.
func (c *Ctx) Exit(code int) {
	c.k.ExitProcess(c.p.Pid, code)
	c.k.yield(c.p.Pid)
}

// ExitProcess transitions pid to StateZombie, closes every open file
// descriptor and tears down the address space, reparents its children,
// and wakes a waiting parent. A zombie keeps only its pid, exit code,
// and accounting; every other resource is reclaimed here.
func (k *Kernel) ExitProcess(pid defs.Pid_t, code int) {
	p := k.Table(pid)
	if p == nil || p.State() == StateZombie {
		return
	}
	p.Acc.Finish(time.Now())

	p.mu.Lock()
	p.state = StateZombie
	p.exitCode = code
	p.mu.Unlock()

	for i, f := range p.Fds {
		if f != nil {
			f.Close()
			p.Fds[i] = nil
		}
	}
	p.As.Destroy()

	k.dequeue(pid)
	k.Procs.Give(1)

	for _, c := range p.Children() {
		if cp := k.Table(c); cp != nil {
			cp.Parent = OrphanParent
		}
	}

	if p.Parent > 0 {
		k.Wake(p.Parent)
	}
}

// Waitpid looks for a zombie child of pid matching target (-1 for
// any), reaping and returning it. If none is ready: ECHILD if pid has
// no children at all, EAGAIN if !block, or ESUSPEND to signal the
// caller should park and retry (spec.md §9 "suspension as sentinel").
func (k *Kernel) Waitpid(pid defs.Pid_t, target defs.Pid_t, block bool) (defs.Pid_t, int, defs.Err_t) {
	p := k.Table(pid)
	if p == nil {
		return 0, 0, -defs.ESRCH
	}
	children := p.Children()
	for _, c := range children {
		if target != -1 && target != c {
			continue
		}
		cp := k.Table(c)
		if cp == nil {
			continue
		}
		if cp.State() == StateZombie {
			code := cp.ExitCode()
			p.Acc.Add(cp.Acc)
			p.removeChild(c)
			k.mu.Lock()
			k.table[c] = nil
			k.mu.Unlock()
			return c, code, 0
		}
	}
	if len(children) == 0 {
		return 0, 0, -defs.ECHILD
	}
	if !block {
		return 0, 0, -defs.EAGAIN
	}
	return 0, 0, defs.ESUSPEND
}

// Kill forces target directly into the zombie state, through the same
// ExitProcess cleanup an ordinary exit runs. novakern has no signal
// delivery (spec.md Non-goals), so Kill is the bluntest available
// instrument: an immediate, unconditional exit(-1).
func (k *Kernel) Kill(target defs.Pid_t) defs.Err_t {
	p := k.Table(target)
	if p == nil {
		return -defs.ESRCH
	}
	k.ExitProcess(target, -1)
	k.Wake(target)
	return 0
}

// Wake signals pid's resume channel, for a process parked after an
// ESUSPEND result (a blocked pipe read, mailbox receive, or waitpid).
// A no-op if pid isn't currently parked.
func (k *Kernel) Wake(pid defs.Pid_t) {
	p := k.Table(pid)
	if p == nil {
		return
	}
	select {
	case p.resume <- struct{}{}:
	default:
	}
}

