// Package kernel wires internal/proc's process table and scheduler,
// internal/syscall's dispatch gate, and internal/fsimg's read-only
// file system image into one bootable system, and drives it to
// completion. This is novakern's stand-in for the teacher's
// bootloader-to-main-to-scheduler handoff: there is no real hardware
// to jump to, so New/Spawn play the part of the bootloader, kernel
// init, and scheduler idle loop all at once.
package kernel

import (
	"github.com/sirupsen/logrus"

	"novakern/internal/defs"
	"novakern/internal/fd"
	"novakern/internal/fsimg"
	"novakern/internal/proc"
	"novakern/internal/syscall"
	"novakern/internal/ulibc"
)

// Config selects the boot-time tunables a real kernel would take from
// the bootloader's command line / multiboot info.
type Config struct {
	// ArenaSize is the size in bytes of the simulated physical RAM
	// arena backing both the buddy heap and the page allocator.
	ArenaSize int
	// KeyboardCapacity bounds each console's input circbuf.
	KeyboardCapacity int
	// LogLevel controls logrus's verbosity; zero value uses Info.
	LogLevel logrus.Level
}

// DefaultConfig sizes the arena from defs.KernelArenaSize and logs at
// Info level.
func DefaultConfig() Config {
	return Config{
		ArenaSize:        defs.KernelArenaSize,
		KeyboardCapacity: 256,
		LogLevel:         logrus.InfoLevel,
	}
}

// System is a fully wired, running novakern instance: one kernel, one
// syscall gate goroutine, one file system image.
type System struct {
	Log   *logrus.Logger
	Image *fsimg.Image
	K     *proc.Kernel
	Gate  *syscall.Gate
	Heap  *ulibc.Heap

	cfg Config
}

// New boots a System: allocates the physical arena, constructs the
// kernel's allocators and process table, and starts the single
// syscall dispatch goroutine. No process is running yet; call Spawn.
func New(cfg Config, img *fsimg.Image) *System {
	log := logrus.New()
	log.SetLevel(cfg.LogLevel)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	arena := make([]byte, cfg.ArenaSize)
	k := proc.NewKernel(arena, log)
	gate := syscall.NewGate(k, img, log)
	heap := ulibc.NewHeap(k.Buddy)

	sys := &System{Log: log, Image: img, K: k, Gate: gate, Heap: heap, cfg: cfg}

	go gate.Run()
	log.WithFields(logrus.Fields{
		"arena_bytes": cfg.ArenaSize,
		"max_procs":   defs.MaxProcs,
	}).Info("novakern booted")

	return sys
}

// Spawn registers name in the kernel's executable registry (first
// spawn only; later forks/execs of the same path reuse it), starts a
// new process running prog, and wires fds 0/1/2 to a fresh console.
// It returns the new pid and a function that blocks until that
// process's goroutine has run to completion (exited or replaced by
// execve and then exited).
//
// Spawn always hands the new pid a turn via Kernel.Start. That is
// safe and necessary for sequential boots (spawn, wait for it to
// finish, spawn the next root process) since nothing else will ever
// grant the new pid its first turn otherwise; callers must not call
// Spawn again before a prior Spawn's wait function has returned; doing
// so would hand out two turns while a process is still genuinely
// running, racing two goroutines for the same CPU.
func (s *System) Spawn(name string, prog proc.Program) (defs.Pid_t, func(), defs.Err_t) {
	if _, ok := s.K.Reg.Get(name); !ok {
		s.K.Reg.Add(name, prog)
	}

	p, err := s.K.Spawn(prog)
	if err != 0 {
		return 0, nil, err
	}

	console, _ := syscall.NewConsoleHandle(s.cfg.KeyboardCapacity)
	file := fd.NewFile(fd.KindScreen, console)
	p.Fds[0] = &fd.Fd_t{File: file, Perms: fd.PermRead}
	file.Ref()
	p.Fds[1] = &fd.Fd_t{File: file, Perms: fd.PermWrite}
	file.Ref()
	p.Fds[2] = &fd.Fd_t{File: file, Perms: fd.PermWrite}

	done := make(chan struct{})
	go func() {
		s.K.Run(p)
		close(done)
	}()

	s.K.Start(p.Pid)
	return p.Pid, func() { <-done }, 0
}

// Shutdown logs pid's final accounting summary, if it is still
// resolvable (it won't be, once a parent has reaped it via waitpid).
// There is no hardware to power off, so this is purely bookkeeping —
// the teacher's halt path likewise just parks the CPU once there is
// nothing left to run.
func (s *System) Shutdown(pid defs.Pid_t) {
	p := s.K.Table(pid)
	if p == nil {
		return
	}
	u, sys := p.Acc.Fetch()
	s.Log.WithFields(logrus.Fields{
		"pid":     pid,
		"user_ns": u,
		"sys_ns":  sys,
	}).Info("process accounting")
}
