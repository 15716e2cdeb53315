package proc

import (
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"novakern/internal/defs"
	"novakern/internal/vm"
)

// miniDispatch is a tiny stand-in for internal/syscall's Gate, handling
// just enough syscall numbers (getpid, waitpid) to
// exercise the scheduler and process lifecycle without pulling in the
// whole syscall package (which itself depends on proc, so a real Gate
// can't be constructed from inside proc's own tests without a cycle).
func miniDispatch(t *testing.T, k *Kernel, stop <-chan struct{}) {
	t.Helper()
	for {
		select {
		case msg := <-k.Calls():
			var res Result
			switch msg.Num {
			case defs.SYS_GETPID:
				res = Result{Ret: uint64(uint32(msg.Pid))}
			case defs.SYS_WAITPID:
				target := defs.Pid_t(int32(uint32(msg.Args[0])))
				block := msg.Args[1] != 0
				pid, code, err := k.Waitpid(msg.Pid, target, block)
				res = Result{Ret: uint64(uint32(pid)) | uint64(uint32(int32(code)))<<32, Err: err}
			default:
				res = Result{Err: -defs.ENOSYS}
			}
			msg.Reply <- res
		case <-stop:
			return
		}
	}
}

func testKernel() *Kernel {
	log := logrus.New()
	log.SetOutput(nopWriter{})
	return NewKernel(make([]byte, defs.KernelArenaSize), log)
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestSpawnRunsToCompletion(t *testing.T) {
	k := testKernel()
	stop := make(chan struct{})
	go miniDispatch(t, k, stop)
	defer close(stop)

	done := make(chan struct{})
	p, err := k.Spawn(func(ctx *Ctx) {
		pid := ctx.Getpid()
		require.Equal(t, defs.Pid_t(1), pid)
		ctx.Exit(7)
	})
	require.Equal(t, defs.Err_t(0), err)

	go func() {
		k.Run(p)
		close(done)
	}()
	k.Start(p.Pid)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("process did not complete")
	}
	require.Equal(t, StateZombie, p.State())
	require.Equal(t, 7, p.ExitCode())
}

func TestForkChildGetsIndependentAddressSpace(t *testing.T) {
	k := testKernel()
	stop := make(chan struct{})
	go miniDispatch(t, k, stop)
	defer close(stop)

	parentDone := make(chan struct{})
	var childPid defs.Pid_t

	parent, err := k.Spawn(func(ctx *Ctx) {
		pa, aerr := k.Pager.Alloc()
		require.Equal(t, defs.Err_t(0), aerr)
		require.Equal(t, defs.Err_t(0), ctx.Process().As.Map(0x1000, pa, vm.PTE_P|vm.PTE_W|vm.PTE_U))
		require.Equal(t, defs.Err_t(0), ctx.Process().As.Write(0x1000, []byte{1, 2, 3, 4}))

		cpid, ferr := ctx.Fork(func(ctx *Ctx) {
			buf, terr := ctx.Process().As.Translate(0x1000, 4, false)
			require.Equal(t, defs.Err_t(0), terr)
			require.Equal(t, []byte{1, 2, 3, 4}, buf)
			require.Equal(t, defs.Err_t(0), ctx.Process().As.Write(0x1000, []byte{9, 9, 9, 9}))
			ctx.Exit(0)
		})
		require.Equal(t, defs.Err_t(0), ferr)
		childPid = cpid

		_, code, werr := ctx.Waitpid(cpid, true)
		require.Equal(t, defs.Err_t(0), werr)
		require.Equal(t, 0, code)

		buf, terr := ctx.Process().As.Translate(0x1000, 4, false)
		require.Equal(t, defs.Err_t(0), terr)
		require.Equal(t, []byte{1, 2, 3, 4}, buf, "parent's page must be untouched by the child's write")
		ctx.Exit(0)
	})
	require.Equal(t, defs.Err_t(0), err)

	go func() {
		k.Run(parent)
		close(parentDone)
	}()
	k.Start(parent.Pid)

	select {
	case <-parentDone:
	case <-time.After(2 * time.Second):
		t.Fatal("parent did not complete")
	}
	require.Equal(t, defs.Pid_t(2), childPid)
	require.Equal(t, StateZombie, parent.State())
	require.Nil(t, k.Table(childPid), "waitpid must free the reaped child's slot")
}

// TestOrphanedChildReparentsOnParentExit relies on the scheduler's
// strict turn handoff rather than any extra test-side synchronization:
// the child's first syscall (Getpid) yields control back to the
// parent before the child's Program ever calls Exit, so by the time
// the parent's own Exit has run (observed via parentDone closing) the
// reparenting in ExitProcess has already happened-before on the same
// goroutine, race-free to inspect.
func TestOrphanedChildReparentsOnParentExit(t *testing.T) {
	k := testKernel()
	stop := make(chan struct{})
	go miniDispatch(t, k, stop)
	defer close(stop)

	parentDone := make(chan struct{})

	parent, err := k.Spawn(func(ctx *Ctx) {
		_, ferr := ctx.Fork(func(ctx *Ctx) {
			ctx.Getpid()
			ctx.Exit(3)
		})
		require.Equal(t, defs.Err_t(0), ferr)
		ctx.Exit(0)
	})
	require.Equal(t, defs.Err_t(0), err)

	go func() {
		k.Run(parent)
		close(parentDone)
	}()
	k.Start(parent.Pid)

	select {
	case <-parentDone:
	case <-time.After(time.Second):
		t.Fatal("parent did not complete")
	}

	child := k.Table(defs.Pid_t(2))
	require.NotNil(t, child)
	require.Equal(t, OrphanParent, child.Parent)

	// The child's own goroutine (launched inside Ctx.Fork) is still
	// driving it toward Exit; wait for that rather than calling Run a
	// second time, which would race on the same turn channel.
	require.Eventually(t, func() bool {
		return child.State() == StateZombie
	}, time.Second, time.Millisecond)
}

// TestProcessTableExhaustionReturnsEAGAIN drives the shared process-table
// counter (the same k.Procs/allocPid pair Fork uses) to exhaustion
// through repeated Spawn calls, the process-table analogue of
// internal/mem's TestBuddyExhaustion. spec.md:199 carves fork/process
// creation out of the generic ENOMEM-on-exhaustion rule: it must report
// EAGAIN instead.
func TestProcessTableExhaustionReturnsEAGAIN(t *testing.T) {
	k := testKernel()

	n := 0
	var last defs.Err_t
	for {
		_, err := k.Spawn(func(ctx *Ctx) {})
		if err != 0 {
			last = err
			break
		}
		n++
	}
	require.Equal(t, -defs.EAGAIN, last)
	require.Equal(t, int(defs.MaxProcs-1), n, "process table should hold exactly MaxProcs-1 slots (pid 0 reserved)")
}

func TestRoundRobinSchedulerAlternatesTurns(t *testing.T) {
	k := testKernel()
	stop := make(chan struct{})
	go miniDispatch(t, k, stop)
	defer close(stop)

	var mu sync.Mutex
	var order []string

	make2 := func(name string, steps int) Program {
		return func(ctx *Ctx) {
			for i := 0; i < steps; i++ {
				mu.Lock()
				order = append(order, name)
				mu.Unlock()
				ctx.Getpid() // forces a Raw round-trip, which yields the CPU
			}
			ctx.Exit(0)
		}
	}

	doneA := make(chan struct{})
	doneB := make(chan struct{})

	a, err := k.Spawn(make2("A", 3))
	require.Equal(t, defs.Err_t(0), err)
	go func() { k.Run(a); close(doneA) }()

	b, err := k.Spawn(make2("B", 3))
	require.Equal(t, defs.Err_t(0), err)
	go func() { k.Run(b); close(doneB) }()

	k.Start(a.Pid)

	select {
	case <-doneA:
	case <-time.After(time.Second):
		t.Fatal("A did not complete")
	}
	select {
	case <-doneB:
	case <-time.After(time.Second):
		t.Fatal("B did not complete")
	}

	require.Len(t, order, 6)
	require.Contains(t, order, "A")
	require.Contains(t, order, "B")
	require.Equal(t, []string{"A", "B", "A", "B", "A", "B"}, order)
}
