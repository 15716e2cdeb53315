package kernel_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"novakern/internal/defs"
	"novakern/internal/kernel"
	"novakern/internal/proc"
)

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestSpawnWiresConsoleAndRunsToZombie(t *testing.T) {
	sys := kernel.New(kernel.DefaultConfig(), kernel.DefaultImage())
	sys.Log.SetOutput(nopWriter{})

	pid, wait, err := sys.Spawn("/sbin/init", func(ctx *proc.Ctx) {
		ctx.Exit(5)
	})
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, defs.Pid_t(1), pid)

	done := make(chan struct{})
	go func() { wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("process did not complete")
	}

	p := sys.K.Table(pid)
	require.Equal(t, proc.StateZombie, p.State())
	require.Equal(t, 5, p.ExitCode())

	sys.Shutdown(pid) // must not panic on a still-resolvable pid
}

// TestSequentialSpawnsEachGetATurn checks that a second Spawn, issued
// only after the first root process's wait function has returned,
// still runs to completion: Spawn hands out a turn on every call, and
// nothing else would ever grant the second pid its first one.
func TestSequentialSpawnsEachGetATurn(t *testing.T) {
	sys := kernel.New(kernel.DefaultConfig(), kernel.DefaultImage())
	sys.Log.SetOutput(nopWriter{})

	_, wait1, err := sys.Spawn("/sbin/init", func(ctx *proc.Ctx) {
		ctx.Exit(0)
	})
	require.Equal(t, defs.Err_t(0), err)
	wait1()

	pid2, wait2, err := sys.Spawn("/sbin/second", func(ctx *proc.Ctx) {
		ctx.Exit(9)
	})
	require.Equal(t, defs.Err_t(0), err)
	wait2()

	p := sys.K.Table(pid2)
	require.Equal(t, proc.StateZombie, p.State())
	require.Equal(t, 9, p.ExitCode())
}

func TestDefaultImageExposesBinariesAndMotd(t *testing.T) {
	img := kernel.DefaultImage()

	for _, path := range []string{"/bin/pwd", "/bin/cat", "/bin/ls", "/bin/sh", "/etc/motd"} {
		data, err := img.ReadFile(path)
		require.Equal(t, defs.Err_t(0), err, "expected %s to exist", path)
		require.NotEmpty(t, data, "expected %s to have nonzero size", path)
	}
}
