package proc

import "novakern/internal/defs"

// Getpid returns the calling process's pid. Routed through Raw like
// any other numbered syscall, even though the answer never requires
// touching shared kernel state, for uniformity with every other
// syscall's turn-accounting.
func (c *Ctx) Getpid() defs.Pid_t {
	ret, _ := c.Raw(defs.SYS_GETPID, [6]uint64{})
	return defs.Pid_t(ret)
}

// Waitpid waits for target (-1 for any child) to exit, blocking if
// block is true. Retried transparently by Raw on ESUSPEND.
func (c *Ctx) Waitpid(target defs.Pid_t, block bool) (defs.Pid_t, int, defs.Err_t) {
	var blockArg uint64
	if block {
		blockArg = 1
	}
	ret, err := c.Raw(defs.SYS_WAITPID, [6]uint64{uint64(target), blockArg})
	pid := defs.Pid_t(int32(uint32(ret)))
	code := int(int32(uint32(ret >> 32)))
	return pid, code, err
}

// Kill terminates target immediately (no signal delivery modeled —
// spec.md Non-goals).
func (c *Ctx) Kill(target defs.Pid_t) defs.Err_t {
	_, err := c.Raw(defs.SYS_KILL, [6]uint64{uint64(target)})
	return err
}

// Halt requests the kernel shut down after logging a diagnostic,
// matching spec.md §7's "halts the CPU after printing a short
// diagnostic" for unrecoverable conditions.
func (c *Ctx) Halt(reason string) {
	c.Raw(defs.SYS_HALT, [6]uint64{})
}
