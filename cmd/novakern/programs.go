package main

import (
	"fmt"

	"novakern/internal/defs"
	"novakern/internal/proc"
	"novakern/internal/ulibc"
	"novakern/internal/util"
)

// pwdProgram is "/bin/pwd": write the current working directory
// followed by a newline to fd 1, then exit 0. It is the execve target
// of scenario 1.
func pwdProgram(ctx *proc.Ctx) {
	cwd, err := ulibc.Getcwd(ctx)
	if err != 0 {
		ctx.Exit(1)
		return
	}
	ulibc.Write(ctx, 1, []byte(cwd+"\n"))
	ctx.Exit(0)
}

// shellProgram is PID 1: it forks, the child execve's target, and the
// parent waits for it to exit. Scenario 1 ("launch: PID 1 = shell;
// fork→execve(/bin/pwd)").
func shellProgram(target string) proc.Program {
	return func(ctx *proc.Ctx) {
		child, err := ctx.Fork(func(ctx *proc.Ctx) {
			if err := ctx.Execve(target, nil); err != 0 {
				ctx.Exit(1)
			}
		})
		if err != 0 {
			ctx.Exit(1)
			return
		}
		_, code, _ := ctx.Waitpid(child, true)
		ctx.Exit(code)
	}
}

// helloPipeParent forks a child that writes "hello" to a shared pipe
// and exits; the parent reads until EOF and reports what it saw.
// Scenario 2.
func helloPipeParent(ctx *proc.Ctx) {
	r, w, err := ulibc.Pipe(ctx)
	if err != 0 {
		ctx.Exit(1)
		return
	}
	_, err = ctx.Fork(func(ctx *proc.Ctx) {
		ulibc.Close(ctx, r)
		ulibc.Write(ctx, w, []byte("hello"))
		ulibc.Close(ctx, w)
		ctx.Exit(0)
	})
	if err != 0 {
		ctx.Exit(1)
		return
	}
	ulibc.Close(ctx, w)

	var got []byte
	for {
		buf, rerr := ulibc.Read(ctx, r, defs.BufSize)
		if rerr != 0 {
			break
		}
		if len(buf) == 0 {
			break
		}
		got = append(got, buf...)
	}
	ulibc.Write(ctx, 1, append(got, '\n'))
	ctx.Exit(0)
}

// etcListProgram opens /etc as a directory, drains getdent(2) in a
// loop until it reads 0, then shows that reading the same path as a
// regular file yields EISDIR. Scenario 3.
func etcListProgram(ctx *proc.Ctx) {
	dirFd, err := ulibc.OpenDir(ctx, "/etc")
	if err != 0 {
		ctx.Exit(1)
		return
	}
	var names []string
	for {
		buf, rerr := ulibc.Getdents(ctx, dirFd, 4096)
		if rerr != 0 || len(buf) == 0 {
			break
		}
		names = append(names, decodeNames(buf)...)
	}
	ulibc.Close(ctx, dirFd)

	_, oerr := ulibc.Open(ctx, "/etc", 0)
	isDir := oerr == -defs.EISDIR

	ulibc.Write(ctx, 1, []byte(fmt.Sprintf("names=%v isdir_err=%v\n", names, isDir)))
	ctx.Exit(0)
}

// statCatProgram stats /bin/cat and reports size/mode/mtime. Scenario 4.
func statCatProgram(ctx *proc.Ctx) {
	buf, err := ulibc.Stat(ctx, "/bin/cat")
	if err != 0 {
		ctx.Exit(1)
		return
	}
	ulibc.Write(ctx, 1, []byte(fmt.Sprintf("size=%d mode=%o mtime=%d\n",
		util.Readn64(buf, 12), util.Readn32(buf, 8), util.Readn64(buf, 28))))
	ctx.Exit(0)
}

// mailboxSelfProgram sends itself a message, receives it, and then
// shows a second non-blocking receive returns EAGAIN. Scenario 5.
func mailboxSelfProgram(ctx *proc.Ctx) {
	self := ctx.Getpid()
	if err := ulibc.Send(ctx, self, []byte("hi\x00")); err != 0 {
		ctx.Exit(1)
		return
	}
	msg, err := ulibc.Receive(ctx, false)
	if err != 0 {
		ctx.Exit(1)
		return
	}
	_, second := ulibc.Receive(ctx, false)
	ulibc.Write(ctx, 1, []byte(fmt.Sprintf("from=%d data=%q second_err=%d\n", msg.From, msg.Data, second)))
	ctx.Exit(0)
}

// faultProgram dereferences an address no mapping covers, which the
// gate's write/read handlers surface as EFAULT; the Program treats
// any such fault as fatal to itself, mirroring the page-fault handler
// killing the offending process rather than halting the kernel.
// Scenario 6.
func faultProgram(ctx *proc.Ctx) {
	const badAddr = 0xD12F301A
	_, err := ctx.Raw(defs.SYS_WRITE, [6]uint64{1, badAddr, 4})
	if err != 0 {
		ctx.Exit(42)
		return
	}
	ctx.Exit(0)
}

// faultParentProgram forks faultProgram and waits for it, observing a
// non-zero exit code without itself being affected.
func faultParentProgram(ctx *proc.Ctx) {
	child, err := ctx.Fork(faultProgram)
	if err != 0 {
		ctx.Exit(1)
		return
	}
	_, code, _ := ctx.Waitpid(child, true)
	ulibc.Write(ctx, 1, []byte(fmt.Sprintf("child_exit=%d\n", code)))
	ctx.Exit(0)
}

func decodeNames(buf []byte) []string {
	if len(buf) < 4 {
		return nil
	}
	count := int(buf[0]) | int(buf[1])<<8 | int(buf[2])<<16 | int(buf[3])<<24
	const recordSize = 8 + 1 + 4 + 4 + 8 + 256
	var out []string
	off := 4
	for i := 0; i < count && off+recordSize <= len(buf); i++ {
		nameOff := off + 25
		end := nameOff
		for end < nameOff+256 && buf[end] != 0 {
			end++
		}
		out = append(out, string(buf[nameOff:end]))
		off += recordSize
	}
	return out
}
