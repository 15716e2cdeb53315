package kernel

import "novakern/internal/fsimg"

// DefaultImage builds the read-only file system image cmd/novakern
// boots against: /bin/pwd, cat, ls, sh, kill, mptest and testbuddy plus
// /etc/motd, stood in for here
// as directory entries a Program can stat/open/getdent against even
// though their actual behavior is supplied by registered Go Programs,
// not by interpreting file bytes.
func DefaultImage() *fsimg.Image {
	// The file contents are placeholder marker bytes, not executable
	// code: the Program a path resolves to is supplied by the kernel's
	// Registry (see internal/proc.Registry), not by interpreting these
	// bytes. Non-empty contents just let stat(2)'s size field exercise
	// normal, nonzero values the way a real binary's would.
	b := fsimg.NewBuilder()
	b.AddFile("/bin/pwd", []byte("novakern-pwd"), 0100755)
	b.AddFile("/bin/cat", []byte("novakern-cat"), 0100755)
	b.AddFile("/bin/ls", []byte("novakern-ls"), 0100755)
	b.AddFile("/bin/sh", []byte("novakern-sh"), 0100755)
	b.AddFile("/bin/kill", []byte("novakern-kill"), 0100755)
	b.AddFile("/bin/mptest", []byte("novakern-mptest"), 0100755)
	b.AddFile("/bin/testbuddy", []byte("novakern-testbuddy"), 0100755)
	b.AddFile("/etc/motd", []byte("welcome to novakern\n"), 0100644)
	return b.Build()
}
