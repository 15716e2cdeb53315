// Package ustr implements the small byte-string helpers novakern uses for
// path components and filenames: a comparable, sliceable string type
// that never needs a round trip through the Go string heap.
package ustr

// Ustr is a raw byte-string, used wherever the kernel handles a
// filename or path component read out of process memory or an FS image
// record.
type Ustr []byte

// MkUstr copies s into a new Ustr.
func MkUstr(s string) Ustr {
	u := make(Ustr, len(s))
	copy(u, s)
	return u
}

// MkUstrDot is the "." path component.
func MkUstrDot() Ustr { return MkUstr(".") }

// MkUstrDotDot is the ".." path component.
func MkUstrDotDot() Ustr { return MkUstr("..") }

// MkUstrRoot is the "/" path component.
func MkUstrRoot() Ustr { return MkUstr("/") }

// Isdot reports whether u is exactly ".".
func (u Ustr) Isdot() bool {
	return len(u) == 1 && u[0] == '.'
}

// Isdotdot reports whether u is exactly "..".
func (u Ustr) Isdotdot() bool {
	return len(u) == 2 && u[0] == '.' && u[1] == '.'
}

// Eq reports whether u and o hold the same bytes.
func (u Ustr) Eq(o Ustr) bool {
	if len(u) != len(o) {
		return false
	}
	for i := range u {
		if u[i] != o[i] {
			return false
		}
	}
	return true
}

// EqStr reports whether u holds exactly the bytes of s.
func (u Ustr) EqStr(s string) bool {
	return string(u) == s
}

// String renders u for logging and error messages.
func (u Ustr) String() string {
	return string(u)
}

// IsAbsolute reports whether u begins with a path separator.
func (u Ustr) IsAbsolute() bool {
	return len(u) > 0 && u[0] == '/'
}

// IndexByte returns the index of the first occurrence of b in u, or -1.
func (u Ustr) IndexByte(b byte) int {
	for i, c := range u {
		if c == b {
			return i
		}
	}
	return -1
}

// Extend appends o's bytes to a copy of u and returns the result.
func (u Ustr) Extend(o Ustr) Ustr {
	n := make(Ustr, 0, len(u)+len(o))
	n = append(n, u...)
	n = append(n, o...)
	return n
}

// ExtendStr appends s's bytes to a copy of u and returns the result.
func (u Ustr) ExtendStr(s string) Ustr {
	return u.Extend(MkUstr(s))
}
