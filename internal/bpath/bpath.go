// Package bpath resolves a path (absolute or relative to a current
// working directory) into a canonical, absolute, slash-separated form
// with "." and ".." components removed, the way the kernel's path walk
// needs before it can traverse the read-only FS image.
package bpath

import "strings"

// Canonicalize resolves path against cwd (itself assumed already
// canonical and absolute) and returns a canonical absolute path: no
// ".", no "..", no empty components, no trailing slash unless the
// result is "/".
func Canonicalize(cwd, path string) string {
	var base string
	if strings.HasPrefix(path, "/") {
		base = path
	} else {
		base = cwd + "/" + path
	}

	parts := strings.Split(base, "/")
	stack := make([]string, 0, len(parts))
	for _, p := range parts {
		switch p {
		case "", ".":
			continue
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		default:
			stack = append(stack, p)
		}
	}

	if len(stack) == 0 {
		return "/"
	}
	return "/" + strings.Join(stack, "/")
}

// Split divides a canonical path into its parent directory and final
// component. Split("/") returns ("/", "").
func Split(path string) (dir, name string) {
	if path == "/" {
		return "/", ""
	}
	i := strings.LastIndexByte(path, '/')
	if i == 0 {
		return "/", path[1:]
	}
	return path[:i], path[i+1:]
}

// Components splits a canonical absolute path into its non-empty
// components, in traversal order.
func Components(path string) []string {
	parts := strings.Split(path, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
