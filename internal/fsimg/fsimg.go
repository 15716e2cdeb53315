// Package fsimg implements the kernel's read-only, in-RAM file system
// image: a flat tree of directory and file nodes built once at boot
// and never mutated afterward (spec.md Non-goals exclude writable
// storage). Grounded on original_source/filesystem.c and
// original_source/include/filesystem.h's packed directory_entry/
// directory records, with the packed-field accessor style borrowed
// from biscuit/src/fs/super.go.
package fsimg

import (
	"sort"

	"novakern/internal/bpath"
	"novakern/internal/defs"
	"novakern/internal/stat"
	"novakern/internal/util"
)

// NodeType tags a Node as a file or a directory, matching
// filesystem.h's directory_entry.type field.
type NodeType uint8

const (
	TypeFile NodeType = 1
	TypeDir  NodeType = 2
)

// Node is one entry in the image tree.
type Node struct {
	Name     string
	Type     NodeType
	Mode     uint32
	Mtime    uint64
	Data     []byte  // file contents; nil for directories
	Children []*Node // directory entries, nil for files
}

// Image is the whole read-only file system, rooted at "/".
type Image struct {
	Root *Node
}

// NewImage returns an empty image with just a root directory.
func NewImage() *Image {
	return &Image{Root: &Node{Name: "/", Type: TypeDir, Mode: 0755}}
}

func (n *Node) child(name string) *Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Lookup resolves a canonical absolute path to its Node.
func (img *Image) Lookup(path string) (*Node, defs.Err_t) {
	if path == "/" {
		return img.Root, 0
	}
	cur := img.Root
	for _, comp := range bpath.Components(path) {
		if cur.Type != TypeDir {
			return nil, -defs.ENOTDIR
		}
		next := cur.child(comp)
		if next == nil {
			return nil, -defs.ENOENT
		}
		cur = next
	}
	return cur, 0
}

// ReadFile returns the full contents of the file at path.
func (img *Image) ReadFile(path string) ([]byte, defs.Err_t) {
	n, err := img.Lookup(path)
	if err != 0 {
		return nil, err
	}
	if n.Type != TypeFile {
		return nil, -defs.EISDIR
	}
	return n.Data, 0
}

// Stat fills s with the metadata for the node at path.
func (img *Image) Stat(path string, s *stat.Stat_t) defs.Err_t {
	n, err := img.Lookup(path)
	if err != 0 {
		return err
	}
	return statNode(n, s)
}

func statNode(n *Node, s *stat.Stat_t) defs.Err_t {
	mode := n.Mode
	switch n.Type {
	case TypeDir:
		mode |= stat.ModeDir
	case TypeFile:
		mode |= stat.ModeFile
	}
	s.Wmode(mode)
	s.Wmtime(n.Mtime)
	if n.Type == TypeFile {
		s.Wsize(uint64(len(n.Data)))
	} else {
		s.Wsize(uint64(len(n.Children)))
	}
	return 0
}

// RecordSize is the packed byte length of one directory_entry record:
// size(8) + type(1) + location(4) + mode(4) + mtime(8) + name(256).
const RecordSize = 8 + 1 + 4 + 4 + 8 + 256

const nameFieldLen = 256

// GetDents packs the directory at path's entries into the
// count-then-records wire format getdent(2) copies into a process's
// buffer. location is the child's index within its own parent,
// matching filesystem.h's flat on-disk addressing scheme simplified
// to an in-memory index.
func (img *Image) GetDents(path string) ([]byte, defs.Err_t) {
	n, err := img.Lookup(path)
	if err != 0 {
		return nil, err
	}
	if n.Type != TypeDir {
		return nil, -defs.ENOTDIR
	}

	children := make([]*Node, len(n.Children))
	copy(children, n.Children)
	sort.Slice(children, func(i, j int) bool { return children[i].Name < children[j].Name })

	out := make([]byte, 4+RecordSize*len(children))
	util.Writen32(out, 0, uint32(len(children)))
	off := 4
	for i, c := range children {
		var size uint64
		if c.Type == TypeFile {
			size = uint64(len(c.Data))
		} else {
			size = uint64(len(c.Children))
		}
		util.Writen64(out, off, size)
		out[off+8] = byte(c.Type)
		util.Writen32(out, off+9, uint32(i))
		util.Writen32(out, off+13, c.Mode)
		util.Writen64(out, off+17, c.Mtime)
		nameOff := off + 25
		n := copy(out[nameOff:nameOff+nameFieldLen], c.Name)
		for j := n; j < nameFieldLen; j++ {
			out[nameOff+j] = 0
		}
		off += RecordSize
	}
	return out, 0
}
