package fsimg

import "novakern/internal/bpath"

// Builder assembles an Image in memory. It exists for tests and for
// cmd/novakern's boot harness; novakern has no mkfs-style tool that
// writes an image to a backing store, since spec.md's Non-goals
// exclude writable storage entirely.
type Builder struct {
	img *Image
}

// NewBuilder starts a new image with an empty root directory.
func NewBuilder() *Builder {
	return &Builder{img: NewImage()}
}

func (b *Builder) mkdirAll(path string) *Node {
	cur := b.img.Root
	if path == "/" {
		return cur
	}
	for _, comp := range bpath.Components(path) {
		next := cur.child(comp)
		if next == nil {
			next = &Node{Name: comp, Type: TypeDir, Mode: 0755}
			cur.Children = append(cur.Children, next)
		}
		cur = next
	}
	return cur
}

// AddDir ensures path exists as a directory, creating intermediate
// directories as needed.
func (b *Builder) AddDir(path string, mode uint32) *Builder {
	d := b.mkdirAll(path)
	d.Mode = mode
	return b
}

// AddFile creates a file at path (creating its parent directories),
// with the given contents and mode.
func (b *Builder) AddFile(path string, data []byte, mode uint32) *Builder {
	dir, name := bpath.Split(path)
	d := b.mkdirAll(dir)
	d.Children = append(d.Children, &Node{
		Name: name,
		Type: TypeFile,
		Mode: mode,
		Data: append([]byte(nil), data...),
	})
	return b
}

// Build returns the assembled image.
func (b *Builder) Build() *Image {
	return b.img
}
