// Package stat implements the wire-format stat buffer returned by the
// stat(2) syscall: a fixed-layout packed record, filled in by field
// setters the way the FS image reader and device files populate it.
package stat

import "novakern/internal/util"

// File type bits, as stored in the mode field's high bits.
const (
	ModeFile   = 0100000
	ModeDir    = 0040000
	ModeDevice = 0020000
)

// Size in bytes of the packed on-wire record copied into process memory.
const Size = 36

// Stat_t is the kernel-side representation of a stat(2) result. Fields
// are unexported; callers go through the accessors so the packed byte
// layout stays the only source of truth.
type Stat_t struct {
	dev    uint32
	ino    uint32
	mode   uint32
	size   uint64
	rdev   uint32
	blocks uint32
	mtime  uint64
}

func (s *Stat_t) Wdev(d uint32)      { s.dev = d }
func (s *Stat_t) Wino(i uint32)      { s.ino = i }
func (s *Stat_t) Wmode(m uint32)     { s.mode = m }
func (s *Stat_t) Wsize(sz uint64)    { s.size = sz }
func (s *Stat_t) Wrdev(r uint32)     { s.rdev = r }
func (s *Stat_t) Wblocks(b uint32)   { s.blocks = b }
func (s *Stat_t) Wmtime(t uint64)    { s.mtime = t }

func (s *Stat_t) Dev() uint32    { return s.dev }
func (s *Stat_t) Ino() uint32    { return s.ino }
func (s *Stat_t) Mode() uint32   { return s.mode }
func (s *Stat_t) Size() uint64   { return s.size }
func (s *Stat_t) Rdev() uint32   { return s.rdev }
func (s *Stat_t) Blocks() uint32 { return s.blocks }
func (s *Stat_t) Mtime() uint64  { return s.mtime }

// IsDir reports whether the ModeDir bit is set.
func (s *Stat_t) IsDir() bool { return s.mode&ModeDir != 0 }

// IsDevice reports whether the ModeDevice bit is set.
func (s *Stat_t) IsDevice() bool { return s.mode&ModeDevice != 0 }

// Bytes packs the record into its wire form for copying into a
// process's address space.
func (s *Stat_t) Bytes() []byte {
	b := make([]byte, Size)
	util.Writen32(b, 0, s.dev)
	util.Writen32(b, 4, s.ino)
	util.Writen32(b, 8, s.mode)
	util.Writen64(b, 12, s.size)
	util.Writen32(b, 20, s.rdev)
	util.Writen32(b, 24, s.blocks)
	util.Writen64(b, 28, s.mtime)
	return b
}
