package fsimg

import (
	"testing"

	"github.com/stretchr/testify/require"

	"novakern/internal/defs"
	"novakern/internal/stat"
	"novakern/internal/util"
)

func testImage() *Image {
	return NewBuilder().
		AddDir("/bin", 0755).
		AddFile("/bin/cat", []byte("cat-binary"), 0755).
		AddFile("/bin/pwd", []byte("pwd-binary"), 0755).
		AddDir("/etc", 0755).
		AddFile("/etc/motd", []byte("hello"), 0644).
		Build()
}

func TestLookupFileAndDir(t *testing.T) {
	img := testImage()

	n, err := img.Lookup("/bin/cat")
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, TypeFile, n.Type)

	n, err = img.Lookup("/etc")
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, TypeDir, n.Type)
}

func TestLookupMissingReturnsENOENT(t *testing.T) {
	img := testImage()
	_, err := img.Lookup("/nope")
	require.Equal(t, -defs.ENOENT, err)
}

func TestReadFileOnDirectoryReturnsEISDIR(t *testing.T) {
	img := testImage()
	_, err := img.ReadFile("/etc")
	require.Equal(t, -defs.EISDIR, err)
}

func TestStatFile(t *testing.T) {
	img := testImage()
	var s stat.Stat_t
	require.Equal(t, defs.Err_t(0), img.Stat("/etc/motd", &s))
	require.Equal(t, uint64(len("hello")), s.Size())
	require.True(t, s.Mode()&stat.ModeFile != 0)
}

func TestGetDentsListsChildrenSorted(t *testing.T) {
	img := testImage()
	buf, err := img.GetDents("/bin")
	require.Equal(t, defs.Err_t(0), err)

	count := util.Readn32(buf, 0)
	require.Equal(t, uint32(2), count)

	off := 4
	name0 := string(trimNul(buf[off+25 : off+25+256]))
	require.Equal(t, "cat", name0)
	off += RecordSize
	name1 := string(trimNul(buf[off+25 : off+25+256]))
	require.Equal(t, "pwd", name1)
}

func TestGetDentsOnFileReturnsENOTDIR(t *testing.T) {
	img := testImage()
	_, err := img.GetDents("/bin/cat")
	require.Equal(t, -defs.ENOTDIR, err)
}

func trimNul(b []byte) []byte {
	for i, c := range b {
		if c == 0 {
			return b[:i]
		}
	}
	return b
}
