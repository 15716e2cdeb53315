package pipe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"novakern/internal/defs"
)

func TestWriteThenReadReturnsData(t *testing.T) {
	p := New()
	n, err := p.Write([]byte("hello"))
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, 5, n)

	buf := make([]byte, 5)
	n, err = p.Read(1, buf)
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, 5, n)
	require.Equal(t, "hello", string(buf))
}

func TestReadBlocksUntilWriteThenEOFAfterClose(t *testing.T) {
	p := New()
	done := make(chan struct{})
	var got string
	go func() {
		buf := make([]byte, 16)
		n, err := p.Read(1, buf)
		require.Equal(t, defs.Err_t(0), err)
		got = string(buf[:n])
		close(done)
	}()

	time.Sleep(10 * time.Millisecond) // let the reader block
	p.Write([]byte("ping"))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reader never woke up on write")
	}
	require.Equal(t, "ping", got)

	p.CloseWriter()
	buf := make([]byte, 16)
	n, err := p.Read(1, buf)
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, 0, n, "read after writer close with empty buffer must report EOF")
}

func TestWriteWithNoReadersFails(t *testing.T) {
	p := New()
	p.CloseReader(1)
	_, err := p.Write([]byte("x"))
	require.Equal(t, -defs.EINVAL, err)
}

func TestSecondConcurrentBlockedReaderRejected(t *testing.T) {
	p := New()
	go func() {
		buf := make([]byte, 1)
		p.Read(1, buf)
	}()
	time.Sleep(10 * time.Millisecond)

	buf := make([]byte, 1)
	_, err := p.Read(2, buf)
	require.Equal(t, -defs.EINVAL, err)

	p.Write([]byte("x"))
}
