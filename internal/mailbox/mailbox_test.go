package mailbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"novakern/internal/defs"
)

func TestSendReceiveFIFO(t *testing.T) {
	m := New(defs.MailboxCapacity)
	require.Equal(t, defs.Err_t(0), m.Send(2, []byte("a")))
	require.Equal(t, defs.Err_t(0), m.Send(3, []byte("b")))

	msg, err := m.Receive(false)
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, defs.Pid_t(2), msg.From)
	require.Equal(t, "a", string(msg.Data))

	msg, err = m.Receive(false)
	require.Equal(t, defs.Err_t(0), err)
	require.Equal(t, defs.Pid_t(3), msg.From)
}

func TestReceiveNonBlockingEmptyReturnsEAGAIN(t *testing.T) {
	m := New(defs.MailboxCapacity)
	_, err := m.Receive(false)
	require.Equal(t, -defs.EAGAIN, err)
}

func TestSendAtCapacityReturnsENOMEM(t *testing.T) {
	m := New(2)
	require.Equal(t, defs.Err_t(0), m.Send(1, []byte("x")))
	require.Equal(t, defs.Err_t(0), m.Send(1, []byte("y")))
	require.Equal(t, -defs.ENOMEM, m.Send(1, []byte("z")))
}

func TestReceiveBlocksUntilSend(t *testing.T) {
	m := New(defs.MailboxCapacity)
	done := make(chan Message)
	go func() {
		msg, err := m.Receive(true)
		require.Equal(t, defs.Err_t(0), err)
		done <- msg
	}()

	time.Sleep(10 * time.Millisecond)
	require.Equal(t, defs.Err_t(0), m.Send(7, []byte("hi")))

	select {
	case msg := <-done:
		require.Equal(t, defs.Pid_t(7), msg.From)
	case <-time.After(time.Second):
		t.Fatal("receive never unblocked")
	}
}
