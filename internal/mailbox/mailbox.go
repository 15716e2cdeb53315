// Package mailbox implements each process's fixed-capacity inbox:
// FIFO message delivery used by the send(2)/receive(2) syscalls.
// Grounded on original_source/syscall.c's syscall_send and
// syscall_receive (the teacher's retrieval-pack copy has no IPC
// mailbox of its own).
package mailbox

import (
	"sync"

	"novakern/internal/defs"
)

// Message is one queued payload, tagged with the sender's pid the way
// receive(2) reports it back to the caller.
type Message struct {
	From defs.Pid_t
	Data []byte
}

// Mailbox is a fixed-capacity FIFO queue of Messages.
type Mailbox struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    []Message
	capacity int
}

// New returns an empty Mailbox with the given slot capacity.
func New(capacity int) *Mailbox {
	m := &Mailbox{capacity: capacity}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Send enqueues msg, returning ENOMEM if the mailbox is already at
// capacity (spec.md §7 resource exhaustion).
func (m *Mailbox) Send(from defs.Pid_t, data []byte) defs.Err_t {
	if len(data) > defs.MaxMessageSize {
		return -defs.EINVAL
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) >= m.capacity {
		return -defs.ENOMEM
	}
	payload := make([]byte, len(data))
	copy(payload, data)
	m.queue = append(m.queue, Message{From: from, Data: payload})
	m.cond.Broadcast()
	return 0
}

// Receive dequeues the oldest message. If block is true and the
// mailbox is empty, it waits for a message to arrive; otherwise an
// empty mailbox returns EAGAIN immediately.
func (m *Mailbox) Receive(block bool) (Message, defs.Err_t) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.queue) == 0 {
		if !block {
			return Message{}, -defs.EAGAIN
		}
		m.cond.Wait()
	}
	msg := m.queue[0]
	m.queue = m.queue[1:]
	return msg, 0
}

// Len reports the number of queued messages.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}
