// Package circbuf implements a small fixed-capacity ring buffer, used
// as the input queue a process reads through the console file handle.
// No keyboard handler writes into it: the kernel creates the buffer
// at boot and nothing feeds it afterwards, so console reads find it
// empty. Trimmed
// from the teacher's page-backed Circbuf_t, since novakern has no
// MMU-backed pages to anchor a ring buffer to — a plain byte slice
// plays the same role here.
package circbuf

import "sync"

// Circbuf_t is a byte ring buffer of fixed capacity.
type Circbuf_t struct {
	mu   sync.Mutex
	cond *sync.Cond
	buf  []byte
	head int
	tail int
	n    int
}

// Cb_init initializes cb with the given capacity.
func (cb *Circbuf_t) Cb_init(capacity int) {
	cb.buf = make([]byte, capacity)
	cb.head, cb.tail, cb.n = 0, 0, 0
	cb.cond = sync.NewCond(&cb.mu)
}

// Rawwrite appends bytes, dropping the oldest unread bytes if the
// buffer is full (matching the teacher's head-advances-on-overflow
// policy for a keyboard stream nobody is obligated to drain promptly).
func (cb *Circbuf_t) Rawwrite(p []byte) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	for _, b := range p {
		cb.buf[cb.tail] = b
		cb.tail = (cb.tail + 1) % len(cb.buf)
		if cb.n == len(cb.buf) {
			cb.head = (cb.head + 1) % len(cb.buf)
		} else {
			cb.n++
		}
	}
	cb.cond.Broadcast()
}

// Rawread blocks until at least one byte is available, then drains up
// to len(p) bytes into p, returning the count read.
func (cb *Circbuf_t) Rawread(p []byte) int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	for cb.n == 0 {
		cb.cond.Wait()
	}
	i := 0
	for i < len(p) && cb.n > 0 {
		p[i] = cb.buf[cb.head]
		cb.head = (cb.head + 1) % len(cb.buf)
		cb.n--
		i++
	}
	return i
}

// Avail reports how many unread bytes are queued.
func (cb *Circbuf_t) Avail() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.n
}
