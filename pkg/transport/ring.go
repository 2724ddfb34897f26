package transport

import (
	"sync"
	"time"
)

// Ring is a bounded byte queue shared by one producer and one consumer.
// Waiters block on a condition variable; producers either wait (Put)
// or fail fast with ErrWouldBlock (Push, PushAll).
type Ring struct {
	buf    []byte
	head   int
	count  int
	closed bool

	lock sync.Mutex
	cond *sync.Cond
}

// NewRing creates a Ring holding up to size bytes.
func NewRing(size int) *Ring {
	if size <= 0 {
		size = 1
	}
	r := &Ring{buf: make([]byte, size)}
	r.cond = sync.NewCond(&r.lock)
	return r
}

// Cap returns the capacity.
func (r *Ring) Cap() int {
	return len(r.buf)
}

// Len returns the number of queued bytes.
func (r *Ring) Len() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.count
}

func (r *Ring) pushLocked(p []byte) {
	for _, b := range p {
		r.buf[(r.head+r.count)%len(r.buf)] = b
		r.count++
	}
	r.cond.Broadcast()
}

func (r *Ring) popLocked(p []byte) int {
	n := 0
	for n < len(p) && r.count > 0 {
		p[n] = r.buf[r.head]
		r.head = (r.head + 1) % len(r.buf)
		r.count--
		n++
	}
	r.cond.Broadcast()
	return n
}

// Push appends one byte without blocking.
func (r *Ring) Push(b byte) error {
	return r.PushAll([]byte{b})
}

// PushAll appends all bytes or none of them.
func (r *Ring) PushAll(p []byte) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.closed {
		return ErrClosed
	}
	if len(r.buf)-r.count < len(p) {
		return ErrWouldBlock
	}
	r.pushLocked(p)
	return nil
}

// Put appends all bytes, waiting for room as needed.
func (r *Ring) Put(p []byte) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	for len(p) > 0 {
		for !r.closed && r.count == len(r.buf) {
			r.cond.Wait()
		}
		if r.closed {
			return ErrClosed
		}
		n := len(r.buf) - r.count
		if n > len(p) {
			n = len(p)
		}
		r.pushLocked(p[:n])
		p = p[n:]
	}
	return nil
}

// Pop removes one byte, blocking while the ring is empty.
func (r *Ring) Pop() (byte, error) {
	var b [1]byte
	if _, err := r.PopSome(b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// PopSome blocks until at least one byte is available and removes
// up to len(p) bytes. Queued bytes are still delivered after Close.
func (r *Ring) PopSome(p []byte) (int, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	for r.count == 0 && !r.closed {
		r.cond.Wait()
	}
	if r.count == 0 {
		return 0, ErrClosed
	}
	return r.popLocked(p), nil
}

// PopTimeout removes one byte, waiting at most d.
func (r *Ring) PopTimeout(d time.Duration) (byte, error) {
	deadline := time.Now().Add(d)
	timer := time.AfterFunc(d, func() {
		r.lock.Lock()
		r.cond.Broadcast()
		r.lock.Unlock()
	})
	defer timer.Stop()

	r.lock.Lock()
	defer r.lock.Unlock()
	for r.count == 0 {
		if r.closed {
			return 0, ErrClosed
		}
		if !time.Now().Before(deadline) {
			return 0, ErrTimeout
		}
		r.cond.Wait()
	}
	var b [1]byte
	r.popLocked(b[:])
	return b[0], nil
}

// Close wakes all waiters. Pending bytes remain readable.
func (r *Ring) Close() {
	r.lock.Lock()
	r.closed = true
	r.cond.Broadcast()
	r.lock.Unlock()
}
