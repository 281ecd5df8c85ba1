package router

import (
	"sync"
)

// GrowableBuffer is a thread-safe FIFO queue that doubles its capacity when
// it reaches 70% full, up to an optional ceiling. Once the ceiling is
// reached Send blocks until a receiver makes room or the buffer is closed.
type GrowableBuffer[T any] struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	buf      []T
	head     int // read position
	tail     int // write position
	count    int
	capacity int
	max      int // 0 means unbounded
	closed   bool

	// Stats
	totalReceived int64
	totalSent     int64
	resizeCount   int
	blockedSends  int64
}

// NewGrowableBuffer creates an unbounded buffer with the given initial
// capacity.
func NewGrowableBuffer[T any](initialCapacity int) *GrowableBuffer[T] {
	return NewBoundedBuffer[T](initialCapacity, 0)
}

// NewBoundedBuffer creates a buffer that grows from initialCapacity up to
// maxCapacity items. A maxCapacity of 0 disables the ceiling.
func NewBoundedBuffer[T any](initialCapacity, maxCapacity int) *GrowableBuffer[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	if maxCapacity > 0 && maxCapacity < initialCapacity {
		maxCapacity = initialCapacity
	}
	b := &GrowableBuffer[T]{
		buf:      make([]T, initialCapacity),
		capacity: initialCapacity,
		max:      maxCapacity,
	}
	b.notEmpty = sync.NewCond(&b.mu)
	b.notFull = sync.NewCond(&b.mu)
	return b
}

// Send appends an item, growing or blocking as needed.
// Returns false if the buffer is closed.
func (b *GrowableBuffer[T]) Send(item T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	blocked := false
	for !b.closed && b.count == b.capacity && !b.canGrow() {
		if !blocked {
			b.blockedSends++
			blocked = true
		}
		b.notFull.Wait()
	}
	if b.closed {
		return false
	}
	b.push(item)
	return true
}

// TrySend appends an item without blocking. It returns false if the buffer
// is closed or full at its ceiling; Closed tells the two apart.
func (b *GrowableBuffer[T]) TrySend(item T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || (b.count == b.capacity && !b.canGrow()) {
		return false
	}
	b.push(item)
	return true
}

// push appends item. The caller holds mu and has checked for room.
func (b *GrowableBuffer[T]) push(item T) {
	threshold := (b.capacity * 70) / 100
	if threshold < 1 {
		threshold = 1
	}
	if b.count+1 >= threshold && b.canGrow() {
		b.grow()
	}

	b.buf[b.tail] = item
	b.tail = (b.tail + 1) % b.capacity
	b.count++
	b.totalReceived++

	b.notEmpty.Signal()
}

// Receive removes and returns the oldest item.
// Blocks until an item is available or the buffer is closed.
// Returns the zero value and false once the buffer is closed and empty.
func (b *GrowableBuffer[T]) Receive() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.count == 0 && !b.closed {
		b.notEmpty.Wait()
	}

	if b.count == 0 {
		var zero T
		return zero, false
	}
	return b.pop(), true
}

// TryReceive attempts to receive without blocking.
func (b *GrowableBuffer[T]) TryReceive() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		var zero T
		return zero, false
	}
	return b.pop(), true
}

// Close closes the buffer. After closing, Send returns false and blocked
// senders are released. Receivers get the remaining items first.
func (b *GrowableBuffer[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.notEmpty.Broadcast()
	b.notFull.Broadcast()
}

// Closed reports whether Close has been called.
func (b *GrowableBuffer[T]) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Len returns the current number of items in the buffer.
func (b *GrowableBuffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Cap returns the current capacity of the buffer.
func (b *GrowableBuffer[T]) Cap() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.capacity
}

// Stats returns buffer statistics.
func (b *GrowableBuffer[T]) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BufferStats{
		Count:         b.count,
		Capacity:      b.capacity,
		MaxCapacity:   b.max,
		TotalReceived: b.totalReceived,
		TotalSent:     b.totalSent,
		ResizeCount:   b.resizeCount,
		BlockedSends:  b.blockedSends,
	}
}

// BufferStats contains buffer statistics.
type BufferStats struct {
	Count         int
	Capacity      int
	MaxCapacity   int
	TotalReceived int64
	TotalSent     int64
	ResizeCount   int
	BlockedSends  int64 // Sends that had to wait for room
}

// DrainTo removes up to max items (all when max <= 0) in FIFO order.
func (b *GrowableBuffer[T]) DrainTo(max int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}

	n := b.count
	if max > 0 && max < n {
		n = max
	}

	result := make([]T, n)
	for i := 0; i < n; i++ {
		result[i] = b.pop()
	}
	return result
}

// pop removes the head item. Must be called with lock held and count > 0.
func (b *GrowableBuffer[T]) pop() T {
	item := b.buf[b.head]
	var zero T
	b.buf[b.head] = zero // Clear reference for GC
	b.head = (b.head + 1) % b.capacity
	b.count--
	b.totalSent++
	b.notFull.Signal()
	return item
}

func (b *GrowableBuffer[T]) canGrow() bool {
	return b.max == 0 || b.capacity < b.max
}

// grow doubles the capacity, clamped to max. Must be called with lock held.
func (b *GrowableBuffer[T]) grow() {
	newCapacity := b.capacity * 2
	if b.max > 0 && newCapacity > b.max {
		newCapacity = b.max
	}
	newBuf := make([]T, newCapacity)

	if b.count > 0 {
		if b.head < b.tail {
			copy(newBuf, b.buf[b.head:b.tail])
		} else {
			// Wrapped: [head...end) + [0...tail)
			n := copy(newBuf, b.buf[b.head:])
			copy(newBuf[n:], b.buf[:b.tail])
		}
	}

	b.buf = newBuf
	b.head = 0
	b.tail = b.count
	b.capacity = newCapacity
	b.resizeCount++
}
