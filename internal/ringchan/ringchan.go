// Package ringchan provides a bounded channel with overwrite-oldest semantics.
package ringchan

// RingChannel wraps a buffered channel so producers never block: when the buffer
// is full the oldest element is discarded.
//
//	rc := ringchan.New[Event](16)
//	rc.Publish(ev)          // never blocks
//	ev := <-rc.C()
type RingChannel[T any] struct {
	ch chan T
}

// New creates a RingChannel with the given capacity.
func New[T any](capacity int) *RingChannel[T] {
	if capacity <= 0 {
		panic("ringchan: capacity must be > 0")
	}
	return &RingChannel[T]{ch: make(chan T, capacity)}
}

// C returns the underlying receive-only channel.
func (rc *RingChannel[T]) C() <-chan T {
	return rc.ch
}

// Publish inserts v, discarding the oldest element if needed. Reports whether an element was dropped.
func (rc *RingChannel[T]) Publish(v T) bool {
	dropped := false
	for {
		select {
		case rc.ch <- v:
			return dropped
		default:
		}

		// Full: drop the oldest and retry. Other producers may refill the slot first.
		select {
		case <-rc.ch:
			dropped = true
		default:
		}
	}
}

// TryReceive attempts a non-blocking receive.
func (rc *RingChannel[T]) TryReceive() (v T, ok bool) {
	select {
	case v, ok = <-rc.ch:
		return v, ok
	default:
		var zero T
		return zero, false
	}
}

// Len returns the number of buffered elements.
func (rc *RingChannel[T]) Len() int {
	return len(rc.ch)
}
