package kfmt

import "io"

// ringBufferSize is sized to hold a full 80x25 text-mode screen of early
// boot output. It must be a power of 2.
const ringBufferSize = 2048

// ringBuffer captures Printf output generated before the console and TTY
// systems come up. Once full it overwrites the oldest data; losing the head
// of the boot log beats losing its tail.
type ringBuffer struct {
	buffer [ringBufferSize]byte
	start  int
	used   int
}

// Write appends the contents of p to the buffer, evicting the oldest bytes
// when the buffer is full. It always succeeds.
func (rb *ringBuffer) Write(p []byte) (int, error) {
	for _, b := range p {
		rb.buffer[(rb.start+rb.used)&(ringBufferSize-1)] = b
		if rb.used == ringBufferSize {
			rb.start = (rb.start + 1) & (ringBufferSize - 1)
		} else {
			rb.used++
		}
	}

	return len(p), nil
}

// Read copies up to len(p) buffered bytes into p in write order and consumes
// them. It reports io.EOF once the buffer is drained.
func (rb *ringBuffer) Read(p []byte) (int, error) {
	if rb.used == 0 {
		return 0, io.EOF
	}

	n := rb.used
	if n > len(p) {
		n = len(p)
	}

	// Clamp to the span before the buffer wraps; the next Read picks up
	// the remainder.
	if tail := ringBufferSize - rb.start; n > tail {
		n = tail
	}

	copy(p, rb.buffer[rb.start:rb.start+n])
	rb.start = (rb.start + n) & (ringBufferSize - 1)
	rb.used -= n

	return n, nil
}
