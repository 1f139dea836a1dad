package kfmt

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestRingBufferReadWrite(t *testing.T) {
	var (
		rb     ringBuffer
		expStr = "the big brown fox jumped over the lazy dog"
	)

	n, err := rb.Write([]byte(expStr))
	if err != nil {
		t.Fatal(err)
	}
	if n != len(expStr) {
		t.Fatalf("expected to write %d bytes; wrote %d", len(expStr), n)
	}

	if got := readByteByByte(&rb); got != expStr {
		t.Fatalf("expected to read %q; got %q", expStr, got)
	}
}

func TestRingBufferWrap(t *testing.T) {
	var rb ringBuffer

	// Push the write position close to the end of the buffer and drain so
	// the next write straddles the wrap point.
	pad := strings.Repeat(".", ringBufferSize-2)
	rb.Write([]byte(pad))
	io.Copy(io.Discard, &rb)

	expStr := "the big brown fox jumped over the lazy dog"
	rb.Write([]byte(expStr))

	if got := readByteByByte(&rb); got != expStr {
		t.Fatalf("expected to read %q; got %q", expStr, got)
	}
}

func TestRingBufferOverwritesOldest(t *testing.T) {
	var rb ringBuffer

	rb.Write(bytes.Repeat([]byte{'x'}, ringBufferSize))
	rb.Write([]byte{'!'})

	var buf bytes.Buffer
	io.Copy(&buf, &rb)

	if buf.Len() != ringBufferSize {
		t.Fatalf("expected a full buffer to stay at %d bytes; got %d", ringBufferSize, buf.Len())
	}

	got := buf.Bytes()
	if got[len(got)-1] != '!' {
		t.Fatalf("expected the last byte read to be the newest write; got %q", got[len(got)-1])
	}
}

func TestRingBufferWriteTo(t *testing.T) {
	var rb ringBuffer

	expStr := "draining via io.Copy"
	rb.Write([]byte(expStr))

	var buf bytes.Buffer
	io.Copy(&buf, &rb)

	if got := buf.String(); got != expStr {
		t.Fatalf("expected to read %q; got %q", expStr, got)
	}

	if _, err := rb.Read(make([]byte, 1)); err != io.EOF {
		t.Fatalf("expected a drained buffer to report io.EOF; got %v", err)
	}
}

func readByteByByte(r io.Reader) string {
	var (
		buf bytes.Buffer
		b   = make([]byte, 1)
	)
	for {
		_, err := r.Read(b)
		if err == io.EOF {
			break
		}

		buf.Write(b)
	}
	return buf.String()
}
