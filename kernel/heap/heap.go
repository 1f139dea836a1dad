// Package heap implements the kernel's dynamic memory allocator. The heap
// region is carved into a singly linked chain of blocks whose headers live
// inside the region itself and refer to each other by physical address, so
// the chain stays valid before and after paging is enabled.
package heap

import (
	"encoding/binary"
	"io"

	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel"
	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/cpu"
	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/kfmt"
)

const (
	// headerSize is the number of bytes occupied by a block header. A
	// header holds three little-endian words: the payload size, the free
	// flag and the physical address of the next header (0 at the tail).
	headerSize = 12

	// minSplitBytes is the smallest payload worth splitting off the tail
	// of an allocation. Remainders smaller than headerSize+minSplitBytes
	// stay attached to the returned block.
	minSplitBytes = 8
)

var (
	heapStart uintptr
	heapEnd   uintptr

	memFn   = cpu.Mem
	panicFn = kfmt.Panic

	errRegionTooSmall = &kernel.Error{Module: "heap", Message: "region cannot fit a block header"}
	errOutOfMemory    = &kernel.Error{Module: "heap", Message: "out of memory"}
	errInvalidFree    = &kernel.Error{Module: "heap", Message: "invalid free"}
	errDoubleFree     = &kernel.Error{Module: "heap", Message: "double free"}
)

// blockHeader is the decoded form of an in-memory block header.
type blockHeader struct {
	size uint32
	free bool
	next uintptr
}

func loadHeader(addr uintptr) blockHeader {
	buf := memFn(addr, headerSize)
	return blockHeader{
		size: binary.LittleEndian.Uint32(buf[0:]),
		free: binary.LittleEndian.Uint32(buf[4:]) != 0,
		next: uintptr(binary.LittleEndian.Uint32(buf[8:])),
	}
}

func storeHeader(addr uintptr, hdr blockHeader) {
	var freeWord uint32
	if hdr.free {
		freeWord = 1
	}

	buf := memFn(addr, headerSize)
	binary.LittleEndian.PutUint32(buf[0:], hdr.size)
	binary.LittleEndian.PutUint32(buf[4:], freeWord)
	binary.LittleEndian.PutUint32(buf[8:], uint32(hdr.next))
}

func align(addr, n uintptr) uintptr {
	return (addr + n - 1) &^ (n - 1)
}

// Init sets up the allocator over the physical region [start, end). The
// start address is aligned up to 8 bytes and the remaining space becomes a
// single free block. Init returns an error when the aligned region cannot
// hold a header plus minSplitBytes of payload.
func Init(start, end uintptr) *kernel.Error {
	start = align(start, 8)
	if start >= end || end-start < headerSize+minSplitBytes {
		return errRegionTooSmall
	}

	heapStart = start
	heapEnd = end
	storeHeader(start, blockHeader{
		size: uint32(end-start) - headerSize,
		free: true,
	})
	return nil
}

// Malloc reserves size bytes and returns the physical address of the
// payload. Requests are rounded up to a multiple of 4 so payload addresses
// stay 4-byte aligned. A zero size yields address 0 with a nil error.
//
// Malloc walks the chain from the lowest address and claims the first free
// block large enough (first fit). When the chosen block leaves enough room
// behind the request, the remainder is split off as a new free block.
// Malloc returns an error if no block can satisfy the request; the region
// never grows.
func Malloc(size uint32) (uintptr, *kernel.Error) {
	if size == 0 {
		return 0, nil
	}
	if heapEnd == 0 {
		return 0, errOutOfMemory
	}
	size = (size + 3) &^ 3

	for addr := heapStart; ; {
		hdr := loadHeader(addr)
		if !hdr.free || hdr.size < size {
			if hdr.next == 0 {
				return 0, errOutOfMemory
			}
			addr = hdr.next
			continue
		}

		if hdr.size-size >= headerSize+minSplitBytes {
			splitAddr := addr + headerSize + uintptr(size)
			storeHeader(splitAddr, blockHeader{
				size: hdr.size - size - headerSize,
				free: true,
				next: hdr.next,
			})
			hdr.size = size
			hdr.next = splitAddr
		}

		hdr.free = false
		storeHeader(addr, hdr)
		return addr + headerSize, nil
	}
}

// Free releases the allocation whose payload starts at addr. A zero addr is
// a no-op. Free panics when addr does not match the payload of a block in
// the chain or when that block is already free. After marking the block
// free, adjacent free blocks anywhere in the chain are merged so that
// allocations released out of order still coalesce back into a single
// block.
func Free(addr uintptr) {
	if addr == 0 {
		return
	}
	if heapEnd == 0 || addr < heapStart+headerSize || addr >= heapEnd {
		panicFn(errInvalidFree)
		return
	}

	hdrAddr := addr - headerSize
	for cur := heapStart; cur != hdrAddr; {
		next := loadHeader(cur).next
		if next == 0 || next > hdrAddr {
			panicFn(errInvalidFree)
			return
		}
		cur = next
	}

	hdr := loadHeader(hdrAddr)
	if hdr.free {
		panicFn(errDoubleFree)
		return
	}

	hdr.free = true
	storeHeader(hdrAddr, hdr)
	coalesce()
}

// coalesce merges every run of adjacent free blocks into the run's first
// block.
func coalesce() {
	for addr := heapStart; addr != 0; {
		hdr := loadHeader(addr)
		if hdr.free && hdr.next != 0 {
			if nextHdr := loadHeader(hdr.next); nextHdr.free {
				hdr.size += headerSize + nextHdr.size
				hdr.next = nextHdr.next
				storeHeader(addr, hdr)
				continue
			}
		}
		addr = hdr.next
	}
}

// Visit walks the block chain in address order and invokes fn with each
// block's base address, payload size and free flag. Returning false from fn
// aborts the walk.
func Visit(fn func(base uintptr, size uint32, free bool) bool) {
	if heapEnd == 0 {
		return
	}

	for addr := heapStart; addr != 0; {
		hdr := loadHeader(addr)
		if !fn(addr, hdr.size, hdr.free) {
			return
		}
		addr = hdr.next
	}
}

// Stats describes the aggregate state of the block chain.
type Stats struct {
	TotalBytes uint32
	UsedBytes  uint32
	FreeBytes  uint32
	Blocks     uint32
	FreeBlocks uint32
}

// GatherStats totals the block chain.
func GatherStats() Stats {
	var st Stats
	if heapEnd != 0 {
		st.TotalBytes = uint32(heapEnd - heapStart)
	}

	Visit(func(_ uintptr, size uint32, free bool) bool {
		st.Blocks++
		if free {
			st.FreeBlocks++
			st.FreeBytes += size
		} else {
			st.UsedBytes += size
		}
		return true
	})
	return st
}

// DumpLayout prints each block in the chain followed by a usage summary.
func DumpLayout(w io.Writer) {
	kfmt.Fprintf(w, "[heap] memory layout for region [0x%8x - 0x%8x]:\n", heapStart, heapEnd)
	Visit(func(base uintptr, size uint32, free bool) bool {
		kfmt.Fprintf(w, "\t[0x%8x] size: %8d free: %t\n", base, size, free)
		return true
	})

	st := GatherStats()
	kfmt.Fprintf(w, "[heap] %d bytes used, %d bytes free in %d blocks\n", st.UsedBytes, st.FreeBytes, st.Blocks)
}
