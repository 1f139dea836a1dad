// Package gdt builds and loads the global descriptor table. The kernel runs
// with the flat segmentation model: a null descriptor plus one code and one
// data segment, both spanning the full 4 GiB address space at ring 0.
package gdt

import (
	"unsafe"

	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/cpu"
)

// Segment selectors into the table. The code selector lands in CS, the data
// selector in the remaining segment registers.
const (
	SelectorNull       uint16 = 0x00
	SelectorKernelCode uint16 = 0x08
	SelectorKernelData uint16 = 0x10
)

// Access byte values for ring-0 code and data segments: present, descriptor
// type set, and execute/read respectively read/write.
const (
	accessKernelCode = 0x9a
	accessKernelData = 0x92
)

// flagsGran32 selects 4 KiB limit granularity and 32-bit operand size.
const flagsGran32 = 0xc

// Entry is a packed 8-byte segment descriptor.
type Entry struct {
	limitLow    uint16
	baseLow     uint16
	baseMiddle  uint8
	access      uint8
	granularity uint8
	baseHigh    uint8
}

// The CPU loads descriptors as raw 8-byte values; a padded struct would
// corrupt every entry past the first.
var _ = [1]struct{}{}[unsafe.Sizeof(Entry{})-8]

// newEntry packs base, a 20-bit limit, the access byte and the 4-bit flags
// into descriptor wire format.
func newEntry(base, limit uint32, access, flags uint8) Entry {
	return Entry{
		limitLow:    uint16(limit),
		baseLow:     uint16(base),
		baseMiddle:  uint8(base >> 16),
		access:      access,
		granularity: uint8(limit>>16)&0x0f | flags<<4,
		baseHigh:    uint8(base >> 24),
	}
}

// Base returns the segment base encoded in the descriptor.
func (e Entry) Base() uint32 {
	return uint32(e.baseLow) | uint32(e.baseMiddle)<<16 | uint32(e.baseHigh)<<24
}

// Limit returns the 20-bit segment limit encoded in the descriptor.
func (e Entry) Limit() uint32 {
	return uint32(e.limitLow) | uint32(e.granularity&0x0f)<<16
}

// Access returns the descriptor access byte.
func (e Entry) Access() uint8 { return e.access }

// Flags returns the descriptor flags nibble.
func (e Entry) Flags() uint8 { return e.granularity >> 4 }

var (
	gdtTable [3]Entry

	loadGDTFn        = cpu.LoadGDT
	reloadSegmentsFn = cpu.ReloadSegments
)

// Init populates the flat-model descriptor table, loads it and reloads the
// segment registers with the new selectors.
func Init() {
	gdtTable[0] = Entry{}
	gdtTable[SelectorKernelCode>>3] = newEntry(0, 0xfffff, accessKernelCode, flagsGran32)
	gdtTable[SelectorKernelData>>3] = newEntry(0, 0xfffff, accessKernelData, flagsGran32)

	loadGDTFn(cpu.DescriptorTablePtr{
		Limit: uint16(unsafe.Sizeof(gdtTable) - 1),
		Base:  uintptr(unsafe.Pointer(&gdtTable[0])),
	})
	reloadSegmentsFn(SelectorKernelCode, SelectorKernelData)
}
