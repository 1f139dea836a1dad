// Package multiboot parses the multiboot2 information block the bootloader
// leaves in memory. The kernel receives its physical address in EBX together
// with a magic value in EAX; everything this package returns is decoded in
// place from that block.
package multiboot

import (
	"encoding/binary"

	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/cpu"
)

// BootMagic is the value a multiboot2-compliant bootloader loads into EAX
// before jumping to the kernel entry point.
const BootMagic = 0x36d76289

type tagType uint32

// nolint
const (
	tagSectionEnd tagType = iota
	tagBootCmdLine
	tagBootLoaderName
	tagModules
	tagBasicMemoryInfo
	tagBiosBootDevice
	tagMemoryMap
	tagVbeInfo
	tagFramebufferInfo
	tagElfSymbols
	tagApmTable
)

// MemoryEntryType defines the type of a MemoryMapEntry.
type MemoryEntryType uint32

const (
	// MemAvailable indicates that the memory region is available for use.
	MemAvailable MemoryEntryType = iota + 1

	// MemReserved indicates that the memory region is not available for use.
	MemReserved

	// MemAcpiReclaimable indicates a memory region holding ACPI info that
	// can be reused by the OS.
	MemAcpiReclaimable

	// MemNvs indicates memory that must be preserved when hibernating.
	MemNvs

	// Any value >= memUnknown is reported as MemReserved.
	memUnknown
)

// String implements fmt.Stringer for MemoryEntryType.
func (t MemoryEntryType) String() string {
	switch t {
	case MemAvailable:
		return "available"
	case MemReserved:
		return "reserved"
	case MemAcpiReclaimable:
		return "ACPI (reclaimable)"
	case MemNvs:
		return "NVS"
	default:
		return "unknown"
	}
}

// FramebufferType defines the mode of the framebuffer the bootloader set up.
type FramebufferType uint8

const (
	// FramebufferTypeIndexed specifies a 256-color palette mode.
	FramebufferTypeIndexed FramebufferType = iota

	// FramebufferTypeRGB specifies a direct RGB mode.
	FramebufferTypeRGB

	// FramebufferTypeEGA specifies EGA text mode.
	FramebufferTypeEGA
)

// FramebufferInfo describes the framebuffer initialized by the bootloader.
type FramebufferInfo struct {
	// The framebuffer physical address.
	PhysAddr uint64

	// Row pitch in bytes.
	Pitch uint32

	// Width and height in pixels, or in characters for EGA text mode.
	Width, Height uint32

	// Bits per pixel (non-EGA modes only).
	Bpp uint8

	Type FramebufferType
}

// MemoryMapEntry describes one memory region reported by the bootloader.
type MemoryMapEntry struct {
	// The physical address where this memory region starts.
	PhysAddress uint64

	// The length of the memory region.
	Length uint64

	// The type of this entry.
	Type MemoryEntryType
}

// MemRegionVisitor gets invoked by VisitMemRegions for each memory region
// reported by the bootloader. It must return true to continue the scan.
type MemRegionVisitor func(*MemoryMapEntry) bool

var (
	infoAddr uintptr

	// memFn is swapped by tests to parse fixture blocks instead of RAM.
	memFn = cpu.Mem
)

// SetInfoPtr records the physical address of the multiboot information
// block. It must be invoked before any other function in this package.
func SetInfoPtr(addr uintptr) {
	infoAddr = addr
}

// InfoSize returns the total size of the multiboot information block.
func InfoSize() uint32 {
	return u32(infoAddr)
}

// VisitMemRegions invokes visitor for each entry of the bootloader memory
// map in ascending address order. It is a no-op when the bootloader did not
// supply a memory map tag.
func VisitMemRegions(visitor MemRegionVisitor) {
	tagAddr, size := findTagByType(tagMemoryMap)
	if size == 0 {
		return
	}

	// The tag payload is an entry_size/entry_version header followed by
	// the packed entries.
	entrySize := uintptr(u32(tagAddr))
	end := tagAddr + uintptr(size)

	var entry MemoryMapEntry
	for cur := tagAddr + 8; cur+entrySize <= end; cur += entrySize {
		entry.PhysAddress = u64(cur)
		entry.Length = u64(cur + 8)
		entry.Type = MemoryEntryType(u32(cur + 16))

		if entry.Type == 0 || entry.Type >= memUnknown {
			entry.Type = MemReserved
		}

		if !visitor(&entry) {
			return
		}
	}
}

// GetFramebufferInfo returns the framebuffer details reported by the
// bootloader or nil when no framebuffer tag is present.
func GetFramebufferInfo() *FramebufferInfo {
	tagAddr, size := findTagByType(tagFramebufferInfo)
	if size < 22 {
		return nil
	}

	return &FramebufferInfo{
		PhysAddr: u64(tagAddr),
		Pitch:    u32(tagAddr + 8),
		Width:    u32(tagAddr + 12),
		Height:   u32(tagAddr + 16),
		Bpp:      memFn(tagAddr+20, 1)[0],
		Type:     FramebufferType(memFn(tagAddr+21, 1)[0]),
	}
}

// BootCmdLine returns the raw command line passed to the kernel, or "" when
// the bootloader did not supply one.
func BootCmdLine() string {
	return findTagString(tagBootCmdLine)
}

// BootLoaderName returns the name the bootloader recorded for itself, or ""
// when the tag is absent.
func BootLoaderName() string {
	return findTagString(tagBootLoaderName)
}

// findTagString decodes a tag whose payload is a C-style string.
func findTagString(t tagType) string {
	tagAddr, size := findTagByType(t)
	if size == 0 {
		return ""
	}

	raw := memFn(tagAddr, uintptr(size))
	for i, b := range raw {
		if b == 0 {
			raw = raw[:i]
			break
		}
	}
	return string(raw)
}

// findTagByType scans the info block for the first tag of the requested
// type. It returns the physical address of the tag payload and the payload
// length excluding the tag header, or (0, 0) when the tag is missing.
func findTagByType(t tagType) (uintptr, uint32) {
	end := infoAddr + uintptr(u32(infoAddr))

	// Tags follow the 8-byte info header at 8-byte aligned addresses.
	for cur := infoAddr + 8; cur+8 <= end; {
		tt := tagType(u32(cur))
		size := u32(cur + 4)
		if tt == tagSectionEnd || size < 8 {
			break
		}
		if tt == t {
			return cur + 8, size - 8
		}

		cur += uintptr((size + 7) &^ 7)
	}

	return 0, 0
}

func u32(addr uintptr) uint32 {
	return binary.LittleEndian.Uint32(memFn(addr, 4))
}

func u64(addr uintptr) uint64 {
	return binary.LittleEndian.Uint64(memFn(addr, 8))
}
