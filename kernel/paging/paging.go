// Package paging builds the identity-mapped page directory the kernel runs
// under. The directory uses 4 MiB page-size-extension entries only, so one
// level of translation covers the kernel image, the heap and the VGA window
// without any page tables.
package paging

import (
	"encoding/binary"

	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel"
	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/cpu"
	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/heap"
)

const (
	// PageSize is the number of bytes covered by a single directory entry
	// when page size extensions are enabled.
	PageSize = 4 << 20

	dirEntryCount = 1024
	dirTableBytes = dirEntryCount * 4
	dirAlign      = 4096

	flagPresent  = 1 << 0
	flagWritable = 1 << 1
	flagPageSize = 1 << 7
)

var (
	// dirAddr holds the physical address of the active page directory or 0
	// before Init runs.
	dirAddr uintptr

	mallocFn       = heap.Malloc
	memFn          = cpu.Mem
	switchPDTFn    = cpu.SwitchPDT
	enablePSEFn    = cpu.EnablePSE
	enablePagingFn = cpu.EnablePaging

	// ErrInvalidMapping is returned by Translate for virtual addresses that
	// do not fall inside a present directory entry.
	ErrInvalidMapping = &kernel.Error{Module: "paging", Message: "virtual address is not mapped"}

	errNothingToMap   = &kernel.Error{Module: "paging", Message: "map top must be non-zero"}
	errRegionTooBig   = &kernel.Error{Module: "paging", Message: "map top exceeds the 4GB directory range"}
	errOutOfMemory    = &kernel.Error{Module: "paging", Message: "cannot allocate the page directory"}
	errNotInitialized = &kernel.Error{Module: "paging", Message: "no directory is active"}
)

// Init allocates a page-aligned 1024-entry directory from the heap,
// identity-maps [0, mapTop) with 4 MiB present+writable entries and switches
// the CPU onto it: load the directory base, enable page size extensions,
// then enable paging. Virtual and physical addresses coincide for every
// mapped range afterwards.
func Init(mapTop uintptr) *kernel.Error {
	if mapTop == 0 {
		return errNothingToMap
	}

	entryCount := (mapTop + PageSize - 1) / PageSize
	if entryCount > dirEntryCount {
		return errRegionTooBig
	}

	// The allocator aligns payloads to 4 bytes; over-allocate and round up
	// to carve out a dirAlign-aligned table.
	raw, err := mallocFn(dirTableBytes + dirAlign - 4)
	if err != nil {
		return errOutOfMemory
	}
	dir := (raw + dirAlign - 1) &^ uintptr(dirAlign-1)

	table := memFn(dir, dirTableBytes)
	for i := uintptr(0); i < entryCount; i++ {
		entry := uint32(i)<<22 | flagPresent | flagWritable | flagPageSize
		binary.LittleEndian.PutUint32(table[i*4:], entry)
	}
	kernel.Memset(table[entryCount*4:], 0)

	dirAddr = dir
	switchPDTFn(dir)
	enablePSEFn()
	enablePagingFn()
	return nil
}

// Translate returns the physical address that corresponds to the supplied
// virtual address or ErrInvalidMapping if the address does not fall inside a
// present directory entry.
func Translate(virtAddr uintptr) (uintptr, *kernel.Error) {
	if dirAddr == 0 {
		return 0, errNotInitialized
	}

	index := virtAddr >> 22
	if index >= dirEntryCount {
		return 0, ErrInvalidMapping
	}
	entry := binary.LittleEndian.Uint32(memFn(dirAddr+index*4, 4))
	if entry&flagPresent == 0 {
		return 0, ErrInvalidMapping
	}

	base := uintptr(entry) &^ (PageSize - 1)
	return base + virtAddr&(PageSize-1), nil
}

// DirectoryAddr returns the physical address of the active page directory
// or 0 before Init runs.
func DirectoryAddr() uintptr {
	return dirAddr
}
