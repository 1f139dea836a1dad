package machine

import (
	"encoding/binary"
	"fmt"
)

// Multiboot2 tag types the loader emits.
const (
	tagEnd            = 0
	tagBootLoaderName = 2
	tagMemoryMap      = 6
	tagFramebuffer    = 8

	mmapEntrySize = 24

	memTypeAvailable = 1
	memTypeReserved  = 2

	framebufferTypeEGA = 2

	// ebdaStart is where the usable low-memory region ends on a classic PC.
	ebdaStart = 0x9fc00
	extStart  = 0x100000
)

// WriteBootInfo plays the bootloader's part: it assembles a multiboot2
// information block in guest RAM describing the machine and returns its
// physical address. The block carries the loader name, a memory map that
// reserves everything between the EBDA and the start of extended memory, and
// an EGA text framebuffer tag for the VGA window.
func (m *Machine) WriteBootInfo() (uintptr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w := infoWriter{ram: m.ram, base: bootInfoAddr}

	// The fixed header is patched with the final size at the end.
	w.u32(0)
	w.u32(0)

	w.tag(tagBootLoaderName, func() {
		w.str(m.cfg.BootLoader)
	})

	w.tag(tagMemoryMap, func() {
		w.u32(mmapEntrySize)
		w.u32(0)
		w.mmapEntry(0, ebdaStart, memTypeAvailable)
		w.mmapEntry(ebdaStart, extStart-ebdaStart, memTypeReserved)
		w.mmapEntry(extStart, uint64(len(m.ram))-extStart, memTypeAvailable)
	})

	w.tag(tagFramebuffer, func() {
		w.u64(vgaTextAddr)
		w.u32(vgaCols * 2)
		w.u32(vgaCols)
		w.u32(vgaRows)
		w.u8(16)
		w.u8(framebufferTypeEGA)
	})

	w.tag(tagEnd, func() {})

	if w.err != nil {
		return 0, fmt.Errorf("machine: writing boot info: %w", w.err)
	}

	binary.LittleEndian.PutUint32(m.ram[bootInfoAddr:], uint32(w.off))
	m.infoAddr = bootInfoAddr
	m.infoSize = uint32(w.off)
	return bootInfoAddr, nil
}

// BootInfoAddr returns the address WriteBootInfo placed the information
// block at, or 0 before it ran.
func (m *Machine) BootInfoAddr() uintptr {
	m.mu.Lock()
	v := m.infoAddr
	m.mu.Unlock()
	return v
}

// KernelStart returns the configured physical load address of the kernel
// image.
func (m *Machine) KernelStart() uintptr {
	return uintptr(m.cfg.KernelStart)
}

// KernelEnd returns the configured physical end of the kernel image, the
// stand-in for the linker end symbol.
func (m *Machine) KernelEnd() uintptr {
	return uintptr(m.cfg.KernelEnd)
}

// infoWriter appends little-endian multiboot2 structures to guest RAM,
// keeping tags 8-byte aligned per the multiboot2 layout rules.
type infoWriter struct {
	ram  []byte
	base int
	off  int
	err  error
}

func (w *infoWriter) put(b ...byte) {
	if w.err != nil {
		return
	}
	if w.base+w.off+len(b) > len(w.ram) {
		w.err = fmt.Errorf("info block at %#x overruns %d bytes of RAM", w.base, len(w.ram))
		return
	}
	copy(w.ram[w.base+w.off:], b)
	w.off += len(b)
}

func (w *infoWriter) u8(v uint8) { w.put(v) }

func (w *infoWriter) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.put(b[:]...)
}

func (w *infoWriter) u64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.put(b[:]...)
}

func (w *infoWriter) str(s string) {
	w.put([]byte(s)...)
	w.put(0)
}

func (w *infoWriter) mmapEntry(base, length uint64, memType uint32) {
	w.u64(base)
	w.u64(length)
	w.u32(memType)
	w.u32(0)
}

// tag writes a tag header, runs body to produce the payload, patches the
// header with the real size and pads to the next 8-byte boundary.
func (w *infoWriter) tag(tagType uint32, body func()) {
	start := w.off
	w.u32(tagType)
	w.u32(0)
	body()
	if w.err != nil {
		return
	}

	binary.LittleEndian.PutUint32(w.ram[w.base+start+4:], uint32(w.off-start))
	for w.off%8 != 0 {
		w.u8(0)
	}
}
