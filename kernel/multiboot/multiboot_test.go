package multiboot

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/cpu"
)

func TestVisitMemRegions(t *testing.T) {
	defer restoreMemFn()

	installFixture(t, newInfoFixture().
		cmdLine("console=text").
		memoryMap(24, []mmapEntry{
			{0x00000000, 0x0009fc00, 1},
			{0x0009fc00, 0x00000400, 2},
			{0x000f0000, 0x00010000, 2},
			{0x00100000, 0x01f00000, 1},
			{0x02000000, 0x00010000, 0xdead}, // unknown type
		}).
		build())

	var got []MemoryMapEntry
	VisitMemRegions(func(e *MemoryMapEntry) bool {
		got = append(got, *e)
		return true
	})

	exp := []MemoryMapEntry{
		{0x00000000, 0x0009fc00, MemAvailable},
		{0x0009fc00, 0x00000400, MemReserved},
		{0x000f0000, 0x00010000, MemReserved},
		{0x00100000, 0x01f00000, MemAvailable},
		{0x02000000, 0x00010000, MemReserved},
	}

	if diff := cmp.Diff(exp, got); diff != "" {
		t.Fatalf("memory map mismatch (-want +got):\n%s", diff)
	}
}

func TestVisitMemRegionsAbort(t *testing.T) {
	defer restoreMemFn()

	installFixture(t, newInfoFixture().
		memoryMap(24, []mmapEntry{
			{0, 0x1000, 1},
			{0x1000, 0x1000, 1},
			{0x2000, 0x1000, 1},
		}).
		build())

	var visited int
	VisitMemRegions(func(*MemoryMapEntry) bool {
		visited++
		return visited < 2
	})

	if visited != 2 {
		t.Fatalf("expected the scan to stop after 2 entries; visited %d", visited)
	}
}

func TestVisitMemRegionsWithoutTag(t *testing.T) {
	defer restoreMemFn()

	installFixture(t, newInfoFixture().cmdLine("x").build())

	VisitMemRegions(func(*MemoryMapEntry) bool {
		t.Fatal("expected no visits when the memory map tag is missing")
		return false
	})
}

func TestStringTags(t *testing.T) {
	defer restoreMemFn()

	installFixture(t, newInfoFixture().
		cmdLine("loglevel=debug demo").
		loaderName("GRUB 2.06").
		build())

	if got := BootCmdLine(); got != "loglevel=debug demo" {
		t.Fatalf("unexpected command line %q", got)
	}

	if got := BootLoaderName(); got != "GRUB 2.06" {
		t.Fatalf("unexpected boot loader name %q", got)
	}
}

func TestMissingStringTags(t *testing.T) {
	defer restoreMemFn()

	installFixture(t, newInfoFixture().build())

	if got := BootCmdLine(); got != "" {
		t.Fatalf("expected an empty command line; got %q", got)
	}
	if got := BootLoaderName(); got != "" {
		t.Fatalf("expected an empty boot loader name; got %q", got)
	}
}

func TestGetFramebufferInfo(t *testing.T) {
	defer restoreMemFn()

	installFixture(t, newInfoFixture().
		cmdLine("console=text").
		framebuffer(0xB8000, 160, 80, 25, 0, uint8(FramebufferTypeEGA)).
		build())

	fb := GetFramebufferInfo()
	if fb == nil {
		t.Fatal("expected framebuffer info to be present")
	}

	exp := FramebufferInfo{PhysAddr: 0xB8000, Pitch: 160, Width: 80, Height: 25, Bpp: 0, Type: FramebufferTypeEGA}
	if *fb != exp {
		t.Fatalf("expected framebuffer info %+v; got %+v", exp, *fb)
	}
}

func TestGetFramebufferInfoMissing(t *testing.T) {
	defer restoreMemFn()

	installFixture(t, newInfoFixture().cmdLine("x").build())

	if fb := GetFramebufferInfo(); fb != nil {
		t.Fatalf("expected nil framebuffer info; got %+v", fb)
	}
}

func TestInfoSize(t *testing.T) {
	defer restoreMemFn()

	fixture := newInfoFixture().cmdLine("abc").build()
	installFixture(t, fixture)

	if got := InfoSize(); got != uint32(len(fixture)) {
		t.Fatalf("expected info size %d; got %d", len(fixture), got)
	}
}

func TestMemoryEntryTypeString(t *testing.T) {
	specs := []struct {
		t   MemoryEntryType
		exp string
	}{
		{MemAvailable, "available"},
		{MemReserved, "reserved"},
		{MemAcpiReclaimable, "ACPI (reclaimable)"},
		{MemNvs, "NVS"},
		{MemoryEntryType(99), "unknown"},
	}

	for specIndex, spec := range specs {
		if got := spec.t.String(); got != spec.exp {
			t.Errorf("[spec %d] expected %q; got %q", specIndex, spec.exp, got)
		}
	}
}

// installFixture points the package at an in-memory info block.
func installFixture(t *testing.T, block []byte) {
	t.Helper()
	memFn = func(addr, size uintptr) []byte {
		if addr+size > uintptr(len(block)) {
			t.Fatalf("fixture access out of range: addr %d size %d", addr, size)
		}
		return block[addr : addr+size]
	}
	SetInfoPtr(0)
}

func restoreMemFn() {
	memFn = cpu.Mem
	SetInfoPtr(0)
}

// infoFixture assembles a multiboot2 info block the way a bootloader lays
// it out: a total_size/reserved header, then 8-byte aligned tags, then the
// end tag.
type infoFixture struct {
	tags bytes.Buffer
}

type mmapEntry struct {
	base, length uint64
	entryType    uint32
}

func newInfoFixture() *infoFixture { return &infoFixture{} }

func (f *infoFixture) appendTag(tagType uint32, payload []byte) *infoFixture {
	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:], tagType)
	binary.LittleEndian.PutUint32(hdr[4:], uint32(8+len(payload)))
	f.tags.Write(hdr[:])
	f.tags.Write(payload)
	for f.tags.Len()%8 != 0 {
		f.tags.WriteByte(0)
	}
	return f
}

func (f *infoFixture) cmdLine(s string) *infoFixture {
	return f.appendTag(1, append([]byte(s), 0))
}

func (f *infoFixture) loaderName(s string) *infoFixture {
	return f.appendTag(2, append([]byte(s), 0))
}

func (f *infoFixture) memoryMap(entrySize uint32, entries []mmapEntry) *infoFixture {
	var payload bytes.Buffer

	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:], entrySize)
	binary.LittleEndian.PutUint32(hdr[4:], 0)
	payload.Write(hdr[:])

	for _, e := range entries {
		var raw [24]byte
		binary.LittleEndian.PutUint64(raw[0:], e.base)
		binary.LittleEndian.PutUint64(raw[8:], e.length)
		binary.LittleEndian.PutUint32(raw[16:], e.entryType)
		payload.Write(raw[:])
	}

	return f.appendTag(6, payload.Bytes())
}

func (f *infoFixture) framebuffer(physAddr uint64, pitch, width, height uint32, bpp, fbType uint8) *infoFixture {
	var raw [24]byte
	binary.LittleEndian.PutUint64(raw[0:], physAddr)
	binary.LittleEndian.PutUint32(raw[8:], pitch)
	binary.LittleEndian.PutUint32(raw[12:], width)
	binary.LittleEndian.PutUint32(raw[16:], height)
	raw[20] = bpp
	raw[21] = fbType
	return f.appendTag(8, raw[:])
}

func (f *infoFixture) build() []byte {
	var block bytes.Buffer

	// end tag
	f.appendTag(0, nil)

	var hdr [8]byte
	binary.LittleEndian.PutUint32(hdr[0:], uint32(8+f.tags.Len()))
	block.Write(hdr[:])
	block.Write(f.tags.Bytes())

	return block.Bytes()
}
