// Package cpu provides the privileged i386 operations the kernel builds on:
// port I/O, the interrupt flag, descriptor table loads and the paging control
// registers. The operations execute against a pluggable hardware Backend so
// the same kernel code drives the software machine model on a dev host.
package cpu

// DescriptorTablePtr mirrors the 6-byte operand consumed by the lgdt and
// lidt instructions.
type DescriptorTablePtr struct {
	// Limit is the table size in bytes minus one.
	Limit uint16

	// Base is the physical address of the first table entry.
	Base uintptr
}

// DispatchFunc is the kernel entry point the hardware invokes to deliver
// interrupt vectors. It is the hosted analog of the interrupt service stubs
// a freestanding kernel points its gate descriptors at.
type DispatchFunc func(vector uint8, errCode uint32)

// Backend is the hardware the CPU primitives execute against.
type Backend interface {
	// Port I/O.
	PortReadByte(port uint16) uint8
	PortWriteByte(port uint16, val uint8)
	PortReadWord(port uint16) uint16
	PortWriteWord(port uint16, val uint16)

	// Interrupt flag handling. Halt blocks until an interrupt has been
	// delivered; with interrupts disabled it never returns.
	EnableInterrupts()
	DisableInterrupts()
	InterruptsEnabled() bool
	Halt()

	// Descriptor tables and segmentation.
	LoadGDT(ptr DescriptorTablePtr)
	LoadIDT(ptr DescriptorTablePtr)
	ReloadSegments(codeSel, dataSel uint16)
	SetInterruptDispatcher(fn DispatchFunc)

	// Paging control registers.
	SwitchPDT(pdtPhysAddr uintptr)
	ActivePDT() uintptr
	EnablePSE()
	EnablePaging()
	PagingEnabled() bool
	ReadCR2() uint32

	// RAM exposes guest physical memory as a flat byte slice; addresses
	// used by the kernel are indices into it.
	RAM() []byte
}

var activeBackend Backend = &nopBackend{}

// Install connects the CPU primitives to a hardware backend. It must be
// called before the kernel boots; the default backend panics on first use to
// surface wiring mistakes early.
func Install(b Backend) {
	activeBackend = b
}

// Installed returns true when a real hardware backend has been installed.
func Installed() bool {
	_, nop := activeBackend.(*nopBackend)
	return !nop
}

// PortReadByte reads a uint8 value from the requested port.
func PortReadByte(port uint16) uint8 { return activeBackend.PortReadByte(port) }

// PortWriteByte writes a uint8 value to the requested port.
func PortWriteByte(port uint16, val uint8) { activeBackend.PortWriteByte(port, val) }

// PortReadWord reads a uint16 value from the requested port.
func PortReadWord(port uint16) uint16 { return activeBackend.PortReadWord(port) }

// PortWriteWord writes a uint16 value to the requested port.
func PortWriteWord(port uint16, val uint16) { activeBackend.PortWriteWord(port, val) }

// IOWait inserts a short delay on the bus by writing to the unused POST
// diagnostic port. Legacy device programming sequences require it between
// successive command writes.
func IOWait() { activeBackend.PortWriteByte(0x80, 0) }

// EnableInterrupts enables interrupt handling.
func EnableInterrupts() { activeBackend.EnableInterrupts() }

// DisableInterrupts disables interrupt handling.
func DisableInterrupts() { activeBackend.DisableInterrupts() }

// InterruptsEnabled returns the state of the interrupt flag.
func InterruptsEnabled() bool { return activeBackend.InterruptsEnabled() }

// Halt suspends execution until the next interrupt is delivered. When
// interrupts are disabled Halt never returns.
func Halt() { activeBackend.Halt() }

// LoadGDT loads the global descriptor table located at ptr.
func LoadGDT(ptr DescriptorTablePtr) { activeBackend.LoadGDT(ptr) }

// LoadIDT loads the interrupt descriptor table located at ptr.
func LoadIDT(ptr DescriptorTablePtr) { activeBackend.LoadIDT(ptr) }

// ReloadSegments reloads CS with codeSel and the data segment registers with
// dataSel after a new GDT has been loaded.
func ReloadSegments(codeSel, dataSel uint16) { activeBackend.ReloadSegments(codeSel, dataSel) }

// SetInterruptDispatcher registers the kernel function that receives
// delivered interrupt vectors.
func SetInterruptDispatcher(fn DispatchFunc) { activeBackend.SetInterruptDispatcher(fn) }

// SwitchPDT sets the root page table directory to point to the specified
// physical address and flushes the TLB.
func SwitchPDT(pdtPhysAddr uintptr) { activeBackend.SwitchPDT(pdtPhysAddr) }

// ActivePDT returns the physical address of the currently active page table.
func ActivePDT() uintptr { return activeBackend.ActivePDT() }

// EnablePSE turns on page size extensions (4 MiB pages).
func EnablePSE() { activeBackend.EnablePSE() }

// EnablePaging turns on address translation.
func EnablePaging() { activeBackend.EnablePaging() }

// PagingEnabled returns the state of the paging bit.
func PagingEnabled() bool { return activeBackend.PagingEnabled() }

// ReadCR2 returns the faulting address stored in the CR2 register.
func ReadCR2() uint32 { return activeBackend.ReadCR2() }

// RAMSize returns the amount of guest physical memory.
func RAMSize() uintptr { return uintptr(len(activeBackend.RAM())) }

// Mem returns the size bytes of guest physical memory starting at addr. It
// panics when the range falls outside RAM; kernel code computes addresses
// from the boot memory map so an out-of-range access is a bug.
func Mem(addr, size uintptr) []byte {
	ram := activeBackend.RAM()
	end := addr + size
	if end < addr || end > uintptr(len(ram)) {
		panic("cpu: physical memory access out of range")
	}
	return ram[addr:end]
}

// nopBackend is the placeholder installed before boot wiring runs.
type nopBackend struct{}

func (*nopBackend) fail() { panic("cpu: no hardware backend installed") }

func (b *nopBackend) PortReadByte(uint16) uint8         { b.fail(); return 0 }
func (b *nopBackend) PortWriteByte(uint16, uint8)       { b.fail() }
func (b *nopBackend) PortReadWord(uint16) uint16        { b.fail(); return 0 }
func (b *nopBackend) PortWriteWord(uint16, uint16)      { b.fail() }
func (b *nopBackend) EnableInterrupts()                 { b.fail() }
func (b *nopBackend) DisableInterrupts()                { b.fail() }
func (b *nopBackend) InterruptsEnabled() bool           { b.fail(); return false }
func (b *nopBackend) Halt()                             { b.fail() }
func (b *nopBackend) LoadGDT(DescriptorTablePtr)        { b.fail() }
func (b *nopBackend) LoadIDT(DescriptorTablePtr)        { b.fail() }
func (b *nopBackend) ReloadSegments(uint16, uint16)     { b.fail() }
func (b *nopBackend) SetInterruptDispatcher(DispatchFunc) { b.fail() }
func (b *nopBackend) SwitchPDT(uintptr)                 { b.fail() }
func (b *nopBackend) ActivePDT() uintptr                { b.fail(); return 0 }
func (b *nopBackend) EnablePSE()                        { b.fail() }
func (b *nopBackend) EnablePaging()                     { b.fail() }
func (b *nopBackend) PagingEnabled() bool               { b.fail(); return false }
func (b *nopBackend) ReadCR2() uint32                   { b.fail(); return 0 }
func (b *nopBackend) RAM() []byte                       { b.fail(); return nil }
