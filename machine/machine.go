// Package machine models the PC hardware the kernel drives: guest RAM, the
// port I/O bus, the 8259 interrupt controller pair, the 8254 interval timer,
// the PC speaker gate, a PS/2 keyboard port, the VGA text-mode registers and
// the CPU interrupt flag with hlt/wake semantics. The model implements
// cpu.Backend, so booting the kernel on it amounts to Install followed by the
// kernel entry point.
//
// Interrupt delivery happens on the goroutine that advances machine time
// (AdvanceMillis or Run) or, for interrupts that were pending while the flag
// was clear, on the goroutine that re-enables the flag. From the kernel's
// point of view handlers always run in interrupt context with the flag
// cleared until the delivery returns.
package machine

import (
	"context"
	"sync"
	"time"
	"unsafe"

	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/cpu"
)

const (
	bootInfoAddr = 0x9000

	vgaTextAddr = 0xb8000
	vgaCols     = 80
	vgaRows     = 25

	// pitInputHz is the input clock shared by all 8254 channels.
	pitInputHz = 1193180

	irqLineTimer    = 0
	irqLineKeyboard = 1

	vectorGPF       = 13
	vectorPageFault = 14
)

// ToneEvent records a PC speaker transition: the gate opening or closing, or
// channel 2 being retuned while the gate is open. Hz is 0 while the speaker
// is silent.
type ToneEvent struct {
	AtMillis uint64
	Divisor  uint16
	Hz       uint32
	Gate     bool
}

// PICStats exposes the interrupt controller bookkeeping tests assert on.
type PICStats struct {
	MasterOffset, SlaveOffset uint8
	MasterIMR, SlaveIMR       uint8
	MasterISR, SlaveISR       uint8
	MasterEOIs, SlaveEOIs     uint64
}

// Machine is a software model of the i386 PC the kernel targets. All exported
// methods are safe for concurrent use; the mutex that guards the machine
// state doubles as the CPU bus lock, so port I/O and interrupt flag changes
// order each other exactly like instructions on a single core.
type Machine struct {
	cfg Config
	ram []byte

	mu   sync.Mutex
	cond *sync.Cond

	now uint64

	// CPU state.
	ifFlag      bool
	parked      int
	deliverySeq uint64
	haltSeenSeq uint64
	dispatcher  cpu.DispatchFunc
	gdtPtr      cpu.DescriptorTablePtr
	idtPtr      cpu.DescriptorTablePtr
	idtLoaded   bool
	cs, ds      uint16
	cr2         uint32
	cr3         uintptr
	pseOn       bool
	pagingOn    bool

	// Devices.
	pics   *picPair
	pit    *i8254
	kbd    *i8042
	vga    *vgaRegs
	port61 uint8

	tones     []ToneEvent
	irqCounts [16]uint64

	infoAddr uintptr
	infoSize uint32

	trace *tracer
}

var _ cpu.Backend = (*Machine)(nil)

// New builds a powered-on machine per cfg. The guest RAM starts zeroed, the
// interrupt flag starts clear and no boot information has been written yet.
func New(cfg Config) (*Machine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	m := &Machine{
		cfg:   cfg,
		ram:   make([]byte, cfg.RAMMiB<<20),
		pics:  newPICPair(),
		pit:   newI8254(),
		vga:   newVGARegs(),
		trace: newTracer(cfg.Logger, cfg.TraceIO),
	}
	m.cond = sync.NewCond(&m.mu)
	m.kbd = newI8042(func() { m.pics.raise(irqLineKeyboard) })
	return m, nil
}

// Install wires the machine into the kernel's cpu package as the active
// hardware backend.
func (m *Machine) Install() {
	cpu.Install(m)
}

// PortReadByte implements cpu.Backend.
func (m *Machine) PortReadByte(port uint16) uint8 {
	m.mu.Lock()
	v := m.portReadLocked(port)
	m.mu.Unlock()
	m.trace.portRead(port, v)
	return v
}

// PortWriteByte implements cpu.Backend.
func (m *Machine) PortWriteByte(port uint16, val uint8) {
	m.mu.Lock()
	m.portWriteLocked(port, val)
	m.mu.Unlock()
	m.trace.portWrite(port, val)
}

// PortReadWord implements cpu.Backend. Word access is modeled as two byte
// transactions on consecutive ports, low byte first.
func (m *Machine) PortReadWord(port uint16) uint16 {
	lo := m.PortReadByte(port)
	hi := m.PortReadByte(port + 1)
	return uint16(lo) | uint16(hi)<<8
}

// PortWriteWord implements cpu.Backend.
func (m *Machine) PortWriteWord(port uint16, val uint16) {
	m.PortWriteByte(port, uint8(val))
	m.PortWriteByte(port+1, uint8(val>>8))
}

func (m *Machine) portReadLocked(port uint16) uint8 {
	switch port {
	case 0x20:
		return m.pics.master.readCmd()
	case 0x21:
		return m.pics.master.readData()
	case 0xa0:
		return m.pics.slave.readCmd()
	case 0xa1:
		return m.pics.slave.readData()
	case 0x40, 0x41, 0x42:
		return m.pit.readCount(int(port - 0x40))
	case 0x60:
		return m.kbd.readOutput()
	case 0x64:
		return m.kbd.readStatus()
	case 0x61:
		return m.port61
	case 0x3d4:
		return m.vga.readCRTCIndex()
	case 0x3d5:
		return m.vga.readCRTCData()
	default:
		// Nothing drives the line: the bus floats high.
		return 0xff
	}
}

func (m *Machine) portWriteLocked(port uint16, val uint8) {
	switch port {
	case 0x20:
		m.pics.master.writeCmd(val)
	case 0x21:
		m.pics.master.writeData(val)
	case 0xa0:
		m.pics.slave.writeCmd(val)
	case 0xa1:
		m.pics.slave.writeData(val)
	case 0x43:
		m.pit.writeCommand(val)
	case 0x40, 0x41, 0x42:
		ch := int(port - 0x40)
		if m.pit.writeData(ch, val) && ch == 2 && m.speakerGateOpenLocked() {
			m.recordToneLocked(true)
		}
	case 0x61:
		old := m.port61
		m.port61 = val
		m.pit.setGate(2, val&0x01 != 0)
		if old&speakerPortBits != val&speakerPortBits {
			m.recordToneLocked(val&speakerPortBits == speakerPortBits)
		}
	case 0x3d4:
		m.vga.writeCRTCIndex(val)
	case 0x3d5:
		m.vga.writeCRTCData(val)
	case 0x3c8:
		m.vga.writeDACIndex(val)
	case 0x3c9:
		m.vga.writeDACData(val)
	case 0x80:
		// POST diagnostic port, used for bus delays only.
	default:
	}
}

// speakerPortBits are the two port 0x61 bits that couple PIT channel 2 to
// the speaker cone: the timer gate and the data enable.
const speakerPortBits = 0x03

func (m *Machine) speakerGateOpenLocked() bool {
	return m.port61&speakerPortBits == speakerPortBits
}

func (m *Machine) recordToneLocked(on bool) {
	ev := ToneEvent{AtMillis: m.now, Divisor: uint16(m.pit.reload(2)), Gate: on}
	if on && ev.Divisor != 0 {
		ev.Hz = pitInputHz / uint32(ev.Divisor)
	}
	m.tones = append(m.tones, ev)
}

// EnableInterrupts implements cpu.Backend. Any interrupt left pending while
// the flag was clear is delivered on the calling goroutine before the call
// returns.
func (m *Machine) EnableInterrupts() {
	m.mu.Lock()
	m.ifFlag = true
	m.mu.Unlock()
	m.deliverPending()
}

// DisableInterrupts implements cpu.Backend.
func (m *Machine) DisableInterrupts() {
	m.mu.Lock()
	m.ifFlag = false
	m.mu.Unlock()
}

// InterruptsEnabled implements cpu.Backend.
func (m *Machine) InterruptsEnabled() bool {
	m.mu.Lock()
	v := m.ifFlag
	m.mu.Unlock()
	return v
}

// Halt implements cpu.Backend. With the interrupt flag set, a delivery that
// landed since the previous Halt returned makes the call return immediately;
// this mirrors the sti shadow on real hardware, where an interrupt arriving
// between sti and hlt still wakes the hlt. Otherwise Halt blocks until the
// next delivery, which with the interrupt flag clear means forever.
func (m *Machine) Halt() {
	m.mu.Lock()
	if m.ifFlag && m.haltSeenSeq < m.deliverySeq {
		m.haltSeenSeq = m.deliverySeq
		m.mu.Unlock()
		return
	}

	m.parked++
	m.cond.Broadcast()
	seq := m.deliverySeq
	for m.deliverySeq == seq {
		m.cond.Wait()
	}
	m.parked--
	m.haltSeenSeq = m.deliverySeq
	m.mu.Unlock()
}

// LoadGDT implements cpu.Backend. The table lives in kernel memory; the
// machine keeps the pointer to decode descriptors on demand.
func (m *Machine) LoadGDT(ptr cpu.DescriptorTablePtr) {
	m.mu.Lock()
	m.gdtPtr = ptr
	m.mu.Unlock()
}

// LoadIDT implements cpu.Backend.
func (m *Machine) LoadIDT(ptr cpu.DescriptorTablePtr) {
	m.mu.Lock()
	m.idtPtr = ptr
	m.idtLoaded = true
	m.mu.Unlock()
}

// ReloadSegments implements cpu.Backend.
func (m *Machine) ReloadSegments(codeSel, dataSel uint16) {
	m.mu.Lock()
	m.cs, m.ds = codeSel, dataSel
	m.mu.Unlock()
}

// SetInterruptDispatcher implements cpu.Backend.
func (m *Machine) SetInterruptDispatcher(fn cpu.DispatchFunc) {
	m.mu.Lock()
	m.dispatcher = fn
	m.mu.Unlock()
}

// SwitchPDT implements cpu.Backend.
func (m *Machine) SwitchPDT(pdtPhysAddr uintptr) {
	m.mu.Lock()
	m.cr3 = pdtPhysAddr
	m.mu.Unlock()
}

// ActivePDT implements cpu.Backend.
func (m *Machine) ActivePDT() uintptr {
	m.mu.Lock()
	v := m.cr3
	m.mu.Unlock()
	return v
}

// EnablePSE implements cpu.Backend.
func (m *Machine) EnablePSE() {
	m.mu.Lock()
	m.pseOn = true
	m.mu.Unlock()
}

// EnablePaging implements cpu.Backend. Before setting the paging bit the
// machine checks that the active directory identity-maps the ranges the
// kernel cannot run without: its own image, the VGA text window and the boot
// information block. A hole delivers a page fault with CR2 pointing at the
// first unmapped byte instead of enabling translation.
func (m *Machine) EnablePaging() {
	m.mu.Lock()
	required := [][2]uint32{
		{m.cfg.KernelStart, m.cfg.KernelEnd},
		{vgaTextAddr, vgaTextAddr + vgaCols*vgaRows*2},
	}
	if m.infoSize != 0 {
		required = append(required, [2]uint32{uint32(m.infoAddr), uint32(m.infoAddr) + m.infoSize})
	}

	for _, r := range required {
		if addr, ok := m.identityHoleLocked(r[0], r[1]); ok {
			m.cr2 = addr
			m.mu.Unlock()
			m.deliverVector(vectorPageFault, 0, 0)
			return
		}
	}

	m.pagingOn = true
	m.mu.Unlock()
}

// identityHoleLocked returns the first address in [start, end) that the
// active directory does not identity-map with a present 4 MiB entry.
func (m *Machine) identityHoleLocked(start, end uint32) (uint32, bool) {
	if !m.pseOn || m.cr3 == 0 {
		return start, true
	}

	for addr := start &^ (pageSize - 1); addr < end; addr += pageSize {
		index := uintptr(addr >> 22)
		entryAddr := m.cr3 + index*4
		if entryAddr+4 > uintptr(len(m.ram)) {
			return addr, true
		}
		entry := uint32(m.ram[entryAddr]) | uint32(m.ram[entryAddr+1])<<8 |
			uint32(m.ram[entryAddr+2])<<16 | uint32(m.ram[entryAddr+3])<<24
		if entry&pdeFlags != pdeFlags || entry&^(pageSize-1) != addr&^(pageSize-1) {
			return addr, true
		}
		if addr > end-pageSize {
			break
		}
	}
	return 0, false
}

const (
	pageSize = 4 << 20

	// pdeFlags is present|writable|page-size, the shape of every directory
	// entry the kernel installs.
	pdeFlags = 0x83
)

// PagingEnabled implements cpu.Backend.
func (m *Machine) PagingEnabled() bool {
	m.mu.Lock()
	v := m.pagingOn
	m.mu.Unlock()
	return v
}

// ReadCR2 implements cpu.Backend.
func (m *Machine) ReadCR2() uint32 {
	m.mu.Lock()
	v := m.cr2
	m.mu.Unlock()
	return v
}

// RAM implements cpu.Backend.
func (m *Machine) RAM() []byte {
	return m.ram
}

// AdvanceMillis moves machine time forward n milliseconds. Each step clocks
// the 8254 channels, raises IRQ0 for every channel 0 output edge and then
// delivers whatever the interrupt controllers have pending. Delivery runs on
// the calling goroutine, so when this returns every handler the step
// triggered has finished.
func (m *Machine) AdvanceMillis(n uint32) {
	for i := uint32(0); i < n; i++ {
		m.mu.Lock()
		m.now++
		edges := m.pit.advanceMilli()
		for e := 0; e < edges; e++ {
			m.pics.raise(irqLineTimer)
		}
		m.mu.Unlock()
		m.deliverPending()
	}
}

// Run advances machine time in step with the wall clock until ctx is
// cancelled. Missed ticker wakeups are made up in batches so guest time
// tracks host time.
func (m *Machine) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			elapsed := now.Sub(last)
			steps := uint32(elapsed / time.Millisecond)
			if steps == 0 {
				continue
			}
			last = last.Add(time.Duration(steps) * time.Millisecond)
			m.AdvanceMillis(steps)
		}
	}
}

// RaiseIRQ asserts a controller input line and delivers it if the CPU is
// accepting interrupts.
func (m *Machine) RaiseIRQ(line uint8) {
	m.mu.Lock()
	m.pics.raise(line)
	m.mu.Unlock()
	m.deliverPending()
}

// SoftInterrupt delivers vector synchronously on the calling goroutine the
// way an int instruction would: the interrupt flag is ignored, the gate for
// the vector is decoded and the kernel dispatcher runs before the call
// returns. A panicking kernel handler that halts forever blocks the caller.
func (m *Machine) SoftInterrupt(vector uint8) {
	m.deliverVector(vector, 0, 0)
}

// deliverPending drains the interrupt controllers while the interrupt flag
// is set. Each delivered vector runs the kernel dispatcher with the flag
// cleared; the flag is restored when the dispatcher returns, mirroring
// interrupt gate entry and iret.
func (m *Machine) deliverPending() {
	for {
		m.mu.Lock()
		if !m.ifFlag || m.dispatcher == nil || !m.idtLoaded {
			m.mu.Unlock()
			return
		}
		vector, line, ok := m.pics.acknowledge()
		if !ok {
			m.mu.Unlock()
			return
		}
		m.irqCounts[line]++
		m.mu.Unlock()

		m.trace.irq(line, vector)
		m.deliverVector(vector, 0, 0)
	}
}

// deliverVector decodes the gate for vector and invokes the kernel
// dispatcher. A missing or non-present gate escalates to a general
// protection fault; a missing GPF gate is fatal to the host.
func (m *Machine) deliverVector(vector uint8, errCode uint32, depth int) {
	m.mu.Lock()
	dispatch := m.dispatcher
	gateOK := m.gatePresentLocked(vector)
	prevIF := m.ifFlag
	if gateOK {
		m.ifFlag = false
	}
	m.mu.Unlock()

	if dispatch == nil {
		panic("machine: interrupt raised before a dispatcher was installed")
	}
	if !gateOK {
		if depth >= 1 {
			panic("machine: no usable gate for the general protection fault vector")
		}
		m.deliverVector(vectorGPF, uint32(vector)<<3|2, depth+1)
		return
	}

	dispatch(vector, errCode)

	m.mu.Lock()
	m.ifFlag = prevIF
	m.deliverySeq++
	m.cond.Broadcast()
	m.mu.Unlock()
}

// gatePresentLocked decodes the IDT entry for vector from kernel memory and
// reports whether it is a present ring-0 32-bit interrupt gate.
func (m *Machine) gatePresentLocked(vector uint8) bool {
	if !m.idtLoaded {
		return false
	}
	off := uint32(vector) * 8
	if off+8 > uint32(m.idtPtr.Limit)+1 {
		return false
	}

	// The LIDT operand is a plain address, so Base arrives as a uintptr.
	// The kernel's gate table is a package-level array that stays live and
	// fixed for the machine's lifetime, so the round-trip is sound.
	// nolint: vet
	raw := *(*[8]byte)(unsafe.Pointer(m.idtPtr.Base + uintptr(off)))
	typeAttr := raw[5]
	return typeAttr&0x80 != 0 && typeAttr&0x0f == 0x0e
}

// NowMillis returns the machine time in milliseconds since power-on.
func (m *Machine) NowMillis() uint64 {
	m.mu.Lock()
	v := m.now
	m.mu.Unlock()
	return v
}

// Parked reports whether the CPU goroutine is blocked in Halt.
func (m *Machine) Parked() bool {
	m.mu.Lock()
	v := m.parked > 0
	m.mu.Unlock()
	return v
}

// TerminallyParked reports whether the CPU goroutine is blocked in Halt with
// the interrupt flag clear, the state a kernel panic ends in.
func (m *Machine) TerminallyParked() bool {
	m.mu.Lock()
	v := m.parked > 0 && !m.ifFlag
	m.mu.Unlock()
	return v
}

// WaitParked blocks until the CPU goroutine parks in Halt. RAM writes the
// kernel issued before parking are visible to the caller afterwards.
func (m *Machine) WaitParked() {
	m.mu.Lock()
	for m.parked == 0 {
		m.cond.Wait()
	}
	m.mu.Unlock()
}

// Segments returns the selectors the kernel loaded into CS and the data
// segment registers.
func (m *Machine) Segments() (cs, ds uint16) {
	m.mu.Lock()
	cs, ds = m.cs, m.ds
	m.mu.Unlock()
	return cs, ds
}

// DescriptorTables returns the pointers the kernel loaded with lgdt and
// lidt.
func (m *Machine) DescriptorTables() (gdt, idt cpu.DescriptorTablePtr) {
	m.mu.Lock()
	gdt, idt = m.gdtPtr, m.idtPtr
	m.mu.Unlock()
	return gdt, idt
}

// ToneEvents returns a copy of the recorded speaker transitions.
func (m *Machine) ToneEvents() []ToneEvent {
	m.mu.Lock()
	out := make([]ToneEvent, len(m.tones))
	copy(out, m.tones)
	m.mu.Unlock()
	return out
}

// SpeakerState returns the current speaker gate state and, while the gate is
// open, the programmed frequency.
func (m *Machine) SpeakerState() (gateOpen bool, divisor uint16, hz uint32) {
	m.mu.Lock()
	gateOpen = m.speakerGateOpenLocked()
	divisor = uint16(m.pit.reload(2))
	if gateOpen && divisor != 0 {
		hz = pitInputHz / uint32(divisor)
	}
	m.mu.Unlock()
	return gateOpen, divisor, hz
}

// PICStats snapshots the interrupt controller bookkeeping.
func (m *Machine) PICStats() PICStats {
	m.mu.Lock()
	st := PICStats{
		MasterOffset: m.pics.master.offset,
		SlaveOffset:  m.pics.slave.offset,
		MasterIMR:    m.pics.master.imr,
		SlaveIMR:     m.pics.slave.imr,
		MasterISR:    m.pics.master.isr,
		SlaveISR:     m.pics.slave.isr,
		MasterEOIs:   m.pics.master.eoiCount,
		SlaveEOIs:    m.pics.slave.eoiCount,
	}
	m.mu.Unlock()
	return st
}

// DeliveredIRQs returns how many times the supplied controller line has been
// acknowledged and dispatched.
func (m *Machine) DeliveredIRQs(line uint8) uint64 {
	m.mu.Lock()
	v := m.irqCounts[line&0x0f]
	m.mu.Unlock()
	return v
}

// InjectScancodes queues raw scancode bytes on the keyboard port. Each byte
// raises IRQ1 once the previous byte has been read from port 0x60.
func (m *Machine) InjectScancodes(codes ...uint8) {
	m.mu.Lock()
	m.kbd.inject(codes...)
	m.mu.Unlock()
	m.deliverPending()
}

// TypeText injects the make/break scancode sequence that produces text on a
// US-layout keyboard. Characters without a scancode mapping are skipped.
func (m *Machine) TypeText(text string) {
	m.InjectScancodes(scancodesForText(text)...)
}
