// Package pic drives the two cascaded 8259 programmable interrupt
// controllers. The kernel remaps their vector offsets away from the CPU
// exception range, acknowledges served interrupts and masks the lines it has
// no handler for.
package pic

import "github.com/uiaict/2025-ikt218-osdev-sub005/kernel/cpu"

const (
	masterCmdPort  = 0x20
	masterDataPort = 0x21
	slaveCmdPort   = 0xa0
	slaveDataPort  = 0xa1

	// Initialization command words for the remap sequence.
	icw1Init = 0x11 // edge-triggered, cascade, ICW4 follows
	icw3Wire = 0x04 // slave on master line 2
	icw3ID   = 0x02 // slave cascade identity
	icw4Mode = 0x01 // 8086 mode

	cmdEOI = 0x20

	// IRQLines is the number of lines across both controllers.
	IRQLines = 16

	// Post-remap masks: timer, keyboard and the slave cascade enabled,
	// everything else off.
	initialMasterMask = 0xf8
	initialSlaveMask  = 0xff
)

var (
	portReadByteFn  = cpu.PortReadByte
	portWriteByteFn = cpu.PortWriteByte
	ioWaitFn        = cpu.IOWait
)

// Remap reprograms both controllers so the master delivers its lines at
// vector offset1 and the slave at offset2. The controllers power up mapped
// over the CPU exception vectors; running with that mapping makes every
// hardware interrupt look like a fault.
func Remap(offset1, offset2 uint8) {
	portWriteByteFn(masterCmdPort, icw1Init)
	ioWaitFn()
	portWriteByteFn(slaveCmdPort, icw1Init)
	ioWaitFn()
	portWriteByteFn(masterDataPort, offset1)
	ioWaitFn()
	portWriteByteFn(slaveDataPort, offset2)
	ioWaitFn()
	portWriteByteFn(masterDataPort, icw3Wire)
	ioWaitFn()
	portWriteByteFn(slaveDataPort, icw3ID)
	ioWaitFn()
	portWriteByteFn(masterDataPort, icw4Mode)
	ioWaitFn()
	portWriteByteFn(slaveDataPort, icw4Mode)
	ioWaitFn()

	portWriteByteFn(masterDataPort, initialMasterMask)
	portWriteByteFn(slaveDataPort, initialSlaveMask)
}

// EOI acknowledges the interrupt that raised the supplied vector. Vectors
// served by the slave controller are acknowledged on both chips; the master
// always gets one because the slave cascades through it.
func EOI(vector uint8) {
	if vector >= 40 {
		portWriteByteFn(slaveCmdPort, cmdEOI)
	}
	portWriteByteFn(masterCmdPort, cmdEOI)
}

// SetMask disables delivery of the supplied IRQ line.
func SetMask(irq uint8) {
	port, bit := lineFor(irq)
	portWriteByteFn(port, portReadByteFn(port)|1<<bit)
}

// ClearMask enables delivery of the supplied IRQ line.
func ClearMask(irq uint8) {
	port, bit := lineFor(irq)
	portWriteByteFn(port, portReadByteFn(port)&^(1<<bit))
}

// Disable masks every line on both controllers.
func Disable() {
	portWriteByteFn(masterDataPort, 0xff)
	portWriteByteFn(slaveDataPort, 0xff)
}

func lineFor(irq uint8) (port uint16, bit uint8) {
	if irq < 8 {
		return masterDataPort, irq
	}
	return slaveDataPort, irq - 8
}
