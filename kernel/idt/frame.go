package idt

import (
	"unsafe"

	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/kfmt"
)

// eflags bits recorded in interrupt frames.
const (
	eflagsReserved = 1 << 1
	eflagsIF       = 1 << 9
)

// Frame contains a snapshot of the CPU state pushed when an interrupt,
// exception or hardware IRQ is taken: the data segment selector, the general
// purpose registers, the vector and error code, and the return frame
// consumed by iret.
type Frame struct {
	DS uint32

	EDI uint32
	ESI uint32
	EBP uint32
	ESP uint32
	EBX uint32
	EDX uint32
	ECX uint32
	EAX uint32

	IntNo   uint32
	ErrCode uint32

	EIP     uint32
	CS      uint32
	EFlags  uint32
	UserESP uint32
	SS      uint32
}

// Interrupt stubs push the frame as 16 consecutive 32-bit words; handlers
// index into it through this layout.
var _ = [1]struct{}{}[unsafe.Sizeof(Frame{})-16*4]

// Print outputs a dump of the frame to the active console.
func (f *Frame) Print() {
	kfmt.Printf("EAX = %8x EBX = %8x ECX = %8x EDX = %8x\n", f.EAX, f.EBX, f.ECX, f.EDX)
	kfmt.Printf("ESI = %8x EDI = %8x EBP = %8x ESP = %8x\n", f.ESI, f.EDI, f.EBP, f.ESP)
	kfmt.Printf("EIP = %8x CS  = %8x EFL = %8x\n", f.EIP, f.CS, f.EFlags)
	kfmt.Printf("DS  = %8x SS  = %8x\n", f.DS, f.SS)
	kfmt.Printf("INT = %8x ERR = %8x\n", f.IntNo, f.ErrCode)
}
