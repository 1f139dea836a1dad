// Package idt owns the interrupt descriptor table and routes delivered
// vectors to registered handlers. CPU exceptions occupy vectors 0-31 and the
// remapped hardware IRQ lines vectors 32-47; both get their own handler
// table so drivers can subscribe to an IRQ line without knowing where the
// controllers were remapped to.
package idt

import (
	"unsafe"

	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel"
	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/cpu"
	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/gdt"
	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/kfmt"
	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/pic"
	kernelsync "github.com/uiaict/2025-ikt218-osdev-sub005/kernel/sync"
)

const (
	gateCount = 256

	// IRQBase is the vector the master controller lines are remapped to;
	// the slave lines follow at IRQBase+8.
	IRQBase = 32

	irqCount = 16

	// installedVectors counts the gates wired to service stubs: the 32
	// exceptions plus both controllers' lines.
	installedVectors = IRQBase + irqCount

	// typeAttrInterruptGate marks a present ring-0 32-bit interrupt gate.
	typeAttrInterruptGate = 0x8e

	// Service stubs are laid out as a table of fixed-size entries at a
	// known spot in the kernel image; each gate points at its vector's
	// slot.
	stubAreaBase = 0x00100400
	stubSpan     = 16
)

// Gate is a packed 8-byte interrupt gate descriptor.
type Gate struct {
	offsetLow  uint16
	selector   uint16
	zero       uint8
	typeAttr   uint8
	offsetHigh uint16
}

// The CPU consumes gates as raw 8-byte values.
var _ = [1]struct{}{}[unsafe.Sizeof(Gate{})-8]

func newGate(offset uint32, selector uint16, typeAttr uint8) Gate {
	return Gate{
		offsetLow:  uint16(offset),
		selector:   selector,
		typeAttr:   typeAttr,
		offsetHigh: uint16(offset >> 16),
	}
}

// Offset returns the handler entry point encoded in the gate.
func (g Gate) Offset() uint32 { return uint32(g.offsetLow) | uint32(g.offsetHigh)<<16 }

// Selector returns the code segment selector encoded in the gate.
func (g Gate) Selector() uint16 { return g.selector }

// TypeAttr returns the gate type/attribute byte.
func (g Gate) TypeAttr() uint8 { return g.typeAttr }

// Present returns true when the gate has its present bit set.
func (g Gate) Present() bool { return g.typeAttr&0x80 != 0 }

// HandlerFunc services a delivered interrupt vector. It runs in interrupt
// context with further delivery suppressed, so it must not block. The ctx
// value is the one supplied at registration.
type HandlerFunc func(frame *Frame, ctx interface{})

type handlerEntry struct {
	fn  HandlerFunc
	ctx interface{}
}

var (
	gates       [gateCount]Gate
	intHandlers [gateCount]handlerEntry
	irqHandlers [irqCount]handlerEntry

	loadIDTFn          = cpu.LoadIDT
	setDispatcherFn    = cpu.SetInterruptDispatcher
	picRemapFn         = pic.Remap
	picEOIFn           = pic.EOI
	panicFn            = kfmt.Panic
	withIRQsDisabledFn = kernelsync.WithInterruptsDisabled

	errIRQOutOfRange      = &kernel.Error{Module: "idt", Message: "irq line out of range"}
	errUnhandledException = &kernel.Error{Module: "idt", Message: "unhandled exception"}
	errUnknownVector      = &kernel.Error{Module: "idt", Message: "interrupt with no gate installed"}
)

// Init populates gates for every serviced vector, loads the table, installs
// the dispatch entry point and remaps the interrupt controllers clear of the
// exception range. Handler tables start empty; until a driver registers, an
// IRQ is acknowledged and dropped while an exception panics.
func Init() {
	for v := 0; v < installedVectors; v++ {
		gates[v] = newGate(stubAreaBase+uint32(v)*stubSpan, gdt.SelectorKernelCode, typeAttrInterruptGate)
	}
	for v := installedVectors; v < gateCount; v++ {
		gates[v] = Gate{}
	}

	loadIDTFn(cpu.DescriptorTablePtr{
		Limit: uint16(unsafe.Sizeof(gates) - 1),
		Base:  uintptr(unsafe.Pointer(&gates[0])),
	})
	setDispatcherFn(Dispatch)

	picRemapFn(IRQBase, IRQBase+8)
}

// RegisterHandler installs fn as the handler for an exception or software
// interrupt vector. The last registration wins; a nil fn removes the
// current handler.
func RegisterHandler(num InterruptNumber, fn HandlerFunc, ctx interface{}) {
	withIRQsDisabledFn(func() {
		intHandlers[num] = handlerEntry{fn: fn, ctx: ctx}
	})
}

// RegisterIRQHandler installs fn as the handler for a hardware IRQ line.
// The last registration wins; a nil fn removes the current handler.
func RegisterIRQHandler(irq uint8, fn HandlerFunc, ctx interface{}) *kernel.Error {
	if irq >= irqCount {
		return errIRQOutOfRange
	}

	withIRQsDisabledFn(func() {
		irqHandlers[irq] = handlerEntry{fn: fn, ctx: ctx}
	})
	return nil
}

// Dispatch is the kernel's interrupt entry point; the hardware invokes it
// for every delivered vector. IRQ vectors are acknowledged on the
// controllers before their handler runs, so a handler that never returns
// cannot wedge the controller. Exceptions with no registered handler dump
// the frame and panic.
func Dispatch(vector uint8, errCode uint32) {
	frame := Frame{
		DS:      uint32(gdt.SelectorKernelData),
		IntNo:   uint32(vector),
		ErrCode: errCode,
		CS:      uint32(gdt.SelectorKernelCode),
		EFlags:  eflagsReserved | eflagsIF,
		SS:      uint32(gdt.SelectorKernelData),
	}

	if vector >= IRQBase && vector < IRQBase+irqCount {
		picEOIFn(vector)

		if h := irqHandlers[vector-IRQBase]; h.fn != nil {
			h.fn(&frame, h.ctx)
		}
		return
	}

	if h := intHandlers[vector]; h.fn != nil {
		h.fn(&frame, h.ctx)
		return
	}

	if vector < IRQBase {
		kfmt.Printf("\nexception %d: %s\n", vector, ExceptionName(InterruptNumber(vector)))
		frame.Print()
		errUnhandledException.Message = ExceptionName(InterruptNumber(vector))
		panicFn(errUnhandledException)
		return
	}

	kfmt.Printf("\ninterrupt %d has no gate installed\n", vector)
	panicFn(errUnknownVector)
}
