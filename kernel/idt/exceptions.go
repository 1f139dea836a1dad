package idt

// InterruptNumber describes an x86 interrupt/exception/trap slot.
type InterruptNumber uint8

const (
	// DivideByZero occurs when dividing any number by 0 using the DIV or
	// IDIV instruction.
	DivideByZero = InterruptNumber(0)

	// NMI is a hardware interrupt indicating RAM or unrecoverable
	// hardware problems.
	NMI = InterruptNumber(2)

	// Breakpoint occurs when the CPU executes an INT3 instruction.
	Breakpoint = InterruptNumber(3)

	// Overflow occurs when INTO is executed with the overflow flag set.
	Overflow = InterruptNumber(4)

	// BoundRangeExceeded occurs when the BOUND instruction is invoked
	// with an index out of range.
	BoundRangeExceeded = InterruptNumber(5)

	// InvalidOpcode occurs when the CPU attempts to execute an invalid or
	// undefined instruction opcode.
	InvalidOpcode = InterruptNumber(6)

	// DeviceNotAvailable occurs when an FPU instruction runs while the
	// FPU is absent or disabled via CR0.
	DeviceNotAvailable = InterruptNumber(7)

	// DoubleFault occurs when an unhandled exception occurs or when an
	// exception occurs within a running exception handler.
	DoubleFault = InterruptNumber(8)

	// InvalidTSS occurs when the TSS points to an invalid task segment
	// selector.
	InvalidTSS = InterruptNumber(10)

	// SegmentNotPresent occurs when loading a segment register with a
	// descriptor that is marked not present.
	SegmentNotPresent = InterruptNumber(11)

	// StackSegmentFault occurs when stack base/limit checks fail.
	StackSegmentFault = InterruptNumber(12)

	// GPFException occurs when a general protection fault is raised.
	GPFException = InterruptNumber(13)

	// PageFaultException occurs when a page directory entry is not
	// present or when a privilege and/or RW protection check fails. The
	// faulting address is left in CR2.
	PageFaultException = InterruptNumber(14)

	// FloatingPointException occurs when an unmasked x87 exception is
	// pending.
	FloatingPointException = InterruptNumber(16)

	// AlignmentCheck occurs when alignment checking is enabled and an
	// unaligned memory access is performed.
	AlignmentCheck = InterruptNumber(17)

	// MachineCheck occurs when the CPU detects internal errors such as
	// memory-, bus- or cache-related errors.
	MachineCheck = InterruptNumber(18)
)

// exceptionNames holds the canonical name for each CPU exception; unhandled
// exceptions panic with the matching entry.
var exceptionNames = [32]string{
	"Division By Zero",
	"Debug",
	"Non Maskable Interrupt",
	"Breakpoint",
	"Into Detected Overflow",
	"Out of Bounds",
	"Invalid Opcode",
	"No Coprocessor",
	"Double Fault",
	"Coprocessor Segment Overrun",
	"Bad TSS",
	"Segment Not Present",
	"Stack Fault",
	"General Protection Fault",
	"Page Fault",
	"Unknown Interrupt",
	"Coprocessor Fault",
	"Alignment Check",
	"Machine Check",
	"Reserved",
	"Reserved",
	"Reserved",
	"Reserved",
	"Reserved",
	"Reserved",
	"Reserved",
	"Reserved",
	"Reserved",
	"Reserved",
	"Reserved",
	"Reserved",
	"Reserved",
}

// ExceptionName returns the canonical name for an exception vector.
func ExceptionName(num InterruptNumber) string {
	if int(num) >= len(exceptionNames) {
		return "Unknown Interrupt"
	}
	return exceptionNames[num]
}
