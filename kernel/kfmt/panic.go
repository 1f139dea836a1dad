package kfmt

import (
	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel"
	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/cpu"
)

var (
	// cpuHaltFn and disableInterruptsFn are mocked by tests.
	cpuHaltFn           = cpu.Halt
	disableInterruptsFn = cpu.DisableInterrupts

	errRuntimePanic = &kernel.Error{Module: "rt", Message: "unknown cause"}
)

// Panic prints the supplied error to the console and halts with interrupts
// disabled. Calls to Panic never return.
func Panic(e interface{}) {
	var err *kernel.Error

	switch t := e.(type) {
	case *kernel.Error:
		err = t
	case string:
		errRuntimePanic.Message = t
		err = errRuntimePanic
	case error:
		errRuntimePanic.Message = t.Error()
		err = errRuntimePanic
	}

	disableInterruptsFn()

	Printf("\nKERNEL PANIC: ")
	if err != nil {
		Printf("[%s] %s", err.Module, err.Message)
	}
	Printf("\nsystem halted\n")

	// With the interrupt flag clear nothing can wake the CPU again.
	cpuHaltFn()
}
