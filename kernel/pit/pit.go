// Package pit programs channel 0 of the 8254 programmable interval timer as
// the kernel's time base. The channel runs in square wave mode at 1 kHz;
// every output edge raises IRQ0 and advances the global tick counter that
// the sleep primitives and the note player are built on.
package pit

import (
	"sync/atomic"

	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel"
	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/cpu"
	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/idt"
	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/pic"
	kernelsync "github.com/uiaict/2025-ikt218-osdev-sub005/kernel/sync"
)

const (
	// BaseFrequency is the fixed input clock of every 8254 channel in Hz.
	BaseFrequency = 1193180

	// TargetFrequency is the tick rate the kernel programs channel 0 to.
	TargetFrequency = 1000

	// Divider is the reload value that approximates TargetFrequency.
	Divider = BaseFrequency / TargetFrequency

	// TickDurationMS is how many milliseconds one tick represents.
	TickDurationMS = 1

	portChannel0Data = 0x40
	portCommand      = 0x43

	// cmdSquareWave selects channel 0, lobyte/hibyte access, mode 3.
	cmdSquareWave = 0x36

	maxTickHooks = 4
)

// TickFunc is invoked from the IRQ0 handler with the new tick count. It runs
// in interrupt context and must not block.
type TickFunc func(tick uint32)

var (
	tickCount uint32

	tickHooks    [maxTickHooks]TickFunc
	numTickHooks int

	portWriteByteFn    = cpu.PortWriteByte
	enableInterruptsFn = cpu.EnableInterrupts
	haltFn             = cpu.Halt
	registerIRQFn      = idt.RegisterIRQHandler
	clearMaskFn        = pic.ClearMask
	withIRQsDisabledFn = kernelsync.WithInterruptsDisabled

	errHookTableFull = &kernel.Error{Module: "pit", Message: "tick hook table is full"}
)

// Init programs channel 0 for a 1 kHz square wave, wires the IRQ0 handler
// and unmasks the timer line on the interrupt controller.
func Init() *kernel.Error {
	portWriteByteFn(portCommand, cmdSquareWave)
	portWriteByteFn(portChannel0Data, uint8(Divider&0xff))
	portWriteByteFn(portChannel0Data, uint8(Divider>>8))

	if err := registerIRQFn(0, onTimerIRQ, nil); err != nil {
		return err
	}
	clearMaskFn(0)

	return nil
}

// onTimerIRQ advances the tick counter and runs the registered tick hooks.
func onTimerIRQ(_ *idt.Frame, _ interface{}) {
	tick := atomic.AddUint32(&tickCount, 1)
	for i := 0; i < numTickHooks; i++ {
		tickHooks[i](tick)
	}
}

// Ticks returns the number of timer interrupts serviced since boot. The
// counter wraps modulo 2^32; callers must compare tick values using
// unsigned differences.
func Ticks() uint32 {
	return atomic.LoadUint32(&tickCount)
}

// OnTick registers a hook that runs on every timer interrupt after the tick
// counter has advanced. The hook table is small and fixed; registration
// fails once it is full.
func OnTick(fn TickFunc) *kernel.Error {
	var err *kernel.Error
	withIRQsDisabledFn(func() {
		if numTickHooks == len(tickHooks) {
			err = errHookTableFull
			return
		}
		tickHooks[numTickHooks] = fn
		numTickHooks++
	})
	return err
}

// SleepBusy spins until at least ms milliseconds worth of ticks have
// elapsed. It never halts the CPU, so it works with interrupts disabled
// everywhere except on the timer line itself, which must keep firing for
// the counter to advance.
func SleepBusy(ms uint32) {
	start := Ticks()
	for Ticks()-start < ms*TickDurationMS {
	}
}

// SleepInterrupt halts the CPU until at least ms milliseconds worth of
// ticks have elapsed, waking once per serviced interrupt to re-check the
// deadline. Interrupts are enabled for the wait and stay enabled when it
// returns.
func SleepInterrupt(ms uint32) {
	start := Ticks()
	for Ticks()-start < ms*TickDurationMS {
		enableInterruptsFn()
		haltFn()
	}
}
