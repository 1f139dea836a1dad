// Package sync provides synchronization helpers for kernel state that is
// shared with interrupt handlers. The only lock the substrate needs is the
// interrupt flag itself: masking interrupts makes the current task the sole
// runner until the flag is restored.
package sync

import "github.com/uiaict/2025-ikt218-osdev-sub005/kernel/cpu"

var (
	disableInterruptsFn = cpu.DisableInterrupts
	enableInterruptsFn  = cpu.EnableInterrupts
	interruptsEnabledFn = cpu.InterruptsEnabled
)

// IRQGuard implements a critical section that excludes interrupt handlers.
// Acquire records the state of the interrupt flag before clearing it so
// sections can nest; Release only re-enables interrupts when the outermost
// guard saw them enabled.
type IRQGuard struct {
	wasEnabled bool
}

// Acquire disables interrupt delivery until the matching Release call.
func (g *IRQGuard) Acquire() {
	g.wasEnabled = interruptsEnabledFn()
	if g.wasEnabled {
		disableInterruptsFn()
	}
}

// Release restores the interrupt flag to its state before Acquire.
func (g *IRQGuard) Release() {
	if g.wasEnabled {
		enableInterruptsFn()
	}
}

// WithInterruptsDisabled invokes fn inside an IRQGuard critical section.
func WithInterruptsDisabled(fn func()) {
	var g IRQGuard
	g.Acquire()
	fn()
	g.Release()
}
