// Package ps2 provides drivers for devices attached to the PS/2 controller.
package ps2

import (
	"io"
	"sync/atomic"

	"github.com/uiaict/2025-ikt218-osdev-sub005/device"
	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel"
	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/cpu"
	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/idt"
	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/kfmt"
	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/pic"
)

const (
	portData = 0x60

	keyboardIRQ = 1

	// bufferSize is the scancode ring capacity; it must be a power of two.
	bufferSize = 256

	// Make/break codes for the modifier keys tracked by the decoder.
	scanLeftShiftDown  = 0x2a
	scanRightShiftDown = 0x36
	scanLeftShiftUp    = 0xaa
	scanRightShiftUp   = 0xb6

	// 0xe0 introduces a two-byte sequence used by the navigation cluster.
	scanExtendedPrefix = 0xe0

	// Break codes are the make code with the top bit set.
	scanBreakBit = 0x80
)

var (
	portReadByteFn       = cpu.PortReadByte
	registerIRQHandlerFn = idt.RegisterIRQHandler
	clearMaskFn          = pic.ClearMask
)

// Keyboard buffers scancodes from a PS/2 keyboard and decodes them into
// ASCII characters. The interrupt handler only stores the raw scancode; all
// decoding happens on the reader side.
type Keyboard struct {
	// buf is a single-producer single-consumer ring; the interrupt handler
	// advances tail and readers advance head. Both indices grow without
	// bound and get masked on access.
	buf  [bufferSize]uint8
	head uint32
	tail uint32

	// dropped counts scancodes discarded because the ring was full.
	dropped uint32

	// Decoder state; only touched by the reader side.
	shift    bool
	extended bool
}

// NewKeyboard creates a PS/2 keyboard driver instance.
func NewKeyboard() *Keyboard {
	return &Keyboard{}
}

// onKeyEvent runs in interrupt context whenever the keyboard raises its IRQ
// line. It drains the controller's data port into the scancode ring, dropping
// the scancode when the ring is full.
func (kbd *Keyboard) onKeyEvent(_ *idt.Frame, _ interface{}) {
	sc := portReadByteFn(portData)

	tail := atomic.LoadUint32(&kbd.tail)
	if tail-atomic.LoadUint32(&kbd.head) == bufferSize {
		atomic.AddUint32(&kbd.dropped, 1)
		return
	}

	kbd.buf[tail&(bufferSize-1)] = sc
	atomic.StoreUint32(&kbd.tail, tail+1)
}

// ReadScancode pops the oldest buffered scancode. It returns false when the
// ring is empty.
func (kbd *Keyboard) ReadScancode() (uint8, bool) {
	head := atomic.LoadUint32(&kbd.head)
	if head == atomic.LoadUint32(&kbd.tail) {
		return 0, false
	}

	sc := kbd.buf[head&(bufferSize-1)]
	atomic.StoreUint32(&kbd.head, head+1)
	return sc, true
}

// ReadKey pops buffered scancodes until one decodes into a printable ASCII
// character or a control character (enter, tab, backspace). It returns false
// when the buffer runs out before such a key press shows up.
func (kbd *Keyboard) ReadKey() (byte, bool) {
	for {
		sc, ok := kbd.ReadScancode()
		if !ok {
			return 0, false
		}

		if kbd.extended {
			// Second byte of a 0xe0 sequence; nothing printable there.
			kbd.extended = false
			continue
		}

		switch sc {
		case scanExtendedPrefix:
			kbd.extended = true
			continue
		case scanLeftShiftDown, scanRightShiftDown:
			kbd.shift = true
			continue
		case scanLeftShiftUp, scanRightShiftUp:
			kbd.shift = false
			continue
		}

		if sc&scanBreakBit != 0 {
			continue
		}

		var ch byte
		if int(sc) < len(keymapLower) {
			if kbd.shift {
				ch = keymapUpper[sc]
			} else {
				ch = keymapLower[sc]
			}
		}

		if ch == 0 {
			continue
		}

		return ch, true
	}
}

// Dropped returns the number of scancodes lost to ring overruns.
func (kbd *Keyboard) Dropped() uint32 {
	return atomic.LoadUint32(&kbd.dropped)
}

// DriverName returns the name of this driver.
func (kbd *Keyboard) DriverName() string {
	return "ps2_keyboard"
}

// DriverVersion returns the version of this driver.
func (kbd *Keyboard) DriverVersion() (uint16, uint16, uint16) {
	return 0, 0, 1
}

// DriverInit initializes this driver.
func (kbd *Keyboard) DriverInit(w io.Writer) *kernel.Error {
	if err := registerIRQHandlerFn(keyboardIRQ, kbd.onKeyEvent, nil); err != nil {
		return err
	}

	clearMaskFn(keyboardIRQ)
	kfmt.Fprintf(w, "listening on IRQ %d\n", keyboardIRQ)
	return nil
}

func probeForKeyboard() device.Driver {
	return NewKeyboard()
}

func init() {
	device.RegisterDriver(&device.DriverInfo{
		Order: device.DetectOrderDevices,
		Probe: probeForKeyboard,
	})
}
