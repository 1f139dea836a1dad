package tty

import (
	"io"

	"github.com/uiaict/2025-ikt218-osdev-sub005/device"
	"github.com/uiaict/2025-ikt218-osdev-sub005/device/video/console"
	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel"
)

// VT implements a write-through terminal on top of a text console. The
// terminal interprets the following special characters:
//   - \r (carriage-return)
//   - \n (line-feed)
//   - \b (backspace)
//   - \t (tab; expanded to tabWidth spaces)
type VT struct {
	cons console.Device

	// curSetter is non-nil when the attached console exposes a hardware
	// cursor.
	curSetter console.CursorSetter

	width  uint32
	height uint32

	tabWidth         uint8
	defaultFg, curFg uint8
	defaultBg, curBg uint8
	cursorX          uint32
	cursorY          uint32
}

// NewVT creates a new virtual terminal device. The tabWidth parameter
// controls tab expansion.
func NewVT(tabWidth uint8) *VT {
	return &VT{
		tabWidth: tabWidth,
		cursorX:  1,
		cursorY:  1,
	}
}

// AttachTo connects a TTY to a console instance, clears the console contents
// and moves the cursor to the top-left corner.
func (t *VT) AttachTo(cons console.Device) {
	if cons == nil {
		return
	}

	t.cons = cons
	t.curSetter, _ = cons.(console.CursorSetter)
	t.width, t.height = cons.Dimensions()
	t.defaultFg, t.defaultBg = cons.DefaultColors()
	t.curFg, t.curBg = t.defaultFg, t.defaultBg
	t.cursorX, t.cursorY = 1, 1

	cons.Fill(1, 1, t.width, t.height, t.defaultFg, t.defaultBg)
	t.syncCursor()
}

// CursorPosition returns the current cursor position.
func (t *VT) CursorPosition() (uint32, uint32) {
	return t.cursorX, t.cursorY
}

// SetCursorPosition sets the current cursor position to (x,y). The
// coordinates get clipped to the console viewport.
func (t *VT) SetCursorPosition(x, y uint32) {
	if t.cons == nil {
		return
	}

	if x < 1 {
		x = 1
	} else if x > t.width {
		x = t.width
	}

	if y < 1 {
		y = 1
	} else if y > t.height {
		y = t.height
	}

	t.cursorX, t.cursorY = x, y
	t.syncCursor()
}

// Write implements io.Writer.
func (t *VT) Write(data []byte) (int, error) {
	for count, b := range data {
		err := t.WriteByte(b)
		if err != nil {
			return count, err
		}
	}

	return len(data), nil
}

// WriteByte implements io.ByteWriter.
func (t *VT) WriteByte(b byte) error {
	if t.cons == nil {
		return io.ErrClosedPipe
	}

	switch b {
	case '\r':
		t.cursorX = 1
	case '\n':
		t.lf(true)
	case '\b':
		if t.cursorX > 1 {
			t.cursorX--
			t.cons.Write(' ', t.curFg, t.curBg, t.cursorX, t.cursorY)
		}
	case '\t':
		for i := uint8(0); i < t.tabWidth; i++ {
			t.doWrite(' ')
		}
	default:
		t.doWrite(b)
	}

	t.syncCursor()
	return nil
}

// doWrite writes the specified character together with the current fg/bg
// attributes at the current cursor position, advancing the cursor and
// wrapping to the next line when the end of the current line is reached.
func (t *VT) doWrite(b byte) {
	t.cons.Write(b, t.curFg, t.curBg, t.cursorX, t.cursorY)

	t.cursorX++
	if t.cursorX > t.width {
		t.lf(true)
	}
}

// lf advances the y coordinate of the terminal cursor by one line, scrolling
// the console contents up and clearing the last line when the cursor is
// already on the bottom line.
func (t *VT) lf(withCR bool) {
	if withCR {
		t.cursorX = 1
	}

	if t.cursorY < t.height {
		t.cursorY++
		return
	}

	t.cons.Scroll(console.ScrollDirUp, 1)
	t.cons.Fill(1, t.height, t.width, 1, t.defaultFg, t.defaultBg)
}

// syncCursor pushes the terminal cursor position to the attached console
// when it exposes a hardware cursor.
func (t *VT) syncCursor() {
	if t.curSetter != nil {
		t.curSetter.SetCursor(t.cursorX, t.cursorY)
	}
}

// DriverName returns the name of this driver.
func (t *VT) DriverName() string {
	return "vt"
}

// DriverVersion returns the version of this driver.
func (t *VT) DriverVersion() (uint16, uint16, uint16) {
	return 0, 0, 1
}

// DriverInit initializes this driver.
func (t *VT) DriverInit(_ io.Writer) *kernel.Error { return nil }

func probeForVT() device.Driver {
	return NewVT(DefaultTabWidth)
}

func init() {
	device.RegisterDriver(&device.DriverInfo{
		Order: device.DetectOrderTTY,
		Probe: probeForVT,
	})
}
