package machine

import "strings"

// vgaRegs models the VGA register files the text console driver programs:
// the CRT controller index/data pair used for the hardware cursor and the
// DAC used for palette reprogramming. The text cells themselves live in
// guest RAM at vgaTextAddr and need no modeling.
type vgaRegs struct {
	crtcIndex uint8
	crtc      [256]uint8

	dacIndex uint8
	dacPhase int
	dac      [256][3]uint8
}

const (
	crtcCursorHigh = 0x0e
	crtcCursorLow  = 0x0f
)

func newVGARegs() *vgaRegs {
	return &vgaRegs{}
}

func (v *vgaRegs) writeCRTCIndex(val uint8) {
	v.crtcIndex = val
}

func (v *vgaRegs) writeCRTCData(val uint8) {
	v.crtc[v.crtcIndex] = val
}

func (v *vgaRegs) readCRTCIndex() uint8 {
	return v.crtcIndex
}

func (v *vgaRegs) readCRTCData() uint8 {
	return v.crtc[v.crtcIndex]
}

func (v *vgaRegs) writeDACIndex(val uint8) {
	v.dacIndex = val
	v.dacPhase = 0
}

// writeDACData consumes one 6-bit color component; every third write
// completes an entry and auto-increments the index, the standard DAC
// programming sequence.
func (v *vgaRegs) writeDACData(val uint8) {
	v.dac[v.dacIndex][v.dacPhase] = val & 0x3f
	v.dacPhase++
	if v.dacPhase == 3 {
		v.dacPhase = 0
		v.dacIndex++
	}
}

func (v *vgaRegs) cursorOffset() uint16 {
	return uint16(v.crtc[crtcCursorHigh])<<8 | uint16(v.crtc[crtcCursorLow])
}

// CursorPosition returns the zero-based column and row of the hardware
// cursor as programmed through the CRT controller.
func (m *Machine) CursorPosition() (col, row uint32) {
	m.mu.Lock()
	pos := uint32(m.vga.cursorOffset())
	m.mu.Unlock()
	return pos % vgaCols, pos / vgaCols
}

// PaletteColor returns the 8-bit RGB components of a DAC entry, scaled back
// up from the 6-bit values the hardware stores.
func (m *Machine) PaletteColor(index uint8) (r, g, b uint8) {
	m.mu.Lock()
	e := m.vga.dac[index]
	m.mu.Unlock()
	return e[0] << 2, e[1] << 2, e[2] << 2
}

// TextRow decodes one row of the text buffer from guest RAM with trailing
// spaces removed. Rows outside the screen decode as empty.
func (m *Machine) TextRow(row int) string {
	if row < 0 || row >= vgaRows {
		return ""
	}

	m.mu.Lock()
	line := make([]byte, vgaCols)
	base := vgaTextAddr + row*vgaCols*2
	for col := 0; col < vgaCols; col++ {
		ch := m.ram[base+col*2]
		if ch == 0 {
			ch = ' '
		}
		line[col] = ch
	}
	m.mu.Unlock()

	return strings.TrimRight(string(line), " ")
}

// TextScreen decodes the whole text buffer. For a stable snapshot the CPU
// goroutine should be parked; WaitParked orders the kernel's writes before
// the read.
func (m *Machine) TextScreen() []string {
	rows := make([]string, vgaRows)
	for i := range rows {
		rows[i] = m.TextRow(i)
	}
	return rows
}

// ScreenContains reports whether any row of the text buffer contains text.
func (m *Machine) ScreenContains(text string) bool {
	for _, row := range m.TextScreen() {
		if strings.Contains(row, text) {
			return true
		}
	}
	return false
}
