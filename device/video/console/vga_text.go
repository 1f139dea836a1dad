package console

import (
	"encoding/binary"
	"image/color"
	"io"

	"github.com/uiaict/2025-ikt218-osdev-sub005/device"
	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel"
	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/cpu"
	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/kfmt"
	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/multiboot"
)

const (
	// Port pair for programming the VGA DAC when a palette entry changes.
	portDACIndex = 0x3c8
	portDACData  = 0x3c9

	// Port pair for moving the hardware cursor via the CRTC registers.
	portCRTCIndex = 0x3d4
	portCRTCData  = 0x3d5

	crtcCursorHigh = 0x0e
	crtcCursorLow  = 0x0f
)

var (
	memFn                = cpu.Mem
	portWriteByteFn      = cpu.PortWriteByte
	getFramebufferInfoFn = multiboot.GetFramebufferInfo
)

// VgaTextConsole implements an EGA-compatible 80x25 text console using VGA
// mode 0x3. The console supports the default 16 EGA colors which can be
// overridden using the SetPaletteColor method.
//
// Each character in the console framebuffer occupies two bytes, a byte for
// the ASCII code and a byte packing the foreground and background colors (4
// bits each).
//
// The default settings for the console are:
//   - light gray text (color 7) on black background (color 0).
//   - space as the clear character
type VgaTextConsole struct {
	width  uint32
	height uint32

	fbPhysAddr uintptr
	fb         []byte

	palette   color.Palette
	defaultFg uint8
	defaultBg uint8
	clearChar byte
}

// NewVgaTextConsole creates a new vga text console whose framebuffer lives
// at fbPhysAddr.
func NewVgaTextConsole(columns, rows uint32, fbPhysAddr uintptr) *VgaTextConsole {
	return &VgaTextConsole{
		width:      columns,
		height:     rows,
		fbPhysAddr: fbPhysAddr,
		clearChar:  ' ',
		palette: color.Palette{
			color.RGBA{R: 0, G: 0, B: 0},       /* black */
			color.RGBA{R: 0, G: 0, B: 170},     /* blue */
			color.RGBA{R: 0, G: 170, B: 0},     /* green */
			color.RGBA{R: 0, G: 170, B: 170},   /* cyan */
			color.RGBA{R: 170, G: 0, B: 0},     /* red */
			color.RGBA{R: 170, G: 0, B: 170},   /* magenta */
			color.RGBA{R: 170, G: 85, B: 0},    /* brown */
			color.RGBA{R: 170, G: 170, B: 170}, /* light gray */
			color.RGBA{R: 85, G: 85, B: 85},    /* dark gray */
			color.RGBA{R: 85, G: 85, B: 255},   /* light blue */
			color.RGBA{R: 85, G: 255, B: 85},   /* light green */
			color.RGBA{R: 85, G: 255, B: 255},  /* light cyan */
			color.RGBA{R: 255, G: 85, B: 85},   /* light red */
			color.RGBA{R: 255, G: 85, B: 255},  /* light magenta */
			color.RGBA{R: 255, G: 255, B: 85},  /* yellow */
			color.RGBA{R: 255, G: 255, B: 255}, /* white */
		},
		// light gray text on black background
		defaultFg: 7,
		defaultBg: 0,
	}
}

func (cons *VgaTextConsole) cellAt(index uint32) uint16 {
	return binary.LittleEndian.Uint16(cons.fb[index*2:])
}

func (cons *VgaTextConsole) putCell(index uint32, cell uint16) {
	binary.LittleEndian.PutUint16(cons.fb[index*2:], cell)
}

// Dimensions returns the console width and height in characters.
func (cons *VgaTextConsole) Dimensions() (uint32, uint32) {
	return cons.width, cons.height
}

// DefaultColors returns the default foreground and background colors
// used by this console.
func (cons *VgaTextConsole) DefaultColors() (fg uint8, bg uint8) {
	return cons.defaultFg, cons.defaultBg
}

// Fill sets the contents of the specified rectangular region to the requested
// color. Both x and y coordinates are 1-based.
func (cons *VgaTextConsole) Fill(x, y, width, height uint32, fg, bg uint8) {
	var (
		cell                 = (((uint16(bg) << 4) | uint16(fg)) << 8) | uint16(cons.clearChar)
		rowOffset, colOffset uint32
	)

	// clip rectangle
	if x == 0 {
		x = 1
	} else if x >= cons.width {
		x = cons.width
	}

	if y == 0 {
		y = 1
	} else if y >= cons.height {
		y = cons.height
	}

	if x+width-1 > cons.width {
		width = cons.width - x + 1
	}

	if y+height-1 > cons.height {
		height = cons.height - y + 1
	}

	rowOffset = ((y - 1) * cons.width) + (x - 1)
	for ; height > 0; height, rowOffset = height-1, rowOffset+cons.width {
		for colOffset = rowOffset; colOffset < rowOffset+width; colOffset++ {
			cons.putCell(colOffset, cell)
		}
	}
}

// Scroll the console contents to the specified direction. The caller
// is responsible for updating (e.g. clear or replace) the contents of
// the region that was scrolled.
func (cons *VgaTextConsole) Scroll(dir ScrollDir, lines uint32) {
	if lines == 0 || lines > cons.height {
		return
	}

	var (
		i      uint32
		offset = lines * cons.width
		total  = cons.width * cons.height
	)

	switch dir {
	case ScrollDirUp:
		for ; i < total-offset; i++ {
			cons.putCell(i, cons.cellAt(i+offset))
		}
	case ScrollDirDown:
		for i = total - 1; i >= offset; i-- {
			cons.putCell(i, cons.cellAt(i-offset))
		}
	}
}

// Write a char to the specified location. If fg or bg exceed the supported
// colors for this console, they will be set to their default value. Both x
// and y coordinates are 1-based.
func (cons *VgaTextConsole) Write(ch byte, fg, bg uint8, x, y uint32) {
	if x < 1 || x > cons.width || y < 1 || y > cons.height {
		return
	}

	maxColorIndex := uint8(len(cons.palette) - 1)
	if fg > maxColorIndex {
		fg = cons.defaultFg
	}
	if bg > maxColorIndex {
		bg = cons.defaultBg
	}

	cons.putCell((y-1)*cons.width+(x-1), (((uint16(bg)<<4)|uint16(fg))<<8)|uint16(ch))
}

// SetCursor moves the hardware cursor to the 1-based (x,y) location. Out of
// range coordinates are clipped to the console edges.
func (cons *VgaTextConsole) SetCursor(x, y uint32) {
	if x < 1 {
		x = 1
	} else if x > cons.width {
		x = cons.width
	}

	if y < 1 {
		y = 1
	} else if y > cons.height {
		y = cons.height
	}

	pos := (y-1)*cons.width + (x - 1)
	portWriteByteFn(portCRTCIndex, crtcCursorHigh)
	portWriteByteFn(portCRTCData, uint8(pos>>8))
	portWriteByteFn(portCRTCIndex, crtcCursorLow)
	portWriteByteFn(portCRTCData, uint8(pos))
}

// Palette returns the active color palette for this console.
func (cons *VgaTextConsole) Palette() color.Palette {
	return cons.palette
}

// SetPaletteColor updates the color definition for the specified palette
// index and loads it into the DAC. Colors are specified using 6 bits per
// component in this mode, so the RGB values get scaled to the 0-63 range.
func (cons *VgaTextConsole) SetPaletteColor(index uint8, rgba color.RGBA) {
	if index >= uint8(len(cons.palette)) {
		return
	}

	cons.palette[index] = rgba

	portWriteByteFn(portDACIndex, index)
	portWriteByteFn(portDACData, rgba.R>>2)
	portWriteByteFn(portDACData, rgba.G>>2)
	portWriteByteFn(portDACData, rgba.B>>2)
}

// DriverName returns the name of this driver.
func (cons *VgaTextConsole) DriverName() string {
	return "vga_text_console"
}

// DriverVersion returns the version of this driver.
func (cons *VgaTextConsole) DriverVersion() (uint16, uint16, uint16) {
	return 0, 0, 1
}

// DriverInit initializes this driver.
func (cons *VgaTextConsole) DriverInit(w io.Writer) *kernel.Error {
	cons.fb = memFn(cons.fbPhysAddr, uintptr(cons.width*cons.height*2))
	kfmt.Fprintf(w, "framebuffer at 0x%x (%dx%d)\n", cons.fbPhysAddr, cons.width, cons.height)
	return nil
}

// probeForVgaTextConsole checks for the presence of a vga text console.
func probeForVgaTextConsole() device.Driver {
	var drv device.Driver

	fbInfo := getFramebufferInfoFn()
	if fbInfo != nil && fbInfo.Type == multiboot.FramebufferTypeEGA {
		drv = NewVgaTextConsole(fbInfo.Width, fbInfo.Height, uintptr(fbInfo.PhysAddr))
	}

	return drv
}

func init() {
	device.RegisterDriver(&device.DriverInfo{
		Order: device.DetectOrderEarly,
		Probe: probeForVgaTextConsole,
	})
}
