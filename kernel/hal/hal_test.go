package hal

import (
	"bytes"
	"image/color"
	"io"
	"strings"
	"testing"

	"github.com/uiaict/2025-ikt218-osdev-sub005/device"
	"github.com/uiaict/2025-ikt218-osdev-sub005/device/ps2"
	"github.com/uiaict/2025-ikt218-osdev-sub005/device/video/console"
	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel"
	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/kfmt"
)

func TestProbeInitializesAndLinksDevices(t *testing.T) {
	defer func() { devices = managedDevices{} }()
	devices = managedDevices{}

	var log bytes.Buffer
	kfmt.SetOutputSink(&log)

	var (
		cons  = &fakeConsole{}
		term  = &fakeTTY{}
		infos = device.DriverInfoList{
			&device.DriverInfo{Order: device.DetectOrderEarly, Probe: func() device.Driver { return cons }},
			&device.DriverInfo{Order: device.DetectOrderTTY, Probe: func() device.Driver { return term }},
			&device.DriverInfo{Order: device.DetectOrderDevices, Probe: func() device.Driver { return nil }},
			&device.DriverInfo{Order: device.DetectOrderDevices, Probe: func() device.Driver { return &failingDriver{} }},
		}
	)

	probe(infos)

	if devices.activeConsole == nil {
		t.Fatal("expected the console driver to become the active console")
	}

	if ActiveTTY() == nil {
		t.Fatal("expected the tty driver to become the active TTY")
	}

	if term.attachedTo != cons {
		t.Fatal("expected the active TTY to be attached to the active console")
	}

	if kfmt.GetOutputSink() != term {
		t.Fatal("expected kernel output to be redirected to the active TTY")
	}

	if expCount := 2; len(devices.activeDrivers) != expCount {
		t.Fatalf("expected %d drivers to be tracked as active; got %d", expCount, len(devices.activeDrivers))
	}

	for _, exp := range []string{
		"[hal] fake_console(0.0.1): initialized",
		"[hal] fake_tty(0.0.1): initialized",
		"[hal] failing_driver(0.0.1): init failed: driver did not start",
	} {
		if !strings.Contains(log.String(), exp) {
			t.Errorf("expected probe log to contain %q; got:\n%s", exp, log.String())
		}
	}
}

func TestProbeKeepsFirstDetectedDevice(t *testing.T) {
	defer func() { devices = managedDevices{} }()
	devices = managedDevices{}

	var log bytes.Buffer
	kfmt.SetOutputSink(&log)

	var (
		cons1 = &fakeConsole{}
		cons2 = &fakeConsole{}
		term1 = &fakeTTY{}
		term2 = &fakeTTY{}
		infos = device.DriverInfoList{
			&device.DriverInfo{Order: device.DetectOrderEarly, Probe: func() device.Driver { return cons1 }},
			&device.DriverInfo{Order: device.DetectOrderEarly, Probe: func() device.Driver { return cons2 }},
			&device.DriverInfo{Order: device.DetectOrderTTY, Probe: func() device.Driver { return term1 }},
			&device.DriverInfo{Order: device.DetectOrderTTY, Probe: func() device.Driver { return term2 }},
		}
	)

	probe(infos)

	if devices.activeConsole != cons1 {
		t.Fatal("expected the first detected console to remain active")
	}

	if devices.activeTTY != term1 {
		t.Fatal("expected the first detected TTY to remain active")
	}

	if term2.attachedTo != nil {
		t.Fatal("expected the second TTY not to be attached to a console")
	}
}

func TestOnDriverInitTracksKeyboard(t *testing.T) {
	defer func() { devices = managedDevices{} }()
	devices = managedDevices{}

	kbd1 := ps2.NewKeyboard()
	kbd2 := ps2.NewKeyboard()

	onDriverInit(kbd1)
	onDriverInit(kbd2)

	if ActiveKeyboard() != kbd1 {
		t.Fatal("expected the first detected keyboard to remain active")
	}
}

type fakeConsole struct {
	chars int
}

func (cons *fakeConsole) Dimensions() (uint32, uint32)      { return 80, 25 }
func (cons *fakeConsole) DefaultColors() (uint8, uint8)     { return 7, 0 }
func (cons *fakeConsole) Fill(_, _, _, _ uint32, _, _ uint8) {}
func (cons *fakeConsole) Scroll(_ console.ScrollDir, _ uint32) {
}
func (cons *fakeConsole) Write(_ byte, _, _ uint8, _, _ uint32) { cons.chars++ }
func (cons *fakeConsole) Palette() color.Palette                { return nil }
func (cons *fakeConsole) SetPaletteColor(uint8, color.RGBA)     {}
func (cons *fakeConsole) DriverName() string                    { return "fake_console" }
func (cons *fakeConsole) DriverVersion() (uint16, uint16, uint16) {
	return 0, 0, 1
}
func (cons *fakeConsole) DriverInit(_ io.Writer) *kernel.Error { return nil }

type fakeTTY struct {
	attachedTo console.Device
}

func (t *fakeTTY) Write(p []byte) (int, error)        { return len(p), nil }
func (t *fakeTTY) WriteByte(_ byte) error             { return nil }
func (t *fakeTTY) AttachTo(cons console.Device)       { t.attachedTo = cons }
func (t *fakeTTY) CursorPosition() (uint32, uint32)   { return 1, 1 }
func (t *fakeTTY) SetCursorPosition(_, _ uint32)      {}
func (t *fakeTTY) DriverName() string                 { return "fake_tty" }
func (t *fakeTTY) DriverVersion() (uint16, uint16, uint16) {
	return 0, 0, 1
}
func (t *fakeTTY) DriverInit(_ io.Writer) *kernel.Error { return nil }

type failingDriver struct{}

func (d *failingDriver) DriverName() string { return "failing_driver" }
func (d *failingDriver) DriverVersion() (uint16, uint16, uint16) {
	return 0, 0, 1
}
func (d *failingDriver) DriverInit(_ io.Writer) *kernel.Error {
	return &kernel.Error{Module: "failing_driver", Message: "driver did not start"}
}
