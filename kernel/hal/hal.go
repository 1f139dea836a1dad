// Package hal discovers hardware devices and initializes their drivers.
package hal

import (
	"bytes"
	"sort"

	"github.com/uiaict/2025-ikt218-osdev-sub005/device"
	"github.com/uiaict/2025-ikt218-osdev-sub005/device/ps2"
	"github.com/uiaict/2025-ikt218-osdev-sub005/device/tty"
	"github.com/uiaict/2025-ikt218-osdev-sub005/device/video/console"
	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/kfmt"
)

// managedDevices contains the devices discovered by the HAL.
type managedDevices struct {
	activeConsole  console.Device
	activeTTY      tty.Device
	activeKeyboard *ps2.Keyboard

	// activeDrivers tracks all initialized device drivers.
	activeDrivers []device.Driver
}

var (
	devices managedDevices
	strBuf  bytes.Buffer
)

// ActiveTTY returns the currently active TTY.
func ActiveTTY() tty.Device {
	return devices.activeTTY
}

// ActiveKeyboard returns the keyboard device that input is read from, or nil
// before one has been initialized.
func ActiveKeyboard() *ps2.Keyboard {
	return devices.activeKeyboard
}

// DetectHardware probes for hardware devices and initializes the appropriate
// drivers.
func DetectHardware() {
	// Get driver list and sort by detection priority
	drivers := device.DriverList()
	sort.Sort(drivers)

	probe(drivers)
}

// probe executes the probe function for each driver and invokes
// onDriverInit for each successfully initialized driver.
func probe(driverInfoList device.DriverInfoList) {
	var w = kfmt.PrefixWriter{Sink: kfmt.GetOutputSink()}

	for _, info := range driverInfoList {
		drv := info.Probe()
		if drv == nil {
			continue
		}

		strBuf.Reset()
		major, minor, patch := drv.DriverVersion()
		kfmt.Fprintf(&strBuf, "[hal] %s(%d.%d.%d): ", drv.DriverName(), major, minor, patch)
		w.Prefix = strBuf.Bytes()

		if err := drv.DriverInit(&w); err != nil {
			kfmt.Fprintf(&w, "init failed: %s\n", err.Message)
			continue
		}

		kfmt.Fprintf(&w, "initialized\n")
		onDriverInit(drv)
		devices.activeDrivers = append(devices.activeDrivers, drv)
	}
}

// onDriverInit is invoked by probe() whenever a piece of hardware is detected
// and successfully initialized.
func onDriverInit(drv device.Driver) {
	switch drvImpl := drv.(type) {
	case console.Device:
		onConsoleInit(drvImpl)
	case tty.Device:
		if devices.activeTTY != nil {
			return
		}

		devices.activeTTY = drvImpl
		if devices.activeConsole != nil {
			linkTTYToConsole()
		}
	case *ps2.Keyboard:
		if devices.activeKeyboard == nil {
			devices.activeKeyboard = drvImpl
		}
	}
}

// onConsoleInit is invoked whenever a console is initialized. The first
// console found automatically becomes the active console. If an active TTY
// device is present, it will be linked to the console via linkTTYToConsole.
func onConsoleInit(cons console.Device) {
	if devices.activeConsole != nil {
		return
	}

	devices.activeConsole = cons

	if devices.activeTTY != nil {
		linkTTYToConsole()
	}
}

// linkTTYToConsole connects the active TTY device to the active console
// device and redirects kernel output to the terminal.
func linkTTYToConsole() {
	devices.activeTTY.AttachTo(devices.activeConsole)
	kfmt.SetOutputSink(devices.activeTTY)
}
