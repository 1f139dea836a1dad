package device

import (
	"io"

	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel"
)

// Driver is an interface implemented by all drivers.
type Driver interface {
	// DriverName returns the name of the driver.
	DriverName() string

	// DriverVersion returns the driver version.
	DriverVersion() (major uint16, minor uint16, patch uint16)

	// DriverInit initializes the device driver. Drivers that need to log
	// output while initializing write it to the supplied io.Writer via
	// kfmt.Fprintf.
	DriverInit(io.Writer) *kernel.Error
}

// ProbeFn is a function that scans for the presence of a particular piece of
// hardware and returns a driver for it, or nil when the hardware is absent.
type ProbeFn func() Driver

// DetectOrder specifies when a driver probe runs relative to the other
// registered probes.
type DetectOrder int

const (
	// DetectOrderEarly is reserved for output devices so that boot
	// progress becomes visible as early as possible.
	DetectOrderEarly DetectOrder = -100

	// DetectOrderTTY runs after the consoles so terminals have something
	// to attach to.
	DetectOrderTTY DetectOrder = -10

	// DetectOrderDevices is the default order for peripherals.
	DetectOrderDevices DetectOrder = 0

	// DetectOrderLast runs after every other probe.
	DetectOrderLast DetectOrder = 100
)

// DriverInfo couples a hardware probe with the order it runs at.
type DriverInfo struct {
	// Order defines when Probe runs relative to other registered drivers.
	Order DetectOrder

	// Probe checks for the presence of the hardware this driver handles.
	Probe ProbeFn
}

// DriverInfoList is a list of registered drivers sortable by detect order.
type DriverInfoList []*DriverInfo

// Len returns the number of registered drivers.
func (l DriverInfoList) Len() int { return len(l) }

// Swap exchanges two drivers in the list.
func (l DriverInfoList) Swap(i, j int) { l[i], l[j] = l[j], l[i] }

// Less reports whether driver i probes before driver j.
func (l DriverInfoList) Less(i, j int) bool { return l[i].Order < l[j].Order }

var registeredDrivers DriverInfoList

// RegisterDriver adds a driver to the list that the hardware detection code
// probes at boot. It is expected to be called from package init blocks.
func RegisterDriver(info *DriverInfo) {
	registeredDrivers = append(registeredDrivers, info)
}

// DriverList returns the list of registered drivers.
func DriverList() DriverInfoList {
	return registeredDrivers
}
