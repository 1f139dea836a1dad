package machine

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// Config selects the machine geometry. The zero value is not usable; start
// from DefaultConfig and override fields, or load a preset with LoadConfig.
type Config struct {
	// RAMMiB is the guest physical memory size.
	RAMMiB int `yaml:"ram_mib"`

	// KernelStart and KernelEnd describe where the kernel image sits in
	// guest memory. The machine does not load code there; the addresses
	// bound the region the boot sequence treats as occupied.
	KernelStart uint32 `yaml:"kernel_start"`
	KernelEnd   uint32 `yaml:"kernel_end"`

	// BootLoader is the name written into the multiboot information block.
	BootLoader string `yaml:"bootloader"`

	// TraceIO enables rate-limited port and interrupt tracing on Logger.
	TraceIO bool `yaml:"trace_io"`

	Logger logrus.FieldLogger `yaml:"-"`
}

// DefaultConfig returns the stock 32 MiB PC with the kernel image occupying
// the first megabyte of extended memory.
func DefaultConfig() Config {
	return Config{
		RAMMiB:      32,
		KernelStart: 0x00100000,
		KernelEnd:   0x00200000,
		BootLoader:  "osdev virtual machine",
	}
}

// LoadConfig reads a YAML machine preset. Absent keys keep their
// DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("machine: reading preset: %w", err)
	}
	if err := yaml.UnmarshalStrict(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("machine: parsing preset %s: %w", path, err)
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	ramBytes := uint64(c.RAMMiB) << 20
	switch {
	case c.RAMMiB < 2 || c.RAMMiB > 4096:
		return fmt.Errorf("machine: ram_mib %d outside the supported 2..4096 range", c.RAMMiB)
	case c.KernelStart < extStart:
		return fmt.Errorf("machine: kernel_start %#x overlaps low memory", c.KernelStart)
	case c.KernelEnd <= c.KernelStart:
		return fmt.Errorf("machine: kernel_end %#x does not leave room for an image at %#x", c.KernelEnd, c.KernelStart)
	case uint64(c.KernelEnd) >= ramBytes:
		return fmt.Errorf("machine: kernel image ends at %#x beyond %d MiB of RAM", c.KernelEnd, c.RAMMiB)
	case c.BootLoader == "":
		return fmt.Errorf("machine: bootloader name must not be empty")
	}
	return nil
}
