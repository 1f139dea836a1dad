package main

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/kmain"
	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/multiboot"
	"github.com/uiaict/2025-ikt218-osdev-sub005/machine"
)

// newMachine builds a machine from the global preset/trace flags with its
// multiboot information block already in place.
func newMachine() (*machine.Machine, uintptr, error) {
	cfg := machine.DefaultConfig()
	if *preset != "" {
		var err error
		if cfg, err = machine.LoadConfig(*preset); err != nil {
			return nil, 0, err
		}
	}
	cfg.TraceIO = *traceIO
	cfg.Logger = logrus.StandardLogger()

	m, err := machine.New(cfg)
	if err != nil {
		return nil, 0, err
	}

	infoAddr, err := m.WriteBootInfo()
	if err != nil {
		return nil, 0, err
	}
	return m, infoAddr, nil
}

// bootKernel installs the machine as the kernel's hardware backend and
// launches the kernel entry point on its own goroutine. The goroutine never
// exits; a panicking kernel parks in its halt loop with interrupts disabled.
func bootKernel(m *machine.Machine, infoAddr uintptr) {
	m.Install()
	go kmain.Kmain(multiboot.BootMagic, infoAddr, m.KernelStart(), m.KernelEnd())
}

// advanceUntil steps machine time in chunks until cond holds or budgetMS
// milliseconds of guest time have elapsed.
func advanceUntil(m *machine.Machine, budgetMS uint32, cond func() bool) error {
	const step = 50

	for elapsed := uint32(0); elapsed < budgetMS; elapsed += step {
		m.AdvanceMillis(step)
		m.WaitParked()
		if cond() {
			return nil
		}
		if m.TerminallyParked() {
			return fmt.Errorf("the kernel halted with interrupts disabled (kernel panic)")
		}
	}
	return fmt.Errorf("condition not reached within %dms of machine time", budgetMS)
}
