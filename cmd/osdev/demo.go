package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
)

// demoCmd boots the kernel and drives machine time deterministically until
// the boot demo finishes, then prints the VGA text screen and a playback
// summary. It is the scripted counterpart of run.
type demoCmd struct {
	budgetMS uint
	typeText string
}

// Name implements subcommands.Command.
func (*demoCmd) Name() string { return "demo" }

// Synopsis implements subcommands.Command.
func (*demoCmd) Synopsis() string { return "boot the kernel demo and print the resulting screen" }

// Usage implements subcommands.Command.
func (*demoCmd) Usage() string {
	return `demo [<flags>]:
	Boot the kernel, run the built-in demo to completion with deterministic
	machine time, optionally type text at the idle prompt and dump the final
	VGA screen to stdout.
`
}

// SetFlags implements subcommands.Command.
func (c *demoCmd) SetFlags(f *flag.FlagSet) {
	f.UintVar(&c.budgetMS, "budget-ms", 60000, "maximum guest milliseconds to wait for the demo")
	f.StringVar(&c.typeText, "type", "echo test", "text typed at the idle prompt once boot completes")
}

// Execute implements subcommands.Command.
func (c *demoCmd) Execute(context.Context, *flag.FlagSet, ...interface{}) subcommands.ExitStatus {
	m, infoAddr, err := newMachine()
	if err != nil {
		logrus.Error(err)
		return subcommands.ExitFailure
	}
	bootKernel(m, infoAddr)

	if err := advanceUntil(m, uint32(c.budgetMS), func() bool {
		return m.ScreenContains("boot complete")
	}); err != nil {
		logrus.WithField("screen", strings.Join(m.TextScreen(), "\n")).Error(err)
		return subcommands.ExitFailure
	}

	if c.typeText != "" {
		m.TypeText(c.typeText + "\n")
		m.AdvanceMillis(10)
		m.WaitParked()
	}

	for _, row := range m.TextScreen() {
		fmt.Fprintln(os.Stdout, row)
	}

	logrus.WithFields(logrus.Fields{
		"guest_ms":    m.NowMillis(),
		"timer_irqs":  m.DeliveredIRQs(0),
		"kbd_irqs":    m.DeliveredIRQs(1),
		"tone_events": len(m.ToneEvents()),
	}).Info("demo finished")
	return subcommands.ExitSuccess
}
