package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/uiaict/2025-ikt218-osdev-sub005/machine"
)

// runCmd boots the kernel and runs the machine in step with the wall clock,
// with the hosting terminal acting as keyboard and screen. Ctrl-C powers the
// machine off.
type runCmd struct {
	refreshMS uint
}

// Name implements subcommands.Command.
func (*runCmd) Name() string { return "run" }

// Synopsis implements subcommands.Command.
func (*runCmd) Synopsis() string { return "boot the kernel interactively on this terminal" }

// Usage implements subcommands.Command.
func (*runCmd) Usage() string {
	return `run [<flags>]:
	Boot the kernel and run it in real time. Keystrokes are injected into
	the emulated PS/2 keyboard and the VGA text screen is mirrored to the
	terminal. Ctrl-C exits.
`
}

// SetFlags implements subcommands.Command.
func (c *runCmd) SetFlags(f *flag.FlagSet) {
	f.UintVar(&c.refreshMS, "refresh-ms", 50, "screen redraw interval in milliseconds")
}

// Execute implements subcommands.Command.
func (c *runCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	m, infoAddr, err := newMachine()
	if err != nil {
		logrus.Error(err)
		return subcommands.ExitFailure
	}
	bootKernel(m, infoAddr)

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		logrus.Error("run needs a terminal on stdin; use the demo subcommand for scripted boots")
		return subcommands.ExitUsageError
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		logrus.Errorf("cannot switch the terminal to raw mode: %v", err)
		return subcommands.ExitFailure
	}
	defer term.Restore(fd, oldState)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		if err := m.Run(ctx); err != nil && ctx.Err() == nil {
			logrus.Errorf("machine stopped: %v", err)
		}
	}()
	go keyboardPump(cancel, m)

	ticker := time.NewTicker(time.Duration(c.refreshMS) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Fprint(os.Stdout, "\x1b[2J\x1b[H\r\n")
			return subcommands.ExitSuccess
		case <-ticker.C:
			drawScreen(m)
			if m.TerminallyParked() {
				drawScreen(m)
				fmt.Fprint(os.Stdout, "\r\nthe kernel halted; press Ctrl-C to exit\r\n")
			}
		}
	}
}

// keyboardPump forwards terminal bytes to the emulated keyboard until
// Ctrl-C, which cancels the run instead of being delivered to the guest.
func keyboardPump(cancel context.CancelFunc, m *machine.Machine) {
	var buf [1]byte
	for {
		if _, err := os.Stdin.Read(buf[:]); err != nil {
			cancel()
			return
		}

		switch buf[0] {
		case 0x03: // ETX, Ctrl-C
			cancel()
			return
		case '\r':
			m.TypeText("\n")
		default:
			m.TypeText(string(buf[0]))
		}
	}
}

// drawScreen repaints the terminal with the current VGA text contents using
// a home-and-clear escape so the screen updates in place.
func drawScreen(m *machine.Machine) {
	var sb strings.Builder
	sb.WriteString("\x1b[H")
	for _, row := range m.TextScreen() {
		sb.WriteString(row)
		sb.WriteString("\x1b[K\r\n")
	}
	fmt.Fprint(os.Stdout, sb.String())
}
