// Command osdev boots the kernel on the software machine model. The run
// subcommand drives the machine in step with the wall clock and connects the
// terminal to the emulated keyboard and VGA text screen; demo and play drive
// machine time deterministically for scripted use.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
)

var (
	logLevel = flag.String("log-level", "info", "log level: debug, info, warn or error")
	traceIO  = flag.Bool("trace", false, "log port I/O and interrupt delivery (rate limited, needs -log-level debug)")
	preset   = flag.String("machine", "", "path to a YAML machine preset; defaults apply when empty")
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(new(runCmd), "")
	subcommands.Register(new(demoCmd), "")
	subcommands.Register(new(playCmd), "")

	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "osdev: %v\n", err)
		os.Exit(2)
	}
	logrus.SetLevel(level)
	logrus.SetOutput(os.Stderr)

	os.Exit(int(subcommands.Execute(context.Background())))
}
