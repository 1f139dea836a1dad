package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/cpu"
	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/gdt"
	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/idt"
	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/pit"
	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/song"
	"github.com/uiaict/2025-ikt218-osdev-sub005/machine"
)

// playCmd brings up just enough of the kernel to drive the PC speaker and
// plays a song through the machine model, logging every tone transition.
type playCmd struct {
	file string
	name string
}

// Name implements subcommands.Command.
func (*playCmd) Name() string { return "play" }

// Synopsis implements subcommands.Command.
func (*playCmd) Synopsis() string { return "play a song through the PC speaker model" }

// Usage implements subcommands.Command.
func (*playCmd) Usage() string {
	return `play [-file song.yaml | -name "twinkle twinkle little star"]:
	Load a song from a YAML file or pick one from the built-in library,
	play it through the emulated speaker and log the tone timeline.
`
}

// SetFlags implements subcommands.Command.
func (c *playCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.file, "file", "", "YAML song file to play")
	f.StringVar(&c.name, "name", "", "built-in song name (see the library)")
}

// songFile is the YAML shape of a song on disk.
type songFile struct {
	Name  string `yaml:"name"`
	Notes []struct {
		FrequencyHz uint32 `yaml:"frequency_hz"`
		DurationMS  uint32 `yaml:"duration_ms"`
	} `yaml:"notes"`
}

func loadSongFile(path string) (*song.Song, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading song: %w", err)
	}

	var sf songFile
	if err := yaml.UnmarshalStrict(raw, &sf); err != nil {
		return nil, fmt.Errorf("parsing song %s: %w", path, err)
	}
	if len(sf.Notes) == 0 {
		return nil, fmt.Errorf("song %s has no notes", path)
	}

	s := &song.Song{Name: sf.Name}
	if s.Name == "" {
		s.Name = path
	}
	for _, n := range sf.Notes {
		s.Notes = append(s.Notes, song.Note{Frequency: n.FrequencyHz, Duration: n.DurationMS})
	}
	return s, nil
}

func (c *playCmd) pickSong() (*song.Song, error) {
	switch {
	case c.file != "" && c.name != "":
		return nil, fmt.Errorf("-file and -name are mutually exclusive")
	case c.file != "":
		return loadSongFile(c.file)
	case c.name != "":
		for _, s := range song.Library {
			if strings.EqualFold(s.Name, c.name) {
				return s, nil
			}
		}
		return nil, fmt.Errorf("no built-in song named %q", c.name)
	default:
		return song.Library[0], nil
	}
}

// Execute implements subcommands.Command.
func (c *playCmd) Execute(context.Context, *flag.FlagSet, ...interface{}) subcommands.ExitStatus {
	s, err := c.pickSong()
	if err != nil {
		logrus.Error(err)
		return subcommands.ExitUsageError
	}

	m, _, err := newMachine()
	if err != nil {
		logrus.Error(err)
		return subcommands.ExitFailure
	}
	m.Install()

	// The speaker path only needs descriptor tables, the remapped
	// controllers and the timer tick; no heap, paging or drivers.
	gdt.Init()
	idt.Init()
	if kerr := pit.Init(); kerr != nil {
		logrus.Errorf("pit: %s", kerr.Message)
		return subcommands.ExitFailure
	}
	cpu.EnableInterrupts()

	if kerr := song.Play(s); kerr != nil {
		logrus.Errorf("song: %s", kerr.Message)
		return subcommands.ExitFailure
	}
	logrus.WithFields(logrus.Fields{"song": s.Name, "notes": len(s.Notes)}).Info("playing")

	seen := 0
	for song.Playing() {
		m.AdvanceMillis(10)
		for _, ev := range m.ToneEvents()[seen:] {
			logTone(ev)
			seen++
		}
	}
	for _, ev := range m.ToneEvents()[seen:] {
		logTone(ev)
	}

	logrus.WithField("guest_ms", m.NowMillis()).Info("playback finished")
	return subcommands.ExitSuccess
}

func logTone(ev machine.ToneEvent) {
	if !ev.Gate {
		logrus.WithField("at_ms", ev.AtMillis).Debug("speaker off")
		return
	}
	logrus.WithFields(logrus.Fields{
		"at_ms":   ev.AtMillis,
		"hz":      ev.Hz,
		"divisor": ev.Divisor,
	}).Info("tone")
}
