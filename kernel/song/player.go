package song

import (
	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel"
	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/cpu"
	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/pit"
	kernelsync "github.com/uiaict/2025-ikt218-osdev-sub005/kernel/sync"
)

const (
	portChannel2Data = 0x42
	portCommand      = 0x43
	portSpeakerGate  = 0x61

	// cmdSquareWaveCh2 selects channel 2, lo/hi byte access, mode 3.
	cmdSquareWaveCh2 = 0xb6

	// speakerGateBits couples PIT channel 2 to the speaker cone: bit 0
	// gates the timer input, bit 1 feeds the timer output to the speaker.
	speakerGateBits = 0x03

	// GapMS is the silent tail carved out of each note's duration so that
	// consecutive notes of the same frequency remain distinguishable. Notes
	// shorter than the gap sound for their whole duration instead.
	GapMS = 20

	minFrequency = 20
)

type playerState uint8

const (
	stateIdle playerState = iota
	stateTone
	stateGap
)

// Playback state. Once a song starts, the fields are owned by the tick
// handler; kernel code mutates or reads them with interrupts disabled only.
var (
	state      playerState
	notes      []Note
	noteIndex  int
	phaseStart uint32
	phaseLen   uint32
	hookReady  bool

	portReadByteFn     = cpu.PortReadByte
	portWriteByteFn    = cpu.PortWriteByte
	onTickFn           = pit.OnTick
	ticksFn            = pit.Ticks
	sleepFn            = pit.SleepInterrupt
	withIRQsDisabledFn = kernelsync.WithInterruptsDisabled

	errAlreadyPlaying = &kernel.Error{Module: "song", Message: "a song is already playing"}
)

// playFrequency programs PIT channel 2 with the divisor for hz. The channel
// output only reaches the speaker once the gate bits are set.
func playFrequency(hz uint32) {
	divisor := pit.BaseFrequency / hz
	portWriteByteFn(portCommand, cmdSquareWaveCh2)
	portWriteByteFn(portChannel2Data, uint8(divisor))
	portWriteByteFn(portChannel2Data, uint8(divisor>>8))
}

// speakerOn sets the gate bits on port 0x61, preserving the unrelated bits
// of the register. The write is skipped when the gate is already open.
func speakerOn() {
	v := portReadByteFn(portSpeakerGate)
	if v&speakerGateBits != speakerGateBits {
		portWriteByteFn(portSpeakerGate, v|speakerGateBits)
	}
}

// speakerOff clears the gate bits on port 0x61.
func speakerOff() {
	v := portReadByteFn(portSpeakerGate)
	if v&speakerGateBits != 0 {
		portWriteByteFn(portSpeakerGate, v&^uint8(speakerGateBits))
	}
}

// startNote begins the tone phase of the note at noteIndex. Rests keep the
// speaker gated off for the whole phase.
func startNote(tick uint32) {
	note := notes[noteIndex]
	tone := note.Duration
	if tone > GapMS {
		tone -= GapMS
	}

	state = stateTone
	phaseStart, phaseLen = tick, tone

	if note.Frequency < minFrequency {
		speakerOff()
		return
	}
	playFrequency(note.Frequency)
	speakerOn()
}

// onTick advances the player state machine. It runs in interrupt context as
// a PIT tick hook; tick comparisons are modular so playback survives counter
// wrap.
func onTick(tick uint32) {
	if state == stateIdle || tick-phaseStart < phaseLen {
		return
	}

	if state == stateTone {
		if gap := notes[noteIndex].Duration - phaseLen; gap != 0 {
			speakerOff()
			state = stateGap
			phaseStart, phaseLen = tick, gap
			return
		}
	}

	noteIndex++
	if noteIndex >= len(notes) {
		stopLocked()
		return
	}
	startNote(tick)
}

func stopLocked() {
	speakerOff()
	state = stateIdle
	notes = nil
}

func ensureTickHook() *kernel.Error {
	if hookReady {
		return nil
	}
	if err := onTickFn(onTick); err != nil {
		return err
	}
	hookReady = true
	return nil
}

// Play starts playback of s and returns immediately; the PIT tick hook
// carries the song forward from here. Songs without notes are ignored.
// Play returns an error when a song is already playing or when the tick
// hook cannot be registered.
func Play(s *Song) *kernel.Error {
	if s == nil || len(s.Notes) == 0 {
		return nil
	}
	if err := ensureTickHook(); err != nil {
		return err
	}

	var err *kernel.Error
	withIRQsDisabledFn(func() {
		if state != stateIdle {
			err = errAlreadyPlaying
			return
		}
		notes = s.Notes
		noteIndex = 0
		startNote(ticksFn())
	})
	return err
}

// Stop silences the speaker and drops the rest of the song.
func Stop() {
	withIRQsDisabledFn(stopLocked)
}

// Playing reports whether a song is currently being played.
func Playing() bool {
	var playing bool
	withIRQsDisabledFn(func() { playing = state != stateIdle })
	return playing
}

// PlaySync plays s and blocks until the last note has faded. The wait
// sleeps through interrupts, so the caller must run with interrupts
// enabled.
func PlaySync(s *Song) *kernel.Error {
	if err := Play(s); err != nil {
		return err
	}
	for Playing() {
		sleepFn(1)
	}
	return nil
}
