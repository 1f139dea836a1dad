package song

import (
	"testing"

	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel"
	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/cpu"
	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/pit"
	kernelsync "github.com/uiaict/2025-ikt218-osdev-sub005/kernel/sync"
)

func restoreFns() {
	portReadByteFn = cpu.PortReadByte
	portWriteByteFn = cpu.PortWriteByte
	onTickFn = pit.OnTick
	ticksFn = pit.Ticks
	sleepFn = pit.SleepInterrupt
	withIRQsDisabledFn = kernelsync.WithInterruptsDisabled

	state = stateIdle
	notes = nil
	noteIndex = 0
	phaseStart = 0
	phaseLen = 0
	hookReady = false
}

// speakerRig simulates the speaker-facing hardware: the port 0x61 control
// register and the channel 2 divisor register, plus the tick hook the player
// registers with the timer.
type speakerRig struct {
	gateReg   uint8
	divisor   uint16
	cmdWrites int
	regCount  int
	tick      uint32
	hook      pit.TickFunc
}

func installRig(t *testing.T) *speakerRig {
	t.Helper()

	// Unrelated bits of the control register start out set so the tests
	// catch a player that clobbers them.
	rig := &speakerRig{gateReg: 0x14}

	portReadByteFn = func(port uint16) uint8 {
		if port != portSpeakerGate {
			t.Fatalf("unexpected read from port 0x%x", port)
		}
		return rig.gateReg
	}

	var (
		wroteLo bool
		lo      uint8
	)
	portWriteByteFn = func(port uint16, val uint8) {
		switch port {
		case portSpeakerGate:
			rig.gateReg = val
		case portCommand:
			if val != cmdSquareWaveCh2 {
				t.Fatalf("unexpected command byte 0x%x", val)
			}
			rig.cmdWrites++
			wroteLo = false
		case portChannel2Data:
			if !wroteLo {
				lo, wroteLo = val, true
				return
			}
			rig.divisor = uint16(val)<<8 | uint16(lo)
			wroteLo = false
		default:
			t.Fatalf("unexpected write to port 0x%x", port)
		}
	}

	onTickFn = func(fn pit.TickFunc) *kernel.Error {
		rig.hook = fn
		rig.regCount++
		return nil
	}
	ticksFn = func() uint32 { return rig.tick }
	withIRQsDisabledFn = func(fn func()) { fn() }
	return rig
}

func (rig *speakerRig) gateOpen() bool {
	return rig.gateReg&speakerGateBits == speakerGateBits
}

// advance delivers n timer ticks to the registered hook.
func (rig *speakerRig) advance(t *testing.T, n int) {
	t.Helper()
	if rig.hook == nil {
		t.Fatal("no tick hook registered")
	}
	for i := 0; i < n; i++ {
		rig.tick++
		rig.hook(rig.tick)
	}
}

func TestPlayProgramsFirstNote(t *testing.T) {
	defer restoreFns()
	rig := installRig(t)

	if err := Play(&Song{Name: "test", Notes: []Note{{NoteA4, 100}}}); err != nil {
		t.Fatal(err)
	}

	if exp := uint16(pit.BaseFrequency / NoteA4); rig.divisor != exp {
		t.Fatalf("expected channel 2 divisor %d; got %d", exp, rig.divisor)
	}
	if !rig.gateOpen() {
		t.Fatal("expected the speaker gate to open")
	}
	if rig.gateReg&0x14 != 0x14 {
		t.Fatalf("expected the unrelated control bits to survive; got 0x%x", rig.gateReg)
	}
	if !Playing() {
		t.Fatal("expected Playing to report true")
	}
}

func TestPlaybackTimeline(t *testing.T) {
	defer restoreFns()
	rig := installRig(t)

	theme := &Song{Name: "timing", Notes: []Note{{440, 100}, {880, 100}}}
	if err := Play(theme); err != nil {
		t.Fatal(err)
	}

	// Halfway into the first note the gate is open at 440Hz.
	rig.advance(t, 50)
	if !rig.gateOpen() || rig.divisor != uint16(pit.BaseFrequency/440) {
		t.Fatalf("tick 50: expected an open gate at divisor %d; got open=%t divisor=%d",
			pit.BaseFrequency/440, rig.gateOpen(), rig.divisor)
	}
	if rig.cmdWrites != 1 {
		t.Fatalf("tick 50: expected one divisor program so far; got %d", rig.cmdWrites)
	}

	// The first tone ends at tick 80 and its gap runs to 100.
	rig.advance(t, 35)
	if rig.gateOpen() {
		t.Fatal("tick 85: expected the gate to close during the note gap")
	}

	// Halfway into the second note the divisor is reprogrammed to 880Hz.
	rig.advance(t, 65)
	if !rig.gateOpen() || rig.divisor != uint16(pit.BaseFrequency/880) {
		t.Fatalf("tick 150: expected an open gate at divisor %d; got open=%t divisor=%d",
			pit.BaseFrequency/880, rig.gateOpen(), rig.divisor)
	}

	// Past the end of the song the player is idle and silent.
	rig.advance(t, 55)
	if rig.gateOpen() || Playing() {
		t.Fatalf("tick 205: expected an idle, silent player; got open=%t playing=%t",
			rig.gateOpen(), Playing())
	}
	if rig.cmdWrites != 2 {
		t.Fatalf("expected one divisor program per note; got %d", rig.cmdWrites)
	}
}

func TestRestKeepsSpeakerSilent(t *testing.T) {
	defer restoreFns()
	rig := installRig(t)

	if err := Play(&Song{Notes: []Note{{NoteRest, 50}, {NoteA4, 50}}}); err != nil {
		t.Fatal(err)
	}

	if rig.gateOpen() || rig.cmdWrites != 0 {
		t.Fatal("expected a leading rest to keep the speaker off")
	}

	rig.advance(t, 40)
	if rig.gateOpen() {
		t.Fatal("tick 40: expected the rest to still be silent")
	}

	rig.advance(t, 15)
	if !rig.gateOpen() || rig.divisor != uint16(pit.BaseFrequency/NoteA4) {
		t.Fatal("tick 55: expected the second note to sound")
	}

	rig.advance(t, 45)
	if rig.gateOpen() || Playing() {
		t.Fatal("tick 100: expected the song to be over")
	}
}

func TestPlayRejectsOverlap(t *testing.T) {
	defer restoreFns()
	installRig(t)

	if err := Play(&TwinkleTwinkle); err != nil {
		t.Fatal(err)
	}
	if err := Play(&BattleTheme); err != errAlreadyPlaying {
		t.Fatalf("expected errAlreadyPlaying; got %v", err)
	}
}

func TestStop(t *testing.T) {
	defer restoreFns()
	rig := installRig(t)

	if err := Play(&Song{Notes: []Note{{NoteA4, 100}}}); err != nil {
		t.Fatal(err)
	}
	rig.advance(t, 10)
	Stop()

	if Playing() || rig.gateOpen() {
		t.Fatal("expected Stop to silence and idle the player")
	}

	// Further ticks must not revive playback.
	rig.advance(t, 200)
	if Playing() || rig.gateOpen() {
		t.Fatal("expected the player to stay idle after Stop")
	}
}

func TestPlayIgnoresEmptySongs(t *testing.T) {
	defer restoreFns()
	rig := installRig(t)

	if err := Play(&Song{Name: "empty"}); err != nil {
		t.Fatal(err)
	}
	if Playing() || rig.hook != nil {
		t.Fatal("expected an empty song to leave the player untouched")
	}

	if err := Play(nil); err != nil {
		t.Fatal(err)
	}
}

func TestTickHookRegisteredOnce(t *testing.T) {
	defer restoreFns()
	rig := installRig(t)

	if err := Play(&Song{Notes: []Note{{NoteA4, 30}}}); err != nil {
		t.Fatal(err)
	}
	rig.advance(t, 30)

	if err := Play(&Song{Notes: []Note{{NoteE5, 30}}}); err != nil {
		t.Fatal(err)
	}
	if rig.regCount != 1 {
		t.Fatalf("expected a single tick hook registration; got %d", rig.regCount)
	}
}

func TestHookErrorPropagates(t *testing.T) {
	defer restoreFns()
	installRig(t)

	expErr := &kernel.Error{Module: "pit", Message: "tick hook table is full"}
	onTickFn = func(pit.TickFunc) *kernel.Error { return expErr }

	if err := Play(&TwinkleTwinkle); err != expErr {
		t.Fatalf("expected the hook registration error; got %v", err)
	}
	if Playing() {
		t.Fatal("expected the player to stay idle when registration fails")
	}
}

func TestPlaySync(t *testing.T) {
	defer restoreFns()
	rig := installRig(t)

	sleepFn = func(ms uint32) {
		for i := uint32(0); i < ms; i++ {
			rig.tick++
			rig.hook(rig.tick)
		}
	}

	if err := PlaySync(&Song{Notes: []Note{{NoteA4, 30}, {NoteE5, 30}}}); err != nil {
		t.Fatal(err)
	}
	if Playing() || rig.gateOpen() {
		t.Fatal("expected PlaySync to return once the song is over")
	}
	if rig.tick < 60 {
		t.Fatalf("expected at least 60 elapsed ticks; got %d", rig.tick)
	}
}

func TestPlaybackAcrossTickWrap(t *testing.T) {
	defer restoreFns()
	rig := installRig(t)
	rig.tick = ^uint32(0) - 30

	if err := Play(&Song{Notes: []Note{{NoteA4, 100}}}); err != nil {
		t.Fatal(err)
	}

	rig.advance(t, 50)
	if !Playing() {
		t.Fatal("expected playback to survive the counter wrap")
	}

	rig.advance(t, 51)
	if Playing() || rig.gateOpen() {
		t.Fatal("expected the song to end shortly after the wrap")
	}
}
