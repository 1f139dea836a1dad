package machine_test

import (
	"testing"
	"time"

	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/kmain"
	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/multiboot"
	"github.com/uiaict/2025-ikt218-osdev-sub005/kernel/pit"
	"github.com/uiaict/2025-ikt218-osdev-sub005/machine"
)

// waitParked blocks until the kernel goroutine parks in a halt, failing the
// test instead of hanging when it never does.
func waitParked(t *testing.T, m *machine.Machine) {
	t.Helper()

	done := make(chan struct{})
	go func() {
		m.WaitParked()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatal("the kernel goroutine never reached a halt")
	}
}

// TestBootToIdle boots the real kernel on the machine model and drives it
// deterministically through the whole boot demo: descriptor tables, paging,
// heap exercise, the four bundled songs and finally the idle loop echoing
// keyboard input.
func TestBootToIdle(t *testing.T) {
	m, err := machine.New(machine.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	infoAddr, err := m.WriteBootInfo()
	if err != nil {
		t.Fatal(err)
	}

	m.Install()
	go kmain.Kmain(multiboot.BootMagic, infoAddr, m.KernelStart(), m.KernelEnd())

	// The four library songs add up to roughly 22 seconds of playback;
	// give the boot twice that before declaring it wedged.
	booted := false
	for elapsed := 0; elapsed < 45000; elapsed += 100 {
		m.AdvanceMillis(100)
		waitParked(t, m)
		if m.ScreenContains("boot complete") {
			booted = true
			break
		}
	}
	if !booted {
		t.Fatalf("kernel did not reach the idle loop; screen:\n%v", m.TextScreen())
	}

	if cs, ds := m.Segments(); cs != 0x08 || ds != 0x10 {
		t.Errorf("expected flat segments 0x08/0x10; got %#x/%#x", cs, ds)
	}
	if !m.PagingEnabled() {
		t.Error("expected identity paging to be enabled")
	}

	// Every delivered timer interrupt advances the tick counter exactly
	// once, and every delivery is acknowledged exactly once.
	timerIRQs := m.DeliveredIRQs(0)
	if timerIRQs == 0 {
		t.Fatal("expected the timer line to have fired during boot")
	}
	if got := pit.Ticks(); uint64(got) != timerIRQs {
		t.Errorf("expected one tick per delivered IRQ0; got %d ticks for %d deliveries", got, timerIRQs)
	}

	st := m.PICStats()
	delivered := m.DeliveredIRQs(0) + m.DeliveredIRQs(1)
	if st.MasterEOIs != delivered {
		t.Errorf("expected exactly one master EOI per delivered IRQ; got %d for %d deliveries", st.MasterEOIs, delivered)
	}

	// The demo starts with the star wars theme; its opening note is A4.
	tones := m.ToneEvents()
	if len(tones) == 0 {
		t.Fatal("expected the boot demo to drive the speaker")
	}
	if first := tones[0]; !first.Gate || first.Hz != 440 {
		t.Errorf("expected the first tone to open the gate at 440Hz; got gate %t hz %d", first.Gate, first.Hz)
	}
	if last := tones[len(tones)-1]; last.Gate {
		t.Error("expected the speaker to be silent after the last song")
	}
	if gateOpen, _, _ := m.SpeakerState(); gateOpen {
		t.Error("expected the speaker gate to be closed at idle")
	}

	// Typed input is decoded by the keyboard driver and echoed by the idle
	// loop, shift handling included.
	irq1Before := m.DeliveredIRQs(1)
	m.TypeText("Hello World!")
	m.AdvanceMillis(5)
	waitParked(t, m)

	if !m.ScreenContains("Hello World!") {
		t.Errorf("expected the typed text to be echoed; screen:\n%v", m.TextScreen())
	}
	if m.DeliveredIRQs(1) == irq1Before {
		t.Error("expected keyboard interrupts to have been delivered")
	}
}
