package machine

// i8254 models the programmable interval timer. Only the features the kernel
// programs are implemented: lobyte/hibyte access, mode 3 square wave output
// on channel 0 (the tick source) and channel 2 (the speaker tone), and the
// channel 2 gate input driven by port 0x61.
type i8254 struct {
	ch [3]pitChannel
}

type pitChannel struct {
	// reloadVal is the programmed divisor; a raw value of 0 counts as
	// 65536, the 8254 maximum.
	reloadVal uint32

	// count is the remaining input cycles until the next output edge.
	count int64

	loadLow  uint8
	haveLow  bool
	running  bool
	gateOff  bool
	accessOK bool
}

// pitCyclesPerMilli is how many input clock cycles one machine step feeds
// the channels. With the canonical divisor of 1193 channel 0 produces
// exactly one output edge per step.
const pitCyclesPerMilli = pitInputHz / 1000

func newI8254() *i8254 {
	return &i8254{}
}

// writeCommand consumes a mode/command register write. Selecting a channel
// resets its byte flip-flop and stops it until a full divisor is loaded.
func (p *i8254) writeCommand(v uint8) {
	chIdx := int(v >> 6)
	if chIdx > 2 {
		// Read-back command, not used by the kernel.
		return
	}

	ch := &p.ch[chIdx]
	ch.haveLow = false
	ch.running = false
	ch.accessOK = (v>>4)&0x03 == 0x03
}

// writeData consumes a counter data write and reports whether it completed a
// divisor reload.
func (p *i8254) writeData(chIdx int, v uint8) bool {
	if chIdx < 0 || chIdx > 2 {
		return false
	}

	ch := &p.ch[chIdx]
	if !ch.accessOK {
		return false
	}
	if !ch.haveLow {
		ch.loadLow = v
		ch.haveLow = true
		return false
	}

	ch.reloadVal = uint32(ch.loadLow) | uint32(v)<<8
	if ch.reloadVal == 0 {
		ch.reloadVal = 65536
	}
	ch.haveLow = false
	ch.count = int64(ch.reloadVal)
	ch.running = true
	return true
}

// readCount returns the low byte of the remaining count, which is all the
// visibility the kernel ever asks for.
func (p *i8254) readCount(chIdx int) uint8 {
	if chIdx < 0 || chIdx > 2 {
		return 0xff
	}
	return uint8(p.ch[chIdx].count)
}

// setGate drives a channel's gate input. Only channel 2 has its gate wired
// anywhere on a PC.
func (p *i8254) setGate(chIdx int, open bool) {
	if chIdx < 0 || chIdx > 2 {
		return
	}
	p.ch[chIdx].gateOff = !open
}

// reload returns the programmed divisor of a channel, 0 when the channel has
// not been fully programmed yet.
func (p *i8254) reload(chIdx int) uint32 {
	if chIdx < 0 || chIdx > 2 || !p.ch[chIdx].running {
		return 0
	}
	return p.ch[chIdx].reloadVal
}

// advanceMilli clocks every running channel by one machine step worth of
// input cycles and returns the number of output edges channel 0 produced.
func (p *i8254) advanceMilli() int {
	edges := p.ch[0].advance(pitCyclesPerMilli)
	p.ch[1].advance(pitCyclesPerMilli)
	p.ch[2].advance(pitCyclesPerMilli)
	return edges
}

func (ch *pitChannel) advance(cycles int64) int {
	if !ch.running || ch.gateOff {
		return 0
	}

	edges := 0
	ch.count -= cycles
	for ch.count <= 0 {
		ch.count += int64(ch.reloadVal)
		edges++
	}
	return edges
}
