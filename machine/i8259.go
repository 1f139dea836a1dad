package machine

// i8259 models one 8259 interrupt controller: the request, in-service and
// mask registers plus the ICW initialization handshake the kernel performs
// when it remaps the vector offset. The model is edge-triggered; a line
// raised while its request bit is already set is absorbed, which matches how
// the real chip loses edges that arrive faster than they are serviced.
type i8259 struct {
	offset uint8

	irr uint8
	imr uint8
	isr uint8

	// icwStep tracks the initialization handshake: 0 means the chip is in
	// normal operation, 1..3 selects the ICW the next data-port write is
	// consumed as.
	icwStep int

	eoiCount uint64
}

const (
	icwInitBit = 0x10
	ocwEOI     = 0x20
)

func (c *i8259) writeCmd(v uint8) {
	switch {
	case v&icwInitBit != 0:
		// ICW1 resets the chip: pending and in-service state is dropped
		// and the mask register is cleared until ICW4 completes.
		c.icwStep = 1
		c.irr, c.isr, c.imr = 0, 0, 0
	case v == ocwEOI:
		c.endOfInterrupt()
	}
}

func (c *i8259) writeData(v uint8) {
	switch c.icwStep {
	case 1:
		c.offset = v
		c.icwStep = 2
	case 2:
		// ICW3 describes the cascade wiring, which is fixed in this model.
		c.icwStep = 3
	case 3:
		// ICW4 selects 8086 mode; nothing else is supported.
		c.icwStep = 0
	default:
		c.imr = v
	}
}

func (c *i8259) readCmd() uint8 {
	return c.irr
}

func (c *i8259) readData() uint8 {
	return c.imr
}

func (c *i8259) raise(line uint8) {
	c.irr |= 1 << (line & 7)
}

// pendingLine returns the highest-priority line that is requested, unmasked
// and not blocked by an equal or higher-priority line already in service.
// Line 0 has the highest priority.
func (c *i8259) pendingLine() (uint8, bool) {
	ready := c.irr &^ c.imr
	for bit := uint8(0); bit < 8; bit++ {
		if c.isr&(1<<bit) != 0 {
			return 0, false
		}
		if ready&(1<<bit) != 0 {
			return bit, true
		}
	}
	return 0, false
}

// acknowledge moves a pending line into service.
func (c *i8259) acknowledge(line uint8) {
	c.irr &^= 1 << line
	c.isr |= 1 << line
}

// endOfInterrupt clears the highest-priority in-service bit, the effect of a
// non-specific EOI command.
func (c *i8259) endOfInterrupt() {
	c.eoiCount++
	for bit := uint8(0); bit < 8; bit++ {
		if c.isr&(1<<bit) != 0 {
			c.isr &^= 1 << bit
			return
		}
	}
}

// cascadeLine is the master input the slave controller is wired to.
const cascadeLine = 2

// picPair is the standard PC arrangement: a master chip on ports 0x20/0x21
// and a slave on 0xA0/0xA1 cascaded through master line 2.
type picPair struct {
	master i8259
	slave  i8259
}

func newPICPair() *picPair {
	return &picPair{}
}

// raise asserts controller input line 0-15.
func (p *picPair) raise(line uint8) {
	if line < 8 {
		p.master.raise(line)
		return
	}
	p.slave.raise(line - 8)
	p.master.raise(cascadeLine)
}

// acknowledge resolves the highest-priority deliverable request to its
// programmed vector and marks it in service on the owning chip (and on the
// master as well for slave lines). It returns the vector, the 0-15 line
// number and whether anything was pending.
func (p *picPair) acknowledge() (vector uint8, line uint8, ok bool) {
	ml, ok := p.master.pendingLine()
	if !ok {
		return 0, 0, false
	}

	if ml != cascadeLine {
		p.master.acknowledge(ml)
		return p.master.offset + ml, ml, true
	}

	sl, ok := p.slave.pendingLine()
	if !ok {
		// The cascade request has no slave line behind it; drop it the way
		// the real pair resolves a spurious interrupt.
		p.master.irr &^= 1 << cascadeLine
		return 0, 0, false
	}

	p.master.acknowledge(cascadeLine)
	p.slave.acknowledge(sl)
	return p.slave.offset + sl, sl + 8, true
}
