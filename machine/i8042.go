package machine

// i8042 models the keyboard controller's output path: scancode bytes queue
// up behind a one-byte output buffer, and every byte that lands in the
// buffer raises IRQ1. Reading port 0x60 frees the buffer and pulls the next
// queued byte in, raising the line again, so a burst of injected scancodes
// produces one interrupt per byte just like the real controller.
type i8042 struct {
	queue   []uint8
	out     uint8
	outFull bool

	raiseIRQ func()
}

const statusOutputFull = 0x01

func newI8042(raiseIRQ func()) *i8042 {
	return &i8042{raiseIRQ: raiseIRQ}
}

func (k *i8042) inject(codes ...uint8) {
	k.queue = append(k.queue, codes...)
	k.pump()
}

func (k *i8042) pump() {
	if k.outFull || len(k.queue) == 0 {
		return
	}
	k.out = k.queue[0]
	k.queue = k.queue[1:]
	k.outFull = true
	k.raiseIRQ()
}

func (k *i8042) readOutput() uint8 {
	v := k.out
	k.outFull = false
	k.pump()
	return v
}

func (k *i8042) readStatus() uint8 {
	if k.outFull {
		return statusOutputFull
	}
	return 0
}

const (
	scanLeftShift = 0x2a
	scanBreakBit  = 0x80
)

// hostKeymap maps ASCII to the set-1 make code that produces it and whether
// the shift modifier is required. It is the host-side inverse of the
// kernel's scancode decoder.
var hostKeymap = map[byte]struct {
	code  uint8
	shift bool
}{
	'1': {0x02, false}, '!': {0x02, true},
	'2': {0x03, false}, '@': {0x03, true},
	'3': {0x04, false}, '#': {0x04, true},
	'4': {0x05, false}, '$': {0x05, true},
	'5': {0x06, false}, '%': {0x06, true},
	'6': {0x07, false}, '^': {0x07, true},
	'7': {0x08, false}, '&': {0x08, true},
	'8': {0x09, false}, '*': {0x09, true},
	'9': {0x0a, false}, '(': {0x0a, true},
	'0': {0x0b, false}, ')': {0x0b, true},
	'-': {0x0c, false}, '_': {0x0c, true},
	'=': {0x0d, false}, '+': {0x0d, true},
	'\b': {0x0e, false},
	'\t': {0x0f, false},
	'q':  {0x10, false}, 'Q': {0x10, true},
	'w': {0x11, false}, 'W': {0x11, true},
	'e': {0x12, false}, 'E': {0x12, true},
	'r': {0x13, false}, 'R': {0x13, true},
	't': {0x14, false}, 'T': {0x14, true},
	'y': {0x15, false}, 'Y': {0x15, true},
	'u': {0x16, false}, 'U': {0x16, true},
	'i': {0x17, false}, 'I': {0x17, true},
	'o': {0x18, false}, 'O': {0x18, true},
	'p': {0x19, false}, 'P': {0x19, true},
	'[': {0x1a, false}, '{': {0x1a, true},
	']': {0x1b, false}, '}': {0x1b, true},
	'\n': {0x1c, false},
	'a':  {0x1e, false}, 'A': {0x1e, true},
	's': {0x1f, false}, 'S': {0x1f, true},
	'd': {0x20, false}, 'D': {0x20, true},
	'f': {0x21, false}, 'F': {0x21, true},
	'g': {0x22, false}, 'G': {0x22, true},
	'h': {0x23, false}, 'H': {0x23, true},
	'j': {0x24, false}, 'J': {0x24, true},
	'k': {0x25, false}, 'K': {0x25, true},
	'l': {0x26, false}, 'L': {0x26, true},
	';': {0x27, false}, ':': {0x27, true},
	'\'': {0x28, false}, '"': {0x28, true},
	'`': {0x29, false}, '~': {0x29, true},
	'\\': {0x2b, false}, '|': {0x2b, true},
	'z': {0x2c, false}, 'Z': {0x2c, true},
	'x': {0x2d, false}, 'X': {0x2d, true},
	'c': {0x2e, false}, 'C': {0x2e, true},
	'v': {0x2f, false}, 'V': {0x2f, true},
	'b': {0x30, false}, 'B': {0x30, true},
	'n': {0x31, false}, 'N': {0x31, true},
	'm': {0x32, false}, 'M': {0x32, true},
	',': {0x33, false}, '<': {0x33, true},
	'.': {0x34, false}, '>': {0x34, true},
	'/': {0x35, false}, '?': {0x35, true},
	' ': {0x39, false},
}

// scancodesForText converts text into the make/break sequence a US-layout
// keyboard emits when the text is typed, wrapping shifted characters in
// left-shift press and release.
func scancodesForText(text string) []uint8 {
	out := make([]uint8, 0, len(text)*2)
	for i := 0; i < len(text); i++ {
		key, ok := hostKeymap[text[i]]
		if !ok {
			continue
		}
		if key.shift {
			out = append(out, scanLeftShift)
		}
		out = append(out, key.code, key.code|scanBreakBit)
		if key.shift {
			out = append(out, scanLeftShift|scanBreakBit)
		}
	}
	return out
}
