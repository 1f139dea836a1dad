// Package kfmt provides the kernel's formatted output machinery. It mirrors
// a small subset of fmt but never allocates: early boot output lands in a
// ring buffer that gets replayed into the active TTY once one is attached.
package kfmt

import "io"

// maxNumDigits bounds the formatted width of a 64-bit value in any base.
const maxNumDigits = 32

var (
	errMissingArg   = []byte("(MISSING)")
	errWrongArgType = []byte("%!(WRONGTYPE)")
	errNoVerb       = []byte("%!(NOVERB)")
	errExtraArg     = []byte("%!(EXTRA)")
	trueValue       = []byte("true")
	falseValue      = []byte("false")

	// scratch holds bytes in transit to the sink. Kernel output is
	// single-writer (interrupt handlers print only on the panic path) so a
	// shared buffer is safe and keeps Fprintf allocation-free.
	scratch [64]byte

	// earlyPrintBuffer stores Printf output generated before a console has
	// been initialized.
	earlyPrintBuffer ringBuffer

	// outputSink receives Printf output; nil routes to earlyPrintBuffer.
	outputSink io.Writer
)

// SetOutputSink sets the target for Printf calls to w and drains any early
// boot output accumulated in the ring buffer into it.
func SetOutputSink(w io.Writer) {
	outputSink = w
	if w != nil {
		io.Copy(w, &earlyPrintBuffer)
	}
}

// GetOutputSink returns the ring buffer until a sink is attached by
// SetOutputSink and the attached sink afterwards.
func GetOutputSink() io.Writer {
	if outputSink != nil {
		return outputSink
	}
	return &earlyPrintBuffer
}

// Printf formats its arguments to the active output sink.
//
// The supported verb subset is:
//
//	%s  string or byte slice
//	%c  single byte character
//	%o  integer, base 8
//	%d  integer, base 10
//	%x  integer, base 16 with lower-case digits
//	%t  "true" or "false"
//
// An optional decimal width may precede the verb. Strings and base-10
// integers shorter than the width are left-padded with spaces; base-8 and
// base-16 integers are left-padded with zeroes. All built-in integer types
// are accepted.
func Printf(format string, args ...interface{}) {
	Fprintf(outputSink, format, args...)
}

// Fprintf behaves exactly like Printf but writes the formatted output to w.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	var (
		argIndex int
		i        int
	)

	for i < len(format) {
		if format[i] != '%' {
			lit := i
			for lit < len(format) && format[lit] != '%' {
				lit++
			}
			writeChunk(w, format[i:lit])
			i = lit
			continue
		}

		// Scan the optional width and the verb.
		i++
		padLen := 0
		for ; i < len(format); i++ {
			ch := format[i]
			if ch >= '0' && ch <= '9' {
				padLen = padLen*10 + int(ch-'0')
				continue
			}

			if ch == '%' {
				writeChunk(w, "%")
				i++
				break
			}

			if ch != 'd' && ch != 'x' && ch != 'o' && ch != 's' && ch != 't' && ch != 'c' {
				doWrite(w, errNoVerb)
				i++
				break
			}

			if argIndex >= len(args) {
				doWrite(w, errMissingArg)
				i++
				break
			}

			arg := args[argIndex]
			argIndex++

			switch ch {
			case 'o':
				fmtInt(w, arg, 8, padLen)
			case 'd':
				fmtInt(w, arg, 10, padLen)
			case 'x':
				fmtInt(w, arg, 16, padLen)
			case 's':
				fmtString(w, arg, padLen)
			case 'c':
				fmtChar(w, arg)
			case 't':
				fmtBool(w, arg)
			}
			i++
			break
		}
	}

	for ; argIndex < len(args); argIndex++ {
		doWrite(w, errExtraArg)
	}
}

// writeChunk copies s through the scratch buffer to avoid the allocation a
// string to byte-slice conversion would trigger.
func writeChunk(w io.Writer, s string) {
	for len(s) > 0 {
		n := copy(scratch[:], s)
		doWrite(w, scratch[:n])
		s = s[n:]
	}
}

func fmtBool(w io.Writer, v interface{}) {
	b, ok := v.(bool)
	if !ok {
		doWrite(w, errWrongArgType)
		return
	}
	if b {
		doWrite(w, trueValue)
		return
	}
	doWrite(w, falseValue)
}

func fmtChar(w io.Writer, v interface{}) {
	switch ch := v.(type) {
	case byte:
		scratch[0] = ch
	case rune:
		scratch[0] = byte(ch)
	default:
		doWrite(w, errWrongArgType)
		return
	}
	doWrite(w, scratch[:1])
}

func fmtString(w io.Writer, v interface{}, padLen int) {
	switch val := v.(type) {
	case string:
		pad(w, ' ', padLen-len(val))
		writeChunk(w, val)
	case []byte:
		pad(w, ' ', padLen-len(val))
		doWrite(w, val)
	default:
		doWrite(w, errWrongArgType)
	}
}

func pad(w io.Writer, ch byte, count int) {
	scratch[0] = ch
	for i := 0; i < count; i++ {
		doWrite(w, scratch[:1])
	}
}

// fmtInt writes v in the requested base. Base-10 output is space-padded,
// base-8 and base-16 output zero-padded, matching what the boot banners and
// register dumps expect.
func fmtInt(w io.Writer, v interface{}, base, padLen int) {
	var (
		uval     uint64
		negative bool
	)

	switch val := v.(type) {
	case uint8:
		uval = uint64(val)
	case uint16:
		uval = uint64(val)
	case uint32:
		uval = uint64(val)
	case uint64:
		uval = val
	case uint:
		uval = uint64(val)
	case uintptr:
		uval = uint64(val)
	case int8:
		negative = val < 0
		uval = absInt64(int64(val))
	case int16:
		negative = val < 0
		uval = absInt64(int64(val))
	case int32:
		negative = val < 0
		uval = absInt64(int64(val))
	case int64:
		negative = val < 0
		uval = absInt64(val)
	case int:
		negative = val < 0
		uval = absInt64(int64(val))
	default:
		doWrite(w, errWrongArgType)
		return
	}

	padCh := byte(' ')
	if base != 10 {
		padCh = '0'
	}
	if padLen >= maxNumDigits {
		padLen = maxNumDigits - 1
	}

	// Render digits least-significant first into the tail of a scratch
	// region, then emit the padded result in one write.
	var digits [maxNumDigits]byte
	pos := len(digits)
	for {
		rem := uval % uint64(base)
		pos--
		if rem < 10 {
			digits[pos] = byte(rem) + '0'
		} else {
			digits[pos] = byte(rem-10) + 'a'
		}
		uval /= uint64(base)
		if uval == 0 {
			break
		}
	}

	for len(digits)-pos < padLen && pos > 0 {
		pos--
		digits[pos] = padCh
	}

	if negative {
		// Place the sign on the last blank pad byte when space-padding;
		// otherwise prepend it ahead of the digits.
		signPos := pos
		for signPos < len(digits) && digits[signPos] == ' ' {
			signPos++
		}
		if signPos > pos {
			digits[signPos-1] = '-'
		} else if pos > 0 {
			pos--
			digits[pos] = '-'
		}
	}

	n := copy(scratch[:], digits[pos:])
	doWrite(w, scratch[:n])
}

func absInt64(v int64) uint64 {
	if v < 0 {
		return uint64(-v)
	}
	return uint64(v)
}

func doWrite(w io.Writer, p []byte) {
	if w != nil {
		w.Write(p)
		return
	}
	earlyPrintBuffer.Write(p)
}
