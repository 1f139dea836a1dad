package kfmt

import "io"

// PrefixWriter wraps another io.Writer and injects a prefix at the start of
// each output line. Driver init messages use it so multi-line output stays
// attributed to the driver that produced it.
type PrefixWriter struct {
	// Sink receives all writes.
	Sink io.Writer

	// Prefix is injected at the beginning of each line.
	Prefix []byte

	midLine bool
}

// Write sends p to the sink, emitting the configured prefix after each
// newline. Injected prefix bytes are not counted in the returned length.
func (w *PrefixWriter) Write(p []byte) (int, error) {
	var written int

	for start := 0; start < len(p); {
		if !w.midLine {
			if _, err := w.Sink.Write(w.Prefix); err != nil {
				return written, err
			}
			w.midLine = true
		}

		// Emit up to and including the next newline.
		end := start
		for end < len(p) && p[end] != '\n' {
			end++
		}
		if end < len(p) {
			end++
			w.midLine = false
		}

		n, err := w.Sink.Write(p[start:end])
		written += n
		if err != nil {
			return written, err
		}
		start = end
	}

	return written, nil
}
