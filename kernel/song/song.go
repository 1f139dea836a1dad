// Package song plays note sequences through the PC speaker. The speaker is
// wired to PIT channel 2, so a note is just a square-wave divisor plus a
// gate bit on port 0x61; playback timing rides on the channel 0 tick.
package song

// Note pairs a square-wave frequency with a duration. A frequency below
// 20Hz cannot be programmed as a 16-bit divisor and is treated as a rest.
type Note struct {
	Frequency uint32 // Hz
	Duration  uint32 // milliseconds
}

// Song is a named note sequence played back to back.
type Song struct {
	Name  string
	Notes []Note
}
