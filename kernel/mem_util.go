package kernel

// Memset sets every byte in buf to the supplied value. Instead of a plain
// loop it doubles an already-filled prefix with copy calls, which the
// runtime turns into wide moves.
func Memset(buf []byte, value byte) {
	if len(buf) == 0 {
		return
	}

	buf[0] = value
	for index := 1; index < len(buf); index *= 2 {
		copy(buf[index:], buf[:index])
	}
}
