package song

// Equal-temperament note frequencies in Hz, rounded to the nearest integer.
// The range covers the octaves the built-in songs use.
const (
	NoteRest = 0

	NoteC4  = 261
	NoteCs4 = 277
	NoteD4  = 294
	NoteDs4 = 311
	NoteE4  = 329
	NoteF4  = 349
	NoteFs4 = 370
	NoteG4  = 392
	NoteGs4 = 415
	NoteA4  = 440
	NoteAs4 = 466
	NoteB4  = 493

	NoteC5  = 523
	NoteCs5 = 554
	NoteD5  = 587
	NoteDs5 = 622
	NoteE5  = 659
	NoteF5  = 698
	NoteFs5 = 740
	NoteG5  = 784
	NoteGs5 = 830
	NoteA5  = 880
	NoteAs5 = 932
	NoteB5  = 987

	NoteC6 = 1046
	NoteD6 = 1175
	NoteE6 = 1318
	NoteF6 = 1397
	NoteG6 = 1568
	NoteA6 = 1760
)
