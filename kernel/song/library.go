package song

// The built-in library keeps a few short tunes around for the boot demo so
// the speaker path can be exercised without loading anything.

// StarWarsTheme carries the opening bars of the Star Wars main title.
var StarWarsTheme = Song{
	Name: "star wars theme",
	Notes: []Note{
		{NoteA4, 500}, {NoteA4, 500}, {NoteA4, 500},
		{NoteF4, 350}, {NoteC5, 150},
		{NoteA4, 500}, {NoteF4, 350}, {NoteC5, 150}, {NoteA4, 650},
		{NoteRest, 500},
		{NoteE5, 500}, {NoteE5, 500}, {NoteE5, 500},
		{NoteF5, 350}, {NoteC5, 150},
		{NoteGs4, 500}, {NoteF4, 350}, {NoteC5, 150}, {NoteA4, 650},
	},
}

// SuperMarioTheme carries the first phrase of the Super Mario Bros overworld
// tune.
var SuperMarioTheme = Song{
	Name: "super mario theme",
	Notes: []Note{
		{NoteE5, 150}, {NoteE5, 150}, {NoteRest, 150}, {NoteE5, 150},
		{NoteRest, 150}, {NoteC5, 150}, {NoteE5, 150}, {NoteRest, 150},
		{NoteG5, 150}, {NoteRest, 450},
		{NoteG4, 150}, {NoteRest, 450},
		{NoteC5, 150}, {NoteRest, 300}, {NoteG4, 150}, {NoteRest, 300},
		{NoteE4, 150}, {NoteRest, 300},
		{NoteA4, 150}, {NoteRest, 150}, {NoteB4, 150}, {NoteRest, 150},
		{NoteAs4, 150}, {NoteA4, 150}, {NoteRest, 150},
	},
}

// TwinkleTwinkle is the usual first test song: long, even notes make gate
// transitions easy to hear.
var TwinkleTwinkle = Song{
	Name: "twinkle twinkle little star",
	Notes: []Note{
		{NoteC4, 400}, {NoteC4, 400}, {NoteG4, 400}, {NoteG4, 400},
		{NoteA4, 400}, {NoteA4, 400}, {NoteG4, 800},
		{NoteF4, 400}, {NoteF4, 400}, {NoteE4, 400}, {NoteE4, 400},
		{NoteD4, 400}, {NoteD4, 400}, {NoteC4, 800},
	},
}

// BattleTheme is a short minor-key march used by the boot demo.
var BattleTheme = Song{
	Name: "battle theme",
	Notes: []Note{
		{NoteE4, 250}, {NoteE4, 250}, {NoteG4, 250}, {NoteE4, 250},
		{NoteA4, 500}, {NoteG4, 250}, {NoteE4, 250},
		{NoteB4, 250}, {NoteB4, 250}, {NoteC5, 250}, {NoteB4, 250},
		{NoteA4, 500}, {NoteE4, 500},
	},
}

// Library lists the built-in songs in demo order.
var Library = []*Song{
	&StarWarsTheme,
	&SuperMarioTheme,
	&TwinkleTwinkle,
	&BattleTheme,
}
