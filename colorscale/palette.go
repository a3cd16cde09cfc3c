package colorscale

// DefaultPalette is the categorical palette used when no scale claims a row.
// Layer indices cycle through it.
var DefaultPalette = []RGB{
	Pack(31, 119, 180),  // blue
	Pack(255, 127, 14),  // orange
	Pack(44, 160, 44),   // green
	Pack(214, 39, 40),   // red
	Pack(148, 103, 189), // purple
	Pack(140, 86, 75),   // brown
	Pack(227, 119, 194), // pink
	Pack(127, 127, 127), // gray
	Pack(188, 189, 34),  // olive
	Pack(23, 190, 207),  // cyan
	Pack(174, 199, 232), // light blue
	Pack(255, 187, 120), // light orange
	Pack(152, 223, 138), // light green
	Pack(255, 152, 150), // light red
	Pack(197, 176, 213), // light purple
	Pack(196, 156, 148), // light brown
	Pack(247, 182, 210), // light pink
	Pack(199, 199, 199), // light gray
	Pack(219, 219, 141), // light olive
	Pack(158, 218, 229), // light cyan
}
