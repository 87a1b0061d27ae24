package packstream

// Marker bytes. Tiny forms fold the size into the low nibble of the marker;
// the sized forms carry an explicit big-endian length after the marker.
const (
	// Tiny form bases (size in low nibble, 0-15)
	MarkerTinyString byte = 0x80
	MarkerTinyList   byte = 0x90
	MarkerTinyDict   byte = 0xA0
	MarkerTinyStruct byte = 0xB0

	MarkerNull    byte = 0xC0
	MarkerFloat64 byte = 0xC1
	MarkerFalse   byte = 0xC2
	MarkerTrue    byte = 0xC3

	MarkerInt8  byte = 0xC8
	MarkerInt16 byte = 0xC9
	MarkerInt32 byte = 0xCA
	MarkerInt64 byte = 0xCB

	// Byte arrays have no tiny form.
	MarkerBytes8  byte = 0xCC
	MarkerBytes16 byte = 0xCD
	MarkerBytes32 byte = 0xCE

	MarkerString8  byte = 0xD0
	MarkerString16 byte = 0xD1
	MarkerString32 byte = 0xD2

	MarkerList8  byte = 0xD4
	MarkerList16 byte = 0xD5
	MarkerList32 byte = 0xD6

	MarkerDict8  byte = 0xD8
	MarkerDict16 byte = 0xD9
	MarkerDict32 byte = 0xDA
)

// TINY_INT ranges. Values 0x00-0x7F encode 0..127 directly; values 0xF0-0xFF
// encode -16..-1 as two's complement.
const (
	TinyIntMin int64 = -16
	TinyIntMax int64 = 127
)
