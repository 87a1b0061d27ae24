package packstream

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/boltkit/pkg/bolt"
)

func encode(t *testing.T, v bolt.Value) []byte {
	t.Helper()
	b, err := Encode(v)
	require.NoError(t, err)
	return b
}

func TestIntegerEncoding(t *testing.T) {
	cases := []struct {
		value int64
		bytes []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7F}},
		{-1, []byte{0xFF}},
		{-16, []byte{0xF0}},
		{-17, []byte{0xC8, 0xEF}},
		{-128, []byte{0xC8, 0x80}},
		{128, []byte{0xC9, 0x00, 0x80}},
		{-129, []byte{0xC9, 0xFF, 0x7F}},
		{32767, []byte{0xC9, 0x7F, 0xFF}},
		{-32768, []byte{0xC9, 0x80, 0x00}},
		{32768, []byte{0xCA, 0x00, 0x00, 0x80, 0x00}},
		{-32769, []byte{0xCA, 0xFF, 0xFF, 0x7F, 0xFF}},
		{2147483647, []byte{0xCA, 0x7F, 0xFF, 0xFF, 0xFF}},
		{2147483648, []byte{0xCB, 0x00, 0x00, 0x00, 0x00, 0x80, 0x00, 0x00, 0x00}},
		{math.MaxInt64, []byte{0xCB, 0x7F, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}},
		{math.MinInt64, []byte{0xCB, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.bytes, encode(t, bolt.Integer(tc.value)), "encode %d", tc.value)

		v, err := Decode(tc.bytes)
		require.NoError(t, err, "decode %d", tc.value)
		assert.Equal(t, bolt.Integer(tc.value), v)
	}
}

func TestNonMinimalIntegerAccepted(t *testing.T) {
	// 1 encoded as INT_32 is legal input even though the encoder would
	// never produce it.
	v, err := Decode([]byte{0xCA, 0x00, 0x00, 0x00, 0x01})
	require.NoError(t, err)
	assert.Equal(t, bolt.Integer(1), v)
}

func TestNullBoolFloat(t *testing.T) {
	assert.Equal(t, []byte{0xC0}, encode(t, bolt.Null{}))
	assert.Equal(t, []byte{0xC2}, encode(t, bolt.Boolean(false)))
	assert.Equal(t, []byte{0xC3}, encode(t, bolt.Boolean(true)))

	b := encode(t, bolt.Float(1.5))
	require.Equal(t, byte(0xC1), b[0])
	require.Len(t, b, 9)

	v, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, bolt.Float(1.5), v)
}

func TestStringEncoding(t *testing.T) {
	assert.Equal(t, []byte{0x80}, encode(t, bolt.String("")))
	assert.Equal(t, []byte{0x85, 'h', 'e', 'l', 'l', 'o'}, encode(t, bolt.String("hello")))

	s15 := bolt.String("aaaaaaaaaaaaaaa") // 15 bytes, tiny
	assert.Equal(t, byte(0x8F), encode(t, s15)[0])

	s16 := bolt.String("aaaaaaaaaaaaaaaa") // 16 bytes, STRING_8
	b := encode(t, s16)
	assert.Equal(t, []byte{0xD0, 0x10}, b[:2])

	s256 := bolt.String(string(make([]byte, 256)))
	b = encode(t, s256)
	assert.Equal(t, []byte{0xD1, 0x01, 0x00}, b[:3])

	for _, s := range []bolt.String{"", "hello", s16, "héllo wörld"} {
		v, err := Decode(encode(t, s))
		require.NoError(t, err)
		assert.Equal(t, s, v)
	}
}

func TestBytesHaveNoTinyForm(t *testing.T) {
	assert.Equal(t, []byte{0xCC, 0x00}, encode(t, bolt.Bytes{}))
	assert.Equal(t, []byte{0xCC, 0x03, 0x01, 0x02, 0x03}, encode(t, bolt.Bytes{1, 2, 3}))

	big := bolt.Bytes(make([]byte, 256))
	assert.Equal(t, []byte{0xCD, 0x01, 0x00}, encode(t, big)[:3])

	v, err := Decode(encode(t, bolt.Bytes{9, 8, 7}))
	require.NoError(t, err)
	assert.Equal(t, bolt.Bytes{9, 8, 7}, v)
}

func TestListEncoding(t *testing.T) {
	l := bolt.List{bolt.Integer(1), bolt.String("two"), bolt.Null{}}
	b := encode(t, l)
	assert.Equal(t, byte(0x93), b[0])

	v, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, l, v)

	// 16 elements forces LIST_8.
	l16 := make(bolt.List, 16)
	for i := range l16 {
		l16[i] = bolt.Integer(int64(i))
	}
	assert.Equal(t, []byte{0xD4, 0x10}, encode(t, l16)[:2])
}

func TestDictEncodingDeterministic(t *testing.T) {
	d := bolt.Dict{"b": bolt.Integer(2), "a": bolt.Integer(1)}
	b1 := encode(t, d)
	b2 := encode(t, d)
	assert.Equal(t, b1, b2)

	// Keys sorted: "a" before "b".
	assert.Equal(t, []byte{0xA2, 0x81, 'a', 0x01, 0x81, 'b', 0x02}, b1)

	v, err := Decode(b1)
	require.NoError(t, err)
	assert.Equal(t, d, v)
}

func TestNestedRoundTrip(t *testing.T) {
	v := bolt.Dict{
		"list": bolt.List{
			bolt.Dict{"x": bolt.Float(1.25)},
			bolt.List{bolt.Boolean(true), bolt.Bytes{0xFF}},
		},
		"n": bolt.Null{},
	}
	got, err := Decode(encode(t, v))
	require.NoError(t, err)
	assert.Equal(t, v, got)
}

func TestStructRoundTrips(t *testing.T) {
	node := bolt.Node{
		ID:        7,
		Labels:    []string{"Person", "Admin"},
		Props:     bolt.Dict{"name": bolt.String("alice")},
		ElementID: "4:abc:7",
	}
	rel := bolt.Relationship{
		ID: 1, StartNodeID: 7, EndNodeID: 8, Type: "KNOWS",
		Props:     bolt.Dict{"since": bolt.Integer(1999)},
		ElementID: "5:abc:1", StartNodeElementID: "4:abc:7", EndNodeElementID: "4:abc:8",
	}
	unbound := bolt.UnboundRelationship{ID: 1, Type: "KNOWS", Props: bolt.Dict{}, ElementID: "5:abc:1"}

	values := []bolt.Value{
		node,
		rel,
		unbound,
		bolt.Path{
			Nodes:   []bolt.Node{node, {ID: 8, Labels: []string{}, Props: bolt.Dict{}, ElementID: "4:abc:8"}},
			Rels:    []bolt.UnboundRelationship{unbound},
			Indices: []int64{1, 1},
		},
		bolt.Date{Days: 19000},
		bolt.Time{Nanos: 3600000000000, OffsetSeconds: 7200},
		bolt.LocalTime{Nanos: 1},
		bolt.DateTime{Seconds: 1700000000, Nanos: 500, OffsetSeconds: -3600},
		bolt.DateTimeZoneId{Seconds: 1700000000, Nanos: 500, ZoneID: "Europe/Rome"},
		bolt.LocalDateTime{Seconds: 1700000000, Nanos: 0},
		bolt.Duration{Months: 1, Days: 2, Seconds: 3, Nanos: 4},
		bolt.Point2D{SRID: 4326, X: 1.0, Y: -2.0},
		bolt.Point3D{SRID: 4979, X: 1.0, Y: 2.0, Z: 3.0},
	}

	for _, v := range values {
		got, err := Decode(encode(t, v))
		require.NoError(t, err, "%T", v)
		assert.Equal(t, v, got, "%T", v)
	}
}

func TestLegacyNodeDecode(t *testing.T) {
	// 3-field node from Bolt < 5.0: element_id synthesized from the id.
	w := NewWriter(32)
	w.WriteStructHeader(bolt.TagNode, 3)
	w.WriteInt(42)
	w.WriteListHeader(1)
	w.WriteString("Person")
	w.WriteDict(bolt.Dict{})
	require.NoError(t, w.Err())

	v, err := Decode(w.Bytes())
	require.NoError(t, err)
	n, ok := v.(bolt.Node)
	require.True(t, ok)
	assert.Equal(t, int64(42), n.ID)
	assert.Equal(t, "42", n.ElementID)
}

func TestLegacyRelationshipDecode(t *testing.T) {
	w := NewWriter(32)
	w.WriteStructHeader(bolt.TagRelationship, 5)
	w.WriteInt(3)
	w.WriteInt(1)
	w.WriteInt(2)
	w.WriteString("KNOWS")
	w.WriteDict(bolt.Dict{})
	require.NoError(t, w.Err())

	v, err := Decode(w.Bytes())
	require.NoError(t, err)
	rel, ok := v.(bolt.Relationship)
	require.True(t, ok)
	assert.Equal(t, "3", rel.ElementID)
	assert.Equal(t, "1", rel.StartNodeElementID)
	assert.Equal(t, "2", rel.EndNodeElementID)
}

func TestLegacyUnboundRelationshipDecode(t *testing.T) {
	w := NewWriter(32)
	w.WriteStructHeader(bolt.TagUnboundRelationship, 3)
	w.WriteInt(9)
	w.WriteString("LIKES")
	w.WriteDict(bolt.Dict{})
	require.NoError(t, w.Err())

	v, err := Decode(w.Bytes())
	require.NoError(t, err)
	rel, ok := v.(bolt.UnboundRelationship)
	require.True(t, ok)
	assert.Equal(t, "9", rel.ElementID)
}

func TestUnknownStructTagDrainsFields(t *testing.T) {
	w := NewWriter(16)
	w.WriteStructHeader(0x5A, 2)
	w.WriteInt(1)
	w.WriteString("x")
	w.WriteInt(99) // trailing value after the unknown struct
	require.NoError(t, w.Err())

	r := NewReader(w.Bytes())
	r.ReadValue()
	require.ErrorIs(t, r.Err(), ErrUnknownStructTag)

	// The unknown struct's fields were consumed; only the trailing int
	// remains unread.
	assert.Equal(t, 1, r.Remaining())
}

func TestDictKeyMustBeString(t *testing.T) {
	// Dict with one entry whose key is an integer.
	data := []byte{0xA1, 0x01, 0x02}
	_, err := Decode(data)
	require.ErrorIs(t, err, ErrInvalidMarker)
}

func TestShortReadErrors(t *testing.T) {
	cases := [][]byte{
		{},                 // nothing
		{0xC9, 0x00},       // INT_16 missing a byte
		{0x85, 'h', 'i'},   // tiny string, 5 claimed, 2 present
		{0xD0},             // STRING_8 missing size
		{0xCC, 0x05, 0x01}, // BYTES_8, 5 claimed, 1 present
	}
	for _, data := range cases {
		_, err := Decode(data)
		assert.ErrorIs(t, err, ErrShortRead, "% X", data)
	}
}

func TestInvalidUTF8StringRejected(t *testing.T) {
	cases := [][]byte{
		{0x81, 0xFF},             // tiny string, lone invalid byte
		{0x82, 0xC3, 0x28},       // bad continuation byte
		{0xD0, 0x02, 0xED, 0xA0}, // STRING_8, truncated surrogate
		{0xA1, 0x81, 0xFE, 0x01}, // invalid UTF-8 in a dict key
	}
	for _, data := range cases {
		_, err := Decode(data)
		assert.ErrorIs(t, err, ErrInvalidUTF8, "% X", data)
	}

	// Valid multi-byte sequences still pass.
	v, err := Decode([]byte{0x82, 0xC3, 0xA9})
	require.NoError(t, err)
	assert.Equal(t, bolt.String("é"), v)
}

func TestOversizedCollectionClaimFailsFast(t *testing.T) {
	// LIST_32 claiming 2^31-1 elements over 3 bytes of input must fail
	// immediately rather than loop.
	data := []byte{0xD6, 0x7F, 0xFF, 0xFF, 0xFF, 0x01, 0x02, 0x03}
	_, err := Decode(data)
	require.ErrorIs(t, err, ErrShortRead)
}

func TestTrailingBytesRejected(t *testing.T) {
	_, err := Decode([]byte{0x01, 0x02})
	require.ErrorIs(t, err, ErrInvalidMarker)
}

func TestReservedMarkerRejected(t *testing.T) {
	for _, m := range []byte{0xC4, 0xC5, 0xC6, 0xC7, 0xCF, 0xD3, 0xD7, 0xDB} {
		_, err := Decode([]byte{m})
		assert.ErrorIs(t, err, ErrInvalidMarker, "marker 0x%02X", m)
	}
}

func TestReadStructHeader(t *testing.T) {
	w := NewWriter(8)
	w.WriteStructHeader(0x70, 1)
	w.WriteDict(bolt.Dict{})
	require.NoError(t, w.Err())

	r := NewReader(w.Bytes())
	tag, fields := r.ReadStructHeader()
	require.NoError(t, r.Err())
	assert.Equal(t, byte(0x70), tag)
	assert.Equal(t, 1, fields)

	r2 := NewReader([]byte{0x01})
	r2.ReadStructHeader()
	assert.ErrorIs(t, r2.Err(), ErrInvalidMarker)
}

func TestWriterStructHeaderTooManyFields(t *testing.T) {
	w := NewWriter(4)
	w.WriteStructHeader(0x01, 16)
	assert.Error(t, w.Err())
}

func TestErrorAccumulation(t *testing.T) {
	r := NewReader([]byte{0xC9}) // INT_16 with no payload
	r.ReadValue()
	first := r.Err()
	require.ErrorIs(t, first, ErrShortRead)

	// Subsequent reads are no-ops and keep the first error.
	r.ReadValue()
	r.ReadString()
	assert.Equal(t, first, r.Err())
}
