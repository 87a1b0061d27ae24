package packstream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"unicode/utf8"

	"github.com/marmos91/boltkit/pkg/bolt"
)

// ErrShortRead is returned when there are insufficient bytes to complete a
// read.
var ErrShortRead = errors.New("packstream: short read")

// ErrInvalidMarker is returned when a marker byte does not introduce any
// known value type.
var ErrInvalidMarker = errors.New("packstream: invalid marker")

// ErrUnknownStructTag is returned when a structure carries a tag byte this
// implementation does not recognize. The structure's fields are consumed
// before the error is reported so the stream position stays consistent.
var ErrUnknownStructTag = errors.New("packstream: unknown struct tag")

// ErrInvalidUTF8 is returned when a string value is not valid UTF-8.
var ErrInvalidUTF8 = errors.New("packstream: invalid UTF-8 in string")

// Reader provides sequential decoding of PackStream data with error
// accumulation. Once an error occurs, all subsequent reads become no-ops
// returning zero values. The decoder accepts any legal encoding, including
// non-minimal ones.
type Reader struct {
	data []byte
	pos  int
	err  error
}

// NewReader creates a Reader over the given byte slice.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Err returns the first error encountered, or nil.
func (r *Reader) Err() error {
	return r.err
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return max(len(r.data)-r.pos, 0)
}

// Position returns the current read position.
func (r *Reader) Position() int {
	return r.pos
}

func (r *Reader) fail(err error, format string, args ...any) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: %s", err, fmt.Sprintf(format, args...))
	}
}

func (r *Reader) require(n int) bool {
	if r.err != nil {
		return false
	}
	if r.pos+n > len(r.data) {
		r.fail(ErrShortRead, "need %d bytes at offset %d, have %d", n, r.pos, len(r.data)-r.pos)
		return false
	}
	return true
}

func (r *Reader) readByte() byte {
	if !r.require(1) {
		return 0
	}
	b := r.data[r.pos]
	r.pos++
	return b
}

func (r *Reader) readUint16() uint16 {
	if !r.require(2) {
		return 0
	}
	v := binary.BigEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v
}

func (r *Reader) readUint32() uint32 {
	if !r.require(4) {
		return 0
	}
	v := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v
}

func (r *Reader) readUint64() uint64 {
	if !r.require(8) {
		return 0
	}
	v := binary.BigEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return v
}

func (r *Reader) readRaw(n int) []byte {
	if !r.require(n) {
		return nil
	}
	b := make([]byte, n)
	copy(b, r.data[r.pos:r.pos+n])
	r.pos += n
	return b
}

// checkCount guards collection sizes against length claims that exceed the
// remaining input. Every element occupies at least one byte, so a claimed
// count larger than Remaining can never decode.
func (r *Reader) checkCount(n int) bool {
	if r.err != nil {
		return false
	}
	if n > r.Remaining() {
		r.fail(ErrShortRead, "collection of %d elements exceeds %d remaining bytes", n, r.Remaining())
		return false
	}
	return true
}

// ReadValue decodes the next value from the stream.
func (r *Reader) ReadValue() bolt.Value {
	if r.err != nil {
		return bolt.Null{}
	}
	marker := r.readByte()
	if r.err != nil {
		return bolt.Null{}
	}

	// Tiny forms first.
	switch {
	case marker <= 0x7F:
		return bolt.Integer(marker)
	case marker >= 0xF0:
		return bolt.Integer(int8(marker))
	case marker&0xF0 == MarkerTinyString:
		return r.readString(int(marker & 0x0F))
	case marker&0xF0 == MarkerTinyList:
		return r.readList(int(marker & 0x0F))
	case marker&0xF0 == MarkerTinyDict:
		return r.readDict(int(marker & 0x0F))
	case marker&0xF0 == MarkerTinyStruct:
		return r.readStruct(int(marker & 0x0F))
	}

	switch marker {
	case MarkerNull:
		return bolt.Null{}
	case MarkerTrue:
		return bolt.Boolean(true)
	case MarkerFalse:
		return bolt.Boolean(false)
	case MarkerFloat64:
		return bolt.Float(math.Float64frombits(r.readUint64()))
	case MarkerInt8:
		return bolt.Integer(int8(r.readByte()))
	case MarkerInt16:
		return bolt.Integer(int16(r.readUint16()))
	case MarkerInt32:
		return bolt.Integer(int32(r.readUint32()))
	case MarkerInt64:
		return bolt.Integer(r.readUint64())
	case MarkerBytes8:
		return bolt.Bytes(r.readRaw(int(r.readByte())))
	case MarkerBytes16:
		return bolt.Bytes(r.readRaw(int(r.readUint16())))
	case MarkerBytes32:
		return bolt.Bytes(r.readRaw(int(r.readUint32())))
	case MarkerString8:
		return r.readString(int(r.readByte()))
	case MarkerString16:
		return r.readString(int(r.readUint16()))
	case MarkerString32:
		return r.readString(int(r.readUint32()))
	case MarkerList8:
		return r.readList(int(r.readByte()))
	case MarkerList16:
		return r.readList(int(r.readUint16()))
	case MarkerList32:
		return r.readList(int(r.readUint32()))
	case MarkerDict8:
		return r.readDict(int(r.readByte()))
	case MarkerDict16:
		return r.readDict(int(r.readUint16()))
	case MarkerDict32:
		return r.readDict(int(r.readUint32()))
	default:
		r.fail(ErrInvalidMarker, "0x%02X at offset %d", marker, r.pos-1)
		return bolt.Null{}
	}
}

func (r *Reader) readString(n int) bolt.String {
	if !r.require(n) {
		return ""
	}
	raw := r.data[r.pos : r.pos+n]
	r.pos += n
	if !utf8.Valid(raw) {
		r.fail(ErrInvalidUTF8, "%d bytes at offset %d", n, r.pos-n)
		return ""
	}
	return bolt.String(raw)
}

func (r *Reader) readList(n int) bolt.List {
	if !r.checkCount(n) {
		return nil
	}
	l := make(bolt.List, 0, n)
	for i := 0; i < n; i++ {
		l = append(l, r.ReadValue())
		if r.err != nil {
			return nil
		}
	}
	return l
}

func (r *Reader) readDict(n int) bolt.Dict {
	if !r.checkCount(n) {
		return nil
	}
	d := make(bolt.Dict, n)
	for i := 0; i < n; i++ {
		key := r.ReadValue()
		if r.err != nil {
			return nil
		}
		ks, ok := key.(bolt.String)
		if !ok {
			r.fail(ErrInvalidMarker, "dictionary key is %T, not a string", key)
			return nil
		}
		d[string(ks)] = r.ReadValue()
		if r.err != nil {
			return nil
		}
	}
	return d
}

// ReadString decodes the next value and requires it to be a string.
func (r *Reader) ReadString() string {
	v := r.ReadValue()
	if r.err != nil {
		return ""
	}
	s, ok := v.(bolt.String)
	if !ok {
		r.fail(ErrInvalidMarker, "expected string, got %T", v)
		return ""
	}
	return string(s)
}

// ReadInt decodes the next value and requires it to be an integer.
func (r *Reader) ReadInt() int64 {
	v := r.ReadValue()
	if r.err != nil {
		return 0
	}
	i, ok := v.(bolt.Integer)
	if !ok {
		r.fail(ErrInvalidMarker, "expected integer, got %T", v)
		return 0
	}
	return int64(i)
}

// ReadFloat decodes the next value and requires it to be a float.
func (r *Reader) ReadFloat() float64 {
	v := r.ReadValue()
	if r.err != nil {
		return 0
	}
	f, ok := v.(bolt.Float)
	if !ok {
		r.fail(ErrInvalidMarker, "expected float, got %T", v)
		return 0
	}
	return float64(f)
}

// ReadDict decodes the next value and requires it to be a dictionary.
func (r *Reader) ReadDict() bolt.Dict {
	v := r.ReadValue()
	if r.err != nil {
		return nil
	}
	d, ok := v.(bolt.Dict)
	if !ok {
		r.fail(ErrInvalidMarker, "expected dictionary, got %T", v)
		return nil
	}
	return d
}

// ReadStructHeader decodes a structure marker and returns its tag and field
// count. Used by the message layer, where the tag selects the message type.
func (r *Reader) ReadStructHeader() (tag byte, fields int) {
	marker := r.readByte()
	if r.err != nil {
		return 0, 0
	}
	if marker&0xF0 != MarkerTinyStruct {
		r.fail(ErrInvalidMarker, "expected struct marker, got 0x%02X", marker)
		return 0, 0
	}
	tag = r.readByte()
	return tag, int(marker & 0x0F)
}

func (r *Reader) readStruct(fields int) bolt.Value {
	tag := r.readByte()
	if r.err != nil {
		return bolt.Null{}
	}

	switch tag {
	case bolt.TagNode:
		return r.readNode(fields)
	case bolt.TagRelationship:
		return r.readRelationship(fields)
	case bolt.TagUnboundRelationship:
		return r.readUnboundRelationship(fields)
	case bolt.TagPath:
		return r.readPath(fields)
	case bolt.TagDate:
		if !r.checkArity(tag, fields, 1) {
			return bolt.Null{}
		}
		return bolt.Date{Days: r.ReadInt()}
	case bolt.TagTime:
		if !r.checkArity(tag, fields, 2) {
			return bolt.Null{}
		}
		return bolt.Time{Nanos: r.ReadInt(), OffsetSeconds: r.ReadInt()}
	case bolt.TagLocalTime:
		if !r.checkArity(tag, fields, 1) {
			return bolt.Null{}
		}
		return bolt.LocalTime{Nanos: r.ReadInt()}
	case bolt.TagDateTime:
		if !r.checkArity(tag, fields, 3) {
			return bolt.Null{}
		}
		return bolt.DateTime{Seconds: r.ReadInt(), Nanos: r.ReadInt(), OffsetSeconds: r.ReadInt()}
	case bolt.TagDateTimeZoneId:
		if !r.checkArity(tag, fields, 3) {
			return bolt.Null{}
		}
		return bolt.DateTimeZoneId{Seconds: r.ReadInt(), Nanos: r.ReadInt(), ZoneID: r.ReadString()}
	case bolt.TagLocalDateTime:
		if !r.checkArity(tag, fields, 2) {
			return bolt.Null{}
		}
		return bolt.LocalDateTime{Seconds: r.ReadInt(), Nanos: r.ReadInt()}
	case bolt.TagDuration:
		if !r.checkArity(tag, fields, 4) {
			return bolt.Null{}
		}
		return bolt.Duration{Months: r.ReadInt(), Days: r.ReadInt(), Seconds: r.ReadInt(), Nanos: r.ReadInt()}
	case bolt.TagPoint2D:
		if !r.checkArity(tag, fields, 3) {
			return bolt.Null{}
		}
		return bolt.Point2D{SRID: r.ReadInt(), X: r.ReadFloat(), Y: r.ReadFloat()}
	case bolt.TagPoint3D:
		if !r.checkArity(tag, fields, 4) {
			return bolt.Null{}
		}
		return bolt.Point3D{SRID: r.ReadInt(), X: r.ReadFloat(), Y: r.ReadFloat(), Z: r.ReadFloat()}
	default:
		// Drain the fields so the cursor lands after the structure, then
		// report the tag.
		for i := 0; i < fields && r.err == nil; i++ {
			r.ReadValue()
		}
		r.fail(ErrUnknownStructTag, "0x%02X with %d fields", tag, fields)
		return bolt.Null{}
	}
}

func (r *Reader) checkArity(tag byte, got, want int) bool {
	if r.err != nil {
		return false
	}
	if got != want {
		r.fail(ErrInvalidMarker, "struct 0x%02X has %d fields, want %d", tag, got, want)
		return false
	}
	return true
}

// readNode decodes a node. Bolt 5.x nodes have 4 fields; legacy 3-field
// nodes synthesize ElementID from the numeric ID.
func (r *Reader) readNode(fields int) bolt.Value {
	if fields != 4 && fields != 3 {
		r.fail(ErrInvalidMarker, "node has %d fields, want 3 or 4", fields)
		return bolt.Null{}
	}
	n := bolt.Node{ID: r.ReadInt()}
	n.Labels = r.readStringList()
	n.Props = r.ReadDict()
	if fields == 4 {
		n.ElementID = r.ReadString()
	} else {
		n.ElementID = strconv.FormatInt(n.ID, 10)
	}
	if r.err != nil {
		return bolt.Null{}
	}
	return n
}

// readRelationship decodes a relationship. Bolt 5.x relationships have 8
// fields; legacy 5-field relationships synthesize the element IDs.
func (r *Reader) readRelationship(fields int) bolt.Value {
	if fields != 8 && fields != 5 {
		r.fail(ErrInvalidMarker, "relationship has %d fields, want 5 or 8", fields)
		return bolt.Null{}
	}
	rel := bolt.Relationship{
		ID:          r.ReadInt(),
		StartNodeID: r.ReadInt(),
		EndNodeID:   r.ReadInt(),
		Type:        r.ReadString(),
		Props:       r.ReadDict(),
	}
	if fields == 8 {
		rel.ElementID = r.ReadString()
		rel.StartNodeElementID = r.ReadString()
		rel.EndNodeElementID = r.ReadString()
	} else {
		rel.ElementID = strconv.FormatInt(rel.ID, 10)
		rel.StartNodeElementID = strconv.FormatInt(rel.StartNodeID, 10)
		rel.EndNodeElementID = strconv.FormatInt(rel.EndNodeID, 10)
	}
	if r.err != nil {
		return bolt.Null{}
	}
	return rel
}

func (r *Reader) readUnboundRelationship(fields int) bolt.Value {
	if fields != 4 && fields != 3 {
		r.fail(ErrInvalidMarker, "unbound relationship has %d fields, want 3 or 4", fields)
		return bolt.Null{}
	}
	rel := bolt.UnboundRelationship{
		ID:    r.ReadInt(),
		Type:  r.ReadString(),
		Props: r.ReadDict(),
	}
	if fields == 4 {
		rel.ElementID = r.ReadString()
	} else {
		rel.ElementID = strconv.FormatInt(rel.ID, 10)
	}
	if r.err != nil {
		return bolt.Null{}
	}
	return rel
}

func (r *Reader) readPath(fields int) bolt.Value {
	if !r.checkArity(bolt.TagPath, fields, 3) {
		return bolt.Null{}
	}

	nodesVal := r.ReadValue()
	relsVal := r.ReadValue()
	indicesVal := r.ReadValue()
	if r.err != nil {
		return bolt.Null{}
	}

	nodesList, ok := nodesVal.(bolt.List)
	if !ok {
		r.fail(ErrInvalidMarker, "path nodes is %T, not a list", nodesVal)
		return bolt.Null{}
	}
	relsList, ok := relsVal.(bolt.List)
	if !ok {
		r.fail(ErrInvalidMarker, "path relationships is %T, not a list", relsVal)
		return bolt.Null{}
	}
	indicesList, ok := indicesVal.(bolt.List)
	if !ok {
		r.fail(ErrInvalidMarker, "path indices is %T, not a list", indicesVal)
		return bolt.Null{}
	}

	p := bolt.Path{
		Nodes:   make([]bolt.Node, 0, len(nodesList)),
		Rels:    make([]bolt.UnboundRelationship, 0, len(relsList)),
		Indices: make([]int64, 0, len(indicesList)),
	}
	for _, v := range nodesList {
		n, ok := v.(bolt.Node)
		if !ok {
			r.fail(ErrInvalidMarker, "path node element is %T", v)
			return bolt.Null{}
		}
		p.Nodes = append(p.Nodes, n)
	}
	for _, v := range relsList {
		rel, ok := v.(bolt.UnboundRelationship)
		if !ok {
			r.fail(ErrInvalidMarker, "path relationship element is %T", v)
			return bolt.Null{}
		}
		p.Rels = append(p.Rels, rel)
	}
	for _, v := range indicesList {
		i, ok := v.(bolt.Integer)
		if !ok {
			r.fail(ErrInvalidMarker, "path index element is %T", v)
			return bolt.Null{}
		}
		p.Indices = append(p.Indices, int64(i))
	}
	return p
}

func (r *Reader) readStringList() []string {
	v := r.ReadValue()
	if r.err != nil {
		return nil
	}
	l, ok := v.(bolt.List)
	if !ok {
		r.fail(ErrInvalidMarker, "expected list of strings, got %T", v)
		return nil
	}
	out := make([]string, 0, len(l))
	for _, e := range l {
		s, ok := e.(bolt.String)
		if !ok {
			r.fail(ErrInvalidMarker, "list element is %T, not a string", e)
			return nil
		}
		out = append(out, string(s))
	}
	return out
}

// Decode decodes a single value from data, requiring full consumption.
func Decode(data []byte) (bolt.Value, error) {
	r := NewReader(data)
	v := r.ReadValue()
	if err := r.Err(); err != nil {
		return nil, err
	}
	if r.Remaining() > 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after value", ErrInvalidMarker, r.Remaining())
	}
	return v, nil
}
