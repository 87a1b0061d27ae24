package packstream

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/marmos91/boltkit/pkg/bolt"
)

// Writer serializes Values into PackStream bytes with append-based growth
// and error accumulation. The encoder always emits the smallest legal
// representation for a value.
type Writer struct {
	buf []byte
	err error
}

// NewWriter creates a Writer with the given initial capacity.
func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

// Bytes returns the accumulated bytes.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the current length of the buffer.
func (w *Writer) Len() int {
	return len(w.buf)
}

// Err returns the first error encountered, or nil.
func (w *Writer) Err() error {
	return w.err
}

func (w *Writer) fail(format string, args ...any) {
	if w.err == nil {
		w.err = fmt.Errorf("packstream: "+format, args...)
	}
}

// WriteNull appends a null marker.
func (w *Writer) WriteNull() {
	if w.err != nil {
		return
	}
	w.buf = append(w.buf, MarkerNull)
}

// WriteBool appends a boolean marker.
func (w *Writer) WriteBool(v bool) {
	if w.err != nil {
		return
	}
	if v {
		w.buf = append(w.buf, MarkerTrue)
	} else {
		w.buf = append(w.buf, MarkerFalse)
	}
}

// WriteInt appends an integer in its smallest legal encoding.
func (w *Writer) WriteInt(v int64) {
	if w.err != nil {
		return
	}
	switch {
	case v >= TinyIntMin && v <= TinyIntMax:
		w.buf = append(w.buf, byte(v))
	case v >= math.MinInt8 && v <= math.MaxInt8:
		w.buf = append(w.buf, MarkerInt8, byte(v))
	case v >= math.MinInt16 && v <= math.MaxInt16:
		w.buf = append(w.buf, MarkerInt16)
		w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(v))
	case v >= math.MinInt32 && v <= math.MaxInt32:
		w.buf = append(w.buf, MarkerInt32)
		w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(v))
	default:
		w.buf = append(w.buf, MarkerInt64)
		w.buf = binary.BigEndian.AppendUint64(w.buf, uint64(v))
	}
}

// WriteFloat appends a 64-bit float.
func (w *Writer) WriteFloat(v float64) {
	if w.err != nil {
		return
	}
	w.buf = append(w.buf, MarkerFloat64)
	w.buf = binary.BigEndian.AppendUint64(w.buf, math.Float64bits(v))
}

// WriteString appends a UTF-8 string in its smallest legal encoding.
func (w *Writer) WriteString(s string) {
	if w.err != nil {
		return
	}
	n := len(s)
	switch {
	case n <= 15:
		w.buf = append(w.buf, MarkerTinyString|byte(n))
	case n <= math.MaxUint8:
		w.buf = append(w.buf, MarkerString8, byte(n))
	case n <= math.MaxUint16:
		w.buf = append(w.buf, MarkerString16)
		w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(n))
	default:
		w.buf = append(w.buf, MarkerString32)
		w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(n))
	}
	w.buf = append(w.buf, s...)
}

// WriteBytes appends a byte array. Byte arrays have no tiny form.
func (w *Writer) WriteBytes(b []byte) {
	if w.err != nil {
		return
	}
	n := len(b)
	switch {
	case n <= math.MaxUint8:
		w.buf = append(w.buf, MarkerBytes8, byte(n))
	case n <= math.MaxUint16:
		w.buf = append(w.buf, MarkerBytes16)
		w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(n))
	default:
		w.buf = append(w.buf, MarkerBytes32)
		w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(n))
	}
	w.buf = append(w.buf, b...)
}

// WriteListHeader appends a list header for n elements. The caller must
// follow with exactly n values.
func (w *Writer) WriteListHeader(n int) {
	if w.err != nil {
		return
	}
	switch {
	case n <= 15:
		w.buf = append(w.buf, MarkerTinyList|byte(n))
	case n <= math.MaxUint8:
		w.buf = append(w.buf, MarkerList8, byte(n))
	case n <= math.MaxUint16:
		w.buf = append(w.buf, MarkerList16)
		w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(n))
	default:
		w.buf = append(w.buf, MarkerList32)
		w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(n))
	}
}

// WriteDictHeader appends a dictionary header for n entries. The caller must
// follow with exactly n key-value pairs, keys first.
func (w *Writer) WriteDictHeader(n int) {
	if w.err != nil {
		return
	}
	switch {
	case n <= 15:
		w.buf = append(w.buf, MarkerTinyDict|byte(n))
	case n <= math.MaxUint8:
		w.buf = append(w.buf, MarkerDict8, byte(n))
	case n <= math.MaxUint16:
		w.buf = append(w.buf, MarkerDict16)
		w.buf = binary.BigEndian.AppendUint16(w.buf, uint16(n))
	default:
		w.buf = append(w.buf, MarkerDict32)
		w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(n))
	}
}

// WriteStructHeader appends a structure header. Bolt structures hold at most
// 15 fields, so only the tiny form exists.
func (w *Writer) WriteStructHeader(tag byte, fields int) {
	if w.err != nil {
		return
	}
	if fields < 0 || fields > 15 {
		w.fail("struct tag 0x%02X has %d fields, max 15", tag, fields)
		return
	}
	w.buf = append(w.buf, MarkerTinyStruct|byte(fields), tag)
}

// WriteList appends a complete list.
func (w *Writer) WriteList(l bolt.List) {
	w.WriteListHeader(len(l))
	for _, v := range l {
		w.WriteValue(v)
	}
}

// WriteDict appends a complete dictionary. Keys are written in sorted order
// so encoding is deterministic.
func (w *Writer) WriteDict(d bolt.Dict) {
	w.WriteDictHeader(len(d))
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		w.WriteString(k)
		w.WriteValue(d[k])
	}
}

// WriteValue appends any Value.
func (w *Writer) WriteValue(v bolt.Value) {
	if w.err != nil {
		return
	}
	switch t := v.(type) {
	case nil, bolt.Null:
		w.WriteNull()
	case bolt.Boolean:
		w.WriteBool(bool(t))
	case bolt.Integer:
		w.WriteInt(int64(t))
	case bolt.Float:
		w.WriteFloat(float64(t))
	case bolt.String:
		w.WriteString(string(t))
	case bolt.Bytes:
		w.WriteBytes(t)
	case bolt.List:
		w.WriteList(t)
	case bolt.Dict:
		w.WriteDict(t)
	case bolt.Node:
		w.writeNode(t)
	case bolt.Relationship:
		w.writeRelationship(t)
	case bolt.UnboundRelationship:
		w.writeUnboundRelationship(t)
	case bolt.Path:
		w.WriteStructHeader(bolt.TagPath, 3)
		w.WriteListHeader(len(t.Nodes))
		for _, n := range t.Nodes {
			w.writeNode(n)
		}
		w.WriteListHeader(len(t.Rels))
		for _, r := range t.Rels {
			w.writeUnboundRelationship(r)
		}
		w.WriteListHeader(len(t.Indices))
		for _, i := range t.Indices {
			w.WriteInt(i)
		}
	case bolt.Date:
		w.WriteStructHeader(bolt.TagDate, 1)
		w.WriteInt(t.Days)
	case bolt.Time:
		w.WriteStructHeader(bolt.TagTime, 2)
		w.WriteInt(t.Nanos)
		w.WriteInt(t.OffsetSeconds)
	case bolt.LocalTime:
		w.WriteStructHeader(bolt.TagLocalTime, 1)
		w.WriteInt(t.Nanos)
	case bolt.DateTime:
		w.WriteStructHeader(bolt.TagDateTime, 3)
		w.WriteInt(t.Seconds)
		w.WriteInt(t.Nanos)
		w.WriteInt(t.OffsetSeconds)
	case bolt.DateTimeZoneId:
		w.WriteStructHeader(bolt.TagDateTimeZoneId, 3)
		w.WriteInt(t.Seconds)
		w.WriteInt(t.Nanos)
		w.WriteString(t.ZoneID)
	case bolt.LocalDateTime:
		w.WriteStructHeader(bolt.TagLocalDateTime, 2)
		w.WriteInt(t.Seconds)
		w.WriteInt(t.Nanos)
	case bolt.Duration:
		w.WriteStructHeader(bolt.TagDuration, 4)
		w.WriteInt(t.Months)
		w.WriteInt(t.Days)
		w.WriteInt(t.Seconds)
		w.WriteInt(t.Nanos)
	case bolt.Point2D:
		w.WriteStructHeader(bolt.TagPoint2D, 3)
		w.WriteInt(t.SRID)
		w.WriteFloat(t.X)
		w.WriteFloat(t.Y)
	case bolt.Point3D:
		w.WriteStructHeader(bolt.TagPoint3D, 4)
		w.WriteInt(t.SRID)
		w.WriteFloat(t.X)
		w.WriteFloat(t.Y)
		w.WriteFloat(t.Z)
	default:
		w.fail("unsupported value type %T", v)
	}
}

func (w *Writer) writeNode(n bolt.Node) {
	w.WriteStructHeader(bolt.TagNode, 4)
	w.WriteInt(n.ID)
	w.WriteListHeader(len(n.Labels))
	for _, l := range n.Labels {
		w.WriteString(l)
	}
	w.WriteDict(n.Props)
	w.WriteString(n.ElementID)
}

func (w *Writer) writeRelationship(r bolt.Relationship) {
	w.WriteStructHeader(bolt.TagRelationship, 8)
	w.WriteInt(r.ID)
	w.WriteInt(r.StartNodeID)
	w.WriteInt(r.EndNodeID)
	w.WriteString(r.Type)
	w.WriteDict(r.Props)
	w.WriteString(r.ElementID)
	w.WriteString(r.StartNodeElementID)
	w.WriteString(r.EndNodeElementID)
}

func (w *Writer) writeUnboundRelationship(r bolt.UnboundRelationship) {
	w.WriteStructHeader(bolt.TagUnboundRelationship, 4)
	w.WriteInt(r.ID)
	w.WriteString(r.Type)
	w.WriteDict(r.Props)
	w.WriteString(r.ElementID)
}

// Encode serializes a single value to bytes.
func Encode(v bolt.Value) ([]byte, error) {
	w := NewWriter(64)
	w.WriteValue(v)
	if err := w.Err(); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}
