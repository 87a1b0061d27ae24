// Package bolt defines the PackStream value model shared by the codec, the
// message layer, and the server. A Value is one element of the closed set of
// types Bolt 5.x can put on the wire.
package bolt

// Struct tag bytes for the structure types Bolt 5.x defines.
const (
	TagNode                byte = 0x4E // 'N'
	TagRelationship        byte = 0x52 // 'R'
	TagUnboundRelationship byte = 0x72 // 'r'
	TagPath                byte = 0x50 // 'P'
	TagDate                byte = 0x44 // 'D'
	TagTime                byte = 0x54 // 'T'
	TagLocalTime           byte = 0x74 // 't'
	TagDateTime            byte = 0x49 // 'I'
	TagDateTimeZoneId      byte = 0x69 // 'i'
	TagLocalDateTime       byte = 0x64 // 'd'
	TagDuration            byte = 0x45 // 'E'
	TagPoint2D             byte = 0x58 // 'X'
	TagPoint3D             byte = 0x59 // 'Y'
)

// Value is the sealed union of everything PackStream can represent. The only
// implementations are the variant types in this package; the codec and the
// connection driver switch over them exhaustively.
type Value interface {
	boltValue()
}

// Null is the PackStream null value.
type Null struct{}

// Boolean is a PackStream boolean.
type Boolean bool

// Integer is a PackStream 64-bit signed integer.
type Integer int64

// Float is a PackStream 64-bit IEEE-754 float.
type Float float64

// String is a PackStream UTF-8 string.
type String string

// Bytes is a PackStream byte array.
type Bytes []byte

// List is an ordered, heterogeneous PackStream list.
type List []Value

// Dict is a string-keyed PackStream dictionary.
type Dict map[string]Value

// Node is a graph node. Legacy (Bolt < 5.0) nodes decode with ElementID
// synthesized from the numeric ID.
type Node struct {
	ID        int64
	Labels    []string
	Props     Dict
	ElementID string
}

// Relationship is a bound relationship between two nodes.
type Relationship struct {
	ID                 int64
	StartNodeID        int64
	EndNodeID          int64
	Type               string
	Props              Dict
	ElementID          string
	StartNodeElementID string
	EndNodeElementID   string
}

// UnboundRelationship is a relationship without endpoint information, used
// only inside Path.
type UnboundRelationship struct {
	ID        int64
	Type      string
	Props     Dict
	ElementID string
}

// Path is an alternating sequence of nodes and relationships. Indices
// follows the Bolt encoding: relationship indices are 1-based and negative
// when traversed in reverse; node indices are 0-based into Nodes.
type Path struct {
	Nodes   []Node
	Rels    []UnboundRelationship
	Indices []int64
}

// Date is days since the Unix epoch.
type Date struct {
	Days int64
}

// Time is a time of day with a UTC offset.
type Time struct {
	Nanos         int64 // nanoseconds since midnight
	OffsetSeconds int64 // UTC offset
}

// LocalTime is a time of day without offset.
type LocalTime struct {
	Nanos int64 // nanoseconds since midnight
}

// DateTime is an instant with a fixed UTC offset.
type DateTime struct {
	Seconds       int64 // seconds since the Unix epoch, in UTC
	Nanos         int64
	OffsetSeconds int64
}

// DateTimeZoneId is an instant with a named time zone.
type DateTimeZoneId struct {
	Seconds int64 // seconds since the Unix epoch, in UTC
	Nanos   int64
	ZoneID  string
}

// LocalDateTime is a wall-clock date and time without zone information.
type LocalDateTime struct {
	Seconds int64
	Nanos   int64
}

// Duration is a temporal amount in months, days, seconds and nanoseconds.
// Components are not normalized against each other.
type Duration struct {
	Months  int64
	Days    int64
	Seconds int64
	Nanos   int64
}

// Point2D is a two-dimensional point in the coordinate system named by SRID.
type Point2D struct {
	SRID int64
	X    float64
	Y    float64
}

// Point3D is a three-dimensional point in the coordinate system named by SRID.
type Point3D struct {
	SRID int64
	X    float64
	Y    float64
	Z    float64
}

func (Null) boltValue()                {}
func (Boolean) boltValue()             {}
func (Integer) boltValue()             {}
func (Float) boltValue()               {}
func (String) boltValue()              {}
func (Bytes) boltValue()               {}
func (List) boltValue()                {}
func (Dict) boltValue()                {}
func (Node) boltValue()                {}
func (Relationship) boltValue()        {}
func (UnboundRelationship) boltValue() {}
func (Path) boltValue()                {}
func (Date) boltValue()                {}
func (Time) boltValue()                {}
func (LocalTime) boltValue()           {}
func (DateTime) boltValue()            {}
func (DateTimeZoneId) boltValue()      {}
func (LocalDateTime) boltValue()       {}
func (Duration) boltValue()            {}
func (Point2D) boltValue()             {}
func (Point3D) boltValue()             {}

// GetString returns the string value stored under key, if present and a
// String.
func (d Dict) GetString(key string) (string, bool) {
	v, ok := d[key]
	if !ok {
		return "", false
	}
	s, ok := v.(String)
	return string(s), ok
}

// GetInt returns the integer value stored under key, if present and an
// Integer.
func (d Dict) GetInt(key string) (int64, bool) {
	v, ok := d[key]
	if !ok {
		return 0, false
	}
	i, ok := v.(Integer)
	return int64(i), ok
}

// GetBool returns the boolean value stored under key, if present and a
// Boolean.
func (d Dict) GetBool(key string) (bool, bool) {
	v, ok := d[key]
	if !ok {
		return false, false
	}
	b, ok := v.(Boolean)
	return bool(b), ok
}

// GetDict returns the nested dictionary stored under key, if present and a
// Dict.
func (d Dict) GetDict(key string) (Dict, bool) {
	v, ok := d[key]
	if !ok {
		return nil, false
	}
	nested, ok := v.(Dict)
	return nested, ok
}

// GetList returns the list stored under key, if present and a List.
func (d Dict) GetList(key string) (List, bool) {
	v, ok := d[key]
	if !ok {
		return nil, false
	}
	l, ok := v.(List)
	return l, ok
}

// Clone returns a shallow copy of the dictionary. Nested values are shared.
func (d Dict) Clone() Dict {
	out := make(Dict, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
