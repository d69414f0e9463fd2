package models

import (
	"bytes"
	"encoding/json"
)

// Shape is the fixed, ordered field set of a canonical record kind.
type Shape struct {
	kind   QueryKind
	fields []string
}

var (
	// TrafficShape is the canonical traffic record layout.
	TrafficShape = Shape{kind: KindTraffic, fields: []string{"time", "src", "dst", "dport", "app", "protocol", "action", "rule"}}
	// SystemShape is the canonical system record layout.
	SystemShape = Shape{kind: KindSystem, fields: []string{"time", "severity", "message"}}
)

// ShapeFor returns the canonical shape for a query kind.
func ShapeFor(kind QueryKind) Shape {
	if kind == KindSystem {
		return SystemShape
	}
	return TrafficShape
}

// Kind returns the query kind this shape belongs to.
func (s Shape) Kind() QueryKind { return s.kind }

// Fields returns the ordered field names.
func (s Shape) Fields() []string {
	out := make([]string, len(s.fields))
	copy(out, s.fields)
	return out
}

// Has reports whether field belongs to the shape.
func (s Shape) Has(field string) bool {
	return s.index(field) >= 0
}

func (s Shape) index(field string) int {
	for i, f := range s.fields {
		if f == field {
			return i
		}
	}
	return -1
}

// New returns a record of this shape with every field empty.
func (s Shape) New() CanonicalRecord {
	return CanonicalRecord{shape: s, values: make([]string, len(s.fields))}
}

// CanonicalRecord always carries exactly the fields of its shape; unset
// fields are the empty string.
type CanonicalRecord struct {
	shape  Shape
	values []string
}

// Shape returns the record's shape.
func (c CanonicalRecord) Shape() Shape { return c.shape }

// Get returns the value of field, or "" for fields outside the shape.
func (c CanonicalRecord) Get(field string) string {
	if i := c.shape.index(field); i >= 0 {
		return c.values[i]
	}
	return ""
}

// Set assigns field. Fields outside the shape are ignored.
func (c CanonicalRecord) Set(field, value string) {
	if i := c.shape.index(field); i >= 0 {
		c.values[i] = value
	}
}

// Values returns the values in field order.
func (c CanonicalRecord) Values() []string {
	out := make([]string, len(c.values))
	copy(out, c.values)
	return out
}

// Map returns the record as a plain map.
func (c CanonicalRecord) Map() map[string]string {
	out := make(map[string]string, len(c.values))
	for i, f := range c.shape.fields {
		out[f] = c.values[i]
	}
	return out
}

// Empty reports whether every field is empty.
func (c CanonicalRecord) Empty() bool {
	for _, v := range c.values {
		if v != "" {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the record as an object in field order.
func (c CanonicalRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range c.shape.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, _ := json.Marshal(f)
		vb, err := json.Marshal(c.values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
