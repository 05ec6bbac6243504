// Package schema holds the column model shared by inference and streaming:
// an ordered, immutable name→type mapping and the Record shape it produces.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

// LogicalType is the engine-independent column type.
type LogicalType string

const (
	TypeString    LogicalType = "string"
	TypeInteger   LogicalType = "integer"
	TypeFloat     LogicalType = "float"
	TypeBoolean   LogicalType = "boolean"
	TypeDate      LogicalType = "date"
	TypeTimestamp LogicalType = "timestamp"
	// TypeNull marks a column whose sample held no values; it reads as text.
	TypeNull LogicalType = "null"
)

// TimestampUnit is the resolution used for timestamp columns.
const TimestampUnit = arrow.Microsecond

// ParseLogicalType maps a type name to a LogicalType.
func ParseLogicalType(s string) (LogicalType, error) {
	switch t := LogicalType(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeString, TypeInteger, TypeFloat, TypeBoolean, TypeDate, TypeTimestamp, TypeNull:
		return t, nil
	}
	return "", fmt.Errorf("unknown logical type %q", s)
}

// DateLike reports whether t belongs to the date/timestamp family.
func (t LogicalType) DateLike() bool { return t == TypeDate || t == TypeTimestamp }

// ArrowType returns the engine type used to coerce cells of this column.
func (t LogicalType) ArrowType() arrow.DataType {
	switch t {
	case TypeInteger:
		return arrow.PrimitiveTypes.Int64
	case TypeFloat:
		return arrow.PrimitiveTypes.Float64
	case TypeBoolean:
		return arrow.FixedWidthTypes.Boolean
	case TypeDate:
		return arrow.FixedWidthTypes.Date32
	case TypeTimestamp:
		return &arrow.TimestampType{Unit: TimestampUnit}
	default:
		return arrow.BinaryTypes.String
	}
}

// Field is one named, typed column.
type Field struct {
	Name string      `json:"name"`
	Type LogicalType `json:"type"`
}

// SchemaMap is an ordered mapping from column name to LogicalType. Names are
// trimmed and unique. A SchemaMap never changes after New returns; accessors
// hand out copies.
type SchemaMap struct {
	fields []Field
	index  map[string]int
}

// New builds a SchemaMap in field order. Names are trimmed; an empty name is
// replaced by col_N (N = zero-based position). Duplicate names are rejected.
func New(fields []Field) (*SchemaMap, error) {
	sm := &SchemaMap{
		fields: make([]Field, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			name = fmt.Sprintf("col_%d", i)
		}
		if f.Type == "" {
			f.Type = TypeString
		}
		if _, err := ParseLogicalType(string(f.Type)); err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		if prev, dup := sm.index[name]; dup {
			return nil, fmt.Errorf("duplicate column %q at positions %d and %d", name, prev, i)
		}
		sm.index[name] = i
		sm.fields[i] = Field{Name: name, Type: f.Type}
	}
	return sm, nil
}

// Strings builds a SchemaMap typing every column as TypeString.
func Strings(names []string) (*SchemaMap, error) {
	fields := make([]Field, len(names))
	for i, n := range names {
		fields[i] = Field{Name: n, Type: TypeString}
	}
	return New(fields)
}

// Len returns the number of columns.
func (s *SchemaMap) Len() int { return len(s.fields) }

// Field returns the i-th column.
func (s *SchemaMap) Field(i int) Field { return s.fields[i] }

// Fields returns a copy of the columns in order.
func (s *SchemaMap) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Names returns the column names in order.
func (s *SchemaMap) Names() []string {
	out := make([]string, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.Name
	}
	return out
}

// Type returns the type of the named column.
func (s *SchemaMap) Type(name string) (LogicalType, bool) {
	i, ok := s.index[name]
	if !ok {
		return "", false
	}
	return s.fields[i].Type, true
}

// ArrowSchema converts the map into the engine schema. All fields are
// nullable so empty cells survive coercion.
func (s *SchemaMap) ArrowSchema() *arrow.Schema {
	fields := make([]arrow.Field, len(s.fields))
	for i, f := range s.fields {
		fields[i] = arrow.Field{Name: f.Name, Type: f.Type.ArrowType(), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

// String renders "name:type" pairs in order.
func (s *SchemaMap) String() string {
	parts := make([]string, len(s.fields))
	for i, f := range s.fields {
		parts[i] = f.Name + ":" + string(f.Type)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// MarshalJSON emits the columns as a JSON object in column order.
func (s *SchemaMap) MarshalJSON() ([]byte, error) {
	if len(s.fields) == 0 {
		return []byte(`{}`), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range s.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, _ := json.Marshal(f.Name)
		vb, _ := json.Marshal(string(f.Type))
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Record is one row keyed by column name. Values are int64, float64, bool,
// string, time.Time or nil.
type Record map[string]any
