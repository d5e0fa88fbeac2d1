// Package schema holds the fixed record shapes the job reads. Nothing here is
// inferred from data: readers type every raw field against these definitions
// and fall back to null when a value does not fit.
package schema

import "fmt"

// Kind identifies a raw record shape.
type Kind string

const (
	// Catalog is one song entry of the song dataset.
	Catalog Kind = "catalog"
	// Log is one user-activity event of the log dataset.
	Log Kind = "log"
)

// Type is the semantic type of a field.
type Type uint8

const (
	String Type = iota
	Integer
	Long
	Double
	Decimal
	Boolean
)

func (t Type) String() string {
	switch t {
	case String:
		return "string"
	case Integer:
		return "integer"
	case Long:
		return "long"
	case Double:
		return "double"
	case Decimal:
		return "decimal"
	case Boolean:
		return "boolean"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// Default precision and scale of decimal fields. A bare decimal type in the
// source system means decimal(10,0), so durations are whole seconds.
const (
	DecimalPrecision = 10
	DecimalScale     = 0
)

// Field is one column of a record shape.
type Field struct {
	Name     string
	Type     Type
	Nullable bool

	// Precision and Scale apply to Decimal fields only.
	Precision int
	Scale     int
}

// Schema is an ordered list of fields.
type Schema []Field

// Names returns the field names in order.
func (s Schema) Names() []string {
	out := make([]string, len(s))
	for i, f := range s {
		out[i] = f.Name
	}
	return out
}

// Index returns the position of name, or -1.
func (s Schema) Index(name string) int {
	for i, f := range s {
		if f.Name == name {
			return i
		}
	}
	return -1
}

func str(name string) Field { return Field{Name: name, Type: String, Nullable: true} }
func i32(name string) Field { return Field{Name: name, Type: Integer, Nullable: true} }
func i64(name string) Field { return Field{Name: name, Type: Long, Nullable: true} }
func f64(name string) Field { return Field{Name: name, Type: Double, Nullable: true} }
func dec(name string) Field {
	return Field{Name: name, Type: Decimal, Nullable: true, Precision: DecimalPrecision, Scale: DecimalScale}
}

var catalogSchema = Schema{
	str("num_songs"),
	str("artist_id"),
	str("artist_name"),
	f64("artist_latitude"),
	f64("artist_longitude"),
	str("artist_location"),
	str("song_id"),
	str("title"),
	dec("duration"),
	i32("year"),
}

var logSchema = Schema{
	str("artist"),
	str("auth"),
	str("firstName"),
	str("gender"),
	i32("itemInSession"),
	str("lastName"),
	dec("length"),
	str("level"),
	str("location"),
	str("method"),
	str("page"),
	str("registration"),
	i32("sessionId"),
	str("song"),
	i32("status"),
	i64("ts"),
	str("userAgent"),
	i32("userId"),
}

// For returns a copy of the field list registered for kind.
func For(kind Kind) (Schema, error) {
	var s Schema
	switch kind {
	case Catalog:
		s = catalogSchema
	case Log:
		s = logSchema
	default:
		return nil, fmt.Errorf("schema: unknown record kind %q", kind)
	}
	out := make(Schema, len(s))
	copy(out, s)
	return out, nil
}

// MustFor is For for the built-in kinds; it panics on an unknown kind.
func MustFor(kind Kind) Schema {
	s, err := For(kind)
	if err != nil {
		panic(err)
	}
	return s
}
