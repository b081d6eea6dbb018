// Package values implements InternalValue, the typed value container held
// by property item states (spec.md §3, "Property-specific" fields).
package values

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/itemstate/core/internal/itemid"
)

// Type enumerates the repository's scalar property types. Only the
// subset spec.md names explicitly is implemented; REFERENCE and NAME
// get first-class handling because the commit protocol inspects them
// (REFERENCE for §3 invariant 5, NAME for the rep:root bootstrap value
// in spec.md §8 scenario 1).
type Type int

const (
	TypeUndefined Type = iota
	TypeString
	TypeBoolean
	TypeLong
	TypeDouble
	TypeDate
	TypeName
	TypeReference
	TypeBinary
)

// String renders the type name the way the repository's type constants
// are conventionally spelled.
func (t Type) String() string {
	switch t {
	case TypeString:
		return "STRING"
	case TypeBoolean:
		return "BOOLEAN"
	case TypeLong:
		return "LONG"
	case TypeDouble:
		return "DOUBLE"
	case TypeDate:
		return "DATE"
	case TypeName:
		return "NAME"
	case TypeReference:
		return "REFERENCE"
	case TypeBinary:
		return "BINARY"
	default:
		return "UNDEFINED"
	}
}

// Value is a single typed property value. It is a closed union: exactly
// one of the typed fields is meaningful, selected by Type(). Construct
// with the New* functions rather than the struct literal.
type Value struct {
	typ    Type
	str    string
	bl     bool
	long   int64
	dbl    float64
	date   time.Time
	name   itemid.QName
	ref    uuid.UUID
	binary []byte
}

func NewString(s string) Value   { return Value{typ: TypeString, str: s} }
func NewBoolean(b bool) Value    { return Value{typ: TypeBoolean, bl: b} }
func NewLong(l int64) Value      { return Value{typ: TypeLong, long: l} }
func NewDouble(d float64) Value  { return Value{typ: TypeDouble, dbl: d} }
func NewDate(t time.Time) Value  { return Value{typ: TypeDate, date: t} }
func NewName(n itemid.QName) Value { return Value{typ: TypeName, name: n} }
func NewReference(target uuid.UUID) Value {
	return Value{typ: TypeReference, ref: target}
}
func NewBinary(b []byte) Value {
	cp := append([]byte(nil), b...)
	return Value{typ: TypeBinary, binary: cp}
}

// Type reports which typed accessor is meaningful for this value.
func (v Value) Type() Type { return v.typ }

// AsString returns the value and true if v holds a STRING.
func (v Value) AsString() (string, bool) {
	if v.typ != TypeString {
		return "", false
	}
	return v.str, true
}

// AsBoolean returns the value and true if v holds a BOOLEAN.
func (v Value) AsBoolean() (bool, bool) {
	if v.typ != TypeBoolean {
		return false, false
	}
	return v.bl, true
}

// AsLong returns the value and true if v holds a LONG.
func (v Value) AsLong() (int64, bool) {
	if v.typ != TypeLong {
		return 0, false
	}
	return v.long, true
}

// AsDouble returns the value and true if v holds a DOUBLE.
func (v Value) AsDouble() (float64, bool) {
	if v.typ != TypeDouble {
		return 0, false
	}
	return v.dbl, true
}

// AsDate returns the value and true if v holds a DATE.
func (v Value) AsDate() (time.Time, bool) {
	if v.typ != TypeDate {
		return time.Time{}, false
	}
	return v.date, true
}

// AsName returns the value and true if v holds a NAME.
func (v Value) AsName() (itemid.QName, bool) {
	if v.typ != TypeName {
		return itemid.QName{}, false
	}
	return v.name, true
}

// AsReference returns the target UUID and true if v holds a REFERENCE.
func (v Value) AsReference() (uuid.UUID, bool) {
	if v.typ != TypeReference {
		return uuid.Nil, false
	}
	return v.ref, true
}

// AsBinary returns a copy of the bytes and true if v holds a BINARY.
func (v Value) AsBinary() ([]byte, bool) {
	if v.typ != TypeBinary {
		return nil, false
	}
	return append([]byte(nil), v.binary...), true
}

// Equal compares two values for equality of type and content.
func (v Value) Equal(other Value) bool {
	if v.typ != other.typ {
		return false
	}
	switch v.typ {
	case TypeString:
		return v.str == other.str
	case TypeBoolean:
		return v.bl == other.bl
	case TypeLong:
		return v.long == other.long
	case TypeDouble:
		return v.dbl == other.dbl
	case TypeDate:
		return v.date.Equal(other.date)
	case TypeName:
		return v.name == other.name
	case TypeReference:
		return v.ref == other.ref
	case TypeBinary:
		if len(v.binary) != len(other.binary) {
			return false
		}
		for i := range v.binary {
			if v.binary[i] != other.binary[i] {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// String renders v for logs and error messages.
func (v Value) String() string {
	switch v.typ {
	case TypeString:
		return v.str
	case TypeBoolean:
		return fmt.Sprintf("%t", v.bl)
	case TypeLong:
		return fmt.Sprintf("%d", v.long)
	case TypeDouble:
		return fmt.Sprintf("%g", v.dbl)
	case TypeDate:
		return v.date.Format(time.RFC3339)
	case TypeName:
		return v.name.String()
	case TypeReference:
		return v.ref.String()
	case TypeBinary:
		return fmt.Sprintf("<%d bytes>", len(v.binary))
	default:
		return "<undefined>"
	}
}
