package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownType is returned when a schema declares a column_type outside the
// closed set below.
var ErrUnknownType = errors.New("schema: unknown column type")

// ColumnType is the semantic type declared for an element. The set is closed;
// validators and converters dispatch on it through fixed tables.
type ColumnType uint8

const (
	TypeObject ColumnType = iota // untyped text, passed through
	TypeInt8
	TypeInt16
	TypeInt32
	TypeInt64
	TypeUint8
	TypeUint16
	TypeUint32
	TypeUint64
	TypeFloat32
	TypeFloat64
	TypeStr
	TypeKey
	TypeDatetime
)

var typeNames = [...]string{
	TypeObject:   "object",
	TypeInt8:     "int8",
	TypeInt16:    "int16",
	TypeInt32:    "int32",
	TypeInt64:    "int64",
	TypeUint8:    "uint8",
	TypeUint16:   "uint16",
	TypeUint32:   "uint32",
	TypeUint64:   "uint64",
	TypeFloat32:  "float32",
	TypeFloat64:  "float64",
	TypeStr:      "str",
	TypeKey:      "key",
	TypeDatetime: "datetime",
}

// typeAliases maps accepted spellings onto the canonical types. Lookups are
// case-insensitive.
var typeAliases = map[string]ColumnType{
	"int":      TypeInt64,
	"integer":  TypeInt64,
	"uint":     TypeUint64,
	"float":    TypeFloat64,
	"double":   TypeFloat64,
	"string":   TypeStr,
	"text":     TypeStr,
	"date":     TypeDatetime,
	"datetime": TypeDatetime,
}

func (t ColumnType) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("ColumnType(%d)", t)
}

// ParseColumnType maps a schema spelling to a ColumnType.
func ParseColumnType(s string) (ColumnType, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for i, n := range typeNames {
		if n == key {
			return ColumnType(i), nil
		}
	}
	if t, ok := typeAliases[key]; ok {
		return t, nil
	}
	return TypeObject, fmt.Errorf("%w: %q", ErrUnknownType, s)
}

// UnmarshalText lets decoders (mapstructure, yaml) read a ColumnType from its
// name.
func (t *ColumnType) UnmarshalText(b []byte) error {
	v, err := ParseColumnType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// MarshalText renders the canonical name.
func (t ColumnType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// Numeric reports whether the type is range-validated.
func (t ColumnType) Numeric() bool { return t >= TypeInt8 && t <= TypeFloat64 }

// Signed reports whether the type is a signed integer.
func (t ColumnType) Signed() bool { return t >= TypeInt8 && t <= TypeInt64 }

// Unsigned reports whether the type is an unsigned integer.
func (t ColumnType) Unsigned() bool { return t >= TypeUint8 && t <= TypeUint64 }

// Float reports whether the type is a floating point type.
func (t ColumnType) Float() bool { return t == TypeFloat32 || t == TypeFloat64 }

// Textual reports whether values are held as strings.
func (t ColumnType) Textual() bool { return t == TypeObject || t == TypeStr || t == TypeKey }

// BitSize returns the storage width of numeric types, 0 otherwise.
func (t ColumnType) BitSize() int {
	switch t {
	case TypeInt8, TypeUint8:
		return 8
	case TypeInt16, TypeUint16:
		return 16
	case TypeInt32, TypeUint32, TypeFloat32:
		return 32
	case TypeInt64, TypeUint64, TypeFloat64:
		return 64
	}
	return 0
}

// TrimMode selects which side of a string value is stripped of whitespace.
type TrimMode uint8

const (
	TrimBoth TrimMode = iota
	TrimLeft
	TrimRight
	TrimNone
)

func (m TrimMode) String() string {
	switch m {
	case TrimBoth:
		return "both"
	case TrimLeft:
		return "left"
	case TrimRight:
		return "right"
	case TrimNone:
		return "none"
	}
	return fmt.Sprintf("TrimMode(%d)", m)
}

// ParseTrimMode accepts exactly "both", "left", "right", "none" (or empty,
// meaning both). Anything else is rejected.
func ParseTrimMode(s string) (TrimMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "both":
		return TrimBoth, nil
	case "left":
		return TrimLeft, nil
	case "right":
		return TrimRight, nil
	case "none":
		return TrimNone, nil
	}
	return TrimBoth, fmt.Errorf("schema: invalid trim mode %q (want both|left|right|none)", s)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *TrimMode) UnmarshalText(b []byte) error {
	v, err := ParseTrimMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (m TrimMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }
