// Package validate holds the per-type element validators. Each validator
// takes a coerced frame and the elements it is responsible for, and returns
// one fully set mask column per element. Validators never fail as a whole:
// an element that cannot be checked is reported and masked false.
package validate

import (
	"obsmask/internal/bitmap"
	"obsmask/internal/mask"
	"obsmask/internal/schema"
)

// Result maps each validated element to its mask column.
type Result map[schema.ElementID]*mask.Column

// Kind is the validator family an element type belongs to.
type Kind uint8

const (
	KindNone Kind = iota
	KindNumeric
	KindDatetime
	KindCoded
)

func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindDatetime:
		return "datetime"
	case KindCoded:
		return "coded"
	}
	return "none"
}

// kinds is the fixed type -> validator table. Object and str elements are
// carried but not validated.
var kinds = [...]Kind{
	schema.TypeObject:   KindNone,
	schema.TypeInt8:     KindNumeric,
	schema.TypeInt16:    KindNumeric,
	schema.TypeInt32:    KindNumeric,
	schema.TypeInt64:    KindNumeric,
	schema.TypeUint8:    KindNumeric,
	schema.TypeUint16:   KindNumeric,
	schema.TypeUint32:   KindNumeric,
	schema.TypeUint64:   KindNumeric,
	schema.TypeFloat32:  KindNumeric,
	schema.TypeFloat64:  KindNumeric,
	schema.TypeStr:      KindNone,
	schema.TypeKey:      KindCoded,
	schema.TypeDatetime: KindDatetime,
}

// KindOf returns the validator family of t.
func KindOf(t schema.ColumnType) Kind {
	if int(t) >= len(kinds) {
		return KindNone
	}
	return kinds[t]
}

// invalid returns a column of n set false cells.
func invalid(n int) *mask.Column { return mask.Of(bitmap.New(n)) }

// Invalidate masks every id false in r.
func (r Result) Invalidate(rows int, ids []schema.ElementID) {
	for _, id := range ids {
		r[id] = invalid(rows)
	}
}
