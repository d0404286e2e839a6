// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rowbinary

import "github.com/bureau-foundation/chstream/lib/chtype"

// rep is the representation a host type requests for one value: a
// scalar width, a string, or a container shape. The validator checks a
// rep against a schema type and, for containers, narrows the schema to
// the element types.
type rep int

const (
	repBool rep = iota
	repInt8
	repInt16
	repInt32
	repInt64
	repInt128
	repUInt8
	repUInt16
	repUInt32
	repUInt64
	repUInt128
	repFloat32
	repFloat64
	repString
	repBytes
)

// Shared nodes for geo alias expansion.
var (
	geoPoint      = chtype.Point
	geoRing       = &chtype.Type{Kind: chtype.KindRing}
	geoLineString = &chtype.Type{Kind: chtype.KindLineString}
	geoPolygon    = &chtype.Type{Kind: chtype.KindPolygon}
)

// scalarCompatible reports whether a schema type can be represented by
// the requested scalar. The schema side decides the wire layout; the
// host side only has to be wide enough and of the right signedness.
// LowCardinality is transparent throughout.
func scalarCompatible(t *chtype.Type, r rep) bool {
	t = t.StripLowCardinality()
	switch r {
	case repBool:
		return t.Kind == chtype.KindBool || t.Kind == chtype.KindUInt8
	case repInt8:
		return t.Kind == chtype.KindInt8
	case repInt16:
		return t.Kind == chtype.KindInt16
	case repInt32:
		return t.Kind == chtype.KindInt32 || t.Kind == chtype.KindDate32 ||
			t.Kind == chtype.KindTime ||
			(t.Kind == chtype.KindDecimal && t.Width == chtype.Decimal32)
	case repInt64:
		return t.Kind == chtype.KindInt64 || t.Kind == chtype.KindDateTime64 ||
			t.Kind == chtype.KindTime64 || t.Kind == chtype.KindInterval ||
			(t.Kind == chtype.KindDecimal && t.Width == chtype.Decimal64)
	case repInt128:
		return t.Kind == chtype.KindInt128 ||
			(t.Kind == chtype.KindDecimal && t.Width == chtype.Decimal128)
	case repUInt8:
		return t.Kind == chtype.KindUInt8 || t.Kind == chtype.KindBool
	case repUInt16:
		return t.Kind == chtype.KindUInt16 || t.Kind == chtype.KindDate
	case repUInt32:
		return t.Kind == chtype.KindUInt32 || t.Kind == chtype.KindDateTime ||
			t.Kind == chtype.KindIPv4
	case repUInt64:
		return t.Kind == chtype.KindUInt64
	case repUInt128:
		return t.Kind == chtype.KindUInt128
	case repFloat32:
		return t.Kind == chtype.KindFloat32
	case repFloat64:
		return t.Kind == chtype.KindFloat64
	case repString:
		return t.Kind == chtype.KindString || t.Kind == chtype.KindJSON ||
			t.Kind == chtype.KindEnum8 || t.Kind == chtype.KindEnum16
	case repBytes:
		return t.Kind == chtype.KindString
	default:
		return false
	}
}

// nullableElem narrows Nullable(T) to T.
func nullableElem(t *chtype.Type) (*chtype.Type, bool) {
	t = t.StripLowCardinality()
	if t.Kind != chtype.KindNullable {
		return nil, false
	}
	return t.Elem, true
}

// seqElem narrows a schema type to the element type a variable-length
// host sequence iterates over. Geo aliases expand to their array
// shapes; a Map narrows to a (key, value) pair so a sequence of pairs
// can represent it.
func seqElem(t *chtype.Type) (*chtype.Type, bool) {
	t = t.StripLowCardinality()
	switch t.Kind {
	case chtype.KindArray:
		return t.Elem, true
	case chtype.KindRing, chtype.KindLineString:
		return geoPoint, true
	case chtype.KindPolygon:
		return geoRing, true
	case chtype.KindMultiLineString:
		return geoLineString, true
	case chtype.KindMultiPolygon:
		return geoPolygon, true
	case chtype.KindMap:
		return &chtype.Type{Kind: chtype.KindTuple, Elems: []*chtype.Type{t.Key, t.Value}}, true
	default:
		return nil, false
	}
}

// mapTypes narrows Map(K, V) to its key and value types.
func mapTypes(t *chtype.Type) (key, value *chtype.Type, ok bool) {
	t = t.StripLowCardinality()
	if t.Kind != chtype.KindMap {
		return nil, nil, false
	}
	return t.Key, t.Value, true
}

// tupleShape narrows a schema type to exactly n element types for a
// fixed-arity host aggregate (struct or array). Beyond Tuple itself,
// the fixed-layout leaf types decompose elementwise: FixedString(n)
// into bytes, IPv6 into 16 bytes, UUID into two 64-bit words, Point
// into two float64 coordinates.
func tupleShape(t *chtype.Type, n int) ([]*chtype.Type, bool) {
	t = t.StripLowCardinality()
	switch t.Kind {
	case chtype.KindTuple:
		if len(t.Elems) != n {
			return nil, false
		}
		return t.Elems, true
	case chtype.KindFixedString:
		if t.Size != n {
			return nil, false
		}
		return repeated(chtype.UInt8, n), true
	case chtype.KindIPv6:
		if n != 16 {
			return nil, false
		}
		return repeated(chtype.UInt8, 16), true
	case chtype.KindUUID:
		if n != 2 {
			return nil, false
		}
		return repeated(chtype.UInt64, 2), true
	case chtype.KindPoint:
		if n != 2 {
			return nil, false
		}
		return repeated(chtype.Float64, 2), true
	default:
		return nil, false
	}
}

func repeated(t *chtype.Type, n int) []*chtype.Type {
	elems := make([]*chtype.Type, n)
	for i := range elems {
		elems[i] = t
	}
	return elems
}

// variantTypes narrows a Variant to its ordered alternative types.
func variantTypes(t *chtype.Type) ([]*chtype.Type, bool) {
	t = t.StripLowCardinality()
	if t.Kind != chtype.KindVariant {
		return nil, false
	}
	return t.Elems, true
}
