// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chtype

import (
	"fmt"
	"sort"
	"strings"
)

// Kind discriminates the variants of the Type tree. The set is closed:
// every switch over Kind in this module is expected to be exhaustive.
type Kind int

const (
	KindInvalid Kind = iota

	KindBool
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindInt128
	KindInt256
	KindUInt8
	KindUInt16
	KindUInt32
	KindUInt64
	KindUInt128
	KindUInt256
	KindFloat32
	KindFloat64
	KindBFloat16

	KindDecimal

	KindString
	KindFixedString
	KindUUID

	KindDate
	KindDate32
	KindDateTime
	KindDateTime64
	KindTime
	KindTime64
	KindInterval

	KindIPv4
	KindIPv6

	KindNullable
	KindLowCardinality
	KindArray
	KindTuple
	KindMap
	KindEnum8
	KindEnum16
	KindVariant

	KindAggregateFunction

	KindJSON
	KindDynamic

	KindPoint
	KindRing
	KindLineString
	KindMultiLineString
	KindPolygon
	KindMultiPolygon
)

// DecimalWidth is the storage width class of a Decimal column, derived
// deterministically from its precision.
type DecimalWidth int

const (
	Decimal32  DecimalWidth = 32
	Decimal64  DecimalWidth = 64
	Decimal128 DecimalWidth = 128
	Decimal256 DecimalWidth = 256
)

// decimalWidthFor maps a precision to its storage width class.
func decimalWidthFor(precision int) (DecimalWidth, error) {
	switch {
	case precision <= 9:
		return Decimal32, nil
	case precision <= 18:
		return Decimal64, nil
	case precision <= 38:
		return Decimal128, nil
	case precision <= 76:
		return Decimal256, nil
	default:
		return 0, fmt.Errorf("invalid Decimal precision %d, maximum is 76", precision)
	}
}

// IntervalUnit is the unit of an Interval column.
type IntervalUnit string

const (
	IntervalNanosecond  IntervalUnit = "Nanosecond"
	IntervalMicrosecond IntervalUnit = "Microsecond"
	IntervalMillisecond IntervalUnit = "Millisecond"
	IntervalSecond      IntervalUnit = "Second"
	IntervalMinute      IntervalUnit = "Minute"
	IntervalHour        IntervalUnit = "Hour"
	IntervalDay         IntervalUnit = "Day"
	IntervalWeek        IntervalUnit = "Week"
	IntervalMonth       IntervalUnit = "Month"
	IntervalQuarter     IntervalUnit = "Quarter"
	IntervalYear        IntervalUnit = "Year"
)

var intervalUnits = map[IntervalUnit]bool{
	IntervalNanosecond: true, IntervalMicrosecond: true, IntervalMillisecond: true,
	IntervalSecond: true, IntervalMinute: true, IntervalHour: true,
	IntervalDay: true, IntervalWeek: true, IntervalMonth: true,
	IntervalQuarter: true, IntervalYear: true,
}

// Type is one node of the column type tree. Exactly the fields relevant
// to the Kind are populated; the rest stay zero. Types are treated as
// immutable after construction, so nodes may be shared freely.
type Type struct {
	Kind Kind

	// Precision and Scale of a Decimal; Precision alone holds the
	// sub-second precision (0-9) of DateTime64 and Time64.
	Precision int
	Scale     int

	// Width is the storage width class of a Decimal.
	Width DecimalWidth

	// Size is the byte length of a FixedString.
	Size int

	// Timezone of DateTime and DateTime64, empty when unspecified.
	Timezone string

	// Unit of an Interval.
	Unit IntervalUnit

	// Elem is the inner type of Nullable, LowCardinality, and Array.
	Elem *Type

	// Key and Value of a Map.
	Key   *Type
	Value *Type

	// Elems are the ordered element types of a Tuple or Variant, and
	// the argument types of an AggregateFunction.
	Elems []*Type

	// EnumValues maps discriminants to member names for Enum8/Enum16.
	EnumValues map[int16]string

	// Func is the function name of an AggregateFunction.
	Func string
}

// Shared leaf nodes for the common parameterless kinds. These back the
// geo alias expansions and keep the parser allocation-light.
var (
	Bool    = &Type{Kind: KindBool}
	Int8    = &Type{Kind: KindInt8}
	Int16   = &Type{Kind: KindInt16}
	Int32   = &Type{Kind: KindInt32}
	Int64   = &Type{Kind: KindInt64}
	Int128  = &Type{Kind: KindInt128}
	Int256  = &Type{Kind: KindInt256}
	UInt8   = &Type{Kind: KindUInt8}
	UInt16  = &Type{Kind: KindUInt16}
	UInt32  = &Type{Kind: KindUInt32}
	UInt64  = &Type{Kind: KindUInt64}
	UInt128 = &Type{Kind: KindUInt128}
	UInt256 = &Type{Kind: KindUInt256}
	Float32 = &Type{Kind: KindFloat32}
	Float64 = &Type{Kind: KindFloat64}
	String  = &Type{Kind: KindString}
	UUID    = &Type{Kind: KindUUID}
	Date    = &Type{Kind: KindDate}
	Date32  = &Type{Kind: KindDate32}
	IPv4    = &Type{Kind: KindIPv4}
	IPv6    = &Type{Kind: KindIPv6}
	Point   = &Type{Kind: KindPoint}
)

// StripLowCardinality unwraps a LowCardinality wrapper, which is
// schema-transparent to the row codec. All other types are returned
// unchanged.
func (t *Type) StripLowCardinality() *Type {
	if t.Kind == KindLowCardinality {
		return t.Elem
	}
	return t
}

// Equal reports whether two type trees are structurally identical.
func (t *Type) Equal(other *Type) bool {
	if t == other {
		return true
	}
	if t == nil || other == nil || t.Kind != other.Kind {
		return false
	}
	if t.Precision != other.Precision || t.Scale != other.Scale ||
		t.Width != other.Width || t.Size != other.Size ||
		t.Timezone != other.Timezone || t.Unit != other.Unit ||
		t.Func != other.Func {
		return false
	}
	equalPtr := func(a, b *Type) bool {
		if a == nil || b == nil {
			return a == b
		}
		return a.Equal(b)
	}
	if !equalPtr(t.Elem, other.Elem) || !equalPtr(t.Key, other.Key) || !equalPtr(t.Value, other.Value) {
		return false
	}
	if len(t.Elems) != len(other.Elems) {
		return false
	}
	for i := range t.Elems {
		if !t.Elems[i].Equal(other.Elems[i]) {
			return false
		}
	}
	if len(t.EnumValues) != len(other.EnumValues) {
		return false
	}
	for value, name := range t.EnumValues {
		otherName, ok := other.EnumValues[value]
		if !ok || otherName != name {
			return false
		}
	}
	return true
}

// String renders the type in the server's spelling. It is the exact
// inverse of Parse.
func (t *Type) String() string {
	switch t.Kind {
	case KindBool:
		return "Bool"
	case KindInt8:
		return "Int8"
	case KindInt16:
		return "Int16"
	case KindInt32:
		return "Int32"
	case KindInt64:
		return "Int64"
	case KindInt128:
		return "Int128"
	case KindInt256:
		return "Int256"
	case KindUInt8:
		return "UInt8"
	case KindUInt16:
		return "UInt16"
	case KindUInt32:
		return "UInt32"
	case KindUInt64:
		return "UInt64"
	case KindUInt128:
		return "UInt128"
	case KindUInt256:
		return "UInt256"
	case KindFloat32:
		return "Float32"
	case KindFloat64:
		return "Float64"
	case KindBFloat16:
		return "BFloat16"
	case KindDecimal:
		return fmt.Sprintf("Decimal(%d, %d)", t.Precision, t.Scale)
	case KindString:
		return "String"
	case KindFixedString:
		return fmt.Sprintf("FixedString(%d)", t.Size)
	case KindUUID:
		return "UUID"
	case KindDate:
		return "Date"
	case KindDate32:
		return "Date32"
	case KindDateTime:
		if t.Timezone == "" {
			return "DateTime"
		}
		return fmt.Sprintf("DateTime('%s')", t.Timezone)
	case KindDateTime64:
		if t.Timezone == "" {
			return fmt.Sprintf("DateTime64(%d)", t.Precision)
		}
		return fmt.Sprintf("DateTime64(%d, '%s')", t.Precision, t.Timezone)
	case KindTime:
		return "Time"
	case KindTime64:
		return fmt.Sprintf("Time64(%d)", t.Precision)
	case KindInterval:
		return "Interval" + string(t.Unit)
	case KindIPv4:
		return "IPv4"
	case KindIPv6:
		return "IPv6"
	case KindNullable:
		return fmt.Sprintf("Nullable(%s)", t.Elem)
	case KindLowCardinality:
		return fmt.Sprintf("LowCardinality(%s)", t.Elem)
	case KindArray:
		return fmt.Sprintf("Array(%s)", t.Elem)
	case KindTuple:
		return "Tuple(" + joinTypes(t.Elems) + ")"
	case KindMap:
		return fmt.Sprintf("Map(%s, %s)", t.Key, t.Value)
	case KindEnum8, KindEnum16:
		return t.enumString()
	case KindVariant:
		return "Variant(" + joinTypes(t.Elems) + ")"
	case KindAggregateFunction:
		return "AggregateFunction(" + t.Func + ", " + joinTypes(t.Elems) + ")"
	case KindJSON:
		return "JSON"
	case KindDynamic:
		return "Dynamic"
	case KindPoint:
		return "Point"
	case KindRing:
		return "Ring"
	case KindLineString:
		return "LineString"
	case KindMultiLineString:
		return "MultiLineString"
	case KindPolygon:
		return "Polygon"
	case KindMultiPolygon:
		return "MultiPolygon"
	default:
		return fmt.Sprintf("InvalidType(%d)", int(t.Kind))
	}
}

// enumString renders Enum8/Enum16 with members sorted by discriminant,
// escaping backslashes and single quotes inside member names so that
// the output parses back to the identical map.
func (t *Type) enumString() string {
	values := make([]int, 0, len(t.EnumValues))
	for value := range t.EnumValues {
		values = append(values, int(value))
	}
	sort.Ints(values)

	var builder strings.Builder
	if t.Kind == KindEnum8 {
		builder.WriteString("Enum8(")
	} else {
		builder.WriteString("Enum16(")
	}
	for i, value := range values {
		if i > 0 {
			builder.WriteString(", ")
		}
		name := t.EnumValues[int16(value)]
		name = strings.ReplaceAll(name, `\`, `\\`)
		name = strings.ReplaceAll(name, `'`, `\'`)
		fmt.Fprintf(&builder, "'%s' = %d", name, value)
	}
	builder.WriteString(")")
	return builder.String()
}

func joinTypes(types []*Type) string {
	parts := make([]string, len(types))
	for i, elem := range types {
		parts[i] = elem.String()
	}
	return strings.Join(parts, ", ")
}

// Column is one column of a schema header: a name plus its type. Names
// are unique within a header and their order defines the wire order.
type Column struct {
	Name string
	Type *Type
}

func (c Column) String() string {
	return c.Name + " " + c.Type.String()
}
