// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chtype

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseError reports a malformed or unknown type string. Input is the
// offending substring, which for nested types is the innermost part
// that failed to parse.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse type %q: %s", e.Input, e.Reason)
}

func parseErrorf(input, format string, args ...any) error {
	return &ParseError{Input: input, Reason: fmt.Sprintf(format, args...)}
}

// Parse parses a textual column type as reported by the server into a
// Type tree. See the package documentation for the round-trip
// guarantee with String.
func Parse(input string) (*Type, error) {
	switch input {
	case "Bool":
		return Bool, nil
	case "Int8":
		return Int8, nil
	case "Int16":
		return Int16, nil
	case "Int32":
		return Int32, nil
	case "Int64":
		return Int64, nil
	case "Int128":
		return Int128, nil
	case "Int256":
		return Int256, nil
	case "UInt8":
		return UInt8, nil
	case "UInt16":
		return UInt16, nil
	case "UInt32":
		return UInt32, nil
	case "UInt64":
		return UInt64, nil
	case "UInt128":
		return UInt128, nil
	case "UInt256":
		return UInt256, nil
	case "Float32":
		return Float32, nil
	case "Float64":
		return Float64, nil
	case "BFloat16":
		return &Type{Kind: KindBFloat16}, nil
	case "String":
		return String, nil
	case "UUID":
		return UUID, nil
	case "Date":
		return Date, nil
	case "Date32":
		return Date32, nil
	case "IPv4":
		return IPv4, nil
	case "IPv6":
		return IPv6, nil
	case "Dynamic":
		return &Type{Kind: KindDynamic}, nil
	case "JSON":
		return &Type{Kind: KindJSON}, nil
	case "Point":
		return Point, nil
	case "Ring":
		return &Type{Kind: KindRing}, nil
	case "LineString":
		return &Type{Kind: KindLineString}, nil
	case "MultiLineString":
		return &Type{Kind: KindMultiLineString}, nil
	case "Polygon":
		return &Type{Kind: KindPolygon}, nil
	case "MultiPolygon":
		return &Type{Kind: KindMultiPolygon}, nil
	}

	switch {
	// Parameterized JSON spellings like JSON(max_dynamic_paths=64) are
	// accepted and treated as the opaque JSON marker.
	case strings.HasPrefix(input, "JSON"):
		return &Type{Kind: KindJSON}, nil
	case strings.HasPrefix(input, "Decimal"):
		return parseDecimal(input)
	case strings.HasPrefix(input, "DateTime64"):
		return parseDateTime64(input)
	case strings.HasPrefix(input, "DateTime"):
		return parseDateTime(input)
	case strings.HasPrefix(input, "Time64"):
		return parseTime64(input)
	// Time accepts and discards an optional timezone argument.
	case strings.HasPrefix(input, "Time"):
		return &Type{Kind: KindTime}, nil
	case strings.HasPrefix(input, "Interval"):
		unit := IntervalUnit(input[len("Interval"):])
		if !intervalUnits[unit] {
			return nil, parseErrorf(input, "unknown interval unit %q", string(unit))
		}
		return &Type{Kind: KindInterval, Unit: unit}, nil
	case strings.HasPrefix(input, "Nullable"):
		return parseWrapper(input, "Nullable", KindNullable)
	case strings.HasPrefix(input, "LowCardinality"):
		return parseWrapper(input, "LowCardinality", KindLowCardinality)
	case strings.HasPrefix(input, "FixedString"):
		return parseFixedString(input)
	case strings.HasPrefix(input, "Array"):
		return parseWrapper(input, "Array", KindArray)
	case strings.HasPrefix(input, "Enum"):
		return parseEnum(input)
	case strings.HasPrefix(input, "Map"):
		return parseMap(input)
	case strings.HasPrefix(input, "Tuple"):
		return parseTuple(input)
	case strings.HasPrefix(input, "Variant"):
		return parseVariant(input)
	case strings.HasPrefix(input, "AggregateFunction"):
		return parseAggregateFunction(input)
	}

	return nil, parseErrorf(input, "unknown type name")
}

// argument returns the text between "Prefix(" and the trailing ")".
func argument(input, prefix string) (string, bool) {
	if len(input) < len(prefix)+2 || !strings.HasSuffix(input, ")") {
		return "", false
	}
	return input[len(prefix)+1 : len(input)-1], true
}

func parseWrapper(input, prefix string, kind Kind) (*Type, error) {
	arg, ok := argument(input, prefix)
	if !ok || arg == "" {
		return nil, parseErrorf(input, "expected %s(InnerType)", prefix)
	}
	inner, err := Parse(arg)
	if err != nil {
		return nil, err
	}
	return &Type{Kind: kind, Elem: inner}, nil
}

func parseFixedString(input string) (*Type, error) {
	arg, ok := argument(input, "FixedString")
	if !ok || arg == "" {
		return nil, parseErrorf(input, "expected FixedString(N)")
	}
	size, err := strconv.Atoi(arg)
	if err != nil {
		return nil, parseErrorf(input, "FixedString size is not a number: %v", err)
	}
	if size <= 0 {
		return nil, parseErrorf(input, "FixedString size must be positive, got %d", size)
	}
	return &Type{Kind: KindFixedString, Size: size}, nil
}

func parseDecimal(input string) (*Type, error) {
	arg, ok := argument(input, "Decimal")
	if !ok {
		return nil, parseErrorf(input, "expected Decimal(P, S)")
	}
	parts := strings.Split(arg, ", ")
	if len(parts) != 2 {
		return nil, parseErrorf(input, "expected Decimal(P, S)")
	}
	precision, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, parseErrorf(input, "Decimal precision is not a number: %v", err)
	}
	scale, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, parseErrorf(input, "Decimal scale is not a number: %v", err)
	}
	if precision < 1 || scale < 1 {
		return nil, parseErrorf(input, "Decimal precision and scale must be positive")
	}
	if precision < scale {
		return nil, parseErrorf(input, "Decimal precision %d is less than scale %d", precision, scale)
	}
	width, err := decimalWidthFor(precision)
	if err != nil {
		return nil, parseErrorf(input, "%v", err)
	}
	return &Type{Kind: KindDecimal, Precision: precision, Scale: scale, Width: width}, nil
}

func parseDateTime(input string) (*Type, error) {
	if input == "DateTime" {
		return &Type{Kind: KindDateTime}, nil
	}
	arg, ok := argument(input, "DateTime")
	if !ok || len(arg) < 2 || arg[0] != '\'' || arg[len(arg)-1] != '\'' {
		return nil, parseErrorf(input, "expected DateTime('timezone')")
	}
	return &Type{Kind: KindDateTime, Timezone: arg[1 : len(arg)-1]}, nil
}

// subSecondPrecision parses the leading precision digit of DateTime64
// and Time64 arguments and the optional ", 'timezone'" suffix.
func subSecondPrecision(input, arg string) (precision int, timezone string, err error) {
	if arg == "" || arg[0] < '0' || arg[0] > '9' {
		return 0, "", parseErrorf(input, "precision must be a digit in [0, 9]")
	}
	precision = int(arg[0] - '0')
	rest := arg[1:]
	if rest == "" {
		return precision, "", nil
	}
	if len(rest) < 5 || !strings.HasPrefix(rest, ", '") || !strings.HasSuffix(rest, "'") {
		return 0, "", parseErrorf(input, "expected (precision, 'timezone')")
	}
	return precision, rest[3 : len(rest)-1], nil
}

func parseDateTime64(input string) (*Type, error) {
	arg, ok := argument(input, "DateTime64")
	if !ok {
		return nil, parseErrorf(input, "expected DateTime64(precision) or DateTime64(precision, 'timezone')")
	}
	precision, timezone, err := subSecondPrecision(input, arg)
	if err != nil {
		return nil, err
	}
	return &Type{Kind: KindDateTime64, Precision: precision, Timezone: timezone}, nil
}

func parseTime64(input string) (*Type, error) {
	arg, ok := argument(input, "Time64")
	if !ok {
		return nil, parseErrorf(input, "expected Time64(precision)")
	}
	// The timezone, if present, is accepted and ignored: it has no
	// effect on time-of-day values.
	precision, _, err := subSecondPrecision(input, arg)
	if err != nil {
		return nil, err
	}
	return &Type{Kind: KindTime64, Precision: precision}, nil
}

func parseMap(input string) (*Type, error) {
	arg, ok := argument(input, "Map")
	if !ok || arg == "" {
		return nil, parseErrorf(input, "expected Map(KeyType, ValueType)")
	}
	inner, err := splitArguments(arg)
	if err != nil {
		return nil, err
	}
	if len(inner) != 2 {
		return nil, parseErrorf(input, "expected exactly two Map arguments, got %d", len(inner))
	}
	key, err := Parse(inner[0])
	if err != nil {
		return nil, err
	}
	value, err := Parse(inner[1])
	if err != nil {
		return nil, err
	}
	return &Type{Kind: KindMap, Key: key, Value: value}, nil
}

func parseTuple(input string) (*Type, error) {
	arg, ok := argument(input, "Tuple")
	if !ok || arg == "" {
		return nil, parseErrorf(input, "expected Tuple(Type1, Type2, ...)")
	}
	elems, err := parseTypeList(arg)
	if err != nil {
		return nil, err
	}
	if len(elems) == 0 {
		return nil, parseErrorf(input, "Tuple needs at least one element")
	}
	return &Type{Kind: KindTuple, Elems: elems}, nil
}

func parseVariant(input string) (*Type, error) {
	arg, ok := argument(input, "Variant")
	if !ok {
		return nil, parseErrorf(input, "expected Variant(Type1, Type2, ...)")
	}
	elems, err := parseTypeList(arg)
	if err != nil {
		return nil, err
	}
	return &Type{Kind: KindVariant, Elems: elems}, nil
}

func parseAggregateFunction(input string) (*Type, error) {
	arg, ok := argument(input, "AggregateFunction")
	if !ok || arg == "" {
		return nil, parseErrorf(input, "expected AggregateFunction(name, Type1, ...)")
	}
	parts, err := splitArguments(arg)
	if err != nil {
		return nil, err
	}
	if len(parts) < 2 {
		return nil, parseErrorf(input, "AggregateFunction needs a name and at least one argument type")
	}
	args := make([]*Type, 0, len(parts)-1)
	for _, part := range parts[1:] {
		argType, err := Parse(part)
		if err != nil {
			return nil, err
		}
		args = append(args, argType)
	}
	return &Type{Kind: KindAggregateFunction, Func: parts[0], Elems: args}, nil
}

func parseEnum(input string) (*Type, error) {
	var kind Kind
	var prefix string
	switch {
	case strings.HasPrefix(input, "Enum8"):
		kind, prefix = KindEnum8, "Enum8"
	case strings.HasPrefix(input, "Enum16"):
		kind, prefix = KindEnum16, "Enum16"
	default:
		return nil, parseErrorf(input, "expected Enum8 or Enum16")
	}
	arg, ok := argument(input, prefix)
	if !ok || arg == "" {
		return nil, parseErrorf(input, "expected %s('name' = value, ...)", prefix)
	}
	values, err := parseEnumValues(arg)
	if err != nil {
		return nil, err
	}
	return &Type{Kind: kind, EnumValues: values}, nil
}

// parseTypeList parses a comma-separated list of types where the
// separating comma counts only at parenthesis depth 0 and outside a
// quoted, escape-aware name. An empty list is allowed.
func parseTypeList(input string) ([]*Type, error) {
	parts, err := splitArguments(input)
	if err != nil {
		return nil, err
	}
	types := make([]*Type, 0, len(parts))
	for _, part := range parts {
		elem, err := Parse(part)
		if err != nil {
			return nil, err
		}
		types = append(types, elem)
	}
	return types, nil
}

// splitArguments splits a type argument list at top-level commas. A
// comma is a split point only when parenthesis depth is 0 and the scan
// is not inside a single-quoted name; a backslash escapes the next
// character inside and outside quotes (Enum member names may contain
// escaped quotes, parentheses, and commas).
func splitArguments(input string) ([]string, error) {
	var parts []string
	depth := 0
	inQuote := false
	escaped := false
	start := 0

	for i := 0; i < len(input); i++ {
		switch {
		case escaped:
			escaped = false
		case input[i] == '\\':
			escaped = true
		case input[i] == '\'':
			inQuote = !inQuote
		case inQuote:
			// Parentheses and commas inside a quoted name are literal.
		case input[i] == '(':
			depth++
		case input[i] == ')':
			depth--
			if depth < 0 {
				return nil, parseErrorf(input, "unbalanced parentheses")
			}
		case input[i] == ',' && depth == 0:
			parts = append(parts, input[start:i])
			// Skip the canonical space after the comma.
			if i+1 < len(input) && input[i+1] == ' ' {
				i++
			}
			start = i + 1
		}
	}
	if depth != 0 || inQuote {
		return nil, parseErrorf(input, "unbalanced parentheses or unterminated quote")
	}
	if start < len(input) {
		parts = append(parts, input[start:])
	} else if start > 0 && start == len(input) {
		return nil, parseErrorf(input, "trailing comma in argument list")
	}
	return parts, nil
}

// parseEnumValues parses "'name' = value, 'name' = value, ..." into a
// discriminant map. Escaped characters inside names are unescaped, so
// a member spelled 'f\'' has the logical name f'.
func parseEnumValues(input string) (map[int16]string, error) {
	values := make(map[int16]string)
	i := 0
	for {
		if i >= len(input) || input[i] != '\'' {
			return nil, parseErrorf(input, "expected quoted enum member name at offset %d", i)
		}
		i++
		var name strings.Builder
		for {
			if i >= len(input) {
				return nil, parseErrorf(input, "unterminated enum member name")
			}
			if input[i] == '\\' && i+1 < len(input) {
				name.WriteByte(input[i+1])
				i += 2
				continue
			}
			if input[i] == '\'' {
				i++
				break
			}
			name.WriteByte(input[i])
			i++
		}
		if !strings.HasPrefix(input[i:], " = ") {
			return nil, parseErrorf(input, "expected ` = ` after enum member name %q", name.String())
		}
		i += len(" = ")
		numStart := i
		if i < len(input) && input[i] == '-' {
			i++
		}
		for i < len(input) && input[i] >= '0' && input[i] <= '9' {
			i++
		}
		value, err := strconv.ParseInt(input[numStart:i], 10, 16)
		if err != nil {
			return nil, parseErrorf(input, "invalid enum member value after %q: %v", name.String(), err)
		}
		if _, exists := values[int16(value)]; exists {
			return nil, parseErrorf(input, "duplicate enum value %d", value)
		}
		values[int16(value)] = name.String()

		if i == len(input) {
			return values, nil
		}
		if !strings.HasPrefix(input[i:], ", ") {
			return nil, parseErrorf(input, "expected `, ` between enum members at offset %d", i)
		}
		i += len(", ")
	}
}
