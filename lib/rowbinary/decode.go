// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rowbinary

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"net/netip"
	"reflect"

	"github.com/bureau-foundation/chstream/lib/chtype"
	"github.com/bureau-foundation/chstream/lib/chwire"
	"github.com/google/uuid"
)

// DecodeRow decodes one row into *T. On chwire.ErrNotEnoughData the
// row value may be partially filled but no state outside the reader
// position is affected; the caller restores the position and retries
// with more input.
//
// []byte fields alias the reader's buffer and stay valid only as long
// as the buffer does. Strings are always copied.
func DecodeRow(r *chwire.Reader, md *Metadata, row any) error {
	return decodeRow(r, md, row, false)
}

// DecodeRowCopy is DecodeRow with owned []byte fields: every byte
// slice is copied out of the reader's buffer.
func DecodeRowCopy(r *chwire.Reader, md *Metadata, row any) error {
	return decodeRow(r, md, row, true)
}

func decodeRow(r *chwire.Reader, md *Metadata, row any, copyBytes bool) error {
	ptr := reflect.ValueOf(row)
	if ptr.Kind() != reflect.Pointer || ptr.IsNil() {
		return fmt.Errorf("row must be a non-nil pointer, got %T", row)
	}
	target := ptr.Elem()
	if target.Type() != md.rowType {
		return fmt.Errorf("row type %s does not match metadata for %s", target.Type(), md.rowType)
	}

	if md.single {
		var schema *chtype.Type
		column := ""
		if md.columns != nil {
			schema = md.columns[0].Type
			column = md.columns[0].Name
		}
		return decodeValue(r, schema, target, column, copyBytes)
	}

	if md.columns == nil {
		for _, f := range md.fields {
			if err := decodeValue(r, nil, target.Field(f.index), f.name, copyBytes); err != nil {
				return err
			}
		}
		return nil
	}

	for i, column := range md.columns {
		f := md.fields[i]
		if md.fieldForColumn != nil {
			f = md.fields[md.fieldForColumn[i]]
		}
		if err := decodeValue(r, column.Type, target.Field(f.index), column.Name, copyBytes); err != nil {
			return err
		}
	}
	return nil
}

func mismatchErr(column string, schema *chtype.Type, host reflect.Type) error {
	return &MismatchError{Column: column, SchemaType: schema.String(), Requested: host.String()}
}

// decodeValue decodes one value of the given schema type into v. A nil
// schema means validation is disabled and the host type alone drives
// the wire format. All compatibility checks happen before any byte is
// consumed, so a mismatch never moves the reader.
func decodeValue(r *chwire.Reader, schema *chtype.Type, v reflect.Value, column string, copyBytes bool) error {
	switch v.Type() {
	case typeUUID:
		return decodeUUID(r, schema, v, column)
	case typeNetipAddr:
		return decodeAddr(r, schema, v, column)
	case typeInt128:
		if schema != nil && !scalarCompatible(schema, repInt128) {
			return mismatchErr(column, schema, v.Type())
		}
		value, err := r.ReadInt128()
		if err != nil {
			return err
		}
		v.Set(reflect.ValueOf(value))
		return nil
	case typeUInt128:
		if schema != nil && !scalarCompatible(schema, repUInt128) {
			return mismatchErr(column, schema, v.Type())
		}
		value, err := r.ReadUInt128()
		if err != nil {
			return err
		}
		v.Set(reflect.ValueOf(value))
		return nil
	case typeVariant:
		return decodeVariant(r, schema, v, column, copyBytes)
	}

	switch v.Kind() {
	case reflect.Bool:
		if schema != nil && !scalarCompatible(schema, repBool) {
			return mismatchErr(column, schema, v.Type())
		}
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		v.SetBool(b != 0)
		return nil

	case reflect.Int8:
		if schema != nil && !scalarCompatible(schema, repInt8) {
			return mismatchErr(column, schema, v.Type())
		}
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		v.SetInt(int64(int8(b)))
		return nil

	case reflect.Int16:
		if schema != nil && !scalarCompatible(schema, repInt16) {
			return mismatchErr(column, schema, v.Type())
		}
		u, err := r.ReadUint16()
		if err != nil {
			return err
		}
		v.SetInt(int64(int16(u)))
		return nil

	case reflect.Int32:
		if schema != nil && !scalarCompatible(schema, repInt32) {
			return mismatchErr(column, schema, v.Type())
		}
		u, err := r.ReadUint32()
		if err != nil {
			return err
		}
		v.SetInt(int64(int32(u)))
		return nil

	case reflect.Int64:
		if schema != nil && !scalarCompatible(schema, repInt64) {
			return mismatchErr(column, schema, v.Type())
		}
		u, err := r.ReadUint64()
		if err != nil {
			return err
		}
		v.SetInt(int64(u))
		return nil

	case reflect.Uint8:
		if schema != nil && !scalarCompatible(schema, repUInt8) {
			return mismatchErr(column, schema, v.Type())
		}
		b, err := r.ReadByte()
		if err != nil {
			return err
		}
		v.SetUint(uint64(b))
		return nil

	case reflect.Uint16:
		if schema != nil && !scalarCompatible(schema, repUInt16) {
			return mismatchErr(column, schema, v.Type())
		}
		u, err := r.ReadUint16()
		if err != nil {
			return err
		}
		v.SetUint(uint64(u))
		return nil

	case reflect.Uint32:
		if schema != nil && !scalarCompatible(schema, repUInt32) {
			return mismatchErr(column, schema, v.Type())
		}
		u, err := r.ReadUint32()
		if err != nil {
			return err
		}
		v.SetUint(uint64(u))
		return nil

	case reflect.Uint64:
		if schema != nil && !scalarCompatible(schema, repUInt64) {
			return mismatchErr(column, schema, v.Type())
		}
		u, err := r.ReadUint64()
		if err != nil {
			return err
		}
		v.SetUint(u)
		return nil

	case reflect.Float32:
		if schema != nil && !scalarCompatible(schema, repFloat32) {
			return mismatchErr(column, schema, v.Type())
		}
		u, err := r.ReadUint32()
		if err != nil {
			return err
		}
		v.SetFloat(float64(math.Float32frombits(u)))
		return nil

	case reflect.Float64:
		if schema != nil && !scalarCompatible(schema, repFloat64) {
			return mismatchErr(column, schema, v.Type())
		}
		u, err := r.ReadUint64()
		if err != nil {
			return err
		}
		v.SetFloat(math.Float64frombits(u))
		return nil

	case reflect.String:
		return decodeString(r, schema, v, column)

	case reflect.Pointer:
		return decodePointer(r, schema, v, column, copyBytes)

	case reflect.Slice:
		return decodeSlice(r, schema, v, column, copyBytes)

	case reflect.Map:
		return decodeMap(r, schema, v, column, copyBytes)

	case reflect.Array:
		return decodeFixed(r, schema, v, column, copyBytes, arrayElems(v))

	case reflect.Struct:
		fields, err := tupleFields(v.Type())
		if err != nil {
			return fmt.Errorf("column %q: %w", column, err)
		}
		elems := make([]reflect.Value, len(fields))
		for i, index := range fields {
			elems[i] = v.Field(index)
		}
		return decodeFixed(r, schema, v, column, copyBytes, elems)

	default:
		return fmt.Errorf("column %q: host type %s is not supported, use a fixed-width type", column, v.Type())
	}
}

func decodeString(r *chwire.Reader, schema *chtype.Type, v reflect.Value, column string) error {
	if schema == nil {
		s, err := r.ReadString()
		if err != nil {
			return err
		}
		v.SetString(s)
		return nil
	}
	stripped := schema.StripLowCardinality()
	switch stripped.Kind {
	case chtype.KindEnum8, chtype.KindEnum16:
		value, err := readEnumValue(r, stripped, column)
		if err != nil {
			return err
		}
		v.SetString(value)
		return nil
	}
	if !scalarCompatible(schema, repString) {
		return mismatchErr(column, schema, v.Type())
	}
	s, err := r.ReadString()
	if err != nil {
		return err
	}
	v.SetString(s)
	return nil
}

// readEnumValue reads a discriminant of the enum's width and maps it
// to the member name. A discriminant absent from the declaration is
// corruption.
func readEnumValue(r *chwire.Reader, enum *chtype.Type, column string) (string, error) {
	var discriminant int16
	if enum.Kind == chtype.KindEnum8 {
		b, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		discriminant = int16(int8(b))
	} else {
		u, err := r.ReadUint16()
		if err != nil {
			return "", err
		}
		discriminant = int16(u)
	}
	name, ok := enum.EnumValues[discriminant]
	if !ok {
		return "", fmt.Errorf("column %q: discriminant %d is not declared in %s", column, discriminant, enum)
	}
	return name, nil
}

func decodePointer(r *chwire.Reader, schema *chtype.Type, v reflect.Value, column string, copyBytes bool) error {
	var elemSchema *chtype.Type
	if schema != nil {
		elem, ok := nullableElem(schema)
		if !ok {
			return mismatchErr(column, schema, v.Type())
		}
		elemSchema = elem
	}
	tag, err := r.ReadByte()
	if err != nil {
		return err
	}
	switch tag {
	case 1:
		v.SetZero()
		return nil
	case 0:
		ptr := reflect.New(v.Type().Elem())
		if err := decodeValue(r, elemSchema, ptr.Elem(), column, copyBytes); err != nil {
			return err
		}
		v.Set(ptr)
		return nil
	default:
		return fmt.Errorf("column %q: invalid null marker 0x%02x", column, tag)
	}
}

func decodeSlice(r *chwire.Reader, schema *chtype.Type, v reflect.Value, column string, copyBytes bool) error {
	// []byte against a String column is a length-prefixed blob; any
	// other slice, including []byte against Array(UInt8), decodes
	// elementwise.
	if v.Type().Elem().Kind() == reflect.Uint8 {
		stringSchema := schema == nil || schema.StripLowCardinality().Kind == chtype.KindString ||
			schema.StripLowCardinality().Kind == chtype.KindJSON
		if stringSchema {
			p, err := r.ReadByteString()
			if err != nil {
				return err
			}
			if copyBytes {
				p = bytes.Clone(p)
			}
			v.SetBytes(p)
			return nil
		}
	}

	var elemSchema *chtype.Type
	if schema != nil {
		elem, ok := seqElem(schema)
		if !ok {
			return mismatchErr(column, schema, v.Type())
		}
		elemSchema = elem
	}
	count, err := r.ReadUvarint()
	if err != nil {
		return err
	}
	// Grow incrementally so a corrupt length cannot force a giant
	// allocation before the element reads fail.
	slice := reflect.MakeSlice(v.Type(), 0, int(min(count, 4096)))
	elem := reflect.New(v.Type().Elem()).Elem()
	for i := uint64(0); i < count; i++ {
		elem.SetZero()
		if err := decodeValue(r, elemSchema, elem, column, copyBytes); err != nil {
			return err
		}
		slice = reflect.Append(slice, elem)
	}
	v.Set(slice)
	return nil
}

func decodeMap(r *chwire.Reader, schema *chtype.Type, v reflect.Value, column string, copyBytes bool) error {
	var keySchema, valueSchema *chtype.Type
	if schema != nil {
		key, value, ok := mapTypes(schema)
		if !ok {
			return mismatchErr(column, schema, v.Type())
		}
		keySchema, valueSchema = key, value
	}
	count, err := r.ReadUvarint()
	if err != nil {
		return err
	}
	m := reflect.MakeMapWithSize(v.Type(), int(min(count, 4096)))
	key := reflect.New(v.Type().Key()).Elem()
	value := reflect.New(v.Type().Elem()).Elem()
	for i := uint64(0); i < count; i++ {
		key.SetZero()
		value.SetZero()
		if err := decodeValue(r, keySchema, key, column, copyBytes); err != nil {
			return err
		}
		if err := decodeValue(r, valueSchema, value, column, copyBytes); err != nil {
			return err
		}
		m.SetMapIndex(key, value)
	}
	v.Set(m)
	return nil
}

// decodeFixed decodes a fixed-arity aggregate elementwise: a host
// array or nested struct against a Tuple, FixedString, IPv6, UUID, or
// Point schema.
func decodeFixed(r *chwire.Reader, schema *chtype.Type, v reflect.Value, column string, copyBytes bool, elems []reflect.Value) error {
	var shape []*chtype.Type
	if schema != nil {
		s, ok := tupleShape(schema, len(elems))
		if !ok {
			return mismatchErr(column, schema, v.Type())
		}
		shape = s
	}
	for i, elem := range elems {
		var elemSchema *chtype.Type
		if shape != nil {
			elemSchema = shape[i]
		}
		if err := decodeValue(r, elemSchema, elem, column, copyBytes); err != nil {
			return err
		}
	}
	return nil
}

func arrayElems(v reflect.Value) []reflect.Value {
	elems := make([]reflect.Value, v.Len())
	for i := range elems {
		elems[i] = v.Index(i)
	}
	return elems
}

// tupleFields returns the exported field indices of a nested struct,
// bound positionally.
func tupleFields(t reflect.Type) ([]int, error) {
	var fields []int
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).IsExported() {
			fields = append(fields, i)
		}
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("struct %s has no exported fields", t)
	}
	return fields, nil
}

func decodeUUID(r *chwire.Reader, schema *chtype.Type, v reflect.Value, column string) error {
	if schema != nil && schema.StripLowCardinality().Kind != chtype.KindUUID {
		return mismatchErr(column, schema, v.Type())
	}
	hi, err := r.ReadUint64()
	if err != nil {
		return err
	}
	lo, err := r.ReadUint64()
	if err != nil {
		return err
	}
	var id uuid.UUID
	binary.BigEndian.PutUint64(id[0:8], hi)
	binary.BigEndian.PutUint64(id[8:16], lo)
	v.Set(reflect.ValueOf(id))
	return nil
}

func decodeAddr(r *chwire.Reader, schema *chtype.Type, v reflect.Value, column string) error {
	if schema == nil {
		return fmt.Errorf("column %q: netip.Addr needs schema metadata to pick IPv4 or IPv6", column)
	}
	switch schema.StripLowCardinality().Kind {
	case chtype.KindIPv4:
		u, err := r.ReadUint32()
		if err != nil {
			return err
		}
		addr := netip.AddrFrom4([4]byte{byte(u >> 24), byte(u >> 16), byte(u >> 8), byte(u)})
		v.Set(reflect.ValueOf(addr))
		return nil
	case chtype.KindIPv6:
		p, err := r.ReadBytes(16)
		if err != nil {
			return err
		}
		addr := netip.AddrFrom16([16]byte(p))
		v.Set(reflect.ValueOf(addr))
		return nil
	default:
		return mismatchErr(column, schema, v.Type())
	}
}

func decodeVariant(r *chwire.Reader, schema *chtype.Type, v reflect.Value, column string, copyBytes bool) error {
	if schema == nil {
		return fmt.Errorf("column %q: Variant needs schema metadata", column)
	}
	alternatives, ok := variantTypes(schema)
	if !ok {
		return mismatchErr(column, schema, v.Type())
	}
	tag, err := r.ReadByte()
	if err != nil {
		return err
	}
	if tag == NullVariant {
		v.Set(reflect.ValueOf(Variant{Index: NullVariant}))
		return nil
	}
	if int(tag) >= len(alternatives) {
		return fmt.Errorf("column %q: variant discriminant %d out of range, %d alternatives declared",
			column, tag, len(alternatives))
	}
	value, err := decodeNatural(r, alternatives[tag], column, copyBytes)
	if err != nil {
		return err
	}
	v.Set(reflect.ValueOf(Variant{Index: tag, Value: value}))
	return nil
}

// decodeNatural decodes a value of the given schema type into its
// natural Go representation. Used where the host type is open, i.e.
// inside Variant values.
func decodeNatural(r *chwire.Reader, schema *chtype.Type, column string, copyBytes bool) (any, error) {
	t := schema.StripLowCardinality()
	switch t.Kind {
	case chtype.KindBool:
		b, err := r.ReadByte()
		return b != 0, err
	case chtype.KindInt8:
		b, err := r.ReadByte()
		return int8(b), err
	case chtype.KindInt16:
		u, err := r.ReadUint16()
		return int16(u), err
	case chtype.KindInt32, chtype.KindDate32, chtype.KindTime:
		u, err := r.ReadUint32()
		return int32(u), err
	case chtype.KindInt64, chtype.KindDateTime64, chtype.KindTime64, chtype.KindInterval:
		u, err := r.ReadUint64()
		return int64(u), err
	case chtype.KindInt128:
		return r.ReadInt128()
	case chtype.KindUInt8:
		return r.ReadByte()
	case chtype.KindUInt16, chtype.KindDate:
		return r.ReadUint16()
	case chtype.KindUInt32, chtype.KindDateTime:
		return r.ReadUint32()
	case chtype.KindUInt64:
		return r.ReadUint64()
	case chtype.KindUInt128:
		return r.ReadUInt128()
	case chtype.KindFloat32:
		u, err := r.ReadUint32()
		return math.Float32frombits(u), err
	case chtype.KindFloat64:
		u, err := r.ReadUint64()
		return math.Float64frombits(u), err
	case chtype.KindDecimal:
		switch t.Width {
		case chtype.Decimal32:
			u, err := r.ReadUint32()
			return int32(u), err
		case chtype.Decimal64:
			u, err := r.ReadUint64()
			return int64(u), err
		case chtype.Decimal128:
			return r.ReadInt128()
		}
	case chtype.KindString, chtype.KindJSON:
		return r.ReadString()
	case chtype.KindFixedString:
		p, err := r.ReadBytes(t.Size)
		if err != nil {
			return nil, err
		}
		if copyBytes {
			p = bytes.Clone(p)
		}
		return p, nil
	case chtype.KindEnum8, chtype.KindEnum16:
		return readEnumValue(r, t, column)
	case chtype.KindUUID:
		var id uuid.UUID
		target := reflect.ValueOf(&id).Elem()
		if err := decodeUUID(r, t, target, column); err != nil {
			return nil, err
		}
		return id, nil
	case chtype.KindIPv4, chtype.KindIPv6:
		var addr netip.Addr
		target := reflect.ValueOf(&addr).Elem()
		if err := decodeAddr(r, t, target, column); err != nil {
			return nil, err
		}
		return addr, nil
	case chtype.KindNullable:
		tag, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if tag == 1 {
			return nil, nil
		}
		return decodeNatural(r, t.Elem, column, copyBytes)
	case chtype.KindArray, chtype.KindRing, chtype.KindLineString,
		chtype.KindPolygon, chtype.KindMultiLineString, chtype.KindMultiPolygon:
		elem, _ := seqElem(t)
		count, err := r.ReadUvarint()
		if err != nil {
			return nil, err
		}
		values := make([]any, 0, min(count, 4096))
		for i := uint64(0); i < count; i++ {
			value, err := decodeNatural(r, elem, column, copyBytes)
			if err != nil {
				return nil, err
			}
			values = append(values, value)
		}
		return values, nil
	case chtype.KindTuple:
		values := make([]any, len(t.Elems))
		for i, elem := range t.Elems {
			value, err := decodeNatural(r, elem, column, copyBytes)
			if err != nil {
				return nil, err
			}
			values[i] = value
		}
		return values, nil
	case chtype.KindPoint:
		x, err := decodeNatural(r, chtype.Float64, column, copyBytes)
		if err != nil {
			return nil, err
		}
		y, err := decodeNatural(r, chtype.Float64, column, copyBytes)
		if err != nil {
			return nil, err
		}
		return []any{x, y}, nil
	case chtype.KindMap:
		count, err := r.ReadUvarint()
		if err != nil {
			return nil, err
		}
		m := make(map[any]any, min(count, 4096))
		for i := uint64(0); i < count; i++ {
			key, err := decodeNatural(r, t.Key, column, copyBytes)
			if err != nil {
				return nil, err
			}
			value, err := decodeNatural(r, t.Value, column, copyBytes)
			if err != nil {
				return nil, err
			}
			m[key] = value
		}
		return m, nil
	case chtype.KindVariant:
		var nested Variant
		target := reflect.ValueOf(&nested).Elem()
		if err := decodeVariant(r, t, target, column, copyBytes); err != nil {
			return nil, err
		}
		return nested, nil
	}
	return nil, fmt.Errorf("column %q: type %s has no natural host representation", column, t)
}
