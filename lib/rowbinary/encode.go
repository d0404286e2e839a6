// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rowbinary

import (
	"encoding/binary"
	"fmt"
	"math"
	"net/netip"
	"reflect"

	"github.com/bureau-foundation/chstream/lib/chtype"
	"github.com/bureau-foundation/chstream/lib/chwire"
	"github.com/google/uuid"
)

// EncodeRow appends one row in wire column order. row may be T or *T.
// A mismatch is reported before the offending value is written, but
// earlier columns of the row may already be in the writer; callers
// that need transactional behavior snapshot the writer length first.
func EncodeRow(w *chwire.Writer, md *Metadata, row any) error {
	source := reflect.ValueOf(row)
	if source.Kind() == reflect.Pointer {
		if source.IsNil() {
			return fmt.Errorf("row must not be a nil pointer")
		}
		source = source.Elem()
	}
	if source.Type() != md.rowType {
		return fmt.Errorf("row type %s does not match metadata for %s", source.Type(), md.rowType)
	}

	if md.single {
		var schema *chtype.Type
		column := ""
		if md.columns != nil {
			schema = md.columns[0].Type
			column = md.columns[0].Name
		}
		return encodeValue(w, schema, source, column)
	}

	if md.columns == nil {
		for _, f := range md.fields {
			if err := encodeValue(w, nil, source.Field(f.index), f.name); err != nil {
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
		if err := encodeValue(w, column.Type, source.Field(f.index), column.Name); err != nil {
			return err
		}
	}
	return nil
}

func encodeValue(w *chwire.Writer, schema *chtype.Type, v reflect.Value, column string) error {
	// Variant values decoded into []any or map[any]any come back
	// through here wrapped in interfaces.
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return fmt.Errorf("column %q: cannot encode untyped nil", column)
		}
		v = v.Elem()
	}
	switch v.Type() {
	case typeUUID:
		return encodeUUID(w, schema, v, column)
	case typeNetipAddr:
		return encodeAddr(w, schema, v, column)
	case typeInt128:
		if schema != nil && !scalarCompatible(schema, repInt128) {
			return mismatchErr(column, schema, v.Type())
		}
		w.PutInt128(v.Interface().(chwire.Int128))
		return nil
	case typeUInt128:
		if schema != nil && !scalarCompatible(schema, repUInt128) {
			return mismatchErr(column, schema, v.Type())
		}
		w.PutUInt128(v.Interface().(chwire.UInt128))
		return nil
	case typeVariant:
		return encodeVariant(w, schema, v, column)
	}

	switch v.Kind() {
	case reflect.Bool:
		if schema != nil && !scalarCompatible(schema, repBool) {
			return mismatchErr(column, schema, v.Type())
		}
		if v.Bool() {
			w.PutByte(1)
		} else {
			w.PutByte(0)
		}
		return nil

	case reflect.Int8:
		if schema != nil && !scalarCompatible(schema, repInt8) {
			return mismatchErr(column, schema, v.Type())
		}
		w.PutByte(byte(v.Int()))
		return nil

	case reflect.Int16:
		if schema != nil && !scalarCompatible(schema, repInt16) {
			return mismatchErr(column, schema, v.Type())
		}
		w.PutUint16(uint16(v.Int()))
		return nil

	case reflect.Int32:
		if schema != nil && !scalarCompatible(schema, repInt32) {
			return mismatchErr(column, schema, v.Type())
		}
		w.PutUint32(uint32(v.Int()))
		return nil

	case reflect.Int64:
		if schema != nil && !scalarCompatible(schema, repInt64) {
			return mismatchErr(column, schema, v.Type())
		}
		w.PutUint64(uint64(v.Int()))
		return nil

	case reflect.Uint8:
		if schema != nil && !scalarCompatible(schema, repUInt8) {
			return mismatchErr(column, schema, v.Type())
		}
		w.PutByte(byte(v.Uint()))
		return nil

	case reflect.Uint16:
		if schema != nil && !scalarCompatible(schema, repUInt16) {
			return mismatchErr(column, schema, v.Type())
		}
		w.PutUint16(uint16(v.Uint()))
		return nil

	case reflect.Uint32:
		if schema != nil && !scalarCompatible(schema, repUInt32) {
			return mismatchErr(column, schema, v.Type())
		}
		w.PutUint32(uint32(v.Uint()))
		return nil

	case reflect.Uint64:
		if schema != nil && !scalarCompatible(schema, repUInt64) {
			return mismatchErr(column, schema, v.Type())
		}
		w.PutUint64(v.Uint())
		return nil

	case reflect.Float32:
		if schema != nil && !scalarCompatible(schema, repFloat32) {
			return mismatchErr(column, schema, v.Type())
		}
		w.PutUint32(math.Float32bits(float32(v.Float())))
		return nil

	case reflect.Float64:
		if schema != nil && !scalarCompatible(schema, repFloat64) {
			return mismatchErr(column, schema, v.Type())
		}
		w.PutUint64(math.Float64bits(v.Float()))
		return nil

	case reflect.String:
		return encodeString(w, schema, v, column)

	case reflect.Pointer:
		var elemSchema *chtype.Type
		if schema != nil {
			elem, ok := nullableElem(schema)
			if !ok {
				return mismatchErr(column, schema, v.Type())
			}
			elemSchema = elem
		}
		if v.IsNil() {
			w.PutByte(1)
			return nil
		}
		w.PutByte(0)
		return encodeValue(w, elemSchema, v.Elem(), column)

	case reflect.Slice:
		return encodeSlice(w, schema, v, column)

	case reflect.Map:
		var keySchema, valueSchema *chtype.Type
		if schema != nil {
			key, value, ok := mapTypes(schema)
			if !ok {
				return mismatchErr(column, schema, v.Type())
			}
			keySchema, valueSchema = key, value
		}
		w.PutUvarint(uint64(v.Len()))
		iter := v.MapRange()
		for iter.Next() {
			if err := encodeValue(w, keySchema, iter.Key(), column); err != nil {
				return err
			}
			if err := encodeValue(w, valueSchema, iter.Value(), column); err != nil {
				return err
			}
		}
		return nil

	case reflect.Array:
		return encodeFixed(w, schema, v, column, arrayElems(v))

	case reflect.Struct:
		fields, err := tupleFields(v.Type())
		if err != nil {
			return fmt.Errorf("column %q: %w", column, err)
		}
		elems := make([]reflect.Value, len(fields))
		for i, index := range fields {
			elems[i] = v.Field(index)
		}
		return encodeFixed(w, schema, v, column, elems)

	default:
		return fmt.Errorf("column %q: host type %s is not supported, use a fixed-width type", column, v.Type())
	}
}

func encodeString(w *chwire.Writer, schema *chtype.Type, v reflect.Value, column string) error {
	if schema != nil {
		stripped := schema.StripLowCardinality()
		switch stripped.Kind {
		case chtype.KindEnum8, chtype.KindEnum16:
			return writeEnumValue(w, stripped, v.String(), column)
		}
		if !scalarCompatible(schema, repString) {
			return mismatchErr(column, schema, v.Type())
		}
	}
	w.PutString(v.String())
	return nil
}

// writeEnumValue maps a member name back to its discriminant. Enum
// declarations are small, so a linear scan beats carrying a reverse
// map on every metadata.
func writeEnumValue(w *chwire.Writer, enum *chtype.Type, name string, column string) error {
	for discriminant, member := range enum.EnumValues {
		if member == name {
			if enum.Kind == chtype.KindEnum8 {
				w.PutByte(byte(int8(discriminant)))
			} else {
				w.PutUint16(uint16(discriminant))
			}
			return nil
		}
	}
	return fmt.Errorf("column %q: %q is not a member of %s", column, name, enum)
}

func encodeSlice(w *chwire.Writer, schema *chtype.Type, v reflect.Value, column string) error {
	if v.Type().Elem().Kind() == reflect.Uint8 {
		stringSchema := schema == nil || schema.StripLowCardinality().Kind == chtype.KindString ||
			schema.StripLowCardinality().Kind == chtype.KindJSON
		if stringSchema {
			w.PutByteString(v.Bytes())
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
	w.PutUvarint(uint64(v.Len()))
	for i := 0; i < v.Len(); i++ {
		if err := encodeValue(w, elemSchema, v.Index(i), column); err != nil {
			return err
		}
	}
	return nil
}

func encodeFixed(w *chwire.Writer, schema *chtype.Type, v reflect.Value, column string, elems []reflect.Value) error {
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
		if err := encodeValue(w, elemSchema, elem, column); err != nil {
			return err
		}
	}
	return nil
}

func encodeUUID(w *chwire.Writer, schema *chtype.Type, v reflect.Value, column string) error {
	if schema != nil && schema.StripLowCardinality().Kind != chtype.KindUUID {
		return mismatchErr(column, schema, v.Type())
	}
	id := v.Interface().(uuid.UUID)
	w.PutUint64(binary.BigEndian.Uint64(id[0:8]))
	w.PutUint64(binary.BigEndian.Uint64(id[8:16]))
	return nil
}

func encodeAddr(w *chwire.Writer, schema *chtype.Type, v reflect.Value, column string) error {
	if schema == nil {
		return fmt.Errorf("column %q: netip.Addr needs schema metadata to pick IPv4 or IPv6", column)
	}
	addr := v.Interface().(netip.Addr)
	switch schema.StripLowCardinality().Kind {
	case chtype.KindIPv4:
		if !addr.Is4() {
			return fmt.Errorf("column %q: address %s is not IPv4", column, addr)
		}
		octets := addr.As4()
		w.PutUint32(uint32(octets[0])<<24 | uint32(octets[1])<<16 | uint32(octets[2])<<8 | uint32(octets[3]))
		return nil
	case chtype.KindIPv6:
		raw := addr.As16()
		w.PutBytes(raw[:])
		return nil
	default:
		return mismatchErr(column, schema, v.Type())
	}
}

func encodeVariant(w *chwire.Writer, schema *chtype.Type, v reflect.Value, column string) error {
	if schema == nil {
		return fmt.Errorf("column %q: Variant needs schema metadata", column)
	}
	alternatives, ok := variantTypes(schema)
	if !ok {
		return mismatchErr(column, schema, v.Type())
	}
	variant := v.Interface().(Variant)
	if variant.Index == NullVariant {
		w.PutByte(NullVariant)
		return nil
	}
	if int(variant.Index) >= len(alternatives) {
		return fmt.Errorf("column %q: variant discriminant %d out of range, %d alternatives declared",
			column, variant.Index, len(alternatives))
	}
	w.PutByte(variant.Index)
	if variant.Value == nil {
		return fmt.Errorf("column %q: variant with discriminant %d has no value", column, variant.Index)
	}
	return encodeValue(w, alternatives[variant.Index], reflect.ValueOf(variant.Value), column)
}
