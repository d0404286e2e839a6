// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rowbinary

import (
	"fmt"
	"net/netip"
	"reflect"
	"strings"

	"github.com/bureau-foundation/chstream/lib/chtype"
	"github.com/bureau-foundation/chstream/lib/chwire"
	"github.com/google/uuid"
)

// Metadata binds a host row type to a column set. It is resolved once
// and reused for every row; all name matching and shape checking that
// does not depend on values happens here.
type Metadata struct {
	rowType reflect.Type
	columns []chtype.Column

	// fields is the struct binding, in declaration order. Empty for
	// single-column scalar rows.
	fields []boundField

	// fieldForColumn maps wire column order to fields indices. Nil
	// when the two orders coincide.
	fieldForColumn []int

	// single marks a non-struct row bound to exactly one column.
	single bool
}

type boundField struct {
	name  string
	index int
}

// Columns returns the column set the metadata was resolved against,
// nil for unvalidated metadata.
func (md *Metadata) Columns() []chtype.Column { return md.columns }

// RowType returns the host type the metadata binds.
func (md *Metadata) RowType() reflect.Type { return md.rowType }

// Validated reports whether schema types are available for checking.
func (md *Metadata) Validated() bool { return md.columns != nil }

// Resolve binds T to the columns by name: struct fields match columns
// via their `ch` tag (falling back to the field name), in any order;
// non-struct types bind to single-column rows. Mismatches in count or
// naming are reported here, before any row is touched.
func Resolve[T any](columns []chtype.Column) (*Metadata, error) {
	return ResolveType(reflect.TypeFor[T](), columns)
}

// ResolvePositional binds struct fields of T to columns by order
// alone, ignoring names. Used for rows whose host type is a bare
// aggregate rather than a named record.
func ResolvePositional[T any](columns []chtype.Column) (*Metadata, error) {
	return ResolvePositionalType(reflect.TypeFor[T](), columns)
}

// ResolveUnvalidated binds T without schema information: the host
// types alone drive the wire format and no compatibility checking is
// possible.
func ResolveUnvalidated[T any]() (*Metadata, error) {
	return ResolveUnvalidatedType(reflect.TypeFor[T]())
}

// ResolveType is the non-generic form of Resolve.
func ResolveType(rowType reflect.Type, columns []chtype.Column) (*Metadata, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("cannot resolve %s against an empty column set", rowType)
	}
	fields, isRecord, err := rowFields(rowType)
	if err != nil {
		return nil, err
	}
	if !isRecord {
		if len(columns) != 1 {
			return nil, fmt.Errorf(
				"row type %s binds a single column but the result set has %d columns (%s)",
				rowType, len(columns), columnNames(columns))
		}
		return &Metadata{rowType: rowType, columns: columns, single: true}, nil
	}

	if len(fields) != len(columns) {
		return nil, fmt.Errorf(
			"row type %s has %d fields (%s) but the result set has %d columns (%s)",
			rowType, len(fields), fieldNames(fields), len(columns), columnNames(columns))
	}

	byName := make(map[string]int, len(fields))
	for i, f := range fields {
		byName[f.name] = i
	}
	perm := make([]int, len(columns))
	sequential := true
	for i, column := range columns {
		fieldIndex, ok := byName[column.Name]
		if !ok {
			return nil, fmt.Errorf(
				"column %q has no matching field in %s (fields: %s; columns: %s)",
				column.Name, rowType, fieldNames(fields), columnNames(columns))
		}
		perm[i] = fieldIndex
		if fieldIndex != i {
			sequential = false
		}
	}
	md := &Metadata{rowType: rowType, columns: columns, fields: fields}
	if !sequential {
		md.fieldForColumn = perm
	}
	return md, nil
}

// ResolvePositionalType is the non-generic form of ResolvePositional.
func ResolvePositionalType(rowType reflect.Type, columns []chtype.Column) (*Metadata, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("cannot resolve %s against an empty column set", rowType)
	}
	fields, isRecord, err := rowFields(rowType)
	if err != nil {
		return nil, err
	}
	if !isRecord {
		return ResolveType(rowType, columns)
	}
	if len(fields) != len(columns) {
		return nil, fmt.Errorf(
			"row type %s has %d fields but the result set has %d columns (%s)",
			rowType, len(fields), len(columns), columnNames(columns))
	}
	return &Metadata{rowType: rowType, columns: columns, fields: fields}, nil
}

// ResolveUnvalidatedType is the non-generic form of ResolveUnvalidated.
func ResolveUnvalidatedType(rowType reflect.Type) (*Metadata, error) {
	fields, isRecord, err := rowFields(rowType)
	if err != nil {
		return nil, err
	}
	if !isRecord {
		return &Metadata{rowType: rowType, single: true}, nil
	}
	return &Metadata{rowType: rowType, fields: fields}, nil
}

// RowFieldNames returns the bound field names of a record type in
// declaration order, or nil for single-column row types. Used to
// resolve a row type against a table schema before the column set for
// the insert is known.
func RowFieldNames(rowType reflect.Type) ([]string, error) {
	fields, isRecord, err := rowFields(rowType)
	if err != nil || !isRecord {
		return nil, err
	}
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.name
	}
	return names, nil
}

// Leaf types that are structs (or named arrays) to the reflect
// package but scalars to the codec.
var (
	typeUUID      = reflect.TypeOf(uuid.UUID{})
	typeNetipAddr = reflect.TypeOf(netip.Addr{})
	typeInt128    = reflect.TypeOf(chwire.Int128{})
	typeUInt128   = reflect.TypeOf(chwire.UInt128{})
	typeVariant   = reflect.TypeOf(Variant{})
)

func isLeafType(t reflect.Type) bool {
	switch t {
	case typeUUID, typeNetipAddr, typeInt128, typeUInt128, typeVariant:
		return true
	}
	return false
}

// rowFields extracts the bindable fields of a row type. The second
// result distinguishes record types (plain structs) from single-column
// rows (scalars, slices, maps, and the leaf structs above).
func rowFields(rowType reflect.Type) ([]boundField, bool, error) {
	if rowType.Kind() != reflect.Struct || isLeafType(rowType) {
		return nil, false, nil
	}
	var fields []boundField
	for i := 0; i < rowType.NumField(); i++ {
		f := rowType.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("ch"); ok {
			if tag == "-" {
				continue
			}
			name = tag
		}
		fields = append(fields, boundField{name: name, index: i})
	}
	if len(fields) == 0 {
		return nil, false, fmt.Errorf("row type %s has no usable fields", rowType)
	}
	return fields, true, nil
}

func fieldNames(fields []boundField) string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.name
	}
	return strings.Join(names, ", ")
}

func columnNames(columns []chtype.Column) string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}
	return strings.Join(names, ", ")
}
