// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chwire

import (
	"fmt"

	"github.com/bureau-foundation/chstream/lib/chtype"
)

// ReadColumnsHeader parses the prelude of a RowBinaryWithNamesAndTypes
// stream: a LEB128 column count, that many names, then that many type
// strings. A short buffer returns ErrNotEnoughData so the caller can
// retry with more input; a zero column count is corruption, not a
// short read.
func ReadColumnsHeader(r *Reader) ([]chtype.Column, error) {
	count, err := r.ReadUvarint()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, fmt.Errorf("columns header declares zero columns")
	}
	columns := make([]chtype.Column, count)
	for i := range columns {
		if columns[i].Name, err = r.ReadString(); err != nil {
			return nil, err
		}
	}
	for i := range columns {
		typeString, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		if columns[i].Type, err = chtype.Parse(typeString); err != nil {
			return nil, fmt.Errorf("column %q: %w", columns[i].Name, err)
		}
	}
	return columns, nil
}

// WriteColumnsHeader writes the names/types prelude for the given
// columns.
func WriteColumnsHeader(w *Writer, columns []chtype.Column) {
	w.PutUvarint(uint64(len(columns)))
	for _, column := range columns {
		w.PutString(column.Name)
	}
	for _, column := range columns {
		w.PutString(column.Type.String())
	}
}
