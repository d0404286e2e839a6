// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cursor turns a chunked byte stream into typed rows. The
// stream carries RowBinaryWithNamesAndTypes: a names/types header
// followed by rows, optionally wrapped in compression frames. Chunk
// boundaries carry no meaning; the cursor buffers whatever a chunk
// leaves incomplete and retries.
package cursor

import (
	"context"
	"fmt"
	"io"

	"github.com/bureau-foundation/chstream/lib/bytestream"
	"github.com/bureau-foundation/chstream/lib/chtype"
	"github.com/bureau-foundation/chstream/lib/chwire"
	"github.com/bureau-foundation/chstream/lib/frame"
	"github.com/bureau-foundation/chstream/lib/rowbinary"
)

// Options configure a row cursor.
type Options struct {
	// Compression names the frame method the stream is wrapped in.
	// Zero means the stream is plain RowBinary bytes.
	Compression frame.Method

	// DisableValidation marks the stream as headerless RowBinary: no
	// names/types prelude is read and host types alone drive
	// decoding. Schema mismatches then surface as garbage values or
	// malformed-data errors instead of diagnostics.
	DisableValidation bool

	// Positional binds struct fields to columns by order instead of
	// by name.
	Positional bool
}

// Rows is a pull cursor over a result stream, yielding rows decoded
// into T. It is not safe for concurrent use.
type Rows[T any] struct {
	source bytestream.Source
	buf    bytestream.Buffer
	opts   Options

	md       *rowbinary.Metadata
	columns  []chtype.Column
	err      error
	finished bool
	rowCount int64
}

// NewRows creates a cursor over the source. No input is read until the
// first Next call.
func NewRows[T any](source bytestream.Source, opts Options) *Rows[T] {
	if opts.Compression != 0 {
		source = frame.NewDecoder(source)
	}
	return &Rows[T]{source: source, opts: opts}
}

// Columns returns the header columns once the header has been read,
// nil before that or in unvalidated mode.
func (c *Rows[T]) Columns() []chtype.Column { return c.columns }

// RowCount returns the number of rows decoded so far.
func (c *Rows[T]) RowCount() int64 { return c.rowCount }

// Next decodes the next row into *row. It returns io.EOF at the clean
// end of the stream. Errors are sticky: once Next fails, every later
// call fails the same way.
//
// Borrowed []byte fields in the row alias the cursor's buffer and are
// valid only until the next call to Next.
func (c *Rows[T]) Next(ctx context.Context, row *T) error {
	return c.next(ctx, row, rowbinary.DecodeRow)
}

// Collect reads the remaining rows into a slice with owned values.
func (c *Rows[T]) Collect(ctx context.Context) ([]T, error) {
	var rows []T
	for {
		var row T
		err := c.next(ctx, &row, rowbinary.DecodeRowCopy)
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return rows, err
		}
		rows = append(rows, row)
	}
}

func (c *Rows[T]) next(ctx context.Context, row *T, decode func(*chwire.Reader, *rowbinary.Metadata, any) error) error {
	if c.err != nil {
		return c.err
	}
	if c.finished {
		return io.EOF
	}
	if c.md == nil {
		if err := c.readHeader(ctx); err != nil {
			if err == io.EOF {
				c.finished = true
			} else {
				c.err = err
			}
			return err
		}
	}
	if err := c.decodeRowWith(ctx, row, decode); err != nil {
		if err == io.EOF {
			c.finished = true
		} else {
			c.err = err
		}
		return err
	}
	c.rowCount++
	return nil
}

// readHeader parses the names/types prelude (or skips it in
// unvalidated mode) and resolves T against it. An empty stream is a
// clean end with zero rows; a stream that ends inside the header is
// malformed.
func (c *Rows[T]) readHeader(ctx context.Context) error {
	if c.opts.DisableValidation {
		md, err := rowbinary.ResolveUnvalidated[T]()
		if err != nil {
			return err
		}
		c.md = md
		return nil
	}
	for {
		reader := chwire.NewReader(c.buf.Bytes())
		columns, err := chwire.ReadColumnsHeader(reader)
		if err == nil {
			var md *rowbinary.Metadata
			if c.opts.Positional {
				md, err = rowbinary.ResolvePositional[T](columns)
			} else {
				md, err = rowbinary.Resolve[T](columns)
			}
			if err != nil {
				return err
			}
			c.buf.Advance(reader.Pos())
			c.columns = columns
			c.md = md
			return nil
		}
		if err != chwire.ErrNotEnoughData {
			return fmt.Errorf("bad result header: %w", err)
		}
		if err := c.fill(ctx); err != nil {
			if err == io.EOF && c.buf.Len() > 0 {
				return fmt.Errorf("bad result header: stream ended %d bytes into it", c.buf.Len())
			}
			return err
		}
	}
}

// decodeRowWith runs the decode-or-accumulate loop: a row decode that
// runs out of buffered bytes is retried from the same offset after the
// next chunk arrives. A stream that ends with a partially consumed row
// is reported as a schema problem: when the host type disagrees with
// the actual row layout, reads drift off the row boundaries and the
// final row appears truncated.
func (c *Rows[T]) decodeRowWith(ctx context.Context, row *T, decode func(*chwire.Reader, *rowbinary.Metadata, any) error) error {
	for {
		reader := chwire.NewReader(c.buf.Bytes())
		err := decode(reader, c.md, row)
		if err == nil {
			c.buf.Advance(reader.Pos())
			return nil
		}
		if err != chwire.ErrNotEnoughData {
			return err
		}
		if err := c.fill(ctx); err != nil {
			if err == io.EOF && c.buf.Len() > 0 {
				return fmt.Errorf(
					"stream ended with %d bytes that do not form a row of %s: row type does not match the result schema",
					c.buf.Len(), c.md.RowType())
			}
			return err
		}
	}
}

// fill appends the next chunk to the buffer.
func (c *Rows[T]) fill(ctx context.Context) error {
	chunk, err := c.source.Next(ctx)
	if err != nil {
		return err
	}
	c.buf.Extend(chunk)
	return nil
}
