// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package insert implements the streaming insert pipeline: rows are
// validated and encoded synchronously into a buffer, and full chunks
// are handed to a background task that drives the transport. Only the
// hand-off is concurrent; an Insert itself has a single caller.
package insert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/bureau-foundation/chstream/lib/chtype"
	"github.com/bureau-foundation/chstream/lib/chwire"
	"github.com/bureau-foundation/chstream/lib/frame"
	"github.com/bureau-foundation/chstream/lib/rowbinary"
)

const (
	// bufferSize is the encode buffer capacity; a chunk is handed
	// off before the buffer would outgrow it.
	bufferSize = 256 * 1024

	// minChunkSize is the fill level that triggers a hand-off,
	// leaving headroom so a typical row still fits.
	minChunkSize = bufferSize - 2048
)

// ErrTimedOut reports that a chunk hand-off or the final
// acknowledgment wait exceeded its configured timeout. It is distinct
// from schema and transport errors: the insert's fate on the server is
// unknown.
var ErrTimedOut = errors.New("insert timed out")

// Transport streams one insert body to the server. Do must consume
// chunks until the channel closes or ctx is cancelled, then return the
// server's verdict. Each chunk slice is owned by the transport.
type Transport interface {
	Do(ctx context.Context, table string, chunks <-chan []byte) error
}

// Options configure an Insert.
type Options struct {
	// Compression wraps each chunk in a compression frame. Zero
	// sends plain bytes.
	Compression frame.Method

	// SendTimeout bounds each chunk hand-off; zero means no limit.
	SendTimeout time.Duration

	// EndTimeout bounds the wait for the server acknowledgment in
	// End; zero means no limit.
	EndTimeout time.Duration

	// DisableValidation sends headerless RowBinary and skips schema
	// checking. The table schema is then not consulted at all.
	DisableValidation bool

	// Logger receives background task diagnostics. Defaults to
	// slog.Default.
	Logger *slog.Logger
}

// Insert streams rows of T into one table. Write and End must be
// called from a single goroutine. An Insert that is not ended must be
// closed, otherwise the background task leaks.
type Insert[T any] struct {
	table string
	md    *rowbinary.Metadata
	opts  Options
	log   *slog.Logger

	writer *chwire.Writer
	chunks chan []byte
	done   chan error
	cancel context.CancelFunc

	err      error
	ended    bool
	rowCount int64
	sent     int64
}

// New starts an insert into table. With validation enabled (the
// default) the row type is resolved against the table schema and a
// names/types header is written, so the server checks the column set;
// schema comes from a SchemaCache. The background task inherits ctx:
// cancelling it aborts the insert.
func New[T any](ctx context.Context, transport Transport, table string, schema []TableColumn, opts Options) (*Insert[T], error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	var md *rowbinary.Metadata
	var columns []chtype.Column
	var err error
	if opts.DisableValidation {
		md, err = rowbinary.ResolveUnvalidated[T]()
	} else {
		columns, err = insertColumns(reflect.TypeFor[T](), schema)
		if err == nil {
			md, err = rowbinary.Resolve[T](columns)
		}
	}
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	ins := &Insert[T]{
		table:  table,
		md:     md,
		opts:   opts,
		log:    opts.Logger,
		writer: chwire.NewWriter(bufferSize),
		chunks: make(chan []byte, 1),
		done:   make(chan error, 1),
		cancel: cancel,
	}
	if columns != nil {
		chwire.WriteColumnsHeader(ins.writer, columns)
	}
	go func() {
		ins.done <- transport.Do(ctx, table, ins.chunks)
	}()
	return ins, nil
}

// Write validates and encodes one row. Any error aborts the whole
// insert: the background task is cancelled and every later call
// returns the same error.
func (ins *Insert[T]) Write(row T) error {
	if ins.err != nil {
		return ins.err
	}
	if ins.ended {
		return fmt.Errorf("insert into %q already ended", ins.table)
	}
	if err := rowbinary.EncodeRow(ins.writer, ins.md, row); err != nil {
		ins.abort(err)
		return err
	}
	ins.rowCount++
	if ins.writer.Len() >= minChunkSize {
		if err := ins.flush(); err != nil {
			ins.abort(err)
			return err
		}
	}
	return nil
}

// End flushes the remaining buffer, closes the body, and waits for the
// server acknowledgment. A zero-row insert still sends the header,
// which the server accepts as an empty insert.
func (ins *Insert[T]) End() error {
	if ins.err != nil {
		return ins.err
	}
	if ins.ended {
		return fmt.Errorf("insert into %q already ended", ins.table)
	}
	ins.ended = true
	if ins.writer.Len() > 0 {
		if err := ins.flush(); err != nil {
			ins.abort(err)
			return err
		}
	}
	close(ins.chunks)

	var timeout <-chan time.Time
	if ins.opts.EndTimeout > 0 {
		timer := time.NewTimer(ins.opts.EndTimeout)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case err := <-ins.done:
		if err != nil {
			ins.err = err
			ins.cancel()
			return err
		}
		ins.cancel()
		return nil
	case <-timeout:
		ins.abort(ErrTimedOut)
		return ErrTimedOut
	}
}

// Close aborts the insert if it was not ended. Safe to call after End.
func (ins *Insert[T]) Close() error {
	if !ins.ended && ins.err == nil {
		ins.abort(errors.New("insert closed without End"))
		ins.log.Warn("insert aborted on close", "table", ins.table, "rows_buffered", ins.rowCount)
	}
	ins.cancel()
	return nil
}

// RowCount returns the number of rows written so far.
func (ins *Insert[T]) RowCount() int64 { return ins.rowCount }

// SentBytes returns the number of body bytes handed to the transport.
func (ins *Insert[T]) SentBytes() int64 { return ins.sent }

func (ins *Insert[T]) abort(err error) {
	ins.err = err
	ins.cancel()
}

// flush hands the buffered bytes to the background task, compressing
// them first when configured.
func (ins *Insert[T]) flush() error {
	chunk := ins.writer.Bytes()
	var owned []byte
	if ins.opts.Compression != 0 {
		compressed, err := frame.Compress(ins.opts.Compression, chunk)
		if err != nil {
			return err
		}
		owned = compressed
	} else {
		owned = append([]byte(nil), chunk...)
	}
	ins.writer.Reset()

	var timeout <-chan time.Time
	if ins.opts.SendTimeout > 0 {
		timer := time.NewTimer(ins.opts.SendTimeout)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case ins.chunks <- owned:
		ins.sent += int64(len(owned))
		return nil
	case err := <-ins.done:
		// The transport failed before consuming the body.
		if err == nil {
			err = errors.New("transport finished before the insert body was complete")
		}
		return err
	case <-timeout:
		return ErrTimedOut
	}
}
