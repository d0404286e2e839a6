// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bytestream abstracts a byte stream delivered in chunks of
// arbitrary, meaningless sizes. Consumers that need framing buffer
// whatever a chunk leaves incomplete; no alignment between chunk
// boundaries and protocol boundaries is ever assumed.
package bytestream

import (
	"context"
	"io"
)

// Source yields successive chunks of a byte stream. The returned slice
// is valid only until the next call to Next. End of stream is io.EOF
// with no chunk; a Source never returns a non-empty chunk together
// with an error.
type Source interface {
	Next(ctx context.Context) ([]byte, error)
}

// SliceSource replays a fixed sequence of chunks. Used in tests and
// for re-reading buffered response bodies.
type SliceSource struct {
	chunks [][]byte
}

func NewSliceSource(chunks ...[]byte) *SliceSource {
	return &SliceSource{chunks: chunks}
}

func (s *SliceSource) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.chunks) == 0 {
		return nil, io.EOF
	}
	chunk := s.chunks[0]
	s.chunks = s.chunks[1:]
	return chunk, nil
}

// ReaderSource adapts an io.Reader, typically an HTTP response body.
// Each Next reuses a single internal block.
type ReaderSource struct {
	reader io.Reader
	block  []byte
}

const readerBlockSize = 64 * 1024

func NewReaderSource(reader io.Reader) *ReaderSource {
	return &ReaderSource{reader: reader, block: make([]byte, readerBlockSize)}
}

func (s *ReaderSource) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for {
		n, err := s.reader.Read(s.block)
		if n > 0 {
			return s.block[:n], nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// Buffer is an accumulating window over a stream. Bytes arrive via
// Extend, are consumed from the front via Advance, and are never
// dropped in between: a decode attempt that fails for lack of data can
// be retried against the same window after another Extend.
type Buffer struct {
	buf   []byte
	start int
}

// Bytes returns the unconsumed window. The slice is invalidated by
// Extend and Advance.
func (b *Buffer) Bytes() []byte { return b.buf[b.start:] }

// Len returns the number of unconsumed bytes.
func (b *Buffer) Len() int { return len(b.buf) - b.start }

// Extend appends a chunk to the window. Consumed front bytes are
// compacted away first so the buffer does not grow with the total
// stream size.
func (b *Buffer) Extend(chunk []byte) {
	if b.start > 0 {
		n := copy(b.buf, b.buf[b.start:])
		b.buf = b.buf[:n]
		b.start = 0
	}
	b.buf = append(b.buf, chunk...)
}

// Advance marks the first n bytes of the window as consumed.
func (b *Buffer) Advance(n int) {
	if n < 0 || n > b.Len() {
		panic("bytestream: advance out of range")
	}
	b.start += n
}

// Reset empties the buffer, keeping its capacity.
func (b *Buffer) Reset() {
	b.buf = b.buf[:0]
	b.start = 0
}
