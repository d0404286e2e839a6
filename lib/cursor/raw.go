// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cursor

import (
	"context"
	"io"

	"github.com/bureau-foundation/chstream/lib/bytestream"
	"github.com/bureau-foundation/chstream/lib/frame"
)

// Raw is an opaque byte cursor: it passes the stream through without
// interpreting it, decompressing frames when asked. Used for textual
// response formats where the caller does its own parsing.
type Raw struct {
	source   bytestream.Source
	received int64
	decoded  int64
}

// NewRaw creates a raw cursor. With a non-zero compression method the
// stream is decompressed frame by frame.
func NewRaw(source bytestream.Source, compression frame.Method) *Raw {
	c := &Raw{}
	counted := &countingSource{inner: source, total: &c.received}
	if compression != 0 {
		c.source = frame.NewDecoder(counted)
	} else {
		c.source = counted
	}
	return c
}

// Next returns the next chunk of the (decompressed) stream, io.EOF at
// its end. The chunk is valid until the next call.
func (c *Raw) Next(ctx context.Context) ([]byte, error) {
	chunk, err := c.source.Next(ctx)
	if err != nil {
		return nil, err
	}
	c.decoded += int64(len(chunk))
	return chunk, nil
}

// Collect drains the stream into one owned buffer.
func (c *Raw) Collect(ctx context.Context) ([]byte, error) {
	var out []byte
	for {
		chunk, err := c.Next(ctx)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, chunk...)
	}
}

// ReceivedBytes returns the bytes consumed from the transport, before
// decompression.
func (c *Raw) ReceivedBytes() int64 { return c.received }

// DecodedBytes returns the bytes yielded to the caller, after
// decompression.
func (c *Raw) DecodedBytes() int64 { return c.decoded }

// countingSource counts transport-level bytes as they pass through.
type countingSource struct {
	inner bytestream.Source
	total *int64
}

func (s *countingSource) Next(ctx context.Context) ([]byte, error) {
	chunk, err := s.inner.Next(ctx)
	if err != nil {
		return nil, err
	}
	*s.total += int64(len(chunk))
	return chunk, nil
}
