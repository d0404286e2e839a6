// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package frame

import (
	"context"
	"encoding/binary"
	"io"

	"github.com/bureau-foundation/chstream/lib/bytestream"
	"github.com/go-faster/city"
)

// Decoder reads a stream of frames from a chunked source and yields
// their uncompressed payloads. It makes no assumption about where
// chunk boundaries fall: a frame may arrive split at any offset,
// including inside the checksum or header.
//
// Decoder itself satisfies bytestream.Source, so decompression can be
// layered under any consumer of a chunked stream.
type Decoder struct {
	source bytestream.Source
	buf    bytestream.Buffer
}

func NewDecoder(source bytestream.Source) *Decoder {
	return &Decoder{source: source}
}

// Next returns the uncompressed payload of the next frame, io.EOF on a
// clean end of stream, or a *CorruptFrameError. A stream that ends in
// the middle of a frame is corrupt, not exhausted.
func (d *Decoder) Next(ctx context.Context) ([]byte, error) {
	if err := d.fill(ctx, metaSize); err != nil {
		return nil, err
	}
	meta := d.buf.Bytes()[:metaSize]
	method := Method(meta[checksumSize])
	compressedSize := binary.LittleEndian.Uint32(meta[checksumSize+1:])
	uncompressedSize := binary.LittleEndian.Uint32(meta[checksumSize+5:])

	switch method {
	case LZ4, Zstd:
	default:
		return nil, corruptf("unknown method byte 0x%02x", byte(method))
	}
	if compressedSize > maxCompressedSize {
		return nil, corruptf("declared compressed size %d exceeds limit", compressedSize)
	}
	if compressedSize < headerSize {
		return nil, corruptf("declared compressed size %d is smaller than the header", compressedSize)
	}

	totalSize := checksumSize + int(compressedSize)
	if err := d.fill(ctx, totalSize); err != nil {
		return nil, err
	}
	framed := d.buf.Bytes()[:totalSize]

	sum := city.CH128(framed[checksumSize:])
	storedLow := binary.LittleEndian.Uint64(framed[0:])
	storedHigh := binary.LittleEndian.Uint64(framed[8:])
	if sum.Low != storedLow || sum.High != storedHigh {
		return nil, corruptf("checksum mismatch")
	}

	data, err := decompress(method, framed[metaSize:], int(uncompressedSize))
	if err != nil {
		return nil, err
	}
	d.buf.Advance(totalSize)
	return data, nil
}

// fill extends the internal buffer until it holds at least need bytes.
// A clean end of stream with a partially buffered frame is reported as
// corruption; with an empty buffer it is io.EOF.
func (d *Decoder) fill(ctx context.Context, need int) error {
	for d.buf.Len() < need {
		chunk, err := d.source.Next(ctx)
		if err == io.EOF {
			if d.buf.Len() > 0 {
				return corruptf("stream ended %d bytes into a frame", d.buf.Len())
			}
			return io.EOF
		}
		if err != nil {
			return err
		}
		d.buf.Extend(chunk)
	}
	return nil
}
