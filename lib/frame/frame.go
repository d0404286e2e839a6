// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package frame implements the compressed block framing used by the
// native HTTP transport. Each frame is a 16-byte CityHash128 checksum
// followed by a 9-byte header (method byte, compressed size,
// uncompressed size, sizes little-endian) and the compressed payload.
// The checksum covers the header and payload; the compressed size
// counts the header plus the payload, not the checksum.
package frame

import (
	"encoding/binary"
	"fmt"

	"github.com/go-faster/city"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Method is the compression method byte of a frame header. The values
// are protocol constants.
type Method byte

const (
	LZ4  Method = 0x82
	Zstd Method = 0x90
)

func (m Method) String() string {
	switch m {
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(0x%02x)", byte(m))
	}
}

const (
	checksumSize = 16
	headerSize   = 9
	metaSize     = checksumSize + headerSize

	// maxCompressedSize caps the declared compressed size of a single
	// frame. Larger declarations are treated as corruption.
	maxCompressedSize = 1024 * 1024 * 1024
)

// CorruptFrameError reports a frame that cannot be decoded: a bad
// method byte, an oversized or truncated frame, a checksum mismatch,
// or a payload the method's decompressor rejects. It is never
// retriable.
type CorruptFrameError struct {
	Reason string
}

func (e *CorruptFrameError) Error() string {
	return "corrupt frame: " + e.Reason
}

func corruptf(format string, args ...any) error {
	return &CorruptFrameError{Reason: fmt.Sprintf(format, args...)}
}

// zstdEncoder and zstdDecoder are reused across calls; both are safe
// for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
	)
	if err != nil {
		panic("frame: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("frame: zstd decoder initialization failed: " + err.Error())
	}
}

// Compress wraps data in a single frame using the given method.
func Compress(method Method, data []byte) ([]byte, error) {
	var payload []byte
	switch method {
	case LZ4:
		payload = compressLZ4Block(data)
	case Zstd:
		payload = zstdEncoder.EncodeAll(data, nil)
	default:
		return nil, fmt.Errorf("unsupported compression method %s", method)
	}

	out := make([]byte, metaSize+len(payload))
	out[checksumSize] = byte(method)
	binary.LittleEndian.PutUint32(out[checksumSize+1:], uint32(headerSize+len(payload)))
	binary.LittleEndian.PutUint32(out[checksumSize+5:], uint32(len(data)))
	copy(out[metaSize:], payload)

	sum := city.CH128(out[checksumSize:])
	binary.LittleEndian.PutUint64(out[0:], sum.Low)
	binary.LittleEndian.PutUint64(out[8:], sum.High)
	return out, nil
}

// compressLZ4Block compresses data as one LZ4 block. For inputs the
// block compressor deems incompressible it emits a literal-only block,
// so the output is always a valid LZ4 block regardless of content.
func compressLZ4Block(data []byte) []byte {
	destination := make([]byte, lz4.CompressBlockBound(len(data)))
	written, err := lz4.CompressBlock(data, destination, nil)
	if err == nil && written > 0 {
		return destination[:written]
	}
	return appendLiteralBlock(destination[:0], data)
}

// appendLiteralBlock appends an LZ4 block consisting of a single
// literal run: a token carrying the literal length (with 255-valued
// extension bytes past 15) and the raw bytes.
func appendLiteralBlock(dst, literals []byte) []byte {
	n := len(literals)
	if n < 15 {
		dst = append(dst, byte(n)<<4)
	} else {
		dst = append(dst, 0xf0)
		for rest := n - 15; ; rest -= 255 {
			if rest < 255 {
				dst = append(dst, byte(rest))
				break
			}
			dst = append(dst, 255)
		}
	}
	return append(dst, literals...)
}

// decompress expands one frame payload that has already passed the
// checksum. uncompressedSize comes from the frame header and is
// verified against the actual output.
func decompress(method Method, payload []byte, uncompressedSize int) ([]byte, error) {
	switch method {
	case LZ4:
		destination := make([]byte, uncompressedSize)
		read, err := lz4.UncompressBlock(payload, destination)
		if err != nil {
			return nil, corruptf("lz4: %v", err)
		}
		if read != uncompressedSize {
			return nil, corruptf("lz4: got %d bytes, header declared %d", read, uncompressedSize)
		}
		return destination, nil

	case Zstd:
		destination := make([]byte, 0, uncompressedSize)
		result, err := zstdDecoder.DecodeAll(payload, destination)
		if err != nil {
			return nil, corruptf("zstd: %v", err)
		}
		if len(result) != uncompressedSize {
			return nil, corruptf("zstd: got %d bytes, header declared %d", len(result), uncompressedSize)
		}
		return result, nil

	default:
		return nil, corruptf("unknown method byte 0x%02x", byte(method))
	}
}
