// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chwire

import (
	"encoding/binary"
	"errors"
)

// ErrNotEnoughData reports that the buffered bytes end before the value
// being read does. It is retriable: the caller restores the reader
// position, obtains more input, and reads again.
var ErrNotEnoughData = errors.New("not enough data")

// Reader decodes wire primitives from a byte slice with an explicit
// position. It never copies: ReadBytes and ReadByteString return
// subslices aliasing the underlying buffer.
type Reader struct {
	buf []byte
	pos int
}

func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Reset points the reader at a new buffer with the position at zero.
func (r *Reader) Reset(buf []byte) {
	r.buf = buf
	r.pos = 0
}

// Pos returns the current position for a later SetPos.
func (r *Reader) Pos() int { return r.pos }

// SetPos rewinds or advances to an absolute position previously
// obtained from Pos.
func (r *Reader) SetPos(pos int) { r.pos = pos }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

func (r *Reader) ReadByte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, ErrNotEnoughData
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

// ReadBytes returns the next n bytes as a subslice of the underlying
// buffer. The slice is valid only until the buffer is recycled.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n > len(r.buf)-r.pos {
		return nil, ErrNotEnoughData
	}
	p := r.buf[r.pos : r.pos+n]
	r.pos += n
	return p, nil
}

func (r *Reader) ReadUint16() (uint16, error) {
	p, err := r.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(p), nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	p, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(p), nil
}

func (r *Reader) ReadUint64() (uint64, error) {
	p, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(p), nil
}

func (r *Reader) ReadUInt128() (UInt128, error) {
	lo, err := r.ReadUint64()
	if err != nil {
		return UInt128{}, err
	}
	hi, err := r.ReadUint64()
	if err != nil {
		return UInt128{}, err
	}
	return UInt128{Lo: lo, Hi: hi}, nil
}

func (r *Reader) ReadInt128() (Int128, error) {
	v, err := r.ReadUInt128()
	if err != nil {
		return Int128{}, err
	}
	return Int128{Lo: v.Lo, Hi: int64(v.Hi)}, nil
}

// ReadUvarint decodes a LEB128 varint. Sequences longer than 64 bits
// of payload return ErrBadUvarint; a sequence cut short by the end of
// the buffer returns ErrNotEnoughData.
func (r *Reader) ReadUvarint() (uint64, error) {
	var value uint64
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		value |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return value, nil
		}
		shift += 7
		if shift > 57 {
			return 0, ErrBadUvarint
		}
	}
}

// ReadByteString reads a LEB128 length prefix followed by that many
// bytes, returned as a borrowed subslice.
func (r *Reader) ReadByteString() ([]byte, error) {
	n, err := r.ReadUvarint()
	if err != nil {
		return nil, err
	}
	return r.ReadBytes(int(n))
}

// ReadString reads a length-prefixed string as an owned Go string.
func (r *Reader) ReadString() (string, error) {
	p, err := r.ReadByteString()
	if err != nil {
		return "", err
	}
	return string(p), nil
}
