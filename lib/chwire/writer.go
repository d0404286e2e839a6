// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chwire

import "encoding/binary"

// Writer accumulates wire primitives in an append-grown buffer.
type Writer struct {
	buf []byte
}

func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

// Bytes returns the accumulated bytes. The slice aliases the writer's
// buffer and is invalidated by further writes or Reset.
func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) Len() int { return len(w.buf) }

// Reset empties the buffer, keeping its capacity.
func (w *Writer) Reset() { w.buf = w.buf[:0] }

func (w *Writer) PutByte(b byte) {
	w.buf = append(w.buf, b)
}

func (w *Writer) PutBytes(p []byte) {
	w.buf = append(w.buf, p...)
}

func (w *Writer) PutUint16(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

func (w *Writer) PutUint32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

func (w *Writer) PutUint64(v uint64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
}

func (w *Writer) PutUInt128(v UInt128) {
	w.PutUint64(v.Lo)
	w.PutUint64(v.Hi)
}

func (w *Writer) PutInt128(v Int128) {
	w.PutUint64(v.Lo)
	w.PutUint64(uint64(v.Hi))
}

func (w *Writer) PutUvarint(v uint64) {
	w.buf = AppendUvarint(w.buf, v)
}

func (w *Writer) PutString(s string) {
	w.PutUvarint(uint64(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *Writer) PutByteString(p []byte) {
	w.PutUvarint(uint64(len(p)))
	w.buf = append(w.buf, p...)
}
