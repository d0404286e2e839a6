// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chwire

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/bureau-foundation/chstream/lib/chtype"
)

func TestUvarintVectors(t *testing.T) {
	cases := []struct {
		value   uint64
		encoded []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{255, []byte{0xff, 0x01}},
		{300, []byte{0xac, 0x02}},
		{624485, []byte{0xe5, 0x8e, 0x26}},
		{1<<56 - 1, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x7f}},
	}
	for _, tc := range cases {
		if got := AppendUvarint(nil, tc.value); !bytes.Equal(got, tc.encoded) {
			t.Errorf("AppendUvarint(%d) = %x, want %x", tc.value, got, tc.encoded)
		}
		if got := UvarintLen(tc.value); got != len(tc.encoded) {
			t.Errorf("UvarintLen(%d) = %d, want %d", tc.value, got, len(tc.encoded))
		}
		r := NewReader(tc.encoded)
		decoded, err := r.ReadUvarint()
		if err != nil {
			t.Fatalf("ReadUvarint(%x): %v", tc.encoded, err)
		}
		if decoded != tc.value {
			t.Errorf("ReadUvarint(%x) = %d, want %d", tc.encoded, decoded, tc.value)
		}
		if r.Remaining() != 0 {
			t.Errorf("ReadUvarint(%x) left %d bytes", tc.encoded, r.Remaining())
		}
	}
}

func TestUvarintTruncated(t *testing.T) {
	r := NewReader([]byte{0x80, 0x80})
	if _, err := r.ReadUvarint(); !errors.Is(err, ErrNotEnoughData) {
		t.Fatalf("error = %v, want ErrNotEnoughData", err)
	}
}

func TestUvarintOverlong(t *testing.T) {
	overlong := bytes.Repeat([]byte{0xff}, 10)
	overlong = append(overlong, 0x01)
	r := NewReader(overlong)
	if _, err := r.ReadUvarint(); !errors.Is(err, ErrBadUvarint) {
		t.Fatalf("error = %v, want ErrBadUvarint", err)
	}
}

func TestReaderFixedWidth(t *testing.T) {
	w := NewWriter(0)
	w.PutByte(0xab)
	w.PutUint16(0x0102)
	w.PutUint32(0x03040506)
	w.PutUint64(0x0708090a0b0c0d0e)
	w.PutUInt128(UInt128{Lo: 1, Hi: 2})
	w.PutInt128(Int128FromInt64(-1))

	r := NewReader(w.Bytes())
	if b, err := r.ReadByte(); err != nil || b != 0xab {
		t.Fatalf("ReadByte = %x, %v", b, err)
	}
	if v, err := r.ReadUint16(); err != nil || v != 0x0102 {
		t.Fatalf("ReadUint16 = %x, %v", v, err)
	}
	if v, err := r.ReadUint32(); err != nil || v != 0x03040506 {
		t.Fatalf("ReadUint32 = %x, %v", v, err)
	}
	if v, err := r.ReadUint64(); err != nil || v != 0x0708090a0b0c0d0e {
		t.Fatalf("ReadUint64 = %x, %v", v, err)
	}
	if v, err := r.ReadUInt128(); err != nil || v != (UInt128{Lo: 1, Hi: 2}) {
		t.Fatalf("ReadUInt128 = %+v, %v", v, err)
	}
	if v, err := r.ReadInt128(); err != nil || v != (Int128{Lo: math.MaxUint64, Hi: -1}) {
		t.Fatalf("ReadInt128 = %+v, %v", v, err)
	}
	if r.Remaining() != 0 {
		t.Fatalf("Remaining = %d", r.Remaining())
	}
}

func TestReaderLittleEndianLayout(t *testing.T) {
	w := NewWriter(0)
	w.PutUint32(0x01020304)
	if !bytes.Equal(w.Bytes(), []byte{0x04, 0x03, 0x02, 0x01}) {
		t.Fatalf("layout = %x", w.Bytes())
	}
}

func TestReaderPositionRestore(t *testing.T) {
	w := NewWriter(0)
	w.PutString("hello")
	full := w.Bytes()

	r := NewReader(full[:3])
	snapshot := r.Pos()
	if _, err := r.ReadString(); !errors.Is(err, ErrNotEnoughData) {
		t.Fatalf("expected ErrNotEnoughData")
	}
	r.Reset(full)
	r.SetPos(snapshot)
	s, err := r.ReadString()
	if err != nil || s != "hello" {
		t.Fatalf("ReadString = %q, %v", s, err)
	}
}

func TestReadBytesBorrows(t *testing.T) {
	buf := []byte{1, 2, 3, 4}
	r := NewReader(buf)
	p, err := r.ReadBytes(4)
	if err != nil {
		t.Fatal(err)
	}
	buf[0] = 9
	if p[0] != 9 {
		t.Fatal("ReadBytes must alias the input buffer")
	}
}

func TestColumnsHeaderRoundTrip(t *testing.T) {
	columns := []chtype.Column{
		{Name: "id", Type: chtype.UInt64},
		{Name: "payload", Type: mustType(t, "Map(String, Array(Nullable(Int32)))")},
		{Name: "when", Type: mustType(t, "DateTime64(3, 'UTC')")},
	}
	w := NewWriter(0)
	WriteColumnsHeader(w, columns)

	decoded, err := ReadColumnsHeader(NewReader(w.Bytes()))
	if err != nil {
		t.Fatalf("ReadColumnsHeader: %v", err)
	}
	if len(decoded) != len(columns) {
		t.Fatalf("columns = %d, want %d", len(decoded), len(columns))
	}
	for i := range columns {
		if decoded[i].Name != columns[i].Name || !decoded[i].Type.Equal(columns[i].Type) {
			t.Errorf("column %d = %s, want %s", i, decoded[i], columns[i])
		}
	}
}

func TestColumnsHeaderZeroColumns(t *testing.T) {
	if _, err := ReadColumnsHeader(NewReader([]byte{0x00})); err == nil {
		t.Fatal("zero columns: expected error")
	}
}

func TestColumnsHeaderTruncated(t *testing.T) {
	columns := []chtype.Column{{Name: "id", Type: chtype.UInt64}}
	w := NewWriter(0)
	WriteColumnsHeader(w, columns)
	full := w.Bytes()
	for cut := 0; cut < len(full); cut++ {
		if _, err := ReadColumnsHeader(NewReader(full[:cut])); !errors.Is(err, ErrNotEnoughData) {
			t.Fatalf("cut %d: error = %v, want ErrNotEnoughData", cut, err)
		}
	}
}

func mustType(t *testing.T, s string) *chtype.Type {
	t.Helper()
	parsed, err := chtype.Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q): %v", s, err)
	}
	return parsed
}
