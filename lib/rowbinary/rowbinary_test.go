// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rowbinary

import (
	"bytes"
	"errors"
	"net/netip"
	"reflect"
	"strings"
	"testing"

	"github.com/bureau-foundation/chstream/lib/chtype"
	"github.com/bureau-foundation/chstream/lib/chwire"
	"github.com/google/uuid"
)

func columnSet(t *testing.T, pairs ...string) []chtype.Column {
	t.Helper()
	if len(pairs)%2 != 0 {
		t.Fatal("columnSet needs name/type pairs")
	}
	columns := make([]chtype.Column, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		parsed, err := chtype.Parse(pairs[i+1])
		if err != nil {
			t.Fatalf("Parse(%q): %v", pairs[i+1], err)
		}
		columns = append(columns, chtype.Column{Name: pairs[i], Type: parsed})
	}
	return columns
}

func roundTrip(t *testing.T, md *Metadata, in, out any) {
	t.Helper()
	w := chwire.NewWriter(0)
	if err := EncodeRow(w, md, in); err != nil {
		t.Fatalf("EncodeRow: %v", err)
	}
	r := chwire.NewReader(w.Bytes())
	if err := DecodeRowCopy(r, md, out); err != nil {
		t.Fatalf("DecodeRow: %v", err)
	}
	if r.Remaining() != 0 {
		t.Fatalf("decode left %d bytes", r.Remaining())
	}
}

type event struct {
	ID      uint64  `ch:"id"`
	Level   int8    `ch:"level"`
	Message string  `ch:"message"`
	Score   float64 `ch:"score"`
}

var eventColumns = []string{
	"id", "UInt64",
	"level", "Int8",
	"message", "String",
	"score", "Float64",
}

func TestRoundTripStruct(t *testing.T) {
	md, err := Resolve[event](columnSet(t, eventColumns...))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	in := event{ID: 42, Level: -3, Message: "hello", Score: 2.5}
	var out event
	roundTrip(t, md, in, &out)
	if out != in {
		t.Fatalf("out = %+v, want %+v", out, in)
	}
}

func TestNameKeyedReorder(t *testing.T) {
	// Wire order differs from field order; values must land in the
	// fields matching the column names.
	columns := columnSet(t,
		"message", "String",
		"score", "Float64",
		"id", "UInt64",
		"level", "Int8",
	)
	md, err := Resolve[event](columns)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	in := event{ID: 7, Level: 1, Message: "reordered", Score: -0.5}
	var out event
	roundTrip(t, md, in, &out)
	if out != in {
		t.Fatalf("out = %+v, want %+v", out, in)
	}

	// The wire bytes must follow column order, not field order.
	w := chwire.NewWriter(0)
	if err := EncodeRow(w, md, in); err != nil {
		t.Fatal(err)
	}
	r := chwire.NewReader(w.Bytes())
	message, err := r.ReadString()
	if err != nil || message != "reordered" {
		t.Fatalf("first wire value = %q, %v", message, err)
	}
}

func TestResolveCountMismatch(t *testing.T) {
	_, err := Resolve[event](columnSet(t, "id", "UInt64"))
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"id", "level", "message", "score"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestResolveUnknownColumn(t *testing.T) {
	columns := columnSet(t,
		"id", "UInt64",
		"level", "Int8",
		"message", "String",
		"points", "Float64",
	)
	_, err := Resolve[event](columns)
	if err == nil || !strings.Contains(err.Error(), "points") {
		t.Fatalf("error = %v, want mention of the unmatched column", err)
	}
}

func TestResolveSingleColumn(t *testing.T) {
	md, err := Resolve[uint64](columnSet(t, "count", "UInt64"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	in := uint64(99)
	var out uint64
	roundTrip(t, md, in, &out)
	if out != in {
		t.Fatalf("out = %d", out)
	}

	if _, err := Resolve[uint64](columnSet(t, "a", "UInt64", "b", "UInt64")); err == nil {
		t.Fatal("two columns into a scalar: expected error")
	}
}

func TestResolvePositional(t *testing.T) {
	type pair struct {
		First  string
		Second int32
	}
	columns := columnSet(t, "anything", "String", "whatever", "Int32")
	md, err := ResolvePositional[pair](columns)
	if err != nil {
		t.Fatalf("ResolvePositional: %v", err)
	}
	in := pair{First: "x", Second: -9}
	var out pair
	roundTrip(t, md, in, &out)
	if out != in {
		t.Fatalf("out = %+v", out)
	}

	if _, err := ResolvePositional[pair](columnSet(t, "a", "String")); err == nil {
		t.Fatal("arity mismatch: expected error")
	}
}

func TestMismatchReportedBeforeConsuming(t *testing.T) {
	type row struct {
		Value int64 `ch:"value"`
	}
	md, err := Resolve[row](columnSet(t, "value", "UInt32"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	r := chwire.NewReader([]byte{1, 2, 3, 4})
	var out row
	err = DecodeRow(r, md, &out)
	var mismatch *MismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("error = %v, want *MismatchError", err)
	}
	if mismatch.Column != "value" || mismatch.SchemaType != "UInt32" || mismatch.Requested != "int64" {
		t.Fatalf("mismatch = %+v", mismatch)
	}
	if r.Pos() != 0 {
		t.Fatalf("mismatch consumed %d bytes", r.Pos())
	}
}

func TestNullablePolarity(t *testing.T) {
	type row struct {
		Name *string `ch:"name"`
	}
	md, err := Resolve[row](columnSet(t, "name", "Nullable(String)"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	w := chwire.NewWriter(0)
	if err := EncodeRow(w, md, row{}); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(w.Bytes(), []byte{0x01}) {
		t.Fatalf("null encoding = %x, want 01", w.Bytes())
	}

	value := "v"
	w.Reset()
	if err := EncodeRow(w, md, row{Name: &value}); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(w.Bytes(), []byte{0x00, 0x01, 'v'}) {
		t.Fatalf("value encoding = %x", w.Bytes())
	}

	var out row
	if err := DecodeRow(chwire.NewReader([]byte{0x01}), md, &out); err != nil {
		t.Fatal(err)
	}
	if out.Name != nil {
		t.Fatal("expected nil")
	}
	if err := DecodeRow(chwire.NewReader([]byte{0x00, 0x01, 'v'}), md, &out); err != nil {
		t.Fatal(err)
	}
	if out.Name == nil || *out.Name != "v" {
		t.Fatalf("out = %+v", out)
	}
}

func TestContainers(t *testing.T) {
	type point struct {
		X float64
		Y float64
	}
	type row struct {
		Tags     []string          `ch:"tags"`
		Counts   map[string]uint32 `ch:"counts"`
		Position point             `ch:"position"`
		Ring     [][2]float64      `ch:"ring"`
		Matrix   [][]int32         `ch:"matrix"`
	}
	columns := columnSet(t,
		"tags", "Array(LowCardinality(String))",
		"counts", "Map(String, UInt32)",
		"position", "Point",
		"ring", "Ring",
		"matrix", "Array(Array(Int32))",
	)
	md, err := Resolve[row](columns)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	in := row{
		Tags:     []string{"a", "b", "c"},
		Counts:   map[string]uint32{"x": 1, "y": 2},
		Position: point{X: 1.5, Y: -2.5},
		Ring:     [][2]float64{{0, 0}, {1, 0}, {1, 1}},
		Matrix:   [][]int32{{1, 2}, {}, {3}},
	}
	var out row
	roundTrip(t, md, in, &out)
	if !reflect.DeepEqual(out, in) {
		t.Fatalf("out = %+v, want %+v", out, in)
	}
}

func TestFixedStringAndNetworkTypes(t *testing.T) {
	type row struct {
		Token  [4]byte    `ch:"token"`
		Ident  uuid.UUID  `ch:"ident"`
		V4     netip.Addr `ch:"v4"`
		V6     netip.Addr `ch:"v6"`
		Raw    []byte     `ch:"raw"`
		Halves [2]uint64  `ch:"halves"`
	}
	columns := columnSet(t,
		"token", "FixedString(4)",
		"ident", "UUID",
		"v4", "IPv4",
		"v6", "IPv6",
		"raw", "String",
		"halves", "UUID",
	)
	md, err := Resolve[row](columns)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	in := row{
		Token:  [4]byte{'a', 'b', 'c', 'd'},
		Ident:  uuid.MustParse("01876395-1fd7-4be9-ba4c-3528bbabf03c"),
		V4:     netip.MustParseAddr("192.168.1.10"),
		V6:     netip.MustParseAddr("2001:db8::1"),
		Raw:    []byte{0x00, 0xff, 0x10},
		Halves: [2]uint64{123, 456},
	}
	var out row
	roundTrip(t, md, in, &out)
	if !reflect.DeepEqual(out, in) {
		t.Fatalf("out = %+v, want %+v", out, in)
	}
}

func TestUUIDWireLayout(t *testing.T) {
	md, err := Resolve[uuid.UUID](columnSet(t, "u", "UUID"))
	if err != nil {
		t.Fatal(err)
	}
	id := uuid.MustParse("00112233-4455-6677-8899-aabbccddeeff")
	w := chwire.NewWriter(0)
	if err := EncodeRow(w, md, id); err != nil {
		t.Fatal(err)
	}
	// Two 64-bit little-endian words: each half of the textual form
	// appears byte-reversed.
	want := []byte{
		0x77, 0x66, 0x55, 0x44, 0x33, 0x22, 0x11, 0x00,
		0xff, 0xee, 0xdd, 0xcc, 0xbb, 0xaa, 0x99, 0x88,
	}
	if !bytes.Equal(w.Bytes(), want) {
		t.Fatalf("wire = %x, want %x", w.Bytes(), want)
	}
}

func TestIPv4WireLayout(t *testing.T) {
	md, err := Resolve[netip.Addr](columnSet(t, "ip", "IPv4"))
	if err != nil {
		t.Fatal(err)
	}
	w := chwire.NewWriter(0)
	if err := EncodeRow(w, md, netip.MustParseAddr("1.2.3.4")); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(w.Bytes(), []byte{0x04, 0x03, 0x02, 0x01}) {
		t.Fatalf("wire = %x", w.Bytes())
	}
}

func TestEnumAsString(t *testing.T) {
	type row struct {
		State string `ch:"state"`
	}
	md, err := Resolve[row](columnSet(t, "state", "Enum8('off' = 0, 'on' = 1, 'broken' = -1)"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	for _, state := range []string{"off", "on", "broken"} {
		var out row
		roundTrip(t, md, row{State: state}, &out)
		if out.State != state {
			t.Fatalf("out = %+v", out)
		}
	}

	// Unknown member name on encode.
	w := chwire.NewWriter(0)
	if err := EncodeRow(w, md, row{State: "nonsense"}); err == nil {
		t.Fatal("expected error")
	}

	// Undeclared discriminant on decode.
	var out row
	if err := DecodeRow(chwire.NewReader([]byte{0x7f}), md, &out); err == nil {
		t.Fatal("expected error")
	}
}

func TestInt128RoundTrip(t *testing.T) {
	type row struct {
		Big    chwire.Int128  `ch:"big"`
		Bigger chwire.UInt128 `ch:"bigger"`
	}
	md, err := Resolve[row](columnSet(t, "big", "Int128", "bigger", "UInt128"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	in := row{
		Big:    chwire.Int128FromInt64(-12345),
		Bigger: chwire.UInt128{Lo: 1, Hi: 2},
	}
	var out row
	roundTrip(t, md, in, &out)
	if out != in {
		t.Fatalf("out = %+v", out)
	}
}

func TestDecimalWidths(t *testing.T) {
	type row struct {
		Small  int32         `ch:"small"`
		Medium int64         `ch:"medium"`
		Large  chwire.Int128 `ch:"large"`
	}
	columns := columnSet(t,
		"small", "Decimal(9, 2)",
		"medium", "Decimal(18, 6)",
		"large", "Decimal(38, 10)",
	)
	md, err := Resolve[row](columns)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	in := row{Small: -123, Medium: 456789, Large: chwire.Int128FromInt64(-1)}
	var out row
	roundTrip(t, md, in, &out)
	if out != in {
		t.Fatalf("out = %+v", out)
	}

	// Width class must match the host width.
	type narrow struct {
		Large int32 `ch:"large"`
	}
	bad, err := Resolve[narrow](columnSet(t, "large", "Decimal(38, 10)"))
	if err != nil {
		t.Fatal(err)
	}
	w := chwire.NewWriter(0)
	var mismatch *MismatchError
	if err := EncodeRow(w, bad, narrow{}); !errors.As(err, &mismatch) {
		t.Fatalf("error = %v, want *MismatchError", err)
	}
}

func TestVariantRoundTrip(t *testing.T) {
	type row struct {
		V Variant `ch:"v"`
	}
	md, err := Resolve[row](columnSet(t, "v", "Variant(Int64, String, Array(UInt8))"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	cases := []row{
		{V: Variant{Index: 0, Value: int64(-5)}},
		{V: Variant{Index: 1, Value: "text"}},
		{V: Variant{Index: NullVariant}},
	}
	for _, in := range cases {
		var out row
		roundTrip(t, md, in, &out)
		if !reflect.DeepEqual(out, in) {
			t.Fatalf("out = %+v, want %+v", out, in)
		}
	}

	// Discriminant beyond the declared alternatives.
	var out row
	if err := DecodeRow(chwire.NewReader([]byte{0x03}), md, &out); err == nil {
		t.Fatal("expected error")
	}
}

func TestTupleArityMismatch(t *testing.T) {
	type pair struct {
		A int32
		B int32
	}
	type row struct {
		P pair `ch:"p"`
	}
	md, err := Resolve[row](columnSet(t, "p", "Tuple(Int32, Int32, Int32)"))
	if err != nil {
		t.Fatal(err)
	}
	w := chwire.NewWriter(0)
	var mismatch *MismatchError
	if err := EncodeRow(w, md, row{}); !errors.As(err, &mismatch) {
		t.Fatalf("encode error = %v, want *MismatchError", err)
	}
	var out row
	err = DecodeRow(chwire.NewReader(make([]byte, 12)), md, &out)
	if !errors.As(err, &mismatch) {
		t.Fatalf("decode error = %v, want *MismatchError", err)
	}
}

func TestNotEnoughDataRestartsCleanly(t *testing.T) {
	md, err := Resolve[event](columnSet(t, eventColumns...))
	if err != nil {
		t.Fatal(err)
	}
	in := event{ID: 1, Level: 2, Message: "partial reads", Score: 3.5}
	w := chwire.NewWriter(0)
	if err := EncodeRow(w, md, in); err != nil {
		t.Fatal(err)
	}
	full := w.Bytes()

	// Decode must fail with ErrNotEnoughData at every truncation
	// point and succeed when retried from the snapshot with the full
	// buffer.
	for cut := 0; cut < len(full); cut++ {
		r := chwire.NewReader(full[:cut])
		snapshot := r.Pos()
		var out event
		if err := DecodeRow(r, md, &out); !errors.Is(err, chwire.ErrNotEnoughData) {
			t.Fatalf("cut %d: error = %v, want ErrNotEnoughData", cut, err)
		}
		r.Reset(full)
		r.SetPos(snapshot)
		if err := DecodeRow(r, md, &out); err != nil {
			t.Fatalf("cut %d retry: %v", cut, err)
		}
		if out != in {
			t.Fatalf("cut %d retry: out = %+v", cut, out)
		}
	}
}

func TestBorrowedVersusCopiedBytes(t *testing.T) {
	type row struct {
		Blob []byte `ch:"blob"`
	}
	md, err := Resolve[row](columnSet(t, "blob", "String"))
	if err != nil {
		t.Fatal(err)
	}
	w := chwire.NewWriter(0)
	if err := EncodeRow(w, md, row{Blob: []byte("abc")}); err != nil {
		t.Fatal(err)
	}

	buf := bytes.Clone(w.Bytes())
	var borrowed row
	if err := DecodeRow(chwire.NewReader(buf), md, &borrowed); err != nil {
		t.Fatal(err)
	}
	buf[1] = 'z'
	if borrowed.Blob[0] != 'z' {
		t.Fatal("DecodeRow must alias the input buffer")
	}

	buf = bytes.Clone(w.Bytes())
	var owned row
	if err := DecodeRowCopy(chwire.NewReader(buf), md, &owned); err != nil {
		t.Fatal(err)
	}
	buf[1] = 'z'
	if owned.Blob[0] != 'a' {
		t.Fatal("DecodeRowCopy must copy the bytes")
	}
}

func TestUnvalidatedRoundTrip(t *testing.T) {
	md, err := ResolveUnvalidated[event]()
	if err != nil {
		t.Fatal(err)
	}
	if md.Validated() {
		t.Fatal("metadata must report validation disabled")
	}
	in := event{ID: 10, Level: -1, Message: "no schema", Score: 0.25}
	var out event
	roundTrip(t, md, in, &out)
	if out != in {
		t.Fatalf("out = %+v", out)
	}
}

func TestUnsupportedHostInt(t *testing.T) {
	type row struct {
		N int `ch:"n"`
	}
	md, err := Resolve[row](columnSet(t, "n", "Int64"))
	if err != nil {
		t.Fatal(err)
	}
	w := chwire.NewWriter(0)
	if err := EncodeRow(w, md, row{N: 1}); err == nil {
		t.Fatal("platform-width int: expected error")
	}
}
