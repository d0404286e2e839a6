// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chwire

// UInt128 is an unsigned 128-bit integer in two 64-bit halves. The wire
// layout is the low half followed by the high half, both little-endian.
type UInt128 struct {
	Lo uint64
	Hi uint64
}

// Int128 is a signed 128-bit integer in two's complement. Hi carries
// the sign.
type Int128 struct {
	Lo uint64
	Hi int64
}

// UInt128FromUint64 widens v to 128 bits.
func UInt128FromUint64(v uint64) UInt128 {
	return UInt128{Lo: v}
}

// Int128FromInt64 sign-extends v to 128 bits.
func Int128FromInt64(v int64) Int128 {
	hi := int64(0)
	if v < 0 {
		hi = -1
	}
	return Int128{Lo: uint64(v), Hi: hi}
}
