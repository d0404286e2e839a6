// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chwire

import "errors"

// ErrBadUvarint reports a LEB128 sequence whose continuation bits run
// past the 64-bit range. It indicates corrupted input, never a short
// read.
var ErrBadUvarint = errors.New("malformed LEB128 varint")

// AppendUvarint appends the LEB128 encoding of v to dst.
func AppendUvarint(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

// UvarintLen returns the encoded size of v in bytes.
func UvarintLen(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}
