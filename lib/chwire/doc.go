// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package chwire implements the primitive wire encoding shared by the
// RowBinary row codec and the compressed framing: LEB128 varints,
// little-endian fixed-width integers, length-prefixed strings, and the
// names/types header of RowBinaryWithNamesAndTypes.
//
// Reads go through a Reader with an explicit position. A read that runs
// past the buffered bytes returns ErrNotEnoughData and may leave the
// position anywhere; callers that need retry semantics snapshot the
// position first and restore it before reading again with more data.
package chwire
