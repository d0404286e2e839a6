// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package chtype models the ClickHouse column type system as a closed
// tree of type nodes, with a parser for the textual type strings that
// appear in RowBinaryWithNamesAndTypes headers and in system.columns.
//
// The String method of a Type is the exact inverse of Parse: for any
// type string accepted by the server, Parse followed by String
// reproduces the input. This round-trip property matters because type
// strings appear verbatim in schema-mismatch diagnostics.
package chtype
