// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package rowbinary encodes and decodes RowBinary rows against Go host
// types bound by reflection.
//
// A Metadata is resolved once per (host type, column set) pair and
// reused for every row. Resolution binds struct fields to columns by
// name (`ch` tag, falling back to the field name) or, in positional
// mode, by order alone. Scalars, slices, and maps bind to
// single-column rows.
//
// Decoding and encoding walk the host value and the column types in
// lock step. Every step first checks that the schema type can be
// represented by the host type the row requests; an incompatibility is
// reported as a *MismatchError naming the column, the schema type, and
// the requested representation, before any byte of the mismatching
// value is consumed. When a Metadata is resolved without a schema the
// checks are skipped and the host types alone drive the wire format.
package rowbinary
