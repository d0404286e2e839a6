// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the standard CBOR encoding configuration for
// on-disk state files, most notably backfill checkpoints.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items.
// Same logical state always produces identical bytes, so a rewritten
// checkpoint that did not change compares equal byte-for-byte.
//
// For buffer-oriented operations (state files):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations:
//
//	encoder := codec.NewEncoder(w)
//	decoder := codec.NewDecoder(r)
//
// Unknown fields are ignored on decode, so a newer binary reads state
// written by an older one.
package codec
