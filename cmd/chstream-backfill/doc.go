// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Chstream-backfill copies span rows from a source table into a
// destination table over the database's HTTP interface, one partition
// at a time. Progress is checkpointed to disk after every batch, so an
// interrupted run resumes from where it stopped instead of starting
// over.
package main
