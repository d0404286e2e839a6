// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bureau-foundation/chstream/lib/codec"
)

// cursorState is the keyset position of the last copied row. The
// source is paged in (project_id, start_time, span_id) order; resuming
// means selecting rows strictly after this tuple.
type cursorState struct {
	ProjectID  string `cbor:"project_id"`
	StartNanos int64  `cbor:"start_nanos"`
	SpanID     string `cbor:"span_id"`
}

func (c cursorState) isZero() bool {
	return c == cursorState{}
}

// checkpointState is the on-disk progress record.
type checkpointState struct {
	Partition     string      `cbor:"partition"`
	Cursor        cursorState `cbor:"cursor"`
	RowsProcessed int64       `cbor:"rows_processed"`
	UpdatedAtUnix int64       `cbor:"updated_at"`
}

// checkpoint persists backfill progress with an atomic
// write-and-rename, so a crash mid-save leaves the previous state
// intact.
type checkpoint struct {
	path  string
	state checkpointState
}

// loadCheckpoint reads the checkpoint at path, or starts fresh when
// the file does not exist or records a different partition.
func loadCheckpoint(path, partition string, log *slog.Logger) (*checkpoint, error) {
	cp := &checkpoint{path: path, state: checkpointState{Partition: partition}}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cp, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading checkpoint %s: %w", path, err)
	}

	var state checkpointState
	if err := codec.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing checkpoint %s: %w", path, err)
	}
	if state.Partition != partition {
		log.Warn("checkpoint is for a different partition, starting fresh",
			"checkpoint_partition", state.Partition, "partition", partition)
		return cp, nil
	}

	cp.state = state
	return cp, nil
}

// advance records progress past a batch and persists it.
func (cp *checkpoint) advance(cursor cursorState, rows int64) error {
	cp.state.Cursor = cursor
	cp.state.RowsProcessed += rows
	cp.state.UpdatedAtUnix = time.Now().Unix()
	return cp.save()
}

func (cp *checkpoint) save() error {
	data, err := codec.Marshal(cp.state)
	if err != nil {
		return fmt.Errorf("encoding checkpoint: %w", err)
	}

	dir := filepath.Dir(cp.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating checkpoint directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".checkpoint-*")
	if err != nil {
		return fmt.Errorf("creating checkpoint temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing checkpoint temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), cp.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing checkpoint: %w", err)
	}
	return nil
}
