// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bureau-foundation/chstream/lib/bytestream"
	"github.com/bureau-foundation/chstream/lib/config"
	"github.com/bureau-foundation/chstream/lib/cursor"
	"github.com/bureau-foundation/chstream/lib/insert"
	"github.com/google/uuid"
)

// span is one row of the source and destination tables. Field order
// matches the table's column order; name matching makes that a
// convenience rather than a requirement.
type span struct {
	ProjectID  string            `ch:"project_id"`
	TraceID    uuid.UUID         `ch:"trace_id"`
	SpanID     uuid.UUID         `ch:"span_id"`
	Name       string            `ch:"name"`
	Kind       string            `ch:"kind"`
	StartTime  int64             `ch:"start_time"`
	DurationNS int64             `ch:"duration_ns"`
	Tags       []string          `ch:"tags"`
	Attributes map[string]string `ch:"attributes"`
	StatusCode int8              `ch:"status_code"`
}

// spanColumns is the SELECT list, in span field order.
var spanColumns = []string{
	"project_id", "trace_id", "span_id", "name", "kind",
	"start_time", "duration_ns", "tags", "attributes", "status_code",
}

// pageQuery builds the keyset-paginated SELECT for one batch. Rows are
// ordered by (project_id, start_time, span_id); a non-zero cursor
// restricts to rows strictly after it.
func pageQuery(bf config.BackfillConfig, cur cursorState, limit int) string {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(spanColumns, ", "))
	b.WriteString(" FROM ")
	b.WriteString(bf.SourceTable)
	b.WriteString(" WHERE _partition_id = ")
	b.WriteString(quoteString(bf.Partition))
	if !cur.isZero() {
		fmt.Fprintf(&b, " AND (project_id, start_time, span_id) > (%s, fromUnixTimestamp64Nano(%d), toUUID(%s))",
			quoteString(cur.ProjectID), cur.StartNanos, quoteString(cur.SpanID))
	}
	b.WriteString(" ORDER BY project_id, start_time, span_id")
	fmt.Fprintf(&b, " LIMIT %d", limit)
	b.WriteString(" FORMAT RowBinaryWithNamesAndTypes")
	return b.String()
}

// backfill drives the copy: page from the source, insert into the
// destination, checkpoint, repeat until a short page.
type backfill struct {
	cfg    *config.Config
	client *client
	schema *insert.SchemaCache
	cp     *checkpoint
	log    *slog.Logger
	dryRun bool
}

func (b *backfill) run(ctx context.Context) error {
	bf := b.cfg.Backfill

	remaining, err := b.client.rowCount(ctx, fmt.Sprintf(
		"SELECT count() FROM %s WHERE _partition_id = %s",
		bf.SourceTable, quoteString(bf.Partition)))
	if err != nil {
		return fmt.Errorf("counting source rows: %w", err)
	}
	b.log.Info("starting backfill",
		"partition", bf.Partition,
		"source_rows", remaining,
		"already_processed", b.cp.state.RowsProcessed)
	if remaining == 0 {
		b.log.Warn("partition is empty, nothing to do")
		return nil
	}

	started := time.Now()
	var copied int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch, err := b.fetchBatch(ctx)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			break
		}

		if !b.dryRun {
			if err := b.insertBatch(ctx, batch); err != nil {
				return err
			}
		}

		last := batch[len(batch)-1]
		next := cursorState{
			ProjectID:  last.ProjectID,
			StartNanos: last.StartTime,
			SpanID:     last.SpanID.String(),
		}
		if err := b.cp.advance(next, int64(len(batch))); err != nil {
			return err
		}
		copied += int64(len(batch))
		b.log.Info("batch done",
			"rows", len(batch),
			"total", b.cp.state.RowsProcessed,
			"rate_per_sec", int64(float64(copied)/time.Since(started).Seconds()+0.5))

		if len(batch) < bf.BatchSize {
			break
		}
	}

	b.log.Info("backfill complete",
		"partition", bf.Partition,
		"rows_this_run", copied,
		"rows_total", b.cp.state.RowsProcessed,
		"elapsed", time.Since(started).Round(time.Second).String())
	return nil
}

func (b *backfill) fetchBatch(ctx context.Context) ([]span, error) {
	sql := pageQuery(b.cfg.Backfill, b.cp.state.Cursor, b.cfg.Backfill.BatchSize)
	body, err := b.client.query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("querying source: %w", err)
	}
	defer body.Close()

	rows := cursor.NewRows[span](bytestream.NewReaderSource(body),
		cursor.Options{Compression: b.client.responseCompression()})
	batch, err := rows.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("decoding source rows: %w", err)
	}
	return batch, nil
}

func (b *backfill) insertBatch(ctx context.Context, batch []span) error {
	schema, err := b.schema.Get(ctx, b.cfg.Backfill.DestinationTable)
	if err != nil {
		return err
	}
	ins, err := insert.New[span](ctx, b.client, b.cfg.Backfill.DestinationTable, schema, insert.Options{
		Compression: b.client.method,
		Logger:      b.log,
	})
	if err != nil {
		return err
	}
	defer ins.Close()

	for _, row := range batch {
		if err := ins.Write(row); err != nil {
			return fmt.Errorf("inserting into %s: %w", b.cfg.Backfill.DestinationTable, err)
		}
	}
	if err := ins.End(); err != nil {
		return fmt.Errorf("inserting into %s: %w", b.cfg.Backfill.DestinationTable, err)
	}
	return nil
}
