// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/chstream/lib/config"
	"github.com/bureau-foundation/chstream/lib/insert"
)

func main() {
	if err := run(); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "interrupted; progress is checkpointed, rerun to resume")
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "chstream-backfill: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var partition string
	var batchSize int
	var dryRun bool
	var verbose bool

	flagSet := pflag.NewFlagSet("chstream-backfill", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to the YAML config file (default: $CHSTREAM_CONFIG)")
	flagSet.StringVar(&partition, "partition", "", "partition to backfill, overriding the config file")
	flagSet.IntVar(&batchSize, "batch-size", 0, "rows per page, overriding the config file")
	flagSet.BoolVar(&dryRun, "dry-run", false, "read and count rows without inserting")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if partition != "" {
		cfg.Backfill.Partition = partition
	}
	if batchSize > 0 {
		cfg.Backfill.BatchSize = batchSize
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ch, err := newClient(cfg.Server)
	if err != nil {
		return err
	}

	cp, err := loadCheckpoint(cfg.Backfill.CheckpointPath, cfg.Backfill.Partition, log)
	if err != nil {
		return err
	}
	if cp.state.RowsProcessed > 0 {
		log.Info("resuming from checkpoint",
			"rows_processed", cp.state.RowsProcessed,
			"cursor_project", cp.state.Cursor.ProjectID)
	}

	// The checkpoint is written after every batch, so an interrupt
	// loses at most one batch of work.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	job := &backfill{
		cfg:    cfg,
		client: ch,
		schema: insert.NewSchemaCache(ch),
		cp:     cp,
		log:    log,
		dryRun: dryRun,
	}
	return job.run(ctx)
}
