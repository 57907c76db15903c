// Copyright 2024 The LatticeArc Authors
// This file is part of latticearc.
//
// latticearc is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package command

import (
	"context"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/latticearc/latticearc/archiver"
	"github.com/latticearc/latticearc/ingest"
	"github.com/latticearc/latticearc/internal/metrics"
)

var recurseSource string

var recurseCmd = &cobra.Command{
	Use:   "recurse",
	Short: "Batch-import every bundle under a source root",
	RunE:  runRecurse,
}

func init() {
	recurseCmd.Flags().StringVar(&recurseSource, "source", "", `one of "full" or "delta"`)
	rootCmd.AddCommand(recurseCmd)
}

func runRecurse(cmd *cobra.Command, _ []string) error {
	rt, err := loadRuntime()
	if err != nil {
		return err
	}
	defer rt.log.Sync() //nolint:errcheck

	mset := metrics.New(prometheus.NewRegistry())

	a, err := archiver.Open(rt.fs, rt.cfg.Root, archiver.WithLogger(rt.log), archiver.WithMetrics(mset))
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	ctx := cmd.Context()
	switch recurseSource {
	case "full":
		return recurseBatch(ctx, rt.fs, rt.cfg.Sources.Full, false, func(c archiver.Conversation) error {
			_, err := a.ImportFull(c)
			return err
		})
	case "delta":
		if err := recurseBatch(ctx, rt.fs, rt.cfg.Sources.New, true, a.ImportNew); err != nil {
			return err
		}
		return recurseBatch(ctx, rt.fs, rt.cfg.Sources.Appending, true, a.ImportAppending)
	default:
		return errors.Errorf(`--source must be one of "full" or "delta" (got %q)`, recurseSource)
	}
}

func recurseBatch(ctx context.Context, fs afero.Fs, sourceRoot string, removeOnSuccess bool, importFn func(archiver.Conversation) error) error {
	convs, err := ingest.LoadBatch(ctx, fs, sourceRoot)
	if err != nil {
		return err
	}
	for _, conv := range convs {
		if err := importFn(conv); err != nil {
			return errors.Wrapf(err, "import %q", conv.Title)
		}
		if removeOnSuccess {
			if err := ingest.RemoveSource(fs, conv.SourceDir); err != nil {
				return err
			}
		}
	}
	return nil
}
