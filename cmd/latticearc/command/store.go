// Copyright 2024 The LatticeArc Authors
// This file is part of latticearc.
//
// latticearc is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package command

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/latticearc/latticearc/archiver"
	"github.com/latticearc/latticearc/ingest"
	"github.com/latticearc/latticearc/internal/config"
	"github.com/latticearc/latticearc/internal/metrics"
)

var (
	storeSource string
	storeTitle  string
	storeID     string
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Import one conversation bundle from a source root",
	RunE:  runStore,
}

func init() {
	storeCmd.Flags().StringVar(&storeSource, "source", "", `one of "full", "new", or "appending"`)
	storeCmd.Flags().StringVar(&storeTitle, "title", "", "select the bundle with this title")
	storeCmd.Flags().StringVar(&storeID, "id", "", "select the bundle with this id")
	rootCmd.AddCommand(storeCmd)
}

func runStore(cmd *cobra.Command, _ []string) error {
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

	sourceRoot, removeOnSuccess, importFn, err := storeModeFor(a, rt.cfg.Sources)
	if err != nil {
		return err
	}

	if storeTitle == "" && storeID == "" {
		return errors.New("store requires --title or --id to select a bundle")
	}

	conv, err := ingest.FindBundle(rt.fs, sourceRoot, storeTitle, storeID)
	if err != nil {
		return err
	}
	if err := importFn(conv); err != nil {
		return err
	}
	if removeOnSuccess {
		return ingest.RemoveSource(rt.fs, conv.SourceDir)
	}
	return nil
}

// storeModeFor resolves --source into the bundle root to search, a
// post-success removal policy, and an import function, per spec.md
// §4.4's three source modes.
func storeModeFor(a *archiver.Archiver, sources config.SourceConfig) (string, bool, func(archiver.Conversation) error, error) {
	switch storeSource {
	case "full":
		return sources.Full, false, func(c archiver.Conversation) error {
			_, err := a.ImportFull(c)
			return err
		}, nil
	case "new":
		return sources.New, true, a.ImportNew, nil
	case "appending":
		return sources.Appending, true, a.ImportAppending, nil
	default:
		return "", false, nil, errors.Errorf(`--source must be one of "full", "new", or "appending" (got %q)`, storeSource)
	}
}
