// Copyright 2024 The LatticeArc Authors
// This file is part of latticearc.
//
// latticearc is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package command

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/latticearc/latticearc/archiver"
	"github.com/latticearc/latticearc/blockstore"
	"github.com/latticearc/latticearc/internal/metrics"
	"github.com/latticearc/latticearc/restorer"
)

var (
	restoreTitle string
	restoreStep  bool
)

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Reconstruct a conversation's message sequence from the store",
	RunE:  runRestore,
}

func init() {
	restoreCmd.Flags().StringVar(&restoreTitle, "title", "", "title of the conversation to restore")
	restoreCmd.Flags().BoolVar(&restoreStep, "step", false, "print one block at a time instead of all at once")
	rootCmd.AddCommand(restoreCmd)
}

func runRestore(cmd *cobra.Command, _ []string) error {
	rt, err := loadRuntime()
	if err != nil {
		return err
	}
	defer rt.log.Sync() //nolint:errcheck

	idx, err := archiver.LoadIndex(rt.fs, rt.cfg.Root)
	if err != nil {
		return err
	}
	store := blockstore.New(rt.fs, rt.cfg.Root, blockstore.WithLogger(rt.log))
	r := restorer.New(store, idx, restorer.WithLogger(rt.log), restorer.WithMetrics(metrics.New(prometheus.NewRegistry())))

	out := cmd.OutOrStdout()

	if restoreStep {
		next, err := r.RestoreStream(restoreTitle)
		if err != nil {
			return err
		}
		for {
			blk, ok, err := next()
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			printBlock(out, blk)
		}
	}

	blocks, err := r.RestoreAll(restoreTitle)
	if err != nil {
		return err
	}
	for _, blk := range blocks {
		printBlock(out, blk)
	}
	return nil
}

func printBlock(w io.Writer, blk blockstore.Block) {
	fmt.Fprintf(w, "user: %s\nassistant: %s\n\n", blk.User, blk.Assistant)
}
