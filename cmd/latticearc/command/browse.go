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
	"strings"

	"github.com/spf13/cobra"

	"github.com/latticearc/latticearc/archiver"
	"github.com/latticearc/latticearc/internal/index"
)

var browseQuery string

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "List indexed conversation titles matching a query",
	RunE:  runBrowse,
}

func init() {
	browseCmd.Flags().StringVar(&browseQuery, "query", "", "case-insensitive substring to match against titles")
	rootCmd.AddCommand(browseCmd)
}

func runBrowse(cmd *cobra.Command, _ []string) error {
	rt, err := loadRuntime()
	if err != nil {
		return err
	}
	defer rt.log.Sync() //nolint:errcheck

	idx, err := archiver.LoadIndex(rt.fs, rt.cfg.Root)
	if err != nil {
		return err
	}

	needle := strings.ToLower(browseQuery)
	out := cmd.OutOrStdout()
	idx.Each(func(title string, e index.Entry) {
		if needle == "" || strings.Contains(strings.ToLower(title), needle) {
			fmt.Fprintf(out, "%s\t%s..%s\n", title, e.Start, e.End)
		}
	})
	return nil
}
