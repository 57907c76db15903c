// Copyright 2024 The LatticeArc Authors
// This file is part of latticearc.
//
// latticearc is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package command builds the cobra CLI tree: store, restore, recurse,
// browse.
package command

import (
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/latticearc/latticearc/internal/config"
	"github.com/latticearc/latticearc/internal/logging"
)

var (
	configPath string
	rootFlag   string
)

var rootCmd = &cobra.Command{
	Use:           "latticearc",
	Short:         "Archive and restore exported chat conversations in a coordinate-addressed store",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "latticearc.toml", "path to latticearc.toml")
	rootCmd.PersistentFlags().StringVar(&rootFlag, "root", "", "store root (overrides the config file's root)")
}

// Execute runs the CLI and returns its error, if any, for main to map
// to an exit code. Cobra's own usage/error printing is silenced so
// main controls all user-facing error output.
func Execute() error {
	return rootCmd.Execute()
}

// runtime bundles what nearly every subcommand needs: the resolved
// config, a filesystem, and a logger.
type runtime struct {
	cfg config.Config
	fs  afero.Fs
	log *zap.Logger
}

func loadRuntime() (*runtime, error) {
	fs := afero.NewOsFs()
	cfg, err := config.Load(fs, configPath)
	if err != nil {
		return nil, err
	}
	if rootFlag != "" {
		cfg.Root = rootFlag
	}

	log, err := logging.New(cfg.LogLevel, cfg.Development)
	if err != nil {
		return nil, err
	}

	return &runtime{cfg: cfg, fs: fs, log: log}, nil
}
