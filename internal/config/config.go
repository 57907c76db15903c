// Copyright 2024 The LatticeArc Authors
// This file is part of latticearc.
//
// latticearc is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package config loads latticearc.toml: the store root, the three
// ingest source roots, and logging verbosity. CLI flags override
// whatever the file sets.
package config

import (
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Config is the parsed shape of latticearc.toml.
type Config struct {
	// Root is the BlockStore root: <root>/data, <root>/conversation_index.json,
	// <root>/current_coord.json, <root>/.archiver.lock all live here.
	Root string `toml:"root"`

	// Sources holds the three ingest source roots from spec.md §4.4.
	Sources SourceConfig `toml:"sources"`

	// LogLevel is one of "debug", "info", "warn", "error". Defaults to
	// "info" if empty.
	LogLevel string `toml:"log_level"`

	// Development selects zap's human-readable development encoder
	// instead of the production JSON encoder.
	Development bool `toml:"development"`
}

// SourceConfig holds the three bundle source roots ingest reads from.
type SourceConfig struct {
	// Full is a directory of every known bundle; only titles absent
	// from the index are imported from it.
	Full string `toml:"full"`
	// New is a directory of bundles for conversations not yet seen;
	// each is imported as new, and its folder removed on success.
	New string `toml:"new"`
	// Appending is a directory of bundles appending to conversations
	// already in the index; each folder is removed on success.
	Appending string `toml:"appending"`
}

// Default returns the zero-value configuration a fresh store root
// would use absent any config file: root "." and info-level
// production logging.
func Default() Config {
	return Config{Root: ".", LogLevel: "info"}
}

// Load reads and parses path as TOML, filling in Default() for any
// field the file leaves unset. A missing file is not an error; Load
// returns Default() unchanged.
func Load(fs afero.Fs, path string) (Config, error) {
	cfg := Default()

	afs := &afero.Afero{Fs: fs}
	exists, err := afs.Exists(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "stat %s", path)
	}
	if !exists {
		return cfg, nil
	}

	raw, err := afs.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "read %s", path)
	}

	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse %s", path)
	}
	if cfg.Root == "" {
		cfg.Root = "."
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return cfg, nil
}
