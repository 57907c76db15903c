// Copyright 2024 The LatticeArc Authors
// This file is part of latticearc.
//
// latticearc is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package archiver

import (
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/latticearc/latticearc/coordinate"
	"github.com/latticearc/latticearc/internal/index"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

func cursorPath(root string) string { return filepath.Join(root, "current_coord.json") }
func indexPath(root string) string  { return filepath.Join(root, "conversation_index.json") }
func lockPath(root string) string   { return filepath.Join(root, ".archiver.lock") }

type cursorFile struct {
	Current string `json:"current"`
}

// loadCursor reads the persisted cursor, defaulting to the zero
// coordinate if the file is absent (spec's "missing file means
// 0 0 0 0 0 0").
func (a *Archiver) loadCursor() error {
	path := cursorPath(a.root)
	afs := &afero.Afero{Fs: a.fs}
	exists, err := afs.Exists(path)
	if err != nil {
		return errors.Wrapf(err, "stat %s", path)
	}
	if !exists {
		a.cursor = coordinate.Zero()
		return nil
	}
	raw, err := afs.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read %s", path)
	}
	var cf cursorFile
	if err := jsonAPI.Unmarshal(raw, &cf); err != nil {
		return errors.Wrapf(err, "parse %s", path)
	}
	c, err := coordinate.Parse(cf.Current)
	if err != nil {
		return errors.Wrapf(err, "%s: invalid coordinate %q", path, cf.Current)
	}
	a.cursor = c
	return nil
}

// saveCursor persists the archiver's current cursor.
func (a *Archiver) saveCursor() error {
	path := cursorPath(a.root)
	raw, err := jsonAPI.Marshal(cursorFile{Current: a.cursor.Format()})
	if err != nil {
		return errors.Wrap(err, "marshal cursor")
	}
	afs := &afero.Afero{Fs: a.fs}
	if err := afs.WriteFile(path, raw, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}

// loadIndex reads the persisted conversation index, leaving a.idx
// empty if the file is absent.
func (a *Archiver) loadIndex() error {
	path := indexPath(a.root)
	afs := &afero.Afero{Fs: a.fs}
	exists, err := afs.Exists(path)
	if err != nil {
		return errors.Wrapf(err, "stat %s", path)
	}
	if !exists {
		return nil
	}
	raw, err := afs.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read %s", path)
	}
	if err := a.idx.UnmarshalJSON(raw); err != nil {
		return errors.Wrapf(err, "parse %s", path)
	}
	return nil
}

// LoadIndex reads a store root's persisted conversation index without
// acquiring the root's single-writer lock, for read-only callers
// (Restorer, the `browse` CLI command) that have no need to hold it.
func LoadIndex(fs afero.Fs, root string) (*index.Index, error) {
	idx := index.New()
	path := indexPath(root)
	afs := &afero.Afero{Fs: fs}
	exists, err := afs.Exists(path)
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", path)
	}
	if !exists {
		return idx, nil
	}
	raw, err := afs.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	if err := idx.UnmarshalJSON(raw); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return idx, nil
}

// saveIndex persists the conversation index, sorted case-insensitively
// by title (index.Index's own MarshalJSON ordering).
func (a *Archiver) saveIndex() error {
	path := indexPath(a.root)
	raw, err := a.idx.MarshalJSON()
	if err != nil {
		return errors.Wrap(err, "marshal index")
	}
	afs := &afero.Afero{Fs: a.fs}
	if err := afs.WriteFile(path, raw, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}
