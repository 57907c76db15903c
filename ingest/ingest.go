// Copyright 2024 The LatticeArc Authors
// This file is part of latticearc.
//
// latticearc is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package ingest reads conversation bundles off disk — one directory
// per conversation, holding exactly one JSON file plus sibling
// attachment files — and turns them into archiver.Conversation values
// ready for Archiver.Import. Production of bundles is external to
// this repo; ingest only consumes the on-disk shape.
package ingest

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/latticearc/latticearc/archiver"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// maxConcurrentLoads bounds how many bundle directories LoadBatch
// reads in parallel; the placement walk that follows is strictly
// sequential regardless (spec.md's concurrency model), this only
// parallelizes the read-ahead.
const maxConcurrentLoads = 8

// ErrMissingSource is returned when a source root or bundle directory
// does not exist.
var ErrMissingSource = errors.New("ingest: source directory does not exist")

// wireMessage is one message as it appears in a bundle's JSON file.
type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// wireBundle is a conversation bundle's JSON shape (spec.md §4.6). Only
// title, id, messages[*].content, and attachments[*] are interpreted;
// the rest is accepted but ignored.
type wireBundle struct {
	Title        string        `json:"title"`
	ID           string        `json:"id"`
	CreateTime   float64       `json:"create_time"`
	Model        string        `json:"model"`
	MessageCount int           `json:"message_count"`
	Attachments  []string      `json:"attachments"`
	Messages     []wireMessage `json:"messages"`
}

// LoadBundle reads the single JSON file inside dir and returns the
// archiver.Conversation it describes, with SourceDir set to dir so
// Archiver.Import can resolve attachment files relative to it.
func LoadBundle(fs afero.Fs, dir string) (archiver.Conversation, error) {
	afs := &afero.Afero{Fs: fs}
	exists, err := afs.DirExists(dir)
	if err != nil {
		return archiver.Conversation{}, errors.Wrapf(err, "stat %s", dir)
	}
	if !exists {
		return archiver.Conversation{}, errors.Wrapf(ErrMissingSource, "%s", dir)
	}

	entries, err := afs.ReadDir(dir)
	if err != nil {
		return archiver.Conversation{}, errors.Wrapf(err, "read dir %s", dir)
	}
	var jsonName string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			jsonName = e.Name()
			break
		}
	}
	if jsonName == "" {
		return archiver.Conversation{}, errors.Wrapf(ErrMissingSource, "%s: no bundle JSON file", dir)
	}

	raw, err := afs.ReadFile(filepath.Join(dir, jsonName))
	if err != nil {
		return archiver.Conversation{}, errors.Wrapf(err, "read %s", jsonName)
	}

	var wb wireBundle
	if err := jsonAPI.Unmarshal(raw, &wb); err != nil {
		return archiver.Conversation{}, errors.Wrapf(err, "parse %s", jsonName)
	}

	msgs := make([]archiver.Message, len(wb.Messages))
	for i, m := range wb.Messages {
		msgs[i] = archiver.Message{Role: m.Role, Content: m.Content}
	}

	return archiver.Conversation{
		Title:       wb.Title,
		ID:          wb.ID,
		Messages:    msgs,
		Attachments: wb.Attachments,
		SourceDir:   dir,
	}, nil
}

// LoadBatch reads every bundle directory directly under sourceRoot,
// concurrently (bounded by maxConcurrentLoads), and returns the
// resulting conversations ordered by directory name — deterministic
// and stable regardless of how the concurrent reads complete, so
// callers can hand them to Archiver.Import strictly in that order.
func LoadBatch(ctx context.Context, fs afero.Fs, sourceRoot string) ([]archiver.Conversation, error) {
	afs := &afero.Afero{Fs: fs}
	exists, err := afs.DirExists(sourceRoot)
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", sourceRoot)
	}
	if !exists {
		return nil, errors.Wrapf(ErrMissingSource, "%s", sourceRoot)
	}

	entries, err := afs.ReadDir(sourceRoot)
	if err != nil {
		return nil, errors.Wrapf(err, "read dir %s", sourceRoot)
	}

	var dirNames []string
	for _, e := range entries {
		if e.IsDir() {
			dirNames = append(dirNames, e.Name())
		}
	}
	sort.Strings(dirNames)

	out := make([]archiver.Conversation, len(dirNames))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLoads)
	for i, name := range dirNames {
		i, name := i, name
		g.Go(func() error {
			conv, err := LoadBundle(fs, filepath.Join(sourceRoot, name))
			if err != nil {
				return errors.Wrapf(err, "bundle %s", name)
			}
			out[i] = conv
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// FindBundle scans sourceRoot's immediate subdirectories for the first
// bundle whose title and/or id match (whichever of the two is
// non-empty is checked; both must match if both are given). It backs
// the CLI's `store --title=...|--id=...` single-bundle selection.
func FindBundle(fs afero.Fs, sourceRoot, title, id string) (archiver.Conversation, error) {
	afs := &afero.Afero{Fs: fs}
	exists, err := afs.DirExists(sourceRoot)
	if err != nil {
		return archiver.Conversation{}, errors.Wrapf(err, "stat %s", sourceRoot)
	}
	if !exists {
		return archiver.Conversation{}, errors.Wrapf(ErrMissingSource, "%s", sourceRoot)
	}

	entries, err := afs.ReadDir(sourceRoot)
	if err != nil {
		return archiver.Conversation{}, errors.Wrapf(err, "read dir %s", sourceRoot)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(sourceRoot, e.Name())
		conv, err := LoadBundle(fs, dir)
		if err != nil {
			continue
		}
		if title != "" && conv.Title != title {
			continue
		}
		if id != "" && conv.ID != id {
			continue
		}
		return conv, nil
	}
	return archiver.Conversation{}, errors.Wrapf(ErrMissingSource,
		"no bundle under %s matching title=%q id=%q", sourceRoot, title, id)
}

// RemoveSource deletes a bundle's source directory, used after a
// successful delta import (new-chats or appending) per spec.md §4.4's
// "on success remove its source folder".
func RemoveSource(fs afero.Fs, dir string) error {
	if err := fs.RemoveAll(dir); err != nil {
		return errors.Wrapf(err, "remove %s", dir)
	}
	return nil
}
