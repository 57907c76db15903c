// Copyright 2024 The LatticeArc Authors
// This file is part of latticearc.
//
// latticearc is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// latticearc is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.

// Package blockstore persists coordinate-keyed Blocks to a sharded
// directory tree (see paths.go), handling universe disambiguation on
// collision and copying attachment files into per-coordinate folders.
//
// Filesystem access goes through afero.Fs so tests can run entirely
// against an in-memory filesystem; bucket files are rewritten
// atomically (write to a temp sibling, then rename) so a crash
// mid-write can never leave a bucket half-written.
package blockstore

import (
	"path/filepath"
	"sort"

	jsoniter "github.com/json-iterator/go"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/latticearc/latticearc/coordinate"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrCorruptBucket is returned by Write when the target bucket file
// exists but fails to parse as JSON. Per the design notes this is a
// hard failure on write (to avoid silently destroying sibling
// coordinates' data in the same shard) even though Read tolerates the
// same condition by treating it as an empty bucket.
var ErrCorruptBucket = errors.New("corrupt bucket file")

// Block is one message pair plus metadata stored at a coordinate.
type Block struct {
	User        string                     `json:"user"`
	Assistant   string                     `json:"assistant"`
	Universe    uint32                     `json:"universe"`
	Attachments []string                   `json:"attachments,omitempty"`
	Layers      map[string]jsoniter.RawMessage `json:"layers,omitempty"`
	Data        jsoniter.RawMessage        `json:"data,omitempty"`
	Connections []string                   `json:"connections,omitempty"`
}

// bucket is the on-disk shape of one bucket file: a mapping from full
// coordinate string to its ordered list of blocks.
type bucket map[string][]Block

// Store is a BlockStore: a sharded, content-addressed tree of bucket
// files rooted at Root.
type Store struct {
	fs   afero.Fs
	root string
	log  *zap.Logger

	cache *lru.Cache[string, bucket]

	onMissingAttachment func(coord coordinate.Coordinate, name string)
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithLogger overrides the zap.Logger used for warnings (corrupt
// reads, missing attachments). Defaults to zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithCacheSize overrides the number of parsed bucket files kept in
// the in-memory LRU cache. Defaults to 256.
func WithCacheSize(n int) Option {
	return func(s *Store) {
		c, err := lru.New[string, bucket](n)
		if err == nil {
			s.cache = c
		}
	}
}

// WithMissingAttachmentHook registers a callback invoked whenever
// copyAttachments finds a referenced attachment absent from its
// source directory (the non-fatal MissingAttachment condition), so
// callers can count it (e.g. as a prometheus metric) without the
// store needing to know about metrics itself.
func WithMissingAttachmentHook(fn func(coord coordinate.Coordinate, name string)) Option {
	return func(s *Store) { s.onMissingAttachment = fn }
}

// New constructs a Store rooted at root, using fs for all filesystem
// access (pass afero.NewOsFs() for a real disk-backed store, or
// afero.NewMemMapFs() in tests).
func New(fs afero.Fs, root string, opts ...Option) *Store {
	cache, _ := lru.New[string, bucket](256)
	s := &Store{
		fs:    fs,
		root:  root,
		log:   zap.NewNop(),
		cache: cache,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Write persists block at coord, reassigning its Universe on
// collision (the incoming universe becomes max(existing)+1) and
// copying any attachments it references from attachmentsSourceDir
// into the coordinate's attachments folder. It returns the block as
// actually stored (with its possibly-reassigned Universe) so callers
// can detect the reassignment.
//
// Write fails hard on ErrCorruptBucket rather than silently
// overwriting the shard's other coordinates.
func (s *Store) Write(coord coordinate.Coordinate, block Block, attachmentsSourceDir string) (Block, error) {
	path := bucketPath(s.root, coord)
	dir := filepath.Dir(path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return Block{}, errors.Wrapf(err, "mkdir %s", dir)
	}

	b, err := s.loadBucket(path, true)
	if err != nil {
		return Block{}, err
	}

	fullKey := coord.Format()
	existing := b[fullKey]

	block.Universe = resolveUniverse(existing, block.Universe)

	if attachmentsSourceDir != "" && len(block.Attachments) > 0 {
		if err := s.copyAttachments(coord, attachmentsSourceDir, block.Attachments); err != nil {
			return Block{}, err
		}
	}

	existing = append(existing, block)
	sort.Slice(existing, func(i, j int) bool { return existing[i].Universe < existing[j].Universe })
	b[fullKey] = existing

	if err := s.saveBucket(path, b); err != nil {
		return Block{}, err
	}
	return block, nil
}

// resolveUniverse returns universe unchanged unless it already
// appears among existing's universes, in which case it returns
// max(existing universes)+1 (spec's UniverseCollision handling).
func resolveUniverse(existing []Block, universe uint32) uint32 {
	var maxU uint32
	var found bool
	for _, e := range existing {
		if e.Universe == universe {
			found = true
		}
		if e.Universe > maxU {
			maxU = e.Universe
		}
	}
	if !found {
		return universe
	}
	return maxU + 1
}

// Read returns the ordered (ascending by universe) list of blocks
// stored at coord, or an empty slice if none exist or the bucket file
// is corrupt (logged as a warning, per spec's CorruptBucket-on-read
// tolerance).
func (s *Store) Read(coord coordinate.Coordinate) []Block {
	path := bucketPath(s.root, coord)
	b, err := s.loadBucket(path, false)
	if err != nil {
		s.log.Warn("corrupt bucket on read, treating as empty", zap.String("path", path), zap.Error(err))
		return nil
	}
	return b[coord.Format()]
}

// Exists reports whether Read(coord) would return a non-empty list.
func (s *Store) Exists(coord coordinate.Coordinate) bool {
	return len(s.Read(coord)) > 0
}

// AddLayer finds the block at coord with the given universe and sets
// layers[level] = payload, persisting the change. It is a no-op
// (logged) if no such universe exists at coord.
func (s *Store) AddLayer(coord coordinate.Coordinate, universe uint32, level string, payload jsoniter.RawMessage) error {
	path := bucketPath(s.root, coord)
	b, err := s.loadBucket(path, true)
	if err != nil {
		return err
	}
	fullKey := coord.Format()
	blocks := b[fullKey]
	for i := range blocks {
		if blocks[i].Universe == universe {
			if blocks[i].Layers == nil {
				blocks[i].Layers = map[string]jsoniter.RawMessage{}
			}
			blocks[i].Layers[level] = payload
			b[fullKey] = blocks
			return s.saveBucket(path, b)
		}
	}
	s.log.Warn("no such universe at coordinate, layer not added",
		zap.String("coordinate", fullKey), zap.Uint32("universe", universe))
	return nil
}

// copyAttachments copies each named file from sourceDir into coord's
// attachments folder, skipping files already present at the
// destination and warning (non-fatal, MissingAttachment) on files
// absent from sourceDir.
func (s *Store) copyAttachments(coord coordinate.Coordinate, sourceDir string, names []string) error {
	dstDir := attachmentsDir(s.root, coord)
	if err := s.fs.MkdirAll(dstDir, 0o755); err != nil {
		return errors.Wrapf(err, "mkdir %s", dstDir)
	}
	afs := &afero.Afero{Fs: s.fs}
	for _, name := range names {
		src := filepath.Join(sourceDir, name)
		dst := filepath.Join(dstDir, name)

		dstExists, err := afs.Exists(dst)
		if err != nil {
			return errors.Wrapf(err, "stat %s", dst)
		}
		if dstExists {
			continue
		}

		srcExists, err := afs.Exists(src)
		if err != nil {
			return errors.Wrapf(err, "stat %s", src)
		}
		if !srcExists {
			s.log.Warn("attachment not found, leaving reference in place", zap.String("source", src))
			if s.onMissingAttachment != nil {
				s.onMissingAttachment(coord, name)
			}
			continue
		}

		data, err := afs.ReadFile(src)
		if err != nil {
			return errors.Wrapf(err, "read %s", src)
		}
		if err := afs.WriteFile(dst, data, 0o644); err != nil {
			return errors.Wrapf(err, "write %s", dst)
		}
	}
	return nil
}

// loadBucket reads and parses the bucket file at path, consulting and
// populating the LRU cache. If the file is absent, it returns an
// empty bucket. If the file is present but fails to parse: for reads
// (hardFail=false) it logs a warning and returns an empty bucket and a
// nil error; for writes (hardFail=true) it returns ErrCorruptBucket.
func (s *Store) loadBucket(path string, hardFail bool) (bucket, error) {
	if b, ok := s.cache.Get(path); ok {
		// Return a shallow copy so callers mutating the map for a
		// write don't corrupt a cached read-only view concurrently
		// held elsewhere.
		cp := make(bucket, len(b))
		for k, v := range b {
			cp[k] = v
		}
		return cp, nil
	}

	afs := &afero.Afero{Fs: s.fs}
	exists, err := afs.Exists(path)
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", path)
	}
	if !exists {
		return bucket{}, nil
	}

	raw, err := afs.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}

	var b bucket
	if err := jsonAPI.Unmarshal(raw, &b); err != nil {
		if hardFail {
			return nil, errors.Wrapf(ErrCorruptBucket, "%s: %v", path, err)
		}
		s.log.Warn("corrupt bucket on read, treating as empty", zap.String("path", path), zap.Error(err))
		return bucket{}, nil
	}
	s.cache.Add(path, b)
	return b, nil
}

// saveBucket serializes b with top-level keys sorted ascending by
// string (spec's canonical ordering) and writes it atomically: a temp
// sibling file is written in full, then renamed over the destination.
// The temp file is not fsync'd before the rename.
func (s *Store) saveBucket(path string, b bucket) error {
	raw, err := jsonAPI.MarshalIndent(b, "", "    ")
	if err != nil {
		return errors.Wrapf(err, "marshal %s", path)
	}

	afs := &afero.Afero{Fs: s.fs}
	tmp := path + ".tmp"
	if err := afs.WriteFile(tmp, raw, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", tmp)
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, "rename %s -> %s", tmp, path)
	}
	s.cache.Add(path, b)
	return nil
}
