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

// Package restorer replays a conversation's walk to reconstruct its
// original block sequence: given a title, it looks up the walker's
// seed in the index, replays pathwalker.Step, reads blocks from the
// blockstore at each visited coordinate, and selects the one whose
// universe matches the walker's current imaginary register.
package restorer

import (
	"go.uber.org/zap"

	"github.com/pkg/errors"

	"github.com/latticearc/latticearc/blockstore"
	"github.com/latticearc/latticearc/coordinate"
	"github.com/latticearc/latticearc/internal/index"
	"github.com/latticearc/latticearc/internal/metrics"
	"github.com/latticearc/latticearc/pathwalker"
)

var (
	// ErrUnknownTitle is returned when the title is absent from the
	// index.
	ErrUnknownTitle = errors.New("restorer: unknown conversation title")
	// ErrWalkDesync is returned when the bucket at a visited
	// coordinate is non-empty but none of its blocks carry the
	// universe the walker expects there — evidence that a universe
	// reassignment (collision handling) broke the recorded trail,
	// distinguishing this from a legitimate end-of-conversation (an
	// empty bucket).
	ErrWalkDesync = errors.New("restorer: walker desynchronized from stored universes")
)

// Restorer replays conversations out of one blockstore.Store, keyed
// by one in-memory index.Index.
type Restorer struct {
	store   *blockstore.Store
	idx     *index.Index
	log     *zap.Logger
	metrics *metrics.Set
}

// Option configures a Restorer at construction time.
type Option func(*Restorer)

// WithLogger overrides the zap.Logger used for warnings. Defaults to
// zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(r *Restorer) { r.log = l }
}

// WithMetrics overrides the metrics.Set updated as blocks are
// restored. Defaults to an unregistered metrics.New(nil).
func WithMetrics(m *metrics.Set) Option {
	return func(r *Restorer) { r.metrics = m }
}

// New constructs a Restorer over store, looking titles up in idx.
func New(store *blockstore.Store, idx *index.Index, opts ...Option) *Restorer {
	r := &Restorer{
		store:   store,
		idx:     idx,
		log:     zap.NewNop(),
		metrics: metrics.New(nil),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RestoreAll returns title's full ordered block sequence.
func (r *Restorer) RestoreAll(title string) ([]blockstore.Block, error) {
	walk, err := r.newWalk(title)
	if err != nil {
		return nil, err
	}
	var out []blockstore.Block
	for {
		blk, ok, err := walk.next()
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, blk)
	}
}

// RestoreStream returns an iterator over title's block sequence,
// yielding one block per call. The iterator returns (block, true, nil)
// for each emitted block, (_, false, nil) once the conversation ends
// legitimately, and (_, false, err) if ErrWalkDesync is detected.
func (r *Restorer) RestoreStream(title string) (func() (blockstore.Block, bool, error), error) {
	walk, err := r.newWalk(title)
	if err != nil {
		return nil, err
	}
	return walk.next, nil
}

// walk holds the replay state shared by RestoreAll and RestoreStream.
type walk struct {
	r         *Restorer
	walker    pathwalker.Walker
	coord     coordinate.Coordinate
	end       coordinate.Coordinate
	universe  uint32
	done      bool
}

func (r *Restorer) newWalk(title string) (*walk, error) {
	entry, ok := r.idx.Get(title)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownTitle, "title %q", title)
	}
	start, err := coordinate.Parse(entry.Start)
	if err != nil {
		return nil, errors.Wrapf(err, "index start for %q", title)
	}
	end, err := coordinate.Parse(entry.End)
	if err != nil {
		return nil, errors.Wrapf(err, "index end for %q", title)
	}
	w := pathwalker.New(start, entry.ID)
	return &walk{
		r:        r,
		walker:   w,
		coord:    start,
		end:      end,
		universe: w.Imag(),
	}, nil
}

func (w *walk) next() (blockstore.Block, bool, error) {
	if w.done {
		return blockstore.Block{}, false, nil
	}

	blocks := w.r.store.Read(w.coord)
	blk, found := selectByUniverse(blocks, w.universe)
	if !found {
		w.done = true
		if len(blocks) > 0 {
			return blockstore.Block{}, false, errors.Wrapf(ErrWalkDesync,
				"coordinate %s: expected universe %d, found none among %d block(s)",
				w.coord.Format(), w.universe, len(blocks))
		}
		return blockstore.Block{}, false, nil
	}

	w.r.metrics.BlocksRestored.Inc()

	if w.coord.Equal(w.end) {
		w.done = true
	} else {
		w.coord = w.walker.Step()
		w.universe = w.walker.Imag()
	}
	return blk, true, nil
}

func selectByUniverse(blocks []blockstore.Block, universe uint32) (blockstore.Block, bool) {
	for _, b := range blocks {
		if b.Universe == universe {
			return b, true
		}
	}
	return blockstore.Block{}, false
}
