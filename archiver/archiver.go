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

// Package archiver orchestrates import: it walks a pathwalker.Walker,
// emits blockstore.Store writes, and maintains the persistent cursor
// and title->{id,start,end} index that make new-conversation, append,
// and resume-after-interrupt placement possible.
//
// An Archiver holds an advisory single-writer lock for its entire
// lifetime (Open..Close); concurrent archivers against the same root
// are refused rather than left to silently corrupt shards.
package archiver

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/latticearc/latticearc/blockstore"
	"github.com/latticearc/latticearc/coordinate"
	"github.com/latticearc/latticearc/internal/index"
	"github.com/latticearc/latticearc/internal/metrics"
	"github.com/latticearc/latticearc/pathwalker"
)

// maxRetraceSteps bounds the append path's replay-from-start loop.
// The spec's design notes observe k (the number of steps to retrace)
// equals half the conversation's stored message count, ordinarily a
// handful to a few thousand; this bound exists only to turn a broken
// invariant (an index entry whose "end" the walker never reaches)
// into a returned error instead of a true infinite loop.
const maxRetraceSteps = 10_000_000

var (
	// ErrAlreadyRunning is returned by Open when another archiver
	// already holds the root's advisory lock.
	ErrAlreadyRunning = errors.New("archiver: store is locked by another run")
	// ErrAlreadyIndexed is returned by ImportNew when the title is
	// already present in the index.
	ErrAlreadyIndexed = errors.New("archiver: conversation title already indexed")
	// ErrNotIndexed is returned by ImportAppending when the title is
	// absent from the index.
	ErrNotIndexed = errors.New("archiver: conversation title not found in index")
	// ErrIDMismatch is returned by ImportAppending when the indexed id
	// does not match the conversation being appended.
	ErrIDMismatch = errors.New("archiver: conversation id does not match indexed id")
	// ErrRetraceFailed is returned by Import when an append's retrace
	// walk fails to reach the index's recorded end coordinate.
	ErrRetraceFailed = errors.New("archiver: retrace did not reach indexed end coordinate")
)

// Message is one role/content pair from a conversation bundle.
type Message struct {
	Role    string
	Content string
}

// Conversation is the input to Import: a parsed bundle ready for
// placement.
type Conversation struct {
	Title       string
	ID          string
	Messages    []Message
	Attachments []string
	// SourceDir is where attachment files named in Attachments live on
	// disk, passed through to blockstore.Store.Write.
	SourceDir string
}

// Archiver orchestrates conversation placement against one store
// root.
type Archiver struct {
	fs      afero.Fs
	root    string
	store   *blockstore.Store
	log     *zap.Logger
	metrics *metrics.Set
	locker  Locker

	idx    *index.Index
	cursor coordinate.Coordinate
}

// Option configures an Archiver at Open time.
type Option func(*Archiver)

// WithLogger overrides the zap.Logger used for placement and
// mode-transition logging. Defaults to zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(a *Archiver) { a.log = l }
}

// WithMetrics overrides the metrics.Set updated as blocks are placed.
// Defaults to an unregistered metrics.New(nil).
func WithMetrics(m *metrics.Set) Option {
	return func(a *Archiver) { a.metrics = m }
}

// WithLocker overrides the single-writer Locker. Defaults to a
// gofrs/flock lock on <root>/.archiver.lock; tests running against
// afero.NewMemMapFs should pass NewNoopLocker().
func WithLocker(l Locker) Option {
	return func(a *Archiver) { a.locker = l }
}

// WithStore overrides the blockstore.Store used for block placement.
// Defaults to a Store rooted at root sharing this Archiver's logger
// and wired so MissingAttachment conditions increment the metrics
// set. Passing a custom Store bypasses that wiring.
func WithStore(s *blockstore.Store) Option {
	return func(a *Archiver) { a.store = s }
}

// Open acquires the root's single-writer lock, loads the persisted
// index and cursor, and returns a ready-to-use Archiver. Callers must
// call Close to release the lock.
func Open(fs afero.Fs, root string, opts ...Option) (*Archiver, error) {
	a := &Archiver{
		fs:      fs,
		root:    root,
		log:     zap.NewNop(),
		metrics: metrics.New(nil),
		idx:     index.New(),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.locker == nil {
		a.locker = NewFlockLocker(lockPath(root))
	}
	locked, err := a.locker.TryLock()
	if err != nil {
		return nil, errors.Wrap(err, "acquire archiver lock")
	}
	if !locked {
		return nil, ErrAlreadyRunning
	}

	if a.store == nil {
		a.store = blockstore.New(fs, root,
			blockstore.WithLogger(a.log),
			blockstore.WithMissingAttachmentHook(func(coordinate.Coordinate, string) {
				a.metrics.MissingAttachments.Inc()
			}),
		)
	}

	if err := a.loadIndex(); err != nil {
		_ = a.locker.Unlock()
		return nil, err
	}
	if err := a.loadCursor(); err != nil {
		_ = a.locker.Unlock()
		return nil, err
	}
	a.metrics.CursorPosition.Set(float64(a.cursor.ToBase10()))

	return a, nil
}

// Close releases the archiver's single-writer lock. It does not
// persist anything further; Import already persists the cursor after
// every block and the index after every conversation.
func (a *Archiver) Close() error {
	return a.locker.Unlock()
}

// Cursor returns the archiver's current cursor coordinate.
func (a *Archiver) Cursor() coordinate.Coordinate { return a.cursor }

// Index returns the archiver's in-memory conversation index.
func (a *Archiver) Index() *index.Index { return a.idx }

// ImportFull is the "full" source mode: conv is imported only if its
// title is not already present in the index. It reports whether the
// import was skipped.
func (a *Archiver) ImportFull(conv Conversation) (skipped bool, err error) {
	if _, ok := a.idx.Get(conv.Title); ok {
		return true, nil
	}
	return false, a.Import(conv)
}

// ImportNew is the "new-chats delta" source mode: conv is expected to
// be genuinely unseen. It refuses (ErrAlreadyIndexed) rather than
// silently appending if the index already has this title.
func (a *Archiver) ImportNew(conv Conversation) error {
	if _, ok := a.idx.Get(conv.Title); ok {
		return errors.Wrapf(ErrAlreadyIndexed, "title %q", conv.Title)
	}
	return a.Import(conv)
}

// ImportAppending is the "appending delta" source mode: requires the
// title to already be indexed under a matching id.
func (a *Archiver) ImportAppending(conv Conversation) error {
	entry, ok := a.idx.Get(conv.Title)
	if !ok {
		return errors.Wrapf(ErrNotIndexed, "title %q", conv.Title)
	}
	if entry.ID != conv.ID {
		return errors.Wrapf(ErrIDMismatch, "title %q: indexed id %q, got %q", conv.Title, entry.ID, conv.ID)
	}
	return a.Import(conv)
}

// Import places conv's message pairs along its walk and updates the
// index and cursor. The placement mode (new vs. append) is determined
// by whether conv.Title is already indexed under conv.ID, exactly as
// spec'd; ImportFull/ImportNew/ImportAppending layer the three CLI
// source-mode policies on top of this. When appending, conv.Messages
// holds the whole conversation: the pairs already placed by the earlier
// import (one per retraced step) are skipped and only the rest are
// written, continuing from the recorded end.
func (a *Archiver) Import(conv Conversation) error {
	entry, appending := a.idx.Get(conv.Title)
	appending = appending && entry.ID == conv.ID

	var start coordinate.Coordinate
	var walker pathwalker.Walker
	var placed int

	if appending {
		s, err := coordinate.Parse(entry.Start)
		if err != nil {
			return errors.Wrapf(err, "index start for %q", conv.Title)
		}
		end, err := coordinate.Parse(entry.End)
		if err != nil {
			return errors.Wrapf(err, "index end for %q", conv.Title)
		}
		start = s
		walker = pathwalker.New(start, conv.ID)
		n, err := retrace(&walker, start, end)
		if err != nil {
			return errors.Wrapf(err, "retrace %q", conv.Title)
		}
		placed = n
		a.log.Info("appending to existing conversation",
			zap.String("title", conv.Title), zap.String("start", start.Format()), zap.String("end", end.Format()))
	} else {
		start = a.cursor
		walker = pathwalker.New(start, conv.ID)
		a.log.Info("placing new conversation",
			zap.String("title", conv.Title), zap.String("start", start.Format()))
	}

	current := walker.Coordinate()
	pairs := pairMessages(conv.Messages)
	if placed > len(pairs) {
		placed = len(pairs)
	}
	for _, p := range pairs[placed:] {
		universe := walker.Imag()
		block := blockstore.Block{
			User:        p.user,
			Assistant:   p.assistant,
			Universe:    universe,
			Attachments: matchingAttachments(conv.Attachments, p.user, p.assistant),
		}

		stored, err := a.store.Write(current, block, conv.SourceDir)
		if err != nil {
			return errors.Wrapf(err, "write block for %q at %s", conv.Title, current.Format())
		}
		if stored.Universe != universe {
			a.metrics.UniverseCollisions.Inc()
		}
		a.metrics.BlocksWritten.Inc()

		a.log.Info("placed block",
			zap.String("title", conv.Title), zap.String("coordinate", current.Format()), zap.Uint32("universe", stored.Universe))

		current = walker.Step()
		a.cursor = current
		if err := a.saveCursor(); err != nil {
			return err
		}
		a.metrics.CursorPosition.Set(float64(current.ToBase10()))
	}

	a.idx.Set(conv.Title, index.Entry{ID: conv.ID, Start: start.Format(), End: current.Format()})
	return a.saveIndex()
}

// retrace replays walker from start until its emitted coordinate
// equals end, leaving walker positioned exactly where a prior import
// of the same conversation left off. It returns the number of steps
// taken, which equals the number of pairs that prior import placed.
func retrace(walker *pathwalker.Walker, start, end coordinate.Coordinate) (int, error) {
	if start.Equal(end) {
		return 0, nil
	}
	for i := 0; i < maxRetraceSteps; i++ {
		if walker.Step().Equal(end) {
			return i + 1, nil
		}
	}
	return 0, errors.Wrapf(ErrRetraceFailed, "from %s toward %s", start.Format(), end.Format())
}

type pair struct {
	user      string
	assistant string
}

// pairMessages groups a message sequence into consecutive
// (user, assistant) pairs; a trailing unmatched message pairs with an
// empty assistant string.
func pairMessages(msgs []Message) []pair {
	if len(msgs) == 0 {
		return nil
	}
	pairs := make([]pair, 0, (len(msgs)+1)/2)
	for i := 0; i < len(msgs); i += 2 {
		p := pair{user: msgs[i].Content}
		if i+1 < len(msgs) {
			p.assistant = msgs[i+1].Content
		}
		pairs = append(pairs, p)
	}
	return pairs
}

// matchingAttachments returns the subset of all whose name appears as
// a substring of either text.
func matchingAttachments(all []string, texts ...string) []string {
	if len(all) == 0 {
		return nil
	}
	joined := strings.Join(texts, "\n")
	var out []string
	for _, name := range all {
		if strings.Contains(joined, name) {
			out = append(out, name)
		}
	}
	return out
}
