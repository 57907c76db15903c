// Copyright 2024 The LatticeArc Authors
// This file is part of latticearc.
//
// latticearc is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package archiver

import "github.com/gofrs/flock"

// Locker is the single-writer gate an Archiver acquires for the
// duration of a run. The production implementation wraps an advisory
// gofrs/flock file lock; tests inject a no-op Locker since gofrs/flock
// talks to the real OS filesystem and archiver tests run against
// afero.NewMemMapFs.
type Locker interface {
	TryLock() (bool, error)
	Unlock() error
}

type flockLocker struct {
	fl *flock.Flock
}

// NewFlockLocker returns a Locker backed by an advisory flock on path.
func NewFlockLocker(path string) Locker {
	return &flockLocker{fl: flock.New(path)}
}

func (l *flockLocker) TryLock() (bool, error) { return l.fl.TryLock() }
func (l *flockLocker) Unlock() error          { return l.fl.Unlock() }

// noopLocker always succeeds; used by tests and by callers that have
// already arranged single-writer access some other way.
type noopLocker struct{}

// NewNoopLocker returns a Locker that never contends.
func NewNoopLocker() Locker { return noopLocker{} }

func (noopLocker) TryLock() (bool, error) { return true, nil }
func (noopLocker) Unlock() error          { return nil }
