// Copyright 2024 The LatticeArc Authors
// This file is part of latticearc.
//
// latticearc is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Command latticearc is the archiver/restorer CLI front-end.
package main

import (
	"fmt"
	"os"

	goerrors "errors"

	"github.com/latticearc/latticearc/archiver"
	"github.com/latticearc/latticearc/blockstore"
	"github.com/latticearc/latticearc/cmd/latticearc/command"
	"github.com/latticearc/latticearc/coordinate"
	"github.com/latticearc/latticearc/ingest"
	"github.com/latticearc/latticearc/restorer"
)

func main() {
	err := command.Execute()
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, "latticearc:", err)
	os.Exit(exitCodeFor(err))
}

// exitCodeFor maps the sentinel errors spec.md §6 calls out by name to
// distinct nonzero exit codes; anything else exits 1.
func exitCodeFor(err error) int {
	switch {
	case goerrors.Is(err, coordinate.ErrInvalidCoordinate):
		return 2
	case goerrors.Is(err, ingest.ErrMissingSource):
		return 3
	case goerrors.Is(err, restorer.ErrUnknownTitle):
		return 4
	case goerrors.Is(err, archiver.ErrAlreadyRunning):
		return 5
	case goerrors.Is(err, restorer.ErrWalkDesync):
		return 6
	case goerrors.Is(err, blockstore.ErrCorruptBucket):
		return 7
	default:
		return 1
	}
}
