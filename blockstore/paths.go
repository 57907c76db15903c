// Copyright 2024 The LatticeArc Authors
// This file is part of latticearc.
//
// latticearc is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package blockstore

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/latticearc/latticearc/coordinate"
)

// shardDir returns <root>/data/d0/d1/d2/d3 for the given coordinate —
// the directory shared by every bucket file and attachments subtree
// that differ only in their fifth and sixth digits.
func shardDir(root string, c coordinate.Coordinate) string {
	return filepath.Join(root, "data",
		strconv.Itoa(int(c.Digit(0))),
		strconv.Itoa(int(c.Digit(1))),
		strconv.Itoa(int(c.Digit(2))),
		strconv.Itoa(int(c.Digit(3))),
	)
}

// bucketPath returns <root>/data/d0/d1/d2/d3/d4.json, the bucket file
// holding every coordinate whose first five digits match c (differing
// only in d5, the top/most-significant digit).
func bucketPath(root string, c coordinate.Coordinate) string {
	return filepath.Join(shardDir(root, c), strconv.Itoa(int(c.Digit(4)))+".json")
}

// attachmentsDir returns <root>/data/d0/d1/d2/d3/attachments/<full
// coordinate with spaces replaced by dashes>, the per-coordinate
// folder holding copies of a block's attachment files.
func attachmentsDir(root string, c coordinate.Coordinate) string {
	sanitized := strings.ReplaceAll(c.Format(), " ", "-")
	return filepath.Join(shardDir(root, c), "attachments", sanitized)
}
