// Copyright 2024 The LatticeArc Authors
// This file is part of latticearc.
//
// latticearc is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package index holds the in-memory ConversationIndex: a mapping from
// conversation title to {id, start, end}, kept as a case-insensitive
// ordered B-tree (github.com/google/btree, the teacher's own
// dependency) so lookup, insert, and the sorted-for-persistence
// traversal are all O(log n)/O(n) without a separate sort pass on
// every save.
package index

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/google/btree"
	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Entry is one conversation's placement record: the id it was stored
// with, and the canonical coordinate strings it started and ended at.
type Entry struct {
	ID    string `json:"id"`
	Start string `json:"start"`
	End   string `json:"end"`
}

type item struct {
	title string
	lower string
	entry Entry
}

func less(a, b item) bool { return a.lower < b.lower }

// Index is the ConversationIndex: title -> Entry, ordered
// case-insensitively by title.
type Index struct {
	tree *btree.BTreeG[item]
}

// New returns an empty Index.
func New() *Index {
	return &Index{tree: btree.NewG(32, less)}
}

// Get looks up title, treating titles as identical when they differ
// only by case (the index's ordering key).
func (ix *Index) Get(title string) (Entry, bool) {
	it, ok := ix.tree.Get(item{lower: strings.ToLower(title)})
	return it.entry, ok
}

// Set inserts or overwrites the entry for title.
func (ix *Index) Set(title string, e Entry) {
	ix.tree.ReplaceOrInsert(item{title: title, lower: strings.ToLower(title), entry: e})
}

// Len returns the number of indexed titles.
func (ix *Index) Len() int { return ix.tree.Len() }

// Titles returns every indexed title in persistence order
// (case-insensitive ascending).
func (ix *Index) Titles() []string {
	out := make([]string, 0, ix.tree.Len())
	ix.tree.Ascend(func(it item) bool {
		out = append(out, it.title)
		return true
	})
	return out
}

// Each calls fn for every (title, entry) pair in persistence order.
func (ix *Index) Each(fn func(title string, e Entry)) {
	ix.tree.Ascend(func(it item) bool {
		fn(it.title, it.entry)
		return true
	})
}

// MarshalJSON renders the index as the spec's JSON object, with keys
// emitted in case-insensitive ascending title order.
func (ix *Index) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("{\n")
	n := ix.tree.Len()
	i := 0
	var marshalErr error
	ix.tree.Ascend(func(it item) bool {
		keyJSON, err := jsonAPI.Marshal(it.title)
		if err != nil {
			marshalErr = err
			return false
		}
		idJSON, err := jsonAPI.Marshal(it.entry.ID)
		if err != nil {
			marshalErr = err
			return false
		}
		startJSON, err := jsonAPI.Marshal(it.entry.Start)
		if err != nil {
			marshalErr = err
			return false
		}
		endJSON, err := jsonAPI.Marshal(it.entry.End)
		if err != nil {
			marshalErr = err
			return false
		}
		fmt.Fprintf(&buf, "  %s: {\"id\": %s, \"start\": %s, \"end\": %s}", keyJSON, idJSON, startJSON, endJSON)
		i++
		if i < n {
			buf.WriteString(",")
		}
		buf.WriteString("\n")
		return true
	})
	if marshalErr != nil {
		return nil, marshalErr
	}
	buf.WriteString("}")
	return buf.Bytes(), nil
}

// UnmarshalJSON loads an index from the spec's JSON object shape.
func (ix *Index) UnmarshalJSON(data []byte) error {
	var wire map[string]Entry
	if err := jsonAPI.Unmarshal(data, &wire); err != nil {
		return err
	}
	ix.tree = btree.NewG(32, less)
	for title, entry := range wire {
		ix.Set(title, entry)
	}
	return nil
}
