// Copyright 2024 The LatticeArc Authors
// This file is part of latticearc.
//
// latticearc is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package metrics declares the prometheus instruments the Archiver and
// Restorer update, and a constructor that registers them on a given
// registry. Kept as a single small package (rather than scattering
// prometheus.New* calls through archiver/restorer) so a CLI can wire
// in its own *prometheus.Registry and serve /metrics without either
// package importing an HTTP server.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Set holds every instrument this repo updates.
type Set struct {
	BlocksWritten      prometheus.Counter
	BlocksRestored     prometheus.Counter
	UniverseCollisions prometheus.Counter
	MissingAttachments prometheus.Counter
	CursorPosition     prometheus.Gauge
}

// New constructs a Set and registers it on reg. If reg is nil, the
// instruments are created but left unregistered (useful for tests that
// don't care about scraping).
func New(reg prometheus.Registerer) *Set {
	s := &Set{
		BlocksWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "latticearc",
			Name:      "blocks_written_total",
			Help:      "Number of blocks written to the store by the archiver.",
		}),
		BlocksRestored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "latticearc",
			Name:      "blocks_restored_total",
			Help:      "Number of blocks emitted by the restorer.",
		}),
		UniverseCollisions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "latticearc",
			Name:      "universe_collisions_total",
			Help:      "Number of writes whose universe was reassigned due to a collision.",
		}),
		MissingAttachments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "latticearc",
			Name:      "missing_attachments_total",
			Help:      "Number of attachment references whose source file was absent.",
		}),
		CursorPosition: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "latticearc",
			Name:      "cursor_position",
			Help:      "The archiver cursor's current coordinate, as a base-10 integer.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			s.BlocksWritten,
			s.BlocksRestored,
			s.UniverseCollisions,
			s.MissingAttachments,
			s.CursorPosition,
		)
	}
	return s
}
