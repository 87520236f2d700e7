package domain

import (
	"time"
)

// RunOptions parameterize one harvest run
type RunOptions struct {
	// Backend is the registered connector name
	Backend string `validate:"required"`
	// URL of the origin server; doubles as the origin label on items
	URL string `validate:"required,url"`
	// Category of items to fetch
	Category string `validate:"required"`
	// Tag is an optional user label; empty defaults to the URL
	Tag string

	// From and To bound the fetch window. Zero From means since the epoch,
	// zero To means up to now
	From time.Time
	To   time.Time
}

// Summary reports what a run produced
type Summary struct {
	Backend  string
	Origin   string
	Category string
	// Session is the archive session UUID, empty when no archive is recording
	Session  string
	Items    int
	Started  time.Time
	Finished time.Time
}
