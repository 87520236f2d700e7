// Package connector defines the contract shared by all data-source backends:
// the normalized item envelope, the date window, the lazy item stream, and the
// registry interchangeable backends plug into.
//
// Design choices:
//   - Pull-driven Stream with Next()/io.EOF, no internal goroutines; laziness
//     comes from fetching one page at a time as the consumer advances
//   - Item identity is deterministic: a SHA-1 based UUID of origin plus the
//     backend-extracted identifier, so re-fetching the same window yields the
//     same UUIDs
//   - Capabilities live in the registry entry so callers can query them
//     without instantiating a backend
package connector

import (
	"context"
	"encoding/json"
	"io"
	"time"

	perr "testharvest/internal/platform/errors"

	"github.com/google/uuid"
)

// Item is the normalized unit every backend produces. Immutable once yielded.
// Payload carries the original record untouched; FetchedAt is harvest
// wall-clock time and is not part of item identity
type Item struct {
	UUID       string          `json:"uuid"`
	Backend    string          `json:"backend"`
	Origin     string          `json:"origin"`
	Identifier string          `json:"identifier"`
	Category   string          `json:"category"`
	Tag        string          `json:"tag"`
	UpdatedOn  float64         `json:"updated_on"`
	FetchedAt  time.Time       `json:"fetched_at"`
	Payload    json.RawMessage `json:"data"`
}

// ItemUUID derives the deterministic item UUID from origin and identifier
func ItemUUID(origin, identifier string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(origin+"#"+identifier)).String()
}

// Window is the [From, To] range filtering server-side results.
// Zero From means "since the epoch"; zero To means "up to now"
type Window struct {
	From time.Time
	To   time.Time
}

// Resolve applies defaults and normalizes both bounds to UTC.
// now supplies the wall clock for the To default (injectable in tests)
func (w Window) Resolve(now func() time.Time) (Window, error) {
	out := w
	if out.From.IsZero() {
		out.From = time.Unix(0, 0)
	}
	if out.To.IsZero() {
		out.To = now()
	}
	out.From = out.From.UTC()
	out.To = out.To.UTC()
	if out.From.After(out.To) {
		return Window{}, perr.InvalidArgf("window from %s is after to %s", out.From, out.To)
	}
	return out, nil
}

// Capabilities are the fixed feature flags a backend declares
type Capabilities struct {
	// Archiving reports whether raw responses can be recorded and replayed
	Archiving bool
	// Resuming reports whether a fetch can continue from a checkpoint;
	// backends without it re-scan the full window on every call
	Resuming bool
}

// Connector is one pluggable data-source backend
type Connector interface {
	// Origin returns the source URL items are attributed to
	Origin() string
	// Categories lists the item categories this backend produces
	Categories() []string
	// Fetch streams normalized items for category within w, in server order
	Fetch(ctx context.Context, category string, w Window) (*Stream, error)
}

// Stream is a lazy, finite, non-restartable sequence of items.
// Next returns io.EOF at normal end; any other error is sticky and ends the
// stream. Abandoning a stream before exhaustion is safe
type Stream struct {
	ctx  context.Context
	pull func(context.Context) (Item, error)
	err  error
}

// NewStream builds a Stream over a pull function. pull must return io.EOF
// when the sequence is exhausted
func NewStream(ctx context.Context, pull func(context.Context) (Item, error)) *Stream {
	return &Stream{ctx: ctx, pull: pull}
}

// Next advances the stream by one item
func (s *Stream) Next() (Item, error) {
	if s.err != nil {
		return Item{}, s.err
	}
	it, err := s.pull(s.ctx)
	if err != nil {
		s.err = err
		return Item{}, err
	}
	return it, nil
}

// Err returns the terminal error, nil while the stream is still live or when
// it ended cleanly
func (s *Stream) Err() error {
	if s.err == io.EOF {
		return nil
	}
	return s.err
}
