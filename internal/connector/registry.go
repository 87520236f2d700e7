package connector

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"

	perr "testharvest/internal/platform/errors"
)

// Factory builds a backend bound to a source URL
type Factory func(url string, cfg Config) (Connector, error)

// Config carries the construction-time bindings common to all backends.
// The archive/replay strategy is fixed here and cannot change per call
type Config struct {
	// Tag is an optional user label stamped on every item; defaults to the origin
	Tag string

	// Archive, when set with Replay false, records every raw response
	Archive PageArchive
	// Replay, when true, serves every page from Archive instead of the network
	Replay bool
}

// PageArchive is the raw-response store backends record into and replay from.
// Implemented by adapters/archive; declared here so backends do not depend on
// a concrete store
type PageArchive interface {
	Record(ctx context.Context, sig, url, params string, body []byte) error
	Retrieve(ctx context.Context, sig string) ([]byte, error)
}

// Signature derives the archive key for a request. Equal method and URL
// always hash to the same key, which is what makes replay line up with the
// original fetch
func Signature(method, url string) string {
	sum := sha256.Sum256([]byte(method + " " + url))
	return hex.EncodeToString(sum[:])
}

// Entry describes one registered backend: how to build it plus the static
// facts queryable without instantiation
type Entry struct {
	New        Factory
	Categories []string
	Caps       Capabilities
}

var (
	regMu    sync.RWMutex
	registry = map[string]Entry{}
)

// Register adds a backend under name. Last registration wins; backends
// self-register from init()
func Register(name string, e Entry) {
	regMu.Lock()
	defer regMu.Unlock()
	registry[name] = e
}

// Lookup resolves a backend entry by name
func Lookup(name string) (Entry, error) {
	regMu.RLock()
	defer regMu.RUnlock()
	e, ok := registry[name]
	if !ok {
		return Entry{}, perr.NotFoundf("unknown backend %q", name)
	}
	return e, nil
}

// Names returns the registered backend names, sorted
func Names() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
