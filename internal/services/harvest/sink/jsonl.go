// Package sink provides item sinks for harvest runs: a JSON Lines writer for
// piping and a SQLite store for local querying
package sink

import (
	"context"
	"encoding/json"
	"io"

	"testharvest/internal/connector"
	perr "testharvest/internal/platform/errors"
)

// JSONL writes one item envelope per line. Safe for single-writer use only
type JSONL struct {
	enc    *json.Encoder
	closer io.Closer
}

// NewJSONL wraps w. When w is also an io.Closer, Close closes it
func NewJSONL(w io.Writer) *JSONL {
	j := &JSONL{enc: json.NewEncoder(w)}
	if c, ok := w.(io.Closer); ok {
		j.closer = c
	}
	return j
}

// Write emits it as a single JSON line
func (j *JSONL) Write(_ context.Context, it connector.Item) error {
	return perr.WrapIf(j.enc.Encode(it), perr.ErrorCodeJSON, "jsonl encode item failed")
}

// Close closes the underlying writer when it is closable
func (j *JSONL) Close() error {
	if j.closer == nil {
		return nil
	}
	return j.closer.Close()
}
