package archive

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"

	"testharvest/internal/connector"
	perr "testharvest/internal/platform/errors"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close error: %v", err)
		}
	})
	return s
}

func TestRecordRetrieve(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	u := "http://functest.example.com/api/v1/results?from=1970-01-01+00%3A00%3A00&page=1"
	sig := connector.Signature(http.MethodGet, u)
	body := []byte(`{"results": [], "pagination": {"current_page": 1, "total_pages": 1}}`)

	if err := s.Record(ctx, sig, u, "page=1", body); err != nil {
		t.Fatalf("Record error: %v", err)
	}
	got, err := s.Retrieve(ctx, sig)
	if err != nil {
		t.Fatalf("Retrieve error: %v", err)
	}
	if string(got) != string(body) {
		t.Fatalf("retrieved body differs: %s", got)
	}
}

func TestRecord_ReplacesSameSignature(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	sig := connector.Signature(http.MethodGet, "http://o/api/v1/results?page=1")
	if err := s.Record(ctx, sig, "http://o/api/v1/results?page=1", "page=1", []byte("first")); err != nil {
		t.Fatalf("Record error: %v", err)
	}
	if err := s.Record(ctx, sig, "http://o/api/v1/results?page=1", "page=1", []byte("second")); err != nil {
		t.Fatalf("Record error: %v", err)
	}

	got, err := s.Retrieve(ctx, sig)
	if err != nil {
		t.Fatalf("Retrieve error: %v", err)
	}
	if string(got) != "second" {
		t.Fatalf("body = %q, want the replacement", got)
	}
	n, err := s.PageCount(ctx)
	if err != nil {
		t.Fatalf("PageCount error: %v", err)
	}
	if n != 1 {
		t.Fatalf("pages = %d, want 1", n)
	}
}

func TestRetrieve_MissIsNotFound(t *testing.T) {
	s := openTemp(t)
	_, err := s.Retrieve(context.Background(), "no-such-signature")
	if !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("code = %v, want NotFound", perr.CodeOf(err))
	}
}

func TestSessions(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	id, err := s.BeginSession(ctx, "functest", "http://functest.example.com", "functest")
	if err != nil {
		t.Fatalf("BeginSession error: %v", err)
	}
	if id == "" {
		t.Fatalf("empty session uuid")
	}

	sessions, err := s.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions error: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("sessions = %d, want 1", len(sessions))
	}
	got := sessions[0]
	if got.UUID != id || got.Backend != "functest" || got.Origin != "http://functest.example.com" {
		t.Fatalf("session = %+v", got)
	}
	if got.StartedAt.IsZero() {
		t.Fatalf("session started_at not set")
	}
}

func TestOpen_MigrationsAreIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "archive.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("first Open error: %v", err)
	}
	sig := connector.Signature(http.MethodGet, "http://o/r?page=1")
	if err := s.Record(context.Background(), sig, "http://o/r?page=1", "page=1", []byte("x")); err != nil {
		t.Fatalf("Record error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	// reopening applies no migrations and keeps the data
	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open error: %v", err)
	}
	defer s2.Close()
	got, err := s2.Retrieve(context.Background(), sig)
	if err != nil {
		t.Fatalf("Retrieve error: %v", err)
	}
	if string(got) != "x" {
		t.Fatalf("body lost across reopen: %q", got)
	}
}
