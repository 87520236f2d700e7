package service

import (
	"context"
	"encoding/json"
	"io"
	"strconv"
	"testing"
	"time"

	"testharvest/internal/connector"
	perr "testharvest/internal/platform/errors"
	"testharvest/internal/services/harvest/domain"
)

// stubBackend yields a fixed number of items, or fails after failAfter items
type stubBackend struct {
	origin    string
	items     int
	failAfter int
	failWith  error
}

func (b *stubBackend) Origin() string       { return b.origin }
func (b *stubBackend) Categories() []string { return []string{"stub"} }

func (b *stubBackend) Fetch(ctx context.Context, category string, w connector.Window) (*connector.Stream, error) {
	if category != "stub" {
		return nil, connector.UnsupportedCategoryf("stub", category)
	}
	i := 0
	return connector.NewStream(ctx, func(context.Context) (connector.Item, error) {
		if b.failWith != nil && i == b.failAfter {
			return connector.Item{}, b.failWith
		}
		if i >= b.items {
			return connector.Item{}, io.EOF
		}
		id := strconv.Itoa(i + 1)
		i++
		return connector.Item{
			UUID:       connector.ItemUUID(b.origin, id),
			Backend:    "stub",
			Origin:     b.origin,
			Identifier: id,
			Category:   category,
			UpdatedOn:  float64(i),
			Payload:    json.RawMessage(`{}`),
		}, nil
	}), nil
}

var stub = &stubBackend{origin: "http://stub.example.com", items: 3}

func init() {
	connector.Register("stub", connector.Entry{
		New: func(url string, cfg connector.Config) (connector.Connector, error) {
			return stub, nil
		},
		Categories: []string{"stub"},
		Caps:       connector.Capabilities{Archiving: true},
	})
}

type memSink struct {
	items []connector.Item
	fail  error
}

func (m *memSink) Write(_ context.Context, it connector.Item) error {
	if m.fail != nil {
		return m.fail
	}
	m.items = append(m.items, it)
	return nil
}

func (m *memSink) Close() error { return nil }

type memSessions struct{ calls int }

func (m *memSessions) BeginSession(context.Context, string, string, string) (string, error) {
	m.calls++
	return "session-uuid", nil
}

func fixedNow() time.Time {
	return time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC)
}

func validOpts() domain.RunOptions {
	return domain.RunOptions{
		Backend:  "stub",
		URL:      "http://stub.example.com",
		Category: "stub",
	}
}

func TestRun_DrivesStreamToSink(t *testing.T) {
	stub.items, stub.failWith = 3, nil
	sk := &memSink{}
	svc := New(sk, nil, Config{Now: fixedNow})

	sum, err := svc.Run(context.Background(), validOpts())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if sum.Items != 3 || len(sk.items) != 3 {
		t.Fatalf("items = %d sink = %d, want 3", sum.Items, len(sk.items))
	}
	if sk.items[0].Identifier != "1" || sk.items[2].Identifier != "3" {
		t.Fatalf("sink order = %v", sk.items)
	}
	if sum.Backend != "stub" || sum.Origin != "http://stub.example.com" {
		t.Fatalf("summary = %+v", sum)
	}
	if !sum.Started.Equal(fixedNow()) || !sum.Finished.Equal(fixedNow()) {
		t.Fatalf("summary times = %v/%v", sum.Started, sum.Finished)
	}
	if sum.Session != "" {
		t.Fatalf("session recorded without an archive: %q", sum.Session)
	}
}

func TestRun_StreamErrorAborts(t *testing.T) {
	boom := perr.Unavailablef("server gone")
	stub.items, stub.failAfter, stub.failWith = 3, 2, boom
	defer func() { stub.failWith = nil }()

	sk := &memSink{}
	svc := New(sk, nil, Config{Now: fixedNow})

	sum, err := svc.Run(context.Background(), validOpts())
	if !perr.IsCode(err, perr.ErrorCodeUnavailable) {
		t.Fatalf("code = %v, want Unavailable", perr.CodeOf(err))
	}
	// partial progress is reported
	if sum.Items != 2 || len(sk.items) != 2 {
		t.Fatalf("items = %d sink = %d, want 2", sum.Items, len(sk.items))
	}
}

func TestRun_SinkErrorAborts(t *testing.T) {
	stub.items, stub.failWith = 3, nil
	boom := perr.DBf("disk full")
	svc := New(&memSink{fail: boom}, nil, Config{Now: fixedNow})

	sum, err := svc.Run(context.Background(), validOpts())
	if err != boom {
		t.Fatalf("Run = %v, want boom", err)
	}
	if sum.Items != 0 {
		t.Fatalf("items = %d, want 0", sum.Items)
	}
}

func TestRun_InvalidOptions(t *testing.T) {
	svc := New(&memSink{}, nil, Config{})
	cases := []domain.RunOptions{
		{URL: "http://x.example.com", Category: "stub"},
		{Backend: "stub", Category: "stub"},
		{Backend: "stub", URL: "not a url", Category: "stub"},
		{Backend: "stub", URL: "http://x.example.com"},
	}
	for i, opts := range cases {
		if _, err := svc.Run(context.Background(), opts); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
			t.Errorf("case %d: code = %v, want InvalidArgument", i, perr.CodeOf(err))
		}
	}
}

func TestRun_UnknownBackend(t *testing.T) {
	svc := New(&memSink{}, nil, Config{})
	opts := validOpts()
	opts.Backend = "no-such-backend"
	if _, err := svc.Run(context.Background(), opts); !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("code = %v, want NotFound", perr.CodeOf(err))
	}
}

type memArchive struct{}

func (memArchive) Record(context.Context, string, string, string, []byte) error { return nil }
func (memArchive) Retrieve(context.Context, string) ([]byte, error) {
	return nil, perr.NotFoundf("empty")
}

func TestRun_RecordsSessionWhenArchiving(t *testing.T) {
	stub.items, stub.failWith = 1, nil
	sessions := &memSessions{}
	svc := New(&memSink{}, sessions, Config{Archive: memArchive{}, Now: fixedNow})

	sum, err := svc.Run(context.Background(), validOpts())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if sessions.calls != 1 || sum.Session != "session-uuid" {
		t.Fatalf("session calls = %d uuid = %q", sessions.calls, sum.Session)
	}

	// replay runs do not open new sessions
	svc = New(&memSink{}, sessions, Config{Archive: memArchive{}, Replay: true, Now: fixedNow})
	if _, err := svc.Run(context.Background(), validOpts()); err != nil {
		t.Fatalf("replay Run error: %v", err)
	}
	if sessions.calls != 1 {
		t.Fatalf("replay opened a session")
	}
}
