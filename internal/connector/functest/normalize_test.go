package functest

import (
	"encoding/json"
	"testing"
	"time"

	perr "testharvest/internal/platform/errors"
)

func TestParsePage(t *testing.T) {
	body := []byte(`{
		"pagination": {"current_page": 1, "total_pages": 2},
		"results": [{"_id": 1}, {"_id": 2}]
	}`)
	pg, err := parsePage(body)
	if err != nil {
		t.Fatalf("parsePage error: %v", err)
	}
	if pg.Current != 1 || pg.Total != 2 {
		t.Fatalf("pagination = %d/%d", pg.Current, pg.Total)
	}
	if len(pg.Records) != 2 {
		t.Fatalf("records = %d, want 2", len(pg.Records))
	}
}

func TestParsePage_EmptyResultsIsValid(t *testing.T) {
	pg, err := parsePage([]byte(`{"pagination": {"current_page": 1, "total_pages": 1}, "results": []}`))
	if err != nil {
		t.Fatalf("parsePage error: %v", err)
	}
	if len(pg.Records) != 0 {
		t.Fatalf("records = %d, want 0", len(pg.Records))
	}
}

func TestParsePage_Malformed(t *testing.T) {
	cases := map[string]string{
		"not json":         `{"results": [`,
		"no results key":   `{"pagination": {"current_page": 1, "total_pages": 1}}`,
		"no pagination":    `{"results": []}`,
		"partial pageinfo": `{"pagination": {"current_page": 1}, "results": []}`,
	}
	for name, body := range cases {
		if _, err := parsePage([]byte(body)); !perr.IsCode(err, perr.ErrorCodeJSON) {
			t.Errorf("%s: code = %v, want JSON", name, perr.CodeOf(err))
		}
	}
}

func TestNormalize(t *testing.T) {
	raw := json.RawMessage(`{"_id": "abc-1", "start_date": "2017-01-01 00:00:30.5", "case_name": "vping"}`)
	at := time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC)

	it, err := normalize(raw, "http://functest.example.com", "mytag", at)
	if err != nil {
		t.Fatalf("normalize error: %v", err)
	}
	if it.Identifier != "abc-1" {
		t.Fatalf("identifier = %q", it.Identifier)
	}
	if it.Backend != "functest" || it.Category != "functest" {
		t.Fatalf("backend/category = %q/%q", it.Backend, it.Category)
	}
	if it.Tag != "mytag" || it.Origin != "http://functest.example.com" {
		t.Fatalf("tag/origin = %q/%q", it.Tag, it.Origin)
	}
	if want := 1483228830.5; it.UpdatedOn != want {
		t.Fatalf("updated_on = %v, want %v", it.UpdatedOn, want)
	}
	if !it.FetchedAt.Equal(at) {
		t.Fatalf("fetched_at = %v", it.FetchedAt)
	}
	if string(it.Payload) != string(raw) {
		t.Fatalf("payload was altered: %s", it.Payload)
	}
}

func TestNormalize_NumericID(t *testing.T) {
	it, err := normalize(json.RawMessage(`{"_id": 12345678901234567, "start_date": "2017-01-01"}`), "o", "t", time.Now())
	if err != nil {
		t.Fatalf("normalize error: %v", err)
	}
	// literal form survives, no float round trip
	if it.Identifier != "12345678901234567" {
		t.Fatalf("identifier = %q", it.Identifier)
	}
}

func TestNormalize_MissingID(t *testing.T) {
	for _, raw := range []string{`{"start_date": "2017-01-01"}`, `{"_id": null, "start_date": "2017-01-01"}`} {
		_, err := normalize(json.RawMessage(raw), "o", "t", time.Now())
		if !perr.IsCode(err, perr.ErrorCodeValidation) {
			t.Fatalf("code = %v, want Validation", perr.CodeOf(err))
		}
		if e, ok := perr.As(err); !ok || e.Field() != "_id" {
			t.Fatalf("field not tagged as _id: %v", err)
		}
	}
}

func TestNormalize_BadStartDate(t *testing.T) {
	cases := []string{
		`{"_id": 1}`,
		`{"_id": 1, "start_date": null}`,
		`{"_id": 1, "start_date": 42}`,
		`{"_id": 1, "start_date": "not a date"}`,
	}
	for _, raw := range cases {
		_, err := normalize(json.RawMessage(raw), "o", "t", time.Now())
		if !perr.IsCode(err, perr.ErrorCodeValidation) {
			t.Fatalf("%s: code = %v, want Validation", raw, perr.CodeOf(err))
		}
		if e, ok := perr.As(err); !ok || e.Field() != "start_date" {
			t.Fatalf("%s: field not tagged as start_date: %v", raw, err)
		}
	}
}

func TestNormalize_DeterministicUUID(t *testing.T) {
	raw := json.RawMessage(`{"_id": 7, "start_date": "2017-01-01"}`)
	a, err := normalize(raw, "http://o", "t", time.Now())
	if err != nil {
		t.Fatalf("normalize error: %v", err)
	}
	b, err := normalize(raw, "http://o", "t", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("normalize error: %v", err)
	}
	// fetch time is not part of identity
	if a.UUID != b.UUID {
		t.Fatalf("uuid changed across fetches: %s vs %s", a.UUID, b.UUID)
	}
}
