package functest

import (
	"bytes"
	"encoding/json"
	"time"

	"testharvest/internal/connector"
	"testharvest/internal/platform/datetime"
)

// page is one decoded results response
type page struct {
	Records []json.RawMessage
	Current int
	Total   int
}

type pageEnvelope struct {
	Pagination *struct {
		CurrentPage *int `json:"current_page"`
		TotalPages  *int `json:"total_pages"`
	} `json:"pagination"`
	Results []json.RawMessage `json:"results"`
}

// parsePage decodes a raw results body. A body without the results key or a
// complete pagination block is malformed; an empty results list is not
func parsePage(body []byte) (*page, error) {
	var env pageEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, connector.MalformedResponsef(err, "results page is not valid json")
	}
	if env.Results == nil {
		return nil, connector.MalformedResponsef(nil, "results page has no results key")
	}
	if env.Pagination == nil || env.Pagination.CurrentPage == nil || env.Pagination.TotalPages == nil {
		return nil, connector.MalformedResponsef(nil, "results page has no usable pagination block")
	}
	return &page{
		Records: env.Results,
		Current: *env.Pagination.CurrentPage,
		Total:   *env.Pagination.TotalPages,
	}, nil
}

var jsonNull = []byte("null")

// normalize wraps one raw record in the item envelope.
// Identity comes from _id; update time comes from start_date since the server
// keeps no modification timestamp. The record itself is carried untouched
func normalize(raw json.RawMessage, origin, tag string, fetchedAt time.Time) (connector.Item, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return connector.Item{}, connector.MalformedResponsef(err, "result record is not a json object")
	}

	id, err := identifierOf(fields)
	if err != nil {
		return connector.Item{}, err
	}

	sdRaw, ok := fields["start_date"]
	if !ok || bytes.Equal(sdRaw, jsonNull) {
		return connector.Item{}, connector.MissingFieldf("start_date")
	}
	var sd string
	if err := json.Unmarshal(sdRaw, &sd); err != nil {
		return connector.Item{}, connector.MalformedTimestampf("start_date", err)
	}
	ts, err := datetime.Parse(sd)
	if err != nil {
		return connector.Item{}, connector.MalformedTimestampf("start_date", err)
	}

	return connector.Item{
		UUID:       connector.ItemUUID(origin, id),
		Backend:    Name,
		Origin:     origin,
		Identifier: id,
		Category:   Category,
		Tag:        tag,
		UpdatedOn:  datetime.UnixFloat(ts),
		FetchedAt:  fetchedAt,
		Payload:    raw,
	}, nil
}

// identifierOf stringifies _id. Strings pass through; numbers keep their
// literal form so integer ids never pick up an exponent or trailing zeros
func identifierOf(fields map[string]json.RawMessage) (string, error) {
	idRaw, ok := fields["_id"]
	if !ok || bytes.Equal(idRaw, jsonNull) {
		return "", connector.MissingFieldf("_id")
	}
	if len(idRaw) > 0 && idRaw[0] == '"' {
		var s string
		if err := json.Unmarshal(idRaw, &s); err != nil {
			return "", connector.MalformedResponsef(err, "result record has an unreadable _id")
		}
		return s, nil
	}
	return string(bytes.TrimSpace(idRaw)), nil
}
