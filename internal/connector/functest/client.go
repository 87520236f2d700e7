package functest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"testharvest/internal/connector"
	"testharvest/internal/platform/datetime"
	"testharvest/internal/platform/net/rest"
)

const (
	resultsPath = "api/v1/results"

	paramFrom = "from"
	paramTo   = "to"
	paramPage = "page"
)

// resultsURL composes the absolute results URL deterministically so that live
// and replay modes derive identical signatures for the same request
func resultsURL(base string, query url.Values) string {
	u := strings.TrimSuffix(base, "/") + "/" + resultsPath
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// pageSource yields one raw results page per call. The live implementation
// hits the network, the replay one reads back recorded bodies
type pageSource interface {
	page(ctx context.Context, query url.Values) ([]byte, error)
}

// liveSource fetches from the server and tees every body into the archive
// when one is configured
type liveSource struct {
	rest    *rest.Client
	archive connector.PageArchive
}

func (s *liveSource) page(ctx context.Context, query url.Values) ([]byte, error) {
	body, err := s.rest.GetBytes(ctx, resultsPath, query)
	if err != nil {
		return nil, err
	}
	if s.archive != nil {
		u := resultsURL(s.rest.BaseURL(), query)
		if err := s.archive.Record(ctx, connector.Signature(http.MethodGet, u), u, query.Encode(), body); err != nil {
			return nil, err
		}
	}
	return body, nil
}

// replaySource serves pages from the archive only; it never touches the network
type replaySource struct {
	baseURL string
	archive connector.PageArchive
}

func (s *replaySource) page(ctx context.Context, query url.Values) ([]byte, error) {
	u := resultsURL(s.baseURL, query)
	return s.archive.Retrieve(ctx, connector.Signature(http.MethodGet, u))
}

// pager walks the results endpoint one page at a time, starting at page 1.
// The window bounds ride along as from/to on every request
type pager struct {
	src   pageSource
	query url.Values
	done  bool
}

func newPager(src pageSource, w connector.Window) *pager {
	q := url.Values{}
	q.Set(paramFrom, datetime.FormatQuery(w.From))
	q.Set(paramTo, datetime.FormatQuery(w.To))
	q.Set(paramPage, "1")
	return &pager{src: src, query: q}
}

// next returns the records of the next page, or io.EOF after the last one.
// The server is authoritative for termination: current_page >= total_pages
func (p *pager) next(ctx context.Context) ([]json.RawMessage, error) {
	if p.done {
		return nil, io.EOF
	}
	body, err := p.src.page(ctx, p.query)
	if err != nil {
		return nil, err
	}
	pg, err := parsePage(body)
	if err != nil {
		return nil, err
	}
	if pg.Current >= pg.Total {
		p.done = true
	} else {
		p.query.Set(paramPage, strconv.Itoa(pg.Current+1))
	}
	return pg.Records, nil
}
