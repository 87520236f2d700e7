package functest

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"testharvest/internal/connector"
	"testharvest/internal/platform/config"
	"testharvest/internal/platform/datetime"
	perr "testharvest/internal/platform/errors"
	"testharvest/internal/platform/logger"
	"testharvest/internal/platform/net/rest"

	"github.com/go-playground/validator/v10"
)

const (
	// Name is the registry name of this backend
	Name = "functest"
	// Category is the single item category this backend produces
	Category = "functest"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type construction struct {
	URL string `validate:"required,url"`
}

type options struct {
	tag     string
	archive connector.PageArchive
	replay  bool
	http    rest.Options
	httpSet bool
	now     func() time.Time
}

// Option customizes a Backend at construction time
type Option func(*options)

// WithTag sets the user label stamped on every item. Empty defaults to the URL
func WithTag(tag string) Option { return func(o *options) { o.tag = tag } }

// WithArchive sets the raw-page store. With replay off every fetched page is
// recorded; with replay on pages are served from it instead of the network
func WithArchive(a connector.PageArchive) Option { return func(o *options) { o.archive = a } }

// WithReplay switches the backend to archive-only mode
func WithReplay(replay bool) Option { return func(o *options) { o.replay = replay } }

// WithHTTPOptions overrides the HTTP client settings (timeout, retry budget,
// pacing). Without it the settings come from the HTTP_* environment.
// The base URL is always the backend URL regardless of what is set here
func WithHTTPOptions(ho rest.Options) Option {
	return func(o *options) { o.http, o.httpSet = ho, true }
}

// withNow injects the wall clock for tests
func withNow(now func() time.Time) Option { return func(o *options) { o.now = now } }

// Backend retrieves test results from a Functest server.
// The URL doubles as the origin items are attributed to
type Backend struct {
	url string
	tag string
	src pageSource
	now func() time.Time
}

// New builds a Backend for the server at url
func New(url string, opts ...Option) (*Backend, error) {
	if err := validate.Struct(construction{URL: url}); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "functest url %q is not a valid url", url)
	}

	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tag == "" {
		o.tag = url
	}
	if o.replay && o.archive == nil {
		return nil, perr.InvalidArgf("functest replay requires an archive")
	}

	var src pageSource
	if o.replay {
		src = &replaySource{baseURL: url, archive: o.archive}
	} else {
		ho := o.http
		if !o.httpSet {
			ho = httpFromEnv()
		}
		ho.BaseURL = url
		src = &liveSource{rest: rest.New(ho), archive: o.archive}
	}

	return &Backend{url: url, tag: o.tag, src: src, now: o.now}, nil
}

// httpFromEnv reads the HTTP client settings from HTTP_* env vars
func httpFromEnv() rest.Options {
	cfg := config.New().Prefix("HTTP_")
	return rest.Options{
		UserAgent:  cfg.MayString("USER_AGENT", ""),
		Timeout:    cfg.MayDuration("TIMEOUT", 0),
		MaxRetries: cfg.MayInt("MAX_RETRIES", 0),
		RetryBase:  cfg.MayDuration("RETRY_BASE", 0),
		RateLimit:  cfg.MayFloat64("RATE_LIMIT", 0),
		RateBurst:  cfg.MayInt("RATE_BURST", 0),
	}
}

// Origin returns the server URL
func (b *Backend) Origin() string { return b.url }

// Categories lists the categories this backend produces
func (b *Backend) Categories() []string { return []string{Category} }

// Fetch streams test results updated within w, in server page order
func (b *Backend) Fetch(ctx context.Context, category string, w connector.Window) (*connector.Stream, error) {
	if category != Category {
		return nil, connector.UnsupportedCategoryf(Name, category)
	}
	win, err := w.Resolve(b.now)
	if err != nil {
		return nil, err
	}

	ctx = logger.WithFetch(ctx, b.url, category)
	log := logger.C(ctx)
	log.Info().
		Str("from", datetime.FormatQuery(win.From)).
		Str("to", datetime.FormatQuery(win.To)).
		Msg("functest fetch starting")

	pg := newPager(b.src, win)
	var batch []json.RawMessage
	count := 0

	pull := func(ctx context.Context) (connector.Item, error) {
		for len(batch) == 0 {
			recs, err := pg.next(ctx)
			if err == io.EOF {
				log.Info().Int("items", count).Msg("functest fetch completed")
				return connector.Item{}, io.EOF
			}
			if err != nil {
				return connector.Item{}, err
			}
			batch = recs
		}
		raw := batch[0]
		batch = batch[1:]
		it, err := normalize(raw, b.url, b.tag, b.now().UTC())
		if err != nil {
			return connector.Item{}, err
		}
		count++
		return it, nil
	}

	return connector.NewStream(ctx, pull), nil
}
