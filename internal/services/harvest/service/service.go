// Package service implements the harvest runner: it resolves a backend from
// the registry, drives its item stream to completion and hands every item to
// the sink
package service

import (
	"context"
	"io"
	"time"

	"testharvest/internal/connector"
	perr "testharvest/internal/platform/errors"
	"testharvest/internal/platform/logger"
	"testharvest/internal/services/harvest/domain"

	"github.com/go-playground/validator/v10"
)

// progressEvery is how many items pass between progress log lines
const progressEvery = 100

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config for the harvest service
type Config struct {
	// Archive, when set with Replay false, records raw pages during the run
	Archive connector.PageArchive
	// Replay serves the run from Archive instead of the network
	Replay bool
	// Now is the wall clock, injectable in tests
	Now func() time.Time
}

// Service implements domain.RunnerPort
type Service struct {
	Sink     domain.SinkPort
	Sessions domain.SessionPort
	Cfg      Config
}

// New constructs a harvest service writing to sink.
// sessions may be nil when no archive is recording runs
func New(sink domain.SinkPort, sessions domain.SessionPort, cfg Config) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{Sink: sink, Sessions: sessions, Cfg: cfg}
}

// Run fetches all items for opts and writes them to the sink.
// The first stream or sink error aborts the run; the summary reports the
// items written up to that point
func (s *Service) Run(ctx context.Context, opts domain.RunOptions) (domain.Summary, error) {
	if err := validate.Struct(opts); err != nil {
		return domain.Summary{}, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "harvest options invalid")
	}

	e, err := connector.Lookup(opts.Backend)
	if err != nil {
		return domain.Summary{}, err
	}
	if s.Cfg.Replay && !e.Caps.Archiving {
		return domain.Summary{}, perr.InvalidArgf("backend %s does not support archiving", opts.Backend)
	}

	c, err := e.New(opts.URL, connector.Config{
		Tag:     opts.Tag,
		Archive: s.Cfg.Archive,
		Replay:  s.Cfg.Replay,
	})
	if err != nil {
		return domain.Summary{}, err
	}

	sum := domain.Summary{
		Backend:  opts.Backend,
		Origin:   c.Origin(),
		Category: opts.Category,
		Started:  s.Cfg.Now().UTC(),
	}

	if s.Sessions != nil && s.Cfg.Archive != nil && !s.Cfg.Replay {
		id, err := s.Sessions.BeginSession(ctx, opts.Backend, c.Origin(), opts.Category)
		if err != nil {
			return sum, err
		}
		sum.Session = id
	}

	ctx = logger.WithFetch(ctx, c.Origin(), opts.Category)
	log := logger.C(ctx)

	stream, err := c.Fetch(ctx, opts.Category, connector.Window{From: opts.From, To: opts.To})
	if err != nil {
		return sum, err
	}

	for {
		it, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			sum.Finished = s.Cfg.Now().UTC()
			return sum, err
		}
		if err := s.Sink.Write(ctx, it); err != nil {
			sum.Finished = s.Cfg.Now().UTC()
			return sum, err
		}
		sum.Items++
		if sum.Items%progressEvery == 0 {
			log.Debug().Int("items", sum.Items).Msg("harvest progress")
		}
	}

	sum.Finished = s.Cfg.Now().UTC()
	log.Info().
		Str("backend", sum.Backend).
		Int("items", sum.Items).
		Dur("took", sum.Finished.Sub(sum.Started)).
		Msg("harvest run completed")
	return sum, nil
}
