package domain

import (
	"context"

	"testharvest/internal/connector"
)

// RunnerPort is the external port for the harvest job
type RunnerPort interface {
	Run(ctx context.Context, opts RunOptions) (Summary, error)
}

// SinkPort receives normalized items as the stream produces them
type SinkPort interface {
	Write(ctx context.Context, it connector.Item) error
	Close() error
}

// SessionPort records fetch runs; satisfied by the archive store
type SessionPort interface {
	BeginSession(ctx context.Context, backend, origin, category string) (string, error)
}
