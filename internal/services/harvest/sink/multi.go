package sink

import (
	"context"

	"testharvest/internal/connector"
	"testharvest/internal/services/harvest/domain"
)

// Multi fans one item out to several sinks in order
type Multi struct {
	sinks []domain.SinkPort
}

// NewMulti combines sinks; with one sink it is a passthrough
func NewMulti(sinks ...domain.SinkPort) *Multi {
	return &Multi{sinks: sinks}
}

// Write stops at the first failing sink
func (m *Multi) Write(ctx context.Context, it connector.Item) error {
	for _, s := range m.sinks {
		if err := s.Write(ctx, it); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink, returning the first error seen
func (m *Multi) Close() error {
	var first error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
