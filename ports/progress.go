package ports

import (
	"context"

	"ringstat/domain/sweep"
)

// ProgressSink receives one event per finished grid cell.
// Sinks observe a sweep; they never influence its values.
type ProgressSink interface {
	Report(ctx context.Context, event sweep.ProgressEvent)
}

// ProgressFunc adapts a function to ProgressSink
type ProgressFunc func(ctx context.Context, event sweep.ProgressEvent)

// Report calls f
func (f ProgressFunc) Report(ctx context.Context, event sweep.ProgressEvent) {
	f(ctx, event)
}

// MultiProgress fans events out to several sinks in order
type MultiProgress []ProgressSink

// Report forwards the event to every non-nil sink
func (m MultiProgress) Report(ctx context.Context, event sweep.ProgressEvent) {
	for _, s := range m {
		if s != nil {
			s.Report(ctx, event)
		}
	}
}
