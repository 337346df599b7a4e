package engine

import (
	"context"
	"log/slog"
)

// Orchestrator turns one RequestSpec into a finished run: it expands the
// spec into chunks, feeds them through a shared pool, and aggregates
// every outcome into a Summary while forwarding structured events to the
// sink.
type Orchestrator struct {
	Pool   *Pool
	Sink   Sink
	Logger *slog.Logger
}

// Run executes one request. The summary is returned even when the run
// halted early; err carries the halt cause (maintenance, fatal auth) or
// a request validation error.
func (o *Orchestrator) Run(ctx context.Context, spec RequestSpec) (Summary, error) {
	sink := o.Sink
	if sink == nil {
		sink = NopSink{}
	}
	log := o.Logger
	if log == nil {
		log = slog.Default()
	}

	work, err := chunks(spec)
	if err != nil {
		return Summary{}, err
	}
	log.Info("run planned",
		"stations", len(spec.Stations),
		"chunks", len(work),
		"workers", o.Pool.Workers,
	)

	var summary Summary
	haltErr := o.Pool.Run(ctx, work, func(out Outcome) {
		summary.add(out)
		switch out.Kind {
		case Downloaded:
			sink.Downloaded(out.Chunk, out.Files, out.Bytes)
		case Skipped:
			sink.Skipped(out.Chunk)
		case NoData:
			sink.NoData(out.Chunk)
		case Failed:
			sink.Failed(out.Chunk, out.Err)
		case NotAttempted:
			sink.NotAttempted(out.Chunk)
		}
	})
	if haltErr != nil {
		summary.Halted = true
		log.Warn("run halted early", "err", haltErr)
	}
	return summary, haltErr
}
