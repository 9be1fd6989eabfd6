// Package receiver pulls samples from an external streaming source into a
// node's primary ring. The source itself is out of scope for this system
// (spec.md §1 treats it as an external collaborator) and is modeled here as
// the SampleSource interface.
package receiver

import (
	"context"
	"time"

	"go.uber.org/zap"

	"midasnode/internal/ring"
)

// Sample is one multi-channel reading pulled from the source. Time is nil
// when the source does not supply a timestamp, in which case the ring
// synthesizes one.
type Sample struct {
	Values []float64
	Time   *float64
}

// SampleSource is the out-of-scope external acquisition collaborator: a
// named, time-synchronized stream of multi-channel samples.
type SampleSource interface {
	// Resolve locates the named stream, blocking up to the context's
	// deadline. It is retried by the receiver every ~10s until it succeeds.
	Resolve(ctx context.Context, name string) error
	// Pull blocks for the next sample.
	Pull(ctx context.Context) (Sample, error)
}

// Receiver is the primary ring's sole writer.
type Receiver struct {
	source     SampleSource
	streamName string
	ring       *ring.PrimaryRing
	logger     *zap.Logger
	onAppend   func()
}

// New creates a receiver that pulls streamName from source into r.
// onAppend, if non-nil, is called after every successful append (used to
// bump telemetry counters).
func New(source SampleSource, streamName string, r *ring.PrimaryRing, logger *zap.Logger, onAppend func()) *Receiver {
	return &Receiver{source: source, streamName: streamName, ring: r, logger: logger, onAppend: onAppend}
}

// Run resolves the stream (retrying every 10s) and then forever pulls one
// sample at a time into the primary ring, until ctx is cancelled.
func (rc *Receiver) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		started := time.Now()
		attempt, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := rc.source.Resolve(attempt, rc.streamName)
		cancel()
		if err == nil {
			break
		}
		rc.logger.Info("stream not found, retrying", zap.String("stream", rc.streamName), zap.Error(err))
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(started.Add(10 * time.Second))):
		}
	}

	for {
		sample, err := rc.source.Pull(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			rc.logger.Warn("pull failed, continuing", zap.Error(err))
			continue
		}
		if err := rc.ring.Append(sample.Values, sample.Time); err != nil {
			rc.logger.Error("append failed", zap.Error(err))
			continue
		}
		if rc.onAppend != nil {
			rc.onAppend()
		}
	}
}
