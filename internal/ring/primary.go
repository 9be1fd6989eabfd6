package ring

import (
	"context"
	"fmt"
	"sync"
)

// PrimarySnapshot is a consistent, windowed view over the primary ring's
// channels, in chronological (oldest-first) order.
type PrimarySnapshot struct {
	Channels [][]float64 // Channels[k][i]
	Ages     []float64
}

// PrimaryRing holds N channels advancing in lockstep, written by exactly
// one receiver and read by any number of concurrent snapshot callers.
type PrimaryRing struct {
	mu sync.Mutex

	channels     [][]float64
	times        []float64
	w            int
	full         bool
	lastTime     float64
	writes       uint64
	samplingRate float64

	cond *sync.Cond
}

// NewPrimaryRing allocates a ring for nChannels channels of size samples,
// advancing at samplingRate Hz.
func NewPrimaryRing(nChannels, size int, samplingRate float64) *PrimaryRing {
	r := &PrimaryRing{
		channels:     make([][]float64, nChannels),
		times:        make([]float64, size),
		samplingRate: samplingRate,
	}
	for k := range r.channels {
		r.channels[k] = make([]float64, size)
	}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// NChannels returns the number of primary channels.
func (r *PrimaryRing) NChannels() int { return len(r.channels) }

// Size returns the ring's capacity in samples.
func (r *PrimaryRing) Size() int { return len(r.times) }

// Full reports whether the ring has wrapped at least once.
func (r *PrimaryRing) Full() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.full
}

// Append writes one sample per channel at the current write cursor. If t is
// nil, a timestamp is synthesized as lastTime + samplingRate (with a rate
// of 2, successive synthesized stamps after 10 are 12, 14, ...).
func (r *PrimaryRing) Append(x []float64, t *float64) error {
	if len(x) != len(r.channels) {
		return fmt.Errorf("ring: append expects %d channels, got %d", len(r.channels), len(x))
	}

	r.mu.Lock()
	for k, v := range x {
		r.channels[k][r.w] = v
	}

	ts := r.lastTime + r.samplingRate
	if t != nil {
		ts = *t
	}
	r.times[r.w] = ts
	r.lastTime = ts

	r.w = (r.w + 1) % len(r.times)
	r.writes++
	if !r.full && r.writes >= uint64(len(r.times)) {
		r.full = true
	}
	r.cond.Broadcast()
	r.mu.Unlock()

	return nil
}

// primaryState is the cheap, lock-guarded copy taken by Snapshot.
type primaryState struct {
	channels [][]float64
	times    []float64
	w        int
	full     bool
}

func (r *PrimaryRing) copyState() primaryState {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := primaryState{
		channels: make([][]float64, len(r.channels)),
		times:    append([]float64(nil), r.times...),
		w:        r.w,
		full:     r.full,
	}
	for k, ch := range r.channels {
		st.channels[k] = append([]float64(nil), ch...)
	}
	return st
}

// Snapshot copies the ring under lock, then unwraps, computes ages, and
// slices to the requested time window outside the lock.
func (r *PrimaryRing) Snapshot(win TimeWindow) PrimarySnapshot {
	st := r.copyState()

	idx := unwrapIndices(len(st.times), st.w, st.full)
	chronoTimes := reindex(st.times, idx)
	a := ages(chronoTimes)
	start, stop := windowRange(a, win)

	out := PrimarySnapshot{
		Channels: make([][]float64, len(st.channels)),
		Ages:     append([]float64(nil), a[start:stop]...),
	}
	for k, ch := range st.channels {
		out.Channels[k] = reindex(ch, idx)[start:stop]
	}
	return out
}

// WaitNext blocks until the write cursor advances past its value at call
// time, then returns the most recently written sample. It restores the
// blocking get_sample() read from the original node, implemented with a
// condition variable instead of a busy-wait.
func (r *PrimaryRing) WaitNext(ctx context.Context) ([]float64, error) {
	r.mu.Lock()
	start := r.w

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			r.mu.Lock()
			r.cond.Broadcast()
			r.mu.Unlock()
		case <-done:
		}
	}()
	defer close(done)

	for r.w == start {
		if err := ctx.Err(); err != nil {
			r.mu.Unlock()
			return nil, err
		}
		r.cond.Wait()
	}

	prev := (r.w - 1 + len(r.times)) % len(r.times)
	sample := make([]float64, len(r.channels))
	for k, ch := range r.channels {
		sample[k] = ch[prev]
	}
	r.mu.Unlock()
	return sample, nil
}
