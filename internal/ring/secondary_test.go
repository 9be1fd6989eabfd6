package ring

import "testing"

func TestSecondaryPushAndSnapshot(t *testing.T) {
	r := NewSecondaryRing([]int{3})
	r.PushSample(0, 1, 100)
	r.PushSample(0, 2, 200)
	r.PushSample(0, 3, 300)
	r.PushSample(0, 4, 400) // wraps

	snap := r.Snapshot(TimeWindow{End: 0, Duration: 100})
	if !floatsEqual(snap.Values[0], []float64{200, 300, 400}) {
		t.Errorf("values = %v", snap.Values[0])
	}
	if !floatsEqual(snap.Ages[0], []float64{2, 1, 0}) {
		t.Errorf("ages = %v", snap.Ages[0])
	}
}

// Invariant 4: push_chunk is observed atomically — either all m samples or
// none of them.
func TestSecondaryPushChunkAtomic(t *testing.T) {
	r := NewSecondaryRing([]int{10})
	r.PushSample(0, 1, 1)

	done := make(chan struct{})
	go func() {
		r.PushChunk(0, []float64{2, 3, 4, 5}, []float64{20, 30, 40, 50})
		close(done)
	}()
	<-done

	snap := r.Snapshot(TimeWindow{End: 0, Duration: 1000})
	if len(snap.Values[0]) != 5 {
		t.Fatalf("expected 5 samples after chunk push, got %d", len(snap.Values[0]))
	}
}

func TestSecondaryIndependentChannels(t *testing.T) {
	r := NewSecondaryRing([]int{2, 4})
	r.PushSample(0, 1, 11)
	r.PushSample(1, 1, 21)
	r.PushSample(1, 2, 22)

	if r.NChannels() != 2 {
		t.Fatalf("NChannels = %d, want 2", r.NChannels())
	}
	snap := r.Snapshot(TimeWindow{End: 0, Duration: 100})
	if len(snap.Values[0]) != 1 || len(snap.Values[1]) != 2 {
		t.Errorf("unexpected channel lengths: %v", snap.Values)
	}
}
