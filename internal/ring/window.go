// Package ring implements the bounded circular histories described by the
// MIDAS node: a primary ring advanced in lockstep across N channels by a
// single receiver, and independent secondary rings advanced by user
// workers. Both expose a copy-then-unwrap snapshot: the lock only guards an
// O(N*B) memory copy, and the unwrap/age/window-slice arithmetic runs
// lock-free on that copy.
package ring

// TimeWindow selects a sub-range of a snapshot by age: samples whose age
// (seconds before the most recent sample) falls in [End, End+Duration).
type TimeWindow struct {
	End      float64
	Duration float64
}

// unwrapIndices returns the physical slot order corresponding to
// chronological (oldest-first) sample order.
func unwrapIndices(size, w int, full bool) []int {
	if !full {
		idx := make([]int, w)
		for i := 0; i < w; i++ {
			idx[i] = i
		}
		return idx
	}
	idx := make([]int, size)
	for i := 0; i < size; i++ {
		idx[i] = (w + i) % size
	}
	return idx
}

// reindex applies idx to src, returning src[idx[0]], src[idx[1]], ...
func reindex(src []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = src[j]
	}
	return out
}

// ages converts chronologically-ordered absolute timestamps into ages
// relative to the most recent (last) sample.
func ages(times []float64) []float64 {
	if len(times) == 0 {
		return nil
	}
	last := times[len(times)-1]
	out := make([]float64, len(times))
	for i, t := range times {
		d := t - last
		if d < 0 {
			d = -d
		}
		out[i] = d
	}
	return out
}

// windowRange finds the contiguous [start, stop) slice of a descending (or
// ties-allowing non-increasing) age vector whose values satisfy
// win.End <= age < win.End+win.Duration. ages[i] is assumed non-increasing
// in i, which always holds for a chronologically-unwrapped ring (the oldest
// sample has the largest age, the newest has age 0).
func windowRange(ages []float64, win TimeWindow) (start, stop int) {
	upper := win.End + win.Duration
	n := len(ages)

	start = n
	for i := 0; i < n; i++ {
		if ages[i] < upper {
			start = i
			break
		}
	}

	stop = n
	for i := start; i < n; i++ {
		if ages[i] < win.End {
			stop = i
			break
		}
	}

	return start, stop
}
