package stat

import "math"

// DeltaKind tells how a monotonic producer counter moved since the last
// sample.
type DeltaKind int

const (
	// DeltaNormal: the counter advanced (or held still).
	DeltaNormal DeltaKind = iota

	// DeltaWrap: the 32-bit counter overflowed; the delta spans the wrap.
	DeltaWrap

	// DeltaReset: the producer restarted and its counter began again at
	// zero; the current reading is taken as the delta.
	DeltaReset
)

// ClassifyDelta turns two raw readings of a monotonic 32-bit counter into a
// per-interval delta. A reading below the previous one is a wrap only when
// the previous value sat close enough to the ceiling that maxPerScan files
// could have pushed it over; anything else is a producer reset.
func ClassifyDelta(prev, cur uint32, maxPerScan uint32) (DeltaKind, uint32) {
	if cur >= prev {
		return DeltaNormal, cur - prev
	}
	if math.MaxUint32-prev <= maxPerScan {
		// Modular subtraction counts the wrap step itself.
		return DeltaWrap, cur - prev
	}
	return DeltaReset, cur
}

// ByteDelta computes the per-interval byte delta. Byte totals carry no wrap
// heuristic; a negative movement is clamped to zero and reported so the
// caller can log it.
func ByteDelta(prev, cur float64) (delta float64, clamped bool) {
	delta = cur - prev
	if delta < 0 {
		return 0, true
	}
	return delta, false
}
