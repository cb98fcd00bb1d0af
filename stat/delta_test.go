package stat

import (
	"math"
	"testing"
)

func TestClassifyDelta(t *testing.T) {
	for _, tt := range []struct {
		name  string
		prev  uint32
		cur   uint32
		kind  DeltaKind
		delta uint32
	}{
		{name: "advance", prev: 10, cur: 15, kind: DeltaNormal, delta: 5},
		{name: "hold", prev: 10, cur: 10, kind: DeltaNormal, delta: 0},
		{
			// The counter sat two files below the ceiling and six more
			// arrived.
			name: "wrap", prev: math.MaxUint32 - 2, cur: 3,
			kind: DeltaWrap, delta: 6,
		},
		{
			name: "wrap at heuristic limit", prev: math.MaxUint32 - MaxFilesPerScan, cur: 1,
			kind: DeltaWrap, delta: MaxFilesPerScan + 2,
		},
		{
			// Too far from the ceiling for a wrap; the producer restarted.
			name: "reset past heuristic limit", prev: math.MaxUint32 - MaxFilesPerScan - 1, cur: 1,
			kind: DeltaReset, delta: 1,
		},
		{name: "reset to zero", prev: 10_000_000, cur: 0, kind: DeltaReset, delta: 0},
	} {
		t.Run(tt.name, func(t *testing.T) {
			kind, delta := ClassifyDelta(tt.prev, tt.cur, MaxFilesPerScan)
			if kind != tt.kind || delta != tt.delta {
				t.Fatalf("ClassifyDelta(%d, %d) = (%v, %d), want (%v, %d)",
					tt.prev, tt.cur, kind, delta, tt.kind, tt.delta)
			}
		})
	}
}

// After a reset the producer's reading becomes the stored snapshot, so the
// next advance is measured from there.
func TestClassifyDeltaAfterReset(t *testing.T) {
	kind, delta := ClassifyDelta(10_000_000, 0, MaxFilesPerScan)
	if kind != DeltaReset || delta != 0 {
		t.Fatalf("ClassifyDelta(10000000, 0) = (%v, %d), want (%v, 0)", kind, delta, DeltaReset)
	}
	kind, delta = ClassifyDelta(0, 5, MaxFilesPerScan)
	if kind != DeltaNormal || delta != 5 {
		t.Fatalf("ClassifyDelta(0, 5) = (%v, %d), want (%v, 5)", kind, delta, DeltaNormal)
	}
}

func TestByteDelta(t *testing.T) {
	if delta, clamped := ByteDelta(100, 250); delta != 150 || clamped {
		t.Fatalf("ByteDelta(100, 250) = (%v, %v)", delta, clamped)
	}
	if delta, clamped := ByteDelta(250, 100); delta != 0 || !clamped {
		t.Fatalf("ByteDelta(250, 100) = (%v, %v), want clamp to zero", delta, clamped)
	}
}
