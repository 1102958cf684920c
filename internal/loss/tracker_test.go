// internal/loss/tracker_test.go
package loss

import (
	"testing"
	"time"

	"telemetry-service/internal/model"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func observeAll(t *testing.T, tr *Tracker, sensor model.SensorID, seqs []uint8) uint64 {
	t.Helper()
	var total uint64
	for _, seq := range seqs {
		total += tr.Observe(sensor, seq, t0)
	}
	return total
}

func TestObserveFirstFrameCountsNoLoss(t *testing.T) {
	tr := NewTracker()

	if delta := tr.Observe("emg-a", 9, t0); delta != 0 {
		t.Fatalf("first observation lostDelta = %d, want 0", delta)
	}

	st := tr.Get("emg-a")
	if st == nil {
		t.Fatal("state missing after first observation")
	}
	if st.Received != 1 || st.Lost != 0 {
		t.Errorf("state = received %d lost %d, want 1/0", st.Received, st.Lost)
	}
	if st.Expected != 10 {
		t.Errorf("Expected = %d, want 10", st.Expected)
	}
	if !st.StartedAt.Equal(t0) {
		t.Errorf("StartedAt = %v, want %v", st.StartedAt, t0)
	}
}

func TestObserveFullCycleNoLoss(t *testing.T) {
	tr := NewTracker()

	// two full wraps of the 4-bit counter without a gap
	var seqs []uint8
	for i := 0; i < 32; i++ {
		seqs = append(seqs, uint8(i%16))
	}
	for i, seq := range seqs {
		if delta := tr.Observe("emg-a", seq, t0); delta != 0 {
			t.Fatalf("frame %d (seq %d): lostDelta = %d, want 0", i, seq, delta)
		}
	}

	st := tr.Get("emg-a")
	if st.Lost != 0 || st.Received != 32 {
		t.Errorf("state = received %d lost %d, want 32/0", st.Received, st.Lost)
	}
}

func TestObserveGaps(t *testing.T) {
	cases := []struct {
		name     string
		seqs     []uint8
		wantLost uint64
	}{
		{"simple gap", []uint8{0, 2}, 1},
		{"gap across wraparound", []uint8{15, 1}, 1},
		{"wide gap", []uint8{0, 9}, 8},
		{"two gaps accumulate", []uint8{0, 2, 4}, 2},
		{"repeated sequence reads as full cycle", []uint8{3, 3}, 15},
		{"maximum resolvable gap", []uint8{0, 0x0F}, 14},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := NewTracker()
			if got := observeAll(t, tr, "emg-a", tc.seqs); got != tc.wantLost {
				t.Fatalf("cumulative lostDelta = %d, want %d", got, tc.wantLost)
			}
			if st := tr.Get("emg-a"); st.Lost != tc.wantLost {
				t.Fatalf("state Lost = %d, want %d", st.Lost, tc.wantLost)
			}
		})
	}
}

func TestObserveAlwaysAdvancesExpected(t *testing.T) {
	tr := NewTracker()

	// a gap must not poison the follow-up frame
	tr.Observe("emg-a", 0, t0)
	tr.Observe("emg-a", 5, t0) // 4 lost
	if delta := tr.Observe("emg-a", 6, t0); delta != 0 {
		t.Fatalf("in-order frame after gap: lostDelta = %d, want 0", delta)
	}
}

func TestSensorsTrackedIndependently(t *testing.T) {
	tr := NewTracker()

	observeAll(t, tr, "emg-a", []uint8{0, 1, 2})
	observeAll(t, tr, "emg-b", []uint8{0, 4})

	if st := tr.Get("emg-a"); st.Lost != 0 || st.Received != 3 {
		t.Errorf("emg-a = received %d lost %d, want 3/0", st.Received, st.Lost)
	}
	if st := tr.Get("emg-b"); st.Lost != 3 || st.Received != 2 {
		t.Errorf("emg-b = received %d lost %d, want 2/3", st.Received, st.Lost)
	}
}

func TestLossRatePercent(t *testing.T) {
	tr := NewTracker()

	if tr.Get("emg-a") != nil {
		t.Fatal("state should not exist before first frame")
	}

	// 9 received, 1 lost -> 10 percent
	observeAll(t, tr, "emg-a", []uint8{0, 2, 3, 4, 5, 6, 7, 8, 9})
	st := tr.Get("emg-a")
	if st.Received != 9 || st.Lost != 1 {
		t.Fatalf("state = received %d lost %d, want 9/1", st.Received, st.Lost)
	}
	if rate := st.LossRatePercent(); rate < 9.999 || rate > 10.001 {
		t.Errorf("LossRatePercent = %v, want 10.0", rate)
	}
}

func TestLossRatePercentZeroDenominator(t *testing.T) {
	st := &State{Expected: -1}
	if rate := st.LossRatePercent(); rate != 0.0 {
		t.Errorf("LossRatePercent on empty state = %v, want 0.0", rate)
	}
}

func TestElapsed(t *testing.T) {
	tr := NewTracker()

	st := &State{}
	if st.Elapsed(t0) != 0 {
		t.Error("Elapsed before first frame should be 0")
	}

	tr.Observe("emg-a", 0, t0)
	tr.Observe("emg-a", 1, t0.Add(2*time.Second))

	got := tr.Get("emg-a").Elapsed(t0.Add(5 * time.Second))
	if got != 5*time.Second {
		t.Errorf("Elapsed = %v, want 5s", got)
	}
}
