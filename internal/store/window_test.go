// internal/store/window_test.go
package store

import (
	"testing"

	"telemetry-service/internal/model"
)

func floatsEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRingSnapshotPadding(t *testing.T) {
	r := NewRing(5)
	r.Push(1)
	r.Push(2)

	got := r.Snapshot()
	want := []float64{0, 0, 0, 1, 2}
	if !floatsEqual(got, want) {
		t.Fatalf("Snapshot = %v, want %v", got, want)
	}
	if r.Len() != 2 {
		t.Errorf("Len = %d, want 2", r.Len())
	}
}

func TestRingEvictsOldest(t *testing.T) {
	r := NewRing(3)
	for _, v := range []float64{1, 2, 3, 4, 5} {
		r.Push(v)
	}

	got := r.Snapshot()
	want := []float64{3, 4, 5}
	if !floatsEqual(got, want) {
		t.Fatalf("Snapshot = %v, want %v", got, want)
	}
	if r.Len() != 3 {
		t.Errorf("Len = %d, want 3", r.Len())
	}
}

func TestRingExactlyFull(t *testing.T) {
	r := NewRing(4)
	for _, v := range []float64{7, 8, 9, 10} {
		r.Push(v)
	}
	if got := r.Snapshot(); !floatsEqual(got, []float64{7, 8, 9, 10}) {
		t.Fatalf("Snapshot = %v, want [7 8 9 10]", got)
	}
}

func TestAppendRoundTrip(t *testing.T) {
	s := NewSampleStore(8)

	s.Append("emg-a", model.ChannelA, []float64{10, 11, 12})
	s.Append("emg-a", model.ChannelA, []float64{13, 14})

	got := s.Window("emg-a", model.ChannelA)
	want := []float64{0, 0, 0, 10, 11, 12, 13, 14}
	if !floatsEqual(got, want) {
		t.Fatalf("Window = %v, want %v", got, want)
	}

	cum := s.Cumulative("emg-a", model.ChannelA)
	if !floatsEqual(cum, []float64{10, 11, 12, 13, 14}) {
		t.Fatalf("Cumulative = %v, want [10 11 12 13 14]", cum)
	}
}

func TestWindowAlwaysFixedLength(t *testing.T) {
	s := NewSampleStore(4)

	if got := s.Window("emg-a", model.ChannelA); len(got) != 4 {
		t.Fatalf("empty Window length = %d, want 4", len(got))
	}

	s.Append("emg-a", model.ChannelA, []float64{1, 2, 3, 4, 5, 6})
	got := s.Window("emg-a", model.ChannelA)
	if len(got) != 4 {
		t.Fatalf("Window length = %d, want 4", len(got))
	}
	if !floatsEqual(got, []float64{3, 4, 5, 6}) {
		t.Fatalf("Window = %v, want [3 4 5 6]", got)
	}
}

func TestChannelsIndependent(t *testing.T) {
	s := NewSampleStore(4)

	s.Append("emg-a", model.ChannelA, []float64{1})
	s.Append("emg-a", model.ChannelB, []float64{2})
	s.Append("emg-b", model.ChannelA, []float64{3})

	if got := s.Cumulative("emg-a", model.ChannelA); !floatsEqual(got, []float64{1}) {
		t.Errorf("emg-a/a = %v, want [1]", got)
	}
	if got := s.Cumulative("emg-a", model.ChannelB); !floatsEqual(got, []float64{2}) {
		t.Errorf("emg-a/b = %v, want [2]", got)
	}
	if got := s.Cumulative("emg-b", model.ChannelA); !floatsEqual(got, []float64{3}) {
		t.Errorf("emg-b/a = %v, want [3]", got)
	}
	if got := s.CumulativeLen("emg-b", model.ChannelB); got != 0 {
		t.Errorf("untouched channel CumulativeLen = %d, want 0", got)
	}
}

func TestWindowSnapshotIsACopy(t *testing.T) {
	s := NewSampleStore(3)
	s.Append("emg-a", model.ChannelA, []float64{1, 2, 3})

	snap := s.Window("emg-a", model.ChannelA)
	snap[0] = 99

	if got := s.Window("emg-a", model.ChannelA); !floatsEqual(got, []float64{1, 2, 3}) {
		t.Fatalf("store mutated through snapshot: %v", got)
	}
}

func TestCumulativeViewStableAcrossAppends(t *testing.T) {
	s := NewSampleStore(4)
	s.Append("emg-a", model.ChannelA, []float64{1, 2})

	view := s.Cumulative("emg-a", model.ChannelA)
	s.Append("emg-a", model.ChannelA, []float64{3, 4})

	// earlier views keep their length and contents
	if !floatsEqual(view, []float64{1, 2}) {
		t.Fatalf("earlier view changed: %v", view)
	}
	if got := s.CumulativeLen("emg-a", model.ChannelA); got != 4 {
		t.Fatalf("CumulativeLen = %d, want 4", got)
	}
}
