package collector

import "testing"

func TestSmootherFirstSamplePassesThrough(t *testing.T) {
	s := NewSmoother(0.3)
	if got := s.Update(100); got != 100 {
		t.Errorf("first Update = %v, want 100", got)
	}
}

func TestSmootherBlendsTowardNewSamples(t *testing.T) {
	s := NewSmoother(0.5)
	s.Update(0)
	if got := s.Update(100); got != 50 {
		t.Errorf("second Update = %v, want 50", got)
	}
	if got := s.Update(100); got != 75 {
		t.Errorf("third Update = %v, want 75", got)
	}
}

func TestHistoryReturnsSamplesOldestFirst(t *testing.T) {
	h := NewHistory(3)
	h.Push(1)
	h.Push(2)

	got := h.Samples()
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("Samples() = %v, want [1 2]", got)
	}
}

func TestHistoryWrapsOnceFull(t *testing.T) {
	h := NewHistory(3)
	for _, v := range []float64{1, 2, 3, 4, 5} {
		h.Push(v)
	}

	got := h.Samples()
	if len(got) != 3 || got[0] != 3 || got[1] != 4 || got[2] != 5 {
		t.Fatalf("Samples() = %v, want [3 4 5]", got)
	}
}
