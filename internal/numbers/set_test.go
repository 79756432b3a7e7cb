package numbers

import (
	"testing"

	logx "rafflebot/pkg/logx"
)

func nopLog() logx.Logger { return logx.Nop() }

func TestSetBasics(t *testing.T) {
	t.Parallel()
	s := NewSet(3, 1, 3)
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
	if s.Add(1) {
		t.Fatal("Add of existing member reported new")
	}
	if !s.Add(-2) {
		t.Fatal("Add of new member reported existing")
	}
	got := s.Sorted()
	if len(got) != 3 || got[0] != -2 || got[1] != 1 || got[2] != 3 {
		t.Fatalf("Sorted = %v", got)
	}

	cp := s.Clone()
	cp.Add(100)
	if s.Has(100) {
		t.Fatal("Clone shares storage")
	}
	if s.Equal(cp) || !s.Equal(NewSet(1, 3, -2)) {
		t.Fatal("Equal misreports membership")
	}
}
