package storage

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"rafflebot/internal/numbers"
	logx "rafflebot/pkg/logx"
)

func TestRecordRoundTrip(t *testing.T) {
	ctx := context.Background()
	rec := NewRecord(NewMemory(), "", logx.Nop())
	if rec.Key() != DefaultKey {
		t.Fatalf("Key = %q, want %q", rec.Key(), DefaultKey)
	}

	sets := [][]int64{nil, {0}, {5, -1, 3}, {9223372036854775807, -9223372036854775808}}
	for _, in := range sets {
		if err := rec.Save(ctx, in); err != nil {
			t.Fatalf("Save(%v): %v", in, err)
		}
		got, err := rec.Load(ctx)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if !numbers.NewSet(in...).Equal(numbers.NewSet(got...)) {
			t.Fatalf("round trip: saved %v, loaded %v", in, got)
		}
	}
}

func TestRecordLoadMissingIsEmpty(t *testing.T) {
	got, err := NewRecord(NewMemory(), "nums", logx.Nop()).Load(context.Background())
	if err != nil || len(got) != 0 {
		t.Fatalf("Load = %v, %v", got, err)
	}
}

func TestRecordLoadDropsBadEntries(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()
	_ = st.Put(ctx, "nums", []byte(`[3, "x", 1.5, 2, null]`))
	got, err := NewRecord(st, "nums", logx.Nop()).Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff([]int64{3, 2}, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordCorruptFallsBackToEmptyStore(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()
	_ = st.Put(ctx, "nums", []byte(`{not json`))
	rec := NewRecord(st, "nums", logx.Nop())
	if _, err := rec.Load(ctx); err == nil {
		t.Fatal("expected decode error")
	}

	s := numbers.Open(ctx, rec, logx.Nop())
	if s.Size() != 0 {
		t.Fatalf("size = %d, want 0", s.Size())
	}
	// the first mutation replaces the corrupt record
	if _, err := s.Add(ctx, 4); err != nil {
		t.Fatalf("Add: %v", err)
	}
	b, _, _ := st.Get(ctx, "nums")
	if string(b) != "[4]" {
		t.Fatalf("record = %s, want [4]", b)
	}
}
