package numbers

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// memPersister records every save so tests can check write-through.
type memPersister struct {
	saved   []int64
	saves   int
	loadErr error
	saveErr error
}

func (p *memPersister) Load(context.Context) ([]int64, error) {
	if p.loadErr != nil {
		return nil, p.loadErr
	}
	return append([]int64(nil), p.saved...), nil
}

func (p *memPersister) Save(_ context.Context, values []int64) error {
	if p.saveErr != nil {
		return p.saveErr
	}
	p.saves++
	p.saved = append([]int64(nil), values...)
	return nil
}

func TestStoreAddIsIdempotent(t *testing.T) {
	ctx := context.Background()
	p := &memPersister{}
	s := Open(ctx, p, nopLog())

	if added, err := s.Add(ctx, 7); err != nil || !added {
		t.Fatalf("first Add = %v, %v", added, err)
	}
	if added, err := s.Add(ctx, 7); err != nil || added {
		t.Fatalf("second Add = %v, %v", added, err)
	}
	if s.Size() != 1 || !s.Has(7) {
		t.Fatalf("size=%d has(7)=%v", s.Size(), s.Has(7))
	}
	if p.saves != 2 {
		t.Fatalf("every mutator must persist: saves=%d", p.saves)
	}
}

func TestStoreAddManyDedups(t *testing.T) {
	ctx := context.Background()
	p := &memPersister{}
	s := Open(ctx, p, nopLog())

	added, err := s.AddMany(ctx, []int64{1, 2, 2, 3})
	if err != nil {
		t.Fatalf("AddMany: %v", err)
	}
	if added != 3 || s.Size() != 3 || !s.Has(2) {
		t.Fatalf("added=%d size=%d has(2)=%v", added, s.Size(), s.Has(2))
	}
	if diff := cmp.Diff([]int64{1, 2, 3}, p.saved); diff != "" {
		t.Fatalf("persisted mismatch (-want +got):\n%s", diff)
	}
}

func TestStoreInsertionOrderIrrelevant(t *testing.T) {
	ctx := context.Background()
	a := Open(ctx, &memPersister{}, nopLog())
	b := Open(ctx, &memPersister{}, nopLog())
	_, _ = a.AddMany(ctx, []int64{3, 1, 2})
	_, _ = b.AddMany(ctx, []int64{2, 3, 1, 1})
	if diff := cmp.Diff(a.SnapshotSorted(), b.SnapshotSorted()); diff != "" {
		t.Fatalf("order affected final state:\n%s", diff)
	}
}

func TestStoreClear(t *testing.T) {
	ctx := context.Background()
	p := &memPersister{saved: []int64{4, 5}}
	s := Open(ctx, p, nopLog())
	if !s.Has(4) {
		t.Fatal("loaded value missing")
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if s.Size() != 0 || s.Has(4) || s.Has(5) {
		t.Fatalf("store not empty after Clear: %v", s.SnapshotSorted())
	}
	if len(p.saved) != 0 {
		t.Fatalf("persisted record not cleared: %v", p.saved)
	}
}

func TestStoreSaveFailureKeepsPriorState(t *testing.T) {
	ctx := context.Background()
	p := &memPersister{saved: []int64{1}}
	s := Open(ctx, p, nopLog())
	p.saveErr = errors.New("disk full")

	if _, err := s.Add(ctx, 2); err == nil {
		t.Fatal("expected save error")
	}
	if _, err := s.AddMany(ctx, []int64{3, 4}); err == nil {
		t.Fatal("expected save error")
	}
	if err := s.Clear(ctx); err == nil {
		t.Fatal("expected save error")
	}
	if diff := cmp.Diff([]int64{1}, s.SnapshotSorted()); diff != "" {
		t.Fatalf("state changed after failed saves:\n%s", diff)
	}
}

func TestStoreLoadFailureStartsEmpty(t *testing.T) {
	s := Open(context.Background(), &memPersister{loadErr: errors.New("corrupt")}, nopLog())
	if s.Size() != 0 {
		t.Fatalf("size = %d, want 0", s.Size())
	}
}

func TestSnapshotSortedDoesNotMutate(t *testing.T) {
	ctx := context.Background()
	s := Open(ctx, &memPersister{}, nopLog())
	_, _ = s.AddMany(ctx, []int64{5, 1, 3})
	snap := s.SnapshotSorted()
	snap[0] = 99
	if diff := cmp.Diff([]int64{1, 3, 5}, s.SnapshotSorted()); diff != "" {
		t.Fatalf("snapshot aliasing store (-want +got):\n%s", diff)
	}
}

func TestStoreSaveErrorIsNotRewrapped(t *testing.T) {
	ctx := context.Background()
	diskFull := errors.New("disk full")
	s := Open(ctx, &memPersister{saveErr: diskFull}, nopLog())
	if _, err := s.Add(ctx, 1); err != diskFull {
		t.Fatalf("Add err = %v, want the persister error as is", err)
	}
}

func TestOpenStrict(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		loadErr error
		wantErr bool
	}{
		{name: "ok"},
		{name: "corrupt content", loadErr: fmt.Errorf("decode k: %w", ErrMalformedImport)},
		{name: "read failure", loadErr: errors.New("dial tcp: i/o timeout"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &memPersister{saved: []int64{4}, loadErr: tt.loadErr}
			s, err := OpenStrict(ctx, p, nopLog())
			if tt.wantErr {
				if err == nil || s != nil {
					t.Fatalf("OpenStrict = %v, %v; want error", s, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("OpenStrict: %v", err)
			}
			want := 1
			if tt.loadErr != nil {
				want = 0
			}
			if s.Size() != want {
				t.Fatalf("size = %d, want %d", s.Size(), want)
			}
		})
	}
}
