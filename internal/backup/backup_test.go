package backup

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	logx "rafflebot/pkg/logx"
)

type staticSource []int64

func (s staticSource) SnapshotSorted() []int64 { return append([]int64(nil), s...) }

func TestFileNameSortsByTime(t *testing.T) {
	t.Parallel()
	a := FileName(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	b := FileName(time.Date(2026, 1, 2, 3, 4, 6, 0, time.UTC))
	if !strings.HasPrefix(a, "numbers-20260102-030405-") || !strings.HasSuffix(a, ".json") {
		t.Fatalf("name = %q", a)
	}
	if !(a < b) {
		t.Fatalf("%q should sort before %q", a, b)
	}
}

func TestWriterWritesExportAndPrunes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w := NewWriter(dir, 2, logx.Nop())
	clock := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	var last Result
	for i := 0; i < 4; i++ {
		res, err := w.Write([]int64{3, 1, 2})
		if err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
		last = res
	}
	if last.Count != 3 || last.Pruned != 1 {
		t.Fatalf("last result = %+v", last)
	}

	paths, err := w.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("kept %d backups, want 2: %v", len(paths), paths)
	}
	if paths[1] != last.Path {
		t.Fatalf("newest backup %q was not kept (have %v)", last.Path, paths)
	}

	b, err := os.ReadFile(last.Path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got []int64
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff([]int64{1, 2, 3}, got); diff != "" {
		t.Fatalf("backup content (-want +got):\n%s", diff)
	}
}

func TestWriterIgnoresForeignFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	other := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(other, []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	w := NewWriter(dir, 1, logx.Nop())
	for i := 0; i < 2; i++ {
		if _, err := w.Write(nil); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if _, err := os.Stat(other); err != nil {
		t.Fatalf("foreign file removed: %v", err)
	}
}

func TestListMissingDir(t *testing.T) {
	t.Parallel()
	w := NewWriter(filepath.Join(t.TempDir(), "absent"), 1, logx.Nop())
	paths, err := w.List()
	if err != nil || len(paths) != 0 {
		t.Fatalf("paths=%v err=%v", paths, err)
	}
}

func TestParseSchedule(t *testing.T) {
	t.Parallel()
	for _, ok := range []string{"@daily", "0 3 * * *", " */15 * * * * "} {
		if err := ParseSchedule(ok); err != nil {
			t.Fatalf("%q: %v", ok, err)
		}
	}
	for _, bad := range []string{"", "every day", "0 0 3 * * *"} {
		if err := ParseSchedule(bad); err == nil {
			t.Fatalf("%q: expected error", bad)
		}
	}
}

func TestRunNowGoesThroughDispatcher(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var dispatched []string
	dispatch := func(ctx context.Context, name string, job func(context.Context)) error {
		dispatched = append(dispatched, name)
		go job(ctx)
		return nil
	}
	s := NewScheduler(staticSource{5, 7}, dispatch, logx.Nop())
	if err := s.Apply(Config{Dir: dir, Keep: 3}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := s.RunNow(ctx)
	if err != nil {
		t.Fatalf("run now: %v", err)
	}
	if res.Count != 2 || filepath.Dir(res.Path) != dir {
		t.Fatalf("result = %+v", res)
	}
	if diff := cmp.Diff([]string{"backup"}, dispatched); diff != "" {
		t.Fatalf("dispatch (-want +got):\n%s", diff)
	}
	if s.Last() != res {
		t.Fatalf("Last = %+v, want %+v", s.Last(), res)
	}
}

func TestRunNowWithoutDir(t *testing.T) {
	t.Parallel()
	s := NewScheduler(staticSource{}, nil, logx.Nop())
	if _, err := s.RunNow(context.Background()); err == nil {
		t.Fatalf("expected error without a directory")
	}
}

func TestRunSchedulesAndStops(t *testing.T) {
	t.Parallel()

	s := NewScheduler(staticSource{1}, nil, logx.Nop())
	if err := s.Apply(Config{Enabled: true, Schedule: "@every 1h", Dir: t.TempDir()}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = s.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for s.Next().IsZero() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if s.Next().IsZero() {
		t.Fatalf("no next run scheduled")
	}

	if err := s.Apply(Config{Enabled: false, Dir: t.TempDir()}); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if !s.Next().IsZero() {
		t.Fatalf("disabled scheduler still has a next run")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}

func TestApplyRejectsBadSchedule(t *testing.T) {
	t.Parallel()

	s := NewScheduler(staticSource{}, nil, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		running := s.ctx != nil
		s.mu.Unlock()
		if running {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := s.Apply(Config{Enabled: true, Schedule: "nope", Dir: t.TempDir()}); err == nil {
		t.Fatalf("expected schedule error")
	}
}
