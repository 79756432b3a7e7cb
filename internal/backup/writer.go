// Package backup writes timestamped export snapshots of the number set on a
// cron schedule and prunes old ones.
package backup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"rafflebot/internal/numbers"
	"rafflebot/internal/storage"
	logx "rafflebot/pkg/logx"
)

const (
	filePrefix = "numbers-"
	fileSuffix = ".json"
	stampFmt   = "20060102-150405"
)

// Result describes one written snapshot.
type Result struct {
	Path   string
	Count  int
	Bytes  int
	Pruned int
}

// Writer stores export snapshots in Dir and keeps the newest Keep of them.
type Writer struct {
	Dir  string
	Keep int // 0 keeps all

	now func() time.Time
	log logx.Logger
}

func NewWriter(dir string, keep int, log logx.Logger) *Writer {
	return &Writer{Dir: dir, Keep: keep, now: time.Now, log: log}
}

// FileName returns the snapshot name for t, e.g.
// numbers-20261016-120000-1a2b3c4d.json. The short random suffix keeps two
// snapshots within the same second apart while names still sort by time.
func FileName(t time.Time) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return filePrefix + t.UTC().Format(stampFmt) + "-" + id + fileSuffix
}

// Write encodes values like an export and stores them atomically.
func (w *Writer) Write(values []int64) (Result, error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("backup dir: %w", err)
	}
	data := numbers.EncodeExport(values)
	path := filepath.Join(w.Dir, FileName(w.now()))
	if err := storage.WriteFileAtomic(path, data, 0o644); err != nil {
		return Result{}, fmt.Errorf("write backup: %w", err)
	}
	pruned, err := w.Prune()
	res := Result{Path: path, Count: len(values), Bytes: len(data), Pruned: pruned}
	w.log.Info("backup written",
		logx.String("path", path),
		logx.Int("count", res.Count),
		logx.String("size", humanize.Bytes(uint64(res.Bytes))),
		logx.Int("pruned", pruned),
	)
	if err != nil {
		return res, fmt.Errorf("prune backups: %w", err)
	}
	return res, nil
}

// List returns snapshot paths in Dir, oldest first.
func (w *Writer) List() ([]string, error) {
	entries, err := os.ReadDir(w.Dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		n := e.Name()
		if e.Type().IsRegular() && strings.HasPrefix(n, filePrefix) && strings.HasSuffix(n, fileSuffix) {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = filepath.Join(w.Dir, n)
	}
	return out, nil
}

// Prune removes the oldest snapshots beyond Keep.
func (w *Writer) Prune() (int, error) {
	if w.Keep <= 0 {
		return 0, nil
	}
	paths, err := w.List()
	if err != nil || len(paths) <= w.Keep {
		return 0, err
	}
	var errs []error
	removed := 0
	for _, p := range paths[:len(paths)-w.Keep] {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
