// Package raffle wires the number set to a status area. Each operation is one
// user action: it parses input, mutates or reads the store and leaves its
// feedback in the area the caller passes in.
package raffle

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"rafflebot/internal/numbers"
	"rafflebot/internal/status"
	logx "rafflebot/pkg/logx"
)

// ErrSaveFailed marks an action whose persistence write failed. The store is
// unchanged when it is returned.
var ErrSaveFailed = errors.New("save failed")

// Outcome describes what one action did.
type Outcome struct {
	// Message is the feedback text the action produced ("" when it stayed
	// silent, e.g. an empty bulk prompt).
	Message string
	Kind    status.Kind
	// Shown reports whether Message reached the status area.
	Shown bool
	// Changed reports whether the list was re-rendered.
	Changed bool
	// Err classifies failures: numbers.ErrInvalidInput,
	// numbers.ErrEmptyBulkInput, numbers.ErrRangeTooLarge,
	// numbers.ErrMalformedImport or ErrSaveFailed.
	Err error
}

// Artifact is an export file.
type Artifact struct {
	Name  string
	Data  []byte
	Count int
}

// View is the rendered list.
type View struct {
	Count   int
	Numbers []int64
}

// CountText renders the list header.
func (v View) CountText() string { return "Count: " + strconv.Itoa(v.Count) }

// Service owns the number store for one session.
type Service struct {
	store *numbers.Store
	log   logx.Logger

	mu     sync.RWMutex
	parser numbers.Parser
}

func New(store *numbers.Store, parser numbers.Parser, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{store: store, parser: parser, log: log.With(logx.String("comp", "raffle"))}
}

// SetMaxExpansion updates the bulk parser limit (hot reload).
func (s *Service) SetMaxExpansion(n int) {
	s.mu.Lock()
	s.parser.MaxExpansion = n
	s.mu.Unlock()
}

func (s *Service) currentParser() numbers.Parser {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.parser
}

// Store exposes the underlying store for read-only callers.
func (s *Service) Store() *numbers.Store { return s.store }

// Add saves one strictly parsed integer.
func (s *Service) Add(ctx context.Context, area *status.Area, text string) Outcome {
	n, err := numbers.ParseSingle(text)
	if err != nil {
		return toast(area, "Please enter a valid integer.", err)
	}
	added, err := s.store.Add(ctx, n)
	if err != nil {
		return s.saveFailed(area, "add", err)
	}
	s.log.Info("number saved", logx.Int64("n", n), logx.Bool("new", added), logx.Int("size", s.store.Size()))
	return s.rendered(area, fmt.Sprintf("Saved number: %d", n))
}

// Bulk adds every number found in free text. An empty prompt does nothing.
// The success count includes duplicates, the store dedups them.
func (s *Service) Bulk(ctx context.Context, area *status.Area, text string) Outcome {
	if text == "" {
		return Outcome{}
	}
	p := s.currentParser()
	vals, err := p.ParseBulk(text)
	if errors.Is(err, numbers.ErrRangeTooLarge) {
		return toast(area, fmt.Sprintf("Range too large (max %d numbers per input).", maxExpansion(p)), err)
	}
	if err != nil {
		return toast(area, "No valid numbers found.", err)
	}
	if len(vals) == 0 {
		return toast(area, "No valid numbers found.", numbers.ErrEmptyBulkInput)
	}
	added, err := s.store.AddMany(ctx, vals)
	if err != nil {
		return s.saveFailed(area, "bulk", err)
	}
	s.log.Info("bulk added", logx.Int("parsed", len(vals)), logx.Int("new", added), logx.Int("size", s.store.Size()))
	return s.rendered(area, fmt.Sprintf("Added %d number(s).", len(vals)))
}

// Search reports membership. The result overwrites the status area.
func (s *Service) Search(area *status.Area, text string) Outcome {
	n, err := numbers.ParseSingle(text)
	if err != nil {
		return toast(area, "Enter a valid integer to search.", err)
	}
	if s.store.Has(n) {
		msg := fmt.Sprintf("✅ Number %d is in the list.", n)
		area.Set(status.KindFound, msg)
		return Outcome{Message: msg, Kind: status.KindFound, Shown: true}
	}
	msg := fmt.Sprintf("❌ Number %d not found.", n)
	area.Set(status.KindNotFound, msg)
	return Outcome{Message: msg, Kind: status.KindNotFound, Shown: true}
}

// Export renders the ascending JSON artifact. It never mutates the store.
func (s *Service) Export() Artifact {
	vals := s.store.SnapshotSorted()
	return Artifact{Name: numbers.ExportFileName, Data: numbers.EncodeExport(vals), Count: len(vals)}
}

// Import merges a JSON array into the store. A payload that is not a JSON
// array adds nothing.
func (s *Service) Import(ctx context.Context, area *status.Area, data []byte) Outcome {
	vals, dropped, err := numbers.DecodeImport(data)
	if err != nil {
		s.log.Debug("import rejected", logx.Err(err))
		return toast(area, "Invalid JSON file.", err)
	}
	added, err := s.store.AddMany(ctx, vals)
	if err != nil {
		return s.saveFailed(area, "import", err)
	}
	s.log.Info("imported", logx.Int("valid", len(vals)), logx.Int("dropped", dropped), logx.Int("new", added))
	return s.rendered(area, fmt.Sprintf("Imported %d number(s).", len(vals)))
}

// Clear empties the store. Callers confirm with the user first.
func (s *Service) Clear(ctx context.Context, area *status.Area) Outcome {
	before := s.store.Size()
	if err := s.store.Clear(ctx); err != nil {
		return s.saveFailed(area, "clear", err)
	}
	s.log.Info("numbers cleared", logx.Int("removed", before))
	return s.rendered(area, "All numbers cleared.")
}

// List renders the current members ascending.
func (s *Service) List() View {
	vals := s.store.SnapshotSorted()
	return View{Count: len(vals), Numbers: vals}
}

// rendered re-renders after a mutation: the area is cleared, then msg is
// toasted into it.
func (s *Service) rendered(area *status.Area, msg string) Outcome {
	area.Reset()
	out := toast(area, msg, nil)
	out.Changed = true
	return out
}

func (s *Service) saveFailed(area *status.Area, op string, err error) Outcome {
	s.log.Error("persist failed; state unchanged", logx.String("op", op), logx.Err(err))
	return toast(area, "Could not save numbers: "+err.Error(), fmt.Errorf("%w: %w", ErrSaveFailed, err))
}

func toast(area *status.Area, msg string, err error) Outcome {
	return Outcome{Message: msg, Kind: status.KindInfo, Shown: area.Toast(msg), Err: err}
}

func maxExpansion(p numbers.Parser) int {
	if p.MaxExpansion <= 0 {
		return numbers.DefaultMaxExpansion
	}
	return p.MaxExpansion
}

// FormatList renders numbers space separated, the way the list area shows
// them.
func FormatList(vals []int64) string {
	var b strings.Builder
	for i, n := range vals {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.FormatInt(n, 10))
	}
	return b.String()
}
