// Package status implements the single feedback area that shows the outcome
// of the most recent action.
package status

import (
	"strings"
	"sync"
)

// Policy decides what happens to a toast when the area already shows text.
type Policy string

const (
	// PolicyKeep writes a toast only into an empty area and drops it otherwise.
	PolicyKeep Policy = "keep"
	// PolicyStack appends toasts, keeping the newest MaxStack lines.
	PolicyStack Policy = "stack"
)

const DefaultMaxStack = 5

// Kind tags the visual state of the area.
type Kind string

const (
	KindInfo     Kind = ""
	KindFound    Kind = "ok"
	KindNotFound Kind = "not"
)

// ParsePolicy maps a config value to a Policy. Unknown values fall back to
// PolicyKeep.
func ParsePolicy(s string) Policy {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyStack:
		return PolicyStack
	default:
		return PolicyKeep
	}
}

// Area is one status area. The zero value uses PolicyKeep.
type Area struct {
	mu       sync.Mutex
	policy   Policy
	maxStack int
	lines    []string
	kind     Kind
	version  uint64
}

func NewArea(policy Policy, maxStack int) *Area {
	a := &Area{}
	a.Configure(policy, maxStack)
	return a
}

// Configure swaps the policy at runtime. Current contents are kept.
func (a *Area) Configure(policy Policy, maxStack int) {
	if maxStack <= 0 {
		maxStack = DefaultMaxStack
	}
	a.mu.Lock()
	a.policy = policy
	a.maxStack = maxStack
	a.trimLocked()
	a.mu.Unlock()
}

// Reset empties the area. Called when the list is re-rendered.
func (a *Area) Reset() {
	a.mu.Lock()
	if len(a.lines) > 0 || a.kind != KindInfo {
		a.lines = nil
		a.kind = KindInfo
		a.version++
	}
	a.mu.Unlock()
}

// Set overwrites the area unconditionally.
func (a *Area) Set(kind Kind, msg string) {
	a.mu.Lock()
	a.lines = []string{msg}
	a.kind = kind
	a.version++
	a.mu.Unlock()
}

// Toast posts an informational message under the area's policy and reports
// whether it became visible.
func (a *Area) Toast(msg string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch a.policy {
	case PolicyStack:
		a.lines = append(a.lines, msg)
		a.trimLocked()
	default:
		if len(a.lines) > 0 {
			return false
		}
		a.lines = []string{msg}
	}
	a.kind = KindInfo
	a.version++
	return true
}

func (a *Area) trimLocked() {
	if a.policy != PolicyStack {
		return
	}
	if n := len(a.lines) - a.maxStack; n > 0 {
		a.lines = append([]string(nil), a.lines[n:]...)
	}
}

// Text returns the visible text, newest line last.
func (a *Area) Text() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return strings.Join(a.lines, "\n")
}

// Snapshot returns the visible text, its kind and a version that changes on
// every visible update.
func (a *Area) Snapshot() (text string, kind Kind, version uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return strings.Join(a.lines, "\n"), a.kind, a.version
}
