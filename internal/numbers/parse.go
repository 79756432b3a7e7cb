package numbers

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// DefaultMaxExpansion bounds how many integers one bulk input may produce.
const DefaultMaxExpansion = 100_000

var rangeToken = regexp.MustCompile(`^([0-9]+)-([0-9]+)$`)

// Parser turns bulk text into integers.
type Parser struct {
	// MaxExpansion caps the total count of integers one input may emit.
	// Zero or negative means DefaultMaxExpansion.
	MaxExpansion int
}

func (p Parser) limit() int {
	if p.MaxExpansion <= 0 {
		return DefaultMaxExpansion
	}
	return p.MaxExpansion
}

// ParseBulk parses text with the default limit.
func ParseBulk(text string) ([]int64, error) {
	return Parser{}.ParseBulk(text)
}

// ParseBulk splits text on runs of commas, semicolons and whitespace.
//
// A token of the form "a-b" (ASCII digits only) expands to the inclusive
// range between a and b in ascending order. Any other token contributes the
// integer found by a leading scan (optional sign, then digits, trailing
// garbage ignored), or nothing at all. Duplicates are kept.
//
// Empty input yields an empty result and no error. ErrRangeTooLarge is
// returned, with no numbers, when the output would exceed the limit.
func (p Parser) ParseBulk(text string) ([]int64, error) {
	limit := p.limit()
	var out []int64
	for _, tok := range splitBulk(text) {
		if m := rangeToken.FindStringSubmatch(tok); m != nil {
			a, errA := strconv.ParseInt(m[1], 10, 64)
			b, errB := strconv.ParseInt(m[2], 10, 64)
			if errA != nil || errB != nil {
				continue
			}
			start, end := min(a, b), max(a, b)
			// both ends are non-negative, so end-start cannot overflow
			span := uint64(end-start) + 1
			if span > uint64(limit-len(out)) {
				return nil, fmt.Errorf("%w: %q expands past %d numbers", ErrRangeTooLarge, tok, limit)
			}
			for i := start; ; i++ {
				out = append(out, i)
				if i == end {
					break
				}
			}
			continue
		}
		n, ok := scanLeadingInt(tok)
		if !ok {
			continue
		}
		if len(out) >= limit {
			return nil, fmt.Errorf("%w: more than %d numbers", ErrRangeTooLarge, limit)
		}
		out = append(out, n)
	}
	return out, nil
}

func splitBulk(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ';' || isSpace(r)
	})
}

// isSpace matches the whitespace class of browser regular expressions:
// Unicode White_Space without NEL (U+0085), plus the BOM (U+FEFF).
func isSpace(r rune) bool {
	switch r {
	case '\u0085':
		return false
	case '\uFEFF':
		return true
	}
	return unicode.IsSpace(r)
}

// scanLeadingInt reads an optionally signed base-10 integer from the start of
// s and ignores whatever follows the digits.
func scanLeadingInt(s string) (int64, bool) {
	s = strings.TrimLeftFunc(s, isSpace)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseSingle parses a whole token as one integer. Surrounding whitespace is
// allowed, anything else that is not part of the number is rejected with
// ErrInvalidInput.
func ParseSingle(text string) (int64, error) {
	s := strings.TrimSpace(text)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidInput, s)
	}
	return n, nil
}
