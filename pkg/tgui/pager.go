package tgui

import (
	"fmt"
	"strconv"

	kit "rafflebot/internal/transport"
)

// Page is one window over a list. Index is 0-based.
type Page[T any] struct {
	Items   []T
	Index   int
	Pages   int
	From    int // 1-based, 0 when empty
	To      int
	Total   int
	HasPrev bool
	HasNext bool
}

// Paginate returns the page at index, clamped to the valid range.
func Paginate[T any](items []T, index, size int) Page[T] {
	if size <= 0 {
		size = 10
	}
	total := len(items)
	pages := max(1, (total+size-1)/size)
	index = min(max(index, 0), pages-1)
	start := min(index*size, total)
	end := min(start+size, total)
	p := Page[T]{
		Items:   items[start:end],
		Index:   index,
		Pages:   pages,
		To:      end,
		Total:   total,
		HasPrev: index > 0,
		HasNext: end < total,
	}
	if end > start {
		p.From = start + 1
	}
	return p
}

// Label renders e.g. "Page 2/5 • 101–200 of 480".
func (p Page[T]) Label() string {
	if p.Total == 0 {
		return "Page 1/1"
	}
	return fmt.Sprintf("Page %d/%d • %d–%d of %d", p.Index+1, p.Pages, p.From, p.To, p.Total)
}

// Nav returns prev/next buttons routed to prefix:action:<page index>.
func (p Page[T]) Nav(prefix, action string) []kit.Button {
	var out []kit.Button
	if p.HasPrev {
		out = append(out, Btn("« Prev", prefix, action, strconv.Itoa(p.Index-1)))
	}
	if p.HasNext {
		out = append(out, Btn("Next »", prefix, action, strconv.Itoa(p.Index+1)))
	}
	return out
}
