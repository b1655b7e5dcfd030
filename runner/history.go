package runner

import (
	"encoding/json"

	"github.com/pkoukk/tiktoken-go"

	"github.com/submitflow/submitflow/types"
)

// TokenCounter estimates the token footprint of a serialized history entry.
type TokenCounter interface {
	Count(s string) int
}

type tiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

func (c tiktokenCounter) Count(s string) int {
	return len(c.enc.Encode(s, nil, nil))
}

// approxCounter is the fallback when the tiktoken encoding is unavailable
// (e.g. no network to fetch the BPE table). Four bytes per token is the usual
// rough estimate for English JSON.
type approxCounter struct{}

func (approxCounter) Count(s string) int {
	n := len(s) / 4
	if n == 0 && s != "" {
		n = 1
	}
	return n
}

func newTokenCounter() TokenCounter {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return approxCounter{}
	}
	return tiktokenCounter{enc: enc}
}

// History is the append-only, step-ordered record of completed steps fed back
// to the model. When a token budget is set, the oldest entries are evicted
// first once the serialized footprint exceeds it; the newest entry always
// survives. A zero budget disables eviction.
type History struct {
	counter TokenCounter
	budget  int
	entries []types.HistoryEntry
	costs   []int
	total   int
}

// NewHistory creates a History capped at budget tokens.
func NewHistory(budget int) *History {
	return &History{counter: newTokenCounter(), budget: budget}
}

// NewHistoryWithCounter is NewHistory with an explicit counter.
func NewHistoryWithCounter(budget int, counter TokenCounter) *History {
	return &History{counter: counter, budget: budget}
}

// Append records one completed step and evicts from the front if the budget
// is exceeded.
func (h *History) Append(e types.HistoryEntry) {
	cost := h.cost(e)
	h.entries = append(h.entries, e)
	h.costs = append(h.costs, cost)
	h.total += cost

	if h.budget <= 0 {
		return
	}
	for h.total > h.budget && len(h.entries) > 1 {
		h.total -= h.costs[0]
		h.entries = h.entries[1:]
		h.costs = h.costs[1:]
	}
}

// Entries returns the retained steps, oldest first.
func (h *History) Entries() []types.HistoryEntry {
	return h.entries
}

// Len returns the number of retained steps.
func (h *History) Len() int {
	return len(h.entries)
}

// Tokens returns the estimated token footprint of the retained steps.
func (h *History) Tokens() int {
	return h.total
}

func (h *History) cost(e types.HistoryEntry) int {
	b, err := json.Marshal(e)
	if err != nil {
		return 0
	}
	return h.counter.Count(string(b))
}
