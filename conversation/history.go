// Package conversation holds the turns exchanged within one session.
package conversation

import (
	"sync"

	"github.com/linanwx/labmate/logger"
	"github.com/linanwx/labmate/provider"
)

// Policy bounds how much history is kept. Zero disables a limit; with both
// limits at zero history grows for the lifetime of the session.
type Policy struct {
	MaxTurns    int
	TokenBudget int
}

// History is an ordered, append-only log of successful exchanges.
type History struct {
	mu     sync.Mutex
	turns  []provider.Turn
	tokens []int
	policy Policy
	count  func(string) int
}

// New creates an empty history with the given retention policy.
func New(policy Policy) *History {
	return &History{policy: policy, count: CountTokens}
}

// Append adds turns to the end of the log and applies the retention policy.
func (h *History) Append(turns ...provider.Turn) {
	if len(turns) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, t := range turns {
		h.turns = append(h.turns, t)
		n := 0
		if h.policy.TokenBudget > 0 {
			n = h.count(t.Text)
		}
		h.tokens = append(h.tokens, n)
	}
	h.evict()
}

// AppendExchange records a successful round trip.
func (h *History) AppendExchange(user, model string) {
	h.Append(provider.UserTurn(user), provider.ModelTurn(model))
}

// Snapshot returns a copy of all turns in order.
func (h *History) Snapshot() []provider.Turn {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]provider.Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Len returns the number of stored turns.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}

// Tokens returns the counted size of the stored turns. It is zero when no
// token budget is configured.
func (h *History) Tokens() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return sum(h.tokens)
}

// evict drops whole exchanges from the oldest end. The newest exchange is
// always kept. Caller holds h.mu.
func (h *History) evict() {
	dropped := 0
	for len(h.turns) > 2 && h.overLimit() {
		h.turns = h.turns[2:]
		h.tokens = h.tokens[2:]
		dropped += 2
	}
	if dropped > 0 {
		// Reallocate so evicted turns can be collected.
		h.turns = append([]provider.Turn(nil), h.turns...)
		h.tokens = append([]int(nil), h.tokens...)
		logger.Debug("history trimmed", "droppedTurns", dropped, "keptTurns", len(h.turns), "tokens", sum(h.tokens))
	}
}

func (h *History) overLimit() bool {
	if h.policy.MaxTurns > 0 && len(h.turns) > h.policy.MaxTurns {
		return true
	}
	return h.policy.TokenBudget > 0 && sum(h.tokens) > h.policy.TokenBudget
}

func sum(values []int) int {
	total := 0
	for _, v := range values {
		total += v
	}
	return total
}
