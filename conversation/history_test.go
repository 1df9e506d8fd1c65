package conversation

import (
	"strings"
	"testing"

	"github.com/linanwx/labmate/provider"
)

func TestAppendKeepsOrder(t *testing.T) {
	h := New(Policy{})
	h.AppendExchange("q1", "a1")
	h.AppendExchange("q2", "a2")

	got := h.Snapshot()
	want := []provider.Turn{
		provider.UserTurn("q1"), provider.ModelTurn("a1"),
		provider.UserTurn("q2"), provider.ModelTurn("a2"),
	}
	if len(got) != len(want) {
		t.Fatalf("Len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("turn %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	h := New(Policy{})
	h.AppendExchange("q", "a")
	snap := h.Snapshot()
	snap[0].Text = "mutated"
	if h.Snapshot()[0].Text != "q" {
		t.Fatalf("Snapshot must not alias internal state")
	}
}

func TestUnboundedByDefault(t *testing.T) {
	h := New(Policy{})
	for i := 0; i < 200; i++ {
		h.AppendExchange("question", "answer")
	}
	if h.Len() != 400 {
		t.Fatalf("Len() = %d, want 400", h.Len())
	}
	if h.Tokens() != 0 {
		t.Fatalf("Tokens() should be zero without a budget, got %d", h.Tokens())
	}
}

func TestMaxTurnsEvictsOldestExchange(t *testing.T) {
	h := New(Policy{MaxTurns: 4})
	h.AppendExchange("q1", "a1")
	h.AppendExchange("q2", "a2")
	h.AppendExchange("q3", "a3")

	got := h.Snapshot()
	if len(got) != 4 {
		t.Fatalf("Len = %d, want 4", len(got))
	}
	if got[0].Text != "q2" || got[0].Role != provider.RoleUser {
		t.Fatalf("oldest exchange not evicted: %+v", got)
	}
}

func TestTokenBudget(t *testing.T) {
	h := New(Policy{TokenBudget: 10})
	h.count = func(s string) int { return len(s) }

	h.AppendExchange("aaaa", "bbbb") // 8
	h.AppendExchange("cc", "dd")     // 12 > 10, evicts first
	if h.Len() != 2 || h.Tokens() != 4 {
		t.Fatalf("Len=%d Tokens=%d, want 2 and 4", h.Len(), h.Tokens())
	}

	// The newest exchange survives even when it alone exceeds the budget.
	h.AppendExchange(strings.Repeat("x", 20), "y")
	if h.Len() != 2 || h.Snapshot()[1].Text != "y" {
		t.Fatalf("newest exchange dropped: %+v", h.Snapshot())
	}
}

func TestCountTokens(t *testing.T) {
	if CountTokens("") != 0 {
		t.Fatalf("empty text should count zero")
	}
	n := CountTokens("How do I list hidden files with ls?")
	if n <= 0 || n > 20 {
		t.Fatalf("CountTokens() = %d, out of range", n)
	}
}
