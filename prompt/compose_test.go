package prompt

import (
	"strings"
	"testing"
)

func TestComposeStructure(t *testing.T) {
	got := Compose("$ ls\nfile.txt", "what is in this directory?")

	if !strings.HasPrefix(got, "You are a cybersecurity AI helper") {
		t.Fatalf("missing role statement: %q", got)
	}
	if !strings.Contains(got, "```\n$ ls\nfile.txt\n```") {
		t.Fatalf("snapshot not fenced: %q", got)
	}
	if !strings.HasSuffix(got, "USER QUESTION:\nwhat is in this directory?") {
		t.Fatalf("question must come last: %q", got)
	}
	for _, want := range []string{
		"1. Answer the user's question based on the terminal context",
		"   - " + DefaultLesson,
		"3. Be helpful, concise, and educational.",
		"4. Format your response with Markdown",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("missing %q in %q", want, got)
		}
	}

	ctx := strings.Index(got, "CONTEXT:")
	ins := strings.Index(got, "INSTRUCTIONS:")
	q := strings.Index(got, "USER QUESTION:")
	if !(ctx < ins && ins < q) {
		t.Fatalf("sections out of order: %d %d %d", ctx, ins, q)
	}
}

func TestComposeDeterministic(t *testing.T) {
	a := Compose("snap", "q")
	b := Compose("snap", "q")
	if a != b {
		t.Fatalf("Compose is not deterministic")
	}
}

func TestComposeEmptySnapshot(t *testing.T) {
	got := Compose("", "hi")
	if !strings.Contains(got, "```\n\n```") {
		t.Fatalf("empty snapshot should still be fenced: %q", got)
	}
}

func TestComposeBackticksInSnapshot(t *testing.T) {
	got := Compose("$ cat notes.md\n```bash\nls\n```", "q")
	if !strings.Contains(got, "````\n$ cat notes.md") {
		t.Fatalf("fence should outgrow embedded backticks: %q", got)
	}
}

func TestComposerLessons(t *testing.T) {
	c := Composer{Lessons: []string{"Unit 2: Networking", "Unit 3: Permissions"}}
	got := c.Compose("", "q")
	if strings.Contains(got, DefaultLesson) {
		t.Fatalf("default lesson should be replaced")
	}
	if !strings.Contains(got, "   - Unit 2: Networking\n   - Unit 3: Permissions\n") {
		t.Fatalf("lessons not listed: %q", got)
	}
}
