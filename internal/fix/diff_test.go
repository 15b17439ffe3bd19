package fix

import (
	"testing"

	"github.com/ovidijusr/shieldai/internal/domain/finding"
)

func TestComputeDiff_Tags(t *testing.T) {
	original := "services:\n  db:\n    image: postgres:14\n    privileged: true\n"
	proposed := "services:\n  db:\n    image: postgres:14\n    user: \"999:999\"\n"

	lines := computeDiff("/srv/stack/docker-compose.yml", original, proposed)

	if len(lines) < 2 ||
		lines[0].Tag != finding.DiffTagHeader || lines[1].Tag != finding.DiffTagHeader {
		t.Fatalf("diff does not start with two header lines: %+v", lines[:2])
	}

	var added, removed int
	for _, l := range lines[2:] {
		switch l.Tag {
		case finding.DiffTagAdded:
			added++
			if l.Text != `    user: "999:999"` {
				t.Errorf("unexpected added line %q", l.Text)
			}
		case finding.DiffTagRemoved:
			removed++
			if l.Text != "    privileged: true" {
				t.Errorf("unexpected removed line %q", l.Text)
			}
		}
	}
	if added != 1 || removed != 1 {
		t.Errorf("added/removed = %d/%d, want 1/1", added, removed)
	}
}

func TestComputeDiff_RoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		original string
		proposed string
	}{
		{"line change", "a\nb\nc\n", "a\nx\nc\n"},
		{"no trailing newline", "a\nb", "a\nb\nc"},
		{"trailing newline added", "a\nb", "a\nb\n"},
		{"trailing newline removed", "a\nb\n", "a\nb"},
		{"empty to content", "", "services:\n  db: {}\n"},
		{"content to empty", "x\ny\n", ""},
		{"identical", "same\n", "same\n"},
		{"blank lines preserved", "a\n\n\nb\n", "a\n\nb\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := computeDiff("f", tt.original, tt.proposed)
			if got := ReplayDiff(lines); got != tt.proposed {
				t.Errorf("ReplayDiff() = %q, want %q", got, tt.proposed)
			}
		})
	}
}

func TestComputeDiff_IdenticalIsAllContext(t *testing.T) {
	content := "a\nb\nc\n"
	for _, l := range computeDiff("f", content, content)[2:] {
		if l.Tag != finding.DiffTagContext {
			t.Fatalf("identical inputs produced %q line %q", l.Tag, l.Text)
		}
	}
}
