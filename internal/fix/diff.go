package fix

import (
	"strings"

	"github.com/ovidijusr/shieldai/internal/domain/finding"
)

// computeDiff produces a full-file, line-based diff between original and
// proposed. Header lines are tagged as such; every content line of both
// inputs appears exactly once as context, removed or added, so replaying
// the lines (context + added) reconstructs the proposed text exactly.
func computeDiff(path, original, proposed string) []finding.DiffLine {
	lines := []finding.DiffLine{
		{Tag: finding.DiffTagHeader, Text: "--- " + path},
		{Tag: finding.DiffTagHeader, Text: "+++ " + path},
	}

	a := splitLines(original)
	b := splitLines(proposed)

	for _, op := range diffOps(a, b) {
		lines = append(lines, finding.DiffLine{Tag: op.Tag, Text: op.Text})
	}
	return lines
}

// ReplayDiff applies tagged diff lines, reconstructing the proposed text.
// Header and removed lines are skipped; context and added lines are kept.
func ReplayDiff(lines []finding.DiffLine) string {
	var out []string
	for _, l := range lines {
		switch l.Tag {
		case finding.DiffTagContext, finding.DiffTagAdded:
			out = append(out, l.Text)
		}
	}
	return strings.Join(out, "\n")
}

// splitLines splits on newlines, keeping the empty element a trailing
// newline produces. That element round-trips the final newline through
// ReplayDiff, so reconstruction is exact for content with or without one.
func splitLines(s string) []string {
	return strings.Split(s, "\n")
}

// diffOps computes a longest-common-subsequence diff. Config files are
// small, so the quadratic table is fine.
func diffOps(a, b []string) []finding.DiffLine {
	n, m := len(a), len(b)
	lcs := make([][]int, n+1)
	for i := range lcs {
		lcs[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if a[i] == b[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else if lcs[i+1][j] >= lcs[i][j+1] {
				lcs[i][j] = lcs[i+1][j]
			} else {
				lcs[i][j] = lcs[i][j+1]
			}
		}
	}

	var out []finding.DiffLine
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case a[i] == b[j]:
			out = append(out, finding.DiffLine{Tag: finding.DiffTagContext, Text: a[i]})
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			out = append(out, finding.DiffLine{Tag: finding.DiffTagRemoved, Text: a[i]})
			i++
		default:
			out = append(out, finding.DiffLine{Tag: finding.DiffTagAdded, Text: b[j]})
			j++
		}
	}
	for ; i < n; i++ {
		out = append(out, finding.DiffLine{Tag: finding.DiffTagRemoved, Text: a[i]})
	}
	for ; j < m; j++ {
		out = append(out, finding.DiffLine{Tag: finding.DiffTagAdded, Text: b[j]})
	}
	return out
}
