// Package stream recovers one structured analysis document from a
// token-by-token model output stream.
//
// The detection is a heuristic, not a full JSON tokenizer: it counts brace
// depth outside string literals and attempts a parse whenever the depth
// returns to zero. Parse failures at that point are not errors, only "not
// yet complete" — malformed output can balance braces before the true end.
package stream

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ovidijusr/shieldai/internal/domain/finding"
	"github.com/ovidijusr/shieldai/internal/pkg/logger"
	"github.com/ovidijusr/shieldai/internal/pkg/metrics"
)

// Outcome labels for how a stream was resolved.
const (
	outcomeInline     = "inline"
	outcomeFenced     = "fenced"
	outcomeFullBuffer = "full_buffer"
	outcomeDegraded   = "degraded"
)

// Result is one typed item recovered from the stream. Exactly one field is
// non-nil. The aggregate Report is always the final item.
type Result struct {
	Finding        *finding.Finding
	Practice       *finding.Practice
	Recommendation *finding.Recommendation
	Report         *finding.AuditReport
}

// Extractor incrementally recovers a single analysis document from an
// ordered sequence of text fragments. It is single-use and must not be fed
// from multiple goroutines: fragments have to arrive in order.
type Extractor struct {
	buf strings.Builder
	log *logger.Logger

	// seed findings back the degraded fallback when no document can be
	// recovered from the stream.
	seed []finding.Finding

	// Brace-counting scan state.
	depth    int
	inString bool
	escape   bool
	started  bool
	docStart int

	resolved bool
}

// New creates an extractor. seed carries the rule-engine findings used for
// the degraded fallback; it may be nil.
func New(seed []finding.Finding, log *logger.Logger) *Extractor {
	return &Extractor{seed: seed, log: log, docStart: -1}
}

// Resolved reports whether a document has already been recovered. Fragments
// fed after resolution are ignored.
func (x *Extractor) Resolved() bool {
	return x.resolved
}

// Feed appends one fragment and returns any results that became available.
// Once the document is detected the stream counts as resolved even if more
// fragments remain; further Feed calls return nil.
func (x *Extractor) Feed(fragment string) []Result {
	if x.resolved || fragment == "" {
		return nil
	}

	base := x.buf.Len()
	x.buf.WriteString(fragment)
	text := x.buf.String()

	for i := 0; i < len(fragment); i++ {
		ch := fragment[i]

		if x.escape {
			x.escape = false
			continue
		}
		if x.inString {
			switch ch {
			case '\\':
				x.escape = true
			case '"':
				x.inString = false
			}
			continue
		}

		switch ch {
		case '"':
			x.inString = true
		case '{':
			if x.depth == 0 && !x.started {
				x.docStart = base + i
			}
			x.depth++
			x.started = true
		case '}':
			if x.depth > 0 {
				x.depth--
			}
			if x.depth == 0 && x.started {
				candidate := text[x.docStart : base+i+1]
				if results, ok := x.tryParse(candidate, outcomeInline); ok {
					x.resolved = true
					return results
				}
				// Looked balanced but did not parse; keep accumulating.
			}
		}
	}

	return nil
}

// Finish signals the end of the fragment sequence. If no document was
// detected inline it attempts, in order: fenced-code-block extraction, then
// parsing the whole trimmed buffer. When everything fails it returns a
// degraded aggregate carrying only the seed findings. It never fails.
func (x *Extractor) Finish() []Result {
	if x.resolved {
		return nil
	}
	x.resolved = true

	text := x.buf.String()

	if fenced, ok := extractFenced(text); ok {
		if results, ok := x.tryParse(fenced, outcomeFenced); ok {
			return results
		}
	}

	if results, ok := x.tryParse(strings.TrimSpace(text), outcomeFullBuffer); ok {
		return results
	}

	x.log.WithFields(map[string]interface{}{
		"buffer_len": len(text),
	}).Warn("No analysis document recovered from model stream, returning degraded report")
	metrics.RecordExtractorOutcome(outcomeDegraded)

	return []Result{{Report: &finding.AuditReport{
		Summary:         "The deep analysis response could not be parsed; only deterministic rule findings are included.",
		Findings:        append([]finding.Finding(nil), x.seed...),
		Practices:       []finding.Practice{},
		Recommendations: []finding.Recommendation{},
		GeneratedAt:     time.Now().UTC(),
		Degraded:        true,
	}}}
}

// Run consumes fragments from a channel and delivers results on the
// returned channel, which is closed after the aggregate. It drains the
// fragment channel even after the document resolves, so producers never
// block.
func (x *Extractor) Run(ctx context.Context, fragments <-chan string) <-chan Result {
	out := make(chan Result)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				for _, r := range x.Finish() {
					out <- r
				}
				return
			case frag, ok := <-fragments:
				if !ok {
					for _, r := range x.Finish() {
						out <- r
					}
					return
				}
				for _, r := range x.Feed(frag) {
					select {
					case out <- r:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return out
}

// analysisDoc is the wire shape the model is prompted to produce.
type analysisDoc struct {
	SecurityScore int    `json:"security_score"`
	Summary       string `json:"summary"`
	Findings      []struct {
		Severity    string `json:"severity"`
		Category    string `json:"category"`
		Title       string `json:"title"`
		Container   string `json:"container"`
		Description string `json:"description"`
		Risk        string `json:"risk"`
		Fix         *struct {
			Kind            string   `json:"kind"`
			TargetPath      string   `json:"target_path"`
			Content         string   `json:"content"`
			Commands        []string `json:"commands"`
			SideEffects     []string `json:"side_effects"`
			RequiresRestart bool     `json:"requires_restart"`
			RestartTarget   string   `json:"restart_target"`
		} `json:"fix"`
	} `json:"findings"`
	GoodPractices   []finding.Practice       `json:"good_practices"`
	Recommendations []finding.Recommendation `json:"recommendations"`
}

// tryParse attempts to decode candidate as the analysis document. On
// success it stamps the report timestamp and returns each part followed by
// the aggregate.
func (x *Extractor) tryParse(candidate, outcome string) ([]Result, bool) {
	var doc analysisDoc
	if err := json.Unmarshal([]byte(candidate), &doc); err != nil {
		return nil, false
	}
	// Required top-level fields: a bare JSON object that is not our
	// document (for example an embedded fix payload) must not resolve
	// the stream.
	if doc.Summary == "" && doc.Findings == nil {
		return nil, false
	}

	report := &finding.AuditReport{
		Score:           doc.SecurityScore,
		Summary:         doc.Summary,
		Practices:       doc.GoodPractices,
		Recommendations: doc.Recommendations,
		GeneratedAt:     time.Now().UTC(),
	}
	if report.Practices == nil {
		report.Practices = []finding.Practice{}
	}
	if report.Recommendations == nil {
		report.Recommendations = []finding.Recommendation{}
	}

	var results []Result
	for _, f := range doc.Findings {
		conv := finding.Finding{
			ID:          uuid.New().String(),
			Severity:    f.Severity,
			Category:    f.Category,
			Title:       f.Title,
			Container:   f.Container,
			Description: f.Description,
			Risk:        f.Risk,
			Source:      finding.SourceAI,
		}
		if f.Fix != nil && finding.FixKind(f.Fix.Kind).Valid() {
			conv.Fix = &finding.FixPayload{
				Kind:            finding.FixKind(f.Fix.Kind),
				TargetPath:      f.Fix.TargetPath,
				Content:         f.Fix.Content,
				Commands:        f.Fix.Commands,
				SideEffects:     f.Fix.SideEffects,
				RequiresRestart: f.Fix.RequiresRestart,
				RestartTarget:   f.Fix.RestartTarget,
			}
		}
		report.Findings = append(report.Findings, conv)
		fc := conv
		results = append(results, Result{Finding: &fc})
	}
	if report.Findings == nil {
		report.Findings = []finding.Finding{}
	}

	for i := range report.Practices {
		p := report.Practices[i]
		results = append(results, Result{Practice: &p})
	}
	for i := range report.Recommendations {
		r := report.Recommendations[i]
		results = append(results, Result{Recommendation: &r})
	}

	results = append(results, Result{Report: report})
	metrics.RecordExtractorOutcome(outcome)
	return results, true
}

// extractFenced returns the content of the first fenced code block, with an
// optional language hint after the opening fence.
func extractFenced(text string) (string, bool) {
	open := strings.Index(text, "```")
	if open < 0 {
		return "", false
	}
	rest := text[open+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		// Drop a language hint like "json" on the fence line.
		hint := strings.TrimSpace(rest[:nl])
		if hint == "" || isWord(hint) {
			rest = rest[nl+1:]
		}
	}
	closing := strings.Index(rest, "```")
	if closing < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:closing]), true
}

func isWord(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return len(s) > 0
}
