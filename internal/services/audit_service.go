// Package services orchestrates audit runs: snapshot collection, rule
// evaluation, deep analysis, and fix handling against run results.
package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ovidijusr/shieldai/internal/domain/audit"
	"github.com/ovidijusr/shieldai/internal/domain/finding"
	"github.com/ovidijusr/shieldai/internal/pkg/errors"
	"github.com/ovidijusr/shieldai/internal/pkg/logger"
	"github.com/ovidijusr/shieldai/internal/pkg/metrics"
	"github.com/ovidijusr/shieldai/internal/stream"
)

// Audit modes.
const (
	ModeQuick = "quick"
	ModeDeep  = "deep"
)

// Snapshotter collects infrastructure snapshots.
type Snapshotter interface {
	Snapshot(ctx context.Context) (*audit.Snapshot, error)
}

// RuleEvaluator runs the deterministic checks against a snapshot.
type RuleEvaluator interface {
	Evaluate(snap *audit.Snapshot) []finding.Finding
}

// Analyzer performs the deep analysis pass. Nil when no provider is
// configured, which restricts the service to quick audits.
type Analyzer interface {
	Analyze(ctx context.Context, snap *audit.Snapshot, seed []finding.Finding) (<-chan stream.Result, error)
}

// Fixer previews and applies remediations.
type Fixer interface {
	Preview(ctx context.Context, f *finding.Finding) (*finding.DiffPreview, error)
	Apply(ctx context.Context, f *finding.Finding) (*finding.FixResult, error)
}

// AuditContext is the state of one audit run. Fix operations always name a
// run and a finding within it, so results from different runs never mix.
type AuditContext struct {
	ID        string               `json:"id"`
	Mode      string               `json:"mode"`
	StartedAt time.Time            `json:"started_at"`
	Snapshot  *audit.Snapshot      `json:"snapshot,omitempty"`
	Report    *finding.AuditReport `json:"report"`

	findings map[string]*finding.Finding
}

// Finding returns the identified finding from this run, or nil.
func (c *AuditContext) Finding(id string) *finding.Finding {
	return c.findings[id]
}

func (c *AuditContext) index() {
	c.findings = make(map[string]*finding.Finding, len(c.Report.Findings))
	for i := range c.Report.Findings {
		c.findings[c.Report.Findings[i].ID] = &c.Report.Findings[i]
	}
}

// AuditService runs audits and routes fix requests to the findings of a
// specific run.
type AuditService struct {
	snapshotter Snapshotter
	rules       RuleEvaluator
	analyzer    Analyzer
	fixer       Fixer
	log         *logger.Logger

	mu   sync.RWMutex
	runs map[string]*AuditContext
}

// NewAuditService creates the orchestrator. analyzer may be nil.
func NewAuditService(snapshotter Snapshotter, rules RuleEvaluator, analyzer Analyzer, fixer Fixer, log *logger.Logger) *AuditService {
	return &AuditService{
		snapshotter: snapshotter,
		rules:       rules,
		analyzer:    analyzer,
		fixer:       fixer,
		log:         log,
		runs:        make(map[string]*AuditContext),
	}
}

// Run executes an audit in the given mode and retains the run context for
// later fix operations.
func (s *AuditService) Run(ctx context.Context, mode string) (*AuditContext, error) {
	switch mode {
	case ModeQuick, ModeDeep:
	default:
		return nil, errors.ValidationError("audit mode must be quick or deep", map[string]string{"mode": mode})
	}
	if mode == ModeDeep && s.analyzer == nil {
		return nil, errors.ValidationError("deep audit requires a configured model provider", nil)
	}

	start := time.Now()
	run := &AuditContext{
		ID:        uuid.New().String(),
		Mode:      mode,
		StartedAt: start.UTC(),
	}

	snap, err := s.snapshotter.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	run.Snapshot = snap

	seed := s.rules.Evaluate(snap)

	if mode == ModeQuick {
		run.Report = quickReport(seed)
	} else {
		report, err := s.deepReport(ctx, snap, seed)
		if err != nil {
			return nil, err
		}
		run.Report = report
	}
	run.index()

	for _, f := range run.Report.Findings {
		metrics.RecordFinding(string(f.Severity), string(f.Source))
	}
	metrics.RecordAudit(mode, time.Since(start))

	s.mu.Lock()
	s.runs[run.ID] = run
	s.mu.Unlock()

	s.log.WithFields(map[string]interface{}{
		"run_id":   run.ID,
		"mode":     mode,
		"findings": len(run.Report.Findings),
		"score":    run.Report.Score,
		"degraded": run.Report.Degraded,
	}).Info("Audit completed")

	return run, nil
}

// deepReport runs the analyzer and merges the deterministic findings with
// what the extractor recovered. A degraded extraction already carries the
// seed findings; a successful one carries only the model's, so the seed is
// prepended then.
func (s *AuditService) deepReport(ctx context.Context, snap *audit.Snapshot, seed []finding.Finding) (*finding.AuditReport, error) {
	results, err := s.analyzer.Analyze(ctx, snap, seed)
	if err != nil {
		return nil, err
	}

	var report *finding.AuditReport
	for r := range results {
		if r.Report != nil {
			report = r.Report
		}
	}
	if report == nil {
		return nil, errors.Internal("analysis stream ended without a report", nil)
	}

	if !report.Degraded {
		report.Findings = append(append([]finding.Finding(nil), seed...), report.Findings...)
	}
	return report, nil
}

// GetRun returns a retained run context.
func (s *AuditService) GetRun(id string) (*AuditContext, error) {
	s.mu.RLock()
	run, ok := s.runs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, errors.NotFound("audit run " + id)
	}
	return run, nil
}

// PreviewFix previews the fix of one finding from one run.
func (s *AuditService) PreviewFix(ctx context.Context, runID, findingID string) (*finding.DiffPreview, error) {
	f, err := s.findingFor(runID, findingID)
	if err != nil {
		return nil, err
	}
	return s.fixer.Preview(ctx, f)
}

// ApplyFix applies the fix of one finding from one run.
func (s *AuditService) ApplyFix(ctx context.Context, runID, findingID string) (*finding.FixResult, error) {
	f, err := s.findingFor(runID, findingID)
	if err != nil {
		return nil, err
	}
	return s.fixer.Apply(ctx, f)
}

func (s *AuditService) findingFor(runID, findingID string) (*finding.Finding, error) {
	run, err := s.GetRun(runID)
	if err != nil {
		return nil, err
	}
	f := run.Finding(findingID)
	if f == nil {
		return nil, errors.NotFound("finding " + findingID)
	}
	return f, nil
}

// quickReport builds the rules-only report. The score starts at 100 and
// loses points per finding by severity, floored at zero.
func quickReport(findings []finding.Finding) *finding.AuditReport {
	score := 100
	for _, f := range findings {
		switch f.Severity {
		case finding.SeverityCritical:
			score -= 25
		case finding.SeverityHigh:
			score -= 15
		case finding.SeverityMedium:
			score -= 8
		case finding.SeverityLow:
			score -= 3
		}
	}
	if score < 0 {
		score = 0
	}

	summary := "Deterministic checks found no issues."
	if len(findings) > 0 {
		summary = "Deterministic checks raised findings; run a deep audit for remediation content."
	}

	return &finding.AuditReport{
		Score:           score,
		Summary:         summary,
		Findings:        findings,
		Practices:       []finding.Practice{},
		Recommendations: []finding.Recommendation{},
		GeneratedAt:     time.Now().UTC(),
	}
}
