// Package rules evaluates a fixed battery of deterministic security checks
// over an infrastructure snapshot.
package rules

import (
	"github.com/google/uuid"
	"github.com/ovidijusr/shieldai/internal/classifier"
	"github.com/ovidijusr/shieldai/internal/domain/audit"
	"github.com/ovidijusr/shieldai/internal/domain/finding"
	"github.com/ovidijusr/shieldai/internal/pkg/logger"
)

// Engine runs every rule against a snapshot and concatenates the results.
// It is stateless and safe for concurrent use across audit runs.
type Engine struct {
	classifier *classifier.Classifier
	log        *logger.Logger
}

// NewEngine creates a rule engine.
func NewEngine(c *classifier.Classifier, log *logger.Logger) *Engine {
	return &Engine{classifier: c, log: log}
}

// Evaluate runs every rule in a fixed, documented order and returns the
// concatenated findings. The order below is the output order; grouping and
// sorting by severity is a presentation concern, not ours. A rule that
// cannot evaluate a field omits the finding for that case; no rule fails.
func (e *Engine) Evaluate(snap *audit.Snapshot) []finding.Finding {
	var findings []finding.Finding

	// Per-container rules, in rule order.
	findings = append(findings, e.checkRootUser(snap)...)
	findings = append(findings, e.checkPrivileged(snap)...)
	findings = append(findings, e.checkSecretEnv(snap)...)
	findings = append(findings, e.checkDangerousMounts(snap)...)
	findings = append(findings, e.checkHostNetwork(snap)...)
	findings = append(findings, e.checkExposedPorts(snap)...)
	findings = append(findings, e.checkFloatingTags(snap)...)
	findings = append(findings, e.checkResourceLimits(snap)...)
	findings = append(findings, e.checkDefaultNetwork(snap)...)
	findings = append(findings, e.checkHealthchecks(snap)...)

	// Infrastructure-wide rules last.
	findings = append(findings, e.checkFirewallBypass(snap)...)

	e.log.WithFields(map[string]interface{}{
		"containers": len(snap.Containers),
		"findings":   len(findings),
	}).Info("Rule evaluation completed")

	return findings
}

// newFinding stamps a fresh id and the rule source. IDs are never reused
// across runs; consumers key caches by id.
func newFinding(severity, category, title, container, description, risk string, fix *finding.FixPayload) finding.Finding {
	return finding.Finding{
		ID:          uuid.New().String(),
		Severity:    severity,
		Category:    category,
		Title:       title,
		Container:   container,
		Description: description,
		Risk:        risk,
		Fix:         fix,
		Source:      finding.SourceRule,
	}
}

// configReplaceFix builds a config_replace payload for a container. The
// target path is resolved by a best-effort match between the container name
// and the discovered configuration files; it stays empty when nothing
// matches, which callers must treat as "cannot auto-fix". Replacement
// content is supplied later, by the deep analysis or by explicit synthesis.
func configReplaceFix(snap *audit.Snapshot, containerName string, sideEffects ...string) *finding.FixPayload {
	return &finding.FixPayload{
		Kind:            finding.FixKindConfigReplace,
		TargetPath:      resolveConfigPath(snap, containerName),
		SideEffects:     sideEffects,
		RequiresRestart: true,
		RestartTarget:   containerName,
	}
}
