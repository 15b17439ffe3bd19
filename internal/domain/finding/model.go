package finding

import "time"

// Severity levels, ordered from most to least urgent.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
	SeverityInfo     = "info"
)

// Finding sources.
const (
	SourceRule = "rule"
	SourceAI   = "ai"
)

// Categories produced by the rule engine.
const (
	CategoryRootUser        = "root_user"
	CategoryPrivilegedMode  = "privileged_mode"
	CategorySecretEnv       = "secret_env_vars"
	CategoryDangerousMount  = "dangerous_mount"
	CategoryHostNetwork     = "host_network"
	CategoryExposedPorts    = "exposed_ports"
	CategoryFloatingTag     = "floating_image_tag"
	CategoryNoResourceLimit = "missing_resource_limits"
	CategoryDefaultNetwork  = "default_network"
	CategoryNoHealthcheck   = "missing_healthcheck"
	CategoryFirewallBypass  = "firewall_bypass"
)

// FixKind is a closed set of remediation kinds. Anything outside the three
// declared kinds must be rejected by validation, not silently passed through.
type FixKind string

const (
	FixKindConfigReplace FixKind = "config_replace"
	FixKindHostCommand   FixKind = "host_command"
	FixKindManual        FixKind = "manual"
)

// Valid reports whether k is one of the declared fix kinds.
func (k FixKind) Valid() bool {
	switch k {
	case FixKindConfigReplace, FixKindHostCommand, FixKindManual:
		return true
	}
	return false
}

// Finding is one identified security issue. IDs are generated fresh per
// finding and never reused across audit runs; consumers key caches by ID.
type Finding struct {
	ID       string `json:"id"`
	Severity string `json:"severity"`
	Category string `json:"category"`
	Title    string `json:"title"`
	// Container is empty for infrastructure-wide findings.
	Container   string      `json:"container,omitempty"`
	Description string      `json:"description"`
	Risk        string      `json:"risk"`
	Fix         *FixPayload `json:"fix,omitempty"`
	Source      string      `json:"source"`
}

// FixPayload carries the remediation instructions attached to a finding.
type FixPayload struct {
	Kind FixKind `json:"kind"`
	// TargetPath and Content are set for config_replace fixes. An empty
	// TargetPath means no configuration file could be matched to the
	// container; such findings cannot be auto-fixed.
	TargetPath string `json:"target_path,omitempty"`
	Content    string `json:"content,omitempty"`
	// Commands is an ordered list of advisory shell commands for
	// host_command fixes. They are never auto-executed.
	Commands        []string `json:"commands,omitempty"`
	SideEffects     []string `json:"side_effects,omitempty"`
	RequiresRestart bool     `json:"requires_restart"`
	RestartTarget   string   `json:"restart_target,omitempty"`
}

// Diff line tags.
const (
	DiffTagHeader  = "header"
	DiffTagAdded   = "added"
	DiffTagRemoved = "removed"
	DiffTagContext = "context"
)

// DiffLine is one line of a computed diff.
type DiffLine struct {
	Tag  string `json:"tag"`
	Text string `json:"text"`
}

// DiffPreview is the before/after comparison for a proposed fix. Replaying
// Lines against Original reconstructs Proposed exactly.
type DiffPreview struct {
	TargetPath  string     `json:"target_path"`
	Original    string     `json:"original"`
	Proposed    string     `json:"proposed"`
	Lines       []DiffLine `json:"lines"`
	SideEffects []string   `json:"side_effects,omitempty"`
}

// FixResult reports the outcome of one apply attempt.
type FixResult struct {
	Success bool `json:"success"`
	// BackupPath is empty only when the apply failed before any write.
	BackupPath         string     `json:"backup_path,omitempty"`
	RestartedContainer string     `json:"restarted_container,omitempty"`
	AppliedAt          *time.Time `json:"applied_at,omitempty"`
	Error              string     `json:"error,omitempty"`
}

// Practice is a positive security practice reported by the deep analysis.
type Practice struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
}

// Recommendation is a general hardening recommendation from the deep analysis.
type Recommendation struct {
	Priority    string   `json:"priority"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Commands    []string `json:"commands,omitempty"`
}

// AuditReport is the aggregate result of one audit run.
type AuditReport struct {
	Score           int              `json:"score"`
	Summary         string           `json:"summary"`
	Findings        []Finding        `json:"findings"`
	Practices       []Practice       `json:"practices"`
	Recommendations []Recommendation `json:"recommendations"`
	GeneratedAt     time.Time        `json:"generated_at"`
	// Degraded is set when the deep analysis could not be recovered and the
	// report carries only rule-engine findings.
	Degraded bool `json:"degraded,omitempty"`
}
