package fix

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ovidijusr/shieldai/internal/domain/finding"
	"github.com/ovidijusr/shieldai/internal/pkg/errors"
	"github.com/ovidijusr/shieldai/internal/pkg/logger"
	"github.com/ovidijusr/shieldai/internal/testutil"
)

const originalCompose = `services:
  db:
    image: postgres:14
    privileged: true
    ports:
      - "0.0.0.0:5432:5432"
`

const fixedCompose = `services:
  db:
    image: postgres:14
    user: "999:999"
    ports:
      - "127.0.0.1:5432:5432"
`

func newTestEngine(t *testing.T, lc *testutil.MockLifecycle, synth *testutil.MockSynthesizer) *Engine {
	t.Helper()
	if lc == nil {
		lc = &testutil.MockLifecycle{Running: true}
	}
	if synth == nil {
		synth = &testutil.MockSynthesizer{}
	}
	log := logger.New(logger.Config{Level: "error", Format: "json"})
	return NewEngine(lc, synth, t.TempDir(), time.Millisecond, log)
}

func writeTarget(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docker-compose.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func configReplaceFinding(path, content string) *finding.Finding {
	return &finding.Finding{
		ID:        "f-1",
		Severity:  finding.SeverityCritical,
		Category:  finding.CategoryPrivilegedMode,
		Title:     "db runs privileged",
		Container: "db",
		Fix: &finding.FixPayload{
			Kind:            finding.FixKindConfigReplace,
			TargetPath:      path,
			Content:         content,
			RequiresRestart: true,
			RestartTarget:   "db",
		},
	}
}

func TestEngine_Validation(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		f    *finding.Finding
	}{
		{"no fix payload", &finding.Finding{ID: "x"}},
		{"unknown kind", &finding.Finding{Fix: &finding.FixPayload{Kind: "registry_edit"}}},
		{"manual kind", &finding.Finding{Fix: &finding.FixPayload{Kind: finding.FixKindManual}}},
		{"host command kind", &finding.Finding{Fix: &finding.FixPayload{Kind: finding.FixKindHostCommand, Commands: []string{"iptables -L"}}}},
		{"no target path", &finding.Finding{Fix: &finding.FixPayload{Kind: finding.FixKindConfigReplace, Content: "x"}}},
		{"no content", &finding.Finding{Fix: &finding.FixPayload{Kind: finding.FixKindConfigReplace, TargetPath: "/tmp/x"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.Preview(ctx, tt.f); !errors.HasCode(err, errors.ErrCodeValidation) {
				t.Errorf("Preview() error = %v, want validation error", err)
			}
			res, err := e.Apply(ctx, tt.f)
			if !errors.HasCode(err, errors.ErrCodeValidation) {
				t.Errorf("Apply() error = %v, want validation error", err)
			}
			if res == nil || res.Success {
				t.Errorf("Apply() result = %+v, want failed result", res)
			}
		})
	}
}

func TestEngine_Preview(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	path := writeTarget(t, originalCompose)
	f := configReplaceFinding(path, fixedCompose)

	preview, err := e.Preview(context.Background(), f)
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}

	if preview.Original != originalCompose || preview.Proposed != fixedCompose {
		t.Error("preview does not carry both versions verbatim")
	}
	if ReplayDiff(preview.Lines) != fixedCompose {
		t.Error("replaying the preview diff does not reconstruct the proposed content")
	}

	effects := strings.Join(preview.SideEffects, "\n")
	for _, want := range []string{"privileged changes", "user changes", "port mappings"} {
		if !strings.Contains(effects, want) {
			t.Errorf("side effects missing %q:\n%s", want, effects)
		}
	}

	// Preview must not mutate the target.
	data, _ := os.ReadFile(path)
	if string(data) != originalCompose {
		t.Error("Preview() mutated the target file")
	}
}

func TestEngine_Preview_NonComposeFallsBackToDeclaredEffects(t *testing.T) {
	e := newTestEngine(t, nil, nil)
	path := writeTarget(t, "plain text, not yaml mappings")
	f := configReplaceFinding(path, "other plain text")
	f.Fix.SideEffects = []string{"daemon reload required"}

	preview, err := e.Preview(context.Background(), f)
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if len(preview.SideEffects) != 1 || preview.SideEffects[0] != "daemon reload required" {
		t.Errorf("side effects = %v, want the declared payload effects", preview.SideEffects)
	}
}

func TestEngine_Apply_Success(t *testing.T) {
	lc := &testutil.MockLifecycle{Running: true}
	e := newTestEngine(t, lc, nil)
	path := writeTarget(t, originalCompose)
	f := configReplaceFinding(path, fixedCompose)

	res, err := e.Apply(context.Background(), f)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if !res.Success || res.AppliedAt == nil {
		t.Fatalf("Apply() result = %+v, want success with timestamp", res)
	}
	if res.RestartedContainer != "db" {
		t.Errorf("restarted container = %q, want db", res.RestartedContainer)
	}
	if len(lc.Restarted) != 1 || lc.Restarted[0] != "db" {
		t.Errorf("lifecycle restarts = %v, want [db]", lc.Restarted)
	}

	data, _ := os.ReadFile(path)
	if string(data) != fixedCompose {
		t.Error("target file does not hold the replacement content")
	}

	backup, err := os.ReadFile(res.BackupPath)
	if err != nil {
		t.Fatalf("backup %s unreadable: %v", res.BackupPath, err)
	}
	if string(backup) != originalCompose {
		t.Error("backup does not hold the pre-fix content")
	}
	if !strings.Contains(filepath.Base(res.BackupPath), f.ID) {
		t.Errorf("backup name %q does not carry the finding id", res.BackupPath)
	}
}

func TestEngine_Apply_NoRestartRequired(t *testing.T) {
	lc := &testutil.MockLifecycle{Running: true}
	e := newTestEngine(t, lc, nil)
	path := writeTarget(t, originalCompose)
	f := configReplaceFinding(path, fixedCompose)
	f.Fix.RequiresRestart = false

	res, err := e.Apply(context.Background(), f)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if res.RestartedContainer != "" {
		t.Errorf("restarted container = %q, want none", res.RestartedContainer)
	}
	if len(lc.Restarted) != 0 {
		t.Errorf("lifecycle restarts = %v, want none", lc.Restarted)
	}
}

func TestEngine_Apply_RollbackOnFailedVerification(t *testing.T) {
	lc := &testutil.MockLifecycle{Running: false}
	e := newTestEngine(t, lc, nil)
	path := writeTarget(t, originalCompose)
	f := configReplaceFinding(path, fixedCompose)

	res, err := e.Apply(context.Background(), f)
	if !errors.HasCode(err, errors.ErrCodeRestart) {
		t.Fatalf("Apply() error = %v, want restart error", err)
	}
	if res.Success {
		t.Fatal("Apply() reported success despite failed verification")
	}

	data, _ := os.ReadFile(path)
	if string(data) != originalCompose {
		t.Error("target file was not rolled back to the pre-fix content")
	}

	backup, berr := os.ReadFile(res.BackupPath)
	if berr != nil {
		t.Fatalf("backup missing after rollback: %v", berr)
	}
	if string(backup) != originalCompose {
		t.Error("backup does not hold the pre-fix content")
	}
}

func TestEngine_Apply_RollbackOnRestartError(t *testing.T) {
	lc := &testutil.MockLifecycle{RestartErr: os.ErrPermission}
	e := newTestEngine(t, lc, nil)
	path := writeTarget(t, originalCompose)
	f := configReplaceFinding(path, fixedCompose)

	_, err := e.Apply(context.Background(), f)
	if !errors.HasCode(err, errors.ErrCodeRestart) {
		t.Fatalf("Apply() error = %v, want restart error", err)
	}

	data, _ := os.ReadFile(path)
	if string(data) != originalCompose {
		t.Error("target file was not rolled back after restart failure")
	}
}

func TestEngine_MissingTarget_Synthesizes(t *testing.T) {
	synthesized := "services:\n  db:\n    image: postgres:14\n"
	synth := &testutil.MockSynthesizer{Content: map[string]string{"db": synthesized}}
	e := newTestEngine(t, nil, synth)

	path := filepath.Join(t.TempDir(), "docker-compose.yml")
	f := configReplaceFinding(path, fixedCompose)

	preview, err := e.Preview(context.Background(), f)
	if err != nil {
		t.Fatalf("Preview() error = %v", err)
	}
	if preview.Original != synthesized {
		t.Errorf("preview original = %q, want synthesized content", preview.Original)
	}
	if len(synth.Calls) != 1 || synth.Calls[0] != "db" {
		t.Errorf("synthesizer calls = %v, want [db]", synth.Calls)
	}

	// Synthesized content is persisted so apply sees the same baseline.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("synthesized file not persisted: %v", err)
	}
	if string(data) != synthesized {
		t.Error("persisted file differs from synthesized content")
	}
}

func TestEngine_MissingTarget_NoContainer(t *testing.T) {
	e := newTestEngine(t, nil, nil)

	f := configReplaceFinding(filepath.Join(t.TempDir(), "missing.yml"), fixedCompose)
	f.Container = ""

	if _, err := e.Preview(context.Background(), f); !errors.HasCode(err, errors.ErrCodeNotFound) {
		t.Errorf("Preview() error = %v, want not found", err)
	}
}
