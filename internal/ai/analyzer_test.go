package ai

import (
	"strings"
	"testing"

	"github.com/ovidijusr/shieldai/internal/domain/audit"
	"github.com/ovidijusr/shieldai/internal/domain/finding"
)

func TestBuildPrompt_RedactsEnvValues(t *testing.T) {
	snap := &audit.Snapshot{
		Containers: []audit.Container{
			{Name: "db", Env: []string{"POSTGRES_PASSWORD=hunter2", "PGDATA=/var/lib/postgresql/data", "NOEQUALS"}},
		},
	}

	prompt, err := buildPrompt(snap, []finding.Finding{{ID: "seed-1", Title: "privileged"}})
	if err != nil {
		t.Fatalf("buildPrompt() error = %v", err)
	}

	if strings.Contains(prompt, "hunter2") {
		t.Error("prompt leaks an env value")
	}
	for _, want := range []string{"POSTGRES_PASSWORD=***", "PGDATA=***", "NOEQUALS", "seed-1"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	// Redaction must not mutate the caller's snapshot.
	if snap.Containers[0].Env[0] != "POSTGRES_PASSWORD=hunter2" {
		t.Error("buildPrompt() mutated the input snapshot")
	}
}
