package fix

import (
	"github.com/ovidijusr/shieldai/internal/compose"
	"github.com/ovidijusr/shieldai/internal/domain/finding"
)

// sideEffects describes what applying the fix changes beyond the finding
// itself. When both versions parse as compose files, the affected service is
// compared structurally; otherwise the payload's declared side effects are
// passed through.
func (e *Engine) sideEffects(f *finding.Finding, original, proposed string) []string {
	notes := e.composeDelta(f.Container, original, proposed)
	if len(notes) > 0 {
		return notes
	}
	if len(f.Fix.SideEffects) > 0 {
		return append([]string(nil), f.Fix.SideEffects...)
	}
	return nil
}

func (e *Engine) composeDelta(containerName, original, proposed string) []string {
	before, err := compose.Parse([]byte(original))
	if err != nil {
		return nil
	}
	after, err := compose.Parse([]byte(proposed))
	if err != nil {
		return nil
	}

	name, beforeSvc := before.ServiceFor(containerName)
	if beforeSvc == nil {
		return nil
	}
	afterName, afterSvc := after.ServiceFor(containerName)
	if afterSvc == nil {
		return []string{"service " + name + " is removed by the proposed content"}
	}
	if afterName != name {
		name = afterName
	}
	return compose.Diff(name, beforeSvc, afterSvc)
}
