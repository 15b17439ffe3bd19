package dockerx

import (
	"context"

	"github.com/docker/docker/client"

	"github.com/ovidijusr/shieldai/internal/compose"
	"github.com/ovidijusr/shieldai/internal/pkg/errors"
)

// Synthesizer rebuilds compose content from a live container's
// configuration. It backs the fix engine's missing-file path.
type Synthesizer struct {
	cli *client.Client
}

// NewSynthesizer creates a compose synthesizer.
func NewSynthesizer(cli *client.Client) *Synthesizer {
	return &Synthesizer{cli: cli}
}

// Synthesize inspects the named container and renders a single-service
// compose document reproducing its current configuration.
func (s *Synthesizer) Synthesize(ctx context.Context, containerName string) (string, error) {
	inspect, err := s.cli.ContainerInspect(ctx, containerName)
	if err != nil {
		return "", errors.Internal("failed to inspect container "+containerName, err)
	}

	c := containerFromInspect(inspect)
	data, err := compose.SynthesizeFile(&c)
	if err != nil {
		return "", errors.Internal("failed to synthesize compose content for "+containerName, err)
	}
	return string(data), nil
}
