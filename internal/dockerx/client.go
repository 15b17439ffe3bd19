// Package dockerx wraps the Docker Engine API: snapshot collection,
// container lifecycle, and compose synthesis from live containers.
package dockerx

import (
	"github.com/docker/docker/client"

	"github.com/ovidijusr/shieldai/internal/pkg/errors"
)

// NewClient connects to the local Docker engine using the standard
// environment configuration (DOCKER_HOST et al).
func NewClient() (*client.Client, error) {
	cli, err := client.NewClientWithOpts(
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, errors.Internal("failed to create docker client", err)
	}
	return cli, nil
}
