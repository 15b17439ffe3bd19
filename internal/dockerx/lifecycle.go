package dockerx

import (
	"context"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"

	"github.com/ovidijusr/shieldai/internal/pkg/errors"
)

// Lifecycle restarts and inspects containers through the engine API. It
// satisfies the fix engine's Lifecycle interface.
type Lifecycle struct {
	cli *client.Client
}

// NewLifecycle creates a lifecycle helper.
func NewLifecycle(cli *client.Client) *Lifecycle {
	return &Lifecycle{cli: cli}
}

// RestartOrStart restarts a running container, or starts it when stopped.
func (l *Lifecycle) RestartOrStart(ctx context.Context, name string) error {
	inspect, err := l.cli.ContainerInspect(ctx, name)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return errors.NotFound("container " + name)
		}
		return errors.Internal("failed to inspect container "+name, err)
	}

	if inspect.State != nil && inspect.State.Running {
		if err := l.cli.ContainerRestart(ctx, name, container.StopOptions{}); err != nil {
			return errors.Internal("failed to restart container "+name, err)
		}
		return nil
	}
	if err := l.cli.ContainerStart(ctx, name, container.StartOptions{}); err != nil {
		return errors.Internal("failed to start container "+name, err)
	}
	return nil
}

// IsRunning reports whether the named container is currently running.
func (l *Lifecycle) IsRunning(ctx context.Context, name string) (bool, error) {
	inspect, err := l.cli.ContainerInspect(ctx, name)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return false, nil
		}
		return false, errors.Internal("failed to inspect container "+name, err)
	}
	return inspect.State != nil && inspect.State.Running, nil
}
