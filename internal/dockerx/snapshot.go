package dockerx

import (
	"context"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/go-connections/nat"

	"github.com/ovidijusr/shieldai/internal/compose"
	"github.com/ovidijusr/shieldai/internal/domain/audit"
	"github.com/ovidijusr/shieldai/internal/pkg/errors"
	"github.com/ovidijusr/shieldai/internal/pkg/logger"
)

// engineAPI is the slice of the Docker client the collector needs.
type engineAPI interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]types.Container, error)
	ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error)
	NetworkList(ctx context.Context, options network.ListOptions) ([]types.NetworkResource, error)
	VolumeList(ctx context.Context, options volume.ListOptions) (volume.ListResponse, error)
}

// Collector builds infrastructure snapshots from the engine API.
type Collector struct {
	cli engineAPI
	// composeDirs are scanned for compose files on every snapshot.
	composeDirs []string
	// auditorContainer names this auditor's own container when it runs
	// containerized, so rules can exempt it.
	auditorContainer string
	log              *logger.Logger
}

// NewCollector creates a snapshot collector.
func NewCollector(cli engineAPI, composeDirs []string, auditorContainer string, log *logger.Logger) *Collector {
	return &Collector{
		cli:              cli,
		composeDirs:      composeDirs,
		auditorContainer: auditorContainer,
		log:              log,
	}
}

// Snapshot collects a point-in-time view of all containers, networks,
// volumes and discovered config files. Per-container inspect failures are
// logged and skipped; list failures abort the snapshot.
func (c *Collector) Snapshot(ctx context.Context) (*audit.Snapshot, error) {
	snap := &audit.Snapshot{
		TakenAt:          time.Now().UTC(),
		Host:             ProbeHost(ctx),
		AuditorContainer: c.auditorContainer,
	}

	list, err := c.cli.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return nil, errors.Internal("failed to list containers", err)
	}
	for _, item := range list {
		inspect, err := c.cli.ContainerInspect(ctx, item.ID)
		if err != nil {
			c.log.WithFields(map[string]interface{}{
				"container": item.ID,
			}).Warn("Failed to inspect container, skipping")
			continue
		}
		snap.Containers = append(snap.Containers, containerFromInspect(inspect))
	}

	networks, err := c.cli.NetworkList(ctx, network.ListOptions{})
	if err != nil {
		return nil, errors.Internal("failed to list networks", err)
	}
	for _, n := range networks {
		snap.Networks = append(snap.Networks, audit.Network{
			Name:     n.Name,
			Driver:   n.Driver,
			Internal: n.Internal,
		})
	}

	volumes, err := c.cli.VolumeList(ctx, volume.ListOptions{})
	if err != nil {
		return nil, errors.Internal("failed to list volumes", err)
	}
	for _, v := range volumes.Volumes {
		snap.Volumes = append(snap.Volumes, audit.Volume{
			Name:       v.Name,
			Driver:     v.Driver,
			Mountpoint: v.Mountpoint,
		})
	}

	snap.ConfigFiles = compose.Discover(c.composeDirs)

	c.log.WithFields(map[string]interface{}{
		"containers":   len(snap.Containers),
		"networks":     len(snap.Networks),
		"volumes":      len(snap.Volumes),
		"config_files": len(snap.ConfigFiles),
	}).Info("Snapshot collected")

	return snap, nil
}

func containerFromInspect(in types.ContainerJSON) audit.Container {
	out := audit.Container{
		ID:   in.ID,
		Name: strings.TrimPrefix(in.Name, "/"),
	}

	if in.State != nil {
		out.Running = in.State.Running
	}
	if in.Config != nil {
		out.Image = in.Config.Image
		out.User = in.Config.User
		out.Env = append([]string(nil), in.Config.Env...)
		out.HasHealthcheck = in.Config.Healthcheck != nil &&
			len(in.Config.Healthcheck.Test) > 0 &&
			in.Config.Healthcheck.Test[0] != "NONE"
	}
	if hc := in.HostConfig; hc != nil {
		out.Privileged = hc.Privileged
		out.ReadOnlyRootfs = hc.ReadonlyRootfs
		out.CapAdd = append([]string(nil), hc.CapAdd...)
		out.NetworkMode = string(hc.NetworkMode)
		out.RestartPolicy = string(hc.RestartPolicy.Name)
		out.Resources = audit.Resources{
			MemoryBytes: hc.Memory,
			NanoCPUs:    hc.NanoCPUs,
		}
	}
	for _, m := range in.Mounts {
		out.Mounts = append(out.Mounts, audit.Mount{
			Source:      m.Source,
			Destination: m.Destination,
			Type:        string(m.Type),
			ReadOnly:    !m.RW,
		})
	}
	if ns := in.NetworkSettings; ns != nil {
		out.Ports = portBindings(ns.Ports)
		for name := range ns.Networks {
			out.Networks = append(out.Networks, name)
		}
	}
	return out
}

// portBindings flattens the engine's port map. Exposed-but-unpublished
// ports keep a zero host port.
func portBindings(ports nat.PortMap) []audit.PortBinding {
	var out []audit.PortBinding
	for port, bindings := range ports {
		base := audit.PortBinding{
			ContainerPort: uint16(port.Int()),
			Protocol:      port.Proto(),
		}
		if len(bindings) == 0 {
			out = append(out, base)
			continue
		}
		for _, b := range bindings {
			pb := base
			pb.HostIP = b.HostIP
			if p, err := nat.ParsePort(b.HostPort); err == nil {
				pb.HostPort = uint16(p)
			}
			out = append(out, pb)
		}
	}
	return out
}
