package dockerx

import (
	"context"
	"fmt"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/go-connections/nat"

	"github.com/ovidijusr/shieldai/internal/pkg/logger"
)

type fakeEngine struct {
	containers []types.Container
	inspects   map[string]types.ContainerJSON
	inspectErr map[string]error
	networks   []types.NetworkResource
	volumes    volume.ListResponse
}

func (f *fakeEngine) ContainerList(_ context.Context, _ container.ListOptions) ([]types.Container, error) {
	return f.containers, nil
}

func (f *fakeEngine) ContainerInspect(_ context.Context, id string) (types.ContainerJSON, error) {
	if err := f.inspectErr[id]; err != nil {
		return types.ContainerJSON{}, err
	}
	return f.inspects[id], nil
}

func (f *fakeEngine) NetworkList(_ context.Context, _ network.ListOptions) ([]types.NetworkResource, error) {
	return f.networks, nil
}

func (f *fakeEngine) VolumeList(_ context.Context, _ volume.ListOptions) (volume.ListResponse, error) {
	return f.volumes, nil
}

func dbInspect() types.ContainerJSON {
	return types.ContainerJSON{
		ContainerJSONBase: &types.ContainerJSONBase{
			ID:    "abc123",
			Name:  "/stack-db-1",
			State: &types.ContainerState{Running: true},
			HostConfig: &container.HostConfig{
				Privileged:    true,
				CapAdd:        []string{"SYS_ADMIN"},
				NetworkMode:   "bridge",
				RestartPolicy: container.RestartPolicy{Name: "unless-stopped"},
				Resources: container.Resources{
					Memory:   512 << 20,
					NanoCPUs: 1_000_000_000,
				},
			},
		},
		Config: &container.Config{
			Image: "postgres:14",
			User:  "999:999",
			Env:   []string{"POSTGRES_PASSWORD=hunter2"},
			Healthcheck: &container.HealthConfig{
				Test: []string{"CMD-SHELL", "pg_isready"},
			},
		},
		Mounts: []types.MountPoint{
			{Type: "bind", Source: "/srv/pgdata", Destination: "/var/lib/postgresql/data", RW: true},
		},
		NetworkSettings: &types.NetworkSettings{
			NetworkSettingsBase: types.NetworkSettingsBase{
				Ports: nat.PortMap{
					"5432/tcp": []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: "5432"}},
					"9000/tcp": nil,
				},
			},
			Networks: map[string]*network.EndpointSettings{"backend": {}},
		},
	}
}

func TestCollector_Snapshot(t *testing.T) {
	engine := &fakeEngine{
		containers: []types.Container{{ID: "abc123"}, {ID: "broken"}},
		inspects:   map[string]types.ContainerJSON{"abc123": dbInspect()},
		inspectErr: map[string]error{"broken": fmt.Errorf("gone")},
		networks:   []types.NetworkResource{{Name: "backend", Driver: "bridge", Internal: true}},
		volumes: volume.ListResponse{
			Volumes: []*volume.Volume{{Name: "pgdata", Driver: "local", Mountpoint: "/var/lib/docker/volumes/pgdata"}},
		},
	}

	log := logger.New(logger.Config{Level: "error", Format: "json"})
	c := NewCollector(engine, nil, "shieldai", log)

	snap, err := c.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	if snap.AuditorContainer != "shieldai" {
		t.Errorf("auditor container = %q", snap.AuditorContainer)
	}
	if len(snap.Containers) != 1 {
		t.Fatalf("containers = %d, want 1 (broken inspect skipped)", len(snap.Containers))
	}

	got := snap.Containers[0]
	if got.Name != "stack-db-1" {
		t.Errorf("name = %q, want stack-db-1 without the leading slash", got.Name)
	}
	if !got.Running || !got.Privileged || got.User != "999:999" || !got.HasHealthcheck {
		t.Errorf("state/config fields wrong: %+v", got)
	}
	if got.RestartPolicy != "unless-stopped" || got.NetworkMode != "bridge" {
		t.Errorf("host config fields wrong: %+v", got)
	}
	if got.Resources.MemoryBytes != 512<<20 || got.Resources.NanoCPUs != 1_000_000_000 {
		t.Errorf("resources = %+v", got.Resources)
	}
	if len(got.Mounts) != 1 || got.Mounts[0].ReadOnly {
		t.Errorf("mounts = %+v, want one writable bind", got.Mounts)
	}
	if len(got.Networks) != 1 || got.Networks[0] != "backend" {
		t.Errorf("networks = %v", got.Networks)
	}

	if len(got.Ports) != 2 {
		t.Fatalf("ports = %+v, want published 5432 and unpublished 9000", got.Ports)
	}
	var published, unpublished bool
	for _, p := range got.Ports {
		switch p.ContainerPort {
		case 5432:
			published = p.HostPort == 5432 && p.HostIP == "0.0.0.0" && p.Protocol == "tcp"
		case 9000:
			unpublished = p.HostPort == 0
		}
	}
	if !published || !unpublished {
		t.Errorf("port mapping wrong: %+v", got.Ports)
	}

	if len(snap.Networks) != 1 || !snap.Networks[0].Internal {
		t.Errorf("networks = %+v", snap.Networks)
	}
	if len(snap.Volumes) != 1 || snap.Volumes[0].Name != "pgdata" {
		t.Errorf("volumes = %+v", snap.Volumes)
	}
}
