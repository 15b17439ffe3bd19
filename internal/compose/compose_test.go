package compose

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ovidijusr/shieldai/internal/domain/audit"
)

const sampleCompose = `
services:
  db:
    image: postgres:14
    user: "999:999"
    ports:
      - "127.0.0.1:5432:5432"
    networks:
      - backend
  web:
    image: nginx:1.25
    container_name: edge-proxy
    ports:
      - "443:443"
    networks:
      - backend
      - frontend
networks:
  backend: {}
  frontend: {}
`

func TestParse_And_ServiceFor(t *testing.T) {
	f, err := Parse([]byte(sampleCompose))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(f.Services) != 2 {
		t.Fatalf("Parse() services = %d, want 2", len(f.Services))
	}

	tests := []struct {
		container string
		wantName  string
	}{
		{"db", "db"},
		{"stack-db-1", "db"},
		{"stack_db_1", "db"},
		{"edge-proxy", "web"}, // container_name match wins
		{"unrelated", ""},
	}

	for _, tt := range tests {
		t.Run(tt.container, func(t *testing.T) {
			name, svc := f.ServiceFor(tt.container)
			if name != tt.wantName {
				t.Errorf("ServiceFor(%q) = %q, want %q", tt.container, name, tt.wantName)
			}
			if (svc == nil) != (tt.wantName == "") {
				t.Errorf("ServiceFor(%q) service nil-ness wrong", tt.container)
			}
		})
	}
}

func TestDiff(t *testing.T) {
	before := &Service{
		User:       "",
		Privileged: true,
		Ports:      []string{"0.0.0.0:5432:5432"},
		Volumes:    []string{"/var/run/docker.sock:/var/run/docker.sock"},
		Networks:   []string{"bridge"},
	}
	after := &Service{
		User:     "999:999",
		Ports:    []string{"127.0.0.1:5432:5432"},
		Networks: []string{"backend"},
	}

	notes := Diff("db", before, after)

	joined := strings.Join(notes, "\n")
	for _, want := range []string{"user changes", "privileged changes", "port mappings removed", "port mappings added", "mounts removed", "network membership"} {
		if !strings.Contains(joined, want) {
			t.Errorf("Diff() notes missing %q:\n%s", want, joined)
		}
	}

	if notes := Diff("db", before, before); len(notes) != 0 {
		t.Errorf("Diff() of identical services = %v, want none", notes)
	}
}

func TestFromContainer(t *testing.T) {
	c := &audit.Container{
		Name:          "stack-db-1",
		Image:         "postgres:14",
		User:          "999:999",
		RestartPolicy: "unless-stopped",
		Networks:      []string{"backend"},
		Ports: []audit.PortBinding{
			{ContainerPort: 5432, HostPort: 5432, Protocol: "tcp", HostIP: "127.0.0.1"},
			{ContainerPort: 9000, Protocol: "tcp"}, // unpublished, dropped
		},
		Mounts:    []audit.Mount{{Source: "/srv/pgdata", Destination: "/var/lib/postgresql/data"}},
		Resources: audit.Resources{MemoryBytes: 512 << 20, NanoCPUs: 1_500_000_000},
	}

	svc := FromContainer(c)

	if svc.Image != "postgres:14" || svc.ContainerName != "stack-db-1" {
		t.Errorf("FromContainer() identity fields wrong: %+v", svc)
	}
	if len(svc.Ports) != 1 || svc.Ports[0] != "127.0.0.1:5432:5432" {
		t.Errorf("FromContainer() ports = %v, want the single published binding", svc.Ports)
	}
	if len(svc.Volumes) != 1 || svc.Volumes[0] != "/srv/pgdata:/var/lib/postgresql/data" {
		t.Errorf("FromContainer() volumes = %v", svc.Volumes)
	}
	if svc.MemLimit != "512m" {
		t.Errorf("FromContainer() mem_limit = %q, want 512m", svc.MemLimit)
	}
	if svc.CPUs != "1.5" {
		t.Errorf("FromContainer() cpus = %q, want 1.5", svc.CPUs)
	}
}

func TestSynthesizeFile_RoundTrip(t *testing.T) {
	c := &audit.Container{Name: "stack-db-1", Image: "postgres:14", User: "999:999", Networks: []string{"backend"}}

	data, err := SynthesizeFile(c)
	if err != nil {
		t.Fatalf("SynthesizeFile() error = %v", err)
	}

	f, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse(synthesized) error = %v", err)
	}
	svc, ok := f.Services["db"]
	if !ok {
		t.Fatalf("synthesized file services = %v, want service db", f.ServiceNames())
	}
	if svc.Image != "postgres:14" {
		t.Errorf("synthesized image = %q", svc.Image)
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "docker-compose.yml"), []byte(sampleCompose), 0o644); err != nil {
		t.Fatal(err)
	}
	empty := t.TempDir()

	files := Discover([]string{dir, empty, "/nonexistent"})

	if len(files) != 1 {
		t.Fatalf("Discover() = %d files, want 1", len(files))
	}
	if len(files[0].Services) != 2 {
		t.Errorf("Discover() services = %v, want db and web", files[0].Services)
	}
	if files[0].Format != "compose" {
		t.Errorf("Discover() format = %q", files[0].Format)
	}
}
