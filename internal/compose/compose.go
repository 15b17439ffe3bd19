// Package compose reads and writes the subset of the compose file format
// the fix engine needs: enough to locate a service, compare the fields that
// matter for security, and synthesize a service entry from a live container.
package compose

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ovidijusr/shieldai/internal/domain/audit"
)

// File is a parsed compose file.
type File struct {
	Version  string             `yaml:"version,omitempty"`
	Services map[string]Service `yaml:"services"`
	Networks map[string]any     `yaml:"networks,omitempty"`
	Volumes  map[string]any     `yaml:"volumes,omitempty"`
}

// Service is one service entry. Only the fields relevant to the audit are
// modeled; unknown fields are dropped on a rewrite, which is why synthesized
// content always replaces the whole file rather than patching it.
type Service struct {
	Image         string      `yaml:"image,omitempty"`
	ContainerName string      `yaml:"container_name,omitempty"`
	User          string      `yaml:"user,omitempty"`
	Privileged    bool        `yaml:"privileged,omitempty"`
	ReadOnly      bool        `yaml:"read_only,omitempty"`
	Restart       string      `yaml:"restart,omitempty"`
	NetworkMode   string      `yaml:"network_mode,omitempty"`
	CapAdd        []string    `yaml:"cap_add,omitempty"`
	Environment   []string    `yaml:"environment,omitempty"`
	Ports         []string    `yaml:"ports,omitempty"`
	Volumes       []string    `yaml:"volumes,omitempty"`
	Networks      []string    `yaml:"networks,omitempty"`
	MemLimit      string      `yaml:"mem_limit,omitempty"`
	CPUs          string      `yaml:"cpus,omitempty"`
	Healthcheck   *yaml.Node  `yaml:"healthcheck,omitempty"`
	DependsOn     []string    `yaml:"depends_on,omitempty"`
}

// Parse decodes compose YAML.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse compose content: %w", err)
	}
	return &f, nil
}

// Marshal encodes a compose file as YAML.
func Marshal(f *File) ([]byte, error) {
	data, err := yaml.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal compose content: %w", err)
	}
	return data, nil
}

// ServiceFor locates the service entry backing a container. Compose names
// containers <project>-<service>-<index> (or with underscores), so exact,
// container_name and infix/suffix matches are all accepted.
func (f *File) ServiceFor(containerName string) (string, *Service) {
	if f == nil || containerName == "" {
		return "", nil
	}
	for name, svc := range f.Services {
		if svc.ContainerName == containerName {
			s := svc
			return name, &s
		}
	}
	for name, svc := range f.Services {
		if name == containerName ||
			strings.Contains(containerName, "-"+name+"-") ||
			strings.Contains(containerName, "_"+name+"_") ||
			strings.HasSuffix(containerName, "-"+name) ||
			strings.HasSuffix(containerName, "_"+name) {
			s := svc
			return name, &s
		}
	}
	return "", nil
}

// ServiceNames returns the declared service names.
func (f *File) ServiceNames() []string {
	if f == nil {
		return nil
	}
	names := make([]string, 0, len(f.Services))
	for name := range f.Services {
		names = append(names, name)
	}
	return names
}

// Diff compares the security-relevant fields of two service entries and
// returns one human-readable note per structural change.
func Diff(serviceName string, before, after *Service) []string {
	var notes []string
	if before == nil || after == nil {
		return notes
	}

	if before.User != after.User {
		notes = append(notes, fmt.Sprintf("service %s: user changes from %q to %q", serviceName, orDefault(before.User, "root"), orDefault(after.User, "root")))
	}
	if before.Privileged != after.Privileged {
		notes = append(notes, fmt.Sprintf("service %s: privileged changes from %v to %v", serviceName, before.Privileged, after.Privileged))
	}
	if added, removed := sliceDelta(before.Ports, after.Ports); len(added)+len(removed) > 0 {
		if len(removed) > 0 {
			notes = append(notes, fmt.Sprintf("service %s: port mappings removed: %s", serviceName, strings.Join(removed, ", ")))
		}
		if len(added) > 0 {
			notes = append(notes, fmt.Sprintf("service %s: port mappings added: %s", serviceName, strings.Join(added, ", ")))
		}
	}
	if added, removed := sliceDelta(before.Volumes, after.Volumes); len(added)+len(removed) > 0 {
		if len(removed) > 0 {
			notes = append(notes, fmt.Sprintf("service %s: mounts removed: %s", serviceName, strings.Join(removed, ", ")))
		}
		if len(added) > 0 {
			notes = append(notes, fmt.Sprintf("service %s: mounts added: %s", serviceName, strings.Join(added, ", ")))
		}
	}
	if added, removed := sliceDelta(before.Networks, after.Networks); len(added)+len(removed) > 0 {
		notes = append(notes, fmt.Sprintf("service %s: network membership changes from [%s] to [%s]", serviceName, strings.Join(before.Networks, ", "), strings.Join(after.Networks, ", ")))
	}
	if before.NetworkMode != after.NetworkMode {
		notes = append(notes, fmt.Sprintf("service %s: network mode changes from %q to %q", serviceName, orDefault(before.NetworkMode, "bridge"), orDefault(after.NetworkMode, "bridge")))
	}

	return notes
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func sliceDelta(before, after []string) (added, removed []string) {
	inBefore := make(map[string]bool, len(before))
	for _, s := range before {
		inBefore[s] = true
	}
	inAfter := make(map[string]bool, len(after))
	for _, s := range after {
		inAfter[s] = true
	}
	for _, s := range after {
		if !inBefore[s] {
			added = append(added, s)
		}
	}
	for _, s := range before {
		if !inAfter[s] {
			removed = append(removed, s)
		}
	}
	return added, removed
}

// FromContainer synthesizes a service entry from a live container's
// configuration, used when the target compose file no longer exists.
func FromContainer(c *audit.Container) Service {
	svc := Service{
		Image:         c.Image,
		ContainerName: c.Name,
		User:          c.User,
		Privileged:    c.Privileged,
		ReadOnly:      c.ReadOnlyRootfs,
		Restart:       c.RestartPolicy,
		CapAdd:        append([]string(nil), c.CapAdd...),
		Environment:   append([]string(nil), c.Env...),
	}
	if c.NetworkMode == "host" {
		svc.NetworkMode = "host"
	} else {
		svc.Networks = append([]string(nil), c.Networks...)
	}
	for _, p := range c.Ports {
		if p.HostPort == 0 {
			continue
		}
		host := fmt.Sprintf("%d", p.HostPort)
		if p.HostIP != "" && p.HostIP != "0.0.0.0" {
			host = fmt.Sprintf("%s:%d", p.HostIP, p.HostPort)
		}
		entry := fmt.Sprintf("%s:%d", host, p.ContainerPort)
		if p.Protocol != "" && p.Protocol != "tcp" {
			entry += "/" + p.Protocol
		}
		svc.Ports = append(svc.Ports, entry)
	}
	for _, m := range c.Mounts {
		entry := fmt.Sprintf("%s:%s", m.Source, m.Destination)
		if m.ReadOnly {
			entry += ":ro"
		}
		svc.Volumes = append(svc.Volumes, entry)
	}
	if c.Resources.MemoryBytes > 0 {
		svc.MemLimit = fmt.Sprintf("%dm", c.Resources.MemoryBytes/(1024*1024))
	}
	if c.Resources.NanoCPUs > 0 {
		svc.CPUs = fmt.Sprintf("%g", float64(c.Resources.NanoCPUs)/1e9)
	}
	return svc
}

// SynthesizeFile builds a single-service compose document for a container.
func SynthesizeFile(c *audit.Container) ([]byte, error) {
	name := serviceNameFor(c.Name)
	f := &File{Services: map[string]Service{name: FromContainer(c)}}
	return Marshal(f)
}

// serviceNameFor strips the compose project prefix and replica suffix from
// a container name, falling back to the name itself.
func serviceNameFor(containerName string) string {
	parts := strings.FieldsFunc(containerName, func(r rune) bool {
		return r == '-' || r == '_'
	})
	if len(parts) >= 3 && isNumeric(parts[len(parts)-1]) {
		return strings.Join(parts[1:len(parts)-1], "-")
	}
	return containerName
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Discover scans the given directories for compose files and returns them
// with their parsed service names. Unreadable or unparseable files are
// skipped; discovery is best-effort.
func Discover(dirs []string) []audit.ConfigFile {
	var out []audit.ConfigFile
	candidates := []string{"docker-compose.yml", "docker-compose.yaml", "compose.yml", "compose.yaml"}

	for _, dir := range dirs {
		for _, name := range candidates {
			path := filepath.Join(dir, name)
			data, err := os.ReadFile(path)
			if err != nil {
				continue
			}
			f, err := Parse(data)
			if err != nil || len(f.Services) == 0 {
				continue
			}
			out = append(out, audit.ConfigFile{
				Path:     path,
				Format:   "compose",
				Services: f.ServiceNames(),
			})
		}
	}
	return out
}
