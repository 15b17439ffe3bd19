package audit

import "time"

// Snapshot is a point-in-time, read-only description of the host's container
// infrastructure. It is immutable for the duration of one audit run.
type Snapshot struct {
	TakenAt     time.Time    `json:"taken_at"`
	Host        HostInfo     `json:"host"`
	Containers  []Container  `json:"containers"`
	Networks    []Network    `json:"networks"`
	Volumes     []Volume     `json:"volumes"`
	ConfigFiles []ConfigFile `json:"config_files"`
	// AuditorContainer is the name of the container running this auditor,
	// if it runs containerized. It is exempt from the socket-mount rule.
	AuditorContainer string `json:"auditor_container,omitempty"`
}

// HostInfo describes host-level firewall and engine forwarding state.
type HostInfo struct {
	FirewallActive         bool `json:"firewall_active"`
	EngineChainActive      bool `json:"engine_chain_active"`
	EngineDefersToFirewall bool `json:"engine_defers_to_firewall"`
}

// Container describes one container within a snapshot.
type Container struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Image          string        `json:"image"`
	Running        bool          `json:"running"`
	User           string        `json:"user"`
	Privileged     bool          `json:"privileged"`
	ReadOnlyRootfs bool          `json:"read_only_rootfs"`
	CapAdd         []string      `json:"cap_add,omitempty"`
	Env            []string      `json:"env,omitempty"`
	Ports          []PortBinding `json:"ports,omitempty"`
	Mounts         []Mount       `json:"mounts,omitempty"`
	Resources      Resources     `json:"resources"`
	HasHealthcheck bool          `json:"has_healthcheck"`
	RestartPolicy  string        `json:"restart_policy,omitempty"`
	NetworkMode    string        `json:"network_mode,omitempty"`
	Networks       []string      `json:"networks,omitempty"`
}

// PortBinding maps a container port to an optional host port.
type PortBinding struct {
	ContainerPort uint16 `json:"container_port"`
	// HostPort is 0 when the port is exposed but not published.
	HostPort uint16 `json:"host_port,omitempty"`
	Protocol string `json:"protocol"`
	HostIP   string `json:"host_ip,omitempty"`
}

// Mount describes a bind mount or volume attached to a container.
type Mount struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Type        string `json:"type"`
	ReadOnly    bool   `json:"read_only"`
}

// Resources holds container resource limits. Zero means unlimited.
type Resources struct {
	MemoryBytes int64 `json:"memory_bytes"`
	NanoCPUs    int64 `json:"nano_cpus"`
}

// Network describes a container network.
type Network struct {
	Name     string `json:"name"`
	Driver   string `json:"driver"`
	Internal bool   `json:"internal"`
}

// Volume describes a named volume.
type Volume struct {
	Name       string `json:"name"`
	Driver     string `json:"driver"`
	Mountpoint string `json:"mountpoint,omitempty"`
}

// ConfigFile is a discovered configuration file with its parsed service names.
type ConfigFile struct {
	Path     string   `json:"path"`
	Format   string   `json:"format"`
	Services []string `json:"services"`
}

// ContainerByName returns the container with the given name, or nil.
func (s *Snapshot) ContainerByName(name string) *Container {
	for i := range s.Containers {
		if s.Containers[i].Name == name {
			return &s.Containers[i]
		}
	}
	return nil
}
