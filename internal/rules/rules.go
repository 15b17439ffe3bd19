package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ovidijusr/shieldai/internal/classifier"
	"github.com/ovidijusr/shieldai/internal/domain/audit"
	"github.com/ovidijusr/shieldai/internal/domain/finding"
)

// engineSocketPaths are the container-engine control sockets. Mounting one
// grants root-equivalent control over the host.
var engineSocketPaths = []string{"/var/run/docker.sock", "/run/docker.sock"}

// dangerousMounts maps sensitive host paths to the severity of exposing
// them inside a container. The root path is matched exactly; every other
// entry matches the path itself or anything under it.
var dangerousMounts = []struct {
	Path     string
	Severity string
}{
	{"/", finding.SeverityCritical},
	{"/etc", finding.SeverityHigh},
	{"/proc", finding.SeverityHigh},
	{"/sys", finding.SeverityHigh},
	{"/boot", finding.SeverityHigh},
	{"/dev", finding.SeverityHigh},
}

var secretEnvPattern = regexp.MustCompile(`(?i)(password|passwd|secret|api[_-]?key|token|private[_-]?key|credential|auth)`)

// checkRootUser flags containers running as root.
func (e *Engine) checkRootUser(snap *audit.Snapshot) []finding.Finding {
	var out []finding.Finding
	for i := range snap.Containers {
		c := &snap.Containers[i]
		user := strings.TrimSpace(c.User)
		if user != "" && user != "root" && user != "0" && !strings.HasPrefix(user, "0:") {
			continue
		}
		out = append(out, newFinding(
			finding.SeverityHigh,
			finding.CategoryRootUser,
			fmt.Sprintf("Container %s runs as root", c.Name),
			c.Name,
			fmt.Sprintf("Container %s has no user configured or is explicitly running as root (uid 0).", c.Name),
			"A process escape or application compromise inside the container immediately yields root privileges, which greatly simplifies breaking out to the host.",
			configReplaceFix(snap, c.Name, "The service will run under an unprivileged user; files previously written as root may need a chown."),
		))
	}
	return out
}

// checkPrivileged flags privileged containers.
func (e *Engine) checkPrivileged(snap *audit.Snapshot) []finding.Finding {
	var out []finding.Finding
	for i := range snap.Containers {
		c := &snap.Containers[i]
		if !c.Privileged {
			continue
		}
		out = append(out, newFinding(
			finding.SeverityCritical,
			finding.CategoryPrivilegedMode,
			fmt.Sprintf("Container %s runs in privileged mode", c.Name),
			c.Name,
			fmt.Sprintf("Container %s is started with --privileged, disabling almost all isolation between the container and the host.", c.Name),
			"A privileged container can load kernel modules, access all host devices and trivially escape to the host. This is equivalent to giving the containerized workload root on the machine.",
			configReplaceFix(snap, c.Name, "Privileged mode will be removed; workloads relying on device access or raw capabilities may need explicit cap_add entries instead."),
		))
	}
	return out
}

// checkSecretEnv flags secret-looking environment variable keys. Values are
// deliberately never included in the finding.
func (e *Engine) checkSecretEnv(snap *audit.Snapshot) []finding.Finding {
	var out []finding.Finding
	for i := range snap.Containers {
		c := &snap.Containers[i]
		var keys []string
		for _, env := range c.Env {
			key := env
			if idx := strings.IndexByte(env, '='); idx >= 0 {
				key = env[:idx]
			}
			if secretEnvPattern.MatchString(key) {
				keys = append(keys, key)
			}
		}
		if len(keys) == 0 {
			continue
		}
		out = append(out, newFinding(
			finding.SeverityHigh,
			finding.CategorySecretEnv,
			fmt.Sprintf("Container %s passes secrets via environment variables", c.Name),
			c.Name,
			fmt.Sprintf("Environment variables %s look like credentials. Environment variables are visible in `docker inspect`, /proc, crash dumps and child processes.", strings.Join(keys, ", ")),
			"Anyone with read access to the engine API or the host process table can read these secrets in plain text.",
			&finding.FixPayload{
				Kind:        finding.FixKindManual,
				SideEffects: []string{"Move secrets to a secrets manager or docker secrets; the application must be changed to read them from files."},
			},
		))
	}
	return out
}

// checkDangerousMounts flags bind mounts of sensitive host paths. The
// auditor's own container is exempt from the engine-socket check: it needs
// the socket to do its job.
func (e *Engine) checkDangerousMounts(snap *audit.Snapshot) []finding.Finding {
	var out []finding.Finding
	for i := range snap.Containers {
		c := &snap.Containers[i]
		for _, m := range c.Mounts {
			if sev, label, ok := classifyMount(m.Source); ok {
				if label == "engine socket" && c.Name == snap.AuditorContainer {
					continue
				}
				out = append(out, newFinding(
					sev,
					finding.CategoryDangerousMount,
					fmt.Sprintf("Container %s mounts sensitive host path %s", c.Name, m.Source),
					c.Name,
					fmt.Sprintf("Host path %s (%s) is mounted at %s (read-only: %v).", m.Source, label, m.Destination, m.ReadOnly),
					mountRisk(label),
					configReplaceFix(snap, c.Name, "The mount will be removed; the containerized service loses access to that host path."),
				))
			}
		}
	}
	return out
}

func classifyMount(source string) (severity, label string, dangerous bool) {
	for _, sock := range engineSocketPaths {
		if source == sock {
			return finding.SeverityCritical, "engine socket", true
		}
	}
	for _, d := range dangerousMounts {
		if d.Path == "/" {
			if source == "/" {
				return d.Severity, "host root filesystem", true
			}
			continue
		}
		if source == d.Path || strings.HasPrefix(source, d.Path+"/") {
			return d.Severity, d.Path, true
		}
	}
	return "", "", false
}

func mountRisk(label string) string {
	switch label {
	case "engine socket":
		return "Access to the engine socket is root-equivalent: the container can start a privileged container and take over the host."
	case "host root filesystem":
		return "The container can read and potentially modify any file on the host, including credentials and system binaries."
	default:
		return fmt.Sprintf("Mounting %s exposes sensitive host state; writable mounts allow persistent host compromise.", label)
	}
}

// checkHostNetwork flags containers sharing the host network namespace.
func (e *Engine) checkHostNetwork(snap *audit.Snapshot) []finding.Finding {
	var out []finding.Finding
	for i := range snap.Containers {
		c := &snap.Containers[i]
		if c.NetworkMode != "host" {
			continue
		}
		out = append(out, newFinding(
			finding.SeverityHigh,
			finding.CategoryHostNetwork,
			fmt.Sprintf("Container %s uses host networking", c.Name),
			c.Name,
			fmt.Sprintf("Container %s runs with network_mode: host, sharing the host's network stack.", c.Name),
			"Every port the service opens is immediately reachable on the host, bypassing the engine's network isolation and any published-port review.",
			configReplaceFix(snap, c.Name, "The container moves to a bridge network; its ports must be published explicitly to stay reachable."),
		))
	}
	return out
}

// checkExposedPorts flags ports bound to all interfaces. Severity is derived
// from the service classification of what listens behind the port.
func (e *Engine) checkExposedPorts(snap *audit.Snapshot) []finding.Finding {
	var out []finding.Finding
	for i := range snap.Containers {
		c := &snap.Containers[i]
		for _, p := range c.Ports {
			if p.HostPort == 0 || !boundToAllInterfaces(p.HostIP) {
				continue
			}
			info := e.classifier.Identify(c, p.ContainerPort)
			out = append(out, newFinding(
				exposureSeverity(info),
				finding.CategoryExposedPorts,
				fmt.Sprintf("%s on container %s is exposed on %s:%d", info.ServiceName, c.Name, p.HostIP, p.HostPort),
				c.Name,
				fmt.Sprintf("Port %d/%s of container %s is published on %s:%d, reachable from any network interface. %s",
					p.ContainerPort, p.Protocol, c.Name, p.HostIP, p.HostPort, e.classifier.FixRecommendation(info, p.HostIP)),
				e.classifier.RiskDescription(info),
				configReplaceFix(snap, c.Name, fmt.Sprintf("The %d/%s binding changes from %s to 127.0.0.1; remote clients lose direct access.", p.ContainerPort, p.Protocol, p.HostIP)),
			))
		}
	}
	return out
}

func boundToAllInterfaces(hostIP string) bool {
	return hostIP == "" || hostIP == "0.0.0.0" || hostIP == "::"
}

func exposureSeverity(info classifier.ServiceInfo) string {
	switch info.Category {
	case classifier.CategoryDatabase, classifier.CategoryManagement:
		return finding.SeverityCritical
	case classifier.CategoryAPI:
		return finding.SeverityHigh
	default:
		return finding.SeverityMedium
	}
}

// checkFloatingTags flags images pinned to :latest or not pinned at all.
func (e *Engine) checkFloatingTags(snap *audit.Snapshot) []finding.Finding {
	var out []finding.Finding
	for i := range snap.Containers {
		c := &snap.Containers[i]
		if !hasFloatingTag(c.Image) {
			continue
		}
		out = append(out, newFinding(
			finding.SeverityLow,
			finding.CategoryFloatingTag,
			fmt.Sprintf("Container %s uses a floating image tag", c.Name),
			c.Name,
			fmt.Sprintf("Image reference %q has no pinned version tag.", c.Image),
			"The image a restart pulls is not the image that was audited; an upstream change or registry compromise silently changes what runs here.",
			configReplaceFix(snap, c.Name, "The image reference is pinned to a specific version; updates become explicit."),
		))
	}
	return out
}

func hasFloatingTag(image string) bool {
	// The tag separator is the last colon after the last slash, so a
	// registry port does not count as a tag.
	ref := image
	if idx := strings.LastIndexByte(image, '/'); idx >= 0 {
		ref = image[idx+1:]
	}
	idx := strings.LastIndexByte(ref, ':')
	if idx < 0 {
		return true
	}
	return ref[idx+1:] == "latest"
}

// checkResourceLimits flags running containers with no memory or CPU limit.
// Stopped containers are exempt: the signal is meaningless for a process
// that is not running.
func (e *Engine) checkResourceLimits(snap *audit.Snapshot) []finding.Finding {
	var out []finding.Finding
	for i := range snap.Containers {
		c := &snap.Containers[i]
		if !c.Running {
			continue
		}
		if c.Resources.MemoryBytes != 0 && c.Resources.NanoCPUs != 0 {
			continue
		}
		out = append(out, newFinding(
			finding.SeverityMedium,
			finding.CategoryNoResourceLimit,
			fmt.Sprintf("Container %s has no resource limits", c.Name),
			c.Name,
			fmt.Sprintf("Container %s runs without a memory and/or CPU limit.", c.Name),
			"A memory leak or a deliberate resource-exhaustion attack in this container can starve every other workload on the host.",
			configReplaceFix(snap, c.Name, "Memory and CPU limits are added; the workload is killed or throttled when it exceeds them."),
		))
	}
	return out
}

// checkDefaultNetwork flags containers whose only network is the bare
// default bridge.
func (e *Engine) checkDefaultNetwork(snap *audit.Snapshot) []finding.Finding {
	var out []finding.Finding
	for i := range snap.Containers {
		c := &snap.Containers[i]
		if c.NetworkMode == "host" {
			continue
		}
		if len(c.Networks) != 1 || c.Networks[0] != "bridge" {
			continue
		}
		out = append(out, newFinding(
			finding.SeverityLow,
			finding.CategoryDefaultNetwork,
			fmt.Sprintf("Container %s sits on the default bridge network", c.Name),
			c.Name,
			fmt.Sprintf("Container %s is attached only to the default bridge, where every other default-bridge container can reach it.", c.Name),
			"The default bridge provides no isolation between unrelated workloads; one compromised container can probe all the others.",
			configReplaceFix(snap, c.Name, "The container moves to a dedicated user-defined network; cross-service links must be declared explicitly."),
		))
	}
	return out
}

// checkHealthchecks flags running containers with no healthcheck. Stopped
// containers are exempt.
func (e *Engine) checkHealthchecks(snap *audit.Snapshot) []finding.Finding {
	var out []finding.Finding
	for i := range snap.Containers {
		c := &snap.Containers[i]
		if !c.Running || c.HasHealthcheck {
			continue
		}
		out = append(out, newFinding(
			finding.SeverityLow,
			finding.CategoryNoHealthcheck,
			fmt.Sprintf("Container %s has no healthcheck", c.Name),
			c.Name,
			fmt.Sprintf("Container %s defines no healthcheck, so the engine cannot detect a hung or crashed service.", c.Name),
			"Silent failures stay unnoticed; a service that stopped responding keeps its 'running' status indefinitely.",
			configReplaceFix(snap, c.Name, "A healthcheck is added; unhealthy state becomes visible and restart policies can act on it."),
		))
	}
	return out
}

// checkFirewallBypass flags the engine publishing ports past an active host
// firewall. This is the only infrastructure-wide rule: its finding carries
// no container reference.
func (e *Engine) checkFirewallBypass(snap *audit.Snapshot) []finding.Finding {
	h := snap.Host
	if !h.FirewallActive || !h.EngineChainActive || h.EngineDefersToFirewall {
		return nil
	}
	return []finding.Finding{newFinding(
		finding.SeverityCritical,
		finding.CategoryFirewallBypass,
		"Container engine bypasses the host firewall",
		"",
		"A host firewall is installed and active, but the container engine maintains its own forwarding chain and inserts published ports ahead of the firewall's rules.",
		"Ports published by containers are reachable from outside even when the firewall policy says they are blocked; the firewall gives a false sense of protection.",
		&finding.FixPayload{
			Kind: finding.FixKindManual,
			Commands: []string{
				"sudo iptables -L DOCKER-USER -n --line-numbers",
				"sudo iptables -I DOCKER-USER -i eth0 ! -s 127.0.0.1 -j DROP",
				"sudo systemctl restart docker",
			},
			SideEffects: []string{"Tightening the DOCKER-USER chain can cut off remote access to intentionally published services; review each published port first."},
		},
	)}
}

// resolveConfigPath matches a container name against the service names
// parsed out of the discovered configuration files. Compose container names
// commonly look like <project>-<service>-<index> or <project>_<service>_<n>,
// so substring and suffix matches are accepted.
func resolveConfigPath(snap *audit.Snapshot, containerName string) string {
	if containerName == "" {
		return ""
	}
	for _, cf := range snap.ConfigFiles {
		for _, svc := range cf.Services {
			if svc == "" {
				continue
			}
			if containerName == svc ||
				strings.Contains(containerName, "-"+svc+"-") ||
				strings.Contains(containerName, "_"+svc+"_") ||
				strings.HasSuffix(containerName, "-"+svc) ||
				strings.HasSuffix(containerName, "_"+svc) {
				return cf.Path
			}
		}
	}
	return ""
}
