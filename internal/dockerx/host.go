package dockerx

import (
	"context"
	"os/exec"
	"strings"

	"github.com/ovidijusr/shieldai/internal/domain/audit"
)

// ProbeHost inspects host firewall state, best effort. Missing tools or
// insufficient privileges leave the corresponding flags false, which keeps
// the firewall bypass rule quiet rather than producing noise.
func ProbeHost(ctx context.Context) audit.HostInfo {
	var info audit.HostInfo

	if out, err := exec.CommandContext(ctx, "ufw", "status").Output(); err == nil {
		info.FirewallActive = strings.Contains(string(out), "Status: active")
	}

	// The engine writes its NAT rules into the DOCKER chain; its presence
	// means published ports bypass host-level filters unless DOCKER-USER
	// carries restricting rules.
	if err := exec.CommandContext(ctx, "iptables", "-n", "-L", "DOCKER").Run(); err == nil {
		info.EngineChainActive = true
	}

	if out, err := exec.CommandContext(ctx, "iptables", "-S", "DOCKER-USER").Output(); err == nil {
		for _, line := range strings.Split(string(out), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "-N ") {
				continue
			}
			if line != "-A DOCKER-USER -j RETURN" {
				info.EngineDefersToFirewall = true
				break
			}
		}
	}

	return info
}
