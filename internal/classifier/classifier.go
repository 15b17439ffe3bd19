// Package classifier guesses which known service a container/port pair
// represents, and how risky exposing it is.
package classifier

import (
	"fmt"
	"regexp"

	"github.com/ovidijusr/shieldai/internal/domain/audit"
	"github.com/ovidijusr/shieldai/internal/domain/finding"
)

// Service categories.
const (
	CategoryDatabase   = "database"
	CategoryWeb        = "web"
	CategoryAPI        = "api"
	CategoryManagement = "management"
	CategoryOther      = "other"
)

// Match weights. An image-name match alone is sufficient to accept a
// signature; port and env matches alone are not. Port numbers are reused
// across services and must not outweigh an explicit image identity.
const (
	weightImage = 3
	weightPort  = 2
	weightEnv   = 1

	acceptScore = 3
)

// ServiceInfo is the classification result for one container/port pair.
type ServiceInfo struct {
	ServiceName    string `json:"service_name"`
	Category       string `json:"category"`
	RiskLevel      string `json:"risk_level"`
	ShouldBePublic bool   `json:"should_be_public"`
}

// Signature is a pattern-matching rule for one known service.
type Signature struct {
	Name           string
	Category       string
	RiskLevel      string
	ShouldBePublic bool
	ImagePatterns  []*regexp.Regexp
	Ports          []uint16
	EnvPatterns    []*regexp.Regexp
}

// Classifier identifies services from image names, ports and env vars.
// It is stateless and safe for concurrent use.
type Classifier struct {
	signatures []Signature
}

// New creates a classifier with the built-in signature set.
func New() *Classifier {
	return &Classifier{signatures: builtinSignatures()}
}

// Identify scores each known signature against the container and port and
// returns the first signature whose score reaches the acceptance threshold.
// It never fails; unmatched containers get the unknown-service fallback.
func (c *Classifier) Identify(container *audit.Container, port uint16) ServiceInfo {
	for _, sig := range c.signatures {
		score := 0

		for _, p := range sig.ImagePatterns {
			if p.MatchString(container.Image) {
				score += weightImage
				break
			}
		}

		for _, known := range sig.Ports {
			if known == port {
				score += weightPort
				break
			}
		}

		for _, p := range sig.EnvPatterns {
			matched := false
			for _, env := range container.Env {
				if p.MatchString(env) {
					matched = true
					break
				}
			}
			if matched {
				score += weightEnv
				break
			}
		}

		if score >= acceptScore {
			return ServiceInfo{
				ServiceName:    sig.Name,
				Category:       sig.Category,
				RiskLevel:      sig.RiskLevel,
				ShouldBePublic: sig.ShouldBePublic,
			}
		}
	}

	return ServiceInfo{
		ServiceName:    "Unknown Service",
		Category:       CategoryOther,
		RiskLevel:      finding.SeverityMedium,
		ShouldBePublic: false,
	}
}

// RiskDescription returns a narrative of why exposing this service matters.
func (c *Classifier) RiskDescription(info ServiceInfo) string {
	switch info.Category {
	case CategoryDatabase:
		return fmt.Sprintf("%s is a database. Publicly reachable databases are a primary target for credential stuffing, data exfiltration and ransomware.", info.ServiceName)
	case CategoryManagement:
		return fmt.Sprintf("%s is a management interface. Anyone who reaches it can typically control the underlying infrastructure.", info.ServiceName)
	case CategoryAPI:
		return fmt.Sprintf("%s is an API service. Direct exposure skips rate limiting, TLS termination and request filtering normally provided by a proxy layer.", info.ServiceName)
	case CategoryWeb:
		if info.ShouldBePublic {
			return fmt.Sprintf("%s is a web server intended to be reachable, but exposure still requires TLS and authentication for any non-public content.", info.ServiceName)
		}
		return fmt.Sprintf("%s is a web service that does not need to be publicly reachable.", info.ServiceName)
	default:
		return fmt.Sprintf("%s could not be identified precisely. Unknown exposed services should be treated as risky until classified.", info.ServiceName)
	}
}

// FixRecommendation returns category-specific remediation advice for a
// service currently bound to the given address.
func (c *Classifier) FixRecommendation(info ServiceInfo, currentBindAddress string) string {
	switch info.Category {
	case CategoryDatabase, CategoryManagement:
		return fmt.Sprintf("%s should never be exposed publicly. Change the bind address from %s to 127.0.0.1, or remove the host port mapping entirely and let other containers reach it over an internal network.", info.ServiceName, currentBindAddress)
	case CategoryAPI:
		return fmt.Sprintf("Place %s behind a reverse proxy (nginx, traefik) that terminates TLS and enforces authentication, instead of binding it to %s directly.", info.ServiceName, currentBindAddress)
	case CategoryWeb:
		if info.ShouldBePublic {
			return fmt.Sprintf("%s may stay reachable, but ensure TLS is configured and any admin paths require authentication.", info.ServiceName)
		}
		return fmt.Sprintf("Bind %s to 127.0.0.1 instead of %s unless public access is genuinely required.", info.ServiceName, currentBindAddress)
	default:
		return fmt.Sprintf("Verify whether %s needs to be reachable from outside this host. If not, bind it to 127.0.0.1 instead of %s.", info.ServiceName, currentBindAddress)
	}
}
