package classifier

import (
	"strings"
	"testing"

	"github.com/ovidijusr/shieldai/internal/domain/audit"
	"github.com/ovidijusr/shieldai/internal/domain/finding"
)

func TestClassifier_Identify(t *testing.T) {
	c := New()

	tests := []struct {
		name           string
		container      *audit.Container
		port           uint16
		wantService    string
		wantCategory   string
		wantRisk       string
		wantShouldPub  bool
	}{
		{
			name:          "postgres by image regardless of port",
			container:     &audit.Container{Image: "postgres:14"},
			port:          9999,
			wantService:   "PostgreSQL",
			wantCategory:  CategoryDatabase,
			wantRisk:      finding.SeverityCritical,
			wantShouldPub: false,
		},
		{
			name:          "custom image with postgres port and env",
			container:     &audit.Container{Image: "acme/warehouse:2.1", Env: []string{"POSTGRES_PASSWORD=x"}},
			port:          5432,
			wantService:   "PostgreSQL",
			wantCategory:  CategoryDatabase,
			wantRisk:      finding.SeverityCritical,
			wantShouldPub: false,
		},
		{
			name:         "port alone is not enough",
			container:    &audit.Container{Image: "acme/batch-worker:1.0"},
			port:         5432,
			wantService:  "Unknown Service",
			wantCategory: CategoryOther,
			wantRisk:     finding.SeverityMedium,
		},
		{
			name:          "portainer management interface",
			container:     &audit.Container{Image: "portainer/portainer-ce:2.19.4"},
			port:          9443,
			wantService:   "Portainer",
			wantCategory:  CategoryManagement,
			wantRisk:      finding.SeverityCritical,
			wantShouldPub: false,
		},
		{
			name:          "nginx is allowed to be public",
			container:     &audit.Container{Image: "nginx:1.25-alpine"},
			port:          443,
			wantService:   "Nginx",
			wantCategory:  CategoryWeb,
			wantRisk:      finding.SeverityMedium,
			wantShouldPub: true,
		},
		{
			name:         "unknown image and port",
			container:    &audit.Container{Image: "internal/billing:3.2", Env: []string{"TZ=UTC"}},
			port:         4477,
			wantService:  "Unknown Service",
			wantCategory: CategoryOther,
			wantRisk:     finding.SeverityMedium,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Identify(tt.container, tt.port)

			if got.ServiceName != tt.wantService {
				t.Errorf("Identify() service = %v, want %v", got.ServiceName, tt.wantService)
			}
			if got.Category != tt.wantCategory {
				t.Errorf("Identify() category = %v, want %v", got.Category, tt.wantCategory)
			}
			if got.RiskLevel != tt.wantRisk {
				t.Errorf("Identify() risk = %v, want %v", got.RiskLevel, tt.wantRisk)
			}
			if got.ShouldBePublic != tt.wantShouldPub {
				t.Errorf("Identify() shouldBePublic = %v, want %v", got.ShouldBePublic, tt.wantShouldPub)
			}
		})
	}
}

func TestClassifier_FixRecommendation(t *testing.T) {
	c := New()

	tests := []struct {
		name     string
		info     ServiceInfo
		contains string
	}{
		{
			name:     "database binds to loopback",
			info:     ServiceInfo{ServiceName: "PostgreSQL", Category: CategoryDatabase},
			contains: "127.0.0.1",
		},
		{
			name:     "management never exposed",
			info:     ServiceInfo{ServiceName: "Portainer", Category: CategoryManagement},
			contains: "never be exposed",
		},
		{
			name:     "api behind reverse proxy",
			info:     ServiceInfo{ServiceName: "Node.js API", Category: CategoryAPI},
			contains: "reverse proxy",
		},
		{
			name:     "public web needs TLS",
			info:     ServiceInfo{ServiceName: "Nginx", Category: CategoryWeb, ShouldBePublic: true},
			contains: "TLS",
		},
		{
			name:     "unknown gets generic caution",
			info:     ServiceInfo{ServiceName: "Unknown Service", Category: CategoryOther},
			contains: "Verify",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.FixRecommendation(tt.info, "0.0.0.0")
			if !strings.Contains(got, tt.contains) {
				t.Errorf("FixRecommendation() = %q, want it to contain %q", got, tt.contains)
			}
		})
	}
}

func TestClassifier_RiskDescription(t *testing.T) {
	c := New()

	info := ServiceInfo{ServiceName: "PostgreSQL", Category: CategoryDatabase}
	desc := c.RiskDescription(info)
	if !strings.Contains(desc, "database") {
		t.Errorf("RiskDescription() = %q, want it to mention the database category", desc)
	}

	unknown := c.Identify(&audit.Container{Image: "scratch"}, 0)
	if desc := c.RiskDescription(unknown); desc == "" {
		t.Error("RiskDescription() returned empty text for unknown service")
	}
}
