package classifier

import (
	"regexp"

	"github.com/ovidijusr/shieldai/internal/domain/finding"
)

func imagePatterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile(e))
	}
	return out
}

// builtinSignatures returns the known service signatures. Order matters:
// the first signature reaching the acceptance score wins, so the more
// specific entries come before the generic ones.
func builtinSignatures() []Signature {
	return []Signature{
		{
			Name:          "PostgreSQL",
			Category:      CategoryDatabase,
			RiskLevel:     finding.SeverityCritical,
			ImagePatterns: imagePatterns(`(?i)postgres`, `(?i)timescale`, `(?i)pgvector`),
			Ports:         []uint16{5432},
			EnvPatterns:   imagePatterns(`(?i)^POSTGRES_`),
		},
		{
			Name:          "MySQL/MariaDB",
			Category:      CategoryDatabase,
			RiskLevel:     finding.SeverityCritical,
			ImagePatterns: imagePatterns(`(?i)mysql`, `(?i)mariadb`, `(?i)percona`),
			Ports:         []uint16{3306},
			EnvPatterns:   imagePatterns(`(?i)^MYSQL_`, `(?i)^MARIADB_`),
		},
		{
			Name:          "MongoDB",
			Category:      CategoryDatabase,
			RiskLevel:     finding.SeverityCritical,
			ImagePatterns: imagePatterns(`(?i)mongo`),
			Ports:         []uint16{27017},
			EnvPatterns:   imagePatterns(`(?i)^MONGO_`),
		},
		{
			Name:          "Redis",
			Category:      CategoryDatabase,
			RiskLevel:     finding.SeverityCritical,
			ImagePatterns: imagePatterns(`(?i)redis`, `(?i)valkey`, `(?i)keydb`),
			Ports:         []uint16{6379},
			EnvPatterns:   imagePatterns(`(?i)^REDIS_`),
		},
		{
			Name:          "Elasticsearch",
			Category:      CategoryDatabase,
			RiskLevel:     finding.SeverityCritical,
			ImagePatterns: imagePatterns(`(?i)elasticsearch`, `(?i)opensearch`),
			Ports:         []uint16{9200, 9300},
			EnvPatterns:   imagePatterns(`(?i)^ELASTIC_`, `(?i)^discovery\.type=`),
		},
		{
			Name:          "RabbitMQ",
			Category:      CategoryDatabase,
			RiskLevel:     finding.SeverityHigh,
			ImagePatterns: imagePatterns(`(?i)rabbitmq`),
			Ports:         []uint16{5672, 15672},
			EnvPatterns:   imagePatterns(`(?i)^RABBITMQ_`),
		},
		{
			Name:          "Portainer",
			Category:      CategoryManagement,
			RiskLevel:     finding.SeverityCritical,
			ImagePatterns: imagePatterns(`(?i)portainer`),
			Ports:         []uint16{9000, 9443},
		},
		{
			Name:          "phpMyAdmin",
			Category:      CategoryManagement,
			RiskLevel:     finding.SeverityCritical,
			ImagePatterns: imagePatterns(`(?i)phpmyadmin`),
			Ports:         []uint16{8081},
			EnvPatterns:   imagePatterns(`(?i)^PMA_`),
		},
		{
			Name:          "Adminer",
			Category:      CategoryManagement,
			RiskLevel:     finding.SeverityCritical,
			ImagePatterns: imagePatterns(`(?i)adminer`),
			Ports:         []uint16{8080},
			EnvPatterns:   imagePatterns(`(?i)^ADMINER_`),
		},
		{
			Name:          "Grafana",
			Category:      CategoryManagement,
			RiskLevel:     finding.SeverityHigh,
			ImagePatterns: imagePatterns(`(?i)grafana`),
			Ports:         []uint16{3000},
			EnvPatterns:   imagePatterns(`(?i)^GF_`),
		},
		{
			Name:           "Traefik",
			Category:       CategoryWeb,
			RiskLevel:      finding.SeverityMedium,
			ShouldBePublic: true,
			ImagePatterns:  imagePatterns(`(?i)traefik`),
			Ports:          []uint16{80, 443},
		},
		{
			Name:           "Nginx",
			Category:       CategoryWeb,
			RiskLevel:      finding.SeverityMedium,
			ShouldBePublic: true,
			ImagePatterns:  imagePatterns(`(?i)nginx`, `(?i)caddy`, `(?i)httpd`),
			Ports:          []uint16{80, 443, 8080},
			EnvPatterns:    imagePatterns(`(?i)^NGINX_`),
		},
		{
			Name:          "Node.js API",
			Category:      CategoryAPI,
			RiskLevel:     finding.SeverityHigh,
			ImagePatterns: imagePatterns(`(?i)^node(:|$)`, `(?i)/node(:|$)`, `(?i)express`),
			Ports:         []uint16{3000, 8000, 8080},
			EnvPatterns:   imagePatterns(`(?i)^NODE_ENV=`),
		},
		{
			Name:          "Python API",
			Category:      CategoryAPI,
			RiskLevel:     finding.SeverityHigh,
			ImagePatterns: imagePatterns(`(?i)^python(:|$)`, `(?i)uvicorn`, `(?i)gunicorn`, `(?i)fastapi`, `(?i)django`),
			Ports:         []uint16{8000, 5000},
			EnvPatterns:   imagePatterns(`(?i)^(DJANGO|FLASK|FASTAPI)_`),
		},
	}
}
