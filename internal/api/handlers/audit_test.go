package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/ovidijusr/shieldai/internal/domain/audit"
	"github.com/ovidijusr/shieldai/internal/domain/finding"
	"github.com/ovidijusr/shieldai/internal/pkg/logger"
	"github.com/ovidijusr/shieldai/internal/services"
)

type stubSnapshotter struct{}

func (stubSnapshotter) Snapshot(context.Context) (*audit.Snapshot, error) {
	return &audit.Snapshot{}, nil
}

type stubRules struct{}

func (stubRules) Evaluate(*audit.Snapshot) []finding.Finding {
	return []finding.Finding{
		{ID: "f-1", Severity: finding.SeverityCritical, Category: finding.CategoryPrivilegedMode,
			Title: "privileged", Source: finding.SourceRule,
			Fix: &finding.FixPayload{Kind: finding.FixKindConfigReplace, TargetPath: "/srv/docker-compose.yml", Content: "services: {}\n"}},
	}
}

type stubFixer struct{}

func (stubFixer) Preview(_ context.Context, f *finding.Finding) (*finding.DiffPreview, error) {
	return &finding.DiffPreview{TargetPath: f.Fix.TargetPath}, nil
}

func (stubFixer) Apply(context.Context, *finding.Finding) (*finding.FixResult, error) {
	return &finding.FixResult{Success: true, BackupPath: "/backups/x.bak"}, nil
}

func newTestRouter() http.Handler {
	log := logger.New(logger.Config{Level: "error", Format: "json"})
	svc := services.NewAuditService(stubSnapshotter{}, stubRules{}, nil, stubFixer{}, log)
	h := NewAuditHandler(svc, log)

	r := chi.NewRouter()
	r.Post("/api/v1/audits", h.Run)
	r.Get("/api/v1/audits/{id}", h.Get)
	r.Post("/api/v1/audits/{id}/findings/{findingID}/fix/preview", h.PreviewFix)
	r.Post("/api/v1/audits/{id}/findings/{findingID}/fix/apply", h.ApplyFix)
	return r
}

func TestAuditEndpoints(t *testing.T) {
	router := newTestRouter()

	// Run a quick audit.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/audits", strings.NewReader(`{"mode":"quick"}`)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /audits status = %d, body %s", rec.Code, rec.Body.String())
	}

	var run struct {
		ID     string `json:"id"`
		Report struct {
			Findings []finding.Finding `json:"findings"`
		} `json:"report"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &run); err != nil {
		t.Fatalf("response not JSON: %v", err)
	}
	if run.ID == "" || len(run.Report.Findings) != 1 {
		t.Fatalf("unexpected run payload: %s", rec.Body.String())
	}

	// Fetch it back.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/audits/"+run.ID, nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET /audits/{id} status = %d", rec.Code)
	}

	// Preview and apply the finding's fix.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/audits/"+run.ID+"/findings/f-1/fix/preview", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("preview status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/audits/"+run.ID+"/findings/f-1/fix/apply", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("apply status = %d, body %s", rec.Code, rec.Body.String())
	}

	// Unknown run and finding map to 404.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/audits/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown run status = %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/audits/"+run.ID+"/findings/nope/fix/preview", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown finding status = %d, want 404", rec.Code)
	}
}

func TestAuditRun_BadMode(t *testing.T) {
	router := newTestRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/audits", strings.NewReader(`{"mode":"thorough"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad mode status = %d, want 400", rec.Code)
	}
}
