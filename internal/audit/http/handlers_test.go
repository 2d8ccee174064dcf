package audithttp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/libreria-lumen/backoffice/internal/audit"
	"github.com/libreria-lumen/backoffice/internal/rbac"
	"github.com/libreria-lumen/backoffice/internal/shared"
)

type stubTimelineService struct {
	result      audit.Result
	exportRows  []audit.TimelineRow
	lastFilters audit.TimelineFilters
}

func (s *stubTimelineService) Timeline(_ context.Context, filters audit.TimelineFilters) (audit.Result, error) {
	s.lastFilters = filters
	return s.result, nil
}

func (s *stubTimelineService) Export(_ context.Context, filters audit.TimelineFilters) ([]audit.TimelineRow, error) {
	s.lastFilters = filters
	return s.exportRows, nil
}

func newAuditRouter(service *stubTimelineService) http.Handler {
	handler := NewHandler(nil, service, rbac.Middleware{})
	handler.now = func() time.Time { return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC) }
	r := chi.NewRouter()
	r.Route("/audit", handler.MountRoutes)
	return r
}

func do(router http.Handler, target string, sess *shared.Session) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if sess != nil {
		req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestTimelineRequiresAdmin(t *testing.T) {
	router := newAuditRouter(&stubTimelineService{})
	employee := &shared.Session{UserID: uuid.New(), Role: shared.RoleEmployee}
	if rr := do(router, "/audit", employee); rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	if rr := do(router, "/audit", nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestTimelineParsesFilters(t *testing.T) {
	rows := []audit.TimelineRow{{At: time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC), Action: "CREATE", Entity: "Sale", EntityID: "1"}}
	service := &stubTimelineService{result: audit.Result{Rows: rows, Paging: audit.PagingInfo{Page: 1, PageSize: 20}}}
	router := newAuditRouter(service)
	admin := &shared.Session{UserID: uuid.New(), Role: shared.RoleAdmin}

	rr := do(router, "/audit?from=2026-03-01&to=2026-03-15&entity=Sale&action=create", admin)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"entity":"Sale"`) {
		t.Fatalf("expected row in response: %s", rr.Body.String())
	}
	f := service.lastFilters
	if f.From.Format(time.DateOnly) != "2026-03-01" || f.To.Format(time.DateOnly) != "2026-03-16" {
		t.Fatalf("unexpected window: %+v", f)
	}
	if f.Action != "CREATE" || f.Entity != "Sale" {
		t.Fatalf("unexpected filters: %+v", f)
	}
}

func TestTimelineRejectsBadRange(t *testing.T) {
	router := newAuditRouter(&stubTimelineService{})
	admin := &shared.Session{UserID: uuid.New(), Role: shared.RoleAdmin}
	rr := do(router, "/audit?from=2025-01-01&to=2026-03-15", admin)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "INVALID_FILTER") {
		t.Fatalf("expected INVALID_FILTER code: %s", rr.Body.String())
	}
}

func TestExportCSV(t *testing.T) {
	service := &stubTimelineService{exportRows: []audit.TimelineRow{{Action: "CANCEL", Entity: "Reservation", EntityID: "r-1"}}}
	router := newAuditRouter(service)
	admin := &shared.Session{UserID: uuid.New(), Role: shared.RoleAdmin}
	rr := do(router, "/audit/export.csv", admin)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ctype := rr.Header().Get("Content-Type"); !strings.Contains(ctype, "text/csv") {
		t.Fatalf("unexpected content-type: %s", ctype)
	}
	if !strings.Contains(rr.Body.String(), "Reservation,r-1") {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
}

func TestExportRateLimitedPerUser(t *testing.T) {
	router := newAuditRouter(&stubTimelineService{})
	admin := &shared.Session{UserID: uuid.New(), Role: shared.RoleAdmin}
	for i := 0; i < exportRateLimit; i++ {
		if rr := do(router, "/audit/export.csv", admin); rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rr.Code)
		}
	}
	if rr := do(router, "/audit/export.csv", admin); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	other := &shared.Session{UserID: uuid.New(), Role: shared.RoleAdmin}
	if rr := do(router, "/audit/export.csv", other); rr.Code != http.StatusOK {
		t.Fatalf("expected other user unaffected, got %d", rr.Code)
	}
}
