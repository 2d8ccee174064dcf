package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libreria-lumen/backoffice/internal/app"
	"github.com/libreria-lumen/backoffice/internal/audit"
	audithttp "github.com/libreria-lumen/backoffice/internal/audit/http"
	"github.com/libreria-lumen/backoffice/internal/catalog"
	"github.com/libreria-lumen/backoffice/internal/customers"
	"github.com/libreria-lumen/backoffice/internal/inventory"
	"github.com/libreria-lumen/backoffice/internal/observability"
	"github.com/libreria-lumen/backoffice/internal/platform/httpx"
	"github.com/libreria-lumen/backoffice/internal/rbac"
	"github.com/libreria-lumen/backoffice/internal/reservations"
	"github.com/libreria-lumen/backoffice/internal/sales"
	"github.com/libreria-lumen/backoffice/internal/shared"
	_ "github.com/libreria-lumen/backoffice/internal/testing/guard"
	"github.com/libreria-lumen/backoffice/internal/testing/fixture"
	"github.com/libreria-lumen/backoffice/internal/users"
)

type harness struct {
	env      *fixture.Env
	router   http.Handler
	sessions *shared.SessionManager
	redis    *miniredis.Miniredis
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	env := fixture.New(t, fixture.LenientAudit())
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sessions := shared.NewSessionManager(client, time.Hour)

	v := httpx.NewValidator()
	rb := rbac.Middleware{Logger: env.Logger}
	cfg := &app.Config{AppEnv: "test", RateLimitPerMinute: 1000, AppRequestTimeout: 5 * time.Second}

	router := app.NewRouter(app.RouterParams{
		Logger:   env.Logger,
		Config:   cfg,
		Sessions: sessions,
		Metrics:  observability.NewMetrics(),
		Checks: map[string]app.HealthCheck{
			"redis": func(ctx context.Context) error { return client.Ping(ctx).Err() },
		},
		UsersHandler:        users.NewHandler(env.Logger, env.Users, v, rb),
		CatalogHandler:      catalog.NewHandler(env.Logger, env.Catalog, v, rb),
		CustomersHandler:    customers.NewHandler(env.Logger, env.Customers, v, rb),
		InventoryHandler:    inventory.NewHandler(env.Logger, env.Inventory, v, rb),
		SalesHandler:        sales.NewHandler(env.Logger, env.Sales, v, rb),
		ReservationsHandler: reservations.NewHandler(env.Logger, env.Reservations, v, rb),
		AuditHandler:        audithttp.NewHandler(env.Logger, audit.NewService(env.Store.Timeline()), rb),
	})
	return &harness{env: env, router: router, sessions: sessions, redis: mr}
}

func (h *harness) token(t *testing.T, u users.User) string {
	t.Helper()
	sess, err := h.sessions.Issue(context.Background(), u.ID, u.Email, u.Role)
	require.NoError(t, err)
	return sess.Token
}

func (h *harness) do(method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func TestRouteRoleChecks(t *testing.T) {
	h := newHarness(t)
	admin := h.token(t, h.env.Admin)
	employee := h.token(t, h.env.Employee)
	missing := "/sales/" + uuid.NewString()

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"anonymous catalog read", http.MethodGet, "/catalog/products", "", http.StatusUnauthorized},
		{"unknown token", http.MethodGet, "/catalog/products", "not-a-token", http.StatusUnauthorized},
		{"employee catalog read", http.MethodGet, "/catalog/products", employee, http.StatusOK},
		{"employee catalog write", http.MethodPost, "/catalog/categories", employee, http.StatusForbidden},
		{"employee customers", http.MethodGet, "/customers", employee, http.StatusOK},
		{"employee reservations", http.MethodGet, "/reservations", employee, http.StatusOK},
		{"employee sales", http.MethodGet, missing, employee, http.StatusForbidden},
		{"admin sales", http.MethodGet, missing, admin, http.StatusNotFound},
		{"employee users", http.MethodGet, "/users", employee, http.StatusForbidden},
		{"admin users", http.MethodGet, "/users", admin, http.StatusOK},
		{"employee audit", http.MethodGet, "/audit", employee, http.StatusForbidden},
		{"admin audit", http.MethodGet, "/audit", admin, http.StatusOK},
		{"public catalog", http.MethodGet, "/public/products", "", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := h.do(tc.method, tc.path, tc.token, "")
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
		})
	}
}

func TestPublicReservationIntakeNeedsNoSession(t *testing.T) {
	h := newHarness(t)
	p := h.env.Product("LUM-001", "25.00", 3)
	deadline := fixture.Epoch.Add(48 * time.Hour).Format(time.RFC3339)
	body := `{"customer_data":{"dni":"45678912","first_name":"maria","last_name":"quispe","email":"maria@example.pe","phone":"+51 987654321"},` +
		`"items":[{"product_id":"` + p.ID.String() + `","quantity":2}],"pickup_deadline":"` + deadline + `"}`

	rec := h.do(http.MethodPost, "/public/reservations", "", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var res reservations.Reservation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, reservations.StatusPending, res.Status)
	assert.Equal(t, "50", res.TotalAmount.String())
	assert.EqualValues(t, 3, h.env.Stock(t, p.ID), "intake never touches stock")
}

func TestProblemResponses(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/no-such-route", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))

	rec = h.do(http.MethodPost, "/public/reservations", "", "{")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, "MALFORMED_BODY", problem.Code)
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{"redis":"up"}}`, rec.Body.String())

	h.redis.SetError("connection refused")
	rec = h.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"down"`)
}

func TestSessionStoreOutageIsNotAnonymous(t *testing.T) {
	h := newHarness(t)
	token := h.token(t, h.env.Admin)
	h.redis.SetError("connection refused")

	rec := h.do(http.MethodGet, "/users", token, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsRoute(t *testing.T) {
	h := newHarness(t)
	h.do(http.MethodGet, "/public/categories", "", "")

	rec := h.do(http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `lumen_http_requests_total{code="200",route="/public/categories"}`)
}

func TestLoadSessionPassesAnonymousRequests(t *testing.T) {
	var seen *shared.Session
	handler := app.LoadSession(stubLoader{err: shared.ErrNoSession}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = shared.SessionFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Nil(t, seen)
}

type stubLoader struct {
	sess *shared.Session
	err  error
}

func (s stubLoader) Load(context.Context, *http.Request) (*shared.Session, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.sess == nil {
		return nil, errors.New("no session configured")
	}
	return s.sess, nil
}
