package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libreria-lumen/backoffice/internal/auth"
	"github.com/libreria-lumen/backoffice/internal/platform/httpx"
	"github.com/libreria-lumen/backoffice/internal/rbac"
	"github.com/libreria-lumen/backoffice/internal/shared"
	"github.com/libreria-lumen/backoffice/internal/testing/fixture"
	"github.com/libreria-lumen/backoffice/internal/users"
)

func newRouter(t *testing.T) (http.Handler, *fixture.Env) {
	t.Helper()
	env := fixture.New(t)
	_, err := env.Users.Create(context.Background(), users.CreateInput{
		Email: "vendedora@lumen.test", Password: "s3cret-pass", FirstName: "Eva", LastName: "Ramos", Role: shared.RoleEmployee,
	}, nil)
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sessions := shared.NewSessionManager(client, time.Hour)

	h := auth.NewHandler(env.Logger, auth.NewService(env.Users, sessions, env.Logger), httpx.NewValidator(), rbac.Middleware{Logger: env.Logger})
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if sess, err := sessions.Load(req.Context(), req); err == nil {
				req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Route("/auth", h.MountRoutes)
	return r, env
}

func login(t *testing.T, router http.Handler, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	body := `{"email":"` + email + `","password":"` + password + `"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestLoginMeLogout(t *testing.T) {
	router, _ := newRouter(t)

	rec := login(t, router, "Vendedora@Lumen.test", "s3cret-pass")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Token string `json:"token"`
		User  struct {
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	assert.Equal(t, "vendedora@lumen.test", resp.User.Email)
	assert.NotContains(t, rec.Body.String(), "password")

	me := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	me.Header.Set("Authorization", "Bearer "+resp.Token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, me)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"role":"EMPLOYEE"`)

	out := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	out.Header.Set("Authorization", "Bearer "+resp.Token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, out)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, me)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	router, env := newRouter(t)

	rec := login(t, router, "vendedora@lumen.test", "wrong-pass")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_CREDENTIALS")

	rec = login(t, router, "nobody@lumen.test", "s3cret-pass")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	u, err := env.Users.FindByEmail(context.Background(), "vendedora@lumen.test")
	require.NoError(t, err)
	_, err = env.Users.SetActive(context.Background(), u.ID, false, &env.Admin.ID)
	require.NoError(t, err)
	rec = login(t, router, "vendedora@lumen.test", "s3cret-pass")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = login(t, router, "not-an-email", "x")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
