package shared_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libreria-lumen/backoffice/internal/shared"
)

func newManager(t *testing.T) (*shared.SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return shared.NewSessionManager(client, time.Hour), mr
}

func TestSessionIssueLoadRevoke(t *testing.T) {
	sm, mr := newManager(t)
	ctx := context.Background()
	userID := uuid.New()

	sess, err := sm.Issue(ctx, userID, "admin@lumen.test", shared.RoleAdmin)
	require.NoError(t, err)
	require.NotEmpty(t, sess.Token)
	assert.True(t, mr.Exists("session:"+sess.Token))

	req := httptest.NewRequest("GET", "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	loaded, err := sm.Load(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, userID, loaded.UserID)
	assert.True(t, loaded.HasRole(shared.RoleAdmin))
	assert.False(t, loaded.HasRole(shared.RoleEmployee))

	require.NoError(t, sm.Revoke(ctx, sess.Token))
	_, err = sm.Load(ctx, req)
	assert.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestSessionExpires(t *testing.T) {
	sm, mr := newManager(t)
	ctx := context.Background()

	sess, err := sm.Issue(ctx, uuid.New(), "employee@lumen.test", shared.RoleEmployee)
	require.NoError(t, err)
	mr.FastForward(2 * time.Hour)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	_, err = sm.Load(ctx, req)
	assert.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestLoadWithoutHeader(t *testing.T) {
	sm, _ := newManager(t)
	_, err := sm.Load(context.Background(), httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, "AUTH_REQUIRED", shared.CodeOf(err))
}
