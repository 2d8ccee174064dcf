package users_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/libreria-lumen/backoffice/internal/shared"
	"github.com/libreria-lumen/backoffice/internal/testing/fixture"
	"github.com/libreria-lumen/backoffice/internal/testing/memstore"
	"github.com/libreria-lumen/backoffice/internal/users"
)

func TestCreateNormalizesEmailAndHashesPassword(t *testing.T) {
	env := fixture.New(t)
	ctx := context.Background()

	u, err := env.Users.Create(ctx, users.CreateInput{
		Email: "  Maria.Lopez@Lumen.Test ", Password: "s3cret-pass",
		FirstName: " Maria ", LastName: "Lopez", Role: shared.RoleEmployee,
	}, &env.Admin.ID)
	require.NoError(t, err)
	require.Equal(t, "maria.lopez@lumen.test", u.Email)
	require.Equal(t, "Maria", u.FirstName)
	require.True(t, u.Active)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("s3cret-pass")))

	found, err := env.Users.FindByEmail(ctx, "MARIA.LOPEZ@lumen.test")
	require.NoError(t, err)
	require.Equal(t, u.ID, found.ID)

	records := env.Store.AuditRecords()
	last := records[len(records)-1]
	require.Equal(t, "User", last.Entity)
	require.Equal(t, "CREATE", last.Action)
	require.Equal(t, env.Admin.ID, *last.PerformedBy)
}

func TestCreateRejectsDuplicateEmailAndUnknownRole(t *testing.T) {
	env := fixture.New(t)
	ctx := context.Background()

	_, err := env.Users.Create(ctx, users.CreateInput{
		Email: "CAJA@lumen.test", Password: "another-pass", FirstName: "X", LastName: "Y", Role: shared.RoleEmployee,
	}, nil)
	require.ErrorIs(t, err, shared.ErrConflict)
	require.Equal(t, "USER_EMAIL_EXISTS", shared.CodeOf(err))

	_, err = env.Users.Create(ctx, users.CreateInput{
		Email: "new@lumen.test", Password: "another-pass", FirstName: "X", LastName: "Y", Role: "MANAGER",
	}, nil)
	require.ErrorIs(t, err, shared.ErrInvalidArgument)
	require.Equal(t, "INVALID_ROLE", shared.CodeOf(err))
}

func TestDeactivatedUserCannotActAsCashier(t *testing.T) {
	env := fixture.New(t)
	ctx := context.Background()

	resolved, err := env.Users.Resolve(ctx, env.Employee.ID)
	require.NoError(t, err)
	require.Equal(t, env.Employee.Email, resolved.Email)

	u, err := env.Users.SetActive(ctx, env.Employee.ID, false, &env.Admin.ID)
	require.NoError(t, err)
	require.False(t, u.Active)

	_, err = env.Users.Resolve(ctx, env.Employee.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Equal(t, "CASHIER_NOT_FOUND", shared.CodeOf(err))

	_, err = env.Users.SetActive(ctx, uuid.New(), true, nil)
	require.Equal(t, "USER_NOT_FOUND", shared.CodeOf(err))
}

func TestEnsureBootstrapAdmin(t *testing.T) {
	env := fixture.New(t)
	ctx := context.Background()

	created, err := env.Users.EnsureBootstrapAdmin(ctx, "root@lumen.test", "change-me-now")
	require.NoError(t, err)
	require.False(t, created, "staff already exists")

	created, err = env.Users.EnsureBootstrapAdmin(ctx, "", "")
	require.NoError(t, err)
	require.False(t, created)

	store := memstore.New()
	fresh := users.NewService(store.Users(), shared.NewAuditor(store.Audit(), true, env.Logger), env.Clock, env.Logger)
	created, err = fresh.EnsureBootstrapAdmin(ctx, "Root@Lumen.test", "change-me-now")
	require.NoError(t, err)
	require.True(t, created)

	admin, err := fresh.FindByEmail(ctx, "root@lumen.test")
	require.NoError(t, err)
	require.Equal(t, shared.RoleAdmin, admin.Role)

	created, err = fresh.EnsureBootstrapAdmin(ctx, "other@lumen.test", "change-me-now")
	require.NoError(t, err)
	require.False(t, created)
}
