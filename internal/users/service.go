package users

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/libreria-lumen/backoffice/internal/platform/clock"
	"github.com/libreria-lumen/backoffice/internal/rbac"
	"github.com/libreria-lumen/backoffice/internal/shared"
)

// RepositoryPort defines data access methods for users. Missing rows are
// shared.ErrNotFound and duplicate emails shared.ErrConflict.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	Get(ctx context.Context, id uuid.UUID) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	Create(ctx context.Context, u User) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	Count(ctx context.Context) (int, error)
}

// Service handles user business logic.
type Service struct {
	repo   RepositoryPort
	audit  shared.AuditSink
	clock  clock.Clock
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, audit shared.AuditSink, clk clock.Clock, logger *slog.Logger) *Service {
	if clk == nil {
		clk = clock.NewSystem()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, clock: clk, logger: logger}
}

func notFound(id uuid.UUID) error {
	return shared.Errorf(shared.ErrNotFound, "USER_NOT_FOUND", "user %s not found", id)
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// Get loads a user.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (User, error) {
	u, err := s.repo.Get(ctx, id)
	if errors.Is(err, shared.ErrNotFound) {
		return User{}, notFound(id)
	}
	return u, err
}

// FindByEmail looks a user up by case-insensitive email.
func (s *Service) FindByEmail(ctx context.Context, email string) (User, error) {
	return s.repo.FindByEmail(ctx, normalizeEmail(email))
}

// Create registers a new account with a bcrypt password hash.
func (s *Service) Create(ctx context.Context, in CreateInput, actor *uuid.UUID) (User, error) {
	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return User{}, shared.NewError(shared.ErrInvalidArgument, "USER_DATA_REQUIRED", "email and password are required")
	}
	if !rbac.ValidRole(in.Role) {
		return User{}, shared.Errorf(shared.ErrInvalidArgument, "INVALID_ROLE", "unknown role %q", in.Role)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	now := s.clock.Now()
	u := User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Role:         in.Role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, shared.ErrConflict) {
			return User{}, shared.NewError(shared.ErrConflict, "USER_EMAIL_EXISTS", "email already registered")
		}
		return User{}, err
	}
	if err := s.audit.Record(ctx, shared.AuditRecord{
		Entity:      "User",
		EntityID:    u.ID.String(),
		Action:      "CREATE",
		PerformedBy: actor,
		At:          now,
		Details:     map[string]any{"email": u.Email, "role": u.Role},
	}); err != nil {
		return User{}, err
	}
	return u, nil
}

// SetActive enables or disables an account.
func (s *Service) SetActive(ctx context.Context, id uuid.UUID, active bool, actor *uuid.UUID) (User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return User{}, err
	}
	u.Active = active
	if err := s.audit.Record(ctx, shared.AuditRecord{
		Entity:      "User",
		EntityID:    id.String(),
		Action:      "STATUS_UPDATE",
		PerformedBy: actor,
		At:          s.clock.Now(),
		Details:     map[string]any{"active": active},
	}); err != nil {
		return User{}, err
	}
	return u, nil
}

// Resolve returns an active user usable as cashier.
func (s *Service) Resolve(ctx context.Context, id uuid.UUID) (User, error) {
	u, err := s.repo.Get(ctx, id)
	if errors.Is(err, shared.ErrNotFound) || (err == nil && !u.Active) {
		return User{}, shared.Errorf(shared.ErrNotFound, "CASHIER_NOT_FOUND", "cashier %s not found", id)
	}
	return u, err
}

// EnsureBootstrapAdmin creates an admin account when no user exists yet.
func (s *Service) EnsureBootstrapAdmin(ctx context.Context, email, password string) (bool, error) {
	if email == "" || password == "" {
		return false, nil
	}
	n, err := s.repo.Count(ctx)
	if err != nil || n > 0 {
		return false, err
	}
	u, err := s.Create(ctx, CreateInput{
		Email:     email,
		Password:  password,
		FirstName: "System",
		LastName:  "Administrator",
		Role:      shared.RoleAdmin,
	}, nil)
	if err != nil {
		return false, err
	}
	s.logger.Warn("bootstrap admin created; change its password", slog.String("email", u.Email))
	return true, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
