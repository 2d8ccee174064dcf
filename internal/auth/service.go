package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/libreria-lumen/backoffice/internal/shared"
	"github.com/libreria-lumen/backoffice/internal/users"
)

// UserFinder resolves accounts for login.
type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (users.User, error)
	Get(ctx context.Context, id uuid.UUID) (users.User, error)
}

// Service wraps authentication business rules.
type Service struct {
	users    UserFinder
	sessions *shared.SessionManager
	logger   *slog.Logger
}

// NewService constructs a new Service.
func NewService(finder UserFinder, sessions *shared.SessionManager, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{users: finder, sessions: sessions, logger: logger}
}

// ErrInvalidCredentials is returned for any login failure.
var ErrInvalidCredentials = shared.NewError(shared.ErrUnauthorized, "INVALID_CREDENTIALS", "invalid email or password")

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (users.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return users.User{}, ErrInvalidCredentials
		}
		return users.User{}, err
	}
	if !user.Active {
		return users.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return users.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates and issues a bearer session.
func (s *Service) Login(ctx context.Context, email, password string) (*shared.Session, users.User, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, users.User{}, err
	}
	sess, err := s.sessions.Issue(ctx, user.ID, user.Email, user.Role)
	if err != nil {
		return nil, users.User{}, err
	}
	s.logger.Info("login", slog.String("user_id", user.ID.String()), slog.String("role", user.Role))
	return sess, user, nil
}

// Logout revokes token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Revoke(ctx, token)
}

// Me returns the account behind sess.
func (s *Service) Me(ctx context.Context, sess *shared.Session) (users.User, error) {
	if sess == nil {
		return users.User{}, shared.ErrNoSession
	}
	return s.users.Get(ctx, sess.UserID)
}
