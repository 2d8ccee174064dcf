package memstore

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/libreria-lumen/backoffice/internal/shared"
	"github.com/libreria-lumen/backoffice/internal/users"
)

// UserRepo implements users.RepositoryPort.
type UserRepo struct{ s *Store }

// Users returns the users adapter.
func (s *Store) Users() *UserRepo { return &UserRepo{s: s} }

func (r *UserRepo) ListUsers(_ context.Context) ([]users.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]users.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (r *UserRepo) Get(_ context.Context, id uuid.UUID) (users.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return users.User{}, shared.ErrNotFound
	}
	return u, nil
}

func (r *UserRepo) FindByEmail(_ context.Context, email string) (users.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return users.User{}, shared.ErrNotFound
}

func (r *UserRepo) Create(ctx context.Context, u users.User) error {
	r.s.mu.Lock()
	for _, existing := range r.s.users {
		if existing.Email == u.Email {
			r.s.mu.Unlock()
			return shared.ErrConflict
		}
	}
	r.s.mu.Unlock()
	r.s.write(ctx, func() { r.s.users[u.ID] = u }, func() { delete(r.s.users, u.ID) })
	return nil
}

func (r *UserRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	r.s.mu.Lock()
	prev, ok := r.s.users[id]
	r.s.mu.Unlock()
	if !ok {
		return shared.ErrNotFound
	}
	next := prev
	next.Active = active
	r.s.write(ctx, func() { r.s.users[id] = next }, func() { r.s.users[id] = prev })
	return nil
}

func (r *UserRepo) Count(_ context.Context) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return len(r.s.users), nil
}
