package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/libreria-lumen/backoffice/internal/reservations"
	"github.com/libreria-lumen/backoffice/internal/shared"
)

// ReservationRepo implements reservations.Repository.
type ReservationRepo struct{ s *Store }

// Reservations returns the reservations adapter.
func (s *Store) Reservations() *ReservationRepo { return &ReservationRepo{s: s} }

func (r *ReservationRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.s.WithTx(ctx, fn)
}

func lockKey(id uuid.UUID) string { return "reservation:" + id.String() }

func (r *ReservationRepo) Insert(ctx context.Context, res reservations.Reservation) error {
	r.s.mu.Lock()
	for _, existing := range r.s.reservations {
		if existing.Code == res.Code {
			r.s.mu.Unlock()
			return shared.ErrConflict
		}
	}
	r.s.mu.Unlock()
	res.Items = append([]reservations.Item(nil), res.Items...)
	r.s.write(ctx, func() { r.s.reservations[res.ID] = res }, func() { delete(r.s.reservations, res.ID) })
	return nil
}

func (r *ReservationRepo) Get(ctx context.Context, id uuid.UUID, forUpdate bool) (reservations.Reservation, error) {
	if forUpdate {
		r.s.lock(ctx, lockKey(id))
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	res, ok := r.s.reservations[id]
	if !ok {
		return reservations.Reservation{}, shared.ErrNotFound
	}
	return res, nil
}

func (r *ReservationRepo) GetByCode(_ context.Context, code string) (reservations.Reservation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, res := range r.s.reservations {
		if res.Code == code {
			return res, nil
		}
	}
	return reservations.Reservation{}, shared.ErrNotFound
}

func (r *ReservationRepo) List(_ context.Context, f reservations.ListFilters) ([]reservations.Reservation, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []reservations.Reservation
	for _, res := range r.s.reservations {
		if f.Status != "" && res.Status != f.Status {
			continue
		}
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReservedAt.After(out[j].ReservedAt) })
	return window(out, (f.Page-1)*f.Limit, f.Limit), len(out), nil
}

func (r *ReservationRepo) Update(ctx context.Context, res reservations.Reservation) error {
	r.s.mu.Lock()
	prev, ok := r.s.reservations[res.ID]
	r.s.mu.Unlock()
	if !ok {
		return shared.ErrNotFound
	}
	next := prev
	next.Status, next.Notes, next.SaleID, next.UpdatedAt = res.Status, res.Notes, res.SaleID, res.UpdatedAt
	r.s.write(ctx, func() { r.s.reservations[res.ID] = next }, func() { r.s.reservations[res.ID] = prev })
	return nil
}

func (r *ReservationRepo) LockOverdue(ctx context.Context, now time.Time, limit int) ([]reservations.Reservation, error) {
	r.s.mu.Lock()
	var due []reservations.Reservation
	for _, res := range r.s.reservations {
		if (res.Status == reservations.StatusPending || res.Status == reservations.StatusReserved) &&
			res.ExpiresAt != nil && res.ExpiresAt.Before(now) {
			due = append(due, res)
		}
	}
	r.s.mu.Unlock()
	sort.Slice(due, func(i, j int) bool { return due[i].ExpiresAt.Before(*due[j].ExpiresAt) })

	out := make([]reservations.Reservation, 0, len(due))
	for _, res := range due {
		if len(out) == limit {
			break
		}
		if !r.s.tryLock(ctx, lockKey(res.ID)) {
			continue
		}
		// A confirm or cancel may have committed between the scan and the lock.
		r.s.mu.Lock()
		current, ok := r.s.reservations[res.ID]
		r.s.mu.Unlock()
		if !ok || (current.Status != reservations.StatusPending && current.Status != reservations.StatusReserved) {
			continue
		}
		out = append(out, current)
	}
	return out, nil
}

func (r *ReservationRepo) MarkExpired(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	prev := make(map[uuid.UUID]reservations.Reservation, len(ids))
	for _, id := range ids {
		if res, ok := r.s.reservations[id]; ok {
			prev[id] = res
		}
	}
	r.s.mu.Unlock()
	r.s.write(ctx, func() {
		for id, res := range prev {
			res.Status = reservations.StatusExpired
			res.UpdatedAt = at
			r.s.reservations[id] = res
		}
	}, func() {
		for id, res := range prev {
			r.s.reservations[id] = res
		}
	})
	return nil
}
