package customers

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/libreria-lumen/backoffice/internal/platform/clock"
	"github.com/libreria-lumen/backoffice/internal/shared"
)

// Repository persists customers. Missing rows are reported as
// shared.ErrNotFound and DNI clashes as shared.ErrConflict.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	Get(ctx context.Context, id uuid.UUID) (Customer, error)
	GetByDNI(ctx context.Context, dni string, forUpdate bool) (Customer, error)
	List(ctx context.Context, filters ListFilters) ([]Customer, int, error)
	Create(ctx context.Context, c Customer) error
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	Delete(ctx context.Context, id uuid.UUID) error
}

var dniPattern = regexp.MustCompile(`^\d{8}$`)

// Service manages the customer directory.
type Service struct {
	repo  Repository
	audit shared.AuditSink
	clock clock.Clock
}

func NewService(repo Repository, audit shared.AuditSink, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Service{repo: repo, audit: audit, clock: clk}
}

// NotFound builds the CUSTOMER_NOT_FOUND error.
func NotFound(id uuid.UUID) error {
	return shared.Errorf(shared.ErrNotFound, "CUSTOMER_NOT_FOUND", "customer %s not found", id)
}

var errDNIExists = shared.NewError(shared.ErrConflict, "CUSTOMER_DNI_EXISTS", "a customer with this dni already exists")

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Customer, error) {
	c, err := s.repo.Get(ctx, id)
	if errors.Is(err, shared.ErrNotFound) {
		return Customer{}, NotFound(id)
	}
	return c, err
}

func (s *Service) GetByDNI(ctx context.Context, dni string) (Customer, error) {
	c, err := s.repo.GetByDNI(ctx, strings.TrimSpace(dni), false)
	if errors.Is(err, shared.ErrNotFound) {
		return Customer{}, shared.Errorf(shared.ErrNotFound, "CUSTOMER_NOT_FOUND", "no customer with dni %s", dni)
	}
	return c, err
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]Customer, shared.Pagination, error) {
	filters.Page, filters.Limit = shared.NormalizePage(filters.Page, filters.Limit)
	items, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return items, shared.NewPagination(filters.Page, filters.Limit, total), nil
}

func (s *Service) Create(ctx context.Context, req CreateCustomerRequest, actor *uuid.UUID) (Customer, error) {
	now := s.clock.Now()
	c := Customer{
		ID:        uuid.New(),
		DNI:       strings.TrimSpace(req.DNI),
		FirstName: s.normalizeName(req.FirstName),
		LastName:  s.normalizeName(req.LastName),
		Email:     normalizeEmail(req.Email),
		Phone:     trimmed(req.Phone),
		Notes:     req.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if !dniPattern.MatchString(c.DNI) {
		return Customer{}, shared.NewError(shared.ErrInvalidArgument, "INVALID_DNI", "dni must contain 8 digits")
	}
	if c.FirstName == "" || c.LastName == "" {
		return Customer{}, shared.NewError(shared.ErrInvalidArgument, "CUSTOMER_DATA_REQUIRED", "first and last name are required")
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, c); err != nil {
			if errors.Is(err, shared.ErrConflict) {
				return errDNIExists
			}
			return err
		}
		return s.record(ctx, c, "CREATE", actor)
	})
	if err != nil {
		return Customer{}, err
	}
	return c, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateCustomerRequest, actor *uuid.UUID) (Customer, error) {
	updates := make(map[string]any)
	if req.DNI != nil {
		dni := strings.TrimSpace(*req.DNI)
		if !dniPattern.MatchString(dni) {
			return Customer{}, shared.NewError(shared.ErrInvalidArgument, "INVALID_DNI", "dni must contain 8 digits")
		}
		updates["dni"] = dni
	}
	if req.FirstName != nil {
		updates["first_name"] = s.normalizeName(*req.FirstName)
	}
	if req.LastName != nil {
		updates["last_name"] = s.normalizeName(*req.LastName)
	}
	if req.Email != nil {
		updates["email"] = normalizeEmail(req.Email)
	}
	if req.Phone != nil {
		updates["phone"] = trimmed(req.Phone)
	}
	if req.Notes != nil {
		updates["notes"] = req.Notes
	}

	var out Customer
	err := s.repo.WithTx(ctx, func(ctx context.Context) error {
		existing, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		if len(updates) == 0 {
			out = existing
			return nil
		}
		updates["updated_at"] = s.clock.Now()
		if err := s.repo.Update(ctx, id, updates); err != nil {
			if errors.Is(err, shared.ErrConflict) {
				return errDNIExists
			}
			return err
		}
		if out, err = s.Get(ctx, id); err != nil {
			return err
		}
		return s.record(ctx, out, "UPDATE", actor)
	})
	return out, err
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID, actor *uuid.UUID) error {
	return s.repo.WithTx(ctx, func(ctx context.Context) error {
		c, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, id); err != nil {
			if errors.Is(err, shared.ErrConflict) {
				return shared.NewError(shared.ErrConflict, "CUSTOMER_DELETE_CONSTRAINT", "customer is referenced by sales or reservations")
			}
			return err
		}
		return s.record(ctx, c, "DELETE", actor)
	})
}

// UpsertByDNI finds the customer with d.DNI, creating it when absent, and
// overwrites its contact fields with d. It joins the caller's transaction.
func (s *Service) UpsertByDNI(ctx context.Context, d Data, actor *uuid.UUID) (Customer, error) {
	d.DNI = strings.TrimSpace(d.DNI)
	d.FirstName = s.normalizeName(d.FirstName)
	d.LastName = s.normalizeName(d.LastName)
	d.Email = strings.ToLower(strings.TrimSpace(d.Email))
	d.Phone = strings.TrimSpace(d.Phone)
	if d.DNI == "" || d.FirstName == "" || d.LastName == "" || d.Email == "" || d.Phone == "" {
		return Customer{}, shared.NewError(shared.ErrInvalidArgument, "CUSTOMER_DATA_REQUIRED", "customer dni, names, email and phone are required")
	}
	if !dniPattern.MatchString(d.DNI) {
		return Customer{}, shared.NewError(shared.ErrInvalidArgument, "INVALID_DNI", "dni must contain 8 digits")
	}

	var out Customer
	err := s.repo.WithTx(ctx, func(ctx context.Context) error {
		now := s.clock.Now()
		existing, err := s.repo.GetByDNI(ctx, d.DNI, true)
		switch {
		case errors.Is(err, shared.ErrNotFound):
			out = Customer{
				ID: uuid.New(), DNI: d.DNI, FirstName: d.FirstName, LastName: d.LastName,
				Email: &d.Email, Phone: &d.Phone, CreatedAt: now, UpdatedAt: now,
			}
			if err := s.repo.Create(ctx, out); err != nil {
				return err
			}
			return s.record(ctx, out, "CREATE", actor)
		case err != nil:
			return err
		}

		out = existing
		out.FirstName, out.LastName = d.FirstName, d.LastName
		out.Email, out.Phone = &d.Email, &d.Phone
		out.UpdatedAt = now
		if err := s.repo.Update(ctx, existing.ID, map[string]any{
			"first_name": out.FirstName,
			"last_name":  out.LastName,
			"email":      out.Email,
			"phone":      out.Phone,
			"updated_at": now,
		}); err != nil {
			return err
		}
		return s.record(ctx, out, "UPDATE", actor)
	})
	if err != nil {
		return Customer{}, err
	}
	return out, nil
}

func (s *Service) record(ctx context.Context, c Customer, action string, actor *uuid.UUID) error {
	details := map[string]any{
		"dni":       c.DNI,
		"firstName": c.FirstName,
		"lastName":  c.LastName,
	}
	if c.Email != nil {
		details["email"] = *c.Email
	}
	if c.Phone != nil {
		details["phone"] = *c.Phone
	}
	return s.audit.Record(ctx, shared.AuditRecord{
		Entity:      "Customer",
		EntityID:    c.ID.String(),
		Action:      action,
		PerformedBy: actor,
		At:          s.clock.Now(),
		Details:     details,
	})
}

// normalizeName collapses whitespace and title-cases with Spanish rules.
// Casers are stateful, so one is built per call.
func (s *Service) normalizeName(name string) string {
	return cases.Title(language.Spanish).String(strings.Join(strings.Fields(name), " "))
}

func normalizeEmail(email *string) *string {
	if email == nil {
		return nil
	}
	v := strings.ToLower(strings.TrimSpace(*email))
	if v == "" {
		return nil
	}
	return &v
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}
