package memstore

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/libreria-lumen/backoffice/internal/audit"
	"github.com/libreria-lumen/backoffice/internal/reports"
	"github.com/libreria-lumen/backoffice/internal/shared"
)

// AuditSink implements shared.AuditSink.
type AuditSink struct{ s *Store }

// Audit returns the audit sink. Wrap it in shared.NewAuditor to apply a
// durability policy.
func (s *Store) Audit() *AuditSink { return &AuditSink{s: s} }

func (a *AuditSink) Record(ctx context.Context, rec shared.AuditRecord) error {
	a.s.mu.Lock()
	failure := a.s.auditErr
	a.s.mu.Unlock()
	if failure != nil {
		return failure
	}
	if rec.Action == "" || rec.Entity == "" || rec.EntityID == "" {
		return errors.New("audit record requires entity/entity_id/action")
	}
	var seq int64
	a.s.write(ctx, func() {
		a.s.auditSeq++
		seq = a.s.auditSeq
		a.s.audit = append(a.s.audit, auditEntry{seq: seq, rec: rec})
	}, func() {
		for i := range a.s.audit {
			if a.s.audit[i].seq == seq {
				a.s.audit = append(a.s.audit[:i], a.s.audit[i+1:]...)
				return
			}
		}
	})
	return nil
}

// AuditTimeline implements audit.Repository over the recorded trail.
type AuditTimeline struct{ s *Store }

// Timeline returns the audit read adapter.
func (s *Store) Timeline() *AuditTimeline { return &AuditTimeline{s: s} }

func (t *AuditTimeline) Window(ctx context.Context, f audit.TimelineFilters, offset, limit int) ([]audit.TimelineRow, error) {
	rows, _ := t.All(ctx, f)
	return window(rows, offset, limit), nil
}

func (t *AuditTimeline) All(_ context.Context, f audit.TimelineFilters) ([]audit.TimelineRow, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var out []audit.TimelineRow
	for _, e := range t.s.audit {
		rec := e.rec
		if !matchesAudit(rec, f) {
			continue
		}
		out = append(out, audit.TimelineRow{
			ID: uuid.New(), At: rec.At, Actor: rec.PerformedBy, Action: rec.Action,
			Entity: rec.Entity, EntityID: rec.EntityID, Details: rec.Details,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.After(out[j].At) })
	return out, nil
}

func matchesAudit(rec shared.AuditRecord, f audit.TimelineFilters) bool {
	switch {
	case !f.From.IsZero() && rec.At.Before(f.From):
		return false
	case !f.To.IsZero() && !rec.At.Before(f.To):
		return false
	case f.Actor != nil && (rec.PerformedBy == nil || *rec.PerformedBy != *f.Actor):
		return false
	case f.Entity != "" && rec.Entity != f.Entity:
		return false
	case f.EntityID != "" && rec.EntityID != f.EntityID:
		return false
	case f.Action != "" && rec.Action != f.Action:
		return false
	}
	return true
}

// Idempotency implements shared.IdempotencyClaimer.
type Idempotency struct{ s *Store }

// Idempotency returns the idempotency adapter.
func (s *Store) Idempotency() *Idempotency { return &Idempotency{s: s} }

func (i *Idempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	if key == "" || module == "" {
		return errors.New("idempotency key and module required")
	}
	k := module + ":" + key
	i.s.lock(ctx, "idempotency:"+k)
	i.s.mu.Lock()
	_, taken := i.s.idempotency[k]
	i.s.mu.Unlock()
	if taken {
		return shared.ErrDuplicateRequest
	}
	i.s.write(ctx, func() { i.s.idempotency[k] = time.Now().UTC() }, func() { delete(i.s.idempotency, k) })
	return nil
}

// Reports implements reports.Repository by folding stored sales.
type Reports struct{ s *Store }

// Reports returns the reports adapter.
func (s *Store) Reports() *Reports { return &Reports{s: s} }

func (r *Reports) DailyTotals(ctx context.Context, start, end time.Time) ([]reports.DailyTotal, error) {
	list, err := r.s.Sales().ListSales(ctx, start, end)
	if err != nil {
		return nil, err
	}
	out := []reports.DailyTotal{}
	for _, sale := range list {
		d := sale.SaleDate.UTC()
		day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
		if n := len(out); n == 0 || !out[n-1].Day.Equal(day) {
			out = append(out, reports.DailyTotal{Day: day})
		}
		cur := &out[len(out)-1]
		cur.Sales++
		cur.TotalAmount = cur.TotalAmount.Add(sale.TotalAmount)
		cur.TaxAmount = cur.TaxAmount.Add(sale.TaxAmount)
		cur.DiscountAmount = cur.DiscountAmount.Add(sale.DiscountAmount)
	}
	return out, nil
}

func (r *Reports) WeeklyTotals(ctx context.Context, start, end time.Time) ([]reports.WeeklyTotal, error) {
	list, err := r.s.Sales().ListSales(ctx, start, end)
	if err != nil {
		return nil, err
	}
	out := []reports.WeeklyTotal{}
	for _, sale := range list {
		ws := reports.WeekStart(sale.SaleDate)
		if n := len(out); n == 0 || !out[n-1].WeekStart.Equal(ws) {
			out = append(out, reports.WeeklyTotal{WeekStart: ws, WeekEnd: ws.AddDate(0, 0, 6)})
		}
		cur := &out[len(out)-1]
		cur.Sales++
		cur.TotalAmount = cur.TotalAmount.Add(sale.TotalAmount)
		cur.TaxAmount = cur.TaxAmount.Add(sale.TaxAmount)
		cur.DiscountAmount = cur.DiscountAmount.Add(sale.DiscountAmount)
	}
	return out, nil
}
