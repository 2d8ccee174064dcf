package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/libreria-lumen/backoffice/internal/platform/db"
)

// AuditRecord is one business transition as seen by the audit trail.
type AuditRecord struct {
	Entity      string
	EntityID    string
	Action      string
	PerformedBy *uuid.UUID
	Details     map[string]any
	At          time.Time
}

// AuditSink receives audit records. Implementations must honour a transaction
// carried in ctx so a record disappears with a rolled back operation.
type AuditSink interface {
	Record(ctx context.Context, rec AuditRecord) error
}

// AuditLogger writes records into audit_logs.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

const insertAuditSQL = `INSERT INTO audit_logs (entity_name, entity_id, action, performed_by, performed_at, details)
VALUES ($1, $2, $3, $4, COALESCE($5, NOW()), $6)`

// Record persists the entry. Inside a transaction the insert runs under a
// savepoint so a failed write leaves the outer transaction usable.
func (l *AuditLogger) Record(ctx context.Context, rec AuditRecord) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if rec.Action == "" || rec.Entity == "" || rec.EntityID == "" {
		return errors.New("audit record requires entity/entity_id/action")
	}
	details, err := json.Marshal(rec.Details)
	if err != nil {
		return err
	}
	var at *time.Time
	if !rec.At.IsZero() {
		at = &rec.At
	}

	tx := db.TxFromContext(ctx)
	if tx == nil {
		_, err = l.pool.Exec(ctx, insertAuditSQL, rec.Entity, rec.EntityID, rec.Action, rec.PerformedBy, at, details)
		return err
	}

	sp, err := tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("audit savepoint: %w", err)
	}
	if _, err := sp.Exec(ctx, insertAuditSQL, rec.Entity, rec.EntityID, rec.Action, rec.PerformedBy, at, details); err != nil {
		_ = sp.Rollback(ctx)
		return err
	}
	return sp.Commit(ctx)
}

// Auditor applies the durability policy on top of a sink. In strict mode a
// failed write is returned and aborts the caller's unit of work; otherwise it
// is logged and dropped.
type Auditor struct {
	sink   AuditSink
	strict bool
	logger *slog.Logger
}

// NewAuditor wraps sink with the given policy.
func NewAuditor(sink AuditSink, strict bool, logger *slog.Logger) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{sink: sink, strict: strict, logger: logger}
}

// Record forwards rec to the sink.
func (a *Auditor) Record(ctx context.Context, rec AuditRecord) error {
	if rec.At.IsZero() {
		rec.At = time.Now().UTC()
	}
	err := a.sink.Record(ctx, rec)
	if err == nil {
		return nil
	}
	if a.strict {
		return fmt.Errorf("audit %s/%s %s: %w", rec.Entity, rec.EntityID, rec.Action, err)
	}
	a.logger.Warn("audit record dropped",
		slog.String("entity", rec.Entity),
		slog.String("entity_id", rec.EntityID),
		slog.String("action", rec.Action),
		slog.Any("error", err))
	return nil
}
