package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sigpae-api/internal/models"
	"github.com/noah-isme/sigpae-api/internal/workflow"
)

const auditColumns = `id, request_uuid, variant, seq, event, from_status, to_status, actor_id, actor_role,
       justification, answer, created_at, prev_hash, hash`

const uniqueViolation = "23505"

// AuditRepository is the append-only postgres audit log.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append stores an already sealed entry.
func (r *AuditRepository) Append(ctx context.Context, entry *models.AuditEntry) error {
	return appendAudit(ctx, r.db, entry)
}

// History returns every entry of a request ordered by time then sequence.
func (r *AuditRepository) History(ctx context.Context, requestID string) ([]models.AuditEntry, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_entries WHERE request_uuid = $1 ORDER BY created_at ASC, seq ASC`
	entries := make([]models.AuditEntry, 0)
	if err := r.db.SelectContext(ctx, &entries, query, requestID); err != nil {
		return nil, fmt.Errorf("list audit history: %w", err)
	}
	return entries, nil
}

// LastEntry returns the most recent entry or nil when the request has no history.
func (r *AuditRepository) LastEntry(ctx context.Context, requestID string) (*models.AuditEntry, error) {
	return lastAuditEntry(ctx, r.db, requestID)
}

var _ workflow.AuditLog = (*AuditRepository)(nil)

func appendAudit(ctx context.Context, q sqlx.ExtContext, entry *models.AuditEntry) error {
	const query = `INSERT INTO audit_entries
	(id, request_uuid, variant, seq, event, from_status, to_status, actor_id, actor_role,
	 justification, answer, created_at, prev_hash, hash)
	VALUES (:id, :request_uuid, :variant, :seq, :event, :from_status, :to_status, :actor_id, :actor_role,
	 :justification, :answer, :created_at, :prev_hash, :hash)`
	if _, err := sqlx.NamedExecContext(ctx, q, query, entry); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return workflow.ErrStaleVersion
		}
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func lastAuditEntry(ctx context.Context, q sqlx.QueryerContext, requestID string) (*models.AuditEntry, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_entries WHERE request_uuid = $1 ORDER BY seq DESC LIMIT 1`
	var entry models.AuditEntry
	if err := sqlx.GetContext(ctx, q, &entry, query, requestID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("last audit entry: %w", err)
	}
	return &entry, nil
}
