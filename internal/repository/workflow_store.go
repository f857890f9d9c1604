package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sigpae-api/internal/models"
	"github.com/noah-isme/sigpae-api/internal/workflow"
)

// WorkflowStore runs executor units of work inside postgres transactions.
type WorkflowStore struct {
	db       *sqlx.DB
	requests *RequestRepository
}

// NewWorkflowStore constructs the store.
func NewWorkflowStore(db *sqlx.DB) *WorkflowStore {
	return &WorkflowStore{db: db, requests: NewRequestRepository(db)}
}

// InTx commits when fn succeeds and rolls back otherwise.
func (s *WorkflowStore) InTx(ctx context.Context, fn func(tx workflow.Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin workflow transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&sqlTx{tx: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit workflow transaction: %w", err)
	}
	return nil
}

// ListActiveOverlapping delegates to the request repository.
func (s *WorkflowStore) ListActiveOverlapping(ctx context.Context, req models.Request) ([]models.Request, error) {
	return s.requests.ListActiveOverlapping(ctx, req)
}

type sqlTx struct {
	tx *sqlx.Tx
}

func (t *sqlTx) InsertRequest(ctx context.Context, req *models.Request) error {
	return insertRequest(ctx, t.tx, req)
}

func (t *sqlTx) CompareAndSetStatus(ctx context.Context, id string, version int, from, to workflow.State) error {
	return compareAndSetStatus(ctx, t.tx, id, version, from, to)
}

func (t *sqlTx) LastEntry(ctx context.Context, requestID string) (*models.AuditEntry, error) {
	return lastAuditEntry(ctx, t.tx, requestID)
}

func (t *sqlTx) AppendAudit(ctx context.Context, entry *models.AuditEntry) error {
	return appendAudit(ctx, t.tx, entry)
}

// LockScope takes a transaction-scoped advisory lock on key.
func (t *sqlTx) LockScope(ctx context.Context, key string) error {
	if _, err := t.tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return fmt.Errorf("lock scope %q: %w", key, err)
	}
	return nil
}

func (t *sqlTx) ListActiveOverlapping(ctx context.Context, req models.Request) ([]models.Request, error) {
	return listActiveOverlapping(ctx, t.tx, req)
}

var _ workflow.Store = (*WorkflowStore)(nil)
