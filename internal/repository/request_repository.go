package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sigpae-api/internal/models"
	"github.com/noah-isme/sigpae-api/internal/workflow"
)

const requestColumns = `id, variant, status, version, data_inicial, data_final, category, details,
       created_by, created_at, rastro_escola_id, rastro_dre_id, rastro_lote_id, rastro_terceirizada_id`

// maxRequestPage bounds one read, report exports included.
const maxRequestPage = 5000

// RequestRepository persists workflow requests.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository constructs the repository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// GetByID fetches a request by identifier.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*models.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = $1`
	var req models.Request
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// List returns requests matching the filter ordered by event date.
func (r *RequestRepository) List(ctx context.Context, filter models.RequestFilter) ([]models.Request, error) {
	where, args := buildRequestConditions(filter)

	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + requestColumns + ` FROM requests`)
	builder.WriteString(where)
	builder.WriteString(" ORDER BY data_inicial ASC, created_at ASC")

	limit := filter.Limit
	switch {
	case limit <= 0:
		limit = 50
	case limit > maxRequestPage:
		limit = maxRequestPage
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var requests []models.Request
	if err := r.db.SelectContext(ctx, &requests, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return requests, nil
}

// Count returns how many requests match the filter, ignoring pagination.
func (r *RequestRepository) Count(ctx context.Context, filter models.RequestFilter) (int, error) {
	where, args := buildRequestConditions(filter)
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM requests`+where, args...); err != nil {
		return 0, fmt.Errorf("count requests: %w", err)
	}
	return total, nil
}

// ListActiveOverlapping returns other requests of the same variant, institution
// and category whose window intersects req. Status filtering is left to the guard.
func (r *RequestRepository) ListActiveOverlapping(ctx context.Context, req models.Request) ([]models.Request, error) {
	return listActiveOverlapping(ctx, r.db, req)
}

func listActiveOverlapping(ctx context.Context, q sqlx.QueryerContext, req models.Request) ([]models.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests
	WHERE variant = $1 AND category = $2 AND id <> $3
	  AND COALESCE(rastro_escola_id, rastro_dre_id, '') = $4
	  AND data_inicial <= $5 AND COALESCE(data_final, data_inicial) >= $6`
	var requests []models.Request
	if err := sqlx.SelectContext(ctx, q, &requests, query,
		req.Variant, req.Category, req.ID, req.Institution(), req.LastDate(), req.EventDate()); err != nil {
		return nil, fmt.Errorf("list overlapping requests: %w", err)
	}
	return requests, nil
}

func buildRequestConditions(filter models.RequestFilter) (string, []interface{}) {
	args := make([]interface{}, 0, 8)
	conditions := make([]string, 0, 8)
	if filter.Variant != "" {
		args = append(args, filter.Variant)
		conditions = append(conditions, fmt.Sprintf("variant = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		args = append(args, pq.Array(filter.Status))
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if filter.EscolaID != "" {
		args = append(args, filter.EscolaID)
		conditions = append(conditions, fmt.Sprintf("rastro_escola_id = $%d", len(args)))
	}
	if filter.DREID != "" {
		args = append(args, filter.DREID)
		conditions = append(conditions, fmt.Sprintf("rastro_dre_id = $%d", len(args)))
	}
	if filter.LoteID != "" {
		args = append(args, filter.LoteID)
		conditions = append(conditions, fmt.Sprintf("rastro_lote_id = $%d", len(args)))
	}
	if filter.TerceirizadaID != "" {
		args = append(args, filter.TerceirizadaID)
		conditions = append(conditions, fmt.Sprintf("rastro_terceirizada_id = $%d", len(args)))
	}
	if filter.CreatedBy != "" {
		args = append(args, filter.CreatedBy)
		conditions = append(conditions, fmt.Sprintf("created_by = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("data_inicial >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("data_inicial <= $%d", len(args)))
	}
	if filter.FinalBefore != nil {
		args = append(args, *filter.FinalBefore)
		conditions = append(conditions, fmt.Sprintf("COALESCE(data_final, data_inicial) < $%d", len(args)))
	}
	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func insertRequest(ctx context.Context, q sqlx.ExtContext, req *models.Request) error {
	const query = `INSERT INTO requests
	(id, variant, status, version, data_inicial, data_final, category, details, created_by, created_at,
	 rastro_escola_id, rastro_dre_id, rastro_lote_id, rastro_terceirizada_id)
	VALUES (:id, :variant, :status, :version, :data_inicial, :data_final, :category, :details, :created_by, :created_at,
	 :rastro_escola_id, :rastro_dre_id, :rastro_lote_id, :rastro_terceirizada_id)`
	if _, err := sqlx.NamedExecContext(ctx, q, query, req); err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return nil
}

func compareAndSetStatus(ctx context.Context, q sqlx.ExtContext, id string, version int, from, to workflow.State) error {
	const query = `UPDATE requests SET status = $1, version = version + 1
	WHERE id = $2 AND version = $3 AND status = $4`
	res, err := q.ExecContext(ctx, query, string(to), id, version, string(from))
	if err != nil {
		return fmt.Errorf("update request status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("request status rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	if err := sqlx.GetContext(ctx, q, &exists, `SELECT EXISTS(SELECT 1 FROM requests WHERE id = $1)`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return workflow.ErrRequestNotFound
		}
		return fmt.Errorf("check request existence: %w", err)
	}
	if !exists {
		return workflow.ErrRequestNotFound
	}
	return workflow.ErrStaleVersion
}
