package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sigpae-api/internal/models"
)

// CalendarRepository reads the non-instructional days maintained by the
// school calendar team. Rows without institution apply to the whole network.
type CalendarRepository struct {
	db *sqlx.DB
}

// NewCalendarRepository constructs a calendar repository.
func NewCalendarRepository(db *sqlx.DB) *CalendarRepository {
	return &CalendarRepository{db: db}
}

// IsNonInstructionalDay reports whether the institution has no classes on day.
func (r *CalendarRepository) IsNonInstructionalDay(ctx context.Context, institutionID string, day time.Time) (bool, error) {
	const query = `SELECT EXISTS(
	SELECT 1 FROM non_instructional_days
	WHERE day = $1 AND (institution_id IS NULL OR institution_id = $2))`
	var off bool
	if err := r.db.GetContext(ctx, &off, query, day.Format("2006-01-02"), institutionID); err != nil {
		return false, fmt.Errorf("check non-instructional day: %w", err)
	}
	return off, nil
}

// List returns non-instructional days matching the filter with the total count.
func (r *CalendarRepository) List(ctx context.Context, filter models.NonInstructionalDayFilter) ([]models.NonInstructionalDay, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.InstitutionID != "" {
		where = append(where, fmt.Sprintf("(institution_id IS NULL OR institution_id = $%d)", len(args)+1))
		args = append(args, filter.InstitutionID)
	}
	if filter.From != nil {
		where = append(where, fmt.Sprintf("day >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		where = append(where, fmt.Sprintf("day <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 366 {
		size = 100
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM non_instructional_days WHERE "+whereClause, args...); err != nil {
		return nil, 0, fmt.Errorf("count non-instructional days: %w", err)
	}

	query := fmt.Sprintf(`SELECT id, institution_id, day, reason, created_at FROM non_instructional_days
	WHERE %s ORDER BY day ASC LIMIT %d OFFSET %d`, whereClause, size, (page-1)*size)
	days := make([]models.NonInstructionalDay, 0)
	if err := r.db.SelectContext(ctx, &days, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list non-instructional days: %w", err)
	}
	return days, total, nil
}
