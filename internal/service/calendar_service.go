package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sigpae-api/internal/models"
	appErrors "github.com/noah-isme/sigpae-api/pkg/errors"
)

type calendarRepository interface {
	List(ctx context.Context, filter models.NonInstructionalDayFilter) ([]models.NonInstructionalDay, int, error)
}

// CalendarService exposes the non-instructional days that feed business-day counting.
type CalendarService struct {
	repo   calendarRepository
	logger *zap.Logger
}

// NewCalendarService constructs the service.
func NewCalendarService(repo calendarRepository, logger *zap.Logger) *CalendarService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalendarService{repo: repo, logger: logger}
}

// CalendarListRequest describes filters for listing non-instructional days.
type CalendarListRequest struct {
	InstitutionID string
	From          *time.Time
	To            *time.Time
	Page          int
	PageSize      int
}

// List returns the days visible to the caller. School users only see their
// own institution plus network-wide days.
func (s *CalendarService) List(ctx context.Context, req CalendarListRequest, claims *models.JWTClaims) ([]models.NonInstructionalDay, *models.Pagination, error) {
	if claims == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	if req.From != nil && req.To != nil && req.To.Before(*req.From) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "to must be on or after from")
	}
	filter := models.NonInstructionalDayFilter{
		InstitutionID: req.InstitutionID,
		From:          req.From,
		To:            req.To,
		Page:          req.Page,
		PageSize:      req.PageSize,
	}
	if claims.Role == models.RoleEscola {
		filter.InstitutionID = claims.InstitutionID
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 366 {
		filter.PageSize = 100
	}
	days, total, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("list non-instructional days", zap.Error(err))
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list calendar")
	}
	return days, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}
