package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sigpae-api/internal/models"
	appErrors "github.com/noah-isme/sigpae-api/pkg/errors"
)

type calendarRepoStub struct {
	filter models.NonInstructionalDayFilter
	days   []models.NonInstructionalDay
	err    error
}

func (s *calendarRepoStub) List(ctx context.Context, filter models.NonInstructionalDayFilter) ([]models.NonInstructionalDay, int, error) {
	s.filter = filter
	if s.err != nil {
		return nil, 0, s.err
	}
	return s.days, len(s.days), nil
}

func TestCalendarServiceListScopesEscola(t *testing.T) {
	repo := &calendarRepoStub{days: []models.NonInstructionalDay{{ID: "d1", Day: ymd(2024, 4, 21), Reason: "Tiradentes"}}}
	svc := NewCalendarService(repo, nil)

	days, pagination, err := svc.List(context.Background(), CalendarListRequest{InstitutionID: "escola-9", PageSize: 1000}, escolaClaims)
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, "escola-1", repo.filter.InstitutionID)
	assert.Equal(t, 1, repo.filter.Page)
	assert.Equal(t, 100, repo.filter.PageSize)
	assert.Equal(t, &models.Pagination{Page: 1, PageSize: 100, TotalCount: 1}, pagination)
}

func TestCalendarServiceListKeepsFilterForNetworkRoles(t *testing.T) {
	repo := &calendarRepoStub{}
	svc := NewCalendarService(repo, nil)
	from, to := ymd(2024, 1, 1), ymd(2024, 12, 31)

	_, _, err := svc.List(context.Background(), CalendarListRequest{InstitutionID: "escola-9", From: &from, To: &to, Page: 2, PageSize: 366}, codaeClaims)
	require.NoError(t, err)
	assert.Equal(t, "escola-9", repo.filter.InstitutionID)
	assert.Equal(t, 2, repo.filter.Page)
	assert.Equal(t, 366, repo.filter.PageSize)
}

func TestCalendarServiceListErrors(t *testing.T) {
	svc := NewCalendarService(&calendarRepoStub{}, nil)
	_, _, err := svc.List(context.Background(), CalendarListRequest{}, nil)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	from, to := ymd(2024, 5, 1), ymd(2024, 4, 1)
	_, _, err = svc.List(context.Background(), CalendarListRequest{From: &from, To: &to}, codaeClaims)
	requireAppErrorCode(t, err, appErrors.ErrValidation.Code)

	svc = NewCalendarService(&calendarRepoStub{err: assert.AnError}, nil)
	_, _, err = svc.List(context.Background(), CalendarListRequest{}, codaeClaims)
	requireAppErrorCode(t, err, appErrors.ErrInternal.Code)
}
