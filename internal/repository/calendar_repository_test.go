package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sigpae-api/internal/models"
)

func TestCalendarRepositoryIsNonInstructionalDay(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCalendarRepository(db)

	day := time.Date(2024, 2, 13, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(")).
		WithArgs("2024-02-13", "escola-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	off, err := repo.IsNonInstructionalDay(context.Background(), "escola-1", day)
	require.NoError(t, err)
	assert.True(t, off)
}

func TestCalendarRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCalendarRepository(db)

	from := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM non_instructional_days WHERE 1=1 AND (institution_id IS NULL OR institution_id = $1) AND day >= $2")).
		WithArgs("escola-1", from).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY day ASC LIMIT 100 OFFSET 0")).
		WithArgs("escola-1", from).
		WillReturnRows(sqlmock.NewRows([]string{"id", "institution_id", "day", "reason", "created_at"}).
			AddRow("d1", nil, time.Date(2024, 2, 13, 0, 0, 0, 0, time.UTC), "Carnaval", from))

	days, total, err := repo.List(context.Background(), models.NonInstructionalDayFilter{InstitutionID: "escola-1", From: &from})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, days, 1)
	assert.Nil(t, days[0].InstitutionID)
	assert.Equal(t, "Carnaval", days[0].Reason)
}
