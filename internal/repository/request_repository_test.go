package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sigpae-api/internal/models"
	"github.com/noah-isme/sigpae-api/internal/workflow"
)

var requestRowColumns = []string{"id", "variant", "status", "version", "data_inicial", "data_final", "category", "details",
	"created_by", "created_at", "rastro_escola_id", "rastro_dre_id", "rastro_lote_id", "rastro_terceirizada_id"}

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	cleanup := func() {
		_ = sqlxDB.Close()
	}
	return sqlxDB, mock, cleanup
}

func TestRequestRepositoryGetByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	created := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	event := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(requestRowColumns).
		AddRow("req-1", "inclusao_alimentacao", "rascunho", 1, event, nil, "passeio", []byte(`{"kits":2}`),
			"user-1", created, "escola-1", "dre-1", "lote-1", "terc-1")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, variant, status")).
		WithArgs("req-1").
		WillReturnRows(rows)

	req, err := repo.GetByID(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, "rascunho", req.Status)
	assert.Equal(t, 1, req.Version)
	require.NotNil(t, req.EscolaID)
	assert.Equal(t, "escola-1", *req.EscolaID)
	assert.Nil(t, req.DataFinal)
	assert.JSONEq(t, `{"kits":2}`, string(req.Details))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryGetByIDNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, variant, status")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestRequestRepositoryListAppliesFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM requests WHERE variant = \$1 AND status = ANY\(\$2\) AND rastro_escola_id = \$3 AND data_inicial >= \$4 ORDER BY data_inicial ASC, created_at ASC LIMIT 50 OFFSET 0`).
		WithArgs("inclusao_alimentacao", sqlmock.AnyArg(), "escola-1", from).
		WillReturnRows(sqlmock.NewRows(requestRowColumns))

	items, err := repo.List(context.Background(), models.RequestFilter{
		Variant:  "inclusao_alimentacao",
		Status:   []string{"a_validar", "validado"},
		EscolaID: "escola-1",
		From:     &from,
	})
	require.NoError(t, err)
	assert.Empty(t, items)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryCount(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM requests WHERE rastro_dre_id = $1")).
		WithArgs("dre-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	total, err := repo.Count(context.Background(), models.RequestFilter{DREID: "dre-1"})
	require.NoError(t, err)
	assert.Equal(t, 7, total)
}

func TestRequestRepositoryListActiveOverlapping(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	escola := "escola-1"
	start := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC)
	req := models.Request{ID: "req-1", Variant: "inversao_cardapio", Category: "troca", DataInicial: start, DataFinal: &end,
		Trail: models.Trail{EscolaID: &escola}}

	rows := sqlmock.NewRows(requestRowColumns).
		AddRow("req-2", "inversao_cardapio", "a_validar", 2, start, nil, "troca", nil,
			"user-2", start, escola, nil, nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE variant = $1 AND category = $2 AND id <> $3")).
		WithArgs("inversao_cardapio", "troca", "req-1", "escola-1", end, start).
		WillReturnRows(rows)

	items, err := repo.ListActiveOverlapping(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "req-2", items[0].ID)
}

func TestCompareAndSetStatus(t *testing.T) {
	t.Run("updates current version", func(t *testing.T) {
		db, mock, cleanup := newRepoMock(t)
		defer cleanup()

		mock.ExpectExec(regexp.QuoteMeta("UPDATE requests SET status = $1, version = version + 1")).
			WithArgs("a_validar", "req-1", 1, "rascunho").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := compareAndSetStatus(context.Background(), db, "req-1", 1, "rascunho", "a_validar")
		require.NoError(t, err)
	})

	t.Run("stale version", func(t *testing.T) {
		db, mock, cleanup := newRepoMock(t)
		defer cleanup()

		mock.ExpectExec(regexp.QuoteMeta("UPDATE requests SET status")).
			WithArgs("a_validar", "req-1", 1, "rascunho").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM requests WHERE id = $1)")).
			WithArgs("req-1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		err := compareAndSetStatus(context.Background(), db, "req-1", 1, "rascunho", "a_validar")
		assert.ErrorIs(t, err, workflow.ErrStaleVersion)
	})

	t.Run("missing request", func(t *testing.T) {
		db, mock, cleanup := newRepoMock(t)
		defer cleanup()

		mock.ExpectExec(regexp.QuoteMeta("UPDATE requests SET status")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		err := compareAndSetStatus(context.Background(), db, "req-9", 1, "rascunho", "a_validar")
		assert.ErrorIs(t, err, workflow.ErrRequestNotFound)
	})

	t.Run("driver failure", func(t *testing.T) {
		db, mock, cleanup := newRepoMock(t)
		defer cleanup()

		mock.ExpectExec(regexp.QuoteMeta("UPDATE requests SET status")).
			WillReturnError(errors.New("connection reset"))

		err := compareAndSetStatus(context.Background(), db, "req-1", 1, "rascunho", "a_validar")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "update request status")
	})
}
