package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sigpae-api/internal/models"
)

// ErrInstitutionNotFound is returned when the escola is not registered.
var ErrInstitutionNotFound = errors.New("institution not found")

// InstitutionRepository reads the escola -> DRE/lote -> terceirizada graph.
type InstitutionRepository struct {
	db *sqlx.DB
}

// NewInstitutionRepository constructs the repository.
func NewInstitutionRepository(db *sqlx.DB) *InstitutionRepository {
	return &InstitutionRepository{db: db}
}

// TrailForEscola snapshots the current institutional chain of an escola.
func (r *InstitutionRepository) TrailForEscola(ctx context.Context, escolaID string) (*models.Trail, error) {
	const query = `SELECT e.id AS rastro_escola_id, e.dre_id AS rastro_dre_id, e.lote_id AS rastro_lote_id,
       l.terceirizada_id AS rastro_terceirizada_id
	FROM escolas e
	LEFT JOIN lotes l ON l.id = e.lote_id
	WHERE e.id = $1`
	var trail models.Trail
	if err := r.db.GetContext(ctx, &trail, query, escolaID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInstitutionNotFound
		}
		return nil, fmt.Errorf("resolve escola trail: %w", err)
	}
	return &trail, nil
}

// TrailForDRE snapshots a DRE-initiated request; lote and terceirizada stay empty
// because a DRE spans several lotes.
func (r *InstitutionRepository) TrailForDRE(ctx context.Context, dreID string) (*models.Trail, error) {
	const query = `SELECT id FROM dres WHERE id = $1`
	var id string
	if err := r.db.GetContext(ctx, &id, query, dreID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInstitutionNotFound
		}
		return nil, fmt.Errorf("resolve dre trail: %w", err)
	}
	return &models.Trail{DREID: &id}, nil
}
