package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sia-krs-api/internal/models"
)

const termColumns = "id, name, academic_year, parity, is_current, created_at, updated_at"

// TermRepository reads academic terms.
type TermRepository struct {
	db *sqlx.DB
}

// NewTermRepository instantiates a term repository.
func NewTermRepository(db *sqlx.DB) *TermRepository {
	return &TermRepository{db: db}
}

// FindByID loads a term by identifier.
func (r *TermRepository) FindByID(ctx context.Context, id string) (*models.Term, error) {
	var term models.Term
	if err := r.db.GetContext(ctx, &term, "SELECT "+termColumns+" FROM terms WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &term, nil
}

// FindCurrent returns the term flagged as current.
func (r *TermRepository) FindCurrent(ctx context.Context) (*models.Term, error) {
	var term models.Term
	if err := r.db.GetContext(ctx, &term, "SELECT "+termColumns+" FROM terms WHERE is_current = TRUE LIMIT 1"); err != nil {
		return nil, err
	}
	return &term, nil
}
