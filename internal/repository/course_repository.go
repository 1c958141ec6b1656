package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sia-krs-api/internal/models"
)

const courseColumns = "id, code, name, credits, default_semester, category, eligible_programs, created_at, updated_at"

// CourseRepository reads the course catalog.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs a course repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns the whole catalog ordered by default semester then code.
func (r *CourseRepository) List(ctx context.Context) ([]models.CourseOffering, error) {
	var courses []models.CourseOffering
	if err := r.db.SelectContext(ctx, &courses, "SELECT "+courseColumns+" FROM courses ORDER BY default_semester, code"); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// ListByParity returns courses whose default semester has the given parity. A positive semester
// narrows the result to that exact default semester.
func (r *CourseRepository) ListByParity(ctx context.Context, odd bool, semester int) ([]models.CourseOffering, error) {
	remainder := 0
	if odd {
		remainder = 1
	}
	query := "SELECT " + courseColumns + " FROM courses WHERE default_semester % 2 = $1"
	args := []interface{}{remainder}
	if semester > 0 {
		query += fmt.Sprintf(" AND default_semester = $%d", len(args)+1)
		args = append(args, semester)
	}
	query += " ORDER BY default_semester, code"

	var courses []models.CourseOffering
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, fmt.Errorf("list courses by parity: %w", err)
	}
	return courses, nil
}

// FindByIDs returns the courses matching ids. Unknown IDs are silently absent.
func (r *CourseRepository) FindByIDs(ctx context.Context, ids []string) ([]models.CourseOffering, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var courses []models.CourseOffering
	if err := r.db.SelectContext(ctx, &courses, "SELECT "+courseColumns+" FROM courses WHERE id = ANY($1)", pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find courses: %w", err)
	}
	return courses, nil
}
