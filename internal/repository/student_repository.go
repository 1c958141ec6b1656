package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sia-krs-api/internal/models"
)

// studentContextSelect loads the directory view of students with the per-term exchange flag bound to $1.
const studentContextSelect = `SELECT s.id, s.nim, s.full_name, s.program_id, s.entry_year, s.active,
        EXISTS (SELECT 1 FROM exchange_participants ep WHERE ep.student_id = s.id AND ep.term_id = $1) AS is_exchange
        FROM students s`

// StudentRepository reads the student directory for enrollment decisions.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindContext loads one student's enrollment context for a term.
func (r *StudentRepository) FindContext(ctx context.Context, studentID, termID string) (*models.StudentEnrollmentContext, error) {
	var student models.StudentEnrollmentContext
	if err := r.db.GetContext(ctx, &student, studentContextSelect+" WHERE s.id = $2", termID, studentID); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindContexts loads enrollment contexts for ids. Unknown IDs are silently absent.
func (r *StudentRepository) FindContexts(ctx context.Context, ids []string, termID string) ([]models.StudentEnrollmentContext, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var students []models.StudentEnrollmentContext
	if err := r.db.SelectContext(ctx, &students, studentContextSelect+" WHERE s.id = ANY($2) ORDER BY s.nim", termID, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find students: %w", err)
	}
	return students, nil
}

// ListUnenrolled returns active students without any KRS record in the term.
func (r *StudentRepository) ListUnenrolled(ctx context.Context, termID string) ([]models.StudentEnrollmentContext, error) {
	query := studentContextSelect + `
        WHERE s.active = TRUE
        AND NOT EXISTS (SELECT 1 FROM krs_records k WHERE k.student_id = s.id AND k.term_id = $1)
        ORDER BY s.nim`
	var students []models.StudentEnrollmentContext
	if err := r.db.SelectContext(ctx, &students, query, termID); err != nil {
		return nil, fmt.Errorf("list unenrolled students: %w", err)
	}
	return students, nil
}
