package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sia-krs-api/internal/models"
)

const recordColumns = "id, student_id, term_id, course_id, status, reviewed_by, reviewed_at, created_at, updated_at"

// EnrollmentRepository persists KRS records. It is the only writer of krs_records.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// FindByID returns a record by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.EnrollmentRecord, error) {
	query := "SELECT " + recordColumns + " FROM krs_records WHERE id = $1"
	var record models.EnrollmentRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// ListByStudentTerm returns the student's records for a term joined with course data.
func (r *EnrollmentRepository) ListByStudentTerm(ctx context.Context, studentID, termID string) ([]models.EnrollmentRecordDetail, error) {
	const query = `SELECT k.id, k.student_id, k.term_id, k.course_id, k.status, k.reviewed_by, k.reviewed_at, k.created_at, k.updated_at,
        c.code AS course_code, c.name AS course_name, c.credits, c.category AS course_category
        FROM krs_records k
        JOIN courses c ON c.id = k.course_id
        WHERE k.student_id = $1 AND k.term_id = $2
        ORDER BY c.default_semester, c.code`
	var records []models.EnrollmentRecordDetail
	if err := r.db.SelectContext(ctx, &records, query, studentID, termID); err != nil {
		return nil, fmt.Errorf("list krs records: %w", err)
	}
	return records, nil
}

// CreateDraft inserts a DRAFT record unless the student's term selection already left DRAFT.
// The check and insert run under the student's term lock, so a concurrent submit either moves the new
// draft with it or makes the insert see the term as locked. The unique index decides concurrent duplicates.
func (r *EnrollmentRepository) CreateDraft(ctx context.Context, record *models.EnrollmentRecord) (err error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	record.Status = models.EnrollmentStatusDraft
	record.CreatedAt = now
	record.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin select tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = lockStudentTerm(ctx, tx, record.StudentID, record.TermID); err != nil {
		return err
	}

	const query = `INSERT INTO krs_records (id, student_id, term_id, course_id, status, created_at, updated_at)
        SELECT $1, $2, $3, $4, $5, $6, $6
        WHERE NOT EXISTS (SELECT 1 FROM krs_records WHERE student_id = $2 AND term_id = $3 AND status <> $5)`
	res, err := tx.ExecContext(ctx, query, record.ID, record.StudentID, record.TermID, record.CourseID, record.Status, now)
	if err != nil {
		if _, ok := isUniqueViolation(err); ok {
			err = &DuplicateError{StudentID: record.StudentID, TermID: record.TermID, CourseID: record.CourseID, Err: err}
			return err
		}
		err = fmt.Errorf("create krs record: %w", err)
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		err = fmt.Errorf("create krs record: %w", err)
		return err
	}
	if affected == 0 {
		err = ErrTermLocked
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit select tx: %w", err)
	}
	return nil
}

// DeleteDraft removes a DRAFT record. The status check and delete share one transaction with the row
// locked, so a concurrent submit either wins (ErrNotDraft) or waits for the delete.
// The loaded record is returned in both cases.
func (r *EnrollmentRepository) DeleteDraft(ctx context.Context, id string) (record *models.EnrollmentRecord, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin deselect tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current models.EnrollmentRecord
	if err = tx.GetContext(ctx, &current, "SELECT "+recordColumns+" FROM krs_records WHERE id = $1 FOR UPDATE", id); err != nil {
		return nil, err
	}
	if current.Status != models.EnrollmentStatusDraft {
		err = ErrNotDraft
		return &current, err
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM krs_records WHERE id = $1", id); err != nil {
		return nil, fmt.Errorf("delete krs record: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit deselect tx: %w", err)
	}
	return &current, nil
}

// TransitionParams describes a whole-set status move for one student and term.
type TransitionParams struct {
	StudentID  string
	TermID     string
	From       models.EnrollmentStatus
	To         models.EnrollmentStatus
	ReviewedBy *string
}

// TransitionAll moves every record of the student in the term from params.From to params.To in one
// statement, under the student's term lock, and returns the IDs that moved.
func (r *EnrollmentRepository) TransitionAll(ctx context.Context, params TransitionParams) (ids []string, err error) {
	now := time.Now().UTC()
	var reviewedAt *time.Time
	if params.ReviewedBy != nil {
		reviewedAt = &now
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transition tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = lockStudentTerm(ctx, tx, params.StudentID, params.TermID); err != nil {
		return nil, err
	}

	const query = `UPDATE krs_records
        SET status = $1, reviewed_by = COALESCE($2, reviewed_by), reviewed_at = COALESCE($3, reviewed_at), updated_at = $4
        WHERE student_id = $5 AND term_id = $6 AND status = $7
        RETURNING id`
	if err = tx.SelectContext(ctx, &ids, query, params.To, params.ReviewedBy, reviewedAt, now, params.StudentID, params.TermID, params.From); err != nil {
		return nil, fmt.Errorf("transition krs records: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transition tx: %w", err)
	}
	return ids, nil
}

// lockStudentTerm takes the transaction-scoped advisory lock that serialises writers of one student's
// selection in one term. It is released on commit or rollback.
func lockStudentTerm(ctx context.Context, tx *sqlx.Tx, studentID, termID string) error {
	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1), hashtext($2))", studentID, termID); err != nil {
		return fmt.Errorf("lock krs selection: %w", err)
	}
	return nil
}

// MaxBatchChunkRows keeps one multi-row INSERT under PostgreSQL's 65535 bind parameter limit
// at eight parameters per row.
const MaxBatchChunkRows = 65535 / 8

func batchChunkRows(chunkSize int) int {
	switch {
	case chunkSize <= 0:
		return 500
	case chunkSize > MaxBatchChunkRows:
		return MaxBatchChunkRows
	default:
		return chunkSize
	}
}

// CreateBatch inserts every record in one transaction, chunked into multi-row INSERTs of at most
// chunkSize rows (clamped to MaxBatchChunkRows). Every student's term lock is held for the whole
// transaction. Any failing chunk rolls back the whole batch.
func (r *EnrollmentRepository) CreateBatch(ctx context.Context, records []models.EnrollmentRecord, chunkSize int) (err error) {
	if len(records) == 0 {
		return nil
	}
	chunkSize = batchChunkRows(chunkSize)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, key := range studentTermKeys(records) {
		if err = lockStudentTerm(ctx, tx, key[0], key[1]); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	for start := 0; start < len(records); start += chunkSize {
		end := start + chunkSize
		if end > len(records) {
			end = len(records)
		}
		chunk := records[start:end]
		placeholders := make([]string, len(chunk))
		args := make([]interface{}, 0, len(chunk)*8)
		for i := range chunk {
			rec := &chunk[i]
			if rec.ID == "" {
				rec.ID = uuid.NewString()
			}
			rec.CreatedAt = now
			rec.UpdatedAt = now
			base := len(args)
			placeholders[i] = fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
				base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+8)
			args = append(args, rec.ID, rec.StudentID, rec.TermID, rec.CourseID, rec.Status, rec.ReviewedBy, rec.ReviewedAt, now)
		}
		query := "INSERT INTO krs_records (" + recordColumns + ") VALUES " + strings.Join(placeholders, ", ")
		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			if pqErr, ok := isUniqueViolation(err); ok {
				err = duplicateFromPQ(pqErr)
				return err
			}
			err = fmt.Errorf("insert krs batch rows %d-%d: %w", start, end, err)
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit batch tx: %w", err)
	}
	return nil
}

// studentTermKeys returns the distinct (student, term) pairs of records in sorted order, so concurrent
// batches acquire their locks in the same order.
func studentTermKeys(records []models.EnrollmentRecord) [][2]string {
	seen := make(map[[2]string]struct{})
	keys := make([][2]string, 0)
	for _, rec := range records {
		key := [2]string{rec.StudentID, rec.TermID}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})
	return keys
}

// ListSubmissions aggregates records per student for a term and status.
func (r *EnrollmentRepository) ListSubmissions(ctx context.Context, filter models.SubmissionFilter) ([]models.SubmissionSummary, int, error) {
	status := filter.Status
	if status == "" {
		status = models.EnrollmentStatusSubmitted
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	const base = `FROM krs_records k
        JOIN students s ON s.id = k.student_id
        JOIN courses c ON c.id = k.course_id
        WHERE k.term_id = $1 AND k.status = $2`
	query := fmt.Sprintf(`SELECT s.id AS student_id, s.nim, s.full_name, s.program_id,
        COUNT(*) AS course_count, COALESCE(SUM(c.credits), 0) AS total_credits, MAX(k.updated_at) AS updated_at
        %s GROUP BY s.id, s.nim, s.full_name, s.program_id ORDER BY MAX(k.updated_at) ASC LIMIT %d OFFSET %d`, base, size, offset)

	var items []models.SubmissionSummary
	if err := r.db.SelectContext(ctx, &items, query, filter.TermID, status); err != nil {
		return nil, 0, fmt.Errorf("list krs submissions: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(DISTINCT k.student_id) "+base, filter.TermID, status); err != nil {
		return nil, 0, fmt.Errorf("count krs submissions: %w", err)
	}
	return items, total, nil
}

// CreditTotals sums the credits of every record each student holds in the term, whatever the status.
func (r *EnrollmentRepository) CreditTotals(ctx context.Context, termID string, studentIDs []string) (map[string]int, error) {
	totals := make(map[string]int, len(studentIDs))
	if len(studentIDs) == 0 {
		return totals, nil
	}
	const query = `SELECT k.student_id, COALESCE(SUM(c.credits), 0) AS total
        FROM krs_records k
        JOIN courses c ON c.id = k.course_id
        WHERE k.term_id = $1 AND k.student_id = ANY($2)
        GROUP BY k.student_id`
	var rows []struct {
		StudentID string `db:"student_id"`
		Total     int    `db:"total"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, termID, pq.Array(studentIDs)); err != nil {
		return nil, fmt.Errorf("sum krs credits: %w", err)
	}
	for _, row := range rows {
		totals[row.StudentID] = row.Total
	}
	return totals, nil
}
