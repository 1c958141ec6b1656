package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sia-krs-api/internal/models"
)

var recordRowColumns = []string{"id", "student_id", "term_id", "course_id", "status", "reviewed_by", "reviewed_at", "created_at", "updated_at"}

func newEnrollmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func expectStudentTermLock(mock sqlmock.Sqlmock, studentID, termID string) {
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1), hashtext($2))")).
		WithArgs(studentID, termID).
		WillReturnResult(sqlmock.NewResult(0, 0))
}

func TestEnrollmentRepositoryCreateDraft(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	expectStudentTermLock(mock, "stu-1", "term-1")
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO krs_records (id, student_id, term_id, course_id, status, created_at, updated_at)")).
		WithArgs(sqlmock.AnyArg(), "stu-1", "term-1", "course-1", models.EnrollmentStatusDraft, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	record := &models.EnrollmentRecord{StudentID: "stu-1", TermID: "term-1", CourseID: "course-1"}
	require.NoError(t, repo.CreateDraft(context.Background(), record))
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, models.EnrollmentStatusDraft, record.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateDraftLockedTerm(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	expectStudentTermLock(mock, "stu-1", "term-1")
	mock.ExpectExec("INSERT INTO krs_records").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.CreateDraft(context.Background(), &models.EnrollmentRecord{StudentID: "stu-1", TermID: "term-1", CourseID: "course-1"})
	assert.ErrorIs(t, err, ErrTermLocked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateDraftDuplicate(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	expectStudentTermLock(mock, "stu-1", "term-1")
	mock.ExpectExec("INSERT INTO krs_records").WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err := repo.CreateDraft(context.Background(), &models.EnrollmentRecord{StudentID: "stu-1", TermID: "term-1", CourseID: "course-1"})
	require.ErrorIs(t, err, ErrDuplicate)
	var dup *DuplicateError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "course-1", dup.CourseID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryDeleteDraft(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM krs_records WHERE id = $1 FOR UPDATE")).
		WithArgs("rec-1").
		WillReturnRows(sqlmock.NewRows(recordRowColumns).AddRow("rec-1", "stu-1", "term-1", "course-1", "DRAFT", nil, nil, now, now))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM krs_records WHERE id = $1")).
		WithArgs("rec-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	record, err := repo.DeleteDraft(context.Background(), "rec-1")
	require.NoError(t, err)
	assert.Equal(t, "stu-1", record.StudentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryDeleteDraftLosesToSubmit(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM krs_records WHERE id = $1 FOR UPDATE")).
		WithArgs("rec-1").
		WillReturnRows(sqlmock.NewRows(recordRowColumns).AddRow("rec-1", "stu-1", "term-1", "course-1", "SUBMITTED", nil, nil, now, now))
	mock.ExpectRollback()

	record, err := repo.DeleteDraft(context.Background(), "rec-1")
	assert.ErrorIs(t, err, ErrNotDraft)
	require.NotNil(t, record)
	assert.Equal(t, models.EnrollmentStatusSubmitted, record.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryTransitionAll(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	reviewer := "admin-1"
	mock.ExpectBegin()
	expectStudentTermLock(mock, "stu-1", "term-1")
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE krs_records")).
		WithArgs(models.EnrollmentStatusApproved, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "stu-1", "term-1", models.EnrollmentStatusSubmitted).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("rec-1").AddRow("rec-2"))
	mock.ExpectCommit()

	ids, err := repo.TransitionAll(context.Background(), TransitionParams{
		StudentID:  "stu-1",
		TermID:     "term-1",
		From:       models.EnrollmentStatusSubmitted,
		To:         models.EnrollmentStatusApproved,
		ReviewedBy: &reviewer,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"rec-1", "rec-2"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func batchRecords(n int) []models.EnrollmentRecord {
	records := make([]models.EnrollmentRecord, n)
	for i := range records {
		records[i] = models.EnrollmentRecord{StudentID: "stu-1", TermID: "term-1", CourseID: "course-" + string(rune('a'+i)), Status: models.EnrollmentStatusApproved}
	}
	return records
}

func TestEnrollmentRepositoryCreateBatchChunks(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	expectStudentTermLock(mock, "stu-1", "term-1")
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO krs_records (" + recordColumns + ") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8), ($9,")).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	records := batchRecords(3)
	require.NoError(t, repo.CreateBatch(context.Background(), records, 2))
	for _, rec := range records {
		assert.NotEmpty(t, rec.ID)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateBatchRollsBackOnDuplicate(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	expectStudentTermLock(mock, "stu-1", "term-1")
	mock.ExpectExec("INSERT INTO krs_records").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO krs_records").WillReturnError(&pq.Error{
		Code:   "23505",
		Detail: "Key (student_id, term_id, course_id)=(stu-1, term-1, course-c) already exists.",
	})
	mock.ExpectRollback()

	err := repo.CreateBatch(context.Background(), batchRecords(3), 2)
	require.ErrorIs(t, err, ErrDuplicate)
	var dup *DuplicateError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "stu-1", dup.StudentID)
	assert.Equal(t, "term-1", dup.TermID)
	assert.Equal(t, "course-c", dup.CourseID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateBatchRollsBackOnDriverError(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	expectStudentTermLock(mock, "stu-1", "term-1")
	mock.ExpectExec("INSERT INTO krs_records").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := repo.CreateBatch(context.Background(), batchRecords(1), 500)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrDuplicate))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryTransitionAllWaitsForSelectionLock(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").
		WithArgs("stu-1", "term-1").
		WillReturnError(errors.New("canceling statement due to lock timeout"))
	mock.ExpectRollback()

	_, err := repo.TransitionAll(context.Background(), TransitionParams{
		StudentID: "stu-1",
		TermID:    "term-1",
		From:      models.EnrollmentStatusDraft,
		To:        models.EnrollmentStatusSubmitted,
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateBatchLocksEachStudentInOrder(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	records := []models.EnrollmentRecord{
		{StudentID: "stu-2", TermID: "term-1", CourseID: "course-a", Status: models.EnrollmentStatusApproved},
		{StudentID: "stu-1", TermID: "term-1", CourseID: "course-a", Status: models.EnrollmentStatusApproved},
		{StudentID: "stu-2", TermID: "term-1", CourseID: "course-b", Status: models.EnrollmentStatusApproved},
	}
	mock.ExpectBegin()
	expectStudentTermLock(mock, "stu-1", "term-1")
	expectStudentTermLock(mock, "stu-2", "term-1")
	mock.ExpectExec("INSERT INTO krs_records").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	require.NoError(t, repo.CreateBatch(context.Background(), records, 500))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBatchChunkRowsStaysUnderBindLimit(t *testing.T) {
	assert.Equal(t, 500, batchChunkRows(0))
	assert.Equal(t, 2, batchChunkRows(2))
	assert.Equal(t, MaxBatchChunkRows, batchChunkRows(100000))
	assert.LessOrEqual(t, MaxBatchChunkRows*8, 65535)
}

func TestEnrollmentRepositoryListByStudentTerm(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now()
	columns := append(append([]string{}, recordRowColumns...), "course_code", "course_name", "credits", "course_category")
	mock.ExpectQuery(regexp.QuoteMeta("JOIN courses c ON c.id = k.course_id")).
		WithArgs("stu-1", "term-1").
		WillReturnRows(sqlmock.NewRows(columns).AddRow("rec-1", "stu-1", "term-1", "course-1", "DRAFT", nil, nil, now, now, "IF101", "Algoritma", 3, "REGULAR"))

	records, err := repo.ListByStudentTerm(context.Background(), "stu-1", "term-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 3, records[0].Credits)
	assert.Equal(t, "IF101", records[0].CourseCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListSubmissions(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("COUNT(*) AS course_count")).
		WithArgs("term-1", models.EnrollmentStatusSubmitted).
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "nim", "full_name", "program_id", "course_count", "total_credits", "updated_at"}).
			AddRow("stu-1", "2301001", "Siti", "prog-if", 6, 20, time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(DISTINCT k.student_id)")).
		WithArgs("term-1", models.EnrollmentStatusSubmitted).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	items, total, err := repo.ListSubmissions(context.Background(), models.SubmissionFilter{TermID: "term-1"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 20, items[0].TotalCredits)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreditTotals(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("COALESCE(SUM(c.credits), 0) AS total")).
		WithArgs("term-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "total"}).AddRow("stu-1", 21).AddRow("stu-2", 9))

	totals, err := repo.CreditTotals(context.Background(), "term-1", []string{"stu-1", "stu-2", "stu-3"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"stu-1": 21, "stu-2": 9}, totals)
	assert.NoError(t, mock.ExpectationsWereMet())
}
