package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/sia-krs-api/internal/dto"
	"github.com/noah-isme/sia-krs-api/internal/models"
	"github.com/noah-isme/sia-krs-api/internal/repository"
	appErrors "github.com/noah-isme/sia-krs-api/pkg/errors"
)

// DefaultBatchChunkSize caps the rows of one multi-row INSERT.
const DefaultBatchChunkSize = 500

type batchStore interface {
	CreateBatch(ctx context.Context, records []models.EnrollmentRecord, chunkSize int) error
	CreditTotals(ctx context.Context, termID string, studentIDs []string) (map[string]int, error)
}

// BatchOptions tunes batch commits.
type BatchOptions struct {
	ChunkSize     int
	CreditCeiling int
	RetryPolicy   ReadRetryPolicy
}

// BatchService enrolls cohorts of students into sets of courses in one all-or-nothing commit.
type BatchService struct {
	catalog   *CatalogService
	students  studentDirectory
	courses   courseCatalog
	records   batchStore
	events    eventPublisher
	validator *validator.Validate
	logger    *zap.Logger
	retrier   readRetrier
	chunkSize int
	ceiling   int
}

// NewBatchService constructs the batch orchestrator.
func NewBatchService(catalog *CatalogService, students studentDirectory, courses courseCatalog, records batchStore, events eventPublisher, opts BatchOptions, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *BatchService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultBatchChunkSize
	}
	if opts.ChunkSize > repository.MaxBatchChunkRows {
		opts.ChunkSize = repository.MaxBatchChunkRows
	}
	if opts.CreditCeiling <= 0 {
		opts.CreditCeiling = DefaultCreditCeiling
	}
	return &BatchService{
		catalog:   catalog,
		students:  students,
		courses:   courses,
		records:   records,
		events:    events,
		validator: validate,
		logger:    logger,
		retrier:   newReadRetrier(opts.RetryPolicy, metrics, logger),
		chunkSize: opts.ChunkSize,
		ceiling:   opts.CreditCeiling,
	}
}

// ListUnenrolled returns active students with no record in the term. A positive targetSemester keeps
// only students whose derived semester equals it.
func (s *BatchService) ListUnenrolled(ctx context.Context, termID string, targetSemester int) ([]models.StudentEnrollmentContext, error) {
	term, err := s.catalog.Term(ctx, termID)
	if err != nil {
		return nil, err
	}
	if err := checkTargetSemester(*term, targetSemester); err != nil {
		return nil, err
	}
	return s.unenrolled(ctx, term, targetSemester)
}

func (s *BatchService) unenrolled(ctx context.Context, term *models.Term, targetSemester int) ([]models.StudentEnrollmentContext, error) {
	var students []models.StudentEnrollmentContext
	err := s.retrier.do(ctx, "unenrolled_students", func(ctx context.Context) error {
		var err error
		students, err = s.students.ListUnenrolled(ctx, term.ID)
		return err
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list unenrolled students")
	}

	result := make([]models.StudentEnrollmentContext, 0, len(students))
	for _, student := range students {
		student.Semester = models.DeriveSemester(student.EntryYear, *term)
		if targetSemester > 0 && student.Semester != targetSemester {
			continue
		}
		result = append(result, student)
	}
	return result, nil
}

// Cohort returns the gated unenrolled students together with the gated courses.
func (s *BatchService) Cohort(ctx context.Context, query dto.BatchQuery) (*dto.CohortResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid cohort query")
	}
	term, err := s.catalog.Term(ctx, query.TermID)
	if err != nil {
		return nil, err
	}
	if err := checkTargetSemester(*term, query.Semester); err != nil {
		return nil, err
	}

	var (
		students []models.StudentEnrollmentContext
		courses  []models.CourseOffering
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		students, err = s.unenrolled(gctx, term, query.Semester)
		return err
	})
	g.Go(func() error {
		var err error
		courses, err = s.catalog.coursesForTerm(gctx, term, query.Semester)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if courses == nil {
		courses = []models.CourseOffering{}
	}
	return &dto.CohortResponse{TermID: term.ID, Semester: query.Semester, Students: students, Courses: courses}, nil
}

// CommitBatch creates APPROVED records for every (student, course) pair of the request in one
// transaction. Nothing is written unless every check passes and every row inserts.
func (s *BatchService) CommitBatch(ctx context.Context, req dto.BatchCommitRequest, actorID string) (*dto.BatchCommitResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch payload")
	}
	studentIDs := uniqueIDs(req.StudentIDs)
	courseIDs := uniqueIDs(req.CourseIDs)
	if len(studentIDs) == 0 || len(courseIDs) == 0 {
		return nil, appErrors.WithDetails(appErrors.ErrEmptySelection, "batch needs at least one student and one course", map[string]int{
			"student_count": len(studentIDs),
			"course_count":  len(courseIDs),
		})
	}

	term, err := s.catalog.Term(ctx, req.TermID)
	if err != nil {
		return nil, err
	}

	var (
		students []models.StudentEnrollmentContext
		courses  []models.CourseOffering
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		students, err = s.students.FindContexts(gctx, studentIDs, term.ID)
		return err
	})
	g.Go(func() error {
		var err error
		courses, err = s.courses.FindByIDs(gctx, courseIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch participants")
	}

	if err := checkAllFound(studentIDs, students, courseIDs, courses); err != nil {
		return nil, err
	}
	for i := range students {
		students[i].Semester = models.DeriveSemester(students[i].EntryYear, *term)
	}
	if err := checkBatchPreconditions(*term, req.TargetSemester, students, courses); err != nil {
		return nil, err
	}
	if violations := CheckCrossEligibility(students, courses); len(violations) > 0 {
		return nil, appErrors.WithDetails(appErrors.ErrCrossEligibility, "", map[string]interface{}{"violations": violations})
	}

	now := time.Now().UTC()
	reviewer := actorID
	records := make([]models.EnrollmentRecord, 0, len(students)*len(courses))
	for _, student := range students {
		for _, course := range courses {
			records = append(records, models.EnrollmentRecord{
				StudentID:  student.StudentID,
				TermID:     term.ID,
				CourseID:   course.ID,
				Status:     models.EnrollmentStatusApproved,
				ReviewedBy: &reviewer,
				ReviewedAt: &now,
			})
		}
	}

	if err := s.records.CreateBatch(ctx, records, s.chunkSize); err != nil {
		var dup *repository.DuplicateError
		if errors.As(err, &dup) {
			details := map[string]string{"term_id": term.ID}
			if dup.StudentID != "" {
				details["student_id"] = dup.StudentID
				details["course_id"] = dup.CourseID
			}
			return nil, appErrors.WithDetails(appErrors.ErrDuplicateEnrollment, "batch contains an existing enrollment", details)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit batch")
	}

	recordIDs := make([]string, len(records))
	for i, rec := range records {
		recordIDs[i] = rec.ID
	}
	s.events.Publish(models.EnrollmentEvent{
		Type:       models.EventBatchCommitted,
		TermID:     term.ID,
		StudentIDs: studentIDs,
		RecordIDs:  recordIDs,
		From:       models.EnrollmentStatusNone,
		To:         models.EnrollmentStatusApproved,
		ActorID:    actorID,
		OccurredAt: now,
	})
	s.logger.Info("krs batch committed",
		zap.String("term_id", term.ID),
		zap.Int("students", len(students)),
		zap.Int("courses", len(courses)),
		zap.Int("count", len(records)),
		zap.String("actor_id", actorID))

	return &dto.BatchCommitResponse{
		TermID:       term.ID,
		CreatedCount: len(records),
		StudentCount: len(students),
		CourseCount:  len(courses),
		Warnings:     s.creditWarnings(ctx, term.ID, studentIDs),
	}, nil
}

// creditWarnings reports students above the ceiling after the commit. Failures only lose the advisory.
func (s *BatchService) creditWarnings(ctx context.Context, termID string, studentIDs []string) []dto.CreditWarning {
	totals, err := s.records.CreditTotals(ctx, termID, studentIDs)
	if err != nil {
		s.logger.Warn("credit advisory unavailable", zap.String("term_id", termID), zap.Error(err))
		return nil
	}
	var warnings []dto.CreditWarning
	for _, id := range studentIDs {
		if total := totals[id]; !IsCreditLoadAcceptable(total, 0, s.ceiling) {
			warnings = append(warnings, dto.CreditWarning{StudentID: id, TotalCredits: total, CreditCeiling: s.ceiling})
		}
	}
	return warnings
}

func checkTargetSemester(term models.Term, targetSemester int) error {
	if targetSemester < 0 {
		return appErrors.Clone(appErrors.ErrValidation, "semester must be positive")
	}
	if targetSemester > 0 && !MatchesParity(term, targetSemester) {
		return appErrors.WithDetails(appErrors.ErrValidation, "semester does not run in this term", map[string]interface{}{
			"term_id":  term.ID,
			"parity":   term.Parity,
			"semester": targetSemester,
		})
	}
	return nil
}

func checkAllFound(studentIDs []string, students []models.StudentEnrollmentContext, courseIDs []string, courses []models.CourseOffering) error {
	foundStudents := make(map[string]struct{}, len(students))
	for _, st := range students {
		foundStudents[st.StudentID] = struct{}{}
	}
	foundCourses := make(map[string]struct{}, len(courses))
	for _, c := range courses {
		foundCourses[c.ID] = struct{}{}
	}

	var missingStudents, missingCourses []string
	for _, id := range studentIDs {
		if _, ok := foundStudents[id]; !ok {
			missingStudents = append(missingStudents, id)
		}
	}
	for _, id := range courseIDs {
		if _, ok := foundCourses[id]; !ok {
			missingCourses = append(missingCourses, id)
		}
	}
	if len(missingStudents) == 0 && len(missingCourses) == 0 {
		return nil
	}
	return appErrors.WithDetails(appErrors.ErrNotFound, "batch references unknown students or courses", map[string][]string{
		"missing_student_ids": missingStudents,
		"missing_course_ids":  missingCourses,
	})
}

type semesterOffender struct {
	ID       string `json:"id"`
	Semester int    `json:"semester"`
}

// checkBatchPreconditions rejects inactive students and, when a target semester is set, anything
// outside it.
func checkBatchPreconditions(term models.Term, targetSemester int, students []models.StudentEnrollmentContext, courses []models.CourseOffering) error {
	var inactive []string
	for _, st := range students {
		if !st.Active {
			inactive = append(inactive, st.StudentID)
		}
	}
	if len(inactive) > 0 {
		return appErrors.WithDetails(appErrors.ErrPreconditionFailed, "batch includes inactive students", map[string][]string{"inactive_student_ids": inactive})
	}
	if !MatchesParity(term, targetSemester) {
		return appErrors.WithDetails(appErrors.ErrPreconditionFailed, "target semester does not run in this term", map[string]interface{}{
			"term_parity":     term.Parity,
			"target_semester": targetSemester,
		})
	}

	var studentOffenders, courseOffenders []semesterOffender
	for _, st := range students {
		if st.Semester != targetSemester {
			studentOffenders = append(studentOffenders, semesterOffender{ID: st.StudentID, Semester: st.Semester})
		}
	}
	for _, c := range courses {
		if c.DefaultSemester != targetSemester {
			courseOffenders = append(courseOffenders, semesterOffender{ID: c.ID, Semester: c.DefaultSemester})
		}
	}
	if len(studentOffenders) == 0 && len(courseOffenders) == 0 {
		return nil
	}
	return appErrors.WithDetails(appErrors.ErrPreconditionFailed, "batch participants are outside the target semester", map[string]interface{}{
		"target_semester": targetSemester,
		"students":        studentOffenders,
		"courses":         courseOffenders,
	})
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}
