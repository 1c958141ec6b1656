package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sia-krs-api/internal/dto"
	"github.com/noah-isme/sia-krs-api/internal/models"
	"github.com/noah-isme/sia-krs-api/internal/repository"
	appErrors "github.com/noah-isme/sia-krs-api/pkg/errors"
)

// DefaultCreditCeiling is the advisory semester load used when none is configured.
const DefaultCreditCeiling = 24

type enrollmentStore interface {
	FindByID(ctx context.Context, id string) (*models.EnrollmentRecord, error)
	ListByStudentTerm(ctx context.Context, studentID, termID string) ([]models.EnrollmentRecordDetail, error)
	CreateDraft(ctx context.Context, record *models.EnrollmentRecord) error
	DeleteDraft(ctx context.Context, id string) (*models.EnrollmentRecord, error)
	TransitionAll(ctx context.Context, params repository.TransitionParams) ([]string, error)
	ListSubmissions(ctx context.Context, filter models.SubmissionFilter) ([]models.SubmissionSummary, int, error)
}

type eventPublisher interface {
	Publish(event models.EnrollmentEvent)
}

// KRSService runs the individual KRS lifecycle: select, deselect, submit, approve and reject.
type KRSService struct {
	records       enrollmentStore
	terms         termReader
	students      studentDirectory
	courses       courseCatalog
	events        eventPublisher
	validator     *validator.Validate
	logger        *zap.Logger
	creditCeiling int
}

// NewKRSService constructs KRSService.
func NewKRSService(records enrollmentStore, terms termReader, students studentDirectory, courses courseCatalog, events eventPublisher, creditCeiling int, validate *validator.Validate, logger *zap.Logger) *KRSService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if creditCeiling <= 0 {
		creditCeiling = DefaultCreditCeiling
	}
	return &KRSService{
		records:       records,
		terms:         terms,
		students:      students,
		courses:       courses,
		events:        events,
		validator:     validate,
		logger:        logger,
		creditCeiling: creditCeiling,
	}
}

// Select adds a course to the student's draft for the term.
func (s *KRSService) Select(ctx context.Context, studentID string, req dto.SelectCourseRequest) (*dto.SelectCourseResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid selection payload")
	}
	if _, err := s.loadTerm(ctx, req.TermID); err != nil {
		return nil, err
	}
	student, err := s.loadStudent(ctx, studentID, req.TermID)
	if err != nil {
		return nil, err
	}
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "student inactive")
	}
	found, err := s.courses.FindByIDs(ctx, []string{req.CourseID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if len(found) == 0 {
		return nil, appErrors.WithDetails(appErrors.ErrNotFound, "course not found", map[string]string{"course_id": req.CourseID})
	}
	course := found[0]

	current, err := s.records.ListByStudentTerm(ctx, studentID, req.TermID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current selection")
	}
	total := totalCredits(current)

	record := &models.EnrollmentRecord{StudentID: studentID, TermID: req.TermID, CourseID: req.CourseID}
	if err := s.records.CreateDraft(ctx, record); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, appErrors.WithDetails(appErrors.ErrDuplicateEnrollment, "", map[string]string{
				"student_id": studentID,
				"term_id":    req.TermID,
				"course_id":  req.CourseID,
			})
		case errors.Is(err, repository.ErrTermLocked):
			return nil, appErrors.WithDetails(appErrors.ErrLockedState, "selection already submitted for this term", map[string]interface{}{
				"student_id": studentID,
				"term_id":    req.TermID,
				"status":     AggregateStatus(current),
			})
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to select course")
	}

	var warnings []string
	if !IsCreditLoadAcceptable(total, course.Credits, s.creditCeiling) {
		warnings = append(warnings, "CREDIT_CEILING_EXCEEDED")
	}
	if !IsProgramEligible(*student, course) {
		warnings = append(warnings, string(ReasonProgramMismatch))
	}
	if !IsExchangeCompatible(*student, course) {
		warnings = append(warnings, string(ReasonExchangeOnly))
	}

	t := transitionFor(actionSelect)
	s.events.Publish(models.EnrollmentEvent{
		Type:       t.Event,
		TermID:     req.TermID,
		StudentIDs: []string{studentID},
		RecordIDs:  []string{record.ID},
		From:       t.From,
		To:         t.To,
		ActorID:    studentID,
	})
	s.logger.Info("krs course selected",
		zap.String("student_id", studentID),
		zap.String("term_id", req.TermID),
		zap.String("course_id", req.CourseID),
		zap.Strings("warnings", warnings))

	return &dto.SelectCourseResponse{
		Record:        *record,
		TotalCredits:  total + course.Credits,
		CreditCeiling: s.creditCeiling,
		Warnings:      warnings,
	}, nil
}

// Deselect removes one of the student's draft records.
func (s *KRSService) Deselect(ctx context.Context, studentID, recordID string) (*models.EnrollmentRecord, error) {
	existing, err := s.records.FindByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.WithDetails(appErrors.ErrNotFound, "krs record not found", map[string]string{"record_id": recordID})
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load krs record")
	}
	if existing.StudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "record belongs to another student")
	}
	if !canApply(actionDeselect, existing.Status) {
		return nil, appErrors.WithDetails(appErrors.ErrLockedState, "", map[string]interface{}{
			"record_id": recordID,
			"status":    existing.Status,
		})
	}

	deleted, err := s.records.DeleteDraft(ctx, recordID)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.WithDetails(appErrors.ErrNotFound, "krs record not found", map[string]string{"record_id": recordID})
		case errors.Is(err, repository.ErrNotDraft):
			status := existing.Status
			if deleted != nil {
				status = deleted.Status
			}
			return nil, appErrors.WithDetails(appErrors.ErrLockedState, "", map[string]interface{}{
				"record_id": recordID,
				"status":    status,
			})
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deselect course")
	}

	t := transitionFor(actionDeselect)
	s.events.Publish(models.EnrollmentEvent{
		Type:       t.Event,
		TermID:     deleted.TermID,
		StudentIDs: []string{studentID},
		RecordIDs:  []string{recordID},
		From:       t.From,
		To:         t.To,
		ActorID:    studentID,
	})
	s.logger.Info("krs course deselected",
		zap.String("student_id", studentID),
		zap.String("term_id", deleted.TermID),
		zap.String("record_id", recordID))
	return deleted, nil
}

// Submit moves every draft record of the student in the term to SUBMITTED.
func (s *KRSService) Submit(ctx context.Context, studentID, termID string) (*dto.TransitionResponse, error) {
	return s.transition(ctx, actionSubmit, studentID, termID, studentID)
}

// Approve moves every submitted record of the student in the term to APPROVED.
func (s *KRSService) Approve(ctx context.Context, studentID, termID, reviewerID string) (*dto.TransitionResponse, error) {
	return s.transition(ctx, actionApprove, studentID, termID, reviewerID)
}

// Reject moves every submitted record of the student in the term to REJECTED.
func (s *KRSService) Reject(ctx context.Context, studentID, termID, reviewerID string) (*dto.TransitionResponse, error) {
	return s.transition(ctx, actionReject, studentID, termID, reviewerID)
}

func (s *KRSService) transition(ctx context.Context, action krsAction, studentID, termID, actorID string) (*dto.TransitionResponse, error) {
	if studentID == "" || termID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student and term are required")
	}
	if _, err := s.loadTerm(ctx, termID); err != nil {
		return nil, err
	}
	if _, err := s.loadStudent(ctx, studentID, termID); err != nil {
		return nil, err
	}

	t := transitionFor(action)
	params := repository.TransitionParams{StudentID: studentID, TermID: termID, From: t.From, To: t.To}
	if t.Reviewed {
		reviewer := actorID
		params.ReviewedBy = &reviewer
	}
	ids, err := s.records.TransitionAll(ctx, params)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update krs status")
	}
	if len(ids) == 0 {
		return nil, s.emptyTransitionError(ctx, action, studentID, termID)
	}

	s.events.Publish(models.EnrollmentEvent{
		Type:       t.Event,
		TermID:     termID,
		StudentIDs: []string{studentID},
		RecordIDs:  ids,
		From:       t.From,
		To:         t.To,
		ActorID:    actorID,
	})
	s.logger.Info("krs status changed",
		zap.String("action", string(action)),
		zap.String("student_id", studentID),
		zap.String("term_id", termID),
		zap.String("to", string(t.To)),
		zap.Int("count", len(ids)),
		zap.String("actor_id", actorID))

	return &dto.TransitionResponse{StudentID: studentID, TermID: termID, Status: t.To, RecordIDs: ids, Count: len(ids)}, nil
}

func (s *KRSService) emptyTransitionError(ctx context.Context, action krsAction, studentID, termID string) error {
	details := map[string]interface{}{"student_id": studentID, "term_id": termID}
	if records, err := s.records.ListByStudentTerm(ctx, studentID, termID); err == nil {
		details["status"] = AggregateStatus(records)
	}
	message := "no draft records to submit"
	if action != actionSubmit {
		message = "no submitted records to review"
	}
	return appErrors.WithDetails(appErrors.ErrEmptySelection, message, details)
}

// Summary returns the student's records for the term with aggregate status and credit load.
func (s *KRSService) Summary(ctx context.Context, studentID, termID string) (*dto.KRSSummary, error) {
	if studentID == "" || termID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student and term are required")
	}
	if _, err := s.loadTerm(ctx, termID); err != nil {
		return nil, err
	}
	if _, err := s.loadStudent(ctx, studentID, termID); err != nil {
		return nil, err
	}
	records, err := s.records.ListByStudentTerm(ctx, studentID, termID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load krs records")
	}
	if records == nil {
		records = []models.EnrollmentRecordDetail{}
	}
	total := totalCredits(records)
	return &dto.KRSSummary{
		StudentID:     studentID,
		TermID:        termID,
		Status:        AggregateStatus(records),
		Records:       records,
		TotalCredits:  total,
		CreditCeiling: s.creditCeiling,
		OverCeiling:   !IsCreditLoadAcceptable(total, 0, s.creditCeiling),
	}, nil
}

// ListSubmissions returns the per-student review queue for a term.
func (s *KRSService) ListSubmissions(ctx context.Context, query dto.SubmissionQuery) ([]models.SubmissionSummary, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission query")
	}
	filter := models.SubmissionFilter{TermID: query.TermID, Status: query.Status, Page: query.Page, PageSize: query.PageSize}
	if filter.Status == "" {
		filter.Status = models.EnrollmentStatusSubmitted
	}
	items, total, err := s.records.ListSubmissions(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return items, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

func (s *KRSService) loadTerm(ctx context.Context, termID string) (*models.Term, error) {
	term, err := s.terms.FindByID(ctx, termID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.WithDetails(appErrors.ErrNotFound, "term not found", map[string]string{"term_id": termID})
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	return term, nil
}

func (s *KRSService) loadStudent(ctx context.Context, studentID, termID string) (*models.StudentEnrollmentContext, error) {
	student, err := s.students.FindContext(ctx, studentID, termID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.WithDetails(appErrors.ErrNotFound, "student not found", map[string]string{"student_id": studentID})
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

func totalCredits(records []models.EnrollmentRecordDetail) int {
	total := 0
	for _, rec := range records {
		total += rec.Credits
	}
	return total
}
