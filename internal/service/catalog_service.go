package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/sia-krs-api/internal/models"
	"github.com/noah-isme/sia-krs-api/pkg/cache"
	appErrors "github.com/noah-isme/sia-krs-api/pkg/errors"
)

type courseCatalog interface {
	List(ctx context.Context) ([]models.CourseOffering, error)
	ListByParity(ctx context.Context, odd bool, semester int) ([]models.CourseOffering, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.CourseOffering, error)
}

type termReader interface {
	FindByID(ctx context.Context, id string) (*models.Term, error)
	FindCurrent(ctx context.Context) (*models.Term, error)
}

type studentDirectory interface {
	FindContext(ctx context.Context, studentID, termID string) (*models.StudentEnrollmentContext, error)
	FindContexts(ctx context.Context, ids []string, termID string) ([]models.StudentEnrollmentContext, error)
	ListUnenrolled(ctx context.Context, termID string) ([]models.StudentEnrollmentContext, error)
}

type termRecordLister interface {
	ListByStudentTerm(ctx context.Context, studentID, termID string) ([]models.EnrollmentRecordDetail, error)
}

// CatalogService resolves what a student or cohort may pick for a term.
type CatalogService struct {
	courses  courseCatalog
	terms    termReader
	students studentDirectory
	records  termRecordLister
	cache    *CacheService
	retrier  readRetrier
	logger   *zap.Logger
}

// NewCatalogService constructs the catalog resolver. cache may be nil.
func NewCatalogService(courses courseCatalog, terms termReader, students studentDirectory, records termRecordLister, cacheSvc *CacheService, retryPolicy ReadRetryPolicy, metrics *MetricsService, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{
		courses:  courses,
		terms:    terms,
		students: students,
		records:  records,
		cache:    cacheSvc,
		retrier:  newReadRetrier(retryPolicy, metrics, logger),
		logger:   logger,
	}
}

// CurrentTerm returns the term flagged as current.
func (s *CatalogService) CurrentTerm(ctx context.Context) (*models.Term, error) {
	var term *models.Term
	err := s.retrier.do(ctx, "current_term", func(ctx context.Context) error {
		var err error
		term, err = s.terms.FindCurrent(ctx)
		return err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no current term configured")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current term")
	}
	return term, nil
}

// Term loads a term by ID.
func (s *CatalogService) Term(ctx context.Context, termID string) (*models.Term, error) {
	var term *models.Term
	err := s.retrier.do(ctx, "term", func(ctx context.Context) error {
		var err error
		term, err = s.terms.FindByID(ctx, termID)
		return err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.WithDetails(appErrors.ErrNotFound, "term not found", map[string]string{"term_id": termID})
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term")
	}
	return term, nil
}

// ResolveOfferings lists the whole catalog with the student's selection state for the term.
// Program eligibility is reported, not filtered.
func (s *CatalogService) ResolveOfferings(ctx context.Context, studentID, termID string) ([]models.OfferingView, error) {
	if strings.TrimSpace(studentID) == "" || strings.TrimSpace(termID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student and term are required")
	}
	if _, err := s.Term(ctx, termID); err != nil {
		return nil, err
	}

	var (
		student *models.StudentEnrollmentContext
		courses []models.CourseOffering
		records []models.EnrollmentRecordDetail
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.retrier.do(gctx, "student_context", func(ctx context.Context) error {
			var err error
			student, err = s.students.FindContext(ctx, studentID, termID)
			return err
		})
	})
	g.Go(func() error {
		var err error
		courses, err = s.allCourses(gctx)
		return err
	})
	g.Go(func() error {
		return s.retrier.do(gctx, "student_records", func(ctx context.Context) error {
			var err error
			records, err = s.records.ListByStudentTerm(ctx, studentID, termID)
			return err
		})
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.WithDetails(appErrors.ErrNotFound, "student not found", map[string]string{"student_id": studentID})
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve offerings")
	}

	byCourse := make(map[string]models.EnrollmentRecordDetail, len(records))
	for _, rec := range records {
		byCourse[rec.CourseID] = rec
	}

	views := make([]models.OfferingView, 0, len(courses))
	for _, course := range courses {
		view := models.OfferingView{CourseOffering: course, ProgramEligible: IsProgramEligible(*student, course)}
		if rec, ok := byCourse[course.ID]; ok {
			recordID := rec.ID
			status := rec.Status
			view.IsSelected = true
			view.RecordID = &recordID
			view.Status = &status
		}
		views = append(views, view)
	}
	return views, nil
}

// ResolveCoursesForTermAndSemester lists courses running in the term's parity. A positive
// targetSemester must share that parity and narrows to courses defaulting to it.
func (s *CatalogService) ResolveCoursesForTermAndSemester(ctx context.Context, termID string, targetSemester int) ([]models.CourseOffering, error) {
	term, err := s.Term(ctx, termID)
	if err != nil {
		return nil, err
	}
	return s.coursesForTerm(ctx, term, targetSemester)
}

func (s *CatalogService) coursesForTerm(ctx context.Context, term *models.Term, targetSemester int) ([]models.CourseOffering, error) {
	if targetSemester < 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "semester must be positive")
	}
	if targetSemester > 0 && !MatchesParity(*term, targetSemester) {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, "semester does not run in this term", map[string]interface{}{
			"term_id":  term.ID,
			"parity":   term.Parity,
			"semester": targetSemester,
		})
	}

	key := cache.Key("catalog", strings.ToLower(string(term.Parity)), strconv.Itoa(targetSemester))
	var courses []models.CourseOffering
	if s.cache.Get(ctx, key, &courses) {
		return courses, nil
	}
	err := s.retrier.do(ctx, "courses_by_parity", func(ctx context.Context) error {
		var err error
		courses, err = s.courses.ListByParity(ctx, term.IsOdd(), targetSemester)
		return err
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
	}
	s.cache.Set(ctx, key, courses, 0)
	return courses, nil
}

// RefreshCatalog drops every cached course list so the next read goes to the store.
func (s *CatalogService) RefreshCatalog(ctx context.Context) error {
	if err := s.cache.InvalidatePattern(ctx, cache.Key("catalog", "*")); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to refresh catalog cache")
	}
	s.logger.Info("catalog cache refreshed")
	return nil
}

func (s *CatalogService) allCourses(ctx context.Context) ([]models.CourseOffering, error) {
	key := cache.Key("catalog", "all")
	var courses []models.CourseOffering
	if s.cache.Get(ctx, key, &courses) {
		return courses, nil
	}
	err := s.retrier.do(ctx, "courses", func(ctx context.Context) error {
		var err error
		courses, err = s.courses.List(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, key, courses, 0)
	return courses, nil
}
