package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sia-krs-api/internal/dto"
	"github.com/noah-isme/sia-krs-api/internal/models"
	appErrors "github.com/noah-isme/sia-krs-api/pkg/errors"
	"github.com/noah-isme/sia-krs-api/pkg/response"
)

type krsReviewService interface {
	Approve(ctx context.Context, studentID, termID, reviewerID string) (*dto.TransitionResponse, error)
	Reject(ctx context.Context, studentID, termID, reviewerID string) (*dto.TransitionResponse, error)
	Summary(ctx context.Context, studentID, termID string) (*dto.KRSSummary, error)
	ListSubmissions(ctx context.Context, query dto.SubmissionQuery) ([]models.SubmissionSummary, *models.Pagination, error)
}

type batchService interface {
	ListUnenrolled(ctx context.Context, termID string, targetSemester int) ([]models.StudentEnrollmentContext, error)
	Cohort(ctx context.Context, query dto.BatchQuery) (*dto.CohortResponse, error)
	CommitBatch(ctx context.Context, req dto.BatchCommitRequest, actorID string) (*dto.BatchCommitResponse, error)
}

type semesterCatalog interface {
	CurrentTerm(ctx context.Context) (*models.Term, error)
	ResolveCoursesForTermAndSemester(ctx context.Context, termID string, targetSemester int) ([]models.CourseOffering, error)
	RefreshCatalog(ctx context.Context) error
}

// KRSAdminHandler exposes review and batch enrollment endpoints for administrators.
type KRSAdminHandler struct {
	review  krsReviewService
	batch   batchService
	catalog semesterCatalog
}

// NewKRSAdminHandler builds a new handler.
func NewKRSAdminHandler(review krsReviewService, batch batchService, catalog semesterCatalog) *KRSAdminHandler {
	return &KRSAdminHandler{review: review, batch: batch, catalog: catalog}
}

// Submissions godoc
// @Summary List students waiting for KRS review
// @Tags KRS Admin
// @Produce json
// @Param termId query string false "Term ID (defaults to current)"
// @Param status query string false "Record status (defaults to SUBMITTED)"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /admin/krs/submissions [get]
func (h *KRSAdminHandler) Submissions(c *gin.Context) {
	var query dto.SubmissionQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid submission query"))
		return
	}
	termID, err := termOrCurrent(c, h.catalog)
	if err != nil {
		response.Error(c, err)
		return
	}
	query.TermID = termID
	query.Status = models.EnrollmentStatus(strings.ToUpper(string(query.Status)))

	items, pagination, err := h.review.ListSubmissions(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// StudentSummary godoc
// @Summary Show a student's KRS for review
// @Tags KRS Admin
// @Produce json
// @Param studentId path string true "Student ID"
// @Param termId query string false "Term ID (defaults to current)"
// @Success 200 {object} response.Envelope
// @Router /admin/krs/{studentId} [get]
func (h *KRSAdminHandler) StudentSummary(c *gin.Context) {
	termID, err := termOrCurrent(c, h.catalog)
	if err != nil {
		response.Error(c, err)
		return
	}
	summary, err := h.review.Summary(c.Request.Context(), c.Param("studentId"), termID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Approve godoc
// @Summary Approve a submitted KRS
// @Tags KRS Admin
// @Accept json
// @Produce json
// @Param studentId path string true "Student ID"
// @Param payload body dto.ReviewKRSRequest true "Review payload"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /admin/krs/{studentId}/approve [post]
func (h *KRSAdminHandler) Approve(c *gin.Context) {
	h.reviewWith(c, h.review.Approve)
}

// Reject godoc
// @Summary Reject a submitted KRS
// @Tags KRS Admin
// @Accept json
// @Produce json
// @Param studentId path string true "Student ID"
// @Param payload body dto.ReviewKRSRequest true "Review payload"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /admin/krs/{studentId}/reject [post]
func (h *KRSAdminHandler) Reject(c *gin.Context) {
	h.reviewWith(c, h.review.Reject)
}

type reviewFunc func(ctx context.Context, studentID, termID, reviewerID string) (*dto.TransitionResponse, error)

func (h *KRSAdminHandler) reviewWith(c *gin.Context, review reviewFunc) {
	actorID, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.ReviewKRSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review payload"))
		return
	}
	result, err := review(c.Request.Context(), c.Param("studentId"), req.TermID, actorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// BatchCatalog godoc
// @Summary List courses offered in a term, optionally for one semester
// @Tags KRS Batch
// @Produce json
// @Param termId query string false "Term ID (defaults to current)"
// @Param semester query int false "Target semester"
// @Success 200 {object} response.Envelope
// @Router /admin/krs/batch/catalog [get]
func (h *KRSAdminHandler) BatchCatalog(c *gin.Context) {
	query, ok := h.batchQuery(c)
	if !ok {
		return
	}
	courses, err := h.catalog.ResolveCoursesForTermAndSemester(c.Request.Context(), query.TermID, query.Semester)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, nil, map[string]interface{}{"termId": query.TermID, "semester": query.Semester})
}

// RefreshCatalog godoc
// @Summary Drop cached course lists after the catalog changed
// @Tags KRS Batch
// @Success 204
// @Router /admin/krs/batch/catalog/refresh [post]
func (h *KRSAdminHandler) RefreshCatalog(c *gin.Context) {
	if err := h.catalog.RefreshCatalog(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// BatchUnenrolled godoc
// @Summary List active students without any KRS record in a term
// @Tags KRS Batch
// @Produce json
// @Param termId query string false "Term ID (defaults to current)"
// @Param semester query int false "Target semester"
// @Success 200 {object} response.Envelope
// @Router /admin/krs/batch/unenrolled [get]
func (h *KRSAdminHandler) BatchUnenrolled(c *gin.Context) {
	query, ok := h.batchQuery(c)
	if !ok {
		return
	}
	students, err := h.batch.ListUnenrolled(c.Request.Context(), query.TermID, query.Semester)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, nil, map[string]interface{}{"termId": query.TermID, "semester": query.Semester})
}

// BatchCohort godoc
// @Summary List the students and courses a batch for one semester would pair
// @Tags KRS Batch
// @Produce json
// @Param termId query string false "Term ID (defaults to current)"
// @Param semester query int false "Target semester"
// @Success 200 {object} response.Envelope
// @Router /admin/krs/batch/cohort [get]
func (h *KRSAdminHandler) BatchCohort(c *gin.Context) {
	query, ok := h.batchQuery(c)
	if !ok {
		return
	}
	cohort, err := h.batch.Cohort(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cohort, nil)
}

// BatchCommit godoc
// @Summary Enroll every listed student into every listed course as approved
// @Tags KRS Batch
// @Accept json
// @Produce json
// @Param payload body dto.BatchCommitRequest true "Batch payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /admin/krs/batch/commit [post]
func (h *KRSAdminHandler) BatchCommit(c *gin.Context) {
	actorID, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.BatchCommitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid batch payload"))
		return
	}
	result, err := h.batch.CommitBatch(c.Request.Context(), req, actorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

func (h *KRSAdminHandler) batchQuery(c *gin.Context) (dto.BatchQuery, bool) {
	var query dto.BatchQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid batch query"))
		return query, false
	}
	termID, err := termOrCurrent(c, h.catalog)
	if err != nil {
		response.Error(c, err)
		return query, false
	}
	query.TermID = termID
	return query, true
}
