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

type krsService interface {
	Select(ctx context.Context, studentID string, req dto.SelectCourseRequest) (*dto.SelectCourseResponse, error)
	Deselect(ctx context.Context, studentID, recordID string) (*models.EnrollmentRecord, error)
	Submit(ctx context.Context, studentID, termID string) (*dto.TransitionResponse, error)
	Summary(ctx context.Context, studentID, termID string) (*dto.KRSSummary, error)
}

type offeringResolver interface {
	CurrentTerm(ctx context.Context) (*models.Term, error)
	ResolveOfferings(ctx context.Context, studentID, termID string) ([]models.OfferingView, error)
}

// KRSHandler exposes the student-facing KRS endpoints. The acting student always comes from the token.
type KRSHandler struct {
	krs     krsService
	catalog offeringResolver
}

// NewKRSHandler builds a new handler.
func NewKRSHandler(krs krsService, catalog offeringResolver) *KRSHandler {
	return &KRSHandler{krs: krs, catalog: catalog}
}

// Offerings godoc
// @Summary List course offerings with the student's selection state
// @Tags KRS
// @Produce json
// @Param termId query string false "Term ID (defaults to current)"
// @Success 200 {object} response.Envelope
// @Router /krs/offerings [get]
func (h *KRSHandler) Offerings(c *gin.Context) {
	studentID, ok := studentFromContext(c)
	if !ok {
		return
	}
	termID, err := termOrCurrent(c, h.catalog)
	if err != nil {
		response.Error(c, err)
		return
	}
	offerings, err := h.catalog.ResolveOfferings(c.Request.Context(), studentID, termID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, offerings, nil, map[string]interface{}{"termId": termID})
}

// Summary godoc
// @Summary Show the student's KRS for a term
// @Tags KRS
// @Produce json
// @Param termId query string false "Term ID (defaults to current)"
// @Success 200 {object} response.Envelope
// @Router /krs [get]
func (h *KRSHandler) Summary(c *gin.Context) {
	studentID, ok := studentFromContext(c)
	if !ok {
		return
	}
	termID, err := termOrCurrent(c, h.catalog)
	if err != nil {
		response.Error(c, err)
		return
	}
	summary, err := h.krs.Summary(c.Request.Context(), studentID, termID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Select godoc
// @Summary Add a course to the draft KRS
// @Tags KRS
// @Accept json
// @Produce json
// @Param payload body dto.SelectCourseRequest true "Selection payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 423 {object} response.Envelope
// @Router /krs/selections [post]
func (h *KRSHandler) Select(c *gin.Context) {
	studentID, ok := studentFromContext(c)
	if !ok {
		return
	}
	var req dto.SelectCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid selection payload"))
		return
	}
	result, err := h.krs.Select(c.Request.Context(), studentID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Deselect godoc
// @Summary Remove a draft course from the KRS
// @Tags KRS
// @Produce json
// @Param id path string true "Record ID"
// @Success 200 {object} response.Envelope
// @Failure 423 {object} response.Envelope
// @Router /krs/selections/{id} [delete]
func (h *KRSHandler) Deselect(c *gin.Context) {
	studentID, ok := studentFromContext(c)
	if !ok {
		return
	}
	record, err := h.krs.Deselect(c.Request.Context(), studentID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Submit godoc
// @Summary Submit every draft course of the term for review
// @Tags KRS
// @Accept json
// @Produce json
// @Param payload body dto.SubmitKRSRequest true "Submit payload"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /krs/submit [post]
func (h *KRSHandler) Submit(c *gin.Context) {
	studentID, ok := studentFromContext(c)
	if !ok {
		return
	}
	var req dto.SubmitKRSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid submit payload"))
		return
	}
	result, err := h.krs.Submit(c.Request.Context(), studentID, req.TermID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

type currentTermReader interface {
	CurrentTerm(ctx context.Context) (*models.Term, error)
}

// termOrCurrent reads the termId query parameter and falls back to the current term.
func termOrCurrent(c *gin.Context, terms currentTermReader) (string, error) {
	if termID := strings.TrimSpace(c.Query("termId")); termID != "" {
		return termID, nil
	}
	term, err := terms.CurrentTerm(c.Request.Context())
	if err != nil {
		return "", err
	}
	return term.ID, nil
}
