package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sia-krs-api/internal/dto"
	"github.com/noah-isme/sia-krs-api/internal/middleware"
	"github.com/noah-isme/sia-krs-api/internal/models"
	appErrors "github.com/noah-isme/sia-krs-api/pkg/errors"
)

type krsServiceMock struct {
	selectResp  *dto.SelectCourseResponse
	selectErr   error
	deselectErr error
	submitResp  *dto.TransitionResponse
	submitErr   error
	summaryResp *dto.KRSSummary

	lastStudent string
	lastTerm    string
	lastRecord  string
	lastSelect  dto.SelectCourseRequest
}

func (m *krsServiceMock) Select(ctx context.Context, studentID string, req dto.SelectCourseRequest) (*dto.SelectCourseResponse, error) {
	m.lastStudent = studentID
	m.lastSelect = req
	return m.selectResp, m.selectErr
}

func (m *krsServiceMock) Deselect(ctx context.Context, studentID, recordID string) (*models.EnrollmentRecord, error) {
	m.lastStudent = studentID
	m.lastRecord = recordID
	if m.deselectErr != nil {
		return nil, m.deselectErr
	}
	return &models.EnrollmentRecord{ID: recordID, StudentID: studentID}, nil
}

func (m *krsServiceMock) Submit(ctx context.Context, studentID, termID string) (*dto.TransitionResponse, error) {
	m.lastStudent = studentID
	m.lastTerm = termID
	return m.submitResp, m.submitErr
}

func (m *krsServiceMock) Summary(ctx context.Context, studentID, termID string) (*dto.KRSSummary, error) {
	m.lastStudent = studentID
	m.lastTerm = termID
	return m.summaryResp, nil
}

type catalogMock struct {
	current     *models.Term
	currentErr  error
	offerings   []models.OfferingView
	courses     []models.CourseOffering
	lastTerm    string
	lastStudent string
	lastSem     int
	refreshed   bool
}

func (m *catalogMock) RefreshCatalog(ctx context.Context) error {
	m.refreshed = true
	return nil
}

func (m *catalogMock) CurrentTerm(ctx context.Context) (*models.Term, error) {
	return m.current, m.currentErr
}

func (m *catalogMock) ResolveOfferings(ctx context.Context, studentID, termID string) ([]models.OfferingView, error) {
	m.lastStudent = studentID
	m.lastTerm = termID
	return m.offerings, nil
}

func (m *catalogMock) ResolveCoursesForTermAndSemester(ctx context.Context, termID string, targetSemester int) ([]models.CourseOffering, error) {
	m.lastTerm = termID
	m.lastSem = targetSemester
	return m.courses, nil
}

func newStudentContext(method, target, body string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var req *http.Request
	if body == "" {
		req, _ = http.NewRequest(method, target, nil)
	} else {
		req, _ = http.NewRequest(method, target, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-a", Role: models.RoleStudent, StudentID: "student-a"})
	return c, w
}

func TestKRSHandlerSelectUsesTokenStudent(t *testing.T) {
	svc := &krsServiceMock{selectResp: &dto.SelectCourseResponse{Record: models.EnrollmentRecord{ID: "rec-1"}, TotalCredits: 3, CreditCeiling: 24}}
	handler := NewKRSHandler(svc, &catalogMock{})

	c, w := newStudentContext(http.MethodPost, "/krs/selections", `{"termId":"term-1","courseId":"course-x"}`)
	handler.Select(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "student-a", svc.lastStudent)
	assert.Equal(t, dto.SelectCourseRequest{TermID: "term-1", CourseID: "course-x"}, svc.lastSelect)

	var body map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(3), body["data"]["totalCredits"])
}

func TestKRSHandlerSelectInvalidBody(t *testing.T) {
	svc := &krsServiceMock{}
	handler := NewKRSHandler(svc, &catalogMock{})

	c, w := newStudentContext(http.MethodPost, "/krs/selections", `{"termId":`)
	handler.Select(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, svc.lastStudent)
}

func TestKRSHandlerSelectDuplicate(t *testing.T) {
	svc := &krsServiceMock{selectErr: appErrors.WithDetails(appErrors.ErrDuplicateEnrollment, "", map[string]string{"course_id": "course-x"})}
	handler := NewKRSHandler(svc, &catalogMock{})

	c, w := newStudentContext(http.MethodPost, "/krs/selections", `{"termId":"term-1","courseId":"course-x"}`)
	handler.Select(c)

	require.Equal(t, http.StatusConflict, w.Code)
	var body map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "DUPLICATE_ENROLLMENT", body["error"]["code"])
}

func TestKRSHandlerRequiresBoundStudent(t *testing.T) {
	svc := &krsServiceMock{}
	handler := NewKRSHandler(svc, &catalogMock{})

	c, w := newStudentContext(http.MethodPost, "/krs/submit", `{"termId":"term-1"}`)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})
	handler.Submit(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, svc.lastStudent)
}

func TestKRSHandlerDeselectLocked(t *testing.T) {
	svc := &krsServiceMock{deselectErr: appErrors.Clone(appErrors.ErrLockedState, "")}
	handler := NewKRSHandler(svc, &catalogMock{})

	c, w := newStudentContext(http.MethodDelete, "/krs/selections/rec-9", "")
	c.Params = gin.Params{{Key: "id", Value: "rec-9"}}
	handler.Deselect(c)

	assert.Equal(t, http.StatusLocked, w.Code)
	assert.Equal(t, "rec-9", svc.lastRecord)
}

func TestKRSHandlerSubmitEmpty(t *testing.T) {
	svc := &krsServiceMock{submitErr: appErrors.Clone(appErrors.ErrEmptySelection, "no draft records to submit")}
	handler := NewKRSHandler(svc, &catalogMock{})

	c, w := newStudentContext(http.MethodPost, "/krs/submit", `{"termId":"term-1"}`)
	handler.Submit(c)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "term-1", svc.lastTerm)
}

func TestKRSHandlerOfferingsDefaultsToCurrentTerm(t *testing.T) {
	catalog := &catalogMock{
		current:   &models.Term{ID: "term-current"},
		offerings: []models.OfferingView{{CourseOffering: models.CourseOffering{ID: "course-x"}}},
	}
	handler := NewKRSHandler(&krsServiceMock{}, catalog)

	c, w := newStudentContext(http.MethodGet, "/krs/offerings", "")
	handler.Offerings(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "term-current", catalog.lastTerm)
	assert.Equal(t, "student-a", catalog.lastStudent)
}

func TestKRSHandlerSummaryWithExplicitTerm(t *testing.T) {
	svc := &krsServiceMock{summaryResp: &dto.KRSSummary{Status: models.EnrollmentStatusDraft}}
	catalog := &catalogMock{currentErr: appErrors.Clone(appErrors.ErrNotFound, "no current term")}
	handler := NewKRSHandler(svc, catalog)

	c, w := newStudentContext(http.MethodGet, "/krs?termId=term-2", "")
	handler.Summary(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "term-2", svc.lastTerm)
}

func TestKRSHandlerSummaryWithoutCurrentTerm(t *testing.T) {
	catalog := &catalogMock{currentErr: appErrors.Clone(appErrors.ErrNotFound, "no current term")}
	handler := NewKRSHandler(&krsServiceMock{}, catalog)

	c, w := newStudentContext(http.MethodGet, "/krs", "")
	handler.Summary(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
