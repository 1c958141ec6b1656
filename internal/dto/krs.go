package dto

import "github.com/noah-isme/sia-krs-api/internal/models"

// SelectCourseRequest adds a course to the student's draft KRS.
type SelectCourseRequest struct {
	TermID   string `json:"termId" validate:"required"`
	CourseID string `json:"courseId" validate:"required"`
}

// SubmitKRSRequest submits every draft record of a term.
type SubmitKRSRequest struct {
	TermID string `json:"termId" validate:"required"`
}

// ReviewKRSRequest approves or rejects a submitted KRS.
type ReviewKRSRequest struct {
	TermID string `json:"termId" validate:"required"`
}

// SelectCourseResponse returns the created draft with the credit-load advisory.
type SelectCourseResponse struct {
	Record        models.EnrollmentRecord `json:"record"`
	TotalCredits  int                     `json:"totalCredits"`
	CreditCeiling int                     `json:"creditCeiling"`
	Warnings      []string                `json:"warnings,omitempty"`
}

// TransitionResponse describes a whole-set status change.
type TransitionResponse struct {
	StudentID string                  `json:"studentId"`
	TermID    string                  `json:"termId"`
	Status    models.EnrollmentStatus `json:"status"`
	RecordIDs []string                `json:"recordIds"`
	Count     int                     `json:"count"`
}

// KRSSummary is a student's KRS for one term.
type KRSSummary struct {
	StudentID     string                          `json:"studentId"`
	TermID        string                          `json:"termId"`
	Status        models.EnrollmentStatus         `json:"status"`
	Records       []models.EnrollmentRecordDetail `json:"records"`
	TotalCredits  int                             `json:"totalCredits"`
	CreditCeiling int                             `json:"creditCeiling"`
	OverCeiling   bool                            `json:"overCeiling"`
}

// SubmissionQuery filters the admin review queue.
type SubmissionQuery struct {
	TermID   string                  `form:"termId" validate:"required"`
	Status   models.EnrollmentStatus `form:"status" validate:"omitempty,oneof=DRAFT SUBMITTED APPROVED REJECTED"`
	Page     int                     `form:"page" validate:"omitempty,min=1"`
	PageSize int                     `form:"pageSize" validate:"omitempty,min=1,max=100"`
}
