package dto

import "github.com/noah-isme/sia-krs-api/internal/models"

// BatchQuery selects the cohort a batch works on. Semester 0 disables the target-semester gate.
type BatchQuery struct {
	TermID   string `form:"termId" validate:"required"`
	Semester int    `form:"semester" validate:"omitempty,min=1,max=14"`
}

// BatchCommitRequest enrolls every student into every course as approved.
// Every student and course must sit in TargetSemester.
type BatchCommitRequest struct {
	TermID         string   `json:"termId" validate:"required"`
	TargetSemester int      `json:"targetSemester" validate:"required,min=1,max=14"`
	StudentIDs     []string `json:"studentIds" validate:"dive,required"`
	CourseIDs      []string `json:"courseIds" validate:"dive,required"`
}

// CreditWarning flags a student whose load would exceed the ceiling after a batch.
type CreditWarning struct {
	StudentID     string `json:"studentId"`
	TotalCredits  int    `json:"totalCredits"`
	CreditCeiling int    `json:"creditCeiling"`
}

// BatchCommitResponse summarises a committed batch.
type BatchCommitResponse struct {
	TermID       string          `json:"termId"`
	CreatedCount int             `json:"createdCount"`
	StudentCount int             `json:"studentCount"`
	CourseCount  int             `json:"courseCount"`
	Warnings     []CreditWarning `json:"warnings,omitempty"`
}

// CohortResponse pairs the gated students with the gated courses for a batch.
type CohortResponse struct {
	TermID   string                            `json:"termId"`
	Semester int                               `json:"semester"`
	Students []models.StudentEnrollmentContext `json:"students"`
	Courses  []models.CourseOffering           `json:"courses"`
}
