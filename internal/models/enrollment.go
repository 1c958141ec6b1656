package models

import "time"

// EnrollmentStatus represents the lifecycle of a KRS record.
type EnrollmentStatus string

// Possible enrollment statuses. StatusNone is never persisted; it marks an absent record.
const (
	EnrollmentStatusNone      EnrollmentStatus = "NONE"
	EnrollmentStatusDraft     EnrollmentStatus = "DRAFT"
	EnrollmentStatusSubmitted EnrollmentStatus = "SUBMITTED"
	EnrollmentStatusApproved  EnrollmentStatus = "APPROVED"
	EnrollmentStatusRejected  EnrollmentStatus = "REJECTED"
)

// EnrollmentRecord is one (student, term, course) KRS entry.
type EnrollmentRecord struct {
	ID         string           `db:"id" json:"id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	TermID     string           `db:"term_id" json:"term_id"`
	CourseID   string           `db:"course_id" json:"course_id"`
	Status     EnrollmentStatus `db:"status" json:"status"`
	ReviewedBy *string          `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time       `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentRecordDetail joins course data onto a record.
type EnrollmentRecordDetail struct {
	EnrollmentRecord
	CourseCode     string         `db:"course_code" json:"course_code"`
	CourseName     string         `db:"course_name" json:"course_name"`
	Credits        int            `db:"credits" json:"credits"`
	CourseCategory CourseCategory `db:"course_category" json:"course_category"`
}

// SubmissionSummary aggregates one student's records in a given status for the review queue.
type SubmissionSummary struct {
	StudentID    string    `db:"student_id" json:"student_id"`
	NIM          string    `db:"nim" json:"nim"`
	FullName     string    `db:"full_name" json:"full_name"`
	ProgramID    string    `db:"program_id" json:"program_id"`
	CourseCount  int       `db:"course_count" json:"course_count"`
	TotalCredits int       `db:"total_credits" json:"total_credits"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// SubmissionFilter constrains review queue listings.
type SubmissionFilter struct {
	TermID   string
	Status   EnrollmentStatus
	Page     int
	PageSize int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
