package models

import (
	"time"

	"github.com/lib/pq"
)

// CourseCategory separates regular curriculum courses from exchange (MBKM) tracks.
type CourseCategory string

const (
	CourseCategoryRegular  CourseCategory = "REGULAR"
	CourseCategoryExchange CourseCategory = "EXCHANGE"
)

// CourseOffering is a course available for KRS selection.
type CourseOffering struct {
	ID               string         `db:"id" json:"id"`
	Code             string         `db:"code" json:"code"`
	Name             string         `db:"name" json:"name"`
	Credits          int            `db:"credits" json:"credits"`
	DefaultSemester  int            `db:"default_semester" json:"default_semester"`
	Category         CourseCategory `db:"category" json:"category"`
	EligiblePrograms pq.StringArray `db:"eligible_programs" json:"eligible_programs"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

// IsExchange reports whether the course belongs to an exchange program track.
func (c CourseOffering) IsExchange() bool {
	return c.Category == CourseCategoryExchange
}

// OfferingView enriches a course with the student's selection state for a term.
type OfferingView struct {
	CourseOffering
	IsSelected      bool              `json:"is_selected"`
	RecordID        *string           `json:"record_id,omitempty"`
	Status          *EnrollmentStatus `json:"status,omitempty"`
	ProgramEligible bool              `json:"program_eligible"`
}
