package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

const uniqueViolation = pq.ErrorCode("23505")

var (
	// ErrDuplicate matches every *DuplicateError.
	ErrDuplicate = errors.New("duplicate krs record")
	// ErrNotDraft is returned when a record left DRAFT before a student-side mutation ran.
	ErrNotDraft = errors.New("record is not in draft")
	// ErrTermLocked is returned when the student's term selection already left DRAFT.
	ErrTermLocked = errors.New("term selection is locked")
)

// DuplicateError reports a (student, term, course) uniqueness violation.
// Fields are empty when the driver did not report the conflicting key.
type DuplicateError struct {
	StudentID string
	TermID    string
	CourseID  string
	Err       error
}

func (e *DuplicateError) Error() string {
	if e.StudentID == "" {
		return "duplicate krs record"
	}
	return fmt.Sprintf("duplicate krs record (student %s, term %s, course %s)", e.StudentID, e.TermID, e.CourseID)
}

func (e *DuplicateError) Unwrap() error { return e.Err }

// Is lets callers match with errors.Is(err, ErrDuplicate).
func (e *DuplicateError) Is(target error) bool { return target == ErrDuplicate }

func isUniqueViolation(err error) (*pq.Error, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return pqErr, true
	}
	return nil, false
}

// duplicateFromPQ parses "Key (student_id, term_id, course_id)=(a, b, c) already exists.".
func duplicateFromPQ(pqErr *pq.Error) *DuplicateError {
	dup := &DuplicateError{Err: pqErr}
	detail := pqErr.Detail
	start := strings.Index(detail, ")=(")
	if start < 0 {
		return dup
	}
	rest := detail[start+3:]
	end := strings.Index(rest, ")")
	if end < 0 {
		return dup
	}
	values := strings.Split(rest[:end], ",")
	if len(values) != 3 {
		return dup
	}
	dup.StudentID = strings.TrimSpace(values[0])
	dup.TermID = strings.TrimSpace(values[1])
	dup.CourseID = strings.TrimSpace(values[2])
	return dup
}
