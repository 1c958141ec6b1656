package service

import "github.com/noah-isme/sia-krs-api/internal/models"

// ViolationReason names why a (student, course) pair may not be enrolled together.
type ViolationReason string

const (
	ReasonProgramMismatch ViolationReason = "PROGRAM_MISMATCH"
	ReasonExchangeOnly    ViolationReason = "EXCHANGE_ONLY"
)

// EligibilityViolation identifies an ineligible pair.
type EligibilityViolation struct {
	StudentID string          `json:"student_id"`
	CourseID  string          `json:"course_id"`
	Reason    ViolationReason `json:"reason"`
}

// IsProgramEligible reports whether the student's program may take the course.
// Exchange courses are open to every program.
func IsProgramEligible(student models.StudentEnrollmentContext, course models.CourseOffering) bool {
	if course.IsExchange() {
		return true
	}
	for _, program := range course.EligiblePrograms {
		if program == student.ProgramID {
			return true
		}
	}
	return false
}

// IsExchangeCompatible reports whether an exchange course is taken by an exchange participant.
func IsExchangeCompatible(student models.StudentEnrollmentContext, course models.CourseOffering) bool {
	return !course.IsExchange() || student.IsExchange
}

// IsCreditLoadAcceptable reports whether adding courseCredits keeps the load within ceiling.
// Advisory only; no transition depends on it.
func IsCreditLoadAcceptable(currentTotal, courseCredits, ceiling int) bool {
	if ceiling <= 0 {
		return true
	}
	return currentTotal+courseCredits <= ceiling
}

// CheckCrossEligibility returns every failing pair of the cross product. Exchange mismatches are
// reported ahead of program mismatches for the same pair.
func CheckCrossEligibility(students []models.StudentEnrollmentContext, courses []models.CourseOffering) []EligibilityViolation {
	var violations []EligibilityViolation
	for _, student := range students {
		for _, course := range courses {
			switch {
			case !IsExchangeCompatible(student, course):
				violations = append(violations, EligibilityViolation{StudentID: student.StudentID, CourseID: course.ID, Reason: ReasonExchangeOnly})
			case !IsProgramEligible(student, course):
				violations = append(violations, EligibilityViolation{StudentID: student.StudentID, CourseID: course.ID, Reason: ReasonProgramMismatch})
			}
		}
	}
	return violations
}

// ParityOf maps a semester number to the term parity that offers it.
func ParityOf(semester int) models.TermParity {
	if semester%2 == 1 {
		return models.TermParityOdd
	}
	return models.TermParityEven
}

// MatchesParity reports whether semester runs in term.
func MatchesParity(term models.Term, semester int) bool {
	return semester > 0 && ParityOf(semester) == term.Parity
}
