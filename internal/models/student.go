package models

// StudentEnrollmentContext is the directory view of a student used by enrollment decisions.
type StudentEnrollmentContext struct {
	StudentID  string `db:"id" json:"student_id"`
	NIM        string `db:"nim" json:"nim"`
	FullName   string `db:"full_name" json:"full_name"`
	ProgramID  string `db:"program_id" json:"program_id"`
	EntryYear  int    `db:"entry_year" json:"entry_year"`
	Active     bool   `db:"active" json:"active"`
	IsExchange bool   `db:"is_exchange" json:"is_exchange"`
	Semester   int    `db:"-" json:"semester"`
}

// DeriveSemester computes the student's semester number for term from the entry cohort.
// Returns 0 when the term year cannot be determined or precedes the cohort.
func DeriveSemester(entryYear int, term Term) int {
	start := term.StartYear()
	if start == 0 || entryYear == 0 || start < entryYear {
		return 0
	}
	semester := (start - entryYear) * 2
	if term.IsOdd() {
		return semester + 1
	}
	return semester + 2
}
