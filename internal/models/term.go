package models

import (
	"strconv"
	"strings"
	"time"
)

// TermParity marks whether a term runs the odd or even half of the academic year.
type TermParity string

const (
	TermParityOdd  TermParity = "ODD"
	TermParityEven TermParity = "EVEN"
)

// Term models an academic term (semester offering) within the institution calendar.
type Term struct {
	ID           string     `db:"id" json:"id"`
	Name         string     `db:"name" json:"name"`
	AcademicYear string     `db:"academic_year" json:"academic_year"`
	Parity       TermParity `db:"parity" json:"parity"`
	IsCurrent    bool       `db:"is_current" json:"is_current"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// StartYear returns the first calendar year of AcademicYear ("2024/2025" -> 2024), or 0 when unparsable.
func (t Term) StartYear() int {
	raw := strings.TrimSpace(t.AcademicYear)
	if idx := strings.IndexAny(raw, "/-"); idx >= 0 {
		raw = raw[:idx]
	}
	year, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return year
}

// IsOdd reports whether the term runs odd-semester curricula.
func (t Term) IsOdd() bool {
	return t.Parity == TermParityOdd
}
