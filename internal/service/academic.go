package service

import (
	"fmt"
	"strconv"
	"time"
)

// AcademicYearAt derives the academic-year label for an instant. The year
// runs June through May: June-December of year Y belong to "Y-(Y+1)",
// January-May to "(Y-1)-Y".
func AcademicYearAt(t time.Time) string {
	if t.Month() >= time.June {
		return fmt.Sprintf("%d-%d", t.Year(), t.Year()+1)
	}
	return fmt.Sprintf("%d-%d", t.Year()-1, t.Year())
}

// YearLevel converts a semester number to the student's progression year,
// ceil(semester/2).
func YearLevel(semester int) int {
	return (semester + 1) / 2
}

// StartOfDay returns local midnight for the given instant, in its location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// RollNumberFromID extracts the roll number encoded in the last two digits of
// a student ID (e.g. "245522733096" -> 96). Returns nil when the ID is too
// short or not numeric, in which case range filters match any rule.
func RollNumberFromID(id string) *int {
	if len(id) < 2 {
		return nil
	}
	roll, err := strconv.Atoi(id[len(id)-2:])
	if err != nil {
		return nil
	}
	return &roll
}
