package models

import "time"

// MentorAssignment binds a mentor to a (college, course, section, semester,
// academic year) scope, optionally narrowed by a roll range. Assignments are
// locked on creation and immutable mid-semester; only a privileged unlock
// clears the lock.
type MentorAssignment struct {
	ID           string    `db:"id" json:"id"`
	MentorID     string    `db:"mentor_id" json:"mentor_id"`
	College      string    `db:"college" json:"college"`
	Course       string    `db:"course" json:"course"`
	Section      string    `db:"section" json:"section"`
	BatchName    string    `db:"batch_name" json:"batch_name"`
	Semester     int       `db:"semester" json:"semester"`
	AcademicYear string    `db:"academic_year" json:"academic_year"`
	ActiveStatus bool      `db:"active_status" json:"active_status"`
	RollStart    *int      `db:"roll_start" json:"roll_start,omitempty"`
	RollEnd      *int      `db:"roll_end" json:"roll_end,omitempty"`
	LateralEntry *bool     `db:"lateral_entry" json:"lateral_entry,omitempty"`
	LockedAt     *time.Time `db:"locked_at" json:"locked_at,omitempty"`
	LockedBy     *string    `db:"locked_by" json:"locked_by,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// ContainsRoll mirrors BatchRule range semantics for assignment rows.
func (a MentorAssignment) ContainsRoll(roll *int) bool {
	if roll == nil {
		return true
	}
	if a.RollStart != nil && *roll < *a.RollStart {
		return false
	}
	if a.RollEnd != nil && *roll > *a.RollEnd {
		return false
	}
	return true
}

// AssignmentFilter narrows mentor assignment listings.
type AssignmentFilter struct {
	College      string
	Course       string
	Section      string
	Semester     int
	AcademicYear string
	MentorID     string
	ActiveOnly   bool
}
