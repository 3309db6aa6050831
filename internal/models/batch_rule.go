package models

import "time"

// BatchRule partitions a class section's roster into named batches by an
// inclusive roll-number range. A nil bound is unbounded on that side.
type BatchRule struct {
	ID           string    `db:"id" json:"id"`
	College      string    `db:"college" json:"college"`
	Course       string    `db:"course" json:"course"`
	Section      string    `db:"section" json:"section"`
	Semester     int       `db:"semester" json:"semester"`
	AcademicYear string    `db:"academic_year" json:"academic_year"`
	BatchName    string    `db:"batch_name" json:"batch_name"`
	RollStart    *int      `db:"roll_start" json:"roll_start,omitempty"`
	RollEnd      *int      `db:"roll_end" json:"roll_end,omitempty"`
	LateralEntry *bool     `db:"lateral_entry" json:"lateral_entry,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// ContainsRoll reports whether the rule's roll range covers the given roll
// number. A nil roll number matches any rule.
func (r BatchRule) ContainsRoll(roll *int) bool {
	if roll == nil {
		return true
	}
	if r.RollStart != nil && *roll < *r.RollStart {
		return false
	}
	if r.RollEnd != nil && *roll > *r.RollEnd {
		return false
	}
	return true
}

// BatchRuleFilter narrows batch rule listings.
type BatchRuleFilter struct {
	College      string
	Course       string
	Section      string
	Semester     int
	AcademicYear string
}
