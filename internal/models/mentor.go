package models

import "time"

// Mentor is a faculty member who screens exit requests before the HOD. The
// ID doubles as the login id (employee id).
type Mentor struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	Phone      string    `db:"phone" json:"phone"`
	Department string    `db:"department" json:"department"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// MentorFilter narrows mentor listings.
type MentorFilter struct {
	Department string
}
