package models

import "time"

// Student is the directory read model consumed by the workflow engine. The
// last two digits of the ID are the student's roll number within the section.
type Student struct {
	ID              string    `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	Phone           string    `db:"phone" json:"phone"`
	College         string    `db:"college" json:"college"`
	Course          string    `db:"course" json:"course"`
	Section         string    `db:"section" json:"section"`
	AdmissionYear   int       `db:"admission_year" json:"admission_year"`
	CurrentSemester int       `db:"current_semester" json:"current_semester"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// FaceRecord stores the registered face image for a user, used to enrich
// approval and guard listings.
type FaceRecord struct {
	UserID    string    `db:"user_id" json:"user_id"`
	ImageData []byte    `db:"image_data" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
