package models

import (
	"time"

	"github.com/lib/pq"
)

// HOD is a department head responsible for the final approval stage. Years
// lists the year-levels the HOD oversees (year-level = ceil(semester/2)).
type HOD struct {
	ID        string        `db:"id" json:"id"`
	Name      string        `db:"name" json:"name"`
	Phone     string        `db:"phone" json:"phone"`
	College   string        `db:"college" json:"college"`
	Course    string        `db:"course" json:"course"`
	Years     pq.Int64Array `db:"years" json:"years"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
}

// OverseesYear reports whether the HOD manages the given year-level. An empty
// year list means all years.
func (h HOD) OverseesYear(year int) bool {
	if len(h.Years) == 0 {
		return true
	}
	for _, y := range h.Years {
		if int(y) == year {
			return true
		}
	}
	return false
}

// StudentHODBinding records the administrative-oversight link between a
// student and a HOD. Bindings are created lazily during request creation when
// a dynamic college/course/year match succeeds.
type StudentHODBinding struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	HODID     string    `db:"hod_id" json:"hod_id"`
	Year      int       `db:"year" json:"year"`
	Course    string    `db:"course" json:"course"`
	College   string    `db:"college" json:"college"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
