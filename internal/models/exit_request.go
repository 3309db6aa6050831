package models

import "time"

// RequestStatus is the overall lifecycle state of an exit request.
type RequestStatus string

const (
	StatusPendingMentor   RequestStatus = "PENDING_MENTOR"
	StatusPendingHOD      RequestStatus = "PENDING_HOD"
	StatusApproved        RequestStatus = "APPROVED"
	StatusRejected        RequestStatus = "REJECTED"
	StatusExitAllowed     RequestStatus = "EXIT_ALLOWED"
	StatusUnchecked       RequestStatus = "UNCHECKED"
	StatusApprovedNotLeft RequestStatus = "APPROVED_NOT_LEFT"
)

// MentorStatus tracks the mentor stage decision.
type MentorStatus string

const (
	MentorPending  MentorStatus = "PENDING"
	MentorApproved MentorStatus = "APPROVED"
	MentorRejected MentorStatus = "REJECTED"
)

// ActiveStatuses are the non-terminal states; a student may hold at most one
// request in any of them.
var ActiveStatuses = []RequestStatus{StatusPendingMentor, StatusPendingHOD, StatusApproved}

// Terminal reports whether the status admits no further transition.
func (s RequestStatus) Terminal() bool {
	switch s {
	case StatusRejected, StatusExitAllowed, StatusUnchecked, StatusApprovedNotLeft:
		return true
	}
	return false
}

// ExitRequest is a campus-exit pass request moving through the
// mentor -> HOD -> guard approval chain.
type ExitRequest struct {
	ID string `db:"id" json:"id"`

	// Snapshot captured at creation, never updated afterwards.
	StudentID     string    `db:"student_id" json:"student_id"`
	StudentName   string    `db:"student_name" json:"student_name"`
	AdmissionYear int       `db:"admission_year" json:"admission_year"`
	Semester      int       `db:"semester" json:"semester"`
	Course        string    `db:"course" json:"course"`
	Section       string    `db:"section" json:"section"`
	College       string    `db:"college" json:"college"`
	Reason        string    `db:"reason" json:"reason"`
	RequestTime   time.Time `db:"request_time" json:"request_time"`
	AcademicYear  string    `db:"academic_year" json:"academic_year"`
	BatchName     string    `db:"batch_name" json:"batch_name"`

	// Mentor stage.
	MentorID              string       `db:"mentor_id" json:"mentor_id"`
	MentorName            string       `db:"mentor_name" json:"mentor_name"`
	MentorStatus          MentorStatus `db:"mentor_status" json:"mentor_status"`
	MentorRemark          *string      `db:"mentor_remark" json:"mentor_remark,omitempty"`
	MentorParentContacted *bool        `db:"mentor_parent_contacted" json:"mentor_parent_contacted,omitempty"`
	MentorActionTime      *time.Time   `db:"mentor_action_time" json:"mentor_action_time,omitempty"`

	// HOD stage.
	HODID         *string    `db:"hod_id" json:"hod_id,omitempty"`
	HODName       *string    `db:"hod_name" json:"hod_name,omitempty"`
	HODActionTime *time.Time `db:"hod_action_time" json:"hod_action_time,omitempty"`
	ApprovalTime  *time.Time `db:"approval_time" json:"approval_time,omitempty"`
	RejectionTime *time.Time `db:"rejection_time" json:"rejection_time,omitempty"`

	// Guard stage.
	ExitMarkTime *time.Time `db:"exit_mark_time" json:"exit_mark_time,omitempty"`

	Status RequestStatus `db:"status" json:"status"`
}

// ExitRequestDetail is an ExitRequest enriched with the stored face image for
// approval and guard listings. The face is best-effort; nil when absent.
type ExitRequestDetail struct {
	ExitRequest
	StudentFace *string `json:"student_face,omitempty"`
}
