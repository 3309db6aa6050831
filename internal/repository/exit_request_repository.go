package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/campus-exit-api/internal/models"
)

// ExitRequestRepository persists exit requests. Mutating methods accept an
// optional sqlx.ExtContext so the service can scope them to one transaction;
// guarded updates return the affected row count so racing writers surface as
// conflicts instead of silent overwrites.
type ExitRequestRepository struct {
	db *sqlx.DB
}

// NewExitRequestRepository constructs the repository.
func NewExitRequestRepository(db *sqlx.DB) *ExitRequestRepository {
	return &ExitRequestRepository{db: db}
}

func (r *ExitRequestRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const exitRequestColumns = `id, student_id, student_name, admission_year, semester, course, section, college,
        reason, request_time, academic_year, batch_name,
        mentor_id, mentor_name, mentor_status, mentor_remark, mentor_parent_contacted, mentor_action_time,
        hod_id, hod_name, hod_action_time, approval_time, rejection_time, exit_mark_time, status`

// Create inserts a new request in PENDING_MENTOR state.
func (r *ExitRequestRepository) Create(ctx context.Context, exec sqlx.ExtContext, req *models.ExitRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = models.StatusPendingMentor
	}
	if req.MentorStatus == "" {
		req.MentorStatus = models.MentorPending
	}
	const query = `INSERT INTO exit_requests (id, student_id, student_name, admission_year, semester, course, section, college,
        reason, request_time, academic_year, batch_name, mentor_id, mentor_name, mentor_status, status)
        VALUES (:id, :student_id, :student_name, :admission_year, :semester, :course, :section, :college,
        :reason, :request_time, :academic_year, :batch_name, :mentor_id, :mentor_name, :mentor_status, :status)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, req); err != nil {
		return fmt.Errorf("create exit request: %w", err)
	}
	return nil
}

// FindByID returns a request by its ID.
func (r *ExitRequestRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.ExitRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM exit_requests WHERE id = $1`, exitRequestColumns)
	var req models.ExitRequest
	if err := sqlx.GetContext(ctx, r.exec(exec), &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// HasActive reports whether the student holds a request in a non-terminal state.
func (r *ExitRequestRepository) HasActive(ctx context.Context, exec sqlx.ExtContext, studentID string) (bool, error) {
	const query = `SELECT COUNT(*) FROM exit_requests WHERE student_id = $1 AND status = ANY($2)`
	var count int
	if err := sqlx.GetContext(ctx, r.exec(exec), &count, query, studentID, pq.Array(statusStrings(models.ActiveStatuses))); err != nil {
		return false, fmt.Errorf("count active requests: %w", err)
	}
	return count > 0, nil
}

// CountSince counts the student's requests created at or after the given instant.
func (r *ExitRequestRepository) CountSince(ctx context.Context, exec sqlx.ExtContext, studentID string, since time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM exit_requests WHERE student_id = $1 AND request_time >= $2`
	var count int
	if err := sqlx.GetContext(ctx, r.exec(exec), &count, query, studentID, since); err != nil {
		return 0, fmt.Errorf("count todays requests: %w", err)
	}
	return count, nil
}

// MarkMentorApproved advances a PENDING_MENTOR request to PENDING_HOD. The
// WHERE clause re-checks every guard so a replayed or racing decision affects
// zero rows.
func (r *ExitRequestRepository) MarkMentorApproved(ctx context.Context, exec sqlx.ExtContext, id, mentorID string, remark *string, parentContacted *bool, at time.Time) (int64, error) {
	const query = `UPDATE exit_requests
        SET mentor_status = $4, mentor_remark = $5, mentor_parent_contacted = $6, mentor_action_time = $7, status = $8
        WHERE id = $1 AND mentor_id = $2 AND status = $3 AND mentor_status = $9`
	res, err := r.exec(exec).ExecContext(ctx, query, id, mentorID, models.StatusPendingMentor,
		models.MentorApproved, remark, parentContacted, at, models.StatusPendingHOD, models.MentorPending)
	if err != nil {
		return 0, fmt.Errorf("mentor approve request: %w", err)
	}
	return res.RowsAffected()
}

// MarkMentorRejected terminates a PENDING_MENTOR request.
func (r *ExitRequestRepository) MarkMentorRejected(ctx context.Context, exec sqlx.ExtContext, id, mentorID string, remark *string, at time.Time) (int64, error) {
	const query = `UPDATE exit_requests
        SET mentor_status = $4, mentor_remark = $5, mentor_action_time = $6, rejection_time = $6, status = $7
        WHERE id = $1 AND mentor_id = $2 AND status = $3 AND mentor_status = $8`
	res, err := r.exec(exec).ExecContext(ctx, query, id, mentorID, models.StatusPendingMentor,
		models.MentorRejected, remark, at, models.StatusRejected, models.MentorPending)
	if err != nil {
		return 0, fmt.Errorf("mentor reject request: %w", err)
	}
	return res.RowsAffected()
}

// MarkHODDecision records the HOD verdict on a PENDING_HOD request. HOD
// decisions are final: the guard requires no prior hod_id on the row.
func (r *ExitRequestRepository) MarkHODDecision(ctx context.Context, exec sqlx.ExtContext, id, hodID, hodName string, approve bool, at time.Time) (int64, error) {
	var query string
	status := models.StatusApproved
	if approve {
		query = `UPDATE exit_requests
        SET status = $5, hod_id = $2, hod_name = $3, hod_action_time = $4, approval_time = $4
        WHERE id = $1 AND status = $6 AND mentor_status = $7 AND hod_id IS NULL`
	} else {
		status = models.StatusRejected
		query = `UPDATE exit_requests
        SET status = $5, hod_id = $2, hod_name = $3, hod_action_time = $4, rejection_time = $4
        WHERE id = $1 AND status = $6 AND mentor_status = $7 AND hod_id IS NULL`
	}
	res, err := r.exec(exec).ExecContext(ctx, query, id, hodID, hodName, at, status, models.StatusPendingHOD, models.MentorApproved)
	if err != nil {
		return 0, fmt.Errorf("hod decide request: %w", err)
	}
	return res.RowsAffected()
}

// MarkExit stamps the guard's exit mark on an APPROVED request.
func (r *ExitRequestRepository) MarkExit(ctx context.Context, exec sqlx.ExtContext, id string, at time.Time) (int64, error) {
	const query = `UPDATE exit_requests SET status = $3, exit_mark_time = $2 WHERE id = $1 AND status = $4`
	res, err := r.exec(exec).ExecContext(ctx, query, id, at, models.StatusExitAllowed, models.StatusApproved)
	if err != nil {
		return 0, fmt.Errorf("mark exit: %w", err)
	}
	return res.RowsAffected()
}

// DeletePending physically removes a student's own PENDING_MENTOR request.
func (r *ExitRequestRepository) DeletePending(ctx context.Context, exec sqlx.ExtContext, id, studentID string) (int64, error) {
	const query = `DELETE FROM exit_requests WHERE id = $1 AND student_id = $2 AND status = $3`
	res, err := r.exec(exec).ExecContext(ctx, query, id, studentID, models.StatusPendingMentor)
	if err != nil {
		return 0, fmt.Errorf("delete pending request: %w", err)
	}
	return res.RowsAffected()
}

// MarkOverdue demotes stale requests created before the given day start:
// pending stages become UNCHECKED, approved-but-not-exited becomes
// APPROVED_NOT_LEFT. Returns the total number of demoted rows.
func (r *ExitRequestRepository) MarkOverdue(ctx context.Context, exec sqlx.ExtContext, before time.Time) (int64, error) {
	target := r.exec(exec)

	const uncheckedQuery = `UPDATE exit_requests SET status = $1 WHERE request_time < $2 AND status = ANY($3)`
	res, err := target.ExecContext(ctx, uncheckedQuery, models.StatusUnchecked, before,
		pq.Array([]string{string(models.StatusPendingMentor), string(models.StatusPendingHOD)}))
	if err != nil {
		return 0, fmt.Errorf("mark overdue unchecked: %w", err)
	}
	unchecked, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	const notLeftQuery = `UPDATE exit_requests SET status = $1 WHERE request_time < $2 AND status = $3`
	res, err = target.ExecContext(ctx, notLeftQuery, models.StatusApprovedNotLeft, before, models.StatusApproved)
	if err != nil {
		return unchecked, fmt.Errorf("mark overdue not-left: %w", err)
	}
	notLeft, err := res.RowsAffected()
	if err != nil {
		return unchecked, err
	}
	return unchecked + notLeft, nil
}

// ListPendingForMentor returns the mentor's queue, newest first.
func (r *ExitRequestRepository) ListPendingForMentor(ctx context.Context, mentorID string) ([]models.ExitRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM exit_requests WHERE mentor_id = $1 AND status = $2 ORDER BY request_time DESC`, exitRequestColumns)
	var requests []models.ExitRequest
	if err := r.db.SelectContext(ctx, &requests, query, mentorID, models.StatusPendingMentor); err != nil {
		return nil, fmt.Errorf("list mentor pending requests: %w", err)
	}
	return requests, nil
}

// ListPendingForHOD returns mentor-cleared requests visible to the HOD:
// explicitly bound students merged with a dynamic college/course/year match,
// so missing bindings never hide a request.
func (r *ExitRequestRepository) ListPendingForHOD(ctx context.Context, hod *models.HOD) ([]models.ExitRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM exit_requests r
        WHERE r.status = $1 AND r.mentor_status = $2 AND r.hod_id IS NULL
        AND (EXISTS (SELECT 1 FROM student_hod_bindings b WHERE b.student_id = r.student_id AND b.hod_id = $3)
             OR (r.college = $4 AND r.course = $5 AND (cardinality(COALESCE($6::int[], '{}')) = 0 OR (r.semester + 1) / 2 = ANY($6::int[]))))
        ORDER BY r.request_time DESC`, exitRequestColumns)
	var requests []models.ExitRequest
	err := r.db.SelectContext(ctx, &requests, query,
		models.StatusPendingHOD, models.MentorApproved, hod.ID, hod.College, hod.Course, hod.Years)
	if err != nil {
		return nil, fmt.Errorf("list hod pending requests: %w", err)
	}
	return requests, nil
}

// ListTodayForStudent returns the student's requests created since dayStart.
func (r *ExitRequestRepository) ListTodayForStudent(ctx context.Context, studentID string, dayStart time.Time) ([]models.ExitRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM exit_requests WHERE student_id = $1 AND request_time >= $2 ORDER BY request_time DESC`, exitRequestColumns)
	var requests []models.ExitRequest
	if err := r.db.SelectContext(ctx, &requests, query, studentID, dayStart); err != nil {
		return nil, fmt.Errorf("list student todays requests: %w", err)
	}
	return requests, nil
}

// ListByStudent returns the student's full request history.
func (r *ExitRequestRepository) ListByStudent(ctx context.Context, studentID string) ([]models.ExitRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM exit_requests WHERE student_id = $1 ORDER BY request_time DESC`, exitRequestColumns)
	var requests []models.ExitRequest
	if err := r.db.SelectContext(ctx, &requests, query, studentID); err != nil {
		return nil, fmt.Errorf("list student requests: %w", err)
	}
	return requests, nil
}

// ListByHOD returns requests the HOD has already decided.
func (r *ExitRequestRepository) ListByHOD(ctx context.Context, hodID string) ([]models.ExitRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM exit_requests WHERE hod_id = $1 ORDER BY request_time DESC`, exitRequestColumns)
	var requests []models.ExitRequest
	if err := r.db.SelectContext(ctx, &requests, query, hodID); err != nil {
		return nil, fmt.Errorf("list hod requests: %w", err)
	}
	return requests, nil
}

// ListApprovedForCollege returns requests cleared for exit at the given
// college's gate since dayStart, for the guard desk.
func (r *ExitRequestRepository) ListApprovedForCollege(ctx context.Context, college string, dayStart time.Time) ([]models.ExitRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM exit_requests
        WHERE college = $1 AND status = $2 AND approval_time >= $3 ORDER BY approval_time DESC`, exitRequestColumns)
	var requests []models.ExitRequest
	if err := r.db.SelectContext(ctx, &requests, query, college, models.StatusApproved, dayStart); err != nil {
		return nil, fmt.Errorf("list approved for college: %w", err)
	}
	return requests, nil
}

// ListForCollegeBetween returns a college's requests within [from, to), used
// by the daily exit log export.
func (r *ExitRequestRepository) ListForCollegeBetween(ctx context.Context, college string, from, to time.Time) ([]models.ExitRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM exit_requests
        WHERE college = $1 AND request_time >= $2 AND request_time < $3 ORDER BY request_time`, exitRequestColumns)
	var requests []models.ExitRequest
	if err := r.db.SelectContext(ctx, &requests, query, college, from, to); err != nil {
		return nil, fmt.Errorf("list college requests: %w", err)
	}
	return requests, nil
}

// ListAll returns every request, newest first.
func (r *ExitRequestRepository) ListAll(ctx context.Context) ([]models.ExitRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM exit_requests ORDER BY request_time DESC`, exitRequestColumns)
	var requests []models.ExitRequest
	if err := r.db.SelectContext(ctx, &requests, query); err != nil {
		return nil, fmt.Errorf("list all requests: %w", err)
	}
	return requests, nil
}

func statusStrings(statuses []models.RequestStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
