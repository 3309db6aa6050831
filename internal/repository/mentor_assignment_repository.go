package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-exit-api/internal/models"
)

// MentorAssignmentRepository handles persistence of mentor assignments.
type MentorAssignmentRepository struct {
	db *sqlx.DB
}

// NewMentorAssignmentRepository constructs the repository.
func NewMentorAssignmentRepository(db *sqlx.DB) *MentorAssignmentRepository {
	return &MentorAssignmentRepository{db: db}
}

func (r *MentorAssignmentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const assignmentColumns = `id, mentor_id, college, course, section, batch_name, semester, academic_year,
        active_status, roll_start, roll_end, lateral_entry, locked_at, locked_by, created_at`

// Create persists a new assignment. The caller enforces the
// max-2-active-per-scope invariant inside the same transaction.
func (r *MentorAssignmentRepository) Create(ctx context.Context, exec sqlx.ExtContext, assignment *models.MentorAssignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO mentor_assignments (id, mentor_id, college, course, section, batch_name, semester, academic_year,
        active_status, roll_start, roll_end, lateral_entry, locked_at, locked_by, created_at)
        VALUES (:id, :mentor_id, :college, :course, :section, :batch_name, :semester, :academic_year,
        :active_status, :roll_start, :roll_end, :lateral_entry, :locked_at, :locked_by, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, assignment); err != nil {
		return fmt.Errorf("create mentor assignment: %w", err)
	}
	return nil
}

// CountActiveForScope counts active assignments within one scope.
func (r *MentorAssignmentRepository) CountActiveForScope(ctx context.Context, exec sqlx.ExtContext, college, course, section string, semester int, academicYear string) (int, error) {
	const query = `SELECT COUNT(*) FROM mentor_assignments
        WHERE college = $1 AND course = $2 AND section = $3 AND semester = $4 AND academic_year = $5 AND active_status = TRUE`
	var count int
	if err := sqlx.GetContext(ctx, r.exec(exec), &count, query, college, course, section, semester, academicYear); err != nil {
		return 0, fmt.Errorf("count active assignments: %w", err)
	}
	return count, nil
}

// ListForScope returns every assignment in one scope in stable creation order;
// the resolver applies roll-range and batch-name filtering.
func (r *MentorAssignmentRepository) ListForScope(ctx context.Context, exec sqlx.ExtContext, college, course, section string, semester int, academicYear string) ([]models.MentorAssignment, error) {
	query := fmt.Sprintf(`SELECT %s FROM mentor_assignments
        WHERE college = $1 AND course = $2 AND section = $3 AND semester = $4 AND academic_year = $5
        ORDER BY created_at, id`, assignmentColumns)
	var assignments []models.MentorAssignment
	if err := sqlx.SelectContext(ctx, r.exec(exec), &assignments, query, college, course, section, semester, academicYear); err != nil {
		return nil, fmt.Errorf("list assignments for scope: %w", err)
	}
	return assignments, nil
}

// List returns assignments matching the optional filter.
func (r *MentorAssignmentRepository) List(ctx context.Context, filter models.AssignmentFilter) ([]models.MentorAssignment, error) {
	var conditions []string
	var args []interface{}
	if filter.College != "" {
		conditions = append(conditions, fmt.Sprintf("college = $%d", len(args)+1))
		args = append(args, filter.College)
	}
	if filter.Course != "" {
		conditions = append(conditions, fmt.Sprintf("course = $%d", len(args)+1))
		args = append(args, filter.Course)
	}
	if filter.Section != "" {
		conditions = append(conditions, fmt.Sprintf("section = $%d", len(args)+1))
		args = append(args, filter.Section)
	}
	if filter.Semester > 0 {
		conditions = append(conditions, fmt.Sprintf("semester = $%d", len(args)+1))
		args = append(args, filter.Semester)
	}
	if filter.AcademicYear != "" {
		conditions = append(conditions, fmt.Sprintf("academic_year = $%d", len(args)+1))
		args = append(args, filter.AcademicYear)
	}
	if filter.MentorID != "" {
		conditions = append(conditions, fmt.Sprintf("mentor_id = $%d", len(args)+1))
		args = append(args, filter.MentorID)
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "active_status = TRUE")
	}
	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}
	query := fmt.Sprintf(`SELECT %s FROM mentor_assignments%s ORDER BY created_at, id`, assignmentColumns, clause)
	var assignments []models.MentorAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, args...); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}

// FindByID returns an assignment by its ID.
func (r *MentorAssignmentRepository) FindByID(ctx context.Context, id string) (*models.MentorAssignment, error) {
	query := fmt.Sprintf(`SELECT %s FROM mentor_assignments WHERE id = $1`, assignmentColumns)
	var assignment models.MentorAssignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// DeleteForSemester removes every assignment for a college semester, the
// explicit per-semester reset. Returns the number of removed rows.
func (r *MentorAssignmentRepository) DeleteForSemester(ctx context.Context, exec sqlx.ExtContext, college, academicYear string, semester int) (int64, error) {
	const query = `DELETE FROM mentor_assignments WHERE college = $1 AND academic_year = $2 AND semester = $3`
	res, err := r.exec(exec).ExecContext(ctx, query, college, academicYear, semester)
	if err != nil {
		return 0, fmt.Errorf("reset assignments for semester: %w", err)
	}
	return res.RowsAffected()
}

// Unlock clears the mid-semester lock, reporting whether a locked row changed.
func (r *MentorAssignmentRepository) Unlock(ctx context.Context, id string) (bool, error) {
	const query = `UPDATE mentor_assignments SET locked_at = NULL, locked_by = NULL WHERE id = $1 AND locked_at IS NOT NULL`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("unlock assignment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
