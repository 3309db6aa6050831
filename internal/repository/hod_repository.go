package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-exit-api/internal/models"
)

// HODRepository reads the HOD directory and manages student oversight bindings.
type HODRepository struct {
	db *sqlx.DB
}

// NewHODRepository constructs the repository.
func NewHODRepository(db *sqlx.DB) *HODRepository {
	return &HODRepository{db: db}
}

func (r *HODRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByID returns a HOD by ID.
func (r *HODRepository) FindByID(ctx context.Context, id string) (*models.HOD, error) {
	const query = `SELECT id, name, phone, college, course, years, created_at FROM hods WHERE id = $1`
	var hod models.HOD
	if err := r.db.GetContext(ctx, &hod, query, id); err != nil {
		return nil, err
	}
	return &hod, nil
}

// FindMatch resolves a HOD dynamically by college, course and year-level,
// the fallback used when a student has no explicit binding yet.
func (r *HODRepository) FindMatch(ctx context.Context, exec sqlx.ExtContext, college, course string, year int) (*models.HOD, error) {
	const query = `SELECT id, name, phone, college, course, years, created_at FROM hods
        WHERE college = $1 AND course = $2 AND (cardinality(COALESCE(years, '{}')) = 0 OR $3 = ANY(years))
        ORDER BY id LIMIT 1`
	var hod models.HOD
	if err := sqlx.GetContext(ctx, r.exec(exec), &hod, query, college, course, year); err != nil {
		return nil, err
	}
	return &hod, nil
}

// BindingsForStudent returns the student's oversight bindings.
func (r *HODRepository) BindingsForStudent(ctx context.Context, exec sqlx.ExtContext, studentID string) ([]models.StudentHODBinding, error) {
	const query = `SELECT id, student_id, hod_id, year, course, college, created_at
        FROM student_hod_bindings WHERE student_id = $1`
	var bindings []models.StudentHODBinding
	if err := sqlx.SelectContext(ctx, r.exec(exec), &bindings, query, studentID); err != nil {
		return nil, fmt.Errorf("list hod bindings: %w", err)
	}
	return bindings, nil
}

// CreateBinding lazily records a student-HOD oversight link.
func (r *HODRepository) CreateBinding(ctx context.Context, exec sqlx.ExtContext, binding *models.StudentHODBinding) error {
	if binding.ID == "" {
		binding.ID = uuid.NewString()
	}
	if binding.CreatedAt.IsZero() {
		binding.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO student_hod_bindings (id, student_id, hod_id, year, course, college, created_at)
        VALUES (:id, :student_id, :hod_id, :year, :course, :college, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, binding); err != nil {
		return fmt.Errorf("create hod binding: %w", err)
	}
	return nil
}
