package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-exit-api/internal/models"
)

// MentorRepository handles persistence of the mentor roster.
type MentorRepository struct {
	db *sqlx.DB
}

// NewMentorRepository constructs the repository.
func NewMentorRepository(db *sqlx.DB) *MentorRepository {
	return &MentorRepository{db: db}
}

// FindByID returns a mentor by ID.
func (r *MentorRepository) FindByID(ctx context.Context, id string) (*models.Mentor, error) {
	const query = `SELECT id, name, phone, department, created_at FROM mentors WHERE id = $1`
	var mentor models.Mentor
	if err := r.db.GetContext(ctx, &mentor, query, id); err != nil {
		return nil, err
	}
	return &mentor, nil
}

// Create persists a new mentor.
func (r *MentorRepository) Create(ctx context.Context, mentor *models.Mentor) error {
	if mentor.CreatedAt.IsZero() {
		mentor.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO mentors (id, name, phone, department, created_at)
        VALUES (:id, :name, :phone, :department, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, mentor); err != nil {
		return fmt.Errorf("create mentor: %w", err)
	}
	return nil
}

// Update overwrites mutable mentor fields.
func (r *MentorRepository) Update(ctx context.Context, mentor *models.Mentor) error {
	const query = `UPDATE mentors SET name = $2, phone = $3, department = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, mentor.ID, mentor.Name, mentor.Phone, mentor.Department); err != nil {
		return fmt.Errorf("update mentor: %w", err)
	}
	return nil
}

// Delete removes a mentor, reporting whether a row was removed.
func (r *MentorRepository) Delete(ctx context.Context, id string) (bool, error) {
	const query = `DELETE FROM mentors WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("delete mentor: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// List returns mentors, optionally filtered by department.
func (r *MentorRepository) List(ctx context.Context, filter models.MentorFilter) ([]models.Mentor, error) {
	query := `SELECT id, name, phone, department, created_at FROM mentors`
	var args []interface{}
	if filter.Department != "" {
		query += ` WHERE department = $1`
		args = append(args, filter.Department)
	}
	query += ` ORDER BY name`
	var mentors []models.Mentor
	if err := r.db.SelectContext(ctx, &mentors, query, args...); err != nil {
		return nil, fmt.Errorf("list mentors: %w", err)
	}
	return mentors, nil
}
