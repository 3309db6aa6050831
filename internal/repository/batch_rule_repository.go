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

// BatchRuleRepository handles persistence of batch rules.
type BatchRuleRepository struct {
	db *sqlx.DB
}

// NewBatchRuleRepository constructs the repository.
func NewBatchRuleRepository(db *sqlx.DB) *BatchRuleRepository {
	return &BatchRuleRepository{db: db}
}

func (r *BatchRuleRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const batchRuleColumns = `id, college, course, section, semester, academic_year, batch_name, roll_start, roll_end, lateral_entry, created_at`

// Create persists a new batch rule. Rules are immutable once created.
func (r *BatchRuleRepository) Create(ctx context.Context, rule *models.BatchRule) error {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO batch_rules (id, college, course, section, semester, academic_year, batch_name, roll_start, roll_end, lateral_entry, created_at)
        VALUES (:id, :college, :course, :section, :semester, :academic_year, :batch_name, :roll_start, :roll_end, :lateral_entry, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, rule); err != nil {
		return fmt.Errorf("create batch rule: %w", err)
	}
	return nil
}

// ListForScope returns the rules for one (college, course, section, semester,
// academic year) tuple in stable creation order; the resolver picks the first
// range match.
func (r *BatchRuleRepository) ListForScope(ctx context.Context, exec sqlx.ExtContext, college, course, section string, semester int, academicYear string) ([]models.BatchRule, error) {
	query := fmt.Sprintf(`SELECT %s FROM batch_rules
        WHERE college = $1 AND course = $2 AND section = $3 AND semester = $4 AND academic_year = $5
        ORDER BY created_at, id`, batchRuleColumns)
	var rules []models.BatchRule
	if err := sqlx.SelectContext(ctx, r.exec(exec), &rules, query, college, course, section, semester, academicYear); err != nil {
		return nil, fmt.Errorf("list batch rules for scope: %w", err)
	}
	return rules, nil
}

// List returns rules matching the optional filter.
func (r *BatchRuleRepository) List(ctx context.Context, filter models.BatchRuleFilter) ([]models.BatchRule, error) {
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
	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}
	query := fmt.Sprintf(`SELECT %s FROM batch_rules%s ORDER BY created_at, id`, batchRuleColumns, clause)
	var rules []models.BatchRule
	if err := r.db.SelectContext(ctx, &rules, query, args...); err != nil {
		return nil, fmt.Errorf("list batch rules: %w", err)
	}
	return rules, nil
}

// Delete removes a rule by ID, reporting whether a row was removed.
func (r *BatchRuleRepository) Delete(ctx context.Context, id string) (bool, error) {
	const query = `DELETE FROM batch_rules WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("delete batch rule: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
