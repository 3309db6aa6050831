package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-exit-api/internal/models"
	appErrors "github.com/noah-isme/campus-exit-api/pkg/errors"
)

const maxActiveAssignmentsPerScope = 2

type batchRuleStore interface {
	Create(ctx context.Context, rule *models.BatchRule) error
	List(ctx context.Context, filter models.BatchRuleFilter) ([]models.BatchRule, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type assignmentStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, assignment *models.MentorAssignment) error
	CountActiveForScope(ctx context.Context, exec sqlx.ExtContext, college, course, section string, semester int, academicYear string) (int, error)
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.MentorAssignment, error)
	FindByID(ctx context.Context, id string) (*models.MentorAssignment, error)
	DeleteForSemester(ctx context.Context, exec sqlx.ExtContext, college, academicYear string, semester int) (int64, error)
	Unlock(ctx context.Context, id string) (bool, error)
}

// CreateBatchRuleRequest is the admin payload for a new batch rule.
type CreateBatchRuleRequest struct {
	College      string `json:"college" validate:"required"`
	Course       string `json:"course" validate:"required"`
	Section      string `json:"section" validate:"required"`
	Semester     int    `json:"semester" validate:"required,min=1,max=12"`
	AcademicYear string `json:"academic_year"`
	BatchName    string `json:"batch_name" validate:"required"`
	RollStart    *int   `json:"roll_start" validate:"omitempty,min=0"`
	RollEnd      *int   `json:"roll_end" validate:"omitempty,min=0"`
	LateralEntry *bool  `json:"lateral_entry"`
}

// CreateAssignmentRequest is the admin payload for a new mentor assignment.
type CreateAssignmentRequest struct {
	MentorID     string `json:"mentor_id" validate:"required"`
	College      string `json:"college" validate:"required"`
	Course       string `json:"course" validate:"required"`
	Section      string `json:"section" validate:"required"`
	BatchName    string `json:"batch_name"`
	Semester     int    `json:"semester" validate:"required,min=1,max=12"`
	AcademicYear string `json:"academic_year"`
	RollStart    *int   `json:"roll_start" validate:"omitempty,min=0"`
	RollEnd      *int   `json:"roll_end" validate:"omitempty,min=0"`
	LateralEntry *bool  `json:"lateral_entry"`
	CreatedBy    string `json:"-"`
}

// SemesterResetRequest scopes the per-semester assignment purge.
type SemesterResetRequest struct {
	College      string `json:"college" validate:"required"`
	Semester     int    `json:"semester" validate:"required,min=1,max=12"`
	AcademicYear string `json:"academic_year"`
}

// AssignmentService administers batch rules and mentor assignments: the two
// configuration tables the request workflow resolves against.
type AssignmentService struct {
	batchRules  batchRuleStore
	assignments assignmentStore
	mentors     mentorReader
	tx          txProvider
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewAssignmentService constructs AssignmentService.
func NewAssignmentService(batchRules batchRuleStore, assignments assignmentStore, mentors mentorReader, tx txProvider, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		batchRules:  batchRules,
		assignments: assignments,
		mentors:     mentors,
		tx:          tx,
		validator:   validate,
		logger:      logger,
		now:         time.Now,
	}
}

// CreateBatchRule persists a new immutable batch rule. An omitted academic
// year defaults to the current one.
func (s *AssignmentService) CreateBatchRule(ctx context.Context, req CreateBatchRuleRequest) (*models.BatchRule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch rule payload")
	}
	if req.RollStart != nil && req.RollEnd != nil && *req.RollStart > *req.RollEnd {
		return nil, appErrors.Clone(appErrors.ErrValidation, "roll_start must not exceed roll_end")
	}
	if req.AcademicYear == "" {
		req.AcademicYear = AcademicYearAt(s.now())
	}

	rule := &models.BatchRule{
		College:      req.College,
		Course:       req.Course,
		Section:      req.Section,
		Semester:     req.Semester,
		AcademicYear: req.AcademicYear,
		BatchName:    req.BatchName,
		RollStart:    req.RollStart,
		RollEnd:      req.RollEnd,
		LateralEntry: req.LateralEntry,
	}
	if err := s.batchRules.Create(ctx, rule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create batch rule")
	}

	s.logger.Info("batch rule created",
		zap.String("college", rule.College),
		zap.String("course", rule.Course),
		zap.String("section", rule.Section),
		zap.Int("semester", rule.Semester),
		zap.String("batch", rule.BatchName))
	return rule, nil
}

// ListBatchRules returns rules matching the optional filter.
func (s *AssignmentService) ListBatchRules(ctx context.Context, filter models.BatchRuleFilter) ([]models.BatchRule, error) {
	rules, err := s.batchRules.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list batch rules")
	}
	return rules, nil
}

// DeleteBatchRule removes a rule.
func (s *AssignmentService) DeleteBatchRule(ctx context.Context, id string) error {
	removed, err := s.batchRules.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete batch rule")
	}
	if !removed {
		return appErrors.Clone(appErrors.ErrNotFound, "batch rule not found")
	}
	return nil
}

// CreateAssignment binds a mentor to a scope. The max-2-active-per-scope
// invariant is re-checked inside the insert transaction, and the row is
// locked on creation so it stays immutable mid-semester.
func (s *AssignmentService) CreateAssignment(ctx context.Context, req CreateAssignmentRequest) (*models.MentorAssignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	if req.RollStart != nil && req.RollEnd != nil && *req.RollStart > *req.RollEnd {
		return nil, appErrors.Clone(appErrors.ErrValidation, "roll_start must not exceed roll_end")
	}
	if req.AcademicYear == "" {
		req.AcademicYear = AcademicYearAt(s.now())
	}

	if _, err := s.mentors.FindByID(ctx, req.MentorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "mentor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mentor")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	active, countErr := s.assignments.CountActiveForScope(ctx, tx, req.College, req.Course, req.Section, req.Semester, req.AcademicYear)
	if countErr != nil {
		err = appErrors.Wrap(countErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count active assignments")
		return nil, err
	}
	if active >= maxActiveAssignmentsPerScope {
		err = appErrors.Clone(appErrors.ErrConflict, "scope already has the maximum number of active mentors")
		return nil, err
	}

	now := s.now()
	lockedBy := req.CreatedBy
	if lockedBy == "" {
		lockedBy = "system"
	}
	assignment := &models.MentorAssignment{
		MentorID:     req.MentorID,
		College:      req.College,
		Course:       req.Course,
		Section:      req.Section,
		BatchName:    req.BatchName,
		Semester:     req.Semester,
		AcademicYear: req.AcademicYear,
		ActiveStatus: true,
		RollStart:    req.RollStart,
		RollEnd:      req.RollEnd,
		LateralEntry: req.LateralEntry,
		LockedAt:     &now,
		LockedBy:     &lockedBy,
	}
	if err = s.assignments.Create(ctx, tx, assignment); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit assignment")
		return nil, err
	}

	s.logger.Info("mentor assigned",
		zap.String("mentor_id", assignment.MentorID),
		zap.String("college", assignment.College),
		zap.String("course", assignment.Course),
		zap.String("section", assignment.Section),
		zap.Int("semester", assignment.Semester))
	return assignment, nil
}

// ListAssignments returns assignments matching the optional filter.
func (s *AssignmentService) ListAssignments(ctx context.Context, filter models.AssignmentFilter) ([]models.MentorAssignment, error) {
	assignments, err := s.assignments.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return assignments, nil
}

// ResetSemester purges every assignment for a college semester so the next
// term starts from a clean roster. Returns the number of removed rows.
func (s *AssignmentService) ResetSemester(ctx context.Context, req SemesterResetRequest) (int64, error) {
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reset payload")
	}
	if req.AcademicYear == "" {
		req.AcademicYear = AcademicYearAt(s.now())
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	removed, err := s.assignments.DeleteForSemester(ctx, tx, req.College, req.AcademicYear, req.Semester)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset assignments")
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit reset")
		return 0, err
	}

	s.logger.Info("semester assignments reset",
		zap.String("college", req.College),
		zap.Int("semester", req.Semester),
		zap.String("academic_year", req.AcademicYear),
		zap.Int64("removed", removed))
	return removed, nil
}

// UnlockAssignment clears the mid-semester lock on one assignment, the only
// sanctioned way to make a locked row mutable again.
func (s *AssignmentService) UnlockAssignment(ctx context.Context, id string) (*models.MentorAssignment, error) {
	unlocked, err := s.assignments.Unlock(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unlock assignment")
	}
	if !unlocked {
		assignment, findErr := s.assignments.FindByID(ctx, id)
		if findErr != nil {
			if errors.Is(findErr, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
			}
			return nil, appErrors.Wrap(findErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
		}
		return assignment, appErrors.Clone(appErrors.ErrConflict, "assignment is not locked")
	}

	assignment, err := s.assignments.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	return assignment, nil
}
