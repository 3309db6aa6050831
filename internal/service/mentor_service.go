package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/campus-exit-api/internal/models"
	appErrors "github.com/noah-isme/campus-exit-api/pkg/errors"
)

type mentorStore interface {
	FindByID(ctx context.Context, id string) (*models.Mentor, error)
	Create(ctx context.Context, mentor *models.Mentor) error
	Update(ctx context.Context, mentor *models.Mentor) error
	Delete(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, filter models.MentorFilter) ([]models.Mentor, error)
}

type userAccountStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
}

// CreateMentorRequest is the admin payload for onboarding a mentor. The ID is
// the employee id and doubles as the login id.
type CreateMentorRequest struct {
	ID         string `json:"id" validate:"required"`
	Name       string `json:"name" validate:"required"`
	Phone      string `json:"phone" validate:"required"`
	Department string `json:"department" validate:"required"`
	College    string `json:"college" validate:"required"`
	Password   string `json:"password" validate:"required,min=6"`
}

// UpdateMentorRequest is the admin payload for editing mentor details.
type UpdateMentorRequest struct {
	Name       string `json:"name" validate:"required"`
	Phone      string `json:"phone" validate:"required"`
	Department string `json:"department" validate:"required"`
}

// MentorService administers the mentor roster and the paired login accounts.
type MentorService struct {
	mentors   mentorStore
	users     userAccountStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewMentorService constructs MentorService.
func NewMentorService(mentors mentorStore, users userAccountStore, validate *validator.Validate, logger *zap.Logger) *MentorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MentorService{mentors: mentors, users: users, validator: validate, logger: logger}
}

// Create onboards a mentor: the directory row plus a MENTOR login account
// with a bcrypt-hashed password.
func (s *MentorService) Create(ctx context.Context, req CreateMentorRequest) (*models.Mentor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid mentor payload")
	}

	if _, err := s.mentors.FindByID(ctx, req.ID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "mentor already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check mentor")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	mentor := &models.Mentor{
		ID:         req.ID,
		Name:       req.Name,
		Phone:      req.Phone,
		Department: req.Department,
	}
	if err := s.mentors.Create(ctx, mentor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create mentor")
	}

	user := &models.User{
		ID:           req.ID,
		PasswordHash: string(hash),
		FullName:     req.Name,
		Role:         models.RoleMentor,
		College:      req.College,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if _, rollbackErr := s.mentors.Delete(ctx, mentor.ID); rollbackErr != nil {
			s.logger.Error("failed to remove mentor after login creation failure",
				zap.String("mentor_id", mentor.ID), zap.Error(rollbackErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create mentor login")
	}

	s.logger.Info("mentor onboarded", zap.String("mentor_id", mentor.ID), zap.String("department", mentor.Department))
	return mentor, nil
}

// Update edits mutable mentor details.
func (s *MentorService) Update(ctx context.Context, id string, req UpdateMentorRequest) (*models.Mentor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid mentor payload")
	}

	mentor, err := s.mentors.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "mentor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mentor")
	}

	mentor.Name = req.Name
	mentor.Phone = req.Phone
	mentor.Department = req.Department
	if err := s.mentors.Update(ctx, mentor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update mentor")
	}
	return mentor, nil
}

// Delete offboards a mentor and removes the login account. Historic requests
// keep their mentor snapshot fields.
func (s *MentorService) Delete(ctx context.Context, id string) error {
	removed, err := s.mentors.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete mentor")
	}
	if !removed {
		return appErrors.Clone(appErrors.ErrNotFound, "mentor not found")
	}
	if err := s.users.Delete(ctx, id); err != nil {
		s.logger.Warn("failed to remove mentor login", zap.String("mentor_id", id), zap.Error(err))
	}
	return nil
}

// List returns mentors, optionally filtered by department.
func (s *MentorService) List(ctx context.Context, filter models.MentorFilter) ([]models.Mentor, error) {
	mentors, err := s.mentors.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list mentors")
	}
	return mentors, nil
}

// Get returns one mentor.
func (s *MentorService) Get(ctx context.Context, id string) (*models.Mentor, error) {
	mentor, err := s.mentors.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "mentor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mentor")
	}
	return mentor, nil
}
