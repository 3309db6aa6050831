package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-exit-api/internal/models"
	appErrors "github.com/noah-isme/campus-exit-api/pkg/errors"
)

type batchRuleStoreStub struct {
	created *models.BatchRule
	rules   []models.BatchRule
	deleted bool
}

func (s *batchRuleStoreStub) Create(ctx context.Context, rule *models.BatchRule) error {
	rule.ID = "rule-1"
	s.created = rule
	return nil
}

func (s *batchRuleStoreStub) List(ctx context.Context, filter models.BatchRuleFilter) ([]models.BatchRule, error) {
	return s.rules, nil
}

func (s *batchRuleStoreStub) Delete(ctx context.Context, id string) (bool, error) {
	return s.deleted, nil
}

type assignmentStoreStub struct {
	created     *models.MentorAssignment
	activeCount int
	assignments []models.MentorAssignment
	assignment  *models.MentorAssignment
	removed     int64
	unlocked    bool
}

func (s *assignmentStoreStub) Create(ctx context.Context, exec sqlx.ExtContext, assignment *models.MentorAssignment) error {
	assignment.ID = "assignment-1"
	s.created = assignment
	return nil
}

func (s *assignmentStoreStub) CountActiveForScope(ctx context.Context, exec sqlx.ExtContext, college, course, section string, semester int, academicYear string) (int, error) {
	return s.activeCount, nil
}

func (s *assignmentStoreStub) List(ctx context.Context, filter models.AssignmentFilter) ([]models.MentorAssignment, error) {
	return s.assignments, nil
}

func (s *assignmentStoreStub) FindByID(ctx context.Context, id string) (*models.MentorAssignment, error) {
	if s.assignment == nil {
		return nil, sql.ErrNoRows
	}
	return s.assignment, nil
}

func (s *assignmentStoreStub) DeleteForSemester(ctx context.Context, exec sqlx.ExtContext, college, academicYear string, semester int) (int64, error) {
	return s.removed, nil
}

func (s *assignmentStoreStub) Unlock(ctx context.Context, id string) (bool, error) {
	return s.unlocked, nil
}

func newAssignmentFixture(t *testing.T) (*AssignmentService, *batchRuleStoreStub, *assignmentStoreStub, *requestFixture) {
	tx, mock := newTxProviderMock(t)
	rules := &batchRuleStoreStub{}
	assignments := &assignmentStoreStub{}
	mentors := &mentorStub{mentor: &models.Mentor{ID: "mentor-1", Name: "Prof. Iyer"}}
	service := NewAssignmentService(rules, assignments, mentors, tx, nil, nil)
	service.now = func() time.Time { return time.Date(2025, time.March, 10, 10, 0, 0, 0, time.UTC) }
	return service, rules, assignments, &requestFixture{mock: mock}
}

func TestAssignmentServiceCreateBatchRuleDefaultsAcademicYear(t *testing.T) {
	service, rules, _, _ := newAssignmentFixture(t)

	rule, err := service.CreateBatchRule(context.Background(), CreateBatchRuleRequest{
		College:   "KMIT",
		Course:    "CSE",
		Section:   "A",
		Semester:  2,
		BatchName: "B1",
		RollStart: intPtr(1),
		RollEnd:   intPtr(33),
	})
	require.NoError(t, err)
	assert.Equal(t, "2024-2025", rule.AcademicYear)
	assert.Equal(t, "B1", rules.created.BatchName)
}

func TestAssignmentServiceCreateBatchRuleRejectsInvertedRange(t *testing.T) {
	service, _, _, _ := newAssignmentFixture(t)

	_, err := service.CreateBatchRule(context.Background(), CreateBatchRuleRequest{
		College:   "KMIT",
		Course:    "CSE",
		Section:   "A",
		Semester:  2,
		BatchName: "B1",
		RollStart: intPtr(50),
		RollEnd:   intPtr(10),
	})
	assert.Equal(t, appErrors.ErrValidation.Code, errCode(t, err))
}

func TestAssignmentServiceCreateAssignmentLocksRow(t *testing.T) {
	service, _, assignments, fixture := newAssignmentFixture(t)
	fixture.mock.ExpectBegin()
	fixture.mock.ExpectCommit()

	assignment, err := service.CreateAssignment(context.Background(), CreateAssignmentRequest{
		MentorID:  "mentor-1",
		College:   "KMIT",
		Course:    "CSE",
		Section:   "A",
		Semester:  2,
		BatchName: "B1",
		CreatedBy: "admin-1",
	})
	require.NoError(t, err)
	assert.True(t, assignment.ActiveStatus)
	require.NotNil(t, assignment.LockedAt)
	require.NotNil(t, assignment.LockedBy)
	assert.Equal(t, "admin-1", *assignment.LockedBy)
	assert.NotNil(t, assignments.created)
	assert.NoError(t, fixture.mock.ExpectationsWereMet())
}

func TestAssignmentServiceCreateAssignmentScopeFull(t *testing.T) {
	service, _, assignments, fixture := newAssignmentFixture(t)
	assignments.activeCount = 2
	fixture.mock.ExpectBegin()
	fixture.mock.ExpectRollback()

	_, err := service.CreateAssignment(context.Background(), CreateAssignmentRequest{
		MentorID: "mentor-1",
		College:  "KMIT",
		Course:   "CSE",
		Section:  "A",
		Semester: 2,
	})
	assert.Equal(t, appErrors.ErrConflict.Code, errCode(t, err))
	assert.Nil(t, assignments.created)
	assert.NoError(t, fixture.mock.ExpectationsWereMet())
}

func TestAssignmentServiceCreateAssignmentUnknownMentor(t *testing.T) {
	service, _, _, _ := newAssignmentFixture(t)

	_, err := service.CreateAssignment(context.Background(), CreateAssignmentRequest{
		MentorID: "mentor-9",
		College:  "KMIT",
		Course:   "CSE",
		Section:  "A",
		Semester: 2,
	})
	assert.Equal(t, appErrors.ErrNotFound.Code, errCode(t, err))
}

func TestAssignmentServiceResetSemester(t *testing.T) {
	service, _, assignments, fixture := newAssignmentFixture(t)
	assignments.removed = 4
	fixture.mock.ExpectBegin()
	fixture.mock.ExpectCommit()

	removed, err := service.ResetSemester(context.Background(), SemesterResetRequest{
		College:  "KMIT",
		Semester: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4), removed)
	assert.NoError(t, fixture.mock.ExpectationsWereMet())
}

func TestAssignmentServiceUnlockNotLocked(t *testing.T) {
	service, _, assignments, _ := newAssignmentFixture(t)
	assignments.assignment = &models.MentorAssignment{ID: "assignment-1"}

	_, err := service.UnlockAssignment(context.Background(), "assignment-1")
	assert.Equal(t, appErrors.ErrConflict.Code, errCode(t, err))
}

func TestAssignmentServiceUnlockMissing(t *testing.T) {
	service, _, _, _ := newAssignmentFixture(t)

	_, err := service.UnlockAssignment(context.Background(), "assignment-9")
	assert.Equal(t, appErrors.ErrNotFound.Code, errCode(t, err))
}

func TestAssignmentServiceDeleteBatchRuleMissing(t *testing.T) {
	service, _, _, _ := newAssignmentFixture(t)

	err := service.DeleteBatchRule(context.Background(), "rule-9")
	assert.Equal(t, appErrors.ErrNotFound.Code, errCode(t, err))
}
