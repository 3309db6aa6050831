package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-exit-api/internal/models"
	appErrors "github.com/noah-isme/campus-exit-api/pkg/errors"
)

type txProviderMock struct {
	db *sqlx.DB
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb}, mock
}

type requestRepoStub struct {
	hasActive      bool
	todayCount     int
	history        []time.Time
	countedSince   time.Time
	overdueCount   int64
	overdueErr     error
	created        *models.ExitRequest
	record         *models.ExitRequest
	mentorAffected int64
	hodAffected    int64
	exitAffected   int64
	deleteAffected int64
	approvedList   []models.ExitRequest
	sweepCalls     int
}

func (s *requestRepoStub) Create(ctx context.Context, exec sqlx.ExtContext, req *models.ExitRequest) error {
	req.ID = "req-1"
	s.created = req
	return nil
}

func (s *requestRepoStub) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.ExitRequest, error) {
	if s.record == nil {
		return nil, sql.ErrNoRows
	}
	clone := *s.record
	return &clone, nil
}

func (s *requestRepoStub) HasActive(ctx context.Context, exec sqlx.ExtContext, studentID string) (bool, error) {
	return s.hasActive, nil
}

func (s *requestRepoStub) CountSince(ctx context.Context, exec sqlx.ExtContext, studentID string, since time.Time) (int, error) {
	s.countedSince = since
	if s.history != nil {
		count := 0
		for _, at := range s.history {
			if !at.Before(since) {
				count++
			}
		}
		return count, nil
	}
	return s.todayCount, nil
}

func (s *requestRepoStub) MarkMentorApproved(ctx context.Context, exec sqlx.ExtContext, id, mentorID string, remark *string, parentContacted *bool, at time.Time) (int64, error) {
	if s.mentorAffected > 0 && s.record != nil {
		s.record.Status = models.StatusPendingHOD
		s.record.MentorStatus = models.MentorApproved
		s.record.MentorRemark = remark
		s.record.MentorActionTime = &at
	}
	return s.mentorAffected, nil
}

func (s *requestRepoStub) MarkMentorRejected(ctx context.Context, exec sqlx.ExtContext, id, mentorID string, remark *string, at time.Time) (int64, error) {
	if s.mentorAffected > 0 && s.record != nil {
		s.record.Status = models.StatusRejected
		s.record.MentorStatus = models.MentorRejected
	}
	return s.mentorAffected, nil
}

func (s *requestRepoStub) MarkHODDecision(ctx context.Context, exec sqlx.ExtContext, id, hodID, hodName string, approve bool, at time.Time) (int64, error) {
	if s.hodAffected > 0 && s.record != nil {
		if approve {
			s.record.Status = models.StatusApproved
			s.record.ApprovalTime = &at
		} else {
			s.record.Status = models.StatusRejected
		}
		s.record.HODID = &hodID
		s.record.HODName = &hodName
	}
	return s.hodAffected, nil
}

func (s *requestRepoStub) MarkExit(ctx context.Context, exec sqlx.ExtContext, id string, at time.Time) (int64, error) {
	if s.exitAffected > 0 && s.record != nil {
		s.record.Status = models.StatusExitAllowed
		s.record.ExitMarkTime = &at
	}
	return s.exitAffected, nil
}

func (s *requestRepoStub) DeletePending(ctx context.Context, exec sqlx.ExtContext, id, studentID string) (int64, error) {
	return s.deleteAffected, nil
}

func (s *requestRepoStub) MarkOverdue(ctx context.Context, exec sqlx.ExtContext, before time.Time) (int64, error) {
	s.sweepCalls++
	return s.overdueCount, s.overdueErr
}

func (s *requestRepoStub) ListPendingForMentor(ctx context.Context, mentorID string) ([]models.ExitRequest, error) {
	return s.approvedList, nil
}

func (s *requestRepoStub) ListPendingForHOD(ctx context.Context, hod *models.HOD) ([]models.ExitRequest, error) {
	return s.approvedList, nil
}

func (s *requestRepoStub) ListTodayForStudent(ctx context.Context, studentID string, dayStart time.Time) ([]models.ExitRequest, error) {
	return s.approvedList, nil
}

func (s *requestRepoStub) ListByStudent(ctx context.Context, studentID string) ([]models.ExitRequest, error) {
	return s.approvedList, nil
}

func (s *requestRepoStub) ListByHOD(ctx context.Context, hodID string) ([]models.ExitRequest, error) {
	return s.approvedList, nil
}

func (s *requestRepoStub) ListApprovedForCollege(ctx context.Context, college string, dayStart time.Time) ([]models.ExitRequest, error) {
	return s.approvedList, nil
}

func (s *requestRepoStub) ListForCollegeBetween(ctx context.Context, college string, from, to time.Time) ([]models.ExitRequest, error) {
	return s.approvedList, nil
}

func (s *requestRepoStub) ListAll(ctx context.Context) ([]models.ExitRequest, error) {
	return s.approvedList, nil
}

type studentStub struct {
	student *models.Student
	gotExec sqlx.ExtContext
}

func (s *studentStub) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Student, error) {
	s.gotExec = exec
	if s.student == nil || s.student.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.student, nil
}

type mentorStub struct {
	mentor *models.Mentor
}

func (s *mentorStub) FindByID(ctx context.Context, id string) (*models.Mentor, error) {
	if s.mentor == nil || s.mentor.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.mentor, nil
}

type hodStub struct {
	hod            *models.HOD
	bindings       []models.StudentHODBinding
	match          *models.HOD
	createdBinding *models.StudentHODBinding
}

func (s *hodStub) FindByID(ctx context.Context, id string) (*models.HOD, error) {
	if s.hod == nil || s.hod.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.hod, nil
}

func (s *hodStub) FindMatch(ctx context.Context, exec sqlx.ExtContext, college, course string, year int) (*models.HOD, error) {
	if s.match == nil {
		return nil, sql.ErrNoRows
	}
	return s.match, nil
}

func (s *hodStub) BindingsForStudent(ctx context.Context, exec sqlx.ExtContext, studentID string) ([]models.StudentHODBinding, error) {
	return s.bindings, nil
}

func (s *hodStub) CreateBinding(ctx context.Context, exec sqlx.ExtContext, binding *models.StudentHODBinding) error {
	s.createdBinding = binding
	return nil
}

type batchRuleStub struct {
	rules   []models.BatchRule
	gotExec sqlx.ExtContext
}

func (s *batchRuleStub) ListForScope(ctx context.Context, exec sqlx.ExtContext, college, course, section string, semester int, academicYear string) ([]models.BatchRule, error) {
	s.gotExec = exec
	return s.rules, nil
}

type assignmentStub struct {
	assignments []models.MentorAssignment
	gotExec     sqlx.ExtContext
}

func (s *assignmentStub) ListForScope(ctx context.Context, exec sqlx.ExtContext, college, course, section string, semester int, academicYear string) ([]models.MentorAssignment, error) {
	s.gotExec = exec
	return s.assignments, nil
}

type faceStub struct {
	faces map[string][]byte
}

func (s *faceStub) FindByUser(ctx context.Context, userID string) (*models.FaceRecord, error) {
	data, ok := s.faces[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.FaceRecord{UserID: userID, ImageData: data}, nil
}

type cacheStub struct {
	values      map[string][]byte
	invalidated []string
}

func (s *cacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := s.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (s *cacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if s.values == nil {
		s.values = map[string][]byte{}
	}
	s.values[key] = raw
	return nil
}

func (s *cacheStub) DeleteByPattern(ctx context.Context, pattern string) error {
	s.invalidated = append(s.invalidated, pattern)
	delete(s.values, pattern)
	return nil
}

type requestFixture struct {
	service *RequestService
	repo    *requestRepoStub
	hods    *hodStub
	cache   *cacheStub
	mock    sqlmock.Sqlmock
	now     time.Time
}

func newRequestFixture(t *testing.T, mutate func(*requestFixture, *RequestServiceDeps)) *requestFixture {
	tx, mock := newTxProviderMock(t)
	now := time.Date(2025, time.March, 10, 10, 0, 0, 0, time.UTC)

	fixture := &requestFixture{
		repo: &requestRepoStub{},
		hods: &hodStub{
			hod: &models.HOD{ID: "hod-1", Name: "Dr. Rao", College: "KMIT", Course: "CSE"},
			bindings: []models.StudentHODBinding{
				{StudentID: "245522733096", HODID: "hod-1"},
			},
		},
		cache: &cacheStub{values: map[string][]byte{}},
		mock:  mock,
		now:   now,
	}

	deps := RequestServiceDeps{
		Requests: fixture.repo,
		Students: &studentStub{student: &models.Student{
			ID:              "245522733096",
			Name:            "Asha",
			College:         "KMIT",
			Course:          "CSE",
			Section:         "A",
			AdmissionYear:   2024,
			CurrentSemester: 2,
		}},
		Mentors:     &mentorStub{mentor: &models.Mentor{ID: "mentor-1", Name: "Prof. Iyer"}},
		HODs:        fixture.hods,
		BatchRules:  &batchRuleStub{rules: []models.BatchRule{{BatchName: "B3", RollStart: intPtr(67), RollEnd: intPtr(99)}}},
		Assignments: &assignmentStub{assignments: []models.MentorAssignment{{MentorID: "mentor-1", ActiveStatus: true, BatchName: "B3", RollStart: intPtr(67), RollEnd: intPtr(99)}}},
		Faces:       &faceStub{faces: map[string][]byte{}},
		Cache:       fixture.cache,
		Tx:          tx,
		Now:         func() time.Time { return now },
	}
	if mutate != nil {
		mutate(fixture, &deps)
	}
	fixture.service = NewRequestService(deps)
	return fixture
}

func errCode(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	return appErrors.FromError(err).Code
}

func TestRequestServiceCreateSuccess(t *testing.T) {
	fixture := newRequestFixture(t, nil)
	fixture.mock.ExpectBegin()
	fixture.mock.ExpectCommit()

	record, err := fixture.service.Create(context.Background(), CreateExitRequest{
		StudentID: "245522733096",
		Reason:    "family function",
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusPendingMentor, record.Status)
	assert.Equal(t, models.MentorPending, record.MentorStatus)
	assert.Equal(t, "B3", record.BatchName)
	assert.Equal(t, "mentor-1", record.MentorID)
	assert.Equal(t, "Prof. Iyer", record.MentorName)
	assert.Equal(t, "2024-2025", record.AcademicYear)
	assert.Equal(t, 2, record.Semester)
	assert.Equal(t, fixture.now, record.RequestTime)
	assert.Equal(t, 1, fixture.repo.sweepCalls)
	assert.NoError(t, fixture.mock.ExpectationsWereMet())
}

func TestRequestServiceCreateRejectsSecondActive(t *testing.T) {
	fixture := newRequestFixture(t, func(f *requestFixture, deps *RequestServiceDeps) {
		f.repo.hasActive = true
	})
	fixture.mock.ExpectBegin()
	fixture.mock.ExpectRollback()

	_, err := fixture.service.Create(context.Background(), CreateExitRequest{
		StudentID: "245522733096",
		Reason:    "family function",
	})
	assert.Equal(t, appErrors.ErrConflict.Code, errCode(t, err))
	assert.Nil(t, fixture.repo.created)
	assert.NoError(t, fixture.mock.ExpectationsWereMet())
}

func TestRequestServiceCreateEnforcesDailyCap(t *testing.T) {
	fixture := newRequestFixture(t, func(f *requestFixture, deps *RequestServiceDeps) {
		f.repo.todayCount = 3
	})
	fixture.mock.ExpectBegin()
	fixture.mock.ExpectRollback()

	_, err := fixture.service.Create(context.Background(), CreateExitRequest{
		StudentID: "245522733096",
		Reason:    "family function",
	})
	assert.Equal(t, appErrors.ErrRateLimited.Code, errCode(t, err))
	assert.NoError(t, fixture.mock.ExpectationsWereMet())
}

func TestRequestServiceCreateNoBatchRule(t *testing.T) {
	fixture := newRequestFixture(t, func(f *requestFixture, deps *RequestServiceDeps) {
		deps.BatchRules = &batchRuleStub{rules: []models.BatchRule{
			{BatchName: "B1", RollStart: intPtr(1), RollEnd: intPtr(33)},
		}}
	})
	fixture.mock.ExpectBegin()
	fixture.mock.ExpectRollback()

	_, err := fixture.service.Create(context.Background(), CreateExitRequest{
		StudentID: "245522733096",
		Reason:    "family function",
	})
	assert.Equal(t, appErrors.ErrNotFound.Code, errCode(t, err))
	assert.NoError(t, fixture.mock.ExpectationsWereMet())
}

func TestRequestServiceCreateNoMentorAssignment(t *testing.T) {
	fixture := newRequestFixture(t, func(f *requestFixture, deps *RequestServiceDeps) {
		deps.Assignments = &assignmentStub{}
	})
	fixture.mock.ExpectBegin()
	fixture.mock.ExpectRollback()

	_, err := fixture.service.Create(context.Background(), CreateExitRequest{
		StudentID: "245522733096",
		Reason:    "family function",
	})
	assert.Equal(t, appErrors.ErrNotFound.Code, errCode(t, err))
	assert.NoError(t, fixture.mock.ExpectationsWereMet())
}

func TestRequestServiceCreateReadsSnapshotsInTransaction(t *testing.T) {
	var (
		students *studentStub
		rules    *batchRuleStub
		assigns  *assignmentStub
	)
	fixture := newRequestFixture(t, func(f *requestFixture, deps *RequestServiceDeps) {
		students = deps.Students.(*studentStub)
		rules = deps.BatchRules.(*batchRuleStub)
		assigns = deps.Assignments.(*assignmentStub)
	})
	fixture.mock.ExpectBegin()
	fixture.mock.ExpectCommit()

	_, err := fixture.service.Create(context.Background(), CreateExitRequest{
		StudentID: "245522733096",
		Reason:    "family function",
	})
	require.NoError(t, err)

	// The directory snapshot and both resolution reads must run on the same
	// transaction as the insert, or a concurrent semester reset could strand
	// the request on a deleted assignment.
	assert.NotNil(t, students.gotExec)
	assert.NotNil(t, rules.gotExec)
	assert.NotNil(t, assigns.gotExec)
	assert.NoError(t, fixture.mock.ExpectationsWereMet())
}

func TestRequestServiceDailyCapWindowStartsAtMidnight(t *testing.T) {
	fixture := newRequestFixture(t, nil)
	fixture.mock.ExpectBegin()
	fixture.mock.ExpectCommit()

	_, err := fixture.service.Create(context.Background(), CreateExitRequest{
		StudentID: "245522733096",
		Reason:    "family function",
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC), fixture.repo.countedSince)
	assert.Equal(t, StartOfDay(fixture.now), fixture.repo.countedSince)
}

func TestRequestServiceDailyCapIgnoresYesterday(t *testing.T) {
	fixture := newRequestFixture(t, func(f *requestFixture, deps *RequestServiceDeps) {
		f.repo.history = []time.Time{
			time.Date(2025, time.March, 9, 9, 0, 0, 0, time.UTC),
			time.Date(2025, time.March, 9, 12, 0, 0, 0, time.UTC),
			time.Date(2025, time.March, 9, 23, 59, 0, 0, time.UTC),
		}
	})
	fixture.mock.ExpectBegin()
	fixture.mock.ExpectCommit()

	record, err := fixture.service.Create(context.Background(), CreateExitRequest{
		StudentID: "245522733096",
		Reason:    "family function",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingMentor, record.Status)

	fixture.repo.history = append(fixture.repo.history,
		time.Date(2025, time.March, 10, 7, 0, 0, 0, time.UTC),
		time.Date(2025, time.March, 10, 8, 0, 0, 0, time.UTC),
		time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC),
	)
	fixture.mock.ExpectBegin()
	fixture.mock.ExpectRollback()

	_, err = fixture.service.Create(context.Background(), CreateExitRequest{
		StudentID: "245522733096",
		Reason:    "family function",
	})
	assert.Equal(t, appErrors.ErrRateLimited.Code, errCode(t, err))
	assert.NoError(t, fixture.mock.ExpectationsWereMet())
}

func TestRequestServiceCreateBindsHODDynamically(t *testing.T) {
	fixture := newRequestFixture(t, func(f *requestFixture, deps *RequestServiceDeps) {
		f.hods.bindings = nil
		f.hods.match = &models.HOD{ID: "hod-2", Name: "Dr. Mehta"}
	})
	fixture.mock.ExpectBegin()
	fixture.mock.ExpectCommit()

	_, err := fixture.service.Create(context.Background(), CreateExitRequest{
		StudentID: "245522733096",
		Reason:    "family function",
	})
	require.NoError(t, err)
	require.NotNil(t, fixture.hods.createdBinding)
	assert.Equal(t, "hod-2", fixture.hods.createdBinding.HODID)
	assert.Equal(t, 1, fixture.hods.createdBinding.Year)
}

func TestRequestServiceCreateFailsWithoutHOD(t *testing.T) {
	fixture := newRequestFixture(t, func(f *requestFixture, deps *RequestServiceDeps) {
		f.hods.bindings = nil
		f.hods.match = nil
	})
	fixture.mock.ExpectBegin()
	fixture.mock.ExpectRollback()

	_, err := fixture.service.Create(context.Background(), CreateExitRequest{
		StudentID: "245522733096",
		Reason:    "family function",
	})
	assert.Equal(t, appErrors.ErrNotFound.Code, errCode(t, err))
	assert.NoError(t, fixture.mock.ExpectationsWereMet())
}

func pendingMentorRecord() *models.ExitRequest {
	return &models.ExitRequest{
		ID:           "req-1",
		StudentID:    "245522733096",
		College:      "KMIT",
		MentorID:     "mentor-1",
		MentorStatus: models.MentorPending,
		Status:       models.StatusPendingMentor,
	}
}

func TestRequestServiceMentorApprove(t *testing.T) {
	fixture := newRequestFixture(t, func(f *requestFixture, deps *RequestServiceDeps) {
		f.repo.record = pendingMentorRecord()
		f.repo.mentorAffected = 1
	})
	fixture.mock.ExpectBegin()
	fixture.mock.ExpectCommit()

	remark := "verified with parent"
	updated, err := fixture.service.MentorDecide(context.Background(), "req-1", MentorDecisionRequest{
		MentorID: "mentor-1",
		Approve:  true,
		Remark:   &remark,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingHOD, updated.Status)
	assert.Equal(t, models.MentorApproved, updated.MentorStatus)
	assert.NoError(t, fixture.mock.ExpectationsWereMet())
}

func TestRequestServiceMentorDecideWrongMentor(t *testing.T) {
	fixture := newRequestFixture(t, func(f *requestFixture, deps *RequestServiceDeps) {
		f.repo.record = pendingMentorRecord()
	})
	fixture.mock.ExpectBegin()
	fixture.mock.ExpectRollback()

	_, err := fixture.service.MentorDecide(context.Background(), "req-1", MentorDecisionRequest{
		MentorID: "mentor-9",
		Approve:  true,
	})
	assert.Equal(t, appErrors.ErrForbidden.Code, errCode(t, err))
	assert.NoError(t, fixture.mock.ExpectationsWereMet())
}

func TestRequestServiceMentorDecideRacingWriterConflicts(t *testing.T) {
	fixture := newRequestFixture(t, func(f *requestFixture, deps *RequestServiceDeps) {
		f.repo.record = pendingMentorRecord()
		f.repo.mentorAffected = 0
	})
	fixture.mock.ExpectBegin()
	fixture.mock.ExpectRollback()

	_, err := fixture.service.MentorDecide(context.Background(), "req-1", MentorDecisionRequest{
		MentorID: "mentor-1",
		Approve:  false,
	})
	assert.Equal(t, appErrors.ErrConflict.Code, errCode(t, err))
	assert.NoError(t, fixture.mock.ExpectationsWereMet())
}

func TestRequestServiceHODApproveInvalidatesGuardCache(t *testing.T) {
	fixture := newRequestFixture(t, func(f *requestFixture, deps *RequestServiceDeps) {
		record := pendingMentorRecord()
		record.Status = models.StatusPendingHOD
		record.MentorStatus = models.MentorApproved
		f.repo.record = record
		f.repo.hodAffected = 1
	})
	fixture.mock.ExpectBegin()
	fixture.mock.ExpectCommit()

	updated, err := fixture.service.HODDecide(context.Background(), "req-1", HODDecisionRequest{
		HODID:   "hod-1",
		Approve: true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, updated.Status)
	require.NotNil(t, updated.HODID)
	assert.Equal(t, "hod-1", *updated.HODID)
	assert.Contains(t, fixture.cache.invalidated, "guard:approved:KMIT")
	assert.NoError(t, fixture.mock.ExpectationsWereMet())
}

func TestRequestServiceHODDecideNotReady(t *testing.T) {
	fixture := newRequestFixture(t, func(f *requestFixture, deps *RequestServiceDeps) {
		f.repo.record = pendingMentorRecord()
	})
	fixture.mock.ExpectBegin()
	fixture.mock.ExpectRollback()

	_, err := fixture.service.HODDecide(context.Background(), "req-1", HODDecisionRequest{
		HODID:   "hod-1",
		Approve: true,
	})
	assert.Equal(t, appErrors.ErrConflict.Code, errCode(t, err))
	assert.NoError(t, fixture.mock.ExpectationsWereMet())
}

func TestRequestServiceHODDecideIsFinal(t *testing.T) {
	fixture := newRequestFixture(t, func(f *requestFixture, deps *RequestServiceDeps) {
		record := pendingMentorRecord()
		record.Status = models.StatusPendingHOD
		record.MentorStatus = models.MentorApproved
		hodID := "hod-1"
		record.HODID = &hodID
		f.repo.record = record
	})
	fixture.mock.ExpectBegin()
	fixture.mock.ExpectRollback()

	_, err := fixture.service.HODDecide(context.Background(), "req-1", HODDecisionRequest{
		HODID:   "hod-1",
		Approve: false,
	})
	assert.Equal(t, appErrors.ErrConflict.Code, errCode(t, err))
}

func TestRequestServiceHODRejectBlocksMarkLeft(t *testing.T) {
	fixture := newRequestFixture(t, func(f *requestFixture, deps *RequestServiceDeps) {
		record := pendingMentorRecord()
		record.Status = models.StatusPendingHOD
		record.MentorStatus = models.MentorApproved
		f.repo.record = record
		f.repo.hodAffected = 1
	})
	fixture.mock.ExpectBegin()
	fixture.mock.ExpectCommit()

	updated, err := fixture.service.HODDecide(context.Background(), "req-1", HODDecisionRequest{
		HODID:   "hod-1",
		Approve: false,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, updated.Status)
	assert.Contains(t, fixture.cache.invalidated, "guard:approved:KMIT")

	fixture.mock.ExpectBegin()
	fixture.mock.ExpectRollback()
	_, err = fixture.service.MarkLeft(context.Background(), "req-1", "KMIT")
	assert.Equal(t, appErrors.ErrConflict.Code, errCode(t, err))
	assert.NoError(t, fixture.mock.ExpectationsWereMet())
}

func TestRequestServiceSweptRequestRejectsDecisions(t *testing.T) {
	fixture := newRequestFixture(t, func(f *requestFixture, deps *RequestServiceDeps) {
		record := pendingMentorRecord()
		record.Status = models.StatusUnchecked
		f.repo.record = record
	})
	fixture.mock.ExpectBegin()
	fixture.mock.ExpectRollback()
	_, err := fixture.service.MentorDecide(context.Background(), "req-1", MentorDecisionRequest{
		MentorID: "mentor-1",
		Approve:  true,
	})
	assert.Equal(t, appErrors.ErrConflict.Code, errCode(t, err))

	fixture.mock.ExpectBegin()
	fixture.mock.ExpectRollback()
	_, err = fixture.service.HODDecide(context.Background(), "req-1", HODDecisionRequest{
		HODID:   "hod-1",
		Approve: true,
	})
	assert.Equal(t, appErrors.ErrConflict.Code, errCode(t, err))
	assert.NoError(t, fixture.mock.ExpectationsWereMet())
}

func TestRequestServiceFullLifecycle(t *testing.T) {
	fixture := newRequestFixture(t, func(f *requestFixture, deps *RequestServiceDeps) {
		f.repo.mentorAffected = 1
		f.repo.hodAffected = 1
		f.repo.exitAffected = 1
	})
	for i := 0; i < 4; i++ {
		fixture.mock.ExpectBegin()
		fixture.mock.ExpectCommit()
	}

	record, err := fixture.service.Create(context.Background(), CreateExitRequest{
		StudentID: "245522733096",
		Reason:    "family function",
	})
	require.NoError(t, err)
	fixture.repo.record = record

	afterMentor, err := fixture.service.MentorDecide(context.Background(), record.ID, MentorDecisionRequest{
		MentorID: "mentor-1",
		Approve:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingHOD, afterMentor.Status)

	afterHOD, err := fixture.service.HODDecide(context.Background(), record.ID, HODDecisionRequest{
		HODID:   "hod-1",
		Approve: true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, afterHOD.Status)
	require.NotNil(t, afterHOD.ApprovalTime)

	exited, err := fixture.service.MarkLeft(context.Background(), record.ID, "KMIT")
	require.NoError(t, err)
	assert.Equal(t, models.StatusExitAllowed, exited.Status)
	require.NotNil(t, exited.ExitMarkTime)
	assert.NoError(t, fixture.mock.ExpectationsWereMet())
}

func TestRequestServiceMarkLeft(t *testing.T) {
	fixture := newRequestFixture(t, func(f *requestFixture, deps *RequestServiceDeps) {
		record := pendingMentorRecord()
		record.Status = models.StatusApproved
		f.repo.record = record
		f.repo.exitAffected = 1
	})
	fixture.mock.ExpectBegin()
	fixture.mock.ExpectCommit()

	updated, err := fixture.service.MarkLeft(context.Background(), "req-1", "KMIT")
	require.NoError(t, err)
	assert.Equal(t, models.StatusExitAllowed, updated.Status)
	require.NotNil(t, updated.ExitMarkTime)
	assert.Contains(t, fixture.cache.invalidated, "guard:approved:KMIT")
}

func TestRequestServiceMarkLeftRequiresApproval(t *testing.T) {
	fixture := newRequestFixture(t, func(f *requestFixture, deps *RequestServiceDeps) {
		record := pendingMentorRecord()
		record.Status = models.StatusPendingHOD
		f.repo.record = record
	})
	fixture.mock.ExpectBegin()
	fixture.mock.ExpectRollback()

	_, err := fixture.service.MarkLeft(context.Background(), "req-1", "KMIT")
	assert.Equal(t, appErrors.ErrConflict.Code, errCode(t, err))
}

func TestRequestServiceMarkLeftWrongGate(t *testing.T) {
	fixture := newRequestFixture(t, func(f *requestFixture, deps *RequestServiceDeps) {
		record := pendingMentorRecord()
		record.Status = models.StatusApproved
		f.repo.record = record
	})
	fixture.mock.ExpectBegin()
	fixture.mock.ExpectRollback()

	_, err := fixture.service.MarkLeft(context.Background(), "req-1", "NGIT")
	assert.Equal(t, appErrors.ErrForbidden.Code, errCode(t, err))
}

func TestRequestServiceDeletePendingOwnerOnly(t *testing.T) {
	fixture := newRequestFixture(t, func(f *requestFixture, deps *RequestServiceDeps) {
		f.repo.record = pendingMentorRecord()
	})
	fixture.mock.ExpectBegin()
	fixture.mock.ExpectRollback()

	err := fixture.service.DeletePending(context.Background(), "req-1", "someone-else")
	assert.Equal(t, appErrors.ErrForbidden.Code, errCode(t, err))
}

func TestRequestServiceDeletePendingOnlyWhileMentorPending(t *testing.T) {
	fixture := newRequestFixture(t, func(f *requestFixture, deps *RequestServiceDeps) {
		record := pendingMentorRecord()
		record.Status = models.StatusPendingHOD
		f.repo.record = record
	})
	fixture.mock.ExpectBegin()
	fixture.mock.ExpectRollback()

	err := fixture.service.DeletePending(context.Background(), "req-1", "245522733096")
	assert.Equal(t, appErrors.ErrConflict.Code, errCode(t, err))
}

func TestRequestServiceDeletePendingSuccess(t *testing.T) {
	fixture := newRequestFixture(t, func(f *requestFixture, deps *RequestServiceDeps) {
		f.repo.record = pendingMentorRecord()
		f.repo.deleteAffected = 1
	})
	fixture.mock.ExpectBegin()
	fixture.mock.ExpectCommit()

	err := fixture.service.DeletePending(context.Background(), "req-1", "245522733096")
	require.NoError(t, err)
	assert.NoError(t, fixture.mock.ExpectationsWereMet())
}

func TestRequestServiceSweepSwallowsFailure(t *testing.T) {
	fixture := newRequestFixture(t, func(f *requestFixture, deps *RequestServiceDeps) {
		f.repo.overdueErr = errors.New("db down")
	})

	demoted := fixture.service.Sweep(context.Background())
	assert.Equal(t, int64(0), demoted)
}

func TestRequestServiceApprovedForGuardCachesListing(t *testing.T) {
	fixture := newRequestFixture(t, func(f *requestFixture, deps *RequestServiceDeps) {
		f.repo.approvedList = []models.ExitRequest{
			{ID: "req-1", StudentID: "245522733096", College: "KMIT", Status: models.StatusApproved},
		}
		deps.Faces = &faceStub{faces: map[string][]byte{"245522733096": []byte("img-bytes")}}
	})

	first, err := fixture.service.ApprovedForGuard(context.Background(), "KMIT")
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.NotNil(t, first[0].StudentFace)

	// Second call must be served from the cache even after the repo empties.
	fixture.repo.approvedList = nil
	second, err := fixture.service.ApprovedForGuard(context.Background(), "KMIT")
	require.NoError(t, err)
	assert.Len(t, second, 1)
}

func TestRequestServiceFaceEnrichmentDegradesPerRecord(t *testing.T) {
	fixture := newRequestFixture(t, func(f *requestFixture, deps *RequestServiceDeps) {
		f.repo.approvedList = []models.ExitRequest{
			{ID: "req-1", StudentID: "245522733096"},
			{ID: "req-2", StudentID: "245522733097"},
		}
		deps.Faces = &faceStub{faces: map[string][]byte{"245522733096": []byte("img")}}
	})

	listing, err := fixture.service.PendingForMentor(context.Background(), "mentor-1")
	require.NoError(t, err)
	require.Len(t, listing, 2)
	assert.NotNil(t, listing[0].StudentFace)
	assert.Nil(t, listing[1].StudentFace)
}
