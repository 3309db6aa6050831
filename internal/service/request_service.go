package service

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-exit-api/internal/models"
	appErrors "github.com/noah-isme/campus-exit-api/pkg/errors"
)

type exitRequestRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, req *models.ExitRequest) error
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.ExitRequest, error)
	HasActive(ctx context.Context, exec sqlx.ExtContext, studentID string) (bool, error)
	CountSince(ctx context.Context, exec sqlx.ExtContext, studentID string, since time.Time) (int, error)
	MarkMentorApproved(ctx context.Context, exec sqlx.ExtContext, id, mentorID string, remark *string, parentContacted *bool, at time.Time) (int64, error)
	MarkMentorRejected(ctx context.Context, exec sqlx.ExtContext, id, mentorID string, remark *string, at time.Time) (int64, error)
	MarkHODDecision(ctx context.Context, exec sqlx.ExtContext, id, hodID, hodName string, approve bool, at time.Time) (int64, error)
	MarkExit(ctx context.Context, exec sqlx.ExtContext, id string, at time.Time) (int64, error)
	DeletePending(ctx context.Context, exec sqlx.ExtContext, id, studentID string) (int64, error)
	MarkOverdue(ctx context.Context, exec sqlx.ExtContext, before time.Time) (int64, error)
	ListPendingForMentor(ctx context.Context, mentorID string) ([]models.ExitRequest, error)
	ListPendingForHOD(ctx context.Context, hod *models.HOD) ([]models.ExitRequest, error)
	ListTodayForStudent(ctx context.Context, studentID string, dayStart time.Time) ([]models.ExitRequest, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.ExitRequest, error)
	ListByHOD(ctx context.Context, hodID string) ([]models.ExitRequest, error)
	ListApprovedForCollege(ctx context.Context, college string, dayStart time.Time) ([]models.ExitRequest, error)
	ListForCollegeBetween(ctx context.Context, college string, from, to time.Time) ([]models.ExitRequest, error)
	ListAll(ctx context.Context) ([]models.ExitRequest, error)
}

type studentReader interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Student, error)
}

type mentorReader interface {
	FindByID(ctx context.Context, id string) (*models.Mentor, error)
}

type hodDirectory interface {
	FindByID(ctx context.Context, id string) (*models.HOD, error)
	FindMatch(ctx context.Context, exec sqlx.ExtContext, college, course string, year int) (*models.HOD, error)
	BindingsForStudent(ctx context.Context, exec sqlx.ExtContext, studentID string) ([]models.StudentHODBinding, error)
	CreateBinding(ctx context.Context, exec sqlx.ExtContext, binding *models.StudentHODBinding) error
}

type batchRuleReader interface {
	ListForScope(ctx context.Context, exec sqlx.ExtContext, college, course, section string, semester int, academicYear string) ([]models.BatchRule, error)
}

type assignmentReader interface {
	ListForScope(ctx context.Context, exec sqlx.ExtContext, college, course, section string, semester int, academicYear string) ([]models.MentorAssignment, error)
}

type faceReader interface {
	FindByUser(ctx context.Context, userID string) (*models.FaceRecord, error)
}

type guardCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// CreateExitRequest is the student's request payload.
type CreateExitRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	Reason    string `json:"reason" validate:"required,min=3"`
}

// MentorDecisionRequest carries the mentor verdict.
type MentorDecisionRequest struct {
	MentorID        string  `json:"-" validate:"required"`
	Approve         bool    `json:"-"`
	Remark          *string `json:"remark"`
	ParentContacted *bool   `json:"parent_contacted"`
}

// HODDecisionRequest carries the HOD verdict.
type HODDecisionRequest struct {
	HODID   string `json:"-" validate:"required"`
	Approve bool   `json:"-"`
}

// RequestServiceDeps bundles the collaborators of the workflow orchestrator.
type RequestServiceDeps struct {
	Requests    exitRequestRepository
	Students    studentReader
	Mentors     mentorReader
	HODs        hodDirectory
	BatchRules  batchRuleReader
	Assignments assignmentReader
	Faces       faceReader
	Cache       guardCache
	Tx          txProvider
	Metrics     *MetricsService
	Validator   *validator.Validate
	Logger      *zap.Logger

	// Now supplies the engine's clock; academic year, daily cap windows and
	// sweep boundaries all derive from it so tests can pin the instant.
	Now func() time.Time

	DailyCap      int
	GuardCacheTTL time.Duration
}

// RequestService orchestrates the exit-request workflow: creation with batch
// and mentor resolution, the two approval stages, the guard exit mark, and
// the passive expiry sweep. Every mutating operation executes inside one
// transaction.
type RequestService struct {
	requests    exitRequestRepository
	students    studentReader
	mentors     mentorReader
	hods        hodDirectory
	batchRules  batchRuleReader
	assignments assignmentReader
	faces       faceReader
	cache       guardCache
	tx          txProvider
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time

	dailyCap      int
	guardCacheTTL time.Duration
}

// NewRequestService constructs RequestService.
func NewRequestService(deps RequestServiceDeps) *RequestService {
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.DailyCap <= 0 {
		deps.DailyCap = 3
	}
	if deps.GuardCacheTTL <= 0 {
		deps.GuardCacheTTL = 30 * time.Second
	}
	return &RequestService{
		requests:      deps.Requests,
		students:      deps.Students,
		mentors:       deps.Mentors,
		hods:          deps.HODs,
		batchRules:    deps.BatchRules,
		assignments:   deps.Assignments,
		faces:         deps.Faces,
		cache:         deps.Cache,
		tx:            deps.Tx,
		metrics:       deps.Metrics,
		validator:     deps.Validator,
		logger:        deps.Logger,
		now:           deps.Now,
		dailyCap:      deps.DailyCap,
		guardCacheTTL: deps.GuardCacheTTL,
	}
}

// Sweep demotes stale requests created before today's local midnight. It is
// best-effort: failures are logged and swallowed so they never abort the
// caller's primary operation.
func (s *RequestService) Sweep(ctx context.Context) int64 {
	demoted, err := s.requests.MarkOverdue(ctx, nil, StartOfDay(s.now()))
	if err != nil {
		s.logger.Warn("expiry sweep failed", zap.Error(err))
		return 0
	}
	if demoted > 0 {
		s.logger.Info("expiry sweep demoted stale requests", zap.Int64("count", demoted))
	}
	s.metrics.RecordSweep(demoted)
	return demoted
}

// Create submits a new exit request for a student. Semester comes from the
// student profile, academic year from the clock; batch and mentor resolution
// and the single-active-request and daily-cap invariants all run inside the
// same transaction that performs the insert.
func (s *RequestService) Create(ctx context.Context, req CreateExitRequest) (*models.ExitRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exit request payload")
	}

	s.Sweep(ctx)

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// The student snapshot and the batch/mentor resolution read through the
	// same transaction as the insert; a semester reset committing mid-create
	// cannot strand the request on an assignment that no longer exists.
	student, studentErr := s.students.FindByID(ctx, tx, req.StudentID)
	if studentErr != nil {
		if errors.Is(studentErr, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "student not found")
			return nil, err
		}
		err = appErrors.Wrap(studentErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		return nil, err
	}
	if student.CurrentSemester <= 0 {
		err = appErrors.Clone(appErrors.ErrPreconditionFailed, "student semester not set")
		return nil, err
	}

	now := s.now()
	academicYear := AcademicYearAt(now)
	semester := student.CurrentSemester
	roll := RollNumberFromID(student.ID)

	rules, rulesErr := s.batchRules.ListForScope(ctx, tx, student.College, student.Course, student.Section, semester, academicYear)
	if rulesErr != nil {
		err = appErrors.Wrap(rulesErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch rules")
		return nil, err
	}
	rule, ok := ResolveBatch(rules, roll)
	if !ok {
		err = appErrors.Clone(appErrors.ErrNotFound, "no batch rule found for student")
		return nil, err
	}

	assignments, assignErr := s.assignments.ListForScope(ctx, tx, student.College, student.Course, student.Section, semester, academicYear)
	if assignErr != nil {
		err = appErrors.Wrap(assignErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mentor assignments")
		return nil, err
	}
	assignment, ok := ResolveMentorAssignment(assignments, roll, rule.BatchName)
	if !ok {
		err = appErrors.Clone(appErrors.ErrNotFound, "no active mentor assignment found for student")
		return nil, err
	}

	mentor, mentorErr := s.mentors.FindByID(ctx, assignment.MentorID)
	if mentorErr != nil {
		if errors.Is(mentorErr, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "assigned mentor not found")
			return nil, err
		}
		err = appErrors.Wrap(mentorErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mentor")
		return nil, err
	}

	active, activeErr := s.requests.HasActive(ctx, tx, student.ID)
	if activeErr != nil {
		err = appErrors.Wrap(activeErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check active requests")
		return nil, err
	}
	if active {
		err = appErrors.Clone(appErrors.ErrConflict, "you already have an active request")
		return nil, err
	}

	todayCount, countErr := s.requests.CountSince(ctx, tx, student.ID, StartOfDay(now))
	if countErr != nil {
		err = appErrors.Wrap(countErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count todays requests")
		return nil, err
	}
	if todayCount >= s.dailyCap {
		err = appErrors.Clone(appErrors.ErrRateLimited, "daily request limit exceeded")
		return nil, err
	}

	if err = s.ensureHODBinding(ctx, tx, student, semester); err != nil {
		return nil, err
	}

	record := &models.ExitRequest{
		StudentID:     student.ID,
		StudentName:   student.Name,
		AdmissionYear: student.AdmissionYear,
		Semester:      semester,
		Course:        student.Course,
		Section:       student.Section,
		College:       student.College,
		Reason:        req.Reason,
		RequestTime:   now,
		AcademicYear:  academicYear,
		BatchName:     rule.BatchName,
		MentorID:      mentor.ID,
		MentorName:    mentor.Name,
		MentorStatus:  models.MentorPending,
		Status:        models.StatusPendingMentor,
	}
	if err = s.requests.Create(ctx, tx, record); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create exit request")
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit exit request")
		return nil, err
	}

	s.metrics.RecordRequestCreated()
	return record, nil
}

// ensureHODBinding guarantees administrative oversight exists for the
// student. A missing binding is resolved dynamically by college/course/year;
// persisting the resolved binding is best-effort and never aborts creation.
func (s *RequestService) ensureHODBinding(ctx context.Context, tx *sqlx.Tx, student *models.Student, semester int) error {
	bindings, err := s.hods.BindingsForStudent(ctx, tx, student.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load hod bindings")
	}
	if len(bindings) > 0 {
		return nil
	}

	year := YearLevel(semester)
	hod, err := s.hods.FindMatch(ctx, tx, student.College, student.Course, year)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "no HOD assigned to student")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve hod")
	}

	binding := &models.StudentHODBinding{
		StudentID: student.ID,
		HODID:     hod.ID,
		Year:      year,
		Course:    student.Course,
		College:   student.College,
	}
	if err := s.hods.CreateBinding(ctx, tx, binding); err != nil {
		s.logger.Warn("failed to persist hod binding", zap.String("student_id", student.ID), zap.Error(err))
	}
	return nil
}

// MentorDecide records the mentor verdict on a pending request. The guarded
// update re-checks every precondition so the second of two racing decisions
// fails with a conflict instead of overwriting the first.
func (s *RequestService) MentorDecide(ctx context.Context, requestID string, req MentorDecisionRequest) (*models.ExitRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid mentor decision payload")
	}

	s.Sweep(ctx)

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	record, err := s.loadRequest(ctx, tx, requestID)
	if err != nil {
		return nil, err
	}
	if record.MentorID != req.MentorID {
		err = appErrors.Clone(appErrors.ErrForbidden, "not authorized to act on this request")
		return nil, err
	}
	if record.Status != models.StatusPendingMentor || record.MentorStatus != models.MentorPending {
		err = appErrors.Clone(appErrors.ErrConflict, "request already processed by mentor")
		return nil, err
	}

	now := s.now()
	var affected int64
	if req.Approve {
		affected, err = s.requests.MarkMentorApproved(ctx, tx, requestID, req.MentorID, req.Remark, req.ParentContacted, now)
	} else {
		affected, err = s.requests.MarkMentorRejected(ctx, tx, requestID, req.MentorID, req.Remark, now)
	}
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record mentor decision")
		return nil, err
	}
	if affected == 0 {
		err = appErrors.Clone(appErrors.ErrConflict, "request already processed by mentor")
		return nil, err
	}

	updated, err := s.requests.FindByID(ctx, tx, requestID)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload request")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit mentor decision")
		return nil, err
	}

	s.metrics.RecordDecision("mentor", decisionLabel(req.Approve))
	return updated, nil
}

// HODDecide records the department head's final verdict. HOD decisions are
// not revocable: a request that already carries a HOD identity conflicts.
func (s *RequestService) HODDecide(ctx context.Context, requestID string, req HODDecisionRequest) (*models.ExitRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid hod decision payload")
	}

	s.Sweep(ctx)

	hod, err := s.hods.FindByID(ctx, req.HODID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "hod not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load hod")
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

	record, err := s.loadRequest(ctx, tx, requestID)
	if err != nil {
		return nil, err
	}
	if record.HODID != nil || record.Status != models.StatusPendingHOD || record.MentorStatus != models.MentorApproved {
		err = appErrors.Clone(appErrors.ErrConflict, "request not ready for HOD processing")
		return nil, err
	}

	affected, err := s.requests.MarkHODDecision(ctx, tx, requestID, hod.ID, hod.Name, req.Approve, s.now())
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record hod decision")
		return nil, err
	}
	if affected == 0 {
		err = appErrors.Clone(appErrors.ErrConflict, "request not ready for HOD processing")
		return nil, err
	}

	updated, err := s.requests.FindByID(ctx, tx, requestID)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload request")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit hod decision")
		return nil, err
	}

	s.metrics.RecordDecision("hod", decisionLabel(req.Approve))
	s.invalidateGuardCache(ctx, updated.College)
	return updated, nil
}

// MarkLeft stamps the physical exit on an approved request. Only APPROVED
// requests can be marked; the reference implementation accepted any prior
// status, which would let a guard mark unapproved students as exited.
func (s *RequestService) MarkLeft(ctx context.Context, requestID, guardCollege string) (*models.ExitRequest, error) {
	s.Sweep(ctx)

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	record, err := s.loadRequest(ctx, tx, requestID)
	if err != nil {
		return nil, err
	}
	if guardCollege != "" && record.College != guardCollege {
		err = appErrors.Clone(appErrors.ErrForbidden, "request belongs to another college gate")
		return nil, err
	}
	if record.Status != models.StatusApproved {
		err = appErrors.Clone(appErrors.ErrConflict, "request is not approved for exit")
		return nil, err
	}

	affected, err := s.requests.MarkExit(ctx, tx, requestID, s.now())
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark exit")
		return nil, err
	}
	if affected == 0 {
		err = appErrors.Clone(appErrors.ErrConflict, "request is not approved for exit")
		return nil, err
	}

	updated, err := s.requests.FindByID(ctx, tx, requestID)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload request")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit exit mark")
		return nil, err
	}

	s.metrics.RecordExitMarked()
	s.invalidateGuardCache(ctx, updated.College)
	return updated, nil
}

// DeletePending lets a student withdraw their own request while it is still
// awaiting the mentor. Deletion is physical, not a state transition.
func (s *RequestService) DeletePending(ctx context.Context, requestID, studentID string) error {
	s.Sweep(ctx)

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	record, err := s.loadRequest(ctx, tx, requestID)
	if err != nil {
		return err
	}
	if record.StudentID != studentID {
		err = appErrors.Clone(appErrors.ErrForbidden, "you cannot delete someone else's request")
		return err
	}
	if record.Status != models.StatusPendingMentor {
		err = appErrors.Clone(appErrors.ErrConflict, "only mentor-pending requests can be deleted")
		return err
	}

	affected, err := s.requests.DeletePending(ctx, tx, requestID, studentID)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete request")
		return err
	}
	if affected == 0 {
		err = appErrors.Clone(appErrors.ErrConflict, "request could not be deleted")
		return err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit request deletion")
		return err
	}
	return nil
}

// ByID returns a single request.
func (s *RequestService) ByID(ctx context.Context, requestID string) (*models.ExitRequest, error) {
	record, err := s.requests.FindByID(ctx, nil, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	return record, nil
}

// PendingForMentor lists the mentor's queue with face enrichment.
func (s *RequestService) PendingForMentor(ctx context.Context, mentorID string) ([]models.ExitRequestDetail, error) {
	requests, err := s.requests.ListPendingForMentor(ctx, mentorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list mentor requests")
	}
	return s.attachFaces(ctx, requests), nil
}

// PendingForHOD lists mentor-cleared requests visible to a HOD, merging
// explicit bindings with the dynamic college/course/year match.
func (s *RequestService) PendingForHOD(ctx context.Context, hodID string) ([]models.ExitRequestDetail, error) {
	hod, err := s.hods.FindByID(ctx, hodID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "hod not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load hod")
	}
	requests, err := s.requests.ListPendingForHOD(ctx, hod)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list hod requests")
	}
	return s.attachFaces(ctx, requests), nil
}

// TodayForStudent lists the student's requests created today.
func (s *RequestService) TodayForStudent(ctx context.Context, studentID string) ([]models.ExitRequest, error) {
	requests, err := s.requests.ListTodayForStudent(ctx, studentID, StartOfDay(s.now()))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list todays requests")
	}
	return requests, nil
}

// HistoryForStudent lists the student's full request history.
func (s *RequestService) HistoryForStudent(ctx context.Context, studentID string) ([]models.ExitRequest, error) {
	requests, err := s.requests.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list student requests")
	}
	return requests, nil
}

// DecidedByHOD lists the requests a HOD has processed.
func (s *RequestService) DecidedByHOD(ctx context.Context, hodID string) ([]models.ExitRequest, error) {
	requests, err := s.requests.ListByHOD(ctx, hodID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list hod requests")
	}
	return requests, nil
}

// All lists every request for administrators.
func (s *RequestService) All(ctx context.Context) ([]models.ExitRequest, error) {
	requests, err := s.requests.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	return requests, nil
}

// ApprovedForGuard lists today's approved requests for a college gate. The
// listing is cached briefly in Redis; staleness is bounded by the TTL and by
// invalidation on every HOD decision and exit mark.
func (s *RequestService) ApprovedForGuard(ctx context.Context, college string) ([]models.ExitRequestDetail, error) {
	key := guardCacheKey(college)
	var cached []models.ExitRequestDetail
	if s.cache != nil {
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			s.metrics.RecordCacheLookup(true)
			return cached, nil
		}
		s.metrics.RecordCacheLookup(false)
	}

	requests, err := s.requests.ListApprovedForCollege(ctx, college, StartOfDay(s.now()))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list approved requests")
	}
	details := s.attachFaces(ctx, requests)

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, details, s.guardCacheTTL); err != nil {
			s.logger.Warn("failed to cache guard listing", zap.String("college", college), zap.Error(err))
		}
	}
	return details, nil
}

// DailyLog returns a college's requests for one local day, for the CSV export.
func (s *RequestService) DailyLog(ctx context.Context, college string, day time.Time) ([]models.ExitRequest, error) {
	from := StartOfDay(day)
	to := from.Add(24 * time.Hour)
	requests, err := s.requests.ListForCollegeBetween(ctx, college, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list daily log")
	}
	return requests, nil
}

// loadRequest fetches a request inside the transaction, mapping absence to a
// typed not-found error.
func (s *RequestService) loadRequest(ctx context.Context, tx *sqlx.Tx, requestID string) (*models.ExitRequest, error) {
	record, err := s.requests.FindByID(ctx, tx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	return record, nil
}

// attachFaces enriches listings with stored face images. Enrichment degrades
// per record: a missing or unreadable face leaves the field nil and never
// fails the listing.
func (s *RequestService) attachFaces(ctx context.Context, requests []models.ExitRequest) []models.ExitRequestDetail {
	details := make([]models.ExitRequestDetail, 0, len(requests))
	for _, req := range requests {
		detail := models.ExitRequestDetail{ExitRequest: req}
		if s.faces != nil {
			if face, err := s.faces.FindByUser(ctx, req.StudentID); err == nil && face != nil {
				encoded := base64.StdEncoding.EncodeToString(face.ImageData)
				detail.StudentFace = &encoded
			}
		}
		details = append(details, detail)
	}
	return details
}

func (s *RequestService) invalidateGuardCache(ctx context.Context, college string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, guardCacheKey(college)); err != nil {
		s.logger.Warn("failed to invalidate guard cache", zap.String("college", college), zap.Error(err))
	}
}

func guardCacheKey(college string) string {
	return "guard:approved:" + college
}

func decisionLabel(approve bool) string {
	if approve {
		return "approve"
	}
	return "reject"
}
