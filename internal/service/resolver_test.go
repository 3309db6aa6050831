package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-exit-api/internal/models"
)

func intPtr(v int) *int { return &v }

func TestResolveBatchFirstMatchWins(t *testing.T) {
	rules := []models.BatchRule{
		{BatchName: "B1", RollStart: intPtr(1), RollEnd: intPtr(33)},
		{BatchName: "B2", RollStart: intPtr(34), RollEnd: intPtr(66)},
		{BatchName: "B2-overlap", RollStart: intPtr(34), RollEnd: intPtr(99)},
		{BatchName: "B3", RollStart: intPtr(67), RollEnd: intPtr(99)},
	}

	rule, ok := ResolveBatch(rules, intPtr(40))
	require.True(t, ok)
	assert.Equal(t, "B2", rule.BatchName)

	rule, ok = ResolveBatch(rules, intPtr(70))
	require.True(t, ok)
	assert.Equal(t, "B2-overlap", rule.BatchName)
}

func TestResolveBatchOpenEndedRanges(t *testing.T) {
	rules := []models.BatchRule{
		{BatchName: "low", RollEnd: intPtr(50)},
		{BatchName: "high", RollStart: intPtr(51)},
	}

	rule, ok := ResolveBatch(rules, intPtr(3))
	require.True(t, ok)
	assert.Equal(t, "low", rule.BatchName)

	rule, ok = ResolveBatch(rules, intPtr(99))
	require.True(t, ok)
	assert.Equal(t, "high", rule.BatchName)
}

func TestResolveBatchNilRollMatchesFirstRule(t *testing.T) {
	rules := []models.BatchRule{
		{BatchName: "B1", RollStart: intPtr(1), RollEnd: intPtr(33)},
		{BatchName: "B2", RollStart: intPtr(34), RollEnd: intPtr(66)},
	}
	rule, ok := ResolveBatch(rules, nil)
	require.True(t, ok)
	assert.Equal(t, "B1", rule.BatchName)
}

func TestResolveBatchNoMatch(t *testing.T) {
	rules := []models.BatchRule{
		{BatchName: "B1", RollStart: intPtr(1), RollEnd: intPtr(33)},
	}
	_, ok := ResolveBatch(rules, intPtr(60))
	assert.False(t, ok)
}

func TestResolveMentorAssignmentPrefersBatchName(t *testing.T) {
	assignments := []models.MentorAssignment{
		{MentorID: "m-other", ActiveStatus: true, BatchName: "B1", RollStart: intPtr(1), RollEnd: intPtr(99)},
		{MentorID: "m-batch", ActiveStatus: true, BatchName: "B2", RollStart: intPtr(1), RollEnd: intPtr(99)},
	}

	assignment, ok := ResolveMentorAssignment(assignments, intPtr(40), "B2")
	require.True(t, ok)
	assert.Equal(t, "m-batch", assignment.MentorID)
}

func TestResolveMentorAssignmentFallsBackToFirstActive(t *testing.T) {
	assignments := []models.MentorAssignment{
		{MentorID: "m-inactive", ActiveStatus: false, BatchName: "B9", RollStart: intPtr(1), RollEnd: intPtr(99)},
		{MentorID: "m-first", ActiveStatus: true, BatchName: "B9", RollStart: intPtr(1), RollEnd: intPtr(99)},
	}

	assignment, ok := ResolveMentorAssignment(assignments, intPtr(40), "B2")
	require.True(t, ok)
	assert.Equal(t, "m-first", assignment.MentorID)
}

func TestResolveMentorAssignmentHonoursRollRange(t *testing.T) {
	assignments := []models.MentorAssignment{
		{MentorID: "m-low", ActiveStatus: true, RollStart: intPtr(1), RollEnd: intPtr(50)},
		{MentorID: "m-high", ActiveStatus: true, RollStart: intPtr(51), RollEnd: intPtr(99)},
	}

	assignment, ok := ResolveMentorAssignment(assignments, intPtr(72), "")
	require.True(t, ok)
	assert.Equal(t, "m-high", assignment.MentorID)
}

func TestResolveMentorAssignmentNoActiveCandidate(t *testing.T) {
	assignments := []models.MentorAssignment{
		{MentorID: "m-inactive", ActiveStatus: false},
	}
	_, ok := ResolveMentorAssignment(assignments, intPtr(10), "B1")
	assert.False(t, ok)
}
