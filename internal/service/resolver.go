package service

import "github.com/noah-isme/campus-exit-api/internal/models"

// ResolveBatch picks the first batch rule whose roll range contains the roll
// number. Rules arrive in the repository's stable listing order; callers must
// not rely on any tie-break beyond first-match-wins. Returns false when no
// rule matches.
func ResolveBatch(rules []models.BatchRule, roll *int) (models.BatchRule, bool) {
	for _, rule := range rules {
		if rule.ContainsRoll(roll) {
			return rule, true
		}
	}
	return models.BatchRule{}, false
}

// ResolveMentorAssignment selects the mentor assignment for a student given
// the resolved batch name. Among range-matching candidates it prefers an
// active assignment bound to the same batch; when none carries the batch name
// it falls back to the first active candidate. Returns false when no active
// candidate exists.
func ResolveMentorAssignment(assignments []models.MentorAssignment, roll *int, batchName string) (models.MentorAssignment, bool) {
	var fallback *models.MentorAssignment
	for i := range assignments {
		a := assignments[i]
		if !a.ActiveStatus || !a.ContainsRoll(roll) {
			continue
		}
		if a.BatchName != "" && batchName != "" {
			if a.BatchName == batchName {
				return a, true
			}
			if fallback == nil {
				fallback = &assignments[i]
			}
			continue
		}
		if fallback == nil {
			fallback = &assignments[i]
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return models.MentorAssignment{}, false
}
