package db

import "strings"

// IsUniqueViolation reports whether the provided error is a unique
// violation. When a constraint name is provided, the error must be a
// unique violation AND mention that constraint. Both the postgres and
// sqlite phrasings are recognized so the same repositories work under
// test.
func IsUniqueViolation(err error, constraintName ...string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	unique := strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
	if !unique {
		return false
	}
	if len(constraintName) > 0 && constraintName[0] != "" {
		return strings.Contains(msg, constraintName[0])
	}
	return true
}
