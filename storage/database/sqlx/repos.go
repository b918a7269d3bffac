// Package sqlxrepos implements the domain repositories on PostgreSQL via sqlx.
package sqlxrepos

import (
	"database/sql"

	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// pq error code for unique_violation
const pqUniqueViolation = "23505"

// unique-index names created by the initial migration. isUniqueViolation
// matches pq.Error.Constraint against these, so they must track the schema.
const (
	uniqUserEmail                   = "user_email_key"
	uniqEnrollmentCourseStudent     = "enrollment_course_student_key"
	uniqSubmissionAssessmentStudent = "submission_assessment_student_key"
	uniqCertificateCourseStudent    = "certificate_course_student_key"
)

// isUniqueViolation reports whether err is a unique-index violation on the
// given constraint (any constraint when name is empty).
func isUniqueViolation(err error, constraint string) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	if !ok || pqErr.Code != pqUniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// trapNoRowsErr maps psql "no rows" to the given domain sentinel.
func trapNoRowsErr(err error, sentinel error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return sentinel
	}
	return errors.Wrap(err, msg)
}
