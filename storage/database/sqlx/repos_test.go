package sqlxrepos

import (
	"fmt"
	"strings"
	"testing"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	appfs "github.com/elimulab/elimu/fs"
)

func readSchema(t *testing.T) string {
	t.Helper()

	sql, err := appfs.FS.ReadFile("migrations/00001_init.sql")
	if err != nil {
		t.Fatalf("reading initial migration: %v", err)
	}
	return string(sql)
}

// The repositories map pq unique violations to domain sentinels by constraint
// name, so every name they match on must be an index the schema creates.
func Test_uniqueConstraintNamesMatchSchema(t *testing.T) {
	schema := readSchema(t)

	names := []string{
		uniqUserEmail,
		uniqEnrollmentCourseStudent,
		uniqSubmissionAssessmentStudent,
		uniqCertificateCourseStudent,
	}
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			stmt := fmt.Sprintf("CREATE UNIQUE INDEX %s ON", name)
			if !strings.Contains(schema, stmt) {
				t.Errorf("schema does not create unique index %q", name)
			}
		})
	}
}

func Test_isUniqueViolation(t *testing.T) {
	dup := &pq.Error{Code: pqUniqueViolation, Constraint: uniqEnrollmentCourseStudent}

	tests := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{name: "matching constraint", err: dup, constraint: uniqEnrollmentCourseStudent, want: true},
		{name: "wrapped matching constraint", err: errors.Wrap(dup, "inserting enrollment"), constraint: uniqEnrollmentCourseStudent, want: true},
		{name: "any constraint", err: dup, constraint: "", want: true},
		{name: "other constraint", err: dup, constraint: uniqUserEmail},
		{name: "other pq error", err: &pq.Error{Code: "23503", Constraint: uniqEnrollmentCourseStudent}, constraint: uniqEnrollmentCourseStudent},
		{name: "not a pq error", err: errors.New("broken pipe"), constraint: uniqEnrollmentCourseStudent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isUniqueViolation(tt.err, tt.constraint); got != tt.want {
				t.Errorf("isUniqueViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}

// The verification handle is a "CERT-" prefixed hex string, not a UUID; the
// schema must store it as TEXT.
func Test_certificateIDColumnFitsHandle(t *testing.T) {
	certID := newCertificateID()
	if !strings.HasPrefix(certID, "CERT-") {
		t.Errorf("newCertificateID() = %q, want CERT- prefix", certID)
	}
	if len(certID) != len("CERT-")+12 {
		t.Errorf("newCertificateID() = %q, want 12 chars after the prefix", certID)
	}

	schema := readSchema(t)
	if !strings.Contains(schema, "certificate_id TEXT NOT NULL") {
		t.Error("schema must type certificate.certificate_id as TEXT to hold the handle")
	}
}
