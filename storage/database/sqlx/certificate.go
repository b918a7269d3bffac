package sqlxrepos

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/elimulab/elimu/core/certificate"
)

type certificateRepository struct {
	db *sqlx.DB
}

var _ certificate.Repository = (*certificateRepository)(nil)

func NewCertificateRepository(db *sqlx.DB) *certificateRepository {
	return &certificateRepository{db: db}
}

type certificateRow struct {
	ID            string    `db:"id"`
	CertificateID string    `db:"certificate_id"`
	CourseID      string    `db:"course_id"`
	StudentID     string    `db:"student_id"`
	IssuedAt      null.Time `db:"issued_at"`
}

func (repo certificateRepository) fromRow(row certificateRow) certificate.Certificate {
	return certificate.Certificate{
		ID:            row.ID,
		CertificateID: row.CertificateID,
		CourseID:      row.CourseID,
		StudentID:     row.StudentID,
		IssuedAt:      row.IssuedAt.Time,
	}
}

// newCertificateID mints the public verification handle.
func newCertificateID() string {
	id := uuid.New().String()
	return fmt.Sprintf("CERT-%s", strings.ToUpper(strings.ReplaceAll(id, "-", "")[:12]))
}

const certificateColumns = `id, certificate_id, course_id, student_id, issued_at`

func (repo certificateRepository) CreateCertificate(ctx context.Context, cert certificate.Certificate) (certificate.Certificate, error) {
	cert.ID = uuid.New().String()
	if cert.CertificateID == "" {
		cert.CertificateID = newCertificateID()
	}
	row := certificateRow{
		ID:            cert.ID,
		CertificateID: cert.CertificateID,
		CourseID:      cert.CourseID,
		StudentID:     cert.StudentID,
		IssuedAt:      null.NewTime(cert.IssuedAt.UTC(), !cert.IssuedAt.IsZero()),
	}
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO certificate (`+certificateColumns+`)
		VALUES (:id, :certificate_id, :course_id, :student_id, :issued_at)`,
		row,
	)
	if err != nil {
		if isUniqueViolation(err, uniqCertificateCourseStudent) {
			return certificate.Certificate{}, certificate.ErrExists
		}
		return certificate.Certificate{}, errors.Wrap(err, "inserting certificate")
	}
	return cert, nil
}

func (repo certificateRepository) GetByCertificateID(ctx context.Context, certificateID string) (certificate.Certificate, error) {
	var row certificateRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT `+certificateColumns+` FROM certificate WHERE certificate_id = $1`, certificateID)
	if err != nil {
		return certificate.Certificate{}, trapNoRowsErr(err, certificate.ErrNotFound, "finding certificate by public id")
	}
	return repo.fromRow(row), nil
}

func (repo certificateRepository) GetByCourseAndStudent(ctx context.Context, courseID, studentID string) (certificate.Certificate, error) {
	var row certificateRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT `+certificateColumns+` FROM certificate WHERE course_id = $1 AND student_id = $2`,
		courseID, studentID,
	)
	if err != nil {
		return certificate.Certificate{}, trapNoRowsErr(err, certificate.ErrNotFound, "finding certificate by course and student")
	}
	return repo.fromRow(row), nil
}
