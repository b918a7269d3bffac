package inmemdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/elimulab/elimu/core/certificate"
)

type certificateRepository struct {
	db *certificateTable
}

func NewCertificateRepository(db *DB) certificate.Repository {
	return &certificateRepository{db: db.certificate}
}

func (repo *certificateRepository) CreateCertificate(_ context.Context, cert certificate.Certificate) (certificate.Certificate, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, existing := range repo.db.table {
		if existing.CourseID == cert.CourseID && existing.StudentID == cert.StudentID {
			return certificate.Certificate{}, certificate.ErrExists
		}
	}

	cert.ID = uuid.New().String()
	if cert.CertificateID == "" {
		id := uuid.New().String()
		cert.CertificateID = fmt.Sprintf("CERT-%s", strings.ToUpper(strings.ReplaceAll(id, "-", "")[:12]))
	}
	repo.db.table[cert.ID] = &cert
	return cert, nil
}

func (repo *certificateRepository) GetByCertificateID(_ context.Context, certificateID string) (certificate.Certificate, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, cert := range repo.db.table {
		if cert.CertificateID == certificateID {
			return *cert, nil
		}
	}
	return certificate.Certificate{}, certificate.ErrNotFound
}

func (repo *certificateRepository) GetByCourseAndStudent(_ context.Context, courseID, studentID string) (certificate.Certificate, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, cert := range repo.db.table {
		if cert.CourseID == courseID && cert.StudentID == studentID {
			return *cert, nil
		}
	}
	return certificate.Certificate{}, certificate.ErrNotFound
}
