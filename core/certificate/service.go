package certificate

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/elimulab/elimu/core"
	"github.com/elimulab/elimu/core/course"
	"github.com/elimulab/elimu/core/user"
)

var (
	// errors
	ErrNotFound = errors.New("certificate not found")
	ErrExists   = errors.New("certificate already issued")
)

// Certificate proves course completion. CertificateID is the public,
// globally-unique verification handle; ID is the storage key.
type Certificate struct {
	ID            string    `json:"id"`
	CertificateID string    `json:"certificate_id"`
	CourseID      string    `json:"course_id"`
	StudentID     string    `json:"student_id"`
	IssuedAt      time.Time `json:"issued_at"`
}

type (
	Repository interface {
		// CreateCertificate fails with ErrExists when the (course, student)
		// pair already has one.
		CreateCertificate(ctx context.Context, cert Certificate) (Certificate, error)
		GetByCertificateID(ctx context.Context, certificateID string) (Certificate, error)
		GetByCourseAndStudent(ctx context.Context, courseID, studentID string) (Certificate, error)
	}

	Service struct {
		repo      Repository
		courseSvc *course.Service
		usrRepo   user.Repository
		mailSvc   core.EmailService
		conf      *core.Config
	}
)

func NewService(repo Repository, courseSvc *course.Service, usrRepo user.Repository, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{
		repo:      repo,
		courseSvc: courseSvc,
		usrRepo:   usrRepo,
		mailSvc:   mailSvc,
		conf:      conf,
	}
}

// IssueForCompletion issues the (course, student) certificate once; repeat
// calls are no-ops. Satisfies progress.CertificateIssuer.
func (svc *Service) IssueForCompletion(ctx context.Context, courseID, studentID string) error {
	if _, err := svc.repo.GetByCourseAndStudent(ctx, courseID, studentID); err == nil {
		return nil // already issued
	} else if errors.Cause(err) != ErrNotFound {
		return err
	}

	cert, err := svc.repo.CreateCertificate(ctx, Certificate{
		CourseID:  courseID,
		StudentID: studentID,
		IssuedAt:  time.Now().UTC(),
	})
	if err != nil {
		if errors.Cause(err) == ErrExists {
			return nil // raced with another issuance
		}
		return err
	}

	crs, err := svc.courseSvc.GetByID(ctx, courseID)
	if err != nil {
		return err
	}
	usr, err := svc.usrRepo.GetUserByID(ctx, studentID)
	if err != nil {
		return err
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject: fmt.Sprintf("Your certificate for %s", crs.Title),
		BodyStr: fmt.Sprintf(
			"Congratulations %s!\n\nYou completed %s. Your certificate ID is %s; it can be verified at %s/certificates/verify/%s.",
			usr.Name, crs.Title, cert.CertificateID, svc.conf.FrontendBaseURL, cert.CertificateID,
		),
	})
	return nil
}

// Verify resolves a public certificate ID. Used by the unauthenticated
// verification endpoint.
func (svc *Service) Verify(ctx context.Context, certificateID string) (Certificate, error) {
	return svc.repo.GetByCertificateID(ctx, core.CleanString(certificateID))
}
