package course

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/elimulab/elimu/core"
	"github.com/elimulab/elimu/core/auth"
	"github.com/elimulab/elimu/core/user"
)

var (
	// errors
	ErrNotFound           = errors.New("course not found")
	ErrAssessmentNotFound = errors.New("assessment not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrSubmissionExists   = errors.New("a submission for this assessment already exists")
	ErrNotPublished       = errors.New("course is not published")
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, crs Course) (Course, error)
		GetCourseByID(ctx context.Context, id string) (Course, error)
		QueryAllCourses(ctx context.Context) ([]Course, error)
		QueryCoursesByOwner(ctx context.Context, ownerID string) ([]Course, error)
		QueryPublishedCourses(ctx context.Context) ([]Course, error)
		// UpdateCourse applies the non-zero fields of crs; Modules when non-nil.
		UpdateCourse(ctx context.Context, crs Course) (Course, error)
		SetCoursePublished(ctx context.Context, id string, published bool) (Course, error)

		CreateAssessment(ctx context.Context, a Assessment) (Assessment, error)
		GetAssessmentByID(ctx context.Context, id string) (Assessment, error)
		QueryAssessmentsByCourse(ctx context.Context, courseID string) ([]Assessment, error)

		// CreateSubmission fails with ErrSubmissionExists when the
		// (assessment, student) pair already has one.
		CreateSubmission(ctx context.Context, sub Submission) (Submission, error)
		GetSubmissionByID(ctx context.Context, id string) (Submission, error)
		QuerySubmissionsByStudent(ctx context.Context, courseID, studentID string) ([]Submission, error)
		UpdateSubmission(ctx context.Context, sub Submission) (Submission, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, ownerID string, nc NewCourse) (Course, error) {
	now := time.Now().UTC()
	return svc.repo.CreateCourse(ctx, Course{
		Title:       nc.Title,
		Description: nc.Description,
		OwnerID:     ownerID,
		Modules:     nc.Modules,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *Service) GetByID(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourseByID(ctx, id)
}

// List returns the courses visible to the caller: all for an active admin,
// their own for an active instructor, published ones otherwise.
func (svc *Service) List(ctx context.Context, id auth.Identity) ([]Course, error) {
	switch id.ActiveRole {
	case user.RoleAdmin:
		return svc.repo.QueryAllCourses(ctx)
	case user.RoleInstructor:
		return svc.repo.QueryCoursesByOwner(ctx, id.AccountID)
	default:
		return svc.repo.QueryPublishedCourses(ctx)
	}
}

func (svc *Service) ListByOwner(ctx context.Context, ownerID string) ([]Course, error) {
	return svc.repo.QueryCoursesByOwner(ctx, ownerID)
}

func (svc *Service) Update(ctx context.Context, id auth.Identity, courseID string, uc UpdateCourse) (Course, error) {
	crs, err := svc.repo.GetCourseByID(ctx, courseID)
	if err != nil {
		return Course{}, err
	}
	if err = auth.AuthorizeOwnerOrAdmin(id, crs.OwnerID, user.RoleInstructor); err != nil {
		return Course{}, err
	}
	if err = uc.Validate(crs); err != nil {
		return Course{}, err
	}

	return svc.repo.UpdateCourse(ctx, Course{
		ID:          courseID,
		Title:       uc.Title,
		Description: uc.Description,
		Modules:     uc.Modules,
		UpdatedAt:   time.Now().UTC(),
	})
}

func (svc *Service) Publish(ctx context.Context, id auth.Identity, courseID string) (Course, error) {
	crs, err := svc.repo.GetCourseByID(ctx, courseID)
	if err != nil {
		return Course{}, err
	}
	if err = auth.AuthorizeOwnerOrAdmin(id, crs.OwnerID, user.RoleInstructor); err != nil {
		return Course{}, err
	}
	return svc.repo.SetCoursePublished(ctx, courseID, true)
}

func (svc *Service) CreateAssessment(ctx context.Context, id auth.Identity, courseID string, na NewAssessment) (Assessment, error) {
	crs, err := svc.repo.GetCourseByID(ctx, courseID)
	if err != nil {
		return Assessment{}, err
	}
	if err = auth.AuthorizeOwnerOrAdmin(id, crs.OwnerID, user.RoleInstructor); err != nil {
		return Assessment{}, err
	}
	return svc.repo.CreateAssessment(ctx, Assessment{
		CourseID:    courseID,
		Title:       na.Title,
		Kind:        na.Kind,
		TotalPoints: na.TotalPoints,
		CreatedAt:   time.Now().UTC(),
	})
}

func (svc *Service) AssessmentsByCourse(ctx context.Context, courseID string) ([]Assessment, error) {
	return svc.repo.QueryAssessmentsByCourse(ctx, courseID)
}

func (svc *Service) SubmissionsByStudent(ctx context.Context, courseID, studentID string) ([]Submission, error) {
	return svc.repo.QuerySubmissionsByStudent(ctx, courseID, studentID)
}

// Submit records a student's one submission for an assessment. The enclosing
// course must be published; a second submission is a conflict.
func (svc *Service) Submit(ctx context.Context, studentID, assessmentID string, ns NewSubmission) (Submission, error) {
	a, err := svc.repo.GetAssessmentByID(ctx, assessmentID)
	if err != nil {
		return Submission{}, err
	}
	crs, err := svc.repo.GetCourseByID(ctx, a.CourseID)
	if err != nil {
		return Submission{}, err
	}
	if !crs.Published {
		return Submission{}, ErrNotPublished
	}

	return svc.repo.CreateSubmission(ctx, Submission{
		AssessmentID: assessmentID,
		StudentID:    studentID,
		Answers:      ns.Answers,
		SubmittedAt:  time.Now().UTC(),
	})
}

// Grade sets score and feedback on a submission. The caller must own the
// enclosing course (or be an active admin); the score must fall within
// [0, assessment.TotalPoints].
func (svc *Service) Grade(ctx context.Context, id auth.Identity, submissionID string, gs GradeSubmission) (Submission, error) {
	sub, err := svc.repo.GetSubmissionByID(ctx, submissionID)
	if err != nil {
		return Submission{}, err
	}
	a, err := svc.repo.GetAssessmentByID(ctx, sub.AssessmentID)
	if err != nil {
		return Submission{}, err
	}
	crs, err := svc.repo.GetCourseByID(ctx, a.CourseID)
	if err != nil {
		return Submission{}, err
	}
	if err = auth.AuthorizeOwnerOrAdmin(id, crs.OwnerID, user.RoleInstructor); err != nil {
		return Submission{}, err
	}

	if gs.Score == nil || *gs.Score < 0 || *gs.Score > a.TotalPoints {
		return Submission{}, core.NewValidationError(
			errors.New("score out of range"),
			core.FieldError{Field: "score", Error: "score must be between 0 and the assessment's total points"},
		)
	}

	now := time.Now().UTC()
	return svc.repo.UpdateSubmission(ctx, Submission{
		ID:       submissionID,
		Score:    gs.Score,
		Feedback: gs.Feedback,
		GradedAt: &now,
	})
}
