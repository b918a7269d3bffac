package progress

import (
	"bytes"
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/elimulab/elimu/core"
	"github.com/elimulab/elimu/core/auth"
	"github.com/elimulab/elimu/core/course"
	"github.com/elimulab/elimu/core/user"
)

var (
	// errors
	ErrNotFound           = errors.New("progress record not found")
	ErrEnrollmentNotFound = errors.New("enrollment not found")
	ErrAlreadyEnrolled    = errors.New("student is already enrolled in this course")
	ErrNotEnrolled        = errors.New("student is not enrolled in this course")
)

type (
	Repository interface {
		// CreateEnrollment fails with ErrAlreadyEnrolled on a duplicate
		// (course, student) pair.
		CreateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
		GetEnrollment(ctx context.Context, courseID, studentID string) (Enrollment, error)
		QueryEnrollmentsByCourse(ctx context.Context, courseID string) ([]Enrollment, error)
		QueryEnrollmentsByStudent(ctx context.Context, studentID string) ([]Enrollment, error)
		DeleteEnrollment(ctx context.Context, courseID, studentID string) error

		// CreateRecord enforces the (course, student) uniqueness invariant.
		CreateRecord(ctx context.Context, rec Record) (Record, error)
		GetRecord(ctx context.Context, courseID, studentID string) (Record, error)
		QueryRecordsByCourse(ctx context.Context, courseID string) ([]Record, error)
		QueryRecordsByCourses(ctx context.Context, courseIDs []string) ([]Record, error)
		UpdateRecord(ctx context.Context, rec Record) (Record, error)
		// SetOverallProgress atomically sets the percentage and updatedAt of
		// the unique record; ErrNotFound when no record exists.
		SetOverallProgress(ctx context.Context, courseID, studentID string, pct float64, now time.Time) error
	}

	// CertificateIssuer is notified when a student completes a course.
	CertificateIssuer interface {
		IssueForCompletion(ctx context.Context, courseID, studentID string) error
	}

	Service struct {
		repo      Repository
		courseSvc *course.Service
		usrRepo   user.Repository
		certSvc   CertificateIssuer // optional
		logger    core.Logger
	}
)

func NewService(repo Repository, courseSvc *course.Service, usrRepo user.Repository, certSvc CertificateIssuer, logger core.Logger) *Service {
	return &Service{
		repo:      repo,
		courseSvc: courseSvc,
		usrRepo:   usrRepo,
		certSvc:   certSvc,
		logger:    logger,
	}
}

// Enroll adds the student to a published course's roster.
func (svc *Service) Enroll(ctx context.Context, studentID, courseID string) (Enrollment, error) {
	crs, err := svc.courseSvc.GetByID(ctx, courseID)
	if err != nil {
		return Enrollment{}, err
	}
	if !crs.Published {
		return Enrollment{}, course.ErrNotPublished
	}
	return svc.repo.CreateEnrollment(ctx, Enrollment{
		CourseID:   courseID,
		StudentID:  studentID,
		EnrolledAt: time.Now().UTC(),
	})
}

func (svc *Service) EnrollmentsByStudent(ctx context.Context, studentID string) ([]Enrollment, error) {
	return svc.repo.QueryEnrollmentsByStudent(ctx, studentID)
}

// IsEnrolled reports whether the student holds an enrollment in the course.
func (svc *Service) IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error) {
	if _, err := svc.repo.GetEnrollment(ctx, courseID, studentID); err != nil {
		if errors.Cause(err) == ErrEnrollmentNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

type (
	CourseRef struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}

	StudentRef struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}

	// StudentProgress is one roster member's record populated with their
	// name and email.
	StudentProgress struct {
		Student          StudentRef `json:"student"`
		OverallProgress  float64    `json:"overall_progress"`
		CompletedLessons int        `json:"completed_lessons"`
		LastAccessed     time.Time  `json:"last_accessed"`
	}

	// CourseProgressView is the instructor view over a whole course.
	CourseProgressView struct {
		Course                  CourseRef         `json:"course"`
		StudentsProgress        []StudentProgress `json:"students_progress"`
		StudentsWithoutProgress []StudentRef      `json:"students_without_progress"`
		TotalStudents           int               `json:"total_students"`
		TotalWithProgress       int               `json:"total_with_progress"`
	}
)

// GetCourseProgress builds the unified instructor view: every progress record
// populated with the owning student, plus the enrolled students that have no
// record yet.
func (svc *Service) GetCourseProgress(ctx context.Context, id auth.Identity, courseID string) (CourseProgressView, error) {
	crs, err := svc.courseSvc.GetByID(ctx, courseID)
	if err != nil {
		return CourseProgressView{}, err
	}
	if err = auth.AuthorizeOwnerOrAdmin(id, crs.OwnerID, user.RoleInstructor); err != nil {
		return CourseProgressView{}, err
	}

	records, err := svc.repo.QueryRecordsByCourse(ctx, courseID)
	if err != nil {
		return CourseProgressView{}, err
	}
	roster, err := svc.repo.QueryEnrollmentsByCourse(ctx, courseID)
	if err != nil {
		return CourseProgressView{}, err
	}

	rosterIDs := make([]string, 0, len(roster))
	for _, e := range roster {
		rosterIDs = append(rosterIDs, e.StudentID)
	}
	recordIDs := make([]string, 0, len(records))
	for _, rec := range records {
		recordIDs = append(recordIDs, rec.StudentID)
	}
	missingIDs := MissingStudents(rosterIDs, recordIDs)

	students, err := svc.studentRefs(ctx, append(append([]string{}, recordIDs...), missingIDs...))
	if err != nil {
		return CourseProgressView{}, err
	}

	view := CourseProgressView{
		Course:                  CourseRef{ID: crs.ID, Title: crs.Title},
		StudentsProgress:        make([]StudentProgress, 0, len(records)),
		StudentsWithoutProgress: make([]StudentRef, 0, len(missingIDs)),
		TotalStudents:           len(roster),
		TotalWithProgress:       len(records),
	}
	for _, rec := range records {
		view.StudentsProgress = append(view.StudentsProgress, StudentProgress{
			Student:          students[rec.StudentID],
			OverallProgress:  rec.OverallProgress,
			CompletedLessons: rec.CompletedLessonsCount(),
			LastAccessed:     rec.LastAccessed,
		})
	}
	for _, sid := range missingIDs {
		view.StudentsWithoutProgress = append(view.StudentsWithoutProgress, students[sid])
	}
	return view, nil
}

// StudentReport computes the caller's own report for a course they are
// enrolled in. A missing record is not an error: it reports zero progress.
func (svc *Service) StudentReport(ctx context.Context, studentID, courseID string) (ProgressReport, error) {
	crs, err := svc.courseSvc.GetByID(ctx, courseID)
	if err != nil {
		return ProgressReport{}, err
	}
	if _, err = svc.repo.GetEnrollment(ctx, courseID, studentID); err != nil {
		if errors.Cause(err) == ErrEnrollmentNotFound {
			return ProgressReport{}, ErrNotEnrolled
		}
		return ProgressReport{}, err
	}

	rec, err := svc.repo.GetRecord(ctx, courseID, studentID)
	if err != nil && errors.Cause(err) != ErrNotFound {
		return ProgressReport{}, err
	}

	results, err := svc.assessmentResults(ctx, courseID, studentID)
	if err != nil {
		return ProgressReport{}, err
	}

	return ComputeProgressReport(StudentProgressData{
		Course:      crs,
		Record:      rec,
		Assessments: results,
	}), nil
}

// RecordLessonProgress applies a student activity event: the record is
// created lazily on first activity, the lesson entry upserted, module
// completion rolled up and the overall percentage recomputed.
func (svc *Service) RecordLessonProgress(ctx context.Context, studentID, courseID string, ev LessonEvent) (Record, error) {
	crs, err := svc.courseSvc.GetByID(ctx, courseID)
	if err != nil {
		return Record{}, err
	}
	if _, err = svc.repo.GetEnrollment(ctx, courseID, studentID); err != nil {
		if errors.Cause(err) == ErrEnrollmentNotFound {
			return Record{}, ErrNotEnrolled
		}
		return Record{}, err
	}
	if !crs.LessonAt(ev.ModuleIndex, ev.LessonIndex) {
		return Record{}, core.NewValidationError(
			errors.New("unknown lesson"),
			core.FieldError{Field: "lesson_index", Error: "no such lesson in this course"},
		)
	}

	now := time.Now().UTC()
	rec, err := svc.repo.GetRecord(ctx, courseID, studentID)
	switch errors.Cause(err) {
	case nil:
	case ErrNotFound:
		rec, err = svc.repo.CreateRecord(ctx, Record{
			CourseID:  courseID,
			StudentID: studentID,
			CreatedAt: now,
		})
		if err != nil {
			return Record{}, err
		}
	default:
		return Record{}, err
	}

	applyLessonEvent(&rec, ev, now)
	rollUpModules(&rec, crs, now)
	if total := crs.TotalLessons(); total > 0 {
		rec.OverallProgress = ClampPercent(float64(rec.CompletedLessonsCount()) / float64(total) * 100)
	}
	rec.LastAccessed = now
	rec.UpdatedAt = now

	rec, err = svc.repo.UpdateRecord(ctx, rec)
	if err != nil {
		return Record{}, err
	}

	if rec.OverallProgress >= 100 && svc.certSvc != nil {
		if err := svc.certSvc.IssueForCompletion(ctx, courseID, studentID); err != nil {
			// issuance is best-effort; progress itself is already saved
			svc.logger.Error("issuing completion certificate", err)
		}
	}
	return rec, nil
}

// UpdateStudentProgress is the instructor override of a student's overall
// percentage. It never creates a record: creation is the student-activity path.
func (svc *Service) UpdateStudentProgress(ctx context.Context, id auth.Identity, courseID, studentID string, op OverrideProgress) error {
	crs, err := svc.courseSvc.GetByID(ctx, courseID)
	if err != nil {
		return err
	}
	if err = auth.AuthorizeOwnerOrAdmin(id, crs.OwnerID, user.RoleInstructor); err != nil {
		return err
	}
	if err = op.Validate(); err != nil {
		return err
	}
	return svc.repo.SetOverallProgress(ctx, courseID, studentID, *op.OverallProgress, time.Now().UTC())
}

// RemoveStudent takes the student off the course roster. The progress record
// is retained for audit; only the enrollment row goes away.
func (svc *Service) RemoveStudent(ctx context.Context, id auth.Identity, courseID, studentID string) error {
	crs, err := svc.courseSvc.GetByID(ctx, courseID)
	if err != nil {
		return err
	}
	if err = auth.AuthorizeOwnerOrAdmin(id, crs.OwnerID, user.RoleInstructor); err != nil {
		return err
	}
	if _, err = svc.repo.GetEnrollment(ctx, courseID, studentID); err != nil {
		return err
	}
	return svc.repo.DeleteEnrollment(ctx, courseID, studentID)
}

// GenerateReport renders the CSV export across all courses owned by the
// instructor: one row per (student, course) enrollment. Owning zero courses
// yields a header-only CSV.
func (svc *Service) GenerateReport(ctx context.Context, instructorID string) ([]byte, error) {
	courses, err := svc.courseSvc.ListByOwner(ctx, instructorID)
	if err != nil {
		return nil, err
	}

	titles := make(map[string]string, len(courses))
	courseIDs := make([]string, 0, len(courses))
	for _, crs := range courses {
		titles[crs.ID] = crs.Title
		courseIDs = append(courseIDs, crs.ID)
	}

	var rows []ReportRow
	if len(courseIDs) > 0 {
		records, err := svc.repo.QueryRecordsByCourses(ctx, courseIDs)
		if err != nil {
			return nil, err
		}

		studentIDs := make([]string, 0, len(records))
		for _, rec := range records {
			studentIDs = append(studentIDs, rec.StudentID)
		}
		students, err := svc.studentRefs(ctx, studentIDs)
		if err != nil {
			return nil, err
		}

		rows = make([]ReportRow, 0, len(records))
		for _, rec := range records {
			student := students[rec.StudentID]
			rows = append(rows, ReportRow{
				StudentName:      student.Name,
				StudentEmail:     student.Email,
				CourseTitle:      titles[rec.CourseID],
				OverallProgress:  rec.OverallProgress,
				CompletedLessons: rec.CompletedLessonsCount(),
				LastAccessed:     rec.LastAccessed,
			})
		}
	}

	var buff bytes.Buffer
	if err := WriteCSV(&buff, rows); err != nil {
		return nil, err
	}
	return buff.Bytes(), nil
}

func (svc *Service) assessmentResults(ctx context.Context, courseID, studentID string) ([]AssessmentResult, error) {
	assessments, err := svc.courseSvc.AssessmentsByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	subs, err := svc.courseSvc.SubmissionsByStudent(ctx, courseID, studentID)
	if err != nil {
		return nil, err
	}

	byAssessment := make(map[string]course.Submission, len(subs))
	for _, sub := range subs {
		byAssessment[sub.AssessmentID] = sub
	}

	results := make([]AssessmentResult, 0, len(assessments))
	for _, a := range assessments {
		ar := AssessmentResult{Assessment: a}
		if sub, ok := byAssessment[a.ID]; ok {
			s := sub
			ar.Submission = &s
		}
		results = append(results, ar)
	}
	return results, nil
}

func (svc *Service) studentRefs(ctx context.Context, ids []string) (map[string]StudentRef, error) {
	refs := make(map[string]StudentRef, len(ids))
	if len(ids) == 0 {
		return refs, nil
	}
	users, err := svc.usrRepo.GetUsersByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, usr := range users {
		refs[usr.ID] = StudentRef{ID: usr.ID, Name: usr.Name, Email: usr.Email}
	}
	// unresolvable IDs still get a placeholder so views stay index-safe
	for _, id := range ids {
		if _, ok := refs[id]; !ok {
			refs[id] = StudentRef{ID: id}
		}
	}
	return refs, nil
}

func applyLessonEvent(rec *Record, ev LessonEvent, now time.Time) {
	entry := rec.LessonEntry(ev.ModuleIndex, ev.LessonIndex)
	if entry == nil {
		rec.CompletedLessons = append(rec.CompletedLessons, CompletedLesson{
			ModuleIndex: ev.ModuleIndex,
			LessonIndex: ev.LessonIndex,
			StartedAt:   now,
		})
		entry = &rec.CompletedLessons[len(rec.CompletedLessons)-1]
	}

	entry.TimeSpentSecs += ev.TimeSpentSecs
	if ev.LastPosition != nil {
		entry.LastPosition = ev.LastPosition
	}
	if ev.Completed && !entry.Completed {
		entry.Completed = true
		entry.FinishedAt = now
	}
}

// rollUpModules adds a completed-module entry whenever every lesson of a
// module has a completed entry. Entries are never removed.
func rollUpModules(rec *Record, crs course.Course, now time.Time) {
	for mi, mod := range crs.Modules {
		if rec.ModuleEntry(mi) != nil || len(mod.Lessons) == 0 {
			continue
		}

		done := true
		var timeSpent int
		for li := range mod.Lessons {
			entry := rec.LessonEntry(mi, li)
			if entry == nil || !entry.Completed {
				done = false
				break
			}
			timeSpent += entry.TimeSpentSecs
		}
		if done {
			rec.CompletedModules = append(rec.CompletedModules, CompletedModule{
				ModuleIndex:   mi,
				CompletedAt:   now,
				TimeSpentSecs: timeSpent,
			})
		}
	}
}
