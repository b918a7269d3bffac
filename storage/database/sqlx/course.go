package sqlxrepos

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/elimulab/elimu/core/course"
)

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *sqlx.DB) *courseRepository {
	return &courseRepository{db: db}
}

type courseRow struct {
	ID          string      `db:"id"`
	Title       string      `db:"title"`
	Description null.String `db:"description"`
	OwnerID     string      `db:"owner_id"`
	Published   bool        `db:"published"`
	Modules     null.JSON   `db:"modules"`
	CreatedAt   null.Time   `db:"created_at"`
	UpdatedAt   null.Time   `db:"updated_at"`
}

func (repo courseRepository) toRow(crs course.Course) (courseRow, error) {
	row := courseRow{
		ID:          crs.ID,
		Title:       crs.Title,
		Description: null.NewString(crs.Description, crs.Description != ""),
		OwnerID:     crs.OwnerID,
		Published:   crs.Published,
		CreatedAt:   null.NewTime(crs.CreatedAt.UTC(), !crs.CreatedAt.IsZero()),
		UpdatedAt:   null.NewTime(crs.UpdatedAt.UTC(), !crs.UpdatedAt.IsZero()),
	}
	if crs.Modules != nil {
		data, err := json.Marshal(crs.Modules)
		if err != nil {
			return courseRow{}, errors.Wrap(err, "encoding modules")
		}
		row.Modules = null.JSONFrom(data)
	}
	return row, nil
}

func (repo courseRepository) fromRow(row courseRow) (course.Course, error) {
	crs := course.Course{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description.String,
		OwnerID:     row.OwnerID,
		Published:   row.Published,
		CreatedAt:   row.CreatedAt.Time,
		UpdatedAt:   row.UpdatedAt.Time,
	}
	if row.Modules.Valid {
		if err := json.Unmarshal(row.Modules.JSON, &crs.Modules); err != nil {
			return course.Course{}, errors.Wrap(err, "decoding modules")
		}
	}
	return crs, nil
}

func (repo courseRepository) fromRows(rows []courseRow) ([]course.Course, error) {
	courses := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		crs, err := repo.fromRow(row)
		if err != nil {
			return nil, err
		}
		courses = append(courses, crs)
	}
	return courses, nil
}

const courseColumns = `id, title, description, owner_id, published, modules, created_at, updated_at`

func (repo courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	crs.ID = uuid.New().String()
	row, err := repo.toRow(crs)
	if err != nil {
		return course.Course{}, err
	}
	_, err = repo.db.NamedExecContext(ctx, `
		INSERT INTO course (`+courseColumns+`)
		VALUES (:id, :title, :description, :owner_id, :published, :modules, :created_at, :updated_at)`,
		row,
	)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return crs, nil
}

func (repo courseRepository) GetCourseByID(ctx context.Context, id string) (course.Course, error) {
	var row courseRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+courseColumns+` FROM course WHERE id = $1`, id); err != nil {
		return course.Course{}, trapNoRowsErr(err, course.ErrNotFound, "finding course by id")
	}
	return repo.fromRow(row)
}

func (repo courseRepository) QueryAllCourses(ctx context.Context) ([]course.Course, error) {
	var rows []courseRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT `+courseColumns+` FROM course ORDER BY created_at`); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	return repo.fromRows(rows)
}

func (repo courseRepository) QueryCoursesByOwner(ctx context.Context, ownerID string) ([]course.Course, error) {
	var rows []courseRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT `+courseColumns+` FROM course WHERE owner_id = $1 ORDER BY created_at`, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "querying courses by owner")
	}
	return repo.fromRows(rows)
}

func (repo courseRepository) QueryPublishedCourses(ctx context.Context) ([]course.Course, error) {
	var rows []courseRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT `+courseColumns+` FROM course WHERE published ORDER BY created_at`)
	if err != nil {
		return nil, errors.Wrap(err, "querying published courses")
	}
	return repo.fromRows(rows)
}

func (repo courseRepository) UpdateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	existing, err := repo.GetCourseByID(ctx, crs.ID)
	if err != nil {
		return course.Course{}, err
	}

	if crs.Title == "" {
		crs.Title = existing.Title
	}
	if crs.Description == "" {
		crs.Description = existing.Description
	}
	if crs.Modules == nil {
		crs.Modules = existing.Modules
	}
	crs.OwnerID = existing.OwnerID
	crs.Published = existing.Published
	crs.CreatedAt = existing.CreatedAt
	if crs.UpdatedAt.IsZero() {
		crs.UpdatedAt = existing.UpdatedAt
	}

	row, err := repo.toRow(crs)
	if err != nil {
		return course.Course{}, err
	}
	_, err = repo.db.NamedExecContext(ctx, `
		UPDATE course
		SET title = :title, description = :description, modules = :modules, updated_at = :updated_at
		WHERE id = :id`,
		row,
	)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "updating course")
	}
	return crs, nil
}

func (repo courseRepository) SetCoursePublished(ctx context.Context, id string, published bool) (course.Course, error) {
	res, err := repo.db.ExecContext(ctx, `UPDATE course SET published = $1 WHERE id = $2`, published, id)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "publishing course")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return course.Course{}, course.ErrNotFound
	}
	return repo.GetCourseByID(ctx, id)
}

type assessmentRow struct {
	ID          string    `db:"id"`
	CourseID    string    `db:"course_id"`
	Title       string    `db:"title"`
	Kind        string    `db:"kind"`
	TotalPoints float64   `db:"total_points"`
	CreatedAt   null.Time `db:"created_at"`
}

func (repo courseRepository) assessmentFromRow(row assessmentRow) course.Assessment {
	return course.Assessment{
		ID:          row.ID,
		CourseID:    row.CourseID,
		Title:       row.Title,
		Kind:        row.Kind,
		TotalPoints: row.TotalPoints,
		CreatedAt:   row.CreatedAt.Time,
	}
}

const assessmentColumns = `id, course_id, title, kind, total_points, created_at`

func (repo courseRepository) CreateAssessment(ctx context.Context, a course.Assessment) (course.Assessment, error) {
	a.ID = uuid.New().String()
	row := assessmentRow{
		ID:          a.ID,
		CourseID:    a.CourseID,
		Title:       a.Title,
		Kind:        a.Kind,
		TotalPoints: a.TotalPoints,
		CreatedAt:   null.NewTime(a.CreatedAt.UTC(), !a.CreatedAt.IsZero()),
	}
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO assessment (`+assessmentColumns+`)
		VALUES (:id, :course_id, :title, :kind, :total_points, :created_at)`,
		row,
	)
	if err != nil {
		return course.Assessment{}, errors.Wrap(err, "inserting assessment")
	}
	return a, nil
}

func (repo courseRepository) GetAssessmentByID(ctx context.Context, id string) (course.Assessment, error) {
	var row assessmentRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+assessmentColumns+` FROM assessment WHERE id = $1`, id); err != nil {
		return course.Assessment{}, trapNoRowsErr(err, course.ErrAssessmentNotFound, "finding assessment by id")
	}
	return repo.assessmentFromRow(row), nil
}

func (repo courseRepository) QueryAssessmentsByCourse(ctx context.Context, courseID string) ([]course.Assessment, error) {
	var rows []assessmentRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT `+assessmentColumns+` FROM assessment WHERE course_id = $1 ORDER BY created_at`, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "querying assessments by course")
	}
	assessments := make([]course.Assessment, 0, len(rows))
	for _, row := range rows {
		assessments = append(assessments, repo.assessmentFromRow(row))
	}
	return assessments, nil
}

type submissionRow struct {
	ID           string       `db:"id"`
	AssessmentID string       `db:"assessment_id"`
	StudentID    string       `db:"student_id"`
	Answers      null.JSON    `db:"answers"`
	Score        null.Float64 `db:"score"`
	Feedback     null.String  `db:"feedback"`
	SubmittedAt  null.Time    `db:"submitted_at"`
	GradedAt     null.Time    `db:"graded_at"`
}

func (repo courseRepository) submissionFromRow(row submissionRow) course.Submission {
	sub := course.Submission{
		ID:           row.ID,
		AssessmentID: row.AssessmentID,
		StudentID:    row.StudentID,
		Score:        row.Score.Ptr(),
		Feedback:     row.Feedback.String,
		SubmittedAt:  row.SubmittedAt.Time,
		GradedAt:     row.GradedAt.Ptr(),
	}
	if row.Answers.Valid {
		sub.Answers = json.RawMessage(row.Answers.JSON)
	}
	return sub
}

const submissionColumns = `id, assessment_id, student_id, answers, score, feedback, submitted_at, graded_at`

func (repo courseRepository) CreateSubmission(ctx context.Context, sub course.Submission) (course.Submission, error) {
	sub.ID = uuid.New().String()
	row := submissionRow{
		ID:           sub.ID,
		AssessmentID: sub.AssessmentID,
		StudentID:    sub.StudentID,
		Score:        null.Float64FromPtr(sub.Score),
		Feedback:     null.NewString(sub.Feedback, sub.Feedback != ""),
		SubmittedAt:  null.NewTime(sub.SubmittedAt.UTC(), !sub.SubmittedAt.IsZero()),
	}
	if sub.Answers != nil {
		row.Answers = null.JSONFrom(sub.Answers)
	}
	if sub.GradedAt != nil {
		row.GradedAt = null.TimeFrom(sub.GradedAt.UTC())
	}
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO submission (`+submissionColumns+`)
		VALUES (:id, :assessment_id, :student_id, :answers, :score, :feedback, :submitted_at, :graded_at)`,
		row,
	)
	if err != nil {
		if isUniqueViolation(err, uniqSubmissionAssessmentStudent) {
			return course.Submission{}, course.ErrSubmissionExists
		}
		return course.Submission{}, errors.Wrap(err, "inserting submission")
	}
	return sub, nil
}

func (repo courseRepository) GetSubmissionByID(ctx context.Context, id string) (course.Submission, error) {
	var row submissionRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+submissionColumns+` FROM submission WHERE id = $1`, id); err != nil {
		return course.Submission{}, trapNoRowsErr(err, course.ErrSubmissionNotFound, "finding submission by id")
	}
	return repo.submissionFromRow(row), nil
}

func (repo courseRepository) QuerySubmissionsByStudent(ctx context.Context, courseID, studentID string) ([]course.Submission, error) {
	var rows []submissionRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT s.id, s.assessment_id, s.student_id, s.answers, s.score, s.feedback, s.submitted_at, s.graded_at
		FROM submission s
		JOIN assessment a ON a.id = s.assessment_id
		WHERE a.course_id = $1 AND s.student_id = $2
		ORDER BY s.submitted_at`,
		courseID, studentID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions by student")
	}
	subs := make([]course.Submission, 0, len(rows))
	for _, row := range rows {
		subs = append(subs, repo.submissionFromRow(row))
	}
	return subs, nil
}

func (repo courseRepository) UpdateSubmission(ctx context.Context, sub course.Submission) (course.Submission, error) {
	existing, err := repo.GetSubmissionByID(ctx, sub.ID)
	if err != nil {
		return course.Submission{}, err
	}

	if sub.Score == nil {
		sub.Score = existing.Score
	}
	if sub.Feedback == "" {
		sub.Feedback = existing.Feedback
	}
	if sub.GradedAt == nil {
		sub.GradedAt = existing.GradedAt
	}
	sub.AssessmentID = existing.AssessmentID
	sub.StudentID = existing.StudentID
	sub.Answers = existing.Answers
	sub.SubmittedAt = existing.SubmittedAt

	row := submissionRow{
		ID:       sub.ID,
		Score:    null.Float64FromPtr(sub.Score),
		Feedback: null.NewString(sub.Feedback, sub.Feedback != ""),
	}
	if sub.GradedAt != nil {
		row.GradedAt = null.TimeFrom(sub.GradedAt.UTC())
	}
	_, err = repo.db.NamedExecContext(ctx, `
		UPDATE submission
		SET score = :score, feedback = :feedback, graded_at = :graded_at
		WHERE id = :id`,
		row,
	)
	if err != nil {
		return course.Submission{}, errors.Wrap(err, "updating submission")
	}
	return sub, nil
}
