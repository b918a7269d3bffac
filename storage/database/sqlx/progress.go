package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/elimulab/elimu/core/progress"
)

type progressRepository struct {
	db *sqlx.DB
}

var _ progress.Repository = (*progressRepository)(nil)

func NewProgressRepository(db *sqlx.DB) *progressRepository {
	return &progressRepository{db: db}
}

type enrollmentRow struct {
	ID         string    `db:"id"`
	CourseID   string    `db:"course_id"`
	StudentID  string    `db:"student_id"`
	EnrolledAt null.Time `db:"enrolled_at"`
}

func (repo progressRepository) enrollmentFromRow(row enrollmentRow) progress.Enrollment {
	return progress.Enrollment{
		ID:         row.ID,
		CourseID:   row.CourseID,
		StudentID:  row.StudentID,
		EnrolledAt: row.EnrolledAt.Time,
	}
}

const enrollmentColumns = `id, course_id, student_id, enrolled_at`

func (repo progressRepository) CreateEnrollment(ctx context.Context, e progress.Enrollment) (progress.Enrollment, error) {
	e.ID = uuid.New().String()
	row := enrollmentRow{
		ID:         e.ID,
		CourseID:   e.CourseID,
		StudentID:  e.StudentID,
		EnrolledAt: null.NewTime(e.EnrolledAt.UTC(), !e.EnrolledAt.IsZero()),
	}
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO enrollment (`+enrollmentColumns+`)
		VALUES (:id, :course_id, :student_id, :enrolled_at)`,
		row,
	)
	if err != nil {
		if isUniqueViolation(err, uniqEnrollmentCourseStudent) {
			return progress.Enrollment{}, progress.ErrAlreadyEnrolled
		}
		return progress.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	return e, nil
}

func (repo progressRepository) GetEnrollment(ctx context.Context, courseID, studentID string) (progress.Enrollment, error) {
	var row enrollmentRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT `+enrollmentColumns+` FROM enrollment WHERE course_id = $1 AND student_id = $2`,
		courseID, studentID,
	)
	if err != nil {
		return progress.Enrollment{}, trapNoRowsErr(err, progress.ErrEnrollmentNotFound, "finding enrollment")
	}
	return repo.enrollmentFromRow(row), nil
}

func (repo progressRepository) QueryEnrollmentsByCourse(ctx context.Context, courseID string) ([]progress.Enrollment, error) {
	var rows []enrollmentRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT `+enrollmentColumns+` FROM enrollment WHERE course_id = $1 ORDER BY enrolled_at`, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments by course")
	}
	enrollments := make([]progress.Enrollment, 0, len(rows))
	for _, row := range rows {
		enrollments = append(enrollments, repo.enrollmentFromRow(row))
	}
	return enrollments, nil
}

func (repo progressRepository) QueryEnrollmentsByStudent(ctx context.Context, studentID string) ([]progress.Enrollment, error) {
	var rows []enrollmentRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT `+enrollmentColumns+` FROM enrollment WHERE student_id = $1 ORDER BY enrolled_at`, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments by student")
	}
	enrollments := make([]progress.Enrollment, 0, len(rows))
	for _, row := range rows {
		enrollments = append(enrollments, repo.enrollmentFromRow(row))
	}
	return enrollments, nil
}

func (repo progressRepository) DeleteEnrollment(ctx context.Context, courseID, studentID string) error {
	res, err := repo.db.ExecContext(ctx,
		`DELETE FROM enrollment WHERE course_id = $1 AND student_id = $2`, courseID, studentID)
	if err != nil {
		return errors.Wrap(err, "deleting enrollment")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return progress.ErrEnrollmentNotFound
	}
	return nil
}

type progressRecordRow struct {
	ID               string    `db:"id"`
	CourseID         string    `db:"course_id"`
	StudentID        string    `db:"student_id"`
	OverallProgress  float64   `db:"overall_progress"`
	CompletedModules null.JSON `db:"completed_modules"`
	CompletedLessons null.JSON `db:"completed_lessons"`
	LastAccessed     null.Time `db:"last_accessed"`
	CreatedAt        null.Time `db:"created_at"`
	UpdatedAt        null.Time `db:"updated_at"`
}

func (repo progressRepository) toRecordRow(rec progress.Record) (progressRecordRow, error) {
	row := progressRecordRow{
		ID:              rec.ID,
		CourseID:        rec.CourseID,
		StudentID:       rec.StudentID,
		OverallProgress: rec.OverallProgress,
		LastAccessed:    null.NewTime(rec.LastAccessed.UTC(), !rec.LastAccessed.IsZero()),
		CreatedAt:       null.NewTime(rec.CreatedAt.UTC(), !rec.CreatedAt.IsZero()),
		UpdatedAt:       null.NewTime(rec.UpdatedAt.UTC(), !rec.UpdatedAt.IsZero()),
	}
	if rec.CompletedModules != nil {
		data, err := json.Marshal(rec.CompletedModules)
		if err != nil {
			return progressRecordRow{}, errors.Wrap(err, "encoding completed modules")
		}
		row.CompletedModules = null.JSONFrom(data)
	}
	if rec.CompletedLessons != nil {
		data, err := json.Marshal(rec.CompletedLessons)
		if err != nil {
			return progressRecordRow{}, errors.Wrap(err, "encoding completed lessons")
		}
		row.CompletedLessons = null.JSONFrom(data)
	}
	return row, nil
}

func (repo progressRepository) recordFromRow(row progressRecordRow) (progress.Record, error) {
	rec := progress.Record{
		ID:              row.ID,
		CourseID:        row.CourseID,
		StudentID:       row.StudentID,
		OverallProgress: row.OverallProgress,
		LastAccessed:    row.LastAccessed.Time,
		CreatedAt:       row.CreatedAt.Time,
		UpdatedAt:       row.UpdatedAt.Time,
	}
	if row.CompletedModules.Valid {
		if err := json.Unmarshal(row.CompletedModules.JSON, &rec.CompletedModules); err != nil {
			return progress.Record{}, errors.Wrap(err, "decoding completed modules")
		}
	}
	if row.CompletedLessons.Valid {
		if err := json.Unmarshal(row.CompletedLessons.JSON, &rec.CompletedLessons); err != nil {
			return progress.Record{}, errors.Wrap(err, "decoding completed lessons")
		}
	}
	return rec, nil
}

func (repo progressRepository) recordsFromRows(rows []progressRecordRow) ([]progress.Record, error) {
	records := make([]progress.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := repo.recordFromRow(row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

const recordColumns = `id, course_id, student_id, overall_progress, completed_modules, completed_lessons, last_accessed, created_at, updated_at`

func (repo progressRepository) CreateRecord(ctx context.Context, rec progress.Record) (progress.Record, error) {
	rec.ID = uuid.New().String()
	row, err := repo.toRecordRow(rec)
	if err != nil {
		return progress.Record{}, err
	}
	_, err = repo.db.NamedExecContext(ctx, `
		INSERT INTO progress_record (`+recordColumns+`)
		VALUES (:id, :course_id, :student_id, :overall_progress, :completed_modules, :completed_lessons, :last_accessed, :created_at, :updated_at)`,
		row,
	)
	if err != nil {
		return progress.Record{}, errors.Wrap(err, "inserting progress record")
	}
	return rec, nil
}

func (repo progressRepository) GetRecord(ctx context.Context, courseID, studentID string) (progress.Record, error) {
	var row progressRecordRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT `+recordColumns+` FROM progress_record WHERE course_id = $1 AND student_id = $2`,
		courseID, studentID,
	)
	if err != nil {
		return progress.Record{}, trapNoRowsErr(err, progress.ErrNotFound, "finding progress record")
	}
	return repo.recordFromRow(row)
}

func (repo progressRepository) QueryRecordsByCourse(ctx context.Context, courseID string) ([]progress.Record, error) {
	var rows []progressRecordRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT `+recordColumns+` FROM progress_record WHERE course_id = $1 ORDER BY created_at`, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "querying progress records by course")
	}
	return repo.recordsFromRows(rows)
}

func (repo progressRepository) QueryRecordsByCourses(ctx context.Context, courseIDs []string) ([]progress.Record, error) {
	var rows []progressRecordRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT `+recordColumns+` FROM progress_record WHERE course_id = ANY($1) ORDER BY created_at`,
		pq.Array(courseIDs),
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying progress records by courses")
	}
	return repo.recordsFromRows(rows)
}

func (repo progressRepository) UpdateRecord(ctx context.Context, rec progress.Record) (progress.Record, error) {
	row, err := repo.toRecordRow(rec)
	if err != nil {
		return progress.Record{}, err
	}
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE progress_record
		SET overall_progress = :overall_progress, completed_modules = :completed_modules,
		    completed_lessons = :completed_lessons, last_accessed = :last_accessed, updated_at = :updated_at
		WHERE id = :id`,
		row,
	)
	if err != nil {
		return progress.Record{}, errors.Wrap(err, "updating progress record")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return progress.Record{}, progress.ErrNotFound
	}
	return rec, nil
}

func (repo progressRepository) SetOverallProgress(ctx context.Context, courseID, studentID string, pct float64, now time.Time) error {
	res, err := repo.db.ExecContext(ctx, `
		UPDATE progress_record
		SET overall_progress = $1, updated_at = $2
		WHERE course_id = $3 AND student_id = $4`,
		pct, now.UTC(), courseID, studentID,
	)
	if err != nil {
		return errors.Wrap(err, "setting overall progress")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return progress.ErrNotFound
	}
	return nil
}
