package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/elimulab/elimu/core/progress"
)

type progressRepository struct {
	db *progressTable
}

func NewProgressRepository(db *DB) progress.Repository {
	return &progressRepository{db: db.progress}
}

func enrollmentKey(courseID, studentID string) string {
	return courseID + "/" + studentID
}

func (repo *progressRepository) CreateEnrollment(_ context.Context, e progress.Enrollment) (progress.Enrollment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	key := enrollmentKey(e.CourseID, e.StudentID)
	if _, ok := repo.db.enrollments[key]; ok {
		return progress.Enrollment{}, progress.ErrAlreadyEnrolled
	}

	e.ID = uuid.New().String()
	repo.db.enrollments[key] = &e
	return e, nil
}

func (repo *progressRepository) GetEnrollment(_ context.Context, courseID, studentID string) (progress.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if e, ok := repo.db.enrollments[enrollmentKey(courseID, studentID)]; ok {
		return *e, nil
	}
	return progress.Enrollment{}, progress.ErrEnrollmentNotFound
}

func (repo *progressRepository) queryEnrollments(keep func(progress.Enrollment) bool) []progress.Enrollment {
	enrollments := make([]progress.Enrollment, 0)
	for _, e := range repo.db.enrollments {
		if keep(*e) {
			enrollments = append(enrollments, *e)
		}
	}
	sort.Slice(enrollments, func(i, j int) bool { return enrollments[i].EnrolledAt.Before(enrollments[j].EnrolledAt) })
	return enrollments
}

func (repo *progressRepository) QueryEnrollmentsByCourse(_ context.Context, courseID string) ([]progress.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.queryEnrollments(func(e progress.Enrollment) bool { return e.CourseID == courseID }), nil
}

func (repo *progressRepository) QueryEnrollmentsByStudent(_ context.Context, studentID string) ([]progress.Enrollment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.queryEnrollments(func(e progress.Enrollment) bool { return e.StudentID == studentID }), nil
}

func (repo *progressRepository) DeleteEnrollment(_ context.Context, courseID, studentID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	key := enrollmentKey(courseID, studentID)
	if _, ok := repo.db.enrollments[key]; !ok {
		return progress.ErrEnrollmentNotFound
	}
	delete(repo.db.enrollments, key)
	return nil
}

func (repo *progressRepository) CreateRecord(_ context.Context, rec progress.Record) (progress.Record, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	key := enrollmentKey(rec.CourseID, rec.StudentID)
	if _, ok := repo.db.records[key]; ok {
		return progress.Record{}, progress.ErrNotFound
	}

	rec.ID = uuid.New().String()
	repo.db.records[key] = &rec
	return rec, nil
}

func (repo *progressRepository) GetRecord(_ context.Context, courseID, studentID string) (progress.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if rec, ok := repo.db.records[enrollmentKey(courseID, studentID)]; ok {
		return *rec, nil
	}
	return progress.Record{}, progress.ErrNotFound
}

func (repo *progressRepository) queryRecords(keep func(progress.Record) bool) []progress.Record {
	records := make([]progress.Record, 0)
	for _, rec := range repo.db.records {
		if keep(*rec) {
			records = append(records, *rec)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].CreatedAt.Before(records[j].CreatedAt) })
	return records
}

func (repo *progressRepository) QueryRecordsByCourse(_ context.Context, courseID string) ([]progress.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.queryRecords(func(rec progress.Record) bool { return rec.CourseID == courseID }), nil
}

func (repo *progressRepository) QueryRecordsByCourses(_ context.Context, courseIDs []string) ([]progress.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	wanted := make(map[string]bool, len(courseIDs))
	for _, id := range courseIDs {
		wanted[id] = true
	}
	return repo.queryRecords(func(rec progress.Record) bool { return wanted[rec.CourseID] }), nil
}

func (repo *progressRepository) UpdateRecord(_ context.Context, rec progress.Record) (progress.Record, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	key := enrollmentKey(rec.CourseID, rec.StudentID)
	if _, ok := repo.db.records[key]; !ok {
		return progress.Record{}, progress.ErrNotFound
	}
	repo.db.records[key] = &rec
	return rec, nil
}

func (repo *progressRepository) SetOverallProgress(_ context.Context, courseID, studentID string, pct float64, now time.Time) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	rec, ok := repo.db.records[enrollmentKey(courseID, studentID)]
	if !ok {
		return progress.ErrNotFound
	}
	rec.OverallProgress = pct
	rec.UpdatedAt = now
	return nil
}
