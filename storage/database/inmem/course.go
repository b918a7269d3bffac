package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/elimulab/elimu/core/course"
)

type courseRepository struct {
	db *courseTable
}

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db.course}
}

func (repo *courseRepository) queryCourses(keep func(course.Course) bool) []course.Course {
	courses := make([]course.Course, 0, len(repo.db.courses))
	for _, crs := range repo.db.courses {
		if keep == nil || keep(*crs) {
			courses = append(courses, *crs)
		}
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].CreatedAt.Before(courses[j].CreatedAt) })
	return courses
}

func (repo *courseRepository) CreateCourse(_ context.Context, crs course.Course) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	crs.ID = uuid.New().String()
	repo.db.courses[crs.ID] = &crs
	return crs, nil
}

func (repo *courseRepository) GetCourseByID(_ context.Context, id string) (course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if crs, ok := repo.db.courses[id]; ok {
		return *crs, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) QueryAllCourses(_ context.Context) ([]course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.queryCourses(nil), nil
}

func (repo *courseRepository) QueryCoursesByOwner(_ context.Context, ownerID string) ([]course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.queryCourses(func(crs course.Course) bool { return crs.OwnerID == ownerID }), nil
}

func (repo *courseRepository) QueryPublishedCourses(_ context.Context) ([]course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.queryCourses(func(crs course.Course) bool { return crs.Published }), nil
}

func (repo *courseRepository) UpdateCourse(_ context.Context, crs course.Course) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.courses[crs.ID]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	if crs.Title != "" {
		orig.Title = crs.Title
	}
	if crs.Description != "" {
		orig.Description = crs.Description
	}
	if crs.Modules != nil {
		orig.Modules = crs.Modules
	}
	if !crs.UpdatedAt.IsZero() {
		orig.UpdatedAt = crs.UpdatedAt
	}
	return *orig, nil
}

func (repo *courseRepository) SetCoursePublished(_ context.Context, id string, published bool) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	crs, ok := repo.db.courses[id]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	crs.Published = published
	return *crs, nil
}

func (repo *courseRepository) CreateAssessment(_ context.Context, a course.Assessment) (course.Assessment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	a.ID = uuid.New().String()
	repo.db.assessments[a.ID] = &a
	return a, nil
}

func (repo *courseRepository) GetAssessmentByID(_ context.Context, id string) (course.Assessment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if a, ok := repo.db.assessments[id]; ok {
		return *a, nil
	}
	return course.Assessment{}, course.ErrAssessmentNotFound
}

func (repo *courseRepository) QueryAssessmentsByCourse(_ context.Context, courseID string) ([]course.Assessment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	assessments := make([]course.Assessment, 0)
	for _, a := range repo.db.assessments {
		if a.CourseID == courseID {
			assessments = append(assessments, *a)
		}
	}
	sort.Slice(assessments, func(i, j int) bool { return assessments[i].CreatedAt.Before(assessments[j].CreatedAt) })
	return assessments, nil
}

func (repo *courseRepository) CreateSubmission(_ context.Context, sub course.Submission) (course.Submission, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, existing := range repo.db.submissions {
		if existing.AssessmentID == sub.AssessmentID && existing.StudentID == sub.StudentID {
			return course.Submission{}, course.ErrSubmissionExists
		}
	}

	sub.ID = uuid.New().String()
	repo.db.submissions[sub.ID] = &sub
	return sub, nil
}

func (repo *courseRepository) GetSubmissionByID(_ context.Context, id string) (course.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if sub, ok := repo.db.submissions[id]; ok {
		return *sub, nil
	}
	return course.Submission{}, course.ErrSubmissionNotFound
}

func (repo *courseRepository) QuerySubmissionsByStudent(_ context.Context, courseID, studentID string) ([]course.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	courseAssessments := make(map[string]bool)
	for _, a := range repo.db.assessments {
		if a.CourseID == courseID {
			courseAssessments[a.ID] = true
		}
	}

	subs := make([]course.Submission, 0)
	for _, sub := range repo.db.submissions {
		if sub.StudentID == studentID && courseAssessments[sub.AssessmentID] {
			subs = append(subs, *sub)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].SubmittedAt.Before(subs[j].SubmittedAt) })
	return subs, nil
}

func (repo *courseRepository) UpdateSubmission(_ context.Context, sub course.Submission) (course.Submission, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.submissions[sub.ID]
	if !ok {
		return course.Submission{}, course.ErrSubmissionNotFound
	}
	if sub.Score != nil {
		orig.Score = sub.Score
	}
	if sub.Feedback != "" {
		orig.Feedback = sub.Feedback
	}
	if sub.GradedAt != nil {
		orig.GradedAt = sub.GradedAt
	}
	return *orig, nil
}
