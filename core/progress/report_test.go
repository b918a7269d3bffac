package progress_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elimulab/elimu/core/course"
	"github.com/elimulab/elimu/core/progress"
)

func ptrF(f float64) *float64 { return &f }

func courseWithLessons(perModule ...int) course.Course {
	crs := course.Course{ID: "crs-1", Title: "Go 101"}
	for _, n := range perModule {
		mod := course.Module{Title: "module"}
		for i := 0; i < n; i++ {
			mod.Lessons = append(mod.Lessons, course.Lesson{Title: "lesson"})
		}
		crs.Modules = append(crs.Modules, mod)
	}
	return crs
}

func gradedResult(score float64) progress.AssessmentResult {
	now := time.Now()
	return progress.AssessmentResult{
		Assessment: course.Assessment{ID: "asmt", TotalPoints: 100},
		Submission: &course.Submission{ID: "sub", Score: ptrF(score), GradedAt: &now},
	}
}

func TestComputeProgressReport(t *testing.T) {
	completed := func(n int) []progress.CompletedLesson {
		lessons := make([]progress.CompletedLesson, n)
		for i := range lessons {
			lessons[i] = progress.CompletedLesson{LessonIndex: i, Completed: true, TimeSpentSecs: 60}
		}
		return lessons
	}

	tests := []struct {
		name string
		data progress.StudentProgressData
		want progress.ProgressReport
	}{
		{
			name: "empty course yields zero percent, not NaN",
			data: progress.StudentProgressData{Course: courseWithLessons()},
			want: progress.ProgressReport{IsStruggling: true},
		},
		{
			name: "lesson counts and time roll up",
			data: progress.StudentProgressData{
				Course: courseWithLessons(2, 2),
				Record: progress.Record{CompletedLessons: completed(3)},
			},
			want: progress.ProgressReport{
				TotalLessonsCount:     4,
				CompletedLessonsCount: 3,
				PercentComplete:       75,
				TotalTimeSpentSecs:    180,
			},
		},
		{
			name: "incomplete entries do not count",
			data: progress.StudentProgressData{
				Course: courseWithLessons(4),
				Record: progress.Record{CompletedLessons: []progress.CompletedLesson{
					{LessonIndex: 0, Completed: true, TimeSpentSecs: 30},
					{LessonIndex: 1, Completed: false, TimeSpentSecs: 300},
				}},
			},
			want: progress.ProgressReport{
				TotalLessonsCount:     4,
				CompletedLessonsCount: 1,
				PercentComplete:       25,
				TotalTimeSpentSecs:    30,
				IsStruggling:          true,
			},
		},
		{
			name: "average over graded submissions only",
			data: progress.StudentProgressData{
				Course: courseWithLessons(1),
				Record: progress.Record{CompletedLessons: completed(1)},
				Assessments: []progress.AssessmentResult{
					gradedResult(80),
					gradedResult(60),
					{ // submitted but ungraded
						Assessment: course.Assessment{ID: "asmt-3", TotalPoints: 100},
						Submission: &course.Submission{ID: "sub-3"},
					},
					{Assessment: course.Assessment{ID: "asmt-4", TotalPoints: 100}}, // no submission
				},
			},
			want: progress.ProgressReport{
				TotalLessonsCount:     1,
				CompletedLessonsCount: 1,
				PercentComplete:       100,
				TotalTimeSpentSecs:    60,
				CompletedAssessments:  3,
				TotalAssessments:      4,
				AverageScore:          70,
			},
		},
		{
			name: "exactly 50 percent complete is not struggling",
			data: progress.StudentProgressData{
				Course:      courseWithLessons(2),
				Record:      progress.Record{CompletedLessons: completed(1)},
				Assessments: []progress.AssessmentResult{gradedResult(40)},
			},
			want: progress.ProgressReport{
				TotalLessonsCount:     2,
				CompletedLessonsCount: 1,
				PercentComplete:       50,
				TotalTimeSpentSecs:    60,
				CompletedAssessments:  1,
				TotalAssessments:      1,
				AverageScore:          40,
				IsStruggling:          false,
			},
		},
		{
			name: "below both thresholds is struggling",
			data: progress.StudentProgressData{
				Course:      courseWithLessons(10),
				Record:      progress.Record{CompletedLessons: completed(3)},
				Assessments: []progress.AssessmentResult{gradedResult(55)},
			},
			want: progress.ProgressReport{
				TotalLessonsCount:     10,
				CompletedLessonsCount: 3,
				PercentComplete:       30,
				TotalTimeSpentSecs:    180,
				CompletedAssessments:  1,
				TotalAssessments:      1,
				AverageScore:          55,
				IsStruggling:          true,
			},
		},
		{
			name: "score exactly 60 is not struggling",
			data: progress.StudentProgressData{
				Course:      courseWithLessons(10),
				Record:      progress.Record{CompletedLessons: completed(1)},
				Assessments: []progress.AssessmentResult{gradedResult(60)},
			},
			want: progress.ProgressReport{
				TotalLessonsCount:     10,
				CompletedLessonsCount: 1,
				PercentComplete:       10,
				TotalTimeSpentSecs:    60,
				CompletedAssessments:  1,
				TotalAssessments:      1,
				AverageScore:          60,
				IsStruggling:          false,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, progress.ComputeProgressReport(tt.data))
		})
	}
}

func TestClampPercent(t *testing.T) {
	assert.Equal(t, 0.0, progress.ClampPercent(-5))
	assert.Equal(t, 0.0, progress.ClampPercent(0))
	assert.Equal(t, 42.5, progress.ClampPercent(42.5))
	assert.Equal(t, 100.0, progress.ClampPercent(100))
	assert.Equal(t, 100.0, progress.ClampPercent(120))
}

func TestMissingStudents(t *testing.T) {
	tests := []struct {
		name        string
		roster      []string
		withRecords []string
		want        []string
	}{
		{name: "empty roster", roster: nil, withRecords: []string{"s1"}, want: []string{}},
		{name: "nobody missing", roster: []string{"s1", "s2"}, withRecords: []string{"s2", "s1"}, want: []string{}},
		{name: "all missing", roster: []string{"s1", "s2"}, withRecords: nil, want: []string{"s1", "s2"}},
		{
			name:        "roster order preserved",
			roster:      []string{"s3", "s1", "s2"},
			withRecords: []string{"s1"},
			want:        []string{"s3", "s2"},
		},
		{
			name:        "ids compared normalized",
			roster:      []string{"s1", " s2 "},
			withRecords: []string{"s2 "},
			want:        []string{"s1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, progress.MissingStudents(tt.roster, tt.withRecords))
		})
	}
}

func TestWriteCSV(t *testing.T) {
	t.Run("header only when empty", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, progress.WriteCSV(&buf, nil))
		assert.Equal(t, "student_name,email,course_title,overall_progress,completed_lessons,last_accessed\n", buf.String())
	})

	t.Run("rows sorted by course title then student name", func(t *testing.T) {
		accessed := time.Date(2026, 3, 5, 10, 30, 0, 0, time.UTC)
		rows := []progress.ReportRow{
			{StudentName: "Zed", StudentEmail: "zed@test.com", CourseTitle: "Go 101", OverallProgress: 80, CompletedLessons: 8, LastAccessed: accessed},
			{StudentName: "Amy", StudentEmail: "amy@test.com", CourseTitle: "Go 101", OverallProgress: 12.5, CompletedLessons: 1},
			{StudentName: "Bob", StudentEmail: "bob@test.com", CourseTitle: "Algorithms", OverallProgress: 100, CompletedLessons: 10, LastAccessed: accessed},
		}

		var buf bytes.Buffer
		require.NoError(t, progress.WriteCSV(&buf, rows))

		want := "student_name,email,course_title,overall_progress,completed_lessons,last_accessed\n" +
			"Bob,bob@test.com,Algorithms,100,10,2026-03-05T10:30:00Z\n" +
			"Amy,amy@test.com,Go 101,12.5,1,\n" +
			"Zed,zed@test.com,Go 101,80,8,2026-03-05T10:30:00Z\n"
		assert.Equal(t, want, buf.String())
	})
}
