package course_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elimulab/elimu/core"
	"github.com/elimulab/elimu/core/auth"
	"github.com/elimulab/elimu/core/course"
	"github.com/elimulab/elimu/core/user"
	inmemdb "github.com/elimulab/elimu/storage/database/inmem"
)

func newService() *course.Service {
	return course.NewService(inmemdb.NewCourseRepository(inmemdb.NewDB()))
}

func identity(accountID, role string) auth.Identity {
	return auth.Identity{AccountID: accountID, HeldRoles: []string{role}, ActiveRole: role}
}

func createCourse(t *testing.T, svc *course.Service, ownerID, title string, publish bool) course.Course {
	t.Helper()
	ctx := context.Background()

	crs, err := svc.Create(ctx, ownerID, course.NewCourse{
		Title:   title,
		Modules: []course.Module{{Title: "basics", Lessons: []course.Lesson{{Title: "intro"}}}},
	})
	require.NoError(t, err)
	if publish {
		crs, err = svc.Publish(ctx, identity(ownerID, user.RoleInstructor), crs.ID)
		require.NoError(t, err)
	}
	return crs
}

func TestServiceList(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	published := createCourse(t, svc, "instr-1", "Go 101", true)
	draft := createCourse(t, svc, "instr-1", "Go 102", false)
	other := createCourse(t, svc, "instr-2", "Algorithms", true)

	titles := func(courses []course.Course) []string {
		out := make([]string, 0, len(courses))
		for _, crs := range courses {
			out = append(out, crs.Title)
		}
		return out
	}

	tests := []struct {
		name string
		id   auth.Identity
		want []string
	}{
		{name: "admin sees everything", id: identity("adm-1", user.RoleAdmin), want: []string{published.Title, draft.Title, other.Title}},
		{name: "instructor sees own courses", id: identity("instr-1", user.RoleInstructor), want: []string{published.Title, draft.Title}},
		{name: "student sees published only", id: identity("stud-1", user.RoleStudent), want: []string{published.Title, other.Title}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			courses, err := svc.List(ctx, tt.id)
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, titles(courses))
		})
	}
}

func TestServiceUpdate(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	crs := createCourse(t, svc, "instr-1", "Go 101", false)

	t.Run("non-owner instructor denied", func(t *testing.T) {
		_, err := svc.Update(ctx, identity("instr-2", user.RoleInstructor), crs.ID, course.UpdateCourse{Title: "Hijacked"})
		var pErr *auth.PermissionError
		require.ErrorAs(t, err, &pErr)
		assert.Equal(t, auth.ReasonNotOwner, pErr.Reason)
	})

	t.Run("blank fields keep current values", func(t *testing.T) {
		updated, err := svc.Update(ctx, identity("instr-1", user.RoleInstructor), crs.ID, course.UpdateCourse{Description: "now with maps"})
		require.NoError(t, err)
		assert.Equal(t, "Go 101", updated.Title)
		assert.Equal(t, "now with maps", updated.Description)
		assert.Equal(t, crs.Modules, updated.Modules)
	})

	t.Run("modules replaced wholesale when given", func(t *testing.T) {
		mods := []course.Module{
			{Title: "basics", Lessons: []course.Lesson{{Title: "intro"}, {Title: "types"}}},
			{Title: "concurrency", Lessons: []course.Lesson{{Title: "goroutines"}}},
		}
		updated, err := svc.Update(ctx, identity("instr-1", user.RoleInstructor), crs.ID, course.UpdateCourse{Modules: mods})
		require.NoError(t, err)
		assert.Equal(t, mods, updated.Modules)
		assert.Equal(t, 3, updated.TotalLessons())
	})

	t.Run("admin may update any course", func(t *testing.T) {
		updated, err := svc.Update(ctx, identity("adm-1", user.RoleAdmin), crs.ID, course.UpdateCourse{Title: "Go 101 (rev)"})
		require.NoError(t, err)
		assert.Equal(t, "Go 101 (rev)", updated.Title)
	})
}

func TestServicePublish(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	crs := createCourse(t, svc, "instr-1", "Go 101", false)

	t.Run("non-owner denied", func(t *testing.T) {
		_, err := svc.Publish(ctx, identity("instr-2", user.RoleInstructor), crs.ID)
		var pErr *auth.PermissionError
		require.ErrorAs(t, err, &pErr)
	})

	t.Run("owner publishes", func(t *testing.T) {
		published, err := svc.Publish(ctx, identity("instr-1", user.RoleInstructor), crs.ID)
		require.NoError(t, err)
		assert.True(t, published.Published)
	})

	t.Run("unknown course", func(t *testing.T) {
		_, err := svc.Publish(ctx, identity("instr-1", user.RoleInstructor), "nope")
		assert.Equal(t, course.ErrNotFound, err)
	})
}

func TestServiceSubmit(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	owner := identity("instr-1", user.RoleInstructor)

	crs := createCourse(t, svc, "instr-1", "Go 101", false)
	asmt, err := svc.CreateAssessment(ctx, owner, crs.ID, course.NewAssessment{Title: "quiz 1", Kind: course.KindQuiz, TotalPoints: 100})
	require.NoError(t, err)

	answers := course.NewSubmission{Answers: json.RawMessage(`{"q1":"a"}`)}

	t.Run("unknown assessment", func(t *testing.T) {
		_, err := svc.Submit(ctx, "stud-1", "nope", answers)
		assert.Equal(t, course.ErrAssessmentNotFound, err)
	})

	t.Run("course not published", func(t *testing.T) {
		_, err := svc.Submit(ctx, "stud-1", asmt.ID, answers)
		assert.Equal(t, course.ErrNotPublished, err)
	})

	_, err = svc.Publish(ctx, owner, crs.ID)
	require.NoError(t, err)

	t.Run("one submission per student", func(t *testing.T) {
		sub, err := svc.Submit(ctx, "stud-1", asmt.ID, answers)
		require.NoError(t, err)
		assert.NotEmpty(t, sub.ID)
		assert.False(t, sub.SubmittedAt.IsZero())
		assert.Nil(t, sub.Score)

		_, err = svc.Submit(ctx, "stud-1", asmt.ID, answers)
		assert.Equal(t, course.ErrSubmissionExists, err)

		// a different student is fine
		_, err = svc.Submit(ctx, "stud-2", asmt.ID, answers)
		assert.NoError(t, err)
	})
}

func TestServiceGrade(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	owner := identity("instr-1", user.RoleInstructor)

	crs := createCourse(t, svc, "instr-1", "Go 101", true)
	asmt, err := svc.CreateAssessment(ctx, owner, crs.ID, course.NewAssessment{Title: "quiz 1", Kind: course.KindQuiz, TotalPoints: 50})
	require.NoError(t, err)
	sub, err := svc.Submit(ctx, "stud-1", asmt.ID, course.NewSubmission{Answers: json.RawMessage(`{}`)})
	require.NoError(t, err)

	score := func(f float64) *float64 { return &f }

	t.Run("non-owner instructor denied", func(t *testing.T) {
		_, err := svc.Grade(ctx, identity("instr-2", user.RoleInstructor), sub.ID, course.GradeSubmission{Score: score(40)})
		var pErr *auth.PermissionError
		require.ErrorAs(t, err, &pErr)
	})

	t.Run("score above total points", func(t *testing.T) {
		_, err := svc.Grade(ctx, owner, sub.ID, course.GradeSubmission{Score: score(51)})
		var vErr *core.ValidationError
		require.ErrorAs(t, err, &vErr)
	})

	t.Run("negative score", func(t *testing.T) {
		_, err := svc.Grade(ctx, owner, sub.ID, course.GradeSubmission{Score: score(-1)})
		var vErr *core.ValidationError
		require.ErrorAs(t, err, &vErr)
	})

	t.Run("grades within bounds", func(t *testing.T) {
		graded, err := svc.Grade(ctx, owner, sub.ID, course.GradeSubmission{Score: score(42), Feedback: "solid"})
		require.NoError(t, err)
		require.NotNil(t, graded.Score)
		assert.Equal(t, 42.0, *graded.Score)
		assert.Equal(t, "solid", graded.Feedback)
		assert.True(t, graded.Graded())
		// the original submission payload survives the grading update
		assert.Equal(t, "stud-1", graded.StudentID)
	})
}
