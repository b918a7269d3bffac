package course

import (
	"encoding/json"
	"time"

	"github.com/elimulab/elimu/core"
)

// Assessment kinds
const (
	KindQuiz       = "quiz"
	KindAssignment = "assignment"
)

type (
	Lesson struct {
		Title        string `json:"title"`
		DurationMins int    `json:"duration_mins,omitempty"`
	}

	Module struct {
		Title   string   `json:"title"`
		Lessons []Lesson `json:"lessons"`
	}

	// Course is owned by exactly one instructor. Modules are ordered; module
	// and lesson indices used by progress records refer to positions here.
	Course struct {
		ID          string    `json:"id"`
		Title       string    `json:"title"`
		Description string    `json:"description"`
		OwnerID     string    `json:"owner_id"`
		Published   bool      `json:"published"`
		Modules     []Module  `json:"modules"`
		CreatedAt   time.Time `json:"created_at"` // UTC
		UpdatedAt   time.Time `json:"updated_at"` // UTC
	}

	Assessment struct {
		ID          string    `json:"id"`
		CourseID    string    `json:"course_id"`
		Title       string    `json:"title"`
		Kind        string    `json:"kind"`
		TotalPoints float64   `json:"total_points"`
		CreatedAt   time.Time `json:"created_at"`
	}

	// Submission: at most one per (assessment, student).
	Submission struct {
		ID           string          `json:"id"`
		AssessmentID string          `json:"assessment_id"`
		StudentID    string          `json:"student_id"`
		Answers      json.RawMessage `json:"answers"`
		Score        *float64        `json:"score,omitempty"` // 0..Assessment.TotalPoints
		Feedback     string          `json:"feedback,omitempty"`
		SubmittedAt  time.Time       `json:"submitted_at"`
		GradedAt     *time.Time      `json:"graded_at,omitempty"`
	}
)

// TotalLessons counts lessons across all modules.
func (c Course) TotalLessons() int {
	var n int
	for _, m := range c.Modules {
		n += len(m.Lessons)
	}
	return n
}

// LessonAt reports whether (moduleIdx, lessonIdx) addresses an existing lesson.
func (c Course) LessonAt(moduleIdx, lessonIdx int) bool {
	if moduleIdx < 0 || moduleIdx >= len(c.Modules) {
		return false
	}
	return lessonIdx >= 0 && lessonIdx < len(c.Modules[moduleIdx].Lessons)
}

func (s Submission) Graded() bool {
	return s.GradedAt != nil && s.Score != nil
}

// NewCourse contains information needed to create a course.
type NewCourse struct {
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description"`
	Modules     []Module `json:"modules" validate:"omitempty,dive"`
}

func (nc *NewCourse) Validate() error {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	return core.Validate.Struct(nc)
}

// UpdateCourse defines what may be modified on an existing course.
// Modules, when non-nil, replace the ordered module list wholesale.
type UpdateCourse struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Modules     []Module `json:"modules" validate:"omitempty,dive"`
}

func (uc *UpdateCourse) Validate(orig Course) error {
	title := core.CleanString(uc.Title)
	if title != "" {
		uc.Title = title
	} else {
		uc.Title = orig.Title
	}
	if desc := core.CleanString(uc.Description); desc != "" {
		uc.Description = desc
	} else {
		uc.Description = orig.Description
	}
	return core.Validate.Struct(uc)
}

type NewAssessment struct {
	Title       string  `json:"title" validate:"required"`
	Kind        string  `json:"kind" validate:"required,oneof=quiz assignment"`
	TotalPoints float64 `json:"total_points" validate:"required,gt=0"`
}

func (na *NewAssessment) Validate() error {
	na.Title = core.CleanString(na.Title)
	na.Kind = core.CleanString(na.Kind, true /* lower */)
	return core.Validate.Struct(na)
}

type NewSubmission struct {
	Answers json.RawMessage `json:"answers" validate:"required"`
}

func (ns *NewSubmission) Validate() error { return core.Validate.Struct(ns) }

type GradeSubmission struct {
	Score    *float64 `json:"score" validate:"required"`
	Feedback string   `json:"feedback"`
}

func (gs *GradeSubmission) Validate() error {
	gs.Feedback = core.CleanString(gs.Feedback)
	return core.Validate.Struct(gs)
}
