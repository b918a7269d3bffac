package progress

import (
	"time"

	"github.com/elimulab/elimu/core"
)

type (
	// Enrollment is one (student, course) roster entry. The enrollment rows
	// of a course are its authoritative roster.
	Enrollment struct {
		ID         string    `json:"id"`
		CourseID   string    `json:"course_id"`
		StudentID  string    `json:"student_id"`
		EnrolledAt time.Time `json:"enrolled_at"`
	}

	CompletedLesson struct {
		ModuleIndex   int       `json:"module_index"`
		LessonIndex   int       `json:"lesson_index"`
		Completed     bool      `json:"completed"`
		StartedAt     time.Time `json:"started_at,omitempty"`
		FinishedAt    time.Time `json:"finished_at,omitempty"`
		TimeSpentSecs int       `json:"time_spent_secs"`
		LastPosition  *int      `json:"last_position,omitempty"` // seconds, for video lessons
	}

	CompletedModule struct {
		ModuleIndex   int       `json:"module_index"`
		CompletedAt   time.Time `json:"completed_at"`
		TimeSpentSecs int       `json:"time_spent_secs"`
	}

	// Record is the per-(student, course) progress aggregate, created lazily
	// on the first activity event. OverallProgress is clamped to [0, 100];
	// it is not forced monotonic; an instructor override may lower it.
	Record struct {
		ID               string            `json:"id"`
		CourseID         string            `json:"course_id"`
		StudentID        string            `json:"student_id"`
		OverallProgress  float64           `json:"overall_progress"`
		CompletedModules []CompletedModule `json:"completed_modules"`
		CompletedLessons []CompletedLesson `json:"completed_lessons"`
		LastAccessed     time.Time         `json:"last_accessed"`
		CreatedAt        time.Time         `json:"created_at"`
		UpdatedAt        time.Time         `json:"updated_at"`
	}
)

// LessonEntry returns the record's entry for (moduleIdx, lessonIdx), if any.
func (r *Record) LessonEntry(moduleIdx, lessonIdx int) *CompletedLesson {
	for i := range r.CompletedLessons {
		cl := &r.CompletedLessons[i]
		if cl.ModuleIndex == moduleIdx && cl.LessonIndex == lessonIdx {
			return cl
		}
	}
	return nil
}

// ModuleEntry returns the record's completed-module entry for moduleIdx, if any.
func (r *Record) ModuleEntry(moduleIdx int) *CompletedModule {
	for i := range r.CompletedModules {
		cm := &r.CompletedModules[i]
		if cm.ModuleIndex == moduleIdx {
			return cm
		}
	}
	return nil
}

// CompletedLessonsCount counts entries flagged completed.
func (r *Record) CompletedLessonsCount() int {
	var n int
	for _, cl := range r.CompletedLessons {
		if cl.Completed {
			n++
		}
	}
	return n
}

// LessonEvent is a student activity report for a single lesson.
type LessonEvent struct {
	ModuleIndex   int  `json:"module_index" validate:"gte=0"`
	LessonIndex   int  `json:"lesson_index" validate:"gte=0"`
	Completed     bool `json:"completed"`
	TimeSpentSecs int  `json:"time_spent_secs" validate:"gte=0"`
	LastPosition  *int `json:"last_position,omitempty" validate:"omitempty,gte=0"`
}

func (ev *LessonEvent) Validate() error { return core.Validate.Struct(ev) }

// OverrideProgress is an instructor's explicit overwrite of a student's
// overall percentage.
type OverrideProgress struct {
	OverallProgress *float64 `json:"overall_progress" validate:"required,gte=0,lte=100"`
}

func (op *OverrideProgress) Validate() error { return core.Validate.Struct(op) }
