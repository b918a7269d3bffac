package progress

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/elimulab/elimu/core/course"
)

// Struggling thresholds. Both conditions must hold (strict inequalities):
// a student at exactly 50% completion is not struggling whatever their score.
const (
	strugglingPercentBelow = 50.0
	strugglingScoreBelow   = 60.0
)

type (
	// AssessmentResult pairs an assessment with the student's submission, if any.
	AssessmentResult struct {
		Assessment course.Assessment  `json:"assessment"`
		Submission *course.Submission `json:"submission,omitempty"`
	}

	// StudentProgressData is everything needed to derive one student's report
	// for one course.
	StudentProgressData struct {
		Course      course.Course      `json:"course"`
		Record      Record             `json:"record"`
		Assessments []AssessmentResult `json:"assessments"`
	}

	ProgressReport struct {
		TotalLessonsCount    int     `json:"total_lessons_count"`
		CompletedLessonsCount int    `json:"completed_lessons_count"`
		PercentComplete      float64 `json:"percent_complete"`
		TotalTimeSpentSecs   int     `json:"total_time_spent_secs"`
		CompletedAssessments int     `json:"completed_assessments"`
		TotalAssessments     int     `json:"total_assessments"`
		AverageScore         float64 `json:"average_score"`
		IsStruggling         bool    `json:"is_struggling"`
	}
)

// ComputeProgressReport derives the unified report. Pure; no store access.
func ComputeProgressReport(data StudentProgressData) ProgressReport {
	rpt := ProgressReport{
		TotalLessonsCount: data.Course.TotalLessons(),
		TotalAssessments:  len(data.Assessments),
	}

	for _, cl := range data.Record.CompletedLessons {
		if cl.Completed {
			rpt.CompletedLessonsCount++
			rpt.TotalTimeSpentSecs += cl.TimeSpentSecs
		}
	}

	if rpt.TotalLessonsCount > 0 {
		rpt.PercentComplete = float64(rpt.CompletedLessonsCount) / float64(rpt.TotalLessonsCount) * 100
	}

	var gradedCount int
	var scoreSum float64
	for _, ar := range data.Assessments {
		if ar.Submission == nil {
			continue
		}
		rpt.CompletedAssessments++
		if ar.Submission.Graded() {
			gradedCount++
			scoreSum += *ar.Submission.Score
		}
	}
	if gradedCount > 0 {
		rpt.AverageScore = scoreSum / float64(gradedCount)
	}

	rpt.IsStruggling = rpt.PercentComplete < strugglingPercentBelow && rpt.AverageScore < strugglingScoreBelow
	return rpt
}

// ClampPercent clamps a completion percentage into [0, 100].
func ClampPercent(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// MissingStudents returns the roster IDs with no progress record, in roster
// order. Comparison is by string-normalized ID, not reference.
func MissingStudents(roster, withRecords []string) []string {
	seen := make(map[string]struct{}, len(withRecords))
	for _, id := range withRecords {
		seen[normalizeID(id)] = struct{}{}
	}
	missing := make([]string, 0, len(roster))
	for _, id := range roster {
		if _, ok := seen[normalizeID(id)]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

func normalizeID(id string) string {
	return strings.TrimSpace(id)
}

// ReportRow is one (student, course) line of the instructor CSV export.
type ReportRow struct {
	StudentName      string
	StudentEmail     string
	CourseTitle      string
	OverallProgress  float64
	CompletedLessons int
	LastAccessed     time.Time
}

var csvHeader = []string{"student_name", "email", "course_title", "overall_progress", "completed_lessons", "last_accessed"}

// WriteCSV emits the report rows as UTF-8 CSV, header first, ordered by
// course title then student name so repeated exports diff cleanly.
func WriteCSV(w io.Writer, rows []ReportRow) error {
	sorted := make([]ReportRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].CourseTitle != sorted[j].CourseTitle {
			return sorted[i].CourseTitle < sorted[j].CourseTitle
		}
		return sorted[i].StudentName < sorted[j].StudentName
	})

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return errors.Wrap(err, "writing csv header")
	}
	for _, row := range sorted {
		var lastAccessed string
		if !row.LastAccessed.IsZero() {
			lastAccessed = row.LastAccessed.UTC().Format(time.RFC3339)
		}
		rec := []string{
			row.StudentName,
			row.StudentEmail,
			row.CourseTitle,
			strconv.FormatFloat(row.OverallProgress, 'f', -1, 64),
			strconv.Itoa(row.CompletedLessons),
			lastAccessed,
		}
		if err := cw.Write(rec); err != nil {
			return errors.Wrap(err, "writing csv row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flushing csv")
}
