package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/elimulab/elimu/core/course"
	"github.com/elimulab/elimu/core/user"
)

func Test_courseApi_query(t *testing.T) {
	app := setup(t)

	instructor := createUser(t, "Teacher", "teacher@test.com", true, user.RoleInstructor)
	otherInstructor := createUser(t, "Other", "other@test.com", true, user.RoleInstructor)
	student := createUser(t, "Hero", "hero@test.com", true)
	admin := createUser(t, "Admin", "admin@test.com", true, user.RoleAdmin)

	published := createCourse(t, instructor.ID, true, 2)
	draft := createCourse(t, instructor.ID, false, 2)
	foreign := createCourse(t, otherInstructor.ID, true, 1)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errNotAuthenticated)},
		{name: "Student sees published only", token: getToken(t, student), wantCode: http.StatusOK, wantData: marchallList(t, published, foreign)},
		{name: "Instructor sees own courses", token: getToken(t, instructor), wantCode: http.StatusOK, wantData: marchallList(t, published, draft)},
		{name: "Admin sees everything", token: getToken(t, admin), wantCode: http.StatusOK, wantData: marchallList(t, published, draft, foreign)},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		tt.path = "/v1/courses"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_courseApi_create(t *testing.T) {
	app := setup(t)

	instructor := createUser(t, "Teacher", "teacher@test.com", true, user.RoleInstructor)
	student := createUser(t, "Hero", "hero@test.com", true)

	body := marchallObj(t, course.NewCourse{Title: "Go 101"})

	tests := []httpTest{
		{name: "Auth required", body: body, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errNotAuthenticated)},
		{
			name: "Instructor role required", token: getToken(t, student), body: body, wantCode: http.StatusForbidden,
			wantData: marchallObj(t, permErr{Error: `permission denied: role "instructor" not held`, Reason: "role_not_held", Role: user.RoleInstructor}),
		},
		{
			name: "Title required", token: getToken(t, instructor), body: marchallObj(t, course.NewCourse{}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"title": "this field is required"}),
		},
		{name: "Course created", token: getToken(t, instructor), body: body, wantCode: http.StatusCreated},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/courses"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusCreated {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var crs course.Course
				if err := json.Unmarshal(rec.Body.Bytes(), &crs); err != nil {
					t.Fatalf("json.Unmarshal(): %v", err)
				}
				if crs.OwnerID != instructor.ID {
					t.Errorf("failed! ownerID = %v; want %v", crs.OwnerID, instructor.ID)
				}
				if crs.Published {
					t.Error("failed! new course must start unpublished")
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_courseApi_retrieve(t *testing.T) {
	app := setup(t)

	instructor := createUser(t, "Teacher", "teacher@test.com", true, user.RoleInstructor)
	student := createUser(t, "Hero", "hero@test.com", true)
	admin := createUser(t, "Admin", "admin@test.com", true, user.RoleAdmin)

	draft := createCourse(t, instructor.ID, false, 2)

	tests := []httpTest{
		{
			name: "Unpublished course hidden from students", path: "/v1/courses/" + draft.ID, token: getToken(t, student),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "Unknown course", path: "/v1/courses/nope", token: getToken(t, student),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "course not found"}),
		},
		{name: "Owner sees their draft", path: "/v1/courses/" + draft.ID, token: getToken(t, instructor), wantCode: http.StatusOK, wantData: marchallObj(t, draft)},
		{name: "Admin sees any draft", path: "/v1/courses/" + draft.ID, token: getToken(t, admin), wantCode: http.StatusOK, wantData: marchallObj(t, draft)},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_courseApi_publish(t *testing.T) {
	app := setup(t)

	instructor := createUser(t, "Teacher", "teacher@test.com", true, user.RoleInstructor)
	other := createUser(t, "Other", "other@test.com", true, user.RoleInstructor)

	draft := createCourse(t, instructor.ID, false, 1)

	t.Run("Non-owner cannot publish", func(t *testing.T) {
		tt := httpTest{
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, permErr{Error: "permission denied: not the resource owner", Reason: "not_owner", Role: user.RoleInstructor}),
		}
		req, rec := newAuthRequest(http.MethodPost, "/v1/courses/"+draft.ID+"/publish", getToken(t, other))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("Owner publishes", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/courses/"+draft.ID+"/publish", getToken(t, instructor))
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusOK)
		}
		var crs course.Course
		if err := json.Unmarshal(rec.Body.Bytes(), &crs); err != nil {
			t.Fatalf("json.Unmarshal(): %v", err)
		}
		if !crs.Published {
			t.Error("failed! course not published")
		}
	})
}

func Test_courseApi_assessmentsQuery(t *testing.T) {
	app := setup(t)

	instructor := createUser(t, "Teacher", "teacher@test.com", true, user.RoleInstructor)
	rival := createUser(t, "Rival", "rival@test.com", true, user.RoleInstructor)
	enrolled := createUser(t, "Hero", "hero@test.com", true)
	outsider := createUser(t, "Laze", "laze@test.com", true)
	admin := createUser(t, "Admin", "admin@test.com", true, user.RoleAdmin)

	published := createCourse(t, instructor.ID, true, 1)
	asmt, err := courseSvc.CreateAssessment(context.Background(), ownerIdentity(instructor.ID), published.ID,
		course.NewAssessment{Title: "quiz", Kind: course.KindQuiz, TotalPoints: 100})
	require.NoError(t, err)

	draft := createCourse(t, instructor.ID, false, 1)

	enroll(t, enrolled.ID, published.ID)

	tests := []httpTest{
		{
			name: "Unknown course", path: "/v1/courses/oops/assessments", token: getToken(t, enrolled),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "course not found"}),
		},
		{
			name: "Unenrolled student is denied", path: "/v1/courses/" + published.ID + "/assessments", token: getToken(t, outsider),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "student is not enrolled in this course"}),
		},
		{
			name: "Non-owner instructor is denied", path: "/v1/courses/" + published.ID + "/assessments", token: getToken(t, rival),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "student is not enrolled in this course"}),
		},
		{
			name: "Draft does not leak to outsiders", path: "/v1/courses/" + draft.ID + "/assessments", token: getToken(t, outsider),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "Enrolled student lists assessments", path: "/v1/courses/" + published.ID + "/assessments", token: getToken(t, enrolled),
			wantCode: http.StatusOK, wantData: marchallList(t, asmt),
		},
		{
			name: "Owner lists assessments", path: "/v1/courses/" + published.ID + "/assessments", token: getToken(t, instructor),
			wantCode: http.StatusOK, wantData: marchallList(t, asmt),
		},
		{
			name: "Owner lists draft assessments", path: "/v1/courses/" + draft.ID + "/assessments", token: getToken(t, instructor),
			wantCode: http.StatusOK, wantData: []byte("[]"),
		},
		{
			name: "Admin lists assessments", path: "/v1/courses/" + published.ID + "/assessments", token: getToken(t, admin),
			wantCode: http.StatusOK, wantData: marchallList(t, asmt),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_courseApi_submissions(t *testing.T) {
	app := setup(t)

	instructor := createUser(t, "Teacher", "teacher@test.com", true, user.RoleInstructor)
	student := createUser(t, "Hero", "hero@test.com", true)

	draft := createCourse(t, instructor.ID, false, 1)
	draftAsmt, err := courseSvc.CreateAssessment(context.Background(), ownerIdentity(instructor.ID), draft.ID,
		course.NewAssessment{Title: "quiz", Kind: course.KindQuiz, TotalPoints: 100})
	require.NoError(t, err)

	published := createCourse(t, instructor.ID, true, 1)
	asmt, err := courseSvc.CreateAssessment(context.Background(), ownerIdentity(instructor.ID), published.ID,
		course.NewAssessment{Title: "quiz", Kind: course.KindQuiz, TotalPoints: 100})
	require.NoError(t, err)

	answers := marchallObj(t, map[string]interface{}{"answers": map[string]string{"q1": "a"}})

	tests := []httpTest{
		{
			name: "Student role required", path: "/v1/assessments/" + asmt.ID + "/submissions", token: getToken(t, instructor), body: answers,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, permErr{Error: `permission denied: role "student" not held`, Reason: "role_not_held", Role: user.RoleStudent}),
		},
		{
			name: "Unpublished course takes no submissions", path: "/v1/assessments/" + draftAsmt.ID + "/submissions", token: getToken(t, student), body: answers,
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "course is not published"}),
		},
		{name: "Submission created", path: "/v1/assessments/" + asmt.ID + "/submissions", token: getToken(t, student), body: answers, wantCode: http.StatusCreated},
		{
			name: "Second submission conflicts", path: "/v1/assessments/" + asmt.ID + "/submissions", token: getToken(t, student), body: answers,
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "a submission for this assessment already exists"}),
		},
	}
	var submissionID string
	for _, tt := range tests {
		tt.method = http.MethodPost

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusCreated {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var sub course.Submission
				if err := json.Unmarshal(rec.Body.Bytes(), &sub); err != nil {
					t.Fatalf("json.Unmarshal(): %v", err)
				}
				submissionID = sub.ID
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}

	gradeBody := func(score float64, feedback string) []byte {
		return marchallObj(t, course.GradeSubmission{Score: &score, Feedback: feedback})
	}

	gradeTests := []httpTest{
		{
			name: "Only the owner grades", token: getToken(t, student), body: gradeBody(50, ""),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, permErr{Error: `permission denied: role "instructor" not held`, Reason: "role_not_held", Role: user.RoleInstructor}),
		},
		{
			name: "Score above total points", token: getToken(t, instructor), body: gradeBody(101, ""),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"score": "score must be between 0 and the assessment's total points"}),
		},
		{name: "Submission graded", token: getToken(t, instructor), body: gradeBody(88, "good work"), wantCode: http.StatusOK},
	}
	for _, tt := range gradeTests {
		tt.method = http.MethodPost
		tt.path = "/v1/submissions/" + submissionID + "/grade"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusOK {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var sub course.Submission
				if err := json.Unmarshal(rec.Body.Bytes(), &sub); err != nil {
					t.Fatalf("json.Unmarshal(): %v", err)
				}
				if sub.Score == nil || *sub.Score != 88 {
					t.Errorf("failed! score = %v; want 88", sub.Score)
				}
				if !sub.Graded() {
					t.Error("failed! submission not marked graded")
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}
