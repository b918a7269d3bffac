package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/elimulab/elimu/apps/api/echo"
	"github.com/elimulab/elimu/core"
	"github.com/elimulab/elimu/core/auth"
	"github.com/elimulab/elimu/core/certificate"
	"github.com/elimulab/elimu/core/course"
	"github.com/elimulab/elimu/core/progress"
	"github.com/elimulab/elimu/core/user"
	emailsvc "github.com/elimulab/elimu/services/email"
	inmemdb "github.com/elimulab/elimu/storage/database/inmem"
)

var (
	usrRepo     user.Repository
	certRepo    certificate.Repository
	usrSvc      user.ServiceInterface
	courseSvc   *course.Service
	progressSvc *progress.Service
	certSvc     *certificate.Service

	errNotAuthenticated = httpErr{Error: "not authenticated"}
)

type nopLogger struct{}

func (nopLogger) Enable(bool)                  {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func setup(t *testing.T) echoapi.Server {
	t.Helper()

	// set up DB & repos
	db := inmemdb.NewDB()
	usrRepo = inmemdb.NewUserRepository(db)
	courseRepo := inmemdb.NewCourseRepository(db)
	progressRepo := inmemdb.NewProgressRepository(db)
	certRepo = inmemdb.NewCertificateRepository(db)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock()
	usrSvc = user.NewService(usrRepo, mailSvc, core.Conf)
	courseSvc = course.NewService(courseRepo)
	certSvc = certificate.NewService(certRepo, courseSvc, usrRepo, mailSvc, core.Conf)
	progressSvc = progress.NewService(progressRepo, courseSvc, usrRepo, certSvc, nopLogger{})

	// set up server
	return echoapi.NewServer(&echoapi.Options{
		DisableReqLogs: true,
		UserSvc:        usrSvc,
		CourseSvc:      courseSvc,
		ProgressSvc:    progressSvc,
		CertificateSvc: certSvc,
		Logger:         nopLogger{},
	})
}

type httpErr struct {
	Error string `json:"error"`
}

type permErr struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
	Role   string `json:"role"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, usr user.User) string {
	claims := echoapi.GetUserClaims(usr)
	token, err := echoapi.GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func createUser(t *testing.T, name, email string, active bool, roles ...string) user.User {
	t.Helper()
	usr, err := usrSvc.Create(context.Background(), user.NewUser{
		Name:            name,
		Email:           email,
		Password:        "LeP@ssw0rd",
		PasswordConfirm: "LeP@ssw0rd",
		Roles:           roles,
	})
	require.NoError(t, err)
	if !active {
		usr, err = usrRepo.UpdateUser(context.Background(), user.User{ID: usr.ID}, &active)
		require.NoError(t, err)
	}
	return usr
}

func createCourse(t *testing.T, ownerID string, publish bool, lessonsPerModule ...int) course.Course {
	t.Helper()
	ctx := context.Background()

	var mods []course.Module
	for _, n := range lessonsPerModule {
		mod := course.Module{Title: "module"}
		for i := 0; i < n; i++ {
			mod.Lessons = append(mod.Lessons, course.Lesson{Title: "lesson"})
		}
		mods = append(mods, mod)
	}
	crs, err := courseSvc.Create(ctx, ownerID, course.NewCourse{Title: "Go 101", Modules: mods})
	require.NoError(t, err)
	if publish {
		_, err = courseSvc.Publish(ctx, ownerIdentity(ownerID), crs.ID)
		require.NoError(t, err)
		crs.Published = true
	}
	return crs
}

func ownerIdentity(accountID string) auth.Identity {
	return auth.Identity{
		AccountID:  accountID,
		HeldRoles:  []string{user.RoleInstructor},
		ActiveRole: user.RoleInstructor,
	}
}

func enroll(t *testing.T, studentID, courseID string) {
	t.Helper()
	_, err := progressSvc.Enroll(context.Background(), studentID, courseID)
	require.NoError(t, err)
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList(): %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
