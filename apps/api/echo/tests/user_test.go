package tests

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"

	echoapi "github.com/elimulab/elimu/apps/api/echo"
	"github.com/elimulab/elimu/core"
	"github.com/elimulab/elimu/core/user"
)

func Test_userApi_register(t *testing.T) {
	app := setup(t)

	existing := createUser(t, "Amy", "amy@test.com", true)

	newUsr := func(email string, roles ...string) []byte {
		return marchallObj(t, user.NewUser{
			Name:            "New User",
			Email:           email,
			Password:        "LeP@ssw0rd",
			PasswordConfirm: "LeP@ssw0rd",
			Roles:           roles,
		})
	}

	tests := []httpTest{
		{
			name: "Admin role cannot be self-granted", body: newUsr("boss@test.com", user.RoleAdmin),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"roles": "not enough rights to set these roles"}),
		},
		{
			name: "Duplicate email", body: newUsr(existing.Email),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"email": "a user with this email already exists"}),
		},
		{name: "Student sign-up", body: newUsr("new@test.com"), wantCode: http.StatusCreated},
		{name: "Instructor sign-up", body: newUsr("teach@test.com", user.RoleInstructor), wantCode: http.StatusCreated},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/users/register"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusCreated {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var usr user.User
				if err := json.Unmarshal(rec.Body.Bytes(), &usr); err != nil {
					t.Fatalf("json.Unmarshal(): %v", err)
				}
				if usr.ID == "" {
					t.Error("failed! empty user ID")
				}
				if usr.ActiveRole != usr.Roles[0] {
					t.Errorf("failed! activeRole = %v; want %v", usr.ActiveRole, usr.Roles[0])
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_login(t *testing.T) {
	app := setup(t)

	createUser(t, "Hero", "hero@test.com", true)
	createUser(t, "N Dog", "ndog@test.com", false)

	body := func(email, pwd string) []byte {
		return marchallObj(t, echoapi.LoginRequest{Email: email, Password: pwd})
	}

	tests := []httpTest{
		{
			name: "Unknown email", body: body("lol@test.com", "LeP@ssw0rd"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "invalid credentials"}),
		},
		{
			name: "Wrong password", body: body("hero@test.com", "nope"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "Deactivated account", body: body("ndog@test.com", "LeP@ssw0rd"),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{name: "Login ok", body: body("hero@test.com", "LeP@ssw0rd"), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/users/login"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusOK {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var respData echoapi.LoginResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
					t.Fatalf("json.Unmarshal(): %v", err)
				}
				if respData.Token == "" {
					t.Error("failed! empty token")
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_switchRole(t *testing.T) {
	app := setup(t)

	usr := createUser(t, "Multi", "multi@test.com", true, user.RoleInstructor, user.RoleStudent)

	body := func(role string) []byte { return marchallObj(t, user.SwitchRole{Role: role}) }

	tests := []httpTest{
		{name: "Auth required", body: body(user.RoleStudent), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errNotAuthenticated)},
		{
			name: "Unknown role", token: getToken(t, usr), body: body("superuser"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"role": "invalid roles"}),
		},
		{
			name: "Role not held", token: getToken(t, usr), body: body(user.RoleAdmin),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "role not held by this user"}),
		},
		{name: "Role switched", token: getToken(t, usr), body: body(user.RoleStudent), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/users/role-switch"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusOK {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var respData echoapi.SwitchRoleResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
					t.Fatalf("json.Unmarshal(): %v", err)
				}
				if respData.Token == "" {
					t.Error("failed! empty token")
				}
				if respData.User.ActiveRole != user.RoleStudent {
					t.Errorf("failed! activeRole = %v; want %v", respData.User.ActiveRole, user.RoleStudent)
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_userQuery(t *testing.T) {
	app := setup(t)

	admin := createUser(t, "Admin", "admin@test.com", true, user.RoleAdmin)
	student := createUser(t, "Hero", "hero@test.com", true)
	// holds admin but student is active
	dual := createUser(t, "Dual", "dual@test.com", true, user.RoleStudent, user.RoleAdmin)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errNotAuthenticated)},
		{
			name: "Admin not held", token: getToken(t, student), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, permErr{Error: `permission denied: role "admin" not held`, Reason: "role_not_held", Role: user.RoleAdmin}),
		},
		{
			name: "Admin held but not active", token: getToken(t, dual), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, permErr{Error: `permission denied: role "admin" held but not active`, Reason: "role_not_active", Role: user.RoleAdmin}),
		},
		{
			name: "Active admin allowed", token: getToken(t, admin), wantCode: http.StatusOK,
			wantData: marchallList(t, admin, student, dual),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		tt.path = "/v1/users"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_refreshToken(t *testing.T) {
	app := setup(t)

	naughty := createUser(t, "N Dog", "ndog@test.com", false)
	student := createUser(t, "Hero", "hero@test.com", true)

	now := time.Now()
	unrefreshableClaims := &echoapi.Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    core.Conf.AppName,
			Subject:   student.ID,
			ExpiresAt: now.Add(core.Conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		OrigIssuedAt: now.Add(-2 * core.Conf.Server.JWTRefreshExpirationDelta).Unix(), // older than threshold
		Roles:        student.Roles,
		ActiveRole:   student.ActiveRole,
	}
	unrefreshableToken, err := echoapi.GenerateToken(unrefreshableClaims)
	if err != nil {
		t.Fatalf("GenerateToken(): %v", err)
	}

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errNotAuthenticated)},
		{
			name: "Inactive user not allowed", token: getToken(t, naughty),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name: "Refresh period expired", token: unrefreshableToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "refresh has expired"}),
		},
		{name: "Token refreshed", token: getToken(t, student), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/users/token-refresh"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			// cannot guess new token.. just check that it's not empty
			if tt.wantCode == http.StatusOK {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var respData echoapi.LoginResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
					t.Fatalf("json.Unmarshal(): %v", err)
				}
				if respData.Token == "" {
					t.Error("failed! empty token")
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_userDetail(t *testing.T) {
	app := setup(t)

	admin := createUser(t, "Admin", "admin@test.com", true, user.RoleAdmin)
	student := createUser(t, "Hero", "hero@test.com", true)
	other := createUser(t, "Other", "other@test.com", true)

	tests := []httpTest{
		{
			name: "Others' accounts are invisible", method: http.MethodGet, path: "/v1/users/" + other.ID, token: getToken(t, student),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "Own account", method: http.MethodGet, path: "/v1/users/" + student.ID, token: getToken(t, student),
			wantCode: http.StatusOK, wantData: marchallObj(t, student),
		},
		{
			name: "Admin sees any account", method: http.MethodGet, path: "/v1/users/" + other.ID, token: getToken(t, admin),
			wantCode: http.StatusOK, wantData: marchallObj(t, other),
		},
		{
			name: "Non-admin cannot change email", method: http.MethodPut, path: "/v1/users/" + student.ID, token: getToken(t, student),
			body:     marchallObj(t, map[string]string{"email": "changed@test.com"}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Admin cannot delete themselves", method: http.MethodDelete, path: "/v1/users/" + admin.ID, token: getToken(t, admin),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Non-admin cannot delete", method: http.MethodDelete, path: "/v1/users/" + student.ID, token: getToken(t, student),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, permErr{Error: `permission denied: role "admin" not held`, Reason: "role_not_held", Role: user.RoleAdmin}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
