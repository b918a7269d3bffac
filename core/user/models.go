package user

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/elimulab/elimu/core"
)

// Roles. The vocabulary is closed: any role string outside this set is
// rejected at the boundary before it reaches a service.
const (
	RoleAdmin      = "admin"
	RoleInstructor = "instructor"
	RoleStudent    = "student"
)

var (
	AllRoles = []string{RoleAdmin, RoleInstructor, RoleStudent}

	rolePriorities = map[string]int{
		RoleAdmin:      3,
		RoleInstructor: 2,
		RoleStudent:    1,
	}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Instructor", Value: RoleInstructor},
		{Name: "Admin", Value: RoleAdmin},
	}
)

func IsKnownRole(role string) bool {
	_, ok := rolePriorities[role]
	return ok
}

func RolePriority(role string) int {
	return rolePriorities[role]
}

func MaxRolePriority(roles []string) int {
	var max int
	for _, role := range roles {
		if RolePriority(role) > max {
			max = RolePriority(role)
		}
	}
	return max
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// User is an account. Invariants: Roles is never empty and ActiveRole is
// always an element of Roles; every mutation path preserves this.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Roles        []string  `json:"roles"`       // held roles
	ActiveRole   string    `json:"active_role"` // currently in effect
	IsActive     *bool     `json:"is_active"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

// HasRole reports whether the user holds `role`, active or not.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// The Is* helpers gate on the active role: holding a role without it being
// active does not grant its portal.
func (u *User) IsAdmin() bool      { return u.ActiveRole == RoleAdmin }
func (u *User) IsInstructor() bool { return u.ActiveRole == RoleInstructor }
func (u *User) IsStudent() bool    { return u.ActiveRole == RoleStudent }

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name            string   `json:"name" validate:"required"`
	Email           string   `json:"email" validate:"required,email"`
	Password        string   `json:"password" validate:"required"`
	PasswordConfirm string   `json:"password_confirm" validate:"required,eqfield=Password"`
	Roles           []string `json:"roles" validate:"omitempty,allroles"`
}

func (nu *NewUser) Validate(svc ServiceInterface) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)

	if err := core.Validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
// Held roles are not mutable here; see UpdateRoles.
type UpdateUser struct {
	Name            string `json:"name"`
	Email           string `json:"email" validate:"omitempty,email"`
	IsActive        *bool  `json:"is_active"`
	Password        string `json:"password" validate:"omitempty"`
	PasswordConfirm string `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (uu *UpdateUser) Validate(origUsr User, svc ServiceInterface) error {
	name := core.CleanString(uu.Name)
	if name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}

	email := core.CleanString(uu.Email, true /* lower */)
	if email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}

	if err := core.Validate.Struct(uu); err != nil {
		return err
	}
	return svc.CheckUniqueness(uu.Email, origUsr)
}

// SwitchRole requests that the caller's active role be changed to Role.
type SwitchRole struct {
	Role string `json:"role" validate:"required,allroles"`
}

func (sr *SwitchRole) Validate() error {
	sr.Role = core.CleanString(sr.Role, true /* lower */)
	return core.Validate.Struct(sr)
}

// UpdateRoles replaces a user's held-role set. Admin only.
type UpdateRoles struct {
	Roles []string `json:"roles" validate:"required,min=1,allroles"`
}

func (ur *UpdateRoles) Validate() error {
	for i, r := range ur.Roles {
		ur.Roles[i] = core.CleanString(r, true /* lower */)
	}
	return core.Validate.Struct(ur)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate() error { return core.Validate.Struct(rp) }

type QueryFilter struct {
	Search      string    `query:"search"`
	Roles       []string  `query:"role"`
	IsActive    *bool     `query:"is_active"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.IsActive == nil && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
