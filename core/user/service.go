package user

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/elimulab/elimu/core"
)

var (
	// errors
	ErrNotFound    = errors.New("user not found")
	ErrEmailExists = errors.New("a user with this email already exists")
	ErrRoleNotHeld = errors.New("role not held by this user")
	ErrInvalidRole = errors.New("invalid role")
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		QueryAllUsers(ctx context.Context) ([]User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUsersByID(ctx context.Context, ids []string) ([]User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		// FilterUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name or User.Email.
		FilterUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		// UpdateUser applies the non-zero fields of usr; isActive is applied when non-nil.
		UpdateUser(ctx context.Context, usr User, isActive *bool) (User, error)
		DeleteUsersByID(ctx context.Context, ids ...string) error
	}

	ServiceInterface interface {
		CheckUniqueness(email string, exclUsers ...User) error
		Create(ctx context.Context, nu NewUser) (User, error)
		QueryAll(ctx context.Context) ([]User, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		Update(ctx context.Context, id string, uu UpdateUser) (User, error)
		SwitchActiveRole(ctx context.Context, usr User, newRole string) (User, error)
		UpdateHeldRoles(ctx context.Context, id string, newRoles []string) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, rp ResetUserPassword) error
		Delete(ctx context.Context, ids ...string) error
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
		conf    *core.Config
	}
)

var _ ServiceInterface = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) *service {
	return &service{repo: repo, mailSvc: mailSvc, conf: conf}
}

func (svc *service) CheckUniqueness(email string, exclUsers ...User) error {
	if err := svc.repo.CheckEmailUniqueness(context.Background(), email, exclUsers...); err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

// Create registers a new account. An empty role set defaults to {student};
// the first role in the supplied order becomes the active role.
func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	roles := nu.Roles
	if len(roles) == 0 {
		roles = []string{RoleStudent}
	}
	for _, r := range roles {
		if !IsKnownRole(r) {
			return User{}, errors.Wrapf(ErrInvalidRole, "%q", r)
		}
	}

	now := time.Now().UTC()
	usr := User{
		Name:       nu.Name,
		Email:      nu.Email,
		Roles:      roles,
		ActiveRole: roles[0],
		IsActive:   boolPtr(true),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}

	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, err
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      fmt.Sprintf("Welcome to %s", svc.conf.AppName),
		TemplateName: "welcome",
		TemplateData: struct{ User User }{usr},
	})
	return usr, nil
}

func (svc *service) QueryAll(ctx context.Context) ([]User, error) {
	return svc.repo.QueryAllUsers(ctx)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.FilterUsers(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	usr := User{
		ID:        id,
		Name:      uu.Name,
		Email:     uu.Email,
		UpdatedAt: time.Now().UTC(),
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "hashing password")
		}
	}
	return svc.repo.UpdateUser(ctx, usr, uu.IsActive)
}

// SwitchActiveRole changes the active role to newRole, which must already be
// held. Failure leaves the account untouched.
func (svc *service) SwitchActiveRole(ctx context.Context, usr User, newRole string) (User, error) {
	if !IsKnownRole(newRole) {
		return User{}, errors.Wrapf(ErrInvalidRole, "%q", newRole)
	}
	if !usr.HasRole(newRole) {
		return User{}, errors.Wrapf(ErrRoleNotHeld, "%q", newRole)
	}
	return svc.repo.UpdateUser(ctx, User{
		ID:         usr.ID,
		ActiveRole: newRole,
		UpdatedAt:  time.Now().UTC(),
	}, nil)
}

// UpdateHeldRoles replaces the held-role set. The update is atomic: any
// unknown role rejects the whole set. If the current active role is dropped,
// it is repaired to the first element of the caller-supplied order so the
// active-role invariant holds.
func (svc *service) UpdateHeldRoles(ctx context.Context, id string, newRoles []string) (User, error) {
	if len(newRoles) == 0 {
		return User{}, core.NewValidationError(
			errors.New("held roles cannot be empty"),
			core.FieldError{Field: "roles", Error: "at least one role is required"},
		)
	}
	for _, r := range newRoles {
		if !IsKnownRole(r) {
			return User{}, errors.Wrapf(ErrInvalidRole, "%q", r)
		}
	}

	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}

	active := usr.ActiveRole
	if !contains(newRoles, active) {
		active = newRoles[0]
	}
	return svc.repo.UpdateUser(ctx, User{
		ID:         id,
		Roles:      newRoles,
		ActiveRole: active,
		UpdatedAt:  time.Now().UTC(),
	}, nil)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	return svc.repo.UpdateUser(ctx, User{
		ID:        usr.ID,
		LastLogin: time.Now().UTC(),
	}, nil)
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	token, err := MakeToken(usr)
	if err != nil {
		return errors.Wrap(err, "making reset token")
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      fmt.Sprintf("%s password reset", svc.conf.AppName),
		TemplateName: "password-reset",
		TemplateData: struct {
			User  User
			UID   string
			Token string
		}{usr, EncodeUID(usr), token},
	})
	return nil
}

func (svc *service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	id, err := decodeUID(rp.UID)
	if err != nil {
		return errors.Wrap(errInvalidToken, "decoding uid")
	}
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	if err = verifyToken(usr, rp.Token); err != nil {
		return err
	}
	if err = usr.SetPassword(rp.Password); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	_, err = svc.repo.UpdateUser(ctx, User{
		ID:           usr.ID,
		PasswordHash: usr.PasswordHash,
		UpdatedAt:    time.Now().UTC(),
	}, nil)
	return err
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteUsersByID(ctx, ids...)
}

func boolPtr(b bool) *bool { return &b }

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
