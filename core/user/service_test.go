package user_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elimulab/elimu/core"
	"github.com/elimulab/elimu/core/user"
	emailsvc "github.com/elimulab/elimu/services/email"
	inmemdb "github.com/elimulab/elimu/storage/database/inmem"
)

func newService() user.ServiceInterface {
	return user.NewService(inmemdb.NewUserRepository(inmemdb.NewDB()), emailsvc.NewConsoleServiceMock(), core.Conf)
}

func createUser(t *testing.T, svc user.ServiceInterface, name, email string, roles ...string) user.User {
	t.Helper()
	usr, err := svc.Create(context.Background(), user.NewUser{
		Name:            name,
		Email:           email,
		Password:        "LeP@ssw0rd",
		PasswordConfirm: "LeP@ssw0rd",
		Roles:           roles,
	})
	require.NoError(t, err)
	return usr
}

func TestServiceCreate(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	t.Run("defaults to student", func(t *testing.T) {
		usr := createUser(t, svc, "Amy", "amy@test.com")
		assert.NotEmpty(t, usr.ID)
		assert.Equal(t, []string{user.RoleStudent}, usr.Roles)
		assert.Equal(t, user.RoleStudent, usr.ActiveRole)
		require.NotNil(t, usr.IsActive)
		assert.True(t, *usr.IsActive)
		assert.NoError(t, usr.CheckPassword("LeP@ssw0rd"))
	})

	t.Run("first role becomes active", func(t *testing.T) {
		usr := createUser(t, svc, "Bob", "bob@test.com", user.RoleInstructor, user.RoleStudent)
		assert.Equal(t, []string{user.RoleInstructor, user.RoleStudent}, usr.Roles)
		assert.Equal(t, user.RoleInstructor, usr.ActiveRole)
	})

	t.Run("unknown role rejected", func(t *testing.T) {
		_, err := svc.Create(ctx, user.NewUser{
			Name: "Eve", Email: "eve@test.com",
			Password: "LeP@ssw0rd", PasswordConfirm: "LeP@ssw0rd",
			Roles: []string{"superuser"},
		})
		assert.Equal(t, user.ErrInvalidRole, errors.Cause(err))
	})
}

func TestServiceCheckUniqueness(t *testing.T) {
	svc := newService()

	usr := createUser(t, svc, "Amy", "amy@test.com")

	assert.NoError(t, svc.CheckUniqueness("new@test.com"))
	assert.NoError(t, svc.CheckUniqueness("amy@test.com", usr)) // self excluded

	err := svc.CheckUniqueness("amy@test.com")
	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestServiceGetByEmail(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	created := createUser(t, svc, "Amy", "amy@test.com")

	usr, err := svc.GetByEmail(ctx, " AMY@Test.Com ")
	require.NoError(t, err)
	assert.Equal(t, created.ID, usr.ID)

	_, err = svc.GetByEmail(ctx, "nobody@test.com")
	assert.Equal(t, user.ErrNotFound, errors.Cause(err))
}

func TestServiceSwitchActiveRole(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	usr := createUser(t, svc, "Amy", "amy@test.com", user.RoleInstructor, user.RoleStudent)

	t.Run("unknown role", func(t *testing.T) {
		_, err := svc.SwitchActiveRole(ctx, usr, "superuser")
		assert.Equal(t, user.ErrInvalidRole, errors.Cause(err))
	})

	t.Run("role not held", func(t *testing.T) {
		_, err := svc.SwitchActiveRole(ctx, usr, user.RoleAdmin)
		assert.Equal(t, user.ErrRoleNotHeld, errors.Cause(err))

		// failure leaves the account untouched
		cur, err := svc.GetByID(ctx, usr.ID)
		require.NoError(t, err)
		assert.Equal(t, user.RoleInstructor, cur.ActiveRole)
	})

	t.Run("switches to a held role", func(t *testing.T) {
		switched, err := svc.SwitchActiveRole(ctx, usr, user.RoleStudent)
		require.NoError(t, err)
		assert.Equal(t, user.RoleStudent, switched.ActiveRole)
		assert.Equal(t, usr.Roles, switched.Roles) // held set untouched
	})
}

func TestServiceUpdateHeldRoles(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	t.Run("empty set rejected", func(t *testing.T) {
		usr := createUser(t, svc, "Amy", "amy@test.com")
		_, err := svc.UpdateHeldRoles(ctx, usr.ID, nil)
		var vErr *core.ValidationError
		require.ErrorAs(t, err, &vErr)

		cur, err := svc.GetByID(ctx, usr.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{user.RoleStudent}, cur.Roles)
	})

	t.Run("unknown role rejects the whole set", func(t *testing.T) {
		usr := createUser(t, svc, "Bob", "bob@test.com")
		_, err := svc.UpdateHeldRoles(ctx, usr.ID, []string{user.RoleInstructor, "superuser"})
		assert.Equal(t, user.ErrInvalidRole, errors.Cause(err))

		cur, err := svc.GetByID(ctx, usr.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{user.RoleStudent}, cur.Roles)
	})

	t.Run("active role kept when still held", func(t *testing.T) {
		usr := createUser(t, svc, "Eve", "eve@test.com", user.RoleStudent)
		updated, err := svc.UpdateHeldRoles(ctx, usr.ID, []string{user.RoleInstructor, user.RoleStudent})
		require.NoError(t, err)
		assert.Equal(t, user.RoleStudent, updated.ActiveRole)
	})

	t.Run("active role repaired when dropped", func(t *testing.T) {
		usr := createUser(t, svc, "Dan", "dan@test.com", user.RoleStudent)
		updated, err := svc.UpdateHeldRoles(ctx, usr.ID, []string{user.RoleInstructor, user.RoleAdmin})
		require.NoError(t, err)
		assert.Equal(t, []string{user.RoleInstructor, user.RoleAdmin}, updated.Roles)
		assert.Equal(t, user.RoleInstructor, updated.ActiveRole) // first of the new set
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.UpdateHeldRoles(ctx, "nope", []string{user.RoleStudent})
		assert.Equal(t, user.ErrNotFound, errors.Cause(err))
	})
}

func TestServicePasswordReset(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	usr := createUser(t, svc, "Amy", "amy@test.com")

	t.Run("unknown email", func(t *testing.T) {
		err := svc.RequestPasswordReset(ctx, "nobody@test.com")
		assert.Equal(t, user.ErrNotFound, errors.Cause(err))
	})

	t.Run("request succeeds for a known email", func(t *testing.T) {
		assert.NoError(t, svc.RequestPasswordReset(ctx, "amy@test.com"))
	})

	t.Run("reset with a valid token", func(t *testing.T) {
		token, err := user.MakeToken(usr)
		require.NoError(t, err)

		require.NoError(t, svc.ResetPassword(ctx, user.ResetUserPassword{
			Token:           token,
			UID:             user.EncodeUID(usr),
			Password:        "NewP@ssw0rd",
			PasswordConfirm: "NewP@ssw0rd",
		}))

		cur, err := svc.GetByID(ctx, usr.ID)
		require.NoError(t, err)
		assert.NoError(t, cur.CheckPassword("NewP@ssw0rd"))
		assert.Error(t, cur.CheckPassword("LeP@ssw0rd"))
	})

	t.Run("garbage uid", func(t *testing.T) {
		err := svc.ResetPassword(ctx, user.ResetUserPassword{Token: "t", UID: "%%%", Password: "x", PasswordConfirm: "x"})
		assert.Error(t, err)
	})
}
