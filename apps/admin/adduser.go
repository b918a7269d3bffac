package main

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/elimulab/elimu/core"
	"github.com/elimulab/elimu/core/user"
)

// addUser updates or creates a user.User. An empty role list grants all roles,
// admin included; this is the only self-service path to an admin account.
func (cli *commandLine) addUser(name, email, pwd string, roles []string) error {
	ctx := context.Background()
	name = core.CleanString(name)
	email = core.CleanString(email, true /* lower */)

	if len(roles) == 0 {
		roles = user.AllRoles
	}
	for i, r := range roles {
		roles[i] = core.CleanString(r, true /* lower */)
		if !user.IsKnownRole(roles[i]) {
			return errors.Wrapf(user.ErrInvalidRole, "%q", roles[i])
		}
	}

	now := time.Now().UTC()
	active := true

	usr, err := cli.usrRepo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		usr = user.User{
			Name:      name,
			Email:     email,
			CreatedAt: now,
		}
	}
	usr.Name = name
	usr.Roles = roles
	usr.ActiveRole = roles[0]
	usr.IsActive = &active
	usr.UpdatedAt = now
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}

	if usr.ID == "" {
		_, err = cli.usrRepo.CreateUser(ctx, usr)
	} else {
		_, err = cli.usrRepo.UpdateUser(ctx, usr, &active)
	}
	return err
}
