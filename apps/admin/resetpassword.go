package main

import (
	"context"

	"github.com/elimulab/elimu/core"
	"github.com/elimulab/elimu/core/user"
)

func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx := context.Background()
	usr, err := cli.usrRepo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return err
	}
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	_, err = cli.usrRepo.UpdateUser(ctx, user.User{ID: usr.ID, PasswordHash: usr.PasswordHash}, nil)
	return err
}
