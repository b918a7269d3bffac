package main

import (
	"database/sql"

	"github.com/pressly/goose/v3"

	appfs "github.com/elimulab/elimu/fs"
)

var gooseRunFunc = goose.Run // mockable

func (cli *commandLine) migrate(args []string) error {
	goose.SetBaseFS(appfs.FS)

	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return gooseRunFunc(args[0], cli.dbConn(), "migrations", arguments...)
}

func (cli *commandLine) dbConn() *sql.DB {
	if cli.db == nil {
		return nil
	}
	return cli.db.DB
}
