package sqlxrepos

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/elimulab/elimu/core"
	"github.com/elimulab/elimu/core/user"
)

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

type userRow struct {
	ID           string         `db:"id"`
	Name         null.String    `db:"name"`
	Email        string         `db:"email"`
	Roles        pq.StringArray `db:"roles"`
	ActiveRole   string         `db:"active_role"`
	IsActive     null.Bool      `db:"is_active"`
	PasswordHash null.Bytes     `db:"password_hash"`
	CreatedAt    null.Time      `db:"created_at"`
	UpdatedAt    null.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

func (repo userRepository) toRow(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         null.NewString(usr.Name, usr.Name != ""),
		Email:        usr.Email,
		Roles:        usr.Roles,
		ActiveRole:   usr.ActiveRole,
		IsActive:     null.BoolFromPtr(usr.IsActive),
		PasswordHash: null.BytesFrom(usr.PasswordHash),
		CreatedAt:    null.NewTime(usr.CreatedAt.UTC(), !usr.CreatedAt.IsZero()),
		UpdatedAt:    null.NewTime(usr.UpdatedAt.UTC(), !usr.UpdatedAt.IsZero()),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (repo userRepository) fromRow(row userRow) user.User {
	return user.User{
		ID:           row.ID,
		Name:         row.Name.String,
		Email:        row.Email,
		Roles:        row.Roles,
		ActiveRole:   row.ActiveRole,
		IsActive:     row.IsActive.Ptr(),
		PasswordHash: row.PasswordHash.Bytes,
		CreatedAt:    row.CreatedAt.Time,
		UpdatedAt:    row.UpdatedAt.Time,
		LastLogin:    row.LastLogin.Time,
	}
}

func (repo userRepository) fromRows(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, repo.fromRow(row))
	}
	return users
}

const userColumns = `id, name, email, roles, active_role, is_active, password_hash, created_at, updated_at, last_login`

func (repo userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...user.User) error {
	query := `SELECT EXISTS (SELECT 1 FROM "user" WHERE email = $1`
	args := []interface{}{email}
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		query += ` AND id <> ALL($2)`
		args = append(args, pq.Array(ids))
	}
	query += `)`

	var exists bool
	if err := repo.db.GetContext(ctx, &exists, query, args...); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	if exists {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	row := repo.toRow(usr)
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO "user" (`+userColumns+`)
		VALUES (:id, :name, :email, :roles, :active_role, :is_active, :password_hash, :created_at, :updated_at, :last_login)`,
		row,
	)
	if err != nil {
		if isUniqueViolation(err, uniqUserEmail) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return repo.fromRow(row), nil
}

func (repo userRepository) QueryAllUsers(ctx context.Context) ([]user.User, error) {
	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT `+userColumns+` FROM "user"`); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return repo.fromRows(rows), nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	var row userRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM "user" WHERE id = $1`, id); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user by id")
	}
	return repo.fromRow(row), nil
}

func (repo userRepository) GetUsersByID(ctx context.Context, ids []string) ([]user.User, error) {
	var rows []userRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT `+userColumns+` FROM "user" WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, errors.Wrap(err, "finding users by id")
	}
	return repo.fromRows(rows), nil
}

func (repo userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var row userRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+userColumns+` FROM "user" WHERE email = $1`, email); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user by email")
	}
	return repo.fromRow(row), nil
}

// orderableUserFields whitelists fields accepted in orderings.
var orderableUserFields = map[string]string{
	"name":       "name",
	"email":      "email",
	"is_active":  "is_active",
	"created_at": "created_at",
	"last_login": "last_login",
}

func (repo userRepository) FilterUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	var (
		clauses []string
		args    []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		if filter.Search != "" {
			p := arg("%" + filter.Search + "%")
			clauses = append(clauses, fmt.Sprintf("(name ILIKE %s OR email ILIKE %s)", p, p))
		}
		if filter.Roles != nil {
			clauses = append(clauses, fmt.Sprintf("roles && %s", arg(pq.Array(filter.Roles))))
		}
		if filter.IsActive != nil {
			clauses = append(clauses, fmt.Sprintf("is_active = %s", arg(*filter.IsActive)))
		}
		if !filter.CreatedFrom.IsZero() {
			clauses = append(clauses, fmt.Sprintf("created_at >= %s", arg(filter.CreatedFrom.UTC())))
		}
		if !filter.CreatedTo.IsZero() {
			clauses = append(clauses, fmt.Sprintf("created_at <= %s", arg(filter.CreatedTo.UTC())))
		}
	}

	query := `SELECT ` + userColumns + ` FROM "user"`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	var orderTerms []string
	for _, ord := range ordering {
		if col, ok := orderableUserFields[ord.Field]; ok {
			orderTerms = append(orderTerms, (core.DBOrdering{Field: col, Ascending: ord.Ascending}).String())
		}
	}
	if len(orderTerms) > 0 {
		query += " ORDER BY " + strings.Join(orderTerms, ", ")
	}

	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "filtering users")
	}
	return repo.fromRows(rows), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, isActive *bool) (user.User, error) {
	existing, err := repo.GetUserByID(ctx, usr.ID)
	if err != nil {
		return user.User{}, err
	}

	// merge non-zero fields
	if usr.Name == "" {
		usr.Name = existing.Name
	}
	if usr.Email == "" {
		usr.Email = existing.Email
	}
	if usr.Roles == nil {
		usr.Roles = existing.Roles
	}
	if usr.ActiveRole == "" {
		usr.ActiveRole = existing.ActiveRole
	}
	if usr.PasswordHash == nil {
		usr.PasswordHash = existing.PasswordHash
	}
	if usr.CreatedAt.IsZero() {
		usr.CreatedAt = existing.CreatedAt
	}
	if usr.UpdatedAt.IsZero() {
		usr.UpdatedAt = existing.UpdatedAt
	}
	if usr.LastLogin.IsZero() {
		usr.LastLogin = existing.LastLogin
	}
	if isActive != nil {
		usr.IsActive = isActive
	} else {
		usr.IsActive = existing.IsActive
	}

	row := repo.toRow(usr)
	_, err = repo.db.NamedExecContext(ctx, `
		UPDATE "user"
		SET name = :name, email = :email, roles = :roles, active_role = :active_role,
		    is_active = :is_active, password_hash = :password_hash,
		    updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`,
		row,
	)
	if err != nil {
		if isUniqueViolation(err, uniqUserEmail) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return repo.fromRow(row), nil
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := repo.db.ExecContext(ctx, `DELETE FROM "user" WHERE id = ANY($1)`, pq.Array(ids))
	return errors.Wrap(err, "deleting users")
}
