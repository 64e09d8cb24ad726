package postgres

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	goAccount "github.com/MrEthical07/goAccount"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ goAccount.UserDirectory = (*Directory)(nil)

const (
	selectByUsername = `(?s)^SELECT\s+id,\s*username,\s*email,\s*password_hash,\s*role,\s*created_at\s+FROM\s+users\s+WHERE\s+lower\(username\)\s*=\s*lower\(\$1\)$`
	selectByID       = `(?s)^SELECT\s+.+\s+FROM\s+users\s+WHERE\s+id\s*=\s*\$1$`
	selectByEmail    = `(?s)^SELECT\s+.+\s+FROM\s+users\s+WHERE\s+lower\(email\)\s*=\s*lower\(\$1\)$`
	insertUser       = `(?s)^INSERT\s+INTO\s+users\s*\(id,\s*username,\s*email,\s*password_hash,\s*role,\s*created_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6\)\s*RETURNING\s+created_at$`
	updateHash       = `(?s)^UPDATE\s+users\s+SET\s+password_hash\s*=\s*\$2`
)

var userColumns = []string{"id", "username", "email", "password_hash", "role", "created_at"}

func newDirectoryWithMock(t *testing.T) (*Directory, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return New(db), mock
}

func TestGetByIdentifierFound(t *testing.T) {
	d, mock := newDirectoryWithMock(t)
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(selectByUsername).
		WithArgs("Alice").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow("u-1", "alice", "alice@example.com", "$argon2id$x", "project_manager", created))

	got, err := d.GetByIdentifier(context.Background(), "  Alice ")
	require.NoError(t, err)
	assert.Equal(t, "u-1", got.UserID)
	assert.Equal(t, goAccount.RoleProjectManager, got.Role)
	assert.Equal(t, created, got.CreatedAt)
}

func TestGetByIdentifierWithAtSignQueriesEmailOnly(t *testing.T) {
	d, mock := newDirectoryWithMock(t)

	mock.ExpectQuery(selectByEmail).
		WithArgs("alice@example.com").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow("u-1", "alice", "alice@example.com", "$argon2id$x", "developer", time.Now()))

	got, err := d.GetByIdentifier(context.Background(), " alice@example.com ")
	require.NoError(t, err)
	assert.Equal(t, "u-1", got.UserID)
}

func TestCreateCheckViolationIsBadRequest(t *testing.T) {
	d, mock := newDirectoryWithMock(t)

	mock.ExpectQuery(insertUser).
		WillReturnError(&pgconn.PgError{Code: "23514", ConstraintName: "users_username_no_at"})

	_, err := d.Create(context.Background(), goAccount.UserRecord{UserID: "u-1", Username: "a@b.c", Email: "x@example.com"})
	assert.ErrorIs(t, err, goAccount.ErrBadRequest)
	assert.Contains(t, err.Error(), "users_username_no_at")
}

func TestGetNotFound(t *testing.T) {
	d, mock := newDirectoryWithMock(t)
	ctx := context.Background()

	mock.ExpectQuery(selectByUsername).WithArgs("ghost").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(selectByID).WithArgs("u-9").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(selectByEmail).WithArgs("ghost@example.com").WillReturnError(sql.ErrNoRows)

	_, err := d.GetByIdentifier(ctx, "ghost")
	assert.ErrorIs(t, err, goAccount.ErrUserNotFound)
	_, err = d.GetByID(ctx, "u-9")
	assert.ErrorIs(t, err, goAccount.ErrUserNotFound)
	_, err = d.GetByEmail(ctx, "ghost@example.com")
	assert.ErrorIs(t, err, goAccount.ErrUserNotFound)
}

func TestGetDBErrorIsWrapped(t *testing.T) {
	d, mock := newDirectoryWithMock(t)

	mock.ExpectQuery(selectByID).WithArgs("u-1").WillReturnError(errors.New("db down"))

	_, err := d.GetByID(context.Background(), "u-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, goAccount.ErrUserNotFound)
	assert.Contains(t, err.Error(), "db error: db down")
}

func TestGetRejectsUnknownStoredRole(t *testing.T) {
	d, mock := newDirectoryWithMock(t)

	mock.ExpectQuery(selectByEmail).
		WithArgs("a@example.com").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow("u-1", "a", "a@example.com", "h", "overlord", time.Now()))

	_, err := d.GetByEmail(context.Background(), "a@example.com")
	assert.ErrorIs(t, err, goAccount.ErrRoleInvalid)
}

func TestCreate(t *testing.T) {
	d, mock := newDirectoryWithMock(t)
	created := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(insertUser).
		WithArgs("u-1", "alice", "alice@example.com", "hash", "developer", created).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	got, err := d.Create(context.Background(), goAccount.UserRecord{
		UserID:       "u-1",
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "hash",
		Role:         goAccount.RoleDeveloper,
		CreatedAt:    created,
	})
	require.NoError(t, err)
	assert.Equal(t, created, got.CreatedAt)
}

func TestCreateUniqueViolationIsConflict(t *testing.T) {
	d, mock := newDirectoryWithMock(t)

	mock.ExpectQuery(insertUser).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_lower_idx"})

	_, err := d.Create(context.Background(), goAccount.UserRecord{UserID: "u-1", Username: "a", Email: "a@example.com"})
	assert.ErrorIs(t, err, goAccount.ErrConflict)
}

func TestCreateOtherErrorIsWrapped(t *testing.T) {
	d, mock := newDirectoryWithMock(t)

	mock.ExpectQuery(insertUser).WillReturnError(&pgconn.PgError{Code: "23502"})

	_, err := d.Create(context.Background(), goAccount.UserRecord{UserID: "u-1"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, goAccount.ErrConflict)
	assert.Contains(t, err.Error(), "db error")
}

func TestUpdatePasswordHash(t *testing.T) {
	d, mock := newDirectoryWithMock(t)

	mock.ExpectExec(updateHash).WithArgs("u-1", "new").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(updateHash).WithArgs("u-2", "new").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, d.UpdatePasswordHash(context.Background(), "u-1", "new"))
	assert.ErrorIs(t, d.UpdatePasswordHash(context.Background(), "u-2", "new"), goAccount.ErrUserNotFound)
}

func TestMigrateWrapsFailure(t *testing.T) {
	orig := migrateUp
	t.Cleanup(func() { migrateUp = orig })

	migrateUp = func(context.Context, *sql.DB) error { return errors.New("boom") }
	err := Migrate(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migrate users schema: boom")
}

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := fs.ReadDir(migrations, "migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	raw, err := fs.ReadFile(migrations, "migrations/"+entries[0].Name())
	require.NoError(t, err)
	body := string(raw)
	assert.True(t, strings.Contains(body, "-- +goose Up"))
	assert.True(t, strings.Contains(body, "-- +goose Down"))
	assert.Contains(t, body, "lower(email)")
	assert.Contains(t, body, "users_username_no_at")
}
