// Package postgres is a goAccount.UserDirectory backed by PostgreSQL
// through the pgx database/sql driver. The schema ships as embedded goose
// migrations.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	goAccount "github.com/MrEthical07/goAccount"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	uniqueViolation = "23505"
	checkViolation  = "23514"
)

// DBTX is the subset of *sql.DB and *sql.Tx the directory needs.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Directory implements goAccount.UserDirectory.
type Directory struct {
	db DBTX
}

func New(db DBTX) *Directory {
	return &Directory{db: db}
}

// Open connects to dsn, verifies the connection and applies pending
// migrations. The caller owns the returned *sql.DB.
func Open(ctx context.Context, dsn string) (*Directory, *sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return New(db), db, nil
}

var migrateUp = func(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, "migrations")
}

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	if err := migrateUp(ctx, db); err != nil {
		return fmt.Errorf("migrate users schema: %w", err)
	}
	return nil
}

const selectUser = `SELECT id, username, email, password_hash, role, created_at FROM users`

// GetByIdentifier treats an identifier containing @ as an email and
// anything else as a username. The schema forbids @ in usernames, so the
// two never overlap.
func (d *Directory) GetByIdentifier(ctx context.Context, identifier string) (goAccount.UserRecord, error) {
	key := strings.TrimSpace(identifier)
	if strings.Contains(key, "@") {
		return d.GetByEmail(ctx, key)
	}
	return d.queryOne(ctx, selectUser+` WHERE lower(username) = lower($1)`, key)
}

func (d *Directory) GetByID(ctx context.Context, userID string) (goAccount.UserRecord, error) {
	return d.queryOne(ctx, selectUser+` WHERE id = $1`, userID)
}

func (d *Directory) GetByEmail(ctx context.Context, email string) (goAccount.UserRecord, error) {
	return d.queryOne(ctx, selectUser+` WHERE lower(email) = lower($1)`, strings.TrimSpace(email))
}

func (d *Directory) queryOne(ctx context.Context, query string, arg string) (goAccount.UserRecord, error) {
	var (
		user goAccount.UserRecord
		role string
	)
	err := d.db.QueryRowContext(ctx, query, arg).Scan(
		&user.UserID, &user.Username, &user.Email, &user.PasswordHash, &role, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return goAccount.UserRecord{}, goAccount.ErrUserNotFound
		}
		return goAccount.UserRecord{}, fmt.Errorf("db error: %w", err)
	}

	parsed, ok := goAccount.ParseRole(role)
	if !ok {
		return goAccount.UserRecord{}, fmt.Errorf("db error: stored role %q: %w", role, goAccount.ErrRoleInvalid)
	}
	user.Role = parsed
	return user, nil
}

// Create inserts user. A unique index violation on username or email
// maps to goAccount.ErrConflict.
func (d *Directory) Create(ctx context.Context, user goAccount.UserRecord) (goAccount.UserRecord, error) {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO users (id, username, email, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	err := d.db.QueryRowContext(ctx, query,
		user.UserID, user.Username, user.Email, user.PasswordHash, user.Role.String(), user.CreatedAt,
	).Scan(&user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case uniqueViolation:
				return goAccount.UserRecord{}, goAccount.ErrConflict
			case checkViolation:
				return goAccount.UserRecord{}, fmt.Errorf("%w: %s", goAccount.ErrBadRequest, pgErr.ConstraintName)
			}
		}
		return goAccount.UserRecord{}, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

func (d *Directory) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	res, err := d.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`, userID, hash)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return goAccount.ErrUserNotFound
	}
	return nil
}
