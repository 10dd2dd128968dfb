package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/learnloop/internal/apperror"
	"github.com/sakif/learnloop/internal/model"
	"github.com/sakif/learnloop/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, email, name, photo, role, status, created_at`

// UpsertLogin inserts a new user or refreshes name/photo of an existing one.
//
// INSERT ... ON CONFLICT DO NOTHING decides "new or existing" in a single
// statement, so two concurrent first logins for the same email cannot both
// create a row. RowsAffected tells us which branch we took.
func (db *DB) UpsertLogin(ctx context.Context, user *model.User) (bool, error) {
	now := time.Now().UTC()
	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, email, name, photo, role, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(email) DO NOTHING`,
		xid.New().String(),
		user.Email,
		user.Name,
		user.Photo,
		string(model.RoleStudent),
		string(model.UserActive),
		now,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: inserting user %s: %w", user.Email, err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}

	if inserted == 0 {
		_, err = db.conn.ExecContext(ctx,
			`UPDATE users SET name = ?, photo = ? WHERE email = ?`,
			user.Name, user.Photo, user.Email,
		)
		if err != nil {
			return false, fmt.Errorf("sqlite: updating user %s: %w", user.Email, err)
		}
	}

	stored, err := db.GetUserByEmail(ctx, user.Email)
	if err != nil {
		return false, err
	}
	*user = *stored

	return inserted == 1, nil
}

// GetUserByEmail returns apperror.ErrNotFound if no user has that email.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", email, err)
	}
	return u, nil
}

func (db *DB) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}

	return users, nil
}

func (db *DB) SetUserRole(ctx context.Context, id string, role model.Role) error {
	return db.updateUserField(ctx, id, "role", string(role))
}

func (db *DB) SetUserStatus(ctx context.Context, id string, status model.UserStatus) error {
	return db.updateUserField(ctx, id, "status", string(status))
}

// updateUserField sets a single column. column is always a constant from
// this file, never caller input.
func (db *DB) updateUserField(ctx context.Context, id, column, value string) error {
	result, err := db.conn.ExecContext(ctx,
		fmt.Sprintf(`UPDATE users SET %s = ? WHERE id = ?`, column),
		value, id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating user %s %s: %w", id, column, err)
	}
	return requireAffected(result, "user", id)
}

func (db *DB) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting users: %w", err)
	}
	return n, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	var role, status string
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Photo, &role, &status, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	u.Status = model.UserStatus(status)
	return &u, nil
}
