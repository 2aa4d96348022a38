// Package store is the durable credential store: users, roles, permissions
// and their many-to-many associations, backed by SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrRoleNotFound       = errors.New("role not found")
	ErrPermissionNotFound = errors.New("permission not found")
)

type User struct {
	UserID       int64     `json:"user_id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Roles        []string  `json:"roles"`
	CreatedAt    time.Time `json:"created_at"`
}

type Role struct {
	RoleID      int64    `json:"role_id"`
	RoleName    string   `json:"role_name"`
	Permissions []string `json:"permissions"`
}

type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	user_id         INTEGER PRIMARY KEY AUTOINCREMENT,
	username        TEXT NOT NULL UNIQUE,
	hashed_password TEXT NOT NULL,
	created_at      TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS roles (
	role_id   INTEGER PRIMARY KEY AUTOINCREMENT,
	role_name TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS permissions (
	permission_id   INTEGER PRIMARY KEY AUTOINCREMENT,
	permission_name TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS user_roles (
	user_id INTEGER NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
	role_id INTEGER NOT NULL REFERENCES roles(role_id) ON DELETE CASCADE,
	PRIMARY KEY (user_id, role_id)
);
CREATE TABLE IF NOT EXISTS role_permissions (
	role_id       INTEGER NOT NULL REFERENCES roles(role_id) ON DELETE CASCADE,
	permission_id INTEGER NOT NULL REFERENCES permissions(permission_id) ON DELETE CASCADE,
	PRIMARY KEY (role_id, permission_id)
);
`

// Open connects to the SQLite database at path, enabling foreign keys so
// deleting a user or role cascade-cleans its join rows, and applies the
// schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_fk=1&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// GetByUsername returns the user record with its role names loaded.
func (s *Store) GetByUsername(ctx context.Context, username string) (*User, error) {
	const q = `SELECT user_id, username, hashed_password, created_at FROM users WHERE username = ?`
	u := &User{}
	err := s.db.QueryRowContext(ctx, q, username).Scan(&u.UserID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	roles, err := s.rolesForUser(ctx, u.UserID)
	if err != nil {
		return nil, err
	}
	u.Roles = roles
	return u, nil
}

// Exists reports whether a username resolves to a stored user.
func (s *Store) Exists(ctx context.Context, username string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM users WHERE username = ?`, username).Scan(&n)
	return n > 0, err
}

// CreateUser hashes password with bcrypt and stores the user with the given
// role associations. All named roles must already exist.
func (s *Store) CreateUser(ctx context.Context, username, password string, roles []string) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO users (username, hashed_password, created_at) VALUES (?, ?, ?)`,
		username, string(hash), now)
	if err != nil {
		return nil, err
	}
	uid, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	for _, role := range roles {
		var rid int64
		err := tx.QueryRowContext(ctx, `SELECT role_id FROM roles WHERE role_name = ?`, role).Scan(&rid)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRoleNotFound, role)
		} else if err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_roles (user_id, role_id) VALUES (?, ?)`, uid, rid); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &User{UserID: uid, Username: username, PasswordHash: string(hash), Roles: roles, CreatedAt: now}, nil
}

// DeleteUser removes the user; join rows go with it via cascade.
func (s *Store) DeleteUser(ctx context.Context, username string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE username = ?`, username)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id, username, hashed_password, created_at FROM users ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.UserID, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		roles, err := s.rolesForUser(ctx, out[i].UserID)
		if err != nil {
			return nil, err
		}
		out[i].Roles = roles
	}
	return out, nil
}

// CreatePermission stores a named permission; creating an existing name is
// a no-op.
func (s *Store) CreatePermission(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO permissions (permission_name) VALUES (?)`, name)
	return err
}

// CreateRole stores a role and grants it the named permissions, which must
// already exist. Creating an existing role only adds missing grants.
func (s *Store) CreateRole(ctx context.Context, name string, permissions []string) (*Role, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO roles (role_name) VALUES (?)`, name); err != nil {
		return nil, err
	}
	var rid int64
	if err := tx.QueryRowContext(ctx, `SELECT role_id FROM roles WHERE role_name = ?`, name).Scan(&rid); err != nil {
		return nil, err
	}
	for _, perm := range permissions {
		var pid int64
		err := tx.QueryRowContext(ctx,
			`SELECT permission_id FROM permissions WHERE permission_name = ?`, perm).Scan(&pid)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrPermissionNotFound, perm)
		} else if err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO role_permissions (role_id, permission_id) VALUES (?, ?)`, rid, pid); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &Role{RoleID: rid, RoleName: name, Permissions: permissions}, nil
}

// DeleteRole removes the role; user_roles and role_permissions rows cascade,
// users and permissions themselves are untouched.
func (s *Store) DeleteRole(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM roles WHERE role_name = ?`, name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRoleNotFound
	}
	return nil
}

// PermissionsForUser resolves the union of permissions across the user's
// roles.
func (s *Store) PermissionsForUser(ctx context.Context, username string) ([]string, error) {
	const q = `
		SELECT DISTINCT p.permission_name
		FROM users u
		JOIN user_roles ur ON ur.user_id = u.user_id
		JOIN role_permissions rp ON rp.role_id = ur.role_id
		JOIN permissions p ON p.permission_id = rp.permission_id
		WHERE u.username = ?
		ORDER BY p.permission_name`
	rows, err := s.db.QueryContext(ctx, q, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// HasPermission reports whether the user holds perm through any role.
func (s *Store) HasPermission(ctx context.Context, username, perm string) (bool, error) {
	const q = `
		SELECT COUNT(1)
		FROM users u
		JOIN user_roles ur ON ur.user_id = u.user_id
		JOIN role_permissions rp ON rp.role_id = ur.role_id
		JOIN permissions p ON p.permission_id = rp.permission_id
		WHERE u.username = ? AND p.permission_name = ?`
	var n int
	if err := s.db.QueryRowContext(ctx, q, username, perm).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) rolesForUser(ctx context.Context, userID int64) ([]string, error) {
	const q = `
		SELECT r.role_name FROM roles r
		JOIN user_roles ur ON ur.role_id = r.role_id
		WHERE ur.user_id = ?
		ORDER BY r.role_name`
	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}
