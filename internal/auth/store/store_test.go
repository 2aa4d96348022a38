package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "rbac.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedBasic(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	for _, p := range []string{"full_access", "device:configure", "rbac:manage"} {
		if err := s.CreatePermission(ctx, p); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.CreateRole(ctx, "admin", []string{"full_access", "device:configure", "rbac:manage"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateRole(ctx, "operator", []string{"device:configure"}); err != nil {
		t.Fatal(err)
	}
}

func TestCreateAndGetUser(t *testing.T) {
	s := openTestStore(t)
	seedBasic(t, s)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "admin", "hunter2", []string{"admin"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.UserID == 0 {
		t.Fatalf("missing user id")
	}

	got, err := s.GetByUsername(ctx, "admin")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Username != "admin" || len(got.Roles) != 1 || got.Roles[0] != "admin" {
		t.Fatalf("unexpected user: %+v", got)
	}
	// The stored digest must verify, and must not be the plaintext.
	if got.PasswordHash == "hunter2" {
		t.Fatalf("password stored in plaintext")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(got.PasswordHash), []byte("hunter2")); err != nil {
		t.Fatalf("hash does not verify: %v", err)
	}
}

func TestGetUnknownUser(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetByUsername(context.Background(), "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUsernameUnique(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if _, err := s.CreateUser(ctx, "dup", "pw", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateUser(ctx, "dup", "pw2", nil); err == nil {
		t.Fatalf("expected unique violation")
	}
}

func TestCreateUserUnknownRole(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.CreateUser(context.Background(), "u", "pw", []string{"nope"}); !errors.Is(err, ErrRoleNotFound) {
		t.Fatalf("expected ErrRoleNotFound, got %v", err)
	}
}

func TestPermissionsForUser(t *testing.T) {
	s := openTestStore(t)
	seedBasic(t, s)
	ctx := context.Background()
	if _, err := s.CreateUser(ctx, "op", "pw", []string{"operator"}); err != nil {
		t.Fatal(err)
	}
	perms, err := s.PermissionsForUser(ctx, "op")
	if err != nil {
		t.Fatal(err)
	}
	if len(perms) != 1 || perms[0] != "device:configure" {
		t.Fatalf("perms: %v", perms)
	}
	ok, err := s.HasPermission(ctx, "op", "device:configure")
	if err != nil || !ok {
		t.Fatalf("expected permission held: %v %v", ok, err)
	}
	ok, err = s.HasPermission(ctx, "op", "rbac:manage")
	if err != nil || ok {
		t.Fatalf("expected permission missing: %v %v", ok, err)
	}
}

func TestDeleteUserCascadesJoins(t *testing.T) {
	s := openTestStore(t)
	seedBasic(t, s)
	ctx := context.Background()
	if _, err := s.CreateUser(ctx, "temp", "pw", []string{"operator"}); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteUser(ctx, "temp"); err != nil {
		t.Fatal(err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM user_roles`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("join rows not cascade-cleaned: %d", n)
	}
	// The role itself must survive.
	if _, err := s.CreateUser(ctx, "again", "pw", []string{"operator"}); err != nil {
		t.Fatalf("role was deleted with user: %v", err)
	}
}

func TestDeleteRoleKeepsUsersAndPermissions(t *testing.T) {
	s := openTestStore(t)
	seedBasic(t, s)
	ctx := context.Background()
	if _, err := s.CreateUser(ctx, "op", "pw", []string{"operator"}); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteRole(ctx, "operator"); err != nil {
		t.Fatal(err)
	}
	u, err := s.GetByUsername(ctx, "op")
	if err != nil {
		t.Fatalf("user deleted with role: %v", err)
	}
	if len(u.Roles) != 0 {
		t.Fatalf("stale role association: %v", u.Roles)
	}
	perms, err := s.PermissionsForUser(ctx, "op")
	if err != nil || len(perms) != 0 {
		t.Fatalf("perms after role delete: %v %v", perms, err)
	}
}

func TestSeedFromFileIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	seed := `
permissions:
  - full_access
roles:
  - name: admin
    permissions: [full_access]
users:
  - username: admin
    password: admin123
    roles: [admin]
`
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(seed), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := s.SeedFromFile(ctx, path); err != nil {
		t.Fatalf("first seed: %v", err)
	}
	first, err := s.GetByUsername(ctx, "admin")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SeedFromFile(ctx, path); err != nil {
		t.Fatalf("second seed: %v", err)
	}
	second, err := s.GetByUsername(ctx, "admin")
	if err != nil {
		t.Fatal(err)
	}
	if first.PasswordHash != second.PasswordHash {
		t.Fatalf("reseed rewrote password hash")
	}
	users, err := s.ListUsers(ctx)
	if err != nil || len(users) != 1 {
		t.Fatalf("users after reseed: %v %v", users, err)
	}
}
