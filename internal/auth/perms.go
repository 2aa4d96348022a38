package auth

import "context"

// PermissionChecker reports whether a subject holds a named permission.
// The credential store implements it directly; the host backend has no
// permission tables, so it uses AllowSubject instead.
type PermissionChecker interface {
	HasPermission(ctx context.Context, username, permission string) (bool, error)
}

// AllowSubject grants every permission to exactly one subject and none to
// anyone else.
type AllowSubject string

func (a AllowSubject) HasPermission(_ context.Context, username, _ string) (bool, error) {
	return username == string(a), nil
}
