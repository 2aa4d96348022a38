package server

import (
	"context"
	"net/http"
	"path"
	"strings"

	"rasdevd/internal/auth"
	"rasdevd/internal/auth/token"
	"rasdevd/pkg/httpx"
)

type ctxKey string

const ctxSubject ctxKey = "subject"

// Paths reachable without a token, compared after normalization.
var openPaths = map[string]struct{}{
	"/docs":               {},
	"/redoc":              {},
	"/openapi.json":       {},
	"/api/v1/admin/token": {},
}

// normalizePath collapses dot segments and duplicate slashes, strips a
// trailing slash and lowercases, so "/API/v1//admin/token/" cannot slip
// past the gate as a distinct path.
func normalizePath(p string) string {
	p = path.Clean("/" + p)
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return strings.ToLower(p)
}

// tokenGate is the single authentication chokepoint: every request outside
// the open set must carry a valid bearer token whose subject still exists.
func tokenGate(tokens *token.Service, authn auth.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, open := openPaths[normalizePath(r.URL.Path)]; open {
				next.ServeHTTP(w, r)
				return
			}
			const prefix = "Bearer "
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, prefix) || strings.TrimSpace(header[len(prefix):]) == "" {
				httpx.WriteDetail(w, http.StatusUnauthorized, "Token is missing")
				return
			}
			claims, err := tokens.Verify(strings.TrimSpace(header[len(prefix):]))
			if err != nil {
				httpx.WriteChallenge(w, "Token is invalid")
				return
			}
			// A token outlives its account only on paper.
			exists, err := authn.Exists(r.Context(), claims.Subject)
			if err != nil || !exists {
				httpx.WriteChallenge(w, "Token is invalid")
				return
			}
			ctx := context.WithValue(r.Context(), ctxSubject, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SubjectFromContext returns the authenticated username, or "" before the
// gate has run.
func SubjectFromContext(ctx context.Context) string {
	s, _ := ctx.Value(ctxSubject).(string)
	return s
}

// requirePermission guards a handler behind a store permission. full_access
// short-circuits every check.
func requirePermission(perms auth.PermissionChecker, permission string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject := SubjectFromContext(r.Context())
		ok, err := perms.HasPermission(r.Context(), subject, "full_access")
		if err == nil && !ok {
			ok, err = perms.HasPermission(r.Context(), subject, permission)
		}
		if err != nil {
			httpx.WriteDetail(w, http.StatusBadRequest, "database error")
			return
		}
		if !ok {
			httpx.WriteDetail(w, http.StatusForbidden, "Operation not permitted")
			return
		}
		next(w, r)
	}
}
