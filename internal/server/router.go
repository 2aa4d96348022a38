package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"rasdevd/internal/auth"
	"rasdevd/internal/auth/store"
	"rasdevd/internal/auth/token"
	"rasdevd/internal/config"
	"rasdevd/pkg/httpx"
	"rasdevd/pkg/syscfg"
)

func Logger(cfg config.Config) *zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	logger := log.Logger.Level(cfg.LogLevel).With().Timestamp().Logger()
	return &logger
}

// Deps carries the wired subsystems. Store is nil when the host auth
// backend is active; the user-management handlers refuse in that case.
type Deps struct {
	Store  *store.Store
	Auth   auth.Authenticator
	Perms  auth.PermissionChecker
	Tokens *token.Service
	Exec   *syscfg.Executor
}

func NewRouter(cfg config.Config, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(zerologMiddleware(Logger(cfg)))
	r.Use(securityHeaders)

	// Dev CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://127.0.0.1:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	r.Use(c.Handler)

	r.Use(tokenGate(deps.Tokens, deps.Auth))

	r.Get("/openapi.json", handleOpenAPI)
	r.Get("/docs", handleDocsPage(swaggerPage))
	r.Get("/redoc", handleDocsPage(redocPage))

	r.Post("/api/v1/admin/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			httpx.WriteDetail(w, http.StatusBadRequest, "malformed form body")
			return
		}
		username := r.PostFormValue("username")
		password := r.PostFormValue("password")
		id, err := deps.Auth.Authenticate(r.Context(), username, password)
		if err != nil {
			// Locked accounts and unverifiable hashes get the same
			// response as a wrong password; nothing leaks.
			if errors.Is(err, auth.ErrInvalidCredentials) ||
				errors.Is(err, auth.ErrUserLocked) ||
				errors.Is(err, auth.ErrUnsupportedHash) {
				httpx.WriteChallenge(w, "Incorrect username or password")
				return
			}
			httpx.WriteDetail(w, http.StatusBadRequest, "database error")
			return
		}
		t, err := deps.Tokens.Issue(id.Username, 0)
		if err != nil {
			httpx.WriteDetail(w, http.StatusInternalServerError, "token issuance failed")
			return
		}
		httpx.WriteJSON(w, map[string]any{
			"access_token": t,
			"token_type":   "bearer",
			"username":     id.Username,
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/system-resources", handleSystemResources())

		r.Route("/device", func(r chi.Router) {
			r.Get("/info", handleDeviceInfo())
			r.Get("/hostname", handleHostname())
			r.Get("/clock", handleClock())
			r.Get("/interfaces", handleInterfaces())
			r.Get("/interface/{name}", handleInterfaceByName())
			r.Post("/set-hostname", handleSetHostname(deps))
			r.Post("/set-timezone", requirePermission(deps.Perms, "device:configure", handleSetTimezone(deps)))
			r.Post("/wifi-setup", handleWifiSetup())
		})

		r.Post("/network/{name}/configure",
			requirePermission(deps.Perms, "device:configure", handleConfigureInterface(deps)))

		r.Route("/admin", func(r chi.Router) {
			r.Post("/users", requirePermission(deps.Perms, "rbac:manage", handleCreateUser(deps)))
			r.Get("/users", requirePermission(deps.Perms, "rbac:manage", handleListUsers(deps)))
			r.Delete("/users/{username}", requirePermission(deps.Perms, "rbac:manage", handleDeleteUser(deps)))
			r.Post("/roles", requirePermission(deps.Perms, "rbac:manage", handleCreateRole(deps)))
			r.Delete("/roles/{name}", requirePermission(deps.Perms, "rbac:manage", handleDeleteRole(deps)))
		})
	})

	return r
}
