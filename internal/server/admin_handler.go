package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"rasdevd/internal/auth/store"
	"rasdevd/pkg/httpx"
)

// requireStore refuses user management when the host auth backend is
// active; accounts then belong to the OS, not to this daemon.
func requireStore(deps Deps, w http.ResponseWriter) bool {
	if deps.Store == nil {
		httpx.WriteDetail(w, http.StatusNotImplemented, "user management requires the db auth backend")
		return false
	}
	return true
}

func handleCreateUser(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireStore(deps, w) {
			return
		}
		var body struct {
			Username string   `json:"username"`
			Password string   `json:"password"`
			Roles    []string `json:"roles"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			httpx.WriteDetail(w, http.StatusBadRequest, "malformed request body")
			return
		}
		if body.Username == "" || body.Password == "" {
			httpx.WriteDetail(w, http.StatusBadRequest, "username and password are required")
			return
		}
		u, err := deps.Store.CreateUser(r.Context(), body.Username, body.Password, body.Roles)
		if err != nil {
			if errors.Is(err, store.ErrRoleNotFound) {
				httpx.WriteDetail(w, http.StatusBadRequest, "role not found")
				return
			}
			httpx.WriteDetail(w, http.StatusBadRequest, "database error")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(u)
	}
}

func handleListUsers(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireStore(deps, w) {
			return
		}
		users, err := deps.Store.ListUsers(r.Context())
		if err != nil {
			httpx.WriteDetail(w, http.StatusBadRequest, "database error")
			return
		}
		httpx.WriteJSON(w, users)
	}
}

func handleDeleteUser(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireStore(deps, w) {
			return
		}
		username := chi.URLParam(r, "username")
		if username == SubjectFromContext(r.Context()) {
			httpx.WriteDetail(w, http.StatusBadRequest, "cannot delete the requesting account")
			return
		}
		if err := deps.Store.DeleteUser(r.Context(), username); err != nil {
			if errors.Is(err, store.ErrUserNotFound) {
				httpx.WriteDetail(w, http.StatusNotFound, "user not found")
				return
			}
			httpx.WriteDetail(w, http.StatusBadRequest, "database error")
			return
		}
		httpx.WriteJSON(w, map[string]string{"status": "success", "username": username})
	}
}

func handleCreateRole(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireStore(deps, w) {
			return
		}
		var body struct {
			Name        string   `json:"name"`
			Permissions []string `json:"permissions"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			httpx.WriteDetail(w, http.StatusBadRequest, "malformed request body")
			return
		}
		if body.Name == "" {
			httpx.WriteDetail(w, http.StatusBadRequest, "role name is required")
			return
		}
		role, err := deps.Store.CreateRole(r.Context(), body.Name, body.Permissions)
		if err != nil {
			if errors.Is(err, store.ErrPermissionNotFound) {
				httpx.WriteDetail(w, http.StatusBadRequest, "permission not found")
				return
			}
			httpx.WriteDetail(w, http.StatusBadRequest, "database error")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(role)
	}
}

func handleDeleteRole(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireStore(deps, w) {
			return
		}
		name := chi.URLParam(r, "name")
		if err := deps.Store.DeleteRole(r.Context(), name); err != nil {
			if errors.Is(err, store.ErrRoleNotFound) {
				httpx.WriteDetail(w, http.StatusNotFound, "role not found")
				return
			}
			httpx.WriteDetail(w, http.StatusBadRequest, "database error")
			return
		}
		httpx.WriteJSON(w, map[string]string{"status": "success", "role": name})
	}
}
