package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"rasdevd/pkg/httpx"
	"rasdevd/pkg/syscfg"
	"rasdevd/pkg/telemetry"
)

func handleDeviceInfo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, err := telemetry.Info(r.Context())
		if err != nil {
			httpx.WriteDetail(w, http.StatusInternalServerError, "failed to collect device information")
			return
		}
		httpx.WriteJSON(w, info)
	}
}

func handleHostname() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h, err := telemetry.Hostname()
		if err != nil {
			httpx.WriteDetail(w, http.StatusInternalServerError, "failed to read hostname")
			return
		}
		httpx.WriteJSON(w, map[string]string{"hostname": h})
	}
}

func handleClock() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, telemetry.Clock())
	}
}

func handleInterfaces() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ifs, err := telemetry.Interfaces(r.Context())
		if err != nil {
			httpx.WriteDetail(w, http.StatusInternalServerError, "failed to enumerate interfaces")
			return
		}
		httpx.WriteJSON(w, ifs)
	}
}

func handleInterfaceByName() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		detail, err := telemetry.InterfaceByName(r.Context(), name)
		if err != nil {
			if errors.Is(err, telemetry.ErrInterfaceNotFound) {
				httpx.WriteDetail(w, http.StatusNotFound, "interface not found")
				return
			}
			httpx.WriteDetail(w, http.StatusInternalServerError, "failed to read interface")
			return
		}
		httpx.WriteJSON(w, detail)
	}
}

func handleSystemResources() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := telemetry.SystemResources(r.Context())
		if err != nil {
			httpx.WriteDetail(w, http.StatusInternalServerError, "failed to sample system resources")
			return
		}
		httpx.WriteJSON(w, res)
	}
}

// handleSetHostname is restricted to the admin account itself, not to a
// permission: renaming the device is the one mutation the original operator
// model never delegates.
func handleSetHostname(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if SubjectFromContext(r.Context()) != "admin" {
			httpx.WriteDetail(w, http.StatusForbidden, "Operation not permitted")
			return
		}
		var body struct {
			Hostname string `json:"hostname"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			httpx.WriteDetail(w, http.StatusBadRequest, "malformed request body")
			return
		}
		if err := syscfg.ValidateHostname(body.Hostname); err != nil {
			httpx.WriteDetail(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := deps.Exec.SetHostname(r.Context(), body.Hostname); err != nil {
			httpx.WriteDetail(w, http.StatusInternalServerError, execDetail(err))
			return
		}
		httpx.WriteJSON(w, map[string]string{"status": "success", "hostname": body.Hostname})
	}
}

func handleSetTimezone(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Timezone string `json:"timezone"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			httpx.WriteDetail(w, http.StatusBadRequest, "malformed request body")
			return
		}
		if err := syscfg.ValidateTimezone(body.Timezone); err != nil {
			httpx.WriteDetail(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := deps.Exec.SetTimezone(r.Context(), body.Timezone); err != nil {
			httpx.WriteDetail(w, http.StatusInternalServerError, execDetail(err))
			return
		}
		httpx.WriteJSON(w, map[string]string{"status": "success", "timezone": body.Timezone})
	}
}

// Wireless provisioning is surfaced in the API but the executor side is
// not built yet; requests are validated and then refused.
func handleWifiSetup() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			SSID     string `json:"ssid"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			httpx.WriteDetail(w, http.StatusBadRequest, "malformed request body")
			return
		}
		if body.SSID == "" {
			httpx.WriteDetail(w, http.StatusBadRequest, "ssid is required")
			return
		}
		if body.Password != "" && len(body.Password) < 8 {
			httpx.WriteDetail(w, http.StatusBadRequest, "password must be at least 8 characters")
			return
		}
		httpx.WriteDetail(w, http.StatusNotImplemented, "wifi setup is not available on this device")
	}
}

// execDetail extracts a client-safe failure description: the child's
// stderr for executor failures, a generic line for anything else.
func execDetail(err error) string {
	var ee *syscfg.ExecError
	if errors.As(err, &ee) {
		return ee.Error()
	}
	return "command execution failed"
}
