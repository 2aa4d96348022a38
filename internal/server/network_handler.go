package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"rasdevd/pkg/httpx"
	"rasdevd/pkg/syscfg"
)

type networkConfigRequest struct {
	Mode       string   `json:"mode"`
	Address    string   `json:"ip_address"`
	Prefix     *int     `json:"subnet_prefix"`
	Gateway    string   `json:"gateway"`
	DNSServers []string `json:"dns_servers"`
}

// handleConfigureInterface validates everything before the executor is
// allowed near a process or a file. A partial result (configuration
// written, restart failed) is still a 200: the caller must see what state
// the device is actually in.
func handleConfigureInterface(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		var body networkConfigRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			httpx.WriteDetail(w, http.StatusBadRequest, "malformed request body")
			return
		}
		cfg, err := syscfg.ParseNetworkConfig(body.Mode, body.Address, body.Prefix, body.Gateway, body.DNSServers)
		if err != nil {
			httpx.WriteDetail(w, http.StatusBadRequest, err.Error())
			return
		}
		res, err := deps.Exec.ConfigureInterface(r.Context(), name, cfg)
		if err != nil {
			var ve *syscfg.ValidationError
			if errors.As(err, &ve) {
				httpx.WriteDetail(w, http.StatusBadRequest, ve.Error())
				return
			}
			httpx.WriteDetail(w, http.StatusInternalServerError, execDetail(err))
			return
		}
		out := map[string]string{"status": res.Status, "interface": name}
		if res.Detail != "" {
			out["detail"] = res.Detail
		}
		httpx.WriteJSON(w, out)
	}
}
