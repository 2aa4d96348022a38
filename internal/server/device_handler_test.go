package server

import (
	"errors"
	"net/http"
	"testing"

	"rasdevd/pkg/shell"
)

func TestDeviceReads(t *testing.T) {
	h := newHarness(t)
	tok := h.tokenFor(t, "viewer")

	t.Run("hostname", func(t *testing.T) {
		resp := h.do(t, http.MethodGet, "/api/v1/device/hostname", tok, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status: %d", resp.StatusCode)
		}
		var body struct {
			Hostname string `json:"hostname"`
		}
		decodeBody(t, resp, &body)
		if body.Hostname == "" {
			t.Fatal("empty hostname")
		}
	})

	t.Run("clock", func(t *testing.T) {
		resp := h.do(t, http.MethodGet, "/api/v1/device/clock", tok, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status: %d", resp.StatusCode)
		}
		var body struct {
			Time string `json:"Time"`
			Date string `json:"Date"`
			Zone string `json:"Zone"`
		}
		decodeBody(t, resp, &body)
		if body.Time == "" || body.Date == "" || body.Zone == "" {
			t.Fatalf("incomplete clock: %+v", body)
		}
	})

	t.Run("unknown interface", func(t *testing.T) {
		resp := h.do(t, http.MethodGet, "/api/v1/device/interface/definitely-not-an-iface0", tok, nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("status: %d", resp.StatusCode)
		}
		if d := detailOf(t, resp); d != "interface not found" {
			t.Fatalf("detail: %q", d)
		}
	})
}

func TestSetHostnameAdminOnly(t *testing.T) {
	h := newHarness(t)
	body := map[string]string{"hostname": "renamed-host"}

	// operator holds device:configure but hostname mutation is not
	// permission-driven.
	resp := h.do(t, http.MethodPost, "/api/v1/device/set-hostname", h.tokenFor(t, "operator"), body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("operator status: %d", resp.StatusCode)
	}
	if got := h.rec.recorded(); len(got) != 0 {
		t.Fatalf("denied request spawned a process: %v", got)
	}

	resp = h.do(t, http.MethodPost, "/api/v1/device/set-hostname", h.tokenFor(t, "admin"), body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin status: %d", resp.StatusCode)
	}
	var out struct {
		Status   string `json:"status"`
		Hostname string `json:"hostname"`
	}
	decodeBody(t, resp, &out)
	if out.Status != "success" || out.Hostname != "renamed-host" {
		t.Fatalf("body: %+v", out)
	}
	calls := h.rec.recorded()
	if len(calls) != 1 || calls[0].name != "/usr/bin/hostnamectl" {
		t.Fatalf("calls: %v", calls)
	}
	if len(calls[0].args) != 2 || calls[0].args[0] != "set-hostname" || calls[0].args[1] != "renamed-host" {
		t.Fatalf("argv: %v", calls[0].args)
	}
}

func TestSetHostnameRejectsInvalidBeforeSpawn(t *testing.T) {
	h := newHarness(t)
	tok := h.tokenFor(t, "admin")
	for _, bad := range []string{"", "host name", "x; rm -rf /", "-lead"} {
		resp := h.do(t, http.MethodPost, "/api/v1/device/set-hostname", tok, map[string]string{"hostname": bad})
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%q: status %d", bad, resp.StatusCode)
		}
	}
	if got := h.rec.recorded(); len(got) != 0 {
		t.Fatalf("invalid hostname reached the executor: %v", got)
	}
}

func TestSetHostnameExecFailure(t *testing.T) {
	h := newHarness(t)
	h.rec.results["/usr/bin/hostnamectl"] = shell.Result{Code: 1, Stderr: []byte("Could not set property: Access denied\n")}
	h.rec.errs["/usr/bin/hostnamectl"] = errors.New("exit status 1")

	resp := h.do(t, http.MethodPost, "/api/v1/device/set-hostname", h.tokenFor(t, "admin"), map[string]string{"hostname": "renamed-host"})
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	if d := detailOf(t, resp); d != "Could not set property: Access denied" {
		t.Fatalf("detail: %q", d)
	}
}

func TestSetTimezonePermission(t *testing.T) {
	h := newHarness(t)
	body := map[string]string{"timezone": "Europe/London"}

	resp := h.do(t, http.MethodPost, "/api/v1/device/set-timezone", h.tokenFor(t, "viewer"), body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("viewer status: %d", resp.StatusCode)
	}

	for _, u := range []string{"operator", "admin"} {
		resp := h.do(t, http.MethodPost, "/api/v1/device/set-timezone", h.tokenFor(t, u), body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status: %d", u, resp.StatusCode)
		}
	}
	calls := h.rec.recorded()
	if len(calls) != 2 {
		t.Fatalf("calls: %v", calls)
	}
	for _, c := range calls {
		if c.name != "/usr/bin/timedatectl" || len(c.args) != 2 || c.args[0] != "set-timezone" || c.args[1] != "Europe/London" {
			t.Fatalf("argv: %+v", c)
		}
	}
}

func TestSetTimezoneRejectsInvalid(t *testing.T) {
	h := newHarness(t)
	tok := h.tokenFor(t, "operator")
	for _, bad := range []string{"", "UTC", "Europe/London; reboot"} {
		resp := h.do(t, http.MethodPost, "/api/v1/device/set-timezone", tok, map[string]string{"timezone": bad})
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%q: status %d", bad, resp.StatusCode)
		}
	}
	if got := h.rec.recorded(); len(got) != 0 {
		t.Fatalf("invalid timezone reached the executor: %v", got)
	}
}

func TestWifiSetup(t *testing.T) {
	h := newHarness(t)
	tok := h.tokenFor(t, "viewer")

	resp := h.do(t, http.MethodPost, "/api/v1/device/wifi-setup", tok, map[string]string{"ssid": "lab", "password": "long-enough"})
	if resp.StatusCode != http.StatusNotImplemented {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = h.do(t, http.MethodPost, "/api/v1/device/wifi-setup", tok, map[string]string{"password": "long-enough"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing ssid status: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = h.do(t, http.MethodPost, "/api/v1/device/wifi-setup", tok, map[string]string{"ssid": "lab", "password": "short"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("short password status: %d", resp.StatusCode)
	}
	resp.Body.Close()
}
