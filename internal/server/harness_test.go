package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"rasdevd/internal/auth"
	"rasdevd/internal/auth/store"
	"rasdevd/internal/auth/token"
	"rasdevd/internal/config"
	"rasdevd/pkg/shell"
	"rasdevd/pkg/syscfg"
)

type recordedCall struct {
	name string
	args []string
}

// recorder stands in for the subprocess runner so handler tests can assert
// exact argument vectors and script failures.
type recorder struct {
	mu      sync.Mutex
	calls   []recordedCall
	results map[string]shell.Result
	errs    map[string]error
}

func newRecorder() *recorder {
	return &recorder{results: map[string]shell.Result{}, errs: map[string]error{}}
}

func (rc *recorder) run(_ context.Context, _ time.Duration, name string, args ...string) (shell.Result, error) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.calls = append(rc.calls, recordedCall{name: name, args: args})
	return rc.results[name], rc.errs[name]
}

func (rc *recorder) recorded() []recordedCall {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	out := make([]recordedCall, len(rc.calls))
	copy(out, rc.calls)
	return out
}

type harness struct {
	srv    *httptest.Server
	store  *store.Store
	tokens *token.Service
	rec    *recorder
	dir    string
}

// newHarness stands up the full router against a temp SQLite store seeded
// with three accounts: admin (full_access), operator (device:configure)
// and viewer (no permissions).
func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	st, err := store.Open(ctx, filepath.Join(dir, "rbac.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	for _, p := range []string{"full_access", "device:configure", "rbac:manage"} {
		if err := st.CreatePermission(ctx, p); err != nil {
			t.Fatalf("create permission %s: %v", p, err)
		}
	}
	for _, r := range []struct {
		name  string
		perms []string
	}{
		{"admin", []string{"full_access"}},
		{"operator", []string{"device:configure"}},
		{"viewer", nil},
	} {
		if _, err := st.CreateRole(ctx, r.name, r.perms); err != nil {
			t.Fatalf("create role %s: %v", r.name, err)
		}
	}
	for _, u := range []string{"admin", "operator", "viewer"} {
		if _, err := st.CreateUser(ctx, u, u+"-pass", []string{u}); err != nil {
			t.Fatalf("create user %s: %v", u, err)
		}
	}

	tokens := token.NewService([]byte("test-signing-secret"), 15*time.Minute)
	rec := newRecorder()
	exec := syscfg.New(syscfg.Options{
		InterfacesPath: filepath.Join(dir, "interfaces"),
		ResolvPath:     filepath.Join(dir, "resolv.conf"),
		Runner:         rec.run,
		Logger:         zerolog.Nop(),
	})

	cfg := config.Config{LogLevel: zerolog.Disabled, Secret: "test-signing-secret", TokenTTL: 15 * time.Minute}
	deps := Deps{
		Store:  st,
		Auth:   auth.NewStoreAuthenticator(st),
		Perms:  st,
		Tokens: tokens,
		Exec:   exec,
	}
	srv := httptest.NewServer(NewRouter(cfg, deps))
	t.Cleanup(func() {
		srv.Close()
		_ = st.Close()
	})
	return &harness{srv: srv, store: st, tokens: tokens, rec: rec, dir: dir}
}

func (h *harness) tokenFor(t *testing.T, username string) string {
	t.Helper()
	tok, err := h.tokens.Issue(username, 0)
	if err != nil {
		t.Fatalf("issue token for %s: %v", username, err)
	}
	return tok
}

func (h *harness) do(t *testing.T, method, path, bearer string, body any) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func detailOf(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body struct {
		Detail string `json:"detail"`
	}
	decodeBody(t, resp, &body)
	return body.Detail
}
