// Package testutil provides an in-process controller stub for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/lexfrei/unifi-mcp/internal/config"
)

const (
	// Username and Password are the credentials the stub accepts by default.
	Username = "admin"
	Password = "correct-horse"

	udmPrefix = "/proxy/network"
)

// Recorded is one authenticated API request seen by the stub.
type Recorded struct {
	Method string
	// Path has the /proxy/network prefix removed, so it is the same for both variants.
	Path string
	Body map[string]any
	CSRF string
}

// MockController emulates the login and API surface of a controller.
// Handlers are registered by variant-neutral path, e.g. "/api/s/default/stat/device".
type MockController struct {
	t      *testing.T
	server *httptest.Server

	udm        bool
	mfa        bool
	loginDelay time.Duration
	emitHeader bool

	logins atomic.Int32
	seq    atomic.Int32

	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	tokens   map[string]string // auth token -> csrf token
	requests []Recorded
}

// MockOption customizes a MockController.
type MockOption func(*MockController)

// WithLegacy emulates a classic Network application instead of UniFi OS.
func WithLegacy() MockOption {
	return func(m *MockController) { m.udm = false }
}

// WithMFA makes every login demand a second factor.
func WithMFA() MockOption {
	return func(m *MockController) { m.mfa = true }
}

// WithLoginDelay delays login responses; the delay ends early when the client goes away.
func WithLoginDelay(d time.Duration) MockOption {
	return func(m *MockController) { m.loginDelay = d }
}

// WithCSRFHeader makes UniFi OS logins also return an X-CSRF-Token header
// that differs from the token claim.
func WithCSRFHeader() MockOption {
	return func(m *MockController) { m.emitHeader = true }
}

// NewMockController starts a stub controller that is closed with the test.
func NewMockController(t *testing.T, opts ...MockOption) *MockController {
	t.Helper()

	m := &MockController{
		t:        t,
		udm:      true,
		handlers: map[string]http.HandlerFunc{},
		tokens:   map[string]string{},
	}
	for _, opt := range opts {
		opt(m)
	}

	m.server = httptest.NewServer(http.HandlerFunc(m.serve))
	t.Cleanup(m.server.Close)

	return m
}

// URL returns the stub's base URL.
func (m *MockController) URL() string {
	return m.server.URL
}

// Profile returns a credential profile pointing at the stub.
func (m *MockController) Profile() config.Controller {
	return config.Controller{
		BaseURL:  m.server.URL,
		Username: Username,
		Password: Password,
		UDM:      m.udm,
	}
}

// Logins returns how many login requests the stub received.
func (m *MockController) Logins() int {
	return int(m.logins.Load())
}

// Handle registers h for a variant-neutral path.
func (m *MockController) Handle(path string, h http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.handlers[path] = h
}

// HandleData registers a handler answering with an ok envelope around data.
func (m *MockController) HandleData(path string, data any) {
	m.Handle(path, func(w http.ResponseWriter, _ *http.Request) {
		WriteEnvelope(w, http.StatusOK, "ok", "", data)
	})
}

// ExpireSessions forgets every issued token, so the next API call gets 401.
func (m *MockController) ExpireSessions() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tokens = map[string]string{}
}

// Requests returns the authenticated API requests received so far.
func (m *MockController) Requests() []Recorded {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]Recorded(nil), m.requests...)
}

// LastRequest returns the most recent authenticated API request.
func (m *MockController) LastRequest() Recorded {
	m.t.Helper()

	reqs := m.Requests()
	require.NotEmpty(m.t, reqs, "no API request recorded")

	return reqs[len(reqs)-1]
}

// WriteEnvelope writes a classic {"meta","data"} response.
func WriteEnvelope(w http.ResponseWriter, status int, rc, msg string, data any) {
	if data == nil {
		data = []any{}
	}

	meta := map[string]any{"rc": rc}
	if msg != "" {
		meta["msg"] = msg
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"meta": meta, "data": data})
}

func (m *MockController) serve(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/auth/login", "/api/login":
		m.serveLogin(w, r)
		return
	case "/api/auth/logout", "/api/logout":
		w.WriteHeader(http.StatusOK)
		return
	}

	path := r.URL.Path
	if m.udm {
		if !strings.HasPrefix(path, udmPrefix) {
			http.NotFound(w, r)
			return
		}
		path = strings.TrimPrefix(path, udmPrefix)
	}

	csrf, ok := m.authorized(r)
	if !ok {
		WriteEnvelope(w, http.StatusUnauthorized, "error", "api.err.LoginRequired", nil)
		return
	}

	if m.udm && r.Method != http.MethodGet && r.Header.Get("X-CSRF-Token") != csrf {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	body, err := io.ReadAll(r.Body)
	require.NoError(m.t, err)

	rec := Recorded{Method: r.Method, Path: path, CSRF: r.Header.Get("X-CSRF-Token")}
	if len(body) > 0 {
		require.NoError(m.t, json.Unmarshal(body, &rec.Body), "request body must be JSON")
	}

	m.mu.Lock()
	m.requests = append(m.requests, rec)
	h, found := m.handlers[path]
	m.mu.Unlock()

	if !found {
		WriteEnvelope(w, http.StatusNotFound, "error", "api.err.NotFound", nil)
		return
	}

	// Handlers read the body again.
	r.Body = io.NopCloser(strings.NewReader(string(body)))
	h(w, r)
}

func (m *MockController) authorized(r *http.Request) (string, bool) {
	name := "unifises"
	if m.udm {
		name = "TOKEN"
	}

	c, err := r.Cookie(name)
	if err != nil {
		return "", false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	csrf, ok := m.tokens[c.Value]

	return csrf, ok
}

func (m *MockController) serveLogin(w http.ResponseWriter, r *http.Request) {
	m.logins.Add(1)

	if m.loginDelay > 0 {
		select {
		case <-time.After(m.loginDelay):
		case <-r.Context().Done():
			return
		}
	}

	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if m.mfa {
		if m.udm {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(499)
			_, _ = w.Write([]byte(`{"code":"MFA_AUTH_REQUIRED","message":"MFA required"}`))
			return
		}

		WriteEnvelope(w, http.StatusBadRequest, "error", "api.err.Ubic2faTokenRequired", nil)
		return
	}

	if creds.Username != Username || creds.Password != Password {
		if m.udm {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"code":"AUTHENTICATION_FAILED_INVALID_CREDENTIALS","message":"Invalid username or password"}`))
			return
		}

		WriteEnvelope(w, http.StatusBadRequest, "error", "api.err.Invalid", nil)
		return
	}

	n := m.seq.Add(1)
	csrf := fmt.Sprintf("csrf-%d", n)

	var token string
	if m.udm {
		token = m.signToken(csrf, n)
		http.SetCookie(w, &http.Cookie{Name: "TOKEN", Value: token, Path: "/", HttpOnly: true})
		if m.emitHeader {
			w.Header().Set("X-CSRF-Token", "header-"+csrf)
		}
	} else {
		token = fmt.Sprintf("session-%d", n)
		http.SetCookie(w, &http.Cookie{Name: "unifises", Value: token, Path: "/", HttpOnly: true})
		http.SetCookie(w, &http.Cookie{Name: "csrf_token", Value: csrf, Path: "/"})
	}

	m.mu.Lock()
	m.tokens[token] = csrf
	m.mu.Unlock()

	if m.udm {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"username":"admin","isOwner":true}`))
		return
	}

	WriteEnvelope(w, http.StatusOK, "ok", "", nil)
}

// SignToken returns a compact signed token carrying csrf as its csrfToken claim.
func SignToken(t *testing.T, csrf string) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId":    "6512f0e1c3a4",
		"csrfToken": csrf,
		"exp":       time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("stub-signing-key"))
	require.NoError(t, err)

	return token
}

func (m *MockController) signToken(csrf string, n int32) string {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId":    fmt.Sprintf("user-%d", n),
		"csrfToken": csrf,
		"exp":       time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("stub-signing-key"))
	require.NoError(m.t, err)

	return token
}
