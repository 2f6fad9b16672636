package session

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/lexfrei/unifi-mcp/internal/config"
	"github.com/lexfrei/unifi-mcp/internal/httpclient"
	"github.com/lexfrei/unifi-mcp/internal/unifierr"
	"github.com/lexfrei/unifi-mcp/observability"
)

// DefaultLoginTimeout bounds a login exchange when Config.LoginTimeout is unset.
const DefaultLoginTimeout = config.DefaultLoginTimeout

const loginKey = "login"

// Config configures a Manager.
type Config struct {
	Profile config.Controller

	// HTTPClient sends login and logout requests. Defaults to a plain httpclient.New().
	HTTPClient httpclient.Doer

	LoginTimeout time.Duration

	Logger  observability.Logger
	Metrics observability.MetricsRecorder

	// Now overrides time.Now in tests.
	Now func() time.Time
}

// Manager owns the Session for one controller profile.
type Manager struct {
	profile      config.Controller
	variant      Variant
	client       httpclient.Doer
	loginTimeout time.Duration
	logger       observability.Logger
	metrics      observability.MetricsRecorder
	now          func() time.Time

	group singleflight.Group

	mu         sync.Mutex
	current    Session
	generation uint64

	// invalidations counts Invalidate calls; epoch is its value when the
	// current session's login started.
	invalidations uint64
	epoch         uint64
}

// loginResult is a session together with the invalidation count observed
// when its login started.
type loginResult struct {
	session Session
	epoch   uint64
}

// NewManager creates a Manager in the Unauthenticated state. No network
// call is made until EnsureAuthenticated.
func NewManager(cfg Config) *Manager {
	m := &Manager{
		profile:      cfg.Profile,
		variant:      VariantLegacy,
		client:       cfg.HTTPClient,
		loginTimeout: cfg.LoginTimeout,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		now:          cfg.Now,
	}

	if cfg.Profile.UDM {
		m.variant = VariantUDM
	}
	if m.client == nil {
		m.client = httpclient.New()
	}
	if m.loginTimeout <= 0 {
		m.loginTimeout = DefaultLoginTimeout
	}
	if m.logger == nil {
		m.logger = observability.NoopLogger()
	}
	if m.metrics == nil {
		m.metrics = observability.NoopMetricsRecorder()
	}
	if m.now == nil {
		m.now = time.Now
	}

	m.logger = m.logger.With(
		observability.Field{Key: "component", Value: "session"},
		observability.Field{Key: "variant", Value: string(m.variant)},
	)
	m.current = Session{State: Unauthenticated, Variant: m.variant}

	return m
}

// Variant returns the login flavour selected by the profile.
func (m *Manager) Variant() Variant {
	return m.variant
}

// BaseURL returns the controller root without a trailing slash.
func (m *Manager) BaseURL() string {
	return m.profile.BaseURL
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.current.State
}

// Snapshot returns a copy of the current session, including its state.
func (m *Manager) Snapshot() Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.current.clone()
}

// EnsureAuthenticated returns an authenticated session, logging in first if
// needed. An authenticated manager answers without network I/O.
//
// Concurrent callers share one login. The login itself runs detached from
// the caller's cancellation and is bounded by the login timeout, so a
// caller giving up does not abort the exchange for everyone else.
//
// A login that was already in flight when Invalidate ran is not reused:
// callers that arrived after the invalidation wait for it and then log in
// again.
func (m *Manager) EnsureAuthenticated(ctx context.Context) (Session, error) {
	m.mu.Lock()
	if m.current.State == Authenticated {
		s := m.current.clone()
		m.mu.Unlock()

		return s, nil
	}
	seen := m.invalidations
	m.mu.Unlock()

	loginCtx := context.WithoutCancel(ctx)

	for {
		ch := m.group.DoChan(loginKey, func() (any, error) {
			return m.login(loginCtx)
		})

		select {
		case res := <-ch:
			if res.Err != nil {
				//nolint:wrapcheck // Login errors are already typed
				return Session{}, res.Err
			}

			//nolint:forcetypeassert // login only returns loginResult
			result := res.Val.(loginResult)
			if result.epoch < seen {
				continue
			}

			return result.session.clone(), nil
		case <-ctx.Done():
			return Session{}, &unifierr.ConnectivityError{
				Op:    "login",
				URL:   m.profile.BaseURL,
				Cause: ctx.Err(),
			}
		}
	}
}

// Invalidate marks the session Expired so the next EnsureAuthenticated logs
// in again. A login in flight stays Authenticating and stores its result as
// Expired when it completes. It makes no network call.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.invalidations++
	if m.current.State != Authenticating {
		m.current.State = Expired
	}

	m.logger.Debug("session invalidated",
		observability.Field{Key: "generation", Value: m.current.Generation})
}

// Expire invalidates the session only if stale is still the current one.
// A request that was sent with an older cookie must not discard a login
// another caller has just completed.
func (m *Manager) Expire(stale Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.State != Authenticated || m.current.Generation != stale.Generation {
		return false
	}

	m.current.State = Expired
	m.logger.Debug("session expired by controller",
		observability.Field{Key: "generation", Value: stale.Generation})

	return true
}

// UpdateCSRF adopts a rotated CSRF token for the given session generation.
func (m *Manager) UpdateCSRF(generation uint64, token string) {
	if token == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.Generation == generation && m.current.CSRFToken != token {
		m.current.CSRFToken = token
	}
}

// Logout ends the controller session on a best-effort basis. The local
// state becomes Unauthenticated whether or not the controller call succeeds.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	s := m.current.clone()
	m.current = Session{State: Unauthenticated, Variant: m.variant}
	m.mu.Unlock()

	if s.AuthCookie == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, m.loginTimeout)
	defer cancel()

	err := m.logout(ctx, s)
	if err != nil {
		m.logger.Warn("controller logout failed", observability.Field{Key: "error", Value: err.Error()})
		return err
	}

	m.logger.Info("controller logout completed")

	return nil
}

func (m *Manager) login(ctx context.Context) (loginResult, error) {
	m.mu.Lock()
	if m.current.State == Authenticated {
		// A login that finished between the caller's check and this call.
		res := loginResult{session: m.current.clone(), epoch: m.epoch}
		m.mu.Unlock()

		return res, nil
	}
	m.current.State = Authenticating
	epoch := m.invalidations
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, m.loginTimeout)
	defer cancel()

	start := m.now()
	creds, err := m.exchange(ctx)
	duration := m.now().Sub(start)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		m.current = Session{State: Unauthenticated, Variant: m.variant}
		m.metrics.RecordLogin(string(m.variant), loginOutcome(err), duration)
		m.logger.Warn("controller login failed",
			observability.Field{Key: "kind", Value: string(unifierr.KindOf(err))},
			observability.Field{Key: "duration", Value: duration},
			observability.Field{Key: "error", Value: err.Error()},
		)

		return loginResult{}, err
	}

	state := Authenticated
	if m.invalidations != epoch {
		state = Expired
	}

	m.generation++
	m.epoch = epoch
	m.current = Session{
		State:           state,
		Variant:         m.variant,
		AuthCookie:      creds.authCookie,
		Cookies:         creds.cookies,
		CSRFToken:       creds.csrf,
		AuthenticatedAt: m.now(),
		Generation:      m.generation,
	}

	m.metrics.RecordLogin(string(m.variant), "success", duration)
	m.logger.Info("controller login succeeded",
		observability.Field{Key: "generation", Value: m.generation},
		observability.Field{Key: "csrf", Value: creds.csrf != ""},
		observability.Field{Key: "duration", Value: duration},
		observability.Field{Key: "invalidated", Value: state == Expired},
	)

	// Callers that were waiting before the invalidation may still use it.
	out := m.current.clone()
	out.State = Authenticated

	return loginResult{session: out, epoch: epoch}, nil
}

func loginOutcome(err error) string {
	switch unifierr.KindOf(err) {
	case unifierr.KindUnsupportedFlow:
		return "unsupported"
	case unifierr.KindConnectivity:
		return "unreachable"
	default:
		return "rejected"
	}
}

// statusOK reports a 2xx status.
func statusOK(code int) bool {
	return code >= http.StatusOK && code < http.StatusMultipleChoices
}
