package session_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexfrei/unifi-mcp/internal/config"
	"github.com/lexfrei/unifi-mcp/internal/session"
	"github.com/lexfrei/unifi-mcp/internal/testutil"
	"github.com/lexfrei/unifi-mcp/internal/unifierr"
	"github.com/lexfrei/unifi-mcp/observability"
)

func newManager(mock *testutil.MockController) *session.Manager {
	return session.NewManager(session.Config{Profile: mock.Profile()})
}

func testProfile(url string) config.Controller {
	return config.Controller{BaseURL: url, Username: "admin", Password: "pw", UDM: true}
}

func TestEnsureAuthenticatedUDM(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockController(t, testutil.WithCSRFHeader())
	manager := newManager(mock)

	assert.Equal(t, session.Unauthenticated, manager.State())

	s, err := manager.EnsureAuthenticated(context.Background())
	require.NoError(t, err)

	assert.Equal(t, session.Authenticated, s.State)
	assert.Equal(t, session.VariantUDM, s.Variant)
	require.NotNil(t, s.AuthCookie)
	assert.Equal(t, session.CookieUDM, s.AuthCookie.Name)
	assert.Equal(t, uint64(1), s.Generation)
	assert.False(t, s.AuthenticatedAt.IsZero())

	claim, err := session.CSRFFromToken(s.AuthCookie.Value)
	require.NoError(t, err)
	assert.Equal(t, "csrf-1", claim)
	assert.Equal(t, claim, s.CSRFToken, "csrf must come from the token claim, not the header")
}

func TestEnsureAuthenticatedLegacy(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockController(t, testutil.WithLegacy())
	manager := newManager(mock)

	s, err := manager.EnsureAuthenticated(context.Background())
	require.NoError(t, err)

	assert.Equal(t, session.VariantLegacy, s.Variant)
	require.NotNil(t, s.AuthCookie)
	assert.Equal(t, session.CookieLegacy, s.AuthCookie.Name)
	assert.Equal(t, "session-1", s.AuthCookie.Value)
	assert.Equal(t, "csrf-1", s.CSRFToken)
}

func TestEnsureAuthenticatedIsIdempotent(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockController(t)
	manager := newManager(mock)

	first, err := manager.EnsureAuthenticated(context.Background())
	require.NoError(t, err)

	second, err := manager.EnsureAuthenticated(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, mock.Logins())
	assert.Equal(t, first.Generation, second.Generation)
	assert.Equal(t, first.AuthCookie.Value, second.AuthCookie.Value)
}

func TestConcurrentEnsureAuthenticatedLogsInOnce(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockController(t, testutil.WithLoginDelay(100*time.Millisecond))
	manager := newManager(mock)

	// Start from Expired, not just Unauthenticated.
	_, err := manager.EnsureAuthenticated(context.Background())
	require.NoError(t, err)
	manager.Invalidate()
	require.Equal(t, session.Expired, manager.State())

	const callers = 16

	var wg sync.WaitGroup
	generations := make([]uint64, callers)
	errs := make([]error, callers)

	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			s, err := manager.EnsureAuthenticated(context.Background())
			generations[i] = s.Generation
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for i := range callers {
		require.NoError(t, errs[i])
		assert.Equal(t, uint64(2), generations[i])
	}
	assert.Equal(t, 2, mock.Logins(), "one initial login plus exactly one shared re-login")
}

func TestInvalidateForcesFreshLogin(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockController(t)
	manager := newManager(mock)

	first, err := manager.EnsureAuthenticated(context.Background())
	require.NoError(t, err)

	manager.Invalidate()
	assert.Equal(t, session.Expired, manager.State())

	second, err := manager.EnsureAuthenticated(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, mock.Logins())
	assert.Greater(t, second.Generation, first.Generation)
	assert.NotEqual(t, first.AuthCookie.Value, second.AuthCookie.Value)
}

func TestInvalidateBeforeLoginExpires(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockController(t)
	manager := newManager(mock)

	manager.Invalidate()
	assert.Equal(t, session.Expired, manager.State())

	s, err := manager.EnsureAuthenticated(context.Background())
	require.NoError(t, err)
	assert.Equal(t, session.Authenticated, s.State)
	assert.Equal(t, 1, mock.Logins())
}

func TestInvalidateDuringLoginForcesAnotherLogin(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockController(t, testutil.WithLoginDelay(200*time.Millisecond))
	manager := newManager(mock)

	first := make(chan session.Session, 1)
	go func() {
		s, err := manager.EnsureAuthenticated(context.Background())
		assert.NoError(t, err)
		first <- s
	}()

	require.Eventually(t, func() bool {
		return manager.State() == session.Authenticating
	}, time.Second, 5*time.Millisecond)

	manager.Invalidate()
	assert.Equal(t, session.Authenticating, manager.State(), "a login in flight keeps its state")

	// Joins the in-flight login, then logs in again.
	second, err := manager.EnsureAuthenticated(context.Background())
	require.NoError(t, err)

	earlier := <-first
	assert.Equal(t, uint64(1), earlier.Generation)
	assert.Equal(t, uint64(2), second.Generation)
	assert.Equal(t, 2, mock.Logins())
	assert.Equal(t, session.Authenticated, manager.State())
}

func TestLoginFinishingAfterInvalidateIsExpired(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockController(t, testutil.WithLoginDelay(150*time.Millisecond))
	manager := newManager(mock)

	done := make(chan session.Session, 1)
	go func() {
		s, err := manager.EnsureAuthenticated(context.Background())
		assert.NoError(t, err)
		done <- s
	}()

	require.Eventually(t, func() bool {
		return manager.State() == session.Authenticating
	}, time.Second, 5*time.Millisecond)
	manager.Invalidate()

	s := <-done
	assert.Equal(t, session.Authenticated, s.State, "the waiting caller still gets a usable session")
	assert.Equal(t, session.Expired, manager.State())

	_, err := manager.EnsureAuthenticated(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, mock.Logins())
}

func TestExpireIgnoresStaleGeneration(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockController(t)
	manager := newManager(mock)

	old, err := manager.EnsureAuthenticated(context.Background())
	require.NoError(t, err)

	assert.True(t, manager.Expire(old))

	current, err := manager.EnsureAuthenticated(context.Background())
	require.NoError(t, err)

	// A late failure reported against the first session must not discard the second.
	assert.False(t, manager.Expire(old))
	assert.Equal(t, session.Authenticated, manager.State())

	assert.True(t, manager.Expire(current))
	assert.Equal(t, session.Expired, manager.State())
}

func TestUpdateCSRF(t *testing.T) {
	t.Parallel()

	manager := newManager(testutil.NewMockController(t))

	s, err := manager.EnsureAuthenticated(context.Background())
	require.NoError(t, err)

	manager.UpdateCSRF(s.Generation+1, "ignored")
	assert.Equal(t, s.CSRFToken, manager.Snapshot().CSRFToken)

	manager.UpdateCSRF(s.Generation, "rotated")
	assert.Equal(t, "rotated", manager.Snapshot().CSRFToken)

	manager.UpdateCSRF(s.Generation, "")
	assert.Equal(t, "rotated", manager.Snapshot().CSRFToken)
}

func TestSnapshotIsACopy(t *testing.T) {
	t.Parallel()

	manager := newManager(testutil.NewMockController(t))

	s, err := manager.EnsureAuthenticated(context.Background())
	require.NoError(t, err)

	s.AuthCookie.Value = "tampered"
	s.Cookies[0].Value = "tampered"

	assert.NotEqual(t, "tampered", manager.Snapshot().AuthCookie.Value)
}

func TestLoginFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		opts     []testutil.MockOption
		password string
		wantKind unifierr.Kind
	}{
		{"udm bad password", nil, "wrong", unifierr.KindAuthentication},
		{"legacy bad password", []testutil.MockOption{testutil.WithLegacy()}, "wrong", unifierr.KindAuthentication},
		{"udm mfa", []testutil.MockOption{testutil.WithMFA()}, testutil.Password, unifierr.KindUnsupportedFlow},
		{"legacy mfa", []testutil.MockOption{testutil.WithMFA(), testutil.WithLegacy()}, testutil.Password, unifierr.KindUnsupportedFlow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mock := testutil.NewMockController(t, tt.opts...)
			profile := mock.Profile()
			profile.Password = tt.password

			manager := session.NewManager(session.Config{Profile: profile})

			_, err := manager.EnsureAuthenticated(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, unifierr.KindOf(err))
			assert.Equal(t, session.Unauthenticated, manager.State())
			assert.NotContains(t, err.Error(), tt.password)

			// Failures are not retried internally.
			assert.Equal(t, 1, mock.Logins())
		})
	}
}

func TestBadCredentialsMessage(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockController(t)
	profile := mock.Profile()
	profile.Password = "nope"

	_, err := session.NewManager(session.Config{Profile: profile}).EnsureAuthenticated(context.Background())

	var authErr *unifierr.AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusUnauthorized, authErr.Status)
	assert.Equal(t, "Invalid username or password", authErr.Reason)
}

func TestMissingAuthCookie(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	manager := session.NewManager(session.Config{
		Profile: testProfile(server.URL),
	})

	_, err := manager.EnsureAuthenticated(context.Background())
	require.Error(t, err)
	assert.Equal(t, unifierr.KindAuthentication, unifierr.KindOf(err))
	assert.Contains(t, err.Error(), "TOKEN")
}

func TestLoginTimeoutRevertsState(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockController(t, testutil.WithLoginDelay(5*time.Second))
	manager := session.NewManager(session.Config{
		Profile:      mock.Profile(),
		LoginTimeout: 50 * time.Millisecond,
	})

	start := time.Now()
	_, err := manager.EnsureAuthenticated(context.Background())
	require.Error(t, err)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, unifierr.KindConnectivity, unifierr.KindOf(err))

	var connErr *unifierr.ConnectivityError
	require.ErrorAs(t, err, &connErr)
	assert.True(t, connErr.Timeout())

	assert.Equal(t, session.Unauthenticated, manager.State())
}

func TestCallerCancellationDoesNotAbortSharedLogin(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockController(t, testutil.WithLoginDelay(150*time.Millisecond))
	manager := newManager(mock)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := manager.EnsureAuthenticated(ctx)
	require.Error(t, err)
	assert.Equal(t, unifierr.KindConnectivity, unifierr.KindOf(err))

	// The detached login still completes and is reused.
	require.Eventually(t, func() bool {
		return manager.State() == session.Authenticated
	}, 2*time.Second, 10*time.Millisecond)

	_, err = manager.EnsureAuthenticated(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, mock.Logins())
}

func TestUnreachableController(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := session.NewManager(session.Config{Profile: testProfile(url)}).EnsureAuthenticated(context.Background())
	require.Error(t, err)
	assert.Equal(t, unifierr.KindConnectivity, unifierr.KindOf(err))
}

func TestSelfSignedCertificateHint(t *testing.T) {
	t.Parallel()

	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	_, err := session.NewManager(session.Config{Profile: testProfile(server.URL)}).EnsureAuthenticated(context.Background())
	require.Error(t, err)
	assert.Equal(t, unifierr.KindConnectivity, unifierr.KindOf(err))
	assert.Contains(t, unifierr.Message(err), "UNIFI_VERIFY_SSL")
}

func TestLogout(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockController(t)
	manager := newManager(mock)

	_, err := manager.EnsureAuthenticated(context.Background())
	require.NoError(t, err)

	require.NoError(t, manager.Logout(context.Background()))
	assert.Equal(t, session.Unauthenticated, manager.State())

	// Logging out twice is harmless.
	require.NoError(t, manager.Logout(context.Background()))
}

type loginMetrics struct {
	observability.MetricsRecorder

	mu       sync.Mutex
	outcomes []string
}

func (m *loginMetrics) RecordLogin(_, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func TestLoginMetrics(t *testing.T) {
	t.Parallel()

	mock := testutil.NewMockController(t, testutil.WithMFA())
	metrics := &loginMetrics{MetricsRecorder: observability.NoopMetricsRecorder()}

	manager := session.NewManager(session.Config{Profile: mock.Profile(), Metrics: metrics})

	_, err := manager.EnsureAuthenticated(context.Background())
	require.Error(t, err)

	assert.Equal(t, []string{"unsupported"}, metrics.outcomes)
}

func TestCSRFFromToken(t *testing.T) {
	t.Parallel()

	t.Run("claim present", func(t *testing.T) {
		t.Parallel()

		csrf, err := session.CSRFFromToken(testutil.SignToken(t, "5f8c0e9a-csrf"))
		require.NoError(t, err)
		assert.Equal(t, "5f8c0e9a-csrf", csrf)
	})

	t.Run("not a token", func(t *testing.T) {
		t.Parallel()

		_, err := session.CSRFFromToken("opaque-session-id")
		require.Error(t, err)
	})

	t.Run("claim missing", func(t *testing.T) {
		t.Parallel()

		// {"alg":"none"}.{"userId":"x"}.
		_, err := session.CSRFFromToken("eyJhbGciOiJub25lIn0.eyJ1c2VySWQiOiJ4In0.")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "csrfToken")
	})
}
