package session

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/golang-jwt/jwt/v5"

	"github.com/lexfrei/unifi-mcp/internal/response"
	"github.com/lexfrei/unifi-mcp/internal/unifierr"
)

const (
	pathLoginUDM     = "/api/auth/login"
	pathLogoutUDM    = "/api/auth/logout"
	pathLoginLegacy  = "/api/login"
	pathLogoutLegacy = "/api/logout"

	// csrfClaim is the TOKEN payload field holding the CSRF value.
	csrfClaim = "csrfToken"

	// statusMFARequired is what UniFi OS answers when a second factor is needed.
	statusMFARequired = 499
	codeMFARequired   = "MFA_AUTH_REQUIRED"

	maxLoginBody = 1 << 20
)

// legacy second-factor messages.
var legacyMFAMessages = map[string]bool{
	"api.err.Ubic2faTokenRequired": true,
	"api.err.2faTokenRequired":     true,
}

type credentials struct {
	authCookie *http.Cookie
	cookies    []*http.Cookie
	csrf       string
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Remember bool   `json:"remember,omitempty"`
}

func (m *Manager) loginPath() string {
	if m.variant == VariantUDM {
		return pathLoginUDM
	}

	return pathLoginLegacy
}

func (m *Manager) logoutPath() string {
	if m.variant == VariantUDM {
		return pathLogoutUDM
	}

	return pathLogoutLegacy
}

func (m *Manager) authCookieName() string {
	if m.variant == VariantUDM {
		return CookieUDM
	}

	return CookieLegacy
}

// exchange performs the login call and extracts the credentials.
func (m *Manager) exchange(ctx context.Context) (credentials, error) {
	payload := loginRequest{
		Username: m.profile.Username,
		Password: m.profile.Password,
		Remember: m.variant == VariantLegacy,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return credentials{}, errors.Wrap(err, "failed to encode login request")
	}

	url := m.profile.BaseURL + m.loginPath()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return credentials{}, errors.Wrap(err, "failed to build login request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return credentials{}, unifierr.Connectivity(http.MethodPost, url, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxLoginBody))
	if err != nil {
		return credentials{}, unifierr.Connectivity(http.MethodPost, url, err)
	}

	if mfaRequired(resp.StatusCode, respBody) {
		//nolint:wrapcheck // Hint wrapper keeps the typed error reachable via errors.As
		return credentials{}, errors.WithHint(
			&unifierr.UnsupportedFlowError{Flow: "multi-factor authentication"},
			"use a local controller account without two-factor authentication")
	}

	if !statusOK(resp.StatusCode) {
		return credentials{}, &unifierr.AuthenticationError{
			Status: resp.StatusCode,
			Reason: rejectionReason(resp.StatusCode, respBody),
		}
	}

	if env, ok := response.Decode(respBody); ok && env.Meta.RC != response.RCOK {
		return credentials{}, &unifierr.AuthenticationError{
			Status: resp.StatusCode,
			Reason: rejectionReason(resp.StatusCode, respBody),
		}
	}

	creds := credentials{cookies: resp.Cookies()}
	for _, c := range creds.cookies {
		if c.Name == m.authCookieName() && c.Value != "" {
			creds.authCookie = c
		}
	}

	if creds.authCookie == nil {
		return credentials{}, &unifierr.AuthenticationError{
			Status: resp.StatusCode,
			Reason: "login response did not set the " + m.authCookieName() + " cookie",
		}
	}

	creds.csrf = m.extractCSRF(resp, creds)

	return creds, nil
}

// extractCSRF finds the CSRF token for the variant. UniFi OS embeds it in
// the TOKEN cookie payload; the classic controller sends a header or cookie.
func (m *Manager) extractCSRF(resp *http.Response, creds credentials) string {
	if m.variant == VariantUDM {
		token, err := CSRFFromToken(creds.authCookie.Value)
		if err == nil && token != "" {
			return token
		}

		m.logger.Debug("no csrf claim in auth token, falling back to header")

		return resp.Header.Get(HeaderCSRF)
	}

	if token := resp.Header.Get(HeaderCSRF); token != "" {
		return token
	}

	for _, c := range creds.cookies {
		if c.Name == CookieLegacyCSRF {
			return c.Value
		}
	}

	return ""
}

// CSRFFromToken reads the csrfToken claim from a compact signed token.
// The signature is not verified: the controller issued the token and only
// the claim it embedded for us is read.
func CSRFFromToken(raw string) (string, error) {
	claims := jwt.MapClaims{}

	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return "", errors.Wrap(err, "failed to decode auth token")
	}

	csrf, ok := claims[csrfClaim].(string)
	if !ok {
		return "", errors.Newf("auth token has no %s claim", csrfClaim)
	}

	return csrf, nil
}

func (m *Manager) logout(ctx context.Context, s Session) error {
	url := m.profile.BaseURL + m.logoutPath()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, http.NoBody)
	if err != nil {
		return errors.Wrap(err, "failed to build logout request")
	}
	s.Apply(req)

	resp, err := m.client.Do(req)
	if err != nil {
		return unifierr.Connectivity(http.MethodPost, url, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxLoginBody))

	if !statusOK(resp.StatusCode) {
		return &unifierr.ControllerError{Status: resp.StatusCode}
	}

	return nil
}

func mfaRequired(status int, body []byte) bool {
	if status == statusMFARequired || response.Code(body) == codeMFARequired {
		return true
	}

	env, ok := response.Decode(body)

	return ok && legacyMFAMessages[env.Meta.Msg]
}

func rejectionReason(status int, body []byte) string {
	if msg := response.Message(body); msg != "" {
		return msg
	}

	if text := http.StatusText(status); text != "" {
		return text
	}

	return "login rejected"
}
