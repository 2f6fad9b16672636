// Package session owns authentication state for one controller connection.
//
// A Manager logs in on demand, keeps the auth cookie and CSRF token, and
// hands out immutable Session snapshots that the request client attaches to
// outgoing calls. Concurrent callers that find the session unauthenticated
// share a single login exchange.
package session

import (
	"net/http"
	"time"
)

// State is the authentication state of a Manager.
type State int

const (
	Unauthenticated State = iota
	Authenticating
	Authenticated
	Expired
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// Variant is the controller login flavour.
type Variant string

const (
	// VariantUDM is a UniFi OS console (UDM, UDR, UCG, Cloud Key Gen2+).
	VariantUDM Variant = "udm"
	// VariantLegacy is a standalone Network application.
	VariantLegacy Variant = "legacy"
)

// Cookie and header names used by the two variants.
const (
	CookieUDM         = "TOKEN"
	CookieLegacy      = "unifises"
	CookieLegacyCSRF  = "csrf_token"
	HeaderCSRF        = "X-CSRF-Token"
	HeaderUpdatedCSRF = "X-Updated-CSRF-Token"
)

// Session is a snapshot of the manager's credentials. Snapshots are values;
// changing one never affects the manager.
type Session struct {
	State   State
	Variant Variant

	// AuthCookie is the variant's session cookie (TOKEN or unifises).
	AuthCookie *http.Cookie

	// Cookies holds every cookie set by the login response, AuthCookie included.
	Cookies []*http.Cookie

	// CSRFToken is empty when the controller did not issue one.
	CSRFToken string

	AuthenticatedAt time.Time

	// Generation increments on every successful login. Two snapshots with
	// the same generation carry the same credentials.
	Generation uint64
}

// Apply attaches the session cookies and CSRF header to req.
func (s Session) Apply(req *http.Request) {
	for _, c := range s.Cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}

	if s.CSRFToken != "" {
		req.Header.Set(HeaderCSRF, s.CSRFToken)
	}
}

func (s Session) clone() Session {
	out := s
	if s.Cookies != nil {
		out.Cookies = make([]*http.Cookie, len(s.Cookies))
		for i, c := range s.Cookies {
			cp := *c
			out.Cookies[i] = &cp
			if s.AuthCookie == c {
				out.AuthCookie = &cp
			}
		}
	}

	if s.AuthCookie != nil && out.AuthCookie == s.AuthCookie {
		cp := *s.AuthCookie
		out.AuthCookie = &cp
	}

	return out
}
