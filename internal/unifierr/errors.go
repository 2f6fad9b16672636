// Package unifierr defines the error taxonomy shared by the session manager,
// the controller request client and the action dispatcher.
//
// Every error type carries a human-readable message. KindOf classifies an
// arbitrary error chain so the dispatcher can convert it into a uniform
// result without inspecting concrete types.
package unifierr

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// Kind is a stable, machine-readable error category.
type Kind string

const (
	KindAuthentication   Kind = "authentication"
	KindUnsupportedFlow  Kind = "unsupported_flow"
	KindConnectivity     Kind = "connectivity"
	KindController       Kind = "controller"
	KindNotFound         Kind = "not_found"
	KindUnknownAction    Kind = "unknown_action"
	KindMissingParameter Kind = "missing_parameter"
	KindInvalidParameter Kind = "invalid_parameter"
	KindInternal         Kind = "internal"
)

// AuthenticationError reports rejected credentials or a session the
// controller refused twice in a row.
type AuthenticationError struct {
	// Status is the HTTP status of the rejecting response, 0 if not applicable.
	Status int
	Reason string
	Cause  error
}

func (e *AuthenticationError) Error() string {
	msg := "authentication failed"
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}

	return msg
}

func (e *AuthenticationError) Unwrap() error { return e.Cause }

// UnsupportedFlowError reports that the controller demanded an
// authentication step this server does not implement, such as a second factor.
type UnsupportedFlowError struct {
	Flow string
}

func (e *UnsupportedFlowError) Error() string {
	return fmt.Sprintf("controller requires unsupported authentication flow: %s", e.Flow)
}

// ConnectivityError reports a network, TLS or timeout failure before a
// controller response was received.
type ConnectivityError struct {
	Op    string
	URL   string
	Cause error
}

func (e *ConnectivityError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("cannot reach controller: %s %s", e.Op, e.URL)
	}

	return fmt.Sprintf("cannot reach controller: %s %s: %v", e.Op, e.URL, e.Cause)
}

func (e *ConnectivityError) Unwrap() error { return e.Cause }

// Timeout reports whether the failure was a deadline.
func (e *ConnectivityError) Timeout() bool {
	var t interface{ Timeout() bool }
	if errors.As(e.Cause, &t) {
		return t.Timeout()
	}

	return false
}

// Connectivity wraps a transport failure in a ConnectivityError, adding a
// remediation hint when the controller certificate was rejected.
func Connectivity(op, url string, cause error) error {
	err := error(&ConnectivityError{Op: op, URL: url, Cause: cause})

	var (
		verifyErr  *tls.CertificateVerificationError
		unknownErr x509.UnknownAuthorityError
	)
	if errors.As(cause, &verifyErr) || errors.As(cause, &unknownErr) {
		err = errors.WithHint(err, "set UNIFI_VERIFY_SSL=false for a self-signed controller certificate")
	}

	return err
}

// ControllerError reports a non-2xx response or an in-body failure result
// code from a reachable, authenticated controller.
type ControllerError struct {
	Status int

	// Message is the controller's own failure message when one was found.
	Message string

	// Body is the raw response body for caller inspection.
	Body []byte

	// RetryAfter is the server's Retry-After hint, zero when absent.
	RetryAfter time.Duration
}

func (e *ControllerError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("controller error (status %d): %s", e.Status, e.Message)
	}

	return fmt.Sprintf("controller error: status %d", e.Status)
}

// NotFoundError reports that a referenced object does not exist on the controller.
type NotFoundError struct {
	What string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.What, e.ID)
}

// UnknownActionError reports an action name missing from the registry.
type UnknownActionError struct {
	Action string
	Valid  []string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("unknown action %q; valid actions: %s", e.Action, strings.Join(e.Valid, ", "))
}

// MissingParameterError reports a required parameter that is absent or empty.
type MissingParameterError struct {
	Action string
	Field  string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("missing required parameter %q for action %q", e.Field, e.Action)
}

// InvalidParameterError reports a parameter that violates a declared constraint.
type InvalidParameterError struct {
	Action     string
	Field      string
	Constraint string
	Value      any
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %q for action %q: %v violates %s", e.Field, e.Action, e.Value, e.Constraint)
}

// KindOf classifies err by the first taxonomy error found in its chain.
// Unclassified errors, including nil, map to KindInternal.
func KindOf(err error) Kind {
	var (
		authErr       *AuthenticationError
		flowErr       *UnsupportedFlowError
		connErr       *ConnectivityError
		controllerErr *ControllerError
		notFoundErr   *NotFoundError
		unknownErr    *UnknownActionError
		missingErr    *MissingParameterError
		invalidErr    *InvalidParameterError
	)

	switch {
	case errors.As(err, &flowErr):
		return KindUnsupportedFlow
	case errors.As(err, &authErr):
		return KindAuthentication
	case errors.As(err, &connErr):
		return KindConnectivity
	case errors.As(err, &controllerErr):
		return KindController
	case errors.As(err, &notFoundErr):
		return KindNotFound
	case errors.As(err, &unknownErr):
		return KindUnknownAction
	case errors.As(err, &missingErr):
		return KindMissingParameter
	case errors.As(err, &invalidErr):
		return KindInvalidParameter
	default:
		return KindInternal
	}
}

// Message renders err for an end user: the error text followed by any hints
// attached with errors.WithHint.
func Message(err error) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	if hints := errors.GetAllHints(err); len(hints) > 0 {
		msg += " (" + strings.Join(hints, "; ") + ")"
	}

	return msg
}
