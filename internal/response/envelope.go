// Package response decodes the controller's JSON envelope.
//
// Classic Network API endpoints answer with
//
//	{"meta": {"rc": "ok"}, "data": [...]}
//
// where a non-"ok" rc is a failure even on HTTP 200. UniFi OS endpoints
// answer with a bare object and report failures as {"code", "message"}.
package response

import (
	"encoding/json"

	"github.com/cockroachdb/errors"

	"github.com/lexfrei/unifi-mcp/internal/unifierr"
)

// RCOK is the meta.rc value of a successful call.
const RCOK = "ok"

// MsgLoginRequired is the meta.msg a classic endpoint returns for a
// missing or expired session, usually with HTTP 401.
const MsgLoginRequired = "api.err.LoginRequired"

// Body is a received controller response.
type Body interface {
	StatusCode() int
	Bytes() []byte
}

// Meta is the envelope's result block.
type Meta struct {
	RC  string `json:"rc"`
	Msg string `json:"msg,omitempty"`
}

// Envelope is the classic response wrapper.
type Envelope struct {
	Meta Meta            `json:"meta"`
	Data json.RawMessage `json:"data"`
}

// Decode parses body as an envelope. It reports ok=false when body is not a
// JSON object with a meta block.
func Decode(body []byte) (Envelope, bool) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil || env.Meta.RC == "" {
		return Envelope{}, false
	}

	return env, true
}

// Check returns a ControllerError when the envelope carries a failure rc.
// Bodies without an envelope pass.
func Check(resp Body) error {
	env, ok := Decode(resp.Bytes())
	if !ok || env.Meta.RC == RCOK {
		return nil
	}

	return &unifierr.ControllerError{
		Status:  resp.StatusCode(),
		Message: firstNonEmpty(env.Meta.Msg, "result code "+env.Meta.RC),
		Body:    resp.Bytes(),
	}
}

// Handle checks the result code and decodes the data array into []T.
//
// Usage:
//
//	resp, err := client.Execute(ctx, req)
//	return response.Handle[Device](resp, err, "failed to list devices")
func Handle[T any](resp Body, err error, errorMsg string) ([]T, error) {
	if err != nil {
		return nil, errors.Wrap(err, errorMsg)
	}

	if err := Check(resp); err != nil {
		return nil, errors.Wrap(err, errorMsg)
	}

	env, ok := Decode(resp.Bytes())
	if !ok {
		//nolint:wrapcheck // Creating new error for a body without envelope
		return nil, errors.Newf("%s: response has no result envelope", errorMsg)
	}

	items := []T{}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return items, nil
	}

	if err := json.Unmarshal(env.Data, &items); err != nil {
		return nil, errors.Wrapf(err, "%s: decode data", errorMsg)
	}

	return items, nil
}

// HandleObject checks the result code and decodes the whole body as an
// object. Use it for endpoints whose payload lives outside data, such as
// /status which reports the controller version inside meta.
func HandleObject(resp Body, err error, errorMsg string) (map[string]any, error) {
	if err != nil {
		return nil, errors.Wrap(err, errorMsg)
	}

	if err := Check(resp); err != nil {
		return nil, errors.Wrap(err, errorMsg)
	}

	var obj map[string]any
	if err := json.Unmarshal(resp.Bytes(), &obj); err != nil {
		return nil, errors.Wrapf(err, "%s: decode object", errorMsg)
	}

	return obj, nil
}

// Message extracts a human-readable failure message from a controller body.
// It checks meta.msg, then message, then error. Returns "" when none is found.
func Message(body []byte) string {
	if env, ok := Decode(body); ok && env.Meta.Msg != "" {
		return env.Meta.Msg
	}

	var obj struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &obj); err != nil {
		return ""
	}

	if obj.Message != "" {
		return obj.Message
	}

	var errStr string
	if json.Unmarshal(obj.Error, &errStr) == nil && errStr != "" {
		return errStr
	}

	var errObj struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(obj.Error, &errObj) == nil {
		return errObj.Message
	}

	return ""
}

// Code returns the top-level "code" field UniFi OS uses for failures.
func Code(body []byte) string {
	var obj struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(body, &obj); err != nil {
		return ""
	}

	return obj.Code
}

// LoginRequired reports whether body is the classic "not logged in" marker.
func LoginRequired(body []byte) bool {
	env, ok := Decode(body)
	return ok && env.Meta.Msg == MsgLoginRequired
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
