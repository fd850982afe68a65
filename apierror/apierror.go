// Package apierror defines the structured error surface of the ER:LC server
// management API. Every non-success response from the remote service is
// translated into an *Error carrying the application error code, the HTTP
// status, and enough request context to log or branch on.
package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Code is the application-level error code returned by the API.
type Code int

// Application error codes as documented by the remote service.
const (
	CodeUnknown            Code = 0
	CodeRobloxError        Code = 1001
	CodeInternalError      Code = 1002
	CodeMissingServerKey   Code = 2000
	CodeBadServerKeyFormat Code = 2001
	CodeInvalidServerKey   Code = 2002
	CodeInvalidGlobalKey   Code = 2003
	CodeBannedServerKey    Code = 2004
	CodeInvalidCommand     Code = 3001
	CodeServerOffline      Code = 3002
	CodeRateLimited        Code = 4001
	CodeRestrictedCommand  Code = 4002
	CodeProhibitedMessage  Code = 4003
	CodeRestrictedResource Code = 9998
	CodeOutOfDateModule    Code = 9999
)

var messages = map[Code]string{
	CodeUnknown:            "unknown error",
	CodeRobloxError:        "error communicating with the game platform",
	CodeInternalError:      "internal system error",
	CodeMissingServerKey:   "no server key provided",
	CodeBadServerKeyFormat: "server key is incorrectly formatted",
	CodeInvalidServerKey:   "server key is invalid",
	CodeInvalidGlobalKey:   "global API key is invalid",
	CodeBannedServerKey:    "server key is banned from the API",
	CodeInvalidCommand:     "command is invalid",
	CodeServerOffline:      "server is offline (no players)",
	CodeRateLimited:        "rate limited",
	CodeRestrictedCommand:  "command is restricted",
	CodeProhibitedMessage:  "message contains prohibited content",
	CodeRestrictedResource: "resource is restricted",
	CodeOutOfDateModule:    "module is out of date",
}

// Message returns the stable human-readable message for the code.
func (c Code) Message() string {
	if msg, ok := messages[c]; ok {
		return msg
	}
	return messages[CodeUnknown]
}

// maxBodyBytes bounds the raw response body retained for diagnostics.
const maxBodyBytes = 1024

// Error is the uniform error value surfaced to callers for any non-success
// API response or exhausted retry sequence. It is immutable once created.
type Error struct {
	Code       Code
	Message    string
	Status     int
	StatusText string
	RetryAfter time.Duration
	Method     string
	Path       string
	URL        string
	Body       string
}

func (e *Error) Error() string {
	if e == nil {
		return "api error"
	}
	return fmt.Sprintf("api error: %s (code %d, http %d) %s %s", e.Message, e.Code, e.Status, e.Method, e.Path)
}

// IsRateLimited reports whether the error represents a 429 / rate-limit code.
func (e *Error) IsRateLimited() bool {
	return e != nil && (e.Code == CodeRateLimited || e.Status == http.StatusTooManyRequests)
}

// IsServerOffline reports whether the target server has no players in it.
func (e *Error) IsServerOffline() bool {
	return e != nil && e.Code == CodeServerOffline
}

// IsAuth reports whether the error is a credential problem. Retrying cannot
// help until the key is fixed.
func (e *Error) IsAuth() bool {
	if e == nil {
		return false
	}
	switch e.Code {
	case CodeMissingServerKey, CodeBadServerKeyFormat, CodeInvalidServerKey, CodeInvalidGlobalKey, CodeBannedServerKey:
		return true
	}
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// Retryable reports whether the failure is transient at the HTTP layer.
// Rate limits are handled separately and are not considered retryable here.
func (e *Error) Retryable() bool {
	if e == nil {
		return false
	}
	switch e.Status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// As unwraps err into an *Error when possible.
func As(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// errorBody is the wire shape of API error responses. Bodies are not always
// JSON, so every field is optional.
type errorBody struct {
	Code       *int            `json:"code"`
	Message    string          `json:"message"`
	RetryAfter json.RawMessage `json:"retry_after"`
}

// FromResponse translates a non-2xx response into an *Error. body is the
// already-read response body; nil and non-JSON bodies are tolerated.
func FromResponse(method, path, url string, resp *http.Response, body []byte) *Error {
	apiErr := &Error{
		Code:   CodeUnknown,
		Method: method,
		Path:   path,
		URL:    url,
	}
	if resp != nil {
		apiErr.Status = resp.StatusCode
		apiErr.StatusText = http.StatusText(resp.StatusCode)
	}

	if len(body) > 0 {
		raw := body
		if len(raw) > maxBodyBytes {
			raw = raw[:maxBodyBytes]
		}
		apiErr.Body = string(raw)

		var parsed errorBody
		if err := json.Unmarshal(body, &parsed); err == nil {
			if parsed.Code != nil {
				apiErr.Code = Code(*parsed.Code)
			}
			if parsed.Message != "" {
				apiErr.Message = parsed.Message
			}
			apiErr.RetryAfter = parseRetryAfter(parsed.RetryAfter)
		}
	}

	if apiErr.Message == "" {
		if apiErr.Code != CodeUnknown {
			apiErr.Message = apiErr.Code.Message()
		} else if apiErr.StatusText != "" {
			apiErr.Message = apiErr.StatusText
		} else {
			apiErr.Message = CodeUnknown.Message()
		}
	}

	return apiErr
}

// parseRetryAfter accepts the JSON retry_after field as either a number of
// seconds (integer or fractional) or a string holding one.
func parseRetryAfter(raw json.RawMessage) time.Duration {
	if len(raw) == 0 {
		return 0
	}

	var seconds float64
	if err := json.Unmarshal(raw, &seconds); err == nil && seconds > 0 {
		return time.Duration(seconds * float64(time.Second))
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil && text != "" {
		if d, err := time.ParseDuration(text + "s"); err == nil && d > 0 {
			return d
		}
	}

	return 0
}
