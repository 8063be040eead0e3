package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a transport failure
type Kind int

const (
	// KindUnknown is an unclassified failure
	KindUnknown Kind = iota
	// KindNetwork means no response was received at all
	KindNetwork
	// KindTransient is a retryable server failure (5xx/408/429)
	KindTransient
	// KindAuth is an authentication failure (401)
	KindAuth
	// KindForbidden is an authorization failure (403)
	KindForbidden
	// KindNotFound is a missing resource (404)
	KindNotFound
	// KindValidation is a structured field-level validation failure
	KindValidation
	// KindServer is any other server-reported error
	KindServer
)

// APIError is the single error value surfaced for every failed request.
// Raw transport exceptions never escape the client.
type APIError struct {
	StatusCode int
	Kind       Kind
	Message    string
	Code       string
	Fields     []FieldError
}

// FieldError is one entry of a structured validation failure
type FieldError struct {
	Location []string `json:"loc"`
	Message  string   `json:"msg"`
	Type     string   `json:"type"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// Retryable reports whether the error class is transient
func (e *APIError) Retryable() bool {
	return e.Kind == KindNetwork || e.Kind == KindTransient
}

// cannedMessages are fallbacks for statuses whose bodies are often empty or
// unhelpful
var cannedMessages = map[int]string{
	http.StatusUnauthorized:        "Authentication required. Please log in.",
	http.StatusForbidden:           "You do not have permission to perform this action.",
	http.StatusInternalServerError: "Internal server error. Please try again later.",
}

// errorBody is the wire shape of a non-2xx response body
type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
}

// classifyResponse turns a non-2xx response into an APIError. The message is
// extracted by inspecting, in order: structured detail, structured message,
// a canned message for 401/403/500, the raw status text.
func classifyResponse(status int, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: status,
		Kind:       kindForStatus(status),
	}

	var parsed errorBody
	if len(body) > 0 {
		if err := json.Unmarshal(body, &parsed); err == nil {
			apiErr.Code = parsed.Code

			if len(parsed.Detail) > 0 {
				var detailStr string
				if json.Unmarshal(parsed.Detail, &detailStr) == nil {
					apiErr.Message = detailStr
				} else {
					var fields []FieldError
					if json.Unmarshal(parsed.Detail, &fields) == nil && len(fields) > 0 {
						apiErr.Kind = KindValidation
						apiErr.Fields = fields
						apiErr.Message = fields[0].Message
					}
				}
			}

			if apiErr.Message == "" && parsed.Message != "" {
				apiErr.Message = parsed.Message
			}
		}
	}

	if apiErr.Message == "" {
		if canned, ok := cannedMessages[status]; ok {
			apiErr.Message = canned
		} else {
			apiErr.Message = fmt.Sprintf("%d %s", status, http.StatusText(status))
		}
	}

	return apiErr
}

// kindForStatus maps an HTTP status to a failure kind
func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindAuth
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusUnprocessableEntity:
		return KindValidation
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests, status >= 500:
		return KindTransient
	default:
		return KindServer
	}
}

// networkError wraps a transport-level failure (no response received)
func networkError(err error) *APIError {
	return &APIError{
		Kind:    KindNetwork,
		Message: fmt.Sprintf("network error: %v", err),
	}
}

// KindOf returns the classification of err, or KindUnknown for foreign errors
func KindOf(err error) Kind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// Message returns a user-facing message for err, with a generic fallback
func Message(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	if err != nil {
		return err.Error()
	}
	return "An unexpected error occurred"
}
