package errorx

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryValidation  ErrorCategory = "validation"
	CategoryNotFound    ErrorCategory = "not_found"
	CategoryConflict    ErrorCategory = "conflict"
	CategoryInternal    ErrorCategory = "internal"
	CategoryUnavailable ErrorCategory = "unavailable"
)

// Severity represents the severity level of an error
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// APIError represents a structured API error
type APIError struct {
	Code        string         `json:"code"`
	Message     string         `json:"message"`
	Category    ErrorCategory  `json:"category"`
	Severity    Severity       `json:"severity"`
	HTTPStatus  int            `json:"-"`
	Details     map[string]any `json:"details,omitempty"`
	Suggestions []string       `json:"suggestions,omitempty"`
	TraceID     string         `json:"trace_id,omitempty"`
	Timestamp   string         `json:"timestamp,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Category, e.Message)
}

// JSON returns the error as a JSON string
func (e *APIError) JSON() string {
	out, _ := json.Marshal(e)
	return string(out)
}

// Clone returns a copy that can be modified without touching the template
func (e *APIError) Clone() *APIError {
	c := *e
	if e.Details != nil {
		c.Details = make(map[string]any, len(e.Details))
		for k, v := range e.Details {
			c.Details[k] = v
		}
	}
	c.Suggestions = append([]string(nil), e.Suggestions...)
	return &c
}

// WithMessage returns a copy carrying msg
func (e *APIError) WithMessage(msg string) *APIError {
	c := e.Clone()
	c.Message = msg
	return c
}

// WithDetail returns a copy with key set in Details
func (e *APIError) WithDetail(key string, value any) *APIError {
	c := e.Clone()
	if c.Details == nil {
		c.Details = make(map[string]any)
	}
	c.Details[key] = value
	return c
}

// WithSuggestion returns a copy with suggestion appended
func (e *APIError) WithSuggestion(suggestion string) *APIError {
	c := e.Clone()
	c.Suggestions = append(c.Suggestions, suggestion)
	return c
}

// Validation Errors (E1000-E1999)
var (
	ErrInvalidInput = &APIError{
		Code:       "E1001",
		Message:    "Invalid input provided",
		Category:   CategoryValidation,
		Severity:   SeverityWarning,
		HTTPStatus: http.StatusBadRequest,
		Suggestions: []string{
			"Check the request format and try again",
		},
	}

	ErrMalformedBody = &APIError{
		Code:       "E1002",
		Message:    "Request body is not valid JSON",
		Category:   CategoryValidation,
		Severity:   SeverityWarning,
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidReference = &APIError{
		Code:       "E1003",
		Message:    "Malformed identifier",
		Category:   CategoryValidation,
		Severity:   SeverityWarning,
		HTTPStatus: http.StatusBadRequest,
	}
)

// Not Found Errors (E4000-E4089)
var (
	ErrSessionNotFound = &APIError{
		Code:       "E4001",
		Message:    "Session not found",
		Category:   CategoryNotFound,
		Severity:   SeverityInfo,
		HTTPStatus: http.StatusNotFound,
	}

	ErrScenarioNotFound = &APIError{
		Code:       "E4002",
		Message:    "Scenario not found",
		Category:   CategoryNotFound,
		Severity:   SeverityInfo,
		HTTPStatus: http.StatusNotFound,
	}

	ErrEndpointNotFound = &APIError{
		Code:       "E4003",
		Message:    "Endpoint not found",
		Category:   CategoryNotFound,
		Severity:   SeverityInfo,
		HTTPStatus: http.StatusNotFound,
	}
)

// Conflict Errors (E4090-E4099)
var (
	ErrSessionFull = &APIError{
		Code:       "E4091",
		Message:    "Session is full",
		Category:   CategoryConflict,
		Severity:   SeverityInfo,
		HTTPStatus: http.StatusConflict,
		Suggestions: []string{
			"Create a new session or pick another one from the session list",
		},
	}

	ErrSessionNotJoinable = &APIError{
		Code:       "E4092",
		Message:    "Session is not joinable",
		Category:   CategoryConflict,
		Severity:   SeverityInfo,
		HTTPStatus: http.StatusConflict,
	}
)

// Internal Server Errors (E5000-E5999)
var (
	ErrInternalServer = &APIError{
		Code:       "E5001",
		Message:    "Internal server error occurred",
		Category:   CategoryInternal,
		Severity:   SeverityCritical,
		HTTPStatus: http.StatusInternalServerError,
		Suggestions: []string{
			"Please try again later",
		},
	}

	ErrStoreUnavailable = &APIError{
		Code:       "E5031",
		Message:    "State store is unavailable",
		Category:   CategoryUnavailable,
		Severity:   SeverityError,
		HTTPStatus: http.StatusServiceUnavailable,
		Suggestions: []string{
			"Retry the request; no partial result was kept",
		},
	}

	ErrCatalogUnavailable = &APIError{
		Code:       "E5032",
		Message:    "Unit and area catalog is not loaded",
		Category:   CategoryUnavailable,
		Severity:   SeverityError,
		HTTPStatus: http.StatusServiceUnavailable,
	}

	ErrServiceUnavailable = &APIError{
		Code:       "E5033",
		Message:    "Broker is shutting down",
		Category:   CategoryUnavailable,
		Severity:   SeverityInfo,
		HTTPStatus: http.StatusServiceUnavailable,
	}
)
