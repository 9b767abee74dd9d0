package errorx

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type mapping struct {
	target error
	api    *APIError
	opaque bool
}

// ErrorHandler converts errors into APIErrors and renders them
type ErrorHandler struct {
	logger   *zap.Logger
	mappings []mapping
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *zap.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger.Named("errorx"),
	}
}

// Register maps every error matching target (errors.Is) to api. The
// original error text becomes the message so callers see the exact reason.
// Mappings are tried in registration order.
func (h *ErrorHandler) Register(target error, api *APIError) *ErrorHandler {
	h.mappings = append(h.mappings, mapping{target: target, api: api})
	return h
}

// RegisterOpaque maps target to api but keeps api's own message; the
// original error is only logged.
func (h *ErrorHandler) RegisterOpaque(target error, api *APIError) *ErrorHandler {
	h.mappings = append(h.mappings, mapping{target: target, api: api, opaque: true})
	return h
}

// HandleError converts any error to APIError and writes the response
func (h *ErrorHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	apiErr := h.ConvertToAPIError(err).Clone()
	apiErr.TraceID = ExtractTraceID(c)
	apiErr.Timestamp = time.Now().UTC().Format(time.RFC3339)

	h.logError(c, apiErr, err)

	c.AbortWithStatusJSON(apiErr.HTTPStatus, gin.H{
		"error": apiErr,
	})
}

// ConvertToAPIError converts any error to APIError
func (h *ErrorHandler) ConvertToAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	for _, m := range h.mappings {
		if errors.Is(err, m.target) {
			if m.opaque {
				return m.api
			}
			return m.api.WithMessage(err.Error())
		}
	}

	return ErrInternalServer.WithDetail("original_error", err.Error())
}

func (h *ErrorHandler) logError(c *gin.Context, apiErr *APIError, originalErr error) {
	fields := []zap.Field{
		zap.String("trace_id", apiErr.TraceID),
		zap.String("error_code", apiErr.Code),
		zap.String("category", string(apiErr.Category)),
		zap.Int("http_status", apiErr.HTTPStatus),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method),
		zap.String("client_ip", c.ClientIP()),
	}
	if originalErr != nil && originalErr.Error() != apiErr.Message {
		fields = append(fields, zap.Error(originalErr))
	}
	if apiErr.Severity == SeverityCritical {
		buf := make([]byte, 1024*4)
		n := runtime.Stack(buf, false)
		fields = append(fields, zap.String("stack_trace", string(buf[:n])))
	}

	switch apiErr.Severity {
	case SeverityInfo:
		h.logger.Info(apiErr.Message, fields...)
	case SeverityWarning:
		h.logger.Warn(apiErr.Message, fields...)
	default:
		h.logger.Error(apiErr.Message, fields...)
	}
}

// ErrorMiddleware renders the last error attached to the context
func (h *ErrorHandler) ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			h.HandleError(c, c.Errors.Last().Err)
		}
	}
}

// RecoveryMiddleware turns panics into E5000 responses
func (h *ErrorHandler) RecoveryMiddleware() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, err any) {
		h.HandleError(c, &APIError{
			Code:       "E5000",
			Message:    "Server panic occurred",
			Category:   CategoryInternal,
			Severity:   SeverityCritical,
			HTTPStatus: http.StatusInternalServerError,
			Details: map[string]any{
				"panic": fmt.Sprintf("%v", err),
			},
		})
	})
}

// ValidationError creates a validation error naming the offending field
func ValidationError(field string, reason string) *APIError {
	return ErrInvalidInput.
		WithMessage(fmt.Sprintf("%s: %s", field, reason)).
		WithDetail("field", field)
}

// ExtractTraceID returns the request trace id, creating one when absent
func ExtractTraceID(c *gin.Context) string {
	if traceID := c.GetString("trace_id"); traceID != "" {
		return traceID
	}
	if traceID := c.GetHeader("X-Trace-Id"); traceID != "" {
		c.Set("trace_id", traceID)
		return traceID
	}
	traceID := uuid.New().String()
	c.Set("trace_id", traceID)
	return traceID
}
