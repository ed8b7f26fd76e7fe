package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/MJE43/promo-games-go/internal/games"
	"github.com/MJE43/promo-games-go/internal/promo"
	"github.com/MJE43/promo-games-go/internal/store"
	"github.com/MJE43/promo-games-go/internal/upstream"
)

// ErrorBuilder helps construct structured errors with context
type ErrorBuilder struct {
	errType   string
	message   string
	context   map[string]interface{}
	requestID string
}

// NewError creates a new error builder
func NewError(errType, message string) *ErrorBuilder {
	return &ErrorBuilder{
		errType: errType,
		message: message,
		context: make(map[string]interface{}),
	}
}

// WithContext adds context information to the error
func (eb *ErrorBuilder) WithContext(key string, value interface{}) *ErrorBuilder {
	eb.context[key] = value
	return eb
}

// WithRequestID adds request ID to the error
func (eb *ErrorBuilder) WithRequestID(requestID string) *ErrorBuilder {
	eb.requestID = requestID
	return eb
}

// WithCause adds the underlying cause error
func (eb *ErrorBuilder) WithCause(err error) *ErrorBuilder {
	if err != nil {
		eb.context["cause"] = err.Error()
	}
	return eb
}

// Build creates the final ErrorResponse
func (eb *ErrorBuilder) Build() ErrorResponse {
	ctx := eb.context
	if len(ctx) == 0 {
		ctx = nil
	}
	return ErrorResponse{
		Type:      eb.errType,
		Message:   eb.message,
		Context:   ctx,
		RequestID: eb.requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// ErrorHandler provides centralized error handling with logging
type ErrorHandler struct {
	logger         logrus.FieldLogger
	securityLogger *SecurityLogger
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger logrus.FieldLogger, securityLogger *SecurityLogger) *ErrorHandler {
	return &ErrorHandler{
		logger:         logger,
		securityLogger: securityLogger,
	}
}

// classifyError maps service errors to a status and error type.
func classifyError(err error) (int, string, string) {
	var (
		httpErr *upstream.HTTPError
		apiErr  *upstream.APIError
		authErr *upstream.AuthError
	)

	switch {
	case errors.Is(err, games.ErrUnanswered):
		return http.StatusBadRequest, ErrTypeValidation, err.Error()
	case errors.Is(err, games.ErrInvalidArgument), errors.Is(err, promo.ErrInvalidInput):
		return http.StatusBadRequest, ErrTypeInvalidArgument, err.Error()
	case errors.Is(err, promo.ErrInvalidReceipt):
		return http.StatusBadRequest, ErrTypeInvalidReceipt, "Invalid or expired spin receipt"
	case errors.Is(err, games.ErrSpinInProgress):
		return http.StatusConflict, ErrTypeConflict, "Spin in progress"
	case errors.Is(err, promo.ErrNotRevealed):
		return http.StatusConflict, ErrTypeNotRevealed, "Scratch card not revealed yet"
	case errors.Is(err, promo.ErrQuizCompleted):
		return http.StatusConflict, ErrTypeQuizCompleted, "You have already completed this quiz"
	case errors.Is(err, promo.ErrClaimSettled):
		return http.StatusConflict, ErrTypeConflict, "This spin has already been claimed"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, ErrTypeNotFound, "Not found"
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict, ErrTypeConflict, "Already recorded"
	case errors.As(err, &authErr):
		return http.StatusBadGateway, ErrTypeUpstreamAuth, "Promotions service rejected our credentials"
	case errors.As(err, &httpErr):
		if httpErr.StatusCode == http.StatusNotFound {
			return http.StatusNotFound, ErrTypeNotFound, httpErr.Message
		}
		if httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 {
			return httpErr.StatusCode, ErrTypeUpstream, httpErr.Message
		}
		return http.StatusBadGateway, ErrTypeUpstream, "Promotions service unavailable"
	case errors.As(err, &apiErr):
		return http.StatusBadGateway, ErrTypeUpstream, apiErr.Message
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrTypeTimeout, "Operation timed out"
	default:
		return http.StatusInternalServerError, ErrTypeInternal, "Internal server error"
	}
}

// statusForType is the HTTP status for a prebuilt error.
func statusForType(errType string) int {
	switch errType {
	case ErrTypeValidation, ErrTypeInvalidArgument, ErrTypeInvalidReceipt:
		return http.StatusBadRequest
	case ErrTypeNotFound:
		return http.StatusNotFound
	case ErrTypeConflict, ErrTypeNotRevealed, ErrTypeQuizCompleted:
		return http.StatusConflict
	case ErrTypeUpstream, ErrTypeUpstreamAuth:
		return http.StatusBadGateway
	case ErrTypeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// HandleError processes an error and writes appropriate HTTP response
func (eh *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetReqID(r.Context())

	var resp ErrorResponse
	if errors.As(err, &resp) {
		if resp.RequestID == "" {
			resp.RequestID = requestID
		}
		status := statusForType(resp.Type)
		eh.logError(r, resp, status, nil)
		eh.writeErrorResponse(w, status, resp)
		return
	}

	status, errType, message := classifyError(err)
	b := NewError(errType, message).
		WithRequestID(requestID).
		WithContext("path", r.URL.Path).
		WithContext("method", r.Method)
	if status < 500 {
		b = b.WithCause(err)
	}
	resp = b.Build()

	eh.logError(r, resp, status, err)
	eh.writeErrorResponse(w, status, resp)
}

// HandleValidationError handles validation-specific errors
func (eh *ErrorHandler) HandleValidationError(w http.ResponseWriter, r *http.Request, field, message string) {
	requestID := middleware.GetReqID(r.Context())

	resp := NewError(ErrTypeValidation, fmt.Sprintf("Validation failed: %s", message)).
		WithRequestID(requestID).
		WithContext("field", field).
		WithContext("path", r.URL.Path).
		WithContext("method", r.Method).
		Build()

	eh.securityLogger.LogSecurityEvent(requestID, "validation_failure", message, map[string]interface{}{
		"field": field,
		"path":  r.URL.Path,
	}, r.RemoteAddr)

	eh.logError(r, resp, http.StatusBadRequest, nil)
	eh.writeErrorResponse(w, http.StatusBadRequest, resp)
}

// logError logs the error with appropriate level and context
func (eh *ErrorHandler) logError(r *http.Request, resp ErrorResponse, status int, cause error) {
	entry := eh.logger.WithFields(logrus.Fields{
		"type":       resp.Type,
		"category":   GetErrorCategory(resp.Type),
		"status":     status,
		"request_id": resp.RequestID,
		"method":     r.Method,
		"path":       r.URL.Path,
	})
	if cause != nil {
		entry = entry.WithError(cause)
	}

	switch {
	case status >= 500:
		entry.Error(resp.Message)
	default:
		entry.Warn(resp.Message)
	}
}

// writeErrorResponse writes the error response as JSON
func (eh *ErrorHandler) writeErrorResponse(w http.ResponseWriter, status int, resp ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Server-Version", ServerVersion)
	w.Header().Set("X-Error-Type", resp.Type)
	w.Header().Set("X-Error-Category", string(GetErrorCategory(resp.Type)))
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		eh.logger.WithError(err).Error("encode error response")
	}
}

// RecoveryHandler provides panic recovery with structured error logging
func (eh *ErrorHandler) RecoveryHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				requestID := middleware.GetReqID(r.Context())

				eh.logger.WithFields(logrus.Fields{
					"request_id": requestID,
					"path":       r.URL.Path,
					"method":     r.Method,
					"panic":      fmt.Sprintf("%v", rvr),
				}).Error("panic_recovered")

				resp := NewError(ErrTypeInternal, "Internal server error").
					WithRequestID(requestID).
					WithContext("path", r.URL.Path).
					WithContext("method", r.Method).
					Build()

				eh.writeErrorResponse(w, http.StatusInternalServerError, resp)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
