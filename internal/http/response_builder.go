// Package http exposes the team back-office as a JSON API.
//
// This file implements a small builder for JSON responses and the mapping
// from domain errors to status codes.

package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"teamapp/internal/auth"
	"teamapp/internal/core"
	"teamapp/internal/log"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
	cookies    []*http.Cookie
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Success sets a {"success": true, "message": msg} body merged with extra.
func (b *JSONResponseBuilder) Success(msg string, extra map[string]any) *JSONResponseBuilder {
	body := map[string]any{"success": true}
	if msg != "" {
		body["message"] = msg
	}
	for k, v := range extra {
		body[k] = v
	}
	b.body = body
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

func (b *JSONResponseBuilder) Cookie(c *http.Cookie) *JSONResponseBuilder {
	b.cookies = append(b.cookies, c)
	return b
}

// Write sends the built response. A 204 or nil body writes no payload.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	for _, c := range b.cookies {
		http.SetCookie(w, c)
	}

	if b.body == nil || b.statusCode == http.StatusNoContent {
		w.WriteHeader(b.statusCode)
		return
	}

	data, err := json.Marshal(b.body)
	if err != nil {
		slog.Error("Failed to encode response", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(data, '\n'))
}

// ErrorResponse creates a standard {"error": message} response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(map[string]string{"error": message})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// overpaymentBody carries the remaining balance so clients can offer it.
type overpaymentBody struct {
	Error     string     `json:"error"`
	Amount    core.Money `json:"amount"`
	Remaining core.Money `json:"remaining"`
}

// errorStatus classifies err. The second result is false for errors whose
// message must not reach the client.
func errorStatus(err error) (int, bool) {
	switch {
	case errors.Is(err, core.ErrValidation), errors.Is(err, core.ErrOverpayment):
		return http.StatusBadRequest, true
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, auth.ErrTooManyAttempts):
		return http.StatusTooManyRequests, true
	case errors.Is(err, core.ErrUnauthorized):
		return http.StatusUnauthorized, true
	case errors.Is(err, core.ErrForbidden):
		return http.StatusForbidden, true
	case errors.Is(err, auth.ErrKeysReadOnly):
		return http.StatusNotImplemented, true
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, false
	default:
		return http.StatusInternalServerError, false
	}
}

// ErrorFrom maps a service error to a response and logs server-side
// failures. op names the failed operation in logs and in generic messages.
func ErrorFrom(ctx context.Context, op string, err error) *JSONResponseBuilder {
	status, public := errorStatus(err)

	var over *core.OverpaymentError
	if errors.As(err, &over) {
		return NewJSONResponse().Status(status).Body(overpaymentBody{
			Error:     over.Error(),
			Amount:    over.Amount,
			Remaining: over.Remaining,
		})
	}

	if !public {
		log.FromContext(ctx).LogFields(ctx, slog.LevelError, "Request failed", log.NewFields().
			WithOperation(op).
			WithUsername(auth.UsernameFromContext(ctx)).
			WithError(err))
		return ErrorResponse(status, "failed to "+op)
	}
	return ErrorResponse(status, publicMessage(err))
}

// publicMessage strips service wrapping and returns the innermost message
// that still describes the problem.
func publicMessage(err error) string {
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	var nf *core.NotFoundError
	if errors.As(err, &nf) {
		return nf.Error()
	}
	return err.Error()
}
