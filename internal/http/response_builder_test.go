package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"teamapp/internal/auth"
	"teamapp/internal/core"
)

func TestJSONResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("X-Custom", "1").
		Body(map[string]int{"id": 7}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if got := w.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
	if w.Header().Get("X-Custom") != "1" {
		t.Error("custom header not set")
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"id":7}` {
		t.Errorf("Body = %q", got)
	}
}

func TestJSONResponseBuilder_Success(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Success("saved", map[string]any{"count": 2}).Write(w)

	body := w.Body.String()
	for _, part := range []string{`"success":true`, `"message":"saved"`, `"count":2`} {
		if !strings.Contains(body, part) {
			t.Errorf("Body %s missing %s", body, part)
		}
	}
}

func TestJSONResponseBuilder_NoBody(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusNoContent).Body("ignored").Write(w)

	if w.Code != http.StatusNoContent || w.Body.Len() != 0 {
		t.Errorf("got %d with %q, want empty 204", w.Code, w.Body.String())
	}
}

func TestJSONResponseBuilder_EncodeFailure(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Body(map[string]any{"bad": make(chan int)}).Write(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status code = %d, want 500", w.Code)
	}
}

func TestErrorFrom(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    int
		message string
	}{
		{
			"validation",
			fmt.Errorf("create agent: %w", core.NewValidationError("pseudo", core.ErrEmptyPseudo)),
			http.StatusBadRequest,
			"pseudo: empty pseudo",
		},
		{
			"not found",
			fmt.Errorf("update commission 4: %w", &core.NotFoundError{Kind: "commission", ID: 4}),
			http.StatusNotFound,
			"commission 4 not found",
		},
		{"unauthorized", auth.ErrInvalidKey, http.StatusUnauthorized, auth.ErrInvalidKey.Error()},
		{"forbidden", core.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"too many attempts", auth.ErrTooManyAttempts, http.StatusTooManyRequests, auth.ErrTooManyAttempts.Error()},
		{"read-only keys", auth.ErrKeysReadOnly, http.StatusNotImplemented, auth.ErrKeysReadOnly.Error()},
		{"internal", errors.New("disk on fire"), http.StatusInternalServerError, "failed to save thing"},
		{"cancelled", context.Canceled, http.StatusServiceUnavailable, "failed to save thing"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			ErrorFrom(context.Background(), "save thing", tt.err).Write(w)

			if w.Code != tt.code {
				t.Errorf("status = %d, want %d", w.Code, tt.code)
			}
			want, _ := json.Marshal(map[string]string{"error": tt.message})
			if got := strings.TrimSpace(w.Body.String()); got != string(want) {
				t.Errorf("body = %s, want %s", got, want)
			}
		})
	}
}

func TestErrorFrom_Overpayment(t *testing.T) {
	err := fmt.Errorf("record settlement: %w", &core.OverpaymentError{
		Amount:    core.MustMoney("900"),
		Remaining: core.MustMoney("800"),
	})
	w := httptest.NewRecorder()
	ErrorFrom(context.Background(), "record settlement", err).Write(w)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	body := w.Body.String()
	for _, part := range []string{`"remaining":800`, `"amount":900`, `exceeds remaining balance`} {
		if !strings.Contains(body, part) {
			t.Errorf("body %s missing %s", body, part)
		}
	}
}
