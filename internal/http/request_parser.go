// Package http exposes the team back-office as a JSON API.
//
// This file implements helpers for decoding request bodies and path and
// query parameters.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"teamapp/internal/core"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// DecodeJSON reads the request body into v. An empty body leaves v
// untouched. Decoding problems come back as validation errors.
func DecodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes+1))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return core.NewValidationError("body", fmt.Errorf("invalid JSON: %w", err))
	}
	if dec.More() {
		return core.NewValidationError("body", errors.New("unexpected data after JSON value"))
	}
	return nil
}

// PathID parses the named path wildcard as a non-negative integer.
func PathID(r *http.Request, name string) (int, error) {
	raw := r.PathValue(name)
	id, err := strconv.Atoi(raw)
	if err != nil || id < 0 {
		return 0, core.NewValidationError(name, fmt.Errorf("invalid identifier %q", raw))
	}
	return id, nil
}

// QueryBool parses an optional boolean query parameter. A missing or empty
// parameter returns nil.
func QueryBool(r *http.Request, name string) (*bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, core.NewValidationError(name, fmt.Errorf("invalid boolean %q", raw))
	}
	return &b, nil
}

// sanitizeInput removes control characters other than tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}
