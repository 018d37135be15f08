// Package http serves the analytics models over a JSON API.
//
// This file provides a small fluent builder for JSON responses so
// handlers set status, headers and payload in one expression.
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// JSONResponse accumulates a response before writing it out.
type JSONResponse struct {
	statusCode int
	headers    map[string]string
	payload    any
}

// OK creates a 200 response with the given payload.
func OK(payload any) *JSONResponse {
	return &JSONResponse{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
		payload:    payload,
	}
}

// Error creates an error response with a standard {"error": ...} body.
func Error(statusCode int, message string) *JSONResponse {
	return &JSONResponse{
		statusCode: statusCode,
		headers:    make(map[string]string),
		payload:    map[string]string{"error": message},
	}
}

// BadRequest creates a 400 response.
func BadRequest(message string) *JSONResponse {
	return Error(http.StatusBadRequest, message)
}

// Internal creates a 500 response with a generic message. The cause
// belongs in the log, not on the wire.
func Internal() *JSONResponse {
	return Error(http.StatusInternalServerError, "internal error")
}

// MethodNotAllowed creates a 405 response naming the allowed methods.
func MethodNotAllowed(methods ...string) *JSONResponse {
	return Error(http.StatusMethodNotAllowed, "method not allowed").
		Header("Allow", strings.Join(methods, ", "))
}

// TooManyRequests creates a 429 response with a Retry-After hint.
func TooManyRequests() *JSONResponse {
	return Error(http.StatusTooManyRequests, "rate limit exceeded").
		Header("Retry-After", "60")
}

// Header adds a custom header to the response.
func (b *JSONResponse) Header(name, value string) *JSONResponse {
	b.headers[name] = value
	return b
}

// Write marshals the payload and sends the response.
func (b *JSONResponse) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")

	body, err := json.Marshal(b.payload)
	if err != nil {
		slog.Error("Failed to marshal response payload", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal error"}`))
		return
	}

	w.WriteHeader(b.statusCode)
	_, _ = w.Write(body)
}
