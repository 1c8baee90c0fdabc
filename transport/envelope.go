// Package transport translates service results and typed errors into wire
// responses. Every error leaving the service carries a category, an HTTP
// status and a stable text code; the envelope surfaces all three so
// callers never have to parse free-text messages.
package transport

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

type ErrorEnvelope struct {
	StatusCode int            `json:"status_code"`
	TextCode   string         `json:"text_code"`
	Category   string         `json:"category"`
	Message    string         `json:"message"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type errorResponse struct {
	Error ErrorEnvelope `json:"error"`
}

// EnvelopeFor normalizes any error into the wire envelope. Errors that did
// not pass through the service error mapper get categorized here with the
// default mappers before translation.
func EnvelopeFor(err error) ErrorEnvelope {
	if err == nil {
		return ErrorEnvelope{}
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	}
	envelope := ErrorEnvelope{
		StatusCode: richErr.Code,
		TextCode:   richErr.TextCode,
		Category:   string(richErr.Category),
		Message:    richErr.Message,
	}
	if len(richErr.Metadata) > 0 {
		envelope.Metadata = richErr.Metadata
	}
	if envelope.StatusCode == 0 {
		envelope.StatusCode = statusForCategory(richErr.Category)
	}
	if envelope.TextCode == "" {
		envelope.TextCode = transportTextCode(richErr.Category)
	}
	if envelope.Message == "" {
		envelope.Message = err.Error()
	}
	return envelope
}

func statusForCategory(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// IsClientError reports whether the envelope blames the caller rather
// than this service or the remote store.
func (e ErrorEnvelope) IsClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}
