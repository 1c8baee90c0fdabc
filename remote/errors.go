package remote

import (
	"fmt"
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-proposal-sync/core"
)

// AuthError reports rejected credentials or an expired session.
func AuthError(message string) error {
	return goerrors.New(message, goerrors.CategoryAuth).
		WithCode(http.StatusUnauthorized).
		WithTextCode(core.SyncErrorRemoteAuth)
}

// PermissionError reports a session that authenticated but lacks access to
// the record or field it touched.
func PermissionError(message string) error {
	return goerrors.New(message, goerrors.CategoryAuthz).
		WithCode(http.StatusForbidden).
		WithTextCode(core.SyncErrorRemotePermission)
}

// RateLimitError reports provider throttling. retryAfter of zero means the
// provider gave no hint and the caller should apply its own backoff.
func RateLimitError(message string, retryAfter time.Duration) error {
	err := goerrors.New(message, goerrors.CategoryRateLimit).
		WithCode(http.StatusTooManyRequests).
		WithTextCode(core.SyncErrorRateLimited)
	if retryAfter > 0 {
		err.WithMetadata(map[string]any{"retry_after_ms": retryAfter.Milliseconds()})
	}
	return err
}

// ValidationError reports the remote store rejecting field values.
func ValidationError(message string) error {
	return goerrors.New(message, goerrors.CategoryValidation).
		WithCode(http.StatusUnprocessableEntity).
		WithTextCode(core.SyncErrorRemoteValidation)
}

// DuplicateError reports a violated uniqueness constraint on the external
// id field.
func DuplicateError(externalID string) error {
	return goerrors.New(
		fmt.Sprintf("remote: record with external id %q already exists", externalID),
		goerrors.CategoryConflict,
	).
		WithCode(http.StatusConflict).
		WithTextCode(core.SyncErrorRemoteDuplicate).
		WithMetadata(map[string]any{"external_id": externalID})
}

// ConnectivityError reports a transport-level failure: timeouts, refused
// connections, dead sessions.
func ConnectivityError(message string, src error) error {
	if src == nil {
		return goerrors.New(message, goerrors.CategoryExternal).
			WithCode(http.StatusBadGateway).
			WithTextCode(core.SyncErrorConnectivity)
	}
	return goerrors.Wrap(src, goerrors.CategoryExternal, message).
		WithCode(http.StatusBadGateway).
		WithTextCode(core.SyncErrorConnectivity)
}

// UnknownError is the fallback category for remote failures that match
// nothing more specific.
func UnknownError(message string, src error) error {
	if src == nil {
		return goerrors.New(message, goerrors.CategoryExternal).
			WithCode(http.StatusBadGateway).
			WithTextCode(core.SyncErrorOperationFailed)
	}
	return goerrors.Wrap(src, goerrors.CategoryExternal, message).
		WithCode(http.StatusBadGateway).
		WithTextCode(core.SyncErrorOperationFailed)
}

func hasTextCode(err error, code string) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}

func IsAuth(err error) bool {
	return hasTextCode(err, core.SyncErrorRemoteAuth)
}

func IsDuplicate(err error) bool {
	return hasTextCode(err, core.SyncErrorRemoteDuplicate)
}

func IsRateLimited(err error) bool {
	return hasTextCode(err, core.SyncErrorRateLimited)
}

func IsConnectivity(err error) bool {
	return hasTextCode(err, core.SyncErrorConnectivity)
}

func statusOf(err error) int {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Code > 0 {
		return richErr.Code
	}
	return http.StatusInternalServerError
}

// RetryAfterHint returns the provider-supplied wait from a rate-limit
// error, or zero when none was attached.
func RetryAfterHint(err error) time.Duration {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || len(richErr.Metadata) == 0 {
		return 0
	}
	if millis, ok := richErr.Metadata["retry_after_ms"].(int64); ok && millis > 0 {
		return time.Duration(millis) * time.Millisecond
	}
	return 0
}
