package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	SyncErrorBadInput          = "SYNC_BAD_INPUT"
	SyncErrorUnmappedStage     = "SYNC_UNMAPPED_STAGE"
	SyncErrorUnsupportedAction = "SYNC_UNSUPPORTED_ACTION"
	SyncErrorMissingIdentifier = "SYNC_MISSING_IDENTIFIER"
	SyncErrorValidation        = "SYNC_VALIDATION_FAILED"
	SyncErrorRemoteAuth        = "SYNC_REMOTE_AUTH"
	SyncErrorRemotePermission  = "SYNC_REMOTE_PERMISSION"
	SyncErrorRateLimited       = "SYNC_RATE_LIMITED"
	SyncErrorRemoteValidation  = "SYNC_REMOTE_VALIDATION"
	SyncErrorRemoteDuplicate   = "SYNC_REMOTE_DUPLICATE"
	SyncErrorConnectivity      = "SYNC_REMOTE_CONNECTIVITY"
	SyncErrorNotFound          = "SYNC_NOT_FOUND"
	SyncErrorConflict          = "SYNC_CONFLICT"
	SyncErrorUnauthorized      = "SYNC_UNAUTHORIZED"
	SyncErrorForbidden         = "SYNC_FORBIDDEN"
	SyncErrorOperationFailed   = "SYNC_OPERATION_FAILED"
	SyncErrorInternal          = "SYNC_INTERNAL_ERROR"
)

func serviceErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureServiceErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "not mapped"):
		return newServiceError(err.Error(), goerrors.CategoryValidation, SyncErrorUnmappedStage)
	case strings.Contains(msg, "throttl"), strings.Contains(msg, "rate limit"):
		return newServiceError(err.Error(), goerrors.CategoryRateLimit, SyncErrorRateLimited)
	case strings.Contains(msg, "duplicate"):
		return newServiceError(err.Error(), goerrors.CategoryConflict, SyncErrorRemoteDuplicate)
	case strings.Contains(msg, "not found"):
		return newServiceError(err.Error(), goerrors.CategoryNotFound, SyncErrorNotFound)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "unknown event kind"):
		return newServiceError(err.Error(), goerrors.CategoryBadInput, SyncErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureServiceErrorEnvelope(mapped)
}

func newServiceError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureServiceErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureServiceErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = serviceHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultServiceTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultServiceTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput:
		return SyncErrorBadInput
	case goerrors.CategoryValidation:
		return SyncErrorValidation
	case goerrors.CategoryNotFound:
		return SyncErrorNotFound
	case goerrors.CategoryAuth:
		return SyncErrorUnauthorized
	case goerrors.CategoryAuthz:
		return SyncErrorForbidden
	case goerrors.CategoryConflict:
		return SyncErrorConflict
	case goerrors.CategoryRateLimit:
		return SyncErrorRateLimited
	case goerrors.CategoryExternal:
		return SyncErrorConnectivity
	case goerrors.CategoryOperation:
		return SyncErrorOperationFailed
	default:
		return SyncErrorInternal
	}
}

func serviceHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
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
