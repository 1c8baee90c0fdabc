package inbound

import (
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-proposal-sync/core"
)

func inboundError(message string, category goerrors.Category, code int, textCode string, metadata map[string]any) error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func inboundWrapError(src error, category goerrors.Category, message string, code int, textCode string, metadata map[string]any) error {
	err := goerrors.Wrap(src, category, message).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func inboundBadInput(message string, metadata map[string]any) error {
	return inboundError(message, goerrors.CategoryBadInput, 400, core.SyncErrorBadInput, metadata)
}

func inboundInternal(message string, metadata map[string]any) error {
	return inboundError(message, goerrors.CategoryInternal, 500, core.SyncErrorInternal, metadata)
}
