package adapter

import (
	"fmt"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-proposal-sync/core"
)

func badInputError(message string, metadata map[string]any) error {
	err := goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.SyncErrorBadInput)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func unsupportedActionError(action string) error {
	return goerrors.New(
		fmt.Sprintf("adapter: unsupported source action %q", action),
		goerrors.CategoryBadInput,
	).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.SyncErrorUnsupportedAction).
		WithMetadata(map[string]any{"action": action})
}

func missingIdentifierError() error {
	return goerrors.New(
		"adapter: payload carries no proposal identifier",
		goerrors.CategoryBadInput,
	).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.SyncErrorMissingIdentifier)
}
