package stages

import (
	"fmt"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-proposal-sync/core"
)

func invalidInputError(message string) error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.SyncErrorBadInput)
}

// The message keeps the offending value as a matchable substring; the text
// code remains the primary signal for callers.
func unmappedStageError(value string) error {
	return goerrors.New(
		fmt.Sprintf("stages: source stage %q is not mapped to a target stage", value),
		goerrors.CategoryValidation,
	).
		WithCode(http.StatusUnprocessableEntity).
		WithTextCode(core.SyncErrorUnmappedStage).
		WithMetadata(map[string]any{"source_stage": value})
}

// IsUnmapped reports whether err is an unmapped-stage failure.
func IsUnmapped(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == core.SyncErrorUnmappedStage
}
