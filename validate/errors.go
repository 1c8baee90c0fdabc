package validate

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-proposal-sync/core"
)

func validationError(message string, issues []FieldIssue) error {
	err := goerrors.New(message, goerrors.CategoryValidation).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.SyncErrorValidation)
	if len(issues) > 0 {
		detail := make([]map[string]any, 0, len(issues))
		for _, issue := range issues {
			detail = append(detail, map[string]any{
				"path":   issue.Path,
				"reason": issue.Reason,
			})
		}
		err.WithMetadata(map[string]any{"issues": detail})
	}
	return err
}

// IssuesFrom extracts the collected field issues from a validation error,
// or nil when err is not one.
func IssuesFrom(err error) []FieldIssue {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return nil
	}
	if richErr.TextCode != core.SyncErrorValidation || len(richErr.Metadata) == 0 {
		return nil
	}
	raw, ok := richErr.Metadata["issues"].([]map[string]any)
	if !ok {
		return nil
	}
	issues := make([]FieldIssue, 0, len(raw))
	for _, item := range raw {
		issue := FieldIssue{}
		if path, ok := item["path"].(string); ok {
			issue.Path = path
		}
		if reason, ok := item["reason"].(string); ok {
			issue.Reason = reason
		}
		issues = append(issues, issue)
	}
	return issues
}
