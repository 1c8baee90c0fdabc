package query

import (
	"github.com/goliatone/go-proposal-sync/core"
)

const (
	TypeMappingSummary = "proposalsync.query.stages.summary"
	TypeListActivity   = "proposalsync.query.activity.list"
)

// MappingSummaryMessage requests the read-only stage mapping snapshot.
type MappingSummaryMessage struct{}

func (MappingSummaryMessage) Type() string { return TypeMappingSummary }

func (MappingSummaryMessage) Validate() error { return nil }

type ListActivityMessage struct {
	Filter core.ActivityFilter
}

func (ListActivityMessage) Type() string { return TypeListActivity }

func (m ListActivityMessage) Validate() error {
	if m.Filter.Page < 0 {
		return queryValidationError("page", "page must not be negative")
	}
	if m.Filter.PerPage < 0 || m.Filter.PerPage > 500 {
		return queryValidationError("per_page", "per_page must be between 0 and 500")
	}
	return nil
}
