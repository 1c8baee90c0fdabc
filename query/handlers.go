// Package query exposes the service's read operations as go-command query
// handlers.
package query

import (
	"context"

	"github.com/goliatone/go-proposal-sync/core"
)

type MappingReader interface {
	MappingSummary() (core.MappingSummary, error)
}

type ActivityReader interface {
	ListActivity(ctx context.Context, filter core.ActivityFilter) (core.ActivityPage, error)
}

type MappingSummaryQuery struct {
	reader MappingReader
}

func NewMappingSummaryQuery(reader MappingReader) *MappingSummaryQuery {
	return &MappingSummaryQuery{reader: reader}
}

func (q *MappingSummaryQuery) Query(ctx context.Context, msg MappingSummaryMessage) (core.MappingSummary, error) {
	if q == nil || q.reader == nil {
		return core.MappingSummary{}, queryDependencyError("query: mapping reader is required")
	}
	return q.reader.MappingSummary()
}

type ListActivityQuery struct {
	reader ActivityReader
}

func NewListActivityQuery(reader ActivityReader) *ListActivityQuery {
	return &ListActivityQuery{reader: reader}
}

func (q *ListActivityQuery) Query(ctx context.Context, msg ListActivityMessage) (core.ActivityPage, error) {
	if q == nil || q.reader == nil {
		return core.ActivityPage{}, queryDependencyError("query: activity reader is required")
	}
	return q.reader.ListActivity(ctx, msg.Filter)
}
