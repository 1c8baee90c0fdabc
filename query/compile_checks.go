package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-proposal-sync/core"
)

var (
	_ gocmd.Querier[MappingSummaryMessage, core.MappingSummary] = (*MappingSummaryQuery)(nil)
	_ gocmd.Querier[ListActivityMessage, core.ActivityPage]     = (*ListActivityQuery)(nil)
)
