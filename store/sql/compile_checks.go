package sqlstore

import (
	"github.com/goliatone/go-proposal-sync/core"
	"github.com/goliatone/go-proposal-sync/ratelimit"
)

var (
	_ core.ActivityStore         = (*ActivityStore)(nil)
	_ core.IdempotencyClaimStore = (*ClaimStore)(nil)
	_ ratelimit.StateStore       = (*RateLimitStateStore)(nil)
)
