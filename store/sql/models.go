package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type activityEntryRecord struct {
	bun.BaseModel `bun:"table:sync_activity_entries,alias:sae"`

	ID         string         `bun:"id,pk"`
	ProposalID string         `bun:"proposal_id,notnull"`
	EventKind  string         `bun:"event_kind,notnull"`
	Operation  string         `bun:"operation"`
	Status     string         `bun:"status,notnull"`
	Error      string         `bun:"error"`
	TraceID    string         `bun:"trace_id"`
	Metadata   map[string]any `bun:"metadata,type:jsonb,notnull"`
	CreatedAt  time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type idempotencyClaimRecord struct {
	bun.BaseModel `bun:"table:sync_idempotency_claims,alias:sic"`

	ID             string     `bun:"id,pk"`
	Key            string     `bun:"key,notnull,unique"`
	Status         string     `bun:"status,notnull"`
	ClaimID        string     `bun:"claim_id,notnull"`
	Attempts       int        `bun:"attempts,notnull"`
	LeaseMillis    int64      `bun:"lease_ms,notnull"`
	LeaseExpiresAt *time.Time `bun:"lease_expires_at,nullzero"`
	RetryAt        *time.Time `bun:"retry_at,nullzero"`
	LastError      string     `bun:"last_error"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type rateLimitStateRecord struct {
	bun.BaseModel `bun:"table:sync_rate_limit_states,alias:srls"`

	ID             string     `bun:"id,pk"`
	ProviderID     string     `bun:"provider_id,notnull"`
	BucketKey      string     `bun:"bucket_key,notnull"`
	RateLimit      int        `bun:"rate_limit"`
	Remaining      int        `bun:"remaining"`
	ResetAt        *time.Time `bun:"reset_at,nullzero"`
	RetryAfterMS   *int64     `bun:"retry_after_ms"`
	ThrottledUntil *time.Time `bun:"throttled_until,nullzero"`
	LastStatus     int        `bun:"last_status"`
	Attempts       int        `bun:"attempts,notnull"`
	UpdatedAt      time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
