package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// RemoteStore is the capability contract the sync engine requires from the
// CRM-like record store. Implementations own session lifecycle, retry and
// backoff on transient failure; the engine never retries on its own.
type RemoteStore interface {
	Connect(ctx context.Context) (SessionInfo, error)
	FindByExternalID(ctx context.Context, externalID string) (*RemoteRecord, error)
	Create(ctx context.Context, fields RemoteFields) (RemoteRef, error)
	UpdateByID(ctx context.Context, id string, fields RemoteFields) (RemoteRef, error)
}

// Normalizer rewrites a recognized non-canonical payload into canonical
// shape, or returns it unchanged when no recognizer matches.
type Normalizer interface {
	Normalize(payload map[string]any) (map[string]any, error)
}

type EventValidator interface {
	Validate(kind EventKind, payload map[string]any) error
}

type SyncEngine interface {
	Process(ctx context.Context, event CanonicalEvent) (SyncOutcome, error)
}

type MappingIntrospector interface {
	Summary() MappingSummary
}

type IdempotencyClaimStore interface {
	Claim(ctx context.Context, key string, lease time.Duration) (string, bool, error)
	Complete(ctx context.Context, claimID string) error
	Fail(ctx context.Context, claimID string, cause error, retryAt time.Time) error
}

type ActivityStore interface {
	Record(ctx context.Context, entry ActivityEntry) error
	List(ctx context.Context, filter ActivityFilter) (ActivityPage, error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type RateLimitKey struct {
	ProviderID string
	BucketKey  string
}

type ProviderResponseMeta struct {
	StatusCode int
	Headers    map[string]string
	RetryAfter *time.Duration
	Metadata   map[string]any
}

type RateLimitPolicy interface {
	BeforeCall(ctx context.Context, key RateLimitKey) error
	AfterCall(ctx context.Context, key RateLimitKey, res ProviderResponseMeta) error
}
