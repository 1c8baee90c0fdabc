package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-proposal-sync/core"
	"github.com/goliatone/go-proposal-sync/ratelimit"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RateLimitStateStore persists throttle state so cooldown windows survive
// restarts and are shared across replicas talking to the same provider.
type RateLimitStateStore struct {
	db *bun.DB
}

func NewRateLimitStateStore(db *bun.DB) (*RateLimitStateStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &RateLimitStateStore{db: db}, nil
}

func (s *RateLimitStateStore) Get(ctx context.Context, key core.RateLimitKey) (ratelimit.State, error) {
	if s == nil || s.db == nil {
		return ratelimit.State{}, fmt.Errorf("sqlstore: rate-limit state store is not configured")
	}
	record := &rateLimitStateRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("provider_id = ?", key.ProviderID).
		Where("bucket_key = ?", key.BucketKey).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return ratelimit.State{}, ratelimit.ErrStateNotFound
	}
	if err != nil {
		return ratelimit.State{}, err
	}
	return stateRecordToDomain(record), nil
}

func (s *RateLimitStateStore) Upsert(ctx context.Context, state ratelimit.State) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: rate-limit state store is not configured")
	}
	record := &rateLimitStateRecord{
		ProviderID:     state.Key.ProviderID,
		BucketKey:      state.Key.BucketKey,
		RateLimit:      state.Limit,
		Remaining:      state.Remaining,
		ResetAt:        state.ResetAt,
		ThrottledUntil: state.ThrottledUntil,
		LastStatus:     state.LastStatus,
		Attempts:       state.Attempts,
		UpdatedAt:      state.UpdatedAt,
	}
	if state.RetryAfter != nil {
		millis := state.RetryAfter.Milliseconds()
		record.RetryAfterMS = &millis
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = time.Now().UTC()
	}

	existing := &rateLimitStateRecord{}
	err := s.db.NewSelect().
		Model(existing).
		Where("provider_id = ?", state.Key.ProviderID).
		Where("bucket_key = ?", state.Key.BucketKey).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		record.ID = uuid.NewString()
		_, err = s.db.NewInsert().Model(record).Exec(ctx)
		return err
	}
	if err != nil {
		return err
	}
	record.ID = existing.ID
	_, err = s.db.NewUpdate().Model(record).WherePK().Exec(ctx)
	return err
}

func stateRecordToDomain(record *rateLimitStateRecord) ratelimit.State {
	state := ratelimit.State{
		Key: core.RateLimitKey{
			ProviderID: record.ProviderID,
			BucketKey:  record.BucketKey,
		},
		Limit:          record.RateLimit,
		Remaining:      record.Remaining,
		ResetAt:        record.ResetAt,
		ThrottledUntil: record.ThrottledUntil,
		LastStatus:     record.LastStatus,
		Attempts:       record.Attempts,
		UpdatedAt:      record.UpdatedAt,
	}
	if record.RetryAfterMS != nil {
		retryAfter := time.Duration(*record.RetryAfterMS) * time.Millisecond
		state.RetryAfter = &retryAfter
	}
	return state
}
