package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	claimStatusProcessing = "processing"
	claimStatusRetryReady = "retry_ready"
	claimStatusComplete   = "complete"

	defaultClaimLease = 10 * time.Minute
)

// ClaimStore is the durable idempotency ledger. Claim/Complete/Fail follow
// the same lease semantics as the in-memory store, but survive restarts
// and are shared across replicas. Claim runs inside a transaction so two
// replicas racing for one key serialize on the key's unique index.
type ClaimStore struct {
	db  *bun.DB
	Now func() time.Time
}

func NewClaimStore(db *bun.DB) (*ClaimStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &ClaimStore{
		db:  db,
		Now: func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *ClaimStore) Claim(ctx context.Context, key string, lease time.Duration) (string, bool, error) {
	if s == nil || s.db == nil {
		return "", false, fmt.Errorf("sqlstore: claim store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", false, fmt.Errorf("sqlstore: idempotency key is required")
	}
	if lease <= 0 {
		lease = defaultClaimLease
	}
	now := s.now()

	claimID := ""
	accepted := false
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		record := &idempotencyClaimRecord{}
		err := tx.NewSelect().
			Model(record).
			Where("key = ?", key).
			Limit(1).
			Scan(ctx)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		if errors.Is(err, sql.ErrNoRows) {
			expires := now.Add(lease)
			claimID = uuid.NewString()
			record = &idempotencyClaimRecord{
				ID:             uuid.NewString(),
				Key:            key,
				Status:         claimStatusProcessing,
				ClaimID:        claimID,
				Attempts:       1,
				LeaseMillis:    lease.Milliseconds(),
				LeaseExpiresAt: &expires,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
				return err
			}
			accepted = true
			return nil
		}

		if !claimableAt(record, now) {
			return nil
		}

		expires := now.Add(lease)
		claimID = uuid.NewString()
		record.Status = claimStatusProcessing
		record.ClaimID = claimID
		record.Attempts++
		record.LeaseMillis = lease.Milliseconds()
		record.LeaseExpiresAt = &expires
		record.RetryAt = nil
		record.UpdatedAt = now
		if _, err := tx.NewUpdate().Model(record).WherePK().Exec(ctx); err != nil {
			return err
		}
		accepted = true
		return nil
	})
	if err != nil {
		return "", false, err
	}
	if !accepted {
		return "", false, nil
	}
	return claimID, true, nil
}

func (s *ClaimStore) Complete(ctx context.Context, claimID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: claim store is not configured")
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return fmt.Errorf("sqlstore: claim id is required")
	}
	now := s.now()
	record := &idempotencyClaimRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("claim_id = ?", claimID).
		Where("status = ?", claimStatusProcessing).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	ttl := time.Duration(record.LeaseMillis) * time.Millisecond
	if ttl <= 0 {
		ttl = defaultClaimLease
	}
	expires := now.Add(ttl)
	record.Status = claimStatusComplete
	record.LeaseExpiresAt = &expires
	record.RetryAt = nil
	record.UpdatedAt = now
	_, err = s.db.NewUpdate().Model(record).WherePK().Exec(ctx)
	return err
}

func (s *ClaimStore) Fail(ctx context.Context, claimID string, cause error, retryAt time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: claim store is not configured")
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return fmt.Errorf("sqlstore: claim id is required")
	}
	now := s.now()
	if retryAt.IsZero() {
		retryAt = now
	}
	record := &idempotencyClaimRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("claim_id = ?", claimID).
		Where("status = ?", claimStatusProcessing).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	retry := retryAt.UTC()
	record.Status = claimStatusRetryReady
	record.RetryAt = &retry
	record.LeaseExpiresAt = nil
	record.UpdatedAt = now
	if cause != nil {
		record.LastError = cause.Error()
	}
	_, err = s.db.NewUpdate().Model(record).WherePK().Exec(ctx)
	return err
}

func (s *ClaimStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func claimableAt(record *idempotencyClaimRecord, now time.Time) bool {
	switch record.Status {
	case claimStatusComplete:
		return record.LeaseExpiresAt == nil || !now.Before(*record.LeaseExpiresAt)
	case claimStatusProcessing:
		return record.LeaseExpiresAt == nil || !now.Before(*record.LeaseExpiresAt)
	case claimStatusRetryReady:
		return record.RetryAt == nil || !now.Before(*record.RetryAt)
	default:
		return true
	}
}
