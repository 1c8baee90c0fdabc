// Package sqlstore persists sync bookkeeping (activity history,
// idempotency claims, throttle state) behind bun repositories.
package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-proposal-sync/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type ActivityStore struct {
	db   *bun.DB
	repo repository.Repository[*activityEntryRecord]
}

func NewActivityStore(db *bun.DB) (*ActivityStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*activityEntryRecord](db, activityHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid activity repository wiring: %w", err)
		}
	}
	return &ActivityStore{db: db, repo: repo}, nil
}

func (s *ActivityStore) Record(ctx context.Context, entry core.ActivityEntry) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: activity store is not configured")
	}
	id := strings.TrimSpace(entry.ID)
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := entry.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	metadata := copyAnyMap(entry.Metadata)

	record := &activityEntryRecord{
		ID:         id,
		ProposalID: strings.TrimSpace(entry.ProposalID),
		EventKind:  strings.TrimSpace(entry.EventKind),
		Operation:  strings.TrimSpace(entry.Operation),
		Status:     strings.TrimSpace(string(entry.Status)),
		Error:      strings.TrimSpace(entry.Error),
		TraceID:    strings.TrimSpace(entry.TraceID),
		Metadata:   metadata,
		CreatedAt:  createdAt,
	}
	if record.Status == "" {
		record.Status = string(core.ActivityStatusOK)
	}

	_, err := s.repo.Create(ctx, record)
	return err
}

func (s *ActivityStore) List(ctx context.Context, filter core.ActivityFilter) (core.ActivityPage, error) {
	if s == nil || s.repo == nil {
		return core.ActivityPage{}, fmt.Errorf("sqlstore: activity store is not configured")
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 25
	}
	offset := (page - 1) * perPage

	selectors := []repository.SelectCriteria{
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(perPage, offset),
	}
	if proposalID := strings.TrimSpace(filter.ProposalID); proposalID != "" {
		selectors = append(selectors, repository.SelectBy("proposal_id", "=", proposalID))
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		selectors = append(selectors, repository.SelectBy("status", "=", status))
	}

	records, total, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return core.ActivityPage{}, err
	}
	entries := make([]core.ActivityEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, activityRecordToDomain(record))
	}
	return core.ActivityPage{
		Entries: entries,
		Total:   total,
		Page:    page,
		PerPage: perPage,
	}, nil
}

func activityRecordToDomain(record *activityEntryRecord) core.ActivityEntry {
	if record == nil {
		return core.ActivityEntry{}
	}
	return core.ActivityEntry{
		ID:         record.ID,
		ProposalID: record.ProposalID,
		EventKind:  record.EventKind,
		Operation:  record.Operation,
		Status:     core.ActivityStatus(record.Status),
		Error:      record.Error,
		TraceID:    record.TraceID,
		Metadata:   copyAnyMap(record.Metadata),
		CreatedAt:  record.CreatedAt,
	}
}

func copyAnyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
