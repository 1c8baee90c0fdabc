// Package sync reconciles canonical proposal events against the remote
// record store. The engine re-resolves create-vs-update against the remote
// store's current state on every call; it never caches a prior decision.
// Two near-simultaneous creates for one proposal can both observe "not
// found" and race — the remote external-id uniqueness constraint is the
// backstop, and the engine reports the loser as an update.
package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-proposal-sync/core"
	"github.com/goliatone/go-proposal-sync/remote"
	"github.com/goliatone/go-proposal-sync/stages"
)

const dateLayout = "2006-01-02"

type Engine struct {
	Remote core.RemoteStore
	// CloseDays is the forecast window applied to open stages.
	CloseDays int
	Now       func() time.Time
}

func NewEngine(store core.RemoteStore) *Engine {
	return &Engine{
		Remote:    store,
		CloseDays: 30,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (e *Engine) Process(ctx context.Context, event core.CanonicalEvent) (core.SyncOutcome, error) {
	if e == nil || e.Remote == nil {
		return core.SyncOutcome{}, fmt.Errorf("sync: engine requires a remote store")
	}
	if strings.TrimSpace(event.ProposalID) == "" {
		return core.SyncOutcome{}, fmt.Errorf("sync: proposal id is required")
	}
	switch event.Kind {
	case core.EventCreated:
		return e.processCreated(ctx, event)
	case core.EventUpdated:
		return e.processUpdated(ctx, event)
	case core.EventDeleted:
		return e.processDeleted(ctx, event)
	default:
		return core.SyncOutcome{}, fmt.Errorf("sync: unknown event kind %q", event.Kind)
	}
}

func (e *Engine) processCreated(ctx context.Context, event core.CanonicalEvent) (core.SyncOutcome, error) {
	target, err := stages.MapToTarget(event.Stage)
	if err != nil {
		return core.SyncOutcome{}, err
	}

	fields := core.RemoteFields{
		core.FieldExternalID:  event.ProposalID,
		core.FieldName:        event.Title,
		core.FieldStage:       string(target),
		core.FieldCloseDate:   e.closeDateFor(target),
		core.FieldDescription: event.Description,
		core.FieldProbability: stages.ProbabilityFor(target),
	}
	if event.Amount != nil {
		fields[core.FieldAmount] = event.Amount.Total
	}

	ref, err := e.Remote.Create(ctx, fields)
	if err == nil {
		return core.SyncOutcome{
			Success:          true,
			ExternalRecordID: ref.ID,
			Operation:        core.OperationCreated,
		}, nil
	}
	if !remote.IsDuplicate(err) {
		return core.SyncOutcome{}, err
	}

	// A record already exists for this external id: duplicate creation is
	// the idempotence path, not an error. Re-resolve and update in place.
	record, findErr := e.Remote.FindByExternalID(ctx, event.ProposalID)
	if findErr != nil {
		return core.SyncOutcome{}, findErr
	}
	if record == nil {
		return core.SyncOutcome{}, err
	}
	ref, err = e.Remote.UpdateByID(ctx, record.ID, fields)
	if err != nil {
		return core.SyncOutcome{}, err
	}
	return core.SyncOutcome{
		Success:          true,
		ExternalRecordID: ref.ID,
		Operation:        core.OperationUpdated,
	}, nil
}

func (e *Engine) processUpdated(ctx context.Context, event core.CanonicalEvent) (core.SyncOutcome, error) {
	// Partial semantics: only fields the event actually carries are
	// written; the remote record keeps everything the event omits.
	fields := core.RemoteFields{}
	if event.Title != "" {
		fields[core.FieldName] = event.Title
	}
	if event.Amount != nil {
		fields[core.FieldAmount] = event.Amount.Total
	}
	if event.Description != "" {
		fields[core.FieldDescription] = event.Description
	}
	if event.Stage != "" {
		target, err := stages.MapToTarget(event.Stage)
		if err != nil {
			return core.SyncOutcome{}, err
		}
		fields[core.FieldStage] = string(target)
		fields[core.FieldProbability] = stages.ProbabilityFor(target)
		if stages.IsClosed(target) {
			closeDate := event.CloseDate
			if closeDate == "" {
				closeDate = e.today()
			}
			fields[core.FieldCloseDate] = closeDate
		}
	}
	if len(fields) == 0 {
		return core.SyncOutcome{}, fmt.Errorf("sync: update event for %s carries no fields", event.ProposalID)
	}

	record, err := e.Remote.FindByExternalID(ctx, event.ProposalID)
	if err != nil {
		return core.SyncOutcome{}, err
	}
	if record == nil {
		// Degraded create: sync whatever the event supplied and let the
		// remote store decide whether that is enough for a new record.
		fields[core.FieldExternalID] = event.ProposalID
		ref, err := e.Remote.Create(ctx, fields)
		if err != nil {
			return core.SyncOutcome{}, err
		}
		return core.SyncOutcome{
			Success:          true,
			ExternalRecordID: ref.ID,
			Operation:        core.OperationCreated,
		}, nil
	}

	ref, err := e.Remote.UpdateByID(ctx, record.ID, fields)
	if err != nil {
		return core.SyncOutcome{}, err
	}
	return core.SyncOutcome{
		Success:          true,
		ExternalRecordID: ref.ID,
		Operation:        core.OperationUpdated,
	}, nil
}

func (e *Engine) processDeleted(ctx context.Context, event core.CanonicalEvent) (core.SyncOutcome, error) {
	record, err := e.Remote.FindByExternalID(ctx, event.ProposalID)
	if err != nil {
		return core.SyncOutcome{}, err
	}
	if record == nil {
		// Deleting something already gone is not an error.
		return core.SyncOutcome{
			Success: false,
			Metadata: map[string]any{
				"proposal_id": event.ProposalID,
				"skipped":     "not_found",
			},
		}, nil
	}

	closeDate := event.CloseDate
	if closeDate == "" {
		closeDate = e.today()
	}
	fields := core.RemoteFields{
		core.FieldStage:       string(stages.StageClosedLost),
		core.FieldProbability: stages.ProbabilityFor(stages.StageClosedLost),
		core.FieldCloseDate:   closeDate,
	}
	if reason := strings.TrimSpace(event.Reason); reason != "" {
		fields[core.FieldDescription] = appendReason(record.Description, reason)
	}

	ref, err := e.Remote.UpdateByID(ctx, record.ID, fields)
	if err != nil {
		return core.SyncOutcome{}, err
	}
	return core.SyncOutcome{
		Success:          true,
		ExternalRecordID: ref.ID,
		Operation:        core.OperationClosedLost,
	}, nil
}

func (e *Engine) closeDateFor(target stages.TargetStage) string {
	if stages.IsClosed(target) {
		return e.today()
	}
	days := e.CloseDays
	if days <= 0 {
		days = 30
	}
	return e.now().AddDate(0, 0, days).Format(dateLayout)
}

func (e *Engine) today() string {
	return e.now().Format(dateLayout)
}

func (e *Engine) now() time.Time {
	if e != nil && e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

func appendReason(description string, reason string) string {
	note := "Closed: " + reason
	if strings.TrimSpace(description) == "" {
		return note
	}
	return description + "\n" + note
}

var _ core.SyncEngine = (*Engine)(nil)
