// Package inbound accepts raw proposal event deliveries from source
// systems: it verifies the request, claims an idempotency lease so a
// redelivered event is processed exactly once per lease window, and hands
// the payload to the sync service.
package inbound

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-proposal-sync/core"
)

type Verifier interface {
	Verify(ctx context.Context, req core.InboundRequest) error
}

// EventProcessor is the downstream pipeline a receiver feeds; the core
// service satisfies it.
type EventProcessor interface {
	ProcessEvent(ctx context.Context, req core.ProcessEventRequest) (core.SyncOutcome, error)
}

type IdempotencyKeyExtractor func(req core.InboundRequest) (string, error)

type Receiver struct {
	Verifier   Verifier
	Processor  EventProcessor
	Store      core.IdempotencyClaimStore
	ExtractKey IdempotencyKeyExtractor
	KeyTTL     time.Duration
}

func NewReceiver(processor EventProcessor, store core.IdempotencyClaimStore) *Receiver {
	return &Receiver{
		Processor:  processor,
		Store:      store,
		ExtractKey: DefaultIdempotencyKeyExtractor,
		KeyTTL:     10 * time.Minute,
	}
}

// Receive runs one delivery through verification, deduplication and the
// sync pipeline. A redelivery inside the lease window is acknowledged
// without reprocessing; a failed delivery releases its claim so the source
// system's retry gets through.
func (r *Receiver) Receive(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	if r == nil || r.Processor == nil {
		return core.InboundResult{}, inboundInternal("inbound: receiver requires a processor", nil)
	}
	req.SourceID = strings.TrimSpace(req.SourceID)
	if req.SourceID == "" {
		return core.InboundResult{}, inboundBadInput("inbound: source id is required", nil)
	}

	if r.Verifier != nil {
		if err := r.Verifier.Verify(ctx, req); err != nil {
			return core.InboundResult{
					Accepted:   false,
					StatusCode: http.StatusUnauthorized,
					Metadata: map[string]any{
						"source_id": req.SourceID,
						"rejected":  true,
					},
				}, inboundWrapError(
					err,
					goerrors.CategoryAuth,
					"inbound: request verification failed",
					http.StatusUnauthorized,
					core.SyncErrorUnauthorized,
					map[string]any{"source_id": req.SourceID},
				)
		}
	}

	payload, err := r.resolvePayload(req)
	if err != nil {
		return core.InboundResult{}, err
	}

	claimID := ""
	if r.Store != nil {
		extractor := r.ExtractKey
		if extractor == nil {
			extractor = DefaultIdempotencyKeyExtractor
		}
		key, err := extractor(req)
		if err != nil {
			key = derivedKey(payload)
		}
		if key == "" {
			return core.InboundResult{}, inboundBadInput("inbound: idempotency key is required", map[string]any{
				"source_id": req.SourceID,
			})
		}
		var accepted bool
		claimID, accepted, err = r.Store.Claim(ctx, req.SourceID+":"+key, r.keyTTL())
		if err != nil {
			return core.InboundResult{}, inboundWrapError(
				err,
				goerrors.CategoryOperation,
				"inbound: idempotency claim failed",
				http.StatusInternalServerError,
				core.SyncErrorOperationFailed,
				map[string]any{"source_id": req.SourceID, "idempotency": key},
			)
		}
		if !accepted {
			return core.InboundResult{
				Accepted:   true,
				StatusCode: http.StatusOK,
				Metadata: map[string]any{
					"source_id": req.SourceID,
					"deduped":   true,
				},
			}, nil
		}
	}

	outcome, err := r.Processor.ProcessEvent(ctx, core.ProcessEventRequest{
		Payload:  payload,
		TraceID:  req.TraceID,
		Metadata: req.Metadata,
	})
	if err != nil {
		if r.Store != nil && claimID != "" {
			if failErr := r.Store.Fail(ctx, claimID, err, time.Time{}); failErr != nil {
				return core.InboundResult{}, inboundWrapError(
					failErr,
					goerrors.CategoryOperation,
					"inbound: release idempotency claim",
					http.StatusInternalServerError,
					core.SyncErrorInternal,
					map[string]any{"source_id": req.SourceID, "claim_id": claimID},
				)
			}
		}
		return core.InboundResult{}, err
	}

	if r.Store != nil && claimID != "" {
		if err := r.Store.Complete(ctx, claimID); err != nil {
			return core.InboundResult{}, inboundWrapError(
				err,
				goerrors.CategoryOperation,
				"inbound: complete idempotency claim",
				http.StatusInternalServerError,
				core.SyncErrorOperationFailed,
				map[string]any{"source_id": req.SourceID, "claim_id": claimID},
			)
		}
	}

	return core.InboundResult{
		Accepted:   true,
		StatusCode: http.StatusOK,
		Outcome:    outcome,
		Metadata: map[string]any{
			"source_id": req.SourceID,
			"operation": outcome.Operation,
		},
	}, nil
}

func (r *Receiver) resolvePayload(req core.InboundRequest) (map[string]any, error) {
	if len(req.Payload) > 0 {
		return req.Payload, nil
	}
	if len(req.Body) == 0 {
		return nil, inboundBadInput("inbound: request carries no payload", map[string]any{
			"source_id": req.SourceID,
		})
	}
	payload := map[string]any{}
	if err := json.Unmarshal(req.Body, &payload); err != nil {
		return nil, inboundWrapError(
			err,
			goerrors.CategoryBadInput,
			"inbound: decode request body",
			http.StatusBadRequest,
			core.SyncErrorBadInput,
			map[string]any{"source_id": req.SourceID},
		)
	}
	return payload, nil
}

// DefaultIdempotencyKeyExtractor reads the delivery identity from request
// metadata first, then headers.
func DefaultIdempotencyKeyExtractor(req core.InboundRequest) (string, error) {
	if req.Metadata != nil {
		for _, field := range []string{"idempotency_key", "delivery_id", "message_id"} {
			if value := trimAny(req.Metadata[field]); value != "" {
				return value, nil
			}
		}
	}
	for _, header := range []string{"idempotency-key", "x-idempotency-key", "x-delivery-id"} {
		if value := headerValue(req.Headers, header); value != "" {
			return value, nil
		}
	}
	return "", inboundBadInput("inbound: idempotency key is required", map[string]any{
		"source_id": req.SourceID,
	})
}

// derivedKey is the fallback identity for sources that send no delivery
// id: the proposal plus event kind. Coarser than a delivery id, so two
// distinct same-kind events inside one lease window dedupe together.
func derivedKey(payload map[string]any) string {
	proposalID := trimAny(payload["proposalId"])
	if proposalID == "" {
		return ""
	}
	kind := trimAny(payload["kind"])
	if kind == "" {
		kind = trimAny(payload["action"])
	}
	if kind == "" {
		return proposalID
	}
	return proposalID + ":" + strings.ToLower(kind)
}

func (r *Receiver) keyTTL() time.Duration {
	if r != nil && r.KeyTTL > 0 {
		return r.KeyTTL
	}
	return 10 * time.Minute
}

// SharedSecretVerifier accepts requests whose configured header carries
// the expected token.
type SharedSecretVerifier struct {
	Header string
	Secret string
}

func (v SharedSecretVerifier) Verify(_ context.Context, req core.InboundRequest) error {
	header := v.Header
	if header == "" {
		header = "x-sync-token"
	}
	if v.Secret == "" {
		return nil
	}
	if headerValue(req.Headers, header) != v.Secret {
		return fmt.Errorf("inbound: token mismatch on header %q", header)
	}
	return nil
}

func trimAny(value any) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

func headerValue(headers map[string]string, key string) string {
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), key) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

var _ Verifier = SharedSecretVerifier{}
