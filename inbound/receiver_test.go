package inbound

import (
	"context"
	"fmt"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-proposal-sync/core"
)

func deliveryRequest(deliveryID string) core.InboundRequest {
	return core.InboundRequest{
		SourceID: "proposals",
		Payload: map[string]any{
			"kind":       "Updated",
			"proposalId": "P-1",
		},
		Metadata: map[string]any{"delivery_id": deliveryID},
	}
}

func TestReceive_ProcessesAndCompletesClaim(t *testing.T) {
	processor := &stubProcessor{outcome: core.SyncOutcome{
		Success:          true,
		ExternalRecordID: "rec-1",
		Operation:        core.OperationUpdated,
	}}
	receiver := NewReceiver(processor, NewInMemoryClaimStore())

	result, err := receiver.Receive(context.Background(), deliveryRequest("d-1"))
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if !result.Accepted || result.StatusCode != 200 {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Outcome.ExternalRecordID != "rec-1" {
		t.Fatalf("expected pipeline outcome, got %+v", result.Outcome)
	}
	if processor.calls != 1 {
		t.Fatalf("expected one pipeline run, got %d", processor.calls)
	}
}

func TestReceive_RedeliveryIsAcknowledgedWithoutReprocessing(t *testing.T) {
	processor := &stubProcessor{outcome: core.SyncOutcome{Success: true}}
	receiver := NewReceiver(processor, NewInMemoryClaimStore())
	ctx := context.Background()

	if _, err := receiver.Receive(ctx, deliveryRequest("d-2")); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	result, err := receiver.Receive(ctx, deliveryRequest("d-2"))
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if !result.Accepted {
		t.Fatalf("redelivery must be acknowledged, got %+v", result)
	}
	if result.Metadata["deduped"] != true {
		t.Fatalf("expected dedupe marker, got %v", result.Metadata)
	}
	if processor.calls != 1 {
		t.Fatalf("expected one pipeline run, got %d", processor.calls)
	}
}

func TestReceive_FailureReleasesClaimForRetry(t *testing.T) {
	processor := &stubProcessor{err: fmt.Errorf("engine exploded")}
	receiver := NewReceiver(processor, NewInMemoryClaimStore())
	ctx := context.Background()

	if _, err := receiver.Receive(ctx, deliveryRequest("d-3")); err == nil {
		t.Fatalf("expected processing failure to surface")
	}

	processor.err = nil
	processor.outcome = core.SyncOutcome{Success: true}
	result, err := receiver.Receive(ctx, deliveryRequest("d-3"))
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if result.Metadata["deduped"] == true {
		t.Fatalf("retry after failure must reprocess, got %v", result.Metadata)
	}
	if processor.calls != 2 {
		t.Fatalf("expected two pipeline runs, got %d", processor.calls)
	}
}

func TestReceive_VerifierRejectionIsUnauthorized(t *testing.T) {
	processor := &stubProcessor{}
	receiver := NewReceiver(processor, NewInMemoryClaimStore())
	receiver.Verifier = SharedSecretVerifier{Secret: "expected"}

	req := deliveryRequest("d-4")
	req.Headers = map[string]string{"x-sync-token": "wrong"}

	result, err := receiver.Receive(context.Background(), req)
	if err == nil {
		t.Fatalf("expected verification failure")
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected rich error, got %T", err)
	}
	if rich.Code != 401 || rich.TextCode != core.SyncErrorUnauthorized {
		t.Fatalf("unexpected error shape: code=%d text=%q", rich.Code, rich.TextCode)
	}
	if result.StatusCode != 401 || result.Accepted {
		t.Fatalf("unexpected result %+v", result)
	}
	if processor.calls != 0 {
		t.Fatalf("rejected request must not reach the pipeline")
	}
}

func TestReceive_SharedSecretAcceptsMatchingToken(t *testing.T) {
	processor := &stubProcessor{outcome: core.SyncOutcome{Success: true}}
	receiver := NewReceiver(processor, NewInMemoryClaimStore())
	receiver.Verifier = SharedSecretVerifier{Secret: "expected"}

	req := deliveryRequest("d-5")
	req.Headers = map[string]string{"X-Sync-Token": "expected"}

	if _, err := receiver.Receive(context.Background(), req); err != nil {
		t.Fatalf("receive: %v", err)
	}
	if processor.calls != 1 {
		t.Fatalf("expected pipeline run, got %d", processor.calls)
	}
}

func TestReceive_BodyIsDecodedWhenPayloadAbsent(t *testing.T) {
	processor := &stubProcessor{outcome: core.SyncOutcome{Success: true}}
	receiver := NewReceiver(processor, NewInMemoryClaimStore())

	result, err := receiver.Receive(context.Background(), core.InboundRequest{
		SourceID: "proposals",
		Body:     []byte(`{"kind":"Updated","proposalId":"P-9"}`),
		Metadata: map[string]any{"delivery_id": "d-6"},
	})
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if !result.Accepted {
		t.Fatalf("unexpected result %+v", result)
	}
	if processor.lastRequest.Payload["proposalId"] != "P-9" {
		t.Fatalf("expected decoded payload, got %v", processor.lastRequest.Payload)
	}
}

func TestReceive_MalformedBodyIsBadInput(t *testing.T) {
	receiver := NewReceiver(&stubProcessor{}, NewInMemoryClaimStore())

	_, err := receiver.Receive(context.Background(), core.InboundRequest{
		SourceID: "proposals",
		Body:     []byte(`{"kind":`),
	})
	if err == nil {
		t.Fatalf("expected decode failure")
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected rich error, got %T", err)
	}
	if rich.TextCode != core.SyncErrorBadInput {
		t.Fatalf("expected %q, got %q", core.SyncErrorBadInput, rich.TextCode)
	}
}

func TestReceive_MissingSourceIDFails(t *testing.T) {
	receiver := NewReceiver(&stubProcessor{}, NewInMemoryClaimStore())

	_, err := receiver.Receive(context.Background(), core.InboundRequest{
		Payload: map[string]any{"kind": "Updated", "proposalId": "P-1"},
	})
	if err == nil {
		t.Fatalf("expected missing source id to fail")
	}
}

func TestReceive_DerivedKeyDedupesByProposalAndKind(t *testing.T) {
	processor := &stubProcessor{outcome: core.SyncOutcome{Success: true}}
	receiver := NewReceiver(processor, NewInMemoryClaimStore())
	ctx := context.Background()

	// No delivery id anywhere: identity falls back to proposal plus kind.
	req := core.InboundRequest{
		SourceID: "proposals",
		Payload:  map[string]any{"kind": "Updated", "proposalId": "P-7"},
	}
	if _, err := receiver.Receive(ctx, req); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	result, err := receiver.Receive(ctx, req)
	if err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	if result.Metadata["deduped"] != true {
		t.Fatalf("expected derived-key dedupe, got %v", result.Metadata)
	}
	if processor.calls != 1 {
		t.Fatalf("expected one pipeline run, got %d", processor.calls)
	}
}

func TestDefaultIdempotencyKeyExtractor_MetadataBeforeHeaders(t *testing.T) {
	key, err := DefaultIdempotencyKeyExtractor(core.InboundRequest{
		Metadata: map[string]any{"delivery_id": "meta-1"},
		Headers:  map[string]string{"Idempotency-Key": "header-1"},
	})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if key != "meta-1" {
		t.Fatalf("expected metadata to win, got %q", key)
	}

	key, err = DefaultIdempotencyKeyExtractor(core.InboundRequest{
		Headers: map[string]string{"X-Delivery-Id": "header-2"},
	})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if key != "header-2" {
		t.Fatalf("expected header fallback, got %q", key)
	}
}

func TestClaimStore_LeaseExpiryAllowsReclaim(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	store := NewInMemoryClaimStore()
	store.Now = func() time.Time { return now }
	ctx := context.Background()

	claimID, accepted, err := store.Claim(ctx, "proposals:P-1", time.Minute)
	if err != nil || !accepted {
		t.Fatalf("claim: accepted=%v err=%v", accepted, err)
	}
	if err := store.Complete(ctx, claimID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	if _, accepted, _ := store.Claim(ctx, "proposals:P-1", time.Minute); accepted {
		t.Fatalf("completed key inside lease must not be reclaimable")
	}

	store.Now = func() time.Time { return now.Add(2 * time.Minute) }
	if _, accepted, _ := store.Claim(ctx, "proposals:P-1", time.Minute); !accepted {
		t.Fatalf("expired lease must be reclaimable")
	}
}

func TestClaimStore_FailWithRetryAtBlocksUntilDue(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	store := NewInMemoryClaimStore()
	store.Now = func() time.Time { return now }
	ctx := context.Background()

	claimID, _, err := store.Claim(ctx, "proposals:P-2", time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := store.Fail(ctx, claimID, fmt.Errorf("boom"), now.Add(30*time.Second)); err != nil {
		t.Fatalf("fail: %v", err)
	}

	if _, accepted, _ := store.Claim(ctx, "proposals:P-2", time.Minute); accepted {
		t.Fatalf("failed key before retry time must not be claimable")
	}

	store.Now = func() time.Time { return now.Add(time.Minute) }
	if _, accepted, _ := store.Claim(ctx, "proposals:P-2", time.Minute); !accepted {
		t.Fatalf("failed key past retry time must be claimable")
	}
}

type stubProcessor struct {
	outcome     core.SyncOutcome
	err         error
	calls       int
	lastRequest core.ProcessEventRequest
}

func (p *stubProcessor) ProcessEvent(ctx context.Context, req core.ProcessEventRequest) (core.SyncOutcome, error) {
	p.calls++
	p.lastRequest = req
	if p.err != nil {
		return core.SyncOutcome{}, p.err
	}
	return p.outcome, nil
}

var _ EventProcessor = (*stubProcessor)(nil)
