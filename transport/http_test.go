package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-proposal-sync/core"
)

func TestEnvelopeFor_RichErrorPassesThrough(t *testing.T) {
	err := goerrors.New("stage is not mapped", goerrors.CategoryValidation).
		WithCode(400).
		WithTextCode(core.SyncErrorUnmappedStage).
		WithMetadata(map[string]any{"stage": "hibernating"})

	envelope := EnvelopeFor(err)
	if envelope.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", envelope.StatusCode)
	}
	if envelope.TextCode != core.SyncErrorUnmappedStage {
		t.Fatalf("expected unmapped stage code, got %q", envelope.TextCode)
	}
	if envelope.Metadata["stage"] != "hibernating" {
		t.Fatalf("expected metadata carried, got %v", envelope.Metadata)
	}
	if !envelope.IsClientError() {
		t.Fatalf("validation failure blames the caller")
	}
}

func TestEnvelopeFor_PlainErrorGetsCategorized(t *testing.T) {
	envelope := EnvelopeFor(fmt.Errorf("something broke downstream"))
	if envelope.StatusCode == 0 || envelope.TextCode == "" || envelope.Category == "" {
		t.Fatalf("expected fully populated envelope, got %+v", envelope)
	}
	if envelope.Message == "" {
		t.Fatalf("expected a message, got %+v", envelope)
	}
}

func TestEnvelopeFor_StatusFallsBackToCategory(t *testing.T) {
	err := goerrors.New("throttled", goerrors.CategoryRateLimit)
	envelope := EnvelopeFor(err)
	if envelope.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 from category, got %d", envelope.StatusCode)
	}
}

func TestHandleEvent_AcceptsDelivery(t *testing.T) {
	receiver := &stubReceiver{result: core.InboundResult{
		Accepted:   true,
		StatusCode: http.StatusOK,
		Outcome:    core.SyncOutcome{Success: true, Operation: core.OperationCreated},
	}}
	server := NewServer(receiver, &stubService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/events",
		strings.NewReader(`{"kind":"Created","proposalId":"P-1"}`))
	req.Header.Set("x-source-id", "proposals")
	req.Header.Set("x-trace-id", "trace-9")
	recorder := httptest.NewRecorder()

	server.Handler().ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if receiver.lastRequest.SourceID != "proposals" {
		t.Fatalf("expected source header forwarded, got %q", receiver.lastRequest.SourceID)
	}
	if receiver.lastRequest.TraceID != "trace-9" {
		t.Fatalf("expected trace header forwarded, got %q", receiver.lastRequest.TraceID)
	}

	var response map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if response["accepted"] != true {
		t.Fatalf("unexpected response %v", response)
	}
}

func TestHandleEvent_DefaultsSourceID(t *testing.T) {
	receiver := &stubReceiver{result: core.InboundResult{Accepted: true}}
	server := NewServer(receiver, &stubService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/events", strings.NewReader(`{}`))
	server.Handler().ServeHTTP(httptest.NewRecorder(), req)

	if receiver.lastRequest.SourceID != "default" {
		t.Fatalf("expected default source id, got %q", receiver.lastRequest.SourceID)
	}
}

func TestHandleEvent_ErrorBecomesEnvelope(t *testing.T) {
	receiver := &stubReceiver{err: goerrors.New("bad delivery", goerrors.CategoryBadInput).
		WithCode(400).
		WithTextCode(core.SyncErrorBadInput)}
	server := NewServer(receiver, &stubService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/events", strings.NewReader(`{}`))
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, req)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
	var response errorResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if response.Error.TextCode != core.SyncErrorBadInput {
		t.Fatalf("unexpected envelope %+v", response.Error)
	}
}

func TestHandleEvent_OversizedBodyRejected(t *testing.T) {
	server := NewServer(&stubReceiver{}, &stubService{}, nil)

	body := strings.NewReader(strings.Repeat("x", int(maxEventBodyBytes)+1))
	req := httptest.NewRequest(http.MethodPost, "/v1/events", body)
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, req)

	if recorder.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", recorder.Code)
	}
}

func TestHandleStages_ReturnsSummary(t *testing.T) {
	service := &stubService{summary: core.MappingSummary{
		Total: 2,
		Table: map[string]string{"won": "Closed Won", "lost": "Closed Lost"},
	}}
	server := NewServer(&stubReceiver{}, service, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/stages", nil)
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var summary core.MappingSummary
	if err := json.Unmarshal(recorder.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.Total != 2 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestHandleActivity_ForwardsFilter(t *testing.T) {
	service := &stubService{page: core.ActivityPage{Total: 1, Page: 2, PerPage: 10}}
	server := NewServer(&stubReceiver{}, service, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/activity?proposal_id=P-1&status=error&page=2&per_page=10", nil)
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	filter := service.lastFilter
	if filter.ProposalID != "P-1" || filter.Status != "error" || filter.Page != 2 || filter.PerPage != 10 {
		t.Fatalf("unexpected filter %+v", filter)
	}
}

type stubReceiver struct {
	result      core.InboundResult
	err         error
	lastRequest core.InboundRequest
}

func (r *stubReceiver) Receive(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	r.lastRequest = req
	if r.err != nil {
		return core.InboundResult{}, r.err
	}
	return r.result, nil
}

type stubService struct {
	summary    core.MappingSummary
	page       core.ActivityPage
	lastFilter core.ActivityFilter
}

func (s *stubService) MappingSummary() (core.MappingSummary, error) {
	return s.summary, nil
}

func (s *stubService) ListActivity(ctx context.Context, filter core.ActivityFilter) (core.ActivityPage, error) {
	s.lastFilter = filter
	return s.page, nil
}

var (
	_ EventReceiver = (*stubReceiver)(nil)
	_ ServiceAPI    = (*stubService)(nil)
)
