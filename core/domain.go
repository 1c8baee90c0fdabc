package core

import (
	"fmt"
	"strings"
	"time"
)

type EventKind string

const (
	EventCreated EventKind = "Created"
	EventUpdated EventKind = "Updated"
	EventDeleted EventKind = "Deleted"
)

func ParseEventKind(raw string) (EventKind, error) {
	switch strings.TrimSpace(raw) {
	case string(EventCreated):
		return EventCreated, nil
	case string(EventUpdated):
		return EventUpdated, nil
	case string(EventDeleted):
		return EventDeleted, nil
	default:
		return "", fmt.Errorf("core: unknown event kind %q", raw)
	}
}

type Money struct {
	Total    float64
	Currency string
}

// CanonicalEvent is the one normalized representation of an inbound
// proposal change, independent of the source payload shape. Events are
// constructed per request, consumed once, and never persisted.
type CanonicalEvent struct {
	Kind        EventKind
	ProposalID  string
	Title       string
	Amount      *Money
	Stage       string
	CloseDate   string
	Description string
	Reason      string
	// Source carries unrecognized source fields verbatim for auditing.
	// It never participates in validation or sync decisions.
	Source map[string]any
}

// Remote record field names as the remote store expects them.
const (
	FieldExternalID  = "external_id"
	FieldName        = "name"
	FieldAmount      = "amount"
	FieldStage       = "stage"
	FieldCloseDate   = "close_date"
	FieldDescription = "description"
	FieldProbability = "probability"
)

type RemoteFields map[string]any

type RemoteRecord struct {
	ID          string
	ExternalID  string
	Name        string
	Amount      float64
	Stage       string
	CloseDate   string
	Description string
	Probability int
}

type RemoteRef struct {
	ID string
}

type SessionInfo struct {
	SessionID     string
	EstablishedAt time.Time
	Attempts      int
}

const (
	OperationCreated    = "created"
	OperationUpdated    = "updated"
	OperationClosedLost = "closed_lost"
)

type SyncOutcome struct {
	Success          bool
	ExternalRecordID string
	Operation        string
	Metadata         map[string]any
}

type MappingSummary struct {
	Total        int
	SourceKeys   []string
	TargetStages []string
	ClosedStages []string
	Table        map[string]string
}

type ProcessEventRequest struct {
	Payload  map[string]any
	TraceID  string
	Metadata map[string]any
}

type InboundRequest struct {
	SourceID string
	Body     []byte
	Payload  map[string]any
	Headers  map[string]string
	TraceID  string
	Metadata map[string]any
}

type InboundResult struct {
	Accepted   bool
	StatusCode int
	Outcome    SyncOutcome
	Metadata   map[string]any
}

type ActivityStatus string

const (
	ActivityStatusOK    ActivityStatus = "ok"
	ActivityStatusError ActivityStatus = "error"
)

type ActivityEntry struct {
	ID         string
	ProposalID string
	EventKind  string
	Operation  string
	Status     ActivityStatus
	Error      string
	TraceID    string
	Metadata   map[string]any
	CreatedAt  time.Time
}

type ActivityFilter struct {
	ProposalID string
	Status     string
	Page       int
	PerPage    int
}

type ActivityPage struct {
	Entries []ActivityEntry
	Total   int
	Page    int
	PerPage int
}

// DecodeEvent lifts a canonical payload map into a typed event. The payload
// is expected to have passed schema validation for its kind; decoding is
// still defensive about value types because payloads originate as JSON.
func DecodeEvent(payload map[string]any) (CanonicalEvent, error) {
	if len(payload) == 0 {
		return CanonicalEvent{}, fmt.Errorf("core: event payload is empty")
	}
	kind, err := ParseEventKind(stringValue(payload["kind"]))
	if err != nil {
		return CanonicalEvent{}, err
	}
	event := CanonicalEvent{
		Kind:        kind,
		ProposalID:  stringValue(payload["proposalId"]),
		Title:       stringValue(payload["title"]),
		Stage:       stringValue(payload["stage"]),
		CloseDate:   stringValue(payload["closeDate"]),
		Description: stringValue(payload["description"]),
		Reason:      stringValue(payload["reason"]),
	}
	if event.ProposalID == "" {
		return CanonicalEvent{}, fmt.Errorf("core: event proposal id is required")
	}
	if raw, ok := payload["amount"].(map[string]any); ok {
		total, totalOK := numberValue(raw["total"])
		if totalOK {
			event.Amount = &Money{
				Total:    total,
				Currency: stringValue(raw["currency"]),
			}
		}
	}
	if raw, ok := payload["source"].(map[string]any); ok && len(raw) > 0 {
		source := make(map[string]any, len(raw))
		for key, value := range raw {
			source[key] = value
		}
		event.Source = source
	}
	return event, nil
}

func stringValue(value any) string {
	if value == nil {
		return ""
	}
	if text, ok := value.(string); ok {
		return strings.TrimSpace(text)
	}
	return ""
}

func numberValue(value any) (float64, bool) {
	switch typed := value.(type) {
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	case int:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case interface{ Float64() (float64, error) }:
		parsed, err := typed.Float64()
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}
