package remote

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"github.com/goliatone/go-proposal-sync/core"
)

// Transport is the wire-level contract a concrete CRM integration
// implements. The Client owns session lifecycle and retries; a Transport
// only speaks the provider protocol and reports categorized errors.
type Transport interface {
	Open(ctx context.Context) (core.SessionInfo, error)
	Find(ctx context.Context, session core.SessionInfo, externalID string) (*core.RemoteRecord, core.ProviderResponseMeta, error)
	Insert(ctx context.Context, session core.SessionInfo, fields core.RemoteFields) (core.RemoteRef, core.ProviderResponseMeta, error)
	Update(ctx context.Context, session core.SessionInfo, recordID string, fields core.RemoteFields) (core.RemoteRef, core.ProviderResponseMeta, error)
}

// MemoryTransport is a process-local CRM with the same contract surface as
// a real provider: external-id uniqueness, session validity checks, and an
// optional fault hook. It backs local development and the engine test
// suites.
type MemoryTransport struct {
	mu        gosync.Mutex
	records   map[string]*core.RemoteRecord
	byExtID   map[string]string
	session   string
	sessions  int
	nextID    int
	now       func() time.Time

	// Fail, when set, runs before every call with the operation name
	// (open, find, insert, update) and aborts the call when it returns an
	// error. Tests use it to inject provider failures.
	Fail func(op string) error
}

func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{
		records: map[string]*core.RemoteRecord{},
		byExtID: map[string]string{},
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (t *MemoryTransport) Open(ctx context.Context) (core.SessionInfo, error) {
	if err := t.failFor("open"); err != nil {
		return core.SessionInfo{}, err
	}
	if err := ctx.Err(); err != nil {
		return core.SessionInfo{}, ConnectivityError("remote: open aborted", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.session = uuid.NewString()
	t.sessions++
	return core.SessionInfo{
		SessionID:     t.session,
		EstablishedAt: t.now(),
		Attempts:      t.sessions,
	}, nil
}

func (t *MemoryTransport) Find(ctx context.Context, session core.SessionInfo, externalID string) (*core.RemoteRecord, core.ProviderResponseMeta, error) {
	if err := t.failFor("find"); err != nil {
		return nil, metaFor(err), err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkSession(session); err != nil {
		return nil, metaFor(err), err
	}
	recordID, ok := t.byExtID[externalID]
	if !ok {
		return nil, okMeta(), nil
	}
	record := *t.records[recordID]
	return &record, okMeta(), nil
}

func (t *MemoryTransport) Insert(ctx context.Context, session core.SessionInfo, fields core.RemoteFields) (core.RemoteRef, core.ProviderResponseMeta, error) {
	if err := t.failFor("insert"); err != nil {
		return core.RemoteRef{}, metaFor(err), err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkSession(session); err != nil {
		return core.RemoteRef{}, metaFor(err), err
	}
	externalID, _ := fields[core.FieldExternalID].(string)
	if externalID == "" {
		err := ValidationError("remote: insert requires an external id field")
		return core.RemoteRef{}, metaFor(err), err
	}
	if _, exists := t.byExtID[externalID]; exists {
		err := DuplicateError(externalID)
		return core.RemoteRef{}, metaFor(err), err
	}
	t.nextID++
	record := &core.RemoteRecord{ID: fmt.Sprintf("rec-%06d", t.nextID)}
	applyFields(record, fields)
	t.records[record.ID] = record
	t.byExtID[externalID] = record.ID
	return core.RemoteRef{ID: record.ID}, okMeta(), nil
}

func (t *MemoryTransport) Update(ctx context.Context, session core.SessionInfo, recordID string, fields core.RemoteFields) (core.RemoteRef, core.ProviderResponseMeta, error) {
	if err := t.failFor("update"); err != nil {
		return core.RemoteRef{}, metaFor(err), err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkSession(session); err != nil {
		return core.RemoteRef{}, metaFor(err), err
	}
	record, ok := t.records[recordID]
	if !ok {
		err := UnknownError(fmt.Sprintf("remote: no record %q", recordID), nil)
		return core.RemoteRef{}, metaFor(err), err
	}
	applyFields(record, fields)
	return core.RemoteRef{ID: record.ID}, okMeta(), nil
}

// Record returns a copy of the stored record for an external id, or nil.
// Test helper; not part of the Transport contract.
func (t *MemoryTransport) Record(externalID string) *core.RemoteRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	recordID, ok := t.byExtID[externalID]
	if !ok {
		return nil
	}
	record := *t.records[recordID]
	return &record
}

// Count reports how many records the store holds.
func (t *MemoryTransport) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

// ExpireSession invalidates the live session so the next call fails auth,
// forcing the client through its reconnect path.
func (t *MemoryTransport) ExpireSession() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.session = ""
}

func (t *MemoryTransport) checkSession(session core.SessionInfo) error {
	if t.session == "" || session.SessionID != t.session {
		return AuthError("remote: session is not valid")
	}
	return nil
}

func (t *MemoryTransport) failFor(op string) error {
	if t.Fail == nil {
		return nil
	}
	return t.Fail(op)
}

func applyFields(record *core.RemoteRecord, fields core.RemoteFields) {
	for key, value := range fields {
		switch key {
		case core.FieldExternalID:
			record.ExternalID, _ = value.(string)
		case core.FieldName:
			record.Name, _ = value.(string)
		case core.FieldAmount:
			record.Amount = numberField(value)
		case core.FieldStage:
			record.Stage, _ = value.(string)
		case core.FieldCloseDate:
			record.CloseDate, _ = value.(string)
		case core.FieldDescription:
			record.Description, _ = value.(string)
		case core.FieldProbability:
			record.Probability = int(numberField(value))
		}
	}
}

func numberField(value any) float64 {
	switch typed := value.(type) {
	case float64:
		return typed
	case float32:
		return float64(typed)
	case int:
		return float64(typed)
	case int64:
		return float64(typed)
	default:
		return 0
	}
}

func okMeta() core.ProviderResponseMeta {
	return core.ProviderResponseMeta{StatusCode: 200}
}

func metaFor(err error) core.ProviderResponseMeta {
	return core.ProviderResponseMeta{StatusCode: statusOf(err)}
}

var _ Transport = (*MemoryTransport)(nil)
