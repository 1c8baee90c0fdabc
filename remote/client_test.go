package remote

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/goliatone/go-proposal-sync/core"
)

func testConfig() core.RemoteConfig {
	return core.RemoteConfig{
		MaxConnectAttempts: 3,
		ConnectDelay:       time.Millisecond,
		ConnectCeiling:     10 * time.Millisecond,
		RateLimitCeiling:   20 * time.Millisecond,
	}
}

func newInstantClient(transport Transport, config core.RemoteConfig, options ...ClientOption) *Client {
	client := NewClient(transport, config, options...)
	client.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return client
}

func TestConnect_RetriesThenSucceeds(t *testing.T) {
	transport := NewMemoryTransport()
	failures := 2
	transport.Fail = func(op string) error {
		if op == "open" && failures > 0 {
			failures--
			return ConnectivityError("remote: provider down", nil)
		}
		return nil
	}
	client := newInstantClient(transport, testConfig())

	session, err := client.Connect(context.Background())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if session.Attempts != 3 {
		t.Fatalf("expected success on attempt 3, got %d", session.Attempts)
	}
}

func TestConnect_ReusesLiveSession(t *testing.T) {
	transport := NewMemoryTransport()
	client := newInstantClient(transport, testConfig())

	first, err := client.Connect(context.Background())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	second, err := client.Connect(context.Background())
	if err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if first.SessionID != second.SessionID {
		t.Fatalf("expected the same session, got %q then %q", first.SessionID, second.SessionID)
	}
}

func TestConnect_FailsPermanentlyAfterBoundedAttempts(t *testing.T) {
	transport := NewMemoryTransport()
	opens := 0
	transport.Fail = func(op string) error {
		if op == "open" {
			opens++
			return ConnectivityError("remote: provider down", nil)
		}
		return nil
	}
	client := newInstantClient(transport, testConfig())

	_, err := client.Connect(context.Background())
	if err == nil {
		t.Fatalf("expected permanent connect failure")
	}
	if !IsConnectivity(err) {
		t.Fatalf("expected connectivity error, got %v", err)
	}
	if opens != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", opens)
	}
}

func TestConnectDelay_ExponentialUnderCeiling(t *testing.T) {
	client := NewClient(NewMemoryTransport(), core.RemoteConfig{
		ConnectDelay:   time.Second,
		ConnectCeiling: 5 * time.Second,
	})
	cause := ConnectivityError("remote: down", nil)

	if got := client.connectDelay(1, cause); got != time.Second {
		t.Fatalf("attempt 1: expected 1s, got %v", got)
	}
	if got := client.connectDelay(2, cause); got != 2*time.Second {
		t.Fatalf("attempt 2: expected 2s, got %v", got)
	}
	if got := client.connectDelay(4, cause); got != 5*time.Second {
		t.Fatalf("attempt 4: expected ceiling, got %v", got)
	}
}

func TestConnectDelay_RateLimitedScalesHigher(t *testing.T) {
	client := NewClient(NewMemoryTransport(), core.RemoteConfig{
		ConnectDelay:     time.Second,
		ConnectCeiling:   5 * time.Second,
		RateLimitCeiling: time.Minute,
	})
	throttled := RateLimitError("remote: throttled", 10*time.Second)

	if got := client.connectDelay(1, throttled); got != 10*time.Second {
		t.Fatalf("expected retry-after hint to win, got %v", got)
	}

	noHint := RateLimitError("remote: throttled", 0)
	if got := client.connectDelay(3, noHint); got != 6*time.Second {
		t.Fatalf("expected attempt-scaled delay above connect ceiling, got %v", got)
	}
}

func TestClient_CreateFindUpdateRoundTrip(t *testing.T) {
	transport := NewMemoryTransport()
	client := newInstantClient(transport, testConfig())
	ctx := context.Background()

	ref, err := client.Create(ctx, core.RemoteFields{
		core.FieldExternalID: "P-1",
		core.FieldName:       "First",
		core.FieldStage:      "Qualification",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	record, err := client.FindByExternalID(ctx, "P-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if record == nil || record.ID != ref.ID {
		t.Fatalf("expected record %q, got %+v", ref.ID, record)
	}

	if _, err := client.UpdateByID(ctx, ref.ID, core.RemoteFields{core.FieldName: "Renamed"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := transport.Record("P-1"); got == nil || got.Name != "Renamed" {
		t.Fatalf("expected renamed record, got %+v", got)
	}
}

func TestClient_FindMissingReturnsNilWithoutError(t *testing.T) {
	client := newInstantClient(NewMemoryTransport(), testConfig())

	record, err := client.FindByExternalID(context.Background(), "nope")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if record != nil {
		t.Fatalf("expected nil record, got %+v", record)
	}
}

func TestClient_DuplicateInsertSurfacesTyped(t *testing.T) {
	client := newInstantClient(NewMemoryTransport(), testConfig())
	ctx := context.Background()
	fields := core.RemoteFields{core.FieldExternalID: "P-2", core.FieldName: "Dup"}

	if _, err := client.Create(ctx, fields); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := client.Create(ctx, fields)
	if err == nil {
		t.Fatalf("expected duplicate error")
	}
	if !IsDuplicate(err) {
		t.Fatalf("expected duplicate classification, got %v", err)
	}
}

func TestClient_ExpiredSessionReconnectsAndReplays(t *testing.T) {
	transport := NewMemoryTransport()
	client := newInstantClient(transport, testConfig())
	ctx := context.Background()

	if _, err := client.Create(ctx, core.RemoteFields{core.FieldExternalID: "P-3", core.FieldName: "Live"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	before := client.Session()
	transport.ExpireSession()

	record, err := client.FindByExternalID(ctx, "P-3")
	if err != nil {
		t.Fatalf("find after expiry: %v", err)
	}
	if record == nil {
		t.Fatalf("expected replayed find to succeed")
	}
	after := client.Session()
	if before == nil || after == nil || before.SessionID == after.SessionID {
		t.Fatalf("expected a fresh session after expiry")
	}
}

func TestClient_RateLimitPolicyBlocksCall(t *testing.T) {
	transport := NewMemoryTransport()
	policy := &stubPolicy{beforeErr: RateLimitError("remote: cool down", 0)}
	client := newInstantClient(transport, testConfig(),
		WithRateLimitPolicy(policy, core.RateLimitKey{ProviderID: "memory", BucketKey: "records"}),
	)

	_, err := client.FindByExternalID(context.Background(), "P-4")
	if err == nil {
		t.Fatalf("expected throttle to block the call")
	}
	if !IsRateLimited(err) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if policy.after != 0 {
		t.Fatalf("blocked call must not feed AfterCall, got %d", policy.after)
	}
}

func TestClient_PolicySeesProviderResponse(t *testing.T) {
	transport := NewMemoryTransport()
	policy := &stubPolicy{}
	client := newInstantClient(transport, testConfig(),
		WithRateLimitPolicy(policy, core.RateLimitKey{ProviderID: "memory", BucketKey: "records"}),
	)

	if _, err := client.FindByExternalID(context.Background(), "P-5"); err != nil {
		t.Fatalf("find: %v", err)
	}
	if policy.before != 1 || policy.after != 1 {
		t.Fatalf("expected policy consulted once each side, got before=%d after=%d", policy.before, policy.after)
	}
	if policy.lastMeta.StatusCode != 200 {
		t.Fatalf("expected provider status fed to policy, got %d", policy.lastMeta.StatusCode)
	}
}

func TestRetryAfterHint(t *testing.T) {
	hint := 1500 * time.Millisecond
	err := RateLimitError("remote: throttled", hint)
	if got := RetryAfterHint(err); got != hint {
		t.Fatalf("expected %v, got %v", hint, got)
	}
	if got := RetryAfterHint(fmt.Errorf("plain")); got != 0 {
		t.Fatalf("expected zero hint for plain error, got %v", got)
	}
}

type stubPolicy struct {
	beforeErr error
	before    int
	after     int
	lastMeta  core.ProviderResponseMeta
}

func (p *stubPolicy) BeforeCall(ctx context.Context, key core.RateLimitKey) error {
	p.before++
	return p.beforeErr
}

func (p *stubPolicy) AfterCall(ctx context.Context, key core.RateLimitKey, res core.ProviderResponseMeta) error {
	p.after++
	p.lastMeta = res
	return nil
}

var _ core.RateLimitPolicy = (*stubPolicy)(nil)
