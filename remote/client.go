// Package remote implements the record store client: session lifecycle,
// bounded reconnect with backoff, rate-limit cooperation, and the
// lookup/create/update primitives keyed by external id.
package remote

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-proposal-sync/core"
)

// Client adapts a Transport into the store contract the sync engine
// consumes. The session is an explicit resource owned by the client, one
// live session at most, guarded by a mutex so concurrent operations do not
// race to reconnect.
type Client struct {
	transport Transport
	config    core.RemoteConfig
	logger    core.Logger
	policy    core.RateLimitPolicy
	policyKey core.RateLimitKey
	sleep     func(ctx context.Context, d time.Duration) error

	mu      gosync.Mutex
	session *core.SessionInfo
}

type ClientOption func(*Client)

func WithLogger(logger core.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRateLimitPolicy installs a throttle policy consulted before every
// transport call and fed the provider response after it.
func WithRateLimitPolicy(policy core.RateLimitPolicy, key core.RateLimitKey) ClientOption {
	return func(c *Client) {
		c.policy = policy
		c.policyKey = key
	}
}

func NewClient(transport Transport, config core.RemoteConfig, options ...ClientOption) *Client {
	client := &Client{
		transport: transport,
		config:    config,
		logger:    glog.Nop(),
		sleep:     sleepContext,
	}
	for _, option := range options {
		if option != nil {
			option(client)
		}
	}
	return client
}

// Connect establishes the shared session if none is live. It is idempotent
// and retries internally up to the configured bound, backing off
// exponentially on connectivity failures and with a larger attempt-scaled
// delay on throttling. After exhausting retries it fails permanently.
func (c *Client) Connect(ctx context.Context) (core.SessionInfo, error) {
	if c == nil || c.transport == nil {
		return core.SessionInfo{}, fmt.Errorf("remote: client requires a transport")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *Client) connectLocked(ctx context.Context) (core.SessionInfo, error) {
	if c.session != nil {
		return *c.session, nil
	}

	attempts := c.config.MaxConnectAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		session, err := c.transport.Open(ctx)
		if err == nil {
			session.Attempts = attempt
			c.session = &session
			c.logger.Info("remote session established",
				"session_id", session.SessionID,
				"attempt", attempt,
			)
			return session, nil
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		delay := c.connectDelay(attempt, err)
		c.logger.Info("remote connect failed, retrying",
			"attempt", attempt,
			"delay", delay.String(),
			"error", err.Error(),
		)
		if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
			return core.SessionInfo{}, ConnectivityError("remote: connect aborted", sleepErr)
		}
	}
	return core.SessionInfo{}, ConnectivityError(
		fmt.Sprintf("remote: connect failed after %d attempts", attempts),
		lastErr,
	)
}

// connectDelay picks the backoff for the next connect attempt. Throttling
// gets attempt-scaled delays under a higher ceiling than plain
// connectivity failures.
func (c *Client) connectDelay(attempt int, err error) time.Duration {
	base := c.config.ConnectDelay
	if base <= 0 {
		base = 2 * time.Second
	}
	if IsRateLimited(err) {
		ceiling := c.config.RateLimitCeiling
		if ceiling <= 0 {
			ceiling = 2 * time.Minute
		}
		delay := base * time.Duration(attempt*2)
		if hint := RetryAfterHint(err); hint > delay {
			delay = hint
		}
		if delay > ceiling {
			delay = ceiling
		}
		return delay
	}
	ceiling := c.config.ConnectCeiling
	if ceiling <= 0 {
		ceiling = 30 * time.Second
	}
	delay := base << (attempt - 1)
	if delay > ceiling {
		delay = ceiling
	}
	return delay
}

func (c *Client) FindByExternalID(ctx context.Context, externalID string) (*core.RemoteRecord, error) {
	var found *core.RemoteRecord
	err := c.call(ctx, "find", func(session core.SessionInfo) (core.ProviderResponseMeta, error) {
		record, meta, err := c.transport.Find(ctx, session, externalID)
		found = record
		return meta, err
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (c *Client) Create(ctx context.Context, fields core.RemoteFields) (core.RemoteRef, error) {
	var ref core.RemoteRef
	err := c.call(ctx, "create", func(session core.SessionInfo) (core.ProviderResponseMeta, error) {
		created, meta, err := c.transport.Insert(ctx, session, fields)
		ref = created
		return meta, err
	})
	if err != nil {
		return core.RemoteRef{}, err
	}
	return ref, nil
}

func (c *Client) UpdateByID(ctx context.Context, id string, fields core.RemoteFields) (core.RemoteRef, error) {
	var ref core.RemoteRef
	err := c.call(ctx, "update", func(session core.SessionInfo) (core.ProviderResponseMeta, error) {
		updated, meta, err := c.transport.Update(ctx, session, id, fields)
		ref = updated
		return meta, err
	})
	if err != nil {
		return core.RemoteRef{}, err
	}
	return ref, nil
}

// call runs one logical operation against a live session. On a dead
// session (auth or connectivity failure) the client discards the session,
// reconnects once and replays the single in-flight operation; all other
// failures propagate typed to the caller.
func (c *Client) call(ctx context.Context, op string, fn func(session core.SessionInfo) (core.ProviderResponseMeta, error)) error {
	if c == nil || c.transport == nil {
		return fmt.Errorf("remote: client requires a transport")
	}

	session, err := c.Connect(ctx)
	if err != nil {
		return err
	}

	err = c.invoke(ctx, session, fn)
	if err == nil {
		return nil
	}
	if !IsAuth(err) && !IsConnectivity(err) {
		return err
	}

	c.logger.Info("remote session lost, reconnecting",
		"operation", op,
		"error", err.Error(),
	)
	c.dropSession(session.SessionID)
	session, connectErr := c.Connect(ctx)
	if connectErr != nil {
		return connectErr
	}
	return c.invoke(ctx, session, fn)
}

func (c *Client) invoke(ctx context.Context, session core.SessionInfo, fn func(session core.SessionInfo) (core.ProviderResponseMeta, error)) error {
	if c.policy != nil {
		if err := c.policy.BeforeCall(ctx, c.policyKey); err != nil {
			return err
		}
	}
	meta, err := fn(session)
	if c.policy != nil {
		if afterErr := c.policy.AfterCall(ctx, c.policyKey, meta); afterErr != nil && err == nil {
			err = afterErr
		}
	}
	return err
}

// dropSession forgets the session only if it is still the one the failed
// call used; a concurrent caller may already have reconnected.
func (c *Client) dropSession(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil && c.session.SessionID == sessionID {
		c.session = nil
	}
}

// Session reports the live session, if any.
func (c *Client) Session() *core.SessionInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	session := *c.session
	return &session
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ core.RemoteStore = (*Client)(nil)
