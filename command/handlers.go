// Package command exposes the service's mutating operations as go-command
// message handlers so callers can route them through a dispatcher or bus.
package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-proposal-sync/core"
)

type MutatingService interface {
	ProcessEvent(ctx context.Context, req core.ProcessEventRequest) (core.SyncOutcome, error)
}

type RemoteConnector interface {
	Connect(ctx context.Context) (core.SessionInfo, error)
}

type ProcessEventCommand struct {
	service MutatingService
}

func NewProcessEventCommand(service MutatingService) *ProcessEventCommand {
	return &ProcessEventCommand{service: service}
}

func (c *ProcessEventCommand) Execute(ctx context.Context, msg ProcessEventMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: event service is required")
	}
	out, err := c.service.ProcessEvent(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ConnectRemoteCommand struct {
	connector RemoteConnector
}

func NewConnectRemoteCommand(connector RemoteConnector) *ConnectRemoteCommand {
	return &ConnectRemoteCommand{connector: connector}
}

func (c *ConnectRemoteCommand) Execute(ctx context.Context, msg ConnectRemoteMessage) error {
	if c == nil || c.connector == nil {
		return commandDependencyError("command: remote connector is required")
	}
	out, err := c.connector.Connect(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
