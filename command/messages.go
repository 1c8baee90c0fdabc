package command

import (
	"github.com/goliatone/go-proposal-sync/core"
)

const (
	TypeProcessEvent  = "proposalsync.command.event.process"
	TypeConnectRemote = "proposalsync.command.remote.connect"
)

type ProcessEventMessage struct {
	Request core.ProcessEventRequest
}

func (ProcessEventMessage) Type() string { return TypeProcessEvent }

func (m ProcessEventMessage) Validate() error {
	if len(m.Request.Payload) == 0 {
		return commandValidationError("payload", "event payload is required")
	}
	return nil
}

// ConnectRemoteMessage warms the remote session ahead of traffic.
type ConnectRemoteMessage struct{}

func (ConnectRemoteMessage) Type() string { return TypeConnectRemote }

func (ConnectRemoteMessage) Validate() error { return nil }
