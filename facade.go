package proposalsync

import (
	"fmt"
	"time"

	"github.com/goliatone/go-proposal-sync/adapter"
	synccommand "github.com/goliatone/go-proposal-sync/command"
	"github.com/goliatone/go-proposal-sync/core"
	"github.com/goliatone/go-proposal-sync/inbound"
	syncquery "github.com/goliatone/go-proposal-sync/query"
	"github.com/goliatone/go-proposal-sync/ratelimit"
	"github.com/goliatone/go-proposal-sync/remote"
	"github.com/goliatone/go-proposal-sync/stages"
	syncengine "github.com/goliatone/go-proposal-sync/sync"
	"github.com/goliatone/go-proposal-sync/validate"
)

// CommandQueryService is the surface the facade routes commands and
// queries through; *core.Service satisfies it.
type CommandQueryService interface {
	synccommand.MutatingService
	syncquery.MappingReader
	syncquery.ActivityReader
}

type Commands struct {
	ProcessEvent  *synccommand.ProcessEventCommand
	ConnectRemote *synccommand.ConnectRemoteCommand
}

type Queries struct {
	MappingSummary *syncquery.MappingSummaryQuery
	ListActivity   *syncquery.ListActivityQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	connector synccommand.RemoteConnector
}

// WithRemoteConnector overrides the connector the connect command warms.
func WithRemoteConnector(connector synccommand.RemoteConnector) FacadeOption {
	return func(options *facadeOptions) {
		options.connector = connector
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("proposalsync: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	connector := cfg.connector
	if connector == nil {
		connector = resolveRemoteConnector(service)
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		ProcessEvent:  synccommand.NewProcessEventCommand(service),
		ConnectRemote: synccommand.NewConnectRemoteCommand(connector),
	}
	facade.queries = Queries{
		MappingSummary: syncquery.NewMappingSummaryQuery(service),
		ListActivity:   syncquery.NewListActivityQuery(service),
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

func resolveRemoteConnector(service CommandQueryService) synccommand.RemoteConnector {
	if connector, ok := service.(synccommand.RemoteConnector); ok {
		return connector
	}
	provider, ok := service.(interface {
		Dependencies() core.ServiceDependencies
	})
	if !ok {
		return nil
	}
	deps := provider.Dependencies()
	if deps.RemoteStore == nil {
		return nil
	}
	return deps.RemoteStore
}

// SetupWithDefaults builds a fully wired service: shape-sniffing
// normalizer, schema validator, stage mapping, memory-backed remote
// client behind an adaptive throttle policy, and the sync engine. Options
// override any piece, so callers swap the memory transport for a real one
// by passing WithRemoteStore.
func SetupWithDefaults(cfg Config, opts ...Option) (*Service, error) {
	validator, err := validate.New()
	if err != nil {
		return nil, err
	}

	normalizer := adapter.New(adapter.Config{
		HourlyRate:     cfg.Adapter.HourlyRate,
		FallbackAmount: cfg.Adapter.FallbackAmount,
		CloseDays:      cfg.Adapter.DefaultCloseDays,
	})

	policy := ratelimit.NewAdaptivePolicy(ratelimit.NewMemoryStateStore())
	client := remote.NewClient(
		remote.NewMemoryTransport(),
		cfg.Remote,
		remote.WithRateLimitPolicy(policy, core.RateLimitKey{
			ProviderID: "memory",
			BucketKey:  "records",
		}),
	)

	engine := syncengine.NewEngine(client)
	if cfg.Adapter.DefaultCloseDays > 0 {
		engine.CloseDays = cfg.Adapter.DefaultCloseDays
	}

	defaults := []Option{
		core.WithNormalizer(normalizer),
		core.WithEventValidator(validator),
		core.WithMappingIntrospector(stages.NewMapping()),
		core.WithRemoteStore(client),
		core.WithSyncEngine(engine),
		core.WithIdempotencyClaimStore(inbound.NewInMemoryClaimStore()),
	}
	return core.NewService(cfg, append(defaults, opts...)...)
}

// NewReceiver wires an inbound receiver around a service using the
// service's claim store when it has one.
func NewReceiver(service *Service, ttl time.Duration) *inbound.Receiver {
	var store core.IdempotencyClaimStore
	if service != nil {
		store = service.Dependencies().ClaimStore
	}
	receiver := inbound.NewReceiver(service, store)
	if ttl > 0 {
		receiver.KeyTTL = ttl
	}
	return receiver
}
