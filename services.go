// Package proposalsync synchronizes proposal lifecycle events from source
// systems into a remote CRM-like record store keyed by external id.
package proposalsync

import "github.com/goliatone/go-proposal-sync/core"

type Config = core.Config

type AdapterConfig = core.AdapterConfig

type RemoteConfig = core.RemoteConfig

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies

type CanonicalEvent = core.CanonicalEvent
type SyncOutcome = core.SyncOutcome
type ProcessEventRequest = core.ProcessEventRequest
type MappingSummary = core.MappingSummary
type ActivityEntry = core.ActivityEntry
type ActivityFilter = core.ActivityFilter
type ActivityPage = core.ActivityPage

var (
	WithLogger                = core.WithLogger
	WithLoggerProvider        = core.WithLoggerProvider
	WithMetricsRecorder       = core.WithMetricsRecorder
	WithErrorMapper           = core.WithErrorMapper
	WithConfigProvider        = core.WithConfigProvider
	WithOptionsResolver       = core.WithOptionsResolver
	WithRemoteStore           = core.WithRemoteStore
	WithNormalizer            = core.WithNormalizer
	WithEventValidator        = core.WithEventValidator
	WithSyncEngine            = core.WithSyncEngine
	WithMappingIntrospector   = core.WithMappingIntrospector
	WithActivityStore         = core.WithActivityStore
	WithIdempotencyClaimStore = core.WithIdempotencyClaimStore
	WithClock                 = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
