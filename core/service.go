package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
)

type Service struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	remoteStore     RemoteStore
	normalizer      Normalizer
	validator       EventValidator
	engine          SyncEngine
	mapping         MappingIntrospector
	activityStore   ActivityStore
	claimStore      IdempotencyClaimStore
	now             func() time.Time
}

type ServiceDependencies struct {
	Logger          Logger
	LoggerProvider  LoggerProvider
	MetricsRecorder MetricsRecorder
	ErrorMapper     ErrorMapper
	ConfigProvider  ConfigProvider
	OptionsResolver OptionsResolver
	RemoteStore     RemoteStore
	Normalizer      Normalizer
	Validator       EventValidator
	Engine          SyncEngine
	Mapping         MappingIntrospector
	ActivityStore   ActivityStore
	ClaimStore      IdempotencyClaimStore
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("proposal-sync", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("proposal-sync"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.now == nil {
		builder.now = func() time.Time { return time.Now().UTC() }
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	resolved, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	return &Service{
		config:          resolved,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorMapper:     builder.errorMapper,
		configProvider:  builder.configProvider,
		optionsResolver: builder.optionsResolver,
		remoteStore:     builder.remoteStore,
		normalizer:      builder.normalizer,
		validator:       builder.validator,
		engine:          builder.engine,
		mapping:         builder.mapping,
		activityStore:   builder.activityStore,
		claimStore:      builder.claimStore,
		now:             builder.now,
	}, nil
}

func Setup(cfg Config, options ...Option) (*Service, error) {
	return NewService(cfg, options...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:          s.logger,
		LoggerProvider:  s.loggerProvider,
		MetricsRecorder: s.metricsRecorder,
		ErrorMapper:     s.errorMapper,
		ConfigProvider:  s.configProvider,
		OptionsResolver: s.optionsResolver,
		RemoteStore:     s.remoteStore,
		Normalizer:      s.normalizer,
		Validator:       s.validator,
		Engine:          s.engine,
		Mapping:         s.mapping,
		ActivityStore:   s.activityStore,
		ClaimStore:      s.claimStore,
	}
}

// ProcessEvent runs one inbound payload through normalize, validate, and
// sync. The trace id is threaded into logs and the activity ledger but is
// never interpreted.
func (s *Service) ProcessEvent(ctx context.Context, req ProcessEventRequest) (SyncOutcome, error) {
	if s == nil {
		return SyncOutcome{}, fmt.Errorf("core: service is nil")
	}
	if s.engine == nil {
		return SyncOutcome{}, s.mapError(fmt.Errorf("core: sync engine is required"))
	}
	if len(req.Payload) == 0 {
		return SyncOutcome{}, s.mapError(fmt.Errorf("core: event payload is required"))
	}

	startedAt := s.clock()
	payload := req.Payload
	if s.normalizer != nil {
		normalized, err := s.normalizer.Normalize(payload)
		if err != nil {
			return SyncOutcome{}, s.finishEvent(ctx, startedAt, req, "", SyncOutcome{}, err)
		}
		payload = normalized
	}

	kind, err := ParseEventKind(stringValue(payload["kind"]))
	if err != nil {
		return SyncOutcome{}, s.finishEvent(ctx, startedAt, req, "", SyncOutcome{}, err)
	}
	if s.validator != nil {
		if err := s.validator.Validate(kind, payload); err != nil {
			return SyncOutcome{}, s.finishEvent(ctx, startedAt, req, string(kind), SyncOutcome{}, err)
		}
	}
	event, err := DecodeEvent(payload)
	if err != nil {
		return SyncOutcome{}, s.finishEvent(ctx, startedAt, req, string(kind), SyncOutcome{}, err)
	}

	outcome, err := s.engine.Process(ctx, event)
	if err != nil {
		return SyncOutcome{}, s.finishEvent(ctx, startedAt, req, string(kind), outcome, err)
	}
	s.recordActivity(ctx, req, string(kind), outcome, nil)
	s.observeOperation(ctx, startedAt, "process_event", nil, map[string]any{
		"proposal_id": outcome.ExternalRecordID,
		"event_kind":  string(kind),
		"operation":   outcome.Operation,
		"trace_id":    req.TraceID,
	})
	return outcome, nil
}

// MappingSummary exposes the stage table snapshot for debug endpoints.
func (s *Service) MappingSummary() (MappingSummary, error) {
	if s == nil || s.mapping == nil {
		return MappingSummary{}, fmt.Errorf("core: mapping introspector is not configured")
	}
	return s.mapping.Summary(), nil
}

func (s *Service) ListActivity(ctx context.Context, filter ActivityFilter) (ActivityPage, error) {
	if s == nil || s.activityStore == nil {
		return ActivityPage{}, fmt.Errorf("core: activity store is not configured")
	}
	page, err := s.activityStore.List(ctx, filter)
	if err != nil {
		return ActivityPage{}, s.mapError(err)
	}
	return page, nil
}

func (s *Service) finishEvent(
	ctx context.Context,
	startedAt time.Time,
	req ProcessEventRequest,
	kind string,
	outcome SyncOutcome,
	cause error,
) error {
	mapped := s.mapError(cause)
	s.recordActivity(ctx, req, kind, outcome, mapped)
	s.observeOperation(ctx, startedAt, "process_event", mapped, map[string]any{
		"event_kind": kind,
		"trace_id":   req.TraceID,
	})
	return mapped
}

func (s *Service) recordActivity(
	ctx context.Context,
	req ProcessEventRequest,
	kind string,
	outcome SyncOutcome,
	cause error,
) {
	if s == nil || s.activityStore == nil {
		return
	}
	entry := ActivityEntry{
		ID:         uuid.NewString(),
		ProposalID: stringValue(req.Payload["proposalId"]),
		EventKind:  strings.TrimSpace(kind),
		Operation:  strings.TrimSpace(outcome.Operation),
		Status:     ActivityStatusOK,
		TraceID:    strings.TrimSpace(req.TraceID),
		Metadata:   cloneFields(req.Metadata),
		CreatedAt:  s.clock(),
	}
	if outcome.ExternalRecordID != "" {
		if entry.Metadata == nil {
			entry.Metadata = map[string]any{}
		}
		entry.Metadata["external_record_id"] = outcome.ExternalRecordID
	}
	if cause != nil {
		entry.Status = ActivityStatusError
		entry.Error = cause.Error()
	}
	if err := s.activityStore.Record(ctx, entry); err != nil {
		s.logError(ctx, "activity record failed", map[string]any{
			"proposal_id": entry.ProposalID,
			"error":       err.Error(),
		})
	}
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) clock() time.Time {
	if s != nil && s.now != nil {
		return s.now().UTC()
	}
	return time.Now().UTC()
}
