package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig   Config
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

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithRemoteStore(store RemoteStore) Option {
	return func(b *serviceBuilder) {
		b.remoteStore = store
	}
}

func WithNormalizer(normalizer Normalizer) Option {
	return func(b *serviceBuilder) {
		b.normalizer = normalizer
	}
}

func WithEventValidator(validator EventValidator) Option {
	return func(b *serviceBuilder) {
		b.validator = validator
	}
}

func WithSyncEngine(engine SyncEngine) Option {
	return func(b *serviceBuilder) {
		b.engine = engine
	}
}

func WithMappingIntrospector(mapping MappingIntrospector) Option {
	return func(b *serviceBuilder) {
		b.mapping = mapping
	}
}

func WithActivityStore(store ActivityStore) Option {
	return func(b *serviceBuilder) {
		b.activityStore = store
	}
}

func WithIdempotencyClaimStore(store IdempotencyClaimStore) Option {
	return func(b *serviceBuilder) {
		b.claimStore = store
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *serviceBuilder) {
		b.now = now
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("proposal-sync", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return serviceErrorMapper(err)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}

	adapter := map[string]any{}
	if includeZero || cfg.Adapter.HourlyRate > 0 {
		adapter["hourly_rate"] = cfg.Adapter.HourlyRate
	}
	if includeZero || cfg.Adapter.FallbackAmount > 0 {
		adapter["fallback_amount"] = cfg.Adapter.FallbackAmount
	}
	if includeZero || cfg.Adapter.DefaultCloseDays > 0 {
		adapter["default_close_days"] = cfg.Adapter.DefaultCloseDays
	}
	if len(adapter) > 0 {
		layer["adapter"] = adapter
	}

	remote := map[string]any{}
	if includeZero || cfg.Remote.MaxConnectAttempts > 0 {
		remote["max_connect_attempts"] = cfg.Remote.MaxConnectAttempts
	}
	if includeZero || cfg.Remote.ConnectDelay > 0 {
		remote["connect_delay"] = cfg.Remote.ConnectDelay
	}
	if includeZero || cfg.Remote.ConnectCeiling > 0 {
		remote["connect_ceiling"] = cfg.Remote.ConnectCeiling
	}
	if includeZero || cfg.Remote.RateLimitCeiling > 0 {
		remote["rate_limit_ceiling"] = cfg.Remote.RateLimitCeiling
	}
	if len(remote) > 0 {
		layer["remote"] = remote
	}
	return layer
}
