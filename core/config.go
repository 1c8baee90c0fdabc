package core

import (
	"fmt"
	"strings"
	"time"
)

type AdapterConfig struct {
	// HourlyRate prices hours-worked payloads that carry no explicit amount.
	HourlyRate float64 `koanf:"hourly_rate" mapstructure:"hourly_rate"`
	// FallbackAmount replaces a resolved amount of zero or less so the
	// canonical event still passes downstream validation.
	FallbackAmount   float64 `koanf:"fallback_amount" mapstructure:"fallback_amount"`
	DefaultCloseDays int     `koanf:"default_close_days" mapstructure:"default_close_days"`
}

type RemoteConfig struct {
	MaxConnectAttempts int           `koanf:"max_connect_attempts" mapstructure:"max_connect_attempts"`
	ConnectDelay       time.Duration `koanf:"connect_delay" mapstructure:"connect_delay"`
	ConnectCeiling     time.Duration `koanf:"connect_ceiling" mapstructure:"connect_ceiling"`
	// RateLimitCeiling caps attempt-scaled rate-limit backoff. Kept above
	// ConnectCeiling so throttled sessions wait longer than flaky ones.
	RateLimitCeiling time.Duration `koanf:"rate_limit_ceiling" mapstructure:"rate_limit_ceiling"`
}

type Config struct {
	ServiceName string        `koanf:"service_name" mapstructure:"service_name"`
	Adapter     AdapterConfig `koanf:"adapter" mapstructure:"adapter"`
	Remote      RemoteConfig  `koanf:"remote" mapstructure:"remote"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "proposal-sync",
		Adapter: AdapterConfig{
			HourlyRate:       150,
			FallbackAmount:   1000,
			DefaultCloseDays: 30,
		},
		Remote: RemoteConfig{
			MaxConnectAttempts: 3,
			ConnectDelay:       2 * time.Second,
			ConnectCeiling:     30 * time.Second,
			RateLimitCeiling:   2 * time.Minute,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Adapter.HourlyRate < 0 {
		return fmt.Errorf("core: adapter hourly_rate must not be negative")
	}
	if c.Adapter.FallbackAmount <= 0 {
		return fmt.Errorf("core: adapter fallback_amount must be positive")
	}
	if c.Adapter.DefaultCloseDays <= 0 {
		return fmt.Errorf("core: adapter default_close_days must be positive")
	}
	if c.Remote.MaxConnectAttempts <= 0 {
		return fmt.Errorf("core: remote max_connect_attempts must be positive")
	}
	if c.Remote.RateLimitCeiling < c.Remote.ConnectCeiling {
		return fmt.Errorf("core: remote rate_limit_ceiling must not be below connect_ceiling")
	}
	return nil
}
