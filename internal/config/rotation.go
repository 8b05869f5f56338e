package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// RotationConfig carries the thresholds of the rotation engine. It is read
// once at startup and handed to each component as its own typed config.
type RotationConfig struct {
	CredentialAlertThreshold int           `mapstructure:"credential_alert_threshold"`
	OnDemandRateLimit        int           `mapstructure:"on_demand_rate_limit"`
	OnDemandRateWindow       time.Duration `mapstructure:"on_demand_rate_window"`
	UserAbandonLimit         int           `mapstructure:"user_abandon_limit"`
	UserAbandonCooldown      time.Duration `mapstructure:"user_abandon_cooldown"`
	CredentialStrikeLimit    int           `mapstructure:"credential_strike_limit"`
	CredentialStrikeCooldown time.Duration `mapstructure:"credential_strike_cooldown"`
	PlatformFeeSats          int64         `mapstructure:"platform_fee_sats"`
	ProviderTimeout          time.Duration `mapstructure:"provider_timeout"`
	SubscriptionPeriodDays   int           `mapstructure:"subscription_period_days"`
	RenewalSchedule          string        `mapstructure:"renewal_schedule"`
	RenewalLeadTime          time.Duration `mapstructure:"renewal_lead_time"`
	OperatorAlertChannel     string        `mapstructure:"operator_alert_channel"`
}

func DefaultRotationConfig() RotationConfig {
	return RotationConfig{
		CredentialAlertThreshold: 3,
		OnDemandRateLimit:        5,
		OnDemandRateWindow:       time.Hour,
		UserAbandonLimit:         3,
		UserAbandonCooldown:      24 * time.Hour,
		CredentialStrikeLimit:    5,
		CredentialStrikeCooldown: 24 * time.Hour,
		PlatformFeeSats:          4400,
		ProviderTimeout:          15 * time.Second,
		SubscriptionPeriodDays:   30,
		RenewalSchedule:          "*/15 * * * *",
		RenewalLeadTime:          48 * time.Hour,
		OperatorAlertChannel:     "",
	}
}

var defaultRotationConfigPaths = []string{
	"/etc/rotation",
	".",
}

// LoadRotationConfig reads rotation.yml from the first search path that has
// one. Every key can be overridden with a ROTATION_ prefixed env variable,
// e.g. ROTATION_PLATFORM_FEE_SATS.
func LoadRotationConfig(searchPaths ...string) (RotationConfig, error) {
	if len(searchPaths) == 0 {
		searchPaths = defaultRotationConfigPaths
	}

	v := viper.New()
	v.SetConfigName("rotation")
	v.SetConfigType("yml")
	for _, p := range searchPaths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("ROTATION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultRotationConfig()
	v.SetDefault("credential_alert_threshold", defaults.CredentialAlertThreshold)
	v.SetDefault("on_demand_rate_limit", defaults.OnDemandRateLimit)
	v.SetDefault("on_demand_rate_window", defaults.OnDemandRateWindow)
	v.SetDefault("user_abandon_limit", defaults.UserAbandonLimit)
	v.SetDefault("user_abandon_cooldown", defaults.UserAbandonCooldown)
	v.SetDefault("credential_strike_limit", defaults.CredentialStrikeLimit)
	v.SetDefault("credential_strike_cooldown", defaults.CredentialStrikeCooldown)
	v.SetDefault("platform_fee_sats", defaults.PlatformFeeSats)
	v.SetDefault("provider_timeout", defaults.ProviderTimeout)
	v.SetDefault("subscription_period_days", defaults.SubscriptionPeriodDays)
	v.SetDefault("renewal_schedule", defaults.RenewalSchedule)
	v.SetDefault("renewal_lead_time", defaults.RenewalLeadTime)
	v.SetDefault("operator_alert_channel", defaults.OperatorAlertChannel)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return RotationConfig{}, fmt.Errorf("read rotation config: %w", err)
		}
	}

	var cfg RotationConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return RotationConfig{}, fmt.Errorf("decode rotation config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return RotationConfig{}, err
	}
	return cfg, nil
}

func (c RotationConfig) Validate() error {
	switch {
	case c.CredentialAlertThreshold < 1:
		return errors.New("credential_alert_threshold must be at least 1")
	case c.OnDemandRateLimit < 1:
		return errors.New("on_demand_rate_limit must be at least 1")
	case c.OnDemandRateWindow <= 0:
		return errors.New("on_demand_rate_window must be positive")
	case c.UserAbandonLimit < 1:
		return errors.New("user_abandon_limit must be at least 1")
	case c.UserAbandonCooldown <= 0:
		return errors.New("user_abandon_cooldown must be positive")
	case c.CredentialStrikeLimit < 1:
		return errors.New("credential_strike_limit must be at least 1")
	case c.CredentialStrikeCooldown <= 0:
		return errors.New("credential_strike_cooldown must be positive")
	case c.PlatformFeeSats < 0:
		return errors.New("platform_fee_sats cannot be negative")
	case c.ProviderTimeout <= 0:
		return errors.New("provider_timeout must be positive")
	case c.SubscriptionPeriodDays < 1:
		return errors.New("subscription_period_days must be at least 1")
	case c.RenewalLeadTime < 0:
		return errors.New("renewal_lead_time cannot be negative")
	}
	if _, err := cron.ParseStandard(c.RenewalSchedule); err != nil {
		return fmt.Errorf("renewal_schedule: %w", err)
	}
	return nil
}
