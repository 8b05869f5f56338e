package renewal

import (
	"time"

	"github.com/smallbiznis/rotation/internal/config"
)

// Config controls the periodic lock-in sweep.
type Config struct {
	Schedule  string
	LeadTime  time.Duration
	BatchSize int
	LeaseTTL  time.Duration
	Timeout   time.Duration
}

func DefaultConfig() Config {
	return Config{
		Schedule:  "*/15 * * * *",
		LeadTime:  48 * time.Hour,
		BatchSize: 100,
		LeaseTTL:  10 * time.Minute,
		Timeout:   5 * time.Minute,
	}
}

func ConfigFrom(cfg config.RotationConfig) Config {
	c := DefaultConfig()
	c.Schedule = cfg.RenewalSchedule
	c.LeadTime = cfg.RenewalLeadTime
	return c.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.Schedule == "" {
		c.Schedule = defaults.Schedule
	}
	if c.LeadTime < 0 {
		c.LeadTime = 0
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = defaults.LeaseTTL
	}
	if c.Timeout <= 0 {
		c.Timeout = defaults.Timeout
	}
	return c
}
