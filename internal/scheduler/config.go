package scheduler

import (
	"time"

	"github.com/smallbiznis/telbill/internal/config"
)

// Config controls cron schedules and job limits.
type Config struct {
	CycleSchedule   string
	OverdueSchedule string
	JobTimeout      time.Duration
	LeaderLockTTL   time.Duration
}

func DefaultConfig() Config {
	return Config{
		CycleSchedule:   "@every 1h",
		OverdueSchedule: "@daily",
		JobTimeout:      30 * time.Minute,
		LeaderLockTTL:   time.Hour,
	}
}

// ProvideConfig derives scheduler settings from the application config.
func ProvideConfig(cfg config.Config) Config {
	return Config{
		CycleSchedule:   cfg.Billing.CycleSchedule,
		OverdueSchedule: cfg.Billing.OverdueSchedule,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.CycleSchedule == "" {
		c.CycleSchedule = defaults.CycleSchedule
	}
	if c.OverdueSchedule == "" {
		c.OverdueSchedule = defaults.OverdueSchedule
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.LeaderLockTTL <= 0 {
		c.LeaderLockTTL = defaults.LeaderLockTTL
	}
	// The leader lock must outlive the job it guards.
	if c.LeaderLockTTL < c.JobTimeout {
		c.LeaderLockTTL = c.JobTimeout
	}
	return c
}
