package fulfillment

import "time"

// Config controls worker intervals and batch sizes.
type Config struct {
	PollInterval      time.Duration
	BatchSize         int
	RecoveryThreshold time.Duration
	RequestTimeout    time.Duration
	StoreTimeout      time.Duration
}

func DefaultConfig() Config {
	return Config{
		PollInterval:      2 * time.Second,
		BatchSize:         10,
		RecoveryThreshold: 15 * time.Minute,
		RequestTimeout:    60 * time.Second,
		StoreTimeout:      10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = defaults.PollInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.RecoveryThreshold <= 0 {
		c.RecoveryThreshold = defaults.RecoveryThreshold
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaults.RequestTimeout
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = defaults.StoreTimeout
	}
	return c
}
