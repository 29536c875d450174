package domain

import (
	"fmt"
	"strings"
	"time"
)

type RotationStrategy string

const (
	StrategyRoundRobin RotationStrategy = "round_robin"
	StrategyLeastUsed  RotationStrategy = "least_used"
	StrategyPriority   RotationStrategy = "priority"
	StrategyRandom     RotationStrategy = "random"
)

func ParseRotationStrategy(raw string) (RotationStrategy, error) {
	strategy := RotationStrategy(strings.TrimSpace(strings.ToLower(raw)))
	switch strategy {
	case StrategyRoundRobin, StrategyLeastUsed, StrategyPriority, StrategyRandom:
		return strategy, nil
	default:
		return "", fmt.Errorf("unknown rotation strategy %q", raw)
	}
}

// PoolSettings is the process-wide rotation policy, loaded at startup and
// mutable through an explicit update operation.
type PoolSettings struct {
	Strategy               RotationStrategy
	CooldownDuration       time.Duration
	QuotaThresholdPercent  float64
	SessionTimeout         time.Duration
	MaxConsecutiveFailures int
	AutoFailover           bool
	AutoRotateOnQuotaLow   bool
	QuotaCheckInterval     time.Duration
	SessionCheckInterval   time.Duration
}

func DefaultSettings() PoolSettings {
	return PoolSettings{
		Strategy:               StrategyPriority,
		CooldownDuration:       30 * time.Minute,
		QuotaThresholdPercent:  80,
		SessionTimeout:         2 * time.Hour,
		MaxConsecutiveFailures: 3,
		AutoFailover:           true,
		AutoRotateOnQuotaLow:   true,
		QuotaCheckInterval:     time.Minute,
		SessionCheckInterval:   5 * time.Minute,
	}
}

func (s PoolSettings) Validate() error {
	if _, err := ParseRotationStrategy(string(s.Strategy)); err != nil {
		return err
	}
	if s.CooldownDuration <= 0 {
		return fmt.Errorf("cooldown duration must be positive")
	}
	if s.QuotaThresholdPercent <= 0 || s.QuotaThresholdPercent > 100 {
		return fmt.Errorf("quota threshold percent must be in (0, 100]")
	}
	if s.SessionTimeout <= 0 {
		return fmt.Errorf("session timeout must be positive")
	}
	if s.MaxConsecutiveFailures <= 0 {
		return fmt.Errorf("max consecutive failures must be positive")
	}
	if s.QuotaCheckInterval <= 0 || s.SessionCheckInterval <= 0 {
		return fmt.Errorf("monitor intervals must be positive")
	}

	return nil
}
