package domain

import (
	"fmt"
	"strings"
	"time"
)

type AccountID string

type AccountStatus string

const (
	StatusActive         AccountStatus = "active"
	StatusInUse          AccountStatus = "in_use"
	StatusCooldown       AccountStatus = "cooldown"
	StatusQuotaExhausted AccountStatus = "quota_exhausted"
	StatusSuspended      AccountStatus = "suspended"
	StatusError          AccountStatus = "error"
)

// ParseAccountStatus rejects anything outside the closed status set. Persisted
// state carrying an unknown status is a load error, never a silent default.
func ParseAccountStatus(raw string) (AccountStatus, error) {
	status := AccountStatus(strings.TrimSpace(strings.ToLower(raw)))
	switch status {
	case StatusActive, StatusInUse, StatusCooldown, StatusQuotaExhausted, StatusSuspended, StatusError:
		return status, nil
	default:
		return "", fmt.Errorf("unknown account status %q", raw)
	}
}

const (
	DefaultDailyQuotaLimit = 6 * time.Hour

	// QuotaResetInterval is the rolling daily window. Resets are relative to
	// the reset moment rather than snapped to local midnight.
	QuotaResetInterval = 24 * time.Hour
)

// Account is one credential/capacity unit participating in the rotation pool.
type Account struct {
	ID                  AccountID
	Identity            string
	SecretRef           string
	Priority            int
	Status              AccountStatus
	DailyQuotaUsed      time.Duration
	DailyQuotaLimit     time.Duration
	QuotaResetAt        time.Time
	CooldownUntil       *time.Time
	ConsecutiveFailures int
	TotalSessions       int64
	SuccessCount        int64
	FailureCount        int64
	LastUsedAt          time.Time
	LastError           string
	CurrentSessionID    string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (a Account) Validate() error {
	if strings.TrimSpace(string(a.ID)) == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(a.Identity) == "" {
		return fmt.Errorf("identity is required")
	}
	if a.Priority < 0 {
		return fmt.Errorf("priority must be non-negative")
	}
	if a.DailyQuotaLimit <= 0 {
		return fmt.Errorf("daily quota limit must be positive")
	}
	if a.Status == StatusInUse && strings.TrimSpace(a.CurrentSessionID) == "" {
		return fmt.Errorf("in_use account requires a session id")
	}
	if a.Status == StatusCooldown && a.CooldownUntil == nil {
		return fmt.Errorf("cooldown account requires a cooldown deadline")
	}

	return nil
}

func (a Account) RemainingQuota() time.Duration {
	remaining := a.DailyQuotaLimit - a.DailyQuotaUsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// QuotaUsedPercent reports consumption against the daily limit, uncapped so
// callers can observe overshoot.
func (a Account) QuotaUsedPercent() float64 {
	if a.DailyQuotaLimit <= 0 {
		return 0
	}
	return float64(a.DailyQuotaUsed) / float64(a.DailyQuotaLimit) * 100
}

// Normalize applies the lazy time-based promotions: an elapsed cooldown or an
// elapsed quota-reset window moves the account back to active. It reports
// whether the account was mutated.
func (a *Account) Normalize(now time.Time) bool {
	switch a.Status {
	case StatusCooldown:
		if a.CooldownUntil != nil && !a.CooldownUntil.After(now) {
			a.Status = StatusActive
			a.CooldownUntil = nil
			a.UpdatedAt = now
			return true
		}
	case StatusQuotaExhausted:
		if !a.QuotaResetAt.IsZero() && !a.QuotaResetAt.After(now) {
			a.Status = StatusActive
			a.DailyQuotaUsed = 0
			a.QuotaResetAt = now.Add(QuotaResetInterval)
			a.UpdatedAt = now
			return true
		}
	}

	return false
}

// Available reports selection eligibility after Normalize has run.
func (a Account) Available() bool {
	return a.Status == StatusActive
}
