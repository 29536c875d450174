package toml

import (
	"fmt"
	"time"

	"github.com/dkoval/poolctl/internal/domain"
)

const currentSchemaVersion = 1

type fileSchema struct {
	Version  int             `toml:"version"`
	Cursor   int             `toml:"cursor"`
	Settings settingsSchema  `toml:"settings"`
	Accounts []accountSchema `toml:"accounts"`
	Session  *sessionSchema  `toml:"session,omitempty"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported pool schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type settingsSchema struct {
	Strategy               string  `toml:"strategy"`
	CooldownDuration       string  `toml:"cooldown_duration"`
	QuotaThresholdPercent  float64 `toml:"quota_threshold_percent"`
	SessionTimeout         string  `toml:"session_timeout"`
	MaxConsecutiveFailures int     `toml:"max_consecutive_failures"`
	AutoFailover           bool    `toml:"auto_failover"`
	AutoRotateOnQuotaLow   bool    `toml:"auto_rotate_on_quota_low"`
	QuotaCheckInterval     string  `toml:"quota_check_interval"`
	SessionCheckInterval   string  `toml:"session_check_interval"`
}

type accountSchema struct {
	ID                  string `toml:"id"`
	Identity            string `toml:"identity"`
	SecretRef           string `toml:"secret_ref,omitempty"`
	Priority            int    `toml:"priority"`
	Status              string `toml:"status"`
	DailyQuotaUsed      string `toml:"daily_quota_used"`
	DailyQuotaLimit     string `toml:"daily_quota_limit"`
	QuotaResetAt        string `toml:"quota_reset_at,omitempty"`
	CooldownUntil       string `toml:"cooldown_until,omitempty"`
	ConsecutiveFailures int    `toml:"consecutive_failures"`
	TotalSessions       int64  `toml:"total_sessions"`
	SuccessCount        int64  `toml:"success_count"`
	FailureCount        int64  `toml:"failure_count"`
	LastUsedAt          string `toml:"last_used_at,omitempty"`
	LastError           string `toml:"last_error,omitempty"`
	CurrentSessionID    string `toml:"current_session_id,omitempty"`
	CreatedAt           string `toml:"created_at,omitempty"`
	UpdatedAt           string `toml:"updated_at,omitempty"`
}

type sessionSchema struct {
	ID        string `toml:"id"`
	AccountID string `toml:"account_id"`
	StartedAt string `toml:"started_at"`
	EndedAt   string `toml:"ended_at,omitempty"`
	Active    bool   `toml:"active"`
}

func toSchema(state domain.PoolState) fileSchema {
	file := fileSchema{
		Version: currentSchemaVersion,
		Cursor:  state.Cursor,
		Settings: settingsSchema{
			Strategy:               string(state.Settings.Strategy),
			CooldownDuration:       state.Settings.CooldownDuration.String(),
			QuotaThresholdPercent:  state.Settings.QuotaThresholdPercent,
			SessionTimeout:         state.Settings.SessionTimeout.String(),
			MaxConsecutiveFailures: state.Settings.MaxConsecutiveFailures,
			AutoFailover:           state.Settings.AutoFailover,
			AutoRotateOnQuotaLow:   state.Settings.AutoRotateOnQuotaLow,
			QuotaCheckInterval:     state.Settings.QuotaCheckInterval.String(),
			SessionCheckInterval:   state.Settings.SessionCheckInterval.String(),
		},
	}

	file.Accounts = make([]accountSchema, 0, len(state.Accounts))
	for _, account := range state.Accounts {
		file.Accounts = append(file.Accounts, accountSchema{
			ID:                  string(account.ID),
			Identity:            account.Identity,
			SecretRef:           account.SecretRef,
			Priority:            account.Priority,
			Status:              string(account.Status),
			DailyQuotaUsed:      account.DailyQuotaUsed.String(),
			DailyQuotaLimit:     account.DailyQuotaLimit.String(),
			QuotaResetAt:        encodeTime(account.QuotaResetAt),
			CooldownUntil:       encodeTimePtr(account.CooldownUntil),
			ConsecutiveFailures: account.ConsecutiveFailures,
			TotalSessions:       account.TotalSessions,
			SuccessCount:        account.SuccessCount,
			FailureCount:        account.FailureCount,
			LastUsedAt:          encodeTime(account.LastUsedAt),
			LastError:           account.LastError,
			CurrentSessionID:    account.CurrentSessionID,
			CreatedAt:           encodeTime(account.CreatedAt),
			UpdatedAt:           encodeTime(account.UpdatedAt),
		})
	}

	if state.Session != nil {
		file.Session = &sessionSchema{
			ID:        state.Session.ID,
			AccountID: string(state.Session.AccountID),
			StartedAt: encodeTime(state.Session.StartedAt),
			EndedAt:   encodeTime(state.Session.EndedAt),
			Active:    state.Session.Active,
		}
	}

	return file
}

func fromSchema(file fileSchema) (domain.PoolState, error) {
	settings, err := settingsFromSchema(file.Settings)
	if err != nil {
		return domain.PoolState{}, err
	}

	state := domain.PoolState{
		Cursor:   file.Cursor,
		Settings: settings,
	}

	state.Accounts = make([]domain.Account, 0, len(file.Accounts))
	for _, entry := range file.Accounts {
		account, err := accountFromSchema(entry)
		if err != nil {
			return domain.PoolState{}, err
		}
		state.Accounts = append(state.Accounts, account)
	}

	if file.Session != nil {
		startedAt, err := decodeTime(file.Session.StartedAt)
		if err != nil {
			return domain.PoolState{}, fmt.Errorf("session started_at: %w", err)
		}
		endedAt, err := decodeTime(file.Session.EndedAt)
		if err != nil {
			return domain.PoolState{}, fmt.Errorf("session ended_at: %w", err)
		}
		state.Session = &domain.Session{
			ID:        file.Session.ID,
			AccountID: domain.AccountID(file.Session.AccountID),
			StartedAt: startedAt,
			EndedAt:   endedAt,
			Active:    file.Session.Active,
		}
	}

	return state, nil
}

func settingsFromSchema(entry settingsSchema) (domain.PoolSettings, error) {
	strategy, err := domain.ParseRotationStrategy(entry.Strategy)
	if err != nil {
		return domain.PoolSettings{}, err
	}

	cooldown, err := decodeDuration(entry.CooldownDuration)
	if err != nil {
		return domain.PoolSettings{}, fmt.Errorf("settings cooldown_duration: %w", err)
	}
	sessionTimeout, err := decodeDuration(entry.SessionTimeout)
	if err != nil {
		return domain.PoolSettings{}, fmt.Errorf("settings session_timeout: %w", err)
	}
	quotaInterval, err := decodeDuration(entry.QuotaCheckInterval)
	if err != nil {
		return domain.PoolSettings{}, fmt.Errorf("settings quota_check_interval: %w", err)
	}
	sessionInterval, err := decodeDuration(entry.SessionCheckInterval)
	if err != nil {
		return domain.PoolSettings{}, fmt.Errorf("settings session_check_interval: %w", err)
	}

	return domain.PoolSettings{
		Strategy:               strategy,
		CooldownDuration:       cooldown,
		QuotaThresholdPercent:  entry.QuotaThresholdPercent,
		SessionTimeout:         sessionTimeout,
		MaxConsecutiveFailures: entry.MaxConsecutiveFailures,
		AutoFailover:           entry.AutoFailover,
		AutoRotateOnQuotaLow:   entry.AutoRotateOnQuotaLow,
		QuotaCheckInterval:     quotaInterval,
		SessionCheckInterval:   sessionInterval,
	}, nil
}

func accountFromSchema(entry accountSchema) (domain.Account, error) {
	status, err := domain.ParseAccountStatus(entry.Status)
	if err != nil {
		return domain.Account{}, fmt.Errorf("account %s: %w", entry.Identity, err)
	}

	used, err := decodeDuration(entry.DailyQuotaUsed)
	if err != nil {
		return domain.Account{}, fmt.Errorf("account %s daily_quota_used: %w", entry.Identity, err)
	}
	limit, err := decodeDuration(entry.DailyQuotaLimit)
	if err != nil {
		return domain.Account{}, fmt.Errorf("account %s daily_quota_limit: %w", entry.Identity, err)
	}

	quotaResetAt, err := decodeTime(entry.QuotaResetAt)
	if err != nil {
		return domain.Account{}, fmt.Errorf("account %s quota_reset_at: %w", entry.Identity, err)
	}
	lastUsedAt, err := decodeTime(entry.LastUsedAt)
	if err != nil {
		return domain.Account{}, fmt.Errorf("account %s last_used_at: %w", entry.Identity, err)
	}
	createdAt, err := decodeTime(entry.CreatedAt)
	if err != nil {
		return domain.Account{}, fmt.Errorf("account %s created_at: %w", entry.Identity, err)
	}
	updatedAt, err := decodeTime(entry.UpdatedAt)
	if err != nil {
		return domain.Account{}, fmt.Errorf("account %s updated_at: %w", entry.Identity, err)
	}

	account := domain.Account{
		ID:                  domain.AccountID(entry.ID),
		Identity:            entry.Identity,
		SecretRef:           entry.SecretRef,
		Priority:            entry.Priority,
		Status:              status,
		DailyQuotaUsed:      used,
		DailyQuotaLimit:     limit,
		QuotaResetAt:        quotaResetAt,
		ConsecutiveFailures: entry.ConsecutiveFailures,
		TotalSessions:       entry.TotalSessions,
		SuccessCount:        entry.SuccessCount,
		FailureCount:        entry.FailureCount,
		LastUsedAt:          lastUsedAt,
		LastError:           entry.LastError,
		CurrentSessionID:    entry.CurrentSessionID,
		CreatedAt:           createdAt,
		UpdatedAt:           updatedAt,
	}

	if entry.CooldownUntil != "" {
		until, err := decodeTime(entry.CooldownUntil)
		if err != nil {
			return domain.Account{}, fmt.Errorf("account %s cooldown_until: %w", entry.Identity, err)
		}
		account.CooldownUntil = &until
	}

	return account, nil
}

func encodeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func encodeTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return encodeTime(*t)
}

func decodeTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, raw)
}

func decodeDuration(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	return time.ParseDuration(raw)
}
