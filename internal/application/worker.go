package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkoval/poolctl/internal/domain"
)

// WorkReport is what a collaborator tells the pool about one unit of work.
type WorkReport struct {
	Success       bool
	QuotaConsumed time.Duration
	Err           string
}

// WorkFunc performs one unit of work with the given account's credential. The
// pool never needs to know what the work is.
type WorkFunc func(ctx context.Context, account domain.Account) WorkReport

// PerformWork runs fn against the active account (starting a session when
// none is running), folds the reported outcome back into the pool, and fails
// over to the next available account on failure when auto-failover is
// enabled. Attempts are bounded by the pool size.
func (m *PoolManager) PerformWork(ctx context.Context, fn WorkFunc) (domain.AccountID, error) {
	attempts := len(m.Accounts())
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		account, ok := m.ActiveAccount()
		if !ok {
			if _, err := m.StartSession(""); err != nil {
				if lastErr != nil {
					return "", fmt.Errorf("%w (last failure: %w)", err, lastErr)
				}
				return "", err
			}
			account, ok = m.ActiveAccount()
			if !ok {
				return "", domain.ErrPoolEmpty
			}
		}

		report := fn(ctx, account)

		if report.QuotaConsumed > 0 {
			if err := m.UpdateQuotaUsage(account.ID, report.QuotaConsumed); err != nil {
				m.logger.Warn("update quota usage", "account", account.Identity, "error", err)
			}
		}

		if report.Success {
			if err := m.RecordSuccess(account.ID); err != nil {
				return account.ID, err
			}
			return account.ID, nil
		}

		lastErr = errors.New(report.Err)
		if report.Err == "" {
			lastErr = errors.New("work failed")
		}

		next, err := m.RecordFailure(account.ID, lastErr)
		if err != nil {
			return account.ID, err
		}
		if next == nil {
			break
		}

		// Failover: bind the replacement before retrying.
		if _, err := m.StartSession(next.ID); err != nil {
			return account.ID, fmt.Errorf("failover to %s: %w", next.Identity, err)
		}
	}

	return "", fmt.Errorf("work failed on all attempts: %w", lastErr)
}
