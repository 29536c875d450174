package application

import (
	"time"

	"github.com/dkoval/poolctl/internal/domain"
)

// PoolStatus is the read-only aggregate view exposed to observers.
type PoolStatus struct {
	Accounts       []domain.Account
	Counts         map[domain.AccountStatus]int
	RemainingQuota time.Duration
	ActiveSession  *domain.Session
	ActiveIdentity string
	NextIdentity   string
}

// Status reports per-status counts, total remaining quota, the active
// session, and the identity the strategy would pick next. The next-account
// peek does not advance the round-robin cursor.
func (m *PoolManager) Status() PoolStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	available := m.availableLocked()

	status := PoolStatus{
		Accounts: make([]domain.Account, len(m.accounts)),
		Counts:   make(map[domain.AccountStatus]int),
	}
	copy(status.Accounts, m.accounts)

	for _, account := range m.accounts {
		status.Counts[account.Status]++
		status.RemainingQuota += account.RemainingQuota()
	}

	if m.session != nil && m.session.Active {
		session := *m.session
		status.ActiveSession = &session
		if idx, err := m.indexLocked(session.AccountID); err == nil {
			status.ActiveIdentity = m.accounts[idx].Identity
		}
	}

	if next, _, ok := domain.SelectNext(m.settings.Strategy, available, m.cursor, m.rng); ok {
		status.NextIdentity = next.Identity
	}

	return status
}
