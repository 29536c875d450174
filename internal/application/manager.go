package application

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dkoval/poolctl/internal/domain"
	"github.com/dkoval/poolctl/internal/ports"
)

const persistTimeout = 5 * time.Second

// PoolManager owns the in-memory pool: the account set, the rotation policy,
// the round-robin cursor, and the single active session. Every operation runs
// under one mutex; durable snapshots are written by a background goroutine so
// callers never block on disk while holding the lock.
type PoolManager struct {
	mu       sync.Mutex
	accounts []domain.Account
	settings domain.PoolSettings
	cursor   int
	session  *domain.Session
	closed   bool

	store  ports.StateStore
	clock  ports.Clock
	events ports.EventSink
	logger *slog.Logger
	rng    *rand.Rand

	persistCh chan domain.PoolState
	persistWG sync.WaitGroup
}

type nopSink struct{}

func (nopSink) Publish(domain.Event) {}

// NewPoolManager loads the persisted pool state and starts the persistence
// writer. A missing snapshot initializes an empty pool with default settings;
// a corrupt snapshot is a hard error.
func NewPoolManager(store ports.StateStore, clock ports.Clock, events ports.EventSink, logger *slog.Logger) (*PoolManager, error) {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if events == nil {
		events = nopSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	state, found, err := store.Load(context.Background())
	if err != nil {
		return nil, fmt.Errorf("load pool state: %w", err)
	}
	if !found {
		state = domain.PoolState{Settings: domain.DefaultSettings()}
	}
	if err := state.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("loaded pool settings: %w", err)
	}

	m := &PoolManager{
		accounts:  state.Accounts,
		settings:  state.Settings,
		cursor:    state.Cursor,
		session:   state.Session,
		store:     store,
		clock:     clock,
		events:    events,
		logger:    logger,
		rng:       rand.New(rand.NewSource(clock.Now().UnixNano())),
		persistCh: make(chan domain.PoolState, 1),
	}
	m.reconcileLoadedState()

	m.persistWG.Add(1)
	go m.persistLoop()

	return m, nil
}

// reconcileLoadedState demotes any in_use account that lost its session
// across a restart.
func (m *PoolManager) reconcileLoadedState() {
	now := m.clock.Now()
	for i := range m.accounts {
		account := &m.accounts[i]
		if account.Status != domain.StatusInUse {
			continue
		}
		if m.session != nil && m.session.Active && m.session.AccountID == account.ID {
			continue
		}
		account.Status = domain.StatusActive
		account.CurrentSessionID = ""
		account.UpdatedAt = now
	}
	if m.session != nil && !m.session.Active {
		m.session = nil
	}
}

// Close flushes any pending snapshot and stops the persistence writer. It is
// idempotent; operations arriving after Close still mutate in-memory state
// but are no longer persisted.
func (m *PoolManager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	close(m.persistCh)
	m.persistWG.Wait()
}

type AddAccountParams struct {
	Identity        string
	SecretRef       string
	Priority        int
	DailyQuotaLimit time.Duration
}

func (m *PoolManager) AddAccount(params AddAccountParams) (domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	identity := strings.TrimSpace(params.Identity)
	for _, existing := range m.accounts {
		if strings.EqualFold(existing.Identity, identity) {
			return domain.Account{}, fmt.Errorf("%w: %s", domain.ErrDuplicateAccount, identity)
		}
	}

	now := m.clock.Now()
	limit := params.DailyQuotaLimit
	if limit <= 0 {
		limit = domain.DefaultDailyQuotaLimit
	}

	account := domain.Account{
		ID:              domain.AccountID(uuid.NewString()),
		Identity:        identity,
		SecretRef:       strings.TrimSpace(params.SecretRef),
		Priority:        params.Priority,
		Status:          domain.StatusActive,
		DailyQuotaLimit: limit,
		QuotaResetAt:    now.Add(domain.QuotaResetInterval),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := account.Validate(); err != nil {
		return domain.Account{}, err
	}

	m.accounts = append(m.accounts, account)
	m.queuePersistLocked()
	m.emitLocked(domain.EventAccountAdded, account.ID, fmt.Sprintf("account %s added", account.Identity))

	return account, nil
}

func (m *PoolManager) RemoveAccount(id domain.AccountID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, err := m.indexLocked(id)
	if err != nil {
		return err
	}

	account := m.accounts[idx]
	if account.Status == domain.StatusInUse || m.boundToActiveSessionLocked(id) {
		return fmt.Errorf("%w: %s", domain.ErrAccountInUse, account.Identity)
	}

	m.accounts = append(m.accounts[:idx], m.accounts[idx+1:]...)
	m.queuePersistLocked()
	m.emitLocked(domain.EventAccountRemoved, id, fmt.Sprintf("account %s removed", account.Identity))

	return nil
}

// AvailableAccounts normalizes elapsed cooldowns and quota windows, then
// returns the accounts eligible for selection. The promotion side effect is
// persisted, so state may change across what looks like a read.
func (m *PoolManager) AvailableAccounts() []domain.Account {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.availableLocked()
}

func (m *PoolManager) availableLocked() []domain.Account {
	now := m.clock.Now()
	promoted := false
	for i := range m.accounts {
		if m.accounts[i].Normalize(now) {
			promoted = true
		}
	}
	if promoted {
		m.queuePersistLocked()
	}

	available := make([]domain.Account, 0, len(m.accounts))
	for _, account := range m.accounts {
		if account.Available() {
			available = append(available, account)
		}
	}

	return available
}

// NextAvailableAccount applies the configured strategy and advances the
// round-robin cursor. Returns false when the pool has no eligible account.
func (m *PoolManager) NextAvailableAccount() (domain.Account, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.nextLocked()
}

func (m *PoolManager) nextLocked() (domain.Account, bool) {
	available := m.availableLocked()
	account, cursor, ok := domain.SelectNext(m.settings.Strategy, available, m.cursor, m.rng)
	if !ok {
		m.emitLocked(domain.EventPoolEmpty, "", "no eligible accounts in pool")
		return domain.Account{}, false
	}
	if cursor != m.cursor {
		m.cursor = cursor
		m.queuePersistLocked()
	}

	return account, true
}

// StartSession binds the given account (or the strategy's pick when id is
// empty) to a new session. An already-active session is ended first.
func (m *PoolManager) StartSession(id domain.AccountID) (domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	if m.session != nil && m.session.Active {
		m.endSessionLocked(now, true)
	}

	var account domain.Account
	if id != "" {
		idx, err := m.indexLocked(id)
		if err != nil {
			return domain.Session{}, err
		}
		m.accounts[idx].Normalize(now)
		account = m.accounts[idx]
	} else {
		picked, ok := m.nextLocked()
		if !ok {
			return domain.Session{}, domain.ErrPoolEmpty
		}
		account = picked
	}

	session := domain.Session{
		ID:        uuid.NewString(),
		AccountID: account.ID,
		StartedAt: now,
		Active:    true,
	}
	m.session = &session

	idx, err := m.indexLocked(account.ID)
	if err != nil {
		return domain.Session{}, err
	}
	target := &m.accounts[idx]
	target.Status = domain.StatusInUse
	target.CurrentSessionID = session.ID
	target.TotalSessions++
	target.LastUsedAt = now
	target.UpdatedAt = now

	m.queuePersistLocked()
	m.emitLocked(domain.EventSessionStarted, account.ID, fmt.Sprintf("session %s started on %s", session.ID, account.Identity))

	return session, nil
}

// EndSession closes the active session, folding its elapsed time into the
// account's daily quota. No-op when no session is active.
func (m *PoolManager) EndSession() (domain.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil || !m.session.Active {
		return domain.Session{}, false
	}

	session := m.endSessionLocked(m.clock.Now(), true)
	m.queuePersistLocked()

	return session, true
}

// endSessionLocked closes the active session. When foldElapsed is set the
// session's elapsed time is added to the account's daily quota; crossing the
// limit leaves the account quota_exhausted instead of active. The snapshot is
// queued before any event goes out.
func (m *PoolManager) endSessionLocked(now time.Time, foldElapsed bool) domain.Session {
	session := *m.session
	session.Active = false
	session.EndedAt = now
	m.session = nil

	idx, err := m.indexLocked(session.AccountID)
	if err != nil {
		// Account was removed out from under its session; nothing to update.
		m.queuePersistLocked()
		m.emitLocked(domain.EventSessionEnded, session.AccountID, fmt.Sprintf("session %s ended", session.ID))
		return session
	}

	account := &m.accounts[idx]
	account.CurrentSessionID = ""
	account.UpdatedAt = now
	if foldElapsed {
		account.DailyQuotaUsed += session.Elapsed(now)
	}
	exhausted := account.DailyQuotaUsed >= account.DailyQuotaLimit
	if exhausted {
		account.Status = domain.StatusQuotaExhausted
	} else if account.Status == domain.StatusInUse {
		account.Status = domain.StatusActive
	}

	m.queuePersistLocked()
	if exhausted {
		m.emitLocked(domain.EventQuotaExhausted, account.ID, fmt.Sprintf("account %s exhausted daily quota", account.Identity))
	}
	m.emitLocked(domain.EventSessionEnded, session.AccountID, fmt.Sprintf("session %s ended", session.ID))

	return session
}

// RotateToNext retires the active account into cooldown and selects its
// replacement. The replacement is reported, not started; callers that want a
// new session call StartSession with the returned account.
func (m *PoolManager) RotateToNext(reason string) (domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	if m.session != nil && m.session.Active {
		rotatedID := m.session.AccountID
		m.endSessionLocked(now, true)
		if idx, err := m.indexLocked(rotatedID); err == nil {
			account := &m.accounts[idx]
			if account.Status == domain.StatusActive {
				until := now.Add(m.settings.CooldownDuration)
				account.Status = domain.StatusCooldown
				account.CooldownUntil = &until
				account.UpdatedAt = now
			}
		}
	}

	next, ok := m.nextLocked()
	if !ok {
		m.queuePersistLocked()
		return domain.Account{}, domain.ErrPoolEmpty
	}

	m.queuePersistLocked()
	message := fmt.Sprintf("rotated to %s", next.Identity)
	if reason != "" {
		message = fmt.Sprintf("rotated to %s: %s", next.Identity, reason)
	}
	m.emitLocked(domain.EventAccountRotated, next.ID, message)

	return next, nil
}

func (m *PoolManager) RecordSuccess(id domain.AccountID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, err := m.indexLocked(id)
	if err != nil {
		return err
	}

	now := m.clock.Now()
	account := &m.accounts[idx]
	account.SuccessCount++
	account.ConsecutiveFailures = 0
	account.LastUsedAt = now
	account.UpdatedAt = now

	m.queuePersistLocked()

	return nil
}

// RecordFailure folds one failed unit of work into the account. Crossing the
// consecutive-failure threshold suspends the account. When auto-failover is
// enabled the next available account is returned so the caller can decide
// whether to continue on it; no session is started here.
func (m *PoolManager) RecordFailure(id domain.AccountID, workErr error) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, err := m.indexLocked(id)
	if err != nil {
		return nil, err
	}

	now := m.clock.Now()
	account := &m.accounts[idx]
	account.FailureCount++
	account.ConsecutiveFailures++
	account.LastUsedAt = now
	account.UpdatedAt = now
	if workErr != nil {
		account.LastError = workErr.Error()
	}

	if account.ConsecutiveFailures >= m.settings.MaxConsecutiveFailures {
		if m.boundToActiveSessionLocked(id) {
			m.endSessionLocked(now, true)
			account = &m.accounts[idx]
		}
		account.Status = domain.StatusSuspended
		m.emitLocked(domain.EventAccountError, id, fmt.Sprintf("account %s suspended after %d consecutive failures", account.Identity, account.ConsecutiveFailures))
	}

	var next *domain.Account
	if m.settings.AutoFailover {
		if picked, ok := m.nextLocked(); ok {
			next = &picked
		}
	}

	m.queuePersistLocked()

	return next, nil
}

// UpdateQuotaUsage adds reported consumption to the account's daily quota.
// Reaching the limit exhausts the account; reaching the configured threshold
// emits a quota-low warning without changing status.
func (m *PoolManager) UpdateQuotaUsage(id domain.AccountID, amount time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, err := m.indexLocked(id)
	if err != nil {
		return err
	}

	now := m.clock.Now()
	account := &m.accounts[idx]
	account.DailyQuotaUsed += amount
	account.UpdatedAt = now

	switch {
	case account.DailyQuotaUsed >= account.DailyQuotaLimit:
		if m.boundToActiveSessionLocked(id) {
			// Caller-reported consumption already covers the session; do not
			// fold elapsed time on top of it.
			m.endSessionLocked(now, false)
			account = &m.accounts[idx]
		}
		if account.Status != domain.StatusQuotaExhausted {
			account.Status = domain.StatusQuotaExhausted
			m.emitLocked(domain.EventQuotaExhausted, id, fmt.Sprintf("account %s exhausted daily quota", account.Identity))
		}
	case account.QuotaUsedPercent() >= m.settings.QuotaThresholdPercent:
		m.emitLocked(domain.EventQuotaLow, id, fmt.Sprintf("account %s at %.0f%% of daily quota", account.Identity, account.QuotaUsedPercent()))
	}

	m.queuePersistLocked()

	return nil
}

// RecoverAccount is the explicit operator reset for suspended or errored
// accounts: failures, last error, and cooldown are cleared and the account
// returns to active.
func (m *PoolManager) RecoverAccount(id domain.AccountID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, err := m.indexLocked(id)
	if err != nil {
		return err
	}
	if m.boundToActiveSessionLocked(id) {
		return fmt.Errorf("%w: %s", domain.ErrAccountInUse, m.accounts[idx].Identity)
	}

	now := m.clock.Now()
	account := &m.accounts[idx]
	account.Status = domain.StatusActive
	account.ConsecutiveFailures = 0
	account.LastError = ""
	account.CooldownUntil = nil
	account.UpdatedAt = now

	m.queuePersistLocked()
	m.emitLocked(domain.EventAccountRecovered, id, fmt.Sprintf("account %s recovered", account.Identity))

	return nil
}

// ResetAllDailyQuotas zeroes every account's daily usage and promotes
// quota-exhausted accounts back to active.
func (m *PoolManager) ResetAllDailyQuotas() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	for i := range m.accounts {
		account := &m.accounts[i]
		account.DailyQuotaUsed = 0
		account.QuotaResetAt = now.Add(domain.QuotaResetInterval)
		account.UpdatedAt = now
		if account.Status == domain.StatusQuotaExhausted {
			account.Status = domain.StatusActive
		}
	}

	m.queuePersistLocked()
	m.emitLocked(domain.EventQuotaReset, "", "daily quotas reset")
}

func (m *PoolManager) UpdateSettings(settings domain.PoolSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.settings = settings
	m.queuePersistLocked()
	m.emitLocked(domain.EventSettingsUpdated, "", "pool settings updated")

	return nil
}

func (m *PoolManager) Settings() domain.PoolSettings {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.settings
}

func (m *PoolManager) Accounts() []domain.Account {
	m.mu.Lock()
	defer m.mu.Unlock()

	accounts := make([]domain.Account, len(m.accounts))
	copy(accounts, m.accounts)

	return accounts
}

func (m *PoolManager) Account(id domain.AccountID) (domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, err := m.indexLocked(id)
	if err != nil {
		return domain.Account{}, err
	}

	return m.accounts[idx], nil
}

// ActiveAccount returns the account bound to the active session, if any.
func (m *PoolManager) ActiveAccount() (domain.Account, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil || !m.session.Active {
		return domain.Account{}, false
	}
	idx, err := m.indexLocked(m.session.AccountID)
	if err != nil {
		return domain.Account{}, false
	}

	return m.accounts[idx], true
}

// SessionElapsed reports how long the active session has been running.
func (m *PoolManager) SessionElapsed() (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil || !m.session.Active {
		return 0, false
	}

	return m.session.Elapsed(m.clock.Now()), true
}

// SessionQuotaUsedPercent reports the active account's quota consumption with
// the live session's elapsed time included.
func (m *PoolManager) SessionQuotaUsedPercent() (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil || !m.session.Active {
		return 0, false
	}
	idx, err := m.indexLocked(m.session.AccountID)
	if err != nil {
		return 0, false
	}

	account := m.accounts[idx]
	if account.DailyQuotaLimit <= 0 {
		return 0, false
	}
	used := account.DailyQuotaUsed + m.session.Elapsed(m.clock.Now())

	return float64(used) / float64(account.DailyQuotaLimit) * 100, true
}

func (m *PoolManager) indexLocked(id domain.AccountID) (int, error) {
	for i := range m.accounts {
		if m.accounts[i].ID == id {
			return i, nil
		}
	}

	return 0, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
}

func (m *PoolManager) boundToActiveSessionLocked(id domain.AccountID) bool {
	return m.session != nil && m.session.Active && m.session.AccountID == id
}

func (m *PoolManager) snapshotLocked() domain.PoolState {
	return domain.PoolState{
		Accounts: m.accounts,
		Settings: m.settings,
		Cursor:   m.cursor,
		Session:  m.session,
	}.Clone()
}

// queuePersistLocked hands the current snapshot to the persistence writer.
// Only the newest snapshot matters, so a stale queued snapshot is replaced
// rather than written first. After Close the writer is gone; late callers,
// such as a monitor rotation racing shutdown, drop their snapshot instead of
// sending on the closed channel.
func (m *PoolManager) queuePersistLocked() {
	if m.closed {
		return
	}

	state := m.snapshotLocked()
	select {
	case m.persistCh <- state:
	default:
		select {
		case <-m.persistCh:
		default:
		}
		m.persistCh <- state
	}
}

func (m *PoolManager) emitLocked(eventType domain.EventType, id domain.AccountID, message string) {
	m.events.Publish(domain.Event{
		Type:      eventType,
		AccountID: id,
		Message:   message,
		At:        m.clock.Now(),
	})
}

// persistLoop serializes snapshot writes. A failed write is logged and the
// in-memory state stays authoritative; the next mutation re-queues the latest
// snapshot.
func (m *PoolManager) persistLoop() {
	defer m.persistWG.Done()

	for state := range m.persistCh {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		if err := m.store.Save(ctx, state); err != nil {
			m.logger.Error("persist pool state", "error", err)
		}
		cancel()
	}
}
