package domain

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAccounts() []Account {
	return []Account{
		{ID: "1", Identity: "carol", Priority: 2, DailyQuotaUsed: time.Hour, DailyQuotaLimit: 6 * time.Hour, TotalSessions: 4},
		{ID: "2", Identity: "alice", Priority: 1, DailyQuotaUsed: 3 * time.Hour, DailyQuotaLimit: 6 * time.Hour, TotalSessions: 9},
		{ID: "3", Identity: "bob", Priority: 1, DailyQuotaUsed: 2 * time.Hour, DailyQuotaLimit: 6 * time.Hour, TotalSessions: 2},
	}
}

func TestSelectNextEmptySet(t *testing.T) {
	t.Parallel()

	_, cursor, ok := SelectNext(StrategyPriority, nil, 3, nil)
	assert.False(t, ok)
	assert.Equal(t, 3, cursor)
}

func TestSelectNextRoundRobinVisitsEachOnce(t *testing.T) {
	t.Parallel()

	accounts := testAccounts()
	cursor := 0
	seen := map[AccountID]int{}
	for i := 0; i < len(accounts); i++ {
		picked, next, ok := SelectNext(StrategyRoundRobin, accounts, cursor, nil)
		require.True(t, ok)
		seen[picked.ID]++
		cursor = next
	}

	for _, account := range accounts {
		assert.Equal(t, 1, seen[account.ID], "account %s picked more or less than once", account.Identity)
	}

	// One more call wraps around to the start of the sorted order.
	picked, _, ok := SelectNext(StrategyRoundRobin, accounts, cursor, nil)
	require.True(t, ok)
	assert.Equal(t, "alice", picked.Identity)
}

func TestSelectNextRoundRobinOrdersByPriorityThenIdentity(t *testing.T) {
	t.Parallel()

	accounts := testAccounts()
	var order []string
	cursor := 0
	for i := 0; i < len(accounts); i++ {
		picked, next, ok := SelectNext(StrategyRoundRobin, accounts, cursor, nil)
		require.True(t, ok)
		order = append(order, picked.Identity)
		cursor = next
	}

	assert.Equal(t, []string{"alice", "bob", "carol"}, order)
}

func TestSelectNextLeastUsed(t *testing.T) {
	t.Parallel()

	picked, cursor, ok := SelectNext(StrategyLeastUsed, testAccounts(), 7, nil)
	require.True(t, ok)
	assert.Equal(t, "carol", picked.Identity)
	assert.Equal(t, 7, cursor, "least-used must not touch the round-robin cursor")
}

func TestSelectNextLeastUsedBreaksTiesOnSessionsThenPriority(t *testing.T) {
	t.Parallel()

	accounts := []Account{
		{ID: "1", Identity: "b", Priority: 2, DailyQuotaUsed: time.Hour, TotalSessions: 3},
		{ID: "2", Identity: "a", Priority: 1, DailyQuotaUsed: time.Hour, TotalSessions: 3},
		{ID: "3", Identity: "c", Priority: 3, DailyQuotaUsed: time.Hour, TotalSessions: 1},
	}

	picked, _, ok := SelectNext(StrategyLeastUsed, accounts, 0, nil)
	require.True(t, ok)
	assert.Equal(t, "c", picked.Identity)
}

func TestSelectNextPriorityPrefersLowPriorityThenRemainingQuota(t *testing.T) {
	t.Parallel()

	accounts := []Account{
		{ID: "1", Identity: "drained", Priority: 1, DailyQuotaUsed: 5 * time.Hour, DailyQuotaLimit: 6 * time.Hour},
		{ID: "2", Identity: "fresh", Priority: 1, DailyQuotaUsed: time.Hour, DailyQuotaLimit: 6 * time.Hour},
		{ID: "3", Identity: "backup", Priority: 2, DailyQuotaLimit: 6 * time.Hour},
	}

	picked, _, ok := SelectNext(StrategyPriority, accounts, 0, nil)
	require.True(t, ok)
	assert.Equal(t, "fresh", picked.Identity)
}

func TestSelectNextDefaultsToPriority(t *testing.T) {
	t.Parallel()

	picked, _, ok := SelectNext(RotationStrategy(""), testAccounts(), 0, nil)
	require.True(t, ok)
	// alice and bob share priority 1; bob has more remaining quota.
	assert.Equal(t, "bob", picked.Identity)
}

func TestSelectNextRandomStaysInSet(t *testing.T) {
	t.Parallel()

	accounts := testAccounts()
	rng := rand.New(rand.NewSource(42))
	ids := map[AccountID]bool{}
	for _, account := range accounts {
		ids[account.ID] = true
	}

	for i := 0; i < 50; i++ {
		picked, _, ok := SelectNext(StrategyRandom, accounts, 0, rng)
		require.True(t, ok)
		assert.True(t, ids[picked.ID])
	}
}

func TestParseRotationStrategy(t *testing.T) {
	t.Parallel()

	strategy, err := ParseRotationStrategy(" Round_Robin ")
	require.NoError(t, err)
	assert.Equal(t, StrategyRoundRobin, strategy)

	_, err = ParseRotationStrategy("fastest")
	require.Error(t, err)
}

func TestDefaultSettingsValidate(t *testing.T) {
	t.Parallel()

	settings := DefaultSettings()
	require.NoError(t, settings.Validate())
	assert.Equal(t, StrategyPriority, settings.Strategy)

	settings.QuotaThresholdPercent = 120
	assert.Error(t, settings.Validate())

	settings = DefaultSettings()
	settings.MaxConsecutiveFailures = 0
	assert.Error(t, settings.Validate())

	settings = DefaultSettings()
	settings.CooldownDuration = 0
	assert.Error(t, settings.Validate())
}
