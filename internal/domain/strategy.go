package domain

import (
	"math/rand"
	"sort"
	"strings"
)

// SelectNext picks the next account to use from the already-filtered available
// set. The cursor is the round-robin position; every other strategy returns it
// unchanged. Returns false when the set is empty.
func SelectNext(strategy RotationStrategy, available []Account, cursor int, rng *rand.Rand) (Account, int, bool) {
	if len(available) == 0 {
		return Account{}, cursor, false
	}

	switch strategy {
	case StrategyRoundRobin:
		ordered := sortedCopy(available, byPriorityIdentity)
		if cursor < 0 {
			cursor = 0
		}
		idx := cursor % len(ordered)
		return ordered[idx], (idx + 1) % len(ordered), true
	case StrategyLeastUsed:
		ordered := sortedCopy(available, byLeastUsed)
		return ordered[0], cursor, true
	case StrategyRandom:
		if rng == nil {
			return available[0], cursor, true
		}
		return available[rng.Intn(len(available))], cursor, true
	default:
		// Priority is the fallback when no strategy is configured.
		ordered := sortedCopy(available, byPriorityRemaining)
		return ordered[0], cursor, true
	}
}

func sortedCopy(accounts []Account, less func(a, b Account) bool) []Account {
	ordered := make([]Account, len(accounts))
	copy(ordered, accounts)
	sort.Slice(ordered, func(i, j int) bool {
		return less(ordered[i], ordered[j])
	})
	return ordered
}

func byPriorityIdentity(a, b Account) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return identityLess(a, b)
}

func byLeastUsed(a, b Account) bool {
	if a.DailyQuotaUsed != b.DailyQuotaUsed {
		return a.DailyQuotaUsed < b.DailyQuotaUsed
	}
	if a.TotalSessions != b.TotalSessions {
		return a.TotalSessions < b.TotalSessions
	}
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return identityLess(a, b)
}

func byPriorityRemaining(a, b Account) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	if a.RemainingQuota() != b.RemainingQuota() {
		return a.RemainingQuota() > b.RemainingQuota()
	}
	return identityLess(a, b)
}

// identityLess is the deterministic tie-break shared by every ordering.
func identityLess(a, b Account) bool {
	return strings.ToLower(a.Identity) < strings.ToLower(b.Identity)
}
