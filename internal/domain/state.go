package domain

// PoolState is the durable snapshot of the whole pool: every account, the
// policy settings, the round-robin cursor, and the active session if one is
// running.
type PoolState struct {
	Accounts []Account
	Settings PoolSettings
	Cursor   int
	Session  *Session
}

func (s PoolState) Clone() PoolState {
	out := s
	out.Accounts = make([]Account, len(s.Accounts))
	copy(out.Accounts, s.Accounts)
	for i := range out.Accounts {
		if until := out.Accounts[i].CooldownUntil; until != nil {
			clone := *until
			out.Accounts[i].CooldownUntil = &clone
		}
	}
	if s.Session != nil {
		session := *s.Session
		out.Session = &session
	}
	return out
}
