package domain

import "time"

// Session is one bounded period of active use of a single account. The pool
// runs the shared-session model: at most one session is active pool-wide.
type Session struct {
	ID        string
	AccountID AccountID
	StartedAt time.Time
	EndedAt   time.Time
	Active    bool
}

func (s Session) Elapsed(now time.Time) time.Duration {
	if !s.Active {
		return s.EndedAt.Sub(s.StartedAt)
	}
	return now.Sub(s.StartedAt)
}
