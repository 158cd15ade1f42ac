package conversation

import "time"

// Session is the saved continuation of one principal's in-progress command:
// the token of the active definition, the cursor into its state sequence,
// and the attributes collected so far. Sessions reference definitions by
// token rather than by pointer so they serialize to external stores.
type Session struct {
	PrincipalID  int64     `json:"principal_id"`
	Command      string    `json:"command"`
	StateIndex   int       `json:"state_index"`
	Attrs        *Attrs    `json:"attrs"`
	StartedAt    time.Time `json:"started_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

func newSession(principalID int64, token string, now time.Time) *Session {
	return &Session{
		PrincipalID:  principalID,
		Command:      token,
		StateIndex:   0,
		Attrs:        NewAttrs(),
		StartedAt:    now,
		LastActiveAt: now,
	}
}

func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Attrs = s.Attrs.clone()
	return &cp
}

func (s *Session) touch(now time.Time) {
	s.LastActiveAt = now
}

// IdleFor reports how long the session has gone without a message.
func (s *Session) IdleFor(now time.Time) time.Duration {
	return now.Sub(s.LastActiveAt)
}
