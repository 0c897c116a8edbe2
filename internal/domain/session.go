// Package domain contains core domain types for the aplomb gateway.
package domain

import (
	"time"
)

// GateState is the safety state of one gate for one session.
type GateState string

const (
	// StateNormal allows turns to pass through to the dialogue agent.
	StateNormal GateState = "normal"
	// StateMonitoring indicates a soft concern was observed; turns still pass
	// through, and the state reverts to normal after clean model turns.
	StateMonitoring GateState = "monitoring"
	// StateAsked means a binary safety question is pending.
	StateAsked GateState = "asked"
	// StateBlocked is terminal: every further turn receives the lock response.
	StateBlocked GateState = "blocked"
)

// GateStatus holds the mutable state of one safety gate.
type GateStatus struct {
	State            GateState  `json:"state"`
	AskRetryCount    int        `json:"ask_retry_count"`
	LastAskedAt      *time.Time `json:"last_asked_at,omitempty"`
	FlaggedMessageID string     `json:"flagged_message_id,omitempty"`
	// CleanTurns counts consecutive clean model turns while monitoring.
	CleanTurns int `json:"clean_turns,omitempty"`
}

// NewGateStatus returns a gate in its initial state.
func NewGateStatus() GateStatus {
	return GateStatus{State: StateNormal}
}

// Reset clears transient fields and returns the gate to normal.
func (g *GateStatus) Reset() {
	g.State = StateNormal
	g.AskRetryCount = 0
	g.LastAskedAt = nil
	g.FlaggedMessageID = ""
	g.CleanTurns = 0
}

// Session is the per-conversation state keyed by a caller-supplied session key.
// It is mutated only while the owning turn holds the per-key lock.
type Session struct {
	Key       string     `json:"key"`
	Crisis    GateStatus `json:"crisis"`
	Medical   GateStatus `json:"medical"`
	Aspects   []Aspect   `json:"aspects"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// NewSession creates a session in its initial state.
func NewSession(key string) *Session {
	now := time.Now()
	return &Session{
		Key:       key,
		Crisis:    NewGateStatus(),
		Medical:   NewGateStatus(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Blocked reports whether either gate has locked the session.
func (s *Session) Blocked() bool {
	return s.Crisis.State == StateBlocked || s.Medical.State == StateBlocked
}

// CurrentAspect returns the top-of-stack aspect, or nil if the stack is empty.
func (s *Session) CurrentAspect() *Aspect {
	if len(s.Aspects) == 0 {
		return nil
	}
	return &s.Aspects[len(s.Aspects)-1]
}

// RootAspect returns the bottom-most aspect, or nil if the stack is empty.
func (s *Session) RootAspect() *Aspect {
	if len(s.Aspects) == 0 {
		return nil
	}
	return &s.Aspects[0]
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	out := *s
	out.Aspects = make([]Aspect, len(s.Aspects))
	copy(out.Aspects, s.Aspects)
	if s.Crisis.LastAskedAt != nil {
		ts := *s.Crisis.LastAskedAt
		out.Crisis.LastAskedAt = &ts
	}
	if s.Medical.LastAskedAt != nil {
		ts := *s.Medical.LastAskedAt
		out.Medical.LastAskedAt = &ts
	}
	for i := range s.Aspects {
		if s.Aspects[i].LastKnownSud != nil {
			v := *s.Aspects[i].LastKnownSud
			out.Aspects[i].LastKnownSud = &v
		}
	}
	return &out
}
