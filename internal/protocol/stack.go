package protocol

import (
	"errors"
	"sort"

	"github.com/aplomb-care/aplomb/internal/domain"
)

// ErrNoCurrentAspect is a programming invariant violation: a SUD was recorded
// or a close attempted with an empty aspect stack. Callers must abort the
// turn rather than guess.
var ErrNoCurrentAspect = errors.New("no current aspect on stack")

// CloseResult describes what CloseIfResolved did.
type CloseResult int

const (
	// CloseNoop means the top aspect is not at SUD 0; nothing changed.
	CloseNoop CloseResult = iota
	// CloseReopened means the top aspect was popped and the one beneath it
	// became current, marked stale for mandatory re-measurement.
	CloseReopened
	// CloseSessionComplete means the last aspect (the root) was popped: the
	// session's therapeutic work is done.
	CloseSessionComplete
)

// OpenAspect pushes a new, unmeasured aspect which becomes current. The
// previously-current aspect is preserved untouched beneath it.
func OpenAspect(s *domain.Session, label string) {
	s.Aspects = append(s.Aspects, domain.Aspect{Label: label})
}

// OpenRated pushes aspects reported together in one utterance. The
// higher-reported SUD must be processed first, so lower-priority aspects are
// pushed before higher ones and each recorded SUD lands on its own aspect.
func OpenRated(s *domain.Session, hints []domain.AspectHint) {
	ordered := make([]domain.AspectHint, len(hints))
	copy(ordered, hints)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Sud < ordered[j].Sud })
	for _, h := range ordered {
		sud, err := NormalizeSud(h.Sud)
		if err != nil {
			// Unusable reading: open the aspect unmeasured.
			OpenAspect(s, h.Label)
			continue
		}
		v := sud
		s.Aspects = append(s.Aspects, domain.Aspect{Label: h.Label, LastKnownSud: &v})
	}
}

// RecordSud evaluates a new reading against the current aspect, updates the
// aspect's last known SUD and returns the evaluation for response phrasing.
func RecordSud(s *domain.Session, rawSud float64) (domain.SudEvaluation, error) {
	cur := s.CurrentAspect()
	if cur == nil {
		return domain.SudEvaluation{}, ErrNoCurrentAspect
	}

	var previous *float64
	if cur.LastKnownSud != nil && !cur.SudStale {
		previous = cur.LastKnownSud
	}

	eval, err := EvaluateSud(previous, rawSud)
	if err != nil {
		return domain.SudEvaluation{}, err
	}

	v := eval.CurrentSud
	cur.LastKnownSud = &v
	cur.SudStale = false
	return eval, nil
}

// CloseIfResolved pops the current aspect if its SUD reached 0. Reopening the
// aspect beneath marks its reading stale: a fresh measurement is mandatory
// before the protocol continues on it. Calling this with a non-zero top is a
// no-op; calling it on an empty stack is an invariant violation.
func CloseIfResolved(s *domain.Session) (CloseResult, error) {
	cur := s.CurrentAspect()
	if cur == nil {
		return CloseNoop, ErrNoCurrentAspect
	}
	if cur.LastKnownSud == nil || *cur.LastKnownSud != 0 {
		return CloseNoop, nil
	}

	s.Aspects = s.Aspects[:len(s.Aspects)-1]
	if len(s.Aspects) == 0 {
		return CloseSessionComplete, nil
	}

	s.CurrentAspect().SudStale = true
	return CloseReopened, nil
}
