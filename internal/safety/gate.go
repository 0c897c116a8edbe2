package safety

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/aplomb-care/aplomb/internal/domain"
)

// Config parameterizes one gate instance: its pattern set and the fixed
// response texts. The crisis and medical gates share this shape.
type Config struct {
	Name            string
	Patterns        PatternSet
	AskQuestion     string
	ReAskMessage    string
	ReassureMessage string
	SoftCheckIn     string
	BlockMessage    string
	// MaxAskRetries is how many unknown replies to the binary question are
	// tolerated before blocking. Defaults to 2.
	MaxAskRetries int
	// MonitorCleanTurns is how many clean model turns pass before monitoring
	// reverts to normal. Defaults to 1 (revert on the first clean turn).
	MonitorCleanTurns int
}

// Gate runs the four-state safety machine for one concern. It owns no session
// state itself; callers pass the per-session GateStatus for each turn.
type Gate struct {
	cfg       Config
	classify  func(string) (Tier, error)
	interpret func(string) (Answer, error)
}

// New creates a gate from its config, applying defaults.
func New(cfg Config) *Gate {
	if cfg.MaxAskRetries <= 0 {
		cfg.MaxAskRetries = 2
	}
	if cfg.MonitorCleanTurns <= 0 {
		cfg.MonitorCleanTurns = 1
	}
	g := &Gate{cfg: cfg}
	g.classify = func(text string) (Tier, error) {
		return cfg.Patterns.Classify(text), nil
	}
	g.interpret = func(text string) (Answer, error) {
		return Interpret(text), nil
	}
	return g
}

// runClassify shields Step from a panicking classifier; a fault surfaces as
// an error so the caller can fail closed.
func (g *Gate) runClassify(text string) (tier Tier, err error) {
	defer func() {
		if r := recover(); r != nil {
			tier, err = TierNone, fmt.Errorf("classifier fault: %v", r)
		}
	}()
	return g.classify(text)
}

func (g *Gate) runInterpret(text string) (ans Answer, err error) {
	defer func() {
		if r := recover(); r != nil {
			ans, err = AnswerUnknown, fmt.Errorf("interpreter fault: %v", r)
		}
	}()
	return g.interpret(text)
}

// Name returns the gate's configured name.
func (g *Gate) Name() string { return g.cfg.Name }

// BlockMessage returns the fixed lock response for this gate.
func (g *Gate) BlockMessage() string { return g.cfg.BlockMessage }

// Outcome is the result of stepping a gate for one turn.
type Outcome struct {
	// Passthrough is true when the turn may proceed to the dialogue agent.
	Passthrough bool
	Signal      domain.SafetySignal
	Reply       string
	// RemoveFlaggedMessage asks the caller to drop the flagged turn from
	// displayed history (false alarm resolved).
	RemoveFlaggedMessage bool
	FlaggedMessageID     string
	FocusInput           bool
	BlockInput           bool
}

// Step evaluates one incoming turn against the gate's state machine, mutating
// st in place. It never returns Passthrough while a safety question is
// outstanding: classifier or interpreter faults fall back to the unknown path,
// which feeds the retry-to-block counter.
func (g *Gate) Step(st *domain.GateStatus, utterance, clientMessageID string) Outcome {
	switch st.State {
	case domain.StateBlocked:
		return g.blockOutcome(st)

	case domain.StateAsked:
		ans, err := g.runInterpret(utterance)
		if err != nil {
			slog.Error("safety interpreter failed, failing closed", "gate", g.cfg.Name, "error", err)
			ans = AnswerUnknown
		}
		switch ans {
		case AnswerYes:
			st.State = domain.StateBlocked
			slog.Warn("safety question confirmed, blocking session", "gate", g.cfg.Name)
			return g.blockOutcome(st)
		case AnswerNo:
			flagged := st.FlaggedMessageID
			st.Reset()
			return Outcome{
				Signal:               domain.SafetyNone,
				Reply:                g.cfg.ReassureMessage,
				RemoveFlaggedMessage: flagged != "",
				FlaggedMessageID:     flagged,
			}
		default:
			st.AskRetryCount++
			if st.AskRetryCount >= g.cfg.MaxAskRetries {
				st.State = domain.StateBlocked
				slog.Warn("no clear answer to safety question, blocking session",
					"gate", g.cfg.Name, "ask_retries", st.AskRetryCount)
				return g.blockOutcome(st)
			}
			return Outcome{
				Signal:           domain.SafetyAsk,
				Reply:            g.cfg.ReAskMessage,
				FlaggedMessageID: st.FlaggedMessageID,
				FocusInput:       true,
			}
		}

	default: // normal or monitoring
		tier, err := g.runClassify(utterance)
		if err != nil {
			// A broken classifier must not silently wave turns through:
			// treat the turn as probable and ask the binary question.
			slog.Error("safety classifier failed, failing closed", "gate", g.cfg.Name, "error", err)
			tier = TierProbable
		}
		switch tier {
		case TierExplicitImmediate:
			st.State = domain.StateBlocked
			slog.Warn("immediate danger detected, blocking session", "gate", g.cfg.Name)
			return g.blockOutcome(st)
		case TierExplicit, TierProbable:
			now := time.Now()
			st.State = domain.StateAsked
			st.AskRetryCount = 0
			st.LastAskedAt = &now
			st.FlaggedMessageID = clientMessageID
			slog.Info("safety question asked", "gate", g.cfg.Name, "tier", string(tier))
			return Outcome{
				Signal:           domain.SafetyAsk,
				Reply:            g.cfg.AskQuestion,
				FlaggedMessageID: st.FlaggedMessageID,
				FocusInput:       true,
			}
		case TierSoft:
			now := time.Now()
			st.State = domain.StateMonitoring
			st.CleanTurns = 0
			st.LastAskedAt = &now
			st.FlaggedMessageID = clientMessageID
			slog.Info("soft concern observed, monitoring", "gate", g.cfg.Name)
			return Outcome{
				Signal:           domain.SafetySoft,
				Reply:            g.cfg.SoftCheckIn,
				FlaggedMessageID: st.FlaggedMessageID,
				FocusInput:       true,
			}
		default:
			return Outcome{Passthrough: true, Signal: domain.SafetyNone}
		}
	}
}

// NoteCleanTurn records that a clean model turn completed. While monitoring,
// enough clean turns revert the gate to normal.
func (g *Gate) NoteCleanTurn(st *domain.GateStatus) {
	if st.State != domain.StateMonitoring {
		return
	}
	st.CleanTurns++
	if st.CleanTurns >= g.cfg.MonitorCleanTurns {
		st.Reset()
		slog.Info("monitoring cleared after clean turn", "gate", g.cfg.Name)
	}
}

func (g *Gate) blockOutcome(st *domain.GateStatus) Outcome {
	return Outcome{
		Signal:           domain.SafetyBlock,
		Reply:            g.cfg.BlockMessage,
		FlaggedMessageID: st.FlaggedMessageID,
		BlockInput:       true,
	}
}
