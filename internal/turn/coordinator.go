// Package turn orchestrates one conversation turn: safety gates first, then
// the protocol tracker, then the dialogue agent.
package turn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aplomb-care/aplomb/internal/agent"
	"github.com/aplomb-care/aplomb/internal/domain"
	"github.com/aplomb-care/aplomb/internal/protocol"
	"github.com/aplomb-care/aplomb/internal/safety"
	"github.com/aplomb-care/aplomb/internal/session"
	"github.com/aplomb-care/aplomb/internal/usage"
)

var (
	// ErrInvalidInput indicates a malformed turn request.
	ErrInvalidInput = errors.New("invalid turn input")
	// ErrInconsistentState indicates a session whose stored state violates an
	// internal invariant. The turn is aborted rather than guessed through.
	ErrInconsistentState = errors.New("inconsistent session state")
)

const maxUtteranceLen = 8000

// Coordinator runs the full turn pipeline. Turns for the same session key are
// serialized by a per-key lock; turns for different keys run concurrently.
type Coordinator struct {
	store   session.Store
	locks   *session.Locks
	crisis  *safety.Gate
	medical *safety.Gate
	gen     agent.Generator
	usage   usage.Recorder
}

// NewCoordinator wires the pipeline. gen may be nil, in which case passthrough
// turns fail with the agent-unavailable error while safety gates keep working.
func NewCoordinator(store session.Store, crisis, medical *safety.Gate, gen agent.Generator, rec usage.Recorder) *Coordinator {
	return &Coordinator{
		store:   store,
		locks:   session.NewLocks(),
		crisis:  crisis,
		medical: medical,
		gen:     gen,
		usage:   rec,
	}
}

// Handle processes one turn end to end and returns the response for the
// client. Gate transitions are persisted before any agent call; protocol
// mutations are persisted only after the agent call succeeds.
func (c *Coordinator) Handle(ctx context.Context, req domain.TurnRequest) (*domain.TurnResponse, error) {
	key := strings.TrimSpace(req.SessionID)
	utterance := strings.TrimSpace(req.Utterance)
	if key == "" || utterance == "" || len(utterance) > maxUtteranceLen {
		return nil, ErrInvalidInput
	}
	if req.ClientMessageID == "" {
		// A flagged message can only be removed client-side if it has an id.
		req.ClientMessageID = uuid.NewString()
	}

	release := c.locks.Acquire(key)
	defer release()

	sess, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		sess = domain.NewSession(key)
	}

	// A blocked session answers every turn with the lock response, crisis
	// taking precedence when both gates are locked.
	if sess.Blocked() {
		var out safety.Outcome
		if sess.Crisis.State == domain.StateBlocked {
			out = c.crisis.Step(&sess.Crisis, utterance, req.ClientMessageID)
		} else {
			out = c.medical.Step(&sess.Medical, utterance, req.ClientMessageID)
		}
		return responseFrom(out), nil
	}

	// Safety gates run before anything else. Crisis has precedence over
	// medical, and a blocked gate answers every turn with its lock response.
	for _, g := range []struct {
		gate *safety.Gate
		st   *domain.GateStatus
	}{
		{c.crisis, &sess.Crisis},
		{c.medical, &sess.Medical},
	} {
		out := g.gate.Step(g.st, utterance, req.ClientMessageID)
		if out.Passthrough {
			continue
		}
		if err := c.store.Put(ctx, sess); err != nil {
			// Losing an asked or blocked transition would let the next turn
			// bypass the question, so the client must retry this one.
			return nil, fmt.Errorf("persist gate state: %w", err)
		}
		return responseFrom(out), nil
	}

	return c.modelTurn(ctx, sess, utterance, req)
}

// modelTurn runs the protocol tracker and the dialogue agent for a turn both
// gates waved through. Protocol mutations happen on a copy of the session and
// are committed only after the agent replies.
func (c *Coordinator) modelTurn(ctx context.Context, sess *domain.Session, utterance string, req domain.TurnRequest) (*domain.TurnResponse, error) {
	work := sess.Clone()

	if req.Protocol != nil && len(req.Protocol.OpenAspects) > 0 {
		protocol.OpenRated(work, req.Protocol.OpenAspects)
	}

	stateBlock, err := c.trackProgress(work, utterance, req.Protocol)
	if err != nil {
		return nil, err
	}

	if c.gen == nil {
		return nil, agent.ErrUnavailable
	}

	instructions := baseInstructions
	if stateBlock != "" {
		instructions = instructions + "\n\n" + stateBlock
	}
	history := append(append([]domain.ChatTurn{}, req.PriorTurns...), domain.ChatTurn{
		Role:    "user",
		Content: utterance,
	})

	result, err := c.gen.Generate(ctx, instructions, history)
	if err != nil {
		// Session creation and any earlier gate state are already persisted;
		// this turn's protocol mutations are discarded with work.
		if putErr := c.store.Put(ctx, sess); putErr != nil {
			slog.Error("failed to persist session after agent error", "error", putErr, "session_key", sess.Key)
		}
		return nil, err
	}

	c.crisis.NoteCleanTurn(&work.Crisis)
	c.medical.NoteCleanTurn(&work.Medical)

	if err := c.store.Put(ctx, work); err != nil {
		// The reply was already paid for; surface it and let the next turn
		// re-derive what this commit lost.
		slog.Error("failed to persist session after turn", "error", err, "session_key", work.Key)
	}

	c.recordUsage(work.Key, result)

	return &domain.TurnResponse{
		Reply:  result.Text,
		Safety: domain.SafetyNone,
		Action: domain.ClientAction{FocusInput: true},
	}, nil
}

// trackProgress applies any SUD reading for this turn to the working session
// and renders the protocol state block, or "" when no reading applies.
func (c *Coordinator) trackProgress(work *domain.Session, utterance string, hints *domain.ProtocolHints) (string, error) {
	cur := work.CurrentAspect()
	if cur == nil {
		return "", nil
	}

	var reading *float64
	if hints != nil && hints.SudReading != nil {
		reading = hints.SudReading
	} else if cur.LastKnownSud == nil || cur.SudStale {
		// A measurement is pending for the current aspect; fish one out of the
		// utterance.
		if v, ok := agent.ExtractSud(utterance); ok {
			reading = &v
		}
	}
	if reading == nil {
		return "", nil
	}

	label := cur.Label
	eval, err := protocol.RecordSud(work, *reading)
	if err != nil {
		if errors.Is(err, protocol.ErrInvalidSud) {
			slog.Warn("ignoring unusable sud reading", "session_key", work.Key, "raw", *reading)
			return "", nil
		}
		return "", fmt.Errorf("%w: %v", ErrInconsistentState, err)
	}

	res, err := protocol.CloseIfResolved(work)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInconsistentState, err)
	}
	if res == protocol.CloseReopened {
		label = work.CurrentAspect().Label
	}

	return protocol.BuildStateBlock(label, eval, res == protocol.CloseSessionComplete), nil
}

func (c *Coordinator) recordUsage(sessionKey string, result *agent.Result) {
	if c.usage == nil {
		return
	}
	c.usage.Record(usage.Event{
		Timestamp:    time.Now().UTC().Format(time.RFC3339Nano),
		EventID:      uuid.NewString(),
		SessionKey:   sessionKey,
		Model:        result.Model,
		InputTokens:  result.InputTokens,
		OutputTokens: result.OutputTokens,
		CostUSD:      usage.CalculateCost(result.Model, result.InputTokens, result.OutputTokens),
	})
}

func responseFrom(out safety.Outcome) *domain.TurnResponse {
	return &domain.TurnResponse{
		Reply:  out.Reply,
		Safety: out.Signal,
		Action: domain.ClientAction{
			BlockFurtherInput:    out.BlockInput,
			RemoveFlaggedMessage: out.RemoveFlaggedMessage,
			FlaggedMessageID:     out.FlaggedMessageID,
			FocusInput:           out.FocusInput,
		},
	}
}
