package safety

import (
	"errors"
	"testing"

	"github.com/aplomb-care/aplomb/internal/domain"
)

func newCrisisStatus() domain.GateStatus {
	return domain.NewGateStatus()
}

func TestGateImmediateDangerBlocksInstantly(t *testing.T) {
	g := CrisisGate(1)
	st := newCrisisStatus()

	out := g.Step(&st, "je vais me tuer maintenant", "msg-1")

	if out.Passthrough {
		t.Fatal("Expected turn to be intercepted")
	}
	if st.State != domain.StateBlocked {
		t.Errorf("Expected state %q, got %q", domain.StateBlocked, st.State)
	}
	if out.Signal != domain.SafetyBlock {
		t.Errorf("Expected signal %q, got %q", domain.SafetyBlock, out.Signal)
	}
	if !out.BlockInput {
		t.Error("Expected BlockInput to be set")
	}

	// Blocked is terminal: even a benign follow-up gets the lock response.
	out = g.Step(&st, "tout va bien, je plaisantais", "msg-2")
	if out.Passthrough || out.Signal != domain.SafetyBlock {
		t.Errorf("Expected lock response after block, got passthrough=%v signal=%q", out.Passthrough, out.Signal)
	}
}

func TestGateExplicitAsksQuestion(t *testing.T) {
	g := CrisisGate(1)
	st := newCrisisStatus()

	out := g.Step(&st, "je veux me suicider", "msg-1")

	if out.Passthrough {
		t.Fatal("Expected turn to be intercepted")
	}
	if st.State != domain.StateAsked {
		t.Errorf("Expected state %q, got %q", domain.StateAsked, st.State)
	}
	if out.Signal != domain.SafetyAsk {
		t.Errorf("Expected signal %q, got %q", domain.SafetyAsk, out.Signal)
	}
	if st.FlaggedMessageID != "msg-1" {
		t.Errorf("Expected flagged message id %q, got %q", "msg-1", st.FlaggedMessageID)
	}
	if st.LastAskedAt == nil {
		t.Error("Expected LastAskedAt to be set")
	}
}

func TestGateAskedYesBlocks(t *testing.T) {
	g := CrisisGate(1)
	st := newCrisisStatus()

	g.Step(&st, "j'ai des idees noires", "msg-1")
	out := g.Step(&st, "oui", "msg-2")

	if st.State != domain.StateBlocked {
		t.Errorf("Expected state %q, got %q", domain.StateBlocked, st.State)
	}
	if out.Signal != domain.SafetyBlock || !out.BlockInput {
		t.Errorf("Expected block outcome, got signal=%q blockInput=%v", out.Signal, out.BlockInput)
	}
}

func TestGateAskedNoReassuresAndResets(t *testing.T) {
	g := CrisisGate(1)
	st := newCrisisStatus()

	g.Step(&st, "j'ai des idees noires", "msg-1")
	out := g.Step(&st, "non, pas du tout", "msg-2")

	if st.State != domain.StateNormal {
		t.Errorf("Expected state %q, got %q", domain.StateNormal, st.State)
	}
	if !out.RemoveFlaggedMessage {
		t.Error("Expected flagged message removal after false alarm")
	}
	if out.FlaggedMessageID != "msg-1" {
		t.Errorf("Expected flagged message id %q, got %q", "msg-1", out.FlaggedMessageID)
	}
	if st.FlaggedMessageID != "" || st.AskRetryCount != 0 {
		t.Errorf("Expected status reset, got %+v", st)
	}

	// A fresh benign turn now passes through.
	out = g.Step(&st, "je suis stresse par mon travail", "msg-3")
	if !out.Passthrough {
		t.Error("Expected passthrough after reset")
	}
}

func TestGateAskedUnclearAnswersEscalateToBlock(t *testing.T) {
	g := CrisisGate(1)
	st := newCrisisStatus()

	g.Step(&st, "je veux disparaitre", "msg-1")

	out := g.Step(&st, "je ne sais pas", "msg-2")
	if st.State != domain.StateAsked {
		t.Fatalf("Expected state %q after first unclear answer, got %q", domain.StateAsked, st.State)
	}
	if out.Signal != domain.SafetyAsk {
		t.Errorf("Expected re-ask signal, got %q", out.Signal)
	}

	out = g.Step(&st, "peut-etre, c'est complique", "msg-3")
	if st.State != domain.StateBlocked {
		t.Errorf("Expected state %q after second unclear answer, got %q", domain.StateBlocked, st.State)
	}
	if out.Signal != domain.SafetyBlock {
		t.Errorf("Expected block signal, got %q", out.Signal)
	}
}

func TestGateSoftMonitoringReverts(t *testing.T) {
	g := CrisisGate(2)
	st := newCrisisStatus()

	out := g.Step(&st, "j'en peux plus", "msg-1")
	if st.State != domain.StateMonitoring {
		t.Fatalf("Expected state %q, got %q", domain.StateMonitoring, st.State)
	}
	if out.Signal != domain.SafetySoft {
		t.Errorf("Expected signal %q, got %q", domain.SafetySoft, out.Signal)
	}

	// Monitoring does not hold benign turns back.
	out = g.Step(&st, "bon, parlons de mon stress au travail", "msg-2")
	if !out.Passthrough {
		t.Fatal("Expected passthrough while monitoring")
	}

	g.NoteCleanTurn(&st)
	if st.State != domain.StateMonitoring {
		t.Errorf("Expected monitoring to persist below the clean-turn threshold, got %q", st.State)
	}
	g.NoteCleanTurn(&st)
	if st.State != domain.StateNormal {
		t.Errorf("Expected revert to %q after threshold, got %q", domain.StateNormal, st.State)
	}
}

func TestGateNoteCleanTurnIgnoresOtherStates(t *testing.T) {
	g := CrisisGate(1)
	st := newCrisisStatus()

	g.NoteCleanTurn(&st)
	if st.State != domain.StateNormal || st.CleanTurns != 0 {
		t.Errorf("Expected normal state untouched, got %+v", st)
	}
}

// A broken classifier must not wave turns through: the gate falls back to the
// probable path and asks its question.
func TestGateClassifierFailureFailsClosed(t *testing.T) {
	g := New(Config{
		Name:         "test",
		AskQuestion:  "are you in danger?",
		BlockMessage: "locked",
	})
	g.classify = func(string) (Tier, error) {
		return TierNone, errors.New("boom")
	}
	st := newCrisisStatus()

	out := g.Step(&st, "anything", "msg-1")
	if out.Passthrough {
		t.Fatal("Expected fail-closed interception")
	}
	if st.State != domain.StateAsked {
		t.Errorf("Expected state %q, got %q", domain.StateAsked, st.State)
	}
}

// A broken interpreter treats the reply as unclear, feeding the retry counter.
func TestGateInterpreterFailureTreatsAnswerAsUnclear(t *testing.T) {
	g := CrisisGate(1)
	g.interpret = func(string) (Answer, error) {
		return AnswerUnknown, errors.New("boom")
	}
	st := newCrisisStatus()

	g.Step(&st, "je veux me suicider", "msg-1")
	g.Step(&st, "oui", "msg-2")
	if st.State != domain.StateAsked {
		t.Fatalf("Expected re-ask on interpreter failure, got %q", st.State)
	}
	g.Step(&st, "oui", "msg-3")
	if st.State != domain.StateBlocked {
		t.Errorf("Expected block after repeated failures, got %q", st.State)
	}
}

// A panicking pattern set is recovered by the default wrappers rather than
// crashing the turn.
func TestGateRecoversFromPanickingClassifier(t *testing.T) {
	g := New(Config{
		Name:         "test",
		AskQuestion:  "are you in danger?",
		BlockMessage: "locked",
	})
	inner := g.classify
	g.classify = func(text string) (Tier, error) {
		if text == "trigger" {
			panic("pattern fault")
		}
		return inner(text)
	}

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("Step panicked: %v", r)
		}
	}()

	st := newCrisisStatus()
	out := g.Step(&st, "trigger", "msg-1")
	if out.Passthrough {
		t.Error("Expected fail-closed interception on panic")
	}
}

func TestMedicalGateIndependentFromCrisis(t *testing.T) {
	crisis := CrisisGate(1)
	medical := MedicalGate(1)

	sess := domain.NewSession("k")
	out := crisis.Step(&sess.Crisis, "j'ai une douleur dans la poitrine", "msg-1")
	if !out.Passthrough {
		t.Fatal("Expected crisis gate to pass medical language through")
	}

	out = medical.Step(&sess.Medical, "j'ai une douleur dans la poitrine", "msg-1")
	if out.Passthrough {
		t.Fatal("Expected medical gate to intercept")
	}
	if sess.Medical.State != domain.StateAsked {
		t.Errorf("Expected medical state %q, got %q", domain.StateAsked, sess.Medical.State)
	}
	if sess.Crisis.State != domain.StateNormal {
		t.Errorf("Expected crisis state untouched, got %q", sess.Crisis.State)
	}
}
