package domain

import (
	"testing"
	"time"
)

func TestBlocked(t *testing.T) {
	s := NewSession("k")
	if s.Blocked() {
		t.Error("Expected fresh session not blocked")
	}

	s.Crisis.State = StateBlocked
	if !s.Blocked() {
		t.Error("Expected blocked via crisis gate")
	}

	s = NewSession("k")
	s.Medical.State = StateBlocked
	if !s.Blocked() {
		t.Error("Expected blocked via medical gate")
	}
}

func TestCurrentAndRootAspect(t *testing.T) {
	s := NewSession("k")
	if s.CurrentAspect() != nil || s.RootAspect() != nil {
		t.Error("Expected nil aspects on empty stack")
	}

	s.Aspects = []Aspect{{Label: "racine"}, {Label: "sommet"}}
	if cur := s.CurrentAspect(); cur.Label != "sommet" {
		t.Errorf("Expected current %q, got %q", "sommet", cur.Label)
	}
	if root := s.RootAspect(); root.Label != "racine" {
		t.Errorf("Expected root %q, got %q", "racine", root.Label)
	}
}

func TestCloneIsDeep(t *testing.T) {
	sud := 6.0
	asked := time.Now()
	s := NewSession("k")
	s.Crisis.LastAskedAt = &asked
	s.Aspects = []Aspect{{Label: "colere", LastKnownSud: &sud}}

	c := s.Clone()
	*c.Aspects[0].LastKnownSud = 2
	c.Aspects[0].Label = "autre"
	*c.Crisis.LastAskedAt = asked.Add(time.Hour)
	c.Medical.State = StateBlocked

	if *s.Aspects[0].LastKnownSud != 6 {
		t.Errorf("Clone aliased aspect SUD: %v", *s.Aspects[0].LastKnownSud)
	}
	if s.Aspects[0].Label != "colere" {
		t.Errorf("Clone aliased aspect label: %q", s.Aspects[0].Label)
	}
	if !s.Crisis.LastAskedAt.Equal(asked) {
		t.Error("Clone aliased LastAskedAt")
	}
	if s.Medical.State != StateNormal {
		t.Errorf("Clone aliased gate state: %q", s.Medical.State)
	}
}

func TestGateStatusReset(t *testing.T) {
	now := time.Now()
	g := GateStatus{
		State:            StateAsked,
		AskRetryCount:    2,
		LastAskedAt:      &now,
		FlaggedMessageID: "m1",
		CleanTurns:       3,
	}
	g.Reset()

	if g.State != StateNormal || g.AskRetryCount != 0 || g.LastAskedAt != nil ||
		g.FlaggedMessageID != "" || g.CleanTurns != 0 {
		t.Errorf("Expected cleared status, got %+v", g)
	}
}

func TestAspectMeasured(t *testing.T) {
	a := Aspect{Label: "x"}
	if a.Measured() {
		t.Error("Expected unmeasured without a reading")
	}

	sud := 3.0
	a.LastKnownSud = &sud
	if !a.Measured() {
		t.Error("Expected measured with a fresh reading")
	}

	a.SudStale = true
	if a.Measured() {
		t.Error("Expected stale reading to count as unmeasured")
	}
}
