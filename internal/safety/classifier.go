// Package safety implements the risk classifiers and the per-session safety
// gates that run in front of every dialogue-agent call.
package safety

import (
	"regexp"
	"strings"
)

// Tier is one of the five mutually-exclusive risk levels, highest first.
type Tier string

const (
	// TierExplicitImmediate is an explicit expression plus an immediacy marker.
	TierExplicitImmediate Tier = "explicit_immediate"
	// TierExplicit is an explicit expression without an immediacy marker.
	TierExplicit Tier = "explicit"
	// TierProbable is a softer but still concerning expression.
	TierProbable Tier = "probable"
	// TierSoft is generic distress/exhaustion language.
	TierSoft Tier = "soft"
	// TierNone means no pattern matched.
	TierNone Tier = "none"
)

// PatternSet holds the compiled patterns for one gate. Whitelist entries are
// benign collocations that suppress the explicit, probable and soft tiers;
// they never suppress the immediate tier.
type PatternSet struct {
	Explicit  []*regexp.Regexp
	Immediate []*regexp.Regexp
	Probable  []*regexp.Regexp
	Soft      []*regexp.Regexp
	Whitelist []*regexp.Regexp
}

// Classify returns exactly one tier for the utterance, evaluated in strict
// priority order with first match winning. The function is pure and
// deterministic so it can be tested against a fixture corpus.
func (p PatternSet) Classify(text string) Tier {
	t := Normalize(text)

	explicit := matchAny(p.Explicit, t)
	if explicit && matchAny(p.Immediate, t) {
		return TierExplicitImmediate
	}
	if matchAny(p.Whitelist, t) {
		return TierNone
	}
	if explicit {
		return TierExplicit
	}
	if matchAny(p.Probable, t) {
		return TierProbable
	}
	if matchAny(p.Soft, t) {
		return TierSoft
	}
	return TierNone
}

func matchAny(patterns []*regexp.Regexp, s string) bool {
	for _, rx := range patterns {
		if rx.MatchString(s) {
			return true
		}
	}
	return false
}

var charFolder = strings.NewReplacer(
	"’", "'", // curly apostrophe
	"ʼ", "'",
	"´", "'",
	"`", "'",
	"é", "e", "è", "e", "ê", "e", "ë", "e",
	"à", "a", "â", "a",
	"î", "i", "ï", "i",
	"ô", "o",
	"û", "u", "ù", "u",
	"ç", "c",
)

// Normalize lowercases the utterance, folds common accent and apostrophe
// variants, and collapses whitespace so the pattern sets can be written in
// plain lowercase ASCII.
func Normalize(text string) string {
	t := strings.ToLower(strings.TrimSpace(text))
	t = charFolder.Replace(t)
	return strings.Join(strings.Fields(t), " ")
}
