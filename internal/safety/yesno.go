package safety

import "regexp"

// Answer is the interpretation of a reply to a binary safety question.
type Answer string

const (
	AnswerYes     Answer = "yes"
	AnswerNo      Answer = "no"
	AnswerUnknown Answer = "unknown"
)

var yesPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(?:oui|ouais|si|yep|yeah|yes|affirmatif)\b`),
	regexp.MustCompile(`\b(?:oui|ouais|yes)\s*[.!]*$`),
}

var noPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(?:non|nan|no|nope|pas\s+du\s+tout)\b`),
	regexp.MustCompile(`\b(?:non|nan|nope)\s*[.!]*$`),
	regexp.MustCompile(`\baucune?\s+(?:idee|pensee)s?\s+suicidaires?\b`),
	regexp.MustCompile(`\bje\s+ne\s+(?:veux|vais)\s+pas\b`),
	regexp.MustCompile(`\bpas\s+(?:d'?idees?\s+noires?|en\s+danger)\b`),
	regexp.MustCompile(`\bnot\s+(?:at\s+all|really)\b`),
}

// Interpret maps freeform text to yes, no or unknown. A text matching both a
// yes and a no pattern is unknown, which keeps ambiguous replies on the
// fail-safe path.
func Interpret(text string) Answer {
	t := Normalize(text)
	hasYes := matchAny(yesPatterns, t)
	hasNo := matchAny(noPatterns, t)
	switch {
	case hasYes && !hasNo:
		return AnswerYes
	case hasNo && !hasYes:
		return AnswerNo
	default:
		return AnswerUnknown
	}
}
