// Package protocol implements the therapeutic-progress tracker: SUD
// delta evaluation and the aspect-stack lifecycle.
package protocol

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/aplomb-care/aplomb/internal/domain"
)

// ErrInvalidSud is returned for readings that are not usable numbers.
var ErrInvalidSud = errors.New("sud must be a valid number")

// NormalizeSud forces a raw reading into [0, 10].
func NormalizeSud(value float64) (float64, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, ErrInvalidSud
	}
	if value < 0 {
		return 0, nil
	}
	if value > 10 {
		return 10, nil
	}
	return value, nil
}

// EvaluateSud compares a new raw reading against the previous one for the
// same aspect and labels the outcome. The precedence order is load-bearing:
// a current SUD of 1 reports PETIT_RESTE even when the drop was large.
func EvaluateSud(previousSud *float64, rawCurrentSud float64) (domain.SudEvaluation, error) {
	currentSud, err := NormalizeSud(rawCurrentSud)
	if err != nil {
		return domain.SudEvaluation{}, err
	}

	if previousSud == nil {
		return domain.SudEvaluation{
			CurrentSud: currentSud,
			Case:       domain.SudInitial,
		}, nil
	}

	delta := *previousSud - currentSud
	eval := domain.SudEvaluation{
		PreviousSud: previousSud,
		CurrentSud:  currentSud,
		Delta:       &delta,
	}

	switch {
	case currentSud == 0:
		eval.Case = domain.SudZero
	case currentSud <= 1:
		eval.Case = domain.SudPetitReste
	case currentSud > *previousSud:
		eval.Case = domain.SudAugmentation
	case delta >= 2:
		eval.Case = domain.SudDeltaFort
	default: // delta is 0 or 1
		eval.Case = domain.SudDeltaFaible
	}
	return eval, nil
}

// BuildStateBlock renders the protocol state as a text block injected into
// the dialogue agent's instructions. Phrasing stays model-side; the gateway
// only ships the computed state as data.
func BuildStateBlock(aspectLabel string, eval domain.SudEvaluation, sessionComplete bool) string {
	prev := "undefined"
	if eval.PreviousSud != nil {
		prev = formatSud(*eval.PreviousSud)
	}
	delta := "undefined"
	if eval.Delta != nil {
		delta = formatSud(*eval.Delta)
	}
	var b strings.Builder
	b.WriteString("[PROTOCOL_STATE]\n")
	fmt.Fprintf(&b, "CURRENT_ASPECT = %q\n", aspectLabel)
	fmt.Fprintf(&b, "PREVIOUS_SUD = %s\n", prev)
	fmt.Fprintf(&b, "CURRENT_SUD = %s\n", formatSud(eval.CurrentSud))
	fmt.Fprintf(&b, "DELTA = %s\n", delta)
	fmt.Fprintf(&b, "SUD_CASE = %q\n", string(eval.Case))
	fmt.Fprintf(&b, "SESSION_COMPLETE = %t\n", sessionComplete)
	b.WriteString("[/PROTOCOL_STATE]")
	return b.String()
}

func formatSud(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%d", int(v))
	}
	return fmt.Sprintf("%.1f", v)
}
