package domain

// Aspect is a single named target (a pain, an emotion tied to a situation)
// being worked through to SUD 0. Aspects live on a per-session stack; the
// bottom-most entry is the root aspect.
type Aspect struct {
	Label        string   `json:"label"`
	LastKnownSud *float64 `json:"last_known_sud,omitempty"`
	// SudStale is set when the aspect is reopened after a sub-aspect closed
	// above it: its value may have drifted and must be re-measured before any
	// new setup phrase is produced.
	SudStale bool `json:"sud_stale,omitempty"`
}

// Measured reports whether the aspect has a usable SUD reading.
func (a *Aspect) Measured() bool {
	return a.LastKnownSud != nil && !a.SudStale
}

// SudCase labels the outcome of comparing a new SUD reading against the
// previous one for the same aspect.
type SudCase string

const (
	// SudInitial is the first reading for an aspect.
	SudInitial SudCase = "INITIAL"
	// SudZero means the aspect fully resolved, regardless of delta.
	SudZero SudCase = "ZERO"
	// SudPetitReste is a small residue (SUD <= 1): probe for a hidden
	// remaining sub-aspect, ignoring delta magnitude entirely.
	SudPetitReste SudCase = "PETIT_RESTE"
	// SudDeltaFaible is insufficient change (delta 0 or 1).
	SudDeltaFaible SudCase = "DELTA_FAIBLE"
	// SudDeltaFort is meaningful progress on the same aspect (delta >= 2).
	SudDeltaFort SudCase = "DELTA_FORT"
	// SudAugmentation means intensity rose; never report this as progress.
	SudAugmentation SudCase = "AUGMENTATION"
)

// SudEvaluation is the ephemeral result of one SUD comparison. It is produced
// on demand and consumed immediately; it is never persisted.
type SudEvaluation struct {
	PreviousSud *float64 `json:"previous_sud"`
	CurrentSud  float64  `json:"current_sud"`
	Delta       *float64 `json:"delta"`
	Case        SudCase  `json:"case"`
}
