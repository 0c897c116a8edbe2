package domain

// SafetySignal is the safety verdict attached to a turn response.
type SafetySignal string

const (
	SafetyNone  SafetySignal = "none"
	SafetyAsk   SafetySignal = "ask"
	SafetySoft  SafetySignal = "soft"
	SafetyBlock SafetySignal = "block"
)

// ChatTurn is one prior message of the conversation, supplied by the client.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AspectHint names a new aspect surfaced during conversation, with the SUD the
// user reported for it. Hints are produced by whatever parses the agent's
// inline markers; the gateway only consumes them.
type AspectHint struct {
	Label string  `json:"label"`
	Sud   float64 `json:"sud"`
}

// ProtocolHints carries optional pre-parsed protocol directives for one turn.
type ProtocolHints struct {
	OpenAspects []AspectHint `json:"openAspects,omitempty"`
	SudReading  *float64     `json:"sudReading,omitempty"`
}

// TurnRequest is the transport-agnostic shape of one incoming turn.
type TurnRequest struct {
	SessionID       string         `json:"sessionId,omitempty"`
	ClientMessageID string         `json:"clientMessageId,omitempty"`
	Utterance       string         `json:"utterance"`
	PriorTurns      []ChatTurn     `json:"priorTurns,omitempty"`
	Protocol        *ProtocolHints `json:"protocol,omitempty"`
}

// ClientAction tells the caller what to do with its input and history.
type ClientAction struct {
	BlockFurtherInput    bool   `json:"blockFurtherInput"`
	RemoveFlaggedMessage bool   `json:"removeFlaggedMessage"`
	FlaggedMessageID     string `json:"flaggedMessageId,omitempty"`
	FocusInput           bool   `json:"focusInput"`
}

// TurnResponse is the reply for one turn.
type TurnResponse struct {
	Reply  string       `json:"reply"`
	Safety SafetySignal `json:"safety"`
	Action ClientAction `json:"action"`
}
