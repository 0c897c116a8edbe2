package safety

// Fixed user-facing texts. Safety responses are never model-generated; the
// gateway returns these verbatim.

const crisisBlockMessage = "I can't continue this conversation: you may be in danger. " +
	"If you are in France, call 15 (SAMU) or 3114 (suicide prevention, 24/7) right now. " +
	"Elsewhere, contact your local emergency services (112)."

const medicalBlockMessage = "What you describe could be a medical emergency, and this " +
	"conversation is not the right place for it. Please contact emergency services now " +
	"(15 or 112 in France) or your doctor."

// CrisisGate returns the self-harm/suicide gate. monitorCleanTurns controls
// how many clean model turns pass before a soft flag reverts to normal.
func CrisisGate(monitorCleanTurns int) *Gate {
	return New(Config{
		Name:        "crisis",
		Patterns:    CrisisPatterns(),
		AskQuestion: "Before anything else: do you have thoughts of suicide right now? Please answer yes or no.",
		ReAskMessage: "I didn't quite understand. Could you answer with just \"yes\" or \"no\", please?",
		ReassureMessage: "Thank you for your answer. If at any point you feel in danger, call 3114 (24/7). " +
			"Whenever you're ready, describe in one sentence what is bothering you right now.",
		SoftCheckIn: "I hear that things are hard at the moment. Before we continue, " +
			"can you tell me whether you feel in danger right now?",
		BlockMessage:      crisisBlockMessage,
		MonitorCleanTurns: monitorCleanTurns,
	})
}

// MedicalGate returns the medical-emergency gate.
func MedicalGate(monitorCleanTurns int) *Gate {
	return New(Config{
		Name:        "medical",
		Patterns:    MedicalPatterns(),
		AskQuestion: "Is this happening without any injury or trigger you can identify? Please answer yes or no.",
		ReAskMessage: "I didn't quite understand. Could you answer with just \"yes\" or \"no\", please?",
		ReassureMessage: "Thank you. If the sensation gets worse or worries you, do see a doctor. " +
			"When you're ready, we can continue where we left off.",
		SoftCheckIn: "That sounds uncomfortable. Before we continue, is this a feeling " +
			"you know and can relate to the situation we're working on?",
		BlockMessage:      medicalBlockMessage,
		MonitorCleanTurns: monitorCleanTurns,
	})
}
