// Package agent defines the dialogue-agent collaborator boundary and its
// OpenAI-backed implementation.
package agent

import (
	"context"
	"errors"

	"github.com/aplomb-care/aplomb/internal/domain"
)

// ErrUnavailable wraps collaborator failures. The turn is treated as a no-op
// retried by the caller; no session state is mutated after this error.
var ErrUnavailable = errors.New("dialogue agent unavailable")

// Result is one generated reply plus the token counts the usage recorder
// needs.
type Result struct {
	Text         string
	Model        string
	InputTokens  int64
	OutputTokens int64
}

// Generator produces one assistant reply for a conversation. The gateway
// treats it as opaque: it never inspects the model's reasoning, only the
// returned text.
type Generator interface {
	Generate(ctx context.Context, instructions string, history []domain.ChatTurn) (*Result, error)
	Close()
}
