// Package assist bridges conversations to the external AI completion
// service. The gateway is stateless: every call carries its own bounded
// history window and nothing is remembered between calls.
package assist

import (
	"context"

	"chatcore/pkg/models"
)

// Role values on the completion-service wire.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ApologyReply is appended when the service answered but produced no usable
// text. An explicit fallback policy: the conversation always receives a
// response object, never a silently dropped turn.
const ApologyReply = "I apologize, but I was unable to generate a response."

// Turn is one history entry on the wire.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Responder produces an assistant reply for a new message given the recent
// conversation history. Implementations must be safe for concurrent use.
type Responder interface {
	Complete(ctx context.Context, history []Turn, newMessage string) (string, error)
}

// HistoryWindow maps the most recent limit text messages onto wire turns.
// The assistant sentinel maps to the assistant role, every other sender to
// the user role. Non-text messages carry no completable content and are
// skipped.
func HistoryWindow(msgs []models.Message, limit int) []Turn {
	if limit <= 0 {
		limit = 10
	}
	var texts []models.Message
	for _, m := range msgs {
		if m.Kind == models.KindText {
			texts = append(texts, m)
		}
	}
	if len(texts) > limit {
		texts = texts[len(texts)-limit:]
	}
	out := make([]Turn, 0, len(texts))
	for _, m := range texts {
		role := RoleUser
		if m.Sender == models.AssistantID {
			role = RoleAssistant
		}
		out = append(out, Turn{Role: role, Content: m.Content})
	}
	return out
}
