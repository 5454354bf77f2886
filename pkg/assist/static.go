package assist

import (
	"context"
	"strings"
	"time"
)

// StaticResponder is the canned demo responder used when no completion
// service is configured. It routes on keywords and simulates a little
// network latency so typing indicators behave like the real thing.
type StaticResponder struct {
	// Delay before answering; zero disables the simulated latency.
	Delay time.Duration
}

// Complete implements Responder with keyword-routed canned replies.
func (s *StaticResponder) Complete(ctx context.Context, _ []Turn, newMessage string) (string, error) {
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	lower := strings.ToLower(newMessage)
	switch {
	case containsAny(lower, "hello", "hi", "hey"):
		return "Hello! I'm Claude, your AI assistant. How can I help you today? I can help with writing, analysis, coding, brainstorming, and much more.", nil
	case containsAny(lower, "help", "what can you do"):
		return "I can assist with writing and communication, analysis and research, productivity, and technical tasks like code review and debugging. Just ask me anything!", nil
	case containsAny(lower, "code", "programming", "developer"):
		return "I'd be happy to help with coding! I can write code in various languages, debug errors, review for improvements, and explain concepts. What would you like help with?", nil
	case containsAny(lower, "write", "email", "message"):
		return "I'd be happy to help you write something! Tell me what type of content you need, who the audience is, and what tone you'd prefer.", nil
	}
	return "Thanks for your message! I'm here to help with whatever you need. This is a demo response; configure an assistant endpoint for full capabilities.", nil
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

var _ Responder = (*StaticResponder)(nil)
