package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"chatcore/pkg/assist"
	"chatcore/pkg/models"
	"chatcore/pkg/store"
)

// scriptResponder settles each completion from a queue of canned outcomes.
type scriptResponder struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	delay   time.Duration
	calls   int
	history [][]assist.Turn
}

func (s *scriptResponder) Complete(ctx context.Context, history []assist.Turn, newMessage string) (string, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	s.history = append(s.history, history)
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.replies) {
		return s.replies[i], nil
	}
	return "fallback reply", nil
}

func setup(t *testing.T, r assist.Responder) *Orchestrator {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	for _, p := range []models.Profile{
		{ID: "u1", FirstName: "Demo", Status: models.StatusOffline},
		{ID: "u2", FirstName: "Alice", Status: models.StatusOffline},
		{ID: models.AssistantID, FirstName: "Claude", Status: models.StatusOnline},
	} {
		if err := store.SaveProfile(p); err != nil {
			t.Fatalf("failed to save profile: %v", err)
		}
	}
	ai, err := models.NewConversation("ai-conv", models.ConversationPrivate, "", "u1", []string{"u1", models.AssistantID})
	if err != nil {
		t.Fatalf("failed to build conversation: %v", err)
	}
	if err := store.SaveConversation(ai); err != nil {
		t.Fatalf("failed to save conversation: %v", err)
	}
	human, err := models.NewConversation("human-conv", models.ConversationPrivate, "", "u1", []string{"u1", "u2"})
	if err != nil {
		t.Fatalf("failed to build conversation: %v", err)
	}
	if err := store.SaveConversation(human); err != nil {
		t.Fatalf("failed to save conversation: %v", err)
	}

	o := New(r, Options{Timeout: 2 * time.Second})
	t.Cleanup(o.Close)
	return o
}

func waitTurn(t *testing.T, turn *Turn) TurnResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := turn.Wait(ctx)
	if err != nil {
		t.Fatalf("turn did not settle: %v", err)
	}
	return res
}

func TestTurnAppendsUserThenAIReply(t *testing.T) {
	o := setup(t, &scriptResponder{replies: []string{"Hi! How can I help?"}})

	turn, err := o.SubmitText("ai-conv", "u1", "hello")
	if err != nil {
		t.Fatalf("SubmitText failed: %v", err)
	}

	userMsg, err := turn.UserMessage(context.Background())
	if err != nil {
		t.Fatalf("user message failed: %v", err)
	}
	if userMsg.Content != "hello" || userMsg.AIGenerated {
		t.Fatalf("unexpected user message %+v", userMsg)
	}

	res := waitTurn(t, turn)
	if res.Err != nil {
		t.Fatalf("turn failed: %v", res.Err)
	}
	if res.AIMessage == nil {
		t.Fatalf("expected an assistant reply")
	}
	if res.AIMessage.Sender != models.AssistantID || !res.AIMessage.AIGenerated {
		t.Fatalf("reply not attributed to the assistant: %+v", res.AIMessage)
	}

	msgs, _ := store.ListMessages("ai-conv")
	if len(msgs) != 2 {
		t.Fatalf("expected user message then reply, got %d messages", len(msgs))
	}
	if msgs[0].ID != userMsg.ID || msgs[1].ID != res.AIMessage.ID {
		t.Fatalf("log order wrong: %s then %s", msgs[0].ID, msgs[1].ID)
	}

	conv, _ := store.GetConversation("ai-conv")
	if conv.LastMessage == nil || conv.LastMessage.ID != res.AIMessage.ID {
		t.Fatalf("summary should point at the reply")
	}
	if conv.Unread["u1"] != 1 {
		t.Fatalf("the reply should be unread for the user, got %d", conv.Unread["u1"])
	}
}

func TestFailedRoundtripKeepsUserMessage(t *testing.T) {
	o := setup(t, &scriptResponder{errs: []error{assist.ErrUpstreamUnavailable}})

	turn, err := o.SubmitText("ai-conv", "u1", "hello")
	if err != nil {
		t.Fatalf("SubmitText failed: %v", err)
	}
	res := waitTurn(t, turn)
	if !errors.Is(res.Err, assist.ErrUpstreamUnavailable) {
		t.Fatalf("expected upstream error, got %v", res.Err)
	}
	if res.AIMessage != nil {
		t.Fatalf("failed roundtrip must not append a reply")
	}

	msgs, _ := store.ListMessages("ai-conv")
	if len(msgs) != 1 {
		t.Fatalf("conversation must hold exactly the user message, got %d", len(msgs))
	}
	if o.TypingState("ai-conv") != StateIdle {
		t.Fatalf("typing state must return to idle after a failure")
	}
}

func TestNoAssistantNoRoundtrip(t *testing.T) {
	r := &scriptResponder{}
	o := setup(t, r)

	turn, err := o.SubmitText("human-conv", "u1", "hey alice")
	if err != nil {
		t.Fatalf("SubmitText failed: %v", err)
	}
	res := waitTurn(t, turn)
	if res.Err != nil || res.AIMessage != nil {
		t.Fatalf("human-only conversation must not call the responder: %+v", res)
	}
	if r.calls != 0 {
		t.Fatalf("responder called %d times", r.calls)
	}
}

func TestFileTurnSkipsAssistant(t *testing.T) {
	r := &scriptResponder{}
	o := setup(t, r)

	turn, err := o.SubmitFile("ai-conv", "u1", models.KindImage, "https://files/x.png", "x.png")
	if err != nil {
		t.Fatalf("SubmitFile failed: %v", err)
	}
	res := waitTurn(t, turn)
	if res.Err != nil || res.AIMessage != nil {
		t.Fatalf("file turns must not trigger the assistant: %+v", res)
	}
	if r.calls != 0 {
		t.Fatalf("responder called %d times", r.calls)
	}
}

func TestSubmitRejectsBeforeMutation(t *testing.T) {
	o := setup(t, &scriptResponder{})

	if _, err := o.SubmitText("nope", "u1", "hello"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown conversation, got %v", err)
	}
	if _, err := o.SubmitText("ai-conv", "intruder", "hello"); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected ErrValidation for non-member, got %v", err)
	}
	if _, err := o.SubmitText("ai-conv", "u1", "   "); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected ErrValidation for blank content, got %v", err)
	}

	msgs, _ := store.ListMessages("ai-conv")
	if len(msgs) != 0 {
		t.Fatalf("rejected submissions must not write, got %d messages", len(msgs))
	}
}

func TestReplyToUnknownMessageFailsTurn(t *testing.T) {
	o := setup(t, &scriptResponder{})

	turn, err := o.SubmitTextReply("ai-conv", "u1", "answering", "ghost-id")
	if err != nil {
		t.Fatalf("SubmitTextReply failed: %v", err)
	}
	if _, err := turn.UserMessage(context.Background()); !errors.Is(err, store.ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference, got %v", err)
	}
}

func TestRapidSubmissionsStayOrdered(t *testing.T) {
	o := setup(t, &scriptResponder{
		replies: []string{"reply one", "reply two"},
		delay:   50 * time.Millisecond,
	})

	t1, err := o.SubmitText("ai-conv", "u1", "first")
	if err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	t2, err := o.SubmitText("ai-conv", "u1", "second")
	if err != nil {
		t.Fatalf("second submit failed: %v", err)
	}

	res1 := waitTurn(t, t1)
	res2 := waitTurn(t, t2)
	if res1.Err != nil || res2.Err != nil {
		t.Fatalf("turns failed: %v %v", res1.Err, res2.Err)
	}

	msgs, _ := store.ListMessages("ai-conv")
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}
	want := []string{"first", "reply one", "second", "reply two"}
	for i, m := range msgs {
		if m.Content != want[i] {
			t.Fatalf("position %d: expected %q, got %q", i, want[i], m.Content)
		}
	}
}

func TestSecondTurnHistoryIncludesFirstExchange(t *testing.T) {
	r := &scriptResponder{replies: []string{"reply one", "reply two"}}
	o := setup(t, r)

	waitTurn(t, mustSubmit(t, o, "ai-conv", "u1", "first"))
	waitTurn(t, mustSubmit(t, o, "ai-conv", "u1", "second"))

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.history) != 2 {
		t.Fatalf("expected 2 roundtrips, got %d", len(r.history))
	}
	h := r.history[1]
	if len(h) != 2 {
		t.Fatalf("second roundtrip should carry the first exchange, got %d turns", len(h))
	}
	if h[0].Role != assist.RoleUser || h[0].Content != "first" {
		t.Fatalf("unexpected history head %+v", h[0])
	}
	if h[1].Role != assist.RoleAssistant || h[1].Content != "reply one" {
		t.Fatalf("unexpected history tail %+v", h[1])
	}
}

func mustSubmit(t *testing.T, o *Orchestrator, convID, sender, content string) *Turn {
	t.Helper()
	turn, err := o.SubmitText(convID, sender, content)
	if err != nil {
		t.Fatalf("SubmitText failed: %v", err)
	}
	return turn
}

func TestTypingStateTransitions(t *testing.T) {
	o := setup(t, &scriptResponder{replies: []string{"slow reply"}, delay: 100 * time.Millisecond})

	var mu sync.Mutex
	var seen []State
	o.SetTypingListener(func(convID string, s State) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	turn := mustSubmit(t, o, "ai-conv", "u1", "hello")

	// The worker holds AwaitingAI across the roundtrip.
	deadline := time.Now().Add(time.Second)
	for o.TypingState("ai-conv") != StateAwaitingAI {
		if time.Now().After(deadline) {
			t.Fatalf("never observed awaiting_ai_reply")
		}
		time.Sleep(5 * time.Millisecond)
	}

	waitTurn(t, turn)
	if o.TypingState("ai-conv") != StateIdle {
		t.Fatalf("state must settle back to idle")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != StateAwaitingAI || seen[1] != StateIdle {
		t.Fatalf("unexpected transition sequence %v", seen)
	}
}

func TestSubmitterPresenceRefreshed(t *testing.T) {
	o := setup(t, &scriptResponder{replies: []string{"ok"}})

	waitTurn(t, mustSubmit(t, o, "ai-conv", "u1", "hello"))

	p, err := store.GetProfile("u1")
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if p.Status != models.StatusOnline || p.LastActiveTS == 0 {
		t.Fatalf("submission should refresh presence: %+v", p)
	}
}
