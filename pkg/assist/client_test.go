package assist

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chatcore/pkg/models"
)

func TestClientComplete(t *testing.T) {
	var gotReq completeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/complete" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("unexpected authorization header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"response": "Sure, here you go.",
			"usage":    map[string]int{"input_tokens": 12, "output_tokens": 5},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithAPIKey("sk-test"), WithModel("test-model"), WithMaxTokens(256))
	history := []Turn{{Role: RoleUser, Content: "earlier"}}
	got, err := c.Complete(context.Background(), history, "hello")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got != "Sure, here you go." {
		t.Fatalf("unexpected reply %q", got)
	}
	if gotReq.Message != "hello" || len(gotReq.ConversationHistory) != 1 {
		t.Fatalf("request payload mismatch: %+v", gotReq)
	}
	if gotReq.Model != "test-model" || gotReq.MaxTokens != 256 {
		t.Fatalf("deployment parameters not forwarded: %+v", gotReq)
	}
}

func TestClientCompleteServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"overloaded"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Complete(context.Background(), nil, "hello")
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestClientCompleteUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := NewClient(srv.URL, WithTimeout(time.Second))
	_, err := c.Complete(context.Background(), nil, "hello")
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestClientCompleteTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	c := NewClient(srv.URL, WithTimeout(50*time.Millisecond))
	_, err := c.Complete(context.Background(), nil, "hello")
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable on timeout, got %v", err)
	}
}

func TestClientCompleteEmptyResponseYieldsApology(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":"   "}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	got, err := c.Complete(context.Background(), nil, "hello")
	if err != nil {
		t.Fatalf("empty response must not error: %v", err)
	}
	if got != ApologyReply {
		t.Fatalf("expected the apology reply, got %q", got)
	}
}

func TestClientCompleteMalformedResponseYieldsApology(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	got, err := c.Complete(context.Background(), nil, "hello")
	if err != nil {
		t.Fatalf("malformed response must not error: %v", err)
	}
	if got != ApologyReply {
		t.Fatalf("expected the apology reply, got %q", got)
	}
}

func textMsg(sender, content string) models.Message {
	return models.Message{
		ID:           "m-" + sender + "-" + content,
		Conversation: "c1",
		Sender:       sender,
		Kind:         models.KindText,
		Content:      content,
		ReadBy:       []string{sender},
	}
}

func TestHistoryWindowRolesAndLimit(t *testing.T) {
	msgs := []models.Message{
		textMsg("u1", "one"),
		textMsg(models.AssistantID, "two"),
		textMsg("u1", "three"),
	}
	turns := HistoryWindow(msgs, 2)
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Role != RoleAssistant || turns[0].Content != "two" {
		t.Fatalf("unexpected first turn %+v", turns[0])
	}
	if turns[1].Role != RoleUser || turns[1].Content != "three" {
		t.Fatalf("unexpected second turn %+v", turns[1])
	}
}

func TestHistoryWindowSkipsNonText(t *testing.T) {
	file := models.Message{
		ID: "f1", Conversation: "c1", Sender: "u1",
		Kind: models.KindImage, FileURL: "https://files/x.png",
		ReadBy: []string{"u1"},
	}
	msgs := []models.Message{textMsg("u1", "hello"), file}
	turns := HistoryWindow(msgs, 10)
	if len(turns) != 1 {
		t.Fatalf("non-text messages must be skipped, got %d turns", len(turns))
	}
}

func TestStaticResponderRoutes(t *testing.T) {
	s := &StaticResponder{}
	got, err := s.Complete(context.Background(), nil, "Hello there")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got == "" {
		t.Fatalf("expected a canned greeting")
	}

	other, err := s.Complete(context.Background(), nil, "xyzzy")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if other == got {
		t.Fatalf("keyword routing should differentiate replies")
	}
}

func TestStaticResponderHonorsContext(t *testing.T) {
	s := &StaticResponder{Delay: time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := s.Complete(ctx, nil, "hello"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline error, got %v", err)
	}
}
