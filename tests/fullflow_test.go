package tests

import (
	"net/http"
	"testing"
)

// TestFullFlow walks a conversation end to end through the HTTP surface:
// create, post a message and wait for the assistant, read back the history,
// then mark it read.
func TestFullFlow(t *testing.T) {
	srv := setupServer(t)

	// Create a private conversation with the assistant.
	res, out := request(t, srv, "POST", "/v1/conversations", demoUser, map[string]any{
		"type":    "private",
		"members": []string{"claude-ai"},
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create conversation: expected 201, got %d", res.StatusCode)
	}
	convID, _ := out["id"].(string)
	if convID == "" {
		t.Fatalf("create conversation: missing id")
	}

	// Post a message and wait for the assistant reply in the same call.
	res, out = request(t, srv, "POST", "/v1/conversations/"+convID+"/messages?wait=1", demoUser, map[string]any{
		"content": "hello there",
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("submit message: expected 201, got %d: %v", res.StatusCode, out)
	}
	if out["ai_error"] != nil {
		t.Fatalf("submit message: unexpected ai_error: %v", out["ai_error"])
	}
	ai, ok := out["ai_message"].(map[string]any)
	if !ok {
		t.Fatalf("submit message: missing ai_message: %v", out)
	}
	if got := ai["content"]; got != "echo: hello there" {
		t.Fatalf("assistant reply: got %v", got)
	}

	// History now holds both sides of the exchange in order.
	res, out = request(t, srv, "GET", "/v1/conversations/"+convID+"/messages", demoUser, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list messages: expected 200, got %d", res.StatusCode)
	}
	msgs, _ := out["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("list messages: expected 2, got %d", len(msgs))
	}
	first := msgs[0].(map[string]any)
	second := msgs[1].(map[string]any)
	if first["sender"] != demoUser || second["sender"] != "claude-ai" {
		t.Fatalf("message order wrong: %v then %v", first["sender"], second["sender"])
	}
	if second["is_ai_generated"] != true {
		t.Fatalf("assistant message not flagged: %v", second)
	}

	// The assistant reply left one unread message for the user; mark-read
	// clears it.
	res, out = request(t, srv, "POST", "/v1/conversations/"+convID+"/read", demoUser, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("mark read: expected 200, got %d", res.StatusCode)
	}
	if n, _ := out["marked"].(float64); n != 1 {
		t.Fatalf("mark read: expected 1 marked, got %v", out["marked"])
	}
	res, out = request(t, srv, "GET", "/v1/conversations/"+convID, demoUser, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get conversation: expected 200, got %d", res.StatusCode)
	}
	if unread, ok := out["unread"].(map[string]any); ok {
		if c, _ := unread[demoUser].(float64); c != 0 {
			t.Fatalf("unread not cleared: %v", c)
		}
	}
}

// TestAuthRejectsUnknownKey covers the authenticated surface with a bad key.
func TestAuthRejectsUnknownKey(t *testing.T) {
	srv := setupServer(t)

	req, err := http.NewRequest("GET", srv.URL+"/v1/conversations", nil)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer not-a-key")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.StatusCode)
	}
}

// TestSeededDirectoryVisible checks the demo fixtures surface through the API.
func TestSeededDirectoryVisible(t *testing.T) {
	srv := setupServer(t)

	res, out := request(t, srv, "GET", "/v1/conversations?viewer="+demoUser, demoUser, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list conversations: expected 200, got %d", res.StatusCode)
	}
	convs, _ := out["conversations"].([]any)
	if len(convs) != 4 {
		t.Fatalf("expected 4 seeded conversations, got %d", len(convs))
	}

	res, out = request(t, srv, "GET", "/v1/profiles", demoUser, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list profiles: expected 200, got %d", res.StatusCode)
	}
	profiles, _ := out["profiles"].([]any)
	if len(profiles) != 5 {
		t.Fatalf("expected 5 seeded profiles, got %d", len(profiles))
	}
}
