package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"chatcore/pkg/api"
	"chatcore/pkg/assist"
	"chatcore/pkg/auth"
	"chatcore/pkg/fixtures"
	"chatcore/pkg/orchestrator"
	"chatcore/pkg/store"
)

// FrontendAPIKey is the key the black-box tests authenticate with.
const FrontendAPIKey = "test-frontend-key"

type echoResponder struct{}

func (echoResponder) Complete(ctx context.Context, history []assist.Turn, newMessage string) (string, error) {
	return "echo: " + newMessage, nil
}

// setupServer boots the full stack against a temp store: seeded fixtures,
// orchestrator with a deterministic responder, API routes and the auth
// middleware.
func setupServer(t *testing.T) *httptest.Server {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if err := fixtures.Seed(); err != nil {
		t.Fatalf("failed to seed fixtures: %v", err)
	}

	o := orchestrator.New(echoResponder{}, orchestrator.Options{Timeout: 2 * time.Second})
	t.Cleanup(o.Close)

	r := mux.NewRouter()
	api.Register(r, o)
	handler := auth.Middleware(auth.SecConfig{
		FrontendKeys: auth.KeySet([]string{FrontendAPIKey}),
		RPS:          1000,
		Burst:        1000,
	})(r)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

// request sends a JSON request as the given user with the frontend key and
// decodes the JSON response body.
func request(t *testing.T, srv *httptest.Server, method, path, user string, payload any) (*http.Response, map[string]any) {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("failed to encode payload: %v", err)
		}
	}
	req, err := http.NewRequest(method, srv.URL+path, &body)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+FrontendAPIKey)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { res.Body.Close() })
	var out map[string]any
	_ = json.NewDecoder(res.Body).Decode(&out)
	return res, out
}

var demoUser = fixtures.DemoUserID
