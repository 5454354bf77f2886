// Package api exposes the HTTP surface: conversation and profile CRUD,
// turn submission and the read/typing endpoints. All mutation goes through
// the orchestrator; handlers never write to the store directly.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"chatcore/pkg/orchestrator"
)

// orc is the process-wide orchestrator handle, set by Register.
var orc *orchestrator.Orchestrator

// Register mounts all API routes under /v1 on r and wires handlers to o.
func Register(r *mux.Router, o *orchestrator.Orchestrator) {
	orc = o

	r.HandleFunc("/healthz", healthz).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/conversations", createConversation).Methods(http.MethodPost)
	v1.HandleFunc("/conversations", listConversations).Methods(http.MethodGet)
	v1.HandleFunc("/conversations/{id}", getConversation).Methods(http.MethodGet)
	v1.HandleFunc("/conversations/{id}/messages", submitMessage).Methods(http.MethodPost)
	v1.HandleFunc("/conversations/{id}/messages", listConvMessages).Methods(http.MethodGet)
	v1.HandleFunc("/conversations/{id}/read", markConversationRead).Methods(http.MethodPost)
	v1.HandleFunc("/conversations/{id}/typing", getTypingState).Methods(http.MethodGet)

	v1.HandleFunc("/profiles", createProfile).Methods(http.MethodPost)
	v1.HandleFunc("/profiles", listProfiles).Methods(http.MethodGet)
	v1.HandleFunc("/profiles/{id}", getProfile).Methods(http.MethodGet)
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
