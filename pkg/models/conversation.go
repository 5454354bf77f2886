package models

import (
	"fmt"
	"strings"
)

// ConversationType discriminates private pairs from named groups.
type ConversationType string

const (
	ConversationPrivate ConversationType = "private"
	ConversationGroup   ConversationType = "group"
)

// Conversation holds the member set plus the denormalized summary fields
// (last message, last message time, unread counters) kept consistent by the
// orchestrator. Conversations are never deleted.
type Conversation struct {
	ID          string           `json:"id"`
	Type        ConversationType `json:"type"`
	Name        string           `json:"name,omitempty"`
	AvatarColor string           `json:"avatar_color,omitempty"`
	Members     []string         `json:"members"`
	CreatedBy   string           `json:"created_by"`
	// Created timestamp (ns)
	CreatedTS int64 `json:"created_ts,omitempty"`

	// Summary: denormalized pointer to the newest message and per-member
	// unread counters. Mutated only through directory.UpsertSummary.
	LastMessage   *Message       `json:"last_message,omitempty"`
	LastMessageTS int64          `json:"last_message_ts,omitempty"`
	Unread        map[string]int `json:"unread,omitempty"`
}

// NewConversation builds a validated conversation.
func NewConversation(id string, typ ConversationType, name, createdBy string, members []string) (Conversation, error) {
	c := Conversation{
		ID:        id,
		Type:      typ,
		Name:      name,
		Members:   dedupe(members),
		CreatedBy: createdBy,
	}
	return c, c.Validate()
}

// Validate enforces the type invariants: private conversations have exactly
// two members, groups have a non-empty name; the member set is non-empty and
// includes the creator.
func (c Conversation) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: conversation id missing", ErrValidation)
	}
	if len(c.Members) == 0 {
		return fmt.Errorf("%w: empty member set", ErrValidation)
	}
	if c.CreatedBy != "" && !c.HasMember(c.CreatedBy) {
		return fmt.Errorf("%w: creator %s not in member set", ErrValidation, c.CreatedBy)
	}
	switch c.Type {
	case ConversationPrivate:
		if len(c.Members) != 2 {
			return fmt.Errorf("%w: private conversation needs exactly 2 members, got %d", ErrValidation, len(c.Members))
		}
	case ConversationGroup:
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("%w: group conversation needs a name", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown conversation type %q", ErrValidation, c.Type)
	}
	return nil
}

// HasMember reports whether id belongs to the conversation.
func (c Conversation) HasMember(id string) bool {
	for _, m := range c.Members {
		if m == id {
			return true
		}
	}
	return false
}

// HasAssistant reports whether the AI participant is a member.
func (c Conversation) HasAssistant() bool { return c.HasMember(AssistantID) }

// Counterpart returns the member that is not the viewer. Only meaningful for
// private conversations; returns empty when no counterpart exists.
func (c Conversation) Counterpart(viewerID string) string {
	for _, m := range c.Members {
		if m != viewerID {
			return m
		}
	}
	return ""
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
