package models

import (
	"errors"
	"fmt"
	"strings"
)

// Kind discriminates message content variants. Each kind carries only its
// relevant payload: text messages use Content, image and file messages use
// FileURL (+ FileName).
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindFile  Kind = "file"
)

// ErrValidation marks a message or conversation rejected before any
// mutation took place.
var ErrValidation = errors.New("validation failed")

// Message is one entry in a conversation's ordered log.
type Message struct {
	ID           string `json:"id"`
	Conversation string `json:"conversation"`
	Sender       string `json:"sender"`
	// TS is the creation timestamp (ns). Messages within a conversation are
	// totally ordered by it.
	TS      int64  `json:"ts"`
	Kind    Kind   `json:"kind"`
	Content string `json:"content,omitempty"`
	FileURL string `json:"file_url,omitempty"`
	// FileName is the human-readable name for file kind messages.
	FileName string `json:"file_name,omitempty"`
	// ReplyTo optionally points at an existing message in the same
	// conversation.
	ReplyTo  string `json:"reply_to,omitempty"`
	Edited   bool   `json:"edited,omitempty"`
	EditedTS int64  `json:"edited_ts,omitempty"`
	// ReadBy is the subset of conversation members that have seen the
	// message. The sender is always included.
	ReadBy []string `json:"read_by"`
	// AIGenerated flags replies produced by the assistant.
	AIGenerated bool `json:"is_ai_generated,omitempty"`
}

// NewTextMessage builds a validated text message. The sender is recorded in
// ReadBy.
func NewTextMessage(convID, sender, content string) (Message, error) {
	if strings.TrimSpace(content) == "" {
		return Message{}, fmt.Errorf("%w: empty message content", ErrValidation)
	}
	m := Message{
		Conversation: convID,
		Sender:       sender,
		Kind:         KindText,
		Content:      content,
		ReadBy:       []string{sender},
	}
	return m, m.Validate()
}

// NewFileMessage builds a validated image or file message.
func NewFileMessage(convID, sender string, kind Kind, fileURL, fileName string) (Message, error) {
	if kind != KindImage && kind != KindFile {
		return Message{}, fmt.Errorf("%w: kind %q is not a file kind", ErrValidation, kind)
	}
	if strings.TrimSpace(fileURL) == "" {
		return Message{}, fmt.Errorf("%w: empty file url", ErrValidation)
	}
	m := Message{
		Conversation: convID,
		Sender:       sender,
		Kind:         kind,
		FileURL:      fileURL,
		FileName:     fileName,
		ReadBy:       []string{sender},
	}
	return m, m.Validate()
}

// Validate enforces the content-variant invariants.
func (m Message) Validate() error {
	if m.Conversation == "" {
		return fmt.Errorf("%w: conversation id missing", ErrValidation)
	}
	if m.Sender == "" {
		return fmt.Errorf("%w: sender missing", ErrValidation)
	}
	switch m.Kind {
	case KindText:
		if strings.TrimSpace(m.Content) == "" {
			return fmt.Errorf("%w: text message with empty content", ErrValidation)
		}
		if m.FileURL != "" {
			return fmt.Errorf("%w: text message carries file payload", ErrValidation)
		}
	case KindImage, KindFile:
		if m.FileURL == "" {
			return fmt.Errorf("%w: %s message without file url", ErrValidation, m.Kind)
		}
		if m.Content != "" {
			return fmt.Errorf("%w: %s message carries text payload", ErrValidation, m.Kind)
		}
	default:
		return fmt.Errorf("%w: unknown message kind %q", ErrValidation, m.Kind)
	}
	if !m.ReadByContains(m.Sender) {
		return fmt.Errorf("%w: sender not in read_by", ErrValidation)
	}
	return nil
}

// ReadByContains reports whether id has read the message.
func (m Message) ReadByContains(id string) bool {
	for _, r := range m.ReadBy {
		if r == id {
			return true
		}
	}
	return false
}

// MarkReadBy adds id to ReadBy if absent and reports whether the set grew.
func (m *Message) MarkReadBy(id string) bool {
	if m.ReadByContains(id) {
		return false
	}
	m.ReadBy = append(m.ReadBy, id)
	return true
}
