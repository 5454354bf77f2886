// Package directory maintains conversation summaries: the denormalized
// last-message pointer, unread counters and display-name derivations used by
// conversation lists.
package directory

import (
	"iter"
	"strings"

	"go.uber.org/zap"

	"chatcore/pkg/logger"
	"chatcore/pkg/metrics"
	"chatcore/pkg/models"
	"chatcore/pkg/store"
)

const (
	// FallbackGroupName labels unnamed group conversations.
	FallbackGroupName = "Group chat"
	// FallbackCounterpart labels private conversations whose counterpart
	// profile cannot be resolved.
	FallbackCounterpart = "Unknown"
)

// UpsertSummary advances the conversation's last-message pointer to msg and
// bumps unread counters for every member except the sender. The monotonic
// guard ignores messages older than the current pointer, so an out-of-order
// reply cannot regress the summary; reapplying the same message is
// idempotent. The updated conversation is persisted and returned.
func UpsertSummary(convID string, msg models.Message) (models.Conversation, error) {
	conv, err := store.GetConversation(convID)
	if err != nil {
		return conv, err
	}
	if conv.LastMessage != nil && conv.LastMessage.ID == msg.ID {
		return conv, nil
	}
	if msg.TS < conv.LastMessageTS {
		logger.Log.Debug("summary_skew_ignored",
			zap.String("conversation", convID),
			zap.String("msg_id", msg.ID),
			zap.Int64("msg_ts", msg.TS),
			zap.Int64("summary_ts", conv.LastMessageTS))
		return conv, nil
	}
	m := msg
	conv.LastMessage = &m
	conv.LastMessageTS = msg.TS
	if conv.Unread == nil {
		conv.Unread = make(map[string]int, len(conv.Members))
	}
	for _, member := range conv.Members {
		if member == msg.Sender {
			continue
		}
		conv.Unread[member]++
	}
	if err := store.SaveConversation(conv); err != nil {
		return conv, err
	}
	metrics.SummaryUpdates.Inc()
	logger.Log.Debug("summary_updated", zap.String("conversation", convID), zap.String("msg_id", msg.ID))
	return conv, nil
}

// DisplayName derives the list-row title for a conversation as seen by
// viewerID. Group conversations use their name with a fallback literal;
// private conversations use the counterpart's formatted name. It never
// fails, even when no member profile resolves.
func DisplayName(conv models.Conversation, viewerID string, profiles map[string]models.Profile) string {
	if conv.Type == models.ConversationGroup {
		if strings.TrimSpace(conv.Name) != "" {
			return conv.Name
		}
		return FallbackGroupName
	}
	other := conv.Counterpart(viewerID)
	if other == "" {
		return FallbackCounterpart
	}
	if p, ok := profiles[other]; ok {
		if name := p.DisplayName(); name != "" {
			return name
		}
	}
	return FallbackCounterpart
}

// Search yields conversations whose display name contains query,
// case-insensitively. The returned sequence is lazy and restartable: each
// range re-evaluates from the input slice. An empty query matches all.
func Search(convs []models.Conversation, viewerID, query string, profiles map[string]models.Profile) iter.Seq[models.Conversation] {
	q := strings.ToLower(strings.TrimSpace(query))
	return func(yield func(models.Conversation) bool) {
		for _, c := range convs {
			if q != "" {
				name := strings.ToLower(DisplayName(c, viewerID, profiles))
				if !strings.Contains(name, q) {
					continue
				}
			}
			if !yield(c) {
				return
			}
		}
	}
}

// UnreadFor returns the viewer's unread counter for a conversation.
func UnreadFor(conv models.Conversation, viewerID string) int {
	if conv.Unread == nil {
		return 0
	}
	return conv.Unread[viewerID]
}

// Initials derives the one-or-two letter avatar monogram for a display
// name.
func Initials(name string) string {
	fields := strings.Fields(name)
	switch len(fields) {
	case 0:
		return "?"
	case 1:
		return strings.ToUpper(firstRune(fields[0]))
	default:
		return strings.ToUpper(firstRune(fields[0]) + firstRune(fields[len(fields)-1]))
	}
}

func firstRune(s string) string {
	for _, r := range s {
		return string(r)
	}
	return ""
}
