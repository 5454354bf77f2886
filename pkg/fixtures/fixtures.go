// Package fixtures seeds the demo dataset: a handful of profiles, an
// assistant conversation with history, two private chats and a group chat.
// Seeding is idempotent per process start; it only runs against an empty
// store.
package fixtures

import (
	"time"

	"chatcore/pkg/logger"
	"chatcore/pkg/models"
	"chatcore/pkg/store"
)

// DemoUserID is the profile the demo frontend acts as.
const DemoUserID = "demo-user-id"

// Seed loads the demo profiles, conversations and message history. It is a
// no-op when the store already holds conversations.
func Seed() error {
	existing, err := store.ListConversations()
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		logger.Info("demo_seed_skipped", "conversations", len(existing))
		return nil
	}

	now := time.Now()
	ago := func(d time.Duration) int64 { return now.Add(-d).UTC().UnixNano() }

	profiles := []models.Profile{
		{ID: DemoUserID, Email: "demo@chatassistant.com", FirstName: "Demo", LastName: "User",
			AvatarColor: "#2D5BFF", Bio: "Hello! I am using Claude Chat Assistant.",
			Status: models.StatusOnline, Theme: models.ThemeLight, CreatedTS: ago(0), LastActiveTS: ago(time.Minute)},
		{ID: "user-2", Email: "alice@example.com", FirstName: "Alice", LastName: "Johnson",
			AvatarColor: "#00D084", Bio: "Product Designer",
			Status: models.StatusOnline, Theme: models.ThemeLight, CreatedTS: ago(0), LastActiveTS: ago(time.Hour)},
		{ID: "user-3", Email: "bob@example.com", FirstName: "Bob", LastName: "Smith",
			AvatarColor: "#F59E0B", Bio: "Software Engineer",
			Status: models.StatusAway, Theme: models.ThemeDark, CreatedTS: ago(0), LastActiveTS: ago(2 * time.Hour)},
		{ID: "user-4", Email: "carol@example.com", FirstName: "Carol", LastName: "Williams",
			AvatarColor: "#EC4899", Bio: "Marketing Lead",
			Status: models.StatusOffline, Theme: models.ThemeLight, CreatedTS: ago(0), LastActiveTS: ago(26 * time.Hour)},
		{ID: models.AssistantID, Email: "claude@anthropic.com", FirstName: "Claude", LastName: "AI",
			AvatarColor: "#8B5CF6", Bio: "AI Assistant powered by Anthropic",
			Status: models.StatusOnline, Theme: models.ThemeLight, CreatedTS: ago(0), LastActiveTS: ago(0)},
	}
	for _, p := range profiles {
		if err := store.SaveProfile(p); err != nil {
			return err
		}
	}

	convs := []models.Conversation{
		{ID: "conv-1", Type: models.ConversationPrivate, AvatarColor: "#8B5CF6",
			Members: []string{DemoUserID, models.AssistantID}, CreatedBy: DemoUserID, CreatedTS: ago(24 * time.Hour)},
		{ID: "conv-2", Type: models.ConversationPrivate, AvatarColor: "#00D084",
			Members: []string{DemoUserID, "user-2"}, CreatedBy: DemoUserID, CreatedTS: ago(48 * time.Hour)},
		{ID: "conv-3", Type: models.ConversationGroup, Name: "Project Alpha Team", AvatarColor: "#2D5BFF",
			Members: []string{DemoUserID, "user-2", "user-3", "user-4"}, CreatedBy: "user-3", CreatedTS: ago(72 * time.Hour)},
		{ID: "conv-4", Type: models.ConversationPrivate, AvatarColor: "#F59E0B",
			Members: []string{DemoUserID, "user-3"}, CreatedBy: "user-3", CreatedTS: ago(96 * time.Hour)},
	}

	all := []string{DemoUserID, "user-2", "user-3", "user-4"}

	msgs := map[string][]models.Message{
		"conv-1": {
			txt("msg-1-1", "conv-1", DemoUserID, "Hi Claude! Can you help me write an email?",
				ago(5*time.Minute), []string{DemoUserID, models.AssistantID}, false),
			txt("msg-1-2", "conv-1", models.AssistantID, "Of course! I'd be happy to help you write an email. Could you tell me:\n\n1. Who is the recipient?\n2. What's the purpose of the email?\n3. What tone would you like (formal, casual, etc.)?",
				ago(4*time.Minute), []string{DemoUserID, models.AssistantID}, true),
			txt("msg-1-3", "conv-1", DemoUserID, "It's for my manager, requesting time off next week. Professional tone please.",
				ago(3*time.Minute), []string{DemoUserID, models.AssistantID}, false),
			txt("msg-1-4", "conv-1", models.AssistantID, "Here's a professional time-off request email:\n\n---\n\nSubject: Time Off Request - [Your Name] - [Dates]\n\nDear [Manager's Name],\n\nI hope this email finds you well. I am writing to formally request time off from [start date] to [end date].\n\nI have ensured that my current projects are on track, and I will complete any urgent tasks before my absence. I am also happy to brief a colleague on any ongoing work to ensure continuity.\n\nPlease let me know if you need any additional information or if these dates pose any issues for the team.\n\nThank you for considering my request.\n\nBest regards,\n[Your Name]\n\n---\n\nWould you like me to adjust anything?",
				ago(2*time.Minute), []string{DemoUserID, models.AssistantID}, true),
			txt("msg-1-5", "conv-1", DemoUserID, "That's perfect! Thank you so much!",
				ago(time.Minute), []string{DemoUserID, models.AssistantID}, false),
			txt("msg-1", "conv-1", models.AssistantID, "You're welcome! Feel free to ask if you need help with anything else. Good luck with your time-off request!",
				ago(30*time.Second), []string{DemoUserID, models.AssistantID}, true),
		},
		"conv-2": {
			txt("msg-2-1", "conv-2", DemoUserID, "Hey Alice! How are the designs coming along?",
				ago(24*time.Hour), []string{DemoUserID, "user-2"}, false),
			txt("msg-2-2", "conv-2", "user-2", "Going great! Just finishing up the last few screens.",
				ago(23*time.Hour), []string{DemoUserID, "user-2"}, false),
			txt("msg-2", "conv-2", "user-2", "The design mockups are ready for review!",
				ago(time.Hour), []string{"user-2"}, false),
		},
		"conv-3": {
			txt("msg-3-1", "conv-3", "user-3", "Welcome to the Project Alpha team chat!",
				ago(48*time.Hour), all, false),
			txt("msg-3-2", "conv-3", "user-4", "Excited to work with everyone!",
				ago(24*time.Hour), all, false),
			txt("msg-3", "conv-3", "user-3", "Sprint planning at 2pm tomorrow",
				ago(2*time.Hour), []string{"user-3", "user-2"}, false),
		},
		"conv-4": {
			txt("msg-4-1", "conv-4", "user-3", "Hey! I reviewed your PR. Looks good overall!",
				ago(48*time.Hour), []string{DemoUserID, "user-3"}, false),
			txt("msg-4", "conv-4", DemoUserID, "Thanks for the code review!",
				ago(24*time.Hour), []string{DemoUserID, "user-3"}, false),
		},
	}

	for _, c := range convs {
		history := msgs[c.ID]
		for i := range history {
			m := history[i]
			if err := store.AppendMessage(&m); err != nil {
				return err
			}
			history[i] = m
		}
		last := history[len(history)-1]
		c.LastMessage = &last
		c.LastMessageTS = last.TS
		c.Unread = unreadFromHistory(c.Members, history)
		if err := store.SaveConversation(c); err != nil {
			return err
		}
	}

	logger.Info("demo_seed_loaded", "profiles", len(profiles), "conversations", len(convs))
	return nil
}

func txt(id, convID, sender, content string, ts int64, readBy []string, ai bool) models.Message {
	return models.Message{
		ID:           id,
		Conversation: convID,
		Sender:       sender,
		TS:           ts,
		Kind:         models.KindText,
		Content:      content,
		ReadBy:       readBy,
		AIGenerated:  ai,
	}
}

// unreadFromHistory derives per-member unread counters from the ReadBy
// stamps, so the seeded counters agree with what MarkRead would produce.
func unreadFromHistory(members []string, history []models.Message) map[string]int {
	out := make(map[string]int, len(members))
	for _, id := range members {
		n := 0
		for _, m := range history {
			if m.Sender != id && !m.ReadByContains(id) {
				n++
			}
		}
		out[id] = n
	}
	return out
}
