package models

import "strings"

// AssistantID is the reserved profile id that marks the AI participant in a
// conversation's member set. It is a sentinel, not a regular user account.
const AssistantID = "claude-ai"

// Status is a profile presence state.
type Status string

const (
	StatusOnline  Status = "online"
	StatusAway    Status = "away"
	StatusOffline Status = "offline"
)

// Theme is a profile display preference. Owned by the presentation layer;
// stored here only so it round-trips with the rest of the profile record.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Profile is an identity record.
type Profile struct {
	ID          string `json:"id"`
	Email       string `json:"email,omitempty"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	AvatarColor string `json:"avatar_color,omitempty"`
	Bio         string `json:"bio,omitempty"`
	Status      Status `json:"status,omitempty"`
	Theme       Theme  `json:"theme,omitempty"`
	// Created timestamp (ns)
	CreatedTS int64 `json:"created_ts,omitempty"`
	// LastActiveTS records the last submission by this profile (ns); the
	// presence sweeper demotes stale profiles based on it.
	LastActiveTS int64 `json:"last_active_ts,omitempty"`
}

// DisplayName formats the profile's name parts. Falls back to the email
// local part, then the id, so it never returns empty for a stored profile.
func (p Profile) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName))
	if name != "" {
		return name
	}
	if p.Email != "" {
		if i := strings.IndexByte(p.Email, '@'); i > 0 {
			return p.Email[:i]
		}
		return p.Email
	}
	return p.ID
}

// IsAssistant reports whether the profile is the reserved AI participant.
func (p Profile) IsAssistant() bool { return p.ID == AssistantID }
