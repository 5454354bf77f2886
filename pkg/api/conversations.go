package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"

	"chatcore/pkg/auth"
	"chatcore/pkg/directory"
	"chatcore/pkg/models"
	"chatcore/pkg/store"
	"chatcore/pkg/timeline"
	"chatcore/pkg/utils"
)

// conversationSummary is the list-view projection of a conversation for
// one viewer: resolved display name, preview of the newest message, a
// relative timestamp and the viewer's unread counter.
type conversationSummary struct {
	ID       string                  `json:"id"`
	Type     models.ConversationType `json:"type"`
	Name     string                  `json:"name"`
	Initials string                  `json:"initials"`
	Members  []string                `json:"members"`
	Preview  string                  `json:"preview,omitempty"`
	Time     string                  `json:"time,omitempty"`
	Unread   int                     `json:"unread"`
	HasAI    bool                    `json:"has_ai"`
}

type createConversationReq struct {
	Type    models.ConversationType `json:"type"`
	Name    string                  `json:"name"`
	Members []string                `json:"members"`
}

// createConversation handles POST /v1/conversations. The creator is the
// acting user and is always part of the member set.
func createConversation(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req createConversationReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	creator := auth.CurrentUser(r)
	if creator == "" {
		utils.JSONError(w, http.StatusBadRequest, "X-User-ID header is required")
		return
	}
	if req.Type == "" {
		req.Type = models.ConversationPrivate
	}
	members := append([]string{creator}, req.Members...)

	conv, err := models.NewConversation(utils.GenConversationID(), req.Type, req.Name, creator, members)
	if err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	conv.CreatedTS = time.Now().UTC().UnixNano()
	if err := store.SaveConversation(conv); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusCreated, conv)
}

// listConversations handles GET /v1/conversations. The viewer's
// conversations come back as summaries, newest activity first. An optional
// q parameter filters by display name.
func listConversations(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	viewer := auth.CurrentUser(r)
	query := r.URL.Query().Get("q")

	convs, err := store.ListConversations()
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	profiles, err := store.ProfileMap()
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Membership filter before search; anonymous viewers see everything,
	// which only the backend role reaches in practice.
	if viewer != "" {
		visible := convs[:0]
		for _, c := range convs {
			if c.HasMember(viewer) {
				visible = append(visible, c)
			}
		}
		convs = visible
	}

	now := time.Now()
	out := make([]conversationSummary, 0, len(convs))
	activity := make(map[string]int64, len(convs))
	for c := range directory.Search(convs, viewer, query, profiles) {
		name := directory.DisplayName(c, viewer, profiles)
		s := conversationSummary{
			ID:       c.ID,
			Type:     c.Type,
			Name:     name,
			Initials: directory.Initials(name),
			Members:  c.Members,
			Unread:   directory.UnreadFor(c, viewer),
			HasAI:    c.HasAssistant(),
		}
		activity[c.ID] = c.CreatedTS
		if c.LastMessage != nil {
			s.Preview = previewText(*c.LastMessage)
			s.Time = timeline.FormatRelativeTime(c.LastMessageTS, now, time.Local)
			activity[c.ID] = c.LastMessageTS
		}
		out = append(out, s)
	}
	// Newest activity first
	sort.SliceStable(out, func(i, j int) bool {
		return activity[out[i].ID] > activity[out[j].ID]
	})

	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{"conversations": out})
}

func previewText(m models.Message) string {
	switch m.Kind {
	case models.KindImage:
		return "\U0001F4F7 Photo"
	case models.KindFile:
		if m.FileName != "" {
			return "\U0001F4CE " + m.FileName
		}
		return "\U0001F4CE File"
	default:
		return m.Content
	}
}

// getConversation handles GET /v1/conversations/{id}.
func getConversation(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	id := mux.Vars(r)["id"]
	conv, err := store.GetConversation(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.JSONError(w, http.StatusNotFound, "conversation not found")
			return
		}
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if viewer := auth.CurrentUser(r); viewer != "" && !conv.HasMember(viewer) {
		utils.JSONError(w, http.StatusForbidden, "not a member of this conversation")
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, conv)
}

// markConversationRead handles POST /v1/conversations/{id}/read: stamps the
// viewer into ReadBy across the log and zeroes their unread counter.
func markConversationRead(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	id := mux.Vars(r)["id"]
	viewer := auth.CurrentUser(r)
	if viewer == "" {
		utils.JSONError(w, http.StatusBadRequest, "X-User-ID header is required")
		return
	}
	n, err := store.MarkRead(id, viewer)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.JSONError(w, http.StatusNotFound, "conversation not found")
			return
		}
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]int{"marked": n})
}

// getTypingState handles GET /v1/conversations/{id}/typing.
func getTypingState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	id := mux.Vars(r)["id"]
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{
		"conversation": id,
		"state":        orc.TypingState(id),
	})
}
