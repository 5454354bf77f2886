package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"chatcore/pkg/assist"
	"chatcore/pkg/auth"
	"chatcore/pkg/models"
	"chatcore/pkg/orchestrator"
	"chatcore/pkg/store"
	"chatcore/pkg/timeline"
	"chatcore/pkg/utils"
)

type submitMessageReq struct {
	Kind     models.Kind `json:"kind"`
	Content  string      `json:"content"`
	FileURL  string      `json:"file_url"`
	FileName string      `json:"file_name"`
	ReplyTo  string      `json:"reply_to"`
}

// submitMessage handles POST /v1/conversations/{id}/messages. The request
// is accepted once the sender's message is durably appended; any assistant
// reply lands in the log afterwards. ?wait=1 blocks for the whole turn and
// returns the assistant message too.
func submitMessage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	convID := mux.Vars(r)["id"]
	sender := auth.CurrentUser(r)
	if sender == "" {
		utils.JSONError(w, http.StatusBadRequest, "X-User-ID header is required")
		return
	}

	var req submitMessageReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Kind == "" {
		req.Kind = models.KindText
	}

	var (
		turn *orchestrator.Turn
		err  error
	)
	switch req.Kind {
	case models.KindText:
		if req.ReplyTo != "" {
			turn, err = orc.SubmitTextReply(convID, sender, req.Content, req.ReplyTo)
		} else {
			turn, err = orc.SubmitText(convID, sender, req.Content)
		}
	case models.KindImage, models.KindFile:
		turn, err = orc.SubmitFile(convID, sender, req.Kind, req.FileURL, req.FileName)
	default:
		utils.JSONError(w, http.StatusBadRequest, "unknown message kind")
		return
	}
	if err != nil {
		utils.JSONError(w, submitStatus(err), err.Error())
		return
	}

	if r.URL.Query().Get("wait") == "1" {
		res, werr := turn.Wait(r.Context())
		if werr != nil {
			utils.JSONError(w, http.StatusRequestTimeout, werr.Error())
			return
		}
		if res.Err != nil && errors.Is(res.Err, models.ErrValidation) {
			utils.JSONError(w, http.StatusBadRequest, res.Err.Error())
			return
		}
		body := map[string]any{"message": res.UserMessage}
		if res.AIMessage != nil {
			body["ai_message"] = res.AIMessage
		}
		if res.Err != nil {
			body["ai_error"] = res.Err.Error()
		}
		_ = utils.JSONWrite(w, http.StatusCreated, body)
		return
	}

	msg, uerr := turn.UserMessage(r.Context())
	if uerr != nil {
		utils.JSONError(w, submitStatus(uerr), uerr.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusCreated, map[string]any{"message": msg})
}

func submitStatus(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrInvalidReference):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, orchestrator.ErrQueueFull):
		return http.StatusTooManyRequests
	case errors.Is(err, assist.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// listConvMessages handles GET /v1/conversations/{id}/messages. Messages
// come back oldest-first. ?limit=n keeps the newest n; ?grouped=1 returns
// the date-run view used by timelines.
func listConvMessages(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	convID := mux.Vars(r)["id"]
	conv, err := store.GetConversation(convID)
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

	var msgs []models.Message
	if limStr := r.URL.Query().Get("limit"); limStr != "" {
		lim, aerr := strconv.Atoi(limStr)
		if aerr != nil || lim < 0 {
			utils.JSONError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		msgs, err = store.ListMessages(convID, lim)
	} else {
		msgs, err = store.ListMessages(convID)
	}
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if r.URL.Query().Get("grouped") == "1" {
		groups := timeline.GroupByDate(msgs, time.Now(), time.Local)
		_ = utils.JSONWrite(w, http.StatusOK, map[string]any{"groups": groups})
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{"messages": msgs})
}
