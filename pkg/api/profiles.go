package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"chatcore/pkg/models"
	"chatcore/pkg/store"
	"chatcore/pkg/utils"
)

// createProfile handles POST /v1/profiles. Upserts by id.
func createProfile(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var p models.Profile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if p.ID == "" {
		utils.JSONError(w, http.StatusBadRequest, "profile id is required")
		return
	}
	if p.Status == "" {
		p.Status = models.StatusOffline
	}
	if p.LastActiveTS == 0 {
		p.LastActiveTS = time.Now().UTC().UnixNano()
	}
	if err := store.SaveProfile(p); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusCreated, p)
}

// listProfiles handles GET /v1/profiles.
func listProfiles(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	profiles, err := store.ListProfiles()
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]any{"profiles": profiles})
}

// getProfile handles GET /v1/profiles/{id}.
func getProfile(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	id := mux.Vars(r)["id"]
	p, err := store.GetProfile(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.JSONError(w, http.StatusNotFound, "profile not found")
			return
		}
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, p)
}
