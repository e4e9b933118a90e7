package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"parlor/pkg/models"
	"parlor/pkg/presence"
	"parlor/pkg/utils"
)

// RegisterPresence registers presence read and manual-status routes.
// Connection-derived transitions happen on the websocket gateway, not
// here.
func RegisterPresence(r *mux.Router) {
	r.HandleFunc("/presence/status", setStatus).Methods(http.MethodPut)
	r.HandleFunc("/presence/status", clearStatus).Methods(http.MethodDelete)
	r.HandleFunc("/presence/heartbeat", heartbeat).Methods(http.MethodPost)
	r.HandleFunc("/presence/query", queryPresence).Methods(http.MethodPost)
	r.HandleFunc("/presence/{user}", getPresence).Methods(http.MethodGet)
}

func getPresence(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	p, err := presence.Get(mux.Vars(r)["user"])
	if err != nil {
		writeErr(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, p)
}

func queryPresence(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var in struct {
		UserIDs []string `json:"user_ids"`
	}
	if !decode(w, r, &in) {
		return
	}
	out, err := presence.GetMany(in.UserIDs)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Presence map[string]*models.Presence `json:"presence"`
	}{Presence: out})
}

func setStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var in struct {
		Status     models.PresenceStatus `json:"status"`
		CustomText string                `json:"custom_text"`
	}
	if !decode(w, r, &in) {
		return
	}
	p, err := presence.SetStatus(actor(r), in.Status, in.CustomText)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, p)
}

func clearStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	p, err := presence.ClearStatus(actor(r))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, p)
}

// heartbeat keeps an HTTP-polling session alive; websocket clients
// heartbeat over their connection instead.
func heartbeat(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var in struct {
		SessionID string `json:"session_id"`
	}
	if !decode(w, r, &in) {
		return
	}
	if err := presence.Heartbeat(actor(r), in.SessionID); err != nil {
		writeErr(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "ok"})
}
