package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"parlor/pkg/auth"
	"parlor/pkg/invites"
	"parlor/pkg/models"
	"parlor/pkg/utils"
)

// RegisterInvites registers invitation lifecycle routes.
func RegisterInvites(r *mux.Router) {
	r.HandleFunc("/invites", createInvite).Methods(http.MethodPost)
	r.HandleFunc("/invites", listUserInvites).Methods(http.MethodGet)
	r.HandleFunc("/invites/{id}", getInvite).Methods(http.MethodGet)
	r.HandleFunc("/invites/{id}/accept", acceptInvite).Methods(http.MethodPost)
	r.HandleFunc("/invites/{id}/decline", declineInvite).Methods(http.MethodPost)
	r.HandleFunc("/rooms/{id}/invites", listRoomInvites).Methods(http.MethodGet)
}

func createInvite(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var in struct {
		RoomID  string `json:"room_id"`
		Invitee string `json:"invitee"`
		Email   string `json:"email"`
		Message string `json:"message"`
		// TTLSeconds zero uses the configured default; negative means
		// the invitation never expires.
		TTLSeconds int64 `json:"ttl_seconds"`
	}
	if !decode(w, r, &in) {
		return
	}
	inv, err := invites.Create(invites.CreateInput{
		RoomID:  in.RoomID,
		Inviter: actor(r),
		Invitee: in.Invitee,
		Email:   in.Email,
		Message: in.Message,
		TTL:     time.Duration(in.TTLSeconds) * time.Second,
	})
	if err != nil {
		writeErr(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusCreated, inv)
}

func getInvite(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	inv, err := invites.Get(mux.Vars(r)["id"], actor(r))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, inv)
}

func acceptInvite(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	inv, err := invites.Accept(mux.Vars(r)["id"], actor(r), auth.EmailFromContext(r.Context()))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, inv)
}

func declineInvite(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	inv, err := invites.Decline(mux.Vars(r)["id"], actor(r), auth.EmailFromContext(r.Context()))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, inv)
}

func listUserInvites(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	out, err := invites.ListForUser(actor(r))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Invites []models.Invitation `json:"invites"`
	}{Invites: out})
}

func listRoomInvites(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	out, err := invites.ListForRoom(mux.Vars(r)["id"], actor(r))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Invites []models.Invitation `json:"invites"`
	}{Invites: out})
}
