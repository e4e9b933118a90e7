package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"parlor/pkg/delivery"
	"parlor/pkg/messages"
	"parlor/pkg/models"
	"parlor/pkg/reactions"
	"parlor/pkg/utils"
)

// RegisterMessages registers the message pipeline routes: send, edit,
// delete, pin, reactions and delivery receipts.
func RegisterMessages(r *mux.Router) {
	r.HandleFunc("/messages", sendMessage).Methods(http.MethodPost)
	r.HandleFunc("/messages/{id}", getMessage).Methods(http.MethodGet)
	r.HandleFunc("/messages/{id}", editMessage).Methods(http.MethodPut)
	r.HandleFunc("/messages/{id}", deleteMessage).Methods(http.MethodDelete)
	r.HandleFunc("/messages/{id}/pin", pinMessage).Methods(http.MethodPost)
	r.HandleFunc("/messages/{id}/pin", unpinMessage).Methods(http.MethodDelete)
	r.HandleFunc("/messages/{id}/reactions", toggleReaction).Methods(http.MethodPost)
	r.HandleFunc("/messages/{id}/reactions", listReactions).Methods(http.MethodGet)
	r.HandleFunc("/messages/{id}/delivered", markDelivered).Methods(http.MethodPost)
	r.HandleFunc("/messages/{id}/read", markRead).Methods(http.MethodPost)
	r.HandleFunc("/messages/{id}/receipts", messageReceipts).Methods(http.MethodGet)
	r.HandleFunc("/messages/{id}/deliveries", listDeliveries).Methods(http.MethodGet)
	r.HandleFunc("/direct/{user}/messages", listDirectMessages).Methods(http.MethodGet)
}

func sendMessage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var in struct {
		RoomID      string              `json:"room_id"`
		RecipientID string              `json:"recipient_id"`
		Type        models.MessageType  `json:"type"`
		Content     string              `json:"content"`
		Attachments []models.Attachment `json:"attachments"`
		ReplyTo     string              `json:"reply_to"`
		ForwardOf   string              `json:"forward_of"`
	}
	if !decode(w, r, &in) {
		return
	}
	m, err := messages.Send(messages.SendInput{
		RoomID:      in.RoomID,
		RecipientID: in.RecipientID,
		Author:      actor(r),
		Type:        in.Type,
		Content:     in.Content,
		Attachments: in.Attachments,
		ReplyTo:     in.ReplyTo,
		ForwardOf:   in.ForwardOf,
	})
	if err != nil {
		writeErr(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusCreated, m)
}

func getMessage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	m, err := messages.Get(mux.Vars(r)["id"], actor(r))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, m)
}

func editMessage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var in struct {
		Content string `json:"content"`
	}
	if !decode(w, r, &in) {
		return
	}
	m, err := messages.Edit(mux.Vars(r)["id"], actor(r), in.Content)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, m)
}

func deleteMessage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := messages.Delete(mux.Vars(r)["id"], actor(r)); err != nil {
		writeErr(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func pinMessage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	m, err := messages.Pin(mux.Vars(r)["id"], actor(r))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, m)
}

func unpinMessage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	m, err := messages.Unpin(mux.Vars(r)["id"], actor(r))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, m)
}

func toggleReaction(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var in struct {
		Emoji string `json:"emoji"`
	}
	if !decode(w, r, &in) {
		return
	}
	added, err := reactions.Toggle(mux.Vars(r)["id"], actor(r), in.Emoji)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]bool{"added": added})
}

func listReactions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	out, err := reactions.ListForMessage(mux.Vars(r)["id"], actor(r))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Reactions []models.ReactionGroup `json:"reactions"`
	}{Reactions: out})
}

func markDelivered(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	rec, err := delivery.MarkDelivered(mux.Vars(r)["id"], actor(r))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, rec)
}

func markRead(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	rec, err := delivery.MarkRead(mux.Vars(r)["id"], actor(r))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, rec)
}

func messageReceipts(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	counts, err := delivery.Counts(mux.Vars(r)["id"], actor(r))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, counts)
}

func listDeliveries(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	out, err := delivery.ListForMessage(mux.Vars(r)["id"], actor(r))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Deliveries []models.DeliveryRecord `json:"deliveries"`
	}{Deliveries: out})
}

func listDirectMessages(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	limit, before := pageParams(r)
	out, err := messages.ListDirect(actor(r), mux.Vars(r)["user"], limit, before)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Messages []models.Message `json:"messages"`
	}{Messages: out})
}
