package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"parlor/pkg/delivery"
	"parlor/pkg/errs"
	"parlor/pkg/messages"
	"parlor/pkg/models"
	"parlor/pkg/rooms"
	"parlor/pkg/utils"
)

// RegisterRooms registers room lifecycle and membership routes onto the
// provided router.
func RegisterRooms(r *mux.Router) {
	r.HandleFunc("/rooms", createRoom).Methods(http.MethodPost)
	r.HandleFunc("/rooms", listRooms).Methods(http.MethodGet)
	r.HandleFunc("/rooms/{id}", getRoom).Methods(http.MethodGet)
	r.HandleFunc("/rooms/{id}", deactivateRoom).Methods(http.MethodDelete)
	r.HandleFunc("/rooms/{id}/members", listMembers).Methods(http.MethodGet)
	r.HandleFunc("/rooms/{id}/members", addMember).Methods(http.MethodPost)
	r.HandleFunc("/rooms/{id}/members/{user}", removeMember).Methods(http.MethodDelete)
	r.HandleFunc("/rooms/{id}/members/{user}/role", changeMemberRole).Methods(http.MethodPut)
	r.HandleFunc("/rooms/{id}/transfer", transferOwnership).Methods(http.MethodPost)
	r.HandleFunc("/rooms/{id}/messages", listRoomMessages).Methods(http.MethodGet)
	r.HandleFunc("/rooms/{id}/read", markRoomRead).Methods(http.MethodPost)
	r.HandleFunc("/rooms/{id}/unread", roomUnread).Methods(http.MethodGet)
}

func createRoom(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var in struct {
		Kind        models.RoomKind    `json:"kind"`
		Name        string             `json:"name"`
		Description string             `json:"description"`
		Private     bool               `json:"private"`
		Options     models.RoomOptions `json:"options"`
	}
	if !decode(w, r, &in) {
		return
	}
	room, err := rooms.Create(in.Kind, actor(r), rooms.CreateOptions{
		Name:        in.Name,
		Description: in.Description,
		Private:     in.Private,
		Options:     in.Options,
	})
	if err != nil {
		writeErr(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusCreated, room)
}

func listRooms(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	out, err := rooms.ListForUser(actor(r))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Rooms []models.Room `json:"rooms"`
	}{Rooms: out})
}

func getRoom(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	roomID := mux.Vars(r)["id"]
	room, err := rooms.Get(roomID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	// private rooms are invisible to non-members
	if room.Private {
		if _, err := rooms.Membership(roomID, actor(r)); err != nil {
			writeErr(w, r, errs.E(errs.NotFound, "room %s not found", roomID))
			return
		}
	}
	_ = utils.JSONWrite(w, http.StatusOK, room)
}

func deactivateRoom(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := rooms.Deactivate(mux.Vars(r)["id"], actor(r)); err != nil {
		writeErr(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

func listMembers(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	out, err := rooms.Members(mux.Vars(r)["id"], actor(r))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Members []rooms.MemberInfo `json:"members"`
	}{Members: out})
}

// addMember covers both self-join on open rooms and moderators adding
// someone else.
func addMember(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	roomID := mux.Vars(r)["id"]
	var in struct {
		UserID string      `json:"user_id"`
		Role   models.Role `json:"role"`
	}
	if !decode(w, r, &in) {
		return
	}
	if in.Role == "" {
		in.Role = models.RoleMember
	}
	caller := actor(r)
	if in.UserID == "" {
		in.UserID = caller
	}
	if in.UserID == caller {
		room, err := rooms.Get(roomID)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		if room.Options.JoinPolicy != models.JoinOpen {
			writeErr(w, r, errs.E(errs.Forbidden, "room %s requires an invitation", roomID))
			return
		}
		if in.Role != models.RoleMember {
			writeErr(w, r, errs.E(errs.Forbidden, "self-join grants member role only"))
			return
		}
	} else if _, err := rooms.RequireRole(roomID, caller, models.RoleModerator); err != nil {
		writeErr(w, r, err)
		return
	}
	m, err := rooms.AddMember(roomID, in.UserID, in.Role, caller)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusCreated, m)
}

func removeMember(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	vars := mux.Vars(r)
	roomID, target := vars["id"], vars["user"]
	caller := actor(r)
	if target != caller {
		// removing someone else requires moderator rank above the target
		am, err := rooms.RequireRole(roomID, caller, models.RoleModerator)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		tm, err := rooms.Membership(roomID, target)
		if err != nil {
			writeErr(w, r, err)
			return
		}
		if !am.Role.Outranks(tm.Role) {
			writeErr(w, r, errs.E(errs.Forbidden, "cannot remove a member of equal or higher rank"))
			return
		}
	}
	if err := rooms.RemoveMember(roomID, target); err != nil {
		writeErr(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "removed"})
}

func changeMemberRole(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	vars := mux.Vars(r)
	var in struct {
		Role models.Role `json:"role"`
	}
	if !decode(w, r, &in) {
		return
	}
	m, err := rooms.ChangeRole(vars["id"], actor(r), vars["user"], in.Role)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, m)
}

func transferOwnership(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var in struct {
		To string `json:"to"`
	}
	if !decode(w, r, &in) {
		return
	}
	if err := rooms.TransferOwnership(mux.Vars(r)["id"], actor(r), in.To); err != nil {
		writeErr(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "transferred"})
}

func listRoomMessages(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	limit, before := pageParams(r)
	out, err := messages.ListRoom(mux.Vars(r)["id"], actor(r), limit, before)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Messages []models.Message `json:"messages"`
	}{Messages: out})
}

func markRoomRead(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	n, err := delivery.MarkRoomRead(mux.Vars(r)["id"], actor(r))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]int{"read": n})
}

func roomUnread(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	n, err := rooms.UnreadCount(mux.Vars(r)["id"], actor(r))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]int{"unread": n})
}
