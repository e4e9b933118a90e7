package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"parlor/pkg/models"
	"parlor/pkg/moderation"
	"parlor/pkg/utils"
)

// RegisterModeration registers blocking and report routes. Listing and
// reviewing reports is reserved for admin keys by the outer gateway;
// filing a report is open to any authenticated user.
func RegisterModeration(r *mux.Router) {
	r.HandleFunc("/blocks", listBlocks).Methods(http.MethodGet)
	r.HandleFunc("/blocks/{user}", blockUser).Methods(http.MethodPut)
	r.HandleFunc("/blocks/{user}", unblockUser).Methods(http.MethodDelete)
	r.HandleFunc("/reports", fileReport).Methods(http.MethodPost)
	r.HandleFunc("/reports", listReports).Methods(http.MethodGet)
	r.HandleFunc("/reports/{id}", reviewReport).Methods(http.MethodPut)
}

func listBlocks(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	out, err := moderation.Blocks(actor(r))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Blocks []models.BlockRelation `json:"blocks"`
	}{Blocks: out})
}

func blockUser(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := moderation.Block(actor(r), mux.Vars(r)["user"]); err != nil {
		writeErr(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "blocked"})
}

func unblockUser(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := moderation.Unblock(actor(r), mux.Vars(r)["user"]); err != nil {
		writeErr(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "unblocked"})
}

func fileReport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var in struct {
		MessageID string   `json:"message_id"`
		Reason    string   `json:"reason"`
		Detail    string   `json:"detail"`
		Evidence  []string `json:"evidence"`
	}
	if !decode(w, r, &in) {
		return
	}
	rp, err := moderation.Report(moderation.ReportInput{
		MessageID: in.MessageID,
		Reporter:  actor(r),
		Reason:    in.Reason,
		Detail:    in.Detail,
		Evidence:  in.Evidence,
	})
	if err != nil {
		writeErr(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusCreated, rp)
}

func listReports(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	status := models.ReportStatus(r.URL.Query().Get("status"))
	out, err := moderation.ListReports(status)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Reports []models.Report `json:"reports"`
	}{Reports: out})
}

func reviewReport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var in struct {
		Status        models.ReportStatus `json:"status"`
		Notes         string              `json:"notes"`
		RemoveMessage bool                `json:"remove_message"`
	}
	if !decode(w, r, &in) {
		return
	}
	rp, err := moderation.Review(moderation.ReviewInput{
		ReportID:      mux.Vars(r)["id"],
		Reviewer:      actor(r),
		Status:        in.Status,
		Notes:         in.Notes,
		RemoveMessage: in.RemoveMessage,
	})
	if err != nil {
		writeErr(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, rp)
}
