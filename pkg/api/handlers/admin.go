package handlers

import (
	"net/http"
	"net/url"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"

	"parlor/pkg/invites"
	"parlor/pkg/logger"
	"parlor/pkg/models"
	"parlor/pkg/moderation"
	"parlor/pkg/presence"
	"parlor/pkg/store"
	"parlor/pkg/utils"
)

// sweepJobs are the maintenance jobs an operator may trigger by hand;
// the scheduler runs the same functions on their cron cadence.
var sweepJobs = map[string]func(nowTS int64) (int, error){
	"presence": presence.SweepStale,
	"invites":  invites.SweepExpired,
}

// RegisterAdmin registers operator routes onto the admin subrouter. The
// outer gateway restricts these to admin keys.
func RegisterAdmin(r *mux.Router) {
	r.HandleFunc("/health", adminHealth).Methods(http.MethodGet)
	r.HandleFunc("/stats", adminStats).Methods(http.MethodGet)
	r.HandleFunc("/sweep/{job}", adminSweep).Methods(http.MethodPost)
	r.HandleFunc("/keys", adminListKeys).Methods(http.MethodGet)
	r.HandleFunc("/keys/{key}", adminGetKey).Methods(http.MethodGet)
	logger.Info("admin_routes_registered")
}

func adminHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok","service":"parlor"}`))
}

func adminStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	roomIDs, err := store.ListRoomIDs()
	if err != nil {
		writeErr(w, r, err)
		return
	}
	pending, err := moderation.ListReports(models.ReportPending)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	usage := store.DiskUsage()
	out := struct {
		Rooms          int    `json:"rooms"`
		PendingReports int    `json:"pending_reports"`
		DiskUsage      uint64 `json:"disk_usage_bytes"`
		DiskUsageHuman string `json:"disk_usage"`
	}{
		Rooms:          len(roomIDs),
		PendingReports: len(pending),
		DiskUsage:      usage,
		DiskUsageHuman: humanize.Bytes(usage),
	}
	_ = utils.JSONWrite(w, http.StatusOK, out)
}

// adminSweep runs one maintenance job immediately, outside its cron
// cadence.
func adminSweep(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	job := mux.Vars(r)["job"]
	fn, ok := sweepJobs[job]
	if !ok {
		utils.JSONError(w, http.StatusNotFound, "unknown sweep job")
		return
	}
	n, err := fn(time.Now().UTC().UnixNano())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	logger.Info("manual_sweep", "job", job, "affected", n)
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Job      string `json:"job"`
		Affected int    `json:"affected"`
	}{Job: job, Affected: n})
}

// adminListKeys lists raw store keys, optionally limited by ?prefix=.
// Debugging aid; values stay opaque here.
func adminListKeys(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	keys, err := store.ListKeys(r.URL.Query().Get("prefix"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Keys []string `json:"keys"`
	}{Keys: keys})
}

// adminGetKey returns the raw value for one store key. Path variables
// are not unescaped by the router, so recover the original key first.
func adminGetKey(w http.ResponseWriter, r *http.Request) {
	key, err := url.PathUnescape(mux.Vars(r)["key"])
	if err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid key encoding")
		return
	}
	v, err := store.GetKey(key)
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, "key not found")
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(v)
}
