package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"parlor/pkg/auth"
	"parlor/pkg/errs"
	"parlor/pkg/logger"
	"parlor/pkg/utils"
)

// pager clamps requested page sizes. The default mirrors the config
// defaults; app wiring replaces it via SetPager with the loaded config.
var pager = func(requested int) int {
	switch {
	case requested <= 0:
		return 50
	case requested > 200:
		return 200
	}
	return requested
}

// SetPager installs the configured page-size clamp.
func SetPager(fn func(int) int) {
	if fn != nil {
		pager = fn
	}
}

// actor returns the verified end user behind the request.
func actor(r *http.Request) string { return auth.UserIDFromContext(r.Context()) }

// decode reads the JSON request body into v, answering 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeErr maps a service error to its HTTP status. Internal errors are
// logged and masked.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	switch errs.KindOf(err) {
	case errs.InvalidArgument:
		utils.JSONError(w, http.StatusBadRequest, err.Error())
	case errs.NotFound:
		utils.JSONError(w, http.StatusNotFound, err.Error())
	case errs.Conflict:
		utils.JSONError(w, http.StatusConflict, err.Error())
	case errs.Forbidden:
		utils.JSONError(w, http.StatusForbidden, err.Error())
	default:
		logger.Error("handler_internal_error", "path", r.URL.Path, "error", err)
		utils.JSONError(w, http.StatusInternalServerError, "internal error")
	}
}

// pageParams reads ?limit= and ?before= cursor parameters.
func pageParams(r *http.Request) (limit int, before string) {
	n, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return pager(n), r.URL.Query().Get("before")
}
