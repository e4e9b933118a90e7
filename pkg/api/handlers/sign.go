package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"parlor/pkg/config"
	"parlor/pkg/logger"
	"parlor/pkg/utils"
)

// RegisterSigning registers the signing endpoint. Backend services call
// it to mint X-User-Signature values for their frontend clients.
func RegisterSigning(r *mux.Router) {
	r.HandleFunc("/_sign", signHandler).Methods(http.MethodPost)
}

// signHandler computes the HMAC-SHA256 signature a frontend client
// presents alongside X-User-ID. Only backend roles may request one; the
// signing secret comes from the configured signing keys, not the
// caller's API key, so rotating API keys does not invalidate
// outstanding signatures.
func signHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if role := r.Header.Get("X-Role-Name"); role != "backend" && role != "admin" {
		logger.Warn("sign_forbidden", "role", role, "remote", r.RemoteAddr)
		utils.JSONError(w, http.StatusForbidden, "forbidden")
		return
	}

	var in struct {
		UserID string `json:"user_id"`
	}
	if !decode(w, r, &in) {
		return
	}
	if strings.TrimSpace(in.UserID) == "" {
		utils.JSONError(w, http.StatusBadRequest, "missing user_id")
		return
	}

	keys := config.GetSigningKeys()
	if len(keys) == 0 {
		logger.Error("no_signing_keys_configured")
		utils.JSONError(w, http.StatusInternalServerError, "no signing secrets available")
		return
	}
	// any configured key verifies; sign with the first
	var secret string
	for k := range keys {
		secret = k
		break
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(in.UserID))
	sig := hex.EncodeToString(mac.Sum(nil))
	_ = utils.JSONWrite(w, http.StatusOK, map[string]string{"user_id": in.UserID, "signature": sig})
}
