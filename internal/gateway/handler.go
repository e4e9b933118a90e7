package gateway

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"parlor/pkg/auth"
	"parlor/pkg/logger"
	"parlor/pkg/models"
	"parlor/pkg/presence"
	"parlor/pkg/telemetry"
	"parlor/pkg/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// origin policy is enforced by the outer gateway middleware
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades an authenticated request to a websocket session.
// Each connection is one presence session: connect on upgrade,
// disconnect when either pump exits.
func ServeWS(h *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserIDFromContext(r.Context())
		if userID == "" {
			utils.JSONError(w, http.StatusUnauthorized, "missing user identity")
			return
		}

		sessionID := uuid.NewString()
		dev := models.Device{
			Kind:      r.URL.Query().Get("device"),
			UserAgent: r.UserAgent(),
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("ws_upgrade_failed", "user", userID, "error", err)
			return
		}

		if _, err := presence.Connect(userID, sessionID, dev); err != nil {
			logger.Error("ws_connect_presence_failed", "user", userID, "error", err)
			_ = conn.Close()
			return
		}
		telemetry.SessionOpened()
		logger.Info("ws_session_opened", "user", userID, "session", sessionID, "device", dev.Kind)

		client := newClient(h, conn, userID, sessionID)
		h.register <- client

		go client.writePump()
		go func() {
			client.readPump()
			if _, err := presence.Disconnect(userID, sessionID); err != nil {
				logger.Warn("ws_disconnect_presence_failed", "user", userID, "error", err)
			}
			telemetry.SessionClosed()
			logger.Info("ws_session_closed", "user", userID, "session", sessionID)
		}()
	}
}
