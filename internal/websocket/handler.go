package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"
)

// Authenticator resolves the member opening a connection. Browsers cannot
// set headers on the upgrade, so implementations typically read a token
// from the query string.
type Authenticator func(r *http.Request) (userID int64, err error)

// HandleWebSocket upgrades authenticated requests and runs them as Hub
// clients. originPatterns lists the allowed cross-origin hosts.
func HandleWebSocket(hub *Hub, authenticate Authenticator, originPatterns []string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authenticate(r)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{OriginPatterns: originPatterns})
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}

		NewClient(hub, conn, userID).Run(r.Context())
	}
}
