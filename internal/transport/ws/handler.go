package ws

import (
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/vedran77/reviewhub/internal/realtime"
	"github.com/vedran77/reviewhub/internal/service"
	"github.com/vedran77/reviewhub/internal/transport/http/middleware"
	"github.com/vedran77/reviewhub/internal/unread"
	"github.com/vedran77/reviewhub/pkg/logger"
	"nhooyr.io/websocket"
)

// Deps are the services a connection drives.
type Deps struct {
	Messages       *service.MessageService
	Typing         *service.TypingService
	Conversations  *service.ConversationService
	Broker         *realtime.Broker
	TypingDebounce time.Duration
	Unread         unread.Config
	SendLimiter    *middleware.UserRateLimiter
}

// ServeWS returns an HTTP handler that upgrades to WebSocket.
// Auth is done via ?token=xxx query param (WebSocket can't send headers).
func ServeWS(hub *Hub, jwtSecret string, origins []string) http.HandlerFunc {
	secret := []byte(jwtSecret)
	accept := acceptOptions(origins)

	return func(w http.ResponseWriter, r *http.Request) {
		tokenStr := r.URL.Query().Get("token")
		if tokenStr == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}

		userID, err := service.ParseToken(tokenStr, secret)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := websocket.Accept(w, r, accept)
		if err != nil {
			logger.Warn().Err(err).Msg("ws: accept error")
			return
		}

		client := NewClient(hub, conn, userID)
		if !hub.Register(client) {
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		}

		go client.WritePump()
		go client.ReadPump()
	}
}

// acceptOptions turns the CORS origin list into websocket origin patterns.
func acceptOptions(origins []string) *websocket.AcceptOptions {
	if len(origins) == 0 || slices.Contains(origins, "*") {
		return &websocket.AcceptOptions{InsecureSkipVerify: true}
	}

	patterns := make([]string, 0, len(origins))
	for _, origin := range origins {
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
		} else {
			patterns = append(patterns, origin)
		}
	}
	return &websocket.AcceptOptions{OriginPatterns: patterns}
}
