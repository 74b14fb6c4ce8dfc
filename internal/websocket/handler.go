package websocket

import (
	"log"
	"net/http"

	"swiftparcel-backend/internal/middleware"
	"swiftparcel-backend/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins in development
		// TODO: Restrict in production
		return true
	},
}

// HandleWebSocket upgrades the HTTP connection and runs the role handshake.
// Handshake query parameters: type (driver|dashboard), driverId (required
// when type=driver), token (JWT, same secret as the REST surface).
// Connections without a type are tracking-link viewers: anonymous, and
// limited to join_tracking by the client message dispatch.
func HandleWebSocket(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connType := r.URL.Query().Get("type")
		driverID := r.URL.Query().Get("driverId")
		tokenString := r.URL.Query().Get("token")

		role := "viewer"
		var claims middleware.UserClaims

		switch connType {
		case "driver":
			if driverID == "" {
				http.Error(w, "driverId is required for driver connections", http.StatusBadRequest)
				return
			}
			parsed, err := middleware.ParseToken(tokenString)
			if err != nil || parsed.Role != models.RoleDriver {
				log.Printf("❌ Rejected driver connection: %v", err)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			claims = parsed
			role = models.RoleDriver

		case "dashboard":
			parsed, err := middleware.ParseToken(tokenString)
			if err != nil || parsed.Role != models.RoleAdmin {
				log.Printf("❌ Rejected dashboard connection: %v", err)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			claims = parsed
			role = models.RoleAdmin
			driverID = ""
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("❌ WebSocket upgrade failed: %v", err)
			return
		}

		client := &Client{
			ID:       uuid.New().String(),
			UserID:   claims.UserID,
			Name:     claims.Name,
			Role:     role,
			DriverID: driverID,
			conn:     conn,
			hub:      hub,
			send:     make(chan []byte, 256),
		}

		hub.register <- client

		go client.WritePump()
		go client.ReadPump()
	}
}
