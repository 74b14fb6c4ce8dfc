package websocket

import (
	"encoding/json"
	"log"
	"time"

	"swiftparcel-backend/internal/models"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 2048
)

// Client represents one WebSocket connection. Role is the handshake role
// (driver, dashboard or viewer); DriverID is set only for driver
// connections and binds the connection to its cache entries.
type Client struct {
	ID       string
	UserID   string
	Name     string
	Role     string
	DriverID string
	conn     *websocket.Conn
	hub      *Hub
	send     chan []byte
}

// IncomingMessage represents a message from the client
type IncomingMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type joinTrackingPayload struct {
	TrackingID string `json:"trackingId"`
}

type joinDriverPayload struct {
	DriverID string `json:"driverId"`
}

// ReadPump pumps messages from the WebSocket connection to the hub
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		// Malformed frames are logged and dropped; the gateway has no
		// error channel back to the sender.
		var msg IncomingMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("Invalid message format from %s: %v", c.ID, err)
			continue
		}

		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(msg IncomingMessage) {
	switch msg.Type {
	case "ping":
		// Replies are written by the hub loop, never from here: the hub is
		// the only goroutine allowed to touch (or close) c.send.
		c.hub.ping <- c

	case "join_dashboard":
		// Fleet-wide positions are dashboard-only.
		if c.Role != models.RoleAdmin {
			log.Printf("Dropping join_dashboard from non-admin connection %s", c.ID)
			return
		}
		c.hub.joinDashboard <- c

	case "join_tracking":
		var payload joinTrackingPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil || payload.TrackingID == "" {
			log.Printf("Invalid join_tracking payload from %s", c.ID)
			return
		}
		c.hub.subscribe <- subscription{client: c, channel: TrackingChannel(payload.TrackingID)}

	case "join_driver":
		var payload joinDriverPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil || payload.DriverID == "" {
			log.Printf("Invalid join_driver payload from %s", c.ID)
			return
		}
		// Admins may watch any driver; a driver only its own channel.
		if c.Role != models.RoleAdmin && !(c.Role == models.RoleDriver && c.DriverID == payload.DriverID) {
			log.Printf("Dropping join_driver for %s from connection %s", payload.DriverID, c.ID)
			return
		}
		c.hub.subscribe <- subscription{client: c, channel: DriverChannel(payload.DriverID)}

	case "update_location":
		// Only driver connections feed positions.
		if c.Role != models.RoleDriver {
			log.Printf("Dropping update_location from non-driver connection %s", c.ID)
			return
		}
		var payload LocationPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			log.Printf("Invalid update_location payload from %s: %v", c.ID, err)
			return
		}
		c.hub.location <- locationUpdate{client: c, payload: payload, raw: msg.Data}

	case "driver_status":
		if c.Role != models.RoleDriver {
			log.Printf("Dropping driver_status from non-driver connection %s", c.ID)
			return
		}
		c.hub.driverStatus <- statusBroadcast{raw: msg.Data}
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current WebSocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
