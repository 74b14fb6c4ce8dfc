package websocket

import (
	"encoding/json"
	"log"
	"time"

	"swiftparcel-backend/internal/cache"
	"swiftparcel-backend/internal/models"
)

// Channel names. A client can sit in any number of channels; a location
// update is fanned out independently to the tracking channel, the dashboard
// group AND the global channel, so a subscriber present in more than one
// group receives duplicate copies. The unscoped global channel is a
// compatibility contract for consumers that subscribe to everything; do not
// collapse it into the dashboard group.
const (
	ChannelDashboard = "dashboard"
	ChannelGlobal    = "global"
)

func TrackingChannel(trackingID string) string {
	return "tracking:" + trackingID
}

func DriverChannel(driverID string) string {
	return "driver:" + driverID
}

// Outbound event types.
const (
	EventAllDriverPositions   = "all_driver_positions"
	EventDriverLocationUpdate = "driver_location_update"
	EventLocationUpdate       = "locationUpdate"
	EventDriverStatusUpdate   = "driver_status_update"
)

// Envelope is the wire frame in both directions: {type, data}.
type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// LocationPayload is the parsed shape of an update_location frame. Fields
// are optional on the wire; a payload without a driverId skips the cache
// write but is still fanned out to whichever channels it addresses.
type LocationPayload struct {
	DriverID   string  `json:"driverId"`
	DriverName string  `json:"driverName,omitempty"`
	Latitude   float64 `json:"lat"`
	Longitude  float64 `json:"lng"`
	TrackingID string  `json:"trackingId,omitempty"`
	Timestamp  int64   `json:"timestamp,omitempty"`
}

type subscription struct {
	client  *Client
	channel string
}

type locationUpdate struct {
	client  *Client
	payload LocationPayload
	raw     json.RawMessage
}

type statusBroadcast struct {
	raw json.RawMessage
}

// Hub owns every subscription map and the location cache writes. All
// mutations funnel through the Run loop, so snapshot-on-join is causally
// consistent with every update accepted before the join was processed.
type Hub struct {
	clients       map[*Client]bool
	subscriptions map[string]map[*Client]bool

	cache *cache.LocationCache

	register      chan *Client
	unregister    chan *Client
	subscribe     chan subscription
	joinDashboard chan *Client
	location      chan locationUpdate
	driverStatus  chan statusBroadcast
	ping          chan *Client
}

func NewHub(locationCache *cache.LocationCache) *Hub {
	return &Hub{
		clients:       make(map[*Client]bool),
		subscriptions: make(map[string]map[*Client]bool),
		cache:         locationCache,
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		subscribe:     make(chan subscription, 64),
		joinDashboard: make(chan *Client, 64),
		location:      make(chan locationUpdate, 256),
		driverStatus:  make(chan statusBroadcast, 64),
		ping:          make(chan *Client, 64),
	}
}

// Run is the hub's main loop. It is the single writer for the subscription
// maps and the only caller of cache mutations triggered by gateway traffic.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			// Driver connections join their private channel immediately.
			if client.Role == models.RoleDriver && client.DriverID != "" {
				h.addSubscription(client, DriverChannel(client.DriverID))
			}
			log.Printf("✅ [GATEWAY] Client connected: %s (role: %s, total: %d)",
				client.ID, client.Role, len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.dropClient(client)
				// The last known position stays visible; the entry is
				// only flagged offline, and only if this connection was
				// its most recent writer.
				if client.Role == models.RoleDriver && client.DriverID != "" {
					h.cache.MarkOffline(client.DriverID, client.ID, time.Now().Unix())
				}
				log.Printf("🔴 [GATEWAY] Client disconnected: %s (remaining: %d)",
					client.ID, len(h.clients))
			}

		case sub := <-h.subscribe:
			if _, ok := h.clients[sub.client]; ok {
				h.addSubscription(sub.client, sub.channel)
			}

		case client := <-h.joinDashboard:
			if _, ok := h.clients[client]; !ok {
				continue
			}
			h.addSubscription(client, ChannelDashboard)
			// Snapshot taken inside the loop: it reflects exactly the
			// updates processed before this join, so late joiners are
			// not blind until the next live update.
			h.send(client, Envelope{
				Type: EventAllDriverPositions,
				Data: h.cache.Snapshot(),
			})

		case update := <-h.location:
			h.handleLocation(update)

		case status := <-h.driverStatus:
			// Broadcast verbatim; no cache mutation.
			h.broadcast(ChannelGlobal, Envelope{Type: EventDriverStatusUpdate, Data: status.raw})
			h.broadcast(ChannelDashboard, Envelope{Type: EventDriverStatusUpdate, Data: status.raw})

		case client := <-h.ping:
			// Pong replies go through the loop so the hub stays the only
			// writer (and closer) of a client's send channel. A client
			// dropped for a full buffer is simply gone by the time its
			// ping is processed.
			if _, ok := h.clients[client]; ok {
				h.send(client, Envelope{Type: "pong", Data: time.Now().Format(time.RFC3339)})
			}
		}
	}
}

func (h *Hub) handleLocation(update locationUpdate) {
	payload := update.payload

	// A payload without a driverId can't be cached, but it still reaches
	// whichever channels it addresses: there is no validation gate in
	// front of the fan-out.
	if payload.DriverID != "" {
		name := payload.DriverName
		if name == "" {
			name = update.client.Name
		}
		ts := payload.Timestamp
		if ts == 0 {
			ts = time.Now().Unix()
		}
		h.cache.Upsert(models.DriverPosition{
			DriverID:     payload.DriverID,
			DriverName:   name,
			Latitude:     payload.Latitude,
			Longitude:    payload.Longitude,
			Timestamp:    ts,
			ConnectionID: update.client.ID,
		})
	} else {
		log.Printf("⚠️ Location update without driverId from %s, cache write skipped", update.client.ID)
	}

	// Independent fan-outs of the same raw payload. Tracking channel first,
	// then dashboard, then the unscoped global channel; subscribers in more
	// than one group receive duplicates by contract.
	if payload.TrackingID != "" {
		h.broadcast(TrackingChannel(payload.TrackingID), Envelope{Type: EventDriverLocationUpdate, Data: update.raw})
	}
	h.broadcast(ChannelDashboard, Envelope{Type: EventLocationUpdate, Data: update.raw})
	h.broadcast(ChannelGlobal, Envelope{Type: EventLocationUpdate, Data: update.raw})

	// Focused dispatch views subscribe to a single driver's channel.
	if payload.DriverID != "" {
		h.broadcast(DriverChannel(payload.DriverID), Envelope{Type: EventLocationUpdate, Data: update.raw})
	}
}

func (h *Hub) addSubscription(client *Client, channel string) {
	if h.subscriptions[channel] == nil {
		h.subscriptions[channel] = make(map[*Client]bool)
	}
	h.subscriptions[channel][client] = true
}

func (h *Hub) dropClient(client *Client) {
	delete(h.clients, client)
	for channel, members := range h.subscriptions {
		delete(members, client)
		if len(members) == 0 {
			delete(h.subscriptions, channel)
		}
	}
	close(client.send)
}

func (h *Hub) broadcast(channel string, event Envelope) {
	members := h.subscriptions[channel]
	if len(members) == 0 {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("❌ Failed to marshal broadcast message: %v", err)
		return
	}

	for client := range members {
		select {
		case client.send <- data:
		default:
			// Client buffer full, disconnect
			h.dropClient(client)
			log.Printf("⚠️ Client buffer full, disconnecting: %s", client.ID)
		}
	}
}

func (h *Hub) send(client *Client, event Envelope) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("❌ Failed to marshal message: %v", err)
		return
	}
	select {
	case client.send <- data:
	default:
		h.dropClient(client)
		log.Printf("⚠️ Client buffer full, disconnecting: %s", client.ID)
	}
}
