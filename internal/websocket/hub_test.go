package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"swiftparcel-backend/internal/cache"
	"swiftparcel-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub() (*Hub, *cache.LocationCache) {
	locationCache := cache.NewLocationCache()
	hub := NewHub(locationCache)
	go hub.Run()
	return hub, locationCache
}

func newTestClient(hub *Hub, id, role, driverID string) *Client {
	return &Client{
		ID:       id,
		Name:     "Test " + id,
		Role:     role,
		DriverID: driverID,
		hub:      hub,
		send:     make(chan []byte, 64),
	}
}

// recv waits for the next frame delivered to the client.
func recv(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case raw, ok := <-c.send:
		require.True(t, ok, "send channel closed unexpectedly")
		var env Envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a frame")
		return Envelope{}
	}
}

func assertNoFrame(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.send:
		t.Fatalf("unexpected frame: %s", raw)
	case <-time.After(150 * time.Millisecond):
	}
}

func sendLocation(hub *Hub, c *Client, payload LocationPayload) {
	raw, _ := json.Marshal(payload)
	hub.location <- locationUpdate{client: c, payload: payload, raw: raw}
}

// settle gives the hub loop time to drain its buffered channels before the
// next step depends on their effects.
func settle() {
	time.Sleep(100 * time.Millisecond)
}

func TestDashboardJoinReceivesSnapshot(t *testing.T) {
	hub, locationCache := newTestHub()

	driver := newTestClient(hub, "conn-d1", models.RoleDriver, "d1")
	hub.register <- driver

	sendLocation(hub, driver, LocationPayload{DriverID: "d1", Latitude: 1, Longitude: 1, Timestamp: 100})
	sendLocation(hub, driver, LocationPayload{DriverID: "d2", Latitude: 3, Longitude: 4, Timestamp: 110})
	// latest update for d1 must win
	sendLocation(hub, driver, LocationPayload{DriverID: "d1", Latitude: 2, Longitude: 2, Timestamp: 120})

	require.Eventually(t, func() bool {
		pos, ok := locationCache.Get("d1")
		return ok && pos.Timestamp == 120 && locationCache.Len() == 2
	}, 2*time.Second, 10*time.Millisecond)

	dashboard := newTestClient(hub, "conn-dash", models.RoleAdmin, "")
	hub.register <- dashboard
	hub.joinDashboard <- dashboard

	env := recv(t, dashboard)
	require.Equal(t, EventAllDriverPositions, env.Type)

	raw, err := json.Marshal(env.Data)
	require.NoError(t, err)
	var positions []models.DriverPosition
	require.NoError(t, json.Unmarshal(raw, &positions))
	require.Len(t, positions, 2)

	byID := make(map[string]models.DriverPosition)
	for _, pos := range positions {
		byID[pos.DriverID] = pos
	}
	assert.Equal(t, 2.0, byID["d1"].Latitude)
	assert.Equal(t, int64(120), byID["d1"].Timestamp)
	assert.True(t, byID["d1"].Online)
	assert.Equal(t, 3.0, byID["d2"].Latitude)
}

func TestTrackingChannelScoping(t *testing.T) {
	hub, _ := newTestHub()

	driver := newTestClient(hub, "conn-d1", models.RoleDriver, "d1")
	hub.register <- driver

	viewer := newTestClient(hub, "conn-v1", "viewer", "")
	hub.register <- viewer
	hub.subscribe <- subscription{client: viewer, channel: TrackingChannel("AWB-1")}
	settle()

	// scoped to a different tracking id: the viewer must not see it
	sendLocation(hub, driver, LocationPayload{DriverID: "d1", Latitude: 9, TrackingID: "AWB-2"})
	assertNoFrame(t, viewer)

	sendLocation(hub, driver, LocationPayload{DriverID: "d1", Latitude: 5, TrackingID: "AWB-1"})
	env := recv(t, viewer)
	assert.Equal(t, EventDriverLocationUpdate, env.Type)

	raw, err := json.Marshal(env.Data)
	require.NoError(t, err)
	var payload LocationPayload
	require.NoError(t, json.Unmarshal(raw, &payload))
	assert.Equal(t, 5.0, payload.Latitude)
	assert.Equal(t, "AWB-1", payload.TrackingID)
}

func TestDashboardAndGlobalReceiveDuplicates(t *testing.T) {
	hub, _ := newTestHub()

	driver := newTestClient(hub, "conn-d1", models.RoleDriver, "d1")
	hub.register <- driver

	watcher := newTestClient(hub, "conn-w1", models.RoleAdmin, "")
	hub.register <- watcher
	hub.joinDashboard <- watcher
	hub.subscribe <- subscription{client: watcher, channel: ChannelGlobal}
	settle()

	// consume the dashboard snapshot
	env := recv(t, watcher)
	require.Equal(t, EventAllDriverPositions, env.Type)

	sendLocation(hub, driver, LocationPayload{DriverID: "d1", Latitude: 7})

	// one copy via the dashboard group, one via the global channel
	first := recv(t, watcher)
	second := recv(t, watcher)
	assert.Equal(t, EventLocationUpdate, first.Type)
	assert.Equal(t, EventLocationUpdate, second.Type)
	assertNoFrame(t, watcher)
}

func TestDriverChannelReceivesOwnUpdates(t *testing.T) {
	hub, _ := newTestHub()

	driver := newTestClient(hub, "conn-d1", models.RoleDriver, "d1")
	hub.register <- driver

	dispatcher := newTestClient(hub, "conn-disp", models.RoleAdmin, "")
	hub.register <- dispatcher
	hub.subscribe <- subscription{client: dispatcher, channel: DriverChannel("d1")}
	settle()

	sendLocation(hub, driver, LocationPayload{DriverID: "d1", Latitude: 7})

	env := recv(t, dispatcher)
	assert.Equal(t, EventLocationUpdate, env.Type)

	// the driver's own connection was auto-joined to its channel on register
	env = recv(t, driver)
	assert.Equal(t, EventLocationUpdate, env.Type)
}

func TestLocationWithoutDriverIDSkipsCacheButFansOut(t *testing.T) {
	hub, locationCache := newTestHub()

	driver := newTestClient(hub, "conn-d1", models.RoleDriver, "")
	hub.register <- driver

	viewer := newTestClient(hub, "conn-v1", "viewer", "")
	hub.register <- viewer
	hub.subscribe <- subscription{client: viewer, channel: TrackingChannel("AWB-1")}
	settle()

	sendLocation(hub, driver, LocationPayload{Latitude: 4, TrackingID: "AWB-1"})

	env := recv(t, viewer)
	assert.Equal(t, EventDriverLocationUpdate, env.Type)
	assert.Equal(t, 0, locationCache.Len())
}

func TestDisconnectMarksDriverOffline(t *testing.T) {
	hub, locationCache := newTestHub()

	driver := newTestClient(hub, "conn-d1", models.RoleDriver, "d1")
	hub.register <- driver
	sendLocation(hub, driver, LocationPayload{DriverID: "d1", Latitude: 6, Timestamp: 100})

	require.Eventually(t, func() bool {
		pos, ok := locationCache.Get("d1")
		return ok && pos.Online
	}, 2*time.Second, 10*time.Millisecond)

	hub.unregister <- driver

	require.Eventually(t, func() bool {
		pos, ok := locationCache.Get("d1")
		return ok && !pos.Online
	}, 2*time.Second, 10*time.Millisecond)

	// last known position is retained for the dashboard
	pos, _ := locationCache.Get("d1")
	assert.Equal(t, 6.0, pos.Latitude)
}

func TestPingRepliesWithPong(t *testing.T) {
	hub, _ := newTestHub()

	client := newTestClient(hub, "conn-v1", "viewer", "")
	hub.register <- client

	client.handleMessage(IncomingMessage{Type: "ping"})

	env := recv(t, client)
	assert.Equal(t, "pong", env.Type)
}

func TestPingAfterBufferDropDoesNotPanic(t *testing.T) {
	hub, _ := newTestHub()

	driver := newTestClient(hub, "conn-d1", models.RoleDriver, "d1")
	hub.register <- driver

	slow := newTestClient(hub, "conn-slow", "viewer", "")
	slow.send = make(chan []byte, 1)
	hub.register <- slow
	hub.subscribe <- subscription{client: slow, channel: ChannelGlobal}
	settle()

	// fill the buffer so the next broadcast drops the client
	slow.send <- []byte("stuck")
	sendLocation(hub, driver, LocationPayload{DriverID: "d1", Latitude: 1})
	settle()

	// the connection's reader may still be dispatching frames after the
	// drop; the hub must absorb them instead of writing to a closed channel
	slow.handleMessage(IncomingMessage{Type: "ping"})
	settle()

	<-slow.send // the stuck frame
	_, open := <-slow.send
	assert.False(t, open, "send channel should be closed after the drop")
}

func TestViewerCannotJoinDashboard(t *testing.T) {
	hub, locationCache := newTestHub()
	locationCache.Upsert(models.DriverPosition{DriverID: "d1", Latitude: 1, ConnectionID: "conn-d1"})

	viewer := newTestClient(hub, "conn-v1", "viewer", "")
	hub.register <- viewer

	viewer.handleMessage(IncomingMessage{Type: "join_dashboard"})
	assertNoFrame(t, viewer)

	// same message from an admin connection gets the snapshot
	admin := newTestClient(hub, "conn-a1", models.RoleAdmin, "")
	hub.register <- admin
	admin.handleMessage(IncomingMessage{Type: "join_dashboard"})
	env := recv(t, admin)
	assert.Equal(t, EventAllDriverPositions, env.Type)
}

func TestJoinDriverRoleGate(t *testing.T) {
	hub, _ := newTestHub()

	driver := newTestClient(hub, "conn-d1", models.RoleDriver, "d1")
	hub.register <- driver

	// a viewer cannot follow a driver's channel
	viewer := newTestClient(hub, "conn-v1", "viewer", "")
	hub.register <- viewer
	viewer.handleMessage(IncomingMessage{Type: "join_driver", Data: json.RawMessage(`{"driverId":"d1"}`)})

	// another driver cannot follow someone else's channel
	other := newTestClient(hub, "conn-d2", models.RoleDriver, "d2")
	hub.register <- other
	other.handleMessage(IncomingMessage{Type: "join_driver", Data: json.RawMessage(`{"driverId":"d1"}`)})

	// an admin can
	admin := newTestClient(hub, "conn-a1", models.RoleAdmin, "")
	hub.register <- admin
	admin.handleMessage(IncomingMessage{Type: "join_driver", Data: json.RawMessage(`{"driverId":"d1"}`)})
	settle()

	sendLocation(hub, driver, LocationPayload{DriverID: "d1", Latitude: 3})

	env := recv(t, admin)
	assert.Equal(t, EventLocationUpdate, env.Type)
	assertNoFrame(t, viewer)
	assertNoFrame(t, other)
}

func TestDriverStatusBroadcast(t *testing.T) {
	hub, _ := newTestHub()

	watcher := newTestClient(hub, "conn-w1", models.RoleAdmin, "")
	hub.register <- watcher
	hub.subscribe <- subscription{client: watcher, channel: ChannelGlobal}
	settle()

	raw := json.RawMessage(`{"driverId":"d1","status":"on_trip"}`)
	hub.driverStatus <- statusBroadcast{raw: raw}

	env := recv(t, watcher)
	require.Equal(t, EventDriverStatusUpdate, env.Type)

	data, err := json.Marshal(env.Data)
	require.NoError(t, err)
	assert.JSONEq(t, string(raw), string(data))
}
