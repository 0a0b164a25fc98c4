// Package session holds the live debate-session state: which delegations are
// connected to which room, and the per-thread speaker queues. The registry is
// created once at process start and injected into handlers; all state is
// process-local, with broadcasts mirrored to Redis for any sibling instances.
package session

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/concord-assembly/concord/src/api/data"
)

const (
	// DefaultRoomID hosts connections that did not name a debate session.
	DefaultRoomID = "presence"

	HeartbeatInterval = 5 * time.Second
	HeartbeatTimeout  = 15 * time.Second

	// close code sent when a connection misses its heartbeats
	closeHeartbeatTimeout = 4000

	// A debate session with fewer than this many distinct delegations present
	// reports motions as suspended.
	minPresentForMotions = 3
)

// Conn is the part of a websocket connection the registry drives. Production
// code hands in *websocket.Conn; tests hand in a mock.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Connection is one live socket inside a room. A connection is anonymous
// until its first heartbeat announces a country.
type Connection struct {
	ID     string
	RoomID string

	conn          Conn
	countryID     string
	lastHeartbeat time.Time
	closed        bool // cleanup ran already
}

// CountryID returns the delegation bound to this connection, if any.
func (c *Connection) CountryID() string { return c.countryID }

// Event is the wire envelope for both directions.
type Event struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type presencePayload struct {
	PresentCountries []string `json:"presentCountries"`
	PresentCount     int      `json:"presentCount"`
	Quorum           int      `json:"quorum"`
	MotionsSuspended bool     `json:"motionsSuspended"`
}

// Registry tracks rooms and speaker queues. A single mutex covers every
// mutation so no observer can see a half-applied change.
type Registry struct {
	mu     sync.Mutex
	rooms  map[string]map[string]*Connection
	queues map[string]*queueState
	rdb    *redis.Client // optional cross-instance fan-out
}

func NewRegistry(rdb *redis.Client) *Registry {
	return &Registry{
		rooms:  make(map[string]map[string]*Connection),
		queues: make(map[string]*queueState),
		rdb:    rdb,
	}
}

// ResolveRoomID maps a client-supplied room id onto the default room when
// blank.
func ResolveRoomID(roomID string) string {
	if roomID == "" {
		return DefaultRoomID
	}
	return roomID
}

// Connect registers a new connection under a room, creating the room on
// first use.
func (r *Registry) Connect(roomID string, conn Conn) *Connection {
	roomID = ResolveRoomID(roomID)

	c := &Connection{
		ID:            uuid.NewString(),
		RoomID:        roomID,
		conn:          conn,
		lastHeartbeat: time.Now(),
	}

	r.mu.Lock()
	room := r.rooms[roomID]
	if room == nil {
		room = make(map[string]*Connection)
		r.rooms[roomID] = room
	}
	room[c.ID] = c
	r.broadcastPresenceLocked(roomID)
	r.mu.Unlock()

	return c
}

// Heartbeat touches a connection's liveness and, on the first heartbeat that
// carries one, binds the connection to a country. Any identity change is
// rebroadcast to the room.
func (r *Registry) Heartbeat(c *Connection, countryID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.closed {
		return
	}

	c.lastHeartbeat = time.Now()
	if countryID != "" {
		c.countryID = countryID
	}

	r.broadcastPresenceLocked(c.RoomID)
}

// Disconnect removes a connection from its room and tears the room down when
// it empties. Safe to call from every cleanup path; only the first call does
// anything.
func (r *Registry) Disconnect(c *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnectLocked(c)
}

func (r *Registry) disconnectLocked(c *Connection) {
	if c.closed {
		return
	}
	c.closed = true
	_ = c.conn.Close()

	room := r.rooms[c.RoomID]
	if room == nil {
		return
	}
	delete(room, c.ID)
	if len(room) == 0 {
		delete(r.rooms, c.RoomID)
		return
	}
	r.broadcastPresenceLocked(c.RoomID)
}

// Run sweeps for dead connections until the context ends.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweepOnce(time.Now())
		}
	}
}

// sweepOnce force-disconnects every connection whose last heartbeat is older
// than the timeout.
func (r *Registry) sweepOnce(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var stale []*Connection
	for _, room := range r.rooms {
		for _, c := range room {
			if now.Sub(c.lastHeartbeat) > HeartbeatTimeout {
				stale = append(stale, c)
			}
		}
	}

	for _, c := range stale {
		if wc, ok := c.conn.(*websocket.Conn); ok {
			deadline := time.Now().Add(time.Second)
			_ = wc.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(closeHeartbeatTimeout, "Heartbeat timeout"), deadline)
		}
		r.disconnectLocked(c)
	}
}

// PresentCountries returns the de-duplicated set of delegations with at
// least one live connection in the room, sorted for stable output.
func (r *Registry) PresentCountries(roomID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.presentCountriesLocked(roomID)
}

func (r *Registry) presentCountriesLocked(roomID string) []string {
	room := r.rooms[roomID]
	if room == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, c := range room {
		if c.countryID != "" && !seen[c.countryID] {
			seen[c.countryID] = true
			out = append(out, c.countryID)
		}
	}
	sort.Strings(out)
	return out
}

// RoomCount reports the number of live rooms.
func (r *Registry) RoomCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

func (r *Registry) broadcastPresenceLocked(roomID string) {
	present := r.presentCountriesLocked(roomID)
	if present == nil {
		present = []string{}
	}
	n := len(present)
	r.broadcastLocked(roomID, "presence:update", presencePayload{
		PresentCountries: present,
		PresentCount:     n,
		Quorum:           n,
		MotionsSuspended: n < minPresentForMotions,
	})
}

// broadcastLocked pushes an event to every connection in the room and
// mirrors it onto the room's Redis channel. Write failures are left to the
// connection's own read loop to clean up.
func (r *Registry) broadcastLocked(roomID, event string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("session: marshal %s: %v", event, err)
		return
	}
	msg, err := json.Marshal(Event{Event: event, Payload: raw})
	if err != nil {
		log.Printf("session: marshal envelope: %v", err)
		return
	}

	for _, c := range r.rooms[roomID] {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Printf("session: write %s to %s: %v", event, c.ID, err)
		}
	}

	if r.rdb != nil {
		go func() {
			if err := data.PublishRoom(context.Background(), r.rdb, roomID, msg); err != nil {
				log.Printf("session: publish room %s: %v", roomID, err)
			}
		}()
	}
}

// HandleEvent routes one inbound frame from a connection. Malformed frames
// and unknown events are dropped; this is the best-effort channel, not an
// RPC surface.
func (r *Registry) HandleEvent(c *Connection, raw []byte) {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return
	}

	var payload struct {
		CountryID string `json:"countryId"`
		ThreadID  string `json:"threadId"`
	}
	if len(ev.Payload) > 0 {
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			return
		}
	}

	switch ev.Event {
	case "presence:heartbeat":
		r.Heartbeat(c, payload.CountryID)
	case "queue:request":
		threadID := r.resolveThreadID(c, payload.ThreadID)
		countryID := r.resolveCountryID(c, payload.CountryID)
		if threadID == "" || countryID == "" {
			return
		}
		r.QueueRequest(threadID, countryID)
	case "queue:recognize":
		threadID := r.resolveThreadID(c, payload.ThreadID)
		if threadID == "" {
			return
		}
		r.QueueRecognize(threadID, r.resolveCountryID(c, payload.CountryID))
	case "queue:skip":
		threadID := r.resolveThreadID(c, payload.ThreadID)
		if threadID == "" {
			return
		}
		r.QueueSkip(threadID, r.resolveCountryID(c, payload.CountryID))
	}
}

// resolveThreadID prefers an explicit thread id, then the connection's room
// when it names a real session (the default room is not a thread).
func (r *Registry) resolveThreadID(c *Connection, threadID string) string {
	if threadID != "" {
		return threadID
	}
	if c.RoomID != DefaultRoomID {
		return c.RoomID
	}
	return ""
}

func (r *Registry) resolveCountryID(c *Connection, countryID string) string {
	if countryID != "" {
		return countryID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return c.countryID
}
