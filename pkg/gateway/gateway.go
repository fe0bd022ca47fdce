// Package gateway is the realtime transport: one WebSocket per client, a
// read loop dispatching requests to the game engine, and room-scoped
// broadcast of server events. It owns no domain logic.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/temcrew/temserver/pkg/game"
	"github.com/temcrew/temserver/pkg/models"
	"github.com/temcrew/temserver/pkg/room"
	"github.com/temcrew/temserver/pkg/tts"
)

// Envelope is the client→server message frame.
type Envelope struct {
	Type    string          `json:"type"`
	Room    string          `json:"room"`
	Payload json.RawMessage `json:"payload"`
}

// Frame is the server→client message frame.
type Frame struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Gateway manages WebSocket connections and room membership. It implements
// the Broadcaster interfaces of the game engine, the simulation loop, and
// the TTS fan-out.
type Gateway struct {
	engine *game.Engine
	store  *room.Store
	tts    *tts.Fanout

	// Active connections: connection_id → *connection
	connections map[string]*connection
	mu          sync.RWMutex

	// Room membership: room → set of connection_ids
	rooms  map[string]map[string]bool
	roomMu sync.RWMutex

	// Write timeout for WebSocket sends
	writeTimeout time.Duration

	// ObserveMessage, when set, counts dispatched client messages by type.
	ObserveMessage func(msgType string)
}

// connection is a single WebSocket client.
//
// The joined-room fields (roomID, username, role) are accessed without a
// lock: all reads and writes happen on the goroutine that owns this
// connection (HandleConnection's read loop and its deferred cleanup).
type connection struct {
	id     string
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc

	roomID   string
	username string
	role     models.Role
}

// New creates the gateway. ttsPool may be nil (speech disabled).
func New(engine *game.Engine, store *room.Store, ttsPool *tts.Fanout, writeTimeout time.Duration) *Gateway {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &Gateway{
		engine:       engine,
		store:        store,
		tts:          ttsPool,
		connections:  make(map[string]*connection),
		rooms:        make(map[string]map[string]bool),
		writeTimeout: writeTimeout,
	}
}

// SetTTS wires the synthesis pool. Called once at startup, after the pool
// is built with this gateway as its broadcaster.
func (g *Gateway) SetTTS(pool *tts.Fanout) {
	g.tts = pool
}

// Handler returns the gin handler that upgrades to WebSocket and runs the
// connection until it closes.
func (g *Gateway) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
			// Training sessions run on trusted networks; origin checks are
			// left to the deployment's reverse proxy.
			InsecureSkipVerify: true,
		})
		if err != nil {
			slog.Warn("WebSocket upgrade failed", "error", err)
			return
		}
		g.HandleConnection(c.Request.Context(), conn)
	}
}

// HandleConnection manages the lifecycle of a single WebSocket connection.
// Blocks until the connection closes.
func (g *Gateway) HandleConnection(parentCtx context.Context, conn *websocket.Conn) {
	connID := uuid.New().String()
	ctx, cancel := context.WithCancel(parentCtx)

	c := &connection{
		id:     connID,
		conn:   conn,
		ctx:    ctx,
		cancel: cancel,
	}

	g.registerConnection(c)
	defer g.unregisterConnection(c)

	g.sendJSON(c, Frame{Type: "connection_established", Payload: map[string]string{
		"connection_id": connID,
	}})

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			// Connection closed or errored; the deferred cleanup seats the
			// departure through the engine.
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			slog.Warn("Invalid WebSocket message", "connection_id", connID, "error", err)
			continue
		}
		g.dispatch(ctx, c, &env)
	}
}

// Broadcast sends an event to every connection in the room.
func (g *Gateway) Broadcast(roomID, event string, payload any) {
	g.roomMu.RLock()
	members, exists := g.rooms[roomID]
	if !exists {
		g.roomMu.RUnlock()
		return
	}
	ids := make([]string, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	g.roomMu.RUnlock()

	// Snapshot connection pointers under the lock, then release before
	// sending so a slow write never stalls register/unregister.
	g.mu.RLock()
	conns := make([]*connection, 0, len(ids))
	for _, id := range ids {
		if c, ok := g.connections[id]; ok {
			conns = append(conns, c)
		}
	}
	g.mu.RUnlock()

	for _, c := range conns {
		g.sendJSON(c, Frame{Type: event, Payload: payload})
	}
}

// SendToUser sends an event to one client session. Sessions held by AI
// seats have no connection; the send is a no-op.
func (g *Gateway) SendToUser(roomID, session, event string, payload any) {
	g.mu.RLock()
	c, ok := g.connections[session]
	g.mu.RUnlock()
	if !ok {
		return
	}
	g.sendJSON(c, Frame{Type: event, Payload: payload})
}

// ActiveConnections returns the count of active WebSocket connections.
func (g *Gateway) ActiveConnections() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.connections)
}

func (g *Gateway) registerConnection(c *connection) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.connections[c.id] = c
}

func (g *Gateway) unregisterConnection(c *connection) {
	g.leaveRoom(context.Background(), c)

	g.mu.Lock()
	delete(g.connections, c.id)
	g.mu.Unlock()

	c.cancel()
	_ = c.conn.Close(websocket.StatusNormalClosure, "")
}

// joinRoom adds the connection to the membership map before the engine
// seats it, so the joiner receives the join broadcasts.
func (g *Gateway) joinRoom(c *connection, roomID string) {
	g.roomMu.Lock()
	defer g.roomMu.Unlock()
	if _, ok := g.rooms[roomID]; !ok {
		g.rooms[roomID] = make(map[string]bool)
	}
	g.rooms[roomID][c.id] = true
}

// leaveRoom seats the departure through the engine and tears the room down
// when the last human leaves.
func (g *Gateway) leaveRoom(ctx context.Context, c *connection) {
	if c.roomID == "" {
		return
	}
	roomID := c.roomID
	c.roomID = ""

	g.roomMu.Lock()
	if members, ok := g.rooms[roomID]; ok {
		delete(members, c.id)
		if len(members) == 0 {
			delete(g.rooms, roomID)
		}
	}
	g.roomMu.Unlock()

	empty, err := g.engine.Leave(ctx, roomID, c.id)
	if err != nil {
		slog.Debug("Leave failed", "room", roomID, "connection_id", c.id, "error", err)
		return
	}
	if empty {
		g.store.Remove(roomID)
	}
}

// dropMembership undoes joinRoom after a failed join.
func (g *Gateway) dropMembership(c *connection, roomID string) {
	g.roomMu.Lock()
	defer g.roomMu.Unlock()
	if members, ok := g.rooms[roomID]; ok {
		delete(members, c.id)
		if len(members) == 0 {
			delete(g.rooms, roomID)
		}
	}
}

func (g *Gateway) sendJSON(c *connection, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("Failed to marshal WebSocket message", "connection_id", c.id, "error", err)
		return
	}
	writeCtx, cancel := context.WithTimeout(c.ctx, g.writeTimeout)
	defer cancel()
	if err := c.conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		slog.Warn("Failed to send WebSocket message", "connection_id", c.id, "error", err)
	}
}
