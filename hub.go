package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"garden-siege/server/lobby"
	"garden-siege/server/logging"
	logginglifecycle "garden-siege/server/logging/lifecycle"
)

const (
	writeWait       = 5 * time.Second
	commandQueueCap = 64
)

// Hub owns the authoritative world and the two peer connections. Commands
// arrive from connection readers, get buffered, and drain inside the tick so
// the world is only ever touched from the simulation goroutine.
type Hub struct {
	mu          sync.Mutex
	world       *World
	subscribers map[lobby.Role]*subscriber
	commands    []Command
	connected   map[lobby.Role]bool
	publisher   logging.Publisher
	clock       func() time.Time
}

type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func NewHub(cfg WorldConfig, publisher logging.Publisher) *Hub {
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	return &Hub{
		world:       newWorld(cfg, publisher),
		subscribers: make(map[lobby.Role]*subscriber),
		commands:    make([]Command, 0, commandQueueCap),
		connected:   make(map[lobby.Role]bool),
		publisher:   publisher,
		clock:       time.Now,
	}
}

// SetClock swaps the time source. Test hook.
func (h *Hub) SetClock(clock func() time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clock != nil {
		h.clock = clock
	}
}

// Subscribe attaches a websocket connection to a side. A second connection
// for the same role replaces the first.
func (h *Hub) Subscribe(role lobby.Role, conn *websocket.Conn) {
	if !role.Valid() {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if existing, ok := h.subscribers[role]; ok {
		existing.conn.Close()
	}
	h.subscribers[role] = &subscriber{conn: conn}
}

// Send writes one frame to a single side. It takes the same per-subscriber
// write lock as the broadcast path, so connection readers can answer their
// peer without racing the tick loop on the shared connection.
func (h *Hub) Send(role lobby.Role, payload []byte) bool {
	h.mu.Lock()
	sub, ok := h.subscribers[role]
	h.mu.Unlock()
	if !ok {
		return false
	}
	sub.mu.Lock()
	defer sub.mu.Unlock()
	sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return sub.conn.WriteMessage(websocket.TextMessage, payload) == nil
}

// MarkConnected records that a side finished its handshake. The match clock
// does not start until both sides have.
func (h *Hub) MarkConnected(role lobby.Role) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !role.Valid() {
		return
	}
	h.connected[role] = true
	if h.connected[lobby.RolePlants] && h.connected[lobby.RoleZombies] && !h.world.started {
		h.world.start(h.clock())
		h.broadcastLocked(h.world.flushEvents())
	}
}

// Enqueue buffers a command for the next tick. The queue is bounded; commands
// past the cap are dropped and the drop is logged.
func (h *Hub) Enqueue(role lobby.Role, cmd Command) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.commands) >= commandQueueCap {
		h.publisher.Publish(context.Background(), logging.Event{
			Type:     logging.EventType("command_dropped"),
			Severity: logging.SeverityWarn,
			Category: logging.CategorySystem,
			Actor:    logging.EntityRef{Kind: logging.EntityKindParticipant},
			Extra:    map[string]any{"role": string(role), "commandType": string(cmd.Type)},
		})
		return false
	}
	cmd.Role = role
	h.commands = append(h.commands, cmd)
	return true
}

// Disconnect detaches a side. Losing a peer mid-match forfeits it.
func (h *Hub) Disconnect(role lobby.Role) {
	h.mu.Lock()
	sub, ok := h.subscribers[role]
	if ok {
		delete(h.subscribers, role)
	}
	delete(h.connected, role)
	forfeit := h.world.started && !h.world.ended
	if forfeit {
		h.world.finish(role.Complement(), "peer disconnected")
		logginglifecycle.PeerDisconnected(context.Background(), h.publisher,
			logging.EntityRef{ID: string(role), Kind: logging.EntityKindParticipant},
			logginglifecycle.OutcomePayload{Winner: string(role.Complement()), Reason: "peer disconnected"})
	}
	events := h.world.flushEvents()
	h.broadcastLocked(events)
	h.mu.Unlock()

	if ok {
		sub.conn.Close()
	}
}

// Ended reports whether the match finished, and the outcome when it did.
func (h *Hub) Ended() (bool, lobby.Role, string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.world.ended, h.world.winner, h.world.endCause
}

// advance drains the command buffer and runs one world step, returning the
// events queued during the tick.
func (h *Hub) advance(now time.Time, dt float64) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	pending := h.commands
	h.commands = make([]Command, 0, commandQueueCap)
	for _, cmd := range pending {
		h.world.applyCommand(cmd, now)
	}
	h.world.advance(now, dt)
	return h.world.flushEvents()
}

// RunSimulation drives the fixed-rate tick loop until the stop channel
// closes or the match ends.
func (h *Hub) RunSimulation(stop <-chan struct{}) {
	ticker := time.NewTicker(tickStep)
	defer ticker.Stop()

	last := h.clock()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			now := h.clock()
			dt := now.Sub(last).Seconds()
			if dt <= 0 {
				dt = 1.0 / float64(tickRate)
			}
			last = now

			events := h.advance(now, dt)
			h.mu.Lock()
			h.broadcastLocked(events)
			ended := h.world.ended
			h.mu.Unlock()
			if ended {
				return
			}
		}
	}
}

// Step runs a single tick synchronously. Test hook; RunSimulation is the
// production path.
func (h *Hub) Step(now time.Time, dt float64) []Event {
	return h.advance(now, dt)
}

type eventsMessage struct {
	Type       string  `json:"type"`
	Tick       uint64  `json:"t"`
	ServerTime int64   `json:"serverTime"`
	Events     []Event `json:"events"`
}

// broadcastLocked marshals the batch once and writes it to both sides.
// Callers hold h.mu; per-subscriber write locks serialize with any direct
// writers on the same connection.
func (h *Hub) broadcastLocked(events []Event) {
	if len(events) == 0 {
		return
	}
	msg := eventsMessage{
		Type:       "events",
		Tick:       h.world.currentTick,
		ServerTime: h.clock().UnixMilli(),
		Events:     events,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.publisher.Publish(context.Background(), logging.Event{
			Type:     logging.EventType("broadcast_failed"),
			Severity: logging.SeverityError,
			Category: logging.CategorySystem,
			Actor:    logging.EntityRef{Kind: logging.EntityKindWorld},
			Extra:    map[string]any{"error": err.Error()},
		})
		return
	}
	for role, sub := range h.subscribers {
		sub.mu.Lock()
		sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
		writeErr := sub.conn.WriteMessage(websocket.TextMessage, data)
		sub.mu.Unlock()
		if writeErr != nil {
			h.publisher.Publish(context.Background(), logging.Event{
				Type:     logging.EventType("broadcast_failed"),
				Severity: logging.SeverityWarn,
				Category: logging.CategorySystem,
				Actor:    logging.EntityRef{ID: string(role), Kind: logging.EntityKindParticipant},
				Extra:    map[string]any{"error": writeErr.Error()},
			})
		}
	}
}
