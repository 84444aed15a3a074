// Package transport carries match traffic between the two peers once the
// lobby handoff produced a relay credential. The host serves a websocket
// endpoint authenticated by the join code; the joiner dials it.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	server "garden-siege/server"
	"garden-siege/server/lobby"
	"garden-siege/server/logging"
)

const (
	heartbeatInterval = 2 * time.Second
	readDeadline      = 3 * heartbeatInterval
)

var ErrBadCredential = errors.New("transport: join code mismatch")

// clientMessage is the envelope every peer-to-host frame uses. Command frames
// reuse the simulation command types directly.
type clientMessage struct {
	Type   string `json:"type"`
	Kind   string `json:"kind,omitempty"`
	Row    int    `json:"row,omitempty"`
	Col    int    `json:"col,omitempty"`
	Lane   int    `json:"lane,omitempty"`
	SentAt int64  `json:"sentAt,omitempty"`
}

type heartbeatAck struct {
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
	ClientTime int64  `json:"clientTime"`
}

// Host owns the listening side of a match. One instance per match.
type Host struct {
	hub        *server.Hub
	credential lobby.Credential
	publisher  logging.Publisher
	httpServer *http.Server
	listener   net.Listener
}

func NewHost(hub *server.Hub, credential lobby.Credential, publisher logging.Publisher) *Host {
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	return &Host{hub: hub, credential: credential, publisher: publisher}
}

// Start binds the credential's address and serves the websocket endpoint
// until Shutdown. It returns once the listener is accepting so callers can
// publish the credential knowing the endpoint is live.
func (h *Host) Start() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		role := lobby.Role(r.URL.Query().Get("role"))
		if !role.Valid() {
			http.Error(w, "missing or invalid role", http.StatusBadRequest)
			return
		}
		if r.URL.Query().Get("code") != h.credential.JoinCode {
			http.Error(w, "join code mismatch", http.StatusForbidden)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.publishError("upgrade failed", role, err)
			return
		}

		h.hub.Subscribe(role, conn)
		h.hub.MarkConnected(role)
		h.readLoop(role, conn)
	})

	addr := net.JoinHostPort(h.credential.Address, fmt.Sprintf("%d", h.credential.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("transport: listen on %s: %w", addr, err)
	}

	h.listener = listener
	h.httpServer = &http.Server{Handler: mux}
	go func() {
		if serveErr := h.httpServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			h.publishError("serve stopped", lobby.RoleNone, serveErr)
		}
	}()
	return nil
}

// Addr reports the bound listen address. Useful when the credential asked
// for port zero.
func (h *Host) Addr() net.Addr {
	if h.listener == nil {
		return nil
	}
	return h.listener.Addr()
}

func (h *Host) Shutdown(ctx context.Context) error {
	if h.httpServer == nil {
		return nil
	}
	return h.httpServer.Shutdown(ctx)
}

// readLoop pumps frames from one peer into the hub until the connection
// drops. A dropped peer forfeits the match via the hub.
func (h *Host) readLoop(role lobby.Role, conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(readDeadline))
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			h.hub.Disconnect(role)
			return
		}
		conn.SetReadDeadline(time.Now().Add(readDeadline))

		var msg clientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.publishError("discarding malformed frame", role, err)
			continue
		}

		switch server.CommandType(msg.Type) {
		case server.CommandPlacePlant, server.CommandSpawnZombie, server.CommandConcede:
			h.hub.Enqueue(role, server.Command{
				Type: server.CommandType(msg.Type),
				Kind: msg.Kind,
				Row:  msg.Row,
				Col:  msg.Col,
				Lane: msg.Lane,
			})
		default:
			if msg.Type == "heartbeat" {
				ack := heartbeatAck{Type: "heartbeat", ServerTime: time.Now().UnixMilli(), ClientTime: msg.SentAt}
				data, marshalErr := json.Marshal(ack)
				if marshalErr != nil {
					continue
				}
				// The hub owns all writes to the connection; writing the
				// ack here would race the broadcast path.
				if !h.hub.Send(role, data) {
					h.hub.Disconnect(role)
					return
				}
				continue
			}
			h.publishError("unknown frame type "+msg.Type, role, nil)
		}
	}
}

func (h *Host) publishError(message string, role lobby.Role, err error) {
	extra := map[string]any{"message": message}
	if err != nil {
		extra["error"] = err.Error()
	}
	severity := logging.SeverityWarn
	if err != nil {
		severity = logging.SeverityError
	}
	h.publisher.Publish(context.Background(), logging.Event{
		Type:     logging.EventType("transport"),
		Severity: severity,
		Category: logging.CategorySystem,
		Actor:    logging.EntityRef{ID: string(role), Kind: logging.EntityKindParticipant},
		Extra:    extra,
	})
}

// Connect dials the host's websocket endpoint using a retrieved credential.
// The caller owns the returned connection.
func Connect(ctx context.Context, credential lobby.Credential, role lobby.Role) (*websocket.Conn, error) {
	if credential.Empty() {
		return nil, ErrBadCredential
	}
	endpoint := url.URL{
		Scheme:   "ws",
		Host:     net.JoinHostPort(credential.Address, fmt.Sprintf("%d", credential.Port)),
		Path:     "/ws",
		RawQuery: url.Values{"role": {string(role)}, "code": {credential.JoinCode}}.Encode(),
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint.String(), nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusForbidden {
			return nil, ErrBadCredential
		}
		return nil, fmt.Errorf("transport: dial %s: %w", endpoint.Host, err)
	}
	return conn, nil
}
