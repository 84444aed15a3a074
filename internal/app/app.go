// Package app wires one peer process end to end: rendezvous search, relay
// handoff, then either hosting the authoritative match or mirroring it.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	server "garden-siege/server"
	"garden-siege/server/lobby"
	"garden-siege/server/logging"
	"garden-siege/server/logging/sinks"
	"garden-siege/server/transport"
)

const heartbeatInterval = 2 * time.Second

// App is one peer process. Exactly one of the two matched peers ends up
// hosting the simulation; the other mirrors the event stream.
type App struct {
	cfg    Config
	router *logging.Router
	self   lobby.Participant
}

func New(cfg Config) *App {
	router := logging.NewRouter(
		logging.Config{
			BufferSize:      512,
			MinimumSeverity: cfg.LogSeverity,
		},
		nil, nil,
		sinks.NewConsoleSink(os.Stderr),
	)
	return &App{
		cfg:    cfg,
		router: router,
		self: lobby.Participant{
			ID:          uuid.NewString(),
			DisplayName: cfg.DisplayName,
			Role:        cfg.Role,
		},
	}
}

// Run blocks until the match ends or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = a.router.Close(closeCtx)
	}()

	service, relay := a.backends()

	rendezvous := lobby.NewRendezvous(lobby.Config{
		Service:   service,
		Publisher: a.router,
		Self:      a.self,
	})
	if err := rendezvous.SelectRole(a.cfg.Role); err != nil {
		return err
	}
	match, err := rendezvous.Search(ctx)
	if err != nil {
		return fmt.Errorf("app: rendezvous: %w", err)
	}

	handoff := lobby.NewHandoff(lobby.HandoffConfig{
		Service:   service,
		Relay:     relay,
		Publisher: a.router,
		Self:      a.self,
	})
	if err := handoff.MarkSceneReady(ctx, match.Session.ID); err != nil {
		return fmt.Errorf("app: mark scene ready: %w", err)
	}

	if match.IsHost {
		return a.runHost(ctx, handoff, match)
	}
	return a.runJoiner(ctx, handoff, match)
}

// backends returns the remote service/relay pair, or embedded in-memory ones
// when no rendezvous URL is configured (local play and tests).
func (a *App) backends() (lobby.Service, lobby.Relay) {
	if a.cfg.RendezvousURL == "" {
		return lobby.NewMemoryService(), lobby.NewMemoryRelay()
	}
	return lobby.NewHTTPService(a.cfg.RendezvousURL), lobby.NewHTTPRelay(a.cfg.RendezvousURL)
}

// runHost brings up the authoritative side: allocate, publish the join code,
// serve the transport, and drive the simulation until it finishes.
func (a *App) runHost(ctx context.Context, handoff *lobby.Handoff, match lobby.Match) error {
	credential, err := handoff.PublishAsHost(ctx, match.Session.ID)
	if err != nil {
		return fmt.Errorf("app: publish credential: %w", err)
	}

	hub := server.NewHub(server.WorldConfig{
		Seed:      a.cfg.Seed,
		TimeLimit: a.cfg.TimeLimit,
	}, a.router)
	host := transport.NewHost(hub, credential, a.router)
	if err := host.Start(); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = host.Shutdown(shutdownCtx)
	}()

	// The host is also a player: attach its own side in-process.
	hub.MarkConnected(match.Role)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		hub.RunSimulation(stop)
		close(done)
	}()

	select {
	case <-ctx.Done():
		close(stop)
		<-done
		return ctx.Err()
	case <-done:
	}

	if ended, winner, cause := hub.Ended(); ended {
		a.publishResult(winner, cause)
	}
	return nil
}

// runJoiner retrieves the credential by bounded retry, dials the host, and
// mirrors the event stream until the match ends or the connection drops.
func (a *App) runJoiner(ctx context.Context, handoff *lobby.Handoff, match lobby.Match) error {
	credential, err := handoff.RetrieveAsJoiner(ctx, match.Session.ID)
	if err != nil {
		return fmt.Errorf("app: retrieve credential: %w", err)
	}

	conn, err := transport.Connect(ctx, credential, match.Role)
	if err != nil {
		return err
	}
	defer conn.Close()

	heartbeats := time.NewTicker(heartbeatInterval)
	defer heartbeats.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeats.C:
				beat, _ := json.Marshal(map[string]any{
					"type":   "heartbeat",
					"sentAt": time.Now().UnixMilli(),
				})
				if writeErr := conn.WriteMessage(websocket.TextMessage, beat); writeErr != nil {
					return
				}
			}
		}
	}()

	for {
		_, payload, readErr := conn.ReadMessage()
		if readErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("app: host connection lost: %w", readErr)
		}
		var batch struct {
			Type   string         `json:"type"`
			Events []server.Event `json:"events"`
		}
		if unmarshalErr := json.Unmarshal(payload, &batch); unmarshalErr != nil {
			continue
		}
		for _, event := range batch.Events {
			if event.Type == server.EventGameEnded && event.Outcome != nil {
				a.publishResult(lobby.Role(event.Outcome.Winner), event.Outcome.Cause)
				return nil
			}
		}
	}
}

func (a *App) publishResult(winner lobby.Role, cause string) {
	a.router.Publish(context.Background(), logging.Event{
		Type:     logging.EventType("app.match_result"),
		Severity: logging.SeverityInfo,
		Category: logging.CategorySystem,
		Actor:    logging.EntityRef{ID: a.self.ID, Kind: logging.EntityKindParticipant},
		Extra:    map[string]any{"winner": string(winner), "cause": cause},
	})
}
