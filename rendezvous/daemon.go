// Package rendezvous is the hosted half of the lobby flow: a small HTTP
// daemon that stores shared session records and brokers relay join codes.
// Clients talk to it through lobby.HTTPService and lobby.HTTPRelay.
package rendezvous

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"garden-siege/server/lobby"
	"garden-siege/server/logging"
)

const sweepInterval = 10 * time.Second

// Config tunes one daemon instance. Zero values fall back to defaults that
// suit a single hosted instance.
type Config struct {
	Service   lobby.Service
	Relay     lobby.Relay
	Publisher logging.Publisher

	// RequestsPerMinute caps each client IP before the daemon answers 429.
	RequestsPerMinute int
}

// Daemon serves the /v1 session and relay contract.
type Daemon struct {
	app       *fiber.App
	service   lobby.Service
	relay     lobby.Relay
	publisher logging.Publisher
	scheduler gocron.Scheduler
	sweeper   interface{ Sweep() }
}

func New(cfg Config) (*Daemon, error) {
	service := cfg.Service
	if service == nil {
		service = lobby.NewMemoryService()
	}
	relay := cfg.Relay
	if relay == nil {
		relay = lobby.NewMemoryRelay()
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	perMinute := cfg.RequestsPerMinute
	if perMinute <= 0 {
		perMinute = 120
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(limiter.New(limiter.Config{
		Max:        perMinute,
		Expiration: time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			return c.SendStatus(fiber.StatusTooManyRequests)
		},
	}))

	d := &Daemon{
		app:       app,
		service:   service,
		relay:     relay,
		publisher: publisher,
	}
	if sweeper, ok := service.(interface{ Sweep() }); ok {
		d.sweeper = sweeper
	}
	d.routes()
	return d, nil
}

func (d *Daemon) routes() {
	v1 := d.app.Group("/v1")

	v1.Get("/sessions", d.querySessions)
	v1.Post("/sessions", d.createSession)
	v1.Get("/sessions/:id", d.getSession)
	v1.Post("/sessions/:id/join", d.joinSession)
	v1.Patch("/sessions/:id/data", d.updateData)
	v1.Put("/sessions/:id/participants/:pid", d.setParticipant)
	v1.Delete("/sessions/:id/participants/:pid", d.leaveSession)
	v1.Post("/sessions/:id/heartbeat", d.heartbeat)
	v1.Delete("/sessions/:id", d.deleteSession)

	v1.Post("/allocations", d.createAllocation)
	v1.Post("/allocations/:id/code", d.joinCode)
	v1.Post("/join", d.joinRelay)

	d.app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
}

// Listen blocks serving the contract on addr. The session sweeper runs on
// its own schedule until Shutdown.
func (d *Daemon) Listen(addr string) error {
	if d.sweeper != nil {
		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return err
		}
		if _, err := scheduler.NewJob(
			gocron.DurationJob(sweepInterval),
			gocron.NewTask(d.sweeper.Sweep),
		); err != nil {
			return err
		}
		scheduler.Start()
		d.scheduler = scheduler
	}
	return d.app.Listen(addr)
}

func (d *Daemon) Shutdown() error {
	if d.scheduler != nil {
		_ = d.scheduler.Shutdown()
	}
	return d.app.Shutdown()
}

// App exposes the fiber app for in-process tests.
func (d *Daemon) App() *fiber.App {
	return d.app
}

type createSessionRequest struct {
	Name        string            `json:"name"`
	Participant lobby.Participant `json:"participant"`
}

type joinSessionRequest struct {
	Participant lobby.Participant `json:"participant"`
}

type updateDataRequest struct {
	Data map[string]string `json:"data"`
}

type sessionListResponse struct {
	Sessions []*lobby.Session `json:"sessions"`
}

func (d *Daemon) querySessions(c *fiber.Ctx) error {
	sessions, err := d.service.Query(c.Context())
	if err != nil {
		return d.serviceError(c, err)
	}
	return c.JSON(sessionListResponse{Sessions: sessions})
}

func (d *Daemon) createSession(c *fiber.Ctx) error {
	var req createSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	session, err := d.service.Create(c.Context(), req.Name, req.Participant)
	if err != nil {
		return d.serviceError(c, err)
	}
	d.publishLobby("session_created", session.ID)
	return c.Status(fiber.StatusCreated).JSON(session)
}

func (d *Daemon) getSession(c *fiber.Ctx) error {
	session, err := d.service.Get(c.Context(), c.Params("id"))
	if err != nil {
		return d.serviceError(c, err)
	}
	return c.JSON(session)
}

func (d *Daemon) joinSession(c *fiber.Ctx) error {
	var req joinSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	session, err := d.service.Join(c.Context(), c.Params("id"), req.Participant)
	if err != nil {
		return d.serviceError(c, err)
	}
	d.publishLobby("session_joined", session.ID)
	return c.JSON(session)
}

func (d *Daemon) updateData(c *fiber.Ctx) error {
	var req updateDataRequest
	if err := c.BodyParser(&req); err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	session, err := d.service.Update(c.Context(), c.Params("id"), req.Data)
	if err != nil {
		return d.serviceError(c, err)
	}
	return c.JSON(session)
}

func (d *Daemon) setParticipant(c *fiber.Ctx) error {
	var p lobby.Participant
	if err := c.BodyParser(&p); err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	p.ID = c.Params("pid")
	session, err := d.service.SetParticipant(c.Context(), c.Params("id"), p)
	if err != nil {
		return d.serviceError(c, err)
	}
	return c.JSON(session)
}

func (d *Daemon) leaveSession(c *fiber.Ctx) error {
	if err := d.service.Leave(c.Context(), c.Params("id"), c.Params("pid")); err != nil {
		return d.serviceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (d *Daemon) heartbeat(c *fiber.Ctx) error {
	if err := d.service.Heartbeat(c.Context(), c.Params("id")); err != nil {
		return d.serviceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (d *Daemon) deleteSession(c *fiber.Ctx) error {
	if err := d.service.Delete(c.Context(), c.Params("id")); err != nil {
		return d.serviceError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type allocationRequest struct {
	MaxConnections int `json:"maxConnections"`
}

type allocationResponse struct {
	ID         string           `json:"id"`
	Credential lobby.Credential `json:"credential"`
}

type joinCodeResponse struct {
	Code string `json:"code"`
}

type joinRelayRequest struct {
	Code string `json:"code"`
}

type joinRelayResponse struct {
	Credential lobby.Credential `json:"credential"`
}

func (d *Daemon) createAllocation(c *fiber.Ctx) error {
	var req allocationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	allocation, err := d.relay.CreateAllocation(c.Context(), req.MaxConnections)
	if err != nil {
		return d.serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(allocationResponse{
		ID:         allocation.ID,
		Credential: allocation.Credential,
	})
}

func (d *Daemon) joinCode(c *fiber.Ctx) error {
	code, err := d.relay.JoinCode(c.Context(), c.Params("id"))
	if err != nil {
		return d.serviceError(c, err)
	}
	return c.JSON(joinCodeResponse{Code: code})
}

func (d *Daemon) joinRelay(c *fiber.Ctx) error {
	var req joinRelayRequest
	if err := c.BodyParser(&req); err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	credential, err := d.relay.Join(c.Context(), req.Code)
	if err != nil {
		return d.serviceError(c, err)
	}
	return c.JSON(joinRelayResponse{Credential: credential})
}

// serviceError maps the structured sentinels back onto the status codes the
// client contract defines.
func (d *Daemon) serviceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, lobby.ErrSessionNotFound):
		return c.SendStatus(fiber.StatusNotFound)
	case errors.Is(err, lobby.ErrSessionFull):
		return c.SendStatus(fiber.StatusConflict)
	case errors.Is(err, lobby.ErrRateLimited):
		return c.SendStatus(fiber.StatusTooManyRequests)
	default:
		d.publisher.Publish(context.Background(), logging.Event{
			Type:     logging.EventType("rendezvous.request_failed"),
			Severity: logging.SeverityError,
			Category: logging.CategoryLobby,
			Actor:    logging.EntityRef{Kind: logging.EntityKindSession},
			Extra:    map[string]any{"error": err.Error()},
		})
		return c.Status(fiber.StatusInternalServerError).SendString(err.Error())
	}
}

func (d *Daemon) publishLobby(event, sessionID string) {
	d.publisher.Publish(context.Background(), logging.Event{
		Type:     logging.EventType("rendezvous." + event),
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLobby,
		Actor:    logging.EntityRef{ID: sessionID, Kind: logging.EntityKindSession},
	})
}
