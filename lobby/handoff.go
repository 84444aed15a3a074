package lobby

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"garden-siege/server/logging"
	logginglobby "garden-siege/server/logging/lobby"
)

// ErrNoJoinCode is the joiner's terminal failure when the host never
// publishes a credential within the retry budget (host crashed or stalled).
var ErrNoJoinCode = errors.New("lobby: join code never appeared")

// HandoffConfig tunes the relay handoff. The retry bound exists so a crashed
// host leaves the joiner with a clean failure instead of blocking forever.
type HandoffConfig struct {
	Service   Service
	Relay     Relay
	Publisher logging.Publisher
	Self      Participant

	// Joiner retry loop for the credential field.
	RetryDelay time.Duration // default 500ms
	RetryLimit int           // default 10 attempts

	// Host cadence while waiting for both scene-ready flags.
	ReadyPollDelay time.Duration // default 1s
	ReadyPollLimit int           // default 15 attempts
}

func (c HandoffConfig) withDefaults() HandoffConfig {
	if c.RetryDelay <= 0 {
		c.RetryDelay = 500 * time.Millisecond
	}
	if c.RetryLimit <= 0 {
		c.RetryLimit = 10
	}
	if c.ReadyPollDelay <= 0 {
		c.ReadyPollDelay = time.Second
	}
	if c.ReadyPollLimit <= 0 {
		c.ReadyPollLimit = 15
	}
	return c
}

// Handoff moves a matched session onto the relay transport. The host
// allocates and publishes exactly once; the joiner retrieves by bounded
// retry. There is no direct signaling between the peers: ordering is
// enforced purely by the joiner retrying until the code is present.
type Handoff struct {
	cfg HandoffConfig

	mu      sync.Mutex
	started bool
}

func NewHandoff(cfg HandoffConfig) *Handoff {
	return &Handoff{cfg: cfg.withDefaults()}
}

// MarkSceneReady publishes this participant's scene-readiness flag into the
// shared record. Both sides call it when their post-match scene is loaded.
func (h *Handoff) MarkSceneReady(ctx context.Context, sessionID string) error {
	self := h.cfg.Self
	self.SceneReady = true
	session, err := h.cfg.Service.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("mark scene ready: %w", err)
	}
	if rec, ok := session.Participant(self.ID); ok {
		rec.SceneReady = true
		self = rec
	}
	if _, err := h.cfg.Service.SetParticipant(ctx, sessionID, self); err != nil {
		return fmt.Errorf("mark scene ready: %w", err)
	}
	return nil
}

// PublishAsHost creates the relay allocation, publishes its join code into
// the session record and returns the host's own credential. It runs at most
// once per Handoff; a second call is a no-op returning an error. The publish
// strictly precedes the host's transport start because the caller only
// starts the transport with the returned credential.
func (h *Handoff) PublishAsHost(ctx context.Context, sessionID string) (Credential, error) {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return Credential{}, errors.New("lobby: relay handoff already started")
	}
	h.started = true
	h.mu.Unlock()

	if err := h.waitForSceneReady(ctx, sessionID); err != nil {
		return Credential{}, err
	}

	allocation, err := h.cfg.Relay.CreateAllocation(ctx, MaxParticipants-1)
	if err != nil {
		return Credential{}, fmt.Errorf("create relay allocation: %w", err)
	}
	code, err := h.cfg.Relay.JoinCode(ctx, allocation.ID)
	if err != nil {
		return Credential{}, fmt.Errorf("fetch join code: %w", err)
	}
	if _, err := h.cfg.Service.Update(ctx, sessionID, map[string]string{DataKeyJoinCode: code}); err != nil {
		return Credential{}, fmt.Errorf("publish join code: %w", err)
	}
	logginglobby.CredentialPublished(ctx, h.cfg.Publisher, h.selfRef(),
		logginglobby.SessionPayload{SessionID: sessionID})

	cred := allocation.Credential
	cred.JoinCode = code
	return cred, nil
}

// waitForSceneReady polls the record until every participant has raised its
// scene-ready flag. A cheap fixed-delay heuristic, not a handshake: the flag
// only gates how early the host allocates.
func (h *Handoff) waitForSceneReady(ctx context.Context, sessionID string) error {
	for attempt := 0; attempt < h.cfg.ReadyPollLimit; attempt++ {
		session, err := h.cfg.Service.Get(ctx, sessionID)
		if err == nil && allSceneReady(session) {
			return nil
		}
		if err := sleepCtx(ctx, h.cfg.ReadyPollDelay); err != nil {
			return err
		}
	}
	// Proceed anyway: a joiner that never flags readiness still deserves a
	// published credential to retry against.
	return nil
}

// RetrieveAsJoiner polls the session record for the published join code,
// then resolves it into a credential through the relay. The bound makes a
// crashed host a clean terminal failure.
func (h *Handoff) RetrieveAsJoiner(ctx context.Context, sessionID string) (Credential, error) {
	for attempt := 1; attempt <= h.cfg.RetryLimit; attempt++ {
		session, err := h.cfg.Service.Get(ctx, sessionID)
		if err == nil {
			if code := session.JoinCode(); code != "" {
				cred, jerr := h.cfg.Relay.Join(ctx, code)
				if jerr != nil {
					return Credential{}, fmt.Errorf("join relay allocation: %w", jerr)
				}
				logginglobby.CredentialRetrieved(ctx, h.cfg.Publisher, h.selfRef(),
					logginglobby.SessionPayload{SessionID: sessionID, Attempt: attempt})
				return cred, nil
			}
		}
		if attempt == h.cfg.RetryLimit {
			break
		}
		if err := sleepCtx(ctx, h.cfg.RetryDelay); err != nil {
			return Credential{}, err
		}
	}
	return Credential{}, fmt.Errorf("after %d attempts: %w", h.cfg.RetryLimit, ErrNoJoinCode)
}

func (h *Handoff) selfRef() logging.EntityRef {
	return logging.EntityRef{ID: h.cfg.Self.ID, Kind: logging.EntityKindParticipant}
}

func allSceneReady(session *Session) bool {
	if session == nil || !session.Full() {
		return false
	}
	for _, p := range session.Participants {
		if !p.SceneReady {
			return false
		}
	}
	return true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
