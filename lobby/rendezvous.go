package lobby

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"garden-siege/server/logging"
	logginglobby "garden-siege/server/logging/lobby"
)

// State is the rendezvous machine's position. At most one search runs per
// participant; re-entry is rejected rather than queued.
type State string

const (
	StateIdle       State = "idle"
	StateSearching  State = "searching"
	StatePolling    State = "polling"
	StateMatchReady State = "match-ready"
	StateFailed     State = "failed"
	StateCancelled  State = "cancelled"
)

var (
	ErrSearchActive = errors.New("lobby: search already in progress")
	ErrNoRole       = errors.New("lobby: no role selected")
	ErrCancelled    = errors.New("lobby: search cancelled")
	ErrSearchFailed = errors.New("lobby: search failed")
)

// Config tunes the rendezvous loop. Zero values take the defaults below,
// which mirror the hosted service's published rate limits.
type Config struct {
	Service   Service
	Publisher logging.Publisher
	Self      Participant

	PollBaseline   time.Duration // cadence after a successful poll
	PollJitter     time.Duration // random addition per sleep, [0, PollJitter)
	RateLimitCap   time.Duration // backoff ceiling after rate-limit errors
	TransientCap   time.Duration // backoff ceiling after other transient errors
	MaxFailures    int           // consecutive failures before aborting
	HeartbeatEvery time.Duration // host keep-alive cadence
}

func (c Config) withDefaults() Config {
	if c.PollBaseline <= 0 {
		c.PollBaseline = 3 * time.Second
	}
	if c.PollJitter < 0 {
		c.PollJitter = 0
	} else if c.PollJitter == 0 {
		c.PollJitter = 2 * time.Second
	}
	if c.RateLimitCap <= 0 {
		c.RateLimitCap = 60 * time.Second
	}
	if c.TransientCap <= 0 {
		c.TransientCap = 30 * time.Second
	}
	if c.MaxFailures <= 0 {
		c.MaxFailures = 5
	}
	if c.HeartbeatEvery <= 0 {
		c.HeartbeatEvery = 15 * time.Second
	}
	return c
}

// Match is the terminal result of a successful search.
type Match struct {
	Session *Session
	Role    Role
	IsHost  bool
}

// Rendezvous finds or creates a session and polls it until a second
// participant arrives. One long-lived loop per participant; Search blocks
// until a terminal state.
type Rendezvous struct {
	cfg Config

	mu        sync.Mutex
	state     State
	role      Role
	sessionID string
	cancelled bool
	stop      chan struct{}
}

func NewRendezvous(cfg Config) *Rendezvous {
	return &Rendezvous{cfg: cfg.withDefaults(), state: StateIdle}
}

func (r *Rendezvous) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// SelectRole records the participant's side. Rejected while a search is
// running; the role is locked in for the session once matched.
func (r *Rendezvous) SelectRole(role Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateSearching || r.state == StatePolling {
		return ErrSearchActive
	}
	if !role.Valid() {
		return fmt.Errorf("select role %q: %w", role, ErrNoRole)
	}
	r.role = role
	return nil
}

// Cancel requests teardown. Idempotent; the running loop observes it at the
// next iteration boundary, finishes any in-flight service call first, and
// tears the session down exactly like the error-abort path.
func (r *Rendezvous) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelled {
		return
	}
	r.cancelled = true
	if r.stop != nil {
		close(r.stop)
	}
}

func (r *Rendezvous) isCancelled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled
}

// Search runs the full state machine: query-or-create, then poll until the
// session fills, fails, or is cancelled. It returns the match with the
// negotiated role; the caller proceeds to the relay handoff.
func (r *Rendezvous) Search(ctx context.Context) (Match, error) {
	r.mu.Lock()
	if r.state == StateSearching || r.state == StatePolling {
		r.mu.Unlock()
		return Match{}, ErrSearchActive
	}
	if !r.role.Valid() {
		r.mu.Unlock()
		return Match{}, ErrNoRole
	}
	r.state = StateSearching
	r.cancelled = false
	r.stop = make(chan struct{})
	self := r.cfg.Self
	self.Role = r.role
	r.mu.Unlock()

	session, isHost, err := r.findOrCreate(ctx, self)
	if err != nil {
		r.setState(StateFailed)
		return Match{}, err
	}
	r.mu.Lock()
	r.sessionID = session.ID
	r.role = self.RoleInSession(session)
	role := r.role
	r.state = StatePolling
	r.mu.Unlock()

	session, err = r.poll(ctx, session, isHost)
	if err != nil {
		return Match{}, err
	}

	logginglobby.MatchReady(ctx, r.cfg.Publisher, r.selfRef(),
		logginglobby.SessionPayload{SessionID: session.ID, Role: string(role)})
	r.setState(StateMatchReady)
	return Match{Session: session, Role: role, IsHost: isHost}, nil
}

// RoleInSession reports the role recorded for p in the session, falling back
// to p's local selection when the record has not caught up yet.
func (p Participant) RoleInSession(session *Session) Role {
	if rec, ok := session.Participant(p.ID); ok && rec.Role.Valid() {
		return rec.Role
	}
	return p.Role
}

func (r *Rendezvous) findOrCreate(ctx context.Context, self Participant) (*Session, bool, error) {
	available, err := r.cfg.Service.Query(ctx)
	if err != nil {
		// A failed query is not fatal: fall through and host a fresh session.
		available = nil
	}
	for _, candidate := range available {
		if candidate.FreeSlots() == 0 {
			continue
		}
		joiner := self
		joiner.Role = negotiateJoinRole(candidate, self.ID, self.Role)
		joined, err := r.cfg.Service.Join(ctx, candidate.ID, joiner)
		if err != nil {
			if errors.Is(err, ErrSessionFull) || errors.Is(err, ErrSessionNotFound) {
				continue // raced another joiner; try the next candidate
			}
			return nil, false, fmt.Errorf("join session %s: %w", candidate.ID, err)
		}
		// Write the derived role back so the peer observes it next poll.
		if _, err := r.cfg.Service.SetParticipant(ctx, joined.ID, joiner); err == nil {
			if view, gerr := r.cfg.Service.Get(ctx, joined.ID); gerr == nil {
				joined = view
			}
		}
		logginglobby.SessionJoined(ctx, r.cfg.Publisher, r.selfRef(),
			logginglobby.SessionPayload{SessionID: joined.ID, Role: string(joiner.Role)})
		return joined, false, nil
	}

	name := fmt.Sprintf("garden-%s", uuid.NewString()[:8])
	created, err := r.cfg.Service.Create(ctx, name, self)
	if err != nil {
		return nil, false, fmt.Errorf("create session: %w", err)
	}
	logginglobby.SessionCreated(ctx, r.cfg.Publisher, r.selfRef(),
		logginglobby.SessionPayload{SessionID: created.ID, Role: string(self.Role)})
	return created, true, nil
}

func (r *Rendezvous) poll(ctx context.Context, session *Session, isHost bool) (*Session, error) {
	interval := r.cfg.PollBaseline
	failures := 0
	nextHeartbeat := time.Now().Add(r.cfg.HeartbeatEvery)

	for {
		if session.Full() {
			return session, nil
		}
		// The host's wait never extends past the next heartbeat: a
		// rate-limit backoff capped at 60s must not let the 30s session
		// expiry reap the host's own record.
		wait := interval + r.jitter()
		if isHost {
			if until := time.Until(nextHeartbeat); until < wait {
				wait = until
			}
			if wait < 0 {
				wait = 0
			}
		}
		if err := r.sleep(ctx, wait); err != nil {
			return nil, r.teardown(ctx, session, isHost, err)
		}
		if r.isCancelled() {
			return nil, r.teardown(ctx, session, isHost, ErrCancelled)
		}

		if isHost && !time.Now().Before(nextHeartbeat) {
			if err := r.cfg.Service.Heartbeat(ctx, session.ID); err == nil {
				nextHeartbeat = time.Now().Add(r.cfg.HeartbeatEvery)
			} else {
				nextHeartbeat = time.Now().Add(r.cfg.PollBaseline)
			}
		}

		view, err := r.cfg.Service.Get(ctx, session.ID)
		switch {
		case err == nil:
			failures = 0
			interval = r.cfg.PollBaseline
			session = view
		case errors.Is(err, ErrSessionNotFound):
			// Structural: the record vanished, nothing left to tear down.
			r.setState(StateFailed)
			logginglobby.SearchFailed(ctx, r.cfg.Publisher, r.selfRef(),
				logginglobby.SessionPayload{SessionID: session.ID, Reason: "session vanished"})
			return nil, fmt.Errorf("session vanished: %w", ErrSearchFailed)
		case errors.Is(err, ErrRateLimited):
			failures++
			interval = capDuration(interval*2, r.cfg.RateLimitCap)
		default:
			failures++
			interval = capDuration(interval*3/2, r.cfg.TransientCap)
		}
		if failures >= r.cfg.MaxFailures {
			reason := fmt.Errorf("%d consecutive poll failures: %w", failures, ErrSearchFailed)
			return nil, r.teardown(ctx, session, isHost, reason)
		}
	}
}

// teardown leaves or deletes the session and surfaces the terminal error.
func (r *Rendezvous) teardown(ctx context.Context, session *Session, isHost bool, cause error) error {
	if session != nil {
		if isHost {
			_ = r.cfg.Service.Delete(ctx, session.ID)
		} else {
			_ = r.cfg.Service.Leave(ctx, session.ID, r.cfg.Self.ID)
		}
	}
	if errors.Is(cause, ErrCancelled) || errors.Is(cause, context.Canceled) {
		r.setState(StateCancelled)
	} else {
		r.setState(StateFailed)
		logginglobby.SearchFailed(ctx, r.cfg.Publisher, r.selfRef(),
			logginglobby.SessionPayload{SessionID: sessionIDOf(session), Reason: cause.Error()})
	}
	return cause
}

func (r *Rendezvous) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		d = time.Millisecond
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-r.stopChan():
		return ErrCancelled
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Rendezvous) stopChan() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stop
}

func (r *Rendezvous) jitter() time.Duration {
	if r.cfg.PollJitter <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(r.cfg.PollJitter)))
}

func (r *Rendezvous) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

func (r *Rendezvous) selfRef() logging.EntityRef {
	return logging.EntityRef{ID: r.cfg.Self.ID, Kind: logging.EntityKindParticipant}
}

func sessionIDOf(s *Session) string {
	if s == nil {
		return ""
	}
	return s.ID
}

func capDuration(d, cap time.Duration) time.Duration {
	if d > cap {
		return cap
	}
	return d
}
