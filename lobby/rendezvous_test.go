package lobby

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// scriptedService lets tests control every round-trip toward the rendezvous
// daemon while counting calls.
type scriptedService struct {
	mu sync.Mutex

	queryFn func() ([]*Session, error)
	getFn   func(callNumber int) (*Session, error)

	getCalls    int
	deleteCalls int
	leaveCalls  int
	heartbeats  []time.Time
	created     *Session
}

func (s *scriptedService) Query(context.Context) ([]*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queryFn != nil {
		return s.queryFn()
	}
	return nil, nil
}

func (s *scriptedService) Create(_ context.Context, name string, self Participant) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = &Session{
		ID:           "session-1",
		Name:         name,
		HostID:       self.ID,
		MaxPlayers:   MaxParticipants,
		Participants: []Participant{self},
		Data:         map[string]string{},
	}
	return s.created.Clone(), nil
}

func (s *scriptedService) Join(_ context.Context, sessionID string, _ Participant) (*Session, error) {
	return nil, errors.New("unexpected join of " + sessionID)
}

func (s *scriptedService) Get(_ context.Context, _ string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	if s.getFn != nil {
		return s.getFn(s.getCalls)
	}
	return s.created.Clone(), nil
}

func (s *scriptedService) Update(_ context.Context, _ string, _ map[string]string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.created.Clone(), nil
}

func (s *scriptedService) SetParticipant(_ context.Context, _ string, _ Participant) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.created.Clone(), nil
}

func (s *scriptedService) Heartbeat(context.Context, string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heartbeats = append(s.heartbeats, time.Now())
	return nil
}

func (s *scriptedService) heartbeatTimes() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Time(nil), s.heartbeats...)
}

func (s *scriptedService) Leave(context.Context, string, string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leaveCalls++
	return nil
}

func (s *scriptedService) Delete(context.Context, string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteCalls++
	return nil
}

func (s *scriptedService) counts() (gets, deletes, leaves int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getCalls, s.deleteCalls, s.leaveCalls
}

func testConfig(service Service, self Participant) Config {
	return Config{
		Service:      service,
		Self:         self,
		PollBaseline: time.Millisecond,
		PollJitter:   -1, // deterministic sleeps
		RateLimitCap: 8 * time.Millisecond,
		TransientCap: 8 * time.Millisecond,
	}
}

func TestSearchMatchesWithinThreePolls(t *testing.T) {
	t.Parallel()

	host := Participant{ID: "host-1", Role: RolePlants}
	service := &scriptedService{}
	service.getFn = func(call int) (*Session, error) {
		session := service.created.Clone()
		if call >= 2 {
			session.Participants = append(session.Participants,
				Participant{ID: "join-1", Role: RoleZombies})
		}
		return session, nil
	}

	r := NewRendezvous(testConfig(service, host))
	if err := r.SelectRole(RolePlants); err != nil {
		t.Fatalf("select role: %v", err)
	}

	match, err := r.Search(context.Background())
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !match.IsHost {
		t.Fatalf("creator should host the session")
	}
	if match.Role != RolePlants {
		t.Fatalf("host role changed during search: %q", match.Role)
	}
	if !match.Session.Full() {
		t.Fatalf("search returned before the session filled")
	}
	gets, _, _ := service.counts()
	if gets > 3 {
		t.Fatalf("expected a match within 3 polls, used %d", gets)
	}
	if r.State() != StateMatchReady {
		t.Fatalf("state = %q, want %q", r.State(), StateMatchReady)
	}
}

func TestJoinerDerivesComplementRole(t *testing.T) {
	t.Parallel()

	service := NewMemoryService()
	hostSelf := Participant{ID: "host-1", Role: RolePlants}
	created, err := service.Create(context.Background(), "garden-test", hostSelf)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// The joiner also wants plants; negotiation must hand them zombies.
	joiner := Participant{ID: "join-1", Role: RolePlants}
	r := NewRendezvous(Config{
		Service:      service,
		Self:         joiner,
		PollBaseline: time.Millisecond,
		PollJitter:   -1,
	})
	if err := r.SelectRole(RolePlants); err != nil {
		t.Fatalf("select role: %v", err)
	}

	match, err := r.Search(context.Background())
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if match.IsHost {
		t.Fatalf("joiner must not host")
	}
	if match.Session.ID != created.ID {
		t.Fatalf("joined session %q, want %q", match.Session.ID, created.ID)
	}
	if match.Role != RoleZombies {
		t.Fatalf("joiner role = %q, want complement %q", match.Role, RoleZombies)
	}

	view, err := service.Get(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	rec, ok := view.Participant(joiner.ID)
	if !ok {
		t.Fatalf("joiner missing from session record")
	}
	if rec.Role != RoleZombies {
		t.Fatalf("recorded joiner role = %q, want %q", rec.Role, RoleZombies)
	}
}

func TestPollAbortsAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	service := &scriptedService{}
	service.getFn = func(int) (*Session, error) {
		return nil, ErrRateLimited
	}

	r := NewRendezvous(testConfig(service, Participant{ID: "host-1", Role: RolePlants}))
	if err := r.SelectRole(RolePlants); err != nil {
		t.Fatalf("select role: %v", err)
	}

	_, err := r.Search(context.Background())
	if err == nil {
		t.Fatalf("search should fail after repeated rate limits")
	}
	gets, deletes, _ := service.counts()
	if gets != 5 {
		t.Fatalf("expected abort after 5 consecutive failures, polled %d times", gets)
	}
	if deletes != 1 {
		t.Fatalf("host teardown should delete the session once, deleted %d times", deletes)
	}
	if r.State() != StateFailed {
		t.Fatalf("state = %q, want %q", r.State(), StateFailed)
	}
}

func TestPollRecognizesRateLimitByIdentity(t *testing.T) {
	t.Parallel()

	// Wrapped sentinels must still be recognized; substring matching would
	// miss these.
	wrapped := func(int) (*Session, error) {
		return nil, errors.Join(errors.New("GET /v1/sessions/session-1"), ErrRateLimited)
	}
	service := &scriptedService{getFn: wrapped}

	r := NewRendezvous(testConfig(service, Participant{ID: "host-1", Role: RolePlants}))
	if err := r.SelectRole(RolePlants); err != nil {
		t.Fatalf("select role: %v", err)
	}
	_, err := r.Search(context.Background())
	if !errors.Is(err, ErrSearchFailed) {
		t.Fatalf("err = %v, want ErrSearchFailed", err)
	}
}

func TestHostHeartbeatsOutpaceBackoff(t *testing.T) {
	t.Parallel()

	service := &scriptedService{}
	service.getFn = func(int) (*Session, error) {
		return nil, ErrRateLimited
	}

	// The rate-limit ceiling dwarfs the keep-alive cadence; the host's
	// record must still be refreshed often enough to survive the daemon's
	// expiry sweep.
	r := NewRendezvous(Config{
		Service:        service,
		Self:           Participant{ID: "host-1", Role: RolePlants},
		PollBaseline:   time.Millisecond,
		PollJitter:     -1,
		RateLimitCap:   300 * time.Millisecond,
		TransientCap:   8 * time.Millisecond,
		MaxFailures:    10,
		HeartbeatEvery: 25 * time.Millisecond,
	})
	if err := r.SelectRole(RolePlants); err != nil {
		t.Fatalf("select role: %v", err)
	}

	start := time.Now()
	if _, err := r.Search(context.Background()); err == nil {
		t.Fatalf("search should fail after repeated rate limits")
	}

	beats := service.heartbeatTimes()
	if len(beats) < 3 {
		t.Fatalf("host sent %d heartbeats during backoff, want several", len(beats))
	}
	prev := start
	for _, at := range beats {
		if gap := at.Sub(prev); gap > 150*time.Millisecond {
			t.Fatalf("heartbeat gap %v would outlast the session expiry", gap)
		}
		prev = at
	}
}

func TestVanishedSessionFailsStructurally(t *testing.T) {
	t.Parallel()

	service := &scriptedService{}
	service.getFn = func(int) (*Session, error) {
		return nil, ErrSessionNotFound
	}

	r := NewRendezvous(testConfig(service, Participant{ID: "host-1", Role: RolePlants}))
	if err := r.SelectRole(RolePlants); err != nil {
		t.Fatalf("select role: %v", err)
	}
	_, err := r.Search(context.Background())
	if !errors.Is(err, ErrSearchFailed) {
		t.Fatalf("err = %v, want ErrSearchFailed", err)
	}
	_, deletes, _ := service.counts()
	if deletes != 0 {
		t.Fatalf("vanished session needs no teardown, deleted %d times", deletes)
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	t.Parallel()

	service := &scriptedService{}
	r := NewRendezvous(testConfig(service, Participant{ID: "host-1", Role: RolePlants}))
	if err := r.SelectRole(RolePlants); err != nil {
		t.Fatalf("select role: %v", err)
	}

	result := make(chan error, 1)
	go func() {
		_, err := r.Search(context.Background())
		result <- err
	}()

	// Let the search reach the polling loop before cancelling.
	deadline := time.Now().Add(2 * time.Second)
	for r.State() != StatePolling && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	r.Cancel()
	r.Cancel()
	r.Cancel()

	select {
	case err := <-result:
		if !errors.Is(err, ErrCancelled) {
			t.Fatalf("err = %v, want ErrCancelled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("search did not observe cancellation")
	}
	if r.State() != StateCancelled {
		t.Fatalf("state = %q, want %q", r.State(), StateCancelled)
	}
	_, deletes, _ := service.counts()
	if deletes != 1 {
		t.Fatalf("cancelled host should delete its session once, deleted %d times", deletes)
	}
}

func TestSelectRoleRejectedMidSearch(t *testing.T) {
	t.Parallel()

	service := &scriptedService{}
	r := NewRendezvous(testConfig(service, Participant{ID: "host-1", Role: RolePlants}))
	if err := r.SelectRole(RolePlants); err != nil {
		t.Fatalf("select role: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = r.Search(context.Background())
	}()

	deadline := time.Now().Add(2 * time.Second)
	for r.State() != StatePolling && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if err := r.SelectRole(RoleZombies); !errors.Is(err, ErrSearchActive) {
		t.Fatalf("err = %v, want ErrSearchActive", err)
	}

	r.Cancel()
	<-done
}

func TestSearchWithoutRoleFails(t *testing.T) {
	t.Parallel()

	r := NewRendezvous(testConfig(&scriptedService{}, Participant{ID: "p-1"}))
	if _, err := r.Search(context.Background()); !errors.Is(err, ErrNoRole) {
		t.Fatalf("err = %v, want ErrNoRole", err)
	}
}

func TestNegotiateJoinRole(t *testing.T) {
	t.Parallel()

	session := &Session{
		MaxPlayers: MaxParticipants,
		Participants: []Participant{
			{ID: "host-1", Role: RoleZombies},
		},
	}
	if got := negotiateJoinRole(session, "join-1", RoleZombies); got != RolePlants {
		t.Fatalf("negotiated %q, want complement %q", got, RolePlants)
	}

	unset := &Session{
		MaxPlayers: MaxParticipants,
		Participants: []Participant{
			{ID: "host-1"},
		},
	}
	if got := negotiateJoinRole(unset, "join-1", RoleZombies); got != RoleZombies {
		t.Fatalf("negotiated %q, want own selection %q while peer role unset", got, RoleZombies)
	}
}
