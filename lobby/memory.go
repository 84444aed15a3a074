package lobby

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionTTL is how long a session survives without a heartbeat before the
// in-memory service expires it.
const SessionTTL = 30 * time.Second

// MemoryService is an in-process Service used by tests and embedded runs.
// It enforces the same capacity and expiry rules as the hosted service.
type MemoryService struct {
	mu       sync.Mutex
	sessions map[string]*memorySession
	clock    func() time.Time
}

type memorySession struct {
	session   *Session
	expiresAt time.Time
}

func NewMemoryService() *MemoryService {
	return &MemoryService{
		sessions: make(map[string]*memorySession),
		clock:    time.Now,
	}
}

// SetClock overrides the time source; tests use it to drive expiry.
func (m *MemoryService) SetClock(clock func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if clock != nil {
		m.clock = clock
	}
}

func (m *MemoryService) Query(_ context.Context) ([]*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked()
	out := make([]*Session, 0)
	for _, rec := range m.sessions {
		if rec.session.FreeSlots() > 0 {
			out = append(out, rec.session.Clone())
		}
	}
	return out, nil
}

func (m *MemoryService) Create(_ context.Context, name string, self Participant) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session := &Session{
		ID:           uuid.NewString(),
		Name:         name,
		HostID:       self.ID,
		MaxPlayers:   MaxParticipants,
		Participants: []Participant{self},
		Data:         make(map[string]string),
	}
	m.sessions[session.ID] = &memorySession{
		session:   session,
		expiresAt: m.clock().Add(SessionTTL),
	}
	return session.Clone(), nil
}

func (m *MemoryService) Join(_ context.Context, sessionID string, self Participant) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, err := m.lookupLocked(sessionID)
	if err != nil {
		return nil, err
	}
	if rec.session.Full() {
		return nil, fmt.Errorf("join %s: %w", sessionID, ErrSessionFull)
	}
	if _, ok := rec.session.Participant(self.ID); ok {
		return nil, fmt.Errorf("join %s: participant %s already present", sessionID, self.ID)
	}
	rec.session.Participants = append(rec.session.Participants, self)
	return rec.session.Clone(), nil
}

func (m *MemoryService) Get(_ context.Context, sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, err := m.lookupLocked(sessionID)
	if err != nil {
		return nil, err
	}
	return rec.session.Clone(), nil
}

func (m *MemoryService) Update(_ context.Context, sessionID string, data map[string]string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, err := m.lookupLocked(sessionID)
	if err != nil {
		return nil, err
	}
	if rec.session.Data == nil {
		rec.session.Data = make(map[string]string, len(data))
	}
	for k, v := range data {
		rec.session.Data[k] = v
	}
	return rec.session.Clone(), nil
}

func (m *MemoryService) SetParticipant(_ context.Context, sessionID string, p Participant) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, err := m.lookupLocked(sessionID)
	if err != nil {
		return nil, err
	}
	for i := range rec.session.Participants {
		if rec.session.Participants[i].ID == p.ID {
			rec.session.Participants[i] = p
			return rec.session.Clone(), nil
		}
	}
	return nil, fmt.Errorf("set participant %s: not in session %s", p.ID, sessionID)
}

func (m *MemoryService) Heartbeat(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, err := m.lookupLocked(sessionID)
	if err != nil {
		return err
	}
	rec.expiresAt = m.clock().Add(SessionTTL)
	return nil
}

func (m *MemoryService) Leave(_ context.Context, sessionID, participantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, err := m.lookupLocked(sessionID)
	if err != nil {
		return err
	}
	participants := rec.session.Participants[:0]
	for _, p := range rec.session.Participants {
		if p.ID != participantID {
			participants = append(participants, p)
		}
	}
	rec.session.Participants = participants
	if len(participants) == 0 {
		delete(m.sessions, sessionID)
	}
	return nil
}

func (m *MemoryService) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return fmt.Errorf("delete %s: %w", sessionID, ErrSessionNotFound)
	}
	delete(m.sessions, sessionID)
	return nil
}

func (m *MemoryService) lookupLocked(sessionID string) (*memorySession, error) {
	m.pruneLocked()
	rec, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
	}
	return rec, nil
}

// Sweep drops expired sessions. The rendezvous daemon runs this on a
// schedule so idle records disappear even when no traffic arrives.
func (m *MemoryService) Sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruneLocked()
}

func (m *MemoryService) pruneLocked() {
	now := m.clock()
	for id, rec := range m.sessions {
		if now.After(rec.expiresAt) {
			delete(m.sessions, id)
		}
	}
}

// MemoryRelay is an in-process Relay for tests and embedded runs. Join codes
// resolve to loopback credentials.
type MemoryRelay struct {
	mu          sync.Mutex
	nextPort    int
	allocations map[string]Credential // allocation id -> host credential
	codes       map[string]string     // join code -> allocation id
}

func NewMemoryRelay() *MemoryRelay {
	return &MemoryRelay{
		nextPort:    42000,
		allocations: make(map[string]Credential),
		codes:       make(map[string]string),
	}
}

func (r *MemoryRelay) CreateAllocation(_ context.Context, _ int) (Allocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := uuid.NewString()
	r.nextPort++
	cred := Credential{
		Address: "127.0.0.1",
		Port:    r.nextPort,
		Key:     []byte(uuid.NewString()),
	}
	r.allocations[id] = cred
	return Allocation{ID: id, Credential: cred}, nil
}

func (r *MemoryRelay) JoinCode(_ context.Context, allocationID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.allocations[allocationID]; !ok {
		return "", fmt.Errorf("relay: unknown allocation %s: %w", allocationID, ErrSessionNotFound)
	}
	code := newJoinCode()
	r.codes[code] = allocationID
	return code, nil
}

func (r *MemoryRelay) Join(_ context.Context, code string) (Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	allocationID, ok := r.codes[code]
	if !ok {
		return Credential{}, fmt.Errorf("relay: unknown join code %q: %w", code, ErrSessionNotFound)
	}
	cred := r.allocations[allocationID]
	cred.JoinCode = code
	return cred, nil
}

const joinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func newJoinCode() string {
	raw := uuid.NewString()
	code := make([]byte, 0, 6)
	for i := 0; i < len(raw) && len(code) < 6; i++ {
		c := raw[i]
		if c == '-' {
			continue
		}
		code = append(code, joinCodeAlphabet[int(c)%len(joinCodeAlphabet)])
	}
	return string(code)
}
