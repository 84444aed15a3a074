package lobby

import (
	"context"
	"errors"
)

// Structured service errors. Rate limiting is detected by error identity, not
// by matching message substrings; implementations wrap these sentinels.
var (
	ErrRateLimited     = errors.New("lobby: rate limited")
	ErrSessionNotFound = errors.New("lobby: session not found")
	ErrSessionFull     = errors.New("lobby: session full")
)

// Service is the boundary toward the external rendezvous service that stores
// shared session records. Every call is a network round-trip on real
// implementations and may fail transiently; callers own retry policy.
type Service interface {
	// Query lists sessions with at least one free slot.
	Query(ctx context.Context) ([]*Session, error)
	// Create registers a new session with self as host and sole participant.
	Create(ctx context.Context, name string, self Participant) (*Session, error)
	// Join adds self to the session. Fails with ErrSessionFull at capacity.
	Join(ctx context.Context, sessionID string, self Participant) (*Session, error)
	// Get returns the current session record.
	Get(ctx context.Context, sessionID string) (*Session, error)
	// Update merges the given data fields into the session record.
	Update(ctx context.Context, sessionID string, data map[string]string) (*Session, error)
	// SetParticipant overwrites the caller's own participant entry.
	SetParticipant(ctx context.Context, sessionID string, p Participant) (*Session, error)
	// Heartbeat refreshes the session's expiry deadline (host only).
	Heartbeat(ctx context.Context, sessionID string) error
	// Leave removes the participant from the session.
	Leave(ctx context.Context, sessionID, participantID string) error
	// Delete destroys the session record (host teardown).
	Delete(ctx context.Context, sessionID string) error
}

// Allocation is a reserved relay slot. The credential is the host's own
// connection material; joiners obtain theirs via Join with the join code.
type Allocation struct {
	ID         string
	Credential Credential
}

// Relay is the boundary toward the relay service that brokers the
// NAT-traversing transport connection between the two peers.
type Relay interface {
	CreateAllocation(ctx context.Context, maxConnections int) (Allocation, error)
	JoinCode(ctx context.Context, allocationID string) (string, error)
	Join(ctx context.Context, code string) (Credential, error)
}
