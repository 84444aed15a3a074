package lobby

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryServiceCapacity(t *testing.T) {
	t.Parallel()

	service := NewMemoryService()
	created, err := service.Create(context.Background(), "garden-test",
		Participant{ID: "host-1", Role: RolePlants})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := service.Join(context.Background(), created.ID,
		Participant{ID: "join-1", Role: RoleZombies}); err != nil {
		t.Fatalf("join: %v", err)
	}
	_, err = service.Join(context.Background(), created.ID,
		Participant{ID: "join-2", Role: RoleZombies})
	if !errors.Is(err, ErrSessionFull) {
		t.Fatalf("third participant err = %v, want ErrSessionFull", err)
	}

	sessions, err := service.Query(context.Background())
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(sessions) != 0 {
		t.Fatalf("full session must not be listed, got %d", len(sessions))
	}
}

func TestMemoryServiceExpiry(t *testing.T) {
	t.Parallel()

	now := time.UnixMilli(1_700_000_000)
	clock := func() time.Time { return now }

	service := NewMemoryService()
	service.SetClock(clock)

	created, err := service.Create(context.Background(), "garden-test",
		Participant{ID: "host-1", Role: RolePlants})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// A heartbeat inside the TTL window keeps the record alive.
	now = now.Add(SessionTTL - time.Second)
	if err := service.Heartbeat(context.Background(), created.ID); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	now = now.Add(SessionTTL - time.Second)
	if _, err := service.Get(context.Background(), created.ID); err != nil {
		t.Fatalf("session expired despite heartbeat: %v", err)
	}

	// Silence past the TTL expires it.
	now = now.Add(SessionTTL + time.Second)
	_, err = service.Get(context.Background(), created.ID)
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestMemoryServiceLeaveDropsEmptySessions(t *testing.T) {
	t.Parallel()

	service := NewMemoryService()
	created, err := service.Create(context.Background(), "garden-test",
		Participant{ID: "host-1", Role: RolePlants})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := service.Leave(context.Background(), created.ID, "host-1"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if _, err := service.Get(context.Background(), created.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("empty session should be deleted, err = %v", err)
	}
}

func TestMemoryRelayJoinCodeRoundTrip(t *testing.T) {
	t.Parallel()

	relay := NewMemoryRelay()
	allocation, err := relay.CreateAllocation(context.Background(), MaxParticipants-1)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	code, err := relay.JoinCode(context.Background(), allocation.ID)
	if err != nil {
		t.Fatalf("join code: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("join code %q should be 6 characters", code)
	}

	cred, err := relay.Join(context.Background(), code)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if cred.Address != allocation.Credential.Address || cred.Port != allocation.Credential.Port {
		t.Fatalf("joiner credential %+v does not reach the host allocation %+v",
			cred, allocation.Credential)
	}
	if _, err := relay.Join(context.Background(), "XXXXXX"); err == nil {
		t.Fatalf("unknown join code must fail")
	}
}
