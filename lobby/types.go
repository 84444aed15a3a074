package lobby

// Role is one of the two complementary sides of a match.
type Role string

const (
	RoleNone    Role = ""
	RolePlants  Role = "plants"
	RoleZombies Role = "zombies"
)

// Complement returns the strict opposite role. RoleNone has no complement.
func (r Role) Complement() Role {
	switch r {
	case RolePlants:
		return RoleZombies
	case RoleZombies:
		return RolePlants
	default:
		return RoleNone
	}
}

func (r Role) Valid() bool {
	return r == RolePlants || r == RoleZombies
}

// Participant is one player's entry in a session record.
type Participant struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Role        Role   `json:"role"`
	SceneReady  bool   `json:"sceneReady"`
}

// MaxParticipants is fixed: every session coordinates exactly two players.
const MaxParticipants = 2

// DataKeyJoinCode is the session data field the host writes the relay join
// code into. It is written exactly once and treated as append-only.
const DataKeyJoinCode = "relayJoinCode"

// Session is the shared match record persisted by the rendezvous service.
// Both participants poll it; they write only disjoint fields (their own
// participant entry) except for the host's one-time join-code publish.
type Session struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	HostID       string            `json:"hostId"`
	MaxPlayers   int               `json:"maxPlayers"`
	Participants []Participant     `json:"participants"`
	Data         map[string]string `json:"data,omitempty"`
}

func (s *Session) FreeSlots() int {
	if s == nil {
		return 0
	}
	free := s.MaxPlayers - len(s.Participants)
	if free < 0 {
		return 0
	}
	return free
}

func (s *Session) Full() bool {
	return s != nil && len(s.Participants) >= s.MaxPlayers
}

func (s *Session) Participant(id string) (Participant, bool) {
	if s == nil {
		return Participant{}, false
	}
	for _, p := range s.Participants {
		if p.ID == id {
			return p, true
		}
	}
	return Participant{}, false
}

// Peer returns the participant that is not selfID.
func (s *Session) Peer(selfID string) (Participant, bool) {
	if s == nil {
		return Participant{}, false
	}
	for _, p := range s.Participants {
		if p.ID != selfID {
			return p, true
		}
	}
	return Participant{}, false
}

func (s *Session) JoinCode() string {
	if s == nil || s.Data == nil {
		return ""
	}
	return s.Data[DataKeyJoinCode]
}

// Clone returns a deep copy so callers can hold a view without aliasing the
// service's record.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cloned := *s
	cloned.Participants = append([]Participant(nil), s.Participants...)
	if s.Data != nil {
		cloned.Data = make(map[string]string, len(s.Data))
		for k, v := range s.Data {
			cloned.Data[k] = v
		}
	}
	return &cloned
}

// Credential carries everything the transport needs to connect through the
// relay: the opaque join code plus the relay endpoint and auth bytes.
type Credential struct {
	JoinCode string `json:"joinCode"`
	Address  string `json:"address"`
	Port     int    `json:"port"`
	Key      []byte `json:"key,omitempty"`
}

func (c Credential) Empty() bool {
	return c.JoinCode == "" && c.Address == ""
}
