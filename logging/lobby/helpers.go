package lobby

import (
	"context"

	"garden-siege/server/logging"
)

const (
	// EventSessionCreated is emitted when a participant creates a new session.
	EventSessionCreated logging.EventType = "lobby.session_created"
	// EventSessionJoined is emitted when a participant joins an existing session.
	EventSessionJoined logging.EventType = "lobby.session_joined"
	// EventMatchReady is emitted when a participant observes a full session.
	EventMatchReady logging.EventType = "lobby.match_ready"
	// EventSearchFailed is emitted when rendezvous aborts after its retry budget.
	EventSearchFailed logging.EventType = "lobby.search_failed"
	// EventCredentialPublished is emitted when the host writes the relay join code.
	EventCredentialPublished logging.EventType = "lobby.credential_published"
	// EventCredentialRetrieved is emitted when the joiner observes the join code.
	EventCredentialRetrieved logging.EventType = "lobby.credential_retrieved"
)

type SessionPayload struct {
	SessionID string `json:"sessionId"`
	Role      string `json:"role,omitempty"`
	Attempt   int    `json:"attempt,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

func SessionCreated(ctx context.Context, pub logging.Publisher, participant logging.EntityRef, payload SessionPayload) {
	publish(ctx, pub, EventSessionCreated, logging.SeverityInfo, participant, payload)
}

func SessionJoined(ctx context.Context, pub logging.Publisher, participant logging.EntityRef, payload SessionPayload) {
	publish(ctx, pub, EventSessionJoined, logging.SeverityInfo, participant, payload)
}

func MatchReady(ctx context.Context, pub logging.Publisher, participant logging.EntityRef, payload SessionPayload) {
	publish(ctx, pub, EventMatchReady, logging.SeverityInfo, participant, payload)
}

func SearchFailed(ctx context.Context, pub logging.Publisher, participant logging.EntityRef, payload SessionPayload) {
	publish(ctx, pub, EventSearchFailed, logging.SeverityWarn, participant, payload)
}

func CredentialPublished(ctx context.Context, pub logging.Publisher, participant logging.EntityRef, payload SessionPayload) {
	publish(ctx, pub, EventCredentialPublished, logging.SeverityInfo, participant, payload)
}

func CredentialRetrieved(ctx context.Context, pub logging.Publisher, participant logging.EntityRef, payload SessionPayload) {
	publish(ctx, pub, EventCredentialRetrieved, logging.SeverityInfo, participant, payload)
}

func publish(ctx context.Context, pub logging.Publisher, typ logging.EventType, sev logging.Severity, actor logging.EntityRef, payload SessionPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     typ,
		Actor:    actor,
		Severity: sev,
		Category: logging.CategoryLobby,
		Payload:  payload,
	})
}
